// Package podcast plays the two-host PadWorld briefing. A pre-recorded asset
// is preferred; without one the script and the multi-speaker audio are
// generated on demand and kept as a WAV artifact for export.
package podcast

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/padworld/padtour/activity"
	"github.com/padworld/padtour/internal/fsm"
	"github.com/padworld/padtour/internal/genai"
	"github.com/padworld/padtour/pkg/audio"
	"github.com/padworld/padtour/pkg/playback"
)

// State is the podcast session state.
type State int

const (
	StateIdle State = iota
	StateCheckingFile
	StateGeneratingScript
	StateGeneratingAudio
	StatePlayingGenerated
	StatePlayingStatic
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateCheckingFile:
		return "CHECKING_FILE"
	case StateGeneratingScript:
		return "GENERATING_SCRIPT"
	case StateGeneratingAudio:
		return "GENERATING_AUDIO"
	case StatePlayingGenerated:
		return "PLAYING_GENERATED"
	case StatePlayingStatic:
		return "PLAYING_STATIC"
	default:
		return "UNKNOWN"
	}
}

// Playing reports whether audio is playing in this state.
func (s State) Playing() bool {
	return s == StatePlayingGenerated || s == StatePlayingStatic
}

// Busy reports whether the session is locating or generating audio.
func (s State) Busy() bool {
	return s == StateCheckingFile || s == StateGeneratingScript || s == StateGeneratingAudio
}

var transitions = map[State][]State{
	StateIdle:             {StateCheckingFile},
	StateCheckingFile:     {StatePlayingStatic, StateGeneratingScript, StateIdle},
	StateGeneratingScript: {StateGeneratingAudio, StateIdle},
	StateGeneratingAudio:  {StatePlayingGenerated, StateIdle},
	StatePlayingGenerated: {StateIdle},
	StatePlayingStatic:    {StateIdle},
}

// Generator produces the script and the multi-speaker audio.
type Generator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
	SynthesizeSpeakers(ctx context.Context, script string, speakers []genai.Speaker) ([]byte, error)
}

// StaticAssets locates and decodes the pre-recorded briefing.
type StaticAssets interface {
	ProbeAssetExists(ctx context.Context, ref string) (bool, error)
	Load(ctx context.Context, ref string) ([]float32, error)
}

// DefaultExportName is the file name used for exported briefings.
const DefaultExportName = "padworld_podcast.wav"

// DefaultPrompt asks for the two-host briefing.
const DefaultPrompt = `Create a short, high-energy 60-second podcast script between two hosts, Alex (Tech Enthusiast) and Sam (Sports Analyst), summarizing the "PadWorld" investment deck.

Key points to cover:
1. PadWorld is a decentralized Padel sports ecosystem powered by AI.
2. Features: Smart Courts with pressure floors, Auto-Referee system (no more arguments!), and 'Paddy' the AI coach.
3. Business: Tokenized ecosystem (PadToken) and global franchise model.

Format the output strictly as a conversation like:
Alex: Text
Sam: Text

Keep it punchy, excited, and professional.`

// Config configures the controller.
type Config struct {
	Asset    string
	Prompt   string
	Speakers []genai.Speaker
}

// DefaultConfig returns the standard briefing setup.
func DefaultConfig() Config {
	return Config{
		Asset:  "/padworld_podcast.mp3",
		Prompt: DefaultPrompt,
		Speakers: []genai.Speaker{
			{Name: "Alex", Voice: "Fenrir"},
			{Name: "Sam", Voice: "Kore"},
		},
	}
}

// Controller runs podcast sessions.
type Controller struct {
	gen    Generator
	assets StaticAssets
	sched  *playback.Scheduler
	group  *activity.Group
	logger *log.Logger
	cfg    Config

	mu       sync.Mutex
	machine  *fsm.Machine[State]
	session  uint64
	cancel   context.CancelFunc
	handle   *playback.Handle
	artifact []byte
	script   string
	segments []Segment
	lastErr  error
	watchers []func(State)
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfig sets the asset, prompt and speakers.
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// WithGroup registers the podcast with an activity group.
func WithGroup(g *activity.Group) Option {
	return func(c *Controller) { c.group = g }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a controller.
func New(gen Generator, assets StaticAssets, sched *playback.Scheduler, opts ...Option) *Controller {
	c := &Controller{
		gen:     gen,
		assets:  assets,
		sched:   sched,
		logger:  log.Default().WithPrefix("podcast"),
		cfg:     DefaultConfig(),
		machine: fsm.New(StateIdle, transitions),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.group != nil {
		c.group.Register(activity.Podcast, c.Stop)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Current()
}

// OnStateChange registers fn to receive every state change. fn runs outside
// the controller lock.
func (c *Controller) OnStateChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// Start toggles the briefing: while playing it stops, while locating or
// generating it does nothing, and otherwise it starts a new session in the
// background. Failures return the session to idle and are available from
// LastError.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	cur := c.machine.Current()
	c.mu.Unlock()
	switch {
	case cur.Playing():
		c.Stop()
		return
	case cur.Busy():
		return
	}

	if c.group != nil {
		c.group.Begin(activity.Podcast)
	}

	c.mu.Lock()
	if c.machine.Current() != StateIdle {
		c.mu.Unlock()
		return
	}
	c.session++
	id := c.session
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.artifact = nil
	c.script = ""
	c.segments = nil
	c.lastErr = nil
	c.machine.Transition(StateCheckingFile)
	c.mu.Unlock()
	c.notify()

	go c.run(runCtx, id)
}

// Stop ends playback or abandons generation and returns to idle.
func (c *Controller) Stop() {
	c.stop(0)
}

// stop ends session id, or whatever session is running when id is 0.
func (c *Controller) stop(id uint64) {
	c.mu.Lock()
	if id != 0 && c.session != id {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.session++
	h := c.handle
	c.handle = nil
	was := c.machine.Current()
	c.machine.Reset(StateIdle)
	if was != StateIdle {
		c.endLocked()
	}
	c.mu.Unlock()

	if h != nil {
		h.Release()
	}
	if was == StateIdle {
		return
	}
	c.logger.Info("Podcast stopped", "from", was)
	c.notify()
}

func (c *Controller) run(ctx context.Context, id uint64) {
	ref := c.cfg.Asset
	if ref != "" {
		exists, err := c.assets.ProbeAssetExists(ctx, ref)
		if err != nil {
			c.logger.Debug("Asset probe failed, generating instead", "asset", ref, "error", err)
		}
		if !c.current(id) {
			return
		}
		if exists && c.playStatic(ctx, id, ref) {
			return
		}
	}

	if !c.enter(id, StateGeneratingScript) {
		return
	}
	script, err := c.gen.GenerateText(ctx, c.cfg.Prompt)
	if !c.current(id) {
		return
	}
	script = strings.TrimSpace(script)
	if err == nil && script == "" {
		err = fmt.Errorf("%w: empty script", activity.ErrTransientGeneration)
	}
	if err != nil {
		c.fail(id, "generate script", err)
		return
	}

	segments := ParseScript(script)
	c.mu.Lock()
	if c.session != id {
		c.mu.Unlock()
		return
	}
	c.script = script
	c.segments = segments
	c.mu.Unlock()
	c.logger.Debug("Script generated", "segments", len(segments), "speakers", Speakers(segments))

	if !c.enter(id, StateGeneratingAudio) {
		return
	}
	pcm, err := c.gen.SynthesizeSpeakers(ctx, script, c.cfg.Speakers)
	if !c.current(id) {
		return
	}
	if err == nil && len(pcm) < 2 {
		err = fmt.Errorf("%w: empty audio", activity.ErrTransientGeneration)
	}
	if err != nil {
		c.fail(id, "synthesize", err)
		return
	}

	c.playGenerated(id, pcm)
}

// playStatic loads and plays the pre-recorded briefing. It reports false
// when the caller should generate one instead.
func (c *Controller) playStatic(ctx context.Context, id uint64, ref string) bool {
	samples, err := c.assets.Load(ctx, ref)
	if !c.current(id) {
		return true
	}
	if err == nil && len(samples) == 0 {
		err = fmt.Errorf("asset %s: no audio", ref)
	}
	if err != nil {
		c.logger.Warn("Static asset could not be played, generating instead", "asset", ref, "error", err)
		return false
	}

	h, ok := c.acquire(id, StatePlayingStatic, nil)
	if !ok {
		return true
	}
	c.logger.Info("Playing pre-recorded briefing", "asset", ref, "duration", audio.Duration(len(samples), playback.SampleRate))
	c.notify()

	if _, err := h.ScheduleBuffer(samples, func() { c.ended(id) }); err != nil {
		c.fail(id, "play asset", err)
	}
	return true
}

func (c *Controller) playGenerated(id uint64, pcm []byte) {
	f := audio.SpeechFormat()
	wav := audio.WrapPCMAsWAV(pcm, f.SampleRate, f.Channels, f.BitsPerSample)

	h, ok := c.acquire(id, StatePlayingGenerated, wav)
	if !ok {
		return
	}
	c.logger.Info("Playing generated briefing", "duration", audio.Duration(len(pcm)/2, f.SampleRate))
	c.notify()

	if _, err := h.ScheduleBuffer(audio.BytesToSamples(pcm), func() { c.ended(id) }); err != nil {
		c.fail(id, "schedule", err)
	}
}

// acquire takes the output for session id and enters the playing state s.
// The output is only taken while the session is still current, so a stale
// session never preempts whoever started after it.
func (c *Controller) acquire(id uint64, s State, artifact []byte) (*playback.Handle, bool) {
	c.mu.Lock()
	if c.session != id {
		c.mu.Unlock()
		return nil, false
	}
	h := c.sched.Acquire(activity.Podcast)
	c.handle = h
	if artifact != nil {
		c.artifact = artifact
	}
	c.machine.Transition(s)
	c.mu.Unlock()

	h.OnPreempt(func() {
		c.logger.Info("Podcast preempted by another activity")
		c.stop(id)
	})
	return h, true
}

func (c *Controller) ended(id uint64) {
	c.mu.Lock()
	if c.session != id || !c.machine.Current().Playing() {
		c.mu.Unlock()
		return
	}
	h := c.handle
	c.handle = nil
	c.cancel = nil
	c.machine.Reset(StateIdle)
	c.endLocked()
	c.mu.Unlock()

	if h != nil {
		h.Release()
	}
	c.logger.Debug("Podcast finished")
	c.notify()
}

func (c *Controller) fail(id uint64, action string, err error) {
	c.mu.Lock()
	if c.session != id {
		c.mu.Unlock()
		return
	}
	c.lastErr = activity.NewError(err, "podcast", action)
	h := c.handle
	c.handle = nil
	c.cancel = nil
	c.machine.Reset(StateIdle)
	c.endLocked()
	c.mu.Unlock()

	if h != nil {
		h.Release()
	}
	c.logger.Error("Podcast generation failed", "action", action, "kind", activity.Classify(err), "error", err)
	c.notify()
}

// endLocked gives up the activity group. The group never calls back into
// the controller from End, so it is safe under c.mu.
func (c *Controller) endLocked() {
	if c.group != nil {
		c.group.End(activity.Podcast)
	}
}

func (c *Controller) enter(id uint64, s State) bool {
	c.mu.Lock()
	if c.session != id || !c.machine.Transition(s) {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()
	c.notify()
	return true
}

func (c *Controller) current(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session == id
}

// Script returns the last generated script.
func (c *Controller) Script() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.script
}

// Segments returns the speaker turns of the last generated script.
func (c *Controller) Segments() []Segment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Segment(nil), c.segments...)
}

// Artifact returns the WAV bytes of the last generated briefing, or nil.
func (c *Controller) Artifact() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.artifact
}

// LastError returns the failure of the last session, or nil.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// ExportArtifact writes the generated briefing to path. It reports false
// without error when there is nothing to export.
func (c *Controller) ExportArtifact(path string) (bool, error) {
	wav := c.Artifact()
	if wav == nil {
		return false, nil
	}
	if path == "" {
		path = DefaultExportName
	}
	if err := os.WriteFile(path, wav, 0o644); err != nil { //nolint:gosec
		return false, fmt.Errorf("export podcast: %w", err)
	}
	c.logger.Info("Podcast exported", "path", path, "bytes", len(wav))
	return true, nil
}

func (c *Controller) notify() {
	c.mu.Lock()
	s := c.machine.Current()
	watchers := make([]func(State), len(c.watchers))
	copy(watchers, c.watchers)
	c.mu.Unlock()

	for _, fn := range watchers {
		fn(s)
	}
}
