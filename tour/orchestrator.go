// Package tour runs the guided PadWorld tour: for each step it scrolls the
// presenter to the step's section, synthesizes the narration, plays it and
// moves on after a settle delay. Failed steps are skipped after a longer
// fallback delay so the tour never stalls.
package tour

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/padworld/padtour/activity"
	"github.com/padworld/padtour/internal/clock"
	"github.com/padworld/padtour/internal/fsm"
	"github.com/padworld/padtour/pkg/audio"
	"github.com/padworld/padtour/pkg/playback"
)

// Presenter renders the tour. Implementations must not block for long.
type Presenter interface {
	ScrollToSection(id string)
	DisplaySubtitle(text string)
}

// Synthesizer turns a script into 24 kHz mono 16-bit PCM.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Config holds the orchestrator timings and voice.
type Config struct {
	Voice         string
	SettleDelay   time.Duration // Pause after a step finished playing
	FallbackDelay time.Duration // Pause after a step failed
}

// DefaultConfig returns the standard tour timings.
func DefaultConfig() Config {
	return Config{
		Voice:         "Fenrir",
		SettleDelay:   time.Second,
		FallbackDelay: 2 * time.Second,
	}
}

// Orchestrator steps through the tour.
type Orchestrator struct {
	steps     []Step
	synth     Synthesizer
	presenter Presenter
	sched     *playback.Scheduler
	clock     clock.Clock
	group     *activity.Group
	logger    *log.Logger
	cfg       Config

	mu       sync.Mutex
	machine  *fsm.Machine[Phase]
	state    RunState
	handle   *playback.Handle
	cancel   context.CancelFunc
	timer    clock.Timer
	watchers []func(RunState)

	// emitMu serializes presenter calls with Stop so that no scroll or
	// subtitle from a canceled step lands after the final blank subtitle.
	emitMu sync.Mutex
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfig sets the voice and delays.
func WithConfig(cfg Config) Option {
	return func(o *Orchestrator) { o.cfg = cfg }
}

// WithClock sets the clock used for the settle and fallback delays.
func WithClock(c clock.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithGroup registers the tour with an activity group.
func WithGroup(g *activity.Group) Option {
	return func(o *Orchestrator) { o.group = g }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator for steps.
func New(steps []Step, synth Synthesizer, presenter Presenter, sched *playback.Scheduler, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		steps:     steps,
		synth:     synth,
		presenter: presenter,
		sched:     sched,
		clock:     clock.Real(),
		logger:    log.Default().WithPrefix("tour"),
		cfg:       DefaultConfig(),
		machine:   fsm.New(PhaseIdle, phaseTransitions),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.state = RunState{Phase: PhaseIdle, StepCount: len(steps)}
	if o.group != nil {
		o.group.Register(activity.Tour, o.Stop)
	}
	return o
}

// Steps returns the tour steps.
func (o *Orchestrator) Steps() []Step {
	return o.steps
}

// SetConfig replaces the voice and delays. Running steps pick up the new
// values at their next delay.
func (o *Orchestrator) SetConfig(cfg Config) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cfg = cfg
}

// State returns a snapshot of the run state.
func (o *Orchestrator) State() RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// OnStateChange registers fn to receive every state snapshot. fn runs
// outside the orchestrator lock.
func (o *Orchestrator) OnStateChange(fn func(RunState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.watchers = append(o.watchers, fn)
}

// Start begins the tour at the first step. It does nothing when the tour is
// already running. Starting the tour stops the other activities.
func (o *Orchestrator) Start() {
	o.StartAt(0)
}

// StartAt begins the tour at step i.
func (o *Orchestrator) StartAt(i int) {
	o.mu.Lock()
	active := o.state.Active
	o.mu.Unlock()
	if active {
		return
	}

	if o.group != nil {
		o.group.Begin(activity.Tour)
	}

	o.mu.Lock()
	if o.state.Active {
		o.mu.Unlock()
		return
	}
	if i < 0 || i >= len(o.steps) {
		i = 0
	}
	h := o.sched.Acquire(activity.Tour)
	o.handle = h
	o.state = RunState{Active: true, Phase: o.machine.Current(), StepCount: len(o.steps)}
	o.mu.Unlock()

	// A preempted handle drops the playing narration without completion, so
	// the run ends with it.
	h.OnPreempt(func() {
		o.logger.Info("Tour preempted by another activity")
		o.stop(h)
	})

	o.logger.Info("Tour started", "steps", len(o.steps), "from", i)
	o.advance(nil, i)
}

// Stop ends the tour from any state. Pending synthesis results and timers
// are discarded, playback stops and the subtitle is cleared. It is a no-op
// when the tour is not running.
func (o *Orchestrator) Stop() {
	o.stop(nil)
}

// stop ends the run. A non-nil owner limits it to the run holding that
// handle.
func (o *Orchestrator) stop(owner *playback.Handle) {
	o.mu.Lock()
	if !o.state.Active || (owner != nil && o.handle != owner) {
		o.mu.Unlock()
		return
	}
	o.cancelStepLocked()
	h := o.handle
	o.handle = nil
	o.machine.Reset(PhaseStopped)
	o.state = RunState{Phase: PhaseStopped, StepCount: len(o.steps)}
	o.mu.Unlock()

	if h != nil {
		h.Release()
	}
	if o.group != nil {
		o.group.End(activity.Tour)
	}

	o.emitMu.Lock()
	o.presenter.DisplaySubtitle("")
	o.emitMu.Unlock()

	o.logger.Info("Tour stopped")
	o.notify()
}

// Next skips to the following step. Skipping past the last step ends the
// tour.
func (o *Orchestrator) Next() { o.skip(1) }

// Previous goes back one step, staying on the first step.
func (o *Orchestrator) Previous() { o.skip(-1) }

// GoTo jumps to step i of a running tour.
func (o *Orchestrator) GoTo(i int) {
	o.mu.Lock()
	if !o.state.Active {
		o.mu.Unlock()
		return
	}
	delta := i - o.state.StepIndex
	o.mu.Unlock()
	o.skip(delta)
}

func (o *Orchestrator) skip(delta int) {
	o.mu.Lock()
	if !o.state.Active {
		o.mu.Unlock()
		return
	}
	i := o.state.StepIndex + delta
	if i < 0 {
		i = 0
	}
	o.cancelStepLocked()
	h := o.handle
	o.mu.Unlock()

	if h != nil {
		h.StopAll()
	}
	o.advance(nil, i)
}

// advance runs step i. from is the context of the step that scheduled the
// call; a canceled from means a newer step or a stop superseded it. User
// driven calls pass nil.
func (o *Orchestrator) advance(from context.Context, i int) {
	o.mu.Lock()
	if !o.state.Active || (from != nil && from.Err() != nil) {
		o.mu.Unlock()
		return
	}
	if i >= len(o.steps) {
		o.mu.Unlock()
		o.logger.Info("Tour complete")
		o.Stop()
		return
	}

	o.cancelStepLocked()
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel

	step := o.steps[i]
	if !o.machine.Transition(PhaseScrolling) {
		o.machine.Reset(PhaseScrolling)
	}
	o.state.Phase = PhaseScrolling
	o.state.StepIndex = i
	o.state.Section = step.SectionID
	o.state.Label = step.Label
	o.state.Subtitle = step.Script
	o.state.GeneratingAudio = false
	o.state.PlayingAudio = false
	o.mu.Unlock()
	o.notify()

	o.emitMu.Lock()
	if ctx.Err() != nil {
		o.emitMu.Unlock()
		return
	}
	o.presenter.ScrollToSection(step.SectionID)
	o.presenter.DisplaySubtitle(step.Script)
	o.emitMu.Unlock()

	o.mu.Lock()
	if ctx.Err() != nil {
		o.mu.Unlock()
		return
	}
	o.machine.Transition(PhaseSynthesizing)
	o.state.Phase = PhaseSynthesizing
	o.state.GeneratingAudio = true
	o.mu.Unlock()
	o.notify()

	o.logger.Debug("Step started", "step", i, "section", step.SectionID, "label", step.Label)
	go o.synthesize(ctx, i, step)
}

func (o *Orchestrator) synthesize(ctx context.Context, i int, step Step) {
	o.mu.Lock()
	voice := o.cfg.Voice
	o.mu.Unlock()

	pcm, err := o.synth.Synthesize(ctx, step.Script, voice)
	if ctx.Err() != nil {
		o.logger.Debug("Discarding late narration", "step", i)
		return
	}
	if err == nil && len(pcm) < 2 {
		err = fmt.Errorf("%w: no audio for step %d", activity.ErrTransientGeneration, i)
	}
	if err != nil {
		o.fail(ctx, i, err)
		return
	}

	o.mu.Lock()
	if ctx.Err() != nil {
		o.mu.Unlock()
		return
	}
	h := o.handle
	o.machine.Transition(PhasePlaying)
	o.state.Phase = PhasePlaying
	o.state.GeneratingAudio = false
	o.state.PlayingAudio = true
	o.mu.Unlock()
	o.notify()

	if h == nil {
		o.fail(ctx, i, playback.ErrHandleReleased)
		return
	}
	if _, err := h.ScheduleBuffer(audio.BytesToSamples(pcm), func() { o.played(ctx, i) }); err != nil {
		o.fail(ctx, i, err)
	}
}

func (o *Orchestrator) played(ctx context.Context, i int) {
	o.mu.Lock()
	if ctx.Err() != nil {
		o.mu.Unlock()
		return
	}
	o.machine.Transition(PhaseWaiting)
	o.state.Phase = PhaseWaiting
	o.state.PlayingAudio = false
	o.timer = o.clock.AfterFunc(o.cfg.SettleDelay, func() { o.advance(ctx, i+1) })
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) fail(ctx context.Context, i int, err error) {
	o.mu.Lock()
	if ctx.Err() != nil {
		o.mu.Unlock()
		return
	}
	o.machine.Transition(PhaseWaiting)
	o.state.Phase = PhaseWaiting
	o.state.GeneratingAudio = false
	o.state.PlayingAudio = false
	o.state.LastError = err
	o.timer = o.clock.AfterFunc(o.cfg.FallbackDelay, func() { o.advance(ctx, i+1) })
	o.mu.Unlock()

	o.logger.Warn("Narration failed, skipping step",
		"step", i,
		"kind", activity.Classify(err),
		"error", err)
	o.notify()
}

func (o *Orchestrator) cancelStepLocked() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *Orchestrator) notify() {
	o.mu.Lock()
	s := o.state
	watchers := make([]func(RunState), len(o.watchers))
	copy(watchers, o.watchers)
	o.mu.Unlock()

	for _, fn := range watchers {
		fn(s)
	}
}
