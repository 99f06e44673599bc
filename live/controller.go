// Package live runs the two-way voice session with Paddy: microphone audio
// streams out as 16 kHz PCM while the model's 24 kHz replies are scheduled
// back to back on the shared output.
package live

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/padworld/padtour/activity"
	"github.com/padworld/padtour/internal/fsm"
	"github.com/padworld/padtour/paddy"
	"github.com/padworld/padtour/pkg/audio"
	"github.com/padworld/padtour/pkg/playback"
)

// State is the connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateError
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

var transitions = map[State][]State{
	StateDisconnected: {StateConnecting},
	StateConnecting:   {StateConnected, StateError, StateDisconnected},
	StateConnected:    {StateError, StateDisconnected},
	StateError:        {StateConnecting, StateDisconnected},
}

// Reasons shown for StateError.
const (
	ReasonMicDenied      = "Mic Access Denied"
	ReasonInitFailed     = "Init Failed"
	ReasonConnectionLost = "Connection Lost"
)

// Status is a snapshot of the session.
type Status struct {
	State  State
	Reason string
}

// Capture is a running microphone stream of mono samples.
type Capture interface {
	Chunks() <-chan []float32
	SampleRate() int
	Close() error
}

// Microphone opens capture streams. A denied or missing device is reported
// as activity.ErrPermissionDenied.
type Microphone interface {
	Open(ctx context.Context) (Capture, error)
}

// Handlers receive events of one stream, in arrival order.
type Handlers struct {
	OnOpen  func()
	OnAudio func(b64 string)
	OnClose func()
	OnError func(error)
}

// SessionConfig is the persona sent when a stream opens.
type SessionConfig struct {
	Voice             string
	SystemInstruction string
}

// Stream is an open bidirectional audio stream.
type Stream interface {
	SendAudio(b64 string) error
	Close() error
}

// Connector dials streams.
type Connector interface {
	Connect(ctx context.Context, cfg SessionConfig, h Handlers) (Stream, error)
}

// Config configures the controller.
type Config struct {
	Voice             string
	SystemInstruction string
	Lead              time.Duration // Headroom before the first reply chunk
}

// DefaultConfig returns the Paddy voice setup.
func DefaultConfig() Config {
	return Config{
		Voice:             paddy.Voice,
		SystemInstruction: paddy.SystemInstruction,
		Lead:              100 * time.Millisecond,
	}
}

// Controller manages live sessions. Each Connect starts a new session with
// its own token; callbacks carrying an older token are ignored.
type Controller struct {
	mic    Microphone
	conn   Connector
	sched  *playback.Scheduler
	group  *activity.Group
	logger *log.Logger
	cfg    Config

	mu       sync.Mutex
	machine  *fsm.Machine[State]
	reason   string
	token    uint64
	cancel   context.CancelFunc
	capture  Capture
	stream   Stream
	handle   *playback.Handle
	opened   bool
	pumping  bool
	level    float64
	watchers []func(Status)
}

// Option configures a Controller.
type Option func(*Controller)

// WithConfig sets the voice, persona and lead time.
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// WithGroup registers the session with an activity group.
func WithGroup(g *activity.Group) Option {
	return func(c *Controller) { c.group = g }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// New creates a controller.
func New(mic Microphone, conn Connector, sched *playback.Scheduler, opts ...Option) *Controller {
	c := &Controller{
		mic:     mic,
		conn:    conn,
		sched:   sched,
		logger:  log.Default().WithPrefix("live"),
		cfg:     DefaultConfig(),
		machine: fsm.New(StateDisconnected, transitions),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.group != nil {
		c.group.Register(activity.Live, c.Disconnect)
	}
	return c
}

// Status returns the current state and error reason.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{State: c.machine.Current(), Reason: c.reason}
}

// OnStateChange registers fn to receive every status change. fn runs outside
// the controller lock.
func (c *Controller) OnStateChange(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.watchers = append(c.watchers, fn)
}

// Speaking reports whether reply audio is scheduled or playing.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	return h != nil && h.Active()
}

// InputLevel returns the loudness of the last microphone chunk, roughly in
// [0, 5].
func (c *Controller) InputLevel() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.level
}

// Connect opens the microphone and dials a new session. It does nothing
// while a session is connecting or connected. ctx bounds the whole session:
// canceling it stops the microphone. The returned error is also reflected in
// the status reason.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	cur := c.machine.Current()
	c.mu.Unlock()
	if cur == StateConnecting || cur == StateConnected {
		return nil
	}

	if c.group != nil {
		c.group.Begin(activity.Live)
	}

	c.mu.Lock()
	if !c.machine.Transition(StateConnecting) {
		c.mu.Unlock()
		return nil
	}
	c.token++
	id := c.token
	c.reason = ""
	c.opened = false
	c.pumping = false
	c.level = 0
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()
	c.notify()

	c.logger.Info("Connecting live session", "voice", c.cfg.Voice)

	capture, err := c.mic.Open(ctx)
	if err != nil {
		if !errors.Is(err, activity.ErrPermissionDenied) {
			err = fmt.Errorf("%w: %v", activity.ErrPermissionDenied, err)
		}
		c.fail(id, ReasonMicDenied, err)
		return err
	}
	if _, err := c.sched.EnsureContextReady(); err != nil {
		_ = capture.Close()
		c.fail(id, ReasonInitFailed, err)
		return err
	}

	c.mu.Lock()
	if c.token != id {
		c.mu.Unlock()
		_ = capture.Close()
		return context.Canceled
	}
	h := c.sched.Acquire(activity.Live)
	c.capture = capture
	c.handle = h
	c.mu.Unlock()

	h.OnPreempt(func() {
		c.logger.Info("Live session preempted by another activity")
		c.disconnect(id)
	})

	stream, err := c.conn.Connect(ctx, SessionConfig{
		Voice:             c.cfg.Voice,
		SystemInstruction: c.cfg.SystemInstruction,
	}, Handlers{
		OnOpen:  func() { c.handleOpen(id) },
		OnAudio: func(b64 string) { c.handleAudio(id, b64) },
		OnClose: func() { c.handleClose(id) },
		OnError: func(err error) { c.fail(id, ReasonConnectionLost, err) },
	})
	if err != nil {
		c.fail(id, ReasonInitFailed, err)
		return err
	}

	c.mu.Lock()
	if c.token != id {
		c.mu.Unlock()
		_ = stream.Close()
		return context.Canceled
	}
	c.stream = stream
	start := c.opened && !c.pumping
	if start {
		c.pumping = true
	}
	c.mu.Unlock()

	if start {
		go c.pump(id, stream, capture)
	}
	return nil
}

// Disconnect closes the stream, stops the microphone and the reply audio,
// and returns to DISCONNECTED.
func (c *Controller) Disconnect() {
	c.disconnect(0)
}

// disconnect ends session id, or any session when id is 0.
func (c *Controller) disconnect(id uint64) {
	c.mu.Lock()
	if id != 0 && c.token != id {
		c.mu.Unlock()
		return
	}
	was := c.machine.Current()
	c.token++
	closeFn := c.detachLocked()
	c.machine.Reset(StateDisconnected)
	c.reason = ""
	c.mu.Unlock()

	closeFn()
	if was == StateDisconnected {
		return
	}
	c.logger.Info("Live session disconnected")
	c.notify()
}

func (c *Controller) handleOpen(id uint64) {
	c.mu.Lock()
	if c.token != id || !c.machine.Transition(StateConnected) {
		c.mu.Unlock()
		return
	}
	c.opened = true
	if c.handle != nil {
		c.handle.Prime(c.cfg.Lead)
	}
	stream, capture := c.stream, c.capture
	start := stream != nil && capture != nil && !c.pumping
	if start {
		c.pumping = true
	}
	c.mu.Unlock()

	c.logger.Info("Live session connected")
	c.notify()
	if start {
		go c.pump(id, stream, capture)
	}
}

// pump forwards microphone chunks until the capture ends or the session
// changes.
func (c *Controller) pump(id uint64, stream Stream, capture Capture) {
	rate := capture.SampleRate()
	for chunk := range capture.Chunks() {
		level := inputLevel(chunk)
		c.mu.Lock()
		if c.token != id {
			c.mu.Unlock()
			return
		}
		c.level = level
		c.mu.Unlock()

		if rate != audio.InputSampleRate {
			chunk = audio.Resample(chunk, rate, audio.InputSampleRate)
		}
		if err := stream.SendAudio(audio.EncodeBase64(audio.SamplesToBytes(chunk))); err != nil {
			c.logger.Debug("Microphone forwarding stopped", "error", err)
			return
		}
	}
	c.logger.Debug("Microphone stream ended")
}

func (c *Controller) handleAudio(id uint64, b64 string) {
	c.mu.Lock()
	h := c.handle
	current := c.token == id
	c.mu.Unlock()
	if !current || h == nil {
		return
	}

	pcm, err := audio.DecodeBase64(b64)
	if err != nil {
		c.logger.Warn("Skipping malformed reply chunk", "kind", activity.Classify(err), "error", err)
		return
	}
	if len(pcm) < 2 {
		return
	}
	if _, err := h.ScheduleBuffer(audio.BytesToSamples(pcm), nil); err != nil {
		c.logger.Debug("Reply chunk not scheduled", "error", err)
	}
}

func (c *Controller) handleClose(id uint64) {
	c.mu.Lock()
	if c.token != id {
		c.mu.Unlock()
		return
	}
	c.token++
	closeFn := c.detachLocked()
	c.machine.Reset(StateDisconnected)
	c.mu.Unlock()

	closeFn()
	c.logger.Info("Live session closed by remote")
	c.notify()
}

func (c *Controller) fail(id uint64, reason string, err error) {
	c.mu.Lock()
	if c.token != id {
		c.mu.Unlock()
		return
	}
	c.token++
	closeFn := c.detachLocked()
	c.machine.Reset(StateError)
	c.reason = reason
	c.mu.Unlock()

	closeFn()
	c.logger.Error("Live session failed", "reason", reason, "kind", activity.Classify(err), "error", err)
	c.notify()
}

// detachLocked takes the session resources and returns a function that
// closes them outside the lock.
func (c *Controller) detachLocked() func() {
	cancel, capture, stream, h := c.cancel, c.capture, c.stream, c.handle
	c.cancel, c.capture, c.stream, c.handle = nil, nil, nil, nil
	c.opened, c.pumping = false, false
	c.level = 0
	if c.group != nil {
		c.group.End(activity.Live)
	}
	return func() {
		if stream != nil {
			_ = stream.Close()
		}
		if capture != nil {
			_ = capture.Close()
		}
		if h != nil {
			h.Release()
		}
		if cancel != nil {
			cancel()
		}
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	s := Status{State: c.machine.Current(), Reason: c.reason}
	watchers := make([]func(Status), len(c.watchers))
	copy(watchers, c.watchers)
	c.mu.Unlock()

	for _, fn := range watchers {
		fn(s)
	}
}

// inputLevel is the RMS of every tenth sample, scaled for a level meter.
func inputLevel(chunk []float32) float64 {
	if len(chunk) == 0 {
		return 0
	}
	var sum float64
	n := 0
	for i := 0; i < len(chunk); i += 10 {
		v := float64(chunk[i])
		sum += v * v
		n++
	}
	return math.Sqrt(sum/float64(n)) * 5
}
