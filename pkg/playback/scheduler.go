package playback

import (
	"bytes"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/padworld/padtour/internal/clock"
	"github.com/padworld/padtour/pkg/audio"
)

// Scheduler owns one lazily created Output and schedules sample buffers on
// it. Buffers scheduled back to back start at max(now, next start time), so
// consecutive chunks play without gaps or overlap.
//
// Ownership of the output is expressed through Handles: at most one Handle is
// active at a time, and acquiring a new one stops and releases the previous.
// The previous owner learns about it through Handle.OnPreempt.
type Scheduler struct {
	mu      sync.Mutex
	open    func() (Output, error)
	out     Output
	clock   clock.Clock
	logger  *log.Logger
	next    time.Time
	current *Handle
	seq     uint64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for start times and completion timers.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the scheduler's logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates a scheduler that calls open on first use.
func NewScheduler(open func() (Output, error), opts ...Option) *Scheduler {
	s := &Scheduler{
		open:   open,
		clock:  clock.Real(),
		logger: log.Default().WithPrefix("playback"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnsureContextReady creates the output on first use and resumes it if the
// platform suspended it. It is idempotent.
func (s *Scheduler) EnsureContextReady() (Output, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked()
}

func (s *Scheduler) ensureLocked() (Output, error) {
	if s.out == nil {
		out, err := s.open()
		if err != nil {
			return nil, fmt.Errorf("open audio output: %w", err)
		}
		s.out = out
		s.logger.Debug("Audio output created",
			"sample_rate", out.SampleRate(),
			"channels", out.ChannelCount())
	}
	if s.out.Suspended() {
		if err := s.out.Resume(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrResumeFailed, err)
		}
		s.logger.Debug("Audio output resumed")
	}
	return s.out, nil
}

// Acquire returns a new handle for owner. A previously active handle is
// stopped and released first, and its preemption callback is started on its
// own goroutine, so callers may hold their own locks while acquiring.
func (s *Scheduler) Acquire(owner string) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev := s.current; prev != nil {
		s.logger.Debug("Playback handle preempted", "owner", prev.owner, "by", owner)
		prev.stopLocked()
		prev.released = true
		prev.preempted = true
		if fn := prev.onPreempt; fn != nil {
			prev.onPreempt = nil
			go fn()
		}
	}

	s.seq++
	h := &Handle{
		s:       s,
		owner:   owner,
		id:      s.seq,
		sources: make(map[*Source]struct{}),
	}
	s.current = h
	s.next = s.clock.Now()
	return h
}

// Current returns the active handle, or nil.
func (s *Scheduler) Current() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// StopAll stops every scheduled or playing source. It is a no-op when
// nothing is playing.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current.stopLocked()
	}
	s.next = s.clock.Now()
}

// NextStartTime returns the earliest start time for the next buffer.
func (s *Scheduler) NextStartTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now := s.clock.Now(); now.After(s.next) {
		return now
	}
	return s.next
}

// Output returns the output if it has been created.
func (s *Scheduler) Output() (Output, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out, s.out != nil
}

// Close stops playback, releases the active handle and closes the output.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.current.stopLocked()
		s.current.released = true
		s.current = nil
	}
	if s.out == nil {
		return nil
	}
	err := s.out.Close()
	s.out = nil
	return err
}

func (s *Scheduler) begin(src *Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if src.done || src.stopped || s.out == nil {
		return
	}
	s.beginLocked(src, s.out)
}

func (s *Scheduler) beginLocked(src *Source, out Output) {
	v, err := out.NewPlayer(bytes.NewReader(src.pcm))
	if err != nil {
		// The source keeps its slot on the timeline so that completion
		// still fires and callers never hang.
		s.logger.Warn("Failed to start source", "owner", src.h.owner, "error", err)
		return
	}
	src.voice = v
	v.Play()
}

func (s *Scheduler) finish(src *Source) {
	s.mu.Lock()
	if src.done || src.stopped {
		s.mu.Unlock()
		return
	}
	src.done = true
	src.closeVoice()
	delete(src.h.sources, src)
	cb := src.onFinished
	s.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Handle is the PlaybackHandle owned by one activity.
type Handle struct {
	s         *Scheduler
	owner     string
	id        uint64
	sources   map[*Source]struct{}
	released  bool
	preempted bool
	onPreempt func()
}

// Owner returns the name the handle was acquired with.
func (h *Handle) Owner() string { return h.owner }

// OnPreempt sets fn to run once when another Acquire takes the output from
// this handle. Stopped sources never report completion, so owners waiting on
// a buffer use fn to wind down. Release clears fn. If the handle was already
// preempted, fn starts at once.
func (h *Handle) OnPreempt(fn func()) {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.preempted {
		if fn != nil {
			go fn()
		}
		return
	}
	if h.released {
		return
	}
	h.onPreempt = fn
}

// ScheduleBuffer plays samples starting at max(now, next start time). The
// next start time moves to the end of this buffer. onFinished runs once the
// buffer has played to its end; it does not run for stopped sources.
func (h *Handle) ScheduleBuffer(samples []float32, onFinished func()) (*Source, error) {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.released {
		return nil, ErrHandleReleased
	}
	out, err := s.ensureLocked()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	start := now
	if s.next.After(now) {
		start = s.next
	}
	src := &Source{
		Start:      start,
		End:        start.Add(audio.Duration(len(samples), out.SampleRate())),
		Samples:    len(samples),
		h:          h,
		pcm:        audio.SamplesToBytes(samples),
		onFinished: onFinished,
	}
	s.next = src.End
	h.sources[src] = struct{}{}

	if delay := start.Sub(now); delay > 0 {
		src.startTimer = s.clock.AfterFunc(delay, func() { s.begin(src) })
	} else {
		s.beginLocked(src, out)
	}
	src.endTimer = s.clock.AfterFunc(src.End.Sub(now), func() { s.finish(src) })

	s.logger.Debug("Buffer scheduled",
		"owner", h.owner,
		"samples", src.Samples,
		"delay", start.Sub(now),
		"duration", src.Duration())
	return src, nil
}

// Prime moves the next start time to now+lead, leaving headroom for the
// first chunk of a stream.
func (h *Handle) Prime(lead time.Duration) {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if h.released {
		return
	}
	s.next = s.clock.Now().Add(lead)
}

// StopAll stops every source scheduled through this handle. The handle
// remains usable.
func (h *Handle) StopAll() {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()
	h.stopLocked()
}

// Release stops the handle's sources and gives up ownership of the output.
func (h *Handle) Release() {
	s := h.s
	s.mu.Lock()
	defer s.mu.Unlock()
	h.stopLocked()
	h.released = true
	h.onPreempt = nil
	if s.current == h {
		s.current = nil
	}
}

// Released reports whether the handle was released or preempted.
func (h *Handle) Released() bool {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return h.released
}

// Active reports whether the handle holds sources that have not finished.
func (h *Handle) Active() bool {
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	return !h.released && len(h.sources) > 0
}

func (h *Handle) stopLocked() {
	if len(h.sources) == 0 {
		return
	}
	for src := range h.sources {
		src.stopped = true
		if src.startTimer != nil {
			src.startTimer.Stop()
		}
		if src.endTimer != nil {
			src.endTimer.Stop()
		}
		src.closeVoice()
	}
	h.sources = make(map[*Source]struct{})
	if h.s.current == h {
		h.s.next = h.s.clock.Now()
	}
}

// Source is one scheduled buffer.
type Source struct {
	Start   time.Time
	End     time.Time
	Samples int

	h          *Handle
	pcm        []byte
	voice      Voice
	onFinished func()
	startTimer clock.Timer
	endTimer   clock.Timer
	done       bool
	stopped    bool
}

// Duration returns the playback length of the source.
func (src *Source) Duration() time.Duration { return src.End.Sub(src.Start) }

func (src *Source) closeVoice() {
	if src.voice == nil {
		return
	}
	_ = src.voice.Close()
	src.voice = nil
}
