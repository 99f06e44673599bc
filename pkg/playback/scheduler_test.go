package playback

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/padworld/padtour/internal/clock"
)

func newTestScheduler(t *testing.T) (*Scheduler, *MockOutput, *clock.Fake) {
	t.Helper()
	out := NewMockOutput(SampleRate)
	fake := clock.NewFake(time.Unix(1000, 0))
	s := NewScheduler(func() (Output, error) { return out, nil }, WithClock(fake))
	return s, out, fake
}

func seconds(n float64) []float32 {
	return make([]float32, int(n*SampleRate))
}

func TestSchedulerGaplessAppend(t *testing.T) {
	s, _, fake := newTestScheduler(t)
	h := s.Acquire("test")
	start := fake.Now()

	durations := []float64{1, 0.5, 0.25}
	var sources []*Source
	for _, d := range durations {
		src, err := h.ScheduleBuffer(seconds(d), nil)
		if err != nil {
			t.Fatalf("ScheduleBuffer failed: %v", err)
		}
		sources = append(sources, src)
	}

	if !sources[0].Start.Equal(start) {
		t.Errorf("first start = %v, want %v", sources[0].Start, start)
	}
	for i := 1; i < len(sources); i++ {
		if !sources[i].Start.Equal(sources[i-1].End) {
			t.Errorf("source %d starts at %v, want previous end %v", i, sources[i].Start, sources[i-1].End)
		}
	}
	want := start.Add(1750 * time.Millisecond)
	if got := s.NextStartTime(); !got.Equal(want) {
		t.Errorf("NextStartTime = %v, want %v", got, want)
	}
}

func TestSchedulerStartsAtNowAfterIdle(t *testing.T) {
	s, _, fake := newTestScheduler(t)
	h := s.Acquire("test")

	if _, err := h.ScheduleBuffer(seconds(1), nil); err != nil {
		t.Fatalf("ScheduleBuffer failed: %v", err)
	}
	fake.Advance(3 * time.Second)

	src, err := h.ScheduleBuffer(seconds(1), nil)
	if err != nil {
		t.Fatalf("ScheduleBuffer failed: %v", err)
	}
	if !src.Start.Equal(fake.Now()) {
		t.Errorf("start = %v, want now %v", src.Start, fake.Now())
	}
}

func TestSchedulerOnFinishedOrder(t *testing.T) {
	s, out, fake := newTestScheduler(t)
	h := s.Acquire("test")

	var finished []int
	for i := 0; i < 3; i++ {
		i := i
		if _, err := h.ScheduleBuffer(seconds(0.5), func() { finished = append(finished, i) }); err != nil {
			t.Fatalf("ScheduleBuffer failed: %v", err)
		}
	}

	if out.PlayersCreated != 1 {
		t.Errorf("Expected 1 player started immediately, got %d", out.PlayersCreated)
	}

	fake.Advance(600 * time.Millisecond)
	if len(finished) != 1 || finished[0] != 0 {
		t.Fatalf("finished after 600ms = %v, want [0]", finished)
	}
	if out.PlayersCreated != 2 {
		t.Errorf("Expected 2 players after first boundary, got %d", out.PlayersCreated)
	}

	fake.Advance(time.Second)
	if len(finished) != 3 || finished[1] != 1 || finished[2] != 2 {
		t.Fatalf("finished = %v, want [0 1 2]", finished)
	}
	if h.Active() {
		t.Error("Handle should not be active after all sources finished")
	}
	if out.PlayingCount() != 0 {
		t.Errorf("Expected no playing voices, got %d", out.PlayingCount())
	}
}

func TestHandleStopAllSuppressesCallbacks(t *testing.T) {
	s, out, fake := newTestScheduler(t)
	h := s.Acquire("test")

	calls := 0
	for i := 0; i < 2; i++ {
		if _, err := h.ScheduleBuffer(seconds(1), func() { calls++ }); err != nil {
			t.Fatalf("ScheduleBuffer failed: %v", err)
		}
	}
	h.StopAll()
	fake.Advance(5 * time.Second)

	if calls != 0 {
		t.Errorf("Expected no onFinished calls after StopAll, got %d", calls)
	}
	if fake.Pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", fake.Pending())
	}
	for i, v := range out.Voices() {
		if !v.Closed() {
			t.Errorf("voice %d not closed", i)
		}
	}
	if got := s.NextStartTime(); !got.Equal(fake.Now()) {
		t.Errorf("NextStartTime = %v, want now", got)
	}
}

func TestSchedulerStopAllIdle(t *testing.T) {
	s, _, _ := newTestScheduler(t)

	// Nothing acquired, nothing opened.
	s.StopAll()
	s.StopAll()

	h := s.Acquire("test")
	h.StopAll()
	s.StopAll()

	if _, ok := s.Output(); ok {
		t.Error("StopAll should not open the output")
	}
}

func TestAcquirePreemptsPreviousHandle(t *testing.T) {
	s, out, fake := newTestScheduler(t)
	tour := s.Acquire("tour")

	finished := false
	if _, err := tour.ScheduleBuffer(seconds(2), func() { finished = true }); err != nil {
		t.Fatalf("ScheduleBuffer failed: %v", err)
	}

	podcast := s.Acquire("podcast")
	if !tour.Released() {
		t.Error("Previous handle should be released")
	}
	if s.Current() != podcast {
		t.Error("Current handle should be the new one")
	}
	if out.PlayingCount() != 0 {
		t.Errorf("Expected previous voices stopped, got %d playing", out.PlayingCount())
	}

	if _, err := tour.ScheduleBuffer(seconds(1), nil); !errors.Is(err, ErrHandleReleased) {
		t.Errorf("Expected ErrHandleReleased, got %v", err)
	}

	src, err := podcast.ScheduleBuffer(seconds(1), nil)
	if err != nil {
		t.Fatalf("ScheduleBuffer failed: %v", err)
	}
	if !src.Start.Equal(fake.Now()) {
		t.Errorf("new owner should start now, got %v", src.Start)
	}

	fake.Advance(3 * time.Second)
	if finished {
		t.Error("Preempted source should not report completion")
	}
}

func TestAcquireNotifiesPreemptedOwner(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	tour := s.Acquire("tour")

	preempted := make(chan struct{}, 2)

	// The callback may take locks the acquiring goroutine holds.
	var mu sync.Mutex
	mu.Lock()
	tour.OnPreempt(func() {
		mu.Lock()
		mu.Unlock()
		preempted <- struct{}{}
	})
	s.Acquire("podcast")
	mu.Unlock()

	select {
	case <-preempted:
	case <-time.After(time.Second):
		t.Fatal("preempted owner was not notified")
	}
	s.Acquire("live")
	select {
	case <-preempted:
		t.Error("callback should run once")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestOnPreemptAfterPreemptionRunsAtOnce(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	tour := s.Acquire("tour")
	s.Acquire("podcast")

	done := make(chan struct{})
	tour.OnPreempt(func() { close(done) })
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("late registration on a preempted handle should fire")
	}
}

func TestReleaseSilencesOnPreempt(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	h := s.Acquire("live")
	called := make(chan struct{}, 1)
	h.OnPreempt(func() { called <- struct{}{} })
	h.Release()
	s.Acquire("tour")

	select {
	case <-called:
		t.Error("released handle should not be notified")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestReleaseClearsCurrent(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	h := s.Acquire("live")
	h.Release()

	if s.Current() != nil {
		t.Error("Current should be nil after Release")
	}
	if !h.Released() {
		t.Error("Handle should report released")
	}
}

func TestPrime(t *testing.T) {
	s, _, fake := newTestScheduler(t)
	h := s.Acquire("live")
	h.Prime(100 * time.Millisecond)

	src, err := h.ScheduleBuffer(seconds(0.5), nil)
	if err != nil {
		t.Fatalf("ScheduleBuffer failed: %v", err)
	}
	if got := src.Start.Sub(fake.Now()); got != 100*time.Millisecond {
		t.Errorf("start offset = %v, want 100ms", got)
	}
}

func TestEnsureContextReady(t *testing.T) {
	opens := 0
	out := NewMockOutput(SampleRate)
	s := NewScheduler(func() (Output, error) {
		opens++
		return out, nil
	})

	for i := 0; i < 3; i++ {
		if _, err := s.EnsureContextReady(); err != nil {
			t.Fatalf("EnsureContextReady failed: %v", err)
		}
	}
	if opens != 1 {
		t.Errorf("Expected output opened once, got %d", opens)
	}

	out.Suspend()
	if _, err := s.EnsureContextReady(); err != nil {
		t.Fatalf("EnsureContextReady failed: %v", err)
	}
	if out.Suspended() {
		t.Error("Output should be resumed")
	}
}

func TestEnsureContextReadyResumeFailure(t *testing.T) {
	s, out, _ := newTestScheduler(t)
	out.Suspend()
	out.ResumeErr = errors.New("autoplay blocked")

	if _, err := s.EnsureContextReady(); !errors.Is(err, ErrResumeFailed) {
		t.Fatalf("Expected ErrResumeFailed, got %v", err)
	}

	h := s.Acquire("tour")
	if _, err := h.ScheduleBuffer(seconds(1), nil); !errors.Is(err, ErrResumeFailed) {
		t.Errorf("Expected ScheduleBuffer to fail with ErrResumeFailed, got %v", err)
	}
}

func TestEnsureContextReadyOpenFailure(t *testing.T) {
	s := NewScheduler(func() (Output, error) { return nil, errors.New("no device") })
	if _, err := s.EnsureContextReady(); err == nil {
		t.Fatal("Expected error when output cannot be opened")
	}
}

func TestSchedulerClose(t *testing.T) {
	s, out, _ := newTestScheduler(t)
	h := s.Acquire("tour")
	if _, err := h.ScheduleBuffer(seconds(1), nil); err != nil {
		t.Fatalf("ScheduleBuffer failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !h.Released() {
		t.Error("Close should release the active handle")
	}
	if _, err := out.NewPlayer(nil); !errors.Is(err, ErrOutputNotReady) {
		t.Errorf("Expected closed mock output, got %v", err)
	}
}
