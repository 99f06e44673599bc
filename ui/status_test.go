package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/padworld/padtour/live"
	"github.com/padworld/padtour/pkg/audio"
	"github.com/padworld/padtour/podcast"
	"github.com/padworld/padtour/tour"
)

func TestStatusDisplayIdle(t *testing.T) {
	s := NewStatusDisplay()
	if got := s.CompactStatus(); got != "" {
		t.Errorf("Expected empty status when idle, got %q", got)
	}
	if s.Busy() {
		t.Error("Expected an idle display not to be busy")
	}
	if s.ProgressBar(40) != "" {
		t.Error("Expected no progress bar while the tour is idle")
	}
}

func TestCompactStatus(t *testing.T) {
	s := NewStatusDisplay()
	s.UpdateTour(tour.RunState{Active: true, StepIndex: 2, StepCount: 16, PlayingAudio: true})
	s.UpdatePodcast(podcast.StateGeneratingScript, nil, nil)
	s.UpdateLive(live.Status{State: live.StateError, Reason: live.ReasonMicDenied}, false, 0)
	s.SetMuted(true)

	got := s.CompactStatus()
	for _, want := range []string{"TOUR", "3/16", "PODCAST", "LIVE: Mic Access Denied", "muted"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in %q", want, got)
		}
	}
	if !s.Busy() {
		t.Error("Expected script generation to count as busy")
	}
}

func TestStatusBusy(t *testing.T) {
	tests := []struct {
		name string
		set  func(s *StatusDisplay)
		want bool
	}{
		{"tour synthesizing", func(s *StatusDisplay) {
			s.UpdateTour(tour.RunState{Active: true, GeneratingAudio: true})
		}, true},
		{"tour playing", func(s *StatusDisplay) {
			s.UpdateTour(tour.RunState{Active: true, PlayingAudio: true})
		}, false},
		{"podcast playing", func(s *StatusDisplay) {
			s.UpdatePodcast(podcast.StatePlayingStatic, nil, nil)
		}, false},
		{"live connecting", func(s *StatusDisplay) {
			s.UpdateLive(live.Status{State: live.StateConnecting}, false, 0)
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStatusDisplay()
			tt.set(s)
			if got := s.Busy(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetailedStatus(t *testing.T) {
	s := NewStatusDisplay()
	wav := audio.WrapPCMAsWAV(make([]byte, 2*audio.SpeechSampleRate*audio.BytesPerSample), audio.SpeechSampleRate, 1, 16)
	s.UpdatePodcast(podcast.StateIdle, errors.New("quota exceeded"), wav)
	s.UpdateLive(live.Status{State: live.StateConnected}, true, 0.5)

	got := s.DetailedStatus(60)
	for _, want := range []string{"Tour: idle", "Podcast: IDLE (briefing 0:02)", "Error: quota exceeded", "Live: CONNECTED mic  50%", "Ambience: on"} {
		if !strings.Contains(got, want) {
			t.Errorf("Expected %q in %q", want, got)
		}
	}
}

func TestPodcastErrorOnlyWhenIdle(t *testing.T) {
	s := NewStatusDisplay()
	s.UpdatePodcast(podcast.StateGeneratingAudio, errors.New("old"), nil)
	if strings.Contains(s.DetailedStatus(60), "old") {
		t.Error("Expected no error while a new briefing is running")
	}
}

func TestProgressBar(t *testing.T) {
	s := NewStatusDisplay()
	s.UpdateTour(tour.RunState{Active: true, StepIndex: 7, StepCount: 16})

	bar := s.ProgressBar(20)
	if n := strings.Count(bar, "█"); n != 10 {
		t.Errorf("Expected 10 filled cells, got %d", n)
	}
	if n := strings.Count(bar, "░"); n != 10 {
		t.Errorf("Expected 10 empty cells, got %d", n)
	}
	if s.ProgressBar(5) != "" {
		t.Error("Expected no bar below the minimum width")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{-time.Second, "0:00"},
		{0, "0:00"},
		{59 * time.Second, "0:59"},
		{61 * time.Second, "1:01"},
		{10*time.Minute + 5*time.Second, "10:05"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
