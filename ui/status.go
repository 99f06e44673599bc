package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/padworld/padtour/live"
	"github.com/padworld/padtour/pkg/audio"
	"github.com/padworld/padtour/podcast"
	"github.com/padworld/padtour/tour"
)

// StatusDisplay collects the state of every activity for the status bar.
type StatusDisplay struct {
	tour tour.RunState

	podcast      podcast.State
	podcastError string
	briefing     time.Duration

	live     live.Status
	speaking bool
	level    float64

	muted bool
}

// NewStatusDisplay creates an idle status display.
func NewStatusDisplay() *StatusDisplay {
	return &StatusDisplay{}
}

// UpdateTour records a tour snapshot.
func (s *StatusDisplay) UpdateTour(st tour.RunState) {
	s.tour = st
}

// UpdatePodcast records the podcast state. artifact is the generated WAV,
// if any.
func (s *StatusDisplay) UpdatePodcast(st podcast.State, err error, artifact []byte) {
	s.podcast = st
	s.podcastError = ""
	if err != nil && st == podcast.StateIdle {
		s.podcastError = err.Error()
	}
	s.briefing = 0
	if len(artifact) > 0 {
		if f, pcm, perr := audio.ParseWAV(artifact); perr == nil && f.BlockAlign() > 0 {
			s.briefing = audio.Duration(len(pcm)/f.BlockAlign(), f.SampleRate)
		}
	}
}

// UpdateLive records the live session status.
func (s *StatusDisplay) UpdateLive(st live.Status, speaking bool, level float64) {
	s.live = st
	s.speaking = speaking
	s.level = level
}

// SetMuted records the ambience mute state.
func (s *StatusDisplay) SetMuted(muted bool) {
	s.muted = muted
}

// Busy reports whether something is loading and the spinner should run.
func (s *StatusDisplay) Busy() bool {
	return s.tour.GeneratingAudio || s.podcast.Busy() || s.live.State == live.StateConnecting
}

// CompactStatus returns a compact status string for the status bar.
func (s *StatusDisplay) CompactStatus() string {
	var parts []string

	if s.tour.Active {
		icon, color := s.tourIcon()
		status := lipgloss.NewStyle().Foreground(color).Render(icon + " TOUR")
		if s.tour.StepCount > 0 {
			counterStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
			status += counterStyle.Render(fmt.Sprintf(" %d/%d", s.tour.StepIndex+1, s.tour.StepCount))
		}
		parts = append(parts, status)
	}

	if s.podcast != podcast.StateIdle {
		icon, color := podcastIcon(s.podcast)
		parts = append(parts, lipgloss.NewStyle().Foreground(color).Render(icon+" PODCAST"))
	} else if s.podcastError != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Render("✗ PODCAST"))
	}

	if s.live.State != live.StateDisconnected {
		icon, color := liveIcon(s.live.State)
		text := icon + " LIVE"
		if s.live.State == live.StateError && s.live.Reason != "" {
			text += ": " + s.live.Reason
		}
		if s.live.State == live.StateConnected && s.speaking {
			text += " ♪"
		}
		parts = append(parts, lipgloss.NewStyle().Foreground(color).Render(text))
	}

	if s.muted {
		parts = append(parts, lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("♫ muted"))
	}

	return strings.Join(parts, "  ")
}

// DetailedStatus returns a multi-line status for the help panel.
func (s *StatusDisplay) DetailedStatus(width int) string {
	var lines []string
	headerStyle := lipgloss.NewStyle().Bold(true)
	lines = append(lines, headerStyle.Render("Status"))

	if s.tour.Active {
		lines = append(lines, fmt.Sprintf("Tour: %s, step %d of %d", s.tour.Phase, s.tour.StepIndex+1, s.tour.StepCount))
		if s.tour.Label != "" {
			lines = append(lines, "  "+s.tour.Label)
		}
		if width > 20 {
			lines = append(lines, s.renderProgressBar(width-4))
		}
	} else {
		lines = append(lines, "Tour: idle")
	}

	podcastLine := "Podcast: " + s.podcast.String()
	if s.briefing > 0 {
		podcastLine += fmt.Sprintf(" (briefing %s)", formatDuration(s.briefing))
	}
	lines = append(lines, podcastLine)
	if s.podcastError != "" {
		errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
		errorLine := truncate.StringWithTail(s.podcastError, uint(max(0, width-9)), "...") //nolint:gosec
		lines = append(lines, errorStyle.Render("  Error: "+errorLine))
	}

	liveLine := "Live: " + s.live.State.String()
	if s.live.Reason != "" && s.live.State == live.StateError {
		liveLine += " (" + s.live.Reason + ")"
	}
	if s.live.State == live.StateConnected {
		liveLine += fmt.Sprintf(" mic %3.0f%%", min(s.level, 1)*100)
	}
	lines = append(lines, liveLine)

	if s.muted {
		lines = append(lines, "Ambience: muted")
	} else {
		lines = append(lines, "Ambience: on")
	}

	return strings.Join(lines, "\n")
}

// ProgressBar returns the tour progress bar, or an empty string when the
// tour is not running.
func (s *StatusDisplay) ProgressBar(width int) string {
	if !s.tour.Active || width < 10 {
		return ""
	}
	return s.renderProgressBar(width)
}

func (s *StatusDisplay) renderProgressBar(width int) string {
	if width < 10 {
		return ""
	}
	filledWidth := int(s.tour.Progress() * float64(width))
	if filledWidth > width {
		filledWidth = width
	}

	filled := strings.Repeat("█", filledWidth)
	empty := strings.Repeat("░", width-filledWidth)

	_, color := s.tourIcon()
	filledStyle := lipgloss.NewStyle().Foreground(color)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#333333"))
	return filledStyle.Render(filled) + emptyStyle.Render(empty)
}

func (s *StatusDisplay) tourIcon() (string, lipgloss.Color) {
	switch {
	case s.tour.PlayingAudio:
		return "▶", lipgloss.Color("#00FF00")
	case s.tour.GeneratingAudio:
		return "⟳", lipgloss.Color("#00AAFF")
	case s.tour.LastError != nil:
		return "✗", lipgloss.Color("#FF8800")
	case s.tour.Active:
		return "■", lipgloss.Color("#888888")
	default:
		return "○", lipgloss.Color("#666666")
	}
}

func podcastIcon(st podcast.State) (string, lipgloss.Color) {
	switch {
	case st.Playing():
		return "▶", lipgloss.Color("#00FF00")
	case st.Busy():
		return "⟳", lipgloss.Color("#00AAFF")
	default:
		return "○", lipgloss.Color("#666666")
	}
}

func liveIcon(st live.State) (string, lipgloss.Color) {
	switch st {
	case live.StateConnected:
		return "●", lipgloss.Color("#00FF00")
	case live.StateConnecting:
		return "⟳", lipgloss.Color("#00AAFF")
	case live.StateError:
		return "✗", lipgloss.Color("#FF0000")
	default:
		return "○", lipgloss.Color("#666666")
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
