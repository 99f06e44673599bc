package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/padworld/padtour/live"
	"github.com/padworld/padtour/podcast"
	"github.com/padworld/padtour/tour"
)

// Tour is the part of tour.Orchestrator the UI drives.
type Tour interface {
	Steps() []tour.Step
	State() tour.RunState
	StartAt(i int)
	Stop()
	Next()
	Previous()
}

// Podcast is the part of podcast.Controller the UI drives.
type Podcast interface {
	Start(ctx context.Context)
	State() podcast.State
	LastError() error
	Artifact() []byte
}

// Live is the part of live.Controller the UI drives.
type Live interface {
	Connect(ctx context.Context) error
	Disconnect()
	Status() live.Status
	Speaking() bool
	InputLevel() float64
}

// Ambience is the part of ambience.Player the UI drives.
type Ambience interface {
	Start(ctx context.Context) error
	ToggleMute() bool
	Muted() bool
}

// App bundles the controllers shown by the program. Any of them may be nil.
type App struct {
	Ctx      context.Context
	Tour     Tour
	Podcast  Podcast
	Live     Live
	Ambience Ambience
}

// scrollMsg is sent by the presenter when the tour moves to a section.
type scrollMsg struct{ id string }

// subtitleMsg is sent by the presenter when the subtitle changes.
type subtitleMsg struct{ text string }

// pollMsg drives the periodic controller refresh.
type pollMsg time.Time

// actionDoneMsg is sent when a controller command returns.
type actionDoneMsg struct {
	status string
	err    error
}

type statusMessageTimeoutMsg struct{ id int }

const (
	pollInterval         = 200 * time.Millisecond
	statusMessageTimeout = 3 * time.Second
)

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

func waitForStatusMessageTimeout(id int) tea.Cmd {
	return tea.Tick(statusMessageTimeout, func(time.Time) tea.Msg {
		return statusMessageTimeoutMsg{id: id}
	})
}

// Controller calls must run inside commands. The tour calls its presenter
// synchronously and the presenter sends into the program, which blocks
// while Update is running.

func toggleTourCmd(t Tour, from int) tea.Cmd {
	return func() tea.Msg {
		if t.State().Active {
			t.Stop()
			return actionDoneMsg{status: "Tour stopped"}
		}
		t.StartAt(from)
		return actionDoneMsg{status: "Tour started"}
	}
}

func nextStepCmd(t Tour) tea.Cmd {
	return func() tea.Msg {
		t.Next()
		return actionDoneMsg{}
	}
}

func previousStepCmd(t Tour) tea.Cmd {
	return func() tea.Msg {
		t.Previous()
		return actionDoneMsg{}
	}
}

func togglePodcastCmd(ctx context.Context, p Podcast) tea.Cmd {
	return func() tea.Msg {
		before := p.State()
		p.Start(ctx)
		switch {
		case before.Playing():
			return actionDoneMsg{status: "Briefing stopped"}
		case before.Busy():
			return actionDoneMsg{status: "Briefing is being prepared"}
		default:
			return actionDoneMsg{status: "Preparing briefing"}
		}
	}
}

func toggleLiveCmd(ctx context.Context, l Live) tea.Cmd {
	return func() tea.Msg {
		switch l.Status().State {
		case live.StateConnected, live.StateConnecting:
			l.Disconnect()
			return actionDoneMsg{status: "Paddy disconnected"}
		}
		if err := l.Connect(ctx); err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "Paddy is listening"}
	}
}

func toggleMuteCmd(a Ambience) tea.Cmd {
	return func() tea.Msg {
		if a.ToggleMute() {
			return actionDoneMsg{status: "Ambience muted"}
		}
		return actionDoneMsg{status: "Ambience on"}
	}
}

func startAmbienceCmd(ctx context.Context, a Ambience) tea.Cmd {
	return func() tea.Msg {
		if err := a.Start(ctx); err != nil {
			return actionDoneMsg{err: err}
		}
		return nil
	}
}
