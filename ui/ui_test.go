package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/padworld/padtour/live"
	"github.com/padworld/padtour/podcast"
	"github.com/padworld/padtour/tour"
)

type mockTour struct {
	mu    sync.Mutex
	steps []tour.Step
	state tour.RunState
	calls []string
}

func (m *mockTour) Steps() []tour.Step { return m.steps }

func (m *mockTour) State() tour.RunState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockTour) StartAt(i int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, fmt.Sprintf("start %d", i))
	m.state = tour.RunState{Active: true, StepIndex: i, StepCount: len(m.steps)}
}

func (m *mockTour) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "stop")
	m.state = tour.RunState{StepCount: len(m.steps)}
}

func (m *mockTour) Next() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "next")
}

func (m *mockTour) Previous() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, "previous")
}

func (m *mockTour) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

type mockPodcast struct {
	mu     sync.Mutex
	state  podcast.State
	err    error
	starts int
}

func (m *mockPodcast) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.starts++
}

func (m *mockPodcast) State() podcast.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *mockPodcast) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *mockPodcast) Artifact() []byte { return nil }

type mockLive struct {
	mu          sync.Mutex
	status      live.Status
	connectErr  error
	connects    int
	disconnects int
}

func (m *mockLive) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connects++
	if m.connectErr != nil {
		m.status = live.Status{State: live.StateError, Reason: live.ReasonInitFailed}
		return m.connectErr
	}
	m.status = live.Status{State: live.StateConnected}
	return nil
}

func (m *mockLive) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnects++
	m.status = live.Status{}
}

func (m *mockLive) Status() live.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *mockLive) Speaking() bool      { return false }
func (m *mockLive) InputLevel() float64 { return 0 }

type mockAmbience struct {
	mu      sync.Mutex
	muted   bool
	started int
}

func (m *mockAmbience) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started++
	return nil
}

func (m *mockAmbience) ToggleMute() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.muted = !m.muted
	return m.muted
}

func (m *mockAmbience) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

type testApp struct {
	tour     *mockTour
	podcast  *mockPodcast
	live     *mockLive
	ambience *mockAmbience
}

func newTestModel(t *testing.T) (model, *testApp) {
	t.Helper()
	ta := &testApp{
		tour:     &mockTour{steps: tour.DefaultSteps()},
		podcast:  &mockPodcast{},
		live:     &mockLive{},
		ambience: &mockAmbience{},
	}
	cfg := Config{GlamourStyle: "dark"}
	m := newModel(cfg, App{
		Ctx:      context.Background(),
		Tour:     ta.tour,
		Podcast:  ta.podcast,
		Live:     ta.live,
		Ambience: ta.ambience,
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(model), ta
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends a key and runs the resulting command, feeding its message
// back into the model.
func press(t *testing.T, m model, s string) (model, tea.Msg) {
	t.Helper()
	next, cmd := m.Update(keyPress(s))
	m = next.(model)
	if cmd == nil {
		return m, nil
	}
	msg := cmd()
	if msg != nil {
		if _, quit := msg.(tea.QuitMsg); !quit {
			next, _ = m.Update(msg)
			m = next.(model)
		}
	}
	return m, msg
}

func TestTourKeys(t *testing.T) {
	m, app := newTestModel(t)

	m, _ = press(t, m, "n")
	if calls := app.tour.Calls(); len(calls) != 0 {
		t.Fatalf("Expected next to be ignored while idle, got %v", calls)
	}

	m, _ = press(t, m, "down")
	m, _ = press(t, m, "down")
	m, _ = press(t, m, " ")
	m, _ = press(t, m, "right")
	m, _ = press(t, m, "left")
	m, _ = press(t, m, "down")
	_, _ = press(t, m, " ")

	want := []string{"start 2", "next", "previous", "stop"}
	got := app.tour.Calls()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestActivityKeys(t *testing.T) {
	m, app := newTestModel(t)

	m, _ = press(t, m, "b")
	if app.podcast.starts != 1 {
		t.Errorf("Expected one podcast start, got %d", app.podcast.starts)
	}
	if !strings.Contains(m.View(), "Preparing briefing") {
		t.Error("Expected a status message for the briefing")
	}

	m, _ = press(t, m, "v")
	m, _ = press(t, m, "v")
	if app.live.connects != 1 || app.live.disconnects != 1 {
		t.Errorf("Expected connect then disconnect, got %d and %d", app.live.connects, app.live.disconnects)
	}

	m, _ = press(t, m, "m")
	if !app.ambience.Muted() {
		t.Error("Expected the ambience to be muted")
	}
	if !strings.Contains(m.View(), "muted") {
		t.Error("Expected the mute state in the status bar")
	}
}

func TestLiveConnectError(t *testing.T) {
	m, app := newTestModel(t)
	app.live.connectErr = errors.New("dial failed")

	m, _ = press(t, m, "v")
	view := m.View()
	if !strings.Contains(view, "Error: dial failed") {
		t.Errorf("Expected the error in the status bar, got %q", view)
	}

	next, _ := m.Update(statusMessageTimeoutMsg{id: m.statusMessageID})
	m = next.(model)
	if !strings.Contains(m.View(), live.ReasonInitFailed) {
		t.Error("Expected the live failure reason after the message timed out")
	}
}

func TestQuit(t *testing.T) {
	for _, k := range []string{"q", "ctrl+c"} {
		m, _ := newTestModel(t)
		_, msg := press(t, m, k)
		if _, ok := msg.(tea.QuitMsg); !ok {
			t.Errorf("Expected %q to quit, got %T", k, msg)
		}
	}
}

func TestPresenterMessages(t *testing.T) {
	m, _ := newTestModel(t)

	next, _ := m.Update(scrollMsg{id: "chat"})
	m = next.(model)
	if m.selected != tour.FeatureFirstStep {
		t.Errorf("got selected %d, want %d", m.selected, tour.FeatureFirstStep)
	}

	next, cmd := m.Update(subtitleMsg{text: "Welcome to PadWorld."})
	m = next.(model)
	if cmd == nil {
		t.Fatal("Expected a render command")
	}
	next, _ = m.Update(cmd())
	m = next.(model)
	if !strings.Contains(m.View(), "Welcome to PadWorld.") {
		t.Error("Expected the subtitle in the view")
	}

	next, _ = m.Update(subtitleMsg{text: ""})
	m = next.(model)
	if strings.Contains(m.View(), "Welcome to PadWorld.") {
		t.Error("Expected the subtitle to be cleared")
	}
}

func TestStaleRenderDropped(t *testing.T) {
	m, _ := newTestModel(t)
	next, _ := m.Update(subtitleMsg{text: "second"})
	m = next.(model)
	next, _ = m.Update(subtitleRenderedMsg{source: "first", rendered: "first"})
	m = next.(model)
	if m.rendered != "" {
		t.Errorf("Expected a stale render to be dropped, got %q", m.rendered)
	}
}

func TestPollFollowsTour(t *testing.T) {
	m, app := newTestModel(t)
	app.tour.StartAt(6)

	next, cmd := m.Update(pollMsg{})
	m = next.(model)
	if cmd == nil {
		t.Error("Expected polling to continue")
	}
	if m.selected != 6 || !m.active {
		t.Errorf("got selected %d active %v, want 6 true", m.selected, m.active)
	}
	if !strings.Contains(m.View(), "TOUR 7/16") {
		t.Error("Expected the step counter in the status bar")
	}

	m, _ = press(t, m, "up")
	if m.selected != 6 {
		t.Error("Expected selection to be locked while the tour runs")
	}
}

func TestNoStepsIsFatal(t *testing.T) {
	m := newModel(Config{GlamourStyle: "dark"}, App{Tour: &mockTour{}})
	if !strings.Contains(m.View(), "ERROR") {
		t.Error("Expected an error view")
	}
	_, cmd := m.Update(keyPress("x"))
	if cmd == nil {
		t.Fatal("Expected any key to quit")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected a quit message")
	}
}

func TestHelpToggle(t *testing.T) {
	m, _ := newTestModel(t)
	m, _ = press(t, m, "?")
	view := m.View()
	if !strings.Contains(view, "podcast briefing") || !strings.Contains(view, "Podcast: IDLE") {
		t.Error("Expected the full help and detailed status")
	}
	m, _ = press(t, m, "?")
	if strings.Contains(m.View(), "Podcast: IDLE") {
		t.Error("Expected the help to close")
	}
}
