package ui

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestLinePresenterHeadings(t *testing.T) {
	var buf bytes.Buffer
	p := NewLinePresenter(&buf)

	p.ScrollToSection("hero")
	p.ScrollToSection("hero")
	p.ScrollToSection("app_features")

	out := buf.String()
	if strings.Count(out, "▸ Hero") != 1 {
		t.Errorf("Expected one hero heading, got %q", out)
	}
	if !strings.Contains(out, "▸ App Features") {
		t.Errorf("Expected a title-cased heading, got %q", out)
	}
}

func TestLinePresenterWrapsSubtitles(t *testing.T) {
	var buf bytes.Buffer
	p := NewLinePresenter(&buf)
	p.SetWidth(30)

	p.DisplaySubtitle("The court is the sensor. Every match becomes data that players can use to improve their game.")
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) < 3 {
		t.Fatalf("Expected the subtitle to wrap, got %q", buf.String())
	}
	for _, l := range lines {
		if !strings.HasPrefix(l, "  ") {
			t.Errorf("Expected an indented line, got %q", l)
		}
		if len(l) > 30 {
			t.Errorf("Line exceeds width: %q", l)
		}
	}
}

func TestLinePresenterClearEndsSection(t *testing.T) {
	var buf bytes.Buffer
	p := NewLinePresenter(&buf)

	p.ScrollToSection("outro")
	p.DisplaySubtitle("")
	if strings.Count(buf.String(), "\n") != 2 {
		t.Errorf("Expected a cleared subtitle to print nothing, got %q", buf.String())
	}
	p.ScrollToSection("outro")
	if strings.Count(buf.String(), "▸ Outro") != 2 {
		t.Error("Expected the heading again after the subtitle was cleared")
	}
}

type mockSender struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (m *mockSender) Send(msg tea.Msg) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
}

func TestPresenter(t *testing.T) {
	p := NewPresenter()
	p.ScrollToSection("dropped")

	s := &mockSender{}
	p.Attach(s)
	p.ScrollToSection("hero")
	p.DisplaySubtitle("Welcome.")

	if len(s.msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(s.msgs))
	}
	if got, ok := s.msgs[0].(scrollMsg); !ok || got.id != "hero" {
		t.Errorf("got %#v, want scroll to hero", s.msgs[0])
	}
	if got, ok := s.msgs[1].(subtitleMsg); !ok || got.text != "Welcome." {
		t.Errorf("got %#v, want subtitle", s.msgs[1])
	}
}
