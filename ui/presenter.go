package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// Sender receives messages; *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Presenter forwards tour presentation calls into a running program.
// Calls made before Attach are dropped.
type Presenter struct {
	mu     sync.Mutex
	sender Sender
}

// NewPresenter creates a detached presenter.
func NewPresenter() *Presenter {
	return &Presenter{}
}

// Attach connects the presenter to a program.
func (p *Presenter) Attach(s Sender) {
	p.mu.Lock()
	p.sender = s
	p.mu.Unlock()
}

// ScrollToSection implements tour.Presenter.
func (p *Presenter) ScrollToSection(id string) {
	p.send(scrollMsg{id: id})
}

// DisplaySubtitle implements tour.Presenter.
func (p *Presenter) DisplaySubtitle(text string) {
	p.send(subtitleMsg{text: text})
}

func (p *Presenter) send(msg tea.Msg) {
	p.mu.Lock()
	s := p.sender
	p.mu.Unlock()
	if s != nil {
		s.Send(msg)
	}
}
