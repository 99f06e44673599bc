package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	reflowindent "github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/termenv"
	"golang.org/x/term"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const defaultLineWidth = 80

// LinePresenter prints the tour as plain lines, for terminals without a
// TUI and for piping into other tools.
type LinePresenter struct {
	mu      sync.Mutex
	out     *termenv.Output
	width   int
	title   cases.Caser
	section string
}

// NewLinePresenter creates a presenter writing to w. The wrap width follows
// the terminal when w is one.
func NewLinePresenter(w io.Writer) *LinePresenter {
	width := defaultLineWidth
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 { //nolint:gosec
			width = tw
		}
	}
	return &LinePresenter{
		out:   termenv.NewOutput(w),
		width: width,
		title: cases.Title(language.English),
	}
}

// SetWidth overrides the wrap width.
func (p *LinePresenter) SetWidth(width int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if width > 0 {
		p.width = width
	}
}

// ScrollToSection prints a heading for a new section.
func (p *LinePresenter) ScrollToSection(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if id == p.section {
		return
	}
	p.section = id
	heading := p.title.String(strings.NewReplacer("-", " ", "_", " ").Replace(id))
	s := p.out.String("▸ " + heading).Foreground(p.out.Color("#04B575")).Bold()
	fmt.Fprintf(p.out, "\n%s\n", s)
}

// DisplaySubtitle prints the narration wrapped and indented. A cleared
// subtitle ends the current section.
func (p *LinePresenter) DisplaySubtitle(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	text = strings.TrimSpace(text)
	if text == "" {
		p.section = ""
		return
	}
	wrapped := wordwrap.String(text, max(p.width-2, 20))
	fmt.Fprintln(p.out, strings.TrimRight(reflowindent.String(wrapped, 2), "\n"))
}
