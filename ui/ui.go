// Package ui provides the terminal UI for the PadWorld tour.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/muesli/reflow/ansi"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"
	te "github.com/muesli/termenv"
	"github.com/padworld/padtour/tour"
)

const (
	sectionsWidth   = 30
	statusBarHeight = 1
)

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, app App) *tea.Program {
	log.Debug(
		"Starting padtour UI",
		"glamour",
		cfg.GlamourEnabled,
		"compact",
		cfg.Compact,
	)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	if app.Ctx != nil {
		opts = append(opts, tea.WithContext(app.Ctx))
	}
	return tea.NewProgram(newModel(cfg, app), opts...)
}

type model struct {
	cfg  Config
	app  App
	keys keyMap

	help     help.Model
	spinner  spinner.Model
	progress progress.Model
	status   *StatusDisplay

	steps    []tour.Step
	selected int
	active   bool
	section  string

	subtitle string
	rendered string

	width    int
	height   int
	showHelp bool
	fatalErr error

	statusMessage   string
	statusMessageID int
}

func newModel(cfg Config, app App) model {
	if cfg.GlamourStyle == "" || cfg.GlamourStyle == styles.AutoStyle {
		if te.HasDarkBackground() {
			cfg.GlamourStyle = styles.DarkStyle
		} else {
			cfg.GlamourStyle = styles.LightStyle
		}
	}
	if app.Ctx == nil {
		app.Ctx = context.Background()
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(fuchsia)

	m := model{
		cfg:      cfg,
		app:      app,
		keys:     newKeyMap(),
		help:     help.New(),
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		status:   NewStatusDisplay(),
	}
	if app.Tour != nil {
		m.steps = app.Tour.Steps()
		if len(m.steps) == 0 {
			m.fatalErr = tour.ErrNoSteps
		}
	}
	if cfg.StartStep > 0 && cfg.StartStep < len(m.steps) {
		m.selected = cfg.StartStep
	}
	m.refresh()
	return m
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{poll(), m.spinner.Tick}
	if m.app.Ambience != nil {
		cmds = append(cmds, startAmbienceCmd(m.app.Ctx, m.app.Ambience))
	}
	if m.cfg.AutoStart && m.app.Tour != nil {
		cmds = append(cmds, toggleTourCmd(m.app.Tour, m.selected))
	}
	return tea.Batch(cmds...)
}

// refresh copies the controller states into the status display.
func (m *model) refresh() {
	if m.app.Tour != nil {
		st := m.app.Tour.State()
		m.status.UpdateTour(st)
		m.active = st.Active
		if st.Active {
			m.selected = st.StepIndex
		}
	}
	if m.app.Podcast != nil {
		m.status.UpdatePodcast(m.app.Podcast.State(), m.app.Podcast.LastError(), m.app.Podcast.Artifact())
	}
	if m.app.Live != nil {
		m.status.UpdateLive(m.app.Live.Status(), m.app.Live.Speaking(), m.app.Live.InputLevel())
	}
	if m.app.Ambience != nil {
		m.status.SetMuted(m.app.Ambience.Muted())
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// If there's been an error, any key exits
	if m.fatalErr != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			return m, tea.Quit
		}
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	// Window size is received when starting up and on every resize
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.progress.Width = max(10, msg.Width-4)
		if m.subtitle != "" {
			return m, renderSubtitle(m.cfg, m.subtitleWidth(), m.subtitle)
		}

	case scrollMsg:
		m.section = msg.id
		if m.app.Tour == nil {
			break
		}
		if st := m.app.Tour.State(); st.Active {
			m.selected = st.StepIndex
		} else if i := sectionIndex(m.steps, msg.id); i >= 0 {
			m.selected = i
		}

	case subtitleMsg:
		m.subtitle = msg.text
		if msg.text == "" {
			m.rendered = ""
			return m, nil
		}
		return m, renderSubtitle(m.cfg, m.subtitleWidth(), msg.text)

	case subtitleRenderedMsg:
		// Drop renders of a subtitle that has since changed
		if msg.source == m.subtitle {
			m.rendered = msg.rendered
		}

	case pollMsg:
		m.refresh()
		return m, poll()

	case actionDoneMsg:
		m.refresh()
		switch {
		case msg.err != nil:
			log.Error("Action failed", "error", msg.err)
			return m, m.showStatusMessage("Error: " + msg.err.Error())
		case msg.status != "":
			return m, m.showStatusMessage(msg.status)
		}

	case statusMessageTimeoutMsg:
		if msg.id == m.statusMessageID {
			m.statusMessage = ""
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp

	case key.Matches(msg, m.keys.Up):
		if !m.active && m.selected > 0 {
			m.selected--
		}

	case key.Matches(msg, m.keys.Down):
		if !m.active && m.selected < len(m.steps)-1 {
			m.selected++
		}

	case key.Matches(msg, m.keys.Tour):
		if m.app.Tour != nil {
			return m, toggleTourCmd(m.app.Tour, m.selected)
		}

	case key.Matches(msg, m.keys.Next):
		if m.app.Tour != nil && m.active {
			return m, nextStepCmd(m.app.Tour)
		}

	case key.Matches(msg, m.keys.Previous):
		if m.app.Tour != nil && m.active {
			return m, previousStepCmd(m.app.Tour)
		}

	case key.Matches(msg, m.keys.Podcast):
		if m.app.Podcast != nil {
			return m, togglePodcastCmd(m.app.Ctx, m.app.Podcast)
		}

	case key.Matches(msg, m.keys.Live):
		if m.app.Live != nil {
			return m, toggleLiveCmd(m.app.Ctx, m.app.Live)
		}

	case key.Matches(msg, m.keys.Mute):
		if m.app.Ambience != nil {
			return m, toggleMuteCmd(m.app.Ambience)
		}
	}
	return m, nil
}

func (m *model) showStatusMessage(s string) tea.Cmd {
	m.statusMessage = s
	m.statusMessageID++
	return waitForStatusMessageTimeout(m.statusMessageID)
}

func (m model) subtitleWidth() int {
	w := m.width
	if !m.cfg.Compact {
		w -= sectionsWidth + 2
	}
	if m.cfg.GlamourMaxWidth > 0 {
		w = min(w, int(m.cfg.GlamourMaxWidth)) //nolint:gosec
	}
	return max(w, 20)
}

func (m model) View() string {
	if m.fatalErr != nil {
		return errorView(m.fatalErr, true)
	}

	var b strings.Builder
	body := m.subtitleView()
	if !m.cfg.Compact && len(m.steps) > 0 {
		list := lipgloss.NewStyle().Width(sectionsWidth).Render(sectionsView(m.steps, m.selected, m.active, sectionsWidth))
		body = lipgloss.JoinHorizontal(lipgloss.Top, list, "  ", body)
	}

	footer := 0
	if m.active {
		footer++
	}
	if m.showHelp {
		footer += lipgloss.Height(m.helpView())
	}
	if m.height > 0 {
		body = lipgloss.NewStyle().
			Height(max(0, m.height-statusBarHeight-footer-1)).
			MaxHeight(max(0, m.height-statusBarHeight-footer-1)).
			Render(body)
	}
	fmt.Fprint(&b, body+"\n")

	if m.active {
		fmt.Fprint(&b, "  "+m.progress.ViewAs(m.status.tour.Progress())+"\n")
	}
	m.statusBarView(&b)
	if m.showHelp {
		fmt.Fprint(&b, "\n"+m.helpView())
	}
	return b.String()
}

func (m model) subtitleView() string {
	switch {
	case m.rendered != "":
		return m.rendered
	case m.subtitle != "":
		return wordwrap.String(m.subtitle, m.subtitleWidth())
	case m.active:
		return subtleStyle.Render("…")
	default:
		return subtleStyle.Render("Press space to start the tour, b for the podcast briefing or v to talk to Paddy.")
	}
}

func (m model) statusBarView(b *strings.Builder) {
	showStatusMessage := m.statusMessage != ""

	logo := logoView()

	var spin string
	if m.status.Busy() {
		spin = statusBarNoteStyle(" " + m.spinner.View())
	}

	helpNote := statusBarHelpStyle(" ? Help ")

	note := m.status.CompactStatus()
	if showStatusMessage {
		note = m.statusMessage
	} else if note == "" && m.section != "" {
		note = m.section
	}
	note = truncate.StringWithTail(" "+note+" ", uint(max(0, //nolint:gosec
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(spin)-
			ansi.PrintableRuneWidth(helpNote),
	)), ellipsis)
	if showStatusMessage {
		note = statusBarMessageStyle(note)
	} else {
		note = statusBarNoteStyle(note)
	}

	// Empty space
	padding := max(0,
		m.width-
			ansi.PrintableRuneWidth(logo)-
			ansi.PrintableRuneWidth(spin)-
			ansi.PrintableRuneWidth(note)-
			ansi.PrintableRuneWidth(helpNote),
	)
	emptySpace := strings.Repeat(" ", padding)
	if showStatusMessage {
		emptySpace = statusBarMessageStyle(emptySpace)
	} else {
		emptySpace = statusBarNoteStyle(emptySpace)
	}

	fmt.Fprintf(b, "%s%s%s%s%s",
		logo,
		spin,
		note,
		emptySpace,
		helpNote,
	)
}

func (m model) helpView() string {
	s := "\n" + m.help.View(m.keys) + "\n\n" + m.status.DetailedStatus(max(20, m.width-4))
	s = indent(s, 2)
	return helpViewStyle(fillWidth(strings.TrimRight(s, "\n"), m.width))
}

// COMMANDS

type subtitleRenderedMsg struct {
	source   string
	rendered string
}

func renderSubtitle(cfg Config, width int, text string) tea.Cmd {
	return func() tea.Msg {
		s, err := glamourRender(cfg, width, text)
		if err != nil {
			log.Error("error rendering with Glamour", "error", err)
			return subtitleRenderedMsg{source: text, rendered: wordwrap.String(text, width)}
		}
		return subtitleRenderedMsg{source: text, rendered: s}
	}
}

func glamourRender(cfg Config, width int, markdown string) (string, error) {
	if !cfg.GlamourEnabled {
		return wordwrap.String(markdown, width), nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath(cfg.GlamourStyle),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("error creating glamour renderer: %w", err)
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("error rendering markdown: %w", err)
	}
	return strings.TrimRight(out, "\n"), nil
}
