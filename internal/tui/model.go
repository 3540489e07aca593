package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	apperrors "github.com/Iron-Ham/gladoid/internal/errors"
	"github.com/Iron-Ham/gladoid/internal/session"
	"github.com/Iron-Ham/gladoid/internal/tui/styles"
)

const (
	// DefaultMaxLines bounds the narration kept when no limit is configured.
	DefaultMaxLines = 500

	// header + prompt box + input + status + help bar
	chromeHeight = 10

	countdownInterval = 100 * time.Millisecond
)

// Messages

type narrationMsg struct{ text string }

type promptMsg struct {
	pending  session.PendingDecision
	deadline time.Duration
}

type overMsg struct {
	err       error
	steps     uint64
	fallbacks int
}

type tickMsg time.Time

// binding connects the model to the game it shows. It is filled in before
// the program starts.
type binding struct {
	sessionID string
	submit    func(session.Decision) error
	cancel    func()
}

// Model is the Bubbletea model for one game.
type Model struct {
	bind     *binding
	maxLines int

	viewport viewport.Model
	input    textinput.Model
	lines    []string

	pending  *session.PendingDecision
	deadline time.Time
	now      time.Time

	status   string
	errorMsg string
	over     bool
	outcome  string

	width    int
	height   int
	quitting bool
}

func newModel(bind *binding, maxLines int) Model {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}
	ti := textinput.New()
	ti.Placeholder = "attack 2 | weapon 1 | heal | pass | quit"
	ti.Focus()
	ti.CharLimit = 64
	ti.Width = 40

	return Model{
		bind:     bind,
		maxLines: maxLines,
		viewport: viewport.New(80, 20),
		input:    ti,
		status:   "Starting game...",
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = max(msg.Width-4, 20)
		m.viewport.Height = max(msg.Height-chromeHeight, 3)
		m.refresh()
		return m, nil

	case narrationMsg:
		// Narration only flows once the open decision has been resolved.
		m.pending = nil
		m.append(msg.text)
		return m, nil

	case promptMsg:
		p := msg.pending
		m.pending = &p
		m.now = time.Now()
		m.deadline = m.now.Add(msg.deadline)
		m.status = ""
		return m, tick()

	case tickMsg:
		if m.pending == nil {
			return m, nil
		}
		m.now = time.Time(msg)
		return m, tick()

	case overMsg:
		m.over = true
		m.pending = nil
		m.outcome = describeOutcome(msg)
		m.status = fmt.Sprintf("%s after %d steps (%d fallbacks). Press q to leave.", m.outcome, msg.steps, msg.fallbacks)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		return m.quit()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	case "enter":
		return m.submitLine()
	}

	if m.over && msg.String() == "q" {
		return m.quit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submitLine() (tea.Model, tea.Cmd) {
	line := m.input.Value()
	m.input.SetValue("")
	m.errorMsg = ""

	cmd, err := ParseCommand(line)
	if err != nil {
		m.errorMsg = err.Error()
		return m, nil
	}
	if cmd.Quit {
		return m.quit()
	}
	if m.over {
		m.errorMsg = "the game is over"
		return m, nil
	}
	if m.pending == nil {
		m.errorMsg = "no decision is pending"
		return m, nil
	}

	if err := m.bind.submit(cmd.Decision); err != nil {
		m.errorMsg = rejection(err)
		return m, nil
	}
	m.status = fmt.Sprintf("Action accepted for %s.", m.pending.Name)
	m.pending = nil
	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.bind.cancel != nil {
		m.bind.cancel()
	}
	m.quitting = true
	return m, tea.Quit
}

func (m *Model) append(text string) {
	m.lines = append(m.lines, strings.Split(text, "\n")...)
	if over := len(m.lines) - m.maxLines; over > 0 {
		m.lines = m.lines[over:]
	}
	m.refresh()
}

func (m *Model) refresh() {
	rendered := make([]string, len(m.lines))
	for i, line := range m.lines {
		if strings.HasPrefix(line, "Need action from ") {
			rendered[i] = styles.Notice.Render(line)
			continue
		}
		rendered[i] = line
	}
	m.viewport.SetContent(strings.Join(rendered, "\n"))
	m.viewport.GotoBottom()
}

func (m Model) remaining() time.Duration {
	if m.pending == nil {
		return 0
	}
	return max(m.deadline.Sub(m.now), 0)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	title := "gladoid"
	if m.bind.sessionID != "" {
		title += "  " + m.bind.sessionID
	}
	b.WriteString(styles.Header.Render(title))
	b.WriteString("\n")
	b.WriteString(styles.ContentBox.Render(m.viewport.View()))
	b.WriteString("\n")

	if m.pending != nil {
		prompt := fmt.Sprintf("%s's turn (participant %d)  ", m.pending.Name, m.pending.Participant) +
			styles.Countdown.Render(fmt.Sprintf("%.1fs", m.remaining().Seconds()))
		b.WriteString(styles.PromptBox.Render(prompt))
		b.WriteString("\n")
	}

	b.WriteString(m.input.View())
	b.WriteString("\n")

	if m.errorMsg != "" {
		b.WriteString(styles.ErrorMsg.Render("Error: " + m.errorMsg))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(styles.Muted.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(styles.HelpBar.Render(
		styles.HelpKey.Render("enter") + " submit  " +
			styles.HelpKey.Render("pgup/pgdn") + " scroll  " +
			styles.HelpKey.Render("esc") + " quit",
	))
	return b.String()
}

func tick() tea.Cmd {
	return tea.Tick(countdownInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func describeOutcome(msg overMsg) string {
	switch {
	case msg.err == nil:
		return "Game over"
	case apperrors.IsCanceled(msg.err):
		return "Game canceled"
	default:
		return session.HostFaultNotice
	}
}

// rejection turns a gate error into something to show the participant.
func rejection(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrNotAwaitingDecision):
		return "too late, the decision was already made"
	case apperrors.Is(err, apperrors.ErrWrongParticipant):
		return "not your turn"
	default:
		return "action not allowed: " + err.Error()
	}
}
