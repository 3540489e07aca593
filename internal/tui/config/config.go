package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/gladoid/internal/config"
	"github.com/Iron-Ham/gladoid/internal/tui/styles"
)

// ConfigItem represents a single configuration item
type ConfigItem struct {
	Key         string
	Label       string
	Description string
	Type        string   // "string", "bool", "int", "float", "duration", "select"
	Options     []string // For select type
}

// Category represents a group of config items
type Category struct {
	Name  string
	Items []ConfigItem
}

// Lines outside the scrolled item list: header, path, description, help.
const reservedLines = 12

// Model is the Bubbletea model for the interactive config UI
type Model struct {
	v    *viper.Viper
	path string

	categories     []Category
	categoryIndex  int
	itemIndex      int
	scrollOffset   int
	width          int
	height         int
	editing        bool
	textInput      textinput.Model
	selectIndex    int // For select-type options
	errorMsg       string
	infoMsg        string
	quitting       bool
	configModified bool
}

// New creates a config model editing v. Changes are written to path.
func New(v *viper.Viper, path string) Model {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 40

	return Model{
		v:          v,
		path:       path,
		categories: categories(),
		textInput:  ti,
	}
}

func categories() []Category {
	actions := []string{"1", "2", "3", "4"}
	return []Category{
		{
			Name: "Decision",
			Items: []ConfigItem{
				{Key: "decision.deadline", Label: "Deadline", Type: "duration",
					Description: "How long to wait for your own decision (0s = fall back immediately)"},
				{Key: "decision.fallback_action", Label: "Fallback Action", Type: "select", Options: actions,
					Description: "Action applied when the deadline passes: 1 attack, 2 choose weapon, 3 heal, 4 pass"},
				{Key: "decision.fallback_target", Label: "Fallback Target", Type: "select", Options: config.ValidFallbackTargets(),
					Description: "How the fallback target is picked"},
				{Key: "decision.fixed_target", Label: "Fixed Target", Type: "int",
					Description: "Target used by the fixed strategy"},
				{Key: "decision.script", Label: "Lua Script", Type: "string",
					Description: "Lua file defining choose_target(participant, opponents)"},
			},
		},
		{
			Name: "Session",
			Items: []ConfigItem{
				{Key: "session.step_interval", Label: "Step Interval", Type: "duration",
					Description: "Pause between loop iterations (0s only yields)"},
				{Key: "session.human_seat", Label: "Human Seat", Type: "int",
					Description: "Participant controlled by whoever starts the game"},
			},
		},
		{
			Name: "World",
			Items: []ConfigItem{
				{Key: "world.roster", Label: "Roster File", Type: "string",
					Description: "YAML roster of fighters and weapons (empty = built-in duel)"},
				{Key: "world.seed", Label: "Seed", Type: "int",
					Description: "Fixed seed for the turn race (0 = seed from the clock)"},
			},
		},
		{
			Name: "Relay",
			Items: []ConfigItem{
				{Key: "relay.messages_per_second", Label: "Messages/Second", Type: "float",
					Description: "Cap on deliveries to the participant (0 = unpaced)"},
				{Key: "relay.burst", Label: "Burst", Type: "int",
					Description: "Deliveries allowed back to back"},
			},
		},
		{
			Name: "Server",
			Items: []ConfigItem{
				{Key: "server.addr", Label: "Listen Address", Type: "string",
					Description: "Address gladoid serve listens on"},
				{Key: "server.max_sessions", Label: "Max Sessions", Type: "int",
					Description: "Games running at once across all connections"},
				{Key: "server.frames_per_second", Label: "Frames/Second", Type: "float",
					Description: "Inbound frame limit per connection (0 = unlimited)"},
			},
		},
		{
			Name: "Results",
			Items: []ConfigItem{
				{Key: "results.path", Label: "Database", Type: "string",
					Description: "SQLite file recording finished games (empty = disabled)"},
			},
		},
		{
			Name: "TUI",
			Items: []ConfigItem{
				{Key: "tui.max_lines", Label: "Max Lines", Type: "int",
					Description: "Narration lines kept on screen"},
			},
		},
		{
			Name: "Logging",
			Items: []ConfigItem{
				{Key: "logging.enabled", Label: "Enabled", Type: "bool",
					Description: "Write logs to the log directory"},
				{Key: "logging.level", Label: "Level", Type: "select", Options: config.ValidLogLevels(),
					Description: "Minimum log level"},
				{Key: "logging.dir", Label: "Directory", Type: "string",
					Description: "Where gladoid.log is written (empty = config directory)"},
				{Key: "logging.max_size_mb", Label: "Max Size (MB)", Type: "int",
					Description: "Size at which the log file rotates"},
				{Key: "logging.max_backups", Label: "Max Backups", Type: "int",
					Description: "Rotated log files kept"},
			},
		},
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
		m.ensureSelectionVisible(m.availableLines())
		return m, nil

	case tea.KeyMsg:
		m.errorMsg = ""
		m.infoMsg = ""

		if m.editing {
			return m.handleEditingKeypress(msg)
		}

		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			m.moveUp()
		case "down", "j":
			m.moveDown()
		case "ctrl+u", "pgup":
			for range m.availableLines() / 2 {
				m.moveUp()
			}
		case "ctrl+d", "pgdown":
			for range m.availableLines() / 2 {
				m.moveDown()
			}
		case "g", "home":
			m.categoryIndex, m.itemIndex = 0, 0
		case "G", "end":
			m.categoryIndex = len(m.categories) - 1
			m.itemIndex = len(m.categories[m.categoryIndex].Items) - 1
		case "tab":
			m.categoryIndex = (m.categoryIndex + 1) % len(m.categories)
			m.itemIndex = 0
		case "shift+tab":
			m.categoryIndex = (m.categoryIndex - 1 + len(m.categories)) % len(m.categories)
			m.itemIndex = 0
		case "enter", " ":
			item := m.currentItem()
			switch item.Type {
			case "bool":
				m.v.Set(item.Key, !m.v.GetBool(item.Key))
				m.saveConfig()
			case "select":
				m.editing = true
				m.selectIndex = m.getCurrentSelectIndex()
			default:
				m.editing = true
				m.textInput.SetValue(m.getDisplayValue(item))
				m.textInput.Focus()
			}
		case "r":
			m.resetCurrentToDefault()
		}
		m.ensureSelectionVisible(m.availableLines())
	}

	return m, nil
}

func (m *Model) moveUp() {
	m.itemIndex--
	if m.itemIndex < 0 {
		m.categoryIndex--
		if m.categoryIndex < 0 {
			m.categoryIndex = len(m.categories) - 1
		}
		m.itemIndex = len(m.categories[m.categoryIndex].Items) - 1
	}
}

func (m *Model) moveDown() {
	m.itemIndex++
	if m.itemIndex >= len(m.categories[m.categoryIndex].Items) {
		m.categoryIndex++
		if m.categoryIndex >= len(m.categories) {
			m.categoryIndex = 0
		}
		m.itemIndex = 0
	}
}

func (m Model) handleEditingKeypress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	item := m.currentItem()

	switch msg.String() {
	case "esc":
		m.editing = false
		m.textInput.SetValue("")
		return m, nil

	case "enter":
		value := m.textInput.Value()
		if item.Type == "select" {
			value = item.Options[m.selectIndex]
		}
		if err := m.validateAndSet(item, value); err != nil {
			m.errorMsg = err.Error()
			return m, nil
		}
		m.saveConfig()
		m.editing = false
		m.textInput.SetValue("")
		return m, nil

	case "up", "k":
		if item.Type == "select" {
			m.selectIndex = (m.selectIndex - 1 + len(item.Options)) % len(item.Options)
			return m, nil
		}

	case "down", "j":
		if item.Type == "select" {
			m.selectIndex = (m.selectIndex + 1) % len(item.Options)
			return m, nil
		}
	}

	if item.Type != "select" {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

// totalLines is the height of the item list: a header, the items and a
// blank line per category.
func (m Model) totalLines() int {
	n := 0
	for _, cat := range m.categories {
		n += len(cat.Items) + 2
	}
	return n
}

// currentSelectionLine is the list line holding the selected item.
func (m Model) currentSelectionLine() int {
	line := 0
	for ci := 0; ci < m.categoryIndex; ci++ {
		line += len(m.categories[ci].Items) + 2
	}
	return line + 1 + m.itemIndex
}

func (m Model) availableLines() int {
	return max(m.height-reservedLines, 5)
}

func (m *Model) ensureSelectionVisible(available int) {
	line := m.currentSelectionLine()
	if line < m.scrollOffset {
		m.scrollOffset = line
		if m.itemIndex == 0 {
			// keep the category header in view
			m.scrollOffset--
		}
	}
	if line >= m.scrollOffset+available {
		m.scrollOffset = line - available + 1
	}
	if limit := max(m.totalLines()-available, 0); m.scrollOffset > limit {
		m.scrollOffset = limit
	}
	m.scrollOffset = max(m.scrollOffset, 0)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(styles.Header.Width(m.width - 4).Render("Gladoid Configuration"))
	b.WriteString("\n\n")

	path := m.path
	if _, err := os.Stat(path); err != nil {
		path += " (not created)"
	}
	b.WriteString(styles.Muted.Render("Config file: " + path))
	b.WriteString("\n\n")

	var lines []string
	for ci, cat := range m.categories {
		active := ci == m.categoryIndex
		catStyle := styles.Muted.Bold(true)
		if active {
			catStyle = styles.Primary.Bold(true)
		}
		lines = append(lines, catStyle.Render(fmt.Sprintf("[ %s ]", cat.Name)))
		for ii, item := range cat.Items {
			lines = append(lines, m.renderItem(item, active && ii == m.itemIndex))
		}
		lines = append(lines, "")
	}

	available := m.availableLines()
	start := min(m.scrollOffset, len(lines))
	end := min(start+available, len(lines))
	if start > 0 {
		b.WriteString(styles.Muted.Render("  ▲ more"))
		b.WriteString("\n")
	}
	b.WriteString(strings.Join(lines[start:end], "\n"))
	b.WriteString("\n")
	if end < len(lines) {
		b.WriteString(styles.Muted.Render("  ▼ more"))
		b.WriteString("\n")
	}

	if m.editing {
		b.WriteString(m.renderEditOverlay())
	} else {
		b.WriteString(styles.Muted.Render(m.currentItem().Description))
	}
	b.WriteString("\n")

	if m.errorMsg != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorMsg.Render("Error: " + m.errorMsg))
	}
	if m.infoMsg != "" {
		b.WriteString("\n")
		b.WriteString(styles.SuccessMsg.Render(m.infoMsg))
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderItem(item ConfigItem, selected bool) string {
	label := item.Label
	if len(label) > 25 {
		label = label[:22] + "..."
	}
	padded := fmt.Sprintf("%-25s", label)
	value := m.getDisplayValue(item)

	if selected {
		return fmt.Sprintf("  %s %s  %s",
			styles.Secondary.Render(">"),
			styles.Text.Bold(true).Render(padded),
			styles.Primary.Render(value))
	}
	return fmt.Sprintf("    %s  %s", styles.Muted.Render(padded), styles.Text.Render(value))
}

func (m Model) renderEditOverlay() string {
	item := m.currentItem()

	border := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(styles.PrimaryColor).
		Padding(1, 2).
		Width(50)

	var content strings.Builder
	if item.Type == "select" {
		fmt.Fprintf(&content, "Select %s:\n\n", item.Label)
		for i, opt := range item.Options {
			if i == m.selectIndex {
				content.WriteString(styles.DropdownItemSelected.Render(" > " + opt + " "))
			} else {
				content.WriteString(styles.DropdownItem.Render("   " + opt + " "))
			}
			content.WriteString("\n")
		}
		content.WriteString("\n" + styles.Muted.Render("j/k to select, enter to confirm, esc to cancel"))
	} else {
		fmt.Fprintf(&content, "Edit %s:\n\n", item.Label)
		content.WriteString(m.textInput.View())
		content.WriteString("\n\n" + styles.Muted.Render("enter to save, esc to cancel"))
	}
	return "\n" + border.Render(content.String())
}

func (m Model) renderHelp() string {
	key := styles.HelpKey.Render
	if m.editing {
		return styles.HelpBar.Render(key("enter") + " save  " + key("esc") + " cancel")
	}
	return styles.HelpBar.Render(
		key("j/k") + " navigate  " +
			key("tab") + " next category  " +
			key("enter/space") + " edit  " +
			key("r") + " reset  " +
			key("q") + " quit",
	)
}

func (m Model) currentItem() ConfigItem {
	return m.categories[m.categoryIndex].Items[m.itemIndex]
}

func (m Model) getDisplayValue(item ConfigItem) string {
	switch item.Type {
	case "bool":
		return strconv.FormatBool(m.v.GetBool(item.Key))
	case "int":
		return strconv.FormatInt(m.v.GetInt64(item.Key), 10)
	case "float":
		return strconv.FormatFloat(m.v.GetFloat64(item.Key), 'f', -1, 64)
	case "duration":
		return m.v.GetDuration(item.Key).String()
	default:
		return m.v.GetString(item.Key)
	}
}

func (m Model) getCurrentSelectIndex() int {
	item := m.currentItem()
	current := m.getDisplayValue(item)
	for i, opt := range item.Options {
		if opt == current {
			return i
		}
	}
	return 0
}

func (m *Model) validateAndSet(item ConfigItem, value string) error {
	value = strings.TrimSpace(value)
	switch item.Type {
	case "int":
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("expected integer value")
		}
		if n < 0 {
			return fmt.Errorf("value must be non-negative")
		}
		m.v.Set(item.Key, n)
	case "float":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("expected decimal value")
		}
		if f < 0 {
			return fmt.Errorf("value must be non-negative")
		}
		m.v.Set(item.Key, f)
	case "duration":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("expected a duration such as 5s or 500ms")
		}
		if d < 0 {
			return fmt.Errorf("value must be non-negative")
		}
		m.v.Set(item.Key, d.String())
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("expected true or false")
		}
		m.v.Set(item.Key, b)
	case "select":
		for _, opt := range item.Options {
			if opt == value {
				if n, err := strconv.Atoi(value); err == nil {
					m.v.Set(item.Key, n)
				} else {
					m.v.Set(item.Key, value)
				}
				return nil
			}
		}
		return fmt.Errorf("invalid option: %s", value)
	default:
		m.v.Set(item.Key, value)
	}
	return nil
}

func (m *Model) saveConfig() {
	if _, errs := config.LoadFrom(m.v); errs != nil {
		m.errorMsg = errs.Error()
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		m.errorMsg = fmt.Sprintf("Failed to create config directory: %v", err)
		return
	}
	if err := m.v.WriteConfigAs(m.path); err != nil {
		m.errorMsg = fmt.Sprintf("Failed to save config: %v", err)
		return
	}

	m.infoMsg = "Saved!"
	m.configModified = true
}

func (m *Model) resetCurrentToDefault() {
	item := m.currentItem()
	defaults := config.DefaultValues()
	value, ok := defaults[item.Key]
	if !ok {
		return
	}
	m.v.Set(item.Key, value)
	m.saveConfig()
	if m.errorMsg == "" {
		m.infoMsg = fmt.Sprintf("Reset %s to default", item.Label)
	}
}

// Run starts the interactive config UI
func Run(v *viper.Viper, path string) error {
	p := tea.NewProgram(New(v, path), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
