package tui

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/beamship/beam/internal/session"
)

const (
	PADDING               = 2
	MAX_WIDTH             = 80
	COPY_MESSAGE_DURATION = 2 * time.Second
)

const (
	PRIMARY_COLOR   = "#B8BABA"
	SECONDARY_COLOR = "#626262"
	ELEMENT_COLOR   = "#EE9F40"
	ERROR_COLOR     = "#CC0000"
	WARNING_COLOR   = "#EEC340"
	CHECK_COLOR     = "#34B233"
)

var baseStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(PRIMARY_COLOR))

var (
	InfoStyle   = baseStyle.Copy().Render
	HelpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color(SECONDARY_COLOR)).Render
	ItalicText  = baseStyle.Copy().Italic(true).Render
	BoldText    = baseStyle.Copy().Bold(true).Render
	ErrorText   = baseStyle.Copy().Foreground(lipgloss.Color(ERROR_COLOR)).Render
	WarningText = baseStyle.Copy().Foreground(lipgloss.Color(WARNING_COLOR)).Render
	CheckText   = baseStyle.Copy().Foreground(lipgloss.Color(CHECK_COLOR)).Render
)

// PadText pads each line in s with the standard left margin.
func PadText(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		lines = append(lines, strings.Repeat(" ", PADDING)+line)
	}
	return strings.Join(lines, "\n")
}

func WaitingSpinner() spinner.Model {
	return spinner.New(
		spinner.WithSpinner(spinner.Points),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(ELEMENT_COLOR))),
	)
}

func TransferSpinner() spinner.Model {
	return spinner.New(
		spinner.WithSpinner(spinner.Meter),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color(ELEMENT_COLOR))),
	)
}

func Progressbar() progress.Model {
	return progress.New(progress.WithGradient(SECONDARY_COLOR, ELEMENT_COLOR))
}

// SnapshotMsg carries a new session snapshot into the program.
type SnapshotMsg session.Snapshot

// AlertMsg surfaces an alert banner over the current view.
type AlertMsg struct {
	Title       string
	Description string
	Severity    session.Severity
}

// AlertDismissMsg clears the alert banner.
type AlertDismissMsg struct{}

// Alerter bridges session alerts into the running bubbletea program.
// Alerts raised before Bind are dropped.
type Alerter struct {
	mu      sync.Mutex
	program *tea.Program
}

func NewAlerter() *Alerter {
	return &Alerter{}
}

func (a *Alerter) Bind(program *tea.Program) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.program = program
}

func (a *Alerter) ShowAlert(title, description string, severity session.Severity) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.program == nil {
		return
	}
	a.program.Send(AlertMsg{Title: title, Description: description, Severity: severity})
}

func (a *Alerter) Dismiss() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.program == nil {
		return
	}
	a.program.Send(AlertDismissMsg{})
}

type KeyMap struct {
	Start        key.Binding
	Stop         key.Binding
	Reset        key.Binding
	CopyTicket   key.Binding
	DismissAlert key.Binding
	Quit         key.Binding
}

func Keys() KeyMap {
	return KeyMap{
		Start:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "start sharing")),
		Stop:         key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop transfer")),
		Reset:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "share again")),
		CopyTicket:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy ticket")),
		DismissAlert: key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "dismiss alert")),
		Quit:         key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Start, k.Stop, k.CopyTicket, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Start, k.Stop, k.Reset},
		{k.CopyTicket, k.DismissAlert, k.Quit},
	}
}

var _ help.KeyMap = KeyMap{}

// ByteCountSI renders a byte count in SI units.
func ByteCountSI(b int64) string {
	const unit = 1000
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB",
		math.Round(float64(b)/float64(div)*10)/10, "kMGTPE"[exp])
}
