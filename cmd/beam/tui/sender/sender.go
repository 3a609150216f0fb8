package sender

import (
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/timer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/errors"

	"github.com/beamship/beam/cmd/beam/tui"
	"github.com/beamship/beam/internal/session"
)

type model struct {
	session *session.Session
	path    string

	snap  session.Snapshot
	alert *tui.AlertMsg

	width            int
	spinner          spinner.Model
	progressBar      progress.Model
	help             help.Model
	keys             tui.KeyMap
	copyMessageTimer timer.Model
	showCopied       bool
}

// New builds the sender program model around an installed session.
func New(s *session.Session, path string) *model {
	return &model{
		session:          s,
		path:             path,
		spinner:          tui.WaitingSpinner(),
		progressBar:      tui.Progressbar(),
		help:             help.New(),
		keys:             tui.Keys(),
		copyMessageTimer: timer.NewWithInterval(tui.COPY_MESSAGE_DURATION, 100*time.Millisecond),
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.selectFileCmd(), m.listenSessionCmd())
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tui.SnapshotMsg:
		prev := m.snap.State
		m.snap = session.Snapshot(msg)
		cmds := []tea.Cmd{m.listenSessionCmd()}
		if m.snap.State != prev {
			cmds = append(cmds, m.resetSpinner())
		}
		return m, tea.Batch(cmds...)

	case tui.AlertMsg:
		alert := msg
		m.alert = &alert
		return m, nil

	case tui.AlertDismissMsg:
		m.alert = nil
		return m, nil

	case timer.TickMsg:
		var cmd tea.Cmd
		m.copyMessageTimer, cmd = m.copyMessageTimer.Update(msg)
		return m, cmd

	case timer.TimeoutMsg:
		m.showCopied = false
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progressBar.Width = msg.Width - 2*tui.PADDING - 4
		if m.progressBar.Width > tui.MAX_WIDTH {
			m.progressBar.Width = tui.MAX_WIDTH
		}
		return m, nil

	case progress.FrameMsg:
		bar, cmd := m.progressBar.Update(msg)
		m.progressBar = bar.(progress.Model)
		return m, cmd

	default:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
}

func (m *model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Start):
		m.session.StartSharing()
		return m, nil

	case key.Matches(msg, m.keys.Stop):
		m.session.StopSharing()
		return m, nil

	case key.Matches(msg, m.keys.Reset):
		m.session.Reset()
		return m, m.selectFileCmd()

	case key.Matches(msg, m.keys.CopyTicket):
		if m.snap.Ticket == "" {
			return m, nil
		}
		if err := clipboard.WriteAll(receiveCommand(m.snap.Ticket)); err != nil {
			return m, func() tea.Msg {
				return tui.AlertMsg{
					Title:       "Clipboard unavailable",
					Description: errors.Wrap(err, "copying receive command").Error(),
					Severity:    session.SeverityWarning,
				}
			}
		}
		m.showCopied = true
		m.copyMessageTimer = timer.NewWithInterval(tui.COPY_MESSAGE_DURATION, 100*time.Millisecond)
		return m, m.copyMessageTimer.Init()

	case key.Matches(msg, m.keys.DismissAlert):
		m.alert = nil
		return m, nil
	}
	return m, nil
}

func (m *model) View() string {
	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(m.stateView())
	b.WriteString("\n\n")
	if m.alert != nil {
		b.WriteString(m.alertView())
		b.WriteString("\n\n")
	}
	b.WriteString(tui.PadText(tui.HelpStyle(m.help.View(m.keys))))
	b.WriteString("\n")
	return b.String()
}

func (m *model) stateView() string {
	switch m.snap.State {

	case session.Idle:
		return tui.PadText(fmt.Sprintf("%s Inspecting %s", m.spinner.View(), tui.BoldText(m.path)))

	case session.FileSelected:
		name := m.path
		kind := "file"
		if m.snap.Selected != nil {
			name = m.snap.Selected.Path
			kind = m.snap.Selected.Kind.String()
		}
		return tui.PadText(fmt.Sprintf("Ready to share %s %s\n\n%s",
			kind, tui.BoldText(name), tui.InfoStyle("Press enter to request a ticket")))

	case session.WaitingForReceiver:
		ticketLine := fmt.Sprintf("Ticket: %s", tui.BoldText(m.snap.Ticket))
		if m.showCopied {
			ticketLine += tui.CheckText(" ✓ copied")
		}
		return tui.PadText(fmt.Sprintf("%s Waiting for receiver\n\n%s\n%s",
			m.spinner.View(), ticketLine,
			tui.ItalicText(fmt.Sprintf("On the other machine, run: %s", receiveCommand(m.snap.Ticket)))))

	case session.Transferring:
		return tui.PadText(fmt.Sprintf("%s Transferring\n\n%s", m.spinner.View(), m.progressView()))

	case session.TransferComplete:
		return tui.PadText(fmt.Sprintf("%s\n\n%s",
			tui.CheckText("✓ Transfer complete"), m.summaryView()))

	case session.TransferStopped:
		return tui.PadText(fmt.Sprintf("%s\n\n%s",
			tui.WarningText("Transfer stopped"), m.summaryView()))

	default:
		return ""
	}
}

func (m *model) progressView() string {
	p := m.snap.Progress
	if p == nil {
		return m.progressBar.ViewAs(0)
	}
	detail := fmt.Sprintf("%s/%s at %s/s",
		tui.ByteCountSI(p.BytesTransferred), tui.ByteCountSI(p.TotalBytes), tui.ByteCountSI(int64(p.SpeedBps)))
	return fmt.Sprintf("%s\n%s", m.progressBar.ViewAs(p.Percentage/100), tui.InfoStyle(detail))
}

func (m *model) summaryView() string {
	md := m.snap.Metadata
	if md == nil {
		return ""
	}
	var lines []string
	lines = append(lines, fmt.Sprintf("Name: %s", tui.BoldText(md.FileName)))
	if md.FileSize > 0 {
		lines = append(lines, fmt.Sprintf("Size: %s", tui.ByteCountSI(md.FileSize)))
	}
	if md.Duration > 0 {
		lines = append(lines, fmt.Sprintf("Duration: %s", md.Duration.Round(time.Millisecond)))
	}
	if !md.WasStopped {
		lines = append(lines, tui.InfoStyle("Press r to share again, q to quit"))
	}
	return strings.Join(lines, "\n")
}

func (m *model) alertView() string {
	if m.alert == nil {
		return ""
	}
	render := tui.ErrorText
	if m.alert.Severity != session.SeverityError {
		render = tui.WarningText
	}
	width := m.width - 2*tui.PADDING
	if width <= 0 || width > tui.MAX_WIDTH {
		width = tui.MAX_WIDTH
	}
	body := wordwrap.String(m.alert.Description, width)
	return tui.PadText(fmt.Sprintf("%s\n%s", render(m.alert.Title), tui.InfoStyle(body)))
}

func (m *model) selectFileCmd() tea.Cmd {
	return func() tea.Msg {
		m.session.SelectFile(m.path)
		return nil
	}
}

func (m *model) listenSessionCmd() tea.Cmd {
	return func() tea.Msg {
		return tui.SnapshotMsg(<-m.session.Updates())
	}
}

func (m *model) resetSpinner() tea.Cmd {
	if m.snap.State == session.Transferring {
		m.spinner = tui.TransferSpinner()
	} else {
		m.spinner = tui.WaitingSpinner()
	}
	return m.spinner.Tick
}

func receiveCommand(ticket string) string {
	return fmt.Sprintf("beam receive %s", ticket)
}
