package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/24601/agent-deep-research/internal/poll"
)

// stepPreviewLimit bounds how much of a step's text the display shows.
const stepPreviewLimit = 500

// Messages for tea updates
type (
	noticeMsg    struct{ adaptive bool }
	stepMsg      poll.StepEvent
	transientMsg struct{ err error }
	doneMsg      struct {
		line string
		ok   bool
	}
	tickMsg time.Time
)

func adaptiveNotice(adaptive bool) string {
	if adaptive {
		return "Adaptive polling: intervals tuned from previous run durations"
	}
	return "Fixed polling: not enough history for adaptive intervals"
}

// progressModel renders one research run while it is being polled.
type progressModel struct {
	spinner      spinner.Model
	showThoughts bool
	start        time.Time

	status    string
	stepIndex int // zero-based, most recent step with text
	stepText  string
	notice    string
	transient string

	done     bool
	doneLine string
	doneOK   bool
}

func newProgressModel(showThoughts bool) progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = infoStyle

	return progressModel{
		spinner:      sp,
		showThoughts: showThoughts,
		start:        time.Now(),
		status:       "queued",
	}
}

func (m progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

// tick keeps the elapsed counter moving between poll events.
func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tickMsg:
		return m, tick()

	case noticeMsg:
		m.notice = adaptiveNotice(msg.adaptive)
		return m, nil

	case stepMsg:
		m.status = msg.Status
		m.stepIndex = msg.Index
		m.stepText = msg.Text
		m.transient = ""
		return m, nil

	case transientMsg:
		m.transient = msg.err.Error()
		return m, nil

	case doneMsg:
		m.done = true
		m.doneLine = msg.line
		m.doneOK = msg.ok
		return m, tea.Quit
	}

	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		if m.doneLine == "" {
			return ""
		}
		if m.doneOK {
			return SuccessLine(m.doneLine) + "\n"
		}
		return ErrorLine(m.doneLine) + "\n"
	}

	elapsed := int(time.Since(m.start).Seconds())

	var b strings.Builder
	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(StatusStyle(m.status).Render(fmt.Sprintf("Status: %s (%ds elapsed)", m.status, elapsed)))
	b.WriteString("\n")

	if m.notice != "" {
		b.WriteString(Dim(m.notice))
		b.WriteString("\n")
	}
	if m.transient != "" {
		b.WriteString(WarnLine("poll failed, retrying: " + m.transient))
		b.WriteString("\n")
	}
	if m.showThoughts && m.stepText != "" {
		b.WriteString(Panel(fmt.Sprintf("Step %d", m.stepIndex+1), Truncate(m.stepText, stepPreviewLimit)))
		b.WriteString("\n")
	}

	return b.String()
}

// Monitor drives the live progress display. It implements poll.Progress;
// events may arrive from any goroutine while Run blocks on the caller's.
type Monitor struct {
	program *tea.Program
}

// NewMonitor builds a Monitor that renders to stderr. Input is disabled so
// interrupts keep reaching the process signal handler.
func NewMonitor(showThoughts bool) *Monitor {
	program := tea.NewProgram(newProgressModel(showThoughts),
		tea.WithOutput(os.Stderr),
		tea.WithInput(nil),
	)
	return &Monitor{program: program}
}

// Run blocks until Finish is called. Run it on the goroutine that owns the
// terminal while the poller works elsewhere.
func (m *Monitor) Run() error {
	_, err := m.program.Run()
	return err
}

// Finish ends the display with a final line, styled according to ok. Safe
// to call even after the program has stopped.
func (m *Monitor) Finish(line string, ok bool) {
	m.program.Send(doneMsg{line: line, ok: ok})
}

// Strategy implements poll.Progress.
func (m *Monitor) Strategy(adaptive bool) {
	m.program.Send(noticeMsg{adaptive: adaptive})
}

// Step implements poll.Progress.
func (m *Monitor) Step(ev poll.StepEvent) {
	m.program.Send(stepMsg(ev))
}

// Transient implements poll.Progress.
func (m *Monitor) Transient(err error, elapsed time.Duration) {
	m.program.Send(transientMsg{err: err})
}

// PlainProgress writes one line per polling event. It stands in for the
// live display when stderr is not a terminal or when verbose logging is on.
type PlainProgress struct {
	Out          io.Writer
	ShowThoughts bool
}

// Strategy implements poll.Progress.
func (p *PlainProgress) Strategy(adaptive bool) {
	fmt.Fprintln(p.Out, adaptiveNotice(adaptive))
}

// Step implements poll.Progress.
func (p *PlainProgress) Step(ev poll.StepEvent) {
	if !p.ShowThoughts {
		fmt.Fprintf(p.Out, "[%ds] status=%s step=%d\n", int(ev.Elapsed.Seconds()), ev.Status, ev.Index+1)
		return
	}
	fmt.Fprintf(p.Out, "[%ds] status=%s step=%d: %s\n",
		int(ev.Elapsed.Seconds()), ev.Status, ev.Index+1, Truncate(flatten(ev.Text), stepPreviewLimit))
}

// Transient implements poll.Progress.
func (p *PlainProgress) Transient(err error, elapsed time.Duration) {
	fmt.Fprintf(p.Out, "[%ds] poll failed, retrying: %v\n", int(elapsed.Seconds()), err)
}

// flatten collapses whitespace runs so a step fits on one log line.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
