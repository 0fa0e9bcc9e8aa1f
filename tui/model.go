package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ylai/autoplatform/pipeline"
	"github.com/ylai/autoplatform/runner"
)

const (
	defaultWidth    = 80
	defaultLogLines = 8
	maxBarWidth     = 60
)

// Model renders one task: a line per node, a progress bar and the tail of
// the task log. Node statuses are read from the shared TaskState, which the
// watcher updates; messages only tell the model when to redraw.
type Model struct {
	state  *runner.TaskState
	engine runner.Engine

	progress progress.Model
	spinner  spinner.Model
	logs     viewport.Model

	conn         runner.ConnState
	taskDone     string
	quitWhenDone bool
	quitting     bool
	err          error
	width        int
}

// Option configures a Model.
type Option func(*Model)

// WithQuitWhenDone ends the program once every node is terminal.
func WithQuitWhenDone() Option {
	return func(m *Model) { m.quitWhenDone = true }
}

// WithLogLines sets the height of the log panel.
func WithLogLines(n int) Option {
	return func(m *Model) {
		if n > 0 {
			m.logs.Height = n
		}
	}
}

// New creates a model for st.
func New(st *runner.TaskState, engine runner.Engine, opts ...Option) Model {
	m := Model{
		state:    st,
		engine:   engine,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxBarWidth), progress.WithoutPercentage()),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(RunningStyle)),
		logs:     viewport.New(defaultWidth-2, defaultLogLines),
		conn:     runner.StateConnecting,
		width:    defaultWidth,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.syncLogs()
	return m
}

// Err is the watcher error, if it stopped with one.
func (m Model) Err() error { return m.err }

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = min(maxBarWidth, max(10, msg.Width-8))
		m.logs.Width = max(10, msg.Width-2)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd

	case StatusMsg:
		m.syncLogs()
		if m.quitWhenDone && m.state.Done() {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case FrameMsg:
		if msg.Message.Type == "task_done" {
			m.taskDone = msg.Message.Message
		}
		m.syncLogs()
		return m, nil

	case ConnMsg:
		m.conn = msg.State
		m.syncLogs()
		return m, nil

	case DoneMsg:
		m.err = msg.Err
		m.quitting = true
		m.syncLogs()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) syncLogs() {
	m.logs.SetContent(strings.Join(m.state.Logs(), "\n"))
	m.logs.GotoBottom()
}

func (m Model) View() string {
	var b strings.Builder

	header := TitleStyle.Render("task "+m.state.TaskID) + "  " +
		HelpStyle.Render(string(m.engine)) + "  " +
		connStyle(m.conn).Render(string(m.conn))
	b.WriteString(header + "\n\n")

	for _, id := range m.state.NodeIDs() {
		b.WriteString(m.nodeLine(id) + "\n")
	}

	pct := m.state.Progress()
	fmt.Fprintf(&b, "\n%s %3d%%", m.progress.ViewAs(float64(pct)/100), pct)
	if m.taskDone != "" {
		b.WriteString("  " + StyleForStatus(pipeline.Status(m.taskDone)).Render(m.taskDone))
	}
	b.WriteString("\n")

	b.WriteString(BorderStyle.Width(max(10, m.width-2)).Render(m.logs.View()) + "\n")
	if m.err != nil {
		b.WriteString(FailedStyle.Render(m.err.Error()) + "\n")
	}
	if !m.quitting {
		b.WriteString(HelpStyle.Render("q quit · ↑/↓ scroll log") + "\n")
	}
	return b.String()
}

func (m Model) nodeLine(id string) string {
	st, _ := m.state.Status(id)
	style := StyleForStatus(st)
	icon := Icon(st)
	if st == pipeline.StatusRunning {
		icon = "[" + m.spinner.View() + "]"
	}
	line := fmt.Sprintf("%s %-20s %s", style.Render(icon), id, style.Render(string(st)))
	if secs, cached := m.state.Elapsed(id); st.Terminal() && (secs > 0 || cached) {
		extra := fmt.Sprintf("%.2fs", secs)
		if cached {
			extra += " cached"
		}
		line += " " + HelpStyle.Render(extra)
	}
	return lipgloss.NewStyle().MaxWidth(max(10, m.width)).Render(line)
}
