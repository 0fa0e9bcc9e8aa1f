package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ylai/autoplatform/pipeline"
	"github.com/ylai/autoplatform/runner"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170"))

	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62"))

	WaitingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	RunningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	FailedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	SkippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	HelpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// StyleForStatus maps a node status to its color. Statuses the backend
// invents render like waiting ones.
func StyleForStatus(s pipeline.Status) lipgloss.Style {
	switch s {
	case pipeline.StatusRunning:
		return RunningStyle
	case pipeline.StatusSuccess:
		return SuccessStyle
	case pipeline.StatusFailed:
		return FailedStyle
	case pipeline.StatusSkipped:
		return SkippedStyle
	default:
		return WaitingStyle
	}
}

// Icon is the bracket marker shown before a node.
func Icon(s pipeline.Status) string {
	switch s {
	case pipeline.StatusRunning:
		return "[~]"
	case pipeline.StatusSuccess:
		return "[*]"
	case pipeline.StatusFailed:
		return "[!]"
	case pipeline.StatusSkipped:
		return "[-]"
	default:
		return "[ ]"
	}
}

func connStyle(s runner.ConnState) lipgloss.Style {
	switch s {
	case runner.StateOpen:
		return SuccessStyle
	case runner.StateReconnecting, runner.StateConnecting:
		return RunningStyle
	case runner.StateStopped:
		return FailedStyle
	default:
		return WaitingStyle
	}
}
