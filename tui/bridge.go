package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/ylai/autoplatform/runner"
)

// Bridge forwards watcher callbacks into the Bubble Tea message loop.
// Callbacks run on the watcher goroutine; send must be safe to call from
// there, as tea.Program.Send is.
type Bridge struct {
	send func(tea.Msg)
}

// NewBridge wraps send, usually program.Send.
func NewBridge(send func(tea.Msg)) *Bridge {
	return &Bridge{send: send}
}

// Options returns the watcher options that feed the model.
func (b *Bridge) Options() []runner.WatcherOption {
	return []runner.WatcherOption{
		runner.OnStatus(func(m runner.Message) { b.send(StatusMsg{Message: m}) }),
		runner.OnRaw(b.raw),
		runner.OnState(func(s runner.ConnState) { b.send(ConnMsg{State: s}) }),
	}
}

func (b *Bridge) raw(data []byte) {
	m, err := runner.ParseMessage(data)
	if err != nil || m.IsNodeUpdate() {
		return
	}
	b.send(FrameMsg{Message: m})
}

// WaitCmd blocks until w stops and reports it as a DoneMsg.
func WaitCmd(w *runner.Watcher) tea.Cmd {
	return func() tea.Msg {
		return DoneMsg{Err: w.Wait()}
	}
}
