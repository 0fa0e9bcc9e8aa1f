package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ylai/autoplatform/runner"
)

// Watch follows st on r's backend in a full-screen program until the user
// quits, ctx ends or the watcher stops. The watcher is closed on return.
func Watch(ctx context.Context, r *runner.Runner, st *runner.TaskState, opts []Option, progOpts ...tea.ProgramOption) error {
	model := New(st, r.Engine(), opts...)
	p := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithContext(ctx)}, progOpts...)...)

	bridge := NewBridge(p.Send)
	w := r.Watch(st.TaskID, st, bridge.Options()...)
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	go func() { p.Send(WaitCmd(w)()) }()

	final, err := p.Run()
	if err != nil {
		return err
	}
	if fm, ok := final.(Model); ok {
		return fm.Err()
	}
	return nil
}
