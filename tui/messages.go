package tui

import "github.com/ylai/autoplatform/runner"

// StatusMsg carries a node update that changed the task state.
type StatusMsg struct {
	Message runner.Message
}

// FrameMsg is any other frame on the stream, such as task_done.
type FrameMsg struct {
	Message runner.Message
}

// ConnMsg reports a watcher connection state change.
type ConnMsg struct {
	State runner.ConnState
}

// DoneMsg is sent once the watcher has stopped.
type DoneMsg struct {
	Err error
}
