package ui

import (
	"html/template"
	"sync"
)

// CloseReason says why a modal closed.
type CloseReason string

const (
	CloseBackground CloseReason = "background"
	CloseButton     CloseReason = "close"
)

// Modal is one dialog on the stack.
type Modal struct {
	Title   string
	Content template.HTML
	// OnClose runs after the modal leaves the stack through a user action.
	OnClose func(CloseReason)
	// DisableBackgroundClick ignores clicks on the overlay.
	DisableBackgroundClick bool

	level int
}

// Level is the 1-based stack position, 0 when not pushed.
func (m *Modal) Level() int { return m.level }

// ZIndex places nested modals above their parents.
func (m *Modal) ZIndex() int { return 1000 + m.level }

// ModalStack manages nested modals, last in first out.
type ModalStack struct {
	mu    sync.Mutex
	stack []*Modal
}

// Push opens m on top of the stack. An empty title defaults to "提示".
func (s *ModalStack) Push(m *Modal) *Modal {
	if m.Title == "" {
		m.Title = "提示"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stack = append(s.stack, m)
	m.level = len(s.stack)
	return m
}

// Pop removes the top modal without running OnClose.
func (s *ModalStack) Pop() *Modal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popLocked()
}

func (s *ModalStack) popLocked() *Modal {
	n := len(s.stack)
	if n == 0 {
		return nil
	}
	m := s.stack[n-1]
	s.stack[n-1] = nil
	s.stack = s.stack[:n-1]
	m.level = 0
	return m
}

// Top returns the topmost modal or nil.
func (s *ModalStack) Top() *Modal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) == 0 {
		return nil
	}
	return s.stack[len(s.stack)-1]
}

func (s *ModalStack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

// CloseAll pops every modal without callbacks.
func (s *ModalStack) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.stack) > 0 {
		s.popLocked()
	}
}

// Close closes the top modal for reason and runs its OnClose. A background
// close is ignored when the modal disables background clicks. It reports
// whether a modal was closed.
func (s *ModalStack) Close(reason CloseReason) bool {
	s.mu.Lock()
	top := len(s.stack)
	if top == 0 || (reason == CloseBackground && s.stack[top-1].DisableBackgroundClick) {
		s.mu.Unlock()
		return false
	}
	m := s.popLocked()
	s.mu.Unlock()

	if m.OnClose != nil {
		m.OnClose(reason)
	}
	return true
}

var modalTmpl = template.Must(template.New("modal").Parse(
	`{{range .}}<div class="yl-modal-overlay" style="z-index:{{.ZIndex}}"><div class="yl-modal-box">` +
		`<div class="yl-modal-header">{{.Title}}</div><button class="yl-modal-close">×</button>` +
		`<div class="yl-modal-content">{{.Content}}</div><div class="yl-modal-footer"></div></div></div>{{end}}`))

// Render returns the whole stack, bottom first.
func (s *ModalStack) Render() template.HTML {
	s.mu.Lock()
	stack := append([]*Modal(nil), s.stack...)
	s.mu.Unlock()
	return renderTemplate(modalTmpl, stack)
}
