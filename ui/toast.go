package ui

import (
	"html/template"
	"strings"
	"sync"
	"time"
)

// ToastType selects a toast's colour.
type ToastType string

const (
	ToastInfo    ToastType = "info"
	ToastSuccess ToastType = "success"
	ToastError   ToastType = "error"
)

// DefaultToastDuration is how long a toast stays visible.
const DefaultToastDuration = 2200 * time.Millisecond

// Color is the background used for t; unknown types render as info.
func (t ToastType) Color() string {
	switch t {
	case ToastError:
		return "#ff7b7b"
	case ToastSuccess:
		return "#42e695"
	default:
		return "#2563eb"
	}
}

// Toast is a transient notification.
type Toast struct {
	ID        int
	Message   string
	Type      ToastType
	Duration  time.Duration
	ExpiresAt time.Time
}

// Toaster queues toasts and drops them once they expire.
type Toaster struct {
	mu     sync.Mutex
	nextID int
	items  []Toast
	now    func() time.Time
}

// NewToaster returns an empty queue.
func NewToaster() *Toaster {
	return &Toaster{now: time.Now}
}

// Show enqueues a toast. A zero duration means DefaultToastDuration and an
// empty type means info.
func (t *Toaster) Show(msg string, typ ToastType, d time.Duration) Toast {
	if typ == "" {
		typ = ToastInfo
	}
	if d <= 0 {
		d = DefaultToastDuration
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	toast := Toast{ID: t.nextID, Message: msg, Type: typ, Duration: d, ExpiresAt: t.now().Add(d)}
	t.items = append(t.items, toast)
	return toast
}

// Active returns unexpired toasts, oldest first, and forgets expired ones.
func (t *Toaster) Active() []Toast {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	kept := t.items[:0]
	for _, item := range t.items {
		if now.Before(item.ExpiresAt) {
			kept = append(kept, item)
		}
	}
	t.items = kept
	return append([]Toast(nil), kept...)
}

// Fading reports whether toast is in its last 400ms.
func (t *Toaster) Fading(toast Toast) bool {
	return !t.now().Before(toast.ExpiresAt.Add(-400 * time.Millisecond))
}

var toastTmpl = template.Must(template.New("toast").Parse(
	`<div class="yl-toast yl-toast-{{.Type}}" style="background:{{.Color}};opacity:{{.Opacity}}">{{.Message}}</div>`))

// Render returns the active toasts as HTML.
func (t *Toaster) Render() template.HTML {
	var sb strings.Builder
	for _, toast := range t.Active() {
		opacity := "0.96"
		if t.Fading(toast) {
			opacity = "0.2"
		}
		sb.WriteString(string(renderTemplate(toastTmpl, map[string]any{
			"Type":    string(toast.Type),
			"Color":   template.CSS(toast.Type.Color()),
			"Opacity": template.CSS(opacity),
			"Message": toast.Message,
		})))
	}
	return template.HTML(sb.String())
}
