package runner

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ylai/autoplatform/errors"
	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/resilience"
)

// ConnState is the watcher's connection state.
type ConnState string

const (
	StateConnecting   ConnState = "connecting"
	StateOpen         ConnState = "open"
	StateReconnecting ConnState = "reconnecting"
	StateClosed       ConnState = "closed"
	StateStopped      ConnState = "stopped"
)

// ErrRetriesExhausted is returned by Wait when MaxRetries consecutive
// reconnects failed.
var ErrRetriesExhausted = stderrors.New("runner: reconnect retries exhausted")

var errTaskDone = stderrors.New("task done")

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// BaseURL is the backend origin; http maps to ws and https to wss.
	BaseURL string
	// Scheme forces ws or wss regardless of BaseURL.
	Scheme string
	Engine Engine
	// Token is read on every connect; an empty token is not sent.
	Token func() string
	// MaxRetries bounds consecutive failed reconnects. Zero means unlimited.
	MaxRetries int
	// Backoff defaults to 1s doubling up to 30s.
	Backoff resilience.Backoff
	// StopWhenDone closes the stream once every node is terminal.
	StopWhenDone     bool
	HandshakeTimeout time.Duration
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// OnStatus is called for every node update that changed the task state.
func OnStatus(fn func(Message)) WatcherOption {
	return func(w *Watcher) { w.onStatus = fn }
}

// OnRaw is called with every frame as received.
func OnRaw(fn func([]byte)) WatcherOption {
	return func(w *Watcher) { w.onRaw = fn }
}

// OnState is called on every connection state change.
func OnState(fn func(ConnState)) WatcherOption {
	return func(w *Watcher) { w.onState = fn }
}

// WithTaskState feeds updates into st instead of a fresh TaskState.
func WithTaskState(st *TaskState) WatcherOption {
	return func(w *Watcher) { w.state = st }
}

// UntilDone sets StopWhenDone.
func UntilDone() WatcherOption {
	return func(w *Watcher) { w.cfg.StopWhenDone = true }
}

// Watcher follows the status stream of one task over a WebSocket. It owns a
// single goroutine and reconnects until the context is cancelled, Close is
// called, retries run out or, with StopWhenDone, the task finishes.
type Watcher struct {
	cfg    WatcherConfig
	taskID string
	state  *TaskState
	dialer *websocket.Dialer
	log    *logger.Logger

	onStatus func(Message)
	onRaw    func([]byte)
	onState  func(ConnState)

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// NewWatcher creates a watcher for taskID. Call Start to connect.
func NewWatcher(cfg WatcherConfig, taskID string, opts ...WatcherOption) *Watcher {
	if cfg.Engine == "" {
		cfg.Engine = EngineWS
	}
	if cfg.Backoff == (resilience.Backoff{}) {
		cfg.Backoff = resilience.ReconnectBackoff()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	w := &Watcher{
		cfg:    cfg,
		taskID: taskID,
		dialer: &websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout},
		log:    logger.Get("runner").WithFields(logger.Fields(logger.FieldTaskID, taskID)),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.state == nil {
		w.state = NewTaskState(taskID)
	}
	return w
}

// TaskID returns the watched task.
func (w *Watcher) TaskID() string { return w.taskID }

// State returns the task state the watcher feeds.
func (w *Watcher) State() *TaskState { return w.state }

// URL builds the WebSocket URL for the task.
func (w *Watcher) URL() (string, error) {
	if w.cfg.BaseURL == "" {
		return "", errors.MissingField("base_url")
	}
	u, err := url.Parse(w.cfg.BaseURL)
	if err != nil {
		return "", errors.InvalidFormat("base_url", "absolute URL").WithCause(err)
	}
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	if w.cfg.Scheme != "" {
		u.Scheme = w.cfg.Scheme
	}
	u.Path = w.cfg.Engine.WSPath(w.taskID)
	u.RawPath = ""
	u.RawQuery = ""
	if w.cfg.Token != nil {
		if token := w.cfg.Token(); token != "" {
			u.RawQuery = url.Values{"token": {token}}.Encode()
		}
	}
	return u.String(), nil
}

// Start connects in a background goroutine. It returns an error only when
// the URL cannot be built or the watcher was already started.
func (w *Watcher) Start(ctx context.Context) error {
	if _, err := w.URL(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return errors.Conflict("watcher already started")
	}
	w.started = true
	ctx, w.cancel = context.WithCancel(ctx)
	go w.run(ctx)
	return nil
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	w.mu.Lock()
	started, cancel := w.started, w.cancel
	w.mu.Unlock()
	if !started {
		return nil
	}
	cancel()
	<-w.done
	return nil
}

// Done is closed when the watcher has stopped.
func (w *Watcher) Done() <-chan struct{} { return w.done }

// Wait blocks until the watcher stops. It returns nil after Close, context
// cancellation or task completion, and ErrRetriesExhausted otherwise.
func (w *Watcher) Wait() error {
	<-w.done
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)

	failures := 0
	state := StateConnecting
	for {
		w.setState(state)
		connected, err := w.session(ctx)
		switch {
		case ctx.Err() != nil:
			w.setState(StateStopped)
			return
		case stderrors.Is(err, errTaskDone):
			w.log.Info("task finished, stream closed")
			w.setState(StateClosed)
			return
		}

		if connected {
			failures = 0
			w.setState(StateClosed)
		}
		failures++
		if w.cfg.MaxRetries > 0 && failures > w.cfg.MaxRetries {
			w.log.Error("giving up on task stream", logger.Fields(
				logger.FieldAttempt, failures-1, logger.FieldError, errString(err)))
			w.finish(ErrRetriesExhausted)
			w.setState(StateStopped)
			return
		}
		delay := w.cfg.Backoff.Delay(failures)
		w.log.Warn("task stream lost, reconnecting", logger.Fields(
			logger.FieldAttempt, failures, "delay", delay.String(), logger.FieldError, errString(err)))
		w.state.AppendLog(fmt.Sprintf("connection lost, retrying in %s", delay))
		if resilience.Sleep(ctx, delay) != nil {
			w.setState(StateStopped)
			return
		}
		state = StateReconnecting
	}
}

// session runs one connection. connected reports whether the handshake
// succeeded.
func (w *Watcher) session(ctx context.Context) (connected bool, err error) {
	target, err := w.URL()
	if err != nil {
		return false, err
	}
	conn, _, err := w.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = conn.Close() }()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	w.setState(StateOpen)
	w.state.AppendLog("connected to " + w.cfg.Engine.WSPath(w.taskID))
	resume, _ := json.Marshal(resumeFrame{Type: "resume", TaskID: w.taskID})
	if err := conn.WriteMessage(websocket.TextMessage, resume); err != nil {
		return true, err
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		w.handle(data)
		if w.cfg.StopWhenDone && w.state.Done() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
				time.Now().Add(time.Second))
			return true, errTaskDone
		}
	}
}

func (w *Watcher) handle(data []byte) {
	if w.onRaw != nil {
		w.onRaw(data)
	}
	m, err := ParseMessage(data)
	if err != nil {
		w.log.Warn("unparseable frame", logger.Fields(logger.FieldError, err.Error()))
		w.state.AppendLog(string(data))
		return
	}
	if !m.IsNodeUpdate() {
		w.log.Debug("stream message", logger.Fields("type", m.Type, "message", m.Message))
		w.state.AppendLog(string(data))
		return
	}
	w.state.AppendLog(fmt.Sprintf("%s: %s", m.NodeID, m.Status))
	if w.state.Apply(m) && w.onStatus != nil {
		w.onStatus(m)
	}
}

func (w *Watcher) setState(s ConnState) {
	if w.onState != nil {
		w.onState(s)
	}
}

func (w *Watcher) finish(err error) {
	w.mu.Lock()
	w.err = err
	w.mu.Unlock()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
