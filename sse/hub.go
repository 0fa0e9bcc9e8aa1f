package sse

import (
	"path/filepath"
	"sync"

	"github.com/ylai/autoplatform/logger"
)

// clientBuffer is how many events a client may lag behind before new ones
// are dropped for it.
const clientBuffer = 256

// Publisher sends events to clients; handlers depend on it rather than Hub.
type Publisher interface {
	Publish(pattern string, data []byte)
}

// Client is one connected stream.
type Client struct {
	id       string
	metadata map[string]string
	events   chan []byte
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithMetadata attaches a key-value pair to the client.
func WithMetadata(key, value string) ClientOption {
	return func(c *Client) { c.metadata[key] = value }
}

// NewClient creates a client with id.
func NewClient(id string, opts ...ClientOption) *Client {
	c := &Client{id: id, metadata: make(map[string]string), events: make(chan []byte, clientBuffer)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) ID() string { return c.id }

func (c *Client) Metadata() map[string]string { return c.metadata }

// Events yields queued payloads; it is closed when the client is removed.
func (c *Client) Events() <-chan []byte { return c.events }

func (c *Client) MetadataValue(key string) string { return c.metadata[key] }

// Send queues data and reports false when the client's buffer is full.
func (c *Client) Send(data []byte) bool {
	select {
	case c.events <- data:
		return true
	default:
		return false
	}
}

// Hub routes published events to matching clients. Run must be running for
// Register, Unregister and Publish to make progress.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	publish    chan message
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	log        *logger.Logger
}

type message struct {
	pattern string
	data    []byte
}

var _ Publisher = (*Hub)(nil)

// NewHub creates a hub. Call Run in a goroutine.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		publish:    make(chan message, clientBuffer),
		done:       make(chan struct{}),
		log:        logger.Get("sse"),
	}
}

// Run processes registrations and publications until Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.id] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client registered", logger.Fields("client_id", c.id, "clients", n))
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				close(c.events)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("client unregistered", logger.Fields("client_id", c.id, "clients", n))
		case m := <-h.publish:
			h.deliver(m)
		}
	}
}

// Stop closes every client and makes Run return. Safe to call twice.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		close(c.events)
		delete(h.clients, id)
	}
}

// Register adds c. It returns false if the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes c and closes its event channel.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish sends data to every client whose id matches the glob pattern,
// e.g. "logs:*". Slow clients miss events rather than block the hub.
func (h *Hub) Publish(pattern string, data []byte) {
	select {
	case h.publish <- message{pattern: pattern, data: data}:
	case <-h.done:
	}
}

func (h *Hub) deliver(m message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.clients {
		matched, err := filepath.Match(m.pattern, id)
		if err != nil {
			h.log.Error("bad publish pattern", logger.Fields("pattern", m.pattern, logger.FieldError, err.Error()))
			return
		}
		if matched && !c.Send(m.data) {
			h.log.Warn("client buffer full, event dropped", logger.Fields("client_id", id))
		}
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Client returns a connected client by id.
func (h *Hub) Client(id string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[id]
	return c, ok
}
