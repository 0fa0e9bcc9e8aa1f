package main

import (
	"io"

	"github.com/ylai/autoplatform/auth"
	"github.com/ylai/autoplatform/bus"
	"github.com/ylai/autoplatform/console"
	"github.com/ylai/autoplatform/httpclient"
	"github.com/ylai/autoplatform/redis"
	"github.com/ylai/autoplatform/storage"

	// Store providers selectable through storage.provider.
	_ "github.com/ylai/autoplatform/storage/badger"
	_ "github.com/ylai/autoplatform/storage/local"
)

// session is the backend client of the client-side commands. Requests
// carry the token saved by `ylai login`.
type session struct {
	client  *httpclient.Client
	auth    *auth.Manager
	console *console.Console
	store   storage.Store
	events  *bus.Bus
}

// TaskProgress is published on bus.KeyTaskProgress for every node update
// of a watched task.
type TaskProgress struct {
	TaskID   string `json:"task_id"`
	NodeID   string `json:"node_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

func (c *cli) openSession() (*session, error) {
	return openSession(c.cfg)
}

func openSession(cfg *Config) (*session, error) {
	store, err := storage.New(cfg.Storage, nil)
	if err != nil {
		return nil, err
	}
	mgr, err := auth.NewManager(cfg.Auth, store)
	if err != nil {
		closeStore(store)
		return nil, err
	}
	client, err := httpclient.New(cfg.Client, httpclient.WithTokenSource(mgr))
	if err != nil {
		closeStore(store)
		return nil, err
	}
	mgr.UseClient(client)
	return &session{
		client:  client,
		auth:    mgr,
		console: console.New(client),
		store:   store,
		events:  newBus(store),
	}, nil
}

// newBus shares the session store. A redis store also carries the
// notifications, so other processes on the same redis see them.
func newBus(store storage.Store) *bus.Bus {
	if rs, ok := store.(*redis.Store); ok {
		return bus.New(store, bus.WithTransport(redis.NewPubSub(rs.Client())))
	}
	return bus.New(store)
}

func (s *session) roleTopic() *bus.Topic[string] {
	return bus.NewTopic[string](s.events, bus.KeyRole)
}

func (s *session) engineTopic() *bus.Topic[string] {
	return bus.NewTopic[string](s.events, bus.KeyEngine)
}

func (s *session) progressTopic() *bus.Topic[TaskProgress] {
	return bus.NewTopic[TaskProgress](s.events, bus.KeyTaskProgress)
}

func (s *session) Close() {
	closeStore(s.store)
}

func closeStore(s storage.Store) {
	if closer, ok := s.(io.Closer); ok {
		_ = closer.Close()
	}
}
