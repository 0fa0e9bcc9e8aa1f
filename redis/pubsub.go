package redis

import (
	"context"
	"fmt"
	"sync"

	"github.com/ylai/autoplatform/logger"
)

// PubSub carries bus notifications between processes over Redis channels.
// It satisfies bus.Transport.
type PubSub struct {
	client *Client
	log    *logger.Logger
}

func NewPubSub(client *Client) *PubSub {
	return &PubSub{client: client, log: client.log.WithComponent("redis.pubsub")}
}

// Publish sends payload on the prefixed channel.
func (p *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := p.client.rdb.Publish(ctx, p.client.Key(channel), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %q: %w", channel, err)
	}
	return nil
}

// Subscribe delivers every message on channel to fn from a dedicated
// goroutine, in arrival order. The returned func unsubscribes and waits for
// that goroutine to exit.
func (p *PubSub) Subscribe(ctx context.Context, channel string, fn func(payload []byte)) (func(), error) {
	ps := p.client.rdb.Subscribe(ctx, p.client.Key(channel))
	// Receive blocks until the subscription is confirmed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe %q: %w", channel, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for msg := range ps.Channel() {
			fn([]byte(msg.Payload))
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := ps.Close(); err != nil {
				p.log.Warn("unsubscribe failed", logger.Fields("channel", channel, logger.FieldError, err.Error()))
			}
			wg.Wait()
		})
	}, nil
}
