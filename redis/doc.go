// Package redis shares console state between processes.
//
// Store implements storage.Store (registered as the "redis" provider) and
// PubSub implements bus.Transport, so two CLI sessions, or the CLI and the
// gateway, see the same token, theme and task progress:
//
//	client, _ := redis.New(redis.Config{Enabled: true, Addr: "localhost:6379"}, log)
//	b := bus.New(redis.NewStore(client), bus.WithTransport(redis.NewPubSub(client)))
package redis
