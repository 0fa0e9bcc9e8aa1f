// Package bus is a small publish/subscribe layer over storage.Store.
//
// Publishing writes the JSON payload to the key (last write wins) and then
// notifies subscribers through a Transport: in-process by default, redis
// pub/sub across processes. Delivery is fire-and-forget with no ordering
// beyond what the transport gives per channel.
//
//	theme := bus.NewTopic[string](b, bus.KeyTheme)
//	stop, _ := theme.Subscribe(ctx, func(name string) { ... })
//	defer stop()
//	_ = theme.Publish(ctx, "dark")
package bus
