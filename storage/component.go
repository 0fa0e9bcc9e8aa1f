package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/ylai/autoplatform/component"
	"github.com/ylai/autoplatform/logger"
)

// Component opens the configured Store on Start and closes it on Stop.
type Component struct {
	cfg   Config
	store Store
	log   *logger.Logger
}

func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Get("storage")
	}
	return &Component{cfg: cfg, log: log.WithComponent("storage")}
}

var _ component.Component = (*Component)(nil)

// Store returns the opened store, or nil before Start.
func (c *Component) Store() Store { return c.store }

func (c *Component) Name() string { return "storage" }

func (c *Component) Start(_ context.Context) error {
	s, err := New(c.cfg, c.log)
	if err != nil {
		return fmt.Errorf("storage start: %w", err)
	}
	c.store = s
	return nil
}

func (c *Component) Stop(_ context.Context) error {
	if c.store == nil {
		return nil
	}
	var err error
	if closer, ok := c.store.(io.Closer); ok {
		err = closer.Close()
	}
	c.store = nil
	return err
}

func (c *Component) Health(ctx context.Context) component.Health {
	if c.store == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "storage not initialized"}
	}
	if _, _, err := c.store.Get(ctx, "__health__"); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

func (c *Component) Describe() component.Description {
	details := "provider=" + c.cfg.Provider
	switch c.cfg.Provider {
	case ProviderLocal, ProviderBadger:
		if c.cfg.Path != "" {
			details += " path=" + c.cfg.Path
		}
	case ProviderRedis:
		details += " addr=" + c.cfg.Addr
	}
	return component.Description{Name: "Storage", Type: "storage", Details: details}
}
