package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ylai/autoplatform/logger"
)

// Factory creates a Store from config. Backend packages register one in init.
type Factory func(cfg Config, log *logger.Logger) (Store, error)

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{
		ProviderMemory: func(Config, *logger.Logger) (Store, error) { return NewMemory(), nil },
	}
)

// RegisterFactory makes a provider available to New. Import the backend
// package for its side effect, e.g. _ "github.com/ylai/autoplatform/storage/local".
func RegisterFactory(provider string, f Factory) {
	factoriesMu.Lock()
	factories[provider] = f
	factoriesMu.Unlock()
}

// Providers lists registered provider names.
func Providers() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the Store selected by cfg.Provider.
func New(cfg Config, log *logger.Logger) (Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Get("storage")
	}

	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: provider %q is not registered", cfg.Provider)
	}

	l := log.WithComponent("storage")
	l.Info("initializing storage", map[string]interface{}{"provider": cfg.Provider})
	return f(cfg, l)
}
