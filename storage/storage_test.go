package storage

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ylai/autoplatform/logger"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	if _, ok, _ := m.Get(ctx, "yl_token"); ok {
		t.Fatal("empty store reported a key")
	}
	_ = m.Set(ctx, "yl_token", "abc")
	_ = m.Set(ctx, "auth_token", "abc")
	if v, ok, _ := m.Get(ctx, "yl_token"); !ok || v != "abc" {
		t.Errorf("Get = %q, %v", v, ok)
	}

	keys, _ := m.Keys(ctx)
	if diff := cmp.Diff([]string{"auth_token", "yl_token"}, keys); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}

	_ = m.Remove(ctx, "yl_token")
	_ = m.Remove(ctx, "missing")
	if _, ok, _ := m.Get(ctx, "yl_token"); ok {
		t.Error("key survived Remove")
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	type theme struct {
		Name string `json:"name"`
	}
	if err := SetJSON(ctx, m, "ylai-theme", theme{Name: "dark"}); err != nil {
		t.Fatal(err)
	}
	got, ok, err := GetJSON[theme](ctx, m, "ylai-theme")
	if err != nil || !ok || got.Name != "dark" {
		t.Errorf("GetJSON = %+v, %v, %v", got, ok, err)
	}

	_ = m.Set(ctx, "broken", "{")
	if _, _, err := GetJSON[theme](ctx, m, "broken"); err == nil {
		t.Error("expected decode error")
	}
	if _, ok, err := GetJSON[theme](ctx, m, "absent"); ok || err != nil {
		t.Errorf("absent key: ok=%v err=%v", ok, err)
	}
}

func TestConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default memory", Config{}, false},
		{"local gets default path", Config{Provider: ProviderLocal}, false},
		{"badger in memory", Config{Provider: ProviderBadger, InMemory: true}, false},
		{"redis", Config{Provider: ProviderRedis}, false},
		{"unknown", Config{Provider: "s3"}, true},
		{"negative db", Config{Provider: ProviderRedis, DB: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			cfg.ApplyDefaults()
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewUsesFactory(t *testing.T) {
	s, err := New(Config{}, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Memory); !ok {
		t.Errorf("default provider built %T", s)
	}

	if _, err := New(Config{Provider: ProviderBadger, InMemory: true}, logger.NewNop()); err == nil {
		t.Error("badger is not registered without its import")
	}
}

func TestComponentLifecycle(t *testing.T) {
	ctx := context.Background()
	c := NewComponent(Config{}, logger.NewNop())
	if h := c.Health(ctx); h.Status != "unhealthy" {
		t.Errorf("health before start = %s", h.Status)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if h := c.Health(ctx); h.Status != "healthy" {
		t.Errorf("health after start = %s", h.Status)
	}
	if d := c.Describe(); d.Details != "provider=memory" {
		t.Errorf("Describe = %+v", d)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if c.Store() != nil {
		t.Error("store kept after Stop")
	}
}
