package badger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ylai/autoplatform/logger"
	"github.com/ylai/autoplatform/storage"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	s, err := Open("", true, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	for k, v := range map[string]string{"b": "2", "a": "1", "c": "3"} {
		if err := s.Set(ctx, k, v); err != nil {
			t.Fatal(err)
		}
	}
	if v, ok, err := s.Get(ctx, "a"); err != nil || !ok || v != "1" {
		t.Errorf("Get(a) = %q, %v, %v", v, ok, err)
	}
	if err := s.Remove(ctx, "b"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := s.Get(ctx, "b"); ok {
		t.Error("b survived Remove")
	}

	keys, err := s.Keys(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "c"}, keys); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
}

func TestClosedStore(t *testing.T) {
	s, err := Open("", true, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if err := s.Set(context.Background(), "k", "v"); !errors.Is(err, storage.ErrClosed) {
		t.Errorf("Set after Close = %v", err)
	}
}

func TestOnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := storage.New(storage.Config{Provider: storage.ProviderBadger, Path: dir}, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "yl_auto_login", "1"); err != nil {
		t.Fatal(err)
	}
	_ = s.(*Store).Close()

	reopened, err := Open(dir, false, logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	if v, ok, _ := reopened.Get(ctx, "yl_auto_login"); !ok || v != "1" {
		t.Errorf("Get after reopen = %q, %v", v, ok)
	}
}
