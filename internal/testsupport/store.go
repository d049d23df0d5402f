package testsupport

import (
	"testing"

	"routekeeper/internal/config"
	"routekeeper/internal/kvstore"
)

// MustOpenStore opens the key-value store for cfg and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *kvstore.Store {
	t.Helper()

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	store, err := kvstore.Open(cfg.StorePath())
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
