package testsupport

import (
	"testing"

	"shotsync/internal/config"
	"shotsync/internal/kvstore"
)

// MustOpenKV opens the local store for tests and registers cleanup.
func MustOpenKV(t testing.TB, cfg *config.Config) *kvstore.Store {
	t.Helper()

	store, err := kvstore.Open(cfg)
	if err != nil {
		t.Fatalf("kvstore.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
