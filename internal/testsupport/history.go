package testsupport

import (
	"testing"

	"zbridge/internal/history"
)

// MustOpenHistory opens a history store in a temp directory and closes it
// when the test ends.
func MustOpenHistory(t testing.TB) *history.Store {
	t.Helper()

	cfg := NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
