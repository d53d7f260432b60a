package db

import (
	"testing"

	"github.com/rs/zerolog"
)

// NewTestConfig returns a Config for in-memory SQLite testing.
func NewTestConfig() Config {
	return Config{Type: DialectSQLite, Path: ":memory:"}
}

// OpenTestStore opens an in-memory SQLite store with migrations applied,
// failing the test on any error.
func OpenTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(NewTestConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
