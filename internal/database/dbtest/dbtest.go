// Package dbtest opens migrated SQLite databases for tests in other packages.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"mintoons/internal/database"
)

// New returns a migrated file-backed SQLite database in t.TempDir()
func New(t testing.TB) *database.DB {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "mintoons_test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations(context.Background(), nil); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}
