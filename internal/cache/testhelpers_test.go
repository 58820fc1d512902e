package cache

import (
	"path/filepath"
	"testing"

	internaldb "github.com/eargollo/mediasort/internal/db"
)

// mustOpenCache opens a fresh, migrated SQLite database in a temp dir and
// wraps it in a Cache.
func mustOpenCache(tb testing.TB) *Cache {
	tb.Helper()
	dbPath := filepath.Join(tb.TempDir(), "cache.db")
	sqlDB, err := internaldb.Open(dbPath)
	if err != nil {
		tb.Fatalf("open db: %v", err)
	}
	tb.Cleanup(func() { sqlDB.Close() })
	if err := internaldb.RunMigrations(sqlDB); err != nil {
		tb.Fatalf("run migrations: %v", err)
	}
	return New(sqlDB, dbPath)
}
