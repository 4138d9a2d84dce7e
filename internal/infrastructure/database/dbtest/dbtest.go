// Package dbtest opens migrated SQLite databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/deskline/queue-api/internal/infrastructure/database"
)

// Open returns a fresh, migrated SQLite database closed at test cleanup.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	db, err := database.Connect(database.Config{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "queue.db") + "?_pragma=busy_timeout(5000)",
		LogLevel: gormlogger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, database.Migrate(context.Background(), db, zerolog.Nop()))
	return db
}
