package repository

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tradecopier/copier/internal/database"
)

// newSQLiteDB opens a fresh in-memory sqlite database and runs the same
// AutoMigrate pass database.Init runs against postgres in production, so
// repository behavior is exercised against a real (if embedded) SQL engine
// rather than a mocked driver. Each test gets its own database via
// ":memory:" plus cache=shared, since a bare ":memory:" DSN drops the
// schema the moment gorm's connection pool opens a second connection.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	// _foreign_keys=1 makes the mattn/go-sqlite3 driver enforce FK
	// constraints the way postgres does by default, so Delete's
	// RESTRICT-violation path is actually exercised against this handle.
	// TranslateError mirrors the postgres test helper so gorm surfaces
	// ErrForeignKeyViolated/ErrDuplicatedKey instead of a raw driver error.
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&_foreign_keys=1"), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open in-memory sqlite db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed to migrate sqlite schema: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}
