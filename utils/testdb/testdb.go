// Package testdb opens an isolated in-memory database migrated with the
// production schema.
package testdb

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"outreach/config"
)

// Open returns a fresh database for one test. A single connection keeps the
// in-memory database alive and shared across the test's goroutines.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := config.GormConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)

	db, err := gorm.Open(sqlite.Open("file::memory:?_foreign_keys=on"), cfg)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("test database handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := config.MigrateDB(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}
