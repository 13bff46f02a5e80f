// Package testdb opens throwaway gorm databases for tests.
package testdb

import (
	"path/filepath"
	"testing"

	"lppm/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a migrated sqlite database living in t's temp dir. The pool is
// capped at one connection, so concurrent transactions serialize the way row
// locks would serialize them on Postgres.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lppm.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Grant creates a user with the given akses string and returns its id.
func Grant(t testing.TB, db *gorm.DB, username, akses string) uint {
	t.Helper()
	u := models.User{Username: username, HashedPassword: []byte("x")}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	if err := db.Create(&models.HakAkses{UserID: u.ID, Akses: akses}).Error; err != nil {
		t.Fatalf("create akses for %s: %v", username, err)
	}
	return u.ID
}
