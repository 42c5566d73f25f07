package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// test DB helper: a fresh file-backed database with the full schema.
func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("repo_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedUsers(t *testing.T, db *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := EnsureUser(context.Background(), db, id, id); err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
}

func seedConversations(t *testing.T, db *gorm.DB, ids ...string) {
	t.Helper()
	now := time.Now().UTC()
	for _, id := range ids {
		c := &domain.Conversation{ID: id, Kind: domain.ConversationGroup, Name: id, OwnerID: "A", CreatedAt: now, UpdatedAt: now}
		if err := db.Create(c).Error; err != nil {
			t.Fatalf("seed conversation %s: %v", id, err)
		}
	}
}
