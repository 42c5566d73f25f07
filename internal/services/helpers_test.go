package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-realtime/internal/realtime"
	"github.com/tbourn/go-chat-realtime/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seedUsers(t *testing.T, db *gorm.DB, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := repo.EnsureUser(context.Background(), db, id, id); err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}
}

// env bundles a database, a live hub and a coordinator publishing to it.
type env struct {
	db    *gorm.DB
	hub   *realtime.Hub
	coord *Coordinator
}

func newEnv(t *testing.T, users ...string) *env {
	t.Helper()
	db := newSvcDB(t)
	seedUsers(t, db, users...)
	hub := realtime.NewHub(repo.MembershipStore{DB: db}, realtime.Options{})
	return &env{db: db, hub: hub, coord: NewCoordinator(hub, hub)}
}

// connect registers a live connection for userID and returns it.
func (e *env) connect(t *testing.T, connID, userID string) *liveConn {
	t.Helper()
	c := &liveConn{id: connID}
	if err := e.hub.Register(context.Background(), c, userID); err != nil {
		t.Fatalf("register %s: %v", connID, err)
	}
	return c
}

// liveConn records the event names it receives.
type liveConn struct {
	id     string
	mu     sync.Mutex
	events []string
	data   []json.RawMessage
}

func (c *liveConn) ID() string { return c.id }

func (c *liveConn) Send(p []byte) error {
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(p, &env); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, env.Event)
	c.data = append(c.data, env.Data)
	return nil
}

func (c *liveConn) got() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

func (c *liveConn) count(name string) int {
	n := 0
	for _, e := range c.got() {
		if e == name {
			n++
		}
	}
	return n
}

func (c *liveConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events, c.data = nil, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
