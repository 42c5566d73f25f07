package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-realtime/internal/auth"
	"github.com/tbourn/go-chat-realtime/internal/http/middleware"
	"github.com/tbourn/go-chat-realtime/internal/loginsession"
	"github.com/tbourn/go-chat-realtime/internal/realtime"
	"github.com/tbourn/go-chat-realtime/internal/repo"
	"github.com/tbourn/go-chat-realtime/internal/services"
)

// ---------- test plumbing ----------

const testSecret = "handler-test-secret-0123456789"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// api is a fully wired handler stack over an in-memory store.
type api struct {
	db     *gorm.DB
	hub    *realtime.Hub
	tokens *auth.Issuer
	engine *gin.Engine
}

func newAPI(t *testing.T, users ...string) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newTestDB(t)
	for _, id := range users {
		if _, err := repo.EnsureUser(context.Background(), db, id, id); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	hub := realtime.NewHub(repo.MembershipStore{DB: db}, realtime.Options{})
	t.Cleanup(hub.Close)
	coord := services.NewCoordinator(hub, hub)
	tokens := auth.NewIssuer(testSecret, time.Hour, "test")

	h := New(Deps{
		Conversations: services.NewConversationService(db, coord),
		Messages:      &services.MessageService{DB: db, Coord: coord, Members: hub, MaxContentRunes: 100},
		Reactions:     &services.ReactionService{DB: db, Coord: coord},
		Groups:        services.NewGroupService(db, coord),
		Friends:       &services.FriendService{DB: db, Coord: coord},
		Profiles:      &services.ProfileService{DB: db, Coord: coord},
		Sessions:      loginsession.New(hub, time.Minute, "chat://login"),
		Tokens:        tokens,
		Hub:           hub,
		SocketOptions: realtime.ConnOptions{PingPeriod: time.Second},
	})

	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Authenticate(middleware.AuthOptions{Tokens: tokens, TrustUserHeader: true}))
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	r.GET("/ws", h.ServeWS)
	r.POST("/auth/qr", h.CreateLoginSession)
	r.GET("/auth/qr/:id", h.LoginSessionStatus)

	g := r.Group("", middleware.RequireUser())
	g.POST("/auth/qr/:id/resolve", h.ResolveLoginSession)
	g.POST("/users", h.EnsureUser)
	g.GET("/users/me", h.GetMe)
	g.PATCH("/users/me", h.UpdateMe)
	g.POST("/users/:id/messages", h.SendDirect)
	g.GET("/conversations", h.ListConversations)
	g.GET("/conversations/:id/messages", h.ListMessages)
	g.POST("/conversations/:id/messages", h.PostMessage)
	g.DELETE("/conversations/:id/messages", h.ClearConversation)
	g.POST("/conversations/:id/clear", h.ClearForMe)
	g.PATCH("/messages/:id", h.EditMessage)
	g.POST("/messages/:id/recall", h.RecallMessage)
	g.POST("/messages/:id/reactions", h.React)
	g.POST("/groups", h.CreateGroup)
	g.GET("/groups/:id", h.GetGroup)
	g.PATCH("/groups/:id", h.UpdateGroup)
	g.DELETE("/groups/:id", h.DeleteGroup)
	g.POST("/groups/:id/members", h.AddGroupMembers)
	g.DELETE("/groups/:id/members/:userId", h.RemoveGroupMember)
	g.POST("/groups/:id/leave", h.LeaveGroup)
	g.GET("/friends", h.ListFriends)
	g.GET("/friends/requests", h.ListFriendRequests)
	g.POST("/friends/requests", h.SendFriendRequest)
	g.POST("/friends/requests/:id/accept", h.AcceptFriendRequest)
	g.POST("/friends/requests/:id/reject", h.RejectFriendRequest)
	g.DELETE("/friends/requests/:id", h.CancelFriendRequest)

	return &api{db: db, hub: hub, tokens: tokens, engine: r}
}

// do performs a request as user (empty means anonymous) and returns the recorder.
func (a *api) do(t *testing.T, method, path, user string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set(middleware.HeaderUserID, user)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status=%d want %d body=%s", w.Code, status, w.Body.String())
	}
}

func wantCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	wantStatus(t, w, status)
	if got := decode[ErrorResponse](t, w).Code; got != code {
		t.Fatalf("code=%q want %q", got, code)
	}
}

// ---------- websocket client ----------

type wsClient struct {
	conn *websocket.Conn
}

// dial opens a socket against a live server; user travels in the trusted
// header. It waits for a pong so the connection is registered on return.
func (a *api) dial(t *testing.T, srv *httptest.Server, user string) *wsClient {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	hdr := http.Header{}
	if user != "" {
		hdr.Set(middleware.HeaderUserID, user)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(u, hdr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	c := &wsClient{conn: conn}
	t.Cleanup(func() { _ = conn.Close() })
	c.send(t, inboundFrame{Type: framePing})
	c.expect(t, replyPong)
	return c
}

func (c *wsClient) send(t *testing.T, f inboundFrame) {
	t.Helper()
	if err := c.conn.WriteJSON(f); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

// next reads one envelope, failing after two seconds.
func (c *wsClient) next(t *testing.T) (string, json.RawMessage) {
	t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := c.conn.ReadJSON(&env); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return env.Event, env.Data
}

func (c *wsClient) expect(t *testing.T, event string) json.RawMessage {
	t.Helper()
	got, data := c.next(t)
	if got != event {
		t.Fatalf("event=%q want %q (data=%s)", got, event, data)
	}
	return data
}

var errBoom = errors.New("boom")

func newTestContext(w *httptest.ResponseRecorder) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c
}

// ---------- in-process connection for frame tests ----------

type recConn struct {
	id  string
	mu  sync.Mutex
	out []realtime.Envelope
}

func (c *recConn) ID() string { return c.id }

func (c *recConn) Send(p []byte) error {
	var env struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(p, &env); err != nil {
		return err
	}
	c.mu.Lock()
	c.out = append(c.out, realtime.Envelope{Event: env.Event, Data: env.Data})
	c.mu.Unlock()
	return nil
}

func (c *recConn) last() realtime.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.out) == 0 {
		return realtime.Envelope{}
	}
	return c.out[len(c.out)-1]
}
