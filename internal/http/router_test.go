package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-realtime/internal/auth"
	"github.com/tbourn/go-chat-realtime/internal/config"
	"github.com/tbourn/go-chat-realtime/internal/http/middleware"
	"github.com/tbourn/go-chat-realtime/internal/realtime"
	"github.com/tbourn/go-chat-realtime/internal/repo"
)

const testSecret = "router-test-secret-0123456789"

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T, users ...string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:router_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	for _, id := range users {
		if _, err := repo.EnsureUser(context.Background(), db, id, id); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func testConfig(origins ...string) config.Config {
	return config.Config{
		APIBasePath:     "/api/v1",
		RateRPS:         1000,
		RateBurst:       1000,
		MaxMessageRunes: 500,
		IdempotencyTTL:  time.Hour,
		CORS:            config.CORSConfig{AllowedOrigins: origins},
		OTEL:            config.OTELConfig{ServiceName: "test-svc"},
		Auth: config.AuthConfig{
			JWTSecret:       testSecret,
			TokenTTL:        time.Hour,
			Issuer:          "test",
			TrustUserHeader: true,
		},
		Login: config.LoginConfig{SessionTTL: time.Minute, BaseURL: "chat://login"},
	}
}

func newRouter(t *testing.T, cfg config.Config, users ...string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t, users...)
	hub := realtime.NewHub(repo.MembershipStore{DB: db}, realtime.Options{})
	t.Cleanup(hub.Close)
	r := gin.New()
	RegisterRoutes(r, db, hub, cfg)
	return r
}

func serve(r *gin.Engine, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var rd io.Reader = http.NoBody
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r := newRouter(t, testConfig())

	w := serve(r, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header")
	}

	w = serve(r, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Fatalf("GET /metrics bad: code=%d", w.Code)
	}

	if w := serve(r, http.MethodGet, "/nope", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if w := serve(r, http.MethodPost, "/health", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/swagger/index.html", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger must be off by default, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	r := newRouter(t, testConfig("http://example.com"))

	w := serve(r, http.MethodGet, "/health", nil, "Origin", "http://example.com")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_SwaggerEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.SwaggerEnabled = true
	r := newRouter(t, cfg)

	w := serve(r, http.MethodGet, "/swagger/doc.json", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "/conversations") {
		t.Fatalf("swagger doc: code=%d", w.Code)
	}
}

func TestRegisterRoutes_Identity(t *testing.T) {
	r := newRouter(t, testConfig(), "alice")

	if w := serve(r, http.MethodGet, "/api/v1/users/me", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous /users/me = %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/api/v1/users/me", nil, "Authorization", "Bearer nope"); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad token /users/me = %d", w.Code)
	}

	tok, _, err := auth.NewIssuer(testSecret, time.Hour, "test").Issue("alice")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	w := serve(r, http.MethodGet, "/api/v1/users/me", nil, "Authorization", "Bearer "+tok)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"id":"alice"`) {
		t.Fatalf("bearer /users/me = %d %s", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodGet, "/api/v1/users/me", nil, middleware.HeaderUserID, "alice")
	if w.Code != http.StatusOK {
		t.Fatalf("trusted header /users/me = %d", w.Code)
	}

	// Login sessions are public to create.
	if w := serve(r, http.MethodPost, "/api/v1/auth/qr", nil); w.Code != http.StatusCreated {
		t.Fatalf("POST /auth/qr = %d", w.Code)
	}
}

func TestRegisterRoutes_IdempotentPostAndGzip(t *testing.T) {
	r := newRouter(t, testConfig(), "alice", "bob")
	as := func(u string) []string { return []string{middleware.HeaderUserID, u} }

	w := serve(r, http.MethodPost, "/api/v1/users/bob/messages", map[string]string{"content": "hi"}, as("alice")...)
	if w.Code != http.StatusCreated {
		t.Fatalf("send direct = %d %s", w.Code, w.Body.String())
	}
	var direct struct {
		Conversation struct {
			ID string `json:"id"`
		} `json:"conversation"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &direct)
	path := "/api/v1/conversations/" + direct.Conversation.ID + "/messages"

	hdr := append(as("alice"), middleware.HeaderIdempotencyKey, "retry-1")
	first := serve(r, http.MethodPost, path, map[string]string{"content": "once"}, hdr...)
	if first.Code != http.StatusCreated {
		t.Fatalf("first post = %d %s", first.Code, first.Body.String())
	}
	second := serve(r, http.MethodPost, path, map[string]string{"content": "once"}, hdr...)
	if second.Code != http.StatusOK || second.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replay = %d replayed=%q", second.Code, second.Header().Get("Idempotency-Replayed"))
	}

	bad := append(as("alice"), middleware.HeaderIdempotencyKey, "has spaces")
	if w := serve(r, http.MethodPost, path, map[string]string{"content": "x"}, bad...); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed key = %d", w.Code)
	}

	w = serve(r, http.MethodGet, path, nil, append(as("bob"), "Accept-Encoding", "gzip")...)
	if w.Code != http.StatusOK || w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("list messages: code=%d encoding=%q", w.Code, w.Header().Get("Content-Encoding"))
	}
}

func TestRegisterRoutes_WebSocketThroughFullStack(t *testing.T) {
	r := newRouter(t, testConfig(), "alice", "bob")
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	tok, _, _ := auth.NewIssuer(testSecret, time.Hour, "test").Issue("bob")
	hdr := http.Header{}
	hdr.Set("Authorization", "Bearer "+tok)
	hdr.Set("Accept-Encoding", "gzip")
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", hdr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = conn.Close() })

	read := func() string {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var env struct {
			Event string `json:"event"`
		}
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("read: %v", err)
		}
		return env.Event
	}

	_ = conn.WriteJSON(map[string]string{"type": "ping"})
	if ev := read(); ev != "pong" {
		t.Fatalf("event=%q", ev)
	}

	w := serve(r, http.MethodPost, "/api/v1/users/bob/messages", map[string]string{"content": "hi"}, middleware.HeaderUserID, "alice")
	if w.Code != http.StatusCreated {
		t.Fatalf("send direct = %d", w.Code)
	}
	if ev := read(); ev != "new_message" {
		t.Fatalf("event=%q", ev)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}
