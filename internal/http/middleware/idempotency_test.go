package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type lookupCall struct {
	user, conversation, key string
}

func TestIdempotencyValidator(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name     string
		opts     IdempotencyOptions
		user     string
		key      string
		hit      bool
		status   int
		wantCall *lookupCall
		replay   bool
	}{
		{name: "no header passes through", user: "alice", status: http.StatusCreated},
		{name: "too long", opts: IdempotencyOptions{MaxLen: 5}, key: "abcdef", status: http.StatusBadRequest},
		{name: "default max length", key: strings.Repeat("k", 201), status: http.StatusBadRequest},
		{name: "bad characters", key: "has space", status: http.StatusBadRequest},
		{name: "custom pattern", opts: IdempotencyOptions{Pattern: regexp.MustCompile(`^[0-9]+$`)}, key: "abc", status: http.StatusBadRequest},
		{name: "anonymous skips lookup", key: "k-1", status: http.StatusCreated},
		{
			name: "miss", user: "alice", key: "k-1", status: http.StatusCreated,
			wantCall: &lookupCall{"alice", "c1", "k-1"},
		},
		{
			name: "stored result flags replay", user: "alice", key: "k-1", hit: true, status: http.StatusCreated,
			wantCall: &lookupCall{"alice", "c1", "k-1"}, replay: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got *lookupCall
			lookup := func(_ context.Context, user, conversation, key string, now time.Time) (bool, error) {
				if now.Location() != time.UTC {
					t.Errorf("lookup time not UTC")
				}
				got = &lookupCall{user, conversation, key}
				return tc.hit, nil
			}

			r := gin.New()
			r.Use(func(c *gin.Context) {
				if tc.user != "" {
					c.Set(ctxKeyUser, tc.user)
				}
				c.Next()
			})
			r.Use(IdempotencyValidator(tc.opts, lookup))
			r.POST("/conversations/:id/messages", func(c *gin.Context) {
				k, ok := GetIdempotencyKey(c)
				if ok != (tc.key != "") || k != tc.key {
					t.Errorf("stashed key=%q ok=%v", k, ok)
				}
				if IsReplay(c) != tc.replay || IsRateBypass(c) != tc.replay {
					t.Errorf("replay=%v bypass=%v want %v", IsReplay(c), IsRateBypass(c), tc.replay)
				}
				c.Status(http.StatusCreated)
			})

			req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", nil)
			if tc.key != "" {
				req.Header.Set(HeaderIdempotencyKey, tc.key)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.status {
				t.Fatalf("status=%d want %d body=%s", w.Code, tc.status, w.Body.String())
			}
			if tc.status == http.StatusBadRequest && !strings.Contains(w.Body.String(), `"bad_idempotency_key"`) {
				t.Fatalf("body=%s", w.Body.String())
			}
			if (got == nil) != (tc.wantCall == nil) || (got != nil && *got != *tc.wantCall) {
				t.Fatalf("lookup call=%+v want %+v", got, tc.wantCall)
			}
		})
	}
}

func TestIdempotencyValidator_LookupErrorIsMiss(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Set(ctxKeyUser, "alice"); c.Next() })
	r.Use(IdempotencyValidator(IdempotencyOptions{}, func(context.Context, string, string, string, time.Time) (bool, error) {
		return true, context.DeadlineExceeded
	}))
	r.POST("/conversations/:id/messages", func(c *gin.Context) {
		if IsReplay(c) {
			t.Errorf("errored lookup treated as replay")
		}
		c.Status(http.StatusCreated)
	})
	req := httptest.NewRequest(http.MethodPost, "/conversations/c1/messages", nil)
	req.Header.Set(HeaderIdempotencyKey, "k-2")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestIdempotencyHelpers_WrongTypes(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(ctxKeyIdemKey, 123)
	c.Set(ctxKeyIdemReplay, "yes")
	if _, ok := GetIdempotencyKey(c); ok {
		t.Fatalf("non-string key accepted")
	}
	if IsReplay(c) {
		t.Fatalf("non-bool replay accepted")
	}
}
