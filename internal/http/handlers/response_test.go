package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func TestFail_EnvelopeAndServerErrorLogging(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name    string
		status  int
		wantLog string
	}{
		{"not found is quiet", http.StatusNotFound, ""},
		{"forbidden is traced at debug", http.StatusForbidden, `"level":"debug"`},
		{"server error is logged", http.StatusInternalServerError, `"level":"error"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			lg := zerolog.New(&buf).Level(zerolog.DebugLevel)

			r := gin.New()
			r.Use(func(c *gin.Context) {
				c.Writer.Header().Set("X-Request-ID", "rid-1")
				c.Set("logger", &lg)
				c.Next()
			})
			r.GET("/x", func(c *gin.Context) {
				Fail(c, tc.status, "some_code", "went wrong")
				c.JSON(http.StatusOK, gin.H{"unreachable": true})
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

			wantStatus(t, w, tc.status)
			resp := decode[ErrorResponse](t, w)
			if resp.RequestID != "rid-1" || resp.Code != "some_code" || resp.Message != "went wrong" {
				t.Fatalf("unexpected body: %+v", resp)
			}
			if tc.wantLog == "" {
				if buf.Len() != 0 {
					t.Fatalf("unexpected log: %s", buf.String())
				}
			} else if !strings.Contains(buf.String(), tc.wantLog) {
				t.Fatalf("want %s in log: %s", tc.wantLog, buf.String())
			}
		})
	}
}

func TestSuccessHelpers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ok", func(c *gin.Context) { ok(c, http.StatusCreated, gin.H{"id": "g1"}) })
	r.GET("/empty", noContent)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ok", nil))
	wantStatus(t, w, http.StatusCreated)
	if !strings.Contains(w.Body.String(), `"id":"g1"`) {
		t.Fatalf("body=%s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/empty", nil))
	wantStatus(t, w, http.StatusNoContent)
	if w.Body.Len() != 0 {
		t.Fatalf("expected empty body")
	}
}

func TestClampPaginationAndNewPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		query          string
		page, pageSize int
	}{
		{"", 1, 20},
		{"page=0&page_size=0", 1, 1},
		{"page=3&page_size=500", 3, 100},
		{"page=x&page_size=y", 1, 20},
	}
	for _, tc := range cases {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, "/?"+tc.query, nil)
		p, ps := clampPagination(c)
		if p != tc.page || ps != tc.pageSize {
			t.Fatalf("%q: got (%d,%d) want (%d,%d)", tc.query, p, ps, tc.page, tc.pageSize)
		}
	}

	pg := newPagination(2, 10, 25)
	if pg.TotalPages != 3 || !pg.HasNext {
		t.Fatalf("unexpected pagination: %+v", pg)
	}
	if pg := newPagination(1, 10, 0); pg.TotalPages != 0 || pg.HasNext {
		t.Fatalf("empty pagination: %+v", pg)
	}
}
