// Package httpapi wires the HTTP transport (Gin) to application services,
// the realtime hub, middleware, and route handlers. It centralizes
// cross-cutting concerns such as tracing, correlation IDs, logging/redaction,
// panic recovery, metrics, compression, CORS, security headers, identity,
// idempotency, and rate limiting.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-chat-realtime/docs"
	"github.com/tbourn/go-chat-realtime/internal/auth"
	"github.com/tbourn/go-chat-realtime/internal/config"
	"github.com/tbourn/go-chat-realtime/internal/http/handlers"
	"github.com/tbourn/go-chat-realtime/internal/http/middleware"
	"github.com/tbourn/go-chat-realtime/internal/loginsession"
	"github.com/tbourn/go-chat-realtime/internal/realtime"
	"github.com/tbourn/go-chat-realtime/internal/repo"
	"github.com/tbourn/go-chat-realtime/internal/services"
)

var corsHeaders = []string{
	"Origin", "Content-Type", "Accept", "Authorization",
	middleware.HeaderUserID, middleware.HeaderIdempotencyKey,
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. Services are built over db and publish through hub, which the
// caller owns and closes on shutdown.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII and token scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Compression (not on /ws or /metrics)
//  8. Authenticate: optional identity for everything below
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per user/IP, bypass on replay)
//  11. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, hub *realtime.Hub, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Response compression; the socket and scrape endpoints stay raw
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws", "/metrics"})))

	// 8) Identity (optional here; RequireUser guards protected groups)
	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	r.Use(middleware.Authenticate(middleware.AuthOptions{
		Tokens:          issuer,
		TrustUserHeader: cfg.Auth.TrustUserHeader,
	}))

	// 9) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID, conversationID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, conversationID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 10) Token-bucket rate limiter per user/IP; health and metrics are exempt
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).
		Skip("/health", "/metrics")
	r.Use(rl.Handler())

	// 11) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     corsHeaders,
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← db + hub
	coord := services.NewCoordinator(hub, hub)
	h := handlers.New(handlers.Deps{
		Conversations: services.NewConversationService(db, coord),
		Messages: &services.MessageService{
			DB:              db,
			Coord:           coord,
			Members:         hub,
			MaxContentRunes: cfg.MaxMessageRunes,
		},
		Reactions:      &services.ReactionService{DB: db, Coord: coord},
		Groups:         services.NewGroupService(db, coord),
		Friends:        &services.FriendService{DB: db, Coord: coord},
		Profiles:       &services.ProfileService{DB: db, Coord: coord},
		Sessions:       loginsession.New(hub, cfg.Login.SessionTTL, cfg.Login.BaseURL),
		Tokens:         issuer,
		Hub:            hub,
		IdempotencyTTL: cfg.IdempotencyTTL,
		SocketOptions: realtime.ConnOptions{
			SendBuffer:      cfg.Realtime.SendBuffer,
			PingPeriod:      cfg.Realtime.PingPeriod,
			ReadTimeout:     cfg.Realtime.ReadTimeout,
			WriteWait:       cfg.Realtime.WriteWait,
			MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
		},
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	// Realtime (anonymous connections allowed)
	r.GET("/ws", h.ServeWS)

	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)

	// Login sessions: creation and polling are public
	api.POST("/auth/qr", h.CreateLoginSession)
	api.GET("/auth/qr/:id", h.LoginSessionStatus)

	authed := api.Group("", middleware.RequireUser())
	{
		authed.POST("/auth/qr/:id/resolve", h.ResolveLoginSession)

		// Users
		authed.POST("/users", h.EnsureUser)
		authed.GET("/users/me", h.GetMe)
		authed.PATCH("/users/me", h.UpdateMe)
		authed.POST("/users/:id/messages", h.SendDirect)

		// Conversations
		authed.GET("/conversations", h.ListConversations)
		authed.GET("/conversations/:id/messages", h.ListMessages)
		authed.POST("/conversations/:id/messages", h.PostMessage)
		authed.DELETE("/conversations/:id/messages", h.ClearConversation)
		authed.POST("/conversations/:id/clear", h.ClearForMe)

		// Messages
		authed.PATCH("/messages/:id", h.EditMessage)
		authed.POST("/messages/:id/recall", h.RecallMessage)
		authed.POST("/messages/:id/reactions", h.React)

		// Groups
		authed.POST("/groups", h.CreateGroup)
		authed.GET("/groups/:id", h.GetGroup)
		authed.PATCH("/groups/:id", h.UpdateGroup)
		authed.DELETE("/groups/:id", h.DeleteGroup)
		authed.POST("/groups/:id/members", h.AddGroupMembers)
		authed.DELETE("/groups/:id/members/:userId", h.RemoveGroupMember)
		authed.POST("/groups/:id/leave", h.LeaveGroup)

		// Friends
		authed.GET("/friends", h.ListFriends)
		authed.GET("/friends/requests", h.ListFriendRequests)
		authed.POST("/friends/requests", h.SendFriendRequest)
		authed.POST("/friends/requests/:id/accept", h.AcceptFriendRequest)
		authed.POST("/friends/requests/:id/reject", h.RejectFriendRequest)
		authed.DELETE("/friends/requests/:id", h.CancelFriendRequest)
	}
}

// limitBody caps the request body size for all endpoints to maxBytes using
// http.MaxBytesReader. Requests exceeding the cap will cause downstream body
// reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
