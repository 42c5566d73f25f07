// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller's identity. A bearer token (Authorization
// header, or the "token" query parameter for WebSocket clients that cannot
// set headers) is verified with the configured TokenParser. When no token is
// present and TrustUserHeader is enabled, the X-User-ID header is taken as
// is; deployments behind an authenticating gateway use that mode.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// ctxKeyUser holds the authenticated user id.
	ctxKeyUser = "userID"
	// HeaderUserID is the trusted identity header.
	HeaderUserID = "X-User-ID"
)

// TokenParser verifies a bearer token and returns its subject.
type TokenParser interface {
	Parse(token string) (userID string, err error)
}

// AuthOptions configures Authenticate.
type AuthOptions struct {
	Tokens          TokenParser
	TrustUserHeader bool
}

// Authenticate attaches the caller's identity when one is presented. It never
// rejects anonymous requests (RequireUser does that) but a token that fails
// verification is answered with 401 right away.
func Authenticate(opts AuthOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tok := bearerToken(c); tok != "" {
			if opts.Tokens == nil {
				abort(c, http.StatusUnauthorized, "unauthorized", "token authentication is not configured")
				return
			}
			uid, err := opts.Tokens.Parse(tok)
			if err != nil {
				LoggerFrom(c).Debug().Err(err).Msg("token rejected")
				abort(c, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}
			c.Set(ctxKeyUser, uid)
			c.Next()
			return
		}
		if opts.TrustUserHeader {
			if uid := strings.TrimSpace(c.GetHeader(HeaderUserID)); uid != "" {
				c.Set(ctxKeyUser, uid)
			}
		}
		c.Next()
	}
}

// RequireUser rejects requests without an identity.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if UserID(c) == "" {
			abort(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}
		c.Next()
	}
}

// UserID returns the identity attached by Authenticate, or "".
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUser); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, tok, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	return strings.TrimSpace(c.Query("token"))
}
