package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-realtime/internal/http/middleware"
)

// ErrorResponse is the error envelope every endpoint returns.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable snake_case code from errors.go
	Code    string `json:"code" example:"not_member"`
	Message string `json:"message" example:"not a member of this conversation"`
}

// fail aborts with the envelope. Server errors are logged at error level;
// access denials at debug with the caller id, which makes probing for
// foreign conversation ids visible without flooding the log.
func fail(c *gin.Context, status int, code, msg string) {
	var ev *zerolog.Event
	lg := middleware.LoggerFrom(c)
	switch {
	case status >= http.StatusInternalServerError:
		ev = lg.Error()
	case status == http.StatusForbidden || status == http.StatusUnauthorized:
		ev = lg.Debug().Str("user_id", middleware.UserID(c))
	}
	if ev != nil {
		ev.Int("status", status).Str("code", code).Str("path", c.FullPath()).Msg(msg)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer NoRoute/NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
