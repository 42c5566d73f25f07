// QR login HTTP handlers.
//
// A device without credentials creates a session, renders its payload as a
// QR code, and subscribes to the session over its WebSocket. A signed-in
// device scans the code and resolves the session; the waiting device then
// receives qr:status carrying a token for the approving user.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-realtime/internal/loginsession"
)

// LoginStatusResponse reports a session's state.
type LoginStatusResponse struct {
	SessionID string              `json:"session_id"`
	Status    loginsession.Status `json:"status"`
}

// LoginGrant is the result delivered to the waiting device.
type LoginGrant struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateLoginSession godoc
// @ID          createLoginSession
// @Summary     Start a QR login session
// @Tags        Auth
// @Produce     json
// @Success     201  {object}  loginsession.Ticket
// @Router      /auth/qr [post]
func (h *Handlers) CreateLoginSession(c *gin.Context) {
	t, err := h.Sessions.Create()
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusCreated, t)
}

// LoginSessionStatus godoc
// @ID          loginSessionStatus
// @Summary     Check a QR login session
// @Description Unknown and expired sessions both report expired.
// @Tags        Auth
// @Produce     json
// @Param       id  path  string  true  "Session ID"
// @Success     200  {object}  handlers.LoginStatusResponse
// @Router      /auth/qr/{id} [get]
func (h *Handlers) LoginSessionStatus(c *gin.Context) {
	id := c.Param("id")
	ok(c, http.StatusOK, LoginStatusResponse{SessionID: id, Status: h.Sessions.CheckStatus(id)})
}

// ResolveLoginSession godoc
// @ID          resolveLoginSession
// @Summary     Approve a QR login session
// @Description Issues a token for the caller and pushes it to the waiting device in qr:status. Single use.
// @Tags        Auth
// @Security    BearerAuth
// @Param       id  path  string  true  "Session ID"
// @Success     204  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     410  {object}  handlers.ErrorResponse  "Session unknown, completed or expired"
// @Router      /auth/qr/{id}/resolve [post]
func (h *Handlers) ResolveLoginSession(c *gin.Context) {
	id := c.Param("id")
	user := userID(c)

	// Check first so an expired session does not mint a token.
	if h.Sessions.CheckStatus(id) != loginsession.StatusPending {
		writeServiceError(c, loginsession.ErrSessionInvalid, ErrCodeInternal)
		return
	}
	token, exp, err := h.Tokens.Issue(user)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "issue token")
		return
	}
	if err := h.Sessions.Resolve(c.Request.Context(), id, LoginGrant{UserID: user, Token: token, ExpiresAt: exp}); err != nil {
		writeServiceError(c, err, ErrCodeInternal)
		return
	}
	noContent(c)
}
