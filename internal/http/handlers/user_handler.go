// User profile HTTP handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-realtime/internal/services"
)

// EnsureUserRequest optionally sets the display name on first use.
type EnsureUserRequest struct {
	DisplayName string `json:"display_name" example:"Ada"`
}

// UpdateProfileRequest changes profile fields. Absent fields are unchanged.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Bio         *string `json:"bio,omitempty"`
}

// EnsureUser godoc
// @ID          ensureUser
// @Summary     Create my profile if missing
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.EnsureUserRequest  false  "Profile"
// @Success     200  {object}  domain.User
// @Router      /users [post]
func (h *Handlers) EnsureUser(c *gin.Context) {
	var req EnsureUserRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	u, err := h.Profiles.Ensure(c.Request.Context(), userID(c), req.DisplayName)
	if err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusOK, u)
}

// GetMe godoc
// @ID          getMe
// @Summary     Get my profile
// @Tags        Users
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.User
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/me [get]
func (h *Handlers) GetMe(c *gin.Context) {
	u, err := h.Profiles.Get(c.Request.Context(), userID(c))
	if err != nil {
		writeServiceError(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, u)
}

// UpdateMe godoc
// @ID          updateMe
// @Summary     Update my profile
// @Description The caller's own connections receive user:profile_updated.
// @Tags        Users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.UpdateProfileRequest  true  "Changes"
// @Success     200  {object}  domain.User
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /users/me [patch]
func (h *Handlers) UpdateMe(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	u, err := h.Profiles.Update(c.Request.Context(), userID(c), services.ProfilePatch{
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
		Bio:         req.Bio,
	})
	if err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusOK, u)
}
