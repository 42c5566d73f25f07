// Message HTTP handlers.
//
//   - POST  /users/{id}/messages         (direct message; creates the private conversation on first contact)
//   - PATCH /messages/{id}               (edit, sender only)
//   - POST  /messages/{id}/recall        (recall, sender only)
//   - POST  /messages/{id}/reactions     (react)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// DirectMessageResponse carries the sent message and its private conversation.
type DirectMessageResponse struct {
	Message      *domain.Message      `json:"message"`
	Conversation *domain.Conversation `json:"conversation"`
}

// EditMessageRequest is the JSON payload for editing a message.
type EditMessageRequest struct {
	Content string `json:"content" binding:"required" example:"See you at nine"`
}

// ReactRequest is the JSON payload for reacting to a message.
type ReactRequest struct {
	Type string `json:"type" binding:"required" example:"like"`
}

// ReactionResponse wraps a stored reaction.
type ReactionResponse struct {
	Reaction *domain.Reaction `json:"reaction"`
}

// SendDirect godoc
// @ID          sendDirect
// @Summary     Send a direct message to a user
// @Description Gets or creates the private conversation with the user, joins both users' live connections to it, then delivers new_message.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Recipient user ID"
// @Param       body  body  handlers.PostMessageRequest  true  "Message payload"
// @Success     201  {object}  handlers.DirectMessageResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Recipient not found"
// @Router      /users/{id}/messages [post]
func (h *Handlers) SendDirect(c *gin.Context) {
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	m, conv, err := h.Messages.SendDirect(c.Request.Context(), userID(c), c.Param("id"),
		sanitizeContent(req.Content), strings.TrimSpace(req.AttachmentURL))
	if err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusCreated, DirectMessageResponse{Message: m, Conversation: conv})
}

// EditMessage godoc
// @ID          editMessage
// @Summary     Edit my message
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Message ID (UUID)"
// @Param       body  body  handlers.EditMessageRequest  true  "New content"
// @Success     200  {object}  handlers.MessageResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Not the sender"
// @Failure     409  {object}  handlers.ErrorResponse  "Message recalled"
// @Router      /messages/{id} [patch]
func (h *Handlers) EditMessage(c *gin.Context) {
	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	m, err := h.Messages.Edit(c.Request.Context(), userID(c), c.Param("id"), sanitizeContent(req.Content))
	if err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: m})
}

// RecallMessage godoc
// @ID          recallMessage
// @Summary     Recall my message
// @Tags        Messages
// @Security    BearerAuth
// @Param       id  path  string  true  "Message ID (UUID)"
// @Success     204  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the sender"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /messages/{id}/recall [post]
func (h *Handlers) RecallMessage(c *gin.Context) {
	if err := h.Messages.Recall(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	noContent(c)
}

// React godoc
// @ID          react
// @Summary     React to a message
// @Description Allowed types: like, love, haha, wow, sad, angry.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path  string  true  "Message ID (UUID)"
// @Param       body  body  handlers.ReactRequest  true  "Reaction"
// @Success     201  {object}  handlers.ReactionResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Already reacted"
// @Router      /messages/{id}/reactions [post]
func (h *Handlers) React(c *gin.Context) {
	var req ReactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type required")
		return
	}
	r, err := h.Reactions.React(c.Request.Context(), userID(c), c.Param("id"), strings.ToLower(strings.TrimSpace(req.Type)))
	if err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusCreated, ReactionResponse{Reaction: r})
}
