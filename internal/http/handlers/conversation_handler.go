// Conversation HTTP handlers.
//
//   - GET    /conversations                 (paged, ETag)
//   - GET    /conversations/{id}/messages   (paged, ETag, honors the caller's clear marker)
//   - POST   /conversations/{id}/messages   (send; Idempotency-Key honored)
//   - DELETE /conversations/{id}/messages   (clear for everyone)
//   - POST   /conversations/{id}/clear      (clear for me)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// result exists for (user, conversation, key), the handler returns the
// recorded message and sets `Idempotency-Replayed: true`. No event is sent
// for a replay.
package handlers

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/http/middleware"
	"github.com/tbourn/go-chat-realtime/internal/repo"
	"github.com/tbourn/go-chat-realtime/internal/services"
)

//
// DTOs
//

// PostMessageRequest is the JSON payload for sending a message.
type PostMessageRequest struct {
	Content       string `json:"content" example:"See you at eight"`
	AttachmentURL string `json:"attachment_url,omitempty" example:"https://cdn.example.com/a/1.png"`
}

// MessageResponse wraps a single message.
type MessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse contains a page of messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// ListConversationsResponse contains a page of conversations.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

// ClearForMeResponse reports the caller's new clear marker.
type ClearForMeResponse struct {
	ConversationID string    `json:"conversation_id"`
	ClearedAt      time.Time `json:"cleared_at"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent converts CRLF/CR to LF, collapses blank-line runs and trims
// surrounding whitespace.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// conversationParam validates the :id path parameter.
func conversationParam(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "conversation id must be a UUID")
		return "", false
	}
	return id, true
}

// replay returns the message recorded for the request's idempotency key, if
// any. Only the concrete message service exposes its store.
func (h *Handlers) replay(c *gin.Context, user, conversationID string) (*domain.Message, string) {
	key, _ := middleware.GetIdempotencyKey(c)
	if key == "" {
		return nil, ""
	}
	svc, ok := h.Messages.(*services.MessageService)
	if !ok || svc.DB == nil {
		return nil, key
	}
	ctx := c.Request.Context()
	rec, err := repo.GetIdempotency(ctx, svc.DB, user, conversationID, key, time.Now().UTC())
	if err != nil || rec == nil {
		return nil, key
	}
	prev, err := repo.GetMessage(ctx, svc.DB, rec.MessageID)
	if err != nil {
		return nil, key
	}
	return prev, key
}

// remember records the message created for key. Best effort.
func (h *Handlers) remember(c *gin.Context, user, conversationID, key, messageID string) {
	if key == "" {
		return
	}
	ttl := h.IdempotencyTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if svc, ok := h.Messages.(*services.MessageService); ok && svc.DB != nil {
		if _, err := repo.CreateIdempotency(c.Request.Context(), svc.DB, user, conversationID, key, messageID, http.StatusCreated, ttl); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Msg("store idempotency key")
		}
	}
}

//
// Handlers
//

// ListConversations godoc
// @ID          listConversations
// @Summary     List my conversations
// @Description Returns the caller's private and group conversations, most recently active first.
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListConversationsResponse
// @Success     304  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	user := userID(c)
	page, pageSize := clampPagination(c)

	if count, latest, err := h.Conversations.Stats(ctx, user); err == nil {
		if notModified(c, "conversations:"+user, count, latest, page, pageSize) {
			return
		}
	}

	items, total, err := h.Conversations.ListPage(ctx, user, page, pageSize)
	if err != nil {
		writeServiceError(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: items,
		Pagination:    newPagination(page, pageSize, total),
	})
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a conversation
// @Description Returns a page of messages, oldest first. Messages before the caller's clear marker are hidden.
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Param       id         path   string  true   "Conversation ID (UUID)"  format(uuid)
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListMessagesResponse
// @Success     304  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Not a member"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /conversations/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	id, valid := conversationParam(c)
	if !valid {
		return
	}
	user := userID(c)
	page, pageSize := clampPagination(c)

	if count, latest, err := h.Messages.Stats(ctx, user, id); err == nil {
		if notModified(c, "messages:"+id+":"+user, count, latest, page, pageSize) {
			return
		}
	}

	items, total, err := h.Messages.ListPage(ctx, user, id, page, pageSize)
	if err != nil {
		writeServiceError(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Send a message to a conversation
// @Description Persists the message and delivers new_message to every live connection in the conversation.
// @Description Supports idempotency via the Idempotency-Key header (same key, same message, no second event).
// @Tags        Conversations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Idempotency key for safe retries"
// @Param       id               path    string  true   "Conversation ID (UUID)"  format(uuid)
// @Param       body             body    handlers.PostMessageRequest  true  "Message payload"
// @Success     201  {object}  handlers.MessageResponse
// @Success     200  {object}  handlers.MessageResponse  "Replayed"
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     403  {object}  handlers.ErrorResponse  "Not a member"
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /conversations/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	id, valid := conversationParam(c)
	if !valid {
		return
	}
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	user := userID(c)

	prev, key := h.replay(c, user, id)
	if prev != nil {
		c.Header("Idempotency-Replayed", "true")
		ok(c, http.StatusOK, MessageResponse{Message: prev})
		return
	}

	m, err := h.Messages.Send(c.Request.Context(), user, id, sanitizeContent(req.Content), strings.TrimSpace(req.AttachmentURL))
	if err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	h.remember(c, user, id, key, m.ID)
	ok(c, http.StatusCreated, MessageResponse{Message: m})
}

// ClearConversation godoc
// @ID          clearConversation
// @Summary     Clear a conversation for everyone
// @Description Deletes every message. Group conversations require the owner. Members receive conversation_cleared.
// @Tags        Conversations
// @Security    BearerAuth
// @Param       id  path  string  true  "Conversation ID (UUID)"  format(uuid)
// @Success     204  "No Content"
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /conversations/{id}/messages [delete]
func (h *Handlers) ClearConversation(c *gin.Context) {
	id, valid := conversationParam(c)
	if !valid {
		return
	}
	if err := h.Conversations.ClearForEveryone(c.Request.Context(), userID(c), id); err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	noContent(c)
}

// ClearForMe godoc
// @ID          clearForMe
// @Summary     Clear a conversation for me
// @Description Hides the current history from the caller only. The caller's own devices receive chat_cleared.
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Conversation ID (UUID)"  format(uuid)
// @Success     200  {object}  handlers.ClearForMeResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /conversations/{id}/clear [post]
func (h *Handlers) ClearForMe(c *gin.Context) {
	id, valid := conversationParam(c)
	if !valid {
		return
	}
	at, err := h.Conversations.ClearForMe(c.Request.Context(), userID(c), id)
	if err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusOK, ClearForMeResponse{ConversationID: id, ClearedAt: at})
}
