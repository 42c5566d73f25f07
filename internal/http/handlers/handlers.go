// Package handlers exposes the REST and WebSocket endpoints.
//
// Handlers are transport-thin: they validate input, call the application
// services through the contracts below, and translate results into HTTP
// responses. Every write that other users must see goes through a service,
// which publishes the realtime events after the write commits; handlers
// never emit events themselves.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/http/middleware"
	"github.com/tbourn/go-chat-realtime/internal/loginsession"
	"github.com/tbourn/go-chat-realtime/internal/realtime"
	"github.com/tbourn/go-chat-realtime/internal/repo"
	"github.com/tbourn/go-chat-realtime/internal/services"
	"github.com/tbourn/go-chat-realtime/internal/utils"
)

//
// Service contracts (context-aware)
//

// ConversationService lists conversations and clears history.
type ConversationService interface {
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Conversation, int64, error)
	Stats(ctx context.Context, userID string) (int64, *time.Time, error)
	ClearForEveryone(ctx context.Context, userID, conversationID string) error
	ClearForMe(ctx context.Context, userID, conversationID string) (time.Time, error)
}

// MessageService sends, edits, recalls and lists messages.
type MessageService interface {
	Send(ctx context.Context, userID, conversationID, content, attachmentURL string) (*domain.Message, error)
	SendDirect(ctx context.Context, userID, recipientID, content, attachmentURL string) (*domain.Message, *domain.Conversation, error)
	Edit(ctx context.Context, userID, messageID, content string) (*domain.Message, error)
	Recall(ctx context.Context, userID, messageID string) error
	ListPage(ctx context.Context, userID, conversationID string, page, pageSize int) ([]domain.Message, int64, error)
	Stats(ctx context.Context, userID, conversationID string) (int64, *time.Time, error)
}

// ReactionService records reactions.
type ReactionService interface {
	React(ctx context.Context, userID, messageID, kind string) (*domain.Reaction, error)
}

// GroupService manages group conversations.
type GroupService interface {
	Create(ctx context.Context, ownerID, name, avatarURL string, memberIDs []string) (*services.GroupView, error)
	Get(ctx context.Context, userID, groupID string) (*services.GroupView, error)
	Update(ctx context.Context, userID, groupID string, patch services.GroupPatch) (*services.GroupView, error)
	AddMembers(ctx context.Context, userID, groupID string, memberIDs []string) ([]string, error)
	RemoveMember(ctx context.Context, userID, groupID, targetID string) error
	Leave(ctx context.Context, userID, groupID string) error
	Delete(ctx context.Context, userID, groupID string) error
}

// FriendService manages friend requests.
type FriendService interface {
	Send(ctx context.Context, userID, recipientID string) (*domain.FriendRequest, error)
	Accept(ctx context.Context, userID, requestID string) (*domain.FriendRequest, error)
	Reject(ctx context.Context, userID, requestID string) (*domain.FriendRequest, error)
	Cancel(ctx context.Context, userID, requestID string) (*domain.FriendRequest, error)
	List(ctx context.Context, userID string) ([]repo.Friend, error)
	Pending(ctx context.Context, userID string) (incoming, outgoing []domain.FriendRequest, err error)
}

// ProfileService manages user profiles.
type ProfileService interface {
	Ensure(ctx context.Context, userID, displayName string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Update(ctx context.Context, userID string, patch services.ProfilePatch) (*domain.User, error)
}

// LoginSessions is the QR login session registry.
type LoginSessions interface {
	Create() (loginsession.Ticket, error)
	CheckStatus(sessionID string) loginsession.Status
	RegisterInterest(sessionID, connID string) error
	Resolve(ctx context.Context, sessionID string, result any) error
}

// Tokens issues and verifies bearer tokens.
type Tokens interface {
	Issue(userID string) (string, time.Time, error)
	Parse(token string) (string, error)
}

// Hub is the live connection registry.
type Hub interface {
	Register(ctx context.Context, c realtime.Conn, userID string) error
	Authenticate(ctx context.Context, connID, userID string) error
	Unregister(connID string)
}

//
// Handler wiring
//

// Deps lists the collaborators of Handlers.
type Deps struct {
	Conversations ConversationService
	Messages      MessageService
	Reactions     ReactionService
	Groups        GroupService
	Friends       FriendService
	Profiles      ProfileService
	Sessions      LoginSessions
	Tokens        Tokens
	Hub           Hub

	// IdempotencyTTL bounds how long an Idempotency-Key replays its
	// message; <= 0 means 24h.
	IdempotencyTTL time.Duration

	// SocketOptions configures accepted WebSocket connections.
	SocketOptions realtime.ConnOptions
	// AllowedOrigins restricts WebSocket upgrades by Origin; empty allows all.
	AllowedOrigins []string
}

// Handlers groups the HTTP endpoints.
type Handlers struct {
	Deps
	upgrader *websocket.Upgrader
}

// New constructs Handlers bound to d.
func New(d Deps) *Handlers {
	return &Handlers{Deps: d, upgrader: newUpgrader(d.AllowedOrigins)}
}

// userID returns the identity attached by the auth middleware. Routes that
// call it sit behind middleware.RequireUser.
func userID(c *gin.Context) string { return middleware.UserID(c) }

//
// Shared DTOs and helpers
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses page and page_size, defaulting to 1 and 20 and
// capping page_size at 100.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.QueryInt(c.Query("page"), 1, 1, 0)
	pageSize = utils.QueryInt(c.Query("page_size"), defaultPageSize, 1, maxPageSize)
	return
}

// notModified sets a weak ETag derived from (count, latest update) and
// reports whether the client's If-None-Match already matches it. The page
// parameters are part of the tag so different pages never share one.
func notModified(c *gin.Context, scope string, count int64, latest *time.Time, page, pageSize int) bool {
	var ts int64
	if latest != nil {
		ts = latest.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%d:%d:%d:%d"`, scope, count, ts, page, pageSize)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}
