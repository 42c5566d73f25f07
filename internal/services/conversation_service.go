// Package services – ConversationService
//
// This file implements ConversationService: listing the caller's
// conversations and the two ways of clearing history. Clearing for everyone
// deletes the messages and emits conversation_cleared to the room; clearing
// for oneself only moves the caller's clear marker and emits chat_cleared to
// the caller's own devices.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/realtime"
	"github.com/tbourn/go-chat-realtime/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ConversationService provides conversation-level reads and history
// clearing.
type ConversationService struct {
	DB    *gorm.DB
	Coord *Coordinator
}

// NewConversationService constructs a ConversationService.
func NewConversationService(db *gorm.DB, c *Coordinator) *ConversationService {
	return &ConversationService{DB: db, Coord: c}
}

// ListPage returns a page of userID's conversations, most recent activity
// first, along with the total count.
func (s *ConversationService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Conversation, int64, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	_, pageSize, offset := pageBounds(page, pageSize)

	total, err := repo.CountConversations(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Conversation{}, 0, nil
	}

	items, err := repo.ListConversationsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Stats returns the conversation count and latest activity for ETags.
func (s *ConversationService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.ConversationsStats(ctx, s.DB, userID)
}

// ClearForEveryone deletes every message of the conversation. Any member of
// a private conversation may do so; in a group only the owner may.
func (s *ConversationService) ClearForEveryone(ctx context.Context, userID, conversationID string) error {
	return s.Coord.Run(ctx, "ConversationService.ClearForEveryone", func(ctx context.Context) (Outcome, error) {
		conv, _, err := requireMember(ctx, s.DB, conversationID, userID)
		if err != nil {
			return Outcome{}, err
		}
		if conv.IsGroup() && conv.OwnerID != userID {
			return Outcome{}, ErrForbidden
		}
		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if _, err := repo.DeleteConversationMessages(ctx, tx, conversationID); err != nil {
				return err
			}
			return repo.TouchConversation(ctx, tx, conversationID, time.Now().UTC())
		})
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Events: []realtime.Event{realtime.ConversationCleared(conversationID, ConversationClearedNotice{
			ConversationID: conversationID,
			ClearedBy:      userID,
		})}}, nil
	})
}

// ClearForMe hides the conversation's current history from userID only.
func (s *ConversationService) ClearForMe(ctx context.Context, userID, conversationID string) (time.Time, error) {
	at := time.Now().UTC()
	err := s.Coord.Run(ctx, "ConversationService.ClearForMe", func(ctx context.Context) (Outcome, error) {
		if _, _, err := requireMember(ctx, s.DB, conversationID, userID); err != nil {
			return Outcome{}, err
		}
		if err := repo.SetClearedAt(ctx, s.DB, conversationID, userID, at); err != nil {
			return Outcome{}, err
		}
		return Outcome{Events: []realtime.Event{realtime.ChatCleared(userID, ChatClearedNotice{
			ConversationID: conversationID,
			ClearedAt:      at,
		})}}, nil
	})
	return at, err
}

// requireMember loads a conversation and userID's membership in it.
func requireMember(ctx context.Context, db *gorm.DB, conversationID, userID string) (*domain.Conversation, *domain.ConversationMember, error) {
	conv, err := repo.GetConversation(ctx, db, conversationID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrConversationNotFound
		}
		return nil, nil, err
	}
	m, err := repo.GetMember(ctx, db, conversationID, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, ErrNotMember
		}
		return nil, nil, err
	}
	return conv, m, nil
}
