// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// CreateMessage inserts a new message row.
func CreateMessage(ctx context.Context, db *gorm.DB, conversationID, senderID, content, attachmentURL string) (*domain.Message, error) {
	now := time.Now().UTC()
	m := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		AttachmentURL:  attachmentURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return m, db.WithContext(ctx).Create(m).Error
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// CountMessages returns the number of messages in a conversation created
// strictly after since (all messages when since is nil).
func CountMessages(ctx context.Context, db *gorm.DB, conversationID string, since *time.Time) (int64, error) {
	var total int64
	err := visibleMessages(db.WithContext(ctx), conversationID, since).Count(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC),
// restricted to messages created strictly after since when since is non-nil.
func ListMessagesPage(ctx context.Context, db *gorm.DB, conversationID string, since *time.Time, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := visibleMessages(db.WithContext(ctx), conversationID, since).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func visibleMessages(db *gorm.DB, conversationID string, since *time.Time) *gorm.DB {
	q := db.Model(&domain.Message{}).Where("conversation_id = ?", conversationID)
	if since != nil {
		q = q.Where("created_at > ?", *since)
	}
	return q
}

// EditMessage replaces the content of a non-recalled message and stamps
// edited_at. It returns ErrNotFound when no such message exists or it has
// been recalled.
func EditMessage(ctx context.Context, db *gorm.DB, id, content string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND recalled_at IS NULL", id).
		Updates(map[string]any{"content": content, "edited_at": at, "updated_at": at})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// RecallMessage blanks a message's content and records who recalled it.
// Recalling twice returns ErrNotFound.
func RecallMessage(ctx context.Context, db *gorm.DB, id, by string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND recalled_at IS NULL", id).
		Updates(map[string]any{
			"content":        "",
			"attachment_url": "",
			"recalled_at":    at,
			"recalled_by":    by,
			"updated_at":     at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteConversationMessages hard-deletes every message (and its reactions)
// in a conversation and returns how many messages were removed.
func DeleteConversationMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id IN (?)",
			tx.Model(&domain.Message{}).Select("id").Where("conversation_id = ?", conversationID),
		).Delete(&domain.Reaction{}).Error; err != nil {
			return err
		}
		res := tx.Unscoped().Where("conversation_id = ?", conversationID).Delete(&domain.Message{})
		n = res.RowsAffected
		return res.Error
	})
	return n, err
}
