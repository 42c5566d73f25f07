// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// ConversationsStats returns aggregate metadata for a user's conversations:
// the number of conversations the user belongs to and the maximum UpdatedAt
// among them.
//
// When the user has no conversations, the returned count is 0 and
// maxUpdatedAt is nil.
func ConversationsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = memberConversations(db.WithContext(ctx), userID).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = memberConversations(db.WithContext(ctx), userID).
		Select("conversations.updated_at").
		Order("conversations.updated_at DESC").
		Limit(1).
		Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// MessagesStats returns aggregate metadata for the messages of a conversation
// visible after since: the number of rows and the maximum UpdatedAt.
//
// When there are no such messages, the returned count is 0 and maxUpdatedAt
// is nil.
func MessagesStats(ctx context.Context, db *gorm.DB, conversationID string, since *time.Time) (count int64, maxUpdatedAt *time.Time, err error) {
	if err = visibleMessages(db.WithContext(ctx), conversationID, since).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		UpdatedAt time.Time
	}
	if err = visibleMessages(db.WithContext(ctx), conversationID, since).
		Select("updated_at").
		Order("updated_at DESC").
		Limit(1).
		Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

