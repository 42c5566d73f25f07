package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// ListConversationIDsForUser returns the ids of every live conversation
// userID currently belongs to.
func ListConversationIDsForUser(ctx context.Context, db *gorm.DB, userID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.ConversationMember{}).
		Joins("JOIN conversations c ON c.id = conversation_members.conversation_id AND c.deleted_at IS NULL").
		Where("conversation_members.user_id = ?", userID).
		Order("conversation_members.conversation_id").
		Pluck("conversation_members.conversation_id", &ids).Error
	return ids, err
}

// ListMemberIDs returns the user ids of every current member of a
// conversation.
func ListMemberIDs(ctx context.Context, db *gorm.DB, conversationID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.ConversationMember{}).
		Where("conversation_id = ?", conversationID).
		Order("user_id").
		Pluck("user_id", &ids).Error
	return ids, err
}

// GetMember returns the membership row for (conversationID, userID), or
// ErrNotFound.
func GetMember(ctx context.Context, db *gorm.DB, conversationID, userID string) (*domain.ConversationMember, error) {
	var m domain.ConversationMember
	err := db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// AddMembers inserts member rows for userIDs and returns the ids that were
// not already members. Existing memberships are left untouched.
func AddMembers(ctx context.Context, db *gorm.DB, conversationID string, userIDs []string) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var added []string
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []string
		if err := tx.Model(&domain.ConversationMember{}).
			Where("conversation_id = ? AND user_id IN ?", conversationID, userIDs).
			Pluck("user_id", &existing).Error; err != nil {
			return err
		}
		seen := make(map[string]struct{}, len(existing))
		for _, id := range existing {
			seen[id] = struct{}{}
		}
		now := time.Now().UTC()
		rows := make([]domain.ConversationMember, 0, len(userIDs))
		for _, id := range userIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			rows = append(rows, domain.ConversationMember{
				ConversationID: conversationID,
				UserID:         id,
				Role:           domain.RoleMember,
				JoinedAt:       now,
			})
			added = append(added, id)
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// RemoveMember deletes the membership row. It returns ErrNotFound when the
// user was not a member.
func RemoveMember(ctx context.Context, db *gorm.DB, conversationID, userID string) error {
	res := db.WithContext(ctx).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Delete(&domain.ConversationMember{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetClearedAt sets the member's clear marker.
func SetClearedAt(ctx context.Context, db *gorm.DB, conversationID, userID string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.ConversationMember{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Update("cleared_at", at)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MembershipStore adapts the membership queries to the realtime layer's
// store contract.
type MembershipStore struct {
	DB *gorm.DB
}

// ListConversationIDsForUser implements realtime.MembershipStore.
func (s MembershipStore) ListConversationIDsForUser(ctx context.Context, userID string) ([]string, error) {
	return ListConversationIDsForUser(ctx, s.DB, userID)
}

// ListMemberIDs implements realtime.MembershipStore.
func (s MembershipStore) ListMemberIDs(ctx context.Context, conversationID string) ([]string, error) {
	return ListMemberIDs(ctx, s.DB, conversationID)
}
