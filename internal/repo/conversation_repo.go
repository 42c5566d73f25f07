// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a conversation is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// PairKey returns the order-independent key identifying the private
// conversation between a and b.
func PairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}

// CreateGroup inserts a group conversation owned by ownerID together with its
// initial membership rows. memberIDs must not contain ownerID.
func CreateGroup(ctx context.Context, db *gorm.DB, ownerID, name, avatarURL string, memberIDs []string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	c := &domain.Conversation{
		ID:        uuid.NewString(),
		Kind:      domain.ConversationGroup,
		Name:      name,
		AvatarURL: avatarURL,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		rows := make([]domain.ConversationMember, 0, len(memberIDs)+1)
		rows = append(rows, domain.ConversationMember{ConversationID: c.ID, UserID: ownerID, Role: domain.RoleOwner, JoinedAt: now})
		for _, id := range memberIDs {
			rows = append(rows, domain.ConversationMember{ConversationID: c.ID, UserID: id, Role: domain.RoleMember, JoinedAt: now})
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// CreatePrivate inserts the private conversation between a and b with both
// membership rows. The pair key is unique, so a concurrent creation for the
// same pair fails with a constraint error; callers re-read with
// FindPrivateConversation.
func CreatePrivate(ctx context.Context, db *gorm.DB, a, b string) (*domain.Conversation, error) {
	now := time.Now().UTC()
	key := PairKey(a, b)
	c := &domain.Conversation{
		ID:        uuid.NewString(),
		Kind:      domain.ConversationPrivate,
		PairKey:   &key,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		rows := []domain.ConversationMember{
			{ConversationID: c.ID, UserID: a, Role: domain.RoleMember, JoinedAt: now},
			{ConversationID: c.ID, UserID: b, Role: domain.RoleMember, JoinedAt: now},
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindPrivateConversation returns the private conversation between a and b,
// or ErrNotFound.
func FindPrivateConversation(ctx context.Context, db *gorm.DB, a, b string) (*domain.Conversation, error) {
	var c domain.Conversation
	err := db.WithContext(ctx).
		Where("kind = ? AND pair_key = ?", domain.ConversationPrivate, PairKey(a, b)).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversation fetches a conversation by id, or ErrNotFound.
func GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateConversation applies column updates to a conversation. If no rows
// are affected it returns ErrNotFound.
func UpdateConversation(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchConversation bumps updated_at so conversation lists sort by activity.
func TouchConversation(ctx context.Context, db *gorm.DB, id string, at time.Time) error {
	return db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		UpdateColumn("updated_at", at).Error
}

// DeleteConversation hard-deletes a conversation; memberships, messages and
// reactions cascade. It returns ErrNotFound if nothing was deleted.
func DeleteConversation(ctx context.Context, db *gorm.DB, id string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Not every driver enforces the FK cascade (SQLite needs the pragma).
		if err := tx.Unscoped().Where("message_id IN (?)",
			tx.Model(&domain.Message{}).Select("id").Where("conversation_id = ?", id),
		).Delete(&domain.Reaction{}).Error; err != nil {
			return err
		}
		if err := tx.Unscoped().Where("conversation_id = ?", id).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("conversation_id = ?", id).Delete(&domain.ConversationMember{}).Error; err != nil {
			return err
		}
		res := tx.Unscoped().Where("id = ?", id).Delete(&domain.Conversation{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CountConversations returns how many conversations userID belongs to.
func CountConversations(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := memberConversations(db.WithContext(ctx), userID).Count(&total).Error
	return total, err
}

// ListConversationsPage returns a page of userID's conversations, most
// recently active first.
func ListConversationsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Conversation, error) {
	var out []domain.Conversation
	err := memberConversations(db.WithContext(ctx), userID).
		Order("conversations.updated_at desc, conversations.id asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func memberConversations(db *gorm.DB, userID string) *gorm.DB {
	return db.Model(&domain.Conversation{}).
		Joins("JOIN conversation_members cm ON cm.conversation_id = conversations.id").
		Where("cm.user_id = ?", userID)
}
