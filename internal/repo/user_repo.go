// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for user profiles.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// EnsureUser inserts a profile row for id if none exists and returns the
// stored row. An existing profile is returned unchanged.
func EnsureUser(ctx context.Context, db *gorm.DB, id, displayName string) (*domain.User, error) {
	now := time.Now().UTC()
	u := &domain.User{ID: id, DisplayName: displayName, CreatedAt: now, UpdatedAt: now}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(u).Error; err != nil {
		return nil, err
	}
	return GetUser(ctx, db, id)
}

// GetUser fetches a profile by id, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ExistingUserIDs returns the subset of ids that have a profile row.
func ExistingUserIDs(ctx context.Context, db *gorm.DB, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id IN ?", ids).
		Pluck("id", &out).Error
	return out, err
}

// UpdateProfile applies the given column updates to the user's profile.
// It returns ErrNotFound when the user does not exist.
func UpdateProfile(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
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
