// Package services – ProfileService
//
// This file implements public profile management. Profile updates are pushed
// to the subject's own user channel so their other devices refresh.
package services

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/realtime"
	"github.com/tbourn/go-chat-realtime/internal/repo"
)

// Profile field limits, in runes.
const (
	displayNameMax = 120
	bioMax         = 512
	avatarURLMax   = 512
)

// ProfileService manages user profiles.
type ProfileService struct {
	DB    *gorm.DB
	Coord *Coordinator
}

// ProfilePatch carries the optional fields of a profile update.
type ProfilePatch struct {
	DisplayName *string
	AvatarURL   *string
	Bio         *string
}

// Ensure creates the caller's profile on first use and returns it.
func (s *ProfileService) Ensure(ctx context.Context, userID, displayName string) (*domain.User, error) {
	displayName = clip(normalizeName(displayName), displayNameMax)
	if displayName == "" {
		displayName = userID
	}
	return repo.EnsureUser(ctx, s.DB, userID, displayName)
}

// Get returns a profile by id.
func (s *ProfileService) Get(ctx context.Context, userID string) (*domain.User, error) {
	u, err := repo.GetUser(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return u, err
}

// Update applies patch to userID's profile and notifies their devices.
func (s *ProfileService) Update(ctx context.Context, userID string, patch ProfilePatch) (*domain.User, error) {
	updates := map[string]any{}
	if patch.DisplayName != nil {
		name := normalizeName(*patch.DisplayName)
		if name == "" || utf8.RuneCountInString(name) > displayNameMax {
			return nil, ErrInvalidProfile
		}
		updates["display_name"] = name
	}
	if patch.AvatarURL != nil {
		v := strings.TrimSpace(*patch.AvatarURL)
		if utf8.RuneCountInString(v) > avatarURLMax {
			return nil, ErrInvalidProfile
		}
		updates["avatar_url"] = v
	}
	if patch.Bio != nil {
		v := strings.TrimSpace(*patch.Bio)
		if utf8.RuneCountInString(v) > bioMax {
			return nil, ErrInvalidProfile
		}
		updates["bio"] = v
	}

	var user *domain.User
	err := s.Coord.Run(ctx, "ProfileService.Update", func(ctx context.Context) (Outcome, error) {
		if len(updates) > 0 {
			if err := repo.UpdateProfile(ctx, s.DB, userID, updates); err != nil {
				if errors.Is(err, repo.ErrNotFound) {
					return Outcome{}, ErrUserNotFound
				}
				return Outcome{}, err
			}
		}
		var err error
		if user, err = s.Get(ctx, userID); err != nil {
			return Outcome{}, err
		}
		return Outcome{Events: []realtime.Event{realtime.ProfileUpdated(userID, user)}}, nil
	})
	return user, err
}
