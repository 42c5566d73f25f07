// Package services – GroupService
//
// This file implements group lifecycle: create, rename, add and remove
// members, leave and delete. Recipients that stop being members as a result
// of the write (removed, leaving, deleted) are captured before the write so
// they can still be told about it afterwards.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/realtime"
	"github.com/tbourn/go-chat-realtime/internal/repo"
)

// GroupService implements the group use-cases.
type GroupService struct {
	DB    *gorm.DB
	Coord *Coordinator

	// NameMaxLen caps group names by rune length.
	NameMaxLen int
}

// NewGroupService constructs a GroupService with default limits.
func NewGroupService(db *gorm.DB, c *Coordinator) *GroupService {
	return &GroupService{DB: db, Coord: c, NameMaxLen: 100}
}

// GroupPatch carries the optional fields of an update.
type GroupPatch struct {
	Name      *string
	AvatarURL *string
}

// Create makes ownerID the owner of a new group with the given members.
// Every initial member's connections join the room and each member is sent
// group_created on their user channel.
func (s *GroupService) Create(ctx context.Context, ownerID, name, avatarURL string, memberIDs []string) (*GroupView, error) {
	name = clip(normalizeName(name), s.NameMaxLen)
	others := lo.Uniq(lo.Without(lo.Compact(memberIDs), ownerID))
	if name == "" || len(others) == 0 {
		return nil, ErrInvalidGroup
	}

	var view *GroupView
	err := s.Coord.Run(ctx, "GroupService.Create", func(ctx context.Context) (Outcome, error) {
		if err := s.requireUsers(ctx, others); err != nil {
			return Outcome{}, err
		}
		conv, err := repo.CreateGroup(ctx, s.DB, ownerID, name, strings.TrimSpace(avatarURL), others)
		if err != nil {
			return Outcome{}, err
		}
		all := append([]string{ownerID}, others...)
		view = &GroupView{Conversation: *conv, Members: all}
		return Outcome{
			Membership: []MembershipChange{{ConversationID: conv.ID, Added: all}},
			Events:     []realtime.Event{realtime.GroupCreated(all, view)},
		}, nil
	})
	return view, err
}

// Update renames the group or changes its avatar. Owner only.
func (s *GroupService) Update(ctx context.Context, userID, groupID string, patch GroupPatch) (*GroupView, error) {
	updates := map[string]any{}
	if patch.Name != nil {
		name := clip(normalizeName(*patch.Name), s.NameMaxLen)
		if name == "" {
			return nil, ErrInvalidGroup
		}
		updates["name"] = name
	}
	if patch.AvatarURL != nil {
		updates["avatar_url"] = strings.TrimSpace(*patch.AvatarURL)
	}

	var view *GroupView
	err := s.Coord.Run(ctx, "GroupService.Update", func(ctx context.Context) (Outcome, error) {
		if _, err := s.ownedGroup(ctx, userID, groupID); err != nil {
			return Outcome{}, err
		}
		if len(updates) > 0 {
			if err := repo.UpdateConversation(ctx, s.DB, groupID, updates); err != nil {
				return Outcome{}, err
			}
		}
		var err error
		if view, err = s.view(ctx, groupID); err != nil {
			return Outcome{}, err
		}
		return Outcome{Events: []realtime.Event{realtime.GroupUpdated(groupID, view)}}, nil
	})
	return view, err
}

// AddMembers adds users to the group. Any member may add. It returns the ids
// that were actually added; existing members are ignored.
func (s *GroupService) AddMembers(ctx context.Context, userID, groupID string, memberIDs []string) ([]string, error) {
	candidates := lo.Uniq(lo.Without(lo.Compact(memberIDs), userID))
	if len(candidates) == 0 {
		return []string{}, nil
	}

	var added []string
	err := s.Coord.Run(ctx, "GroupService.AddMembers", func(ctx context.Context) (Outcome, error) {
		if _, err := s.memberGroup(ctx, userID, groupID); err != nil {
			return Outcome{}, err
		}
		if err := s.requireUsers(ctx, candidates); err != nil {
			return Outcome{}, err
		}
		var err error
		if added, err = repo.AddMembers(ctx, s.DB, groupID, candidates); err != nil {
			return Outcome{}, err
		}
		if len(added) == 0 {
			return Outcome{}, nil
		}
		notice := MembersAddedNotice{GroupID: groupID, AddedBy: userID, Members: added}
		return Outcome{
			Membership: []MembershipChange{{ConversationID: groupID, Added: added}},
			Events:     []realtime.Event{realtime.MembersAdded(groupID, added, notice)},
		}, nil
	})
	if added == nil && err == nil {
		added = []string{}
	}
	return added, err
}

// RemoveMember removes targetID from the group. Owner only; the owner cannot
// remove themselves.
func (s *GroupService) RemoveMember(ctx context.Context, userID, groupID, targetID string) error {
	if userID == targetID {
		return ErrSelfAction
	}
	return s.Coord.Run(ctx, "GroupService.RemoveMember", func(ctx context.Context) (Outcome, error) {
		if _, err := s.ownedGroup(ctx, userID, groupID); err != nil {
			return Outcome{}, err
		}
		if err := repo.RemoveMember(ctx, s.DB, groupID, targetID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return Outcome{}, ErrNotMember
			}
			return Outcome{}, err
		}
		notice := MemberRemovedNotice{GroupID: groupID, RemovedBy: userID, UserID: targetID}
		return Outcome{
			Membership: []MembershipChange{{ConversationID: groupID, Removed: []string{targetID}}},
			Events: []realtime.Event{
				realtime.MemberRemoved(groupID, notice),
				realtime.RemovedFromGroup(targetID, notice),
			},
		}, nil
	})
}

// Leave removes userID from the group. The owner must delete instead.
func (s *GroupService) Leave(ctx context.Context, userID, groupID string) error {
	return s.Coord.Run(ctx, "GroupService.Leave", func(ctx context.Context) (Outcome, error) {
		conv, err := s.memberGroup(ctx, userID, groupID)
		if err != nil {
			return Outcome{}, err
		}
		if conv.OwnerID == userID {
			return Outcome{}, ErrOwnerCannotLeave
		}
		if err := repo.RemoveMember(ctx, s.DB, groupID, userID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return Outcome{}, ErrNotMember
			}
			return Outcome{}, err
		}
		notice := MemberLeftNotice{GroupID: groupID, UserID: userID}
		return Outcome{
			Membership: []MembershipChange{{ConversationID: groupID, Removed: []string{userID}}},
			Events: []realtime.Event{
				realtime.UserLeftGroup(groupID, notice),
				realtime.LeftGroup(userID, notice),
			},
		}, nil
	})
}

// Delete removes the group with its members and messages. Owner only. Every
// former member is told on their user channel.
func (s *GroupService) Delete(ctx context.Context, userID, groupID string) error {
	return s.Coord.Run(ctx, "GroupService.Delete", func(ctx context.Context) (Outcome, error) {
		if _, err := s.ownedGroup(ctx, userID, groupID); err != nil {
			return Outcome{}, err
		}
		members, err := repo.ListMemberIDs(ctx, s.DB, groupID)
		if err != nil {
			return Outcome{}, err
		}
		if err := repo.DeleteConversation(ctx, s.DB, groupID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return Outcome{}, ErrConversationNotFound
			}
			return Outcome{}, err
		}
		notice := GroupDeletedNotice{GroupID: groupID, DeletedBy: userID}
		return Outcome{
			Membership: []MembershipChange{{ConversationID: groupID, Removed: members}},
			Events:     []realtime.Event{realtime.GroupDeleted(members, notice)},
		}, nil
	})
}

// Get returns a group the caller belongs to.
func (s *GroupService) Get(ctx context.Context, userID, groupID string) (*GroupView, error) {
	if _, err := s.memberGroup(ctx, userID, groupID); err != nil {
		return nil, err
	}
	return s.view(ctx, groupID)
}

func (s *GroupService) view(ctx context.Context, groupID string) (*GroupView, error) {
	conv, err := repo.GetConversation(ctx, s.DB, groupID)
	if err != nil {
		return nil, err
	}
	members, err := repo.ListMemberIDs(ctx, s.DB, groupID)
	if err != nil {
		return nil, err
	}
	return &GroupView{Conversation: *conv, Members: members}, nil
}

// memberGroup loads a group userID belongs to.
func (s *GroupService) memberGroup(ctx context.Context, userID, groupID string) (*domain.Conversation, error) {
	conv, _, err := requireMember(ctx, s.DB, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !conv.IsGroup() {
		return nil, ErrNotGroup
	}
	return conv, nil
}

// ownedGroup loads a group owned by userID.
func (s *GroupService) ownedGroup(ctx context.Context, userID, groupID string) (*domain.Conversation, error) {
	conv, err := s.memberGroup(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	if conv.OwnerID != userID {
		return nil, ErrForbidden
	}
	return conv, nil
}

// requireUsers fails with ErrUserNotFound unless every id has a profile.
func (s *GroupService) requireUsers(ctx context.Context, ids []string) error {
	found, err := repo.ExistingUserIDs(ctx, s.DB, ids)
	if err != nil {
		return err
	}
	if missing, _ := lo.Difference(ids, found); len(missing) > 0 {
		return ErrUserNotFound
	}
	return nil
}
