// Package services – ReactionService
//
// This file implements ReactionService, which governs how conversation
// members react to messages. It enforces business rules (allowed reaction
// types, message existence, membership, uniqueness per type) and emits
// new_reaction to the conversation room after the insert commits.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/realtime"
	"github.com/tbourn/go-chat-realtime/internal/repo"
)

// ReactionTypes is the set of accepted reaction types.
var ReactionTypes = map[string]struct{}{
	"like":  {},
	"love":  {},
	"haha":  {},
	"wow":   {},
	"sad":   {},
	"angry": {},
}

// ReactionService implements the use-cases around message reactions.
type ReactionService struct {
	DB    *gorm.DB
	Coord *Coordinator
}

// React records userID's reaction of the given type on a message.
//
// Validation:
//   - kind must be one of ReactionTypes; otherwise ErrInvalidReaction.
//   - messageID must exist; otherwise ErrMessageNotFound.
//   - the message must not be recalled; otherwise ErrMessageRecalled.
//   - userID must be a member of the message's conversation; otherwise
//     ErrNotMember.
//   - a user reacts with a given type at most once; otherwise
//     ErrDuplicateReaction.
func (s *ReactionService) React(ctx context.Context, userID, messageID, kind string) (*domain.Reaction, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if _, ok := ReactionTypes[kind]; !ok {
		return nil, ErrInvalidReaction
	}

	var reaction *domain.Reaction
	err := s.Coord.Run(ctx, "ReactionService.React", func(ctx context.Context) (Outcome, error) {
		msg, err := repo.GetMessage(ctx, s.DB, messageID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return Outcome{}, ErrMessageNotFound
			}
			return Outcome{}, err
		}
		if msg.Recalled() {
			return Outcome{}, ErrMessageRecalled
		}
		if _, _, err := requireMember(ctx, s.DB, msg.ConversationID, userID); err != nil {
			return Outcome{}, err
		}

		reaction, err = repo.CreateReaction(ctx, s.DB, messageID, userID, kind)
		if err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return Outcome{}, ErrDuplicateReaction
			}
			return Outcome{}, err
		}
		return Outcome{Events: []realtime.Event{realtime.ReactionAdded(msg.ConversationID, ReactionNotice{
			ID:             reaction.ID,
			MessageID:      messageID,
			ConversationID: msg.ConversationID,
			UserID:         userID,
			Type:           kind,
		})}}, nil
	})
	return reaction, err
}
