// Package services – MessageService
//
// This file implements MessageService, which owns the lifecycle of messages:
// sending into an existing conversation, direct messages that create the
// private conversation on first contact, edits, recalls and paged history.
// Every write goes through the Coordinator so the new_message,
// message_edited and message_recalled events are emitted only after the
// write has committed.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include conversation/user identifiers and pagination parameters where
// applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/realtime"
	"github.com/tbourn/go-chat-realtime/internal/repo"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MessageService coordinates message persistence and fan-out.
type MessageService struct {
	DB      *gorm.DB
	Coord   *Coordinator
	Members MemberLookup

	// MaxContentRunes caps message length; 0 disables the check.
	MaxContentRunes int
}

// Send stores a message from userID in an existing conversation.
func (s *MessageService) Send(ctx context.Context, userID, conversationID, content, attachmentURL string) (*domain.Message, error) {
	content, err := s.validate(content, attachmentURL)
	if err != nil {
		return nil, err
	}

	var msg *domain.Message
	err = s.Coord.Run(ctx, "MessageService.Send", func(ctx context.Context) (Outcome, error) {
		conv, _, err := requireMember(ctx, s.DB, conversationID, userID)
		if err != nil {
			return Outcome{}, err
		}
		msg, err = s.persist(ctx, conversationID, userID, content, attachmentURL)
		if err != nil {
			return Outcome{}, err
		}
		var participants []string
		if !conv.IsGroup() {
			participants = s.participants(ctx, conversationID)
		}
		return Outcome{Events: []realtime.Event{realtime.NewMessage(conversationID, msg, participants...)}}, nil
	})
	return msg, err
}

// SendDirect sends a private message from userID to recipientID, creating
// their private conversation on first contact. Both participants' live
// connections are joined to the new room before new_message goes out.
func (s *MessageService) SendDirect(ctx context.Context, userID, recipientID, content, attachmentURL string) (*domain.Message, *domain.Conversation, error) {
	if userID == recipientID {
		return nil, nil, ErrSelfAction
	}
	content, err := s.validate(content, attachmentURL)
	if err != nil {
		return nil, nil, err
	}

	var (
		msg  *domain.Message
		conv *domain.Conversation
	)
	err = s.Coord.Run(ctx, "MessageService.SendDirect", func(ctx context.Context) (Outcome, error) {
		if _, err := repo.GetUser(ctx, s.DB, recipientID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return Outcome{}, ErrUserNotFound
			}
			return Outcome{}, err
		}

		var created bool
		conv, created, err = s.privateConversation(ctx, userID, recipientID)
		if err != nil {
			return Outcome{}, err
		}
		msg, err = s.persist(ctx, conv.ID, userID, content, attachmentURL)
		if err != nil {
			return Outcome{}, err
		}

		out := Outcome{Events: []realtime.Event{realtime.NewMessage(conv.ID, msg, userID, recipientID)}}
		if created {
			out.Membership = []MembershipChange{{ConversationID: conv.ID, Added: []string{userID, recipientID}}}
		}
		return out, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return msg, conv, nil
}

// Edit replaces the content of userID's own message.
func (s *MessageService) Edit(ctx context.Context, userID, messageID, content string) (*domain.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return nil, ErrTooLong
	}

	var msg *domain.Message
	err := s.Coord.Run(ctx, "MessageService.Edit", func(ctx context.Context) (Outcome, error) {
		m, err := s.ownMessage(ctx, userID, messageID)
		if err != nil {
			return Outcome{}, err
		}
		if err := repo.EditMessage(ctx, s.DB, m.ID, content, time.Now().UTC()); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return Outcome{}, ErrMessageRecalled
			}
			return Outcome{}, err
		}
		if msg, err = repo.GetMessage(ctx, s.DB, m.ID); err != nil {
			return Outcome{}, err
		}
		return Outcome{Events: []realtime.Event{realtime.MessageEdited(msg.ConversationID, msg)}}, nil
	})
	return msg, err
}

// Recall withdraws userID's own message. Its row stays for ordering but its
// content is removed.
func (s *MessageService) Recall(ctx context.Context, userID, messageID string) error {
	return s.Coord.Run(ctx, "MessageService.Recall", func(ctx context.Context) (Outcome, error) {
		m, err := s.ownMessage(ctx, userID, messageID)
		if err != nil {
			return Outcome{}, err
		}
		if err := repo.RecallMessage(ctx, s.DB, m.ID, userID, time.Now().UTC()); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return Outcome{}, ErrMessageRecalled
			}
			return Outcome{}, err
		}
		return Outcome{Events: []realtime.Event{realtime.MessageRecalled(m.ConversationID, MessageRecalledNotice{
			MessageID:      m.ID,
			ConversationID: m.ConversationID,
			RecalledBy:     userID,
		})}}, nil
	})
}

// ListPage returns paginated messages of a conversation as seen by userID:
// messages before the caller's clear marker are hidden.
func (s *MessageService) ListPage(ctx context.Context, userID, conversationID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	_, pageSize, offset := pageBounds(page, pageSize)

	_, member, err := requireMember(ctx, s.DB, conversationID, userID)
	if err != nil {
		return nil, 0, err
	}

	total, err := repo.CountMessages(ctx, s.DB, conversationID, member.ClearedAt)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, conversationID, member.ClearedAt, offset, pageSize)
	return items, total, err
}

// Stats returns the visible message count and latest update for ETags.
func (s *MessageService) Stats(ctx context.Context, userID, conversationID string) (int64, *time.Time, error) {
	_, member, err := requireMember(ctx, s.DB, conversationID, userID)
	if err != nil {
		return 0, nil, err
	}
	return repo.MessagesStats(ctx, s.DB, conversationID, member.ClearedAt)
}

func (s *MessageService) validate(content, attachmentURL string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" && strings.TrimSpace(attachmentURL) == "" {
		return "", ErrEmptyMessage
	}
	if s.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.MaxContentRunes {
		return "", ErrTooLong
	}
	return content, nil
}

// persist inserts the message and bumps the conversation's activity time in
// one transaction.
func (s *MessageService) persist(ctx context.Context, conversationID, userID, content, attachmentURL string) (*domain.Message, error) {
	var msg *domain.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		m, err := repo.CreateMessage(ctx, tx, conversationID, userID, content, attachmentURL)
		if err != nil {
			return err
		}
		msg = m
		return repo.TouchConversation(ctx, tx, conversationID, m.CreatedAt)
	})
	return msg, err
}

// privateConversation returns the private conversation of the pair,
// creating it when missing. A concurrent creation losing the unique race
// re-reads the winner's row.
func (s *MessageService) privateConversation(ctx context.Context, a, b string) (*domain.Conversation, bool, error) {
	conv, err := repo.FindPrivateConversation(ctx, s.DB, a, b)
	if err == nil {
		return conv, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return nil, false, err
	}
	conv, err = repo.CreatePrivate(ctx, s.DB, a, b)
	if err == nil {
		return conv, true, nil
	}
	if existing, ferr := repo.FindPrivateConversation(ctx, s.DB, a, b); ferr == nil {
		return existing, false, nil
	}
	return nil, false, err
}

// ownMessage loads a live message that userID sent and may still act on.
func (s *MessageService) ownMessage(ctx context.Context, userID, messageID string) (*domain.Message, error) {
	m, err := repo.GetMessage(ctx, s.DB, messageID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	if m.SenderID != userID {
		return nil, ErrForbidden
	}
	if m.Recalled() {
		return nil, ErrMessageRecalled
	}
	if _, _, err := requireMember(ctx, s.DB, m.ConversationID, userID); err != nil {
		return nil, err
	}
	return m, nil
}

// participants resolves the members of a private conversation for user
// channel delivery. A lookup failure only narrows delivery to the room.
func (s *MessageService) participants(ctx context.Context, conversationID string) []string {
	var (
		ids []string
		err error
	)
	if s.Members != nil {
		ids, err = s.Members.MembersOf(ctx, conversationID)
	} else {
		ids, err = repo.ListMemberIDs(ctx, s.DB, conversationID)
	}
	if err != nil {
		log.Warn().Err(err).Str("conversation_id", conversationID).Msg("participant lookup failed; delivering to room only")
		return nil
	}
	return ids
}
