package services

import (
	"time"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// GroupView is a group with its member ids, as returned by the API and sent
// in group_created / group_updated.
type GroupView struct {
	domain.Conversation
	Members []string `json:"members"`
}

// MessageRecalledNotice is the message_recalled payload.
type MessageRecalledNotice struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	RecalledBy     string `json:"recalled_by"`
}

// ReactionNotice is the new_reaction payload.
type ReactionNotice struct {
	ID             string `json:"id"`
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	Type           string `json:"type"`
}

// MembersAddedNotice is the group-members-added payload.
type MembersAddedNotice struct {
	GroupID string   `json:"group_id"`
	AddedBy string   `json:"added_by"`
	Members []string `json:"members"`
}

// MemberRemovedNotice is the group-member-removed / removed-from-group
// payload.
type MemberRemovedNotice struct {
	GroupID   string `json:"group_id"`
	RemovedBy string `json:"removed_by"`
	UserID    string `json:"user_id"`
}

// MemberLeftNotice is the user_left_group / left_group payload.
type MemberLeftNotice struct {
	GroupID string `json:"group_id"`
	UserID  string `json:"user_id"`
}

// GroupDeletedNotice is the group_deleted payload.
type GroupDeletedNotice struct {
	GroupID   string `json:"group_id"`
	DeletedBy string `json:"deleted_by"`
}

// FriendNotice is the payload of every friend-request event.
type FriendNotice struct {
	RequestID string `json:"request_id"`
	ActorID   string `json:"actor_id"`
	Status    string `json:"status"`
}

// ConversationClearedNotice is the conversation_cleared payload.
type ConversationClearedNotice struct {
	ConversationID string `json:"conversation_id"`
	ClearedBy      string `json:"cleared_by"`
}

// ChatClearedNotice is the chat_cleared payload.
type ChatClearedNotice struct {
	ConversationID string    `json:"conversation_id"`
	ClearedAt      time.Time `json:"cleared_at"`
}
