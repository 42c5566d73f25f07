// Package domain defines the persistence models for users, conversations,
// memberships, messages, reactions, and friend requests. These types are
// mapped with GORM and form the relational source of truth that the realtime
// layer mirrors into live rooms.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Conversation kinds.
const (
	ConversationPrivate = "private"
	ConversationGroup   = "group"
)

// Member roles within a conversation.
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Friend request states.
const (
	FriendPending  = "pending"
	FriendAccepted = "accepted"
	FriendRejected = "rejected"
	FriendCanceled = "canceled"
)

// User is the public profile of an account. Credentials live with the
// authentication collaborator; only fan-out relevant fields are stored here.
type User struct {
	ID          string         `json:"id"           gorm:"type:varchar(64);primaryKey"`
	DisplayName string         `json:"display_name" gorm:"type:varchar(120);not null;default:''"`
	AvatarURL   string         `json:"avatar_url"   gorm:"type:varchar(512);not null;default:''"`
	Bio         string         `json:"bio"          gorm:"type:varchar(512);not null;default:''"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-"            gorm:"index"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Conversation is either a private (two-party) or a group conversation.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - Kind: "private" or "group" (enforced by DB constraint).
//   - PairKey: sorted "a|b" user pair for private conversations; unique so a
//     pair never gets two private conversations. Nil for groups.
//   - Name / AvatarURL: group presentation; empty for private conversations.
//   - OwnerID: group owner; empty for private conversations.
//   - DeletedAt: soft deletion marker; group deletion itself is a hard delete.
type Conversation struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	Kind      string         `json:"kind"       gorm:"type:varchar(16);not null;check:kind IN ('private','group')"`
	PairKey   *string        `json:"-"          gorm:"type:varchar(130);uniqueIndex:ux_conversation_pair"`
	Name      string         `json:"name"       gorm:"type:varchar(255);not null;default:''"`
	AvatarURL string         `json:"avatar_url" gorm:"type:varchar(512);not null;default:''"`
	OwnerID   string         `json:"owner_id"   gorm:"type:varchar(64);not null;default:''"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`
}

// TableName returns the database table name for Conversation.
func (Conversation) TableName() string { return "conversations" }

// IsGroup reports whether c is a group conversation.
func (c Conversation) IsGroup() bool { return c.Kind == ConversationGroup }

// ConversationMember is one row of the many-to-many membership relation.
// A row exists exactly while the membership is current; removal deletes it.
//
// ClearedAt hides messages created at or before that instant from this
// member's history (per-user "clear chat").
type ConversationMember struct {
	ConversationID string     `json:"conversation_id" gorm:"type:char(36);primaryKey"`
	UserID         string     `json:"user_id"         gorm:"type:varchar(64);primaryKey;index:idx_member_user"`
	Role           string     `json:"role"            gorm:"type:varchar(16);not null;default:'member'"`
	JoinedAt       time.Time  `json:"joined_at"`
	ClearedAt      *time.Time `json:"cleared_at,omitempty"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ConversationMember.
func (ConversationMember) TableName() string { return "conversation_members" }

// Message is a single entry in a conversation. Recalled messages keep their
// row (for ordering) but lose their content.
type Message struct {
	ID             string         `json:"id"              gorm:"type:char(36);primaryKey"`
	ConversationID string         `json:"conversation_id" gorm:"type:char(36);not null;index:idx_conversation_msgs,priority:1"`
	SenderID       string         `json:"sender_id"       gorm:"type:varchar(64);not null"`
	Content        string         `json:"content"         gorm:"type:text;not null"`
	AttachmentURL  string         `json:"attachment_url,omitempty" gorm:"type:varchar(512);not null;default:''"`
	EditedAt       *time.Time     `json:"edited_at,omitempty"`
	RecalledAt     *time.Time     `json:"recalled_at,omitempty"`
	RecalledBy     string         `json:"recalled_by,omitempty" gorm:"type:varchar(64);not null;default:''"`
	CreatedAt      time.Time      `json:"created_at"      gorm:"index:idx_conversation_msgs,priority:2"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-"               gorm:"index"`

	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Recalled reports whether the message has been recalled.
func (m Message) Recalled() bool { return m.RecalledAt != nil }

// Reaction is a user's typed reaction (e.g. "like", "heart") to a message.
// A user can react with a given type at most once per message.
type Reaction struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	MessageID string    `json:"message_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_reaction_message_user_type"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;uniqueIndex:ux_reaction_message_user_type"`
	Type      string    `json:"type"       gorm:"type:varchar(32);not null;uniqueIndex:ux_reaction_message_user_type"`
	CreatedAt time.Time `json:"created_at"`

	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Reaction.
func (Reaction) TableName() string { return "reactions" }

// FriendRequest is a directed friendship edge. Accepted requests are the
// friendship itself; the counterpart of a row depends on which side asks.
//
// OpenKey holds the sorted user pair while the request is pending or
// accepted and is NULL once it is rejected or canceled, so at most one open
// request exists per pair.
type FriendRequest struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	SenderID    string    `json:"sender_id"    gorm:"type:varchar(64);not null;index"`
	RecipientID string    `json:"recipient_id" gorm:"type:varchar(64);not null;index"`
	Status      string    `json:"status"       gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','accepted','rejected','canceled')"`
	OpenKey     *string   `json:"-"            gorm:"type:varchar(130);uniqueIndex:ux_friend_request_open"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for FriendRequest.
func (FriendRequest) TableName() string { return "friend_requests" }

// Counterpart returns the other side of the request relative to userID.
func (r FriendRequest) Counterpart(userID string) string {
	if r.SenderID == userID {
		return r.RecipientID
	}
	return r.SenderID
}
