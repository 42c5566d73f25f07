package realtime

// Wire event names.
const (
	EventNewMessage            = "new_message"
	EventMessageEdited         = "message_edited"
	EventMessageRecalled       = "message_recalled"
	EventNewReaction           = "new_reaction"
	EventGroupCreated          = "group_created"
	EventGroupUpdated          = "group_updated"
	EventGroupMembersAdded     = "group-members-added"
	EventGroupMemberRemoved    = "group-member-removed"
	EventRemovedFromGroup      = "removed-from-group"
	EventUserLeftGroup         = "user_left_group"
	EventLeftGroup             = "left_group"
	EventGroupDeleted          = "group_deleted"
	EventFriendRequest         = "friend_request"
	EventFriendAccepted        = "friend_accepted"
	EventFriendRejected        = "friend_rejected"
	EventFriendRequestCanceled = "friend_request_canceled"
	EventProfileUpdated        = "user:profile_updated"
	EventConversationCleared   = "conversation_cleared"
	EventChatCleared           = "chat_cleared"
	EventLoginStatus           = "qr:status"
)

// Target is one delivery address of an event. When Room has no live members
// and Fallback names a connection, the event is written to that connection
// directly.
type Target struct {
	Room     Room
	Fallback string
}

// Event is one dispatch unit: a wire name, a JSON-encodable payload, and the
// targets computed by the producer. Build events with the constructors below
// so every kind carries its targeting rule.
type Event struct {
	Name    string
	Payload any
	Targets []Target
}

// Envelope is the frame written to clients.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func toRoom(name string, payload any, room Room) Event {
	return Event{Name: name, Payload: payload, Targets: []Target{{Room: room}}}
}

func toUsers(name string, payload any, userIDs ...string) Event {
	ts := make([]Target, 0, len(userIDs))
	for _, id := range userIDs {
		ts = append(ts, Target{Room: UserChannel(id)})
	}
	return Event{Name: name, Payload: payload, Targets: ts}
}

// NewMessage targets the conversation room. For private conversations pass
// both participants so their user channels are reached even when a device
// has not joined the room yet.
func NewMessage(conversationID string, payload any, participants ...string) Event {
	e := toRoom(EventNewMessage, payload, ConversationRoom(conversationID))
	for _, id := range participants {
		e.Targets = append(e.Targets, Target{Room: UserChannel(id)})
	}
	return e
}

// MessageEdited targets the conversation room.
func MessageEdited(conversationID string, payload any) Event {
	return toRoom(EventMessageEdited, payload, ConversationRoom(conversationID))
}

// MessageRecalled targets the conversation room.
func MessageRecalled(conversationID string, payload any) Event {
	return toRoom(EventMessageRecalled, payload, ConversationRoom(conversationID))
}

// ReactionAdded targets the conversation room.
func ReactionAdded(conversationID string, payload any) Event {
	return toRoom(EventNewReaction, payload, ConversationRoom(conversationID))
}

// GroupCreated targets the user channel of every initial member.
func GroupCreated(memberIDs []string, payload any) Event {
	return toUsers(EventGroupCreated, payload, memberIDs...)
}

// GroupUpdated targets the group room.
func GroupUpdated(groupID string, payload any) Event {
	return toRoom(EventGroupUpdated, payload, ConversationRoom(groupID))
}

// MembersAdded targets the group room and each added member's user channel.
func MembersAdded(groupID string, addedIDs []string, payload any) Event {
	e := toRoom(EventGroupMembersAdded, payload, ConversationRoom(groupID))
	e.Targets = append(e.Targets, toUsers("", nil, addedIDs...).Targets...)
	return e
}

// MemberRemoved notifies the remaining members on the group room.
func MemberRemoved(groupID string, payload any) Event {
	return toRoom(EventGroupMemberRemoved, payload, ConversationRoom(groupID))
}

// RemovedFromGroup notifies the removed member on their user channel.
func RemovedFromGroup(userID string, payload any) Event {
	return toUsers(EventRemovedFromGroup, payload, userID)
}

// UserLeftGroup notifies the remaining members on the group room.
func UserLeftGroup(groupID string, payload any) Event {
	return toRoom(EventUserLeftGroup, payload, ConversationRoom(groupID))
}

// LeftGroup confirms the departure on the leaving user's other devices.
func LeftGroup(userID string, payload any) Event {
	return toUsers(EventLeftGroup, payload, userID)
}

// GroupDeleted targets the user channel of every member captured before the
// deletion.
func GroupDeleted(memberIDs []string, payload any) Event {
	return toUsers(EventGroupDeleted, payload, memberIDs...)
}

// FriendRequestSent targets the recipient's user channel.
func FriendRequestSent(recipientID string, payload any) Event {
	return toUsers(EventFriendRequest, payload, recipientID)
}

// FriendRequestAccepted targets the counterpart's user channel.
func FriendRequestAccepted(counterpartID string, payload any) Event {
	return toUsers(EventFriendAccepted, payload, counterpartID)
}

// FriendRequestRejected targets the counterpart's user channel.
func FriendRequestRejected(counterpartID string, payload any) Event {
	return toUsers(EventFriendRejected, payload, counterpartID)
}

// FriendRequestCanceled targets the counterpart's user channel.
func FriendRequestCanceled(counterpartID string, payload any) Event {
	return toUsers(EventFriendRequestCanceled, payload, counterpartID)
}

// ProfileUpdated targets the subject's own user channel.
func ProfileUpdated(userID string, payload any) Event {
	return toUsers(EventProfileUpdated, payload, userID)
}

// ConversationCleared targets the conversation room.
func ConversationCleared(conversationID string, payload any) Event {
	return toRoom(EventConversationCleared, payload, ConversationRoom(conversationID))
}

// ChatCleared targets the clearing user's own user channel.
func ChatCleared(userID string, payload any) Event {
	return toUsers(EventChatCleared, payload, userID)
}

// LoginSessionResolved targets the session's room, falling back to the
// connection that registered interest when nobody has joined the room.
func LoginSessionResolved(sessionID, interestedConnID string, payload any) Event {
	return Event{
		Name:    EventLoginStatus,
		Payload: payload,
		Targets: []Target{{Room: LoginSessionRoom(sessionID), Fallback: interestedConnID}},
	}
}
