// Package realtime implements the live delivery side of the chat backend:
// the connection registry, the room topology that mirrors persisted
// conversation membership onto live connections, and the event fan-out
// dispatcher. A single Hub wires these together and is shared by the HTTP
// layer and the services.
package realtime

import (
	"errors"
	"strings"
)

// RoomKind discriminates the three kinds of broadcast rooms.
type RoomKind uint8

const (
	roomInvalid RoomKind = iota
	// KindUser is the per-user channel every device of a user joins.
	KindUser
	// KindConversation mirrors one conversation's persisted membership.
	KindConversation
	// KindLoginSession is the short-lived room of a QR login attempt.
	KindLoginSession
)

var roomPrefixes = map[RoomKind]string{
	KindUser:         "user",
	KindConversation: "conversation",
	KindLoginSession: "qr",
}

// ErrInvalidRoom is returned by ParseRoom for malformed room names.
var ErrInvalidRoom = errors.New("invalid room")

// Room is a typed broadcast address. The zero value is invalid.
// Rooms are comparable and used directly as map keys.
type Room struct {
	kind RoomKind
	id   string
}

// UserChannel returns the room addressing every connection of userID.
func UserChannel(userID string) Room { return Room{kind: KindUser, id: userID} }

// ConversationRoom returns the room of a private or group conversation.
func ConversationRoom(conversationID string) Room {
	return Room{kind: KindConversation, id: conversationID}
}

// LoginSessionRoom returns the room observing a login session.
func LoginSessionRoom(sessionID string) Room { return Room{kind: KindLoginSession, id: sessionID} }

// Kind returns the room's kind.
func (r Room) Kind() RoomKind { return r.kind }

// ID returns the identifier the room was built from.
func (r Room) ID() string { return r.id }

// Valid reports whether r has a known kind and a non-blank id.
func (r Room) Valid() bool {
	_, ok := roomPrefixes[r.kind]
	return ok && strings.TrimSpace(r.id) != ""
}

// String renders the wire name, e.g. "conversation:42".
func (r Room) String() string {
	p, ok := roomPrefixes[r.kind]
	if !ok {
		return "invalid:" + r.id
	}
	return p + ":" + r.id
}

// ParseRoom is the inverse of Room.String.
func ParseRoom(s string) (Room, error) {
	prefix, id, ok := strings.Cut(s, ":")
	if !ok {
		return Room{}, ErrInvalidRoom
	}
	for k, p := range roomPrefixes {
		if p == prefix {
			r := Room{kind: k, id: id}
			if !r.Valid() {
				return Room{}, ErrInvalidRoom
			}
			return r, nil
		}
	}
	return Room{}, ErrInvalidRoom
}
