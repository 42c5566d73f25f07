// Package services defines the business logic for conversations, messages,
// groups, friendships and profiles. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and translation
// into user-facing messages or HTTP status codes should be performed at the
// handler/controller layer.
package services

import "errors"

// Conversation and message errors.
var (
	// ErrConversationNotFound indicates that the requested conversation does
	// not exist.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrNotMember is returned when the caller is not a member of the
	// conversation (or the targeted user is not a member of the group).
	ErrNotMember = errors.New("not a member of this conversation")

	// ErrEmptyMessage is returned when a message has neither text nor an
	// attachment.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when a message exceeds the configured maximum
	// length.
	ErrTooLong = errors.New("message too long")

	// ErrMessageNotFound indicates that the requested message does not exist.
	ErrMessageNotFound = errors.New("message not found")

	// ErrMessageRecalled is returned when editing or reacting to a recalled
	// message.
	ErrMessageRecalled = errors.New("message was recalled")

	// ErrInvalidReaction is returned for reaction types outside the allowed set.
	ErrInvalidReaction = errors.New("invalid reaction type")

	// ErrDuplicateReaction is returned when the user already reacted with the
	// same type.
	ErrDuplicateReaction = errors.New("reaction already exists")
)

// Authorization errors.
var (
	// ErrForbidden is returned when the caller lacks the role the operation
	// requires (group owner, message sender).
	ErrForbidden = errors.New("operation not permitted")

	// ErrSelfAction is returned when a user targets themselves where that is
	// meaningless (messaging, befriending or removing oneself).
	ErrSelfAction = errors.New("cannot target yourself")
)

// Group errors.
var (
	// ErrNotGroup is returned when a group operation targets a private
	// conversation.
	ErrNotGroup = errors.New("conversation is not a group")

	// ErrInvalidGroup is returned for a missing name or an empty member list.
	ErrInvalidGroup = errors.New("group needs a name and at least one other member")

	// ErrOwnerCannotLeave is returned when the owner tries to leave; owners
	// delete the group instead.
	ErrOwnerCannotLeave = errors.New("group owner cannot leave; delete the group instead")
)

// User and friendship errors.
var (
	// ErrUserNotFound indicates that a referenced user has no profile.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidProfile is returned for profile fields that fail validation.
	ErrInvalidProfile = errors.New("invalid profile")

	// ErrFriendRequestExists is returned when a pending or accepted request
	// already links the two users.
	ErrFriendRequestExists = errors.New("friend request already exists")

	// ErrFriendRequestNotFound is returned when the request does not exist,
	// is not addressed to the caller, or is no longer pending.
	ErrFriendRequestNotFound = errors.New("friend request not found")
)
