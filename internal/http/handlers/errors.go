// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case and stable; clients branch on them rather
// than on messages. Service sentinels are translated in one place
// (writeServiceError) so every endpoint reports the same failure the same way.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_member",
//	  "message": "not a member of this conversation"
//	}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-realtime/internal/loginsession"
	"github.com/tbourn/go-chat-realtime/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeNotMember        = "not_member"
	ErrCodeMessageRecalled  = "message_recalled"
	ErrCodeOwnerCannotLeave = "owner_cannot_leave"
	ErrCodeSessionInvalid   = "session_invalid"
	ErrCodeListFailed       = "list_failed"
	ErrCodeWriteFailed      = "write_failed"
)

type errMapping struct {
	err    error
	status int
	code   string
}

var serviceErrors = []errMapping{
	{services.ErrConversationNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrMessageNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrFriendRequestNotFound, http.StatusNotFound, ErrCodeNotFound},
	{services.ErrNotMember, http.StatusForbidden, ErrCodeNotMember},
	{services.ErrForbidden, http.StatusForbidden, ErrCodeForbidden},
	{services.ErrEmptyMessage, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrTooLong, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidReaction, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidGroup, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrInvalidProfile, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrSelfAction, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrNotGroup, http.StatusBadRequest, ErrCodeBadRequest},
	{services.ErrMessageRecalled, http.StatusConflict, ErrCodeMessageRecalled},
	{services.ErrDuplicateReaction, http.StatusConflict, ErrCodeConflict},
	{services.ErrFriendRequestExists, http.StatusConflict, ErrCodeConflict},
	{services.ErrOwnerCannotLeave, http.StatusConflict, ErrCodeOwnerCannotLeave},
	{loginsession.ErrSessionInvalid, http.StatusGone, ErrCodeSessionInvalid},
}

// writeServiceError maps a service error onto the error envelope. Unknown
// errors become a 500 carrying fallbackCode.
func writeServiceError(c *gin.Context, err error, fallbackCode string) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			fail(c, m.status, m.code, m.err.Error())
			return
		}
	}
	fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
}
