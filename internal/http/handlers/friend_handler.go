// Friend HTTP handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/repo"
)

// FriendsResponse lists accepted friendships.
type FriendsResponse struct {
	Friends []repo.Friend `json:"friends"`
}

// PendingRequestsResponse lists pending requests in both directions.
type PendingRequestsResponse struct {
	Incoming []domain.FriendRequest `json:"incoming"`
	Outgoing []domain.FriendRequest `json:"outgoing"`
}

// SendFriendRequestRequest names the recipient.
type SendFriendRequestRequest struct {
	RecipientID string `json:"recipient_id" binding:"required" example:"user-42"`
}

// FriendRequestResponse wraps a request.
type FriendRequestResponse struct {
	Request *domain.FriendRequest `json:"request"`
}

// ListFriends godoc
// @ID          listFriends
// @Summary     List my friends
// @Tags        Friends
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.FriendsResponse
// @Router      /friends [get]
func (h *Handlers) ListFriends(c *gin.Context) {
	friends, err := h.Friends.List(c.Request.Context(), userID(c))
	if err != nil {
		writeServiceError(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, FriendsResponse{Friends: friends})
}

// ListFriendRequests godoc
// @ID          listFriendRequests
// @Summary     List pending friend requests
// @Tags        Friends
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.PendingRequestsResponse
// @Router      /friends/requests [get]
func (h *Handlers) ListFriendRequests(c *gin.Context) {
	in, out, err := h.Friends.Pending(c.Request.Context(), userID(c))
	if err != nil {
		writeServiceError(c, err, ErrCodeListFailed)
		return
	}
	ok(c, http.StatusOK, PendingRequestsResponse{Incoming: in, Outgoing: out})
}

// SendFriendRequest godoc
// @ID          sendFriendRequest
// @Summary     Send a friend request
// @Description The recipient receives friend_request on their user channel.
// @Tags        Friends
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body  handlers.SendFriendRequestRequest  true  "Recipient"
// @Success     201  {object}  handlers.FriendRequestResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Failure     409  {object}  handlers.ErrorResponse  "Already requested or friends"
// @Router      /friends/requests [post]
func (h *Handlers) SendFriendRequest(c *gin.Context) {
	var req SendFriendRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "recipient_id required")
		return
	}
	fr, err := h.Friends.Send(c.Request.Context(), userID(c), req.RecipientID)
	if err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusCreated, FriendRequestResponse{Request: fr})
}

// AcceptFriendRequest godoc
// @ID          acceptFriendRequest
// @Summary     Accept a friend request
// @Tags        Friends
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Request ID"
// @Success     200  {object}  handlers.FriendRequestResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /friends/requests/{id}/accept [post]
func (h *Handlers) AcceptFriendRequest(c *gin.Context) {
	fr, err := h.Friends.Accept(c.Request.Context(), userID(c), c.Param("id"))
	h.friendResult(c, fr, err)
}

// RejectFriendRequest godoc
// @ID          rejectFriendRequest
// @Summary     Reject a friend request
// @Tags        Friends
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Request ID"
// @Success     200  {object}  handlers.FriendRequestResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /friends/requests/{id}/reject [post]
func (h *Handlers) RejectFriendRequest(c *gin.Context) {
	fr, err := h.Friends.Reject(c.Request.Context(), userID(c), c.Param("id"))
	h.friendResult(c, fr, err)
}

// CancelFriendRequest godoc
// @ID          cancelFriendRequest
// @Summary     Cancel my friend request
// @Tags        Friends
// @Produce     json
// @Security    BearerAuth
// @Param       id  path  string  true  "Request ID"
// @Success     200  {object}  handlers.FriendRequestResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /friends/requests/{id} [delete]
func (h *Handlers) CancelFriendRequest(c *gin.Context) {
	fr, err := h.Friends.Cancel(c.Request.Context(), userID(c), c.Param("id"))
	h.friendResult(c, fr, err)
}

func (h *Handlers) friendResult(c *gin.Context, fr *domain.FriendRequest, err error) {
	if err != nil {
		writeServiceError(c, err, ErrCodeWriteFailed)
		return
	}
	ok(c, http.StatusOK, FriendRequestResponse{Request: fr})
}
