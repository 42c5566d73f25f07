// Package services – FriendService
//
// This file implements the friend-request lifecycle. Each transition is
// delivered to the counterpart's user channel only; friendships have no
// room of their own.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-realtime/internal/domain"
	"github.com/tbourn/go-chat-realtime/internal/realtime"
	"github.com/tbourn/go-chat-realtime/internal/repo"
)

// FriendService implements friend requests and friend listing.
type FriendService struct {
	DB    *gorm.DB
	Coord *Coordinator
}

// Send creates a pending request from userID to recipientID.
func (s *FriendService) Send(ctx context.Context, userID, recipientID string) (*domain.FriendRequest, error) {
	if userID == recipientID {
		return nil, ErrSelfAction
	}
	var req *domain.FriendRequest
	err := s.Coord.Run(ctx, "FriendService.Send", func(ctx context.Context) (Outcome, error) {
		if _, err := repo.GetUser(ctx, s.DB, recipientID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return Outcome{}, ErrUserNotFound
			}
			return Outcome{}, err
		}
		switch _, err := repo.FindOpenRequestBetween(ctx, s.DB, userID, recipientID); {
		case err == nil:
			return Outcome{}, ErrFriendRequestExists
		case !errors.Is(err, repo.ErrNotFound):
			return Outcome{}, err
		}

		var err error
		if req, err = repo.CreateFriendRequest(ctx, s.DB, userID, recipientID); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return Outcome{}, ErrFriendRequestExists
			}
			return Outcome{}, err
		}
		return Outcome{Events: []realtime.Event{realtime.FriendRequestSent(recipientID, FriendNotice{
			RequestID: req.ID,
			ActorID:   userID,
			Status:    req.Status,
		})}}, nil
	})
	return req, err
}

// Accept accepts a pending request addressed to userID.
func (s *FriendService) Accept(ctx context.Context, userID, requestID string) (*domain.FriendRequest, error) {
	return s.transition(ctx, "FriendService.Accept", userID, requestID, domain.FriendAccepted)
}

// Reject rejects a pending request addressed to userID.
func (s *FriendService) Reject(ctx context.Context, userID, requestID string) (*domain.FriendRequest, error) {
	return s.transition(ctx, "FriendService.Reject", userID, requestID, domain.FriendRejected)
}

// Cancel withdraws a pending request sent by userID.
func (s *FriendService) Cancel(ctx context.Context, userID, requestID string) (*domain.FriendRequest, error) {
	return s.transition(ctx, "FriendService.Cancel", userID, requestID, domain.FriendCanceled)
}

// transition moves a pending request to status on behalf of userID, who must
// be the recipient (accept, reject) or the sender (cancel). The counterpart
// is notified.
func (s *FriendService) transition(ctx context.Context, op, userID, requestID, status string) (*domain.FriendRequest, error) {
	var req *domain.FriendRequest
	err := s.Coord.Run(ctx, op, func(ctx context.Context) (Outcome, error) {
		var err error
		req, err = repo.GetFriendRequest(ctx, s.DB, requestID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return Outcome{}, ErrFriendRequestNotFound
			}
			return Outcome{}, err
		}
		actor := req.RecipientID
		if status == domain.FriendCanceled {
			actor = req.SenderID
		}
		if actor != userID || req.Status != domain.FriendPending {
			return Outcome{}, ErrFriendRequestNotFound
		}

		if err := repo.TransitionFriendRequest(ctx, s.DB, requestID, domain.FriendPending, status); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return Outcome{}, ErrFriendRequestNotFound
			}
			return Outcome{}, err
		}
		req.Status = status

		counterpart := req.Counterpart(userID)
		notice := FriendNotice{RequestID: req.ID, ActorID: userID, Status: status}
		var ev realtime.Event
		switch status {
		case domain.FriendAccepted:
			ev = realtime.FriendRequestAccepted(counterpart, notice)
		case domain.FriendRejected:
			ev = realtime.FriendRequestRejected(counterpart, notice)
		default:
			ev = realtime.FriendRequestCanceled(counterpart, notice)
		}
		return Outcome{Events: []realtime.Event{ev}}, nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// List returns userID's friends; each entry names the other party.
func (s *FriendService) List(ctx context.Context, userID string) ([]repo.Friend, error) {
	out, err := repo.ListFriends(ctx, s.DB, userID)
	if out == nil && err == nil {
		out = []repo.Friend{}
	}
	return out, err
}

// Pending returns the pending requests addressed to and sent by userID.
func (s *FriendService) Pending(ctx context.Context, userID string) (incoming, outgoing []domain.FriendRequest, err error) {
	return repo.ListPendingRequests(ctx, s.DB, userID)
}
