package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// Friend is one accepted friendship as seen from a given user.
type Friend struct {
	RequestID string    `json:"request_id"`
	FriendID  string    `json:"friend_id"`
	Since     time.Time `json:"since"`
}

// CreateFriendRequest inserts a pending request from senderID to recipientID.
// It returns ErrDuplicate when an open request already links the pair.
func CreateFriendRequest(ctx context.Context, db *gorm.DB, senderID, recipientID string) (*domain.FriendRequest, error) {
	now := time.Now().UTC()
	key := PairKey(senderID, recipientID)
	r := &domain.FriendRequest{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: recipientID,
		Status:      domain.FriendPending,
		OpenKey:     &key,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r, nil
}

// GetFriendRequest fetches a request by id, or ErrNotFound.
func GetFriendRequest(ctx context.Context, db *gorm.DB, id string) (*domain.FriendRequest, error) {
	var r domain.FriendRequest
	if err := db.WithContext(ctx).Where("id = ?", id).First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// FindOpenRequestBetween returns a pending or accepted request between a and
// b in either direction, or ErrNotFound.
func FindOpenRequestBetween(ctx context.Context, db *gorm.DB, a, b string) (*domain.FriendRequest, error) {
	var r domain.FriendRequest
	err := db.WithContext(ctx).
		Where("((sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)) AND status IN ?",
			a, b, b, a, []string{domain.FriendPending, domain.FriendAccepted}).
		First(&r).Error
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// TransitionFriendRequest moves a request from one status to another. It
// returns ErrNotFound when the request is missing or not in the from state.
func TransitionFriendRequest(ctx context.Context, db *gorm.DB, id, from, to string) error {
	updates := map[string]any{"status": to, "updated_at": time.Now().UTC()}
	if to == domain.FriendRejected || to == domain.FriendCanceled {
		updates["open_key"] = nil
	}
	res := db.WithContext(ctx).
		Model(&domain.FriendRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFriends returns userID's accepted friendships. FriendID is always the
// other party, whichever side sent the request.
func ListFriends(ctx context.Context, db *gorm.DB, userID string) ([]Friend, error) {
	var out []Friend
	err := db.WithContext(ctx).
		Model(&domain.FriendRequest{}).
		Select("id AS request_id, CASE WHEN sender_id = ? THEN recipient_id ELSE sender_id END AS friend_id, updated_at AS since", userID).
		Where("status = ? AND (sender_id = ? OR recipient_id = ?)", domain.FriendAccepted, userID, userID).
		Order("updated_at DESC, id ASC").
		Scan(&out).Error
	return out, err
}

// ListPendingRequests returns pending requests addressed to userID
// (incoming) and sent by userID (outgoing).
func ListPendingRequests(ctx context.Context, db *gorm.DB, userID string) (incoming, outgoing []domain.FriendRequest, err error) {
	pending := func() *gorm.DB {
		return db.WithContext(ctx).Where("status = ?", domain.FriendPending).Order("created_at DESC, id ASC")
	}
	if err = pending().Where("recipient_id = ?", userID).Find(&incoming).Error; err != nil {
		return nil, nil, err
	}
	if err = pending().Where("sender_id = ?", userID).Find(&outgoing).Error; err != nil {
		return nil, nil, err
	}
	return incoming, outgoing, nil
}
