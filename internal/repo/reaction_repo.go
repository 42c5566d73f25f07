package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-realtime/internal/domain"
)

// CreateReaction records userID's reaction of the given type on a message.
// A repeated (message, user, type) triple fails with ErrDuplicate.
func CreateReaction(ctx context.Context, db *gorm.DB, messageID, userID, kind string) (*domain.Reaction, error) {
	r := &domain.Reaction{
		ID:        uuid.NewString(),
		MessageID: messageID,
		UserID:    userID,
		Type:      kind,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(r).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return r, nil
}
