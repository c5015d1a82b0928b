package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
)

// MessageRepository stores chat messages exchanged inside a match.
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

// InsertMessage persists msg, filling ID and CreatedAt when empty.
func (r *MessageRepository) InsertMessage(ctx context.Context, msg *db.Message) error {
	if msg.ID == "" {
		msg.ID = newID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = db.Now()
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return svcErr.Storage(err)
	}
	return nil
}

// ListMessagesForMatch returns the full conversation, oldest first.
//
// Behavior:
//   - Ordered by created_at ASC, id ASC (ids are time-ordered).
//   - Each message carries its sender's profile; a deleted sender
//     leaves only the id populated.
//
// Example:
//
//	repo.ListMessagesForMatch(ctx, matchID) // -> [{Message, Sender}, ...]
func (r *MessageRepository) ListMessagesForMatch(ctx context.Context, matchID string) ([]db.MessageWithSender, error) {
	var messages []db.Message
	err := r.db.WithContext(ctx).
		Where("match_id = ?", matchID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, svcErr.Storage(err)
	}

	senderIDs := make([]string, 0, 2)
	for _, m := range messages {
		senderIDs = append(senderIDs, m.SenderID)
	}
	senders, err := loadUsers(ctx, r.db, uniqueIDs(senderIDs...))
	if err != nil {
		return nil, err
	}

	out := make([]db.MessageWithSender, 0, len(messages))
	for _, m := range messages {
		sender, ok := senders[m.SenderID]
		if !ok {
			sender = db.User{ID: m.SenderID}
		}
		out = append(out, db.MessageWithSender{Message: m, Sender: sender})
	}
	return out, nil
}
