package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/utils/pagination"
)

// DecisionRepository provides data access methods for the Decision model.
// It encapsulates all queries related to likes/skips between users.
type DecisionRepository struct {
	db *gorm.DB
}

// NewDecisionRepository creates a new repository bound to the given DB connection.
func NewDecisionRepository(database *gorm.DB) *DecisionRepository {
	return &DecisionRepository{db: database}
}

// CreateDecision records actor's decision on recipient, idempotently.
//
// Behavior:
//   - If no (actor_id, recipient_id) row exists → a new row is inserted, created = true.
//   - If one exists → nothing is written and the stored row is returned, created = false.
//     Decisions are final, so a later like never overwrites an earlier skip.
//   - The unique pair index arbitrates concurrent inserts of the same pair.
//
// Example:
//
//	repo.CreateDecision(ctx, "a", "b", db.ActionLike) // user a liked user b
func (r *DecisionRepository) CreateDecision(
	ctx context.Context,
	actorID, recipientID string,
	action db.Action,
) (*db.Decision, bool, error) {
	var liked bool
	switch action {
	case db.ActionLike:
		liked = true
	case db.ActionSkip:
		liked = false
	default:
		return nil, false, svcErr.InvalidArgument("unknown action %s", action)
	}

	decision := db.Decision{
		ID:          newID(),
		ActorID:     actorID,
		RecipientID: recipientID,
		Liked:       liked,
		CreatedAt:   db.Now(),
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "actor_id"}, {Name: "recipient_id"}},
			DoNothing: true,
		}).
		Create(&decision)
	if res.Error != nil {
		return nil, false, svcErr.Storage(res.Error)
	}
	if res.RowsAffected == 1 {
		return &decision, true, nil
	}

	existing, err := r.FindDecision(ctx, actorID, recipientID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// FindDecision loads actor's decision on recipient, NotFound when there is none.
func (r *DecisionRepository) FindDecision(ctx context.Context, actorID, recipientID string) (*db.Decision, error) {
	var decision db.Decision
	err := r.db.WithContext(ctx).
		Where("actor_id = ? AND recipient_id = ?", actorID, recipientID).
		Take(&decision).Error
	if err != nil {
		return nil, storageErr(err, "decision %s -> %s", actorID, recipientID)
	}
	return &decision, nil
}

// HasLiked checks whether an actor has liked a recipient.
//
// Behavior:
//   - Returns true if there exists a decision row where actor_id = X,
//     recipient_id = Y, and liked = true.
//   - Used as the reverse-like lookup when a like is recorded.
//
// Example:
//
//	repo.HasLiked(ctx, "b", "a") // -> true if user b liked user a
func (r *DecisionRepository) HasLiked(
	ctx context.Context,
	actorID, recipientID string,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table("decisions d").
		Where("d.actor_id = ? AND d.recipient_id = ? AND d.liked = ?", actorID, recipientID, true).
		Count(&count).Error
	if err != nil {
		return false, svcErr.Storage(err)
	}
	return count > 0, nil
}

// ListPendingLikers returns likes the recipient has not answered yet.
//
// Behavior:
//   - Only decisions where recipient_id = X and liked = true are considered.
//   - Excludes actors the recipient already decided on (liked back or skipped).
//   - Ordered by created_at DESC, actor_id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.ListPendingLikers(ctx, "a", nil, 20) // first 20 people waiting on user a
func (r *DecisionRepository) ListPendingLikers(
	ctx context.Context,
	recipientID string,
	paginationToken *string,
	limit int,
) ([]db.Decision, *string, error) {
	if limit <= 0 {
		return nil, nil, svcErr.InvalidArgument("limit must be positive")
	}

	// decode cursor if provided
	cursor, err := pagination.Decode(getString(paginationToken))
	if err != nil {
		return nil, nil, svcErr.InvalidArgument("%s", err.Error())
	}

	query := r.pendingLikers(ctx, recipientID).
		Order("d.created_at DESC, d.actor_id DESC").
		Limit(limit + 1)

	// apply cursor
	if !cursor.IsZero() {
		ts := time.UnixMilli(cursor.CreatedUnix).UTC()
		query = query.Where(
			"(d.created_at < ? OR (d.created_at = ? AND d.actor_id < ?))",
			ts, ts, cursor.ActorID,
		)
	}

	var decisions []db.Decision
	if err := query.Find(&decisions).Error; err != nil {
		return nil, nil, svcErr.Storage(err)
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(decisions) > limit {
		last := decisions[limit-1]
		token, _ := pagination.Encode(pagination.Cursor{
			ActorID:     last.ActorID,
			CreatedUnix: last.CreatedAt.UnixMilli(),
		})
		nextToken = &token
		decisions = decisions[:limit]
	}

	return decisions, nextToken, nil
}

// CountPendingLikers returns how many likes the recipient has not answered yet.
// Used in conjunction with Redis cache (DB is fallback).
func (r *DecisionRepository) CountPendingLikers(
	ctx context.Context,
	recipientID string,
) (int64, error) {
	var count int64
	if err := r.pendingLikers(ctx, recipientID).Count(&count).Error; err != nil {
		return 0, svcErr.Storage(err)
	}
	return count, nil
}

func (r *DecisionRepository) pendingLikers(ctx context.Context, recipientID string) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("decisions d").
		Where("d.recipient_id = ? AND d.liked = ?", recipientID, true).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM decisions d2
				WHERE d2.actor_id = ?
				  AND d2.recipient_id = d.actor_id
			)`, recipientID)
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
