package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
)

// UserRepository reads profiles for the matching core.
// Profiles are written by the profile service (and the seed), never here.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// CandidateQuery narrows the feed scan.
// An empty Gender means "any gender".
type CandidateQuery struct {
	UserID string
	Gender db.Gender
	Limit  int
}

// GetUser loads a single profile. Unknown ids fail with NotFound.
func (r *UserRepository) GetUser(ctx context.Context, id string) (*db.User, error) {
	var user db.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error; err != nil {
		return nil, storageErr(err, "user %s", id)
	}
	return &user, nil
}

// ListCandidates returns profiles the requester may still swipe on.
//
// Behavior:
//   - Excludes the requester.
//   - Excludes anyone the requester already liked or skipped.
//   - Excludes incomplete profiles.
//   - Filters by gender when q.Gender is set.
//   - Ordered by created_at ASC, id ASC so repeated calls are stable.
//
// Example:
//
//	repo.ListCandidates(ctx, CandidateQuery{UserID: "a", Gender: db.GenderFemale, Limit: 10})
func (r *UserRepository) ListCandidates(ctx context.Context, q CandidateQuery) ([]db.User, error) {
	if q.Limit <= 0 {
		return nil, svcErr.InvalidArgument("limit must be positive")
	}

	query := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("users.id <> ?", q.UserID).
		Where("users.is_profile_complete = ?", true).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM decisions d
				WHERE d.actor_id = ?
				  AND d.recipient_id = users.id
			)`, q.UserID)

	if q.Gender != "" {
		query = query.Where("users.gender = ?", q.Gender)
	}

	var users []db.User
	if err := query.Order("users.created_at ASC, users.id ASC").Limit(q.Limit).Find(&users).Error; err != nil {
		return nil, svcErr.Storage(err)
	}
	return users, nil
}
