package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
)

// Store bundles every repository behind one value. It satisfies the
// persistence interfaces declared by the matching and chat services.
type Store struct {
	*UserRepository
	*DecisionRepository
	*MatchRepository
	*MessageRepository
}

// NewStore creates all repositories bound to the given DB connection.
func NewStore(database *gorm.DB) *Store {
	return &Store{
		UserRepository:     NewUserRepository(database),
		DecisionRepository: NewDecisionRepository(database),
		MatchRepository:    NewMatchRepository(database),
		MessageRepository:  NewMessageRepository(database),
	}
}

// newID returns a time-ordered id so primary keys sort by insertion.
func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// storageErr classifies a gorm error. A missing row becomes NotFound
// described by what; everything else is a storage failure.
func storageErr(err error, what string, args ...any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return svcErr.NotFound(what, args...)
	}
	return svcErr.Storage(err)
}

// loadUsers fetches the given users keyed by id. Missing ids are simply absent.
func loadUsers(ctx context.Context, database *gorm.DB, ids []string) (map[string]db.User, error) {
	out := make(map[string]db.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var users []db.User
	if err := database.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, svcErr.Storage(err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func uniqueIDs(ids ...string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
