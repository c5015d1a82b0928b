package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
)

// MatchRepository stores confirmed mutual likes.
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

// CreateMatchIfAbsent creates the match for an unordered pair exactly once.
//
// Behavior:
//   - The pair is canonicalised (user1_id < user2_id) before insert.
//   - INSERT ... ON CONFLICT DO NOTHING against idx_match_pair; the database
//     picks a single winner when two requests race on the same pair.
//   - The losing (or repeated) call reads back and returns the stored match, created = false.
//
// Example:
//
//	m, created, err := repo.CreateMatchIfAbsent(ctx, "b", "a") // stored as (a, b)
func (r *MatchRepository) CreateMatchIfAbsent(ctx context.Context, userA, userB string) (*db.Match, bool, error) {
	user1, user2 := db.CanonicalPair(userA, userB)
	if user1 == user2 {
		return nil, false, svcErr.InvalidArgument("a match needs two different users")
	}

	match := db.Match{
		ID:        newID(),
		User1ID:   user1,
		User2ID:   user2,
		CreatedAt: db.Now(),
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user1_id"}, {Name: "user2_id"}},
			DoNothing: true,
		}).
		Create(&match)
	if res.Error != nil {
		return nil, false, svcErr.Storage(res.Error)
	}
	if res.RowsAffected == 1 {
		return &match, true, nil
	}

	existing, err := r.GetMatchByUsers(ctx, user1, user2)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetMatch loads a match by id, NotFound when it does not exist.
func (r *MatchRepository) GetMatch(ctx context.Context, id string) (*db.Match, error) {
	var match db.Match
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&match).Error; err != nil {
		return nil, storageErr(err, "match %s", id)
	}
	return &match, nil
}

// GetMatchByUsers loads the match between two users in either order.
func (r *MatchRepository) GetMatchByUsers(ctx context.Context, userA, userB string) (*db.Match, error) {
	user1, user2 := db.CanonicalPair(userA, userB)

	var match db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? AND user2_id = ?", user1, user2).
		Take(&match).Error
	if err != nil {
		return nil, storageErr(err, "match between %s and %s", user1, user2)
	}
	return &match, nil
}

// ListMatchesForUser returns the user's matches with both profiles attached.
//
// Behavior:
//   - Newest first: created_at DESC, id DESC.
//   - Matches whose profiles no longer exist are left out.
//
// Example:
//
//	repo.ListMatchesForUser(ctx, "a") // -> [{Match, User1, User2}, ...]
func (r *MatchRepository) ListMatchesForUser(ctx context.Context, userID string) ([]db.MatchWithUsers, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("created_at DESC, id DESC").
		Find(&matches).Error
	if err != nil {
		return nil, svcErr.Storage(err)
	}

	ids := make([]string, 0, len(matches)*2)
	for _, m := range matches {
		ids = append(ids, m.User1ID, m.User2ID)
	}
	users, err := loadUsers(ctx, r.db, uniqueIDs(ids...))
	if err != nil {
		return nil, err
	}

	out := make([]db.MatchWithUsers, 0, len(matches))
	for _, m := range matches {
		user1, ok1 := users[m.User1ID]
		user2, ok2 := users[m.User2ID]
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, db.MatchWithUsers{Match: m, User1: user1, User2: user2})
	}
	return out, nil
}
