package matching

import (
	"context"
	"log/slog"
	"strings"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/metrics"
	"github.com/oggyb/muzz-match/internal/repository"
)

// Store is the persistence the matching core depends on.
// repository.Store implements it on gorm.
type Store interface {
	GetUser(ctx context.Context, id string) (*db.User, error)
	ListCandidates(ctx context.Context, q repository.CandidateQuery) ([]db.User, error)
	CreateDecision(ctx context.Context, actorID, recipientID string, action db.Action) (*db.Decision, bool, error)
	HasLiked(ctx context.Context, actorID, recipientID string) (bool, error)
	CreateMatchIfAbsent(ctx context.Context, userA, userB string) (*db.Match, bool, error)
	ListMatchesForUser(ctx context.Context, userID string) ([]db.MatchWithUsers, error)
	ListPendingLikers(ctx context.Context, recipientID string, paginationToken *string, limit int) ([]db.Decision, *string, error)
	CountPendingLikers(ctx context.Context, recipientID string) (int64, error)
}

// LikeCounter caches pending-like counters. cache.RedisCache implements it.
type LikeCounter interface {
	GetLikeCount(ctx context.Context, userID string) (int64, bool, error)
	SetLikeCount(ctx context.Context, userID string, count int64) error
	InvalidateLikeCounts(ctx context.Context, userIDs ...string) error
}

// Service selects candidates and records decisions.
// Each method is exposed over HTTP and over the MatchingService gRPC API.
type Service struct {
	store        Store
	likes        LikeCounter
	log          *slog.Logger
	defaultLimit int
	maxLimit     int
}

// NewService wires the matching core. likes may be nil, in which case
// counters always come from the database.
func NewService(store Store, likes LikeCounter, log *slog.Logger, defaultLimit, maxLimit int) *Service {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	if maxLimit < defaultLimit {
		maxLimit = defaultLimit
	}
	return &Service{
		store:        store,
		likes:        likes,
		log:          log,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// DecisionOutcome is the result of RecordDecision.
type DecisionOutcome struct {
	Like    *db.Decision `json:"like"`
	Match   *db.Match    `json:"match"`
	IsMatch bool         `json:"isMatch"`
	// MatchCreated is set only on the call that created the match,
	// so exactly one caller sends the match notification.
	MatchCreated bool `json:"-"`
}

// SelectCandidates returns up to limit profiles userID has not decided on yet.
//
// Behavior:
//   - Excludes the requester, decided users and incomplete profiles.
//   - A male/female preference filters by gender; "other" shows everyone.
//   - limit <= 0 uses the default; larger than the max is clamped.
//   - Unknown users fail with NotFound.
//
// Example:
//
//	svc.SelectCandidates(ctx, "a", 10)
func (s *Service) SelectCandidates(ctx context.Context, userID string, limit int) ([]db.User, error) {
	s.log.Debug("SelectCandidates called", "user", userID, "limit", limit)

	if strings.TrimSpace(userID) == "" {
		return nil, svcErr.InvalidArgument("userId is required")
	}
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	q := repository.CandidateQuery{UserID: user.ID, Limit: s.clamp(limit)}
	switch user.Preference {
	case db.GenderMale, db.GenderFemale:
		q.Gender = user.Preference
	}

	users, err := s.store.ListCandidates(ctx, q)
	if err != nil {
		s.log.Error("ListCandidates failed", "user", userID, "err", err)
		return nil, err
	}
	return users, nil
}

// RecordDecision stores fromUserID's like or skip on toUserID and reports
// whether the pair is now a match.
//
// Behavior:
//   - Validates both ids (distinct, existing) and the action.
//   - The first decision on a pair is final; repeating it is a no-op.
//   - When the stored decision is a like and the reverse like exists,
//     the match is created once through the pair's unique index.
//   - isMatch reflects current state, so a repeated like on a matched
//     pair returns the existing match.
//   - Pending-like counters of both users are invalidated on a new decision.
//
// Example:
//
//	out, err := svc.RecordDecision(ctx, "a", "b", db.ActionLike)
func (s *Service) RecordDecision(ctx context.Context, fromUserID, toUserID string, action db.Action) (*DecisionOutcome, error) {
	s.log.Debug("RecordDecision called", "from", fromUserID, "to", toUserID, "action", action)

	if fromUserID == "" || toUserID == "" {
		return nil, svcErr.InvalidArgument("fromUserId and toUserId are required")
	}
	if fromUserID == toUserID {
		return nil, svcErr.InvalidArgument("cannot decide on yourself")
	}
	if !action.Valid() {
		return nil, svcErr.InvalidArgument("action must be like or skip")
	}
	for _, id := range []string{fromUserID, toUserID} {
		if _, err := s.store.GetUser(ctx, id); err != nil {
			return nil, err
		}
	}

	decision, created, err := s.store.CreateDecision(ctx, fromUserID, toUserID, action)
	if err != nil {
		s.log.Error("CreateDecision failed", "from", fromUserID, "to", toUserID, "err", err)
		return nil, err
	}
	if created {
		metrics.DecisionsTotal.WithLabelValues(action.String()).Inc()
		s.invalidateCounts(ctx, fromUserID, toUserID)
	}

	out := &DecisionOutcome{Like: decision}
	if !decision.Liked {
		return out, nil
	}

	// reverse-like lookup → mutual
	mutual, err := s.store.HasLiked(ctx, toUserID, fromUserID)
	if err != nil {
		return nil, err
	}
	if !mutual {
		return out, nil
	}

	match, matchCreated, err := s.store.CreateMatchIfAbsent(ctx, fromUserID, toUserID)
	if err != nil {
		s.log.Error("CreateMatchIfAbsent failed", "from", fromUserID, "to", toUserID, "err", err)
		return nil, err
	}
	if matchCreated {
		metrics.MatchesCreatedTotal.Inc()
		s.log.Info("match created", "match", match.ID, "user1", match.User1ID, "user2", match.User2ID)
	}

	out.Match = match
	out.IsMatch = true
	out.MatchCreated = matchCreated
	return out, nil
}

// ListMatches returns userID's matches newest first, with both profiles.
func (s *Service) ListMatches(ctx context.Context, userID string) ([]db.MatchWithUsers, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListMatchesForUser(ctx, userID)
}

// ListLikedYou returns the users who liked userID and are still waiting
// for an answer, newest first, paged by an opaque token.
//
// Example:
//
//	likers, next, err := svc.ListLikedYou(ctx, "a", nil, 20)
func (s *Service) ListLikedYou(ctx context.Context, userID string, pageToken *string, limit int) ([]db.Decision, *string, error) {
	s.log.Debug("ListLikedYou called", "recipient", userID, "token", pageToken)

	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, nil, err
	}

	decisions, next, err := s.store.ListPendingLikers(ctx, userID, pageToken, s.clamp(limit))
	if err != nil {
		return nil, nil, err
	}

	s.log.Debug("ListLikedYou result", "liker_count", len(decisions), "has_next", next != nil)
	return decisions, next, nil
}

// CountLikedYou returns how many likes userID has not answered yet.
// Cache-first strategy:
//  1. Reads the counter from Redis (likes:pending:userID), refreshing its TTL.
//  2. On a miss or cache error, counts in the database.
//  3. Writes the fresh count back with a 1h TTL.
func (s *Service) CountLikedYou(ctx context.Context, userID string) (int64, error) {
	if s.likes != nil {
		n, ok, err := s.likes.GetLikeCount(ctx, userID)
		if err != nil {
			s.log.Warn("like counter read failed", "user", userID, "err", err)
		} else if ok {
			return n, nil
		}
	}

	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return 0, err
	}
	count, err := s.store.CountPendingLikers(ctx, userID)
	if err != nil {
		return 0, err
	}

	if s.likes != nil {
		if err := s.likes.SetLikeCount(ctx, userID, count); err != nil {
			s.log.Warn("like counter write failed", "user", userID, "err", err)
		}
	}
	return count, nil
}

func (s *Service) invalidateCounts(ctx context.Context, userIDs ...string) {
	if s.likes == nil {
		return
	}
	if err := s.likes.InvalidateLikeCounts(ctx, userIDs...); err != nil {
		s.log.Warn("like counter invalidation failed", "users", userIDs, "err", err)
	}
}

func (s *Service) clamp(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > s.maxLimit {
		return s.maxLimit
	}
	return limit
}
