package rpc

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/realtime"
	"github.com/oggyb/muzz-match/internal/service/matching"
)

type Matcher interface {
	SelectCandidates(ctx context.Context, userID string, limit int) ([]db.User, error)
	RecordDecision(ctx context.Context, fromUserID, toUserID string, action db.Action) (*matching.DecisionOutcome, error)
	ListMatches(ctx context.Context, userID string) ([]db.MatchWithUsers, error)
	ListLikedYou(ctx context.Context, userID string, pageToken *string, limit int) ([]db.Decision, *string, error)
	CountLikedYou(ctx context.Context, userID string) (int64, error)
}

type Messenger interface {
	Send(ctx context.Context, matchID, senderID, content string) (*db.Message, error)
	History(ctx context.Context, matchID string) ([]db.MessageWithSender, error)
	HistoryFor(ctx context.Context, matchID, viewerID string) ([]db.MessageWithSender, error)
	NotifyMatch(ctx context.Context, match *db.Match)
}

// Service implements the MatchingService gRPC API. It is an internal API:
// callers are trusted to pass the acting user's id.
type Service struct {
	matching Matcher
	chat     Messenger
	relay    *realtime.Relay
	log      *slog.Logger
}

func NewService(m Matcher, chat Messenger, relay *realtime.Relay, log *slog.Logger) *Service {
	return &Service{matching: m, chat: chat, relay: relay, log: log}
}

func (s *Service) SelectCandidates(ctx context.Context, req *SelectCandidatesRequest) (*SelectCandidatesResponse, error) {
	users, err := s.matching.SelectCandidates(ctx, req.UserID, req.Limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &SelectCandidatesResponse{Users: users}, nil
}

// RecordDecision also pushes the match notification when this call
// created the match.
func (s *Service) RecordDecision(ctx context.Context, req *RecordDecisionRequest) (*RecordDecisionResponse, error) {
	out, err := s.matching.RecordDecision(ctx, req.FromUserID, req.ToUserID, req.Action)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if out.MatchCreated {
		s.chat.NotifyMatch(ctx, out.Match)
	}
	return &RecordDecisionResponse{Like: out.Like, Match: out.Match, IsMatch: out.IsMatch}, nil
}

func (s *Service) ListMatches(ctx context.Context, req *ListMatchesRequest) (*ListMatchesResponse, error) {
	matches, err := s.matching.ListMatches(ctx, req.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &ListMatchesResponse{Matches: matches}, nil
}

func (s *Service) ListMessages(ctx context.Context, req *ListMessagesRequest) (*ListMessagesResponse, error) {
	var (
		messages []db.MessageWithSender
		err      error
	)
	if req.ViewerID != "" {
		messages, err = s.chat.HistoryFor(ctx, req.MatchID, req.ViewerID)
	} else {
		messages, err = s.chat.History(ctx, req.MatchID)
	}
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &ListMessagesResponse{Messages: messages}, nil
}

func (s *Service) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMessageResponse, error) {
	msg, err := s.chat.Send(ctx, req.MatchID, req.SenderID, req.Content)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &SendMessageResponse{Message: msg}, nil
}

func (s *Service) ListLikedYou(ctx context.Context, req *ListLikedYouRequest) (*ListLikedYouResponse, error) {
	s.log.Debug("ListLikedYou called", "recipient", req.RecipientUserID, "token", req.PaginationToken)

	decisions, next, err := s.matching.ListLikedYou(ctx, req.RecipientUserID, req.PaginationToken, req.Limit)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	resp := &ListLikedYouResponse{Likers: make([]Liker, 0, len(decisions)), NextPaginationToken: next}
	for _, d := range decisions {
		resp.Likers = append(resp.Likers, Liker{
			ActorID:       d.ActorID,
			UnixTimestamp: uint64(d.CreatedAt.UnixMilli()),
		})
	}
	return resp, nil
}

func (s *Service) CountLikedYou(ctx context.Context, req *CountLikedYouRequest) (*CountLikedYouResponse, error) {
	n, err := s.matching.CountLikedYou(ctx, req.RecipientUserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &CountLikedYouResponse{Count: uint64(n)}, nil
}

// Connect runs a relay session over the bidirectional stream. Frames are
// the same JSON objects the WebSocket endpoint carries.
func (s *Service) Connect(stream grpc.ServerStream) error {
	if err := s.relay.Serve(stream.Context(), NewStreamTransport(stream)); err != nil {
		s.log.Debug("stream session ended", "err", err)
	}
	return nil
}
