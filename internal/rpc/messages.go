package rpc

import "github.com/oggyb/muzz-match/internal/db"

// Request and response bodies of dating.v1.MatchingService. They travel
// JSON-encoded (content-subtype "json").

type SelectCandidatesRequest struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit"`
}

type SelectCandidatesResponse struct {
	Users []db.User `json:"users"`
}

type RecordDecisionRequest struct {
	FromUserID string    `json:"from_user_id"`
	ToUserID   string    `json:"to_user_id"`
	Action     db.Action `json:"action"`
}

type RecordDecisionResponse struct {
	Like    *db.Decision `json:"like"`
	Match   *db.Match    `json:"match,omitempty"`
	IsMatch bool         `json:"is_match"`
}

type ListMatchesRequest struct {
	UserID string `json:"user_id"`
}

type ListMatchesResponse struct {
	Matches []db.MatchWithUsers `json:"matches"`
}

// ListMessagesRequest reads a match's history. When ViewerID is set the
// viewer must be a participant.
type ListMessagesRequest struct {
	MatchID  string `json:"match_id"`
	ViewerID string `json:"viewer_id,omitempty"`
}

type ListMessagesResponse struct {
	Messages []db.MessageWithSender `json:"messages"`
}

type SendMessageRequest struct {
	MatchID  string `json:"match_id"`
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
}

type SendMessageResponse struct {
	Message *db.Message `json:"message"`
}

type ListLikedYouRequest struct {
	RecipientUserID string  `json:"recipient_user_id"`
	PaginationToken *string `json:"pagination_token,omitempty"`
	Limit           int     `json:"limit"`
}

type Liker struct {
	ActorID       string `json:"actor_id"`
	UnixTimestamp uint64 `json:"unix_timestamp"`
}

type ListLikedYouResponse struct {
	Likers              []Liker `json:"likers"`
	NextPaginationToken *string `json:"next_pagination_token,omitempty"`
}

type CountLikedYouRequest struct {
	RecipientUserID string `json:"recipient_user_id"`
}

type CountLikedYouResponse struct {
	Count uint64 `json:"count"`
}
