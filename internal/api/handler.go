package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
)

type Handler struct {
	matching Matcher
	chat     Messenger
	log      *slog.Logger
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type LikeRequest struct {
	ToUserID string `json:"toUserId" binding:"required"`
	Action   string `json:"action" binding:"required,decision_action"`
}

type SendMessageRequest struct {
	MatchID string `json:"matchId" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type Liker struct {
	UserID  string `json:"userId"`
	LikedAt int64  `json:"likedAt"`
}

// Feed handles GET /api/feed
func (h *Handler) Feed(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		writeError(c, err)
		return
	}

	users, err := h.matching.SelectCandidates(c.Request.Context(), CurrentUser(c), limit)
	if err != nil {
		h.fail(c, "SelectCandidates", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// Like handles POST /api/like. A created match is pushed to both users.
func (h *Handler) Like(c *gin.Context) {
	var req LikeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}
	action, err := db.ParseAction(req.Action)
	if err != nil {
		writeError(c, svcErr.InvalidArgument("%s", err.Error()))
		return
	}

	out, err := h.matching.RecordDecision(c.Request.Context(), CurrentUser(c), req.ToUserID, action)
	if err != nil {
		h.fail(c, "RecordDecision", err)
		return
	}
	if out.MatchCreated {
		h.chat.NotifyMatch(c.Request.Context(), out.Match)
	}
	c.JSON(http.StatusOK, out)
}

// ListMatches handles GET /api/matches
func (h *Handler) ListMatches(c *gin.Context) {
	matches, err := h.matching.ListMatches(c.Request.Context(), CurrentUser(c))
	if err != nil {
		h.fail(c, "ListMatches", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": matches})
}

// ListMessages handles GET /api/matches/:matchId/messages
func (h *Handler) ListMessages(c *gin.Context) {
	messages, err := h.chat.HistoryFor(c.Request.Context(), c.Param("matchId"), CurrentUser(c))
	if err != nil {
		h.fail(c, "HistoryFor", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// SendMessage handles POST /api/messages, the non-real-time fallback.
// The sender is always the authenticated user.
func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, bindError(err))
		return
	}

	msg, err := h.chat.Send(c.Request.Context(), req.MatchID, CurrentUser(c), req.Content)
	if err != nil {
		h.fail(c, "Send", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// ListLikedYou handles GET /api/likes/received
func (h *Handler) ListLikedYou(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		writeError(c, err)
		return
	}
	var token *string
	if t := c.Query("pageToken"); t != "" {
		token = &t
	}

	decisions, next, err := h.matching.ListLikedYou(c.Request.Context(), CurrentUser(c), token, limit)
	if err != nil {
		h.fail(c, "ListLikedYou", err)
		return
	}

	likers := make([]Liker, 0, len(decisions))
	for _, d := range decisions {
		likers = append(likers, Liker{UserID: d.ActorID, LikedAt: d.CreatedAt.UnixMilli()})
	}
	resp := gin.H{"likers": likers}
	if next != nil {
		resp["nextPageToken"] = *next
	}
	c.JSON(http.StatusOK, resp)
}

// CountLikedYou handles GET /api/likes/received/count
func (h *Handler) CountLikedYou(c *gin.Context) {
	n, err := h.matching.CountLikedYou(c.Request.Context(), CurrentUser(c))
	if err != nil {
		h.fail(c, "CountLikedYou", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

// fail logs infrastructure errors and writes the response.
// Client errors stay at debug.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	if svcErr.IsClientError(err) {
		h.log.Debug(op+" rejected", "err", err)
	} else {
		h.log.Error(op+" failed", "err", err)
	}
	writeError(c, err)
}

func writeError(c *gin.Context, err error) {
	c.JSON(svcErr.HTTPStatus(err), ErrorResponse{Error: svcErr.PublicMessage(err), Code: svcErr.Code(err)})
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(svcErr.HTTPStatus(err), ErrorResponse{Error: svcErr.PublicMessage(err), Code: svcErr.Code(err)})
}

func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		f := verrs[0]
		if f.Tag() == "decision_action" {
			return svcErr.InvalidArgument("%s must be like or skip", f.Field())
		}
		return svcErr.InvalidArgument("%s is %s", f.Field(), f.Tag())
	}
	return svcErr.InvalidArgument("invalid request body")
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, svcErr.InvalidArgument("%s must be an integer", key)
	}
	return n, nil
}
