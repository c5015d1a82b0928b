package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oggyb/muzz-match/internal/db"
	"github.com/oggyb/muzz-match/internal/service/matching"
)

// Matcher is the matching core as seen by the HTTP layer.
type Matcher interface {
	SelectCandidates(ctx context.Context, userID string, limit int) ([]db.User, error)
	RecordDecision(ctx context.Context, fromUserID, toUserID string, action db.Action) (*matching.DecisionOutcome, error)
	ListMatches(ctx context.Context, userID string) ([]db.MatchWithUsers, error)
	ListLikedYou(ctx context.Context, userID string, pageToken *string, limit int) ([]db.Decision, *string, error)
	CountLikedYou(ctx context.Context, userID string) (int64, error)
}

// Messenger is the message router as seen by the HTTP layer.
type Messenger interface {
	Send(ctx context.Context, matchID, senderID, content string) (*db.Message, error)
	HistoryFor(ctx context.Context, matchID, viewerID string) ([]db.MessageWithSender, error)
	NotifyMatch(ctx context.Context, match *db.Match)
}

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	Subject(token string) (string, error)
}

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Deps struct {
	Matching Matcher
	Chat     Messenger
	Verifier TokenVerifier
	// Relay serves the real-time stream on /ws. Optional.
	Relay  http.HandlerFunc
	Checks map[string]HealthCheck
	Log    *slog.Logger
}

// NewRouter builds the HTTP API.
//
//	GET  /healthz
//	GET  /metrics
//	GET  /ws
//	GET  /api/feed?limit=
//	POST /api/like
//	GET  /api/matches
//	GET  /api/matches/:matchId/messages
//	POST /api/messages
//	GET  /api/likes/received?pageToken=&limit=
//	GET  /api/likes/received/count
func NewRouter(deps Deps) *gin.Engine {
	registerValidations()

	router := gin.New()
	router.Use(gin.Recovery(), requestMetrics())

	h := &Handler{matching: deps.Matching, chat: deps.Chat, log: deps.Log}

	router.GET("/healthz", healthz(deps.Checks))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if deps.Relay != nil {
		router.GET("/ws", gin.WrapF(deps.Relay))
	}

	api := router.Group("/api")
	api.Use(RequireAuth(deps.Verifier))
	{
		api.GET("/feed", h.Feed)
		api.POST("/like", h.Like)

		api.GET("/matches", h.ListMatches)
		api.GET("/matches/:matchId/messages", h.ListMessages)
		api.POST("/messages", h.SendMessage)

		likes := api.Group("/likes/received")
		{
			likes.GET("", h.ListLikedYou)
			likes.GET("/count", h.CountLikedYou)
		}
	}

	return router
}

func healthz(checks map[string]HealthCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		result := gin.H{}
		for name, check := range checks {
			if err := check(c.Request.Context()); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": result})
	}
}
