package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-match/internal/api"
	"github.com/oggyb/muzz-match/internal/auth"
	"github.com/oggyb/muzz-match/internal/cache"
	"github.com/oggyb/muzz-match/internal/config"
	"github.com/oggyb/muzz-match/internal/db"
	"github.com/oggyb/muzz-match/internal/logger"
	"github.com/oggyb/muzz-match/internal/realtime"
	"github.com/oggyb/muzz-match/internal/repository"
	"github.com/oggyb/muzz-match/internal/service/chat"
	"github.com/oggyb/muzz-match/internal/service/matching"
)

//
// Test helpers
//

type testAPI struct {
	gdb      *gorm.DB
	router   *gin.Engine
	verifier *auth.Verifier
	registry *realtime.Registry
}

// setupAPI wires the real services over an in-memory SQLite DB and a
// miniredis, exactly like cmd/server does.
//
// Users:
//   - a: male, wants female
//   - b: female, wants male
//   - c: female, wants everyone
func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{NowFunc: db.Now, SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))

	users := []db.User{
		{ID: "a", ExternalID: "ext-a", Email: "a@test.com", Name: "A", Gender: db.GenderMale, Preference: db.GenderFemale, IsProfileComplete: true},
		{ID: "b", ExternalID: "ext-b", Email: "b@test.com", Name: "B", Gender: db.GenderFemale, Preference: db.GenderMale, IsProfileComplete: true},
		{ID: "c", ExternalID: "ext-c", Email: "c@test.com", Name: "C", Gender: db.GenderFemale, Preference: db.GenderOther, IsProfileComplete: true},
	}
	require.NoError(t, gdb.Create(&users).Error)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	redisCache := cache.NewRedisCache(cfg)
	t.Cleanup(func() { redisCache.Close() })

	log := logger.Discard()
	store := repository.NewStore(gdb)
	registry := realtime.NewRegistry()
	router := chat.NewRouter(store, registry, log)
	relay := realtime.NewRelay(registry, router, log)
	verifier := auth.NewVerifier("test-secret", "", time.Hour)

	engine := api.NewRouter(api.Deps{
		Matching: matching.NewService(store, redisCache, log, 10, 50),
		Chat:     router,
		Verifier: verifier,
		Relay:    relay.ServeWebSocket,
		Checks: map[string]api.HealthCheck{
			"redis": redisCache.Ping,
		},
		Log: log,
	})
	return &testAPI{gdb: gdb, router: engine, verifier: verifier, registry: registry}
}

func (ta *testAPI) do(t *testing.T, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		token, err := ta.verifier.Issue(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type outcomeBody struct {
	Like    db.Decision `json:"like"`
	Match   *db.Match   `json:"match"`
	IsMatch bool        `json:"isMatch"`
}

//
// Tests
//

func TestAuth_RequiresValidBearer(t *testing.T) {
	ta := setupAPI(t)

	rec := ta.do(t, http.MethodGet, "/api/feed", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthenticated", decode[api.ErrorResponse](t, rec).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	ta.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestFeed(t *testing.T) {
	ta := setupAPI(t)

	rec := ta.do(t, http.MethodGet, "/api/feed", "a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct{ Users []db.User }](t, rec)
	require.Len(t, body.Users, 2)
	assert.Equal(t, "b", body.Users[0].ID)
	assert.NotContains(t, rec.Body.String(), "a@test.com", "emails stay private")

	rec = ta.do(t, http.MethodGet, "/api/feed?limit=abc", "a", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ta.do(t, http.MethodGet, "/api/feed", "ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLike_Validation(t *testing.T) {
	ta := setupAPI(t)

	rec := ta.do(t, http.MethodPost, "/api/like", "a", map[string]string{"toUserId": "b", "action": "superlike"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_argument", decode[api.ErrorResponse](t, rec).Code)

	rec = ta.do(t, http.MethodPost, "/api/like", "a", map[string]string{"action": "like"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ta.do(t, http.MethodPost, "/api/like", "a", map[string]string{"toUserId": "a", "action": "like"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ta.do(t, http.MethodPost, "/api/like", "a", map[string]string{"toUserId": "ghost", "action": "like"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLikeMatchAndMessages(t *testing.T) {
	ta := setupAPI(t)

	rec := ta.do(t, http.MethodPost, "/api/like", "a", map[string]string{"toUserId": "b", "action": "like"})
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[outcomeBody](t, rec)
	assert.False(t, first.IsMatch)
	assert.Nil(t, first.Match)
	assert.Equal(t, "b", first.Like.RecipientID)

	rec = ta.do(t, http.MethodPost, "/api/like", "b", map[string]string{"toUserId": "a", "action": "LIKE"})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[outcomeBody](t, rec)
	require.True(t, second.IsMatch)
	matchID := second.Match.ID

	rec = ta.do(t, http.MethodGet, "/api/matches", "a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	matches := decode[struct{ Matches []db.MatchWithUsers }](t, rec)
	require.Len(t, matches.Matches, 1)
	assert.Equal(t, "B", matches.Matches[0].User2.Name)

	rec = ta.do(t, http.MethodPost, "/api/messages", "a", map[string]string{"matchId": matchID, "content": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = ta.do(t, http.MethodPost, "/api/messages", "b", map[string]string{"matchId": matchID, "content": "hey"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ta.do(t, http.MethodGet, "/api/matches/"+matchID+"/messages", "b", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[struct{ Messages []db.MessageWithSender }](t, rec)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "hi", history.Messages[0].Content)
	assert.Equal(t, "A", history.Messages[0].Sender.Name)
	assert.Equal(t, "hey", history.Messages[1].Content)

	// outsiders can neither read nor write
	rec = ta.do(t, http.MethodGet, "/api/matches/"+matchID+"/messages", "c", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = ta.do(t, http.MethodPost, "/api/messages", "c", map[string]string{"matchId": matchID, "content": "hi"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ta.do(t, http.MethodPost, "/api/messages", "a", map[string]string{"matchId": matchID, "content": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ta.do(t, http.MethodGet, "/api/matches/nope/messages", "a", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLikesReceived(t *testing.T) {
	ta := setupAPI(t)

	for _, from := range []string{"b", "c"} {
		rec := ta.do(t, http.MethodPost, "/api/like", from, map[string]string{"toUserId": "a", "action": "like"})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := ta.do(t, http.MethodGet, "/api/likes/received/count", "a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":2}`, rec.Body.String())

	rec = ta.do(t, http.MethodGet, "/api/likes/received?limit=1", "a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[struct {
		Likers        []api.Liker
		NextPageToken string
	}](t, rec)
	require.Len(t, page.Likers, 1)
	require.NotEmpty(t, page.NextPageToken)

	rec = ta.do(t, http.MethodGet, "/api/likes/received?limit=1&pageToken="+page.NextPageToken, "a", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rest := decode[struct {
		Likers        []api.Liker
		NextPageToken string
	}](t, rec)
	require.Len(t, rest.Likers, 1)
	assert.Empty(t, rest.NextPageToken)
	assert.NotEqual(t, page.Likers[0].UserID, rest.Likers[0].UserID)
}

func TestHealthz(t *testing.T) {
	ta := setupAPI(t)

	rec := ta.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redis":"ok"`)

	failing := api.NewRouter(api.Deps{
		Checks: map[string]api.HealthCheck{"db": func(context.Context) error { return errors.New("down") }},
		Log:    logger.Discard(),
	})
	rec = httptest.NewRecorder()
	failing.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ta := setupAPI(t)
	ta.do(t, http.MethodGet, "/api/feed", "a", nil)

	rec := ta.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "muzz_http_request_duration_seconds")
}

// TestRealtimeScenario drives the whole flow: B is connected over the
// WebSocket relay, the pair matches over HTTP, and A's messages reach B live.
func TestRealtimeScenario(t *testing.T) {
	ta := setupAPI(t)
	srv := httptest.NewServer(ta.router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	bConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { bConn.Close() })

	read := func() map[string]any {
		t.Helper()
		require.NoError(t, bConn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var frame map[string]any
		require.NoError(t, bConn.ReadJSON(&frame))
		return frame
	}

	// a message before authenticate is diagnosed, not fatal
	require.NoError(t, bConn.WriteJSON(map[string]string{"type": "message", "matchId": "x", "content": "hi"}))
	assert.Equal(t, "protocol_error", read()["code"])

	require.NoError(t, bConn.WriteJSON(map[string]string{"type": "authenticate", "userId": "b"}))
	assert.Equal(t, "authenticated", read()["type"])
	require.Eventually(t, func() bool {
		_, ok := ta.registry.Lookup("b")
		return ok
	}, time.Second, 10*time.Millisecond)

	rec := ta.do(t, http.MethodPost, "/api/like", "a", map[string]string{"toUserId": "b", "action": "like"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = ta.do(t, http.MethodPost, "/api/like", "b", map[string]string{"toUserId": "a", "action": "like"})
	require.Equal(t, http.StatusOK, rec.Code)
	matchID := decode[outcomeBody](t, rec).Match.ID

	matchFrame := read()
	assert.Equal(t, "match", matchFrame["type"])
	assert.Equal(t, matchID, matchFrame["match"].(map[string]any)["id"])

	rec = ta.do(t, http.MethodPost, "/api/messages", "a", map[string]string{"matchId": matchID, "content": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)

	msgFrame := read()
	assert.Equal(t, "message", msgFrame["type"])
	assert.Equal(t, "hi", msgFrame["message"].(map[string]any)["content"])
	assert.Equal(t, matchID, msgFrame["message"].(map[string]any)["matchId"])
	assert.Equal(t, "a", msgFrame["sender"].(map[string]any)["id"])

	// b answers over the relay; the message lands in history
	require.NoError(t, bConn.WriteJSON(map[string]string{"type": "message", "matchId": matchID, "content": "hello"}))
	require.Eventually(t, func() bool {
		rec := ta.do(t, http.MethodGet, "/api/matches/"+matchID+"/messages", "a", nil)
		return strings.Contains(rec.Body.String(), "hello")
	}, 2*time.Second, 20*time.Millisecond)
}
