package chat_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/logger"
	"github.com/oggyb/muzz-match/internal/realtime"
	"github.com/oggyb/muzz-match/internal/repository"
	"github.com/oggyb/muzz-match/internal/service/chat"
)

//
// Test helpers
//

type fixture struct {
	gdb      *gorm.DB
	store    *repository.Store
	registry *realtime.Registry
	router   *chat.Router
	alice    db.User
	bob      db.User
	carol    db.User
	match    *db.Match
}

// setupRouter spins up an in-memory SQLite DB with three users and a single
// match between alice and bob.
func setupRouter(t *testing.T, opts ...chat.Option) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:                db.Now,
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))

	f := &fixture{gdb: gdb, store: repository.NewStore(gdb), registry: realtime.NewRegistry()}
	users := []db.User{
		{ID: "u-alice", ExternalID: "ext-a", Email: "a@test.com", Name: "Alice", Gender: db.GenderFemale, Preference: db.GenderMale, IsProfileComplete: true},
		{ID: "u-bob", ExternalID: "ext-b", Email: "b@test.com", Name: "Bob", Gender: db.GenderMale, Preference: db.GenderFemale, IsProfileComplete: true},
		{ID: "u-carol", ExternalID: "ext-c", Email: "c@test.com", Name: "Carol", Gender: db.GenderFemale, Preference: db.GenderOther, IsProfileComplete: true},
	}
	require.NoError(t, gdb.Create(&users).Error)
	f.alice, f.bob, f.carol = users[0], users[1], users[2]

	f.match, _, err = f.store.CreateMatchIfAbsent(context.Background(), f.alice.ID, f.bob.ID)
	require.NoError(t, err)

	f.router = chat.NewRouter(f.store, f.registry, logger.Discard(), opts...)
	return f
}

// connect registers a bare handle for userID, standing in for a relay session.
func (f *fixture) connect(userID string) *realtime.Conn {
	c := realtime.NewConn(8)
	f.registry.Register(userID, c)
	return c
}

func drain(c *realtime.Conn) [][]byte {
	var frames [][]byte
	for {
		select {
		case b := <-c.Outbound():
			frames = append(frames, b)
		default:
			return frames
		}
	}
}

type mockForwarder struct {
	mock.Mock
}

func (m *mockForwarder) Forward(ctx context.Context, recipientID string, frame []byte) error {
	return m.Called(recipientID, frame).Error(0)
}

type failingStore struct {
	chat.Store
	insertErr error
}

func (s failingStore) InsertMessage(ctx context.Context, msg *db.Message) error {
	return s.insertErr
}

type cancellingStore struct {
	chat.Store
	cancel context.CancelFunc
}

func (s cancellingStore) InsertMessage(ctx context.Context, msg *db.Message) error {
	err := s.Store.InsertMessage(ctx, msg)
	s.cancel()
	return err
}

//
// Tests
//

func TestSend_DeliversExactlyOneFrameToConnectedRecipient(t *testing.T) {
	f := setupRouter(t)
	bobConn := f.connect(f.bob.ID)
	aliceConn := f.connect(f.alice.ID)

	msg, err := f.router.Send(context.Background(), f.match.ID, f.alice.ID, "hi")
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())

	frames := drain(bobConn)
	require.Len(t, frames, 1)

	var got realtime.MessageFrame
	require.NoError(t, json.Unmarshal(frames[0], &got))
	assert.Equal(t, realtime.FrameMessage, got.Type)
	assert.Equal(t, f.match.ID, got.Message.MatchID)
	assert.Equal(t, "hi", got.Message.Content)
	assert.Equal(t, f.alice.ID, got.Sender.ID)

	assert.Empty(t, drain(aliceConn), "sender must not get an echo")
}

func TestSend_OfflineRecipientStillInHistory(t *testing.T) {
	f := setupRouter(t)

	_, err := f.router.Send(context.Background(), f.match.ID, f.alice.ID, "are you there?")
	require.NoError(t, err)

	history, err := f.router.History(context.Background(), f.match.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "are you there?", history[0].Content)
	assert.Equal(t, "Alice", history[0].Sender.Name)
}

func TestSend_SequentialSendsKeepOrder(t *testing.T) {
	f := setupRouter(t)
	bobConn := f.connect(f.bob.ID)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.router.Send(ctx, f.match.ID, f.alice.ID, fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}

	history, err := f.router.History(ctx, f.match.ID)
	require.NoError(t, err)
	require.Len(t, history, 5)
	for i, m := range history {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), m.Content)
	}

	frames := drain(bobConn)
	require.Len(t, frames, 5)
	for i, b := range frames {
		var got realtime.MessageFrame
		require.NoError(t, json.Unmarshal(b, &got))
		assert.Equal(t, fmt.Sprintf("msg-%d", i), got.Message.Content)
	}
}

func TestSend_Validation(t *testing.T) {
	f := setupRouter(t)
	ctx := context.Background()

	_, err := f.router.Send(ctx, f.match.ID, f.alice.ID, "   ")
	assert.ErrorIs(t, err, svcErr.ErrInvalidArgument)

	_, err = f.router.Send(ctx, "no-such-match", f.alice.ID, "hi")
	assert.ErrorIs(t, err, svcErr.ErrNotFound)

	_, err = f.router.Send(ctx, f.match.ID, f.carol.ID, "hi")
	assert.ErrorIs(t, err, svcErr.ErrPermissionDenied)

	history, err := f.router.History(ctx, f.match.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSend_StorageFailureRelaysNothing(t *testing.T) {
	f := setupRouter(t)
	bobConn := f.connect(f.bob.ID)

	broken := failingStore{Store: f.store, insertErr: svcErr.Storage(errors.New("disk full"))}
	router := chat.NewRouter(broken, f.registry, logger.Discard())

	_, err := router.Send(context.Background(), f.match.ID, f.alice.ID, "hi")
	assert.ErrorIs(t, err, svcErr.ErrStorageUnavailable)
	assert.Empty(t, drain(bobConn))
}

func TestSend_DeliveryIgnoresCallerCancellation(t *testing.T) {
	f := setupRouter(t)
	bobConn := f.connect(f.bob.ID)

	// the caller gives up right after the message is stored
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := cancellingStore{Store: f.store, cancel: cancel}
	router := chat.NewRouter(store, f.registry, logger.Discard())

	msg, err := router.Send(ctx, f.match.ID, f.alice.ID, "hi")
	require.NoError(t, err)

	frames := drain(bobConn)
	require.Len(t, frames, 1)
	assert.Contains(t, string(frames[0]), msg.ID)
}

func TestSend_ReplacedConnectionGetsNothing(t *testing.T) {
	f := setupRouter(t)
	first := f.connect(f.bob.ID)
	second := f.connect(f.bob.ID)

	_, err := f.router.Send(context.Background(), f.match.ID, f.alice.ID, "hi")
	require.NoError(t, err)

	assert.Empty(t, drain(first))
	assert.Len(t, drain(second), 1)

	// a stale unregister leaves the live handle in place
	assert.False(t, f.registry.Unregister(f.bob.ID, first))
	_, err = f.router.Send(context.Background(), f.match.ID, f.alice.ID, "again")
	require.NoError(t, err)
	assert.Len(t, drain(second), 1)
}

func TestSend_FullBufferTimesOut(t *testing.T) {
	f := setupRouter(t, chat.WithPushTimeout(20*time.Millisecond))
	bobConn := realtime.NewConn(1)
	f.registry.Register(f.bob.ID, bobConn)
	require.NoError(t, bobConn.Push(context.Background(), []byte("filler")))

	start := time.Now()
	_, err := f.router.Send(context.Background(), f.match.ID, f.alice.ID, "hi")
	require.NoError(t, err, "a stuck recipient must not fail the sender")
	assert.Less(t, time.Since(start), time.Second)
}

func TestSend_ForwardsWhenNotLocal(t *testing.T) {
	fwd := &mockForwarder{}
	f := setupRouter(t, chat.WithForwarder(fwd))
	fwd.On("Forward", f.bob.ID, mock.AnythingOfType("[]uint8")).Return(nil).Once()

	_, err := f.router.Send(context.Background(), f.match.ID, f.alice.ID, "hi")
	require.NoError(t, err)
	fwd.AssertExpectations(t)

	// local recipients never go through the broker
	f.connect(f.bob.ID)
	_, err = f.router.Send(context.Background(), f.match.ID, f.alice.ID, "local")
	require.NoError(t, err)
	fwd.AssertNumberOfCalls(t, "Forward", 1)
}

func TestHistoryFor_RequiresParticipant(t *testing.T) {
	f := setupRouter(t)
	ctx := context.Background()
	_, err := f.router.Send(ctx, f.match.ID, f.bob.ID, "hey")
	require.NoError(t, err)

	msgs, err := f.router.HistoryFor(ctx, f.match.ID, f.alice.ID)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = f.router.HistoryFor(ctx, f.match.ID, f.carol.ID)
	assert.ErrorIs(t, err, svcErr.ErrPermissionDenied)

	_, err = f.router.HistoryFor(ctx, "missing", f.alice.ID)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)
}

func TestNotifyMatch_PushesToBothParticipants(t *testing.T) {
	f := setupRouter(t)
	aliceConn := f.connect(f.alice.ID)

	f.router.NotifyMatch(context.Background(), f.match)

	frames := drain(aliceConn)
	require.Len(t, frames, 1)
	var got realtime.MatchFrame
	require.NoError(t, json.Unmarshal(frames[0], &got))
	assert.Equal(t, realtime.FrameMatch, got.Type)
	assert.Equal(t, f.match.ID, got.Match.ID)
}
