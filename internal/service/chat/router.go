package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/metrics"
	"github.com/oggyb/muzz-match/internal/realtime"
)

// Store is the slice of persistence the router needs.
type Store interface {
	GetMatch(ctx context.Context, id string) (*db.Match, error)
	InsertMessage(ctx context.Context, msg *db.Message) error
	ListMessagesForMatch(ctx context.Context, matchID string) ([]db.MessageWithSender, error)
}

// Forwarder hands a frame to whichever instance holds the recipient's
// connection. Used only when the recipient is not connected here.
type Forwarder interface {
	Forward(ctx context.Context, recipientID string, frame []byte) error
}

const defaultPushTimeout = 2 * time.Second

// Router persists chat messages and relays them to the recipient's live
// connection. It implements realtime.MessageSender.
type Router struct {
	store       Store
	registry    *realtime.Registry
	forwarder   Forwarder
	log         *slog.Logger
	pushTimeout time.Duration
}

type Option func(*Router)

// WithForwarder enables cross-instance delivery for offline-here recipients.
func WithForwarder(f Forwarder) Option {
	return func(r *Router) { r.forwarder = f }
}

func WithPushTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.pushTimeout = d
		}
	}
}

func NewRouter(store Store, registry *realtime.Registry, log *slog.Logger, opts ...Option) *Router {
	r := &Router{
		store:       store,
		registry:    registry,
		log:         log,
		pushTimeout: defaultPushTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Send validates, persists and delivers one message.
//
// Behavior:
//   - Blank content → InvalidArgument; unknown match → NotFound;
//     a sender outside the match → PermissionDenied.
//   - The message is stored before anything is relayed. A storage failure
//     is returned and nothing is pushed.
//   - The recipient gets exactly one "message" frame if connected to this
//     instance; otherwise the frame goes to the forwarder, if any.
//   - Delivery is not cancelled by the caller once the message is stored.
//
// Example:
//
//	msg, err := router.Send(ctx, matchID, "a", "hi")
func (r *Router) Send(ctx context.Context, matchID, senderID, content string) (*db.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, svcErr.InvalidArgument("content must not be empty")
	}
	if matchID == "" {
		return nil, svcErr.InvalidArgument("matchId is required")
	}

	match, err := r.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasUser(senderID) {
		return nil, svcErr.PermissionDenied("user %s is not part of match %s", senderID, matchID)
	}

	msg := &db.Message{MatchID: matchID, SenderID: senderID, Content: content}
	if err := r.store.InsertMessage(ctx, msg); err != nil {
		r.log.Error("InsertMessage failed", "match", matchID, "err", err)
		return nil, err
	}
	metrics.MessagesSentTotal.Inc()

	frame, err := realtime.EncodeMessage(msg)
	if err != nil {
		// stored; only the live push is lost
		r.log.Error("encode message frame", "message", msg.ID, "err", err)
		return msg, nil
	}

	deliverCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.pushTimeout)
	defer cancel()
	r.deliver(deliverCtx, match.OtherUser(senderID), frame)

	return msg, nil
}

// History returns a match's messages oldest first, each with its sender.
func (r *Router) History(ctx context.Context, matchID string) ([]db.MessageWithSender, error) {
	if _, err := r.store.GetMatch(ctx, matchID); err != nil {
		return nil, err
	}
	return r.store.ListMessagesForMatch(ctx, matchID)
}

// HistoryFor is History restricted to the match's participants.
func (r *Router) HistoryFor(ctx context.Context, matchID, viewerID string) ([]db.MessageWithSender, error) {
	match, err := r.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !match.HasUser(viewerID) {
		return nil, svcErr.PermissionDenied("user %s is not part of match %s", viewerID, matchID)
	}
	return r.store.ListMessagesForMatch(ctx, matchID)
}

// NotifyMatch pushes a "match" frame to both participants. Best effort.
func (r *Router) NotifyMatch(ctx context.Context, match *db.Match) {
	frame, err := realtime.EncodeMatch(match)
	if err != nil {
		r.log.Error("encode match frame", "match", match.ID, "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.pushTimeout)
	defer cancel()
	for _, userID := range []string{match.User1ID, match.User2ID} {
		r.deliver(ctx, userID, frame)
	}
}

// Deliver pushes an already encoded frame to a local connection only.
// The broker calls it for frames forwarded by other instances.
func (r *Router) Deliver(ctx context.Context, recipientID string, frame []byte) bool {
	conn, ok := r.registry.Lookup(recipientID)
	if !ok {
		return false
	}
	if err := conn.Push(ctx, frame); err != nil {
		r.log.Debug("push failed", "recipient", recipientID, "err", err)
		metrics.DeliveriesTotal.WithLabelValues(metrics.DeliveryDropped).Inc()
		return false
	}
	metrics.DeliveriesTotal.WithLabelValues(metrics.DeliveryLocal).Inc()
	return true
}

func (r *Router) deliver(ctx context.Context, recipientID string, frame []byte) {
	if _, ok := r.registry.Lookup(recipientID); ok {
		r.Deliver(ctx, recipientID, frame)
		return
	}

	if r.forwarder == nil {
		metrics.DeliveriesTotal.WithLabelValues(metrics.DeliveryOffline).Inc()
		return
	}
	if err := r.forwarder.Forward(ctx, recipientID, frame); err != nil {
		r.log.Warn("forward failed", "recipient", recipientID, "err", err)
		metrics.DeliveriesTotal.WithLabelValues(metrics.DeliveryDropped).Inc()
		return
	}
	metrics.DeliveriesTotal.WithLabelValues(metrics.DeliveryForwarded).Inc()
}
