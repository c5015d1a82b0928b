package realtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/oggyb/muzz-match/internal/db"
	svcErr "github.com/oggyb/muzz-match/internal/errors"
	"github.com/oggyb/muzz-match/internal/metrics"
)

// MessageSender persists a chat message and routes it to the recipient.
type MessageSender interface {
	Send(ctx context.Context, matchID, senderID, content string) (*db.Message, error)
}

// TokenVerifier resolves an identity token to the user id it was issued for.
type TokenVerifier interface {
	Subject(token string) (string, error)
}

// Transport is one bidirectional frame stream. ReadFrame is only called by
// the session reader and WriteFrame only by the session writer. Close must
// be safe to call more than once and must unblock a pending ReadFrame.
type Transport interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	WriteFrame(ctx context.Context, frame []byte) error
	Close() error
}

// Pinger is implemented by transports that need keepalives.
type Pinger interface {
	Ping() error
}

// Relay runs the real-time protocol for every connected client.
type Relay struct {
	registry   *Registry
	sender     MessageSender
	verifier   TokenVerifier
	log        *slog.Logger
	sendBuffer int
	pingPeriod time.Duration
}

type Option func(*Relay)

// WithTokenVerifier makes authenticate frames carry a token whose subject
// must equal the claimed userId.
func WithTokenVerifier(v TokenVerifier) Option {
	return func(r *Relay) { r.verifier = v }
}

func WithSendBuffer(n int) Option {
	return func(r *Relay) { r.sendBuffer = n }
}

func WithPingPeriod(d time.Duration) Option {
	return func(r *Relay) { r.pingPeriod = d }
}

func NewRelay(registry *Registry, sender MessageSender, log *slog.Logger, opts ...Option) *Relay {
	r := &Relay{
		registry:   registry,
		sender:     sender,
		log:        log,
		sendBuffer: 64,
		pingPeriod: PingPeriod,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Relay) Registry() *Registry { return r.registry }

// Serve runs one client session until the transport ends, the handle is
// replaced by a newer connection of the same user, or ctx is done.
// The session owns its transport and always closes it before returning.
func (r *Relay) Serve(ctx context.Context, t Transport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := &session{relay: r, conn: NewConn(r.sendBuffer), transport: t}
	s.log = r.log.With("conn", s.conn.ID())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(ctx)
	}()

	err := s.readLoop(ctx)

	if s.userID != "" && r.registry.Unregister(s.userID, s.conn) {
		s.log.Debug("connection unregistered")
	}
	s.conn.Invalidate()
	cancel()
	_ = t.Close()
	<-writerDone

	return err
}

type session struct {
	relay     *Relay
	conn      *Conn
	transport Transport
	log       *slog.Logger
	// userID is only touched by the reader goroutine.
	userID string
}

func (s *session) readLoop(ctx context.Context) error {
	for {
		raw, err := s.transport.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || s.conn.Closed() || ctx.Err() != nil {
				return nil
			}
			return err
		}
		s.handle(ctx, raw)
	}
}

func (s *session) writeLoop(ctx context.Context) {
	var (
		ping   <-chan time.Time
		pinger Pinger
	)
	if p, ok := s.transport.(Pinger); ok && s.relay.pingPeriod > 0 {
		ticker := time.NewTicker(s.relay.pingPeriod)
		defer ticker.Stop()
		ping, pinger = ticker.C, p
	}

	for {
		select {
		case frame := <-s.conn.Outbound():
			if err := s.transport.WriteFrame(ctx, frame); err != nil {
				s.log.Debug("write failed", "err", err)
				_ = s.transport.Close()
				return
			}
		case <-ping:
			if err := pinger.Ping(); err != nil {
				s.log.Debug("ping failed", "err", err)
				_ = s.transport.Close()
				return
			}
		case <-s.conn.Done():
			// replaced or shutting down
			_ = s.transport.Close()
			return
		case <-ctx.Done():
			_ = s.transport.Close()
			return
		}
	}
}

func (s *session) handle(ctx context.Context, raw []byte) {
	frame, err := DecodeInbound(raw)
	if err != nil {
		s.reject(ctx, "malformed", err)
		return
	}

	switch frame.Type {
	case FrameAuthenticate:
		s.authenticate(ctx, frame)
	case FrameMessage:
		s.message(ctx, frame)
	default:
		s.reject(ctx, "unknown_type", svcErr.Protocol("unknown frame type %q", frame.Type))
	}
}

func (s *session) authenticate(ctx context.Context, f InboundFrame) {
	userID := strings.TrimSpace(f.UserID)
	if userID == "" {
		s.reject(ctx, "authenticate", svcErr.InvalidArgument("userId is required"))
		return
	}

	if v := s.relay.verifier; v != nil {
		sub, err := v.Subject(f.Token)
		if err != nil {
			s.reject(ctx, "authenticate", svcErr.Unauthenticated("invalid token"))
			return
		}
		if sub != userID {
			s.reject(ctx, "authenticate", svcErr.PermissionDenied("token was not issued to %s", userID))
			return
		}
	}

	switch s.userID {
	case "":
	case userID:
		s.reply(ctx, encodeAuthenticated(userID))
		return
	default:
		s.reject(ctx, "authenticate", svcErr.Protocol("stream is already authenticated as another user"))
		return
	}

	s.userID = userID
	s.log = s.log.With("user", userID)
	s.relay.registry.Register(userID, s.conn)
	s.log.Info("connection authenticated")
	s.reply(ctx, encodeAuthenticated(userID))
}

func (s *session) message(ctx context.Context, f InboundFrame) {
	if s.userID == "" {
		s.reject(ctx, "unauthenticated", svcErr.Protocol("authenticate before sending messages"))
		return
	}
	if f.SenderID != "" && f.SenderID != s.userID {
		s.reject(ctx, "sender_mismatch", svcErr.PermissionDenied("senderId does not match the authenticated user"))
		return
	}

	if _, err := s.relay.sender.Send(ctx, f.MatchID, s.userID, f.Content); err != nil {
		s.reject(ctx, "send", err)
	}
}

// reject reports err to the client. The stream always stays open.
func (s *session) reject(ctx context.Context, reason string, err error) {
	if svcErr.IsClientError(err) {
		metrics.ProtocolErrorsTotal.WithLabelValues(reason).Inc()
		s.log.Debug("frame rejected", "reason", reason, "err", err)
	} else {
		s.log.Error("frame failed", "reason", reason, "err", err)
	}
	s.reply(ctx, encodeError(err))
}

func (s *session) reply(ctx context.Context, frame []byte) {
	if err := s.conn.Push(ctx, frame); err != nil {
		s.log.Debug("reply dropped", "err", err)
	}
}
