// Package broker relays frames between server instances over Redis pub/sub.
// Each instance keeps owning only its local connections; frames for users
// connected elsewhere are published and picked up by every other instance.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Envelope is the wire format published on the broker channel.
type Envelope struct {
	Origin      string          `json:"origin"`
	RecipientID string          `json:"recipientId"`
	Frame       json.RawMessage `json:"frame"`
}

// Deliverer pushes a frame to a connection registered on this instance.
// It reports false when the recipient is not connected here.
type Deliverer interface {
	Deliver(ctx context.Context, recipientID string, frame []byte) bool
}

type RedisBroker struct {
	client  *redis.Client
	channel string
	origin  string
	log     *slog.Logger
}

func NewRedisBroker(client *redis.Client, channel string, log *slog.Logger) *RedisBroker {
	origin := uuid.NewString()
	return &RedisBroker{
		client:  client,
		channel: channel,
		origin:  origin,
		log:     log.With("broker_origin", origin),
	}
}

// Origin identifies this instance on the channel.
func (b *RedisBroker) Origin() string { return b.origin }

// Forward publishes frame for recipientID to the other instances.
func (b *RedisBroker) Forward(ctx context.Context, recipientID string, frame []byte) error {
	payload, err := json.Marshal(Envelope{Origin: b.origin, RecipientID: recipientID, Frame: frame})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", b.channel, err)
	}
	return nil
}

// Run subscribes to the channel and hands frames published by other
// instances to local. It blocks until ctx is done.
func (b *RedisBroker) Run(ctx context.Context, local Deliverer) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	// wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe to %s: %w", b.channel, err)
	}
	b.log.Info("broker subscribed", "channel", b.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(ctx, local, msg.Payload)
		}
	}
}

func (b *RedisBroker) handle(ctx context.Context, local Deliverer, payload string) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Warn("dropping malformed envelope", "err", err)
		return
	}
	if env.Origin == b.origin {
		return
	}
	if local.Deliver(ctx, env.RecipientID, env.Frame) {
		b.log.Debug("forwarded frame delivered", "recipient", env.RecipientID, "from", env.Origin)
	}
}
