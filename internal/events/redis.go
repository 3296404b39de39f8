package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/newtube/backend/pkg/metrics"
)

const (
	channelPrefix = "videos:"
	publishTTL    = 5 * time.Second
)

// Channel returns the per-user channel events for userID are published on.
func Channel(userID uuid.UUID) string {
	return channelPrefix + userID.String()
}

// RedisPubSub publishes events to per-user Redis channels.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub publisher.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// Publish sends ev to the owner's channel.
func (r *RedisPubSub) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTTL)
	defer cancel()
	if err := r.client.Publish(ctx, Channel(ev.UserID), body).Err(); err != nil {
		metrics.EventsPublishedTotal.WithLabelValues("redis", "error").Inc()
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	metrics.EventsPublishedTotal.WithLabelValues("redis", "ok").Inc()
	return nil
}

// Subscribe calls handler for every event on userID's channel until cancel is called.
func (r *RedisPubSub) Subscribe(userID uuid.UUID, handler func(Event)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, Channel(userID))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.Debug("skipping malformed event", zap.Error(err))
					continue
				}
				handler(ev)
			}
		}
	}()
	return cancelCtx, nil
}

func (r *RedisPubSub) Close() error { return nil }
