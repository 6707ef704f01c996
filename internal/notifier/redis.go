package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/jonymoraes/mediaserver/internal/logger"
)

// DefaultChannel is the pub/sub channel shared by workers and listeners.
const DefaultChannel = "media:events"

// RedisPublisher sends events to other processes over Redis pub/sub.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

var _ Notifier = (*RedisPublisher)(nil)

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Relay feeds events received on a Redis channel into a local notifier,
// usually a Hub.
type Relay struct {
	client  redis.UniversalClient
	channel string
	target  Notifier
}

func NewRelay(client redis.UniversalClient, channel string, target Notifier) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{client: client, channel: channel, target: target}
}

// Run blocks until ctx is done or the subscription fails. Malformed
// messages are logged and skipped.
func (r *Relay) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)

	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// wait for the subscription to be confirmed so no event published
	// after Run returns from here is lost
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("event subscription closed")
			}
			var e Event
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				log.Warn("skipping malformed event", "channel", msg.Channel, "error", err)
				continue
			}
			if err := r.target.Publish(ctx, e); err != nil {
				log.Warn("relay publish failed", "type", e.Type, "error", err)
			}
		}
	}
}
