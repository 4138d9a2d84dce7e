package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/deskline/queue-api/internal/domain/events"
	"github.com/deskline/queue-api/internal/infrastructure/metrics"
)

// RedisNotifier broadcasts events over Redis Pub/Sub, one channel per
// organization. Pub/Sub is fire-and-forget: messages sent while a
// subscriber reconnects are lost.
type RedisNotifier struct {
	client *redis.Client
	prefix string
	buffer int
	log    zerolog.Logger
}

var _ events.Notifier = (*RedisNotifier)(nil)

// NewRedisNotifier connects to redisURL and verifies the connection.
func NewRedisNotifier(ctx context.Context, redisURL, prefix string, buffer int, log zerolog.Logger) (*RedisNotifier, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &RedisNotifier{
		client: client,
		prefix: prefix,
		buffer: buffer,
		log:    log.With().Str("component", "redis-notifier").Logger(),
	}, nil
}

func (n *RedisNotifier) channel(orgID string) string {
	return n.prefix + orgID
}

// Publish sends event on the organization's channel.
func (n *RedisNotifier) Publish(ctx context.Context, event events.ChangeEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel(event.OrganizationID), body).Err(); err != nil {
		metrics.RecordEventPublished(DriverRedis, "error")
		return fmt.Errorf("publish event: %w", err)
	}
	metrics.RecordEventPublished(DriverRedis, "ok")
	return nil
}

// Subscribe listens on the organization's channel until ctx is done or the
// subscription is closed.
func (n *RedisNotifier) Subscribe(ctx context.Context, orgID string, tables ...events.Table) (events.Subscription, error) {
	ps := n.client.Subscribe(ctx, n.channel(orgID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", n.channel(orgID), err)
	}

	sub := &redisSubscription{
		ps:  ps,
		out: make(chan events.ChangeEvent, n.buffer),
	}

	go func() {
		defer close(sub.out)
		in := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = ps.Close()
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				var event events.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					n.log.Warn().Err(err).Str("channel", msg.Channel).Msg("discarding malformed event")
					continue
				}
				if event.OrganizationID != orgID || !events.Matches(event, tables) {
					continue
				}
				select {
				case sub.out <- event:
				default:
					metrics.RecordEventDropped(DriverRedis)
				}
			}
		}
	}()

	return sub, nil
}

// Close releases the Redis client.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}

type redisSubscription struct {
	ps  *redis.PubSub
	out chan events.ChangeEvent
}

func (s *redisSubscription) Events() <-chan events.ChangeEvent {
	return s.out
}

func (s *redisSubscription) Close() error {
	return s.ps.Close()
}
