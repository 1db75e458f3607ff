package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-plans/app/factory"
	"github.com/vibast-solutions/ms-go-plans/config"
)

const pingTimeout = 5 * time.Second

// Message is published on the invalidation channel.
type Message struct {
	Origin    string `json:"origin"`
	Reason    string `json:"reason"`
	Timestamp int64  `json:"timestamp"`
}

// RedisInvalidationBus fans a plans cache invalidation out to every instance
// subscribed to the same channel. Each instance keeps its own in-memory cache.
type RedisInvalidationBus struct {
	client  *redis.Client
	channel string
	origin  string
	now     func() time.Time
	logger  logrus.FieldLogger
}

func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func NewRedisInvalidationBus(client *redis.Client, channel string) *RedisInvalidationBus {
	return &RedisInvalidationBus{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		now:     time.Now,
		logger:  factory.NewModuleLogger("plans-invalidation-bus"),
	}
}

func (b *RedisInvalidationBus) Origin() string {
	return b.origin
}

func (b *RedisInvalidationBus) Publish(ctx context.Context, reason string) error {
	data, err := json.Marshal(Message{Origin: b.origin, Reason: reason, Timestamp: b.now().UnixNano()})
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation message: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation message: %w", err)
	}
	b.logger.WithFields(logrus.Fields{"channel": b.channel, "reason": reason}).Debug("Published plans invalidation")
	return nil
}

// Subscribe blocks until ctx is done, calling onInvalidate for every message
// published by another instance.
func (b *RedisInvalidationBus) Subscribe(ctx context.Context, onInvalidate func(reason string)) error {
	pubsub := b.client.Subscribe(ctx, b.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.logger.WithField("channel", b.channel).Info("Subscribed to plans invalidation channel")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			b.handlePayload(msg.Payload, onInvalidate)
		}
	}
}

func (b *RedisInvalidationBus) handlePayload(payload string, onInvalidate func(reason string)) bool {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		b.logger.WithError(err).WithField("payload", payload).Warn("Ignoring malformed invalidation message")
		return false
	}
	if msg.Origin == b.origin {
		return false
	}

	b.logger.WithFields(logrus.Fields{"origin": msg.Origin, "reason": msg.Reason}).Info("Received remote plans invalidation")
	onInvalidate(msg.Reason)
	return true
}
