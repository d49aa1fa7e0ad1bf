package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/akhmetov/payvault/pkg/logger"
)

// Channel is the Redis pub/sub channel events are published to.
const Channel = "payvault.events"

// RedisNotifier publishes events to a Redis channel for downstream
// consumers (mailers, webhooks). Publish failures are logged and dropped.
type RedisNotifier struct {
	client *redis.Client
	logger *logger.Logger
}

// NewRedisNotifier creates a Redis pub/sub notifier.
func NewRedisNotifier(client *redis.Client, log *logger.Logger) *RedisNotifier {
	return &RedisNotifier{
		client: client,
		logger: log.WithField("component", "redis_notifier"),
	}
}

type envelope struct {
	Event      Event     `json:"event"`
	Payload    any       `json:"payload"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Notify implements Notifier.
func (n *RedisNotifier) Notify(ctx context.Context, event Event, payload any) {
	body, err := json.Marshal(envelope{
		Event:      event,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		n.logger.Error("failed to marshal event", "event", string(event), "error", err)
		return
	}

	if err := n.client.Publish(ctx, Channel, body).Err(); err != nil {
		n.logger.Error("failed to publish event", "event", string(event), "error", err)
	}
}
