package rate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/akhmetov/payvault/pkg/logger"
)

const (
	// DefaultTTL bounds how long a cached rate is served before hitting
	// the underlying provider again.
	DefaultTTL = 60 * time.Second

	keyPrefix = "rate:"
)

// Cache is a Redis-backed read-through cache in front of a Provider.
// Cache failures degrade to the underlying provider, never to the caller.
type Cache struct {
	provider Provider
	client   *redis.Client
	ttl      time.Duration
	logger   *logger.Logger
}

// NewCache creates a rate cache with the default TTL.
func NewCache(provider Provider, client *redis.Client, log *logger.Logger) *Cache {
	return &Cache{
		provider: provider,
		client:   client,
		ttl:      DefaultTTL,
		logger:   log.WithField("component", "rate_cache"),
	}
}

type cachedRate struct {
	Rate     string    `json:"rate"`
	CachedAt time.Time `json:"cached_at"`
}

// Rate implements Provider.
func (c *Cache) Rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	key := fmt.Sprintf("%s%s:%s", keyPrefix, from, to)

	val, err := c.client.Get(ctx, key).Result()
	if err == nil {
		var cached cachedRate
		if jsonErr := json.Unmarshal([]byte(val), &cached); jsonErr == nil {
			if r, decErr := decimal.NewFromString(cached.Rate); decErr == nil {
				c.logger.Debug("rate cache hit", "from", from, "to", to)
				return r, nil
			}
		}
		c.logger.Warn("discarding malformed cached rate", "key", key)
	} else if err != redis.Nil {
		c.logger.Error("rate cache read failed", "key", key, "error", err)
	}

	r, err := c.provider.Rate(ctx, from, to)
	if err != nil {
		return decimal.Zero, err
	}

	payload, err := json.Marshal(cachedRate{Rate: r.String(), CachedAt: time.Now().UTC()})
	if err == nil {
		if setErr := c.client.Set(ctx, key, payload, c.ttl).Err(); setErr != nil {
			c.logger.Error("rate cache write failed", "key", key, "error", setErr)
		}
	}

	return r, nil
}
