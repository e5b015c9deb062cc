package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/costquest/backend/internal/pricing"
	"github.com/costquest/backend/pkg/logger"
)

// Client caches market listings across estimation runs so repeated
// challenges don't re-query the market for the same materials.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

var _ pricing.ListingCache = (*Client)(nil)

func (c *Client) SetListings(ctx context.Context, key string, listings []pricing.Listing) error {
	data, err := json.Marshal(listings)
	if err != nil {
		return fmt.Errorf("failed to marshal listings: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("listings:%s", key), data, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set listings cache: %w", err)
	}

	logger.Debug("Listings cached", zap.String("key", key), zap.Duration("ttl", c.ttl))
	return nil
}

func (c *Client) GetListings(ctx context.Context, key string) ([]pricing.Listing, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("listings:%s", key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get listings cache: %w", err)
	}

	var listings []pricing.Listing
	err = json.Unmarshal(data, &listings)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal listings: %w", err)
	}

	logger.Debug("Listings cache hit", zap.String("key", key))
	return listings, true, nil
}

// InvalidateListings drops every cached listing batch, for use after the
// teacher price book changes materially.
func (c *Client) InvalidateListings(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, "listings:*", 0).Iterator()
	for iter.Next(ctx) {
		err := c.client.Del(ctx, iter.Val()).Err()
		if err != nil {
			logger.Warn("Failed to delete cache key", zap.Error(err))
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to iterate cache keys: %w", err)
	}

	logger.Info("Listings cache invalidated")
	return nil
}
