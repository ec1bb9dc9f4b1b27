package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/subscription-service/internal/domain"
)

// ListingCache holds per-user subscription listings. It is strictly best
// effort: a cache failure degrades to a database read, never to a request
// failure.
type ListingCache interface {
	Get(ctx context.Context, workspaceID, userID string) ([]domain.SubscriptionStatus, bool)
	Set(ctx context.Context, workspaceID, userID string, listing []domain.SubscriptionStatus)
	Invalidate(ctx context.Context, workspaceID, userID string)
}

type redisListingCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewListingCache wraps a redis client as a listing cache.
func NewListingCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) ListingCache {
	return &redisListingCache{client: client, ttl: ttl, logger: logger}
}

func listingCacheKey(workspaceID, userID string) string {
	return "subscriptions:" + workspaceID + ":" + userID
}

func (c *redisListingCache) Get(ctx context.Context, workspaceID, userID string) ([]domain.SubscriptionStatus, bool) {
	if c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, listingCacheKey(workspaceID, userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("listing cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var listing []domain.SubscriptionStatus
	if err := json.Unmarshal(raw, &listing); err != nil {
		c.logger.Warn("listing cache entry corrupt", zap.Error(err))
		return nil, false
	}
	return listing, true
}

func (c *redisListingCache) Set(ctx context.Context, workspaceID, userID string, listing []domain.SubscriptionStatus) {
	if c.client == nil || c.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(listing)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, listingCacheKey(workspaceID, userID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("listing cache write failed", zap.Error(err))
	}
}

func (c *redisListingCache) Invalidate(ctx context.Context, workspaceID, userID string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, listingCacheKey(workspaceID, userID)).Err(); err != nil {
		c.logger.Warn("listing cache invalidation failed", zap.Error(err))
	}
}
