package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-coverage/internal/types"
)

const portfolioKeyPrefix = "portfolio:"

// ErrCacheMiss is returned when no portfolio is stored under a key
var ErrCacheMiss = errors.New("portfolio not found in cache")

// PortfolioCache stores generated portfolios in Redis
type PortfolioCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

// NewPortfolioCache creates a cache over an existing client
func NewPortfolioCache(client *redis.Client, ttl time.Duration, logger *logrus.Logger) *PortfolioCache {
	return &PortfolioCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// RequestKey hashes everything in a generate request that affects its result
func RequestKey(req types.GenerateRequest) (string, error) {
	req.RunID = ""
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// SetPortfolio stores a generate response under key
func (c *PortfolioCache) SetPortfolio(ctx context.Context, key string, resp *types.GenerateResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal portfolio: %w", err)
	}

	fullKey := portfolioKeyPrefix + key
	if err := c.client.Set(ctx, fullKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set portfolio in cache: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key":  fullKey,
		"expiration": c.ttl,
		"selected":   len(resp.Selected),
	}).Debug("Cached portfolio")

	return nil
}

// GetPortfolio returns the portfolio stored under key, or ErrCacheMiss
func (c *PortfolioCache) GetPortfolio(ctx context.Context, key string) (*types.GenerateResponse, error) {
	fullKey := portfolioKeyPrefix + key
	data, err := c.client.Get(ctx, fullKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get portfolio from cache: %w", err)
	}

	var resp types.GenerateResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal portfolio: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"cache_key": fullKey,
		"selected":  len(resp.Selected),
	}).Debug("Retrieved portfolio from cache")

	return &resp, nil
}

// DeletePortfolio removes a cached portfolio
func (c *PortfolioCache) DeletePortfolio(ctx context.Context, key string) error {
	fullKey := portfolioKeyPrefix + key
	if err := c.client.Del(ctx, fullKey).Err(); err != nil {
		return fmt.Errorf("failed to delete portfolio from cache: %w", err)
	}
	c.logger.WithField("cache_key", fullKey).Debug("Deleted portfolio from cache")
	return nil
}

// Ping checks the Redis connection
func (c *PortfolioCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
