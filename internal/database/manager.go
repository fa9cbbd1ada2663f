package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Manager owns the Redis connection shared across requests.
type Manager struct {
	Redis  *redis.Client
	logger *logrus.Logger
}

func NewManager(redisURL string, logger *logrus.Logger) (*Manager, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 20
	opts.MinIdleConns = 5

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully")

	return &Manager{
		Redis:  client,
		logger: logger,
	}, nil
}

func (m *Manager) Close() error {
	if m.Redis != nil {
		return m.Redis.Close()
	}
	return nil
}

func (m *Manager) PingRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.Redis.Ping(ctx).Err()
}

// Cache is a thin JSON cache over Redis for search responses and facet
// aggregations. All failures are for the caller to log and ignore; the
// backends remain the source of truth.
type Cache struct {
	client *redis.Client
	logger *logrus.Logger
}

func NewCache(client *redis.Client, logger *logrus.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger,
	}
}

const (
	searchResultsKey = "search:results:%s"
	facetsKey        = "search:facets"
)

func (c *Cache) CacheSearchResponse(ctx context.Context, key string, response interface{}, expiration time.Duration) error {
	data, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to marshal search response: %w", err)
	}
	return c.client.Set(ctx, fmt.Sprintf(searchResultsKey, key), data, expiration).Err()
}

func (c *Cache) GetCachedSearchResponse(ctx context.Context, key string, result interface{}) error {
	data, err := c.client.Get(ctx, fmt.Sprintf(searchResultsKey, key)).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), result)
}

func (c *Cache) CacheFacets(ctx context.Context, facets interface{}, expiration time.Duration) error {
	data, err := json.Marshal(facets)
	if err != nil {
		return fmt.Errorf("failed to marshal facets: %w", err)
	}
	return c.client.Set(ctx, facetsKey, data, expiration).Err()
}

func (c *Cache) GetCachedFacets(ctx context.Context, result interface{}) error {
	data, err := c.client.Get(ctx, facetsKey).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), result)
}

func (c *Cache) InvalidateFacets(ctx context.Context) error {
	return c.client.Del(ctx, facetsKey).Err()
}
