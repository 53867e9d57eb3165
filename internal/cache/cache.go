// Package cache keeps the active competition close to the request path.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mintoons/internal/models"
)

const (
	currentCompetitionKey = "mintoons:competition:current"
	generationKey         = "mintoons:competition:generation"
)

// CompetitionCache stores the active competition. A miss returns a nil
// competition. Every read also returns the cache generation, which
// Invalidate bumps; SetCurrent drops the write when the generation has
// moved since that read, so a value loaded before an invalidation never
// lands after it.
type CompetitionCache interface {
	GetCurrent(ctx context.Context) (*models.Competition, int64, error)
	SetCurrent(ctx context.Context, c *models.Competition, generation int64) error
	Invalidate(ctx context.Context) error
}

var errStaleGeneration = errors.New("competition cache generation changed")

// RedisCache is a CompetitionCache backed by go-redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var (
	_ CompetitionCache = (*RedisCache)(nil)
	_ CompetitionCache = Noop{}
)

// NewRedisCache wraps an existing client
func NewRedisCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &RedisCache{client: client, ttl: ttl, logger: logger.Named("CompetitionCache")}
}

// Connect dials Redis and verifies the connection
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisCache) GetCurrent(ctx context.Context) (*models.Competition, int64, error) {
	values, err := c.client.MGet(ctx, currentCompetitionKey, generationKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read cached competition: %w", err)
	}

	var generation int64
	if raw, ok := values[1].(string); ok {
		if generation, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, 0, fmt.Errorf("failed to read cache generation: %w", err)
		}
	}

	data, ok := values[0].(string)
	if !ok {
		return nil, generation, nil
	}
	var comp models.Competition
	if err := json.Unmarshal([]byte(data), &comp); err != nil {
		// A stale or foreign value is treated as a miss and dropped
		c.logger.Warn("Discarding unreadable cached competition", zap.Error(err))
		_ = c.client.Del(ctx, currentCompetitionKey).Err()
		return nil, generation, nil
	}
	return &comp, generation, nil
}

func (c *RedisCache) SetCurrent(ctx context.Context, comp *models.Competition, generation int64) error {
	if comp == nil {
		return c.Invalidate(ctx)
	}
	data, err := json.Marshal(comp)
	if err != nil {
		return fmt.Errorf("failed to encode competition: %w", err)
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, generationKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != generation {
			return errStaleGeneration
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, currentCompetitionKey, data, c.ttl)
			return nil
		})
		return err
	}, generationKey)
	if errors.Is(err, errStaleGeneration) || errors.Is(err, redis.TxFailedErr) {
		c.logger.Debug("Skipped caching a competition read before the last invalidation", zap.Int64("generation", generation))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to cache competition: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, generationKey)
		pipe.Del(ctx, currentCompetitionKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate competition cache: %w", err)
	}
	return nil
}

// Noop is used when Redis is not configured; every read misses
type Noop struct{}

func (Noop) GetCurrent(context.Context) (*models.Competition, int64, error) { return nil, 0, nil }
func (Noop) SetCurrent(context.Context, *models.Competition, int64) error { return nil }
func (Noop) Invalidate(context.Context) error { return nil }
