package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/statefile"
)

// Cache key layout and defaults.
const (
	stateCacheKeyPrefix  = "research:state:"
	DefaultStateCacheTTL = 10 * time.Minute
)

// ErrCacheMiss is returned by StateCache.Get when the key is absent.
var ErrCacheMiss = errors.New("state cache miss")

// StateCache holds recently used states.
type StateCache interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowState, error)
	Set(ctx context.Context, state *domain.WorkflowState) error
	Delete(ctx context.Context, id uuid.UUID) error
}

var _ StateCache = (*RedisStateCache)(nil)

// RedisStateCache stores statefile documents in Redis with a TTL.
type RedisStateCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisStateCache wraps client. A non-positive ttl uses DefaultStateCacheTTL.
func NewRedisStateCache(client redis.Cmdable, ttl time.Duration) *RedisStateCache {
	if ttl <= 0 {
		ttl = DefaultStateCacheTTL
	}
	return &RedisStateCache{client: client, ttl: ttl}
}

// StateCacheKey returns the Redis key for a run.
func StateCacheKey(id uuid.UUID) string {
	return stateCacheKeyPrefix + id.String()
}

// Get returns the cached state or ErrCacheMiss.
func (c *RedisStateCache) Get(ctx context.Context, id uuid.UUID) (*domain.WorkflowState, error) {
	data, err := c.client.Get(ctx, StateCacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to read state cache: %w", err)
	}
	state, err := statefile.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cached state: %w", err)
	}
	return state, nil
}

// Set caches state for the configured TTL.
func (c *RedisStateCache) Set(ctx context.Context, state *domain.WorkflowState) error {
	data, err := statefile.Marshal(state)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, StateCacheKey(state.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write state cache: %w", err)
	}
	return nil
}

// Delete evicts the run. Evicting an absent key is not an error.
func (c *RedisStateCache) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Del(ctx, StateCacheKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to evict state cache: %w", err)
	}
	return nil
}
