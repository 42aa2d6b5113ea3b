package inflight

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTTL = 2 * time.Minute
	keyPrefix  = "ebill:inflight:"
)

// redisStore defines the operations used by RedisGuard.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisGuard shares busy flags across replicas using SET NX with a TTL, so a
// crashed holder never blocks an entity longer than ttl.
type RedisGuard struct {
	store redisStore
	ttl   time.Duration
}

func NewRedis(store redisStore, ttl time.Duration) (*RedisGuard, error) {
	if store == nil {
		return nil, errors.New("redis store required for guard")
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisGuard{store: store, ttl: ttl}, nil
}

func (g *RedisGuard) Acquire(ctx context.Context, entity string) (func(), error) {
	k := keyPrefix + key(ctx, entity)
	owner := uuid.NewString()
	ok, err := g.store.SetNX(ctx, k, owner, g.ttl)
	if err != nil {
		return nil, fmt.Errorf("setnx %s: %w", k, err)
	}
	if !ok {
		return nil, busy(entity)
	}
	return func() {
		// Detached from the request ctx: the flag must clear even after a client disconnect.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		value, err := g.store.Get(rctx, k)
		if err != nil || value != owner {
			return
		}
		_ = g.store.Del(rctx, k)
	}, nil
}

// ClientStore adapts a go-redis client to redisStore.
type ClientStore struct {
	raw *redis.Client
}

// NewClientStore parses url, dials and pings the server.
func NewClientStore(ctx context.Context, url string) (*ClientStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &ClientStore{raw: raw}, nil
}

func (c *ClientStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return c.raw.SetNX(ctx, key, value, ttl).Result()
}

func (c *ClientStore) Get(ctx context.Context, key string) (string, error) {
	v, err := c.raw.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (c *ClientStore) Del(ctx context.Context, keys ...string) error {
	return c.raw.Del(ctx, keys...).Err()
}

func (c *ClientStore) Ping(ctx context.Context) error {
	return c.raw.Ping(ctx).Err()
}

func (c *ClientStore) Close() error {
	return c.raw.Close()
}
