package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/kirinyoku/busdesk/internal/domain"
)

type Cache struct {
	rdb    *redis.Client
	sf     singleflight.Group
	logger *slog.Logger
}

func New(client *redis.Client, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{rdb: client, logger: logger}
}

func (c *Cache) GetString(ctx context.Context, key string) (string, bool, error) {
	s, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}

	if err != nil {
		return "", false, err
	}

	return s, true, nil
}

func (c *Cache) SetString(ctx context.Context, key, val string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

func GetJSON[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var zero T

	s, ok, err := c.GetString(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}

	var out T
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return zero, false, err
	}

	return out, true, nil
}

func SetJSON(ctx context.Context, c *Cache, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}

	return c.SetString(ctx, key, string(b), ttl)
}

// GetOrSetJSON reads key, or runs loader once per key across concurrent
// callers and stores the result. Redis errors are logged and treated as a
// miss; only loader errors are returned.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	if v, ok, err := GetJSON[T](ctx, c, key); err == nil && ok {
		return v, nil
	} else if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
	}

	vAny, err, _ := c.sf.Do(key, func() (any, error) {
		v, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if err := SetJSON(ctx, c, key, v, ttl); err != nil {
			c.logger.Warn("cache write failed", "key", key, "error", err)
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}

	v, ok := vAny.(T)
	if !ok {
		var zero T
		return zero, errors.New("type assertion failed")
	}

	return v, nil
}

type BusSource interface {
	GetBus(ctx context.Context, id int64) (*domain.Bus, error)
}

// BusCache shares bus details between console sessions. Buses are read-only
// for the console, so entries only expire.
type BusCache struct {
	cache *Cache
	src   BusSource
	ttl   time.Duration
}

func NewBusCache(cache *Cache, src BusSource, ttl time.Duration) *BusCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &BusCache{cache: cache, src: src, ttl: ttl}
}

func (b *BusCache) GetBus(ctx context.Context, id int64) (*domain.Bus, error) {
	bus, err := GetOrSetJSON(ctx, b.cache, KeyBus(id), b.ttl, func(ctx context.Context) (domain.Bus, error) {
		bus, err := b.src.GetBus(ctx, id)
		if err != nil {
			return domain.Bus{}, err
		}
		return *bus, nil
	})
	if err != nil {
		return nil, err
	}

	return &bus, nil
}
