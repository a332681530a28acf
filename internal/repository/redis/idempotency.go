package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idemLock   = "LOCK"
	idemPrefix = "RES:"
)

type IdemState int

const (
	// IdemAcquired means the caller owns the key and must Save or Release.
	IdemAcquired IdemState = iota
	// IdemReplay means a result is stored for the key.
	IdemReplay
	// IdemInProgress means another request holds the key.
	IdemInProgress
)

// IdempotencyStore remembers the outcome of a request by its
// Idempotency-Key so a repeated submit is answered without a second call.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Begin either returns a stored result, reports the key as busy, or takes
// the lock for lockTTL.
func (s *IdempotencyStore) Begin(ctx context.Context, key string, lockTTL time.Duration) (string, IdemState, error) {
	if res, ok, err := s.result(ctx, key); err != nil {
		return "", IdemInProgress, err
	} else if ok {
		return res, IdemReplay, nil
	}

	locked, err := s.rdb.SetNX(ctx, key, idemLock, lockTTL).Result()
	if err != nil {
		return "", IdemInProgress, err
	}
	if locked {
		return "", IdemAcquired, nil
	}

	// lost the race; the winner may have finished already
	if res, ok, err := s.result(ctx, key); err == nil && ok {
		return res, IdemReplay, nil
	}

	return "", IdemInProgress, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, key, jsonPayload string) error {
	return s.rdb.Set(ctx, key, idemPrefix+jsonPayload, s.ttl).Err()
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *IdempotencyStore) result(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if strings.HasPrefix(v, idemPrefix) {
		return strings.TrimPrefix(v, idemPrefix), true, nil
	}

	return "", false, nil
}
