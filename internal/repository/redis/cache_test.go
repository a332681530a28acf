package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kirinyoku/busdesk/internal/domain"
)

type busSourceFunc func(ctx context.Context, id int64) (*domain.Bus, error)

func (f busSourceFunc) GetBus(ctx context.Context, id int64) (*domain.Bus, error) { return f(ctx, id) }

// unreachable returns a client whose every command fails fast.
func unreachable(t *testing.T) *redis.Client {
	t.Helper()

	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestBusCache_RedisDownFallsThrough(t *testing.T) {
	calls := 0
	src := busSourceFunc(func(_ context.Context, id int64) (*domain.Bus, error) {
		calls++
		return &domain.Bus{ID: id, Number: "BP-1-A1234"}, nil
	})

	bc := NewBusCache(New(unreachable(t), nil), src, time.Minute)

	bus, err := bc.GetBus(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), bus.ID)
	assert.Equal(t, "BP-1-A1234", bus.Number)
	assert.Equal(t, 1, calls)
}

func TestBusCache_LoaderErrorReturned(t *testing.T) {
	boom := errors.New("backend down")
	src := busSourceFunc(func(context.Context, int64) (*domain.Bus, error) { return nil, boom })

	bc := NewBusCache(New(unreachable(t), nil), src, 0)

	_, err := bc.GetBus(context.Background(), 7)
	assert.ErrorIs(t, err, boom)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "busdesk:v1:bus:42", KeyBus(42))
	assert.Equal(t, "busdesk:v1:idem:booking:s1:k1", KeyIdemBooking("s1", "k1"))
	assert.Equal(t, "busdesk:v1:rl:booking:ip:1.2.3.4", KeyRateLimit("booking", "ip:1.2.3.4"))
	assert.Equal(t, "busdesk:v1:schedules:changed", ChannelSchedulesChanged())
}
