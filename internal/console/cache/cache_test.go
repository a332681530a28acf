package cache

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FetchesOnce(t *testing.T) {
	c := New[int64, []string]("test")
	var calls atomic.Int32

	loader := func(context.Context) ([]string, error) {
		calls.Add(1)
		return []string{"a"}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.Load(context.Background(), 1, loader)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, v)
	}

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestLoad_ConcurrentCallersShareOneFetch(t *testing.T) {
	c := New[int64, int]("test")
	var calls atomic.Int32
	release := make(chan struct{})

	loader := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Load(context.Background(), 1, loader)
		}(i)
	}

	// let the callers pile up behind the first fetch
	for calls.Load() == 0 {
		runtime.Gosched()
	}
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	assert.Equal(t, []int{7, 7, 7, 7, 7}, results)
}

func TestLoad_ErrorNotCached(t *testing.T) {
	c := New[int64, int]("test")
	boom := errors.New("boom")

	_, err := c.Load(context.Background(), 1, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	_, ok := c.Get(1)
	assert.False(t, ok)
}

func TestInvalidate_DiscardsInflightResult(t *testing.T) {
	c := New[int64, int]("test")

	v, err := c.Load(context.Background(), 1, func(context.Context) (int, error) {
		c.Invalidate(1)
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, ok := c.Get(1)
	assert.False(t, ok, "a load overtaken by an invalidation must not be stored")

	v, err = c.Load(context.Background(), 1, func(context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	got, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, 2, got)
}

func TestSetAndKeys(t *testing.T) {
	c := New[string, int]("test")
	c.Set("a", 1)
	c.Set("b", 2)

	assert.ElementsMatch(t, []string{"a", "b"}, c.Keys())

	c.Invalidate("a")
	assert.Equal(t, []string{"b"}, c.Keys())
}
