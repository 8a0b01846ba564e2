package replay

import (
	"context"
	"sync"
	"testing"
	"time"

	"wsreplay/internal/memorystore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// go test -v --run TestSharedLoaderCaches
func TestSharedLoaderCaches(t *testing.T) {
	store := newFakeStore(scenarioA())
	cache := memorystore.NewCandleStore()
	l := NewSharedLoader(store, cache, 0)

	first, err := l.LoadSeries(context.Background(), "X")
	require.NoError(t, err)
	first[0].Close = -1

	second, err := l.LoadSeries(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, 10.0, second[0].Close, "callers get independent copies")
	assert.Equal(t, []string{"X"}, store.Calls())
}

// go test -v --run TestSharedLoaderCollapsesConcurrentLoads
func TestSharedLoaderCollapsesConcurrentLoads(t *testing.T) {
	store := newFakeStore(scenarioA())
	store.block = make(chan struct{})
	l := NewSharedLoader(store, nil, 0)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			series, err := l.LoadSeries(context.Background(), "X")
			assert.NoError(t, err)
			assert.Len(t, series, 2)
		}()
	}
	require.Eventually(t, func() bool { return len(store.Calls()) == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond) // let the other callers join the flight
	close(store.block)
	wg.Wait()

	assert.Equal(t, []string{"X"}, store.Calls())
}

// go test -v --run TestSharedLoaderError
func TestSharedLoaderError(t *testing.T) {
	store := newFakeStore(scenarioA())
	store.fail["X"] = errFetch
	cache := memorystore.NewCandleStore()
	l := NewSharedLoader(store, cache, 0)

	_, err := l.LoadSeries(context.Background(), "X")
	assert.ErrorIs(t, err, errFetch)
	_, ok := cache.Get("X")
	assert.False(t, ok, "failures are not cached")
}

// go test -v --run TestSharedLoaderEvicts
func TestSharedLoaderEvicts(t *testing.T) {
	store := newFakeStore(scenarioA())
	cache := memorystore.NewCandleStore()
	l := NewSharedLoader(store, cache, 2)

	_, err := l.LoadSeries(context.Background(), "Y")
	require.NoError(t, err)
	_, err = l.LoadSeries(context.Background(), "X")
	require.NoError(t, err)

	assert.Equal(t, []string{"X"}, cache.Symbols(), "Y evicted to stay within 2 candles")
	assert.Equal(t, 2, cache.CountAll())

	_, err = l.LoadSeries(context.Background(), "Y")
	require.NoError(t, err)
	assert.Equal(t, []string{"Y", "X", "Y"}, store.Calls(), "evicted series is read again")
}
