package replay

import (
	"context"

	"wsreplay/internal/market"
	"wsreplay/internal/memorystore"

	"golang.org/x/sync/singleflight"
)

// SharedLoader collapses concurrent loads of the same symbol into one store
// read and, with a cache, serves later loads from memory. Every caller gets
// its own copy of the series.
type SharedLoader struct {
	store      SeriesStore
	cache      *memorystore.CandleStore // nil disables caching
	maxCandles int                      // cache bound, 0 is unbounded
	group      singleflight.Group
}

func NewSharedLoader(store SeriesStore, cache *memorystore.CandleStore, maxCandles int) *SharedLoader {
	return &SharedLoader{store: store, cache: cache, maxCandles: maxCandles}
}

func (l *SharedLoader) LoadSeries(ctx context.Context, symbol string) (market.Series, error) {
	if l.cache != nil {
		if series, ok := l.cache.Get(symbol); ok {
			return series, nil
		}
	}

	v, err, _ := l.group.Do(symbol, func() (interface{}, error) {
		series, err := l.store.LoadSeries(ctx, symbol)
		if err != nil {
			return nil, err
		}
		if l.cache != nil {
			l.cache.Put(symbol, series)
			l.evict(symbol)
		}
		return series, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(market.Series).Clone(), nil
}

// evict drops other symbols until the cache is back under its bound. The
// symbol just loaded stays even if it alone exceeds the bound.
func (l *SharedLoader) evict(keep string) {
	if l.maxCandles <= 0 {
		return
	}
	for _, symbol := range l.cache.Symbols() {
		if l.cache.CountAll() <= l.maxCandles {
			return
		}
		if symbol != keep {
			l.cache.Delete(symbol)
		}
	}
}
