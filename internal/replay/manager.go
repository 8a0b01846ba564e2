package replay

import (
	"context"
	"fmt"
	"time"

	"wsreplay/internal/market"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SeriesStore returns the stored candle history of a symbol, oldest first.
type SeriesStore interface {
	LoadSeries(ctx context.Context, symbol string) (market.Series, error)
}

type ManagerOptions struct {
	Interval    time.Duration // tick period
	LoadTimeout time.Duration // bound for loading every series of one subscribe
	NewTicker   TickerFactory // nil means time.Ticker
}

// Manager turns subscribe commands into running sessions.
type Manager struct {
	store  SeriesStore
	opts   ManagerOptions
	logger *zap.Logger
}

func NewManager(store SeriesStore, opts ManagerOptions, logger *zap.Logger) *Manager {
	if opts.NewTicker == nil {
		opts.NewTicker = NewTicker
	}
	return &Manager{
		store:  store,
		opts:   opts,
		logger: logger,
	}
}

// Open loads one series per entry of symbols, concurrently, and returns a
// session only when every load succeeded.
func (m *Manager) Open(ctx context.Context, symbols []string) (*Session, error) {
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}
	if m.opts.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.LoadTimeout)
		defer cancel()
	}

	results := make([]market.Series, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range symbols {
		g.Go(func() error {
			series, err := m.store.LoadSeries(gctx, symbol)
			if err != nil {
				return fmt.Errorf("load %s: %w", symbol, err)
			}
			results[i] = series
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	bySymbol := make(map[string]market.Series, len(symbols))
	for i, symbol := range symbols {
		bySymbol[symbol] = results[i]
		m.logger.Debug("loaded series", zap.String("symbol", symbol), zap.Int("candles", len(results[i])))
	}
	return NewSession(symbols, bySymbol), nil
}

// NewScheduler builds the scheduler that plays session to transport.
func (m *Manager) NewScheduler(session *Session, transport Transport, logger *zap.Logger) *Scheduler {
	return NewScheduler(session, transport, m.opts.Interval, m.opts.NewTicker, logger)
}
