package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"wsreplay/internal/market"
	"wsreplay/pkg/fyers"

	"go.uber.org/zap"
)

// HistoryProvider fetches raw candle history from the broker.
type HistoryProvider interface {
	GetHistory(ctx context.Context, req fyers.HistoryRequest) (market.Series, error)
}

// CandleWriter is the part of the candle repository the ingester needs.
type CandleWriter interface {
	HasData(ctx context.Context, symbol string) (bool, error)
	InsertCandles(ctx context.Context, symbol string, series market.Series) (int64, error)
	DeleteBefore(ctx context.Context, symbol string, ts int64) (int64, error)
}

type Options struct {
	Resolution  string
	From        time.Time
	To          time.Time // exclusive
	ChunkDays   int
	Concurrency int
	Timeout     time.Duration // per broker request
	Prune       bool          // drop stored candles older than From
}

// Report tells what happened to every requested symbol.
type Report struct {
	mu      sync.Mutex
	Stored  map[string]int64 // symbol -> rows inserted
	Skipped []string         // already present in the store
	Empty   []string         // broker had no candles
	Failed  []string
}

func (r *Report) add(f func(r *Report)) {
	r.mu.Lock()
	f(r)
	r.mu.Unlock()
}

type Ingester struct {
	provider HistoryProvider
	store    CandleWriter
	calendar *TradingCalendar
	opts     Options
	logger   *zap.Logger
}

func NewIngester(provider HistoryProvider, store CandleWriter, cal *TradingCalendar, opts Options, logger *zap.Logger) *Ingester {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	return &Ingester{
		provider: provider,
		store:    store,
		calendar: cal,
		opts:     opts,
		logger:   logger.Named("ingest"),
	}
}

// Run fetches and stores history for every symbol that is not stored yet.
// Failures are per symbol: one bad symbol never stops the others.
func (in *Ingester) Run(ctx context.Context, symbols []string) *Report {
	report := &Report{Stored: make(map[string]int64)}
	if len(symbols) == 0 {
		in.logger.Warn("no symbols configured, skipping historical fetch")
		return report
	}

	windows := Windows(in.opts.From, in.opts.To, in.opts.ChunkDays, in.calendar)
	in.logger.Info("starting ingest",
		zap.Int("symbols", len(symbols)),
		zap.Int("windows", len(windows)),
		zap.String("resolution", in.opts.Resolution),
	)

	sem := make(chan struct{}, in.opts.Concurrency)
	var wg sync.WaitGroup
	for _, symbol := range symbols {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return report
		}
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()
			in.ingestSymbol(ctx, symbol, windows, report)
		}(symbol)
	}
	wg.Wait()

	in.logger.Info("ingest finished",
		zap.Int("stored", len(report.Stored)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("empty", len(report.Empty)),
		zap.Int("failed", len(report.Failed)),
	)
	return report
}

func (in *Ingester) ingestSymbol(ctx context.Context, symbol string, windows []Window, report *Report) {
	log := in.logger.With(zap.String("symbol", symbol))

	stored, err := in.store.HasData(ctx, symbol)
	if err != nil {
		log.Warn("failed to check stored data", zap.Error(err))
		report.add(func(r *Report) { r.Failed = append(r.Failed, symbol) })
		return
	}
	log.Debug("checked store", zap.Bool("already_stored", stored))
	if stored {
		log.Info("data already exists, skipping fetch")
		if in.opts.Prune {
			in.prune(ctx, log, symbol)
		}
		report.add(func(r *Report) { r.Skipped = append(r.Skipped, symbol) })
		return
	}

	// fetch every window before storing: a symbol is stored whole or not at all
	var all market.Series
	for _, w := range windows {
		reqCtx, cancel := context.WithTimeout(ctx, in.opts.Timeout)
		series, err := in.provider.GetHistory(reqCtx, fyers.HistoryRequest{
			Symbol:     symbol,
			Resolution: in.opts.Resolution,
			From:       w.From,
			To:         w.To,
			ContFlag:   true,
		})
		cancel()
		if errors.Is(err, fyers.ErrNoData) {
			log.Debug("no candles in window", zap.Time("from", w.From), zap.Time("to", w.To))
			continue
		}
		if err != nil {
			log.Warn("failed to fetch history", zap.Time("from", w.From), zap.Error(err))
			report.add(func(r *Report) { r.Failed = append(r.Failed, symbol) })
			return
		}
		log.Debug("fetched candles", zap.Int("count", len(series)), zap.Time("from", w.From))
		all = append(all, series...)
	}

	var inserted int64
	if len(all) > 0 {
		n, err := in.store.InsertCandles(ctx, symbol, all)
		if err != nil {
			log.Warn("failed to insert candles", zap.Error(err))
			report.add(func(r *Report) { r.Failed = append(r.Failed, symbol) })
			return
		}
		inserted = n
	}

	if inserted == 0 {
		log.Warn("no data returned for symbol")
		report.add(func(r *Report) { r.Empty = append(r.Empty, symbol) })
		return
	}
	log.Info("stored history for symbol", zap.Int64("candles", inserted))
	report.add(func(r *Report) { r.Stored[symbol] = inserted })
}

func (in *Ingester) prune(ctx context.Context, log *zap.Logger, symbol string) {
	n, err := in.store.DeleteBefore(ctx, symbol, in.opts.From.Unix())
	if err != nil {
		log.Warn("failed to prune candles", zap.Error(err))
		return
	}
	if n > 0 {
		log.Info("pruned candles before range", zap.Int64("deleted", n), zap.Time("before", in.opts.From))
	}
}
