package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wsreplay/internal/market"
	"wsreplay/pkg/fyers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls map[string]int
	data  map[string]market.Series // symbol -> candles returned for any window
	errs  map[string]error
	// failAt fails the n-th request of a symbol, counted across runs
	failAt map[string]int
}

func (p *fakeProvider) GetHistory(ctx context.Context, req fyers.HistoryRequest) (market.Series, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = make(map[string]int)
	}
	p.calls[req.Symbol]++
	if err := p.errs[req.Symbol]; err != nil {
		return nil, err
	}
	if n, ok := p.failAt[req.Symbol]; ok && n == p.calls[req.Symbol] {
		return nil, errors.New("gateway timeout")
	}
	var out market.Series
	for _, c := range p.data[req.Symbol] {
		if c.Time >= req.From.Unix() && c.Time < req.To.Unix() {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fyers.ErrNoData
	}
	return out, nil
}

type fakeWriter struct {
	mu      sync.Mutex
	rows    map[string]market.Series
	hasErr  error
	present map[string]bool
}

func (w *fakeWriter) HasData(ctx context.Context, symbol string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.hasErr != nil {
		return false, w.hasErr
	}
	return w.present[symbol] || len(w.rows[symbol]) > 0, nil
}

func (w *fakeWriter) InsertCandles(ctx context.Context, symbol string, series market.Series) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.rows == nil {
		w.rows = make(map[string]market.Series)
	}
	w.rows[symbol] = append(w.rows[symbol], series...)
	return int64(len(series)), nil
}

func (w *fakeWriter) DeleteBefore(ctx context.Context, symbol string, ts int64) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var kept market.Series
	for _, c := range w.rows[symbol] {
		if c.Time >= ts {
			kept = append(kept, c)
		}
	}
	n := int64(len(w.rows[symbol]) - len(kept))
	w.rows[symbol] = kept
	return n, nil
}

func testOptions() Options {
	return Options{
		Resolution:  "1",
		From:        day(2022, 8, 1),
		To:          day(2022, 8, 4),
		ChunkDays:   1,
		Concurrency: 2,
		Timeout:     time.Second,
	}
}

// go test -v --run TestIngesterRun
func TestIngesterRun(t *testing.T) {
	aug1 := day(2022, 8, 1).Unix()
	aug3 := day(2022, 8, 3).Unix()
	provider := &fakeProvider{
		data: map[string]market.Series{
			"NSE:SBIN-EQ": {{Time: aug1 + 33300, Close: 521.8}, {Time: aug3 + 33300, Close: 530.1}},
		},
		errs: map[string]error{"NSE:BAD-EQ": &fyers.APIError{Status: "error", Code: -300, Message: "Invalid symbol"}},
	}
	writer := &fakeWriter{present: map[string]bool{"NSE:TCS-EQ": true}}

	in := NewIngester(provider, writer, nil, testOptions(), zap.NewNop())
	report := in.Run(context.Background(), []string{"NSE:SBIN-EQ", "NSE:TCS-EQ", "NSE:BAD-EQ", "NSE:EMPTY-EQ"})

	assert.Equal(t, map[string]int64{"NSE:SBIN-EQ": 2}, report.Stored)
	assert.Equal(t, []string{"NSE:TCS-EQ"}, report.Skipped)
	assert.Equal(t, []string{"NSE:BAD-EQ"}, report.Failed)
	assert.Equal(t, []string{"NSE:EMPTY-EQ"}, report.Empty)

	assert.Equal(t, 3, provider.calls["NSE:SBIN-EQ"], "one request per daily window")
	assert.Zero(t, provider.calls["NSE:TCS-EQ"], "stored symbols are not fetched again")
	assert.Equal(t, 1, provider.calls["NSE:BAD-EQ"], "a failed symbol stops at its first error")
	require.Len(t, writer.rows["NSE:SBIN-EQ"], 2)
}

// go test -v --run TestIngesterStoreUnavailable
func TestIngesterStoreUnavailable(t *testing.T) {
	provider := &fakeProvider{}
	writer := &fakeWriter{hasErr: errors.New("connection refused")}

	report := NewIngester(provider, writer, nil, testOptions(), zap.NewNop()).
		Run(context.Background(), []string{"A", "B"})

	assert.ElementsMatch(t, []string{"A", "B"}, report.Failed)
	assert.Empty(t, provider.calls)
}

// go test -v --run TestIngesterNoSymbols
func TestIngesterNoSymbols(t *testing.T) {
	report := NewIngester(&fakeProvider{}, &fakeWriter{}, nil, testOptions(), zap.NewNop()).
		Run(context.Background(), nil)
	assert.Empty(t, report.Stored)
}

// go test -v --run TestIngesterPartialFailureStoresNothing
func TestIngesterPartialFailureStoresNothing(t *testing.T) {
	var candles market.Series
	for d := 1; d <= 3; d++ {
		candles = append(candles, market.Candle{Time: day(2022, 8, d).Unix() + 33300, Close: float64(500 + d)})
	}
	provider := &fakeProvider{
		data:   map[string]market.Series{"NSE:SBIN-EQ": candles},
		failAt: map[string]int{"NSE:SBIN-EQ": 2},
	}
	writer := &fakeWriter{}
	in := NewIngester(provider, writer, nil, testOptions(), zap.NewNop())

	report := in.Run(context.Background(), []string{"NSE:SBIN-EQ"})
	assert.Equal(t, []string{"NSE:SBIN-EQ"}, report.Failed)
	assert.Empty(t, writer.rows["NSE:SBIN-EQ"], "nothing stored when a window fails")

	report = in.Run(context.Background(), []string{"NSE:SBIN-EQ"})
	assert.Empty(t, report.Skipped)
	assert.Equal(t, map[string]int64{"NSE:SBIN-EQ": 3}, report.Stored)
	assert.Equal(t, candles, writer.rows["NSE:SBIN-EQ"])
}

// go test -v --run TestIngesterPrune
func TestIngesterPrune(t *testing.T) {
	old := market.Candle{Time: day(2022, 7, 29).Unix(), Close: 498}
	kept := market.Candle{Time: day(2022, 8, 1).Unix() + 33300, Close: 521.8}
	writer := &fakeWriter{rows: map[string]market.Series{"NSE:SBIN-EQ": {old, kept}}}
	provider := &fakeProvider{}

	opts := testOptions()
	opts.Prune = true
	report := NewIngester(provider, writer, nil, opts, zap.NewNop()).Run(context.Background(), []string{"NSE:SBIN-EQ"})

	assert.Equal(t, []string{"NSE:SBIN-EQ"}, report.Skipped)
	assert.Equal(t, market.Series{kept}, writer.rows["NSE:SBIN-EQ"])
	assert.Empty(t, provider.calls)
}
