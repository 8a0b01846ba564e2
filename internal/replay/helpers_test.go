package replay

import (
	"context"
	"errors"
	"sync"
	"time"

	"wsreplay/internal/market"
)

type fakeTransport struct {
	mu      sync.Mutex
	samples []Sample
	closes  int
	sendErr error
}

func (f *fakeTransport) Send(s Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.samples = append(f.samples, s)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeTransport) Samples() []Sample {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Sample, len(f.samples))
	copy(out, f.samples)
	return out
}

func (f *fakeTransport) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

type fakeStore struct {
	mu     sync.Mutex
	series map[string]market.Series
	fail   map[string]error
	calls  []string
	block  chan struct{} // when set, loads wait for it or ctx
}

func newFakeStore(series map[string]market.Series) *fakeStore {
	return &fakeStore{series: series, fail: map[string]error{}}
}

func (f *fakeStore) LoadSeries(ctx context.Context, symbol string) (market.Series, error) {
	f.mu.Lock()
	f.calls = append(f.calls, symbol)
	block := f.block
	err := f.fail[symbol]
	series := f.series[symbol].Clone()
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return series, nil
}

func (f *fakeStore) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

var errFetch = errors.New("fetch failed")

// manualTicker fires only when the test says so.
type manualTicker struct {
	ch    chan time.Time
	mu    sync.Mutex
	stops int
}

func newManualTicker() *manualTicker {
	return &manualTicker{ch: make(chan time.Time)}
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }

func (m *manualTicker) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
}

func (m *manualTicker) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// fire delivers one tick and reports whether the loop accepted it.
func (m *manualTicker) fire() bool {
	select {
	case m.ch <- time.Now():
		return true
	case <-time.After(200 * time.Millisecond):
		return false
	}
}

// tickerRecorder is a TickerFactory handing out manual tickers.
type tickerRecorder struct {
	created chan *manualTicker
}

func newTickerRecorder() *tickerRecorder {
	return &tickerRecorder{created: make(chan *manualTicker, 8)}
}

func (r *tickerRecorder) factory(time.Duration) Ticker {
	t := newManualTicker()
	r.created <- t
	return t
}

func (r *tickerRecorder) next() *manualTicker {
	select {
	case t := <-r.created:
		return t
	case <-time.After(2 * time.Second):
		return nil
	}
}

// scenarioA is X=[(100,10),(160,11)], Y=[(100,20)].
func scenarioA() map[string]market.Series {
	return map[string]market.Series{
		"X": {{Time: 100, Close: 10}, {Time: 160, Close: 11}},
		"Y": {{Time: 100, Close: 20}},
	}
}

func sample(symbol string, ltp float64, ts int64) Sample {
	return Sample{Symbol: symbol, LTP: ltp, Timestamp: ts, Type: SampleType}
}
