package replay

import "wsreplay/internal/market"

// Session is the playback state of one subscription: the requested symbols,
// their loaded series and a single cursor shared by all of them.
//
// A Session is not safe for concurrent use; its Scheduler serializes ticks.
type Session struct {
	symbols []string
	series  map[string]market.Series
	cursor  int
}

// NewSession keeps symbols as given, duplicates and order included. Every
// symbol must have an entry in series, even if it is empty.
func NewSession(symbols []string, series map[string]market.Series) *Session {
	syms := make([]string, len(symbols))
	copy(syms, symbols)
	return &Session{
		symbols: syms,
		series:  series,
	}
}

// Tick emits the candle at the cursor for every symbol that has one, in
// subscription order, and advances the cursor if anything was emitted.
// A false return means the session is exhausted.
func (s *Session) Tick(emit func(Sample)) bool {
	dataLeft := false
	for _, symbol := range s.symbols {
		c, ok := s.series[symbol].At(s.cursor)
		if !ok {
			continue
		}
		dataLeft = true
		emit(NewSample(symbol, c))
	}
	if dataLeft {
		s.cursor++
	}
	return dataLeft
}

func (s *Session) Cursor() int { return s.cursor }

func (s *Session) Symbols() []string {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// Len is the length of the longest series: the cursor value at which the
// session is exhausted.
func (s *Session) Len() int {
	n := 0
	for _, series := range s.series {
		if len(series) > n {
			n = len(series)
		}
	}
	return n
}
