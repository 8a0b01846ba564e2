package market

// Candle is one OHLCV bar. Time is the bar's start in unix seconds.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Series is the candle history of one symbol, ascending by Time with no
// duplicate times. Producers guarantee the order; consumers never re-sort.
type Series []Candle

// Clone returns a copy that shares no backing array with s.
func (s Series) Clone() Series {
	if s == nil {
		return nil
	}
	cp := make(Series, len(s))
	copy(cp, s)
	return cp
}

// At returns the candle at index i and whether it exists.
func (s Series) At(i int) (Candle, bool) {
	if i < 0 || i >= len(s) {
		return Candle{}, false
	}
	return s[i], true
}
