package fyers

import (
	"fmt"

	"wsreplay/internal/market"

	"github.com/tidwall/gjson"
)

// ParseHistory converts a /data/history body into a Series.
// Rows are [epoch, open, high, low, close, volume]; short rows are skipped.
func ParseHistory(body []byte) (market.Series, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decode response: invalid json")
	}
	res := gjson.ParseBytes(body)

	switch status := res.Get("s").String(); status {
	case StatusOK:
	case StatusNoData:
		return nil, ErrNoData
	default:
		return nil, &APIError{
			Status:  status,
			Code:    res.Get("code").Int(),
			Message: res.Get("message").String(),
		}
	}

	rows := res.Get("candles").Array()
	out := make(market.Series, 0, len(rows))
	for _, row := range rows {
		cols := row.Array()
		if len(cols) < 6 {
			continue // skip incomplete row
		}
		out = append(out, market.Candle{
			Time:   cols[0].Int(),
			Open:   cols[1].Float(),
			High:   cols[2].Float(),
			Low:    cols[3].Float(),
			Close:  cols[4].Float(),
			Volume: cols[5].Float(),
		})
	}
	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}
