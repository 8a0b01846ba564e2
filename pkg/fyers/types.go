package fyers

import (
	"errors"
	"fmt"
	"time"
)

// Response statuses of the "s" field.
const (
	StatusOK     = "ok"
	StatusNoData = "no_data"
	StatusError  = "error"
)

// ErrNoData means the broker has no candles for the requested window.
var ErrNoData = errors.New("fyers: no data")

// HistoryRequest mirrors the query parameters of /data/history.
type HistoryRequest struct {
	Symbol     string
	Resolution string
	From       time.Time
	To         time.Time
	DateFormat int  // 0: range given as epoch seconds
	ContFlag   bool // continuous data for futures and options
}

// APIError is a non-ok answer from the broker.
type APIError struct {
	Status  string
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fyers error: s=%s code=%d message=%s", e.Status, e.Code, e.Message)
}
