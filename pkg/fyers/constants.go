package fyers

import "fmt"

// Resolution is the candle size accepted by the history endpoint.
type Resolution string

// ResolutionMeta holds the API value and the bar length in seconds.
type ResolutionMeta struct {
	APIValue string
	Seconds  int64
}

const (
	Resolution5Sec   Resolution = "5S"
	Resolution10Sec  Resolution = "10S"
	Resolution15Sec  Resolution = "15S"
	Resolution30Sec  Resolution = "30S"
	Resolution45Sec  Resolution = "45S"
	Resolution1Min   Resolution = "1"
	Resolution2Min   Resolution = "2"
	Resolution3Min   Resolution = "3"
	Resolution5Min   Resolution = "5"
	Resolution10Min  Resolution = "10"
	Resolution15Min  Resolution = "15"
	Resolution20Min  Resolution = "20"
	Resolution30Min  Resolution = "30"
	Resolution60Min  Resolution = "60"
	Resolution120Min Resolution = "120"
	Resolution240Min Resolution = "240"
	ResolutionDaily  Resolution = "1D"
)

var validResolutions = map[Resolution]ResolutionMeta{
	Resolution5Sec:   {APIValue: "5S", Seconds: 5},
	Resolution10Sec:  {APIValue: "10S", Seconds: 10},
	Resolution15Sec:  {APIValue: "15S", Seconds: 15},
	Resolution30Sec:  {APIValue: "30S", Seconds: 30},
	Resolution45Sec:  {APIValue: "45S", Seconds: 45},
	Resolution1Min:   {APIValue: "1", Seconds: 60},
	Resolution2Min:   {APIValue: "2", Seconds: 120},
	Resolution3Min:   {APIValue: "3", Seconds: 180},
	Resolution5Min:   {APIValue: "5", Seconds: 300},
	Resolution10Min:  {APIValue: "10", Seconds: 600},
	Resolution15Min:  {APIValue: "15", Seconds: 900},
	Resolution20Min:  {APIValue: "20", Seconds: 1200},
	Resolution30Min:  {APIValue: "30", Seconds: 1800},
	Resolution60Min:  {APIValue: "60", Seconds: 3600},
	Resolution120Min: {APIValue: "120", Seconds: 7200},
	Resolution240Min: {APIValue: "240", Seconds: 14400},
	ResolutionDaily:  {APIValue: "1D", Seconds: 86400},
}

// IsValid checks if the Resolution is one the broker accepts
func (r Resolution) IsValid() bool {
	_, ok := validResolutions[r]
	return ok
}

// ParseResolution parses a string into a valid ResolutionMeta.
// "D" is accepted as an alias of "1D".
func ParseResolution(s string) (ResolutionMeta, error) {
	if s == "D" {
		s = string(ResolutionDaily)
	}
	meta, ok := validResolutions[Resolution(s)]
	if !ok {
		return ResolutionMeta{}, fmt.Errorf("invalid resolution: %s", s)
	}
	return meta, nil
}
