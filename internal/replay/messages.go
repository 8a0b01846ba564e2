package replay

import (
	"encoding/json"
	"errors"
	"fmt"

	"wsreplay/internal/market"
)

const (
	// ActionSubscribe is the only inbound action the server acts on.
	ActionSubscribe = "subscribe"
	// SampleType is the discriminator clients key on; part of the wire contract.
	SampleType = "sf"
)

var (
	ErrMalformedCommand = errors.New("replay: malformed command")
	ErrUnknownAction    = errors.New("replay: unknown action")
	ErrNoSymbols        = errors.New("replay: no symbols")
)

// SubscribeCommand is the inbound client message {"action":"subscribe","symbols":[...]}.
type SubscribeCommand struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// Sample is one outbound update: the close of the candle at the cursor.
type Sample struct {
	Symbol    string  `json:"symbol"`
	LTP       float64 `json:"ltp"`
	Timestamp int64   `json:"timestamp"`
	Type      string  `json:"type"`
}

func NewSample(symbol string, c market.Candle) Sample {
	return Sample{
		Symbol:    symbol,
		LTP:       c.Close,
		Timestamp: c.Time,
		Type:      SampleType,
	}
}

// ParseCommand decodes and validates an inbound message.
func ParseCommand(raw []byte) (SubscribeCommand, error) {
	var cmd SubscribeCommand
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return SubscribeCommand{}, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	if cmd.Action != ActionSubscribe {
		return SubscribeCommand{}, fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
	}
	if len(cmd.Symbols) == 0 {
		return SubscribeCommand{}, ErrNoSymbols
	}
	return cmd, nil
}

// dropReason maps a ParseCommand error to a metrics label.
func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrUnknownAction):
		return "unknown_action"
	case errors.Is(err, ErrNoSymbols):
		return "no_symbols"
	default:
		return "malformed"
	}
}
