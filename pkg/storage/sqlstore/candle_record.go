package sqlstore

import (
	"time"

	"wsreplay/internal/market"
)

// CandleRecord is one stored candle of a symbol's history.
type CandleRecord struct {
	ID uint `gorm:"primaryKey"`

	// unique index
	Symbol    string `gorm:"type:varchar(64);not null;index:idx_candle_symbol_timestamp,unique"`
	Timestamp int64  `gorm:"not null;index:idx_candle_symbol_timestamp,unique"` // unix seconds

	Open   float64 `gorm:"not null"`
	High   float64 `gorm:"not null"`
	Low    float64 `gorm:"not null"`
	Close  float64 `gorm:"not null"`
	Volume float64 `gorm:"not null"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (CandleRecord) TableName() string {
	return "historical_data"
}

// ToCandleRecord converts a candle and symbol into a row for insertion.
func ToCandleRecord(symbol string, c market.Candle) CandleRecord {
	return CandleRecord{
		Symbol:    symbol,
		Timestamp: c.Time,
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}

func (r CandleRecord) Candle() market.Candle {
	return market.Candle{
		Time:   r.Timestamp,
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
	}
}
