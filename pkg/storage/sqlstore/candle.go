package sqlstore

import (
	"context"
	"fmt"

	"wsreplay/internal/market"

	"gorm.io/gorm/clause"
)

const insertBatchSize = 500

// InsertCandles stores series under symbol, skipping candles whose
// (symbol, timestamp) already exists. It returns the number of new rows.
func (c *Client) InsertCandles(ctx context.Context, symbol string, series market.Series) (int64, error) {
	if len(series) == 0 {
		return 0, nil
	}

	records := make([]CandleRecord, 0, len(series))
	for _, candle := range series {
		records = append(records, ToCandleRecord(symbol, candle))
	}

	tx := c.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol"}, {Name: "timestamp"}},
		DoNothing: true,
	}).CreateInBatches(records, insertBatchSize)
	if tx.Error != nil {
		return 0, fmt.Errorf("insert candles for %s: %w", symbol, tx.Error)
	}

	return tx.RowsAffected, nil
}

// LoadSeries returns every stored candle of symbol, oldest first. An unknown
// symbol yields an empty series, not an error.
func (c *Client) LoadSeries(ctx context.Context, symbol string) (market.Series, error) {
	var records []CandleRecord
	err := c.DB.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "timestamp"}}).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("load series for %s: %w", symbol, err)
	}

	series := make(market.Series, 0, len(records))
	for _, r := range records {
		series = append(series, r.Candle())
	}
	return series, nil
}

// HasData reports whether any candle is stored for symbol.
func (c *Client) HasData(ctx context.Context, symbol string) (bool, error) {
	n, err := c.CountCandles(ctx, symbol)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *Client) CountCandles(ctx context.Context, symbol string) (int64, error) {
	var n int64
	err := c.DB.WithContext(ctx).
		Model(&CandleRecord{}).
		Where("symbol = ?", symbol).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count candles for %s: %w", symbol, err)
	}
	return n, nil
}

// DeleteBefore removes candles of symbol older than ts (unix seconds).
func (c *Client) DeleteBefore(ctx context.Context, symbol string, ts int64) (int64, error) {
	tx := c.DB.WithContext(ctx).
		Where("symbol = ?", symbol).
		Where(clause.Lt{Column: clause.Column{Name: "timestamp"}, Value: ts}).
		Delete(&CandleRecord{})
	if tx.Error != nil {
		return 0, fmt.Errorf("delete candles for %s: %w", symbol, tx.Error)
	}
	return tx.RowsAffected, nil
}
