package postgres

import (
	"context"
	"fmt"
	"time"

	"superengulfing/pkg/pattern"
)

// ListKlines returns confirmed klines for symbol/interval whose start falls
// in [from, to), oldest first. limit <= 0 means no limit.
func (p *PostgresClient) ListKlines(ctx context.Context, symbol, interval string, from, to time.Time, limit int) ([]KlineRecord, error) {
	var records []KlineRecord

	q := p.DB.WithContext(ctx).
		Where("symbol = ? AND interval = ? AND confirm = ?", symbol, interval, true).
		Where("start >= ? AND start < ?", from, to).
		Order("start ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list klines %s/%s: %w", symbol, interval, err)
	}
	return records, nil
}

// LoadBars loads klines and converts them to bars, skipping rows that break
// the OHLC invariants.
func (p *PostgresClient) LoadBars(ctx context.Context, symbol, interval string, from, to time.Time) ([]pattern.Bar, error) {
	records, err := p.ListKlines(ctx, symbol, interval, from, to, 0)
	if err != nil {
		return nil, err
	}
	return RecordsToBars(records), nil
}

// RecordsToBars converts valid records in order.
func RecordsToBars(records []KlineRecord) []pattern.Bar {
	bars := make([]pattern.Bar, 0, len(records))
	for _, r := range records {
		if !r.Valid() {
			continue
		}
		bars = append(bars, r.ToBar())
	}
	return bars
}
