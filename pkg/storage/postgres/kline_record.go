package postgres

import (
	"time"

	"superengulfing/pkg/pattern"
)

// KlineRecord is a finalized candlestick as recorded by the kline collector.
// The scanner only reads it.
type KlineRecord struct {
	ID uint `gorm:"primaryKey"`

	Symbol   string    `gorm:"type:text;not null;index:idx_kline_symbol;index:idx_symbol_interval_start_confirm,unique"`
	Interval string    `gorm:"type:varchar(10);not null;index:idx_symbol_interval_start_confirm,unique"`
	Start    time.Time `gorm:"not null;index:idx_symbol_interval_start_confirm,unique"`
	Confirm  bool      `gorm:"not null;index:idx_symbol_interval_start_confirm,unique"`

	End time.Time `gorm:"not null"`

	Open  float64 `gorm:"type:numeric;not null"`
	Close float64 `gorm:"type:numeric;not null"`
	High  float64 `gorm:"type:numeric;not null"`
	Low   float64 `gorm:"type:numeric;not null"`

	Volume   float64 `gorm:"type:numeric;not null"`
	Turnover float64 `gorm:"type:numeric;not null"`

	Timestamp  time.Time `gorm:"not null;index:idx_kline_timestamp"`
	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (KlineRecord) TableName() string {
	return "kline_record"
}

// ToBar converts the record to a classifier bar. The sequence id is the
// row id; stores that need a session sequence restamp it.
func (k KlineRecord) ToBar() pattern.Bar {
	return pattern.Bar{
		SequenceID: int64(k.ID),
		OpenTime:   k.Start.UnixMilli(),
		Open:       k.Open,
		High:       k.High,
		Low:        k.Low,
		Close:      k.Close,
	}
}

// Valid reports whether the record satisfies the OHLC invariants the
// classifier assumes. Recorded rows occasionally carry zeroed prices.
func (k KlineRecord) Valid() bool {
	return k.Low > 0 &&
		k.High >= k.Open && k.High >= k.Close &&
		k.Low <= k.Open && k.Low <= k.Close
}
