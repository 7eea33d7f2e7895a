package postgres

import (
	"context"
	"os"
	"testing"
	"time"
)

// go test -v --run TestRecordsToBars
func TestRecordsToBars(t *testing.T) {
	start := time.Date(2025, 1, 2, 3, 4, 0, 0, time.UTC)
	records := []KlineRecord{
		{ID: 7, Symbol: "BTCUSDT", Interval: "1m", Start: start, Open: 31400, Close: 31500, High: 31600, Low: 31300, Confirm: true},
		{ID: 8, Symbol: "BTCUSDT", Interval: "1m", Start: start.Add(time.Minute), Open: 0, Close: 0, High: 0, Low: 0, Confirm: true},
		{ID: 9, Symbol: "BTCUSDT", Interval: "1m", Start: start.Add(2 * time.Minute), Open: 31500, Close: 31450, High: 31400, Low: 31300, Confirm: true},
		{ID: 10, Symbol: "BTCUSDT", Interval: "1m", Start: start.Add(3 * time.Minute), Open: 31500, Close: 31450, High: 31550, Low: 31420, Confirm: true},
	}

	bars := RecordsToBars(records)
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2 (invalid rows skipped): %+v", len(bars), bars)
	}

	first := bars[0]
	if first.SequenceID != 7 || first.OpenTime != start.UnixMilli() {
		t.Errorf("unexpected identity: %+v", first)
	}
	if first.Open != 31400 || first.High != 31600 || first.Low != 31300 || first.Close != 31500 {
		t.Errorf("unexpected prices: %+v", first)
	}
	if bars[1].SequenceID != 10 {
		t.Errorf("second bar id = %d, want 10", bars[1].SequenceID)
	}
}

// go test -v --run TestCreateDatabaseStmt
func TestCreateDatabaseStmt(t *testing.T) {
	if got := createDatabaseStmt(`kline"db`); got != `CREATE DATABASE "kline""db"` {
		t.Errorf("createDatabaseStmt() = %s", got)
	}
}

// go test -v --run TestLoadBarsIntegration
// Requires SE_TEST_POSTGRES_DSN pointing at a database with kline_record.
func TestLoadBarsIntegration(t *testing.T) {
	dsn := os.Getenv("SE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SE_TEST_POSTGRES_DSN not set")
	}

	client, err := NewClient(dsn, PoolOptions{MaxOpenConns: 2})
	if err != nil {
		t.Fatalf("failed to connect to DB: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if !client.IsHealthy(ctx) {
		t.Fatal("expected healthy DB connection")
	}
	if err := client.AutoMigrateKlineRecord(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Minute)
	symbol := "SETEST" + now.Format("150405")
	for i := 0; i < 3; i++ {
		rec := &KlineRecord{
			Symbol: symbol, Interval: "1m", Confirm: true,
			Start: now.Add(time.Duration(i) * time.Minute), End: now.Add(time.Duration(i+1) * time.Minute),
			Open: 100, Close: 101, High: 102, Low: 99, Timestamp: now,
		}
		if err := client.DB.WithContext(ctx).Create(rec).Error; err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	defer client.DB.Where("symbol = ?", symbol).Delete(&KlineRecord{})

	bars, err := client.LoadBars(ctx, symbol, "1m", now.Add(-time.Minute), now.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("LoadBars() error: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("got %d bars, want 3", len(bars))
	}
	for i := 1; i < len(bars); i++ {
		if bars[i].OpenTime <= bars[i-1].OpenTime {
			t.Errorf("bars not ordered: %+v", bars)
		}
	}
}
