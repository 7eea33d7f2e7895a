package scanner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"superengulfing/config"
	"superengulfing/internal/memorystore"
	"superengulfing/pkg/pattern"
)

func bar(openTime int64, open, high, low, close float64) pattern.Bar {
	return pattern.Bar{OpenTime: openTime, Open: open, High: high, Low: low, Close: close}
}

// The third bar is a REV_BULL that sweeps only the bar before it.
func revBullBars() []pattern.Bar {
	return []pattern.Bar{
		bar(1000, 100, 101, 97, 100.5),
		bar(2000, 105, 106, 99, 100),
		bar(3000, 99, 107, 98, 105.5),
	}
}

type fakeSource struct {
	mu    sync.Mutex
	bars  map[string][]pattern.Bar
	fail  map[string]bool
	calls []string
	from  time.Time
	to    time.Time
}

func (f *fakeSource) LoadBars(_ context.Context, symbol, interval string, from, to time.Time) ([]pattern.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, symbol+"/"+interval)
	f.from, f.to = from, to
	if f.fail[symbol] {
		return nil, errors.New("connection refused")
	}
	return append([]pattern.Bar(nil), f.bars[symbol]...), nil
}

func newScanner() *Scanner {
	return New(memorystore.NewBarStore(64), 3, nil)
}

// go test -v --run TestScannerOnBar
func TestScannerOnBar(t *testing.T) {
	s := newScanner()

	var hits []Hit
	for _, b := range revBullBars() {
		hit, ok, err := s.OnBar("BTCUSDT", b)
		if err != nil {
			t.Fatalf("OnBar() error: %v", err)
		}
		if ok {
			hits = append(hits, hit)
		}
	}

	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1: %+v", len(hits), hits)
	}
	h := hits[0]
	if h.Result.Family != pattern.RevBull || h.Result.Strength != pattern.Normal || h.Result.Label != "REV" {
		t.Errorf("unexpected result: %+v", h.Result)
	}
	if h.Bar.SequenceID != 3 || h.Bar.OpenTime != 3000 {
		t.Errorf("unexpected bar: %+v", h.Bar)
	}

	if _, _, err := s.OnBar("BTCUSDT", bar(3000, 1, 2, 0.5, 1.5)); !errors.Is(err, memorystore.ErrOutOfOrder) {
		t.Errorf("expected ErrOutOfOrder, got %v", err)
	}
}

// go test -v --run TestJobRunOnce
func TestJobRunOnce(t *testing.T) {
	src := &fakeSource{
		bars: map[string][]pattern.Bar{
			"AAAUSDT": revBullBars(),
			"BBBUSDT": revBullBars()[:2],
		},
		fail: map[string]bool{"ERRUSDT": true},
	}
	cfg := config.ScanConfig{
		Symbols:     []string{"AAAUSDT", "BBBUSDT", "ERRUSDT"},
		Interval:    "1m",
		Lookback:    time.Hour,
		Concurrency: 2,
		Timeout:     time.Second,
	}
	job := NewJob(src, newScanner(), cfg, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	report, err := job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce() error: %v", err)
	}
	if report.Symbols != 3 || report.Bars != 5 {
		t.Errorf("unexpected counts: %+v", report)
	}
	if len(report.Hits) != 1 || report.Hits[0].Symbol != "AAAUSDT" {
		t.Errorf("unexpected hits: %+v", report.Hits)
	}
	if len(report.Failed) != 1 || report.Failed[0] != "ERRUSDT" {
		t.Errorf("unexpected failures: %+v", report.Failed)
	}
	if !src.to.Equal(now) || !src.from.Equal(now.Add(-time.Hour)) {
		t.Errorf("unexpected window %s..%s", src.from, src.to)
	}
	if len(src.calls) != 3 || src.calls[0][len(src.calls[0])-3:] != "/1m" {
		t.Errorf("unexpected calls: %v", src.calls)
	}

	// A second run sees nothing new.
	report, err = job.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("second RunOnce() error: %v", err)
	}
	if report.Bars != 0 || len(report.Hits) != 0 {
		t.Errorf("second run reprocessed bars: %+v", report)
	}
}

// go test -v --run TestJobRunOnceCancelled
func TestJobRunOnceCancelled(t *testing.T) {
	src := &fakeSource{bars: map[string][]pattern.Bar{}}
	cfg := config.ScanConfig{Symbols: []string{"A", "B", "C"}, Interval: "1m", Lookback: time.Hour, Concurrency: 1}
	job := NewJob(src, newScanner(), cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The first slot may still be taken before the cancellation is seen.
	if _, err := job.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error: %v", err)
	}
}

// go test -v --run TestJobSchedule
func TestJobSchedule(t *testing.T) {
	job := NewJob(&fakeSource{}, newScanner(), config.ScanConfig{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if _, err := job.Schedule(ctx, "not a cron"); err == nil {
		t.Error("expected error for invalid spec")
	}

	c, err := job.Schedule(ctx, "0 */5 * * * *")
	if err != nil {
		t.Fatalf("Schedule() error: %v", err)
	}
	if n := len(c.Entries()); n != 1 {
		t.Errorf("got %d entries, want 1", n)
	}
}

type blockingSource struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingSource) LoadBars(context.Context, string, string, time.Time, time.Time) ([]pattern.Bar, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return nil, nil
}

// go test -v --run TestJobRunWaitsForScan
func TestJobRunWaitsForScan(t *testing.T) {
	src := &blockingSource{started: make(chan struct{}), release: make(chan struct{})}
	cfg := config.ScanConfig{Symbols: []string{"BTCUSDT"}, Interval: "1m", Lookback: time.Hour, Concurrency: 1}
	job := NewJob(src, newScanner(), cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	returned := make(chan error, 1)
	go func() { returned <- job.Run(ctx, "* * * * * *") }()

	select {
	case <-src.started:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled scan never started")
	}
	cancel()

	select {
	case err := <-returned:
		t.Fatalf("Run() returned %v while a scan was still loading", err)
	case <-time.After(100 * time.Millisecond):
	}

	close(src.release)
	select {
	case err := <-returned:
		if err != nil {
			t.Errorf("Run() error: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Run() did not return after the scan finished")
	}
}

// go test -v --run TestJobRunInvalidSpec
func TestJobRunInvalidSpec(t *testing.T) {
	job := NewJob(&fakeSource{}, newScanner(), config.ScanConfig{}, nil)
	if err := job.Run(context.Background(), "not a cron"); err == nil {
		t.Error("expected error for invalid spec")
	}
}
