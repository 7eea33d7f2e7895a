package scanner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"superengulfing/config"
	"superengulfing/pkg/pattern"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// BarSource loads finalized bars for a symbol, oldest first.
type BarSource interface {
	LoadBars(ctx context.Context, symbol, interval string, from, to time.Time) ([]pattern.Bar, error)
}

// Report summarizes one scan run.
type Report struct {
	Symbols int      `json:"symbols"`
	Bars    int      `json:"bars"` // new bars fed to the scanner
	Hits    []Hit    `json:"hits"`
	Failed  []string `json:"failed"`
}

// Job periodically pulls stored bars and runs them through a Scanner.
type Job struct {
	source  BarSource
	scanner *Scanner
	cfg     config.ScanConfig
	logger  *zap.Logger
	now     func() time.Time

	mu sync.Mutex // one run at a time
}

func NewJob(source BarSource, scanner *Scanner, cfg config.ScanConfig, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		source:  source,
		scanner: scanner,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// RunOnce scans every configured symbol. Symbols are loaded concurrently, at
// most cfg.Concurrency at a time; a failing symbol is reported, not fatal.
// Bars already seen by the scanner are skipped, so repeated runs only
// classify new bars.
func (j *Job) RunOnce(ctx context.Context) (Report, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	end := j.now()
	start := end.Add(-j.cfg.Lookback)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		report = Report{Symbols: len(j.cfg.Symbols)}
	)

	sem := make(chan struct{}, max(1, j.cfg.Concurrency))
	for _, symbol := range j.cfg.Symbols {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return report, fmt.Errorf("scan interrupted: %w", ctx.Err())
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			hits, fed, err := j.scanSymbol(ctx, symbol, start, end)

			mu.Lock()
			defer mu.Unlock()
			report.Bars += fed
			report.Hits = append(report.Hits, hits...)
			if err != nil {
				report.Failed = append(report.Failed, symbol)
				j.logger.Warn("failed to scan symbol", zap.String("symbol", symbol), zap.Error(err))
				return
			}
			j.logger.Info("completed scan for symbol",
				zap.String("symbol", symbol), zap.Int("bars", fed), zap.Int("hits", len(hits)))
		}()
	}
	wg.Wait()

	for _, h := range report.Hits {
		j.logger.Info("super engulfing",
			zap.String("symbol", h.Symbol),
			zap.Time("open", time.UnixMilli(h.Bar.OpenTime).UTC()),
			zap.String("family", string(h.Result.Family)),
			zap.String("strength", string(h.Result.Strength)),
			zap.String("label", h.Result.Label))
	}
	j.logger.Info("scan finished",
		zap.Int("symbols", report.Symbols),
		zap.Int("bars", report.Bars),
		zap.Int("hits", len(report.Hits)),
		zap.Int("failed", len(report.Failed)),
		zap.Int("buffered", j.scanner.Buffered()))
	return report, nil
}

func (j *Job) scanSymbol(ctx context.Context, symbol string, start, end time.Time) ([]Hit, int, error) {
	loadCtx := ctx
	if j.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		loadCtx, cancel = context.WithTimeout(ctx, j.cfg.Timeout)
		defer cancel()
	}

	bars, err := j.source.LoadBars(loadCtx, symbol, j.cfg.Interval, start, end)
	if err != nil {
		return nil, 0, fmt.Errorf("load bars: %w", err)
	}

	last, seen := j.scanner.Last(symbol)

	var (
		hits []Hit
		fed  int
	)
	for _, b := range bars {
		if seen && b.OpenTime <= last.OpenTime {
			continue
		}
		hit, ok, err := j.scanner.OnBar(symbol, b)
		if err != nil {
			return hits, fed, err
		}
		fed++
		if ok {
			hits = append(hits, hit)
		}
	}
	return hits, fed, nil
}

// Schedule runs RunOnce on a six-field cron spec (seconds first) or a
// descriptor such as "@every 5m" until ctx is done.
func (j *Job) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(spec, func() {
		if _, err := j.RunOnce(ctx); err != nil {
			j.logger.Warn("scheduled scan failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("register scan %q: %w", spec, err)
	}

	c.Start()
	j.logger.Info("scan scheduled", zap.String("cron", spec))

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		j.logger.Info("scan scheduler stopped")
	}()
	return c, nil
}

// Run schedules the scan and blocks until ctx is done and any scan already
// in progress has returned.
func (j *Job) Run(ctx context.Context, spec string) error {
	c, err := j.Schedule(ctx, spec)
	if err != nil {
		return err
	}
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
