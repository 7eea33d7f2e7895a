package main

import (
	"context"
	"os/signal"
	"syscall"

	"superengulfing/config"
	"superengulfing/internal/memorystore"
	"superengulfing/internal/scanner"
	"superengulfing/logger"
	"superengulfing/pkg/storage/postgres"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	// optional .env, then viper config
	_ = godotenv.Load(".env")
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// zap logger
	log, err := logger.New(cfg.Log, "scanner")
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// prod credentials come from Parameter Store
	var params config.ParameterGetter
	if cfg.Log.Environment == "prod" {
		store, err := config.NewSSMStore(ctx)
		if err != nil {
			log.Fatal("failed to init parameter store", zap.Error(err))
		}
		params = store
	}

	db, err := postgres.InitializeAndMigrate(ctx, cfg.Postgres, cfg.Log.Environment, params)
	if err != nil {
		log.Fatal("failed to connect to DB", zap.Error(err))
	}
	defer db.Close()

	scan := scanner.New(memorystore.NewBarStore(cfg.Scan.Window), cfg.Engine.SweepDepth, log)
	job := scanner.NewJob(db, scan, cfg.Scan, log)

	if cfg.Scan.Cron == "" {
		if _, err := job.RunOnce(ctx); err != nil {
			log.Fatal("scan failed", zap.Error(err))
		}
		return
	}

	// first pass right away, then on schedule
	if _, err := job.RunOnce(ctx); err != nil {
		log.Warn("initial scan failed", zap.Error(err))
	}
	if err := job.Run(ctx, cfg.Scan.Cron); err != nil {
		log.Fatal("failed to schedule scan", zap.Error(err))
	}
	log.Info("shutdown signal received, scanner stopped")
}
