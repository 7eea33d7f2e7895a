package main

import (
	"context"
	"os/signal"
	"syscall"

	"superengulfing/config"
	"superengulfing/internal/stream"
	"superengulfing/logger"

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
	log, err := logger.New(cfg.Log, "scenariod")
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("scenario service starting",
		zap.String("addr", cfg.Server.Addr),
		zap.Int("sweepDepth", cfg.Engine.SweepDepth),
		zap.Duration("barDelay", cfg.Server.BarDelay))

	if err := stream.NewServer(cfg, log).ListenAndServe(ctx); err != nil {
		log.Fatal("server failed", zap.Error(err))
	}
}
