// Package main seeds the fixed category list. Safe to run repeatedly.
package main

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/newtube/backend/config"
	"github.com/newtube/backend/internal/categories"
	"github.com/newtube/backend/pkg/database"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Error("seed categories", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}

	seeds := categories.Seeds()
	inserted, err := categories.NewRepository(pool).Insert(ctx, seeds)
	if err != nil {
		return err
	}
	logger.Info("categories seeded", zap.Int("total", len(seeds)), zap.Int("inserted", inserted))
	return nil
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
