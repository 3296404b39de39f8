// Package main runs the background workflow dispatcher: it drains queued workflow runs
// and delivers each one to its signed workflow endpoint.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/newtube/backend/config"
	"github.com/newtube/backend/internal/worker"
	"github.com/newtube/backend/pkg/metrics"
	"github.com/newtube/backend/pkg/queue"
	"github.com/newtube/backend/pkg/redis"
	"github.com/newtube/backend/pkg/workflow"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	jobQueue := queue.NewQueue(rdb.Client, logger)
	invoker := workflow.NewInvoker(nil, workflow.NewSigner(cfg.Workflow.SigningSecret), cfg.Workflow.CallTimeout, logger)
	dispatcher := worker.NewWorkflowDispatcher(jobQueue, invoker, logger)

	if cfg.Server.WorkerMetricsPort != "" {
		metricsSrv := metrics.StartServer(cfg.Server.WorkerMetricsPort)
		defer metricsSrv.Close()
		logger.Info("worker metrics listening", zap.String("port", cfg.Server.WorkerMetricsPort))
	}

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go dispatcher.Run(workerCtx)
	logger.Info("worker started", zap.String("queue", queue.QueueWorkflows))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
