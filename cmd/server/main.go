// Package main runs the video studio HTTP server: RPC procedures, the Mux webhook and workflow endpoints.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/newtube/backend/config"
	"github.com/newtube/backend/internal/auth"
	"github.com/newtube/backend/internal/categories"
	"github.com/newtube/backend/internal/events"
	"github.com/newtube/backend/internal/middleware"
	"github.com/newtube/backend/internal/studio"
	"github.com/newtube/backend/internal/videos"
	"github.com/newtube/backend/internal/webhooks"
	"github.com/newtube/backend/internal/workflows"
	"github.com/newtube/backend/pkg/database"
	"github.com/newtube/backend/pkg/genai"
	"github.com/newtube/backend/pkg/metrics"
	"github.com/newtube/backend/pkg/mux"
	"github.com/newtube/backend/pkg/queue"
	"github.com/newtube/backend/pkg/redis"
	"github.com/newtube/backend/pkg/response"
	"github.com/newtube/backend/pkg/storage"
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
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	objects, err := newObjectStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal("storage", zap.Error(err))
	}

	publisher, err := newPublisher(cfg.Events, rdb, logger)
	if err != nil {
		logger.Fatal("events", zap.Error(err))
	}
	defer publisher.Close()

	if cfg.Mux.WebhookSecret == "" {
		logger.Warn("MUX_WEBHOOK_SECRET is not set; webhook deliveries will be rejected")
	}
	if cfg.Workflow.SigningSecret == "" {
		logger.Warn("WORKFLOW_SIGNING_SECRET is not set; workflow endpoints accept unsigned calls")
	}

	jwtService := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	limiter := middleware.NewRedisLimiter(rdb.Client, cfg.RateLimit.Requests, cfg.RateLimit.Window)

	muxClient := mux.NewClient(mux.Config{
		TokenID:     cfg.Mux.TokenID,
		TokenSecret: cfg.Mux.TokenSecret,
		CORSOrigin:  cfg.Mux.UploadOrigin,
	}, logger)
	generator := genai.NewClient(genai.Config{
		APIKey:  cfg.GenAI.APIKey,
		BaseURL: cfg.GenAI.BaseURL,
		Model:   cfg.GenAI.Model,
	}, logger)

	jobQueue := queue.NewQueue(rdb.Client, logger)
	workflowClient := workflow.NewClient(cfg.Workflow.BaseURL, jobQueue, logger)
	checkpoints := workflow.NewRedisCheckpoints(rdb.Client, cfg.Workflow.CheckpointTTL)
	signer := workflow.NewSigner(cfg.Workflow.SigningSecret)

	videoRepo := videos.NewRepository(pool)
	videoHandler := videos.NewHandler(videoRepo, muxClient, objects, workflowClient, publisher, logger)
	studioHandler := studio.NewHandler(videoRepo, logger)
	categoryHandler := categories.NewHandler(categories.NewRepository(pool), logger)
	muxWebhook := webhooks.NewMuxHandler(videoRepo, objects, publisher, cfg.Mux.WebhookSecret, logger)
	workflowHandler := workflows.NewHandler(videoRepo, generator, checkpoints, signer, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(metrics.GinMiddleware("server"))

	router.GET("/health", func(c *gin.Context) {
		if !rdb.Healthy(c.Request.Context()) {
			response.ServiceUnavailable(c, "redis unavailable")
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	procedures := router.Group("/trpc")
	procedures.Use(middleware.JWT(jwtService))
	procedures.Use(middleware.RateLimit(limiter, logger))
	{
		videoHandler.Register(procedures)
		studioHandler.Register(procedures)
		categoryHandler.Register(procedures)
	}

	// Platform callbacks carry their own signatures, no JWT.
	router.POST("/api/videos/webhook", muxWebhook.Handle)
	workflowHandler.Register(router.Group("/api/videos/workflows"))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newObjectStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Store, error) {
	if cfg.Driver == "minio" {
		return storage.NewMinIO(ctx, storage.MinIOConfig{
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			Bucket:          cfg.Bucket,
			UseSSL:          cfg.UseSSL,
			PublicBaseURL:   cfg.PublicBaseURL,
		}, logger)
	}
	return storage.NewS3(ctx, storage.S3Config{
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Bucket:          cfg.Bucket,
		PublicBaseURL:   cfg.PublicBaseURL,
	}, logger)
}

func newPublisher(cfg config.EventsConfig, rdb *redis.Client, logger *zap.Logger) (events.Publisher, error) {
	switch cfg.Driver {
	case "kafka":
		return events.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	case "none":
		return events.Nop{}, nil
	default:
		return events.NewRedisPubSub(rdb.Client, logger), nil
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
