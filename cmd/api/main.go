package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	v1 "shorewatch/cmd/api/router/v1"
	"shorewatch/internal/config"
	cacheadapter "shorewatch/internal/infrastructure/cache/adapter"
	"shorewatch/internal/infrastructure/database"
	queueadapter "shorewatch/internal/infrastructure/queue/adapter"
	"shorewatch/internal/infrastructure/relay"
	"shorewatch/internal/pkg/messaging/application/task"
	httpHandler "shorewatch/internal/pkg/messaging/presentation/http"
	"shorewatch/pkg/logger"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or could not be loaded: %v", err)
	}

	v, err := config.Load("config")
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	cfg, err := config.Parse(v)
	if err != nil {
		log.Fatalf("failed to parse configuration: %v", err)
	}

	zl, err := logger.New(cfg.Logger.Development, cfg.Logger.Level)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if cfg.Auth.JWTSecret == "" {
		zl.Fatal("auth.jwtsecret is required (SHOREWATCH_AUTH_JWTSECRET)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	pool, err := database.NewPoolFromEnv(ctx)
	cancel()
	if err != nil {
		zl.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	redisClient, err := newRedisClient()
	if err != nil {
		zl.Fatal("failed to connect to redis", zap.Error(err))
	}

	cache := cacheadapter.NewRedisCache(redisClient)
	defer func() { _ = cache.Close() }()

	bridge := relay.NewRedisBridge(redisClient, zl.Named("relay"))
	defer bridge.Close()

	queueClient, err := queueadapter.NewAsynqClientFromEnv()
	if err != nil {
		zl.Fatal("failed to build queue client", zap.Error(err))
	}
	defer func() { _ = queueClient.Close() }()

	worker, err := queueadapter.NewAsynqServer(zl.Named("worker"))
	if err != nil {
		zl.Fatal("failed to build worker server", zap.Error(err))
	}
	task.RegisterNotifyRecipient(worker, &task.LogNotifier{Log: zl.Named("notify")}, zl.Named("worker"))

	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan error, 1)
	go func() { workerDone <- worker.Run(workerCtx) }()

	if !cfg.Logger.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(cfg.Server.AllowedOrigins) == 1 && cfg.Server.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.Server.AllowedOrigins
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	r.Use(cors.New(corsCfg))

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	v1.RegisterRoutes(r, cfg.Auth.JWTSecret, cfg.Auth.Issuer, httpHandler.Deps{
		Pool:        pool,
		Relay:       bridge,
		Queue:       queueClient,
		Cache:       cache,
		Log:         zl.Named("messaging"),
		NotifyQueue: cfg.Messaging.NotifyQueue,
		PageSize:    cfg.Messaging.PageSize,
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}

	go func() {
		zl.Info("api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Warn("http shutdown incomplete", zap.Error(err))
	}

	stopWorker()
	select {
	case err := <-workerDone:
		if err != nil {
			zl.Warn("worker shutdown error", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		zl.Warn("worker shutdown timed out")
	}
}

func newRedisClient() (*redis.Client, error) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		return nil, errors.New("REDIS_URL environment variable is not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}
