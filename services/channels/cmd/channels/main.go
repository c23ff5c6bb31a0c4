package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"quotecards/internal/metrics"
	"quotecards/internal/ratelimit"
	"quotecards/internal/util"
	"quotecards/pkg/ai"
	"quotecards/pkg/coldstart"
	"quotecards/pkg/queue"
	"quotecards/pkg/storage"
	"quotecards/services/channels/internal/app"
	"quotecards/services/channels/internal/config"
	"quotecards/services/channels/internal/server"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := util.InitLogger("channels", cfg.LogLevel)
	if err := run(cfg, logger); err != nil {
		logger.Error("channels service stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg config.FileConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessionTTL, err := config.ParseDuration(cfg.SessionTTL)
	if err != nil {
		return fmt.Errorf("parse session TTL: %w", err)
	}
	mockDelay, err := config.ParseDuration(cfg.MockDelay)
	if err != nil {
		return fmt.Errorf("parse mock delay: %w", err)
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("parse trusted proxies: %w", err)
	}
	m := metrics.Default()

	var rdb redis.UniversalClient
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	}

	var objects storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		objects, err = storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
		})
		if err != nil {
			return fmt.Errorf("init object storage: %w", err)
		}
	} else {
		logger.Info("object storage not configured, uploads are embedded in the document")
	}

	var placeholder *ai.PlaceholderImageClient
	if cfg.ImageAPIBaseURL != "" {
		placeholder, err = ai.NewPlaceholderImageClient(cfg.ImageAPIBaseURL, cfg.ImageAPIKey)
		if err != nil {
			return fmt.Errorf("init image service: %w", err)
		}
	}

	var jobs *queue.RedisJobQueue
	var limiter *ratelimit.FixedWindowLimiter
	if rdb != nil {
		jobs, err = queue.NewRedisJobQueue(queue.RedisQueueConfig{
			Client:  rdb,
			Stream:  cfg.QueueStream,
			Group:   "channels",
			Logger:  logger,
			Metrics: m,
		})
		if err != nil {
			return fmt.Errorf("init job queue: %w", err)
		}
		if cfg.GenerationRateLimitPerMinute > 0 {
			limiter, err = ratelimit.NewFixedWindowLimiter(rdb, "quotecards:ratelimit", cfg.GenerationRateLimitPerMinute, time.Minute)
			if err != nil {
				return fmt.Errorf("init rate limiter: %w", err)
			}
		}
	} else {
		logger.Info("redis not configured, async cold starts and generation limits are disabled")
	}

	appCore, err := app.New(app.Config{
		StoreBackend:      cfg.StoreBackend,
		SQLitePath:        cfg.SQLitePath,
		DatabaseURL:       cfg.DatabaseURL,
		StoreMaxBytes:     cfg.StoreMaxBytes,
		MaxUserChannels:   cfg.MaxUserChannels,
		ChatMaxPerChannel: cfg.ChatMaxPerChannel,
		Redis:             rdb,
		JWTSecret:         cfg.JWTSecret,
		SessionTTL:        sessionTTL,
		ColdStart: coldstart.Config{
			VertexBaseURL:     cfg.VertexBaseURL,
			VertexAPIKey:      cfg.VertexAPIKey,
			TextModel:         cfg.TextModel,
			ImageModel:        cfg.ImageModel,
			TextProvider:      cfg.TextProvider,
			GeminiAPIKey:      cfg.GeminiAPIKey,
			GeminiModel:       cfg.GeminiModel,
			RequestsPerSecond: cfg.RequestsPerSecond,
			MaxWidth:          cfg.CompressMaxWidth,
			Quality:           cfg.CompressQuality,
			MockDelay:         mockDelay,
			Placeholder:       placeholder,
		},
		TextAPIBaseURL: cfg.TextAPIBaseURL,
		TextAPIKey:     cfg.TextAPIKey,
		Objects:        objects,
		Queue:          jobs,
		Logger:         logger,
		Metrics:        m,
	})
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer func() {
		if err := appCore.Close(); err != nil {
			logger.Warn("app close failed", "err", err)
		}
	}()

	httpServer := server.New(server.Config{
		App:                appCore,
		GenerationLimiter:  limiter,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		TrustedProxies:     trusted,
		Metrics:            m,
	})
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("channels server listening", "addr", addr, "store", cfg.StoreBackend, "generator", appCore.GeneratorMode())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if jobs != nil {
		g.Go(func() error {
			return jobs.Run(gctx, cfg.QueueConcurrency, appCore.RunColdStartJob)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		logger.Info("shutting down channels server")
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
