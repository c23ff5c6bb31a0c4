package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"quotecards/internal/metrics"
	"quotecards/internal/util"
	"quotecards/pkg/ai"
	"quotecards/pkg/coldstart"
	"quotecards/pkg/imaging"
	"quotecards/pkg/queue"
	"quotecards/pkg/serendipity"
	"quotecards/pkg/session"
	"quotecards/pkg/storage"
	"quotecards/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	StoreBackend      string
	SQLitePath        string
	DatabaseURL       string
	StoreMaxBytes     int64
	MaxUserChannels   int
	ChatMaxPerChannel int
	// Redis is shared by the redis store backend and session revocation. Optional otherwise.
	Redis redis.UniversalClient

	JWTSecret  string
	SessionTTL time.Duration

	ColdStart      coldstart.Config
	TextAPIBaseURL string
	TextAPIKey     string

	// Objects enables uploads to object storage; without it uploads are embedded as data URLs.
	Objects storage.ObjectStore
	Queue   *queue.RedisJobQueue

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Repository  store.Repository
	Generator   coldstart.Generator
	Serendipity *serendipity.Service
	Now         func() time.Time
	Rand        *rand.Rand
}

// App is the core application service wiring together storage, generation and sessions.
type App struct {
	store       *store.Store
	passwords   *store.PasswordStore
	chat        *store.ChatLog
	sessions    *session.Manager
	generator   coldstart.Generator
	serendipity *serendipity.Service
	media       *storage.MediaStore
	queue       *queue.RedisJobQueue
	logger      *slog.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
	intn        func(int) int
	compress    coldstart.CompressFunc
	closers     []io.Closer

	background sync.WaitGroup
}

// New constructs the application on the configured store backend.
func New(cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	a := &App{
		logger:   logger,
		metrics:  cfg.Metrics,
		now:      now,
		intn:     rand.IntN,
		compress: imaging.Compress,
		queue:    cfg.Queue,
	}
	if cfg.Rand != nil {
		a.intn = cfg.Rand.IntN
	}

	repo := cfg.Repository
	if repo == nil {
		var err error
		repo, err = a.openRepository(cfg)
		if err != nil {
			return nil, err
		}
	}
	a.store = store.New(repo, store.Options{
		MaxUserChannels: cfg.MaxUserChannels,
		Logger:          logger,
		Metrics:         cfg.Metrics,
		Now:             now,
	})
	a.passwords = store.NewPasswordStore(repo, logger)
	a.chat = store.NewChatLog(repo, cfg.ChatMaxPerChannel, logger)

	var revoker session.Revoker = session.NewMemoryRevoker()
	if cfg.Redis != nil {
		revoker = session.NewRedisRevoker(cfg.Redis, "quotecards:session:revoked")
	}
	sessions, err := session.NewManager(cfg.JWTSecret, revoker, session.Options{TTL: cfg.SessionTTL})
	if err != nil {
		return nil, fmt.Errorf("init sessions: %w", err)
	}
	a.sessions = sessions

	cfg.ColdStart.Logger = logger
	cfg.ColdStart.Metrics = cfg.Metrics
	a.generator = cfg.Generator
	if a.generator == nil {
		a.generator, err = coldstart.New(cfg.ColdStart)
		if err != nil {
			return nil, fmt.Errorf("init cold start: %w", err)
		}
	}

	a.serendipity = cfg.Serendipity
	if a.serendipity == nil {
		a.serendipity, err = newSerendipity(cfg, logger, now)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Objects != nil {
		a.media = storage.NewMediaStore(cfg.Objects, 0)
	}
	return a, nil
}

func (a *App) openRepository(cfg Config) (store.Repository, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreBackend)) {
	case "", "memory":
		a.logger.Warn("using in-memory store, data is lost on restart")
		return store.NewMemoryRepository(cfg.StoreMaxBytes), nil
	case "sqlite":
		repo, err := store.NewSQLiteRepository(cfg.SQLitePath, cfg.StoreMaxBytes)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		a.closers = append(a.closers, repo)
		return repo, nil
	case "redis":
		if cfg.Redis == nil {
			return nil, errors.New("redis store backend requires a redis client")
		}
		return store.NewRedisRepository(cfg.Redis, "quotecards", cfg.StoreMaxBytes), nil
	case "postgres":
		repo, err := store.NewGormRepository(cfg.DatabaseURL, cfg.StoreMaxBytes, a.logger)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		a.closers = append(a.closers, repo)
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func newSerendipity(cfg Config, logger *slog.Logger, now func() time.Time) (*serendipity.Service, error) {
	text, illustrator, err := coldstart.Surfaces(cfg.ColdStart)
	if err != nil {
		return nil, fmt.Errorf("init serendipity surfaces: %w", err)
	}
	opts := serendipity.Options{Text: text, Logger: logger, Now: now}
	if illustrator != nil {
		opts.Illustrator = illustrator
	}
	if strings.TrimSpace(cfg.TextAPIBaseURL) != "" {
		opts.TextService, err = ai.NewTextServiceClient(cfg.TextAPIBaseURL, cfg.TextAPIKey)
		if err != nil {
			return nil, fmt.Errorf("init text service: %w", err)
		}
	} else {
		logger.Info("text service not configured, twists use canned text")
	}
	return serendipity.NewService(opts), nil
}

// Store exposes the document store for operator tooling.
func (a *App) Store() *store.Store {
	return a.store
}

// GeneratorMode reports which cold start generator is active.
func (a *App) GeneratorMode() string {
	return a.generator.Mode()
}

// QueueEnabled reports whether asynchronous cold starts are available.
func (a *App) QueueEnabled() bool {
	return a.queue != nil
}

// Close waits for background generation to finish and releases the store backend.
func (a *App) Close() error {
	a.background.Wait()
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// goBackground runs fn detached from the request that triggered it, bounded by timeout.
func (a *App) goBackground(ctx context.Context, timeout time.Duration, fn func(context.Context)) {
	a.background.Add(1)
	logger := util.LoggerFromContext(ctx)
	go func() {
		defer a.background.Done()
		bg, cancel := context.WithTimeout(util.ContextWithLogger(context.Background(), logger), timeout)
		defer cancel()
		fn(bg)
	}()
}
