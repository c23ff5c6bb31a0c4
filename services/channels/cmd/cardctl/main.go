// Package main implements cardctl, an operator CLI for the persisted card document.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quotecards/internal/util"
	"quotecards/services/channels/internal/app"
	"quotecards/services/channels/internal/config"
)

var (
	// configPath overrides CONFIG_PATH and the default service config.
	configPath string
	logLevel   string
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "cardctl",
	Short: "Operate on the quote card document store",
	Long: `cardctl reads and repairs the persisted card document directly through the
configured store backend. It uses the same config file as the channels service.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (defaults to CONFIG_PATH or services/channels/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
}

// openApp builds the application on the configured backend. The caller must Close it.
func openApp() (*app.App, config.FileConfig, error) {
	path := configPath
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, cfg, err
	}
	logger := util.InitLogger("cardctl", logLevel)

	mockDelay, err := config.ParseDuration(cfg.MockDelay)
	if err != nil {
		return nil, cfg, fmt.Errorf("parse mock delay: %w", err)
	}
	var rdb redis.UniversalClient
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
	}
	a, err := app.New(app.Config{
		StoreBackend:      cfg.StoreBackend,
		SQLitePath:        cfg.SQLitePath,
		DatabaseURL:       cfg.DatabaseURL,
		StoreMaxBytes:     cfg.StoreMaxBytes,
		MaxUserChannels:   cfg.MaxUserChannels,
		ChatMaxPerChannel: cfg.ChatMaxPerChannel,
		Redis:             rdb,
		JWTSecret:         cfg.JWTSecret,
		ColdStart:         coldStartConfig(cfg, mockDelay),
		TextAPIBaseURL:    cfg.TextAPIBaseURL,
		TextAPIKey:        cfg.TextAPIKey,
		Logger:            logger,
	})
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, cfg, err
	}
	slog.Debug("store opened", "backend", cfg.StoreBackend)
	return a, cfg, nil
}
