package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the service config, relative to the repository root.
const ConfigPath = "services/channels/config.yaml"

// Store backends accepted by storeBackend.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	StoreBackend      string `yaml:"storeBackend"`
	SQLitePath        string `yaml:"sqlitePath"`
	DatabaseURL       string `yaml:"databaseURL"`
	StoreMaxBytes     int64  `yaml:"storeMaxBytes"`
	MaxUserChannels   int    `yaml:"maxUserChannels"`
	ChatMaxPerChannel int    `yaml:"chatMaxPerChannel"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	VertexBaseURL     string  `yaml:"vertexBaseURL"`
	VertexAPIKey      string  `yaml:"vertexAPIKey"`
	TextModel         string  `yaml:"textModel"`
	ImageModel        string  `yaml:"imageModel"`
	TextProvider      string  `yaml:"textProvider"`
	GeminiAPIKey      string  `yaml:"geminiAPIKey"`
	GeminiModel       string  `yaml:"geminiModel"`
	RequestsPerSecond float64 `yaml:"requestsPerSecond"`
	MockDelay         string  `yaml:"mockDelay"`
	CompressMaxWidth  int     `yaml:"compressMaxWidth"`
	CompressQuality   float64 `yaml:"compressQuality"`

	TextAPIBaseURL  string `yaml:"textAPIBaseURL"`
	TextAPIKey      string `yaml:"textAPIKey"`
	ImageAPIBaseURL string `yaml:"imageAPIBaseURL"`
	ImageAPIKey     string `yaml:"imageAPIKey"`

	JWTSecret  string `yaml:"jwtSecret"`
	SessionTTL string `yaml:"sessionTTL"`

	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	GenerationRateLimitPerMinute int    `yaml:"generationRateLimitPerMinute"`
	QueueStream                  string `yaml:"queueStream"`
	QueueConcurrency             int    `yaml:"queueConcurrency"`

	CORSAllowedOrigins []string `yaml:"corsAllowedOrigins"`
	TrustedProxies     []string `yaml:"trustedProxies"`
}

// Load reads config from path (defaults to ConfigPath), applies environment overrides and
// validates the result.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Path returns CONFIG_PATH when set, otherwise ConfigPath.
func Path() string {
	if v := strings.TrimSpace(os.Getenv("CONFIG_PATH")); v != "" {
		return v
	}
	return ConfigPath
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.StoreBackend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.SQLitePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("STORE_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.StoreMaxBytes = n
		}
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("VERTEX_AI_BASE_URL"); v != "" {
		cfg.VertexBaseURL = v
	}
	if v := os.Getenv("VERTEX_AI_API_KEY"); v != "" {
		cfg.VertexAPIKey = v
	}
	if v := os.Getenv("TEXT_PROVIDER"); v != "" {
		cfg.TextProvider = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("TEXT_API_BASE_URL"); v != "" {
		cfg.TextAPIBaseURL = v
	}
	if v := os.Getenv("TEXT_API_KEY"); v != "" {
		cfg.TextAPIKey = v
	}
	if v := os.Getenv("IMAGE_API_BASE_URL"); v != "" {
		cfg.ImageAPIBaseURL = v
	}
	if v := os.Getenv("IMAGE_API_KEY"); v != "" {
		cfg.ImageAPIKey = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("GENERATION_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GenerationRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitCSV(v)
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.StoreBackend == "" {
		cfg.StoreBackend = BackendMemory
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.QueueStream == "" {
		cfg.QueueStream = "quotecards:coldstart"
	}
	if cfg.QueueConcurrency <= 0 {
		cfg.QueueConcurrency = 2
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	switch cfg.StoreBackend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.SQLitePath == "" {
			return errors.New("config: sqlitePath is required for the sqlite store (set in config.yaml or SQLITE_PATH)")
		}
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required for the redis store (set in config.yaml or REDIS_ADDR)")
		}
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required for the postgres store (set in config.yaml or DATABASE_URL)")
		}
	default:
		return fmt.Errorf("config: unknown storeBackend %q (memory, sqlite, redis or postgres)", cfg.StoreBackend)
	}
	if len(strings.TrimSpace(cfg.JWTSecret)) < 16 {
		return errors.New("config: jwtSecret must be at least 16 characters (set in config.yaml or JWT_SECRET)")
	}
	if _, err := ParseDuration(cfg.SessionTTL); err != nil {
		return fmt.Errorf("config: sessionTTL: %w", err)
	}
	if _, err := ParseDuration(cfg.MockDelay); err != nil {
		return fmt.Errorf("config: mockDelay: %w", err)
	}
	if cfg.CompressQuality < 0 || cfg.CompressQuality > 1 {
		return errors.New("config: compressQuality must be between 0 and 1")
	}
	if cfg.CompressMaxWidth < 0 {
		return errors.New("config: compressMaxWidth must not be negative")
	}
	if p := strings.ToLower(strings.TrimSpace(cfg.TextProvider)); p != "" && p != "vertex" && p != "gemini" {
		return fmt.Errorf("config: unknown textProvider %q (vertex or gemini)", cfg.TextProvider)
	}
	if strings.EqualFold(strings.TrimSpace(cfg.TextProvider), "gemini") && cfg.GeminiAPIKey == "" {
		return errors.New("config: geminiAPIKey is required when textProvider is gemini (set in config.yaml or GEMINI_API_KEY)")
	}
	if cfg.MinioEndpoint != "" {
		if cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "" {
			return errors.New("config: minioAccessKey, minioSecretKey and minioBucket are required when minioEndpoint is set")
		}
	}
	return nil
}

// ParseDuration parses an optional Go duration string; empty means zero.
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", value)
	}
	return d, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
