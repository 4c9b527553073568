// Package config loads Bookshelf configuration from flags, environment variables and a .env file.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// envPrefix namespaces every environment variable read by the server.
const envPrefix = "BOOKSHELF_"

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Storage StorageConfig
	Server  ServerConfig
	Catalog CatalogConfig
	Search  SearchConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig locates on-disk state. The sqlite database, the upstream
// response cache and the library index all live under DataDir.
type StorageConfig struct {
	DataDir string
}

// DatabasePath is the sqlite file holding books, collections and ordering.
func (s StorageConfig) DatabasePath() string {
	return filepath.Join(s.DataDir, "bookshelf.db")
}

// CachePath is the badger directory for cached upstream responses.
func (s StorageConfig) CachePath() string {
	return filepath.Join(s.DataDir, "cache")
}

// IndexPath is the directory holding the library search index.
func (s StorageConfig) IndexPath() string {
	return filepath.Join(s.DataDir, "index")
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	CORSOrigins  []string
}

// CatalogConfig configures the external book catalog and the fetcher's budget against it.
type CatalogConfig struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration // per upstream request
	MaxResults   int           // result-count parameter sent upstream
	MinUsable    int           // usable results below which the fallback query runs
	RetryBackoff time.Duration // fixed wait before the single transient-failure retry
	RPS          float64
	Burst        int
	DailyLimit   int64         // zero means unlimited
	CacheTTL     time.Duration // zero disables the response cache
}

// SearchConfig holds result presentation defaults.
type SearchConfig struct {
	PageSize        int
	MaxPageSize     int
	MinCompleteness float64
}

// LoadConfig loads configuration from the process arguments.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}

// Load builds a Config with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables (BOOKSHELF_*).
// 3. .env file.
// 4. Default values (lowest priority).
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("bookshelf", flag.ContinueOnError)

	env := fs.String("env", "", "Environment (development, staging, production)")
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error)")
	dataDir := fs.String("data-dir", "", "Directory for database, cache and index")
	port := fs.String("port", "", "HTTP port (default: 8080)")
	readTimeout := fs.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := fs.String("write-timeout", "", "HTTP write timeout (default: 15s)")
	idleTimeout := fs.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	catalogURL := fs.String("catalog-url", "", "Catalog API base URL")
	catalogTimeout := fs.String("catalog-timeout", "", "Upstream request timeout (default: 8s)")
	envFile := fs.String("env-file", ".env", "Path to .env file")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	// godotenv never overrides variables already present in the environment.
	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %q: %w", *envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			DataDir: getConfigValue(*dataDir, "DATA_DIR", "./data"),
		},
		Server: ServerConfig{
			Port:        getConfigValue(*port, "HTTP_PORT", "8080"),
			CORSOrigins: splitList(getConfigValue("", "CORS_ORIGINS", "*")),
		},
		Catalog: CatalogConfig{
			BaseURL:    strings.TrimRight(getConfigValue(*catalogURL, "CATALOG_URL", "https://www.googleapis.com/books/v1"), "/"),
			APIKey:     getConfigValue("", "CATALOG_API_KEY", ""),
			MaxResults: getIntConfigValue("", "CATALOG_MAX_RESULTS", 40),
			MinUsable:  getIntConfigValue("", "CATALOG_MIN_USABLE", 5),
			RPS:        getFloatConfigValue("", "CATALOG_RPS", 2),
			Burst:      getIntConfigValue("", "CATALOG_BURST", 4),
			DailyLimit: int64(getIntConfigValue("", "CATALOG_DAILY_LIMIT", 0)),
		},
		Search: SearchConfig{
			PageSize:        getIntConfigValue("", "SEARCH_PAGE_SIZE", 12),
			MaxPageSize:     getIntConfigValue("", "SEARCH_MAX_PAGE_SIZE", 40),
			MinCompleteness: getFloatConfigValue("", "SEARCH_MIN_COMPLETENESS", 0),
		},
	}

	durations := []struct {
		dst  *time.Duration
		flag string
		key  string
		def  string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "HTTP_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "HTTP_WRITE_TIMEOUT", "15s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "HTTP_IDLE_TIMEOUT", "60s"},
		{&cfg.Catalog.Timeout, *catalogTimeout, "CATALOG_TIMEOUT", "8s"},
		{&cfg.Catalog.RetryBackoff, "", "CATALOG_RETRY_BACKOFF", "300ms"},
		{&cfg.Catalog.CacheTTL, "", "CATALOG_CACHE_TTL", "10m"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flag, d.key, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s%s %q: %w", envPrefix, d.key, raw, err)
		}
		*d.dst = parsed
	}

	dir, err := expandPath(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("invalid data dir: %w", err)
	}
	cfg.Storage.DataDir = dir

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all config values are present and coherent.
func (c *Config) Validate() error {
	switch c.App.Environment {
	case "development", "staging", "production":
	default:
		return fmt.Errorf("invalid environment: %q (must be development, staging, or production)", c.App.Environment)
	}

	switch strings.ToLower(c.Logger.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Storage.DataDir == "" {
		return errors.New("data dir cannot be empty")
	}
	if c.Catalog.BaseURL == "" {
		return errors.New("catalog url cannot be empty")
	}
	if c.Catalog.Timeout <= 0 {
		return errors.New("catalog timeout must be positive")
	}
	if c.Catalog.MaxResults <= 0 || c.Catalog.MaxResults > 40 {
		return fmt.Errorf("catalog max results must be within 1..40, got %d", c.Catalog.MaxResults)
	}
	if c.Catalog.MinUsable < 0 || c.Catalog.MinUsable > c.Catalog.MaxResults {
		return fmt.Errorf("catalog min usable must be within 0..%d, got %d", c.Catalog.MaxResults, c.Catalog.MinUsable)
	}
	if c.Catalog.RetryBackoff < 0 || c.Catalog.CacheTTL < 0 {
		return errors.New("catalog durations cannot be negative")
	}
	if c.Catalog.RPS <= 0 || c.Catalog.Burst <= 0 || c.Catalog.DailyLimit < 0 {
		return errors.New("catalog rate limit must be positive")
	}
	if c.Search.PageSize <= 0 || c.Search.MaxPageSize <= 0 {
		return errors.New("search page sizes must be positive")
	}
	if c.Search.PageSize > c.Search.MaxPageSize {
		return fmt.Errorf("search page size %d exceeds max page size %d", c.Search.PageSize, c.Search.MaxPageSize)
	}
	if c.Search.MinCompleteness < 0 || c.Search.MinCompleteness > 1 {
		return fmt.Errorf("search min completeness must be within 0..1, got %v", c.Search.MinCompleteness)
	}

	return nil
}

// expandPath expands a leading ~ and makes the path absolute.
func expandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	return filepath.Clean(abs), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, key, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envPrefix + key); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
// Unparseable values fall back to the default.
func getIntConfigValue(flagValue, key string, defaultValue int) int {
	raw := getConfigValue(flagValue, key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return v
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, key string, defaultValue float64) float64 {
	raw := getConfigValue(flagValue, key, "")
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
