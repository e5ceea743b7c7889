// Package config loads the settings of the soundcharts command from a YAML
// file and SOUNDCHARTS_* environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Sternrassler/soundcharts-client/pkg/client"
	"github.com/Sternrassler/soundcharts-client/pkg/logging"
	"github.com/Sternrassler/soundcharts-client/pkg/quota"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. SOUNDCHARTS_APP_ID.
const EnvPrefix = "SOUNDCHARTS"

// Config holds application configuration
type Config struct {
	// API credentials (required)
	AppID  string
	APIKey string

	// APIEndpoint is the API base URL.
	// Default: https://customer.api.soundcharts.com
	APIEndpoint string

	// Language is sent as Accept-Language when set.
	Language string

	// Timeout per request. Default: 5s
	Timeout time.Duration

	// RateLimit in requests per second, 0 disables pacing.
	RateLimit float64
	Burst     int

	// MaxRetries for server, rate limit and network failures. Default: 0
	MaxRetries int

	// LogResponses logs decoded response bodies at debug level.
	LogResponses bool

	// RedisURL enables the shared Redis quota store, e.g. redis://localhost:6379/0
	RedisURL string

	LogLevel  string
	LogPretty bool

	// MetricsAddr serves /metrics when set, e.g. :9090
	MetricsAddr string
}

// Load reads configuration from file and environment. An explicit configFile
// must exist; otherwise config.yaml is looked up in the config directory and
// the working directory and may be absent.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
		v.AddConfigPath(".")
	}

	v.SetDefault("api_endpoint", client.DefaultBaseURL)
	v.SetDefault("timeout", "5s")
	v.SetDefault("rate_limit", 0)
	v.SetDefault("burst", 1)
	v.SetDefault("max_retries", 0)
	v.SetDefault("log_level", string(logging.LevelInfo))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	cfg := &Config{
		AppID:        v.GetString("app_id"),
		APIKey:       v.GetString("api_key"),
		APIEndpoint:  v.GetString("api_endpoint"),
		Language:     v.GetString("language"),
		Timeout:      v.GetDuration("timeout"),
		RateLimit:    v.GetFloat64("rate_limit"),
		Burst:        v.GetInt("burst"),
		MaxRetries:   v.GetInt("max_retries"),
		LogResponses: v.GetBool("log_responses"),
		RedisURL:     v.GetString("redis_url"),
		LogLevel:     v.GetString("log_level"),
		LogPretty:    v.GetBool("log_pretty"),
		MetricsAddr:  v.GetString("metrics_addr"),
	}

	return cfg, nil
}

// Validate checks the values the client cannot default.
func (c *Config) Validate() error {
	if c.AppID == "" {
		return fmt.Errorf("app_id is required (set %s_APP_ID)", EnvPrefix)
	}
	if c.APIKey == "" {
		return fmt.Errorf("api_key is required (set %s_API_KEY)", EnvPrefix)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0 (got %s)", c.Timeout)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be >= 0 (got %v)", c.RateLimit)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0 (got %d)", c.MaxRetries)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Logging returns the logger configuration.
func (c *Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	if level, err := logging.ParseLevel(c.LogLevel); err == nil {
		cfg.Level = level
	}
	cfg.Pretty = c.LogPretty
	return cfg
}

// ClientConfig maps the settings onto a client configuration. store may be nil.
func (c *Config) ClientConfig(store quota.Store, logger *zerolog.Logger) client.Config {
	cfg := client.DefaultConfig(c.AppID, c.APIKey)
	if c.APIEndpoint != "" {
		cfg.BaseURL = c.APIEndpoint
	}
	cfg.Language = c.Language
	if c.Timeout > 0 {
		cfg.Timeout = c.Timeout
	}
	cfg.RateLimit = c.RateLimit
	if c.Burst > 0 {
		cfg.Burst = c.Burst
	}
	cfg.MaxRetries = c.MaxRetries
	cfg.LogResponses = c.LogResponses
	cfg.QuotaStore = store
	cfg.Logger = logger
	return cfg
}

// QuotaStore connects the Redis quota store when RedisURL is set. It returns
// a nil store and a no-op close function otherwise.
func (c *Config) QuotaStore(ctx context.Context) (quota.Store, func() error, error) {
	if c.RedisURL == "" {
		return nil, func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis_url: %w", err)
	}

	redisClient := redis.NewClient(opts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		redisClient.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	return quota.NewRedisStore(redisClient), redisClient.Close, nil
}

// Dir returns the configuration directory, ~/.config/soundcharts.
func Dir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".config", "soundcharts")
}
