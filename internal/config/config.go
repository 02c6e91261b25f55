package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the HashScope server and worker.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Apify    ApifyConfig
	Queue    QueueConfig
}

type ServerConfig struct {
	Port           int
	Env            string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

type AuthConfig struct {
	// JWTSecret is the identity provider's HS256 signing secret, used to
	// verify tokens issued to the dashboard.
	JWTSecret string
}

type ApifyConfig struct {
	BaseURL           string
	ActorID           string
	MaxPostCount      int
	MaxConcurrency    int
	MaxRequestRetries int
	RunTimeout        time.Duration

	// InteractiveRunTimeout caps synchronous scrapes, which hold an HTTP
	// response open and so get less patience than queued jobs.
	InteractiveRunTimeout time.Duration
	PollInterval          time.Duration
	MaxPolls              int
	HTTPTimeout           time.Duration
}

type QueueConfig struct {
	Name         string
	LockDuration time.Duration
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("HASHSCOPE_PORT", 8080),
			Env:            envString("HASHSCOPE_ENV", "development"),
			AllowedOrigins: envList("HASHSCOPE_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
		},
		Apify: ApifyConfig{
			BaseURL:               envString("APIFY_BASE_URL", "https://api.apify.com/v2"),
			ActorID:               os.Getenv("APIFY_ACTOR_ID"),
			MaxPostCount:          envInt("APIFY_MAX_POST_COUNT", 50),
			MaxConcurrency:        envInt("APIFY_MAX_CONCURRENCY", 10),
			MaxRequestRetries:     envInt("APIFY_MAX_REQUEST_RETRIES", 3),
			RunTimeout:            envDurationSecs("APIFY_RUN_TIMEOUT_SECS", 600*time.Second),
			InteractiveRunTimeout: envDurationSecs("APIFY_INTERACTIVE_TIMEOUT_SECS", 300*time.Second),
			PollInterval:          envDuration("APIFY_POLL_INTERVAL", 3*time.Second),
			MaxPolls:              envInt("APIFY_MAX_POLLS", 100),
			HTTPTimeout:           envDuration("APIFY_HTTP_TIMEOUT", 30*time.Second),
		},
		Queue: QueueConfig{
			Name:         envString("QUEUE_NAME", "scrape"),
			LockDuration: envDuration("QUEUE_LOCK_DURATION", 15*time.Minute),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("AUTH_JWT_SECRET is required")
	}

	if c.Apify.ActorID == "" {
		return fmt.Errorf("APIFY_ACTOR_ID is required")
	}
	if !strings.HasPrefix(c.Apify.BaseURL, "http://") && !strings.HasPrefix(c.Apify.BaseURL, "https://") {
		return fmt.Errorf("APIFY_BASE_URL must start with http:// or https://, got %q", c.Apify.BaseURL)
	}

	if c.Apify.MaxPolls <= 0 {
		return fmt.Errorf("APIFY_MAX_POLLS must be positive, got %d", c.Apify.MaxPolls)
	}
	if c.Queue.LockDuration < c.Apify.RunTimeout {
		return fmt.Errorf("QUEUE_LOCK_DURATION (%s) must cover APIFY_RUN_TIMEOUT_SECS (%s)",
			c.Queue.LockDuration, c.Apify.RunTimeout)
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
