// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BaseURL      string // e.g. "https://agentex.example.com" for result and status URLs.

	// Build store settings.
	StoreBackend string // "memory", "sqlite", or "postgres".
	SQLitePath   string
	DatabaseURL  string // Postgres DSN when StoreBackend is "postgres".

	// Build lifecycle settings.
	Retention         time.Duration // idle builds older than this are swept
	SweepInterval     time.Duration
	GenerateEstimate  int // seconds, reported on enqueue
	GenerateTimeout   time.Duration
	MaxConcurrentJobs int
	ToolsDir          string // overrides the embedded tool catalog when set

	// Redaction settings.
	RedactKeySubstrings []string

	// JWT settings.
	JWTPrivateKeyPath string // Path to Ed25519 private key PEM file.
	JWTPublicKeyPath  string // Path to Ed25519 public key PEM file.
	JWTExpiration     time.Duration

	// Rate limit settings.
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string

	// Operational settings.
	LogLevel            string
	MaxRequestBodyBytes int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("AGENTEX_PORT", 8080),
		ReadTimeout:         envDuration("AGENTEX_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("AGENTEX_WRITE_TIMEOUT", 30*time.Second),
		BaseURL:             envStr("AGENTEX_BASE_URL", "http://localhost:8080"),
		StoreBackend:        envStr("AGENTEX_STORE", "memory"),
		SQLitePath:          envStr("AGENTEX_SQLITE_PATH", "agentex.db"),
		DatabaseURL:         envStr("DATABASE_URL", ""),
		Retention:           envDuration("AGENTEX_BUILD_RETENTION", 24*time.Hour),
		SweepInterval:       envDuration("AGENTEX_SWEEP_INTERVAL", time.Hour),
		GenerateEstimate:    envInt("AGENTEX_GENERATE_ESTIMATE_SECONDS", 45),
		GenerateTimeout:     envDuration("AGENTEX_GENERATE_TIMEOUT", 5*time.Minute),
		MaxConcurrentJobs:   envInt("AGENTEX_MAX_CONCURRENT_JOBS", 16),
		ToolsDir:            envStr("AGENTEX_TOOLS_DIR", ""),
		RedactKeySubstrings: envList("AGENTEX_REDACT_KEYS", nil),
		JWTPrivateKeyPath:   envStr("AGENTEX_JWT_PRIVATE_KEY", ""),
		JWTPublicKeyPath:    envStr("AGENTEX_JWT_PUBLIC_KEY", ""),
		JWTExpiration:       envDuration("AGENTEX_JWT_EXPIRATION", 24*time.Hour),
		RateLimitEnabled:    envBool("AGENTEX_RATE_LIMIT_ENABLED", true),
		RateLimitRPS:        envFloat("AGENTEX_RATE_LIMIT_RPS", 5),
		RateLimitBurst:      envInt("AGENTEX_RATE_LIMIT_BURST", 10),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "agentex"),
		LogLevel:            envStr("AGENTEX_LOG_LEVEL", "info"),
		MaxRequestBodyBytes: int64(envInt("AGENTEX_MAX_REQUEST_BODY_BYTES", 1*1024*1024)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c Config) Validate() error {
	switch c.StoreBackend {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: AGENTEX_STORE must be memory, sqlite, or postgres, got %q", c.StoreBackend)
	}
	if c.StoreBackend == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("config: DATABASE_URL is required when AGENTEX_STORE=postgres")
	}
	if c.StoreBackend == "sqlite" && c.SQLitePath == "" {
		return fmt.Errorf("config: AGENTEX_SQLITE_PATH is required when AGENTEX_STORE=sqlite")
	}
	if c.Retention <= 0 {
		return fmt.Errorf("config: AGENTEX_BUILD_RETENTION must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("config: AGENTEX_SWEEP_INTERVAL must be positive")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: AGENTEX_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.RateLimitEnabled && c.RateLimitRPS <= 0 {
		return fmt.Errorf("config: AGENTEX_RATE_LIMIT_RPS must be positive when rate limiting is enabled")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: AGENTEX_LOG_LEVEL must be debug, info, warn, or error, got %q", c.LogLevel)
	}
	return nil
}

// SlogLevel maps the configured log level onto slog's scale.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

func envList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
