// Package config provides environment-driven configuration for the audit log service.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Secret wraps a sensitive string to prevent accidental logging or marshalling.
type Secret string

// String implements fmt.Stringer, returning a redacted placeholder.
func (s Secret) String() string { return "[REDACTED]" }

// GoString implements fmt.GoStringer, returning a redacted placeholder.
func (s Secret) GoString() string { return "[REDACTED]" }

// MarshalText implements encoding.TextMarshaler, returning a redacted placeholder.
func (s Secret) MarshalText() ([]byte, error) { return []byte("[REDACTED]"), nil }

// Value returns the underlying secret string.
func (s Secret) Value() string { return string(s) }

// Store backends.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// Config holds all application configuration values.
type Config struct {
	Env        string
	Port       string
	ListenHost string
	LogLevel   string
	LogFormat  string

	Backend       string
	DatabaseURL   Secret
	DBMaxConns    int
	MongoURI      Secret
	MongoDatabase string
	RedisURL      Secret

	JWTSecret  Secret
	JWTTTL     time.Duration
	AdminToken Secret

	CORSOrigins  []string
	MaxBodyBytes int64
	IPRate       int
	IPBurst      int

	TenantRateRequests int
	TenantRateWindow   time.Duration

	PageDefaultLimit int
	PageMaxLimit     int

	AnomalyThreshold int
	AnomalyWindow    time.Duration
	AnomalyQueueSize int

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword Secret
	AlertFrom    string

	EnableDocs bool
}

// source resolves a setting from the environment first, then the optional
// config file.
type source struct {
	k    *koanf.Koanf
	errs []error
}

// Load reads configuration. A .env file in the working directory (or at
// ENV_FILE) is loaded first without overriding the environment; CONFIG_FILE
// names an optional YAML file consulted for keys the environment leaves unset.
func Load() (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	src := &source{k: koanf.New(".")}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := src.k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		Env:        strings.ToLower(src.str("APP_ENV", "app_env", "production")),
		Port:       src.str("PORT", "port", "3000"),
		ListenHost: src.str("LISTEN_HOST", "listen_host", "127.0.0.1"),
		LogLevel:   src.str("LOG_LEVEL", "log_level", "info"),
		LogFormat:  src.str("LOG_FORMAT", "log_format", "json"),

		DatabaseURL:   Secret(src.str("DATABASE_URL", "database_url", "")),
		DBMaxConns:    src.integer("DB_MAX_CONNS", "db_max_conns", 21),
		MongoURI:      Secret(src.str("MONGO_URI", "mongo_uri", "")),
		MongoDatabase: src.str("MONGO_DATABASE", "mongo_database", "auditlog"),
		RedisURL:      Secret(src.str("REDIS_URL", "redis_url", "")),

		JWTSecret:  Secret(src.str("JWT_SECRET", "jwt_secret", "")),
		JWTTTL:     src.duration("JWT_TTL", "jwt_ttl", 5*time.Hour),
		AdminToken: Secret(src.str("ADMIN_TOKEN", "admin_token", "")),

		MaxBodyBytes: int64(src.integer("MAX_BODY_BYTES", "max_body_bytes", 1<<20)),
		IPRate:       src.integer("IP_RATE_LIMIT", "ip_rate_limit", 100),
		IPBurst:      src.integer("IP_RATE_BURST", "ip_rate_burst", 200),

		TenantRateRequests: src.integer("TENANT_RATE_LIMIT", "tenant_rate_limit", 100),
		TenantRateWindow:   src.duration("TENANT_RATE_WINDOW", "tenant_rate_window", 15*time.Minute),

		PageDefaultLimit: src.integer("PAGE_DEFAULT_LIMIT", "page_default_limit", 10),
		PageMaxLimit:     src.integer("PAGE_MAX_LIMIT", "page_max_limit", 100),

		AnomalyThreshold: src.integer("ANOMALY_THRESHOLD", "anomaly_threshold", 5),
		AnomalyWindow:    src.duration("ANOMALY_WINDOW", "anomaly_window", 60*time.Second),
		AnomalyQueueSize: src.integer("ANOMALY_QUEUE_SIZE", "anomaly_queue_size", 1000),

		SMTPHost:     src.str("SMTP_HOST", "smtp_host", ""),
		SMTPPort:     src.integer("SMTP_PORT", "smtp_port", 587),
		SMTPUsername: src.str("ALERT_EMAIL", "alert_email", ""),
		SMTPPassword: Secret(src.str("ALERT_EMAIL_PASS", "alert_email_pass", "")),

		EnableDocs: src.boolean("ENABLE_DOCS", "enable_docs", false),
	}

	cfg.AlertFrom = src.str("ALERT_FROM", "alert_from", cfg.SMTPUsername)
	cfg.Backend = strings.ToLower(src.str("STORE_BACKEND", "store_backend", cfg.detectBackend()))
	cfg.CORSOrigins = splitList(src.str("CORS_ORIGINS", "cors_origins", "http://localhost:3000"))

	if len(src.errs) > 0 {
		return nil, fmt.Errorf("config parsing: %w", errors.Join(src.errs...))
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Addr returns the listen address in host:port format.
func (c *Config) Addr() string {
	return c.ListenHost + ":" + c.Port
}

// IsDevelopment reports whether internal error details may be returned to clients.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// SMTPEnabled reports whether alerts are mailed rather than logged.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}

func (c *Config) detectBackend() string {
	switch {
	case c.DatabaseURL != "":
		return BackendPostgres
	case c.MongoURI != "":
		return BackendMongo
	default:
		return BackendMemory
	}
}

func loadDotEnv() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

func (s *source) str(envKey, fileKey, fallback string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}

	if v := s.k.String(fileKey); v != "" {
		return v
	}

	return fallback
}

func (s *source) integer(envKey, fileKey string, fallback int) int {
	raw := s.str(envKey, fileKey, "")
	if raw == "" {
		return fallback
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s must be an integer, got %q", envKey, raw))
		return fallback
	}

	return n
}

func (s *source) duration(envKey, fileKey string, fallback time.Duration) time.Duration {
	raw := s.str(envKey, fileKey, "")
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s must be a duration such as 60s, got %q", envKey, raw))
		return fallback
	}

	return d
}

func (s *source) boolean(envKey, fileKey string, fallback bool) bool {
	raw := s.str(envKey, fileKey, "")
	if raw == "" {
		return fallback
	}

	b, err := strconv.ParseBool(raw)
	if err != nil {
		s.errs = append(s.errs, fmt.Errorf("%s must be true or false, got %q", envKey, raw))
		return fallback
	}

	return b
}

func splitList(raw string) []string {
	var out []string

	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}
