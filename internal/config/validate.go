package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// minJWTSecretLen matches auth.MinSecretLen.
const minJWTSecretLen = 16

func (c *Config) validate() error {
	checks := []func() error{
		c.validateLogging,
		c.validateBackend,
		c.validateNetwork,
		c.validateCORS,
		c.validateAuth,
		c.validateLimits,
		c.validateAnomaly,
		c.validateSMTP,
	}

	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}

	return nil
}

func (c *Config) validateLogging() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'text', got %q", c.LogFormat)
	}

	return nil
}

func (c *Config) validateBackend() error {
	switch c.Backend {
	case BackendPostgres:
		return c.validateDatabase()
	case BackendMongo:
		return c.validateMongo()
	case BackendMemory:
		return nil
	default:
		return fmt.Errorf("STORE_BACKEND must be 'postgres', 'mongo' or 'memory', got %q", c.Backend)
	}
}

func (c *Config) validateDatabase() error {
	if c.DatabaseURL.Value() == "" {
		return fmt.Errorf("DATABASE_URL is required for the postgres backend")
	}

	dbURL, err := url.Parse(c.DatabaseURL.Value())
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}

	if dbURL.Scheme != "postgres" && dbURL.Scheme != "postgresql" {
		return fmt.Errorf("DATABASE_URL scheme must be postgres:// or postgresql://")
	}

	if dbURL.Hostname() == "" {
		return fmt.Errorf("DATABASE_URL must include a host")
	}

	if !isLoopback(dbURL.Hostname()) && dbURL.Query().Get("sslmode") == "disable" {
		return fmt.Errorf("DATABASE_URL sslmode=disable is not allowed for non-local host %q", dbURL.Hostname())
	}

	if c.DBMaxConns < 2 || c.DBMaxConns > 200 {
		return fmt.Errorf("DB_MAX_CONNS must be between 2 and 200")
	}

	return nil
}

func (c *Config) validateMongo() error {
	if c.MongoURI.Value() == "" {
		return fmt.Errorf("MONGO_URI is required for the mongo backend")
	}

	u, err := url.Parse(c.MongoURI.Value())
	if err != nil {
		return fmt.Errorf("MONGO_URI is not a valid URL: %w", err)
	}

	if u.Scheme != "mongodb" && u.Scheme != "mongodb+srv" {
		return fmt.Errorf("MONGO_URI scheme must be mongodb:// or mongodb+srv://")
	}

	if strings.TrimSpace(c.MongoDatabase) == "" {
		return fmt.Errorf("MONGO_DATABASE must not be empty")
	}

	return nil
}

func (c *Config) validateNetwork() error {
	port, err := strconv.Atoi(c.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid integer: %w", err)
	}

	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}

	if c.ListenHost != "localhost" && net.ParseIP(c.ListenHost) == nil {
		return fmt.Errorf("LISTEN_HOST must be an IP address or localhost, got %q", c.ListenHost)
	}

	if c.RedisURL.Value() != "" {
		u, err := url.Parse(c.RedisURL.Value())
		if err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
			return fmt.Errorf("REDIS_URL must be a redis:// or rediss:// URL")
		}
	}

	return nil
}

func (c *Config) validateCORS() error {
	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("CORS_ORIGINS must list at least one origin")
	}

	for _, origin := range c.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must not contain wildcard '*'")
		}
		if strings.ContainsAny(origin, "*?[]") {
			return fmt.Errorf("CORS_ORIGINS must not contain glob characters (*?[]), got %q", origin)
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q (must have scheme and host)", origin)
		}
	}

	return nil
}

func (c *Config) validateAuth() error {
	if len(c.JWTSecret.Value()) < minJWTSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLen)
	}

	if c.JWTTTL < time.Minute || c.JWTTTL > 7*24*time.Hour {
		return fmt.Errorf("JWT_TTL must be between 1m and 168h")
	}

	if token := c.AdminToken.Value(); token != "" && len(token) < minJWTSecretLen {
		return fmt.Errorf("ADMIN_TOKEN must be at least %d characters when set", minJWTSecretLen)
	}

	return nil
}

func (c *Config) validateLimits() error {
	if c.MaxBodyBytes < 1024 {
		return fmt.Errorf("MAX_BODY_BYTES must be at least 1024")
	}

	if c.IPRate < 1 || c.IPBurst < c.IPRate {
		return fmt.Errorf("IP_RATE_LIMIT must be positive and IP_RATE_BURST at least IP_RATE_LIMIT")
	}

	if c.TenantRateRequests < 1 || c.TenantRateWindow < time.Second {
		return fmt.Errorf("TENANT_RATE_LIMIT must be positive and TENANT_RATE_WINDOW at least 1s")
	}

	if c.PageDefaultLimit < 1 || c.PageMaxLimit < c.PageDefaultLimit {
		return fmt.Errorf("PAGE_DEFAULT_LIMIT must be positive and not exceed PAGE_MAX_LIMIT")
	}

	return nil
}

func (c *Config) validateAnomaly() error {
	if c.AnomalyThreshold < 1 {
		return fmt.Errorf("ANOMALY_THRESHOLD must be positive")
	}

	if c.AnomalyWindow < time.Second || c.AnomalyWindow > time.Hour {
		return fmt.Errorf("ANOMALY_WINDOW must be between 1s and 1h")
	}

	if c.AnomalyQueueSize < 1 {
		return fmt.Errorf("ANOMALY_QUEUE_SIZE must be positive")
	}

	return nil
}

func (c *Config) validateSMTP() error {
	if !c.SMTPEnabled() {
		return nil
	}

	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		return fmt.Errorf("SMTP_PORT must be between 1 and 65535")
	}

	if c.AlertFrom == "" {
		return fmt.Errorf("ALERT_EMAIL or ALERT_FROM is required when SMTP_HOST is set")
	}

	if c.SMTPUsername != "" && c.SMTPPassword.Value() == "" {
		return fmt.Errorf("ALERT_EMAIL_PASS is required when ALERT_EMAIL is set")
	}

	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}

	ip := net.ParseIP(host)

	return ip != nil && ip.IsLoopback()
}
