// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// ServerHost is the host address the administrative HTTP API binds to.
	ServerHost string
	// ServerPort is the port of the administrative HTTP API.
	ServerPort int

	// LDAPHost is the host address the LDAP server binds to.
	LDAPHost string
	// LDAPPort is the port of the LDAP server.
	LDAPPort int
	// LDAPBaseDN is the root of the directory tree, e.g. "dc=example,dc=com".
	LDAPBaseDN string
	// LDAPAllowAnonymousRead allows searches on connections that never bound.
	LDAPAllowAnonymousRead bool

	// AdminUserID is the identifier of the bootstrap administrator.
	AdminUserID string
	// AdminEmail is the email of the bootstrap administrator.
	AdminEmail string
	// AdminPassword is the password of the bootstrap administrator.
	AdminPassword string

	// DBDriver is the database driver to use ("sqlite", "postgres" or "mysql").
	DBDriver string
	// DBConnectionString is the connection string for the database.
	DBConnectionString string
	// DBMaxOpenConnections is the capacity of the connection pool.
	DBMaxOpenConnections int
	// DBMaxIdleConnections is the maximum number of idle connections in the pool.
	DBMaxIdleConnections int
	// DBConnMaxLifetime is the maximum amount of time a connection may be reused.
	DBConnMaxLifetime time.Duration

	// LogLevel is the logging level (e.g., "debug", "info", "warn", "error").
	LogLevel string

	// JWTSecret signs access tokens.
	JWTSecret string
	// JWTAccessTokenExpiration is the lifetime of an access token.
	JWTAccessTokenExpiration time.Duration
	// JWTRefreshTokenExpiration is the lifetime of a refresh token.
	JWTRefreshTokenExpiration time.Duration

	// ServerKeyFile is where the server identity key pair is persisted.
	ServerKeyFile string
	// ServerKeyKMSURI optionally seals the server key file with a KMS keeper
	// (e.g. "base64key://...", "hashivault://...").
	ServerKeyKMSURI string

	// OpaqueKSFTime is the argon2id iteration count used to stretch passwords.
	OpaqueKSFTime int
	// OpaqueKSFMemory is the argon2id memory in KiB.
	OpaqueKSFMemory int
	// OpaqueKSFThreads is the argon2id parallelism.
	OpaqueKSFThreads int

	// RedisURL enables the access token denylist when set.
	RedisURL string

	// TokenCleanupSchedule is the cron spec (with seconds) of the expired token cleanup.
	TokenCleanupSchedule string

	// SMTPHost, SMTPPort, SMTPUser and SMTPFrom describe the outbound mail relay.
	SMTPHost string
	SMTPPort int
	SMTPUser string
	SMTPFrom string

	// RateLimitEnabled indicates whether rate limiting for authenticated endpoints is enabled.
	RateLimitEnabled bool
	// RateLimitRequestsPerSec is the number of requests allowed per second for authenticated endpoints.
	RateLimitRequestsPerSec float64
	// RateLimitBurst is the burst size for authenticated endpoints rate limiting.
	RateLimitBurst int

	// RateLimitLoginEnabled indicates whether rate limiting for the login endpoints is enabled.
	RateLimitLoginEnabled bool
	// RateLimitLoginRequestsPerSec is the number of requests allowed per second per IP on login endpoints.
	RateLimitLoginRequestsPerSec float64
	// RateLimitLoginBurst is the burst size for the login endpoints rate limiting.
	RateLimitLoginBurst int

	// CORSEnabled indicates whether CORS is enabled.
	CORSEnabled bool
	// CORSAllowOrigins is a comma-separated list of allowed origins for CORS.
	CORSAllowOrigins string

	// MetricsEnabled indicates whether metrics collection is enabled.
	MetricsEnabled bool
	// MetricsNamespace is the namespace for the application metrics.
	MetricsNamespace string
	// MetricsPort is the port number for the metrics server.
	MetricsPort int
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	// Try to load .env file recursively
	loadDotEnv()

	return &Config{
		// Server configuration
		ServerHost: env.GetString("SERVER_HOST", "0.0.0.0"),
		ServerPort: env.GetInt("SERVER_PORT", 17170),

		// LDAP
		LDAPHost:               env.GetString("LDAP_HOST", "0.0.0.0"),
		LDAPPort:               env.GetInt("LDAP_PORT", 3890),
		LDAPBaseDN:             env.GetString("LDAP_BASE_DN", "dc=example,dc=com"),
		LDAPAllowAnonymousRead: env.GetBool("LDAP_ALLOW_ANONYMOUS_READ", false),

		// Bootstrap administrator
		AdminUserID:   env.GetString("LDAP_USER_DN", "admin"),
		AdminEmail:    env.GetString("LDAP_USER_EMAIL", "admin@example.com"),
		AdminPassword: env.GetString("LDAP_USER_PASS", ""),

		// Database configuration
		DBDriver: env.GetString("DB_DRIVER", "sqlite"),
		DBConnectionString: env.GetString(
			"DB_CONNECTION_STRING",
			"file:users.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate&_time_format=sqlite",
		),
		DBMaxOpenConnections: env.GetInt("DB_MAX_OPEN_CONNECTIONS", 5),
		DBMaxIdleConnections: env.GetInt("DB_MAX_IDLE_CONNECTIONS", 5),
		DBConnMaxLifetime:    env.GetDuration("DB_CONN_MAX_LIFETIME", 5, time.Minute),

		// Logging
		LogLevel: env.GetString("LOG_LEVEL", "info"),

		// Session tokens
		JWTSecret:                 env.GetString("JWT_SECRET", ""),
		JWTAccessTokenExpiration:  env.GetDuration("JWT_ACCESS_TOKEN_EXPIRATION_SECONDS", 86400, time.Second),
		JWTRefreshTokenExpiration: env.GetDuration("JWT_REFRESH_TOKEN_EXPIRATION_DAYS", 30, 24*time.Hour),

		// Server identity key
		ServerKeyFile:   env.GetString("SERVER_KEY_FILE", "server_key"),
		ServerKeyKMSURI: env.GetString("SERVER_KEY_KMS_URI", ""),

		// Password key stretching
		OpaqueKSFTime:    env.GetInt("OPAQUE_KSF_TIME", 1),
		OpaqueKSFMemory:  env.GetInt("OPAQUE_KSF_MEMORY_KIB", 64*1024),
		OpaqueKSFThreads: env.GetInt("OPAQUE_KSF_THREADS", 4),

		// Access token denylist
		RedisURL: env.GetString("REDIS_URL", ""),

		// Scheduler
		TokenCleanupSchedule: env.GetString("TOKEN_CLEANUP_SCHEDULE", "0 0 * * * *"),

		// Outbound mail
		SMTPHost: env.GetString("SMTP_HOST", ""),
		SMTPPort: env.GetInt("SMTP_PORT", 587),
		SMTPUser: env.GetString("SMTP_USER", ""),
		SMTPFrom: env.GetString("SMTP_FROM", "LLDAP Admin <sender@example.com>"),

		// Rate Limiting (authenticated endpoints)
		RateLimitEnabled:        env.GetBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequestsPerSec: env.GetFloat64("RATE_LIMIT_REQUESTS_PER_SEC", 10.0),
		RateLimitBurst:          env.GetInt("RATE_LIMIT_BURST", 20),

		// Rate Limiting for login endpoints (IP-based, unauthenticated)
		RateLimitLoginEnabled:        env.GetBool("RATE_LIMIT_LOGIN_ENABLED", true),
		RateLimitLoginRequestsPerSec: env.GetFloat64("RATE_LIMIT_LOGIN_REQUESTS_PER_SEC", 5.0),
		RateLimitLoginBurst:          env.GetInt("RATE_LIMIT_LOGIN_BURST", 10),

		// CORS
		CORSEnabled:      env.GetBool("CORS_ENABLED", false),
		CORSAllowOrigins: env.GetString("CORS_ALLOW_ORIGINS", ""),

		// Metrics
		MetricsEnabled:   env.GetBool("METRICS_ENABLED", true),
		MetricsNamespace: env.GetString("METRICS_NAMESPACE", "lightldap"),
		MetricsPort:      env.GetInt("METRICS_PORT", 9090),
	}
}

// GetGinMode returns the appropriate Gin mode based on log level.
func (c *Config) GetGinMode() string {
	switch c.LogLevel {
	case "debug":
		return "debug"
	default:
		return "release"
	}
}

// loadDotEnv searches for a .env file recursively from the current directory
// up to the root directory and loads it if found.
func loadDotEnv() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	dir := cwd
	for {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
