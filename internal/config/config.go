// Package config loads process configuration from the environment.
//
// Every recognized key is read once at startup and handed down explicitly
// through constructor arguments; there is no global config singleton. This
// mirrors the getEnv/getEnvInt pattern this codebase has always used in its
// composition root, just collected into one typed struct instead of scattered
// local variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-derived setting the server needs.
type Config struct {
	APIPort string

	LogLevel  string
	LogPretty bool

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	CacheEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string

	JWTSecret                string
	JWTExpiration             time.Duration
	JWTRotationGracePeriod    time.Duration
	LockoutMaxAttempts        int
	LockoutDurationMinutes    int
	LockoutProgressiveFactor  int
	CORSAllowedOrigins        []string
	RateLimitLoginCapacity    int
	RateLimitLoginPeriod      time.Duration
	RateLimitRegisterCapacity int
	RateLimitRegisterPeriod   time.Duration

	AuditQueueSize int
	AuditWorkers   int
}

// Load reads the environment and returns a populated Config.
func Load() Config {
	return Config{
		APIPort: getEnv("API_PORT", "8000"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnv("LOG_PRETTY", "false") == "true",

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "authcore"),
		DBPassword: getEnv("DB_PASSWORD", "authcore"),
		DBName:     getEnv("DB_NAME", "authcore"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),

		CacheEnabled:  getEnv("CACHE_ENABLED", "false") == "true",
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		JWTSecret:                getEnv("JWT_SECRET", ""),
		JWTExpiration:            time.Duration(getEnvInt("JWT_EXPIRATION_MS", 3600000)) * time.Millisecond,
		JWTRotationGracePeriod:   time.Duration(getEnvInt("JWT_ROTATION_GRACE_PERIOD_HOURS", 24)) * time.Hour,
		LockoutMaxAttempts:       getEnvInt("SECURITY_LOCKOUT_MAX_ATTEMPTS", 5),
		LockoutDurationMinutes:   getEnvInt("SECURITY_LOCKOUT_DURATION_MINUTES", 15),
		LockoutProgressiveFactor: getEnvInt("SECURITY_LOCKOUT_PROGRESSIVE_MULTIPLIER", 4),
		CORSAllowedOrigins:       splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "")),

		RateLimitLoginCapacity:    getEnvInt("RATE_LIMIT_LOGIN_CAPACITY", 5),
		RateLimitLoginPeriod:      time.Duration(getEnvInt("RATE_LIMIT_LOGIN_PERIOD_MINUTES", 15)) * time.Minute,
		RateLimitRegisterCapacity: getEnvInt("RATE_LIMIT_REGISTER_CAPACITY", 3),
		RateLimitRegisterPeriod:   time.Duration(getEnvInt("RATE_LIMIT_REGISTER_PERIOD_MINUTES", 60)) * time.Minute,

		AuditQueueSize: getEnvInt("AUDIT_QUEUE_SIZE", 1024),
		AuditWorkers:   getEnvInt("AUDIT_WORKERS", 4),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
