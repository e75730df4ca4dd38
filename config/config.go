package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL      string
	JWTSecret        string
	JWTExpiration    time.Duration
	ServerPort       string
	InviteExpiration time.Duration

	// LateGrace is how long after the scheduled start a punch-in still
	// counts as present rather than late.
	LateGrace time.Duration

	// Presence protocol tunables, consumed by the client library.
	HeartbeatInterval    time.Duration
	KeepaliveTimeout     time.Duration
	PendingRetryInterval time.Duration
}

func Load() *Config {
	// Optional .env file; missing is fine.
	_ = godotenv.Load()

	return &Config{
		DatabaseURL:          getEnv("DATABASE_URL", "postgresql://postgres@localhost:5432/punchclock"),
		JWTSecret:            getEnv("JWT_SECRET", "your-super-secret-key-change-in-production"),
		JWTExpiration:        24 * time.Hour,
		ServerPort:           getEnv("SERVER_PORT", "8080"),
		InviteExpiration:     7 * 24 * time.Hour, // 7 days
		LateGrace:            getMinutes("LATE_GRACE_MINUTES", 10),
		HeartbeatInterval:    getSeconds("HEARTBEAT_INTERVAL_SECONDS", 60),
		KeepaliveTimeout:     getSeconds("KEEPALIVE_TIMEOUT_SECONDS", 8),
		PendingRetryInterval: getSeconds("PENDING_RETRY_SECONDS", 30),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getSeconds(key string, defaultValue int64) time.Duration {
	return time.Duration(getInt(key, defaultValue)) * time.Second
}

func getMinutes(key string, defaultValue int64) time.Duration {
	return time.Duration(getInt(key, defaultValue)) * time.Minute
}

func getInt(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil && n >= 0 {
			return n
		}
	}
	return defaultValue
}
