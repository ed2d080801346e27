package config

import (
	"os"
	"time"
)

const (
	// Moderator
	RespondTurnThreshold   = 4               // moderator speaks every Nth human turn
	SilenceThreshold       = 5 * time.Second // one silence interval
	SilencePromptThreshold = 2               // consecutive silences before the prompt bank is used
	TickInterval           = time.Second

	// External capabilities
	CapabilityTimeout = 10 * time.Second

	// Rooms
	ConnectTimeout = 30 * time.Second // forming rooms older than this fail
)

// Getenv returns the value of an environment variable or a default.
func Getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// DSN returns the PostgreSQL connection string.
func DSN() string {
	return Getenv("DATABASE_DSN",
		"host=localhost user=user password=password dbname=voicematchdb port=5432 sslmode=disable")
}

// RedisAddr returns the Redis address.
func RedisAddr() string {
	return Getenv("REDIS_ADDR", "localhost:6379")
}

// JWTSecret returns the key used to sign anonymous identity tokens.
func JWTSecret() []byte {
	return []byte(Getenv("JWT_SECRET", "dev-only-insecure-secret"))
}

// ListenAddr returns the HTTP listen address.
func ListenAddr() string {
	return ":" + Getenv("PORT", "8080")
}
