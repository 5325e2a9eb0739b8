// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// DatabaseURL enables the Postgres read store when set; otherwise the
	// service runs on the in-memory store. RedisURL layers a cache on top.
	DatabaseURL string
	RedisURL    string

	// OwnerAddress is the operator account allowed to resolve and cancel
	// any wager.
	OwnerAddress string

	OracleURL           string
	OracleWebhookSecret string

	CharityRegistryPath string

	HMACMaxSkew       time.Duration
	IdempotencyWindow time.Duration
	SyncInterval      time.Duration

	MaxStake        int64
	MaxOpenExposure int64
	MaxParticipants int
}

func Load() Config {
	return Config{
		Port:                envOr("PORT", "8084"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		OwnerAddress:        envOr("OWNER_ADDRESS", "0x0000000000000000000000000000000000000001"),
		OracleURL:           os.Getenv("ORACLE_URL"),
		OracleWebhookSecret: os.Getenv("ORACLE_WEBHOOK_SECRET"),
		CharityRegistryPath: os.Getenv("CHARITY_REGISTRY_PATH"),
		HMACMaxSkew:         envOrDuration("HMAC_MAX_SKEW", 5*time.Minute),
		IdempotencyWindow:   envOrDuration("IDEMPOTENCY_WINDOW", 24*time.Hour),
		SyncInterval:        envOrDuration("SYNC_INTERVAL", 30*time.Second),
		MaxStake:            envOrInt64("MAX_STAKE", 1_000_000),
		MaxOpenExposure:     envOrInt64("MAX_OPEN_EXPOSURE", 5_000_000),
		MaxParticipants:     int(envOrInt64("MAX_PARTICIPANTS", 16)),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
