package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                     string
	AllowedOrigin            string
	DatabaseURL              string
	RedisAddr                string
	RedisPassword            string
	RedisDB                  int
	JWTSecret                string
	JWTTTLHours              int
	DashboardCacheTTLSeconds int
	// LegacyCompensation switches bill/purchase creation from one atomic
	// store transaction to the historical sequence of separate writes with
	// compensating deletes.
	LegacyCompensation bool
	// DedupeAlerts suppresses a new alert row when an unresolved alert of the
	// same type already exists for the product.
	DedupeAlerts bool
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("JWT_TTL_HOURS", "168"))
	if err != nil || ttl < 1 {
		ttl = 168
	}
	cacheTTL, err := strconv.Atoi(getEnv("DASHBOARD_CACHE_TTL_SECONDS", "60"))
	if err != nil || cacheTTL < 1 {
		cacheTTL = 60
	}

	return Config{
		Port:                     getEnv("PORT", "8080"),
		AllowedOrigin:            getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:              os.Getenv("DATABASE_URL"),
		RedisAddr:                os.Getenv("REDIS_ADDR"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  redisDB,
		JWTSecret:                strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTTTLHours:              ttl,
		DashboardCacheTTLSeconds: cacheTTL,
		LegacyCompensation:       boolEnv("LEGACY_COMPENSATION"),
		DedupeAlerts:             boolEnv("DEDUPE_ALERTS"),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func boolEnv(key string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), "true")
}
