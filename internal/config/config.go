package config

import (
	"os"
	"strconv"

	"go.uber.org/zap"
)

const (
	defaultAddr             = "127.0.0.1:5000"
	defaultChangeLogEntries = 50
	defaultArtCacheEntries  = 20
)

// AppConfig holds application configuration
type AppConfig struct {
	logger           *zap.Logger
	addr             string
	changeLogEntries int
	artCacheEntries  int
}

// NewAppConfig creates a new application configuration instance
func NewAppConfig(logger *zap.Logger) *AppConfig {
	// Read from environment variables or use defaults
	addr := os.Getenv("NOWDECK_ADDR")
	if addr == "" {
		addr = defaultAddr
	}

	changeLogEntries := intFromEnv("NOWDECK_LOG_CAPACITY", defaultChangeLogEntries)
	artCacheEntries := intFromEnv("NOWDECK_ART_CACHE", defaultArtCacheEntries)

	logger.Info("Configuration loaded",
		zap.String("addr", addr),
		zap.Int("changeLogEntries", changeLogEntries),
		zap.Int("artCacheEntries", artCacheEntries))

	return &AppConfig{
		logger:           logger,
		addr:             addr,
		changeLogEntries: changeLogEntries,
		artCacheEntries:  artCacheEntries,
	}
}

func intFromEnv(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

// Addr returns the listen address for the HTTP server
func (c *AppConfig) Addr() string {
	return c.addr
}

// ChangeLogCapacity returns how many change events are retained
func (c *AppConfig) ChangeLogCapacity() int {
	return c.changeLogEntries
}

// ArtworkCacheSize returns how many artwork entries are cached
func (c *AppConfig) ArtworkCacheSize() int {
	return c.artCacheEntries
}
