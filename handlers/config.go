// Package handlers config.go
package handlers

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config carries the environment-driven knobs for the relay.
type Config struct {
	Port             string
	JoinWindow       time.Duration
	JoinMaxPerWindow int
	JoinCooldown     time.Duration
}

// LoadConfig reads the relay configuration from the environment, falling
// back to defaults for anything unset or unparsable.
func LoadConfig() Config {
	return Config{
		Port:             envString("PORT", "8080"),
		JoinWindow:       envMillis("JOIN_WINDOW_MS", 600_000),
		JoinMaxPerWindow: envInt("JOIN_MAX_PER_WINDOW", 5),
		JoinCooldown:     envMillis("JOIN_COOLDOWN_MS", 10_000),
	}
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Ignoring invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func envMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}
