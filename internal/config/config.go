// Package config loads runtime settings from the environment and the context
// table from a TOML or YAML file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Content
	TablePath string // context table file (.toml, .yaml, .yml)
	AssetsDir string // root of segment IDs

	// Server
	Port       int
	RateLimit  float64 // control API requests per second
	RateBurst  int
	MP3Bitrate int      // kbit/s
	STUNURLs   []string // WebRTC ICE servers

	// Orchestration
	Tick         time.Duration // fade update interval
	FadeOverride time.Duration // replaces the table default fade when > 0
	StartContext string        // forced at startup, empty = silence

	// Autopilot wanders between contexts when no game is attached.
	Autopilot bool
	DwellMin  time.Duration
	DwellMax  time.Duration

	// Outputs
	Speaker     bool   // play on the local device
	JournalPath string // sqlite history, empty disables

	LogLevel string
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		TablePath: envStr("MOODSCORE_TABLE", "contexts.toml"),
		AssetsDir: envStr("MOODSCORE_ASSETS", "assets"),

		Port:       envInt("MOODSCORE_PORT", 8080),
		RateLimit:  envFloat("MOODSCORE_RATE_LIMIT", 20),
		RateBurst:  envInt("MOODSCORE_RATE_BURST", 10),
		MP3Bitrate: envInt("MOODSCORE_MP3_BITRATE", 192),
		STUNURLs:   envList("MOODSCORE_STUN", nil),

		Tick:         envDuration("MOODSCORE_TICK", 20*time.Millisecond),
		FadeOverride: time.Duration(envFloat("MOODSCORE_FADE", 0) * float64(time.Second)),
		StartContext: envStr("MOODSCORE_START", ""),

		Autopilot: envBool("MOODSCORE_AUTOPILOT", false),
		DwellMin:  envDuration("MOODSCORE_DWELL_MIN", 20*time.Second),
		DwellMax:  envDuration("MOODSCORE_DWELL_MAX", 60*time.Second),

		Speaker:     envBool("MOODSCORE_SPEAKER", false),
		JournalPath: envStr("MOODSCORE_JOURNAL", ""),

		LogLevel: envStr("MOODSCORE_LOG_LEVEL", "info"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go duration syntax ("20ms") or a bare number of
// milliseconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return time.Duration(n) * time.Millisecond
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
