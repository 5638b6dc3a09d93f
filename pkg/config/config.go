// Package config holds global settings for the UltraScan core and its
// HTTP surface. All settings can be configured via environment variables
// or programmatically.
package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds global settings. Env prefix: ULTRASCAN_.
type Config struct {
	// === Scan pipeline ===
	PerDetectorTimeout time.Duration // per-detector budget (default 30s)
	ScanDeadline       time.Duration // overall scan budget (default 120s)
	EnabledDetectors   []string      // empty = all registered detectors

	// === Override layer thresholds ===
	DissentThreshold     float64 // HYDRA head spread flagged adversarial (default 0.30)
	NovelOODThreshold    float64 // SENTINEL novel-type gate (default 0.70)
	AttributionFloor     float64 // FORENSIC DNA override gate (default 0.80)
	PhysicsFailThreshold float64 // physics override gate (default 0.50)
	PhysicsBoostFraction float64 // fake-ward boost for physics anomalies (default 0.20)

	// === Weights file (optional) ===
	WeightsPath string // yaml file overriding fusion weights + generator profiles

	// === Cache ===
	RedisAddr string        // empty = in-process cache only
	CacheTTL  time.Duration // verdict cache TTL (default 1h)

	// === Persistence (optional) ===
	PostgresDSN string // empty = persistence disabled

	// === API surface ===
	ListenAddr         string // default ":8085"
	MaxConcurrentScans int    // semaphore cap on in-flight scans (default 32)
}

// NewDefaultConfig creates a Config with sensible defaults, every field
// overridable via environment variables.
func NewDefaultConfig() *Config {
	return &Config{
		PerDetectorTimeout: time.Duration(GetEnvInt("ULTRASCAN_DETECTOR_TIMEOUT_MS", 30000)) * time.Millisecond,
		ScanDeadline:       time.Duration(GetEnvInt("ULTRASCAN_SCAN_DEADLINE_MS", 120000)) * time.Millisecond,
		EnabledDetectors:   GetEnvSlice("ULTRASCAN_DETECTORS", nil),

		DissentThreshold:     GetEnvFloat("ULTRASCAN_DISSENT_THRESHOLD", 0.30),
		NovelOODThreshold:    GetEnvFloat("ULTRASCAN_NOVEL_OOD_THRESHOLD", 0.70),
		AttributionFloor:     GetEnvFloat("ULTRASCAN_ATTRIBUTION_FLOOR", 0.80),
		PhysicsFailThreshold: GetEnvFloat("ULTRASCAN_PHYSICS_FAIL_THRESHOLD", 0.50),
		PhysicsBoostFraction: GetEnvFloat("ULTRASCAN_PHYSICS_BOOST", 0.20),

		WeightsPath: GetEnv("ULTRASCAN_WEIGHTS_PATH", ""),

		RedisAddr: GetEnv("ULTRASCAN_REDIS_ADDR", ""),
		CacheTTL:  time.Duration(GetEnvInt("ULTRASCAN_CACHE_TTL_SECONDS", 3600)) * time.Second,

		PostgresDSN: GetEnv("ULTRASCAN_POSTGRES_DSN", ""),

		ListenAddr:         GetEnv("ULTRASCAN_LISTEN_ADDR", ":8085"),
		MaxConcurrentScans: clampInt(GetEnvInt("ULTRASCAN_MAX_CONCURRENT_SCANS", 32), 1, 4096),
	}
}

// NewHighSecurityConfig lowers the override gates so auxiliary signals
// flip verdicts earlier. More manual reviews, fewer missed fakes.
func NewHighSecurityConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.DissentThreshold = 0.20
	cfg.NovelOODThreshold = 0.55
	cfg.AttributionFloor = 0.65
	cfg.PhysicsFailThreshold = 0.60
	cfg.PhysicsBoostFraction = 0.30
	return cfg
}

// NewHighThroughputConfig tightens time budgets for bulk scanning where
// an occasional per-detector timeout is acceptable.
func NewHighThroughputConfig() *Config {
	cfg := NewDefaultConfig()
	cfg.PerDetectorTimeout = 5 * time.Second
	cfg.ScanDeadline = 15 * time.Second
	cfg.MaxConcurrentScans = 128
	return cfg
}

// Validate checks internal consistency; call at startup.
func (c *Config) Validate() error {
	var problems []string
	if c.PerDetectorTimeout <= 0 {
		problems = append(problems, "detector timeout must be positive")
	}
	if c.ScanDeadline < c.PerDetectorTimeout {
		problems = append(problems, "scan deadline shorter than per-detector timeout")
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"ULTRASCAN_DISSENT_THRESHOLD", c.DissentThreshold},
		{"ULTRASCAN_NOVEL_OOD_THRESHOLD", c.NovelOODThreshold},
		{"ULTRASCAN_ATTRIBUTION_FLOOR", c.AttributionFloor},
		{"ULTRASCAN_PHYSICS_FAIL_THRESHOLD", c.PhysicsFailThreshold},
	} {
		if f.v < 0 || f.v > 1 {
			problems = append(problems, f.name+" must be in [0,1]")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// MustValidate calls Validate and fatally exits on failure.
func (c *Config) MustValidate() {
	if err := c.Validate(); err != nil {
		log.Fatalf("[STARTUP] FATAL: %v", err)
	}
	log.Println("[STARTUP] Configuration validated")
}

func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// Helper functions for environment variable parsing.

// GetEnv returns the value of an environment variable or a default value.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetEnvFloat returns the float64 value of an environment variable or a
// default value.
func GetEnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return defaultValue
}

// GetEnvInt returns the integer value of an environment variable or a
// default value.
func GetEnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return defaultValue
}

// GetEnvSlice returns a comma-separated list from an environment variable
// or a default value.
func GetEnvSlice(key string, defaultValue []string) []string {
	if v := os.Getenv(key); v != "" {
		var parts []string
		for _, p := range strings.Split(v, ",") {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		if len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}
