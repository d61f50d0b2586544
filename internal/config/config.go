// Package config loads deskreplay settings. Precedence, lowest first:
// built-in defaults, the JSON config file, a .env file, DESKREPLAY_* env vars.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const envPrefix = "DESKREPLAY_"

type Config struct {
	LogLevel string `json:"log_level"`
	Playback struct {
		Speed              float64 `json:"speed"`
		Loops              int     `json:"loops"`
		InterActionDelayMs int     `json:"inter_action_delay_ms"` // 0 picks the platform default, <0 disables
		DriftToleranceMs   int     `json:"drift_tolerance_ms"`
		RetryAttempts      int     `json:"retry_attempts"`
		RetryDelayMs       int     `json:"retry_delay_ms"`
		PausePollMs        int     `json:"pause_poll_ms"`
		EventBuffer        int     `json:"event_buffer"`
	} `json:"playback"`
	Browser struct {
		URL        string `json:"url"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		Headless   bool   `json:"headless"`
		ProfileDir string `json:"profile_dir"`
		MoveSteps  int    `json:"move_steps"`
	} `json:"browser"`
	Server struct {
		Addr           string   `json:"addr"`
		AllowedOrigins []string `json:"allowed_origins"`
	} `json:"server"`
}

// Default returns the built-in configuration
func Default() *Config {
	cfg := &Config{LogLevel: "info"}
	cfg.Playback.Speed = 1.0
	cfg.Playback.Loops = 1
	cfg.Playback.DriftToleranceMs = 100
	cfg.Playback.RetryAttempts = 3
	cfg.Playback.RetryDelayMs = 100
	cfg.Playback.PausePollMs = 10
	cfg.Playback.EventBuffer = 64
	cfg.Browser.URL = "about:blank"
	cfg.Browser.Width = 1280
	cfg.Browser.Height = 720
	cfg.Browser.Headless = true
	cfg.Browser.MoveSteps = 8
	cfg.Server.Addr = ":8080"
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000"}
	return cfg
}

// DefaultPath is ~/.deskreplay/config.json
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".deskreplay", "config.json")
}

// Load reads path (writing defaults there if it does not exist) and applies
// .env and environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		} else if os.IsNotExist(err) {
			if err := Save(path, cfg); err != nil {
				return nil, err
			}
		}
	}

	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to path atomically
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// Override from env (highest precedence)
func applyEnv(cfg *Config) {
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.Playback.Speed = getEnvFloat("SPEED", cfg.Playback.Speed)
	cfg.Playback.Loops = getEnvInt("LOOPS", cfg.Playback.Loops)
	cfg.Playback.InterActionDelayMs = getEnvInt("INTER_ACTION_DELAY_MS", cfg.Playback.InterActionDelayMs)
	cfg.Playback.DriftToleranceMs = getEnvInt("DRIFT_TOLERANCE_MS", cfg.Playback.DriftToleranceMs)
	cfg.Playback.RetryAttempts = getEnvInt("RETRY_ATTEMPTS", cfg.Playback.RetryAttempts)
	cfg.Playback.RetryDelayMs = getEnvInt("RETRY_DELAY_MS", cfg.Playback.RetryDelayMs)
	cfg.Playback.PausePollMs = getEnvInt("PAUSE_POLL_MS", cfg.Playback.PausePollMs)
	cfg.Playback.EventBuffer = getEnvInt("EVENT_BUFFER", cfg.Playback.EventBuffer)
	cfg.Browser.URL = getEnvOrDefault("BROWSER_URL", cfg.Browser.URL)
	cfg.Browser.Width = getEnvInt("BROWSER_WIDTH", cfg.Browser.Width)
	cfg.Browser.Height = getEnvInt("BROWSER_HEIGHT", cfg.Browser.Height)
	cfg.Browser.Headless = getEnvBool("BROWSER_HEADLESS", cfg.Browser.Headless)
	cfg.Browser.ProfileDir = getEnvOrDefault("BROWSER_PROFILE_DIR", cfg.Browser.ProfileDir)
	cfg.Server.Addr = getEnvOrDefault("SERVER_ADDR", cfg.Server.Addr)
	if origins := os.Getenv(envPrefix + "ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = splitList(origins)
	}
}

// Validate rejects values no component can run with
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.Playback.Speed <= 0 {
		return fmt.Errorf("playback.speed must be positive, got %v", c.Playback.Speed)
	}
	if c.Playback.RetryAttempts < 1 {
		return fmt.Errorf("playback.retry_attempts must be at least 1, got %d", c.Playback.RetryAttempts)
	}
	if c.Browser.Width <= 0 || c.Browser.Height <= 0 {
		return fmt.Errorf("browser size must be positive, got %dx%d", c.Browser.Width, c.Browser.Height)
	}
	return nil
}

// InterActionDelay maps the configured milliseconds onto playback.Options
// semantics: 0 keeps the platform default, negative disables the delay.
func (c *Config) InterActionDelay() time.Duration {
	if c.Playback.InterActionDelayMs < 0 {
		return -1
	}
	return ms(c.Playback.InterActionDelayMs)
}

func (c *Config) DriftTolerance() time.Duration { return ms(c.Playback.DriftToleranceMs) }
func (c *Config) RetryDelay() time.Duration     { return ms(c.Playback.RetryDelayMs) }
func (c *Config) PausePoll() time.Duration      { return ms(c.Playback.PausePollMs) }

// ParseLevel maps debug|info|warn|error onto slog levels
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q", s)
	}
	return lvl, nil
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(envPrefix + key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(envPrefix + key))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(os.Getenv(envPrefix+key), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(os.Getenv(envPrefix + key))
	if err != nil {
		return fallback
	}
	return b
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
