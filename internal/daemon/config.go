// Package daemon manages the PuzzlePup backend lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all backend configuration.
type Config struct {
	API        APIConfig        `toml:"api"`
	Data       DataConfig       `toml:"data"`
	Engagement EngagementConfig `toml:"engagement"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// DataConfig controls persistent storage.
type DataConfig struct {
	Dir string `toml:"dir"`
}

// EngagementConfig controls the reward engine tunables.
type EngagementConfig struct {
	WeeklyTarget        int    `toml:"weekly_target"`         // clears to claim the weekly challenge
	ComebackHints       int64  `toml:"comeback_hints"`        // one-time comeback bonus
	WriteRetries        int    `toml:"write_retries"`         // optimistic-concurrency retry budget
	DailyRunRepeat      bool   `toml:"daily_run_repeat"`      // test mode: credit multiple runs per day
	PurchaseRetryWindow string `toml:"purchase_retry_window"` // e.g. "10s"
	NotificationsPerDay int    `toml:"notifications_per_day"`
}

// TelemetryConfig controls observability.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8480,
		},
		Data: DataConfig{
			Dir: puzzlepupHome(),
		},
		Engagement: EngagementConfig{
			WeeklyTarget:        5,
			ComebackHints:       15,
			WriteRetries:        3,
			PurchaseRetryWindow: "10s",
			NotificationsPerDay: 3,
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig reads config from ~/.puzzlepup/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(puzzlepupHome(), "config.toml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet — use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the config to ~/.puzzlepup/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(puzzlepupHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// PurchaseWindow parses the purchase retry window, defaulting to 10 seconds.
func (c EngagementConfig) PurchaseWindow() time.Duration {
	return parseDuration(c.PurchaseRetryWindow, 10*time.Second)
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// puzzlepupHome returns the backend data directory.
func puzzlepupHome() string {
	if env := os.Getenv("PUZZLEPUP_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".puzzlepup")
}
