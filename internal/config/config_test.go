package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pumpsentry/internal/models"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func validConfig() *Config {
	return &Config{
		Binance: BinanceConfig{
			FuturesRestURL:  "https://fapi.binance.com",
			FuturesWSURL:    "wss://fstream.binance.com/stream?streams=!markPrice@arr",
			Timeout:         10 * time.Second,
			RequestsPerSec:  5,
			MaxRetryElapsed: 15 * time.Second,
		},
		Detection: DetectionConfig{
			PumpWindows:   map[string]float64{"300": 0.05},
			DumpWindows:   map[string]float64{"300": -0.05},
			AlertCooldown: 15 * time.Minute,
		},
		Filters: FiltersConfig{
			Volume: VolumeFilterConfig{
				WindowMin:     5,
				LookbackMin:   60,
				MinVolumeUSDT: 500000,
				MinSpikeRatio: 3.0,
			},
			Spread: SpreadFilterConfig{
				MaxSpreadPct:   0.004,
				DepthLimit:     20,
				MinBidNotional: 200000,
			},
			OpenInterest: OpenInterestConfig{Window: 15 * time.Minute},
		},
		Storage: StorageConfig{DBPath: "./data/test.db", MaxAlerts: 1000},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, "logging:\n  level: debug\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Binance.FuturesRestURL != "https://fapi.binance.com" {
		t.Errorf("unexpected rest url default: %s", cfg.Binance.FuturesRestURL)
	}
	if cfg.Detection.AlertCooldown != 15*time.Minute {
		t.Errorf("expected 15m cooldown default, got %v", cfg.Detection.AlertCooldown)
	}
	if cfg.Filters.Volume.MinSpikeRatio != 3.0 {
		t.Errorf("expected min_spike_ratio default 3.0, got %v", cfg.Filters.Volume.MinSpikeRatio)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected file value to override default, got %s", cfg.Logging.Level)
	}
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfigFile(t, `
binance:
  requests_per_sec: 10
detection:
  pump_windows:
    "60": 0.03
    "300": 0.05
  dump_windows:
    "300": -0.05
  alert_cooldown: 30m
filters:
  spread:
    max_spread_pct: 0.002
telegram:
  enabled: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	if cfg.Binance.RequestsPerSec != 10 {
		t.Errorf("expected requests_per_sec 10, got %d", cfg.Binance.RequestsPerSec)
	}
	if cfg.Detection.AlertCooldown != 30*time.Minute {
		t.Errorf("expected 30m cooldown, got %v", cfg.Detection.AlertCooldown)
	}
	if cfg.Filters.Spread.MaxSpreadPct != 0.002 {
		t.Errorf("expected max_spread_pct 0.002, got %v", cfg.Filters.Spread.MaxSpreadPct)
	}
	if len(cfg.Detection.PumpWindows) != 2 {
		t.Errorf("expected 2 pump windows, got %d", len(cfg.Detection.PumpWindows))
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestDetectionWindows(t *testing.T) {
	cfg := validConfig()
	cfg.Detection.PumpWindows = map[string]float64{"60": 0.03, "300": 0.05}
	cfg.Detection.DumpWindows = map[string]float64{"300": -0.05}

	windows, err := cfg.DetectionWindows()
	if err != nil {
		t.Fatalf("DetectionWindows failed: %v", err)
	}
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(windows))
	}

	// Sorted by duration, dump before pump at equal duration.
	if windows[0].Duration != 60*time.Second || windows[0].Direction != models.DirectionPump {
		t.Errorf("unexpected first window: %+v", windows[0])
	}
	if windows[1].Duration != 300*time.Second || windows[1].Direction != models.DirectionDump {
		t.Errorf("unexpected second window: %+v", windows[1])
	}
	if windows[2].Duration != 300*time.Second || windows[2].Direction != models.DirectionPump {
		t.Errorf("unexpected third window: %+v", windows[2])
	}
}

func TestDetectionWindowsErrors(t *testing.T) {
	tests := []struct {
		name string
		pump map[string]float64
		dump map[string]float64
	}{
		{"non-numeric key", map[string]float64{"5m": 0.05}, nil},
		{"zero duration", map[string]float64{"0": 0.05}, nil},
		{"pump threshold not positive", map[string]float64{"300": -0.05}, nil},
		{"dump threshold not negative", nil, map[string]float64{"300": 0.05}},
		{"no windows at all", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Detection.PumpWindows = tt.pump
			cfg.Detection.DumpWindows = tt.dump
			if _, err := cfg.DetectionWindows(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing rest url", func(c *Config) { c.Binance.FuturesRestURL = "" }, true},
		{"missing ws url", func(c *Config) { c.Binance.FuturesWSURL = "" }, true},
		{"zero rate limit", func(c *Config) { c.Binance.RequestsPerSec = 0 }, true},
		{"sub-second cooldown", func(c *Config) { c.Detection.AlertCooldown = 500 * time.Millisecond }, true},
		{"short lookback", func(c *Config) { c.Filters.Volume.LookbackMin = 8 }, true},
		{"negative min volume", func(c *Config) { c.Filters.Volume.MinVolumeUSDT = -1 }, true},
		{"zero spike ratio", func(c *Config) { c.Filters.Volume.MinSpikeRatio = 0 }, true},
		{"spread pct too large", func(c *Config) { c.Filters.Spread.MaxSpreadPct = 1.5 }, true},
		{"depth limit too large", func(c *Config) { c.Filters.Spread.DepthLimit = 5000 }, true},
		{"oi window too short", func(c *Config) { c.Filters.OpenInterest.Window = 0 }, true},
		{"telegram enabled without token", func(c *Config) {
			c.Telegram.Enabled = true
			c.Telegram.ChatID = "123"
		}, true},
		{"telegram enabled with credentials", func(c *Config) {
			c.Telegram.Enabled = true
			c.Telegram.BotToken = "token"
			c.Telegram.ChatID = "123"
		}, false},
		{"zero max alerts", func(c *Config) { c.Storage.MaxAlerts = 0 }, true},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("expected no error, got: %v", err)
			}
		})
	}
}
