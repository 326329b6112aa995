package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"pumpsentry/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	Binance   BinanceConfig   `mapstructure:"binance"`
	Detection DetectionConfig `mapstructure:"detection"`
	Filters   FiltersConfig   `mapstructure:"filters"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// BinanceConfig holds Binance futures API configuration
type BinanceConfig struct {
	FuturesRestURL  string        `mapstructure:"futures_rest_url"`
	FuturesWSURL    string        `mapstructure:"futures_ws_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RequestsPerSec  int           `mapstructure:"requests_per_sec"`
	MaxRetryElapsed time.Duration `mapstructure:"max_retry_elapsed"`
}

// DetectionConfig holds the window/threshold tables and the alert cooldown.
// Window keys are durations in seconds; pump thresholds are positive
// fractional returns, dump thresholds negative.
type DetectionConfig struct {
	PumpWindows   map[string]float64 `mapstructure:"pump_windows"`
	DumpWindows   map[string]float64 `mapstructure:"dump_windows"`
	AlertCooldown time.Duration      `mapstructure:"alert_cooldown"`
}

// VolumeFilterConfig holds the volume spike filter parameters
type VolumeFilterConfig struct {
	WindowMin     int     `mapstructure:"window_min"`
	LookbackMin   int     `mapstructure:"lookback_min"`
	MinVolumeUSDT float64 `mapstructure:"min_volume_usdt"`
	MinSpikeRatio float64 `mapstructure:"min_spike_ratio"`
}

// SpreadFilterConfig holds the spread/liquidity filter parameters
type SpreadFilterConfig struct {
	MaxSpreadPct   float64 `mapstructure:"max_spread_pct"`
	DepthLimit     int     `mapstructure:"depth_limit"`
	MinBidNotional float64 `mapstructure:"min_bid_notional"`
}

// OpenInterestConfig holds the informational OI stat parameters
type OpenInterestConfig struct {
	Window time.Duration `mapstructure:"window"`
}

// FiltersConfig groups the filter pipeline configuration
type FiltersConfig struct {
	Volume       VolumeFilterConfig `mapstructure:"volume"`
	Spread       SpreadFilterConfig `mapstructure:"spread"`
	OpenInterest OpenInterestConfig `mapstructure:"open_interest"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds the alert journal configuration
type StorageConfig struct {
	DBPath    string `mapstructure:"db_path"`
	MaxAlerts int    `mapstructure:"max_alerts"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set config file
	v.SetConfigFile(path)

	// Set defaults
	setDefaults(v)

	// Enable environment variable override, e.g. PUMPSENTRY_TELEGRAM_BOT_TOKEN
	v.SetEnvPrefix("PUMPSENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// Binance defaults
	v.SetDefault("binance.futures_rest_url", "https://fapi.binance.com")
	v.SetDefault("binance.futures_ws_url", "wss://fstream.binance.com/stream?streams=!markPrice@arr")
	v.SetDefault("binance.timeout", "10s")
	v.SetDefault("binance.requests_per_sec", 5)
	v.SetDefault("binance.max_retry_elapsed", "15s")

	// Detection defaults
	v.SetDefault("detection.pump_windows", map[string]float64{"300": 0.05})
	v.SetDefault("detection.dump_windows", map[string]float64{"300": -0.05})
	v.SetDefault("detection.alert_cooldown", "15m")

	// Filter defaults
	v.SetDefault("filters.volume.window_min", 5)
	v.SetDefault("filters.volume.lookback_min", 60)
	v.SetDefault("filters.volume.min_volume_usdt", 500000.0)
	v.SetDefault("filters.volume.min_spike_ratio", 3.0)
	v.SetDefault("filters.spread.max_spread_pct", 0.004)
	v.SetDefault("filters.spread.depth_limit", 20)
	v.SetDefault("filters.spread.min_bid_notional", 200000.0)
	v.SetDefault("filters.open_interest.window", "15m")

	// Telegram defaults
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.db_path", "./data/pumpsentry.db")
	v.SetDefault("storage.max_alerts", 1000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// DetectionWindows compiles the configured pump and dump tables into
// validated detection windows, sorted by duration.
func (c *Config) DetectionWindows() ([]models.DetectionWindow, error) {
	var windows []models.DetectionWindow

	parse := func(table map[string]float64, direction models.Direction) error {
		for key, threshold := range table {
			seconds, err := strconv.Atoi(key)
			if err != nil {
				return fmt.Errorf("invalid %s window key %q: %w", direction, key, err)
			}
			w := models.DetectionWindow{
				Duration:  time.Duration(seconds) * time.Second,
				Threshold: threshold,
				Direction: direction,
			}
			if err := w.Validate(); err != nil {
				return err
			}
			windows = append(windows, w)
		}
		return nil
	}

	if err := parse(c.Detection.PumpWindows, models.DirectionPump); err != nil {
		return nil, err
	}
	if err := parse(c.Detection.DumpWindows, models.DirectionDump); err != nil {
		return nil, err
	}

	if len(windows) == 0 {
		return nil, fmt.Errorf("at least one pump or dump window is required")
	}

	sort.Slice(windows, func(i, j int) bool {
		if windows[i].Duration != windows[j].Duration {
			return windows[i].Duration < windows[j].Duration
		}
		return windows[i].Direction < windows[j].Direction
	})
	return windows, nil
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate Binance config
	if c.Binance.FuturesRestURL == "" {
		return fmt.Errorf("binance.futures_rest_url is required")
	}
	if c.Binance.FuturesWSURL == "" {
		return fmt.Errorf("binance.futures_ws_url is required")
	}
	if c.Binance.RequestsPerSec < 1 {
		return fmt.Errorf("binance.requests_per_sec must be at least 1")
	}

	// Validate Detection config
	if _, err := c.DetectionWindows(); err != nil {
		return err
	}
	if c.Detection.AlertCooldown < 1*time.Second {
		return fmt.Errorf("detection.alert_cooldown must be at least 1 second")
	}

	// Validate Filter config
	if c.Filters.Volume.WindowMin < 1 {
		return fmt.Errorf("filters.volume.window_min must be at least 1")
	}
	if c.Filters.Volume.LookbackMin < c.Filters.Volume.WindowMin+5 {
		return fmt.Errorf("filters.volume.lookback_min must be at least window_min + 5")
	}
	if c.Filters.Volume.MinVolumeUSDT < 0 {
		return fmt.Errorf("filters.volume.min_volume_usdt must not be negative")
	}
	if c.Filters.Volume.MinSpikeRatio <= 0 {
		return fmt.Errorf("filters.volume.min_spike_ratio must be positive")
	}
	if c.Filters.Spread.MaxSpreadPct <= 0 || c.Filters.Spread.MaxSpreadPct >= 1 {
		return fmt.Errorf("filters.spread.max_spread_pct must be between 0 and 1")
	}
	if c.Filters.Spread.DepthLimit < 1 || c.Filters.Spread.DepthLimit > 1000 {
		return fmt.Errorf("filters.spread.depth_limit must be between 1 and 1000")
	}
	if c.Filters.Spread.MinBidNotional < 0 {
		return fmt.Errorf("filters.spread.min_bid_notional must not be negative")
	}
	if c.Filters.OpenInterest.Window < 1*time.Second {
		return fmt.Errorf("filters.open_interest.window must be at least 1 second")
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.MaxAlerts < 1 {
		return fmt.Errorf("storage.max_alerts must be at least 1")
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
