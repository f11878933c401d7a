package config

import (
	"fmt"
	"os"

	"github.com/go-ini/ini"
)

// Config is the daemon configuration, loaded from an INI file with
// sensible defaults for every key so a missing file just means
// "defaults everywhere".
type Config struct {
	Server   ServerConfig   `ini:"server"`
	Analysis AnalysisConfig `ini:"analysis"`
}

type ServerConfig struct {
	Port int `ini:"port"`
	// Token-bucket limits applied to the API group.
	RateLimit float64 `ini:"rate_limit"`
	RateBurst int     `ini:"rate_burst"`
}

type AnalysisConfig struct {
	// Trailing-window length for the anomaly z-score baseline.
	AnomalyWindow int `ini:"anomaly_window"`
	// Default target point count for downsampled views.
	DownsampleTarget int `ini:"downsample_target"`
	// Maximum implicated cells shown per anomaly in API payloads. The
	// stored records always keep the full list.
	AnomalyDisplayCap int `ini:"anomaly_display_cap"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:      8380,
			RateLimit: 10,
			RateBurst: 20,
		},
		Analysis: AnalysisConfig{
			AnomalyWindow:     32,
			DownsampleTarget:  2000,
			AnomalyDisplayCap: 8,
		},
	}
}

// Load reads the INI file at path over the defaults. A missing file is
// not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if err := ini.MapTo(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Analysis.AnomalyWindow < 2 {
		return fmt.Errorf("anomaly_window must be at least 2, got %d", c.Analysis.AnomalyWindow)
	}
	if c.Analysis.DownsampleTarget < 3 {
		return fmt.Errorf("downsample_target must be at least 3, got %d", c.Analysis.DownsampleTarget)
	}
	return nil
}
