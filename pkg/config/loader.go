package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/b/tabsync/pkg/colors"
	"github.com/b/tabsync/pkg/tabsource"
)

var ErrInvalidMode = errors.New("invalid sync mode")

// LoadConfig reads path over the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes the config to the specified path
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if _, err := tabsource.ParseMode(c.Sync.Mode); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMode, c.Sync.Mode)
	}
	if c.Sync.PollInterval < 0 || c.Sync.RepollDelay < 0 || c.Sync.RefreshInterval < 0 {
		return errors.New("sync intervals must not be negative")
	}
	if c.Sidebar.Width < 0 {
		return errors.New("sidebar width must not be negative")
	}
	if !colors.ThemeMode(c.Sidebar.Theme).Valid() {
		return fmt.Errorf("unknown sidebar theme %q", c.Sidebar.Theme)
	}
	return nil
}

// SyncMode returns the parsed sync mode. Call Validate first.
func (c *Config) SyncMode() tabsource.Mode {
	m, err := tabsource.ParseMode(c.Sync.Mode)
	if err != nil {
		return tabsource.ModeAuto
	}
	return m
}

func applyDefaults(cfg *Config) {
	if cfg.Sync.Mode == "" {
		cfg.Sync.Mode = "auto"
	}
	if cfg.Sync.PollInterval == 0 {
		cfg.Sync.PollInterval = tabsource.DefaultPollInterval
	}
	if cfg.Sync.RepollDelay == 0 {
		cfg.Sync.RepollDelay = defaultRepollDelay
	}
	if cfg.Sync.RefreshInterval == 0 {
		cfg.Sync.RefreshInterval = defaultRefreshInterval
	}
	if cfg.Sidebar.Width == 0 {
		cfg.Sidebar.Width = 25
	}
	if cfg.Sidebar.Theme == "" {
		cfg.Sidebar.Theme = string(colors.ThemeAuto)
	}
	if cfg.Sidebar.Colors.ActiveBg == "" {
		cfg.Sidebar.Colors.ActiveBg = "#2980b9"
	}
	if cfg.Indicators.Attention.Icon == "" {
		cfg.Indicators.Attention.Icon = "●"
		cfg.Indicators.Attention.Color = "#f39c12"
	}
}
