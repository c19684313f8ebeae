package config

import (
	"time"

	"github.com/b/tabsync/pkg/paths"
)

const (
	defaultRepollDelay     = 50 * time.Millisecond
	defaultRefreshInterval = 2 * time.Second
)

type Config struct {
	Sync       Sync       `yaml:"sync"`
	Sidebar    Sidebar    `yaml:"sidebar"`
	Indicators Indicators `yaml:"indicators"`
	Log        Log        `yaml:"log"`
}

type Sync struct {
	Mode            string        `yaml:"mode"`             // auto, push or pull (default: auto)
	PollInterval    time.Duration `yaml:"poll_interval"`    // pull-mode snapshot interval (default: 500ms)
	RepollDelay     time.Duration `yaml:"repoll_delay"`     // extra poll after a new-tab request (default: 50ms)
	RefreshInterval time.Duration `yaml:"refresh_interval"` // push-mode safety re-list (default: 2s)
}

type Sidebar struct {
	Width        int           `yaml:"width"`
	Theme        string        `yaml:"theme"` // auto, dark or light terminal background (default: auto)
	NewTabButton bool          `yaml:"new_tab_button"`
	CloseButton  bool          `yaml:"close_button"`
	ConfirmClose bool          `yaml:"confirm_close"`
	Colors       SidebarColors `yaml:"colors"`
}

// SidebarColors are hex colors. Empty foregrounds are derived from the
// terminal background; ActiveFg is always nudged to stay legible on ActiveBg.
type SidebarColors struct {
	ActiveFg   string `yaml:"active_fg,omitempty"`   // Selected row text
	ActiveBg   string `yaml:"active_bg"`             // Selected row background (default: #2980b9)
	InactiveFg string `yaml:"inactive_fg,omitempty"` // Other rows
	ButtonFg   string `yaml:"button_fg,omitempty"`   // New/close buttons
	PromptFg   string `yaml:"prompt_fg,omitempty"`   // Close confirmation
}

// Indicators chooses which tmux window flags count as attention and how
// attention is drawn.
type Indicators struct {
	Attention Indicator `yaml:"attention"`
	Activity  bool      `yaml:"activity"`
	Bell      bool      `yaml:"bell"`
	Silence   bool      `yaml:"silence"`
}

type Indicator struct {
	Icon  string `yaml:"icon"`
	Color string `yaml:"color"`
}

type Log struct {
	Level      string `yaml:"level"`  // debug, info, warn, error (default: info)
	Format     string `yaml:"format"` // json or text (default: json)
	Dir        string `yaml:"dir"`    // empty disables file logging
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg := &Config{
		Sync: Sync{Mode: "auto"},
		Sidebar: Sidebar{
			Width:        25,
			Theme:        "auto",
			NewTabButton: true,
			CloseButton:  true,
			ConfirmClose: true,
		},
		Indicators: Indicators{Activity: true, Bell: true},
		Log:        Log{Level: "info", Format: "json"},
	}
	applyDefaults(cfg)
	return cfg
}

func DefaultConfigPath() string {
	return paths.ConfigPath()
}
