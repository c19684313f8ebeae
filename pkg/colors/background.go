package colors

import (
	"os"
	"strconv"
	"strings"

	"github.com/muesli/termenv"
)

// ThemeMode selects how the terminal background is determined.
type ThemeMode string

const (
	ThemeAuto  ThemeMode = "auto"
	ThemeDark  ThemeMode = "dark"
	ThemeLight ThemeMode = "light"
)

// Valid reports whether m is a known mode. Empty counts as auto.
func (m ThemeMode) Valid() bool {
	switch m {
	case "", ThemeAuto, ThemeDark, ThemeLight:
		return true
	}
	return false
}

// BackgroundDetector decides whether the terminal background is dark. The
// answer is computed once.
type BackgroundDetector struct {
	mode   ThemeMode
	output *termenv.Output
	getenv func(string) string

	decided bool
	dark    bool
}

// NewBackgroundDetector creates a detector for mode.
func NewBackgroundDetector(mode ThemeMode) *BackgroundDetector {
	return &BackgroundDetector{
		mode:   mode,
		output: termenv.NewOutput(os.Stdout),
		getenv: os.Getenv,
	}
}

// IsDark reports whether the background is dark.
func (d *BackgroundDetector) IsDark() bool {
	if d.decided {
		return d.dark
	}
	switch d.mode {
	case ThemeDark:
		d.dark = true
	case ThemeLight:
		d.dark = false
	default:
		d.dark = d.detect()
	}
	d.decided = true
	return d.dark
}

// detect tries COLORFGBG, then terminal hints, then an OSC query through
// termenv. Most terminal users run dark themes, so that is the fallback.
func (d *BackgroundDetector) detect() bool {
	if dark, ok := d.fromCOLORFGBG(); ok {
		return dark
	}
	if dark, ok := d.fromHints(); ok {
		return dark
	}
	if dark, ok := d.fromTermenv(); ok {
		return dark
	}
	return true
}

// COLORFGBG is "fg;bg" (sometimes "fg;default;bg") in ANSI color numbers;
// 0-7 are dark backgrounds.
func (d *BackgroundDetector) fromCOLORFGBG() (bool, bool) {
	v := d.getenv("COLORFGBG")
	if v == "" {
		return false, false
	}
	parts := strings.Split(v, ";")
	if len(parts) < 2 {
		return false, false
	}
	bg, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return false, false
	}
	return bg < 8 || bg == 16, true
}

func (d *BackgroundDetector) fromHints() (bool, bool) {
	profile := strings.ToLower(d.getenv("ITERM_PROFILE"))
	switch {
	case strings.Contains(profile, "light"):
		return false, true
	case strings.Contains(profile, "dark"):
		return true, true
	}
	return false, false
}

// tmux does not forward OSC 11 queries, so this mostly helps outside tmux.
func (d *BackgroundDetector) fromTermenv() (bool, bool) {
	if d.output == nil {
		return false, false
	}
	bg := d.output.BackgroundColor()
	if bg == nil {
		return false, false
	}
	if _, ok := bg.(termenv.NoColor); ok {
		return false, false
	}
	return d.output.HasDarkBackground(), true
}

// Palette holds the fallback colors for a background.
type Palette struct {
	Text     string
	Inactive string
	Button   string
	Prompt   string
}

// DefaultPalette returns the fallback colors for a dark or light background.
func DefaultPalette(dark bool) Palette {
	if dark {
		return Palette{Text: "#ffffff", Inactive: "#cccccc", Button: "#27ae60", Prompt: "#e74c3c"}
	}
	return Palette{Text: "#000000", Inactive: "#4a4a4a", Button: "#1e8449", Prompt: "#c0392b"}
}
