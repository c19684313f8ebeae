// Package paths resolves where tabsync keeps its files.
//
//	Config:  $XDG_CONFIG_HOME/tabsync/config.yaml   (override: TABSYNC_CONFIG_DIR)
//	State:   $XDG_STATE_HOME/tabsync/               (override: TABSYNC_STATE_DIR, holds logs)
//	Runtime: $TMPDIR/tabsync-<session>.{sock,pid}    (override: TABSYNC_RUNTIME_DIR)
//
// Without the XDG variables the config and state directories fall back to
// ~/.config and ~/.local/state.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const appName = "tabsync"

// dir is a lazily resolved, cached directory.
type dir struct {
	override string   // app specific env var
	xdg      string   // XDG base directory env var
	fallback []string // path under $HOME when xdg is unset

	once sync.Once
	path string
}

func (d *dir) get() string {
	d.once.Do(func() { d.path = d.resolve() })
	return d.path
}

func (d *dir) resolve() string {
	if env := os.Getenv(d.override); env != "" {
		return env
	}
	if base := os.Getenv(d.xdg); base != "" && filepath.IsAbs(base) {
		return filepath.Join(base, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(append(append([]string{home}, d.fallback...), appName)...)
}

func (d *dir) ensure() (string, error) {
	p := d.get()
	if err := os.MkdirAll(p, 0755); err != nil {
		return "", fmt.Errorf("create %s: %w", p, err)
	}
	return p, nil
}

var (
	configDir = &dir{override: "TABSYNC_CONFIG_DIR", xdg: "XDG_CONFIG_HOME", fallback: []string{".config"}}
	stateDir  = &dir{override: "TABSYNC_STATE_DIR", xdg: "XDG_STATE_HOME", fallback: []string{".local", "state"}}
)

// ConfigDir is the directory holding config.yaml.
func ConfigDir() string { return configDir.get() }

// StateDir is the directory holding logs.
func StateDir() string { return stateDir.get() }

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// EnsureStateDir creates the state directory if needed and returns it.
func EnsureStateDir() (string, error) {
	return stateDir.ensure()
}

// RuntimeDir is where per-session sockets and pid files live. Not cached, so
// env changes apply immediately.
func RuntimeDir() string {
	if env := os.Getenv("TABSYNC_RUNTIME_DIR"); env != "" {
		return env
	}
	return os.TempDir()
}

// SocketPath returns the daemon socket for a tmux session.
func SocketPath(session string) string {
	return runtimeFile(session, ".sock")
}

// PidPath returns the daemon pid file for a tmux session.
func PidPath(session string) string {
	return runtimeFile(session, ".pid")
}

func runtimeFile(session, ext string) string {
	return filepath.Join(RuntimeDir(), appName+"-"+sanitize(session)+ext)
}

// sanitize keeps session names from escaping RuntimeDir.
func sanitize(session string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == 0 {
			return '_'
		}
		return r
	}, session)
}

// ResetForTest drops cached directories. Only use in tests.
func ResetForTest() {
	configDir = &dir{override: configDir.override, xdg: configDir.xdg, fallback: configDir.fallback}
	stateDir = &dir{override: stateDir.override, xdg: stateDir.xdg, fallback: stateDir.fallback}
}
