package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func setupTestDirs(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("TABSYNC_CONFIG_DIR", "")
	t.Setenv("TABSYNC_STATE_DIR", "")
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")
	t.Setenv("HOME", tmp)
	ResetForTest()
	return tmp
}

func TestConfigDir_EnvOverride(t *testing.T) {
	tmp := setupTestDirs(t)
	override := filepath.Join(tmp, "custom-config")
	os.MkdirAll(override, 0755)
	t.Setenv("TABSYNC_CONFIG_DIR", override)
	ResetForTest()

	if got := ConfigDir(); got != override {
		t.Errorf("ConfigDir() = %q, want %q", got, override)
	}
}

func TestConfigDir_Default(t *testing.T) {
	tmp := setupTestDirs(t)
	want := filepath.Join(tmp, ".config", "tabsync")
	if got := ConfigDir(); got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}

func TestStateDir_EnvOverride(t *testing.T) {
	tmp := setupTestDirs(t)
	override := filepath.Join(tmp, "custom-state")
	os.MkdirAll(override, 0755)
	t.Setenv("TABSYNC_STATE_DIR", override)
	ResetForTest()

	if got := StateDir(); got != override {
		t.Errorf("StateDir() = %q, want %q", got, override)
	}
}

func TestStateDir_Default(t *testing.T) {
	tmp := setupTestDirs(t)
	want := filepath.Join(tmp, ".local", "state", "tabsync")
	if got := StateDir(); got != want {
		t.Errorf("StateDir() = %q, want %q", got, want)
	}
}

func TestConfigPath(t *testing.T) {
	tmp := setupTestDirs(t)
	want := filepath.Join(tmp, ".config", "tabsync", "config.yaml")
	if got := ConfigPath(); got != want {
		t.Errorf("ConfigPath() = %q, want %q", got, want)
	}
}

func TestXDGHomes(t *testing.T) {
	tmp := setupTestDirs(t)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xc"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(tmp, "xs"))
	ResetForTest()

	if got, want := ConfigDir(), filepath.Join(tmp, "xc", "tabsync"); got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
	if got, want := StateDir(), filepath.Join(tmp, "xs", "tabsync"); got != want {
		t.Errorf("StateDir() = %q, want %q", got, want)
	}
}

func TestRelativeXDGIgnored(t *testing.T) {
	tmp := setupTestDirs(t)
	t.Setenv("XDG_CONFIG_HOME", "relative/dir")
	ResetForTest()

	if got, want := ConfigDir(), filepath.Join(tmp, ".config", "tabsync"); got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}

func TestEnsureStateDir_Creates(t *testing.T) {
	tmp := setupTestDirs(t)
	expected := filepath.Join(tmp, ".local", "state", "tabsync")

	dir, err := EnsureStateDir()
	if err != nil {
		t.Fatalf("EnsureStateDir() error: %v", err)
	}
	if dir != expected {
		t.Errorf("EnsureStateDir() = %q, want %q", dir, expected)
	}
	info, err := os.Stat(expected)
	if err != nil || !info.IsDir() {
		t.Errorf("EnsureStateDir() did not create directory %q", expected)
	}
}

func TestSocketPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TABSYNC_RUNTIME_DIR", dir)

	tests := []struct {
		session string
		want    string
	}{
		{"work", filepath.Join(dir, "tabsync-work.sock")},
		{"a/b", filepath.Join(dir, "tabsync-a_b.sock")},
		{"../x", filepath.Join(dir, "tabsync-.._x.sock")},
	}
	for _, tt := range tests {
		if got := SocketPath(tt.session); got != tt.want {
			t.Errorf("SocketPath(%q) = %q, want %q", tt.session, got, tt.want)
		}
	}
	if got, want := PidPath("work"), filepath.Join(dir, "tabsync-work.pid"); got != want {
		t.Errorf("PidPath() = %q, want %q", got, want)
	}
}
