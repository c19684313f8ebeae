package tmux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrNoSession is returned when the target session (or the whole server) is gone.
var ErrNoSession = errors.New("tmux session not found")

// ansiEscapeRegex matches ANSI escape sequences
var ansiEscapeRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]|\x1b\].*?(?:\x07|\x1b\\)`)

// stripANSI removes ANSI escape sequences from a string
func stripANSI(s string) string {
	return ansiEscapeRegex.ReplaceAllString(s, "")
}

type Window struct {
	ID       string
	Index    int
	Name     string
	Active   bool
	Activity bool // Window has unseen activity (monitor-activity)
	Bell     bool // Window has triggered bell
	Silence  bool // Window has been silent (monitor-silence)
}

const windowFormat = "#{window_id}\x1f#{window_index}\x1f#{window_name}\x1f#{window_active}\x1f#{window_activity_flag}\x1f#{window_bell_flag}\x1f#{window_silence_flag}"

// ParseWindows parses list-windows output produced with windowFormat.
// Malformed lines are skipped.
func ParseWindows(out string) []Window {
	var windows []Window
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.Split(line, "\x1f")
		if len(parts) < 7 {
			continue
		}
		index, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		windows = append(windows, Window{
			ID:       parts[0],
			Index:    index,
			Name:     stripANSI(parts[2]),
			Active:   parts[3] == "1",
			Activity: parts[4] == "1",
			Bell:     parts[5] == "1",
			Silence:  parts[6] == "1",
		})
	}
	return windows
}

// Runner executes one tmux command and returns its stdout.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

func execRunner(ctx context.Context, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "tmux", args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "can't find session") || strings.Contains(msg, "no server running") ||
			strings.Contains(msg, "session not found") {
			return nil, fmt.Errorf("%w: %s", ErrNoSession, msg)
		}
		if msg != "" {
			return nil, fmt.Errorf("tmux %s: %s: %w", args[0], msg, err)
		}
		return nil, fmt.Errorf("tmux %s: %w", args[0], err)
	}
	return out, nil
}

// Client runs commands against one tmux session.
type Client struct {
	session string
	run     Runner
	timeout time.Duration
	listSf  singleflight.Group // dedupes concurrent list-windows calls
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithRunner replaces the tmux subprocess runner.
func WithRunner(r Runner) ClientOption {
	return func(c *Client) { c.run = r }
}

// WithTimeout bounds every command. Defaults to 2s.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient returns a client for session.
func NewClient(session string, opts ...ClientOption) *Client {
	c := &Client{session: session, run: execRunner, timeout: 2 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the target session name.
func (c *Client) Session() string { return c.session }

func (c *Client) exec(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.run(ctx, args...)
}

// ListWindows returns the session's windows in index order. Concurrent callers
// share one subprocess.
func (c *Client) ListWindows(ctx context.Context) ([]Window, error) {
	v, err, _ := c.listSf.Do("list-windows", func() (interface{}, error) {
		out, err := c.exec(ctx, "list-windows", "-t", c.session, "-F", windowFormat)
		if err != nil {
			return nil, err
		}
		return ParseWindows(string(out)), nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Window), nil
}

// SelectWindow makes id the session's current window.
func (c *Client) SelectWindow(ctx context.Context, id string) error {
	_, err := c.exec(ctx, "select-window", "-t", id)
	return err
}

// KillWindow closes window id.
func (c *Client) KillWindow(ctx context.Context, id string) error {
	_, err := c.exec(ctx, "kill-window", "-t", id)
	return err
}

// NewWindow creates a window right after ref, or at the end of the session
// when ref is empty.
func (c *Client) NewWindow(ctx context.Context, ref string) error {
	if ref == "" {
		_, err := c.exec(ctx, "new-window", "-t", c.session+":")
		return err
	}
	_, err := c.exec(ctx, "new-window", "-a", "-t", ref)
	return err
}

// CreateNewTab lets the client act as the tab creator of a reconcile
// controller.
func (c *Client) CreateNewTab(ref string) error {
	return c.NewWindow(context.Background(), ref)
}

// KillSession closes the whole session.
func (c *Client) KillSession(ctx context.Context) error {
	_, err := c.exec(ctx, "kill-session", "-t", c.session)
	return err
}

// HasSession reports whether the session exists.
func (c *Client) HasSession(ctx context.Context) bool {
	_, err := c.exec(ctx, "has-session", "-t", c.session)
	return err == nil
}

// CurrentSession returns the session of the calling client when run inside
// tmux.
func CurrentSession(ctx context.Context) (string, error) {
	out, err := execRunner(ctx, "display-message", "-p", "#{session_name}")
	if err != nil {
		return "", err
	}
	name := strings.TrimSpace(string(out))
	if name == "" {
		return "", ErrNoSession
	}
	return name, nil
}
