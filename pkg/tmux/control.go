package tmux

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/b/tabsync/pkg/logging"
)

var pipeLog = logging.ForComponent(logging.CompTmux)

// NotificationKind is the subset of control-mode notifications that can change
// a session's window list.
type NotificationKind int

const (
	WindowAdd NotificationKind = iota + 1
	WindowClose
	WindowRenamed
	SessionWindowChanged
	SessionsChanged
	Exit
)

func (k NotificationKind) String() string {
	switch k {
	case WindowAdd:
		return "window-add"
	case WindowClose:
		return "window-close"
	case WindowRenamed:
		return "window-renamed"
	case SessionWindowChanged:
		return "session-window-changed"
	case SessionsChanged:
		return "sessions-changed"
	case Exit:
		return "exit"
	}
	return "unknown"
}

// Notification is one parsed control-mode line.
type Notification struct {
	Kind   NotificationKind
	Window string // window id, when the notification names one
	Arg    string // new name for window-renamed, reason for exit
}

// ParseNotification parses a %-prefixed control-mode line. ok is false for
// lines that cannot affect the window list (%output, %begin, ...).
func ParseNotification(line string) (n Notification, ok bool) {
	if !strings.HasPrefix(line, "%") {
		return n, false
	}
	name, rest, _ := strings.Cut(line[1:], " ")
	switch name {
	case "window-add", "unlinked-window-add":
		n.Kind = WindowAdd
		n.Window = firstField(rest)
	case "window-close", "unlinked-window-close":
		n.Kind = WindowClose
		n.Window = firstField(rest)
	case "window-renamed", "unlinked-window-renamed":
		n.Kind = WindowRenamed
		n.Window, n.Arg, _ = strings.Cut(rest, " ")
	case "session-window-changed":
		// %session-window-changed $session @window
		n.Kind = SessionWindowChanged
		_, win, _ := strings.Cut(rest, " ")
		n.Window = firstField(win)
	case "sessions-changed", "session-changed", "session-renamed":
		n.Kind = SessionsChanged
	case "exit":
		n.Kind = Exit
		n.Arg = rest
	default:
		return n, false
	}
	return n, true
}

func firstField(s string) string {
	f, _, _ := strings.Cut(s, " ")
	return f
}

// ControlPipe wraps a persistent `tmux -C attach-session -t <name>` process
// and turns its notifications into a channel of window-list changes.
type ControlPipe struct {
	sessionName string
	cmd         *exec.Cmd
	stdin       io.WriteCloser
	stdout      io.ReadCloser

	// Coalescing: the reader drops notifications when the buffer is full,
	// since any one of them triggers a full re-list.
	events chan Notification

	ready        chan struct{}
	readyOnce    sync.Once
	handshakeErr error

	mu    sync.RWMutex
	alive bool

	done      chan struct{}
	closeOnce sync.Once
}

// NewControlPipe starts a control-mode client attached to sessionName. It
// blocks until the initial handshake completes (or 2s pass).
func NewControlPipe(sessionName string) (*ControlPipe, error) {
	cmd := exec.Command("tmux", "-C", "attach-session", "-t", sessionName)
	// Own process group so Close can kill the whole group
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		stdin.Close()
		return nil, fmt.Errorf("start tmux -C: %w", err)
	}

	cp := newControlPipe(sessionName, stdout)
	cp.cmd = cmd
	cp.stdin = stdin
	go cp.reader()

	select {
	case <-cp.ready:
	case <-cp.done:
		return nil, fmt.Errorf("pipe died during handshake for session %s", sessionName)
	case <-time.After(2 * time.Second):
		pipeLog.Debug("pipe_handshake_timeout", slog.String("session", sessionName))
	}

	if cp.handshakeErr != nil {
		cp.Close()
		return nil, fmt.Errorf("session %s: %w", sessionName, cp.handshakeErr)
	}

	pipeLog.Debug("pipe_connected", slog.String("session", sessionName))
	return cp, nil
}

func newControlPipe(sessionName string, stdout io.ReadCloser) *ControlPipe {
	return &ControlPipe{
		sessionName: sessionName,
		stdout:      stdout,
		events:      make(chan Notification, 64),
		ready:       make(chan struct{}),
		alive:       true,
		done:        make(chan struct{}),
	}
}

// reader parses the control-mode stream until tmux closes it.
func (cp *ControlPipe) reader() {
	defer func() {
		cp.mu.Lock()
		cp.alive = false
		cp.mu.Unlock()
		close(cp.done)
		pipeLog.Debug("pipe_reader_exited", slog.String("session", cp.sessionName))
	}()

	scanner := bufio.NewScanner(cp.stdout)
	scanner.Buffer(make([]byte, 256*1024), 2*1024*1024)

	isReady := false
	for scanner.Scan() {
		raw := scanner.Text()
		if !strings.HasPrefix(raw, "%") {
			continue
		}
		switch {
		case strings.HasPrefix(raw, "%end "):
			if !isReady {
				// First %end is the attach acknowledgment
				isReady = true
				cp.readyOnce.Do(func() { close(cp.ready) })
			}
			continue
		case strings.HasPrefix(raw, "%error "):
			if !isReady {
				parts := strings.Fields(raw)
				if len(parts) > 3 {
					cp.handshakeErr = fmt.Errorf("%s", strings.Join(parts[3:], " "))
				} else {
					cp.handshakeErr = fmt.Errorf("handshake error: %s", raw)
				}
				isReady = true
				cp.readyOnce.Do(func() { close(cp.ready) })
			}
			continue
		}

		n, ok := ParseNotification(raw)
		if !ok {
			continue
		}
		select {
		case cp.events <- n:
		default:
			pipeLog.Debug("notification_coalesced", slog.String("kind", n.Kind.String()))
		}
	}

	if err := scanner.Err(); err != nil {
		pipeLog.Debug("pipe_scanner_error", slog.String("session", cp.sessionName), slog.String("error", err.Error()))
	}
}

// Events delivers window-list notifications. Bursts may be coalesced.
func (cp *ControlPipe) Events() <-chan Notification {
	return cp.events
}

// IsAlive returns true if the control mode process is still running.
func (cp *ControlPipe) IsAlive() bool {
	cp.mu.RLock()
	defer cp.mu.RUnlock()
	return cp.alive
}

// Done returns a channel that closes when the pipe exits.
func (cp *ControlPipe) Done() <-chan struct{} {
	return cp.done
}

// Close shuts down the control mode pipe and kills the process.
func (cp *ControlPipe) Close() {
	cp.closeOnce.Do(func() {
		cp.mu.Lock()
		cp.alive = false
		cp.mu.Unlock()

		if cp.stdin != nil {
			cp.stdin.Close()
		}
		if cp.cmd == nil {
			cp.stdout.Close()
			return
		}
		if cp.cmd.Process != nil {
			pgid, err := syscall.Getpgid(cp.cmd.Process.Pid)
			if err == nil {
				_ = syscall.Kill(-pgid, syscall.SIGKILL)
			} else {
				_ = cp.cmd.Process.Kill()
			}
		}
		// Reap to avoid zombies
		_ = cp.cmd.Wait()

		pipeLog.Debug("pipe_closed", slog.String("session", cp.sessionName))
	})
}
