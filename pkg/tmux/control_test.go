package tmux

import (
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipIfNoTmuxServer(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("tmux"); err != nil {
		t.Skip("tmux not available")
	}
	if err := exec.Command("tmux", "list-sessions").Run(); err != nil {
		t.Skip("tmux server not running")
	}
}

func TestParseNotification(t *testing.T) {
	tests := []struct {
		line string
		want Notification
		ok   bool
	}{
		{"%window-add @3", Notification{Kind: WindowAdd, Window: "@3"}, true},
		{"%unlinked-window-add @9", Notification{Kind: WindowAdd, Window: "@9"}, true},
		{"%window-close @3", Notification{Kind: WindowClose, Window: "@3"}, true},
		{"%unlinked-window-close @3", Notification{Kind: WindowClose, Window: "@3"}, true},
		{"%window-renamed @2 my editor", Notification{Kind: WindowRenamed, Window: "@2", Arg: "my editor"}, true},
		{"%session-window-changed $1 @4", Notification{Kind: SessionWindowChanged, Window: "@4"}, true},
		{"%sessions-changed", Notification{Kind: SessionsChanged}, true},
		{"%exit detached", Notification{Kind: Exit, Arg: "detached"}, true},
		{"%output %1 hello", Notification{}, false},
		{"%begin 1 2 0", Notification{}, false},
		{"plain text", Notification{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseNotification(tt.line)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestControlPipeReaderHandshakeAndEvents(t *testing.T) {
	r, w := io.Pipe()
	cp := newControlPipe("fake", r)
	go cp.reader()

	_, err := io.WriteString(w, "%begin 1 1 0\n%end 1 1 0\n")
	require.NoError(t, err)
	select {
	case <-cp.ready:
	case <-time.After(time.Second):
		require.FailNow(t, "handshake not observed")
	}

	_, err = io.WriteString(w, "%output %1 noise\n%window-add @7\n")
	require.NoError(t, err)
	select {
	case n := <-cp.Events():
		assert.Equal(t, Notification{Kind: WindowAdd, Window: "@7"}, n)
	case <-time.After(time.Second):
		require.FailNow(t, "notification not delivered")
	}

	w.Close()
	select {
	case <-cp.Done():
	case <-time.After(time.Second):
		require.FailNow(t, "reader did not exit")
	}
	assert.False(t, cp.IsAlive())
}

func TestControlPipeHandshakeError(t *testing.T) {
	r, w := io.Pipe()
	cp := newControlPipe("missing", r)
	go cp.reader()

	_, err := io.WriteString(w, "%begin 1 1 0\n%error 1 1 0 can't find session: missing\n")
	require.NoError(t, err)
	<-cp.ready
	require.Error(t, cp.handshakeErr)
	assert.Contains(t, cp.handshakeErr.Error(), "can't find session")
	w.Close()
	cp.Close()
}

func TestControlPipeRealSession(t *testing.T) {
	skipIfNoTmuxServer(t)

	name := "tabsync-cptest"
	require.NoError(t, exec.Command("tmux", "new-session", "-d", "-s", name).Run())
	t.Cleanup(func() { _ = exec.Command("tmux", "kill-session", "-t", name).Run() })

	pipe, err := NewControlPipe(name)
	require.NoError(t, err)
	defer pipe.Close()

	require.NoError(t, exec.Command("tmux", "new-window", "-d", "-t", name+":").Run())
	select {
	case n := <-pipe.Events():
		assert.NotZero(t, n.Kind)
	case <-time.After(3 * time.Second):
		require.FailNow(t, "no notification after new-window")
	}
}
