package daemon

import (
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b/tabsync/pkg/rowmodel"
)

// shortRuntimeDir keeps socket paths under the unix path length limit,
// which t.TempDir can exceed.
func shortRuntimeDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "tsd")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	t.Setenv("TABSYNC_RUNTIME_DIR", dir)
	return dir
}

type actionLog struct {
	mu  sync.Mutex
	got []ActionPayload
}

func (l *actionLog) add(_ string, a ActionPayload) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.got = append(l.got, a)
}

func (l *actionLog) snapshot() []ActionPayload {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ActionPayload(nil), l.got...)
}

func startServer(t *testing.T, rows []rowmodel.Row) (*Server, *actionLog) {
	t.Helper()
	shortRuntimeDir(t)
	srv := NewServer("work")
	actions := &actionLog{}
	srv.RowsNeeded = func() *RowsPayload { return NewRowsPayload("push", rows) }
	srv.OnAction = actions.add
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)
	return srv, actions
}

func dial(t *testing.T, id string) *Client {
	t.Helper()
	c, err := Dial("work", id)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSubscribeReceivesCurrentRows(t *testing.T) {
	rows := []rowmodel.Row{
		{ID: "@1", TabID: "@1", Title: "editor", Position: 0, Selected: true},
		{ID: "@2", TabID: "@2", Title: "logs", Position: 1, NeedsAttention: true},
	}
	srv, _ := startServer(t, rows)
	c := dial(t, "sidebar-1")

	got, err := c.NextRows()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.SequenceNum)
	assert.Equal(t, "push", got.Mode)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, "editor", got.Rows[0].Title)
	assert.True(t, got.Rows[0].Selected)
	assert.True(t, got.Rows[1].NeedsAttention)

	assert.Eventually(t, func() bool { return srv.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestBroadcastReachesEveryClientInOrder(t *testing.T) {
	srv, _ := startServer(t, nil)
	a := dial(t, "a")
	b := dial(t, "b")
	for _, c := range []*Client{a, b} {
		_, err := c.NextRows()
		require.NoError(t, err)
	}
	require.Eventually(t, func() bool { return srv.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	srv.BroadcastRows(NewRowsPayload("pull", []rowmodel.Row{{ID: "x", TabID: "x", Title: "one"}}))
	srv.BroadcastRows(NewRowsPayload("pull", []rowmodel.Row{{ID: "y", TabID: "y", Title: "two"}}))

	for _, c := range []*Client{a, b} {
		first, err := c.NextRows()
		require.NoError(t, err)
		second, err := c.NextRows()
		require.NoError(t, err)
		assert.Equal(t, "one", first.Rows[0].Title)
		assert.Equal(t, "two", second.Rows[0].Title)
		assert.Less(t, first.SequenceNum, second.SequenceNum)
	}
}

func TestActionsAreForwarded(t *testing.T) {
	_, actions := startServer(t, nil)
	c := dial(t, "s")
	_, err := c.NextRows()
	require.NoError(t, err)

	require.NoError(t, c.Act(ActionSelect, "@2"))
	require.NoError(t, c.Act(ActionNewTab, ""))

	require.Eventually(t, func() bool { return len(actions.snapshot()) == 2 }, time.Second, 10*time.Millisecond)
	got := actions.snapshot()
	assert.Equal(t, ActionPayload{Action: ActionSelect, RowID: "@2"}, got[0])
	assert.Equal(t, ActionNewTab, got[1].Action)
}

func TestInvalidActionGetsErrorFrame(t *testing.T) {
	_, actions := startServer(t, nil)
	c := dial(t, "s")
	_, err := c.NextRows()
	require.NoError(t, err)

	// Bypass client-side validation.
	require.NoError(t, c.send(MsgAction, ActionPayload{Action: "explode"}))
	_, err = c.NextRows()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")
	assert.Empty(t, actions.snapshot())
}

func TestPingPong(t *testing.T) {
	startServer(t, nil)
	c := dial(t, "s")
	_, err := c.NextRows()
	require.NoError(t, err)

	require.NoError(t, c.Ping())
	msg, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, MsgPong, msg.Type)
}

func TestSecondServerForSessionIsRejected(t *testing.T) {
	startServer(t, nil)
	other := NewServer("work")
	err := other.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestStopRemovesSocketAndPidfile(t *testing.T) {
	srv, _ := startServer(t, nil)
	_, err := os.Stat(srv.GetSocketPath())
	require.NoError(t, err)

	srv.Stop()
	_, err = os.Stat(srv.GetSocketPath())
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(PidPath("work"))
	assert.True(t, os.IsNotExist(err))

	_, err = Dial("work", "late")
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestStalePidfileIsReclaimed(t *testing.T) {
	shortRuntimeDir(t)
	// No process has pid 0x7ffffffe on a sane system.
	require.NoError(t, os.WriteFile(PidPath("work"), []byte("2147483646"), 0644))

	srv := NewServer("work")
	require.NoError(t, srv.Start())
	defer srv.Stop()
}

func TestActionValidate(t *testing.T) {
	tests := []struct {
		action  ActionPayload
		wantErr bool
	}{
		{ActionPayload{Action: ActionSelect, RowID: "r"}, false},
		{ActionPayload{Action: ActionClose, RowID: "r"}, false},
		{ActionPayload{Action: ActionNewTab}, false},
		{ActionPayload{Action: ActionSelect}, true},
		{ActionPayload{Action: ActionClose}, true},
		{ActionPayload{Action: "rename", RowID: "r"}, true},
	}
	for _, tt := range tests {
		err := tt.action.Validate()
		if tt.wantErr {
			assert.Error(t, err, "%+v", tt.action)
		} else {
			assert.NoError(t, err, "%+v", tt.action)
		}
	}
}

func TestEnqueueRacingDisconnect(t *testing.T) {
	srv := NewServer("work")
	for i := 0; i < 50; i++ {
		a, b := net.Pipe()
		client := &ClientInfo{ID: "c", Conn: a, out: make(chan Message, sendQueueLen)}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				srv.enqueue(client, Message{Type: MsgPong})
			}
		}()
		go func() {
			defer wg.Done()
			client.close()
		}()
		wg.Wait()
		b.Close()

		assert.True(t, client.offer(Message{Type: MsgPong}), "closed clients drop messages quietly")
		client.close()
	}
}

func TestOfferReportsFullQueue(t *testing.T) {
	a, b := net.Pipe()
	defer b.Close()
	client := &ClientInfo{ID: "c", Conn: a, out: make(chan Message, 1)}
	defer client.close()

	assert.True(t, client.offer(Message{Type: MsgPong}))
	assert.False(t, client.offer(Message{Type: MsgPong}))
}
