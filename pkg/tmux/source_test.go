package tmux

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/b/tabsync/pkg/tabsource"
)

// fakeServer serves list-windows from an editable window list.
type fakeServer struct {
	wins  []Window
	gone  bool
	calls []string
}

func (f *fakeServer) run(_ context.Context, args ...string) ([]byte, error) {
	f.calls = append(f.calls, strings.Join(args, " "))
	if f.gone {
		return nil, ErrNoSession
	}
	if args[0] != "list-windows" {
		return nil, nil
	}
	var b strings.Builder
	for _, w := range f.wins {
		fmt.Fprintf(&b, "%s\x1f%d\x1f%s\x1f%s\x1f%s\x1f%s\x1f0\n",
			w.ID, w.Index, w.Name, flag(w.Active), flag(w.Activity), flag(w.Bell))
	}
	return []byte(b.String()), nil
}

func flag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func newTestSource(t *testing.T, wins ...Window) (*Source, *fakeServer) {
	t.Helper()
	srv := &fakeServer{wins: wins}
	client := NewClient("work", WithRunner(srv.run))
	src := NewSource(client, func(fn func()) { fn() })
	return src, srv
}

// push feeds the current server state through the same path the watcher uses.
func push(src *Source) {
	wins, err := src.client.ListWindows(context.Background())
	src.apply(src.seq.Add(1), wins, err)
}

func TestSourcePullSnapshot(t *testing.T) {
	src, _ := newTestSource(t,
		Window{ID: "@1", Index: 0, Name: "zsh"},
		Window{ID: "@2", Index: 1, Name: "vim", Active: true, Bell: true},
	)

	assert.Equal(t, tabsource.CapPull, src.Capabilities())
	snap := src.Snapshot()
	require.Len(t, snap.Tabs, 2)
	assert.Equal(t, "@2", snap.Selected)
	assert.True(t, snap.Tabs[1].NeedsAttention)
	assert.Equal(t, 1, snap.Tabs[1].Position)
}

func TestSourceAttentionFlags(t *testing.T) {
	srv := &fakeServer{wins: []Window{{ID: "@1", Name: "a", Activity: true}}}
	src := NewSource(NewClient("work", WithRunner(srv.run)), func(fn func()) { fn() },
		WithAttention(Attention{Bell: true}))
	assert.False(t, src.Snapshot().Tabs[0].NeedsAttention)
}

func TestSourcePushEmitsOrderedEvents(t *testing.T) {
	src, srv := newTestSource(t,
		Window{ID: "@1", Index: 0, Name: "zsh", Active: true},
		Window{ID: "@2", Index: 1, Name: "vim"},
	)
	var events []tabsource.Event
	src.Subscribe(func(ev tabsource.Event) { events = append(events, ev) })
	var titles []string
	src.WatchTitle("@2", func(title string) { titles = append(titles, title) })

	srv.wins = []Window{
		{ID: "@2", Index: 0, Name: "nvim", Active: true},
		{ID: "@3", Index: 1, Name: "htop"},
	}
	push(src)

	kinds := make([]string, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind.String() + " " + ev.Tab.ID
	}
	assert.Equal(t, []string{"detached @1", "attached @3", "selection_changed @2"}, kinds)
	assert.Equal(t, []string{"nvim"}, titles)

	snap := src.Snapshot()
	assert.Equal(t, []string{"@2", "@3"}, []string{snap.Tabs[0].ID, snap.Tabs[1].ID})
}

func TestSourceSnapshotWhileSubscribedUsesDeliveredState(t *testing.T) {
	src, srv := newTestSource(t, Window{ID: "@1", Name: "a", Active: true})
	src.Subscribe(func(tabsource.Event) {})

	srv.wins = append(srv.wins, Window{ID: "@2", Index: 1, Name: "b"})
	assert.Len(t, src.Snapshot().Tabs, 1, "not yet delivered")

	push(src)
	assert.Len(t, src.Snapshot().Tabs, 2)
}

func TestSourceDropsStaleListing(t *testing.T) {
	src, srv := newTestSource(t, Window{ID: "@1", Name: "a"})
	var events []tabsource.Event
	src.Subscribe(func(ev tabsource.Event) { events = append(events, ev) })

	staleSeq := src.seq.Add(1)
	staleWins := append([]Window(nil), srv.wins...)
	srv.wins = append(srv.wins, Window{ID: "@2", Index: 1, Name: "b"})
	push(src)
	src.apply(staleSeq, staleWins, nil)

	require.Len(t, events, 1)
	assert.Len(t, src.Snapshot().Tabs, 2)
}

func TestSourceSessionGone(t *testing.T) {
	src, srv := newTestSource(t, Window{ID: "@1", Name: "a"}, Window{ID: "@2", Index: 1, Name: "b"})
	var detached int
	src.Subscribe(func(ev tabsource.Event) {
		if ev.Kind == tabsource.Detached {
			detached++
		}
	})

	srv.gone = true
	push(src)

	assert.Equal(t, 2, detached)
	assert.False(t, src.Available())
}

func TestSourceOutboundCommands(t *testing.T) {
	src, srv := newTestSource(t)
	require.NoError(t, src.Select("@1"))
	require.NoError(t, src.Close("@1"))
	require.NoError(t, src.CreateTab())
	require.NoError(t, src.CloseContainer())

	assert.Equal(t, []string{
		"select-window -t @1",
		"kill-window -t @1",
		"new-window -t work:",
		"kill-session -t work",
	}, srv.calls)
}

func TestSourceUnsubscribeResetsBaseline(t *testing.T) {
	src, srv := newTestSource(t, Window{ID: "@1", Name: "a"})
	tok := src.Subscribe(func(tabsource.Event) {})
	src.Unsubscribe(tok)

	srv.wins = append(srv.wins, Window{ID: "@2", Index: 1, Name: "b"})
	assert.Len(t, src.Snapshot().Tabs, 2, "unsubscribed snapshots list directly")
}
