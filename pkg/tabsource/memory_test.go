package tabsource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryEmitsInOrder(t *testing.T) {
	m := NewMemory(CapPush)
	var kinds []EventKind
	m.Subscribe(func(ev Event) { kinds = append(kinds, ev.Kind) })

	a := m.Add("a")
	m.Add("b")
	m.Move(a.ID, NoPosition)
	m.SetSelected(a.ID)
	m.Remove(a.ID)

	assert.Equal(t, []EventKind{Attached, Attached, Reordered, SelectionChanged, Detached}, kinds)
	snap := m.Snapshot()
	require.Len(t, snap.Tabs, 1)
	assert.Equal(t, "b", snap.Tabs[0].Title)
	assert.Empty(t, snap.Selected, "removing the selected tab clears the selection")
}

func TestMemoryRecordsWithoutEcho(t *testing.T) {
	m := NewMemory(CapPull)
	a := m.Add("a")

	require.NoError(t, m.Select(a.ID))
	require.NoError(t, m.Close(a.ID))
	require.NoError(t, m.CreateTab())
	assert.Error(t, m.Select("@9"))

	assert.Equal(t, []string{"select @1", "close @1", "create", "select @9"}, m.Calls())
	assert.Equal(t, 2, m.CallCount("select"))
	assert.Len(t, m.Snapshot().Tabs, 1)
	assert.Empty(t, m.Snapshot().Selected)
}

func TestMemoryEchoAppliesImmediately(t *testing.T) {
	m := NewMemory(CapPush, WithSyncEcho())
	a := m.Add("a")
	m.Add("b")

	require.NoError(t, m.Select(a.ID))
	assert.Equal(t, a.ID, m.Snapshot().Selected)
	require.NoError(t, m.Close(a.ID))
	require.NoError(t, m.CreateTab())

	var got []string
	for _, tab := range m.Snapshot().Tabs {
		got = append(got, tab.Title)
	}
	assert.Equal(t, []string{"b", "new"}, got)
}

func TestMemoryTitleWatchers(t *testing.T) {
	m := NewMemory(CapPush)
	a := m.Add("a")
	b := m.Add("b")

	var seen []string
	tok := m.WatchTitle(a.ID, func(title string) { seen = append(seen, title) })
	m.SetTitle(b.ID, "ignored")
	m.SetTitle(a.ID, "vim")
	m.UnwatchTitle(tok)
	m.SetTitle(a.ID, "zsh")

	assert.Equal(t, []string{"vim"}, seen)
	assert.Zero(t, m.Watchers())
}

func TestMemoryClosedContainerIsUnavailable(t *testing.T) {
	m := NewMemory(CapPull)
	m.Add("a")
	require.NoError(t, m.CloseContainer())

	assert.False(t, m.Available())
	assert.Empty(t, m.Snapshot().Tabs)
	assert.ErrorIs(t, m.Select("@1"), ErrUnavailable)
}
