package tabsource

import (
	"fmt"
	"strings"
)

// Memory is an in-process tab source. It can advertise push, pull or both,
// and it records every outbound action it receives so callers can assert on
// what the engine asked for. Not safe for concurrent use: drive it from the
// loop goroutine.
type Memory struct {
	caps      Capability
	echo      bool
	available bool
	closed    bool

	tabs     []Tab
	selected string
	nextID   int

	nextToken Token
	subs      []memorySub
	watchers  map[Token]memoryWatch

	calls []string
}

type memorySub struct {
	token Token
	fn    func(Event)
}

type memoryWatch struct {
	id string
	fn func(string)
}

// MemoryOption configures a Memory source.
type MemoryOption func(*Memory)

// WithSyncEcho makes Select, Close and CreateTab apply immediately, emitting
// their events from inside the call the way a synchronous toolkit would.
func WithSyncEcho() MemoryOption {
	return func(m *Memory) { m.echo = true }
}

// NewMemory returns an empty, available source.
func NewMemory(caps Capability, opts ...MemoryOption) *Memory {
	m := &Memory{
		caps:      caps,
		available: true,
		watchers:  make(map[Token]memoryWatch),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Capabilities implements Source.
func (m *Memory) Capabilities() Capability { return m.caps }

// Available implements Source.
func (m *Memory) Available() bool { return m.available && !m.closed }

// SetAvailable simulates the container disappearing or coming back.
func (m *Memory) SetAvailable(v bool) { m.available = v }

// ContainerClosed reports whether CloseContainer was called.
func (m *Memory) ContainerClosed() bool { return m.closed }

// Snapshot implements Source.
func (m *Memory) Snapshot() Snapshot {
	if !m.Available() {
		return Snapshot{}
	}
	tabs := make([]Tab, len(m.tabs))
	for i, t := range m.tabs {
		t.Position = i
		tabs[i] = t
	}
	return Snapshot{Tabs: tabs, Selected: m.selected}
}

// Calls returns the outbound actions received so far, e.g. "select @2".
func (m *Memory) Calls() []string {
	return append([]string(nil), m.calls...)
}

// CallCount counts recorded calls with the given verb prefix.
func (m *Memory) CallCount(verb string) int {
	n := 0
	for _, c := range m.calls {
		if c == verb || strings.HasPrefix(c, verb+" ") {
			n++
		}
	}
	return n
}

// Select implements Source.
func (m *Memory) Select(id string) error {
	m.calls = append(m.calls, "select "+id)
	if !m.Available() {
		return ErrUnavailable
	}
	if m.index(id) < 0 {
		return fmt.Errorf("tab %s not found", id)
	}
	if m.echo {
		m.SetSelected(id)
	}
	return nil
}

// Close implements Source.
func (m *Memory) Close(id string) error {
	m.calls = append(m.calls, "close "+id)
	if !m.Available() {
		return ErrUnavailable
	}
	if m.index(id) < 0 {
		return fmt.Errorf("tab %s not found", id)
	}
	if m.echo {
		m.Remove(id)
	}
	return nil
}

// CreateTab implements Creator.
func (m *Memory) CreateTab() error {
	m.calls = append(m.calls, "create")
	if !m.Available() {
		return ErrUnavailable
	}
	if m.echo {
		m.Add("new")
	}
	return nil
}

// CloseContainer implements ContainerCloser.
func (m *Memory) CloseContainer() error {
	m.calls = append(m.calls, "close-container")
	m.closed = true
	return nil
}

// Subscribe implements Subscriber.
func (m *Memory) Subscribe(fn func(Event)) Token {
	m.nextToken++
	m.subs = append(m.subs, memorySub{token: m.nextToken, fn: fn})
	return m.nextToken
}

// Unsubscribe implements Subscriber.
func (m *Memory) Unsubscribe(tok Token) {
	for i, s := range m.subs {
		if s.token == tok {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (m *Memory) Subscribers() int { return len(m.subs) }

// WatchTitle implements TitleWatcher.
func (m *Memory) WatchTitle(id string, fn func(string)) Token {
	m.nextToken++
	m.watchers[m.nextToken] = memoryWatch{id: id, fn: fn}
	return m.nextToken
}

// UnwatchTitle implements TitleWatcher.
func (m *Memory) UnwatchTitle(tok Token) {
	delete(m.watchers, tok)
}

// Watchers reports the number of live title watchers.
func (m *Memory) Watchers() int { return len(m.watchers) }

func (m *Memory) emit(ev Event) {
	subs := append([]memorySub(nil), m.subs...)
	for _, s := range subs {
		s.fn(ev)
	}
}

func (m *Memory) index(id string) int {
	for i, t := range m.tabs {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Add appends a tab with a generated identity and returns it.
func (m *Memory) Add(title string) Tab {
	return m.Insert(len(m.tabs), title)
}

// Insert creates a tab at pos and emits Attached.
func (m *Memory) Insert(pos int, title string) Tab {
	m.nextID++
	t := Tab{ID: fmt.Sprintf("@%d", m.nextID), Title: title}
	if pos < 0 || pos > len(m.tabs) {
		pos = len(m.tabs)
	}
	m.tabs = append(m.tabs, Tab{})
	copy(m.tabs[pos+1:], m.tabs[pos:])
	m.tabs[pos] = t
	t.Position = pos
	m.emit(Event{Kind: Attached, Tab: t, Position: pos})
	return t
}

// Remove deletes a tab and emits Detached. Removing the selected tab clears
// the selection first.
func (m *Memory) Remove(id string) {
	i := m.index(id)
	if i < 0 {
		return
	}
	t := m.tabs[i]
	t.Position = i
	m.tabs = append(m.tabs[:i], m.tabs[i+1:]...)
	if m.selected == id {
		m.selected = ""
	}
	m.emit(Event{Kind: Detached, Tab: t, Position: i})
}

// Move repositions a tab and emits Reordered.
func (m *Memory) Move(id string, pos int) {
	i := m.index(id)
	if i < 0 {
		return
	}
	t := m.tabs[i]
	m.tabs = append(m.tabs[:i], m.tabs[i+1:]...)
	if pos < 0 || pos > len(m.tabs) {
		pos = len(m.tabs)
	}
	m.tabs = append(m.tabs, Tab{})
	copy(m.tabs[pos+1:], m.tabs[pos:])
	m.tabs[pos] = t
	t.Position = pos
	m.emit(Event{Kind: Reordered, Tab: t, Position: pos})
}

// SetSelected changes the selection and emits SelectionChanged. An empty id
// clears it.
func (m *Memory) SetSelected(id string) {
	var t Tab
	if id != "" {
		i := m.index(id)
		if i < 0 {
			return
		}
		t = m.tabs[i]
		t.Position = i
	}
	m.selected = id
	m.emit(Event{Kind: SelectionChanged, Tab: t})
}

// SetTitle renames a tab and notifies its title watchers. No push event is
// emitted: titles travel through watchers or snapshots only.
func (m *Memory) SetTitle(id, title string) {
	i := m.index(id)
	if i < 0 {
		return
	}
	m.tabs[i].Title = title
	for _, w := range m.watchers {
		if w.id == id {
			w.fn(title)
		}
	}
}

// SetAttention flips the attention flag without any notification.
func (m *Memory) SetAttention(id string, v bool) {
	if i := m.index(id); i >= 0 {
		m.tabs[i].NeedsAttention = v
	}
}
