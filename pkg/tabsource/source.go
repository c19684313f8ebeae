// Package tabsource defines the contract of an authoritative tab collection
// and the Adapter that binds one such source to the reconciliation engine.
package tabsource

import "errors"

// ErrUnavailable is returned by sources whose backing container is gone.
var ErrUnavailable = errors.New("tab source unavailable")

// Tab is a point-in-time view of one tab. The source owns the tab; holders
// keep only the ID and resolve anything else through a fresh lookup.
type Tab struct {
	ID             string
	Title          string
	NeedsAttention bool
	Position       int
}

// Snapshot is the ordered tab list plus the selected tab ID ("" for none).
type Snapshot struct {
	Tabs     []Tab
	Selected string
}

// Find returns the tab with the given ID.
func (s Snapshot) Find(id string) (Tab, bool) {
	for _, t := range s.Tabs {
		if t.ID == id {
			return t, true
		}
	}
	return Tab{}, false
}

// Capability advertises how a source delivers changes.
type Capability uint8

const (
	CapPull Capability = 1 << iota
	CapPush
)

func (c Capability) Has(other Capability) bool { return c&other == other }

func (c Capability) String() string {
	switch {
	case c.Has(CapPush | CapPull):
		return "push+pull"
	case c.Has(CapPush):
		return "push"
	case c.Has(CapPull):
		return "pull"
	}
	return "none"
}

// Source is the minimal tab-source contract. Every source can be snapshotted;
// push delivery is an optional extra (Subscriber).
type Source interface {
	Capabilities() Capability
	Available() bool
	Snapshot() Snapshot
	Select(id string) error
	Close(id string) error
}

// Token identifies a subscription for later removal.
type Token uint64

// EventKind enumerates push events.
type EventKind int

const (
	Attached EventKind = iota
	Detached
	SelectionChanged
	Reordered
)

func (k EventKind) String() string {
	switch k {
	case Attached:
		return "attached"
	case Detached:
		return "detached"
	case SelectionChanged:
		return "selection_changed"
	case Reordered:
		return "reordered"
	}
	return "unknown"
}

// NoPosition asks for an appended insert.
const NoPosition = -1

// Event is one push notification. For SelectionChanged an empty Tab.ID means
// the selection was cleared. Position is used by Attached and Reordered.
type Event struct {
	Kind     EventKind
	Tab      Tab
	Position int
}

// Subscriber is implemented by push-capable sources. Handlers must be invoked
// on the engine's loop, in emission order. A source that goes away without
// emitting detaches is still caught: the adapter samples Available on the
// poll interval and resyncs when it flips.
type Subscriber interface {
	Subscribe(handler func(Event)) Token
	Unsubscribe(Token)
}

// TitleWatcher lets a single row observe its tab's title without a full
// reconciliation. fn receives the new title.
type TitleWatcher interface {
	WatchTitle(id string, fn func(title string)) Token
	UnwatchTitle(Token)
}

// Creator is implemented by sources that can create a tab themselves.
type Creator interface {
	CreateTab() error
}

// ContainerCloser is implemented by sources whose container (window, session)
// can be closed as a whole.
type ContainerCloser interface {
	CloseContainer() error
}
