package tabsource

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/b/tabsync/pkg/eventloop"
	"github.com/b/tabsync/pkg/logging"
)

// DefaultPollInterval is the pull-mode snapshot interval.
const DefaultPollInterval = 500 * time.Millisecond

// Mode selects how the adapter follows a source.
type Mode int

const (
	// ModeNone is reported while nothing is bound.
	ModeNone Mode = iota
	// ModeAuto follows push events when the source offers them, else polls.
	ModeAuto
	ModePush
	ModePull
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModePush:
		return "push"
	case ModePull:
		return "pull"
	}
	return "none"
}

// ParseMode maps a config string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "auto":
		return ModeAuto, nil
	case "push":
		return ModePush, nil
	case "pull":
		return ModePull, nil
	}
	return ModeNone, fmt.Errorf("unknown sync mode %q", s)
}

// Handler consumes what the adapter observes. All calls happen on the loop.
type Handler interface {
	// HandleEvent receives push events in source-emission order.
	HandleEvent(Event)
	// Resync asks for a full replace-all reconciliation.
	Resync()
	// Poll is a pull-mode tick.
	Poll()
}

// Adapter binds exactly one Source at a time and normalizes push and pull
// delivery into Handler calls. It must only be used from the loop goroutine.
type Adapter struct {
	handler   Handler
	sched     eventloop.Scheduler
	requested Mode
	interval  time.Duration
	log       *slog.Logger

	source     Source
	active     Mode
	generation uint64
	token      Token
	subscribed bool
	available  bool
	poller     eventloop.Timer
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithMode forces push or pull delivery. ModeAuto is the default.
func WithMode(m Mode) Option {
	return func(a *Adapter) { a.requested = m }
}

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) { a.log = l }
}

// NewAdapter creates an unbound adapter.
func NewAdapter(sched eventloop.Scheduler, h Handler, opts ...Option) *Adapter {
	a := &Adapter{
		handler:   h,
		sched:     sched,
		requested: ModeAuto,
		interval:  DefaultPollInterval,
		log:       logging.ForComponent(logging.CompAdapter),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Bind attaches src, releasing any previous source first, then asks the
// handler for a full resync. Binding the source that is already bound does
// nothing. Sources are compared by identity, so they should be pointers.
func (a *Adapter) Bind(src Source) {
	if src == nil {
		a.Unbind()
		return
	}
	if a.source == src {
		return
	}
	a.Unbind()

	a.source = src
	a.generation++
	a.active = a.pickMode(src)

	switch a.active {
	case ModePush:
		gen := a.generation
		a.token = src.(Subscriber).Subscribe(func(ev Event) { a.deliver(gen, ev) })
		a.subscribed = true
		a.available = src.Available()
		a.poller = a.sched.Every(a.interval, func() { a.checkAvailable(gen) })
	case ModePull:
		gen := a.generation
		a.poller = a.sched.Every(a.interval, func() { a.tick(gen) })
	}

	a.log.Info("source_bound",
		slog.String("mode", a.active.String()),
		slog.String("capabilities", src.Capabilities().String()),
	)
	a.handler.Resync()
}

// Unbind releases subscriptions and timers. Safe to call when unbound.
func (a *Adapter) Unbind() {
	if a.source == nil {
		return
	}
	if a.subscribed {
		if sub, ok := a.source.(Subscriber); ok {
			sub.Unsubscribe(a.token)
		}
		a.subscribed = false
	}
	if a.poller != nil {
		a.poller.Stop()
		a.poller = nil
	}
	a.source = nil
	a.active = ModeNone
	a.generation++
	a.log.Info("source_unbound")
}

func (a *Adapter) pickMode(src Source) Mode {
	_, canSubscribe := src.(Subscriber)
	push := canSubscribe && src.Capabilities().Has(CapPush)

	switch a.requested {
	case ModePull:
		return ModePull
	case ModePush:
		if !push {
			a.log.Warn("push_unsupported_falling_back_to_pull",
				slog.String("capabilities", src.Capabilities().String()))
			return ModePull
		}
		return ModePush
	}
	if push {
		return ModePush
	}
	return ModePull
}

func (a *Adapter) deliver(gen uint64, ev Event) {
	if gen != a.generation || a.source == nil {
		return
	}
	a.handler.HandleEvent(ev)
}

// checkAvailable resyncs a push source whose availability flipped. Push
// sources are not required to emit detaches when they go away.
func (a *Adapter) checkAvailable(gen uint64) {
	if gen != a.generation || a.source == nil {
		return
	}
	now := a.source.Available()
	if now == a.available {
		return
	}
	a.available = now
	a.log.Info("source_availability_changed", slog.Bool("available", now))
	a.handler.Resync()
}

func (a *Adapter) tick(gen uint64) {
	if gen != a.generation || a.source == nil {
		return
	}
	a.handler.Poll()
}

// Bound reports whether a source is attached.
func (a *Adapter) Bound() bool { return a.source != nil }

// Source returns the bound source, or nil.
func (a *Adapter) Source() Source { return a.source }

// Mode returns the delivery mode in effect, ModeNone when unbound.
func (a *Adapter) Mode() Mode { return a.active }

// PollInterval returns the pull-mode interval.
func (a *Adapter) PollInterval() time.Duration { return a.interval }

func (a *Adapter) usable() bool {
	return a.source != nil && a.source.Available()
}

// Snapshot returns the current tabs; empty when unbound or unavailable.
func (a *Adapter) Snapshot() Snapshot {
	if !a.usable() {
		return Snapshot{}
	}
	return a.source.Snapshot()
}

// Lookup resolves a tab by identity against the current snapshot.
func (a *Adapter) Lookup(id string) (Tab, bool) {
	if id == "" {
		return Tab{}, false
	}
	return a.Snapshot().Find(id)
}

// Select asks the source to select id. No-op when unbound or unavailable.
func (a *Adapter) Select(id string) error {
	if !a.usable() {
		return nil
	}
	if err := a.source.Select(id); err != nil {
		return fmt.Errorf("select %s: %w", id, err)
	}
	return nil
}

// Close asks the source to close id. No-op when unbound or unavailable.
func (a *Adapter) Close(id string) error {
	if !a.usable() {
		return nil
	}
	if err := a.source.Close(id); err != nil {
		return fmt.Errorf("close %s: %w", id, err)
	}
	return nil
}

// RequestNewTab asks a Creator source for a new tab.
func (a *Adapter) RequestNewTab() error {
	if !a.usable() {
		return nil
	}
	c, ok := a.source.(Creator)
	if !ok {
		a.log.Debug("source_cannot_create_tabs")
		return nil
	}
	if err := c.CreateTab(); err != nil {
		return fmt.Errorf("create tab: %w", err)
	}
	return nil
}

// CloseContainer closes the whole container. Sources without that ability
// fall back to closing their tabs one by one.
func (a *Adapter) CloseContainer() error {
	if !a.usable() {
		return nil
	}
	if c, ok := a.source.(ContainerCloser); ok {
		if err := c.CloseContainer(); err != nil {
			return fmt.Errorf("close container: %w", err)
		}
		return nil
	}
	for _, t := range a.source.Snapshot().Tabs {
		if err := a.source.Close(t.ID); err != nil {
			return fmt.Errorf("close %s: %w", t.ID, err)
		}
	}
	return nil
}

// WatchTitle observes one tab's title when the source supports it. The
// returned cancel is nil when it does not.
func (a *Adapter) WatchTitle(id string, fn func(title string)) (cancel func()) {
	if a.source == nil {
		return nil
	}
	w, ok := a.source.(TitleWatcher)
	if !ok {
		return nil
	}
	gen := a.generation
	token := w.WatchTitle(id, func(title string) {
		if gen != a.generation {
			return
		}
		fn(title)
	})
	return func() { w.UnwatchTitle(token) }
}
