// Package reconcile keeps a rowmodel.Model in agreement with a tab source and
// routes UI actions back to that source without feedback loops.
package reconcile

import (
	"log/slog"
	"time"

	"github.com/b/tabsync/pkg/eventloop"
	"github.com/b/tabsync/pkg/logging"
	"github.com/b/tabsync/pkg/perf"
	"github.com/b/tabsync/pkg/rowmodel"
	"github.com/b/tabsync/pkg/tabsource"
)

// DefaultRepollDelay is how soon a pull-mode controller looks again after
// requesting a new tab, instead of waiting for the next regular tick.
const DefaultRepollDelay = 50 * time.Millisecond

// TabCreator is the window/session manager that actually creates tabs. ref is
// the identity of the currently selected tab, "" when none.
type TabCreator interface {
	CreateNewTab(ref string) error
}

// TabCreatorFunc adapts a function to TabCreator.
type TabCreatorFunc func(ref string) error

func (f TabCreatorFunc) CreateNewTab(ref string) error { return f(ref) }

// Controller owns the row model and the adapter. Every method must be called
// on the loop goroutine that drives the scheduler.
type Controller struct {
	rows    *rowmodel.Model
	adapter *tabsource.Adapter
	sched   eventloop.Scheduler
	log     *slog.Logger

	guard    guard
	pending  []func()
	draining bool

	bindings map[string]*rowBinding

	creator     TabCreator
	repollDelay time.Duration
	repoll      eventloop.Timer

	onContainerClosed []func()
	closed            bool
}

// Option configures a Controller.
type Option func(*controllerOptions)

type controllerOptions struct {
	adapter     []tabsource.Option
	creator     TabCreator
	repollDelay time.Duration
	log         *slog.Logger
}

// WithMode forces the adapter's delivery mode.
func WithMode(m tabsource.Mode) Option {
	return func(o *controllerOptions) { o.adapter = append(o.adapter, tabsource.WithMode(m)) }
}

// WithPollInterval sets the pull-mode interval.
func WithPollInterval(d time.Duration) Option {
	return func(o *controllerOptions) { o.adapter = append(o.adapter, tabsource.WithPollInterval(d)) }
}

// WithRepollDelay sets the delay of the extra poll after a new-tab request.
func WithRepollDelay(d time.Duration) Option {
	return func(o *controllerOptions) {
		if d > 0 {
			o.repollDelay = d
		}
	}
}

// WithTabCreator routes new-tab requests to tc instead of the source.
func WithTabCreator(tc TabCreator) Option {
	return func(o *controllerOptions) { o.creator = tc }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *controllerOptions) { o.log = l }
}

// New creates an unbound controller.
func New(sched eventloop.Scheduler, opts ...Option) *Controller {
	o := controllerOptions{
		repollDelay: DefaultRepollDelay,
		log:         logging.ForComponent(logging.CompReconcile),
	}
	for _, opt := range opts {
		opt(&o)
	}
	c := &Controller{
		rows:        rowmodel.New(),
		sched:       sched,
		log:         o.log,
		bindings:    make(map[string]*rowBinding),
		creator:     o.creator,
		repollDelay: o.repollDelay,
	}
	c.adapter = tabsource.NewAdapter(sched, c, o.adapter...)
	return c
}

// Rows exposes the model for rendering. Callers must treat it as read-only.
func (c *Controller) Rows() *rowmodel.Model { return c.rows }

// Mode reports the delivery mode of the bound source.
func (c *Controller) Mode() tabsource.Mode { return c.adapter.Mode() }

// Propagating reports whether a propagation step is in progress.
func (c *Controller) Propagating() bool { return c.guard.held() }

// OnContainerClosed registers fn to run after the last row's close request
// closed the whole container.
func (c *Controller) OnContainerClosed(fn func()) {
	c.onContainerClosed = append(c.onContainerClosed, fn)
}

// Bind attaches src and resynchronizes. Re-binding the same source is a no-op.
func (c *Controller) Bind(src tabsource.Source) {
	if c.closed {
		return
	}
	if src == nil {
		c.Unbind()
		return
	}
	if c.adapter.Source() == src {
		return
	}
	c.unbindAllRows()
	c.adapter.Bind(src)
}

// Unbind detaches the source and empties the model. It may run while a step
// holds the guard (Close from an OnContainerClosed hook), so the reset does
// not go through step: nothing is left bound to propagate to.
func (c *Controller) Unbind() {
	c.unbindAllRows()
	c.adapter.Unbind()
	c.stopRepoll()
	c.pending = nil
	func() {
		defer logging.RecoverAndLog(c.log, "unbind")
		c.rows.ReplaceAll(nil)
	}()
}

// Close tears the controller down. No callback fires after it returns.
func (c *Controller) Close() {
	if c.closed {
		return
	}
	c.Unbind()
	c.closed = true
	c.log.Debug("controller_closed")
}

// step runs fn holding the guard for d. It reports false when the guard was
// already held and fn did not run. The guard is released on every exit path,
// including a recovered panic.
func (c *Controller) step(name string, d direction, fn func()) bool {
	release, ok := c.guard.acquire(d)
	if !ok {
		return false
	}
	defer release()
	defer logging.RecoverAndLog(c.log, name)
	fn()
	return true
}

// enqueue appends a source-originated change and applies the queue unless a
// step is already running; in that case it is applied right after.
func (c *Controller) enqueue(fn func()) {
	if c.closed {
		return
	}
	c.pending = append(c.pending, fn)
	c.drain()
}

func (c *Controller) drain() {
	if c.draining || c.guard.held() {
		return
	}
	c.draining = true
	defer func() { c.draining = false }()
	for len(c.pending) > 0 && !c.closed {
		fn := c.pending[0]
		c.pending = c.pending[1:]
		c.step("apply", fromSource, fn)
	}
}

// HandleEvent implements tabsource.Handler.
func (c *Controller) HandleEvent(ev tabsource.Event) {
	c.enqueue(func() { c.applyEvent(ev) })
}

// Resync implements tabsource.Handler.
func (c *Controller) Resync() {
	c.enqueue(c.resync)
}

// Poll implements tabsource.Handler. A tick that lands while a step is in
// progress is skipped; the next tick sees the result anyway.
func (c *Controller) Poll() {
	if c.closed {
		return
	}
	if c.guard.held() {
		c.log.Debug("poll_skipped", slog.String("guard", c.guard.dir.String()))
		return
	}
	c.step("poll", fromSource, c.reconcilePull)
}

func (c *Controller) applyEvent(ev tabsource.Event) {
	tab := ev.Tab
	switch ev.Kind {
	case tabsource.Attached:
		if _, ok := c.rows.RowFor(tab.ID); ok {
			c.log.Debug("attach_already_represented", slog.String("tab", tab.ID))
			return
		}
		c.rows.Insert(rowFromTab(tabsource.ModePush, tab, false), ev.Position)
		c.bindRow(tab.ID)

	case tabsource.Detached:
		row, ok := c.rows.RowFor(tab.ID)
		if !ok {
			return
		}
		c.unbindRow(tab.ID)
		c.rows.Remove(row.ID)

	case tabsource.SelectionChanged:
		row, ok := c.rows.RowFor(tab.ID)
		if !ok {
			c.rows.SetSelected("")
			return
		}
		c.rows.SetSelected(row.ID)

	case tabsource.Reordered:
		row, ok := c.rows.RowFor(tab.ID)
		if !ok {
			return
		}
		c.rows.Move(row.ID, ev.Position)
	}
}

// resync replaces the model with the current snapshot.
func (c *Controller) resync() {
	mode := c.adapter.Mode()
	snap := c.adapter.Snapshot()
	next := buildRows(mode, snap)

	replaced := c.rows.ReplaceAll(next)
	if !replaced && mode == tabsource.ModePush {
		for _, r := range next {
			c.rows.UpdateTitle(r.ID, r.Title)
		}
	}
	c.rows.SetSelected(selectedRowID(mode, snap))
	c.syncBindings(snap)

	c.log.Debug("resync",
		slog.String("mode", mode.String()),
		slog.Int("rows", c.rows.Len()),
		slog.Bool("replaced", replaced),
	)
}

// reconcilePull is one poll tick: snapshot, rebuild, and swap only when the
// ordered id sequence differs.
func (c *Controller) reconcilePull() {
	timer := perf.Start("reconcile.pull")
	defer timer.Stop()

	snap := c.adapter.Snapshot()
	next := buildRows(tabsource.ModePull, snap)
	if !sameIDs(c.rows.IDs(), next) {
		c.rows.ReplaceAll(next)
	}
	c.rows.SetSelected(selectedRowID(tabsource.ModePull, snap))
}

// SelectRow propagates a user selection to the source. Calls made while a
// step is running (including selection signals fired by the UI as a side
// effect of a source-originated update) are suppressed.
func (c *Controller) SelectRow(rowID string) {
	c.userAction("select_row", rowID, func(row rowmodel.Row) {
		if err := c.adapter.Select(row.TabID); err != nil {
			c.log.Warn("select_failed", slog.String("tab", row.TabID), slog.String("error", err.Error()))
		}
	})
}

// CloseRow asks the source to close the row's tab. The row stays until the
// source confirms. Closing the last row closes the whole container.
func (c *Controller) CloseRow(rowID string) {
	c.userAction("close_row", rowID, func(row rowmodel.Row) {
		if c.rows.Len() == 1 {
			if err := c.adapter.CloseContainer(); err != nil {
				c.log.Warn("close_container_failed", slog.String("error", err.Error()))
				return
			}
			for _, fn := range c.onContainerClosed {
				fn()
			}
			return
		}
		if err := c.adapter.Close(row.TabID); err != nil {
			c.log.Warn("close_failed", slog.String("tab", row.TabID), slog.String("error", err.Error()))
		}
	})
}

func (c *Controller) userAction(name, rowID string, fn func(rowmodel.Row)) {
	if c.closed {
		return
	}
	row, ok := c.rows.Row(rowID)
	if !ok {
		c.log.Debug("row_missing", slog.String("action", name), slog.String("row", rowID))
		return
	}
	ran := c.step(name, fromUI, func() {
		if _, ok := c.adapter.Lookup(row.TabID); !ok {
			c.log.Debug("tab_missing", slog.String("action", name), slog.String("tab", row.TabID))
			return
		}
		fn(row)
	})
	if !ran {
		c.log.Debug("action_suppressed", slog.String("action", name), slog.String("row", rowID))
		return
	}
	c.drain()
}

// RequestNewTab hands tab creation to the TabCreator (or the source when no
// creator is configured). Pull-mode controllers poll again shortly after.
func (c *Controller) RequestNewTab() {
	if c.closed || !c.adapter.Bound() {
		return
	}
	ran := c.step("new_tab", fromUI, func() {
		ref := ""
		if sel, ok := c.rows.Selected(); ok {
			ref = sel.TabID
		}
		var err error
		if c.creator != nil {
			err = c.creator.CreateNewTab(ref)
		} else {
			err = c.adapter.RequestNewTab()
		}
		if err != nil {
			c.log.Warn("new_tab_failed", slog.String("error", err.Error()))
		}
	})
	if !ran {
		c.log.Debug("action_suppressed", slog.String("action", "new_tab"))
		return
	}
	c.drain()
	if c.adapter.Mode() == tabsource.ModePull {
		c.scheduleRepoll()
	}
}

func (c *Controller) scheduleRepoll() {
	c.stopRepoll()
	c.repoll = c.sched.After(c.repollDelay, func() {
		c.repoll = nil
		c.Poll()
	})
}

func (c *Controller) stopRepoll() {
	if c.repoll != nil {
		c.repoll.Stop()
		c.repoll = nil
	}
}
