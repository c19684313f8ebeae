package reconcile

import (
	"log/slog"

	"github.com/b/tabsync/pkg/tabsource"
)

// rowBinding keeps one row's title live by watching its tab directly.
type rowBinding struct {
	tabID  string
	cancel func()
}

func (b *rowBinding) close() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

// bindRow starts a title watch for tabID. Only push-mode rows are bound: in
// pull mode the title is part of the row id and polling already covers it.
func (c *Controller) bindRow(tabID string) {
	if c.adapter.Mode() != tabsource.ModePush {
		return
	}
	if _, ok := c.bindings[tabID]; ok {
		return
	}
	cancel := c.adapter.WatchTitle(tabID, func(title string) {
		c.titleChanged(tabID, title)
	})
	if cancel == nil {
		return
	}
	c.bindings[tabID] = &rowBinding{tabID: tabID, cancel: cancel}
}

func (c *Controller) unbindRow(tabID string) {
	if b, ok := c.bindings[tabID]; ok {
		b.close()
		delete(c.bindings, tabID)
	}
}

func (c *Controller) unbindAllRows() {
	for id, b := range c.bindings {
		b.close()
		delete(c.bindings, id)
	}
}

// syncBindings drops bindings for tabs missing from snap and adds the rest.
func (c *Controller) syncBindings(snap tabsource.Snapshot) {
	live := make(map[string]bool, len(snap.Tabs))
	for _, t := range snap.Tabs {
		live[t.ID] = true
	}
	for id := range c.bindings {
		if !live[id] {
			c.unbindRow(id)
		}
	}
	for _, t := range snap.Tabs {
		c.bindRow(t.ID)
	}
}

// titleChanged is the binding callback; it goes through the queue so it is
// ordered with push events and never applied mid-step.
func (c *Controller) titleChanged(tabID, title string) {
	c.enqueue(func() {
		row, ok := c.rows.RowFor(tabID)
		if !ok {
			c.log.Debug("title_for_missing_row", slog.String("tab", tabID))
			return
		}
		c.rows.UpdateTitle(row.ID, title)
	})
}

// Bindings reports how many rows currently have a live title binding.
func (c *Controller) Bindings() int { return len(c.bindings) }
