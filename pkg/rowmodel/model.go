// Package rowmodel holds the UI-facing projection of a tab collection: an
// ordered list of rows with a bidirectional index between row and tab
// identities. It has no knowledge of where tabs come from.
package rowmodel

import "slices"

// Row is one tab's projection. TabID is a lookup key, not a reference: the
// tab itself is always resolved through the tab source.
type Row struct {
	ID             string
	TabID          string
	Title          string
	Position       int
	Selected       bool
	NeedsAttention bool
}

// ChangeKind describes a model mutation.
type ChangeKind int

const (
	Reset ChangeKind = iota
	Inserted
	Removed
	Moved
	Selected
	Retitled
)

func (k ChangeKind) String() string {
	switch k {
	case Reset:
		return "reset"
	case Inserted:
		return "inserted"
	case Removed:
		return "removed"
	case Moved:
		return "moved"
	case Selected:
		return "selected"
	case Retitled:
		return "retitled"
	}
	return "unknown"
}

// Change is delivered to subscribers after the mutation has been applied.
//
//   - Inserted, Retitled: Row and Position are the affected row.
//   - Removed: Row is the removed row, Position where it was.
//   - Moved: From and Position are the old and new index.
//   - Selected: Row is the newly selected row (zero when cleared), From the
//     previously selected index or -1.
type Change struct {
	Kind     ChangeKind
	Row      Row
	Position int
	From     int
}

// Token identifies a subscription.
type Token uint64

type subscriber struct {
	token Token
	fn    func(Change)
}

// Model is an ordered row container. Not safe for concurrent use.
type Model struct {
	rows  []Row
	byID  map[string]int
	byTab map[string]string

	nextToken Token
	subs      []subscriber
}

// New returns an empty model.
func New() *Model {
	return &Model{
		byID:  make(map[string]int),
		byTab: make(map[string]string),
	}
}

// Subscribe registers fn for every change.
func (m *Model) Subscribe(fn func(Change)) Token {
	m.nextToken++
	m.subs = append(m.subs, subscriber{token: m.nextToken, fn: fn})
	return m.nextToken
}

// Unsubscribe removes a subscription; unknown tokens are ignored.
func (m *Model) Unsubscribe(tok Token) {
	for i, s := range m.subs {
		if s.token == tok {
			m.subs = append(m.subs[:i], m.subs[i+1:]...)
			return
		}
	}
}

func (m *Model) notify(c Change) {
	subs := append([]subscriber(nil), m.subs...)
	for _, s := range subs {
		s.fn(c)
	}
}

func (m *Model) reindex() {
	clear(m.byID)
	clear(m.byTab)
	for i := range m.rows {
		m.rows[i].Position = i
		m.byID[m.rows[i].ID] = i
		m.byTab[m.rows[i].TabID] = m.rows[i].ID
	}
}

// Len returns the row count.
func (m *Model) Len() int { return len(m.rows) }

// Rows returns a copy of all rows in order.
func (m *Model) Rows() []Row { return slices.Clone(m.rows) }

// IDs returns the ordered row id sequence.
func (m *Model) IDs() []string {
	ids := make([]string, len(m.rows))
	for i, r := range m.rows {
		ids[i] = r.ID
	}
	return ids
}

// Row looks a row up by row id.
func (m *Model) Row(id string) (Row, bool) {
	i, ok := m.byID[id]
	if !ok {
		return Row{}, false
	}
	return m.rows[i], true
}

// RowFor looks a row up by tab identity.
func (m *Model) RowFor(tabID string) (Row, bool) {
	id, ok := m.byTab[tabID]
	if !ok {
		return Row{}, false
	}
	return m.Row(id)
}

// RowAt returns the row at position.
func (m *Model) RowAt(pos int) (Row, bool) {
	if pos < 0 || pos >= len(m.rows) {
		return Row{}, false
	}
	return m.rows[pos], true
}

// Selected returns the selected row, if any.
func (m *Model) Selected() (Row, bool) {
	for _, r := range m.rows {
		if r.Selected {
			return r, true
		}
	}
	return Row{}, false
}

// ReplaceAll swaps in rows. When the ordered id sequence is unchanged the
// model is left untouched, nothing is signalled and false is returned.
// At most one incoming row may be selected; extra selections are cleared.
func (m *Model) ReplaceAll(rows []Row) bool {
	if slices.EqualFunc(m.rows, rows, func(a, b Row) bool { return a.ID == b.ID }) {
		return false
	}
	next := make([]Row, 0, len(rows))
	seenTab := make(map[string]bool, len(rows))
	seenID := make(map[string]bool, len(rows))
	selected := false
	for _, r := range rows {
		if seenTab[r.TabID] || seenID[r.ID] {
			continue
		}
		seenTab[r.TabID] = true
		seenID[r.ID] = true
		if r.Selected {
			if selected {
				r.Selected = false
			}
			selected = true
		}
		next = append(next, r)
	}
	m.rows = next
	m.reindex()
	m.notify(Change{Kind: Reset, From: -1})
	return true
}

// Insert adds row at pos, or appends when pos is out of range. A row whose id
// or tab is already present is ignored and false returned.
func (m *Model) Insert(row Row, pos int) bool {
	if _, ok := m.byID[row.ID]; ok {
		return false
	}
	if _, ok := m.byTab[row.TabID]; ok {
		return false
	}
	if pos < 0 || pos > len(m.rows) {
		pos = len(m.rows)
	}
	prev := -1
	if row.Selected {
		if cur, ok := m.Selected(); ok {
			prev = cur.Position
			m.rows[prev].Selected = false
		}
	}
	m.rows = slices.Insert(m.rows, pos, row)
	m.reindex()
	m.notify(Change{Kind: Inserted, Row: m.rows[pos], Position: pos, From: -1})
	if row.Selected {
		if prev >= pos {
			prev++
		}
		m.notify(Change{Kind: Selected, Row: m.rows[pos], Position: pos, From: prev})
	}
	return true
}

// Remove deletes the row with id. Returns false when absent.
func (m *Model) Remove(id string) bool {
	i, ok := m.byID[id]
	if !ok {
		return false
	}
	row := m.rows[i]
	m.rows = slices.Delete(m.rows, i, i+1)
	m.reindex()
	m.notify(Change{Kind: Removed, Row: row, Position: i, From: i})
	return true
}

// Move repositions the row with id to pos (clamped), preserving the relative
// order of every other row.
func (m *Model) Move(id string, pos int) bool {
	i, ok := m.byID[id]
	if !ok {
		return false
	}
	if pos < 0 || pos >= len(m.rows) {
		pos = len(m.rows) - 1
	}
	if pos == i {
		return false
	}
	row := m.rows[i]
	m.rows = slices.Delete(m.rows, i, i+1)
	m.rows = slices.Insert(m.rows, pos, row)
	m.reindex()
	m.notify(Change{Kind: Moved, Row: m.rows[pos], Position: pos, From: i})
	return true
}

// SetSelected marks id as the only selected row. An empty or unknown id
// clears the selection. Returns false when nothing changed.
func (m *Model) SetSelected(id string) bool {
	target, ok := m.byID[id]
	if !ok {
		target = -1
	}
	prev := -1
	for i := range m.rows {
		if m.rows[i].Selected {
			prev = i
			break
		}
	}
	if prev == target {
		return false
	}
	for i := range m.rows {
		m.rows[i].Selected = i == target
	}
	c := Change{Kind: Selected, Position: target, From: prev}
	if target >= 0 {
		c.Row = m.rows[target]
	}
	m.notify(c)
	return true
}

// UpdateTitle changes one row's title. Returns false when absent or equal.
func (m *Model) UpdateTitle(id, title string) bool {
	i, ok := m.byID[id]
	if !ok || m.rows[i].Title == title {
		return false
	}
	m.rows[i].Title = title
	m.notify(Change{Kind: Retitled, Row: m.rows[i], Position: i, From: i})
	return true
}
