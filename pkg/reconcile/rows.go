package reconcile

import (
	"github.com/b/tabsync/pkg/rowmodel"
	"github.com/b/tabsync/pkg/tabsource"
)

// idSep joins identity and title in pull-mode row ids.
const idSep = "\x1f"

// RowID derives a row id for tab. Pull-mode ids include the title so that a
// rename shows up as a different id sequence; push-mode ids are the tab
// identity because renames arrive through title watchers.
func RowID(mode tabsource.Mode, tab tabsource.Tab) string {
	if mode == tabsource.ModePush {
		return tab.ID
	}
	return tab.ID + idSep + tab.Title
}

func rowFromTab(mode tabsource.Mode, tab tabsource.Tab, selected bool) rowmodel.Row {
	return rowmodel.Row{
		ID:             RowID(mode, tab),
		TabID:          tab.ID,
		Title:          tab.Title,
		Position:       tab.Position,
		Selected:       selected,
		NeedsAttention: tab.NeedsAttention,
	}
}

func buildRows(mode tabsource.Mode, snap tabsource.Snapshot) []rowmodel.Row {
	out := make([]rowmodel.Row, len(snap.Tabs))
	for i, t := range snap.Tabs {
		t.Position = i
		out[i] = rowFromTab(mode, t, t.ID == snap.Selected)
	}
	return out
}

func selectedRowID(mode tabsource.Mode, snap tabsource.Snapshot) string {
	if snap.Selected == "" {
		return ""
	}
	t, ok := snap.Find(snap.Selected)
	if !ok {
		return ""
	}
	return RowID(mode, t)
}

func sameIDs(current []string, next []rowmodel.Row) bool {
	if len(current) != len(next) {
		return false
	}
	for i := range current {
		if current[i] != next[i].ID {
			return false
		}
	}
	return true
}
