package tmux

import (
	"slices"

	"github.com/b/tabsync/pkg/tabsource"
)

// TitleChange is a rename of a tab present in both listings.
type TitleChange struct {
	ID    string
	Title string
}

// Diff turns two consecutive listings into the ordered events that transform
// prev into next: detaches first, then attaches and moves walking next from
// the front, then a selection change if any. Applying the events in order to
// a copy of prev yields next. Renames are reported separately because they
// travel through title watchers, not events.
func Diff(prev, next []tabsource.Tab, prevSel, nextSel string) ([]tabsource.Event, []TitleChange) {
	var events []tabsource.Event

	inNext := make(map[string]bool, len(next))
	for _, t := range next {
		inNext[t.ID] = true
	}
	prevByID := make(map[string]tabsource.Tab, len(prev))
	cur := make([]string, 0, len(prev))
	for i, t := range prev {
		prevByID[t.ID] = t
		if !inNext[t.ID] {
			t.Position = i
			events = append(events, tabsource.Event{Kind: tabsource.Detached, Tab: t, Position: i})
			continue
		}
		cur = append(cur, t.ID)
	}

	for i, t := range next {
		t.Position = i
		j := slices.Index(cur, t.ID)
		switch {
		case j < 0:
			cur = slices.Insert(cur, i, t.ID)
			events = append(events, tabsource.Event{Kind: tabsource.Attached, Tab: t, Position: i})
		case j != i:
			cur = slices.Delete(cur, j, j+1)
			cur = slices.Insert(cur, i, t.ID)
			events = append(events, tabsource.Event{Kind: tabsource.Reordered, Tab: t, Position: i})
		}
	}

	var titles []TitleChange
	for _, t := range next {
		if old, ok := prevByID[t.ID]; ok && old.Title != t.Title {
			titles = append(titles, TitleChange{ID: t.ID, Title: t.Title})
		}
	}

	if prevSel != nextSel {
		var sel tabsource.Tab
		for i, t := range next {
			if t.ID == nextSel {
				sel = t
				sel.Position = i
				break
			}
		}
		events = append(events, tabsource.Event{Kind: tabsource.SelectionChanged, Tab: sel})
	}
	return events, titles
}
