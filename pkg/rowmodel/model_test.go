package rowmodel

import (
	"reflect"
	"testing"
)

func rows(ids ...string) []Row {
	out := make([]Row, len(ids))
	for i, id := range ids {
		out[i] = Row{ID: id, TabID: id, Title: "t" + id}
	}
	return out
}

func recordChanges(m *Model) *[]Change {
	var got []Change
	m.Subscribe(func(c Change) { got = append(got, c) })
	return &got
}

func TestReplaceAllSkipsIdenticalSequence(t *testing.T) {
	m := New()
	changes := recordChanges(m)

	if !m.ReplaceAll(rows("a", "b")) {
		t.Fatal("first ReplaceAll should report a change")
	}
	next := rows("a", "b")
	next[0].Title = "different title, same id"
	if m.ReplaceAll(next) {
		t.Fatal("ReplaceAll with identical id sequence should be a no-op")
	}
	if len(*changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(*changes))
	}
	if r, _ := m.RowAt(0); r.Title != "ta" {
		t.Fatalf("model should keep old rows, got title %q", r.Title)
	}
}

func TestReplaceAllReordersAndReindexes(t *testing.T) {
	m := New()
	m.ReplaceAll(rows("a", "b", "c"))
	m.ReplaceAll(rows("c", "a"))

	if got := m.IDs(); !reflect.DeepEqual(got, []string{"c", "a"}) {
		t.Fatalf("IDs() = %v", got)
	}
	if _, ok := m.RowFor("b"); ok {
		t.Fatal("removed tab should not resolve")
	}
	r, ok := m.RowFor("a")
	if !ok || r.Position != 1 {
		t.Fatalf("RowFor(a) = %+v, %v", r, ok)
	}
}

func TestReplaceAllKeepsSingleSelection(t *testing.T) {
	m := New()
	in := rows("a", "b")
	in[0].Selected = true
	in[1].Selected = true
	m.ReplaceAll(in)

	n := 0
	for _, r := range m.Rows() {
		if r.Selected {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("selected rows = %d, want 1", n)
	}
}

func TestInsertPositionsAndIdempotence(t *testing.T) {
	m := New()
	m.Insert(Row{ID: "a", TabID: "a"}, -1)
	m.Insert(Row{ID: "c", TabID: "c"}, 99)
	m.Insert(Row{ID: "b", TabID: "b"}, 1)

	if got := m.IDs(); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("IDs() = %v", got)
	}
	if m.Insert(Row{ID: "b", TabID: "b"}, 0) {
		t.Fatal("duplicate insert should be ignored")
	}
	if m.Insert(Row{ID: "other", TabID: "b"}, 0) {
		t.Fatal("insert for an already represented tab should be ignored")
	}
	if m.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", m.Len())
	}
	for i, r := range m.Rows() {
		if r.Position != i {
			t.Fatalf("row %s has position %d, want %d", r.ID, r.Position, i)
		}
	}
}

func TestInsertSelectedRowMovesSelection(t *testing.T) {
	m := New()
	m.ReplaceAll(rows("a", "b"))
	m.SetSelected("a")
	changes := recordChanges(m)

	m.Insert(Row{ID: "c", TabID: "c", Selected: true}, 0)

	sel, ok := m.Selected()
	if !ok || sel.ID != "c" {
		t.Fatalf("Selected() = %+v, %v", sel, ok)
	}
	if r, _ := m.Row("a"); r.Selected {
		t.Fatal("previous selection should be cleared")
	}
	last := (*changes)[len(*changes)-1]
	if last.Kind != Selected || last.From != 1 || last.Position != 0 {
		t.Fatalf("unexpected selection change %+v", last)
	}
}

func TestRemoveAndMove(t *testing.T) {
	m := New()
	m.ReplaceAll(rows("a", "b", "c", "d"))

	if !m.Move("a", 2) {
		t.Fatal("Move returned false")
	}
	if got := m.IDs(); !reflect.DeepEqual(got, []string{"b", "c", "a", "d"}) {
		t.Fatalf("after move IDs() = %v", got)
	}
	if m.Move("a", 2) {
		t.Fatal("move to same position should report no change")
	}
	if !m.Move("b", -1) {
		t.Fatal("move to sentinel should move to end")
	}
	if got := m.IDs(); !reflect.DeepEqual(got, []string{"c", "a", "d", "b"}) {
		t.Fatalf("after move-to-end IDs() = %v", got)
	}
	if !m.Remove("a") || m.Remove("a") {
		t.Fatal("Remove should succeed once")
	}
	if got := m.IDs(); !reflect.DeepEqual(got, []string{"c", "d", "b"}) {
		t.Fatalf("after remove IDs() = %v", got)
	}
}

func TestSetSelectedExclusive(t *testing.T) {
	m := New()
	m.ReplaceAll(rows("a", "b", "c"))
	changes := recordChanges(m)

	tests := []struct {
		id   string
		want string
		sig  bool
	}{
		{"b", "b", true},
		{"b", "b", false},
		{"c", "c", true},
		{"missing", "", true},
		{"", "", false},
	}
	for _, tt := range tests {
		before := len(*changes)
		m.SetSelected(tt.id)
		sel, ok := m.Selected()
		got := ""
		if ok {
			got = sel.ID
		}
		if got != tt.want {
			t.Fatalf("SetSelected(%q): selected %q, want %q", tt.id, got, tt.want)
		}
		if signalled := len(*changes) > before; signalled != tt.sig {
			t.Fatalf("SetSelected(%q): signalled=%v, want %v", tt.id, signalled, tt.sig)
		}
	}
}

func TestUpdateTitleOnlyTouchesOneRow(t *testing.T) {
	m := New()
	m.ReplaceAll(rows("a", "b"))
	changes := recordChanges(m)

	if !m.UpdateTitle("b", "vim") {
		t.Fatal("UpdateTitle returned false")
	}
	if m.UpdateTitle("b", "vim") {
		t.Fatal("same title should be a no-op")
	}
	if m.UpdateTitle("zzz", "x") {
		t.Fatal("unknown id should be a no-op")
	}
	if len(*changes) != 1 || (*changes)[0].Kind != Retitled || (*changes)[0].Position != 1 {
		t.Fatalf("unexpected changes %+v", *changes)
	}
	if r, _ := m.Row("a"); r.Title != "ta" {
		t.Fatalf("row a title changed to %q", r.Title)
	}
}

func TestUnsubscribe(t *testing.T) {
	m := New()
	n := 0
	tok := m.Subscribe(func(Change) { n++ })
	m.ReplaceAll(rows("a"))
	m.Unsubscribe(tok)
	m.Unsubscribe(tok)
	m.ReplaceAll(rows("b"))
	if n != 1 {
		t.Fatalf("handler calls = %d, want 1", n)
	}
}
