package visindex

import (
	"errors"
	"testing"
)

// scenarioProvider: two top-level items, the first with three children.
func scenarioProvider() *fakeProvider {
	return newFake(n(leaves(3)...), n())
}

func mustCount(t *testing.T, ix *Index) int {
	t.Helper()
	c, err := ix.Count()
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	return c
}

// TestIndexScenario walks the expand/translate/collapse sequence on a small tree.
func TestIndexScenario(t *testing.T) {
	f := scenarioProvider()
	ix := New(f)

	if got := mustCount(t, ix); got != 2 {
		t.Fatalf("expected 2 rows, got %d", got)
	}
	if size, _ := ix.SubtreeSize(Path{0}); size != 0 {
		t.Errorf("expected unexpanded [0] to have size 0, got %d", size)
	}

	if err := ix.Uncollapse(Path{0}); err != nil {
		t.Fatalf("Uncollapse: %v", err)
	}
	if got := mustCount(t, ix); got != 5 {
		t.Fatalf("expected 5 rows after uncollapse, got %d", got)
	}

	p, err := ix.PathFor(3)
	if err != nil {
		t.Fatalf("PathFor(3): %v", err)
	}
	if !p.Equal(Path{0, 2}) {
		t.Errorf("expected row 3 at 0/2, got %s", p)
	}
	last, _ := ix.PathFor(4)
	if !last.Equal(Path{1}) {
		t.Errorf("expected row 4 at 1, got %s", last)
	}

	if err := ix.Collapse(Path{0}); err != nil {
		t.Fatalf("Collapse: %v", err)
	}
	if got := mustCount(t, ix); got != 2 {
		t.Fatalf("expected 2 rows after collapse, got %d", got)
	}
	checkIndex(t, ix, f)
}

func TestCountPopulatesOnce(t *testing.T) {
	f := newFake()
	ix := New(f)

	for i := 0; i < 3; i++ {
		if got := mustCount(t, ix); got != 0 {
			t.Fatalf("expected empty index, got %d rows", got)
		}
	}
	if f.queries != 1 {
		t.Errorf("expected an empty top level to be queried once, got %d queries", f.queries)
	}

	// An expanded-but-empty root accepts insertions directly.
	f.insert(Path{0})
	if err := ix.NotifyItemAdded(Path{0}); err != nil {
		t.Fatalf("NotifyItemAdded: %v", err)
	}
	if got := mustCount(t, ix); got != 1 {
		t.Errorf("expected 1 row, got %d", got)
	}
	checkIndex(t, ix, f)
}

func TestPathForSequentialAndJumps(t *testing.T) {
	f := newFake(
		n(n(leaves(2)...), n()),
		n(),
		n(leaves(3)...),
	)
	ix := New(f)
	mustCount(t, ix)
	for _, p := range []Path{{0}, {0, 0}, {2}} {
		if err := ix.Uncollapse(p); err != nil {
			t.Fatalf("Uncollapse(%s): %v", p, err)
		}
	}

	want := []Path{
		{0}, {0, 0}, {0, 0, 0}, {0, 0, 1}, {0, 1},
		{1},
		{2}, {2, 0}, {2, 1}, {2, 2},
	}
	if got := mustCount(t, ix); got != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), got)
	}

	for i, w := range want {
		p, err := ix.PathFor(i)
		if err != nil {
			t.Fatalf("PathFor(%d): %v", i, err)
		}
		if !p.Equal(w) {
			t.Errorf("row %d: expected %s, got %s", i, w, p)
		}
	}
	for i := len(want) - 1; i >= 0; i-- {
		p, _ := ix.PathFor(i)
		if !p.Equal(want[i]) {
			t.Errorf("backward row %d: expected %s, got %s", i, want[i], p)
		}
	}
	for _, i := range []int{9, 0, 5, 2, 7} {
		p, _ := ix.PathFor(i)
		if !p.Equal(want[i]) {
			t.Errorf("jump to row %d: expected %s, got %s", i, want[i], p)
		}
		rank, err := ix.RankOf(p)
		if err != nil || rank != i {
			t.Errorf("RankOf(%s) = %d, %v; want %d", p, rank, err, i)
		}
	}
	checkIndex(t, ix, f)
}

func TestPathForOutOfRange(t *testing.T) {
	ix := New(scenarioProvider())
	for _, flat := range []int{-1, 2, 100} {
		if _, err := ix.PathFor(flat); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("PathFor(%d): expected ErrInvalidArgument, got %v", flat, err)
		}
	}
}

func TestItemAndRecycle(t *testing.T) {
	f := scenarioProvider()
	ix := New(f)
	mustCount(t, ix)
	if err := ix.Uncollapse(Path{0}); err != nil {
		t.Fatal(err)
	}

	item, err := ix.Item(0)
	if err != nil {
		t.Fatalf("Item(0): %v", err)
	}
	if item != "0" {
		t.Errorf("expected item for path 0, got %v", item)
	}
	if f.lastLeaf {
		t.Error("expected expanded row to be reported as non-leaf")
	}

	child, _ := ix.Item(2)
	if child != "0/1" {
		t.Errorf("expected item for 0/1, got %v", child)
	}
	if !f.lastLeaf {
		t.Error("expected childless row to be reported as leaf")
	}

	if err := ix.Recycle(2, child); err != nil {
		t.Errorf("Recycle(2): %v", err)
	}
	if err := ix.Recycle(0, item); err != nil {
		t.Errorf("Recycle(0): %v", err)
	}
	if f.live != 0 {
		t.Errorf("expected all items recycled, %d live", f.live)
	}
}

func TestBackingModelErrorsPropagate(t *testing.T) {
	f := scenarioProvider()
	f.fail = errBackend
	ix := New(f)

	if _, err := ix.Count(); !errors.Is(err, ErrBackingModel) || !errors.Is(err, errBackend) {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}

	f.fail = nil
	mustCount(t, ix)
	f.fail = errBackend
	if err := ix.Uncollapse(Path{0}); !errors.Is(err, errBackend) {
		t.Errorf("expected backend error from Uncollapse, got %v", err)
	}
	if _, err := ix.Item(1); !errors.Is(err, errBackend) {
		t.Errorf("expected backend error from Item, got %v", err)
	}
	f.fail = nil
	if got := mustCount(t, ix); got != 2 {
		t.Errorf("expected failed uncollapse to leave 2 rows, got %d", got)
	}
	checkIndex(t, ix, f)
}

func TestUncollapseIdempotentAndLeaf(t *testing.T) {
	f := scenarioProvider()
	ix := New(f)
	mustCount(t, ix)

	if err := ix.Uncollapse(Path{1}); err != nil {
		t.Fatalf("Uncollapse of leaf: %v", err)
	}
	if exp, _ := ix.IsExpanded(Path{1}); exp {
		t.Error("expected leaf to stay unexpanded")
	}

	_ = ix.Uncollapse(Path{0})
	before := mustCount(t, ix)
	if err := ix.Uncollapse(Path{0}); err != nil {
		t.Fatalf("second Uncollapse: %v", err)
	}
	if got := mustCount(t, ix); got != before {
		t.Errorf("expected second uncollapse to be a no-op, count %d -> %d", before, got)
	}
}

func TestCollapseUncollapseRestoresCount(t *testing.T) {
	f := newFake(n(n(leaves(2)...), n(leaves(4)...)), n(leaves(1)...))
	ix := New(f)
	mustCount(t, ix)
	for _, p := range []Path{{0}, {0, 0}, {0, 1}, {1}} {
		_ = ix.Uncollapse(p)
	}
	before := mustCount(t, ix)

	if err := ix.Collapse(Path{0}); err != nil {
		t.Fatal(err)
	}
	if err := ix.Uncollapse(Path{0}); err != nil {
		t.Fatal(err)
	}
	// Grandchildren were discarded with the collapse; re-expand them.
	_ = ix.Uncollapse(Path{0, 0})
	_ = ix.Uncollapse(Path{0, 1})
	if got := mustCount(t, ix); got != before {
		t.Errorf("expected count %d restored, got %d", before, got)
	}
	checkIndex(t, ix, f)
}

func TestCollapseMovesCursorOutOfSubtree(t *testing.T) {
	f := newFake(n(leaves(5)...), n())
	ix := New(f)
	mustCount(t, ix)
	_ = ix.Uncollapse(Path{0})

	// Cursor inside the subtree lands on the collapsed node.
	if _, err := ix.PathFor(4); err != nil {
		t.Fatal(err)
	}
	if err := ix.Collapse(Path{0}); err != nil {
		t.Fatal(err)
	}
	if ix.cur.flat != 0 || !ix.cur.path.Equal(Path{0}) {
		t.Errorf("expected cursor on 0 at row 0, got %s at row %d", ix.cur.path, ix.cur.flat)
	}
	checkIndex(t, ix, f)

	// Cursor after the subtree shifts by the removed rows.
	_ = ix.Uncollapse(Path{0})
	if _, err := ix.PathFor(6); err != nil {
		t.Fatal(err)
	}
	_ = ix.Collapse(Path{0})
	if ix.cur.flat != 1 || !ix.cur.path.Equal(Path{1}) {
		t.Errorf("expected cursor on 1 at row 1, got %s at row %d", ix.cur.path, ix.cur.flat)
	}
	checkIndex(t, ix, f)
}

func TestCollapseRejectsBadPaths(t *testing.T) {
	f := scenarioProvider()
	ix := New(f)
	mustCount(t, ix)

	tests := []struct {
		name string
		path Path
	}{
		{"root", Path{}},
		{"unexpanded", Path{0}},
		{"out of range", Path{7}},
		{"below unexpanded", Path{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ix.Collapse(tt.path); !errors.Is(err, ErrInvalidPath) {
				t.Errorf("expected ErrInvalidPath, got %v", err)
			}
		})
	}
	if got := mustCount(t, ix); got != 2 {
		t.Errorf("expected rejected calls to leave 2 rows, got %d", got)
	}
}

func TestNotifyItemAddedShiftsCursor(t *testing.T) {
	f := newFake(n(leaves(3)...), n(leaves(2)...))
	ix := New(f)
	mustCount(t, ix)
	_ = ix.Uncollapse(Path{0})
	_ = ix.Uncollapse(Path{1})

	// Cursor on 1/1 (row 6).
	if p, _ := ix.PathFor(6); !p.Equal(Path{1, 1}) {
		t.Fatalf("expected row 6 at 1/1, got %s", p)
	}

	var data, view int
	ix.OnDataChanged(func() { data++ })
	ix.OnViewChanged(func() { view++ })

	f.insert(Path{0, 1})
	if err := ix.NotifyItemAdded(Path{0, 1}); err != nil {
		t.Fatal(err)
	}
	if ix.cur.flat != 7 || !ix.cur.path.Equal(Path{1, 1}) {
		t.Errorf("expected cursor 1/1 at row 7, got %s at %d", ix.cur.path, ix.cur.flat)
	}

	f.insert(Path{1, 0})
	if err := ix.NotifyItemAdded(Path{1, 0}); err != nil {
		t.Fatal(err)
	}
	if ix.cur.flat != 8 || !ix.cur.path.Equal(Path{1, 2}) {
		t.Errorf("expected cursor 1/2 at row 8, got %s at %d", ix.cur.path, ix.cur.flat)
	}

	f.insert(Path{0})
	if err := ix.NotifyItemAdded(Path{0}); err != nil {
		t.Fatal(err)
	}
	if ix.cur.flat != 9 || !ix.cur.path.Equal(Path{2, 2}) {
		t.Errorf("expected cursor 2/2 at row 9, got %s at %d", ix.cur.path, ix.cur.flat)
	}

	if data != 3 || view != 0 {
		t.Errorf("expected 3 data-changed and no view-changed signals, got %d and %d", data, view)
	}
	checkIndex(t, ix, f)
}

func TestNotifyItemAddedUnderCollapsedParent(t *testing.T) {
	f := scenarioProvider()
	var view int
	ix := New(f, WithViewChanged(func() { view++ }))
	mustCount(t, ix)

	f.insert(Path{1, 0})
	if err := ix.NotifyItemAdded(Path{1, 0}); err != nil {
		t.Fatal(err)
	}
	if view != 1 {
		t.Errorf("expected a full refresh signal, got %d", view)
	}
	if got := mustCount(t, ix); got != 2 {
		t.Errorf("expected untracked insertion to leave 2 rows, got %d", got)
	}
	checkIndex(t, ix, f)
}

func TestNotifyRejectsEmptyPath(t *testing.T) {
	ix := New(scenarioProvider())
	mustCount(t, ix)
	if err := ix.NotifyItemAdded(Path{}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NotifyItemAdded(root): expected ErrInvalidArgument, got %v", err)
	}
	if err := ix.NotifyItemRemoved(nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("NotifyItemRemoved(root): expected ErrInvalidArgument, got %v", err)
	}
	if err := ix.NotifyItemAdded(Path{5}); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("NotifyItemAdded past end: expected ErrInvalidPath, got %v", err)
	}
}

func TestNotifyItemRemovedCursorInside(t *testing.T) {
	f := newFake(n(leaves(2)...), n(leaves(3)...), n())
	ix := New(f)
	mustCount(t, ix)
	_ = ix.Uncollapse(Path{0})
	_ = ix.Uncollapse(Path{1})

	// Cursor on 1/2, inside the subtree about to go.
	if p, _ := ix.PathFor(6); !p.Equal(Path{1, 2}) {
		t.Fatalf("expected row 6 at 1/2, got %s", p)
	}
	f.remove(Path{1})
	if err := ix.NotifyItemRemoved(Path{1}); err != nil {
		t.Fatal(err)
	}
	if got := mustCount(t, ix); got != 4 {
		t.Fatalf("expected 4 rows, got %d", got)
	}
	if ix.cur.flat != 3 || !ix.cur.path.Equal(Path{1}) {
		t.Errorf("expected cursor on the next sibling 1 at row 3, got %s at %d", ix.cur.path, ix.cur.flat)
	}
	checkIndex(t, ix, f)
}

func TestNotifyItemRemovedLastChildClimbs(t *testing.T) {
	f := newFake(n(n(leaves(2)...), n()), n())
	ix := New(f)
	mustCount(t, ix)
	_ = ix.Uncollapse(Path{0})
	_ = ix.Uncollapse(Path{0, 0})

	// Rows: 0, 0/0, 0/0/0, 0/0/1, 0/1, 1. Cursor on 0/0/1.
	if p, _ := ix.PathFor(3); !p.Equal(Path{0, 0, 1}) {
		t.Fatalf("expected row 3 at 0/0/1, got %s", p)
	}
	f.remove(Path{0, 0, 1})
	if err := ix.NotifyItemRemoved(Path{0, 0, 1}); err != nil {
		t.Fatal(err)
	}
	if ix.cur.flat != 3 || !ix.cur.path.Equal(Path{0, 1}) {
		t.Errorf("expected cursor to climb to 0/1 at row 3, got %s at %d", ix.cur.path, ix.cur.flat)
	}
	checkIndex(t, ix, f)

	// Removing the remaining grandchild leaves 0/0 unexpanded.
	f.remove(Path{0, 0, 0})
	if err := ix.NotifyItemRemoved(Path{0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	if exp, _ := ix.IsExpanded(Path{0, 0}); exp {
		t.Error("expected emptied node to return to unexpanded")
	}
	checkIndex(t, ix, f)

	// Removing the last top-level row moves the cursor to the end position.
	if _, err := ix.PathFor(3); err != nil {
		t.Fatal(err)
	}
	f.remove(Path{1})
	if err := ix.NotifyItemRemoved(Path{1}); err != nil {
		t.Fatal(err)
	}
	if got := mustCount(t, ix); ix.cur.flat != got {
		t.Errorf("expected cursor at end row %d, got %d", got, ix.cur.flat)
	}
	checkIndex(t, ix, f)
}

func TestNotifyItemRemovedOutsideMirror(t *testing.T) {
	f := scenarioProvider()
	var view, data int
	ix := New(f, WithViewChanged(func() { view++ }), WithDataChanged(func() { data++ }))
	mustCount(t, ix)

	f.remove(Path{0, 1})
	if err := ix.NotifyItemRemoved(Path{0, 1}); err != nil {
		t.Fatal(err)
	}
	if view != 1 || data != 0 {
		t.Errorf("expected one full refresh, got view=%d data=%d", view, data)
	}
	checkIndex(t, ix, f)
}

func TestAddThenRemoveRestoresSizes(t *testing.T) {
	f := newFake(n(n(leaves(2)...), n()), n(leaves(2)...))
	ix := New(f)
	mustCount(t, ix)
	for _, p := range []Path{{0}, {0, 0}, {1}} {
		_ = ix.Uncollapse(p)
	}
	ancestors := []Path{{}, {0}, {0, 0}}
	before := make([]int, len(ancestors))
	for i, p := range ancestors {
		before[i], _ = ix.SubtreeSize(p)
	}

	target := Path{0, 0, 1}
	f.insert(target)
	if err := ix.NotifyItemAdded(target); err != nil {
		t.Fatal(err)
	}
	f.remove(target)
	if err := ix.NotifyItemRemoved(target); err != nil {
		t.Fatal(err)
	}
	for i, p := range ancestors {
		if got, _ := ix.SubtreeSize(p); got != before[i] {
			t.Errorf("subtree size of %s: expected %d, got %d", p, before[i], got)
		}
	}
	checkIndex(t, ix, f)
}

func TestNotifyDataSetChangedResets(t *testing.T) {
	f := scenarioProvider()
	var view int
	ix := New(f, WithViewChanged(func() { view++ }))
	mustCount(t, ix)
	_ = ix.Uncollapse(Path{0})
	_, _ = ix.PathFor(3)

	f.root.children = append(f.root.children, n(), n())
	ix.NotifyDataSetChanged()
	if view != 2 {
		t.Errorf("expected uncollapse and reset to raise view-changed, got %d", view)
	}
	if got := mustCount(t, ix); got != 4 {
		t.Errorf("expected 4 top-level rows after reset, got %d", got)
	}
	if ix.arena.live() != 5 {
		t.Errorf("expected discarded nodes to be reclaimed, %d live", ix.arena.live())
	}
	checkIndex(t, ix, f)
}

func TestExpandedPaths(t *testing.T) {
	f := newFake(n(n(leaves(1)...), n()), n(), n(leaves(2)...))
	ix := New(f)
	mustCount(t, ix)
	for _, p := range []Path{{2}, {0}, {0, 0}} {
		_ = ix.Uncollapse(p)
	}
	got := ix.ExpandedPaths()
	want := []Path{{0}, {0, 0}, {2}}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("expanded[%d]: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestChildCountAndDepth(t *testing.T) {
	f := newFake(n(n(leaves(1)...), n()), n(), n(leaves(2)...))
	ix := New(f)
	if got, err := ix.ChildCount(nil); err != nil || got != 3 {
		t.Fatalf("expected 3 top-level children, got %d (%v)", got, err)
	}
	for _, p := range []Path{{0}, {0, 0}, {2}} {
		if err := ix.Uncollapse(p); err != nil {
			t.Fatalf("Uncollapse(%s): %v", p, err)
		}
	}

	counts := []struct {
		p    Path
		want int
	}{
		{Path{0}, 2},
		{Path{0, 0}, 1},
		{Path{0, 1}, 0},
		{Path{1}, 0},
		{Path{2}, 2},
	}
	for _, c := range counts {
		if got, err := ix.ChildCount(c.p); err != nil || got != c.want {
			t.Errorf("ChildCount(%s): expected %d, got %d (%v)", c.p, c.want, got, err)
		}
	}
	if _, err := ix.ChildCount(Path{1, 0}); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("expected ErrInvalidPath below a collapsed node, got %v", err)
	}

	// Rows: 0, 0/0, 0/0/0, 0/1, 1, 2, 2/0, 2/1
	depths := []int{0, 1, 2, 1, 0, 0, 1, 1}
	for flat, want := range depths {
		if got, err := ix.Depth(flat); err != nil || got != want {
			t.Errorf("Depth(%d): expected %d, got %d (%v)", flat, want, got, err)
		}
	}
	if _, err := ix.Depth(len(depths)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument past the end, got %v", err)
	}
}
