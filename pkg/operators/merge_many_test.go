package operators

import (
	"sort"
	"testing"

	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/source"
	"github.com/mnohosten/laura-flow/pkg/stream"
	"github.com/mnohosten/laura-flow/pkg/view"
)

// mergeFixture wires three child lists into a parent and merges them
type mergeFixture struct {
	a, b, c *source.SourceList[int]
	parent  *source.SourceList[*source.SourceList[int]]
	view    *view.ViewList[int]
}

func newMergeFixture(t *testing.T) *mergeFixture {
	t.Helper()
	f := &mergeFixture{
		a:      source.NewSourceList[int](),
		b:      source.NewSourceList[int](),
		c:      source.NewSourceList[int](),
		parent: source.NewSourceList[*source.SourceList[int]](),
	}
	if err := f.parent.Edit(func(u *source.ListUpdater[*source.SourceList[int]]) {
		u.Add(f.a)
		u.Add(f.b)
		u.Add(f.c)
	}); err != nil {
		t.Fatalf("Failed to seed parent: %v", err)
	}

	merged, err := MergeMany(f.parent.Connect(), func(child *source.SourceList[int]) stream.Observable[changeset.ListChangeSet[int]] {
		return child.Connect()
	})
	if err != nil {
		t.Fatalf("Failed to merge: %v", err)
	}
	v, err := view.NewViewList(merged)
	if err != nil {
		t.Fatalf("Failed to materialize: %v", err)
	}
	f.view = v
	return f
}

func sortedItems(v *view.ViewList[int]) []int {
	items := v.Items()
	sort.Ints(items)
	return items
}

// TestMergeManyWithClear drives the canonical merge scenario: items flow in
// from two children, then one child clears and its items vanish from the
// merged view
func TestMergeManyWithClear(t *testing.T) {
	f := newMergeFixture(t)
	defer f.view.Dispose()

	if err := f.a.Edit(func(u *source.ListUpdater[int]) {
		u.Add(1)
		u.Add(2)
	}); err != nil {
		t.Fatalf("Failed to edit a: %v", err)
	}
	if err := f.b.Edit(func(u *source.ListUpdater[int]) {
		u.Add(3)
		u.Add(5)
	}); err != nil {
		t.Fatalf("Failed to edit b: %v", err)
	}

	if got := sortedItems(f.view); !equalInts(got, []int{1, 2, 3, 5}) {
		t.Errorf("Expected [1 2 3 5], got %v", got)
	}
	if f.view.Count() != 4 {
		t.Errorf("Expected count 4, got %d", f.view.Count())
	}

	if err := f.b.Edit(func(u *source.ListUpdater[int]) { u.Clear() }); err != nil {
		t.Fatalf("Failed to clear b: %v", err)
	}

	if got := sortedItems(f.view); !equalInts(got, []int{1, 2}) {
		t.Errorf("Expected [1 2] after clear, got %v", got)
	}
	if f.view.Count() != 2 {
		t.Errorf("Expected count 2 after clear, got %d", f.view.Count())
	}
}

// TestMergeManyWithdrawsRemovedChild covers the removal contract: dropping a
// child from the parent erases everything it contributed
func TestMergeManyWithdrawsRemovedChild(t *testing.T) {
	f := newMergeFixture(t)
	defer f.view.Dispose()

	if err := f.a.Edit(func(u *source.ListUpdater[int]) { u.AddRange([]int{1, 2}) }); err != nil {
		t.Fatalf("Failed to edit a: %v", err)
	}
	if err := f.b.Edit(func(u *source.ListUpdater[int]) { u.AddRange([]int{3, 5}) }); err != nil {
		t.Fatalf("Failed to edit b: %v", err)
	}

	// Remove child b (index 1) from the parent
	if err := f.parent.Edit(func(u *source.ListUpdater[*source.SourceList[int]]) {
		if err := u.RemoveAt(1); err != nil {
			t.Errorf("Failed to remove child: %v", err)
		}
	}); err != nil {
		t.Fatalf("Failed to edit parent: %v", err)
	}

	if got := sortedItems(f.view); !equalInts(got, []int{1, 2}) {
		t.Errorf("Expected [1 2] after child removal, got %v", got)
	}

	// The removed child's later edits must not leak into the merged view
	if err := f.b.Edit(func(u *source.ListUpdater[int]) { u.Add(99) }); err != nil {
		t.Fatalf("Failed to edit b: %v", err)
	}
	if got := sortedItems(f.view); !equalInts(got, []int{1, 2}) {
		t.Errorf("Expected detached child edits to be ignored, got %v", got)
	}
}

func TestMergeManyAddedChildContributes(t *testing.T) {
	f := newMergeFixture(t)
	defer f.view.Dispose()

	d := source.NewSourceList[int]()
	if err := d.Edit(func(u *source.ListUpdater[int]) { u.AddRange([]int{7, 8}) }); err != nil {
		t.Fatalf("Failed to seed d: %v", err)
	}

	if err := f.parent.Edit(func(u *source.ListUpdater[*source.SourceList[int]]) {
		u.Add(d)
	}); err != nil {
		t.Fatalf("Failed to add child: %v", err)
	}

	if got := sortedItems(f.view); !equalInts(got, []int{7, 8}) {
		t.Errorf("Expected [7 8] from the new child, got %v", got)
	}
}

func TestMergeManyChildRemovalsFlowThrough(t *testing.T) {
	f := newMergeFixture(t)
	defer f.view.Dispose()

	if err := f.a.Edit(func(u *source.ListUpdater[int]) { u.AddRange([]int{1, 2, 3}) }); err != nil {
		t.Fatalf("Failed to edit a: %v", err)
	}
	if err := f.a.Edit(func(u *source.ListUpdater[int]) {
		if !u.Remove(2) {
			t.Error("Expected remove to succeed")
		}
	}); err != nil {
		t.Fatalf("Failed to edit a: %v", err)
	}

	if got := sortedItems(f.view); !equalInts(got, []int{1, 3}) {
		t.Errorf("Expected [1 3], got %v", got)
	}
}
