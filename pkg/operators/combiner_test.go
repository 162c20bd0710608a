package operators

import (
	"sort"
	"testing"

	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/source"
	"github.com/mnohosten/laura-flow/pkg/stream"
	"github.com/mnohosten/laura-flow/pkg/view"
)

// intCache builds a keyed source whose items are their own keys
func intCache(t *testing.T, values ...int) *source.SourceCache[int, int] {
	t.Helper()
	sc, err := source.NewSourceCache(func(i int) int { return i })
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	if len(values) > 0 {
		if err := sc.Edit(func(u *source.CacheUpdater[int, int]) { u.Load(values) }); err != nil {
			t.Fatalf("Failed to seed source: %v", err)
		}
	}
	return sc
}

// sortedKeys reads a view's keys in ascending order
func sortedKeys(v *view.ViewCache[int, int]) []int {
	keys := v.Keys()
	sort.Ints(keys)
	return keys
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func materialize(t *testing.T, src stream.Observable[changeset.ChangeSet[int, int]]) *view.ViewCache[int, int] {
	t.Helper()
	v, err := view.NewViewCache(src)
	if err != nil {
		t.Fatalf("Failed to materialize: %v", err)
	}
	return v
}

func TestCombineAnd(t *testing.T) {
	a := intCache(t, 1, 2, 3)
	b := intCache(t, 2, 3, 4)

	combined, err := Combine(And, []stream.Observable[changeset.ChangeSet[int, int]]{a.Connect(), b.Connect()})
	if err != nil {
		t.Fatalf("Failed to combine: %v", err)
	}
	v := materialize(t, combined)
	defer v.Dispose()

	if got := sortedKeys(v); !equalInts(got, []int{2, 3}) {
		t.Errorf("Expected [2 3], got %v", got)
	}

	// Dropping 2 from one side must evict it from the intersection
	if err := a.Edit(func(u *source.CacheUpdater[int, int]) { u.RemoveKey(2) }); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}
	if got := sortedKeys(v); !equalInts(got, []int{3}) {
		t.Errorf("Expected [3], got %v", got)
	}
}

func TestCombineOr(t *testing.T) {
	a := intCache(t, 1, 2)
	b := intCache(t, 2, 3)

	combined, err := Combine(Or, []stream.Observable[changeset.ChangeSet[int, int]]{a.Connect(), b.Connect()})
	if err != nil {
		t.Fatalf("Failed to combine: %v", err)
	}
	v := materialize(t, combined)
	defer v.Dispose()

	if got := sortedKeys(v); !equalInts(got, []int{1, 2, 3}) {
		t.Errorf("Expected [1 2 3], got %v", got)
	}

	// 2 is still in b, so removing it from a must keep it
	if err := a.Edit(func(u *source.CacheUpdater[int, int]) { u.RemoveKey(2) }); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}
	if got := sortedKeys(v); !equalInts(got, []int{1, 2, 3}) {
		t.Errorf("Expected [1 2 3], got %v", got)
	}

	if err := b.Edit(func(u *source.CacheUpdater[int, int]) { u.RemoveKey(2) }); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}
	if got := sortedKeys(v); !equalInts(got, []int{1, 3}) {
		t.Errorf("Expected [1 3], got %v", got)
	}
}

func TestCombineXor(t *testing.T) {
	a := intCache(t, 1, 2)
	b := intCache(t, 2, 3)

	combined, err := Combine(Xor, []stream.Observable[changeset.ChangeSet[int, int]]{a.Connect(), b.Connect()})
	if err != nil {
		t.Fatalf("Failed to combine: %v", err)
	}
	v := materialize(t, combined)
	defer v.Dispose()

	if got := sortedKeys(v); !equalInts(got, []int{1, 3}) {
		t.Errorf("Expected [1 3], got %v", got)
	}

	// Removing 2 from b leaves it only in a, so it joins the result
	if err := b.Edit(func(u *source.CacheUpdater[int, int]) { u.RemoveKey(2) }); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}
	if got := sortedKeys(v); !equalInts(got, []int{1, 2, 3}) {
		t.Errorf("Expected [1 2 3], got %v", got)
	}
}

func TestCombineExcept(t *testing.T) {
	a := intCache(t, 1, 2, 3)
	b := intCache(t, 2)

	combined, err := Combine(Except, []stream.Observable[changeset.ChangeSet[int, int]]{a.Connect(), b.Connect()})
	if err != nil {
		t.Fatalf("Failed to combine: %v", err)
	}
	v := materialize(t, combined)
	defer v.Dispose()

	if got := sortedKeys(v); !equalInts(got, []int{1, 3}) {
		t.Errorf("Expected [1 3], got %v", got)
	}

	if err := b.Edit(func(u *source.CacheUpdater[int, int]) { u.RemoveKey(2) }); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}
	if got := sortedKeys(v); !equalInts(got, []int{1, 2, 3}) {
		t.Errorf("Expected [1 2 3], got %v", got)
	}
}

// TestCombineDynamicAnd drives the dynamic source-list scenario: an
// intersection over {A, B}, then C joins, then C leaves again
func TestCombineDynamicAnd(t *testing.T) {
	a := intCache(t, 1, 2, 3)
	b := intCache(t, 2, 3, 4)
	c := intCache(t, 3, 4)

	sources := source.NewSourceList[stream.Observable[changeset.ChangeSet[int, int]]]()
	if err := sources.Edit(func(u *source.ListUpdater[stream.Observable[changeset.ChangeSet[int, int]]]) {
		u.Add(a.Connect())
		u.Add(b.Connect())
	}); err != nil {
		t.Fatalf("Failed to seed sources: %v", err)
	}

	combined, err := CombineDynamic(And, sources.Connect())
	if err != nil {
		t.Fatalf("Failed to combine: %v", err)
	}
	v := materialize(t, combined)
	defer v.Dispose()

	if got := sortedKeys(v); !equalInts(got, []int{2, 3}) {
		t.Errorf("Expected [2 3], got %v", got)
	}

	if err := sources.Edit(func(u *source.ListUpdater[stream.Observable[changeset.ChangeSet[int, int]]]) {
		u.Add(c.Connect())
	}); err != nil {
		t.Fatalf("Failed to add source: %v", err)
	}
	if got := sortedKeys(v); !equalInts(got, []int{3}) {
		t.Errorf("Expected [3] after adding C, got %v", got)
	}

	if err := sources.Edit(func(u *source.ListUpdater[stream.Observable[changeset.ChangeSet[int, int]]]) {
		u.RemoveAt(2)
	}); err != nil {
		t.Fatalf("Failed to remove source: %v", err)
	}
	if got := sortedKeys(v); !equalInts(got, []int{2, 3}) {
		t.Errorf("Expected [2 3] after removing C, got %v", got)
	}
}

func TestCombineDynamicOrWithdrawsRemovedSource(t *testing.T) {
	a := intCache(t, 1)
	b := intCache(t, 9)

	sources := source.NewSourceList[stream.Observable[changeset.ChangeSet[int, int]]]()
	if err := sources.Edit(func(u *source.ListUpdater[stream.Observable[changeset.ChangeSet[int, int]]]) {
		u.Add(a.Connect())
		u.Add(b.Connect())
	}); err != nil {
		t.Fatalf("Failed to seed sources: %v", err)
	}

	combined, err := CombineDynamic(Or, sources.Connect())
	if err != nil {
		t.Fatalf("Failed to combine: %v", err)
	}
	v := materialize(t, combined)
	defer v.Dispose()

	if got := sortedKeys(v); !equalInts(got, []int{1, 9}) {
		t.Errorf("Expected [1 9], got %v", got)
	}

	if err := sources.Edit(func(u *source.ListUpdater[stream.Observable[changeset.ChangeSet[int, int]]]) {
		u.RemoveAt(1)
	}); err != nil {
		t.Fatalf("Failed to remove source: %v", err)
	}
	if got := sortedKeys(v); !equalInts(got, []int{1}) {
		t.Errorf("Expected [1] after removing source, got %v", got)
	}
}

// TestCombinerInvariant verifies the membership predicate against the
// materialized result after a burst of edits
func TestCombinerInvariant(t *testing.T) {
	a := intCache(t, 1, 2, 3, 4)
	b := intCache(t, 3, 4, 5, 6)

	for _, op := range []CombineOperator{And, Or, Xor, Except} {
		combined, err := Combine(op, []stream.Observable[changeset.ChangeSet[int, int]]{a.Connect(), b.Connect()})
		if err != nil {
			t.Fatalf("Failed to combine %v: %v", op, err)
		}
		v := materialize(t, combined)

		inA := map[int]bool{1: true, 2: true, 3: true, 4: true}
		inB := map[int]bool{3: true, 4: true, 5: true, 6: true}
		for k := 1; k <= 6; k++ {
			expected := false
			switch op {
			case And:
				expected = inA[k] && inB[k]
			case Or:
				expected = inA[k] || inB[k]
			case Xor:
				expected = inA[k] != inB[k]
			case Except:
				expected = inA[k] && !inB[k]
			}
			if got := v.Lookup(k).HasValue(); got != expected {
				t.Errorf("%v: expected membership of %d to be %v, got %v", op, k, expected, got)
			}
		}
		v.Dispose()
	}
}

func TestCombineSuppressesRedundantUpdates(t *testing.T) {
	a := intCache(t, 1)
	b := intCache(t, 1)

	combined, err := Combine(Or, []stream.Observable[changeset.ChangeSet[int, int]]{a.Connect(), b.Connect()})
	if err != nil {
		t.Fatalf("Failed to combine: %v", err)
	}

	var sets []changeset.ChangeSet[int, int]
	sub := combined.Subscribe(stream.NewObserver(
		func(cs changeset.ChangeSet[int, int]) { sets = append(sets, cs) },
		nil, nil,
	))
	defer sub.Dispose()

	// b's initial emission re-offers the same value; structural equality
	// must suppress a redundant update
	for _, cs := range sets {
		if cs.Updates() != 0 {
			t.Errorf("Expected no redundant updates, got change set with %d", cs.Updates())
		}
	}

	// Every emitted change set must be non-empty
	for _, cs := range sets {
		if cs.IsEmpty() {
			t.Error("Expected no empty change sets downstream")
		}
	}
}
