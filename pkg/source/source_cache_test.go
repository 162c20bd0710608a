package source

import (
	"testing"

	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

// person is the keyed test item used across the package
type person struct {
	ID   int
	Name string
}

func newPersonCache(t *testing.T) *SourceCache[person, int] {
	t.Helper()
	sc, err := NewSourceCache(func(p person) int { return p.ID })
	if err != nil {
		t.Fatalf("Failed to create source cache: %v", err)
	}
	return sc
}

// collect subscribes and gathers every delivered change set
type collected[T any, K comparable] struct {
	sets      []changeset.ChangeSet[T, K]
	errs      []error
	completed int
}

func collect[T any, K comparable](src stream.Observable[changeset.ChangeSet[T, K]]) (*collected[T, K], stream.Disposable) {
	c := &collected[T, K]{}
	sub := src.Subscribe(stream.NewObserver(
		func(cs changeset.ChangeSet[T, K]) { c.sets = append(c.sets, cs) },
		func(err error) { c.errs = append(c.errs, err) },
		func() { c.completed++ },
	))
	return c, sub
}

func TestNewSourceCacheRequiresKeySelector(t *testing.T) {
	if _, err := NewSourceCache[person, int](nil); err == nil {
		t.Error("Expected nil key selector to be rejected")
	}
}

func TestEditBatchesIntoOneChangeSet(t *testing.T) {
	sc := newPersonCache(t)
	c, sub := collect(sc.Connect())
	defer sub.Dispose()

	err := sc.Edit(func(u *CacheUpdater[person, int]) {
		u.AddOrUpdate(person{1, "alice"})
		u.AddOrUpdate(person{2, "bob"})
		u.RemoveKey(1)
	})
	if err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}

	if len(c.sets) != 1 {
		t.Fatalf("Expected 1 change set, got %d", len(c.sets))
	}
	cs := c.sets[0]
	if cs.Adds() != 2 || cs.Removes() != 1 {
		t.Errorf("Expected 2 adds and 1 remove, got %d/%d", cs.Adds(), cs.Removes())
	}
	if sc.Count() != 1 {
		t.Errorf("Expected 1 item, got %d", sc.Count())
	}
}

func TestEmptyEditEmitsNothing(t *testing.T) {
	sc := newPersonCache(t)
	c, sub := collect(sc.Connect())
	defer sub.Dispose()

	if err := sc.Edit(func(u *CacheUpdater[person, int]) {}); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}
	if err := sc.Edit(func(u *CacheUpdater[person, int]) { u.RemoveKey(42) }); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}

	if len(c.sets) != 0 {
		t.Errorf("Expected no emissions for empty edits, got %d", len(c.sets))
	}
}

func TestConnectReplaysCurrentState(t *testing.T) {
	sc := newPersonCache(t)
	if err := sc.Edit(func(u *CacheUpdater[person, int]) {
		u.AddOrUpdate(person{1, "alice"})
		u.AddOrUpdate(person{2, "bob"})
	}); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}

	c, sub := collect(sc.Connect())
	defer sub.Dispose()

	if len(c.sets) != 1 {
		t.Fatalf("Expected initial change set, got %d", len(c.sets))
	}
	if c.sets[0].Adds() != 2 {
		t.Errorf("Expected 2 initial adds, got %d", c.sets[0].Adds())
	}

	if err := sc.Edit(func(u *CacheUpdater[person, int]) {
		u.AddOrUpdate(person{3, "carol"})
	}); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}
	if len(c.sets) != 2 {
		t.Fatalf("Expected live change set after edit, got %d sets", len(c.sets))
	}
}

func TestWatchFiltersToOneKey(t *testing.T) {
	sc := newPersonCache(t)
	if err := sc.Edit(func(u *CacheUpdater[person, int]) {
		u.AddOrUpdate(person{1, "alice"})
		u.AddOrUpdate(person{2, "bob"})
	}); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}

	var changes []changeset.Change[person, int]
	sub := sc.Watch(2).Subscribe(stream.NewObserver(
		func(c changeset.Change[person, int]) { changes = append(changes, c) },
		nil, nil,
	))
	defer sub.Dispose()

	if len(changes) != 1 {
		t.Fatalf("Expected initial change for watched key, got %d", len(changes))
	}

	if err := sc.Edit(func(u *CacheUpdater[person, int]) {
		u.AddOrUpdate(person{1, "ALICE"})
		u.AddOrUpdate(person{2, "BOB"})
	}); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}

	if len(changes) != 2 {
		t.Fatalf("Expected 2 changes for key 2, got %d", len(changes))
	}
	if changes[1].Reason != changeset.Update {
		t.Errorf("Expected update, got %v", changes[1].Reason)
	}
}

func TestRefreshAllSignalsEveryKey(t *testing.T) {
	sc := newPersonCache(t)
	if err := sc.Edit(func(u *CacheUpdater[person, int]) {
		u.AddOrUpdate(person{1, "alice"})
		u.AddOrUpdate(person{2, "bob"})
	}); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}

	c, sub := collect(sc.Connect())
	defer sub.Dispose()

	if err := sc.Edit(func(u *CacheUpdater[person, int]) { u.RefreshAll() }); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}

	last := c.sets[len(c.sets)-1]
	if last.Refreshes() != 2 {
		t.Errorf("Expected 2 refreshes, got %d", last.Refreshes())
	}
}

func TestDisposeCompletesSubscribers(t *testing.T) {
	sc := newPersonCache(t)
	c, sub := collect(sc.Connect())
	defer sub.Dispose()

	sc.Dispose()
	sc.Dispose()

	if c.completed != 1 {
		t.Errorf("Expected exactly one completion, got %d", c.completed)
	}
	if err := sc.Edit(func(u *CacheUpdater[person, int]) {}); err != ErrSourceDisposed {
		t.Errorf("Expected ErrSourceDisposed, got %v", err)
	}
}

// TestEditDiff mirrors the canonical diff scenario: one unchanged item, one
// updated item and one new item produce a single change set
func TestEditDiff(t *testing.T) {
	sc := newPersonCache(t)
	if err := sc.Edit(func(u *CacheUpdater[person, int]) {
		u.AddOrUpdate(person{1, "a"})
		u.AddOrUpdate(person{2, "b"})
	}); err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}

	c, sub := collect(sc.Connect())
	defer sub.Dispose()

	err := sc.EditDiff([]person{{1, "a"}, {2, "B"}, {3, "c"}}, func(a, b person) bool {
		return a.Name == b.Name
	})
	if err != nil {
		t.Fatalf("Failed to edit diff: %v", err)
	}

	if len(c.sets) != 2 {
		t.Fatalf("Expected initial plus one diff change set, got %d", len(c.sets))
	}
	cs := c.sets[1]
	if cs.Removes() != 0 {
		t.Errorf("Expected no removes, got %d", cs.Removes())
	}
	if cs.Updates() != 1 {
		t.Errorf("Expected 1 update, got %d", cs.Updates())
	}
	if cs.Adds() != 1 {
		t.Errorf("Expected 1 add, got %d", cs.Adds())
	}
	if got := sc.Lookup(2).ValueOrDefault().Name; got != "B" {
		t.Errorf("Expected updated name 'B', got '%s'", got)
	}
}

func TestEditDiffRemovesMissingKeys(t *testing.T) {
	sc := newPersonCache(t)
	if err := sc.Edit(func(u *CacheUpdater[person, int]) {
		u.AddOrUpdate(person{1, "a"})
		u.AddOrUpdate(person{2, "b"})
		u.AddOrUpdate(person{3, "c"})
	}); err != nil {
		t.Fatalf("Failed to seed: %v", err)
	}

	c, sub := collect(sc.Connect())
	defer sub.Dispose()

	err := sc.EditDiff([]person{{2, "b"}}, func(a, b person) bool { return a.Name == b.Name })
	if err != nil {
		t.Fatalf("Failed to edit diff: %v", err)
	}

	cs := c.sets[1]
	if cs.Removes() != 2 {
		t.Errorf("Expected 2 removes, got %d", cs.Removes())
	}
	if cs.Adds() != 0 || cs.Updates() != 0 {
		t.Errorf("Expected no adds or updates, got %d/%d", cs.Adds(), cs.Updates())
	}
	if sc.Count() != 1 {
		t.Errorf("Expected 1 surviving item, got %d", sc.Count())
	}
}
