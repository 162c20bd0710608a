package feed

import (
	"testing"

	"github.com/mnohosten/laura-flow/pkg/source"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

func TestExportCarriesCountersAndOrder(t *testing.T) {
	sc, err := source.NewSourceCache(func(i int) int { return i })
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	var frames []RemoteChangeSet
	sub := Export(sc.Connect()).Subscribe(stream.NewObserver(
		func(r RemoteChangeSet) { frames = append(frames, r) },
		nil, nil,
	))
	defer sub.Dispose()

	if err := sc.Edit(func(u *source.CacheUpdater[int, int]) {
		u.AddOrUpdate(1)
		u.AddOrUpdate(2)
		u.RemoveKey(1)
	}); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}

	if len(frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(frames))
	}
	frame := frames[0]
	if frame.Adds != 2 || frame.Removes != 1 {
		t.Errorf("Expected 2 adds and 1 remove, got %d/%d", frame.Adds, frame.Removes)
	}
	if frame.Count() != 3 {
		t.Errorf("Expected 3 changes, got %d", frame.Count())
	}
	if frame.Changes[0].Reason != "Add" || frame.Changes[2].Reason != "Remove" {
		t.Errorf("Expected ordered reasons, got %+v", frame.Changes)
	}
}

func TestExportCarriesPrevious(t *testing.T) {
	sc, err := source.NewSourceCache(func(p struct {
		ID   int
		Name string
	}) int {
		return p.ID
	})
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}

	var frames []RemoteChangeSet
	sub := Export(sc.Connect()).Subscribe(stream.NewObserver(
		func(r RemoteChangeSet) { frames = append(frames, r) },
		nil, nil,
	))
	defer sub.Dispose()

	type item = struct {
		ID   int
		Name string
	}
	if err := sc.Edit(func(u *source.CacheUpdater[item, int]) { u.AddOrUpdate(item{1, "a"}) }); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}
	if err := sc.Edit(func(u *source.CacheUpdater[item, int]) { u.AddOrUpdate(item{1, "b"}) }); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}

	update := frames[1].Changes[0]
	if update.Reason != "Update" {
		t.Fatalf("Expected update, got %s", update.Reason)
	}
	if update.Previous == nil {
		t.Error("Expected previous value on update")
	}
}

func TestDocumentFeedWrites(t *testing.T) {
	sc := NewDocumentSource()
	f := NewDocumentFeed("devices", sc)

	if !f.Writable() {
		t.Fatal("Expected document feed to be writable")
	}

	if err := f.Upsert("d1", map[string]interface{}{"name": "sensor"}); err != nil {
		t.Fatalf("Failed to upsert: %v", err)
	}
	if f.Count() != 1 {
		t.Errorf("Expected 1 document, got %d", f.Count())
	}

	value, ok := f.Lookup("d1")
	if !ok {
		t.Fatal("Expected lookup to find the document")
	}
	doc := value.(Document)
	if doc["name"] != "sensor" || doc["_id"] != "d1" {
		t.Errorf("Expected document with name and id, got %v", doc)
	}

	items := f.Items()
	if len(items) != 1 || items[0].Key != "d1" {
		t.Errorf("Expected one item keyed 'd1', got %v", items)
	}

	if err := f.Delete("d1"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if f.Count() != 0 {
		t.Errorf("Expected empty feed, got %d", f.Count())
	}
}

func TestSourceFeedIsReadOnly(t *testing.T) {
	sc, err := source.NewSourceCache(func(i int) int { return i })
	if err != nil {
		t.Fatalf("Failed to create source: %v", err)
	}
	if err := sc.Edit(func(u *source.CacheUpdater[int, int]) { u.Load([]int{10, 20}) }); err != nil {
		t.Fatalf("Failed to edit: %v", err)
	}

	f := NewSourceFeed("numbers", sc)
	if f.Writable() {
		t.Error("Expected source feed to be read-only")
	}
	if f.Count() != 2 {
		t.Errorf("Expected 2 items, got %d", f.Count())
	}
	if _, ok := f.Lookup("10"); !ok {
		t.Error("Expected string-form lookup to find key 10")
	}
	if _, ok := f.Lookup("99"); ok {
		t.Error("Expected lookup of missing key to fail")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	f := NewDocumentFeed("a", NewDocumentSource())

	if err := r.Register(f); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}
	if err := r.Register(f); err != ErrFeedExists {
		t.Errorf("Expected ErrFeedExists, got %v", err)
	}

	got, err := r.Get("a")
	if err != nil || got != f {
		t.Errorf("Expected to get the registered feed, got %v (%v)", got, err)
	}
	if _, err := r.Get("missing"); err != ErrFeedNotFound {
		t.Errorf("Expected ErrFeedNotFound, got %v", err)
	}

	if err := r.Register(NewDocumentFeed("b", NewDocumentSource())); err != nil {
		t.Fatalf("Failed to register: %v", err)
	}
	names := r.Names()
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Errorf("Expected sorted names [a b], got %v", names)
	}

	if err := r.Unregister("a"); err != nil {
		t.Fatalf("Failed to unregister: %v", err)
	}
	if err := r.Unregister("a"); err != ErrFeedNotFound {
		t.Errorf("Expected ErrFeedNotFound, got %v", err)
	}
}
