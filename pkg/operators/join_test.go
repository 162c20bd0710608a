package operators

import (
	"fmt"
	"testing"

	"github.com/mnohosten/laura-flow/pkg/cache"
	"github.com/mnohosten/laura-flow/pkg/optional"
	"github.com/mnohosten/laura-flow/pkg/source"
	"github.com/mnohosten/laura-flow/pkg/view"
)

type device struct {
	ID   int
	Name string
}

type metadata struct {
	Serial   string
	DeviceID int
	Info     string
}

func newDeviceSource(t *testing.T) *source.SourceCache[device, int] {
	t.Helper()
	sc, err := source.NewSourceCache(func(d device) int { return d.ID })
	if err != nil {
		t.Fatalf("Failed to create device source: %v", err)
	}
	return sc
}

func newMetadataSource(t *testing.T) *source.SourceCache[metadata, string] {
	t.Helper()
	sc, err := source.NewSourceCache(func(m metadata) string { return m.Serial })
	if err != nil {
		t.Fatalf("Failed to create metadata source: %v", err)
	}
	return sc
}

// TestLeftJoin drives the canonical left-join scenario: both sides matched,
// then a right removal degrades the pairing, then a left removal drops the key
func TestLeftJoin(t *testing.T) {
	left := newDeviceSource(t)
	right := newMetadataSource(t)

	joined, err := LeftJoin(left.Connect(), right.Connect(),
		func(m metadata) int { return m.DeviceID },
		func(key int, d device, m optional.Optional[metadata]) string {
			if info, ok := m.Value(); ok {
				return fmt.Sprintf("%s/%s", d.Name, info.Info)
			}
			return fmt.Sprintf("%s/none", d.Name)
		},
	)
	if err != nil {
		t.Fatalf("Failed to join: %v", err)
	}
	v, err := view.NewViewCache(joined)
	if err != nil {
		t.Fatalf("Failed to materialize: %v", err)
	}
	defer v.Dispose()

	if err := left.Edit(func(u *source.CacheUpdater[device, int]) {
		u.AddOrUpdate(device{1, "L1"})
		u.AddOrUpdate(device{2, "L2"})
	}); err != nil {
		t.Fatalf("Failed to edit left: %v", err)
	}
	if err := right.Edit(func(u *source.CacheUpdater[metadata, string]) {
		u.AddOrUpdate(metadata{"r", 1, "R1"})
		u.AddOrUpdate(metadata{"s", 2, "R2"})
	}); err != nil {
		t.Fatalf("Failed to edit right: %v", err)
	}

	if got := v.Lookup(1).ValueOrDefault(); got != "L1/R1" {
		t.Errorf("Expected 'L1/R1', got '%s'", got)
	}
	if got := v.Lookup(2).ValueOrDefault(); got != "L2/R2" {
		t.Errorf("Expected 'L2/R2', got '%s'", got)
	}

	// Removing right 's' leaves key 2 with no right side
	if err := right.Edit(func(u *source.CacheUpdater[metadata, string]) {
		u.RemoveKey("s")
	}); err != nil {
		t.Fatalf("Failed to edit right: %v", err)
	}
	if got := v.Lookup(2).ValueOrDefault(); got != "L2/none" {
		t.Errorf("Expected 'L2/none', got '%s'", got)
	}

	// Removing left 1 drops the key entirely
	if err := left.Edit(func(u *source.CacheUpdater[device, int]) {
		u.RemoveKey(1)
	}); err != nil {
		t.Fatalf("Failed to edit left: %v", err)
	}
	if v.Lookup(1).HasValue() {
		t.Error("Expected key 1 to disappear with the left side")
	}
	if v.Count() != 1 {
		t.Errorf("Expected 1 remaining pair, got %d", v.Count())
	}
}

// TestLeftJoinCompleteness checks the join invariant: the result carries
// exactly the left keys
func TestLeftJoinCompleteness(t *testing.T) {
	left := newDeviceSource(t)
	right := newMetadataSource(t)

	joined, err := LeftJoin(left.Connect(), right.Connect(),
		func(m metadata) int { return m.DeviceID },
		func(key int, d device, m optional.Optional[metadata]) string { return d.Name },
	)
	if err != nil {
		t.Fatalf("Failed to join: %v", err)
	}
	v, err := view.NewViewCache(joined)
	if err != nil {
		t.Fatalf("Failed to materialize: %v", err)
	}
	defer v.Dispose()

	if err := right.Edit(func(u *source.CacheUpdater[metadata, string]) {
		u.AddOrUpdate(metadata{"x", 7, "orphan"})
	}); err != nil {
		t.Fatalf("Failed to edit right: %v", err)
	}
	if v.Count() != 0 {
		t.Errorf("Expected right-only keys to stay out, got %d items", v.Count())
	}

	if err := left.Edit(func(u *source.CacheUpdater[device, int]) {
		u.AddOrUpdate(device{7, "L7"})
		u.AddOrUpdate(device{8, "L8"})
	}); err != nil {
		t.Fatalf("Failed to edit left: %v", err)
	}
	if v.Count() != 2 {
		t.Errorf("Expected exactly the left keys, got %d items", v.Count())
	}
}

func TestInnerJoinRequiresBothSides(t *testing.T) {
	left := newDeviceSource(t)
	right := newMetadataSource(t)

	joined, err := InnerJoin(left.Connect(), right.Connect(),
		func(m metadata) int { return m.DeviceID },
		func(key int, d device, m metadata) string { return d.Name + "+" + m.Info },
	)
	if err != nil {
		t.Fatalf("Failed to join: %v", err)
	}
	v, err := view.NewViewCache(joined)
	if err != nil {
		t.Fatalf("Failed to materialize: %v", err)
	}
	defer v.Dispose()

	if err := left.Edit(func(u *source.CacheUpdater[device, int]) {
		u.AddOrUpdate(device{1, "L1"})
	}); err != nil {
		t.Fatalf("Failed to edit left: %v", err)
	}
	if v.Count() != 0 {
		t.Errorf("Expected no pairs with an empty right side, got %d", v.Count())
	}

	if err := right.Edit(func(u *source.CacheUpdater[metadata, string]) {
		u.AddOrUpdate(metadata{"r", 1, "R1"})
	}); err != nil {
		t.Fatalf("Failed to edit right: %v", err)
	}
	if got := v.Lookup(1).ValueOrDefault(); got != "L1+R1" {
		t.Errorf("Expected 'L1+R1', got '%s'", got)
	}

	if err := right.Edit(func(u *source.CacheUpdater[metadata, string]) {
		u.RemoveKey("r")
	}); err != nil {
		t.Fatalf("Failed to edit right: %v", err)
	}
	if v.Count() != 0 {
		t.Errorf("Expected pair to vanish with the right side, got %d", v.Count())
	}
}

func TestRightJoinKeepsRightKeys(t *testing.T) {
	left := newDeviceSource(t)
	right := newMetadataSource(t)

	joined, err := RightJoin(left.Connect(), right.Connect(),
		func(m metadata) int { return m.DeviceID },
		func(key int, d optional.Optional[device], m metadata) string {
			if dev, ok := d.Value(); ok {
				return dev.Name + "+" + m.Info
			}
			return "?+" + m.Info
		},
	)
	if err != nil {
		t.Fatalf("Failed to join: %v", err)
	}
	v, err := view.NewViewCache(joined)
	if err != nil {
		t.Fatalf("Failed to materialize: %v", err)
	}
	defer v.Dispose()

	if err := right.Edit(func(u *source.CacheUpdater[metadata, string]) {
		u.AddOrUpdate(metadata{"r", 1, "R1"})
	}); err != nil {
		t.Fatalf("Failed to edit right: %v", err)
	}
	if got := v.Lookup(1).ValueOrDefault(); got != "?+R1" {
		t.Errorf("Expected '?+R1', got '%s'", got)
	}

	if err := left.Edit(func(u *source.CacheUpdater[device, int]) {
		u.AddOrUpdate(device{1, "L1"})
	}); err != nil {
		t.Fatalf("Failed to edit left: %v", err)
	}
	if got := v.Lookup(1).ValueOrDefault(); got != "L1+R1" {
		t.Errorf("Expected 'L1+R1', got '%s'", got)
	}

	if err := left.Edit(func(u *source.CacheUpdater[device, int]) {
		u.RemoveKey(1)
	}); err != nil {
		t.Fatalf("Failed to edit left: %v", err)
	}
	if got := v.Lookup(1).ValueOrDefault(); got != "?+R1" {
		t.Errorf("Expected '?+R1' after left removal, got '%s'", got)
	}
}

func TestFullJoinKeepsEitherSide(t *testing.T) {
	left := newDeviceSource(t)
	right := newMetadataSource(t)

	joined, err := FullJoin(left.Connect(), right.Connect(),
		func(m metadata) int { return m.DeviceID },
		func(key int, d optional.Optional[device], m optional.Optional[metadata]) string {
			l := "?"
			if dev, ok := d.Value(); ok {
				l = dev.Name
			}
			r := "?"
			if meta, ok := m.Value(); ok {
				r = meta.Info
			}
			return l + "+" + r
		},
	)
	if err != nil {
		t.Fatalf("Failed to join: %v", err)
	}
	v, err := view.NewViewCache(joined)
	if err != nil {
		t.Fatalf("Failed to materialize: %v", err)
	}
	defer v.Dispose()

	if err := left.Edit(func(u *source.CacheUpdater[device, int]) {
		u.AddOrUpdate(device{1, "L1"})
	}); err != nil {
		t.Fatalf("Failed to edit left: %v", err)
	}
	if err := right.Edit(func(u *source.CacheUpdater[metadata, string]) {
		u.AddOrUpdate(metadata{"r", 2, "R2"})
	}); err != nil {
		t.Fatalf("Failed to edit right: %v", err)
	}

	if got := v.Lookup(1).ValueOrDefault(); got != "L1+?" {
		t.Errorf("Expected 'L1+?', got '%s'", got)
	}
	if got := v.Lookup(2).ValueOrDefault(); got != "?+R2" {
		t.Errorf("Expected '?+R2', got '%s'", got)
	}

	if err := right.Edit(func(u *source.CacheUpdater[metadata, string]) {
		u.RemoveKey("r")
	}); err != nil {
		t.Fatalf("Failed to edit right: %v", err)
	}
	if v.Lookup(2).HasValue() {
		t.Error("Expected key 2 to vanish once both sides are gone")
	}
}

func TestFullJoinManyGroupsRightSide(t *testing.T) {
	left := newDeviceSource(t)
	right := newMetadataSource(t)

	joined, err := FullJoinMany(left.Connect(), right.Connect(),
		func(m metadata) int { return m.DeviceID },
		func(key int, d optional.Optional[device], group *cache.Grouping[metadata, string, int]) int {
			return group.Count()
		},
	)
	if err != nil {
		t.Fatalf("Failed to join: %v", err)
	}
	v, err := view.NewViewCache(joined)
	if err != nil {
		t.Fatalf("Failed to materialize: %v", err)
	}
	defer v.Dispose()

	if err := left.Edit(func(u *source.CacheUpdater[device, int]) {
		u.AddOrUpdate(device{1, "L1"})
	}); err != nil {
		t.Fatalf("Failed to edit left: %v", err)
	}

	// No right matches yet: the selector sees an empty group
	if got := v.Lookup(1).ValueOrDefault(); got != 0 {
		t.Errorf("Expected empty group, got %d members", got)
	}

	if err := right.Edit(func(u *source.CacheUpdater[metadata, string]) {
		u.AddOrUpdate(metadata{"r", 1, "R1a"})
		u.AddOrUpdate(metadata{"s", 1, "R1b"})
		u.AddOrUpdate(metadata{"t", 2, "R2"})
	}); err != nil {
		t.Fatalf("Failed to edit right: %v", err)
	}

	if got := v.Lookup(1).ValueOrDefault(); got != 2 {
		t.Errorf("Expected group of 2, got %d", got)
	}
	if got := v.Lookup(2).ValueOrDefault(); got != 1 {
		t.Errorf("Expected group of 1, got %d", got)
	}

	if err := right.Edit(func(u *source.CacheUpdater[metadata, string]) {
		u.RemoveKey("s")
	}); err != nil {
		t.Fatalf("Failed to edit right: %v", err)
	}
	if got := v.Lookup(1).ValueOrDefault(); got != 1 {
		t.Errorf("Expected group of 1 after removal, got %d", got)
	}
}

func TestJoinRejectsNilConfiguration(t *testing.T) {
	left := newDeviceSource(t)
	right := newMetadataSource(t)

	if _, err := LeftJoin[device, metadata, string, int, string](nil, right.Connect(), func(m metadata) int { return m.DeviceID },
		func(int, device, optional.Optional[metadata]) string { return "" }); err == nil {
		t.Error("Expected nil left source to be rejected")
	}
	if _, err := LeftJoin(left.Connect(), right.Connect(), nil,
		func(int, device, optional.Optional[metadata]) string { return "" }); err == nil {
		t.Error("Expected nil right key selector to be rejected")
	}
}
