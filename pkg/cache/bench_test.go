package cache

import (
	"testing"
)

// BenchmarkAddOrUpdate measures raw keyed writes
func BenchmarkAddOrUpdate(b *testing.B) {
	c := New[int, int]()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.AddOrUpdate(i, i%1024)
	}
}

func BenchmarkLookup(b *testing.B) {
	c := New[int, int]()
	for i := 0; i < 1024; i++ {
		c.AddOrUpdate(i, i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Lookup(i % 1024)
	}
}

func BenchmarkChangeAwareCapture(b *testing.B) {
	c := NewChangeAware[int, int]()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.AddOrUpdate(i, i%256)
		if i%256 == 0 {
			c.CaptureChanges()
		}
	}
}

func BenchmarkCloneChangeSet(b *testing.B) {
	origin := NewChangeAware[int, int]()
	for i := 0; i < 512; i++ {
		origin.AddOrUpdate(i, i)
	}
	cs := origin.CaptureChanges()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mirror := NewChangeAware[int, int]()
		mirror.Clone(cs)
	}
}
