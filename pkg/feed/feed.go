// Package feed bridges typed change-set streams to the wire. A Feed couples
// the erased wire form of a stream with snapshot access to its materialized
// state, so the server can serve any keyed source without knowing its types.
package feed

import (
	"fmt"

	"github.com/mnohosten/laura-flow/pkg/changeset"
	"github.com/mnohosten/laura-flow/pkg/source"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

// RemoteChange is the wire form of one keyed change
type RemoteChange struct {
	Reason   string      `json:"reason"`
	Key      interface{} `json:"key"`
	Current  interface{} `json:"current,omitempty"`
	Previous interface{} `json:"previous,omitempty"`
}

// RemoteChangeSet is the wire form of a change-set frame. Counters mirror
// the typed change set they were derived from
type RemoteChangeSet struct {
	Changes   []RemoteChange `json:"changes"`
	Adds      int            `json:"adds"`
	Updates   int            `json:"updates"`
	Removes   int            `json:"removes"`
	Refreshes int            `json:"refreshes"`
	Moves     int            `json:"moves"`
}

// Count returns the total number of changes in the frame
func (r RemoteChangeSet) Count() int {
	return len(r.Changes)
}

// IsEmpty reports whether the frame carries no changes
func (r RemoteChangeSet) IsEmpty() bool {
	return len(r.Changes) == 0
}

// Export converts a typed change-set stream into its wire form
func Export[T any, K comparable](src stream.Observable[changeset.ChangeSet[T, K]]) stream.Observable[RemoteChangeSet] {
	return stream.Create(func(observer stream.Observer[RemoteChangeSet]) stream.Disposable {
		return src.Subscribe(stream.NewObserver(
			func(cs changeset.ChangeSet[T, K]) {
				remote := RemoteChangeSet{
					Changes:   make([]RemoteChange, 0, cs.Count()),
					Adds:      cs.Adds(),
					Updates:   cs.Updates(),
					Removes:   cs.Removes(),
					Refreshes: cs.Refreshes(),
					Moves:     cs.Moves(),
				}
				for _, change := range cs.Changes() {
					rc := RemoteChange{
						Reason:  change.Reason.String(),
						Key:     change.Key,
						Current: change.Current,
					}
					if prev, ok := change.Previous.Value(); ok {
						rc.Previous = prev
					}
					remote.Changes = append(remote.Changes, rc)
				}
				observer.OnNext(remote)
			},
			observer.OnError,
			observer.OnComplete,
		))
	})
}

// Item is one key-value snapshot entry
type Item struct {
	Key   interface{} `json:"key"`
	Value interface{} `json:"value"`
}

// Feed couples a named wire-form stream with snapshot access. Upsert and
// Delete are nil for read-only feeds derived from operators
type Feed struct {
	Name   string
	Stream stream.Observable[RemoteChangeSet]
	Count  func() int
	Items  func() []Item
	Lookup func(key string) (interface{}, bool)
	Upsert func(key string, value map[string]interface{}) error
	Delete func(key string) error
}

// Writable reports whether the feed accepts writes
func (f *Feed) Writable() bool {
	return f.Upsert != nil && f.Delete != nil
}

// Document is the item type of writable document feeds
type Document = map[string]interface{}

// NewDocumentSource creates the keyed source backing a writable document
// feed. Documents are keyed by their string identifier
func NewDocumentSource() *source.SourceCache[Document, string] {
	sc, err := source.NewSourceCache(func(d Document) string {
		id, _ := d["_id"].(string)
		return id
	})
	if err != nil {
		// The key selector above is never nil
		panic(err)
	}
	return sc
}

// NewDocumentFeed builds a writable feed over a document source
func NewDocumentFeed(name string, sc *source.SourceCache[Document, string]) *Feed {
	return &Feed{
		Name:   name,
		Stream: Export(sc.Connect()),
		Count:  sc.Count,
		Items: func() []Item {
			items := make([]Item, 0, sc.Count())
			for _, doc := range sc.Items() {
				id, _ := doc["_id"].(string)
				items = append(items, Item{Key: id, Value: doc})
			}
			return items
		},
		Lookup: func(key string) (interface{}, bool) {
			return sc.Lookup(key).Value()
		},
		Upsert: func(key string, value map[string]interface{}) error {
			doc := make(Document, len(value)+1)
			for k, v := range value {
				doc[k] = v
			}
			doc["_id"] = key
			return sc.Edit(func(u *source.CacheUpdater[Document, string]) {
				u.AddOrUpdate(doc)
			})
		},
		Delete: func(key string) error {
			return sc.Edit(func(u *source.CacheUpdater[Document, string]) {
				u.RemoveKey(key)
			})
		},
	}
}

// NewSourceFeed builds a read-only feed over any keyed source. Lookup
// matches keys by their string form
func NewSourceFeed[T any, K comparable](name string, sc *source.SourceCache[T, K]) *Feed {
	return &Feed{
		Name:   name,
		Stream: Export(sc.Connect()),
		Count:  sc.Count,
		Items: func() []Item {
			keys := sc.Keys()
			items := make([]Item, 0, len(keys))
			for _, key := range keys {
				if value, ok := sc.Lookup(key).Value(); ok {
					items = append(items, Item{Key: key, Value: value})
				}
			}
			return items
		},
		Lookup: func(key string) (interface{}, bool) {
			for _, candidate := range sc.Keys() {
				if fmt.Sprint(candidate) == key {
					return sc.Lookup(candidate).Value()
				}
			}
			return nil, false
		},
	}
}
