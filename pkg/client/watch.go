package client

import (
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/mnohosten/laura-flow/pkg/compression"
	"github.com/mnohosten/laura-flow/pkg/feed"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

// frame mirrors the server's watch envelope
type frame struct {
	Type    string                `json:"type"`
	Changes *feed.RemoteChangeSet `json:"changes,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// Watch dials the feed's watch endpoint and surfaces the frames as a
// change-set stream. Each subscription opens its own connection; disposing
// it closes the connection. The first frames replay the feed's current
// state as adds
func (c *Client) Watch() stream.Observable[feed.RemoteChangeSet] {
	return stream.Create(func(observer stream.Observer[feed.RemoteChangeSet]) stream.Disposable {
		dialer := websocket.Dialer{
			HandshakeTimeout: c.cs.Options.ConnectTimeout,
		}
		if c.cs.Options.TLS && c.cs.Options.TLSInsecure {
			dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}

		conn, resp, err := dialer.Dial(c.cs.WatchURL(), nil)
		if err != nil {
			if resp != nil {
				observer.OnError(fmt.Errorf("watch dial failed (status %d): %w", resp.StatusCode, err))
			} else {
				observer.OnError(fmt.Errorf("watch dial failed: %w", err))
			}
			return stream.Nop()
		}

		compressor, err := compression.NewCompressor(compression.ConfigFor(c.cs.Options.Compression))
		if err != nil {
			conn.Close()
			observer.OnError(err)
			return stream.Nop()
		}

		var disposed atomic.Bool
		var once sync.Once
		teardown := func() {
			once.Do(func() {
				conn.Close()
				compressor.Close()
			})
		}

		go func() {
			defer teardown()
			for {
				messageType, payload, err := conn.ReadMessage()
				if err != nil {
					if !disposed.Load() {
						observer.OnError(fmt.Errorf("watch connection lost: %w", err))
					}
					return
				}

				if messageType == websocket.BinaryMessage {
					payload, err = compressor.Decompress(payload)
					if err != nil {
						observer.OnError(fmt.Errorf("failed to decompress frame: %w", err))
						return
					}
				}

				var f frame
				if err := json.Unmarshal(payload, &f); err != nil {
					observer.OnError(fmt.Errorf("failed to decode frame: %w", err))
					return
				}

				switch f.Type {
				case "changes":
					if f.Changes != nil && !f.Changes.IsEmpty() {
						observer.OnNext(*f.Changes)
					}
				case "error":
					observer.OnError(errors.New(f.Error))
					return
				case "complete":
					observer.OnComplete()
					return
				}
			}
		}()

		return stream.NewDisposable(func() {
			disposed.Store(true)
			teardown()
		})
	})
}

// RemoteView materializes a watched feed into a readable keyed collection.
// Keys are tracked by their string form, since JSON erases key types
type RemoteView struct {
	mu    sync.RWMutex
	items map[string]interface{}
	err   error
	done  bool
}

// WatchView subscribes to the feed and maintains a materialized view.
// Dispose the returned disposable to stop
func (c *Client) WatchView() (*RemoteView, stream.Disposable) {
	v := &RemoteView{items: make(map[string]interface{})}
	sub := c.Watch().Subscribe(stream.NewObserver(
		v.apply,
		func(err error) {
			v.mu.Lock()
			v.err = err
			v.mu.Unlock()
		},
		func() {
			v.mu.Lock()
			v.done = true
			v.mu.Unlock()
		},
	))
	return v, sub
}

// apply folds one frame into the view
func (v *RemoteView) apply(rcs feed.RemoteChangeSet) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, change := range rcs.Changes {
		key := fmt.Sprint(change.Key)
		switch change.Reason {
		case "Add", "Update":
			v.items[key] = change.Current
		case "Remove":
			delete(v.items, key)
		}
	}
}

// Lookup returns the value for a key's string form
func (v *RemoteView) Lookup(key string) (interface{}, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	value, ok := v.items[key]
	return value, ok
}

// Count returns the number of materialized items
func (v *RemoteView) Count() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.items)
}

// Err returns the terminal error of the watch, if any
func (v *RemoteView) Err() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.err
}

// Completed reports whether the watch completed normally
func (v *RemoteView) Completed() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.done
}
