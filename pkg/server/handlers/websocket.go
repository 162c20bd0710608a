package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/mnohosten/laura-flow/pkg/compression"
	"github.com/mnohosten/laura-flow/pkg/feed"
	"github.com/mnohosten/laura-flow/pkg/metrics"
	"github.com/mnohosten/laura-flow/pkg/stream"
)

// WebSocket upgrader with default settings
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins (can be restricted in production)
		return true
	},
}

// Frame is the envelope for every message sent over a watch connection
type Frame struct {
	Type    string                `json:"type"` // changes, error or complete
	Changes *feed.RemoteChangeSet `json:"changes,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// WatchManager tracks active watch connections
type WatchManager struct {
	registry *feed.Registry
	metrics  *metrics.MetricsCollector

	mu          sync.Mutex
	connections map[uint64]*watchConnection
	nextID      uint64
}

// watchConnection is one subscriber streaming a feed over a websocket
type watchConnection struct {
	id         uint64
	conn       *websocket.Conn
	compressor *compression.Compressor
	sub        stream.Disposable
	manager    *WatchManager

	mu     sync.Mutex
	closed bool
}

// NewWatchManager creates a watch manager over the registry
func NewWatchManager(registry *feed.Registry, collector *metrics.MetricsCollector) *WatchManager {
	return &WatchManager{
		registry:    registry,
		metrics:     collector,
		connections: make(map[uint64]*watchConnection),
	}
}

// HandleWatch handles GET /watch/{feed}: upgrades the connection and streams
// the feed's frames until either side closes. The initial frame replays the
// feed's current state as adds
func (m *WatchManager) HandleWatch(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "feed")
	f, err := m.registry.Get(name)
	if err != nil {
		WriteError(w, http.StatusNotFound, "feed_not_found", "feed not found: "+name)
		return
	}

	algorithm, err := compression.ParseAlgorithm(r.URL.Query().Get("compression"))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "bad_compression", err.Error())
		return
	}
	compressor, err := compression.NewCompressor(compression.ConfigFor(algorithm))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "compression_failed", err.Error())
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		compressor.Close()
		log.Printf("watch upgrade failed: %v", err)
		return
	}

	wc := &watchConnection{
		conn:       conn,
		compressor: compressor,
		manager:    m,
	}
	m.add(wc)
	if m.metrics != nil {
		m.metrics.RecordConnectionStart()
	}

	// Stream frames. Emissions arrive on source-edit goroutines; the
	// connection mutex serializes writes
	wc.sub = f.Stream.Subscribe(stream.NewObserver(
		func(rcs feed.RemoteChangeSet) {
			if m.metrics != nil {
				m.metrics.RecordEmission(rcs.Count(), rcs.Refreshes)
			}
			if err := wc.writeFrame(Frame{Type: "changes", Changes: &rcs}); err != nil {
				wc.Close()
			}
		},
		func(err error) {
			_ = wc.writeFrame(Frame{Type: "error", Error: err.Error()})
			wc.Close()
		},
		func() {
			_ = wc.writeFrame(Frame{Type: "complete"})
			wc.Close()
		},
	))

	// The initial replay may have failed and closed the connection before
	// the subscription handle was stored
	wc.mu.Lock()
	if wc.closed {
		sub := wc.sub
		wc.mu.Unlock()
		sub.Dispose()
		return
	}
	wc.mu.Unlock()

	// Detect client disconnects; the read loop exits when the peer closes
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wc.Close()
				return
			}
		}
	}()
}

// writeFrame marshals, optionally compresses and sends one frame
func (wc *watchConnection) writeFrame(frame Frame) error {
	payload, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	wc.mu.Lock()
	defer wc.mu.Unlock()
	if wc.closed {
		return fmt.Errorf("connection closed")
	}

	compressed := wc.compressor.Algorithm() != compression.AlgorithmNone
	if compressed {
		payload, err = wc.compressor.Compress(payload)
		if err != nil {
			return fmt.Errorf("failed to compress frame: %w", err)
		}
	}

	messageType := websocket.TextMessage
	if compressed {
		messageType = websocket.BinaryMessage
	}
	if err := wc.conn.WriteMessage(messageType, payload); err != nil {
		return err
	}
	if wc.manager.metrics != nil {
		wc.manager.metrics.RecordFrame(len(payload), compressed)
	}
	return nil
}

// Close tears the connection down. Closing twice is a no-op
func (wc *watchConnection) Close() {
	wc.mu.Lock()
	if wc.closed {
		wc.mu.Unlock()
		return
	}
	wc.closed = true
	wc.mu.Unlock()

	if wc.sub != nil {
		wc.sub.Dispose()
	}
	wc.conn.Close()
	wc.compressor.Close()
	wc.manager.remove(wc.id)
	if wc.manager.metrics != nil {
		wc.manager.metrics.RecordConnectionEnd()
	}
}

// add registers a new connection
func (m *WatchManager) add(wc *watchConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wc.id = m.nextID
	m.nextID++
	m.connections[wc.id] = wc
}

// remove unregisters a connection
func (m *WatchManager) remove(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, id)
}

// ActiveConnections returns the number of live watch connections
func (m *WatchManager) ActiveConnections() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connections)
}

// Close closes the manager and all active connections
func (m *WatchManager) Close() {
	m.mu.Lock()
	connections := make([]*watchConnection, 0, len(m.connections))
	for _, wc := range m.connections {
		connections = append(connections, wc)
	}
	m.mu.Unlock()

	for _, wc := range connections {
		wc.Close()
	}
}
