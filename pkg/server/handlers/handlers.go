package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mnohosten/laura-flow/pkg/feed"
	"github.com/mnohosten/laura-flow/pkg/metrics"
)

// Handlers serves the registered feeds over HTTP
type Handlers struct {
	registry *feed.Registry
	metrics  *metrics.MetricsCollector
}

// New creates a new Handlers instance
func New(registry *feed.Registry, collector *metrics.MetricsCollector) *Handlers {
	return &Handlers{registry: registry, metrics: collector}
}

// getFeed resolves the feed named in the route or writes a 404
func (h *Handlers) getFeed(w http.ResponseWriter, r *http.Request) (*feed.Feed, bool) {
	name := chi.URLParam(r, "feed")
	f, err := h.registry.Get(name)
	if err != nil {
		WriteError(w, http.StatusNotFound, "feed_not_found", "feed not found: "+name)
		return nil, false
	}
	return f, true
}

// ListFeeds handles GET /feeds
func (h *Handlers) ListFeeds(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	type feedInfo struct {
		Name     string `json:"name"`
		Count    int    `json:"count"`
		Writable bool   `json:"writable"`
	}
	infos := make([]feedInfo, 0, len(names))
	for _, name := range names {
		f, err := h.registry.Get(name)
		if err != nil {
			continue
		}
		infos = append(infos, feedInfo{Name: name, Count: f.Count(), Writable: f.Writable()})
	}
	WriteSuccess(w, infos)
}

// GetCount handles GET /feeds/{feed}/_count
func (h *Handlers) GetCount(w http.ResponseWriter, r *http.Request) {
	f, ok := h.getFeed(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, map[string]interface{}{"count": f.Count()})
}

// GetItems handles GET /feeds/{feed}/_items
func (h *Handlers) GetItems(w http.ResponseWriter, r *http.Request) {
	f, ok := h.getFeed(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, f.Items())
}

// GetItem handles GET /feeds/{feed}/_items/{key}
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	f, ok := h.getFeed(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")
	value, exists := f.Lookup(key)
	if !exists {
		WriteError(w, http.StatusNotFound, "item_not_found", "item not found: "+key)
		return
	}
	WriteSuccess(w, feed.Item{Key: key, Value: value})
}

// PutItem handles PUT /feeds/{feed}/_items/{key}
func (h *Handlers) PutItem(w http.ResponseWriter, r *http.Request) {
	f, ok := h.getFeed(w, r)
	if !ok {
		return
	}
	if !f.Writable() {
		WriteError(w, http.StatusMethodNotAllowed, "read_only", "feed is read-only: "+f.Name)
		return
	}

	var value map[string]interface{}
	if err := parseJSONBody(r, &value); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	key := chi.URLParam(r, "key")
	start := time.Now()
	err := f.Upsert(key, value)
	if h.metrics != nil {
		h.metrics.RecordEdit(time.Since(start), err == nil)
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "write_failed", err.Error())
		return
	}
	WriteSuccess(w, map[string]interface{}{"key": key})
}

// DeleteItem handles DELETE /feeds/{feed}/_items/{key}
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	f, ok := h.getFeed(w, r)
	if !ok {
		return
	}
	if !f.Writable() {
		WriteError(w, http.StatusMethodNotAllowed, "read_only", "feed is read-only: "+f.Name)
		return
	}

	key := chi.URLParam(r, "key")
	start := time.Now()
	err := f.Delete(key)
	if h.metrics != nil {
		h.metrics.RecordEdit(time.Since(start), err == nil)
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "write_failed", err.Error())
		return
	}
	WriteSuccess(w, map[string]interface{}{"key": key})
}

// parseJSONBody parses a JSON request body into target
func parseJSONBody(r *http.Request, target interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return &BadRequestError{Message: "failed to read request body"}
	}
	defer r.Body.Close()

	if len(body) == 0 {
		return &BadRequestError{Message: "request body is empty"}
	}
	if err := json.Unmarshal(body, target); err != nil {
		return &BadRequestError{Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

// BadRequestError signals a malformed request
type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response
func WriteError(w http.ResponseWriter, statusCode int, errorType, message string) {
	WriteJSON(w, statusCode, map[string]interface{}{
		"ok":      false,
		"error":   errorType,
		"message": message,
		"code":    statusCode,
	})
}

// WriteSuccess writes a success response
func WriteSuccess(w http.ResponseWriter, result interface{}) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"ok":     true,
		"result": result,
	})
}
