package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects real-time metrics for change-set propagation
type MetricsCollector struct {
	// Edit metrics
	editsApplied  uint64
	editsRejected uint64
	totalEditTime uint64 // in nanoseconds

	// Propagation metrics
	changeSetsEmitted uint64
	changesPropagated uint64
	refreshesSignaled uint64

	// Subscription metrics
	subscriptionsOpened uint64
	subscriptionsClosed uint64
	activeSubscriptions uint64

	// Watch connection metrics (for the feed server)
	activeConnections uint64
	totalConnections  uint64

	// Frame metrics (for the feed server)
	framesSent       uint64
	frameBytesSent   uint64
	framesCompressed uint64

	// Edit timing buckets (histogram)
	mu          sync.RWMutex
	editTimings *TimingHistogram

	// Start time for uptime calculation
	startTime time.Time
}

// TimingHistogram stores timing data in buckets for histogram generation
type TimingHistogram struct {
	// Buckets: <1ms, 1-10ms, 10-100ms, 100ms-1s, >1s
	bucket0_1ms      uint64 // 0-1ms
	bucket1_10ms     uint64 // 1-10ms
	bucket10_100ms   uint64 // 10-100ms
	bucket100_1000ms uint64 // 100-1000ms
	bucket1000ms     uint64 // >1s

	// P50, P95, P99 tracking
	mu               sync.Mutex
	recentTimings    []time.Duration // Keep last 1000 timings
	maxRecentTimings int
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		editTimings: NewTimingHistogram(1000),
		startTime:   time.Now(),
	}
}

// NewTimingHistogram creates a new timing histogram
func NewTimingHistogram(maxRecent int) *TimingHistogram {
	return &TimingHistogram{
		recentTimings:    make([]time.Duration, 0, maxRecent),
		maxRecentTimings: maxRecent,
	}
}

// RecordEdit records a transactional edit against a source
func (mc *MetricsCollector) RecordEdit(duration time.Duration, success bool) {
	atomic.AddUint64(&mc.editsApplied, 1)
	if !success {
		atomic.AddUint64(&mc.editsRejected, 1)
	}
	atomic.AddUint64(&mc.totalEditTime, uint64(duration.Nanoseconds()))
	mc.editTimings.Record(duration)
}

// RecordEmission records one downstream change set carrying the given
// number of changes
func (mc *MetricsCollector) RecordEmission(changes, refreshes int) {
	atomic.AddUint64(&mc.changeSetsEmitted, 1)
	atomic.AddUint64(&mc.changesPropagated, uint64(changes))
	atomic.AddUint64(&mc.refreshesSignaled, uint64(refreshes))
}

// RecordSubscriptionStart records a subscription being opened
func (mc *MetricsCollector) RecordSubscriptionStart() {
	atomic.AddUint64(&mc.subscriptionsOpened, 1)
	atomic.AddUint64(&mc.activeSubscriptions, 1)
}

// RecordSubscriptionEnd records a subscription being disposed
func (mc *MetricsCollector) RecordSubscriptionEnd() {
	atomic.AddUint64(&mc.subscriptionsClosed, 1)
	atomic.AddUint64(&mc.activeSubscriptions, ^uint64(0)) // Decrement using two's complement
}

// RecordConnectionStart records a watch connection being accepted
func (mc *MetricsCollector) RecordConnectionStart() {
	atomic.AddUint64(&mc.totalConnections, 1)
	atomic.AddUint64(&mc.activeConnections, 1)
}

// RecordConnectionEnd records a watch connection closing
func (mc *MetricsCollector) RecordConnectionEnd() {
	atomic.AddUint64(&mc.activeConnections, ^uint64(0))
}

// RecordFrame records a change-set frame written to a watch connection
func (mc *MetricsCollector) RecordFrame(bytes int, compressed bool) {
	atomic.AddUint64(&mc.framesSent, 1)
	atomic.AddUint64(&mc.frameBytesSent, uint64(bytes))
	if compressed {
		atomic.AddUint64(&mc.framesCompressed, 1)
	}
}

// Record adds a timing to the histogram
func (th *TimingHistogram) Record(duration time.Duration) {
	// Update buckets atomically
	ms := duration.Milliseconds()
	if ms < 1 {
		atomic.AddUint64(&th.bucket0_1ms, 1)
	} else if ms < 10 {
		atomic.AddUint64(&th.bucket1_10ms, 1)
	} else if ms < 100 {
		atomic.AddUint64(&th.bucket10_100ms, 1)
	} else if ms < 1000 {
		atomic.AddUint64(&th.bucket100_1000ms, 1)
	} else {
		atomic.AddUint64(&th.bucket1000ms, 1)
	}

	// Add to recent timings for percentile calculation
	th.mu.Lock()
	defer th.mu.Unlock()

	if len(th.recentTimings) >= th.maxRecentTimings {
		// Shift array to remove oldest
		th.recentTimings = th.recentTimings[1:]
	}
	th.recentTimings = append(th.recentTimings, duration)
}

// GetBuckets returns the histogram bucket counts
func (th *TimingHistogram) GetBuckets() map[string]uint64 {
	return map[string]uint64{
		"0-1ms":      atomic.LoadUint64(&th.bucket0_1ms),
		"1-10ms":     atomic.LoadUint64(&th.bucket1_10ms),
		"10-100ms":   atomic.LoadUint64(&th.bucket10_100ms),
		"100-1000ms": atomic.LoadUint64(&th.bucket100_1000ms),
		">1000ms":    atomic.LoadUint64(&th.bucket1000ms),
	}
}

// GetPercentiles calculates P50, P95, P99 from recent timings
func (th *TimingHistogram) GetPercentiles() map[string]time.Duration {
	th.mu.Lock()
	defer th.mu.Unlock()

	if len(th.recentTimings) == 0 {
		return map[string]time.Duration{
			"p50": 0,
			"p95": 0,
			"p99": 0,
		}
	}

	// Create sorted copy
	sorted := make([]time.Duration, len(th.recentTimings))
	copy(sorted, th.recentTimings)

	// Simple insertion sort (fine for 1000 elements)
	for i := 1; i < len(sorted); i++ {
		key := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > key {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = key
	}

	// Calculate percentiles
	p50idx := len(sorted) * 50 / 100
	p95idx := len(sorted) * 95 / 100
	p99idx := len(sorted) * 99 / 100

	return map[string]time.Duration{
		"p50": sorted[p50idx],
		"p95": sorted[p95idx],
		"p99": sorted[p99idx],
	}
}

// GetMetrics returns a snapshot of all metrics
func (mc *MetricsCollector) GetMetrics() map[string]interface{} {
	editsApplied := atomic.LoadUint64(&mc.editsApplied)
	editsRejected := atomic.LoadUint64(&mc.editsRejected)
	totalEditTime := atomic.LoadUint64(&mc.totalEditTime)

	changeSetsEmitted := atomic.LoadUint64(&mc.changeSetsEmitted)
	changesPropagated := atomic.LoadUint64(&mc.changesPropagated)
	refreshesSignaled := atomic.LoadUint64(&mc.refreshesSignaled)

	subscriptionsOpened := atomic.LoadUint64(&mc.subscriptionsOpened)
	subscriptionsClosed := atomic.LoadUint64(&mc.subscriptionsClosed)
	activeSubscriptions := atomic.LoadUint64(&mc.activeSubscriptions)

	activeConnections := atomic.LoadUint64(&mc.activeConnections)
	totalConnections := atomic.LoadUint64(&mc.totalConnections)

	framesSent := atomic.LoadUint64(&mc.framesSent)
	frameBytesSent := atomic.LoadUint64(&mc.frameBytesSent)
	framesCompressed := atomic.LoadUint64(&mc.framesCompressed)

	// Calculate averages (prevent division by zero)
	var avgEditTime, avgChangesPerSet float64
	if editsApplied > 0 {
		avgEditTime = float64(totalEditTime) / float64(editsApplied) / 1e6 // Convert to ms
	}
	if changeSetsEmitted > 0 {
		avgChangesPerSet = float64(changesPropagated) / float64(changeSetsEmitted)
	}

	uptime := time.Since(mc.startTime)

	return map[string]interface{}{
		"uptime_seconds": uptime.Seconds(),

		"edits": map[string]interface{}{
			"total":              editsApplied,
			"rejected":           editsRejected,
			"success_rate":       calculateSuccessRate(editsApplied, editsRejected),
			"avg_duration_ms":    avgEditTime,
			"timing_histogram":   mc.editTimings.GetBuckets(),
			"timing_percentiles": mc.editTimings.GetPercentiles(),
		},

		"propagation": map[string]interface{}{
			"change_sets":         changeSetsEmitted,
			"changes":             changesPropagated,
			"refreshes":           refreshesSignaled,
			"avg_changes_per_set": avgChangesPerSet,
		},

		"subscriptions": map[string]interface{}{
			"opened": subscriptionsOpened,
			"closed": subscriptionsClosed,
			"active": activeSubscriptions,
		},

		"connections": map[string]interface{}{
			"active": activeConnections,
			"total":  totalConnections,
		},

		"frames": map[string]interface{}{
			"sent":       framesSent,
			"bytes":      frameBytesSent,
			"compressed": framesCompressed,
		},
	}
}

// Reset resets all metrics to zero
func (mc *MetricsCollector) Reset() {
	atomic.StoreUint64(&mc.editsApplied, 0)
	atomic.StoreUint64(&mc.editsRejected, 0)
	atomic.StoreUint64(&mc.totalEditTime, 0)

	atomic.StoreUint64(&mc.changeSetsEmitted, 0)
	atomic.StoreUint64(&mc.changesPropagated, 0)
	atomic.StoreUint64(&mc.refreshesSignaled, 0)

	atomic.StoreUint64(&mc.subscriptionsOpened, 0)
	atomic.StoreUint64(&mc.subscriptionsClosed, 0)

	atomic.StoreUint64(&mc.framesSent, 0)
	atomic.StoreUint64(&mc.frameBytesSent, 0)
	atomic.StoreUint64(&mc.framesCompressed, 0)

	atomic.StoreUint64(&mc.totalConnections, 0)
	// Don't reset activeSubscriptions or activeConnections as they represent current state

	// Reset histogram
	mc.mu.Lock()
	mc.editTimings = NewTimingHistogram(1000)
	mc.mu.Unlock()

	// Reset start time
	mc.startTime = time.Now()
}

// Helper functions

func calculateSuccessRate(total, failed uint64) float64 {
	if total == 0 {
		return 0
	}
	succeeded := total - failed
	return float64(succeeded) / float64(total) * 100
}
