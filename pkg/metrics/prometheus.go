package metrics

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// PrometheusExporter exports metrics in Prometheus text format
type PrometheusExporter struct {
	collector *MetricsCollector
	namespace string // Metric namespace prefix (e.g., "laura_flow")
}

// NewPrometheusExporter creates a new Prometheus exporter
func NewPrometheusExporter(collector *MetricsCollector) *PrometheusExporter {
	return &PrometheusExporter{
		collector: collector,
		namespace: "laura_flow",
	}
}

// SetNamespace sets the metric namespace prefix
func (pe *PrometheusExporter) SetNamespace(namespace string) {
	pe.namespace = namespace
}

// WriteMetrics writes all metrics in Prometheus text format to the writer
// Format: https://prometheus.io/docs/instrumenting/exposition_formats/
func (pe *PrometheusExporter) WriteMetrics(w io.Writer) error {
	// Uptime
	uptime := time.Since(pe.collector.startTime).Seconds()
	if err := pe.writeGauge(w, "uptime_seconds", "Feed server uptime in seconds", uptime); err != nil {
		return err
	}

	// Edit metrics
	editsApplied := atomic.LoadUint64(&pe.collector.editsApplied)
	editsRejected := atomic.LoadUint64(&pe.collector.editsRejected)
	totalEditTime := atomic.LoadUint64(&pe.collector.totalEditTime)

	if err := pe.writeCounter(w, "edits_total", "Total number of transactional edits", editsApplied); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "edits_rejected_total", "Total number of rejected edits", editsRejected); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "edit_duration_nanoseconds_total", "Total edit execution time in nanoseconds", totalEditTime); err != nil {
		return err
	}

	// Edit timing histogram and percentiles
	if err := pe.writeHistogram(w, "edit_duration_seconds", "Edit duration histogram", pe.collector.editTimings); err != nil {
		return err
	}
	if err := pe.writePercentiles(w, "edit_duration_seconds", pe.collector.editTimings); err != nil {
		return err
	}

	// Propagation metrics
	changeSets := atomic.LoadUint64(&pe.collector.changeSetsEmitted)
	changes := atomic.LoadUint64(&pe.collector.changesPropagated)
	refreshes := atomic.LoadUint64(&pe.collector.refreshesSignaled)

	if err := pe.writeCounter(w, "change_sets_total", "Total number of change sets emitted", changeSets); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "changes_total", "Total number of changes propagated", changes); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "refreshes_total", "Total number of refresh signals propagated", refreshes); err != nil {
		return err
	}

	// Subscription metrics
	opened := atomic.LoadUint64(&pe.collector.subscriptionsOpened)
	closed := atomic.LoadUint64(&pe.collector.subscriptionsClosed)
	active := atomic.LoadUint64(&pe.collector.activeSubscriptions)

	if err := pe.writeCounter(w, "subscriptions_opened_total", "Total number of subscriptions opened", opened); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "subscriptions_closed_total", "Total number of subscriptions closed", closed); err != nil {
		return err
	}
	if err := pe.writeGauge(w, "active_subscriptions", "Current number of active subscriptions", float64(active)); err != nil {
		return err
	}

	// Connection metrics
	activeConnections := atomic.LoadUint64(&pe.collector.activeConnections)
	totalConnections := atomic.LoadUint64(&pe.collector.totalConnections)

	if err := pe.writeGauge(w, "active_connections", "Current number of watch connections", float64(activeConnections)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "connections_total", "Total number of watch connections", totalConnections); err != nil {
		return err
	}

	// Frame metrics
	framesSent := atomic.LoadUint64(&pe.collector.framesSent)
	frameBytes := atomic.LoadUint64(&pe.collector.frameBytesSent)
	framesCompressed := atomic.LoadUint64(&pe.collector.framesCompressed)

	if err := pe.writeCounter(w, "frames_sent_total", "Total number of change-set frames sent", framesSent); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "frame_bytes_sent_total", "Total bytes of change-set frames sent", frameBytes); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "frames_compressed_total", "Total number of compressed frames sent", framesCompressed); err != nil {
		return err
	}

	return nil
}

// writeCounter writes a counter metric
func (pe *PrometheusExporter) writeCounter(w io.Writer, name, help string, value uint64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n",
		metricName, help, metricName, metricName, value)
	return err
}

// writeGauge writes a gauge metric
func (pe *PrometheusExporter) writeGauge(w io.Writer, name, help string, value float64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n",
		metricName, help, metricName, metricName, value)
	return err
}

// writeHistogram writes histogram metrics from timing data
func (pe *PrometheusExporter) writeHistogram(w io.Writer, name, help string, th *TimingHistogram) error {
	metricName := pe.namespace + "_" + name

	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", metricName, help, metricName); err != nil {
		return err
	}

	// Cumulative bucket counts in seconds
	b1 := atomic.LoadUint64(&th.bucket0_1ms)
	b10 := b1 + atomic.LoadUint64(&th.bucket1_10ms)
	b100 := b10 + atomic.LoadUint64(&th.bucket10_100ms)
	b1000 := b100 + atomic.LoadUint64(&th.bucket100_1000ms)
	total := b1000 + atomic.LoadUint64(&th.bucket1000ms)

	buckets := []struct {
		le    string
		count uint64
	}{
		{"0.001", b1},
		{"0.01", b10},
		{"0.1", b100},
		{"1", b1000},
		{"+Inf", total},
	}
	for _, bucket := range buckets {
		if _, err := fmt.Fprintf(w, "%s_bucket{le=\"%s\"} %d\n", metricName, bucket.le, bucket.count); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "%s_count %d\n", metricName, total); err != nil {
		return err
	}
	return nil
}

// writePercentiles writes percentile gauges from recent timings
func (pe *PrometheusExporter) writePercentiles(w io.Writer, name string, th *TimingHistogram) error {
	percentiles := th.GetPercentiles()
	for _, p := range []string{"p50", "p95", "p99"} {
		metricName := fmt.Sprintf("%s_%s_%s", pe.namespace, name, p)
		if _, err := fmt.Fprintf(w, "# HELP %s %s percentile\n# TYPE %s gauge\n%s %g\n",
			metricName, p, metricName, metricName, percentiles[p].Seconds()); err != nil {
			return err
		}
	}
	return nil
}
