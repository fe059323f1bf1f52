package utils

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Tracks performance metrics across the system
type MetricsCollector struct {
	mu           sync.RWMutex
	requestCount uint64
	errorCount   uint64

	systemStartTime time.Time

	operations        *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
	openSubscriptions prometheus.Gauge
	deliveries        *prometheus.CounterVec
}

// NewMetricsCollector registers the collector's series with reg. A nil reg
// leaves the series unregistered, which is what tests want.
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	mc := &MetricsCollector{
		systemStartTime: time.Now(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gator_operations_total",
				Help: "Total number of core operations by name and outcome code",
			},
			[]string{"operation", "code"},
		),
		operationLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gator_operation_duration_seconds",
				Help:    "Latency of core operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		openSubscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "gator_room_subscriptions_open",
				Help: "Number of live room update subscriptions",
			},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gator_room_deliveries_total",
				Help: "Room update deliveries by result (delivered, filtered, dropped)",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		reg.MustRegister(mc.operations, mc.operationLatency, mc.openSubscriptions, mc.deliveries)
	}
	return mc
}

func (mc *MetricsCollector) IncrementRequests() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.requestCount++
}

func (mc *MetricsCollector) IncrementErrors() {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.errorCount++
}

// RecordOperation counts one finished operation. code is "" on success.
func (mc *MetricsCollector) RecordOperation(operationName, code string, duration time.Duration) {
	mc.IncrementRequests()
	if code == "" {
		code = "OK"
	} else {
		mc.IncrementErrors()
	}
	mc.operations.WithLabelValues(operationName, code).Inc()
	mc.operationLatency.WithLabelValues(operationName).Observe(duration.Seconds())
}

func (mc *MetricsCollector) SubscriptionOpened() { mc.openSubscriptions.Inc() }
func (mc *MetricsCollector) SubscriptionClosed() { mc.openSubscriptions.Dec() }

func (mc *MetricsCollector) RecordDelivery(result string) {
	mc.deliveries.WithLabelValues(result).Inc()
}

// Snapshot returns request and error totals plus uptime.
func (mc *MetricsCollector) Snapshot() (requests, errors uint64, uptime time.Duration) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return mc.requestCount, mc.errorCount, time.Since(mc.systemStartTime)
}
