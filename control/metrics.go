// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for reactor monitoring.
// Exposes counters and gauges in a thread-safe map.

package control

import (
	"sync"
	"time"
)

// Metric keys published by the reactor.
const (
	MetricConnsAccepted    = "conns.accepted"
	MetricConnsRejected    = "conns.rejected"
	MetricConnsClosed      = "conns.closed"
	MetricAcceptErrors     = "accept.errors"
	MetricBytesReceived    = "bytes.received"
	MetricBytesSent        = "bytes.sent"
	MetricSendsQueued      = "sends.queued"
	MetricSendsCompleted   = "sends.completed"
	MetricSendsReleased    = "sends.released"
	MetricRegistryEntries  = "registry.entries"
	MetricSendQueueEntries = "sendqueue.entries"
	MetricSendQueueFixed   = "sendqueue.fixed"
)

// MetricsRegistry holds counters and gauges.
type MetricsRegistry struct {
	mu      sync.RWMutex
	metrics map[string]int64
	updated time.Time
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		metrics: make(map[string]int64),
	}
}

// Set sets or updates a gauge.
func (mr *MetricsRegistry) Set(key string, value int64) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Add increments a counter.
func (mr *MetricsRegistry) Add(key string, delta int64) {
	mr.mu.Lock()
	mr.metrics[key] += delta
	mr.updated = time.Now()
	mr.mu.Unlock()
}

// Get returns a single value.
func (mr *MetricsRegistry) Get(key string) int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.metrics[key]
}

// GetSnapshot returns the latest metrics.
func (mr *MetricsRegistry) GetSnapshot() map[string]int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]int64, len(mr.metrics))
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}

// Updated reports when a value last changed.
func (mr *MetricsRegistry) Updated() time.Time {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	return mr.updated
}
