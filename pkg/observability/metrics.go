package observability

import (
	"sync"
	"time"
)

// MetricsClient defines the interface for metrics collection
type MetricsClient interface {
	RecordLatency(operation string, duration time.Duration)
	RecordCounter(name string, value float64, labels map[string]string)
	RecordGauge(name string, value float64, labels map[string]string)
}

// NoopMetricsClient discards all metrics
type NoopMetricsClient struct{}

// NewNoopMetricsClient creates a metrics client that discards everything
func NewNoopMetricsClient() MetricsClient { return &NoopMetricsClient{} }

func (c *NoopMetricsClient) RecordLatency(operation string, duration time.Duration)      {}
func (c *NoopMetricsClient) RecordCounter(name string, value float64, labels map[string]string) {}
func (c *NoopMetricsClient) RecordGauge(name string, value float64, labels map[string]string)   {}

// InMemoryMetricsClient accumulates metrics in memory. Intended for tests
// that assert a counter or latency was recorded.
type InMemoryMetricsClient struct {
	mu        sync.Mutex
	counters  map[string]float64
	gauges    map[string]float64
	latencies map[string][]time.Duration
}

// NewInMemoryMetricsClient creates an in-memory metrics client
func NewInMemoryMetricsClient() *InMemoryMetricsClient {
	return &InMemoryMetricsClient{
		counters:  make(map[string]float64),
		gauges:    make(map[string]float64),
		latencies: make(map[string][]time.Duration),
	}
}

func (c *InMemoryMetricsClient) RecordLatency(operation string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latencies[operation] = append(c.latencies[operation], duration)
}

func (c *InMemoryMetricsClient) RecordCounter(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[name] += value
}

func (c *InMemoryMetricsClient) RecordGauge(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[name] = value
}

// Counter returns the accumulated value for a counter name
func (c *InMemoryMetricsClient) Counter(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[name]
}

// Latencies returns the recorded durations for an operation
func (c *InMemoryMetricsClient) Latencies(operation string) []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.latencies[operation]))
	copy(out, c.latencies[operation])
	return out
}
