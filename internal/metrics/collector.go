// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpExtract     = "extract"
	OpClassify    = "classify"
	OpPlace       = "place"
	OpStoreUpdate = "store_update"
)

// OperationMetrics holds aggregated metrics for a single pipeline stage.
type OperationMetrics struct {
	Count     int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration

	// Token metrics (classify only)
	TotalInputTokens  int64
	TotalOutputTokens int64
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`

	TotalInputTokens  *int64 `json:"total_input_tokens,omitempty"`
	TotalOutputTokens *int64 `json:"total_output_tokens,omitempty"`
}

// Snapshot represents the full server statistics at a point in time.
type Snapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`

	BatchesStarted   int64            `json:"batches_started"`
	BatchesCompleted int64            `json:"batches_completed"`
	ItemsSucceeded   int64            `json:"items_succeeded"`
	ItemsFailed      map[string]int64 `json:"items_failed"`
	StoreFailures    int64            `json:"store_failures"`

	Extract     *OperationSnapshot `json:"extract,omitempty"`
	Classify    *OperationSnapshot `json:"classify,omitempty"`
	Place       *OperationSnapshot `json:"place,omitempty"`
	StoreUpdate *OperationSnapshot `json:"store_update,omitempty"`
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics

	batchesStarted   int64
	batchesCompleted int64
	itemsSucceeded   int64
	itemsFailed      map[string]int64
	storeFailures    int64
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime:   time.Now(),
		ops:         make(map[string]*OperationMetrics),
		itemsFailed: make(map[string]int64),
	}
}

// getOrCreate returns existing metrics or creates new ones for an operation.
// Caller must hold write lock.
func (c *Collector) getOrCreate(op string) *OperationMetrics {
	m, ok := c.ops[op]
	if !ok {
		m = &OperationMetrics{MinTime: time.Duration(math.MaxInt64)}
		c.ops[op] = m
	}
	return m
}

func (m *OperationMetrics) observe(d time.Duration) {
	m.Count++
	m.TotalTime += d
	if d < m.MinTime {
		m.MinTime = d
	}
	if d > m.MaxTime {
		m.MaxTime = d
	}
}

// RecordTiming records timing for an operation.
func (c *Collector) RecordTiming(op string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getOrCreate(op).observe(duration)
}

// RecordLLMUsage records timing and token usage for a classifier call.
func (c *Collector) RecordLLMUsage(op string, duration time.Duration, inputTokens, outputTokens int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.observe(duration)
	m.TotalInputTokens += inputTokens
	m.TotalOutputTokens += outputTokens
}

// RecordBatchStarted counts a batch handed to background work.
func (c *Collector) RecordBatchStarted() {
	c.mu.Lock()
	c.batchesStarted++
	c.mu.Unlock()
}

// RecordBatchCompleted counts a batch that reached its terminal state.
func (c *Collector) RecordBatchCompleted() {
	c.mu.Lock()
	c.batchesCompleted++
	c.mu.Unlock()
}

// RecordItemSucceeded counts a placed item.
func (c *Collector) RecordItemSucceeded() {
	c.mu.Lock()
	c.itemsSucceeded++
	c.mu.Unlock()
}

// RecordItemFailed counts an item failure at the given stage.
func (c *Collector) RecordItemFailed(stage string) {
	c.mu.Lock()
	c.itemsFailed[stage]++
	c.mu.Unlock()
}

// RecordStoreFailure counts a store update dropped after retrying.
func (c *Collector) RecordStoreFailure() {
	c.mu.Lock()
	c.storeFailures++
	c.mu.Unlock()
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics, includeTokens bool) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	snap := &OperationSnapshot{
		Count:       m.Count,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
	if includeTokens && (m.TotalInputTokens > 0 || m.TotalOutputTokens > 0) {
		in, out := m.TotalInputTokens, m.TotalOutputTokens
		snap.TotalInputTokens = &in
		snap.TotalOutputTokens = &out
	}
	return snap
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	failed := make(map[string]int64, len(c.itemsFailed))
	for k, v := range c.itemsFailed {
		failed[k] = v
	}

	return Snapshot{
		UptimeSeconds:    time.Since(c.startTime).Seconds(),
		BatchesStarted:   c.batchesStarted,
		BatchesCompleted: c.batchesCompleted,
		ItemsSucceeded:   c.itemsSucceeded,
		ItemsFailed:      failed,
		StoreFailures:    c.storeFailures,
		Extract:          snapshotOp(c.ops[OpExtract], false),
		Classify:         snapshotOp(c.ops[OpClassify], true),
		Place:            snapshotOp(c.ops[OpPlace], false),
		StoreUpdate:      snapshotOp(c.ops[OpStoreUpdate], false),
	}
}
