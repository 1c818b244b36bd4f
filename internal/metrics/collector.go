// Package metrics provides in-memory runtime statistics collection.
package metrics

import (
	"math"
	"sync"
	"time"
)

// Operation names for the collector.
const (
	OpEmbed           = "embed"
	OpEmbedBatch      = "embed_batch"
	OpStoreQuery      = "store_query"
	OpStoreWrite      = "store_write"
	OpRetrieve        = "retrieve"
	OpRecord          = "record"
	OpIngestCharacter = "ingest_character"
	OpPrune           = "prune"
)

// OperationMetrics holds aggregated metrics for a single operation type.
type OperationMetrics struct {
	Count     int64
	Errors    int64
	TotalTime time.Duration
	MinTime   time.Duration
	MaxTime   time.Duration
}

// OperationSnapshot provides computed stats from raw metrics.
type OperationSnapshot struct {
	Count       int64   `json:"count"`
	Errors      int64   `json:"errors"`
	TotalTimeMs int64   `json:"total_time_ms"`
	AvgTimeMs   float64 `json:"avg_time_ms"`
	MinTimeMs   int64   `json:"min_time_ms"`
	MaxTimeMs   int64   `json:"max_time_ms"`
}

// Snapshot represents the full engine statistics at a point in time.
// Operations without any recorded calls are omitted.
type Snapshot struct {
	UptimeSeconds   float64            `json:"uptime_seconds"`
	Embed           *OperationSnapshot `json:"embed,omitempty"`
	EmbedBatch      *OperationSnapshot `json:"embed_batch,omitempty"`
	StoreQuery      *OperationSnapshot `json:"store_query,omitempty"`
	StoreWrite      *OperationSnapshot `json:"store_write,omitempty"`
	Retrieve        *OperationSnapshot `json:"retrieve,omitempty"`
	Record          *OperationSnapshot `json:"record,omitempty"`
	IngestCharacter *OperationSnapshot `json:"ingest_character,omitempty"`
	Prune           *OperationSnapshot `json:"prune,omitempty"`
}

// Collector aggregates in-memory runtime statistics.
// All methods are thread-safe.
type Collector struct {
	mu        sync.RWMutex
	startTime time.Time
	ops       map[string]*OperationMetrics
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		ops:       make(map[string]*OperationMetrics),
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

// Record records one call of an operation. A non-nil err also counts
// toward the operation's error total.
func (c *Collector) Record(op string, duration time.Duration, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m := c.getOrCreate(op)
	m.Count++
	m.TotalTime += duration
	if err != nil {
		m.Errors++
	}

	if duration < m.MinTime {
		m.MinTime = duration
	}
	if duration > m.MaxTime {
		m.MaxTime = duration
	}
}

// snapshotOp creates a snapshot for an operation, returning nil if no data.
func snapshotOp(m *OperationMetrics) *OperationSnapshot {
	if m == nil || m.Count == 0 {
		return nil
	}

	return &OperationSnapshot{
		Count:       m.Count,
		Errors:      m.Errors,
		TotalTimeMs: m.TotalTime.Milliseconds(),
		AvgTimeMs:   float64(m.TotalTime.Milliseconds()) / float64(m.Count),
		MinTimeMs:   m.MinTime.Milliseconds(),
		MaxTimeMs:   m.MaxTime.Milliseconds(),
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		UptimeSeconds:   time.Since(c.startTime).Seconds(),
		Embed:           snapshotOp(c.ops[OpEmbed]),
		EmbedBatch:      snapshotOp(c.ops[OpEmbedBatch]),
		StoreQuery:      snapshotOp(c.ops[OpStoreQuery]),
		StoreWrite:      snapshotOp(c.ops[OpStoreWrite]),
		Retrieve:        snapshotOp(c.ops[OpRetrieve]),
		Record:          snapshotOp(c.ops[OpRecord]),
		IngestCharacter: snapshotOp(c.ops[OpIngestCharacter]),
		Prune:           snapshotOp(c.ops[OpPrune]),
	}
}
