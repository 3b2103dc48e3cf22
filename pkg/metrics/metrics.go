// Package metrics tracks the operation counts and gauges a prolly tree
// handle accumulates over its lifetime, so a process can export them (or
// feed tree.Stats) without the tree driver itself reaching into a
// metrics backend. Every field is specific to this domain: mutation
// counts, backend round trips, and the live key-count gauge, rather than
// an arbitrary named-metric registry.
package metrics

import "sync/atomic"

// TreeMetrics accumulates counters and one gauge for a single Tree
// handle. All fields are atomic so a concurrent exporter can read a
// Snapshot while the owning Tree continues to mutate.
type TreeMetrics struct {
	gets        atomic.Int64
	inserts     atomic.Int64
	updates     atomic.Int64
	deletes     atomic.Int64
	splits      atomic.Int64
	backendGets atomic.Int64
	backendPuts atomic.Int64
	keyCount    atomic.Int64
}

// New returns a zeroed TreeMetrics, ready to attach to a Tree via
// tree.WithMetrics.
func New() *TreeMetrics {
	return &TreeMetrics{}
}

// IncGet records one Get call.
func (m *TreeMetrics) IncGet() { m.gets.Add(1) }

// IncInsert records one Insert that changed the tree's key set or a
// key's bound value.
func (m *TreeMetrics) IncInsert() { m.inserts.Add(1) }

// IncUpdate records one Update that changed a key's bound value.
func (m *TreeMetrics) IncUpdate() { m.updates.Add(1) }

// IncDelete records one Delete that removed a key.
func (m *TreeMetrics) IncDelete() { m.deletes.Add(1) }

// IncSplit records one root-settling pass that had to wrap the tree in a
// new level (spec's node-split / collapse bookkeeping).
func (m *TreeMetrics) IncSplit() { m.splits.Add(1) }

// IncBackendGet records one read against the storage backend.
func (m *TreeMetrics) IncBackendGet() { m.backendGets.Add(1) }

// IncBackendPut records one write against the storage backend.
func (m *TreeMetrics) IncBackendPut() { m.backendPuts.Add(1) }

// SetKeyCount updates the live key-count gauge. Unlike the counters
// above, key count is not monotonic — it falls on Delete as well as
// rising on Insert — so it is stored rather than accumulated.
func (m *TreeMetrics) SetKeyCount(n int64) { m.keyCount.Store(n) }

// Snapshot is a point-in-time copy of every counter and the key-count
// gauge.
type Snapshot struct {
	Gets        int64
	Inserts     int64
	Updates     int64
	Deletes     int64
	Splits      int64
	BackendGets int64
	BackendPuts int64
	KeyCount    int64
}

// Snapshot reads every field atomically, though not as a single atomic
// unit across fields (a concurrent writer can still interleave between
// two of these loads).
func (m *TreeMetrics) Snapshot() Snapshot {
	return Snapshot{
		Gets:        m.gets.Load(),
		Inserts:     m.inserts.Load(),
		Updates:     m.updates.Load(),
		Deletes:     m.deletes.Load(),
		Splits:      m.splits.Load(),
		BackendGets: m.backendGets.Load(),
		BackendPuts: m.backendPuts.Load(),
		KeyCount:    m.keyCount.Load(),
	}
}
