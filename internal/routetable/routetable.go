// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package routetable implements the concurrent routing table: a
// double-buffered, RCU-style structure that lets any number of readers
// resolve destinations against a consistent snapshot while a single
// writer mutates the table. Readers never take a lock; a writer waits on
// the writer mutex and, after publishing, until readers of the snapshot
// it replaced have released it.
//
// Writers never mutate a published snapshot in place. Instead they clone
// it, apply the mutation to the clone, and publish the clone with a
// single atomic pointer swap. The previous snapshot is recycled into a
// standby buffer once every reader that was using it has released it,
// which avoids a fresh allocation on every write.
package routetable

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/strand-protocol/strand/internal/offload"
	"github.com/strand-protocol/strand/internal/sad"
	"github.com/strand-protocol/strand/logging"
	"github.com/strand-protocol/strand/pkg/id"
)

// Entry is one published route: a node's capability advertisement plus
// the live metrics used to score and rank it.
type Entry struct {
	NodeID       id.NodeID
	Capabilities sad.SAD
	LatencyUS    uint32
	LoadFactor   float64
	CostMilli    uint32
	TrustLevel   uint8
	RegionCode   uint16
	LastUpdated  time.Time
	TTL          time.Duration // zero means the entry never expires
}

// ContextWindow returns the entry's advertised context window, derived
// from its capability SAD.
func (e *Entry) ContextWindow() uint32 {
	return e.Capabilities.GetU32(sad.TagContextWindow)
}

// expired reports whether the entry's TTL has elapsed as of now.
func (e *Entry) expired(now time.Time) bool {
	if e.TTL == 0 {
		return false
	}
	return now.Sub(e.LastUpdated) > e.TTL
}

// snapshot is one immutable (once published) view of the table. A
// snapshot is only ever mutated before its first publish; after that,
// writers clone it rather than touch it in place.
type snapshot struct {
	entries []Entry
	readers int32
}

func newSnapshot(capacity int) *snapshot {
	return &snapshot{entries: make([]Entry, 0, capacity)}
}

func (s *snapshot) clone() *snapshot {
	c := &snapshot{entries: make([]Entry, len(s.entries), cap(s.entries))}
	copy(c.entries, s.entries)
	return c
}

func (s *snapshot) findIndex(nodeID id.NodeID) int {
	for i := range s.entries {
		if s.entries[i].NodeID == nodeID {
			return i
		}
	}
	return -1
}

func (s *snapshot) acquire() *snapshot {
	atomic.AddInt32(&s.readers, 1)
	return s
}

func (s *snapshot) release() {
	atomic.AddInt32(&s.readers, -1)
}

func (s *snapshot) waitForReaders() {
	for atomic.LoadInt32(&s.readers) > 0 {
		runtime.Gosched()
	}
}

const defaultCapacity = 64

// Table is the concurrent routing table. The zero value is not usable;
// construct with New.
type Table struct {
	current atomic.Pointer[snapshot]
	mu      sync.Mutex // serializes writers only; readers never take it
	standby *snapshot  // recycled buffer, guarded by mu

	offloadC offload.Client
	log      logging.Logger
}

// Option configures a Table at construction time.
type Option func(*Table)

// WithOffload mirrors every Insert/Remove/GC eviction into a hardware
// control plane via client. The default is an offload.NoOp, so this is
// always safe to leave unconfigured.
func WithOffload(client offload.Client) Option {
	return func(t *Table) { t.offloadC = client }
}

// WithLogger overrides the table's logger.
func WithLogger(l logging.Logger) Option {
	return func(t *Table) { t.log = l }
}

// New returns an empty Table.
func New(opts ...Option) *Table {
	t := &Table{
		offloadC: offload.NewNoOp(nil),
		log:      logging.NewNoOp(),
	}
	t.current.Store(newSnapshot(defaultCapacity))
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// mirrorAdd pushes entry's SAD route down to the offload client,
// best-effort.
func (t *Table) mirrorAdd(entry Entry) {
	if err := t.offloadC.AddSADRoute(context.Background(), &entry.Capabilities, entry.NodeID); err != nil {
		t.log.Debug("offload add sad route failed", "node_id", entry.NodeID.String(), "error", err)
	}
}

// mirrorRemove tears down entry's SAD route and node forward on the
// offload client, best-effort.
func (t *Table) mirrorRemove(entry Entry) {
	if err := t.offloadC.DeleteSADRoute(context.Background(), &entry.Capabilities); err != nil {
		t.log.Debug("offload delete sad route failed", "node_id", entry.NodeID.String(), "error", err)
	}
	if err := t.offloadC.DeleteNodeForward(context.Background(), entry.NodeID); err != nil {
		t.log.Debug("offload delete node forward failed", "node_id", entry.NodeID.String(), "error", err)
	}
}

// Snapshot acquires a read handle on the current snapshot's entry list.
// The returned slice must not be mutated by the caller, and Release must
// be called exactly once when the caller is done reading it.
func (t *Table) Snapshot() (entries []Entry, release func()) {
	snap := t.current.Load().acquire()
	return snap.entries, snap.release
}

// Size returns the number of entries currently published.
func (t *Table) Size() int {
	snap := t.current.Load()
	return len(snap.entries)
}

// publishAndReclaim swaps in next as the current snapshot, waits for
// readers of the outgoing snapshot to drain, and recycles it as the
// standby buffer for the next writer.
func (t *Table) publishAndReclaim(next *snapshot) {
	old := t.current.Swap(next)
	old.waitForReaders()
	t.standby = old
}

// writerSnapshot returns a fresh clone of the current snapshot for the
// writer to mutate, reusing the standby buffer's backing array when
// possible to avoid an allocation on every write.
func (t *Table) writerSnapshot() *snapshot {
	cur := t.current.Load()
	if t.standby == nil {
		return cur.clone()
	}
	next := t.standby
	t.standby = nil
	if cap(next.entries) < len(cur.entries) {
		next.entries = make([]Entry, len(cur.entries), len(cur.entries)*2)
	} else {
		next.entries = next.entries[:len(cur.entries)]
	}
	copy(next.entries, cur.entries)
	next.readers = 0
	return next
}

// Insert adds entry, or replaces the existing entry for the same node
// ID, and publishes the result.
func (t *Table) Insert(entry Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.writerSnapshot()
	if idx := next.findIndex(entry.NodeID); idx >= 0 {
		next.entries[idx] = entry
	} else {
		next.entries = append(next.entries, entry)
	}
	t.publishAndReclaim(next)
	t.mirrorAdd(entry)
}

// Remove deletes the entry for nodeID, if present, and publishes the
// result. It reports whether an entry was removed.
func (t *Table) Remove(nodeID id.NodeID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.writerSnapshot()
	idx := next.findIndex(nodeID)
	if idx < 0 {
		return false
	}
	removed := next.entries[idx]
	last := len(next.entries) - 1
	next.entries[idx] = next.entries[last]
	next.entries = next.entries[:last]
	t.publishAndReclaim(next)
	t.mirrorRemove(removed)
	return true
}

// UpdateMetrics updates the live metrics of an existing entry in place
// (latency, load, cost, last-updated timestamp) without touching its
// capability advertisement. It reports whether the node was found.
func (t *Table) UpdateMetrics(nodeID id.NodeID, latencyUS uint32, loadFactor float64, costMilli uint32, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := t.writerSnapshot()
	idx := next.findIndex(nodeID)
	if idx < 0 {
		return false
	}
	e := &next.entries[idx]
	e.LatencyUS = latencyUS
	e.LoadFactor = loadFactor
	e.CostMilli = costMilli
	e.LastUpdated = now
	t.publishAndReclaim(next)
	return true
}

// GC evicts every entry whose TTL has elapsed as of now, and returns the
// number of entries evicted. Entries with a zero TTL are permanent and
// are never evicted.
func (t *Table) GC(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur := t.current.Load()
	expiredCount := 0
	for i := range cur.entries {
		if cur.entries[i].expired(now) {
			expiredCount++
		}
	}
	if expiredCount == 0 {
		return 0
	}

	next := newSnapshot(len(cur.entries) - expiredCount)
	evicted := make([]Entry, 0, expiredCount)
	for i := range cur.entries {
		if cur.entries[i].expired(now) {
			evicted = append(evicted, cur.entries[i])
		} else {
			next.entries = append(next.entries, cur.entries[i])
		}
	}
	t.publishAndReclaim(next)
	for _, e := range evicted {
		t.mirrorRemove(e)
	}
	return expiredCount
}
