// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package multipath implements Maglev consistent hashing: a lookup table
// that maps a flow key to a backend node with minimal disruption when
// the backend set changes, used as an opt-in alternative to the
// forwarding engine's default weighted-random next-hop selection when a
// caller needs flow affinity (the same flow always lands on the same
// node as long as that node stays healthy).
package multipath

import (
	"errors"
	"hash/fnv"

	"github.com/strand-protocol/strand/pkg/id"
)

// TableSize is the size of the Maglev lookup table. It must be prime;
// 5003 is large enough to keep the load imbalance across a few hundred
// backends small while staying cheap to rebuild.
const TableSize = 5003

// MaxBackends is the maximum number of backends one Table can hold.
const MaxBackends = 128

var (
	ErrTableFull      = errors.New("multipath: backend table full")
	ErrUnknownBackend = errors.New("multipath: backend not found")
	ErrNotBuilt       = errors.New("multipath: table not populated")
)

type backend struct {
	nodeID id.NodeID
	weight int
	active bool
}

// Table is a Maglev consistent hash table over a set of backend nodes.
// It is not safe for concurrent use; callers needing concurrent lookups
// should guard a Table with their own synchronization, or rebuild and
// swap a pointer to a fresh Table (the routing table's RCU pattern
// applies equally well here).
type Table struct {
	backends []backend
	lookup   []int32 // index into backends, or -1 if unbuilt
	built    bool
}

// New returns an empty, unbuilt Table.
func New() *Table {
	return &Table{backends: make([]backend, 0, MaxBackends)}
}

// AddBackend registers a backend with the given weight (>=1 relative
// share of the table). The table must be rebuilt with Populate before
// Lookup reflects the change.
func (t *Table) AddBackend(nodeID id.NodeID, weight int) error {
	if len(t.backends) >= MaxBackends {
		return ErrTableFull
	}
	if weight < 1 {
		weight = 1
	}
	t.backends = append(t.backends, backend{nodeID: nodeID, weight: weight, active: true})
	t.built = false
	return nil
}

// RemoveBackend deregisters a backend by swap-remove. The table must be
// rebuilt with Populate before Lookup reflects the change.
func (t *Table) RemoveBackend(nodeID id.NodeID) error {
	for i := range t.backends {
		if t.backends[i].nodeID == nodeID {
			last := len(t.backends) - 1
			t.backends[i] = t.backends[last]
			t.backends = t.backends[:last]
			t.built = false
			return nil
		}
	}
	return ErrUnknownBackend
}

// BackendCount returns the number of registered backends.
func (t *Table) BackendCount() int { return len(t.backends) }

func hashDJB2(data []byte) uint64 {
	var h uint64 = 5381
	for _, b := range data {
		h = h*33 + uint64(b)
	}
	return h
}

func hashFNV1a(data []byte) uint64 {
	h := fnv.New64a()
	h.Write(data)
	return h.Sum64()
}

// Populate (re)builds the lookup table from the current backend set
// using the offset/skip permutation algorithm. It must be called after
// any AddBackend/RemoveBackend before Lookup is used.
func (t *Table) Populate() {
	n := len(t.backends)
	t.lookup = make([]int32, TableSize)
	for i := range t.lookup {
		t.lookup[i] = -1
	}
	if n == 0 {
		t.built = true
		return
	}

	permutation := make([][]int, n)
	next := make([]int, n)
	claimed := make([]int, n) // slots claimed so far, per backend
	for i, b := range t.backends {
		key := b.nodeID[:]
		offset := hashDJB2(key) % TableSize
		skip := hashFNV1a(key)%(TableSize-1) + 1 // coprime to the prime TableSize

		perm := make([]int, TableSize)
		for j := 0; j < TableSize; j++ {
			perm[j] = int((offset + uint64(j)*skip) % TableSize)
		}
		permutation[i] = perm
	}

	// Weighted round robin: each pass, the backend with the smallest
	// claimed/weight ratio goes next, so higher-weight backends claim
	// proportionally more of the table.
	filled := 0
	for filled < TableSize {
		best := -1
		var bestRatio float64
		for i, b := range t.backends {
			ratio := float64(claimed[i]) / float64(b.weight)
			if best == -1 || ratio < bestRatio {
				best = i
				bestRatio = ratio
			}
		}

		var slot int
		for {
			slot = permutation[best][next[best]%TableSize]
			next[best]++
			if t.lookup[slot] == -1 {
				break
			}
		}
		t.lookup[slot] = int32(best)
		claimed[best]++
		filled++
	}

	t.built = true
}

// Lookup returns the backend node ID assigned to flowKey.
func (t *Table) Lookup(flowKey []byte) (id.NodeID, error) {
	if !t.built {
		return id.NodeID{}, ErrNotBuilt
	}
	if len(t.backends) == 0 {
		return id.NodeID{}, ErrUnknownBackend
	}
	h := hashFNV1a(flowKey) % TableSize
	idx := t.lookup[h]
	if idx < 0 {
		return id.NodeID{}, ErrUnknownBackend
	}
	return t.backends[idx].nodeID, nil
}

// LookupNodeID is a convenience wrapper over Lookup for callers keying
// flows by a node ID (e.g. the originating client) rather than an
// arbitrary byte slice.
func (t *Table) LookupNodeID(flowKey id.NodeID) (id.NodeID, error) {
	return t.Lookup(flowKey[:])
}

// TableSizeUsed returns the configured table size, exposed for tests and
// diagnostics.
func (t *Table) TableSizeUsed() int { return TableSize }
