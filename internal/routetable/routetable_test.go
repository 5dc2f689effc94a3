// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package routetable

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/strand-protocol/strand/internal/offload"
	"github.com/strand-protocol/strand/internal/sad"
	"github.com/strand-protocol/strand/pkg/id"
)

type mockOffloadClient struct {
	offload.Client
	addedSAD       []id.NodeID
	deletedSAD     int
	deletedForward []id.NodeID
}

func (m *mockOffloadClient) AddSADRoute(_ context.Context, _ *sad.SAD, nodeID id.NodeID) error {
	m.addedSAD = append(m.addedSAD, nodeID)
	return nil
}

func (m *mockOffloadClient) DeleteSADRoute(context.Context, *sad.SAD) error {
	m.deletedSAD++
	return nil
}

func (m *mockOffloadClient) DeleteNodeForward(_ context.Context, nodeID id.NodeID) error {
	m.deletedForward = append(m.deletedForward, nodeID)
	return nil
}

func newTestEntry(now time.Time, ttl time.Duration) Entry {
	return Entry{
		NodeID:      id.New(),
		Capabilities: *sad.New(),
		LatencyUS:   1000,
		LoadFactor:  0.1,
		CostMilli:   10,
		TrustLevel:  sad.TrustIdentity,
		RegionCode:  840,
		LastUpdated: now,
		TTL:         ttl,
	}
}

func TestInsertAndSnapshot(t *testing.T) {
	require := require.New(t)

	table := New()
	e := newTestEntry(time.Now(), 0)
	table.Insert(e)

	entries, release := table.Snapshot()
	defer release()
	require.Len(entries, 1)
	require.Equal(e.NodeID, entries[0].NodeID)
}

func TestInsertReplacesExistingNode(t *testing.T) {
	require := require.New(t)

	table := New()
	e := newTestEntry(time.Now(), 0)
	table.Insert(e)

	e.LatencyUS = 5000
	table.Insert(e)

	require.Equal(1, table.Size())
	entries, release := table.Snapshot()
	defer release()
	require.Equal(uint32(5000), entries[0].LatencyUS)
}

func TestRemove(t *testing.T) {
	require := require.New(t)

	table := New()
	e := newTestEntry(time.Now(), 0)
	table.Insert(e)

	require.True(table.Remove(e.NodeID))
	require.Equal(0, table.Size())
	require.False(table.Remove(e.NodeID), "removing twice reports not-found")
}

func TestGCEvictsOnlyExpiredEntries(t *testing.T) {
	require := require.New(t)

	table := New()
	now := time.Now()

	permanent := newTestEntry(now.Add(-time.Hour), 0)
	expired := newTestEntry(now.Add(-time.Hour), time.Minute)
	fresh := newTestEntry(now, time.Hour)

	table.Insert(permanent)
	table.Insert(expired)
	table.Insert(fresh)

	evicted := table.GC(now)
	require.Equal(1, evicted)
	require.Equal(2, table.Size())

	entries, release := table.Snapshot()
	defer release()
	for _, e := range entries {
		require.NotEqual(expired.NodeID, e.NodeID)
	}
}

func TestInsertMirrorsAddSADRouteToOffloadClient(t *testing.T) {
	require := require.New(t)

	mock := &mockOffloadClient{}
	table := New(WithOffload(mock))
	e := newTestEntry(time.Now(), 0)
	table.Insert(e)

	require.Equal([]id.NodeID{e.NodeID}, mock.addedSAD)
}

func TestRemoveMirrorsDeleteToOffloadClient(t *testing.T) {
	require := require.New(t)

	mock := &mockOffloadClient{}
	table := New(WithOffload(mock))
	e := newTestEntry(time.Now(), 0)
	table.Insert(e)

	require.True(table.Remove(e.NodeID))
	require.Equal(1, mock.deletedSAD)
	require.Equal([]id.NodeID{e.NodeID}, mock.deletedForward)
}

func TestGCMirrorsDeleteForEvictedEntries(t *testing.T) {
	require := require.New(t)

	mock := &mockOffloadClient{}
	table := New(WithOffload(mock))
	now := time.Now()

	expired := newTestEntry(now.Add(-time.Hour), time.Minute)
	fresh := newTestEntry(now, time.Hour)
	table.Insert(expired)
	table.Insert(fresh)
	mock.addedSAD = nil // only care about deletions from here

	require.Equal(1, table.GC(now))
	require.Equal(1, mock.deletedSAD)
	require.Equal([]id.NodeID{expired.NodeID}, mock.deletedForward)
}

func TestGCIsNoOpWhenNothingExpired(t *testing.T) {
	require := require.New(t)

	table := New()
	now := time.Now()
	table.Insert(newTestEntry(now, 0))
	table.Insert(newTestEntry(now, time.Hour))

	require.Equal(0, table.GC(now))
	require.Equal(2, table.Size())
}

// TestConcurrentReadersDuringWrites exercises many goroutines repeatedly
// taking snapshots while a single writer inserts, updates, and removes
// entries. Run with -race: a reader must never observe a torn or
// half-written entry, and must never deadlock a writer.
func TestConcurrentReadersDuringWrites(t *testing.T) {
	table := New()
	const readers = 16
	const writes = 200

	stop := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				entries, release := table.Snapshot()
				for _, e := range entries {
					_ = e.NodeID.String() // touch every field region
				}
				release()
			}
		}()
	}

	now := time.Now()
	for i := 0; i < writes; i++ {
		e := newTestEntry(now, 0)
		table.Insert(e)
		table.UpdateMetrics(e.NodeID, uint32(i), 0.5, uint32(i), now)
		if i%3 == 0 {
			table.Remove(e.NodeID)
		}
	}

	close(stop)
	wg.Wait()
}
