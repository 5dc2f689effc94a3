// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package multipath

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strand-protocol/strand/pkg/id"
)

func TestLookupIsDeterministicForSameFlowKey(t *testing.T) {
	require := require.New(t)

	table := New()
	for i := 0; i < 5; i++ {
		require.NoError(table.AddBackend(id.New(), 1))
	}
	table.Populate()

	flow := id.New()
	first, err := table.LookupNodeID(flow)
	require.NoError(err)

	for i := 0; i < 50; i++ {
		again, err := table.LookupNodeID(flow)
		require.NoError(err)
		require.Equal(first, again)
	}
}

func TestLookupBeforePopulateFails(t *testing.T) {
	require := require.New(t)

	table := New()
	require.NoError(table.AddBackend(id.New(), 1))

	_, err := table.Lookup([]byte("flow"))
	require.ErrorIs(err, ErrNotBuilt)
}

func TestAllSlotsAssignedAfterPopulate(t *testing.T) {
	require := require.New(t)

	table := New()
	for i := 0; i < 8; i++ {
		require.NoError(table.AddBackend(id.New(), 1))
	}
	table.Populate()

	seen := make(map[int32]int)
	for _, idx := range table.lookup {
		require.GreaterOrEqual(idx, int32(0))
		seen[idx]++
	}
	require.Len(seen, 8)
}

func TestHigherWeightClaimsMoreSlots(t *testing.T) {
	require := require.New(t)

	table := New()
	light := id.New()
	heavy := id.New()
	require.NoError(table.AddBackend(light, 1))
	require.NoError(table.AddBackend(heavy, 4))
	table.Populate()

	var lightCount, heavyCount int
	for _, idx := range table.lookup {
		switch table.backends[idx].nodeID {
		case light:
			lightCount++
		case heavy:
			heavyCount++
		}
	}
	require.Greater(heavyCount, lightCount)
}

func TestRemoveBackendRequiresRepopulate(t *testing.T) {
	require := require.New(t)

	table := New()
	a := id.New()
	b := id.New()
	require.NoError(table.AddBackend(a, 1))
	require.NoError(table.AddBackend(b, 1))
	table.Populate()

	require.NoError(table.RemoveBackend(a))
	require.Equal(1, table.BackendCount())
	_, err := table.LookupNodeID(id.New())
	require.ErrorIs(err, ErrNotBuilt)

	require.NoError(table.RemoveBackend(b))
	require.ErrorIs(table.RemoveBackend(b), ErrUnknownBackend)
}
