// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderDefaultsBuildSuccessfully(t *testing.T) {
	require := require.New(t)

	cfg, err := NewBuilder().Build()
	require.NoError(err)
	require.Equal(LocalConfig.TopK, cfg.TopK)
}

func TestBuilderFromPresetClonesRatherThanAliases(t *testing.T) {
	require := require.New(t)

	cfg, err := NewBuilder().FromPreset(MainnetNetwork).WithTopK(5).Build()
	require.NoError(err)
	require.Equal(5, cfg.TopK)
	require.Equal(3, MainnetConfig.TopK, "preset global must not be mutated")
}

func TestBuilderRejectsUnknownPreset(t *testing.T) {
	require := require.New(t)

	_, err := NewBuilder().FromPreset(NetworkType("nonexistent")).Build()
	require.Error(err)
}

func TestBuilderMultipathCannotExceedTopK(t *testing.T) {
	require := require.New(t)

	_, err := NewBuilder().WithTopK(2).WithMultipath(5).Build()
	require.Error(err)
}

func TestBuilderReducesMultipathWhenTopKShrinksBelowIt(t *testing.T) {
	require := require.New(t)

	cfg, err := NewBuilder().WithMultipath(2).WithTopK(1).Build()
	require.NoError(err)
	require.Equal(1, cfg.Multipath)
}

func TestBuilderErrorShortCircuitsLaterCalls(t *testing.T) {
	require := require.New(t)

	_, err := NewBuilder().WithTopK(-1).WithGCInterval(0).Build()
	require.Error(err)
	require.Contains(err.Error(), "topK")
}
