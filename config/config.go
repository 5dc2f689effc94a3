// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the fabric's tunable parameters: scoring weights,
// membership view sizes, and timer intervals, constructed through a
// fluent, error-accumulating Builder.
package config

import (
	"fmt"
	"time"

	"github.com/strand-protocol/strand/internal/gossip"
	"github.com/strand-protocol/strand/internal/score"
)

// NetworkType selects a named parameter preset.
type NetworkType string

// Known presets.
const (
	MainnetNetwork NetworkType = "mainnet"
	TestnetNetwork NetworkType = "testnet"
	LocalNetwork   NetworkType = "local"
)

// Config holds every tunable parameter of the routing fabric.
type Config struct {
	// Scoring
	Weights score.Weights `json:"weights"`
	TopK    int           `json:"topK"`

	// Forwarding
	Multipath int `json:"multipath"`

	// Membership (HyParView)
	MaxActiveView     int           `json:"maxActiveView"`
	MaxPassiveView    int           `json:"maxPassiveView"`
	ShuffleInterval   time.Duration `json:"shuffleInterval"`
	AdvertiseInterval time.Duration `json:"advertiseInterval"`

	// Routing table
	DefaultEntryTTL time.Duration `json:"defaultEntryTTL"`
	GCInterval      time.Duration `json:"gcInterval"`
}

// MainnetConfig is tuned for a large, latency-sensitive deployment: a
// longer entry TTL and a slower shuffle cadence trade membership churn
// for stability.
var MainnetConfig = Config{
	Weights:           score.DefaultWeights,
	TopK:              3,
	Multipath:         3,
	MaxActiveView:     gossip.MaxActive,
	MaxPassiveView:    gossip.MaxPassive,
	ShuffleInterval:   30 * time.Second,
	AdvertiseInterval: 5 * time.Second,
	DefaultEntryTTL:   5 * time.Minute,
	GCInterval:        30 * time.Second,
}

// TestnetConfig trades some stability for faster convergence during
// testing.
var TestnetConfig = Config{
	Weights:           score.DefaultWeights,
	TopK:              3,
	Multipath:         3,
	MaxActiveView:     gossip.MaxActive,
	MaxPassiveView:    gossip.MaxPassive,
	ShuffleInterval:   gossip.DefaultShuffle,
	AdvertiseInterval: gossip.DefaultAdvertise,
	DefaultEntryTTL:   time.Minute,
	GCInterval:        10 * time.Second,
}

// LocalConfig is tuned for a single-process, multi-node local run: very
// short intervals so tests and demos converge quickly.
var LocalConfig = Config{
	Weights:           score.DefaultWeights,
	TopK:              3,
	Multipath:         2,
	MaxActiveView:     gossip.MaxActive,
	MaxPassiveView:    gossip.MaxPassive,
	ShuffleInterval:   time.Second,
	AdvertiseInterval: 250 * time.Millisecond,
	DefaultEntryTTL:   10 * time.Second,
	GCInterval:        2 * time.Second,
}

// Builder provides a fluent interface for constructing a Config,
// accumulating the first validation error encountered so call chains
// don't need to be interrupted with early returns.
type Builder struct {
	config *Config
	err    error
}

// NewBuilder returns a Builder seeded with the local preset's defaults.
func NewBuilder() *Builder {
	clone := LocalConfig
	return &Builder{config: &clone}
}

// FromPreset replaces the builder's working config with a clone of the
// named preset.
func (b *Builder) FromPreset(preset NetworkType) *Builder {
	if b.err != nil {
		return b
	}
	switch preset {
	case MainnetNetwork:
		clone := MainnetConfig
		b.config = &clone
	case TestnetNetwork:
		clone := TestnetConfig
		b.config = &clone
	case LocalNetwork:
		clone := LocalConfig
		b.config = &clone
	default:
		b.err = fmt.Errorf("config: unknown preset %q", preset)
	}
	return b
}

// WithWeights overrides the scoring weights.
func (b *Builder) WithWeights(w score.Weights) *Builder {
	if b.err != nil {
		return b
	}
	b.config.Weights = w
	return b
}

// WithTopK overrides the resolve fan-out.
func (b *Builder) WithTopK(k int) *Builder {
	if b.err != nil {
		return b
	}
	if k < 1 {
		b.err = fmt.Errorf("config: topK must be at least 1, got %d", k)
		return b
	}
	b.config.TopK = k
	if b.config.Multipath > k {
		b.config.Multipath = k
	}
	return b
}

// WithMultipath overrides the number of candidates considered for
// weighted-random next-hop selection. It cannot exceed TopK.
func (b *Builder) WithMultipath(n int) *Builder {
	if b.err != nil {
		return b
	}
	if n < 1 {
		b.err = fmt.Errorf("config: multipath must be at least 1, got %d", n)
		return b
	}
	if n > b.config.TopK {
		b.err = fmt.Errorf("config: multipath cannot exceed topK, got %d > %d", n, b.config.TopK)
		return b
	}
	b.config.Multipath = n
	return b
}

// WithEntryTTL overrides the default routing-table entry TTL applied to
// entries learned via gossip advertisement.
func (b *Builder) WithEntryTTL(ttl time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	if ttl < 0 {
		b.err = fmt.Errorf("config: entry TTL cannot be negative, got %s", ttl)
		return b
	}
	b.config.DefaultEntryTTL = ttl
	return b
}

// WithGCInterval overrides how often the routing table's TTL garbage
// collector runs.
func (b *Builder) WithGCInterval(interval time.Duration) *Builder {
	if b.err != nil {
		return b
	}
	if interval <= 0 {
		b.err = fmt.Errorf("config: gc interval must be positive, got %s", interval)
		return b
	}
	b.config.GCInterval = interval
	return b
}

// Build validates and returns the constructed Config, or the first error
// encountered during the builder chain.
func (b *Builder) Build() (*Config, error) {
	if b.err != nil {
		return nil, b.err
	}
	sum := b.config.Weights.Capability + b.config.Weights.Latency + b.config.Weights.Cost +
		b.config.Weights.ContextWindow + b.config.Weights.Trust
	if sum <= 0 {
		return nil, fmt.Errorf("config: scoring weights must sum to a positive value, got %f", sum)
	}
	return b.config, nil
}
