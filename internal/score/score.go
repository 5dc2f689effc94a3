// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package score implements the weighted multi-constraint matching engine:
// given a query SAD and a candidate route entry, compute a composite score
// in [0,1], or disqualify the candidate outright when it violates a hard
// constraint.
package score

import (
	"encoding/binary"
	"math/bits"

	"github.com/strand-protocol/strand/internal/routetable"
	"github.com/strand-protocol/strand/internal/sad"
	"github.com/strand-protocol/strand/pkg/set"
)

// Disqualified is the sentinel score reported for a candidate that fails a
// hard constraint. Any negative score means disqualified.
const Disqualified = -1.0

// Weights are the five nonnegative scoring coefficients. They should sum
// to 1.0 but this is not enforced. There is no global mutable weight
// state: callers own and pass an explicit Weights value.
type Weights struct {
	Capability    float64
	Latency       float64
	Cost          float64
	ContextWindow float64
	Trust         float64
}

// DefaultWeights are the specification's default scoring coefficients.
var DefaultWeights = Weights{
	Capability:    0.30,
	Latency:       0.25,
	Cost:          0.20,
	ContextWindow: 0.15,
	Trust:         0.10,
}

// Result pairs a matched route entry with its composite score.
type Result struct {
	Entry routetable.Entry
	Score float64
}

// Score computes the composite match score of candidate against query
// using weights. A return value < 0 means the candidate is disqualified by
// a hard constraint and must not be considered for selection.
func Score(weights Weights, query *sad.SAD, candidate *routetable.Entry) float64 {
	// Wildcard shortcut: an empty query matches everything perfectly.
	if len(query.Fields) == 0 {
		return 1.0
	}

	candSAD := &candidate.Capabilities

	// Hard constraints, checked first; any violation disqualifies.
	if !matchModelArch(query, candSAD) {
		return Disqualified
	}
	if !matchContextWindowHard(query, candidate.ContextWindow()) {
		return Disqualified
	}
	if !matchTrustHard(query, candidate.TrustLevel) {
		return Disqualified
	}
	if !matchRegionExclude(query, candidate.RegionCode) {
		return Disqualified
	}

	// Soft sub-scores, each in [0,1].
	capScore := matchCapability(query, candSAD)
	latScore := matchLatency(query, candidate.LatencyUS)
	costScore := matchCost(query, candidate.CostMilli)
	regionPref := matchRegionPrefer(query, candidate.RegionCode)

	composite := weights.Capability*capScore +
		weights.Latency*latScore +
		weights.Cost*costScore +
		weights.ContextWindow*1.0 + // hard constraint already passed
		weights.Trust*1.0 // hard constraint already passed

	composite *= regionPref

	if composite > 1.0 {
		composite = 1.0
	}
	if composite < 0.0 {
		composite = 0.0
	}
	return composite
}

func matchModelArch(query, candidate *sad.SAD) bool {
	if _, ok := query.Find(sad.TagModelArch); !ok {
		return true // no constraint
	}
	if _, ok := candidate.Find(sad.TagModelArch); !ok {
		return false
	}
	return query.GetU32(sad.TagModelArch) == candidate.GetU32(sad.TagModelArch)
}

func matchContextWindowHard(query *sad.SAD, candidateWindow uint32) bool {
	_, ok := query.Find(sad.TagContextWindow)
	if !ok {
		return true
	}
	return candidateWindow >= query.GetU32(sad.TagContextWindow)
}

func matchTrustHard(query *sad.SAD, candidateTrust uint8) bool {
	_, ok := query.Find(sad.TagTrustLevel)
	if !ok {
		return true
	}
	return candidateTrust >= query.GetU8(sad.TagTrustLevel)
}

func matchRegionExclude(query *sad.SAD, candidateRegion uint16) bool {
	f, ok := query.Find(sad.TagRegionExclude)
	if !ok {
		return true
	}
	return !regionIn(candidateRegion, f)
}

func matchCapability(query, candidate *sad.SAD) float64 {
	if _, ok := query.Find(sad.TagCapabilityBitset); !ok {
		return 1.0
	}
	qCaps := query.GetU32(sad.TagCapabilityBitset)
	if qCaps == 0 {
		return 1.0
	}
	if _, ok := candidate.Find(sad.TagCapabilityBitset); !ok {
		return 0.0
	}
	cCaps := candidate.GetU32(sad.TagCapabilityBitset)
	matched := cCaps & qCaps
	return float64(bits.OnesCount32(matched)) / float64(bits.OnesCount32(qCaps))
}

func matchLatency(query *sad.SAD, candidateLatencyUS uint32) float64 {
	_, ok := query.Find(sad.TagMaxLatencyMs)
	if !ok {
		return 1.0
	}
	maxMS := query.GetU32(sad.TagMaxLatencyMs)
	if maxMS == 0 {
		return 0.0
	}
	candMS := float64(candidateLatencyUS) / 1000.0
	s := 1.0 - candMS/float64(maxMS)
	if s < 0 {
		return 0
	}
	return s
}

func matchCost(query *sad.SAD, candidateCostMilli uint32) float64 {
	_, ok := query.Find(sad.TagMaxCostMilli)
	if !ok {
		return 1.0
	}
	maxCost := query.GetU32(sad.TagMaxCostMilli)
	if maxCost == 0 {
		return 0.0
	}
	s := 1.0 - float64(candidateCostMilli)/float64(maxCost)
	if s < 0 {
		return 0
	}
	return s
}

func matchRegionPrefer(query *sad.SAD, candidateRegion uint16) float64 {
	f, ok := query.Find(sad.TagRegionPrefer)
	if !ok {
		return 1.0
	}
	if regionIn(candidateRegion, f) {
		return 1.0
	}
	return 0.5
}

func regionIn(region uint16, f sad.Field) bool {
	if len(f.Value) < 2 {
		return false
	}
	count := len(f.Value) / 2
	regions := set.New[uint16](count)
	for i := 0; i < count; i++ {
		regions.Add(binary.BigEndian.Uint16(f.Value[i*2:]))
	}
	return regions.Contains(region)
}

// TopK scans entries and returns the K highest-scoring, non-disqualified
// candidates, sorted descending by score with ties broken by insertion
// (scan) order. It is a linear scan with a size-K insertion sort, matching
// the original resolver's approach rather than a full sort of the table.
func TopK(weights Weights, query *sad.SAD, entries []routetable.Entry, k int) []Result {
	if k <= 0 {
		return nil
	}

	results := make([]Result, 0, k)
	for i := range entries {
		s := Score(weights, query, &entries[i])
		if s < 0 {
			continue // disqualified
		}

		if len(results) < k {
			pos := len(results)
			results = append(results, Result{})
			for pos > 0 && results[pos-1].Score < s {
				results[pos] = results[pos-1]
				pos--
			}
			results[pos] = Result{Entry: entries[i], Score: s}
			continue
		}

		if s > results[len(results)-1].Score {
			pos := len(results) - 1
			for pos > 0 && results[pos-1].Score < s {
				results[pos] = results[pos-1]
				pos--
			}
			results[pos] = Result{Entry: entries[i], Score: s}
		}
	}

	return results
}
