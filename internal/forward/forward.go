// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package forward implements the hot-path forwarding decision: given an
// inbound frame, resolve its embedded semantic address against the
// routing table, pick a next hop by weighted-random selection among the
// top candidates, rewrite the destination, and hand the frame to a
// caller-supplied send function.
package forward

import (
	"context"
	"sync/atomic"

	"github.com/strand-protocol/strand/internal/multipath"
	"github.com/strand-protocol/strand/internal/offload"
	"github.com/strand-protocol/strand/internal/routetable"
	"github.com/strand-protocol/strand/internal/sad"
	"github.com/strand-protocol/strand/internal/score"
	"github.com/strand-protocol/strand/logging"
	"github.com/strand-protocol/strand/pkg/id"
	"github.com/strand-protocol/strand/pkg/xorshift"
	"github.com/strand-protocol/strand/transport"
)

// MaxNextHops caps how many top-scoring candidates are considered for
// weighted-random selection on a single forwarding decision.
const MaxNextHops = 8

// DefaultMultipath is the default number of candidates resolved per
// forwarding decision when the caller does not override it.
const DefaultMultipath = 3

// Counters are the engine's lifetime forwarding statistics, safe for
// concurrent access.
type Counters struct {
	Forwarded      uint64
	Dropped        uint64
	Resolved       uint64
	ResolveFailure uint64
}

// Engine is the per-node forwarding decision point. It holds no frame
// state between calls; every Process call is independent.
type Engine struct {
	selfID       id.NodeID
	table        *routetable.Table
	send         transport.SendFunc
	weights      score.Weights
	multipathN   int
	rng          *xorshift.Source
	log          logging.Logger
	stickyRoutes *multipath.Table
	offloadC     offload.Client

	forwarded      atomic.Uint64
	dropped        atomic.Uint64
	resolved       atomic.Uint64
	resolveFailure atomic.Uint64
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithWeights overrides the scoring weights used to resolve candidates.
func WithWeights(w score.Weights) Option {
	return func(e *Engine) { e.weights = w }
}

// WithMultipath overrides how many candidates are resolved per decision.
func WithMultipath(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.multipathN = n
		}
	}
}

// WithLogger overrides the engine's logger.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithStickyRoutes enables flow-sticky next-hop selection: once table is
// populated, Process consults it before falling back to weighted-random
// selection over the resolved candidates. Pass nil (the default) to
// always use weighted-random selection.
func WithStickyRoutes(table *multipath.Table) Option {
	return func(e *Engine) { e.stickyRoutes = table }
}

// WithOffload mirrors every successful forwarding decision into a
// hardware control plane via client. The default is an offload.NoOp, so
// this is always safe to leave unconfigured.
func WithOffload(client offload.Client) Option {
	return func(e *Engine) { e.offloadC = client }
}

// New returns a forwarding Engine for selfID, resolving against table and
// delivering chosen frames via send.
func New(selfID id.NodeID, table *routetable.Table, send transport.SendFunc, opts ...Option) *Engine {
	e := &Engine{
		selfID:     selfID,
		table:      table,
		send:       send,
		weights:    score.DefaultWeights,
		multipathN: DefaultMultipath,
		rng:        xorshift.New(),
		log:        logging.NewNoOp(),
		offloadC:   offload.NewNoOp(nil),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.multipathN > MaxNextHops {
		e.multipathN = MaxNextHops
	}
	return e
}

// Counters returns a snapshot of the engine's lifetime statistics.
func (e *Engine) Counters() Counters {
	return Counters{
		Forwarded:      e.forwarded.Load(),
		Dropped:        e.dropped.Load(),
		Resolved:       e.resolved.Load(),
		ResolveFailure: e.resolveFailure.Load(),
	}
}

// Process runs one frame through the forwarding decision. It returns true
// if the frame was either delivered locally (self-addressed) or handed
// to send; it returns false if the frame was dropped, in which case the
// reason was already logged and counted.
func (e *Engine) Process(frame *transport.Frame) bool {
	if frame.Header.DstNodeID == e.selfID {
		e.log.Debug("frame addressed to self, not forwarding")
		return true
	}

	if frame.Header.TTL == 0 {
		e.drop("ttl expired")
		return false
	}
	frame.Header.TTL--

	query, err := e.extractSAD(frame)
	if err != nil {
		e.drop("no sad in frame: " + err.Error())
		return false
	}

	hop, ok := e.resolve(frame.Header.SrcNodeID, query)
	if !ok {
		e.resolveFailure.Add(1)
		e.drop("resolve failed: no eligible next hop")
		return false
	}

	frame.Header.DstNodeID = hop
	if err := e.send(transport.PortZero, frame); err != nil {
		e.log.Warn("send failed", "next_hop", hop.String(), "error", err)
		e.dropped.Add(1)
		return false
	}

	if err := e.offloadC.AddNodeForward(context.Background(), hop, offload.CPUPort); err != nil {
		e.log.Debug("offload mirror failed", "next_hop", hop.String(), "error", err)
	}

	e.forwarded.Add(1)
	return true
}

func (e *Engine) drop(reason string) {
	e.log.Debug("dropping frame", "reason", reason)
	e.dropped.Add(1)
}

// extractSAD locates and decodes the SAD carried in the frame's options
// region.
func (e *Engine) extractSAD(frame *transport.Frame) (*sad.SAD, error) {
	options, err := frame.Options()
	if err != nil {
		return nil, err
	}
	if len(options) == 0 {
		return nil, transport.ErrOptionsOOB
	}
	return sad.Decode(options)
}

// resolve finds up to e.multipathN candidates for query and picks one,
// preferring a flow-sticky pick from stickyRoutes when one is configured
// and lands among the qualifying candidates.
func (e *Engine) resolve(flowKey id.NodeID, query *sad.SAD) (id.NodeID, bool) {
	entries, release := e.table.Snapshot()
	defer release()

	results := score.TopK(e.weights, query, entries, e.multipathN)
	if len(results) == 0 {
		return id.NodeID{}, false
	}
	e.resolved.Add(1)

	return e.selectNextHop(flowKey, results), true
}

// selectNextHop picks among results, consulting stickyRoutes first when
// configured. It falls back to weighted-random selection over results,
// whose weights are their match scores; a single candidate bypasses the
// RNG entirely.
func (e *Engine) selectNextHop(flowKey id.NodeID, results []score.Result) id.NodeID {
	if e.stickyRoutes != nil {
		if sticky, err := e.stickyRoutes.LookupNodeID(flowKey); err == nil {
			for _, r := range results {
				if r.Entry.NodeID == sticky {
					return sticky
				}
			}
		}
	}

	if len(results) == 1 {
		return results[0].Entry.NodeID
	}

	var total float64
	for _, r := range results {
		total += r.Score
	}
	if total <= 0 {
		return results[0].Entry.NodeID
	}

	target := e.rng.Float64() * total
	var cumulative float64
	for _, r := range results {
		cumulative += r.Score
		if target <= cumulative {
			return r.Entry.NodeID
		}
	}
	return results[len(results)-1].Entry.NodeID
}
