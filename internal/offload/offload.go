// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package offload defines the hardware control-plane interface used to
// push SAD ternary-match and node forwarding rules down to a P4Runtime
// switch, and provides a no-op Client for deployments with no offload
// target.
package offload

import (
	"context"
	"errors"

	"github.com/strand-protocol/strand/internal/sad"
	"github.com/strand-protocol/strand/logging"
	"github.com/strand-protocol/strand/pkg/id"
)

// DefaultPort and DefaultHost are the conventional P4Runtime endpoint
// defaults.
const (
	DefaultPort = 9090
	DefaultHost = "localhost"
)

// CPUPort is the reserved egress port that delivers a packet to this
// node's own control plane rather than out a physical interface.
const CPUPort uint32 = 64

// Error codes, mirroring the control plane's own error domain so a
// caller can distinguish connectivity failures from rule-table
// rejections.
var (
	ErrGeneric    = errors.New("offload: generic failure")
	ErrConnection = errors.New("offload: not connected")
	ErrNotFound   = errors.New("offload: rule not found")
	ErrInvalid    = errors.New("offload: invalid rule")
	ErrTableFull  = errors.New("offload: table full")
)

// Client is the hardware-offload control plane surface. A Client that
// has nothing to offload to (no collaborator configured) should be a
// NoOp, not nil: every forwarding and routing-table code path that
// touches offload state can then stay unconditional.
type Client interface {
	// Connected reports whether the client currently holds a live
	// connection to an offload target.
	Connected() bool

	// AddSADRoute installs a ternary-match rule on model_arch,
	// capability bitset, and context_window that forwards matching
	// traffic to nodeID.
	AddSADRoute(ctx context.Context, query *sad.SAD, nodeID id.NodeID) error

	// DeleteSADRoute removes a previously installed SAD ternary-match
	// rule.
	DeleteSADRoute(ctx context.Context, query *sad.SAD) error

	// AddNodeForward installs an exact-match rule forwarding traffic
	// addressed to nodeID out egressPort.
	AddNodeForward(ctx context.Context, nodeID id.NodeID, egressPort uint32) error

	// DeleteNodeForward removes a previously installed node forwarding
	// rule.
	DeleteNodeForward(ctx context.Context, nodeID id.NodeID) error

	// Close releases the client's connection, if any.
	Close() error
}

// NoOp is a Client that performs no hardware offload and always
// succeeds, logging each call at debug level. It is the default Client
// when no offload target is configured, matching the reference control
// plane's stub-mode behavior.
type NoOp struct {
	log logging.Logger
}

// NewNoOp returns a Client that does nothing.
func NewNoOp(log logging.Logger) *NoOp {
	if log == nil {
		log = logging.NewNoOp()
	}
	return &NoOp{log: log}
}

func (n *NoOp) Connected() bool { return false }

func (n *NoOp) AddSADRoute(ctx context.Context, query *sad.SAD, nodeID id.NodeID) error {
	n.log.Debug("offload stub: add sad route", "node_id", nodeID.String())
	return nil
}

func (n *NoOp) DeleteSADRoute(ctx context.Context, query *sad.SAD) error {
	n.log.Debug("offload stub: delete sad route")
	return nil
}

func (n *NoOp) AddNodeForward(ctx context.Context, nodeID id.NodeID, egressPort uint32) error {
	n.log.Debug("offload stub: add node forward", "node_id", nodeID.String(), "port", egressPort)
	return nil
}

func (n *NoOp) DeleteNodeForward(ctx context.Context, nodeID id.NodeID) error {
	n.log.Debug("offload stub: delete node forward", "node_id", nodeID.String())
	return nil
}

func (n *NoOp) Close() error { return nil }

var _ Client = (*NoOp)(nil)
