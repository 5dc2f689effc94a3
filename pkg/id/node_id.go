// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package id defines the fixed-size node identifier used throughout the
// fabric: the SAD codec, the routing table, the forwarding engine, and the
// gossip protocol all key on this type.
package id

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// Len is the size in bytes of a NodeID (128 bits).
const Len = 16

// NodeID is an opaque 128-bit token identifying a node in the fabric.
// The zero value is a reserved sentinel and never identifies a real node.
type NodeID [Len]byte

// Empty is the reserved zero NodeID.
var Empty NodeID

// ErrInvalidLength is returned by ParseBytes when the input is not exactly
// Len bytes long.
var ErrInvalidLength = errors.New("id: node id must be exactly 16 bytes")

// New generates a random NodeID from a cryptographic entropy source. It
// panics if the system entropy source fails, which in practice never
// happens on any supported platform.
func New() NodeID {
	var n NodeID
	if _, err := rand.Read(n[:]); err != nil {
		panic(fmt.Sprintf("id: failed to read entropy: %v", err))
	}
	return n
}

// ParseBytes copies b into a NodeID, failing if the length is wrong.
func ParseBytes(b []byte) (NodeID, error) {
	var n NodeID
	if len(b) != Len {
		return n, ErrInvalidLength
	}
	copy(n[:], b)
	return n, nil
}

// IsZero reports whether n is the reserved sentinel value.
func (n NodeID) IsZero() bool {
	return n == Empty
}

// Compare returns -1, 0, or 1 for byte-wise ordering, used for stable
// iteration order in tests and diagnostics.
func (n NodeID) Compare(other NodeID) int {
	for i := range n {
		if n[i] != other[i] {
			if n[i] < other[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// String renders the NodeID as a hex string for logs and diagnostics.
func (n NodeID) String() string {
	return hex.EncodeToString(n[:])
}

// MarshalText implements encoding.TextMarshaler.
func (n NodeID) MarshalText() ([]byte, error) {
	return []byte(n.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (n *NodeID) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	parsed, err := ParseBytes(b)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}
