// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gossip implements HyParView: a partial, self-healing
// membership protocol that maintains a small active view used for
// routing-table advertisement and a larger passive view used to repair
// the active view when peers fail.
package gossip

import (
	"encoding/binary"
	"errors"

	"github.com/strand-protocol/strand/pkg/id"
)

// MessageType identifies a gossip protocol message.
type MessageType uint8

// Known gossip message types.
const (
	MsgJoin         MessageType = 0x01
	MsgForwardJoin  MessageType = 0x02
	MsgDisconnect   MessageType = 0x03
	MsgShuffle      MessageType = 0x04
	MsgShuffleReply MessageType = 0x05
	MsgAdvertise    MessageType = 0x06
)

// SignatureLen is the fixed length of a message's trailing signature
// (Ed25519).
const SignatureLen = 64

// fixedHeaderSize is the wire size of the header fields preceding the
// signature: msg_type(1) + ttl(1) + sender_id(16) + origin_id(16) + payload_len(2).
const fixedHeaderSize = 1 + 1 + id.Len + id.Len + 2

// headerSize is the wire size of Header excluding the variable payload:
// fixedHeaderSize + signature(64).
const headerSize = fixedHeaderSize + SignatureLen

var (
	ErrTruncated       = errors.New("gossip: truncated message")
	ErrSignatureFailed = errors.New("gossip: signature verification failed")
)

// Header is the fixed portion of every gossip wire message.
type Header struct {
	Type       MessageType
	TTL        uint8
	SenderID   id.NodeID
	OriginID   id.NodeID
	PayloadLen uint16
	Signature  [SignatureLen]byte
}

// Message is a decoded gossip protocol message: its header plus payload.
type Message struct {
	Header  Header
	Payload []byte
}

// signedRegion returns the byte range of buf that a signature is computed
// over: the fixed header fields preceding the signature. The payload is
// not covered.
func signedRegion(buf []byte) []byte {
	return buf[:fixedHeaderSize]
}

// Encode serializes msg as [fixed header][signature][payload], leaving the
// signature bytes zeroed for the caller to fill in via Sign.
func Encode(msg *Message) []byte {
	buf := make([]byte, headerSize+len(msg.Payload))
	off := 0
	buf[off] = byte(msg.Header.Type)
	off++
	buf[off] = msg.Header.TTL
	off++
	copy(buf[off:], msg.Header.SenderID[:])
	off += id.Len
	copy(buf[off:], msg.Header.OriginID[:])
	off += id.Len
	binary.BigEndian.PutUint16(buf[off:], uint16(len(msg.Payload)))
	off += 2
	// signature region left zero here; Sign fills it in place.
	off += SignatureLen
	copy(buf[off:], msg.Payload)
	return buf
}

// Decode parses a wire message, including its signature.
func Decode(buf []byte) (*Message, error) {
	if len(buf) < headerSize {
		return nil, ErrTruncated
	}
	off := 0
	var h Header
	h.Type = MessageType(buf[off])
	off++
	h.TTL = buf[off]
	off++
	copy(h.SenderID[:], buf[off:off+id.Len])
	off += id.Len
	copy(h.OriginID[:], buf[off:off+id.Len])
	off += id.Len
	h.PayloadLen = binary.BigEndian.Uint16(buf[off:])
	off += 2
	copy(h.Signature[:], buf[off:off+SignatureLen])
	off += SignatureLen

	payloadEnd := off + int(h.PayloadLen)
	if payloadEnd > len(buf) {
		return nil, ErrTruncated
	}
	payload := make([]byte, h.PayloadLen)
	copy(payload, buf[off:payloadEnd])

	return &Message{Header: h, Payload: payload}, nil
}

// SignFunc signs the given byte range and returns a 64-byte signature.
type SignFunc func(data []byte) [SignatureLen]byte

// VerifyFunc reports whether sig is a valid signature over data from
// senderID.
type VerifyFunc func(senderID id.NodeID, data, sig []byte) bool

// Sign computes and writes msg's signature in place over the already
// encoded buf (as produced by Encode).
func Sign(buf []byte, sign SignFunc) {
	sig := sign(signedRegion(buf))
	copy(buf[fixedHeaderSize:headerSize], sig[:])
}

// Verify checks the signature embedded in an encoded message.
func Verify(buf []byte, senderID id.NodeID, verify VerifyFunc) bool {
	if len(buf) < headerSize {
		return false
	}
	data := signedRegion(buf)
	sig := buf[fixedHeaderSize:headerSize]
	return verify(senderID, data, sig)
}
