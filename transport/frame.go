// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transport defines the wire frame and callback interfaces the
// fabric rides on top of. It does not implement a concrete network
// transport itself; callers supply a SendFunc that delivers a Frame to a
// peer over whatever link they already have (QUIC, TCP, in-memory, ...).
package transport

import (
	"encoding/binary"
	"errors"

	"github.com/strand-protocol/strand/pkg/id"
)

// FrameType identifies the purpose of a frame's payload.
type FrameType uint8

// Known frame types.
const (
	FrameTypeData      FrameType = 0x01
	FrameTypeControl   FrameType = 0x02
	FrameTypeHeartbeat FrameType = 0x03
	FrameTypeDiscovery FrameType = 0x04
	FrameTypeGossip    FrameType = 0x10
)

// MaxFrameSize is the largest total frame size (header + payload) on the
// wire. EncodeHeader and DecodeHeader handle only the header and do not
// check it.
const MaxFrameSize = 9216

// HeaderSize is the fixed, wire-exact size of a Header.
const HeaderSize = 64

// Port identifies a logical egress/ingress queue on a link. PortInvalid
// means "deliver via the default queue."
type Port uint16

// PortInvalid is the sentinel "no specific port" value.
const PortInvalid Port = 0xFFFF

// PortZero is the constant port the forwarding core passes to a send
// callback; the callback owns the decision of which physical port to use.
const PortZero Port = 0

var (
	ErrHeaderTooShort = errors.New("transport: header shorter than 64 bytes")
	ErrFrameTooLarge  = errors.New("transport: frame exceeds max size")
	ErrOptionsOOB     = errors.New("transport: options region out of bounds")
)

// Header is the fixed 64-byte frame header, wire-compatible byte for
// byte with the layout below (all multi-byte fields big-endian):
//
//	version:u8 frame_type:u8 payload_length:u16 sequence:u32
//	src_node_id[16] dst_node_id[16] stream_id[8]
//	options_offset:u16 options_length:u16
//	ttl:u8 priority:u8 flags:u8 reserved[9]
type Header struct {
	Version       uint8
	FrameType     FrameType
	PayloadLength uint16
	Sequence      uint32
	SrcNodeID     id.NodeID
	DstNodeID     id.NodeID
	StreamID      [8]byte
	OptionsOffset uint16
	OptionsLength uint16
	TTL           uint8
	Priority      uint8
	Flags         uint8
}

// Frame is a decoded header plus its payload bytes.
type Frame struct {
	Header  Header
	Payload []byte
}

// Options returns the slice of Payload the header's options region
// covers, or an error if the region is out of bounds.
func (f *Frame) Options() ([]byte, error) {
	off := int(f.Header.OptionsOffset)
	length := int(f.Header.OptionsLength)
	if length == 0 {
		return nil, nil
	}
	if off < 0 || off+length > len(f.Payload) {
		return nil, ErrOptionsOOB
	}
	return f.Payload[off : off+length], nil
}

// EncodeHeader writes h into buf (which must be at least HeaderSize
// bytes) in wire format.
func EncodeHeader(h *Header, buf []byte) error {
	if len(buf) < HeaderSize {
		return ErrHeaderTooShort
	}
	buf[0] = h.Version
	buf[1] = byte(h.FrameType)
	binary.BigEndian.PutUint16(buf[2:], h.PayloadLength)
	binary.BigEndian.PutUint32(buf[4:], h.Sequence)
	copy(buf[8:24], h.SrcNodeID[:])
	copy(buf[24:40], h.DstNodeID[:])
	copy(buf[40:48], h.StreamID[:])
	binary.BigEndian.PutUint16(buf[48:], h.OptionsOffset)
	binary.BigEndian.PutUint16(buf[50:], h.OptionsLength)
	buf[52] = h.TTL
	buf[53] = h.Priority
	buf[54] = h.Flags
	// buf[55:64] reserved, left zero.
	return nil
}

// DecodeHeader parses the first HeaderSize bytes of buf into a Header.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrHeaderTooShort
	}
	var h Header
	h.Version = buf[0]
	h.FrameType = FrameType(buf[1])
	h.PayloadLength = binary.BigEndian.Uint16(buf[2:])
	h.Sequence = binary.BigEndian.Uint32(buf[4:])
	copy(h.SrcNodeID[:], buf[8:24])
	copy(h.DstNodeID[:], buf[24:40])
	copy(h.StreamID[:], buf[40:48])
	h.OptionsOffset = binary.BigEndian.Uint16(buf[48:])
	h.OptionsLength = binary.BigEndian.Uint16(buf[50:])
	h.TTL = buf[52]
	h.Priority = buf[53]
	h.Flags = buf[54]
	return h, nil
}

// SendFunc delivers a frame toward dst over the given logical port.
// Implementations are expected to be fire-and-forget: a non-nil error
// means the caller should count the frame as dropped, not retry.
type SendFunc func(port Port, frame *Frame) error
