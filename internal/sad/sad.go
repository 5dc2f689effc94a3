// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package sad implements the Semantic Address Descriptor: a binary TLV
// encoded constraint set used both as a request's destination address and
// as a node's advertised capability set.
//
// Wire format (big-endian):
//
//	Header: version:u8 | flags:u8 | num_fields:u16   (4 bytes)
//	Field:  tag:u8 | length:u16 | value[length]
package sad

import (
	"encoding/binary"
	"errors"
)

// Tag identifies the semantic meaning of a field's value.
type Tag uint8

// Known field tags, per the wire format.
const (
	TagModelArch        Tag = 0x01
	TagCapabilityBitset  Tag = 0x02
	TagContextWindow     Tag = 0x03
	TagMaxLatencyMs      Tag = 0x04
	TagMaxCostMilli      Tag = 0x05
	TagTrustLevel        Tag = 0x06
	TagRegionPrefer      Tag = 0x07
	TagRegionExclude     Tag = 0x08
	TagPublisherID       Tag = 0x09
	TagMinBenchmark      Tag = 0x0A
	TagCustom            Tag = 0x0B
)

// Model architecture identifiers carried in a TagModelArch field.
const (
	ModelArchTransformer uint32 = 0x01
	ModelArchDiffusion   uint32 = 0x02
	ModelArchMoE         uint32 = 0x03
	ModelArchCNN         uint32 = 0x04
	ModelArchRNN         uint32 = 0x05
	ModelArchRLAgent     uint32 = 0x06
)

// Capability bitset flags carried in a TagCapabilityBitset field.
const (
	CapTextGen       uint32 = 1 << 0
	CapCodeGen       uint32 = 1 << 1
	CapImageGen      uint32 = 1 << 2
	CapAudioGen      uint32 = 1 << 3
	CapEmbedding     uint32 = 1 << 4
	CapClassification uint32 = 1 << 5
	CapToolUse       uint32 = 1 << 6
	CapReasoning     uint32 = 1 << 7
)

// Trust attestation levels carried in a TagTrustLevel field.
const (
	TrustNone       uint8 = 0
	TrustIdentity   uint8 = 1
	TrustProvenance uint8 = 2
	TrustSafetyEval uint8 = 3
	TrustFullAudit  uint8 = 4
)

// CurrentVersion is the only version this codec accepts on decode.
const CurrentVersion uint8 = 1

const (
	headerSize    = 4 // version + flags + num_fields
	fieldHdrSize  = 3 // tag + length
	// MaxFields is the maximum number of fields an SAD may hold.
	MaxFields = 16
	// MaxFieldValue is the maximum length in bytes of one field's value.
	MaxFieldValue = 64
	// MaxSize is the maximum total encoded size of an SAD.
	MaxSize = 512
	// PublisherIDLen is the fixed length of a TagPublisherID value.
	PublisherIDLen = 16
)

// Sentinel errors for SAD codec failures. Every failure mode from the
// specification maps to exactly one of these.
var (
	ErrInvalidVersion  = errors.New("sad: invalid version")
	ErrTooManyFields   = errors.New("sad: too many fields")
	ErrFieldTooLarge   = errors.New("sad: field value too large")
	ErrTruncated       = errors.New("sad: truncated buffer")
	ErrBadFixedLength  = errors.New("sad: wrong length for known field type")
	ErrBufferTooSmall  = errors.New("sad: output buffer too small")
	ErrEncodedTooLarge = errors.New("sad: encoded size exceeds maximum")
)

// Field is one raw (tag, length, value) TLV record. Unknown tags are kept
// as raw bytes so they round-trip even though this codec does not
// understand their semantics (forward compatibility).
type Field struct {
	Tag   Tag
	Value []byte
}

// SAD is an ordered set of at most MaxFields fields. Field order is
// preserved across encode/decode but carries no semantic meaning.
// AddField, Decode and Validate do not reject a repeated tag, known or
// unknown; Find, GetU32, GetU8 and Regions read the first instance.
type SAD struct {
	Version uint8
	Flags   uint8
	Fields  []Field
}

// New returns an empty SAD at the current codec version.
func New() *SAD {
	return &SAD{Version: CurrentVersion}
}

// AddField appends a raw field. It fails if the SAD already holds
// MaxFields fields or the value exceeds MaxFieldValue bytes.
func (s *SAD) AddField(tag Tag, value []byte) error {
	if len(s.Fields) >= MaxFields {
		return ErrTooManyFields
	}
	if len(value) > MaxFieldValue {
		return ErrFieldTooLarge
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	s.Fields = append(s.Fields, Field{Tag: tag, Value: buf})
	return nil
}

// AddUint32 appends a 4-byte big-endian integer field (MODEL_ARCH,
// CAPABILITY_BITSET, CONTEXT_WINDOW, MAX_LATENCY_MS, MAX_COST_MILLI,
// MIN_BENCHMARK).
func (s *SAD) AddUint32(tag Tag, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return s.AddField(tag, buf[:])
}

// AddUint8 appends a single-byte field (TRUST_LEVEL).
func (s *SAD) AddUint8(tag Tag, v uint8) error {
	return s.AddField(tag, []byte{v})
}

// AddRegions appends an even-length list of 16-bit region codes
// (REGION_PREFER, REGION_EXCLUDE).
func (s *SAD) AddRegions(tag Tag, regions []uint16) error {
	buf := make([]byte, len(regions)*2)
	for i, r := range regions {
		binary.BigEndian.PutUint16(buf[i*2:], r)
	}
	return s.AddField(tag, buf)
}

// Find returns the first field with the given tag, or (Field{}, false) if
// absent. Callers that must distinguish "absent" from "present but zero"
// use Find rather than GetU32/GetU8.
func (s *SAD) Find(tag Tag) (Field, bool) {
	for _, f := range s.Fields {
		if f.Tag == tag {
			return f, true
		}
	}
	return Field{}, false
}

// GetU32 returns the big-endian uint32 value of tag, or 0 if absent or
// too short.
func (s *SAD) GetU32(tag Tag) uint32 {
	f, ok := s.Find(tag)
	if !ok || len(f.Value) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(f.Value)
}

// GetU8 returns the single-byte value of tag, or 0 if absent or empty.
func (s *SAD) GetU8(tag Tag) uint8 {
	f, ok := s.Find(tag)
	if !ok || len(f.Value) < 1 {
		return 0
	}
	return f.Value[0]
}

// Regions returns the list of 16-bit region codes carried by tag, or nil
// if absent.
func (s *SAD) Regions(tag Tag) []uint16 {
	f, ok := s.Find(tag)
	if !ok || len(f.Value) < 2 {
		return nil
	}
	count := len(f.Value) / 2
	out := make([]uint16, count)
	for i := 0; i < count; i++ {
		out[i] = binary.BigEndian.Uint16(f.Value[i*2:])
	}
	return out
}

// EncodedLen returns the total size this SAD would occupy on the wire.
func (s *SAD) EncodedLen() int {
	total := headerSize
	for _, f := range s.Fields {
		total += fieldHdrSize + len(f.Value)
	}
	return total
}

// Encode serializes the SAD in declaration order into buf, returning the
// number of bytes written. It fails if the encoded size exceeds MaxSize or
// the supplied buffer.
func Encode(s *SAD, buf []byte) (int, error) {
	total := s.EncodedLen()
	if total > MaxSize {
		return 0, ErrEncodedTooLarge
	}
	if total > len(buf) {
		return 0, ErrBufferTooSmall
	}

	off := 0
	buf[off] = s.Version
	off++
	buf[off] = s.Flags
	off++
	binary.BigEndian.PutUint16(buf[off:], uint16(len(s.Fields)))
	off += 2

	for _, f := range s.Fields {
		buf[off] = byte(f.Tag)
		off++
		binary.BigEndian.PutUint16(buf[off:], uint16(len(f.Value)))
		off += 2
		off += copy(buf[off:], f.Value)
	}
	return off, nil
}

// Marshal is a convenience wrapper around Encode that allocates its own
// buffer sized to EncodedLen.
func Marshal(s *SAD) ([]byte, error) {
	buf := make([]byte, s.EncodedLen())
	n, err := Encode(s, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// Decode parses buf into a SAD. It fails on version mismatch, a
// field count exceeding MaxFields, a value length exceeding
// MaxFieldValue, or a truncated buffer. No partial SAD is returned on
// failure.
func Decode(buf []byte) (*SAD, error) {
	if len(buf) < headerSize {
		return nil, ErrTruncated
	}

	version := buf[0]
	if version != CurrentVersion {
		return nil, ErrInvalidVersion
	}
	flags := buf[1]
	numFields := binary.BigEndian.Uint16(buf[2:4])
	if numFields > MaxFields {
		return nil, ErrTooManyFields
	}

	out := &SAD{
		Version: version,
		Flags:   flags,
		Fields:  make([]Field, 0, numFields),
	}

	off := headerSize
	for i := uint16(0); i < numFields; i++ {
		if off+fieldHdrSize > len(buf) {
			return nil, ErrTruncated
		}
		tag := Tag(buf[off])
		length := binary.BigEndian.Uint16(buf[off+1:])
		off += fieldHdrSize

		if length > MaxFieldValue {
			return nil, ErrFieldTooLarge
		}
		if off+int(length) > len(buf) {
			return nil, ErrTruncated
		}

		value := make([]byte, length)
		copy(value, buf[off:off+int(length)])
		off += int(length)

		out.Fields = append(out.Fields, Field{Tag: tag, Value: value})
	}

	return out, nil
}

// Unmarshal is an alias for Decode kept for symmetry with Marshal.
func Unmarshal(buf []byte) (*SAD, error) {
	return Decode(buf)
}

// fixedLength returns the required value length for a known tag, and
// whether the tag is one of region-list tags (which require an even,
// non-zero length rather than one exact length).
func fixedLength(tag Tag) (length int, isRegionList bool, known bool) {
	switch tag {
	case TagModelArch, TagCapabilityBitset, TagContextWindow,
		TagMaxLatencyMs, TagMaxCostMilli, TagMinBenchmark:
		return 4, false, true
	case TagTrustLevel:
		return 1, false, true
	case TagPublisherID:
		return PublisherIDLen, false, true
	case TagRegionPrefer, TagRegionExclude:
		return 0, true, true
	default:
		return 0, false, false
	}
}

// Validate performs a non-destructive pre-check of an encoded SAD buffer,
// additionally enforcing fixed lengths for known tags. It is intended to
// be called before Decode to reject malformed input cheaply; a buffer
// that passes Validate is guaranteed to also succeed in Decode.
func Validate(buf []byte) error {
	if len(buf) < headerSize {
		return ErrTruncated
	}

	if buf[0] != CurrentVersion {
		return ErrInvalidVersion
	}

	numFields := binary.BigEndian.Uint16(buf[2:4])
	if numFields > MaxFields {
		return ErrTooManyFields
	}

	off := headerSize
	for i := uint16(0); i < numFields; i++ {
		if off+fieldHdrSize > len(buf) {
			return ErrTruncated
		}
		tag := Tag(buf[off])
		length := binary.BigEndian.Uint16(buf[off+1:])
		off += fieldHdrSize

		if length > MaxFieldValue {
			return ErrFieldTooLarge
		}
		if off+int(length) > len(buf) {
			return ErrTruncated
		}

		if fixed, isRegionList, known := fixedLength(tag); known {
			if isRegionList {
				if length == 0 || length%2 != 0 {
					return ErrBadFixedLength
				}
			} else if int(length) != fixed {
				return ErrBadFixedLength
			}
		}
		// Unknown tags: any length passes validate (forward compatibility).

		off += int(length)
	}

	return nil
}
