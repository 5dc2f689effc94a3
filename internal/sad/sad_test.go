// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package sad

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmptySADRoundTrip(t *testing.T) {
	require := require.New(t)

	s := New()
	buf, err := Marshal(s)
	require.NoError(err)
	require.Len(buf, 4)

	decoded, err := Decode(buf)
	require.NoError(err)
	require.Empty(decoded.Fields)
	require.Equal(CurrentVersion, decoded.Version)
}

func TestScenario1_ConcreteRoundTrip(t *testing.T) {
	require := require.New(t)

	s := New()
	require.NoError(s.AddUint32(TagModelArch, ModelArchTransformer))
	require.NoError(s.AddUint32(TagCapabilityBitset, CapTextGen|CapCodeGen))
	require.NoError(s.AddUint32(TagContextWindow, 65536))
	require.NoError(s.AddUint32(TagMaxLatencyMs, 100))
	require.NoError(s.AddUint32(TagMaxCostMilli, 5000))
	require.NoError(s.AddUint8(TagTrustLevel, TrustIdentity))
	require.NoError(s.AddRegions(TagRegionPrefer, []uint16{840, 124}))

	buf, err := Marshal(s)
	require.NoError(err)
	// 4 (header) + 5*(3+4) (five u32 fields) + (3+1) (trust u8) + (3+4) (two-region list)
	require.Equal(4+5*(3+4)+(3+1)+(3+4), len(buf))

	require.NoError(Validate(buf))

	decoded, err := Decode(buf)
	require.NoError(err)
	require.Equal(ModelArchTransformer, decoded.GetU32(TagModelArch))
	require.Equal(CapTextGen|CapCodeGen, decoded.GetU32(TagCapabilityBitset))
	require.Equal(uint32(65536), decoded.GetU32(TagContextWindow))
	require.Equal(uint32(100), decoded.GetU32(TagMaxLatencyMs))
	require.Equal(uint32(5000), decoded.GetU32(TagMaxCostMilli))
	require.Equal(TrustIdentity, decoded.GetU8(TagTrustLevel))
	require.Equal([]uint16{840, 124}, decoded.Regions(TagRegionPrefer))
}

func TestRoundTripPreservesFieldOrder(t *testing.T) {
	require := require.New(t)

	s := New()
	require.NoError(s.AddUint8(TagTrustLevel, 2))
	require.NoError(s.AddUint32(TagContextWindow, 4096))
	require.NoError(s.AddUint32(TagModelArch, ModelArchMoE))

	buf, err := Marshal(s)
	require.NoError(err)

	decoded, err := Decode(buf)
	require.NoError(err)
	require.Len(decoded.Fields, 3)
	require.Equal(TagTrustLevel, decoded.Fields[0].Tag)
	require.Equal(TagContextWindow, decoded.Fields[1].Tag)
	require.Equal(TagModelArch, decoded.Fields[2].Tag)
}

func TestUnknownTagRoundTrips(t *testing.T) {
	require := require.New(t)

	s := New()
	require.NoError(s.AddField(Tag(0xEE), []byte{1, 2, 3, 4, 5}))

	buf, err := Marshal(s)
	require.NoError(err)
	require.NoError(Validate(buf), "unknown tags with any length must pass validate")

	decoded, err := Decode(buf)
	require.NoError(err)
	require.Equal([]byte{1, 2, 3, 4, 5}, decoded.Fields[0].Value)
}

func TestAddFieldRejectsTooManyFields(t *testing.T) {
	require := require.New(t)

	s := New()
	for i := 0; i < MaxFields; i++ {
		require.NoError(s.AddUint8(TagCustom, uint8(i)))
	}
	err := s.AddUint8(TagCustom, 0xFF)
	require.ErrorIs(err, ErrTooManyFields)
}

func TestAddFieldRejectsOversizedValue(t *testing.T) {
	require := require.New(t)

	s := New()
	err := s.AddField(TagCustom, make([]byte, MaxFieldValue+1))
	require.ErrorIs(err, ErrFieldTooLarge)
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	require := require.New(t)

	buf := []byte{0x02, 0x00, 0x00, 0x00}
	_, err := Decode(buf)
	require.ErrorIs(err, ErrInvalidVersion)

	err = Validate(buf)
	require.ErrorIs(err, ErrInvalidVersion)
}

func TestDecodeRejectsTruncatedBuffer(t *testing.T) {
	require := require.New(t)

	s := New()
	require.NoError(s.AddUint32(TagContextWindow, 1024))
	buf, err := Marshal(s)
	require.NoError(err)

	truncated := buf[:len(buf)-2]
	_, err = Decode(truncated)
	require.ErrorIs(err, ErrTruncated)

	err = Validate(truncated)
	require.ErrorIs(err, ErrTruncated)
}

func TestDecodeRejectsTooManyFields(t *testing.T) {
	require := require.New(t)

	buf := []byte{CurrentVersion, 0x00, 0x00, 0x11} // num_fields = 17
	_, err := Decode(buf)
	require.ErrorIs(err, ErrTooManyFields)
}

func TestValidateRejectsWrongFixedLength(t *testing.T) {
	require := require.New(t)

	// TRUST_LEVEL declared with length 4 instead of the required 1.
	buf := []byte{
		CurrentVersion, 0x00, 0x00, 0x01, // header: 1 field
		byte(TagTrustLevel), 0x00, 0x04, // tag, length=4
		0x01, 0x02, 0x03, 0x04,
	}
	err := Validate(buf)
	require.ErrorIs(err, ErrBadFixedLength)
}

func TestValidateAcceptsUnknownTagAnyLength(t *testing.T) {
	require := require.New(t)

	buf := []byte{
		CurrentVersion, 0x00, 0x00, 0x01,
		0xEE, 0x00, 0x01,
		0x7F,
	}
	require.NoError(Validate(buf))
}

func TestValidateImpliesDecodeSucceeds(t *testing.T) {
	require := require.New(t)

	s := New()
	require.NoError(s.AddUint32(TagMinBenchmark, 9001))
	require.NoError(s.AddRegions(TagRegionExclude, []uint16{643}))
	buf, err := Marshal(s)
	require.NoError(err)

	require.NoError(Validate(buf))
	_, err = Decode(buf)
	require.NoError(err)
}

func TestFindDistinguishesAbsentFromZero(t *testing.T) {
	require := require.New(t)

	s := New()
	require.NoError(s.AddUint32(TagContextWindow, 0))

	f, ok := s.Find(TagContextWindow)
	require.True(ok)
	require.Equal(uint32(0), s.GetU32(TagContextWindow))
	require.NotNil(f.Value)

	_, ok = s.Find(TagMaxLatencyMs)
	require.False(ok)
	require.Equal(uint32(0), s.GetU32(TagMaxLatencyMs))
}

func TestEncodeRejectsOverBudgetSize(t *testing.T) {
	require := require.New(t)

	s := New()
	// 16 fields * (3 header + 64 value) = 1072 bytes, well over MaxSize.
	for i := 0; i < MaxFields; i++ {
		require.NoError(s.AddField(TagCustom, make([]byte, MaxFieldValue)))
	}
	_, err := Marshal(s)
	require.ErrorIs(err, ErrEncodedTooLarge)
}
