// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package forward

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/strand-protocol/strand/internal/multipath"
	"github.com/strand-protocol/strand/internal/offload"
	"github.com/strand-protocol/strand/internal/routetable"
	"github.com/strand-protocol/strand/internal/sad"
	"github.com/strand-protocol/strand/internal/score"
	"github.com/strand-protocol/strand/pkg/id"
	"github.com/strand-protocol/strand/transport"
)

func candidateSAD(t *testing.T) []byte {
	t.Helper()
	s := sad.New()
	require.NoError(t, s.AddUint32(sad.TagModelArch, sad.ModelArchTransformer))
	require.NoError(t, s.AddUint32(sad.TagCapabilityBitset, sad.CapTextGen))
	require.NoError(t, s.AddUint32(sad.TagContextWindow, 8192))
	buf, err := sad.Marshal(s)
	require.NoError(t, err)
	return buf
}

func frameWithQuery(t *testing.T, dst id.NodeID, ttl uint8, query []byte) *transport.Frame {
	t.Helper()
	payload := make([]byte, len(query))
	copy(payload, query)
	return &transport.Frame{
		Header: transport.Header{
			Version:       1,
			FrameType:     transport.FrameTypeData,
			DstNodeID:     dst,
			TTL:           ttl,
			OptionsOffset: 0,
			OptionsLength: uint16(len(payload)),
		},
		Payload: payload,
	}
}

func TestProcessDeliversSelfAddressedFrameWithoutSending(t *testing.T) {
	self := id.New()
	table := routetable.New()
	sendCalled := false
	send := func(transport.Port, *transport.Frame) error {
		sendCalled = true
		return nil
	}
	e := New(self, table, send)

	frame := frameWithQuery(t, self, 5, candidateSAD(t))
	ok := e.Process(frame)

	require.True(t, ok)
	require.False(t, sendCalled)
	require.Equal(t, Counters{}, e.Counters())
}

func TestProcessDropsExpiredTTL(t *testing.T) {
	self := id.New()
	other := id.New()
	table := routetable.New()
	e := New(self, table, func(transport.Port, *transport.Frame) error { return nil })

	frame := frameWithQuery(t, other, 0, candidateSAD(t))
	ok := e.Process(frame)

	require.False(t, ok)
	require.Equal(t, uint64(1), e.Counters().Dropped)
}

func TestProcessDropsWhenNoOptionsPresent(t *testing.T) {
	self := id.New()
	other := id.New()
	table := routetable.New()
	e := New(self, table, func(transport.Port, *transport.Frame) error { return nil })

	frame := &transport.Frame{Header: transport.Header{DstNodeID: other, TTL: 3}}
	ok := e.Process(frame)

	require.False(t, ok)
	require.Equal(t, uint64(1), e.Counters().Dropped)
}

func TestProcessDropsWhenResolveFindsNoCandidate(t *testing.T) {
	self := id.New()
	other := id.New()
	table := routetable.New() // empty: nothing to resolve against
	e := New(self, table, func(transport.Port, *transport.Frame) error { return nil })

	frame := frameWithQuery(t, other, 3, candidateSAD(t))
	ok := e.Process(frame)

	require.False(t, ok)
	require.Equal(t, uint64(1), e.Counters().ResolveFailure)
	require.Equal(t, uint64(1), e.Counters().Dropped)
}

func TestProcessForwardsToResolvedNextHopAndDecrementsTTL(t *testing.T) {
	self := id.New()
	other := id.New()
	hop := id.New()
	table := routetable.New()
	table.Insert(routetable.Entry{
		NodeID:       hop,
		Capabilities: *decodeSAD(t, candidateSAD(t)),
	})

	var sentFrame *transport.Frame
	send := func(_ transport.Port, f *transport.Frame) error {
		sentFrame = f
		return nil
	}
	e := New(self, table, send)

	frame := frameWithQuery(t, other, 3, candidateSAD(t))
	ok := e.Process(frame)

	require.True(t, ok)
	require.NotNil(t, sentFrame)
	require.Equal(t, hop, sentFrame.Header.DstNodeID)
	require.Equal(t, uint8(2), sentFrame.Header.TTL)
	require.Equal(t, uint64(1), e.Counters().Forwarded)
	require.Equal(t, uint64(1), e.Counters().Resolved)
}

func TestProcessCountsDropWhenSendFails(t *testing.T) {
	self := id.New()
	other := id.New()
	hop := id.New()
	table := routetable.New()
	table.Insert(routetable.Entry{NodeID: hop, Capabilities: *decodeSAD(t, candidateSAD(t))})

	e := New(self, table, func(transport.Port, *transport.Frame) error {
		return errors.New("link down")
	})

	frame := frameWithQuery(t, other, 3, candidateSAD(t))
	ok := e.Process(frame)

	require.False(t, ok)
	require.Equal(t, uint64(1), e.Counters().Dropped)
	require.Equal(t, uint64(1), e.Counters().Resolved)
}

func TestSelectNextHopBypassesRNGForSingleCandidate(t *testing.T) {
	self := id.New()
	table := routetable.New()
	e := New(self, table, func(transport.Port, *transport.Frame) error { return nil })

	only := id.New()
	results := []score.Result{{Entry: routetable.Entry{NodeID: only}, Score: 0.5}}
	got := e.selectNextHop(id.New(), results)
	require.Equal(t, only, got)
}

func TestSelectNextHopPrefersStickyRouteWhenCandidateQualifies(t *testing.T) {
	self := id.New()
	table := routetable.New()
	e := New(self, table, func(transport.Port, *transport.Frame) error { return nil })

	sticky := id.New()
	other := id.New()
	flow := id.New()

	mp := multipath.New()
	require.NoError(t, mp.AddBackend(sticky, 1))
	mp.Populate()
	e.stickyRoutes = mp

	results := []score.Result{
		{Entry: routetable.Entry{NodeID: other}, Score: 0.9},
		{Entry: routetable.Entry{NodeID: sticky}, Score: 0.1},
	}
	got := e.selectNextHop(flow, results)
	require.Equal(t, sticky, got)
}

func TestSelectNextHopIgnoresStickyRouteNotAmongCandidates(t *testing.T) {
	self := id.New()
	table := routetable.New()
	e := New(self, table, func(transport.Port, *transport.Frame) error { return nil })

	sticky := id.New()
	only := id.New()
	flow := id.New()

	mp := multipath.New()
	require.NoError(t, mp.AddBackend(sticky, 1))
	mp.Populate()
	e.stickyRoutes = mp

	results := []score.Result{{Entry: routetable.Entry{NodeID: only}, Score: 1.0}}
	got := e.selectNextHop(flow, results)
	require.Equal(t, only, got)
}

func TestProcessMirrorsResolvedHopToOffloadClient(t *testing.T) {
	self := id.New()
	other := id.New()
	hop := id.New()
	table := routetable.New()
	table.Insert(routetable.Entry{NodeID: hop, Capabilities: *decodeSAD(t, candidateSAD(t))})

	mock := &mockOffloadClient{}
	e := New(self, table, func(transport.Port, *transport.Frame) error { return nil }, WithOffload(mock))

	frame := frameWithQuery(t, other, 3, candidateSAD(t))
	ok := e.Process(frame)

	require.True(t, ok)
	require.Equal(t, hop, mock.lastForwardNode)
}

type mockOffloadClient struct {
	offload.Client
	lastForwardNode id.NodeID
}

func (m *mockOffloadClient) AddNodeForward(_ context.Context, nodeID id.NodeID, _ uint32) error {
	m.lastForwardNode = nodeID
	return nil
}

func decodeSAD(t *testing.T, buf []byte) *sad.SAD {
	t.Helper()
	s, err := sad.Decode(buf)
	require.NoError(t, err)
	return s
}
