// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package gossip

import (
	"time"

	"github.com/strand-protocol/strand/internal/routetable"
	"github.com/strand-protocol/strand/internal/sad"
	"github.com/strand-protocol/strand/logging"
	"github.com/strand-protocol/strand/pkg/id"
	"github.com/strand-protocol/strand/pkg/xorshift"
	"github.com/strand-protocol/strand/transport"
)

// Protocol-level constants, fixed by the membership algorithm.
const (
	MaxActive        = 5
	MaxPassive       = 30
	ShuffleLen       = 3
	ARWL             = 6 // active random walk length, used by JOIN forwarding
	PRWL             = 3 // passive random walk length
	DefaultTTL       = 30 * time.Second
	DefaultShuffle   = 10 * time.Second
	DefaultAdvertise = 1 * time.Second
)

// Peer is one member of an active or passive view.
type Peer struct {
	NodeID   id.NodeID
	Port     transport.Port
	LastSeen time.Time
	Active   bool
}

// view is a bounded, order-independent collection of peers with O(1)
// random access and swap-remove deletion, matching the original fixed
// capacity array's behavior.
type view struct {
	peers []Peer
	max   int
}

func newView(max int) *view {
	return &view{peers: make([]Peer, 0, max), max: max}
}

func (v *view) full() bool { return len(v.peers) >= v.max }

func (v *view) find(nodeID id.NodeID) int {
	for i := range v.peers {
		if v.peers[i].NodeID == nodeID {
			return i
		}
	}
	return -1
}

func (v *view) add(p Peer) {
	if idx := v.find(p.NodeID); idx >= 0 {
		v.peers[idx] = p
		return
	}
	v.peers = append(v.peers, p)
}

func (v *view) removeAt(idx int) Peer {
	p := v.peers[idx]
	last := len(v.peers) - 1
	v.peers[idx] = v.peers[last]
	v.peers = v.peers[:last]
	return p
}

func (v *view) remove(nodeID id.NodeID) (Peer, bool) {
	idx := v.find(nodeID)
	if idx < 0 {
		return Peer{}, false
	}
	return v.removeAt(idx), true
}

// randomIndex returns a random valid index excluding the given node IDs,
// or -1 if no such peer exists.
func (v *view) randomIndex(rng *xorshift.Source, exclude ...id.NodeID) int {
	candidates := make([]int, 0, len(v.peers))
outer:
	for i, p := range v.peers {
		for _, ex := range exclude {
			if p.NodeID == ex {
				continue outer
			}
		}
		candidates = append(candidates, i)
	}
	if len(candidates) == 0 {
		return -1
	}
	return candidates[rng.Intn(len(candidates))]
}

// AuthCallbacks optionally signs outgoing messages and verifies incoming
// ones. When nil, messages are sent and accepted unsigned.
type AuthCallbacks struct {
	Sign   SignFunc
	Verify VerifyFunc
}

// Node is one participant's HyParView membership state.
type Node struct {
	self id.NodeID
	port transport.Port

	active  *view
	passive *view

	rng   *xorshift.Source
	auth  AuthCallbacks
	table *routetable.Table
	send  transport.SendFunc
	log   logging.Logger

	shuffleInterval   time.Duration
	advertiseInterval time.Duration
	entryTTL          time.Duration
	lastShuffle       time.Time
	lastAdvertise     time.Time
}

// Option configures a Node at construction time.
type Option func(*Node)

func WithAuth(auth AuthCallbacks) Option { return func(n *Node) { n.auth = auth } }
func WithLogger(l logging.Logger) Option { return func(n *Node) { n.log = l } }
func WithShuffleInterval(d time.Duration) Option {
	return func(n *Node) { n.shuffleInterval = d }
}
func WithAdvertiseInterval(d time.Duration) Option {
	return func(n *Node) { n.advertiseInterval = d }
}

// WithEntryTTL overrides the TTL a received ADVERTISE stamps onto the
// sender's routing-table entry. Defaults to DefaultTTL.
func WithEntryTTL(d time.Duration) Option {
	return func(n *Node) { n.entryTTL = d }
}

// New returns a HyParView membership node identified by self, using table
// as the destination for ADVERTISE payloads and send to deliver
// protocol messages.
func New(self id.NodeID, port transport.Port, table *routetable.Table, send transport.SendFunc, opts ...Option) *Node {
	n := &Node{
		self:              self,
		port:              port,
		active:            newView(MaxActive),
		passive:           newView(MaxPassive),
		rng:               xorshift.New(),
		table:             table,
		send:              send,
		log:               logging.NewNoOp(),
		shuffleInterval:   DefaultShuffle,
		advertiseInterval: DefaultAdvertise,
		entryTTL:          DefaultTTL,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// ActivePeers returns a copy of the current active view.
func (n *Node) ActivePeers() []Peer {
	out := make([]Peer, len(n.active.peers))
	copy(out, n.active.peers)
	return out
}

// PassivePeers returns a copy of the current passive view.
func (n *Node) PassivePeers() []Peer {
	out := make([]Peer, len(n.passive.peers))
	copy(out, n.passive.peers)
	return out
}

// Join initiates membership by sending a JOIN message to contact.
func (n *Node) Join(contact id.NodeID, contactPort transport.Port) error {
	msg := &Message{Header: Header{Type: MsgJoin, TTL: ARWL, SenderID: n.self, OriginID: n.self}}
	return n.sendTo(contact, contactPort, msg)
}

// HandleMessage dispatches an inbound gossip message. It rejects
// (silently, with no view mutation and no reply) any message that fails
// signature verification when AuthCallbacks.Verify is configured.
func (n *Node) HandleMessage(raw []byte, fromPort transport.Port) error {
	msg, err := Decode(raw)
	if err != nil {
		return err
	}
	if n.auth.Verify != nil && !Verify(raw, msg.Header.SenderID, n.auth.Verify) {
		n.log.Warn("rejecting gossip message: signature verification failed", "sender", msg.Header.SenderID.String())
		return ErrSignatureFailed
	}

	switch msg.Header.Type {
	case MsgJoin:
		return n.handleJoin(msg, fromPort)
	case MsgForwardJoin:
		return n.handleForwardJoin(msg, fromPort)
	case MsgDisconnect:
		return n.handleDisconnect(msg)
	case MsgShuffle:
		return n.handleShuffle(msg, fromPort)
	case MsgShuffleReply:
		return n.handleShuffleReply(msg)
	case MsgAdvertise:
		return n.handleAdvertise(msg)
	default:
		return nil
	}
}

func (n *Node) handleJoin(msg *Message, fromPort transport.Port) error {
	joiner := msg.Header.SenderID
	if n.active.full() {
		if idx := n.active.randomIndex(n.rng, joiner); idx >= 0 {
			evicted := n.active.removeAt(idx)
			n.passive.add(evicted)
			n.sendDisconnect(evicted.NodeID, evicted.Port)
		}
	}
	n.active.add(Peer{NodeID: joiner, Port: fromPort, LastSeen: n.now(), Active: true})

	fwd := &Message{Header: Header{Type: MsgForwardJoin, TTL: ARWL, SenderID: n.self, OriginID: joiner}}
	for _, p := range n.active.peers {
		if p.NodeID == joiner {
			continue
		}
		_ = n.sendTo(p.NodeID, p.Port, fwd)
	}
	return nil
}

func (n *Node) handleForwardJoin(msg *Message, fromPort transport.Port) error {
	origin := msg.Header.OriginID
	if msg.Header.TTL == 0 || len(n.active.peers) <= 1 {
		n.admitActive(origin, fromPort)
		return nil
	}
	if msg.Header.TTL == PRWL {
		n.passive.add(Peer{NodeID: origin, Port: fromPort, LastSeen: n.now()})
	}

	idx := n.active.randomIndex(n.rng, origin, msg.Header.SenderID)
	if idx < 0 {
		n.admitActive(origin, fromPort)
		return nil
	}
	next := n.active.peers[idx]
	fwd := &Message{Header: Header{Type: MsgForwardJoin, TTL: msg.Header.TTL - 1, SenderID: n.self, OriginID: origin}}
	return n.sendTo(next.NodeID, next.Port, fwd)
}

func (n *Node) admitActive(nodeID id.NodeID, port transport.Port) {
	if n.active.full() {
		if idx := n.active.randomIndex(n.rng, nodeID); idx >= 0 {
			evicted := n.active.removeAt(idx)
			n.passive.add(evicted)
			n.sendDisconnect(evicted.NodeID, evicted.Port)
		}
	}
	n.active.add(Peer{NodeID: nodeID, Port: port, LastSeen: n.now(), Active: true})
}

func (n *Node) handleDisconnect(msg *Message) error {
	if p, ok := n.active.remove(msg.Header.SenderID); ok {
		p.Active = false
		n.passive.add(p)
	}
	if !n.active.full() {
		if idx := n.passive.randomIndex(n.rng, msg.Header.SenderID); idx >= 0 {
			promoted := n.passive.removeAt(idx)
			promoted.Active = true
			n.active.add(promoted)
		}
	}
	return nil
}

func (n *Node) sendDisconnect(nodeID id.NodeID, port transport.Port) {
	msg := &Message{Header: Header{Type: MsgDisconnect, SenderID: n.self, OriginID: n.self}}
	_ = n.sendTo(nodeID, port, msg)
}

// Tick drives the node's periodic timers. Callers invoke it regularly
// (e.g. once per second); it is a no-op between interval boundaries.
func (n *Node) Tick(now time.Time) {
	if now.Sub(n.lastShuffle) >= n.shuffleInterval {
		n.lastShuffle = now
		n.doShuffle()
	}
	if now.Sub(n.lastAdvertise) >= n.advertiseInterval {
		n.lastAdvertise = now
		n.doAdvertise()
	}
}

func (n *Node) doShuffle() {
	idx := n.active.randomIndex(n.rng)
	if idx < 0 {
		return
	}
	target := n.active.peers[idx]

	sample := n.samplePassive(ShuffleLen)
	sample = append(sample, Peer{NodeID: n.self, Port: n.port})

	payload := encodePeerList(sample)
	msg := &Message{Header: Header{Type: MsgShuffle, SenderID: n.self, OriginID: n.self}, Payload: payload}
	_ = n.sendTo(target.NodeID, target.Port, msg)
}

func (n *Node) handleShuffle(msg *Message, fromPort transport.Port) error {
	incoming := decodePeerList(msg.Payload)
	for _, p := range incoming {
		if p.NodeID == n.self {
			continue
		}
		if n.passive.full() {
			if idx := n.passive.randomIndex(n.rng); idx >= 0 {
				n.passive.removeAt(idx)
			}
		}
		n.passive.add(p)
	}

	reply := encodePeerList(n.samplePassive(ShuffleLen))
	replyMsg := &Message{Header: Header{Type: MsgShuffleReply, SenderID: n.self, OriginID: n.self}, Payload: reply}
	return n.sendTo(msg.Header.SenderID, fromPort, replyMsg)
}

func (n *Node) handleShuffleReply(msg *Message) error {
	incoming := decodePeerList(msg.Payload)
	for _, p := range incoming {
		if p.NodeID == n.self {
			continue
		}
		if n.passive.full() {
			if idx := n.passive.randomIndex(n.rng); idx >= 0 {
				n.passive.removeAt(idx)
			}
		}
		n.passive.add(p)
	}
	return nil
}

func (n *Node) samplePassive(count int) []Peer {
	if count > len(n.passive.peers) {
		count = len(n.passive.peers)
	}
	picked := make(map[int]bool, count)
	out := make([]Peer, 0, count)
	for len(out) < count {
		idx := n.rng.Intn(len(n.passive.peers))
		if picked[idx] {
			continue
		}
		picked[idx] = true
		out = append(out, n.passive.peers[idx])
	}
	return out
}

// doAdvertise pushes this node's current routing-table capability
// advertisement, as an ADVERTISE message, to every active peer.
func (n *Node) doAdvertise() {
	entries, release := n.table.Snapshot()
	defer release()

	var self *routetable.Entry
	for i := range entries {
		if entries[i].NodeID == n.self {
			self = &entries[i]
			break
		}
	}
	if self == nil {
		return
	}

	buf, err := sad.Marshal(&self.Capabilities)
	if err != nil {
		return
	}
	msg := &Message{Header: Header{Type: MsgAdvertise, SenderID: n.self, OriginID: n.self}, Payload: buf}
	for _, p := range n.active.peers {
		_ = n.sendTo(p.NodeID, p.Port, msg)
	}
}

// handleAdvertise decodes the advertised SAD and inserts or refreshes the
// sender's entry in the routing table.
func (n *Node) handleAdvertise(msg *Message) error {
	capabilities, err := sad.Decode(msg.Payload)
	if err != nil {
		return err
	}
	n.table.Insert(routetable.Entry{
		NodeID:       msg.Header.SenderID,
		Capabilities: *capabilities,
		LastUpdated:  n.now(),
		TTL:          n.entryTTL,
	})
	return nil
}

func (n *Node) sendTo(nodeID id.NodeID, port transport.Port, msg *Message) error {
	buf := Encode(msg)
	if n.auth.Sign != nil {
		Sign(buf, n.auth.Sign)
	}
	frame := &transport.Frame{
		Header: transport.Header{
			FrameType: transport.FrameTypeGossip,
			SrcNodeID: n.self,
			DstNodeID: nodeID,
			TTL:       1,
		},
		Payload: buf,
	}
	return n.send(port, frame)
}

func (n *Node) now() time.Time { return time.Now() }

func encodePeerList(peers []Peer) []byte {
	buf := make([]byte, 0, len(peers)*(id.Len+2))
	for _, p := range peers {
		buf = append(buf, p.NodeID[:]...)
		buf = append(buf, byte(p.Port>>8), byte(p.Port))
	}
	return buf
}

func decodePeerList(buf []byte) []Peer {
	const recSize = id.Len + 2
	count := len(buf) / recSize
	out := make([]Peer, 0, count)
	for i := 0; i < count; i++ {
		off := i * recSize
		var nodeID id.NodeID
		copy(nodeID[:], buf[off:off+id.Len])
		port := transport.Port(uint16(buf[off+id.Len])<<8 | uint16(buf[off+id.Len+1]))
		out = append(out, Peer{NodeID: nodeID, Port: port})
	}
	return out
}
