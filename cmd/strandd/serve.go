// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/strand-protocol/strand/api/health"
	"github.com/strand-protocol/strand/api/metrics"
	"github.com/strand-protocol/strand/config"
	"github.com/strand-protocol/strand/internal/forward"
	"github.com/strand-protocol/strand/internal/gossip"
	"github.com/strand-protocol/strand/internal/routetable"
	"github.com/strand-protocol/strand/internal/sad"
	"github.com/strand-protocol/strand/logging"
	"github.com/strand-protocol/strand/pkg/id"
	"github.com/strand-protocol/strand/transport"
)

// demoFabric is a single-process mesh of nodes connected by an in-memory
// transport, used to exercise the full stack (gossip membership,
// capability advertisement, routing table convergence, forwarding) end
// to end without any real network.
type demoFabric struct {
	mu    sync.Mutex
	nodes map[id.NodeID]*demoNode
}

type demoNode struct {
	id      id.NodeID
	pubKey  ed25519.PublicKey
	privKey ed25519.PrivateKey
	table   *routetable.Table
	gossipN *gossip.Node
	fwd     *forward.Engine
	log     logging.Logger

	fwdMetrics    *metrics.ForwardingMetrics
	tableMetrics  *metrics.RouteTableMetrics
	gossipMetrics *metrics.GossipMetrics
	health        *health.Registry
	lastCounters  forward.Counters // engine counters already added to fwdMetrics
}

// syncMetrics copies the node's live counters and view sizes into its
// Prometheus collectors. The engine, table, and gossip node track state
// in plain atomics and slices; this is the one place that translates
// that state into gauges/counters for scraping.
func (n *demoNode) syncMetrics() {
	c := n.fwd.Counters()
	prev := n.lastCounters
	n.lastCounters = c
	n.fwdMetrics.Forwarded.Add(float64(c.Forwarded - prev.Forwarded))
	n.fwdMetrics.Dropped.Add(float64(c.Dropped - prev.Dropped))
	n.fwdMetrics.Resolved.Add(float64(c.Resolved - prev.Resolved))
	n.fwdMetrics.ResolveFailure.Add(float64(c.ResolveFailure - prev.ResolveFailure))

	n.tableMetrics.Size.Set(float64(n.table.Size()))

	n.gossipMetrics.ActiveViewSize.Set(float64(len(n.gossipN.ActivePeers())))
	n.gossipMetrics.PassiveViewSize.Set(float64(len(n.gossipN.PassivePeers())))
}

// maxHealthyRouteTableSize bounds what this demo considers a plausible
// table size; well beyond it would indicate the GC ticker has stalled.
const maxHealthyRouteTableSize = 10_000

// routeTableChecker reports a node unhealthy if its routing table has
// grown implausibly large, which would indicate the GC ticker has stalled.
type routeTableChecker struct{ table *routetable.Table }

func (c routeTableChecker) HealthCheck(context.Context) (interface{}, error) {
	size := c.table.Size()
	if size > maxHealthyRouteTableSize {
		return size, fmt.Errorf("routing table has %d entries, exceeding %d", size, maxHealthyRouteTableSize)
	}
	return size, nil
}

// activeViewChecker reports a node unhealthy if it has no active gossip
// peers, meaning it cannot propagate or receive capability advertisements.
type activeViewChecker struct{ node *gossip.Node }

func (c activeViewChecker) HealthCheck(context.Context) (interface{}, error) {
	peers := c.node.ActivePeers()
	if len(peers) == 0 {
		return 0, fmt.Errorf("no active gossip peers")
	}
	return len(peers), nil
}

func newDemoFabric() *demoFabric {
	return &demoFabric{nodes: make(map[id.NodeID]*demoNode)}
}

func (f *demoFabric) deliver(dst id.NodeID) transport.SendFunc {
	return func(port transport.Port, frame *transport.Frame) error {
		f.mu.Lock()
		dstNode, ok := f.nodes[frame.Header.DstNodeID]
		f.mu.Unlock()
		if !ok {
			return fmt.Errorf("no such node: %s", frame.Header.DstNodeID)
		}
		if frame.Header.FrameType == transport.FrameTypeGossip {
			return dstNode.gossipN.HandleMessage(frame.Payload, port)
		}
		// Process counts and logs its own drops at the receiving node.
		dstNode.fwd.Process(frame)
		return nil
	}
}

func (f *demoFabric) addNode(cfg *config.Config, log logging.Logger) (*demoNode, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}

	n := &demoNode{
		id:      id.New(),
		pubKey:  pub,
		privKey: priv,
		table:   routetable.New(),
		log:     log,
	}

	registerer := metrics.NewRegistry()
	namespace := "strand_" + n.id.String()[:8]
	if n.fwdMetrics, err = metrics.NewForwardingMetrics(namespace, registerer); err != nil {
		return nil, err
	}
	if n.tableMetrics, err = metrics.NewRouteTableMetrics(namespace, registerer); err != nil {
		return nil, err
	}
	if n.gossipMetrics, err = metrics.NewGossipMetrics(namespace, registerer); err != nil {
		return nil, err
	}

	send := f.deliver(n.id)
	n.fwd = forward.New(n.id, n.table, send,
		forward.WithWeights(cfg.Weights),
		forward.WithMultipath(cfg.Multipath),
		forward.WithLogger(log))

	n.gossipN = gossip.New(n.id, 0, n.table, send,
		gossip.WithLogger(log),
		gossip.WithShuffleInterval(cfg.ShuffleInterval),
		gossip.WithAdvertiseInterval(cfg.AdvertiseInterval),
		gossip.WithEntryTTL(cfg.DefaultEntryTTL),
		gossip.WithAuth(gossip.AuthCallbacks{
			Sign: func(data []byte) [gossip.SignatureLen]byte {
				sig := ed25519.Sign(n.privKey, data)
				var out [gossip.SignatureLen]byte
				copy(out[:], sig)
				return out
			},
			Verify: func(senderID id.NodeID, data, sig []byte) bool {
				f.mu.Lock()
				sender, ok := f.nodes[senderID]
				f.mu.Unlock()
				if !ok {
					return false
				}
				return ed25519.Verify(sender.pubKey, data, sig)
			},
		}))

	n.health = health.NewRegistry()
	n.health.Register("routing_table", routeTableChecker{table: n.table})
	n.health.Register("gossip_active_view", activeViewChecker{node: n.gossipN})

	f.mu.Lock()
	f.nodes[n.id] = n
	f.mu.Unlock()

	// Advertise a placeholder capability set for itself so gossip has
	// something to push and the routing table has an entry to score
	// against once peers converge.
	self := sad.New()
	_ = self.AddUint32(sad.TagModelArch, sad.ModelArchTransformer)
	_ = self.AddUint32(sad.TagCapabilityBitset, sad.CapTextGen|sad.CapReasoning)
	_ = self.AddUint32(sad.TagContextWindow, 32768)
	n.table.Insert(routetable.Entry{NodeID: n.id, Capabilities: *self, LastUpdated: time.Now()})

	return n, nil
}

func serveCmd() *cobra.Command {
	var nodeCount int
	var preset string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an in-memory demo mesh of fabric nodes",
		Long: `serve brings up a number of fabric nodes connected by an in-process
transport, lets their HyParView membership converge, and periodically
garbage-collects their routing tables, so the full stack can be
exercised without a real network.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := uuid.NewString()
			log := logging.New("strandd")
			log.Info("starting demo fabric", "run_id", runID, "nodes", nodeCount)

			cfg, err := config.NewBuilder().FromPreset(config.NetworkType(preset)).Build()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if duration > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}

			fabric := newDemoFabric()
			nodes := make([]*demoNode, 0, nodeCount)
			for i := 0; i < nodeCount; i++ {
				n, err := fabric.addNode(cfg, log)
				if err != nil {
					return err
				}
				nodes = append(nodes, n)
			}

			for i := 1; i < len(nodes); i++ {
				if err := nodes[i].gossipN.Join(nodes[0].id, 0); err != nil {
					log.Warn("join failed", "node", nodes[i].id.String(), "error", err)
				}
			}

			group, gctx := errgroup.WithContext(ctx)
			for _, n := range nodes {
				n := n
				group.Go(func() error {
					ticker := time.NewTicker(200 * time.Millisecond)
					defer ticker.Stop()
					gcTicker := time.NewTicker(cfg.GCInterval)
					defer gcTicker.Stop()
					healthTicker := time.NewTicker(5 * time.Second)
					defer healthTicker.Stop()
					for {
						select {
						case <-gctx.Done():
							return nil
						case now := <-ticker.C:
							n.gossipN.Tick(now)
							n.syncMetrics()
						case now := <-gcTicker.C:
							if evicted := n.table.GC(now); evicted > 0 {
								log.Debug("gc evicted entries", "node", n.id.String(), "count", evicted)
								n.tableMetrics.GCEvictions.Add(float64(evicted))
							}
						case <-healthTicker.C:
							report := n.health.RunAll(gctx)
							if !report.Healthy {
								log.Warn("node unhealthy", "node", n.id.String(), "checks", fmt.Sprintf("%+v", report.Checks))
							}
						}
					}
				})
			}

			if err := group.Wait(); err != nil {
				return err
			}
			log.Info("demo fabric stopped", "run_id", runID)
			return nil
		},
	}

	cmd.Flags().IntVar(&nodeCount, "nodes", 5, "number of demo nodes to run")
	cmd.Flags().StringVar(&preset, "preset", "local", "config preset: mainnet, testnet, local")
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop automatically after this long (0 = run until interrupted)")

	return cmd
}
