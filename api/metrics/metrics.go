// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package metrics wires the fabric's forwarding, routing table, and
// gossip counters into Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Registerer registers collectors with an underlying registry.
type Registerer interface {
	prometheus.Registerer
}

// Registry both registers collectors and gathers their current values.
type Registry interface {
	prometheus.Registerer
	prometheus.Gatherer
}

// NewRegistry returns a fresh, empty Prometheus registry.
func NewRegistry() Registry {
	return prometheus.NewRegistry()
}

// MultiGatherer fans out Gather calls across named sub-registries, so
// each node subsystem (forwarding, gossip, routing table) can own its
// own registry and still be scraped from a single endpoint.
type MultiGatherer interface {
	prometheus.Gatherer
	Register(name string, gatherer prometheus.Gatherer) error
}

type multiGatherer struct {
	gatherers map[string]prometheus.Gatherer
}

// NewMultiGatherer returns an empty MultiGatherer.
func NewMultiGatherer() MultiGatherer {
	return &multiGatherer{gatherers: make(map[string]prometheus.Gatherer)}
}

func (mg *multiGatherer) Register(name string, gatherer prometheus.Gatherer) error {
	mg.gatherers[name] = gatherer
	return nil
}

func (mg *multiGatherer) Gather() ([]*dto.MetricFamily, error) {
	var result []*dto.MetricFamily
	for _, g := range mg.gatherers {
		families, err := g.Gather()
		if err != nil {
			return nil, err
		}
		result = append(result, families...)
	}
	return result, nil
}

// ForwardingMetrics tracks the forwarding engine's hot-path counters.
type ForwardingMetrics struct {
	Forwarded      prometheus.Counter
	Dropped        prometheus.Counter
	Resolved       prometheus.Counter
	ResolveFailure prometheus.Counter
}

// NewForwardingMetrics registers and returns the forwarding engine's
// counters under namespace.
func NewForwardingMetrics(namespace string, registerer prometheus.Registerer) (*ForwardingMetrics, error) {
	m := &ForwardingMetrics{
		Forwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_forwarded_total", Help: "Number of frames successfully forwarded.",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "frames_dropped_total", Help: "Number of frames dropped.",
		}),
		Resolved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "resolves_total", Help: "Number of successful route resolutions.",
		}),
		ResolveFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "resolve_failures_total", Help: "Number of route resolutions with no eligible candidate.",
		}),
	}
	for _, c := range []prometheus.Collector{m.Forwarded, m.Dropped, m.Resolved, m.ResolveFailure} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RouteTableMetrics tracks the routing table's size and garbage
// collection activity.
type RouteTableMetrics struct {
	Size        prometheus.Gauge
	GCEvictions prometheus.Counter
}

// NewRouteTableMetrics registers and returns the routing table's
// counters under namespace.
func NewRouteTableMetrics(namespace string, registerer prometheus.Registerer) (*RouteTableMetrics, error) {
	m := &RouteTableMetrics{
		Size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "route_table_size", Help: "Current number of published route entries.",
		}),
		GCEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "route_table_gc_evictions_total", Help: "Number of entries evicted by TTL garbage collection.",
		}),
	}
	for _, c := range []prometheus.Collector{m.Size, m.GCEvictions} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// GossipMetrics tracks HyParView membership activity.
type GossipMetrics struct {
	ActiveViewSize  prometheus.Gauge
	PassiveViewSize prometheus.Gauge
	MessagesHandled *prometheus.CounterVec
	SignatureReject prometheus.Counter
}

// NewGossipMetrics registers and returns the gossip node's counters
// under namespace.
func NewGossipMetrics(namespace string, registerer prometheus.Registerer) (*GossipMetrics, error) {
	m := &GossipMetrics{
		ActiveViewSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "gossip_active_view_size", Help: "Current active view size.",
		}),
		PassiveViewSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "gossip_passive_view_size", Help: "Current passive view size.",
		}),
		MessagesHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "gossip_messages_total", Help: "Gossip messages handled, by type.",
		}, []string{"type"}),
		SignatureReject: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "gossip_signature_rejects_total", Help: "Messages rejected for failing signature verification.",
		}),
	}
	for _, c := range []prometheus.Collector{m.ActiveViewSize, m.PassiveViewSize, m.MessagesHandled, m.SignatureReject} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
