// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package health runs named liveness checks for the fabric's components
// (in cmd/strandd: the routing table and the membership node) and
// aggregates them into one Report.
package health

import (
	"context"
	"time"
)

// Checker runs a single named health check.
type Checker interface {
	HealthCheck(context.Context) (interface{}, error)
}

// Checkable is a component that can report its own health directly.
type Checkable interface {
	Health(context.Context) (interface{}, error)
}

// Report aggregates the result of running every registered check.
type Report struct {
	Healthy  bool          `json:"healthy"`
	Checks   []Check       `json:"checks,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Check is the outcome of one named health check.
type Check struct {
	Name     string        `json:"name"`
	Healthy  bool          `json:"healthy"`
	Error    string        `json:"error,omitempty"`
	Details  interface{}   `json:"details,omitempty"`
	Duration time.Duration `json:"duration"`
}

// namedChecker pairs a Checker with the name it reports under.
type namedChecker struct {
	name    string
	checker Checker
}

// Registry holds the set of checks a node runs to answer "am I healthy."
type Registry struct {
	checks []namedChecker
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named check. Registering two checks under the same
// name is permitted; both run and both appear in the Report.
func (r *Registry) Register(name string, checker Checker) {
	r.checks = append(r.checks, namedChecker{name: name, checker: checker})
}

// RunAll executes every registered check and returns the aggregate
// Report. A Report is Healthy only if every check succeeded and
// reported itself healthy.
func (r *Registry) RunAll(ctx context.Context) Report {
	start := time.Now()
	report := Report{Healthy: true, Checks: make([]Check, 0, len(r.checks))}

	for _, nc := range r.checks {
		checkStart := time.Now()
		details, err := nc.checker.HealthCheck(ctx)
		check := Check{
			Name:     nc.name,
			Healthy:  err == nil,
			Details:  details,
			Duration: time.Since(checkStart),
		}
		if err != nil {
			check.Error = err.Error()
			report.Healthy = false
		}
		report.Checks = append(report.Checks, check)
	}

	report.Duration = time.Since(start)
	return report
}
