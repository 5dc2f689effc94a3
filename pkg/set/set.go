// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package set provides a minimal generic set, used by the scoring engine
// for region-list membership tests without reimplementing map
// bookkeeping at every call site.
package set

import "golang.org/x/exp/maps"

const minSetSize = 16

// Set is a set of comparable elements backed by a map.
type Set[T comparable] map[T]struct{}

// New returns an empty set with initial capacity size.
func New[T comparable](size int) Set[T] {
	if size < 0 {
		size = 0
	}
	if size < minSetSize {
		size = minSetSize
	}
	return make(map[T]struct{}, size)
}

// Of returns a set initialized with elts.
func Of[T comparable](elts ...T) Set[T] {
	s := New[T](len(elts))
	s.Add(elts...)
	return s
}

// Add inserts elts into the set; duplicates are no-ops.
func (s Set[T]) Add(elts ...T) {
	for _, elt := range elts {
		s[elt] = struct{}{}
	}
}

// Contains reports whether elt is a member of the set.
func (s Set[T]) Contains(elt T) bool {
	_, ok := s[elt]
	return ok
}

// Remove deletes elts from the set.
func (s Set[T]) Remove(elts ...T) {
	for _, elt := range elts {
		delete(s, elt)
	}
}

// Len returns the number of elements in the set.
func (s Set[T]) Len() int {
	return len(s)
}

// List returns the set's elements in unspecified order.
func (s Set[T]) List() []T {
	return maps.Keys(s)
}
