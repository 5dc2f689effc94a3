// Copyright (C) 2025, Strand Protocol Contributors. All rights reserved.
// See the file LICENSE for licensing terms.

package id

import "testing"

func TestNewProducesDistinctNonZeroIDs(t *testing.T) {
	a := New()
	b := New()
	if a.IsZero() || b.IsZero() {
		t.Fatal("New() produced a zero id")
	}
	if a == b {
		t.Fatal("two consecutive New() calls collided")
	}
}

func TestParseBytesRoundTrips(t *testing.T) {
	want := New()
	got, err := ParseBytes(want[:])
	if err != nil {
		t.Fatalf("ParseBytes: %v", err)
	}
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestParseBytesRejectsWrongLength(t *testing.T) {
	if _, err := ParseBytes([]byte{1, 2, 3}); err != ErrInvalidLength {
		t.Fatalf("got %v, want ErrInvalidLength", err)
	}
}

func TestMarshalUnmarshalTextRoundTrips(t *testing.T) {
	want := New()
	text, err := want.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}
	var got NodeID
	if err := got.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestCompareOrdersByteWise(t *testing.T) {
	var a, b NodeID
	a[15] = 1
	b[15] = 2
	if a.Compare(b) != -1 {
		t.Fatalf("expected a < b")
	}
	if b.Compare(a) != 1 {
		t.Fatalf("expected b > a")
	}
	if a.Compare(a) != 0 {
		t.Fatalf("expected a == a")
	}
}
