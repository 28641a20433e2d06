// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package account compares two fact sets believed to describe the same thing.
//
// An Account pairs a claimed set A (what the PDG says) with an expected set
// B (what the IR says) and exposes the three regions of their Venn diagram.
// It is pure set arithmetic: it cannot fail and never mutates its inputs.
//
// # Example
//
//	acc := account.New(claimed, expected)
//	tuple := acc.Tuple()           // (|A|, |B|, |A-B|, |B-A|)
//	for x := range acc.AMinusB() { // facts the PDG invented
//	    ...
//	}
package account

// Tuple is the size summary of an Account: (|A|, |B|, |A-B|, |B-A|).
type Tuple struct {
	A       int `json:"a"`
	B       int `json:"b"`
	AMinusB int `json:"a_minus_b"`
	BMinusA int `json:"b_minus_a"`
}

// Balanced reports whether both differences are empty.
func (t Tuple) Balanced() bool {
	return t.AMinusB == 0 && t.BMinusA == 0
}

// Account is an immutable pair of sets (claimed, expected).
//
// Thread Safety: Safe for concurrent reads. The sets are copied at
// construction, so later changes to the caller's sets are not observed.
type Account[T comparable] struct {
	a Set[T]
	b Set[T]
}

// New returns the account of claimed against expected.
//
// Inputs:
//
//	claimed - The A side. Nil is treated as empty.
//	expected - The B side. Nil is treated as empty.
//
// Outputs:
//
//	Account[T] - The account. The inputs are copied.
func New[T comparable](claimed, expected Set[T]) Account[T] {
	return Account[T]{a: claimed.Clone(), b: expected.Clone()}
}

// Claimed returns a copy of A.
func (acc Account[T]) Claimed() Set[T] {
	return acc.a.Clone()
}

// Expected returns a copy of B.
func (acc Account[T]) Expected() Set[T] {
	return acc.b.Clone()
}

// Intersection returns A ∩ B.
func (acc Account[T]) Intersection() Set[T] {
	return acc.a.Intersect(acc.b)
}

// AMinusB returns the claimed facts that are not expected.
func (acc Account[T]) AMinusB() Set[T] {
	return acc.a.Difference(acc.b)
}

// BMinusA returns the expected facts that were not claimed.
func (acc Account[T]) BMinusA() Set[T] {
	return acc.b.Difference(acc.a)
}

// Tuple returns (|A|, |B|, |A-B|, |B-A|).
func (acc Account[T]) Tuple() Tuple {
	return Tuple{
		A:       acc.a.Len(),
		B:       acc.b.Len(),
		AMinusB: acc.AMinusB().Len(),
		BMinusA: acc.BMinusA().Len(),
	}
}
