// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package account

import (
	"cmp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/pdgcheck/services/validator/fact"
)

// TestAccount_CallFunctionPairs checks the worked call/function example.
func TestAccount_CallFunctionPairs(t *testing.T) {
	type pair struct{ call, fn string }

	claimed := NewSet(pair{"c1", "f1"}, pair{"c2", "f2"})
	expected := NewSet(pair{"c1", "f1"}, pair{"c3", "f3"})

	acc := New(claimed, expected)

	assert.Equal(t, Tuple{A: 2, B: 2, AMinusB: 1, BMinusA: 1}, acc.Tuple())
	assert.True(t, acc.AMinusB().Equal(NewSet(pair{"c2", "f2"})))
	assert.True(t, acc.BMinusA().Equal(NewSet(pair{"c3", "f3"})))
	assert.True(t, acc.Intersection().Equal(NewSet(pair{"c1", "f1"})))
	assert.False(t, acc.Tuple().Balanced())
}

// TestAccount_Completeness checks that the three regions partition A and B.
func TestAccount_Completeness(t *testing.T) {
	cases := []struct {
		name string
		a, b []int
	}{
		{"disjoint", []int{1, 2}, []int{3, 4}},
		{"equal", []int{1, 2, 3}, []int{3, 2, 1}},
		{"subset", []int{1}, []int{1, 2, 3}},
		{"overlap", []int{1, 2, 3, 4}, []int{3, 4, 5}},
		{"empty claimed", nil, []int{7}},
		{"both empty", nil, nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, b := NewSet(tc.a...), NewSet(tc.b...)
			acc := New(a, b)

			inter := acc.Intersection()
			aMinusB := acc.AMinusB()
			bMinusA := acc.BMinusA()

			assert.True(t, inter.Union(aMinusB).Equal(a), "intersection ∪ (A-B) == A")
			assert.True(t, inter.Union(bMinusA).Equal(b), "intersection ∪ (B-A) == B")
			assert.Zero(t, inter.Intersect(aMinusB).Len())
			assert.Zero(t, inter.Intersect(bMinusA).Len())
		})
	}
}

// TestAccount_DoesNotMutateInputs verifies the inputs are copied.
func TestAccount_DoesNotMutateInputs(t *testing.T) {
	a := NewSet(1, 2)
	b := NewSet(2, 3)
	acc := New(a, b)

	a.Add(99)
	_ = acc.AMinusB()

	assert.False(t, acc.Claimed().Has(99))
	assert.Equal(t, 2, b.Len())
}

func TestAccount_NilSets(t *testing.T) {
	var a, b Set[string]
	acc := New(a, b)
	assert.Equal(t, Tuple{}, acc.Tuple())
	assert.True(t, acc.Tuple().Balanced())
}

func TestSet_Operations(t *testing.T) {
	s := NewSet(3, 1, 2)
	require.Equal(t, 3, s.Len())

	assert.Equal(t, []int{1, 2, 3}, Sorted(s, cmp.Compare[int]))
	assert.True(t, NewSet(1, 2).SubsetOf(s))
	assert.False(t, NewSet(1, 4).SubsetOf(s))

	evens := Filter(s, func(x int) bool { return x%2 == 0 })
	assert.True(t, evens.Equal(NewSet(2)))

	doubled := Map(s, func(x int) (int, bool) { return x * 2, x != 3 })
	assert.True(t, doubled.Equal(NewSet(2, 4)))
}

func TestSet_FactElements(t *testing.T) {
	s := NewSet(fact.Instruction("f", 2), fact.Instruction("f", 0))
	got := Sorted(s, fact.ID.Compare)
	assert.Equal(t, fact.Instruction("f", 0), got[0])
	assert.Equal(t, "@f::2", got[1].Element().String())
}
