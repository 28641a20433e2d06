// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestID_String(t *testing.T) {
	tests := []struct {
		name string
		id   ID
		want string
	}{
		{"global", Global("g"), "@g"},
		{"local", Local("foo", "p"), "@foo::%p"},
		{"instruction", Instruction("main", 3), "@main::3"},
		{"zero", ID{}, "<invalid>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.id.String())
		})
	}
}

func TestID_Equality(t *testing.T) {
	assert.Equal(t, Instruction("f", 1), Instruction("f", 1))
	assert.NotEqual(t, Instruction("f", 1), Instruction("g", 1))
	assert.NotEqual(t, Local("f", "1"), Instruction("f", 1))
	assert.True(t, ID{}.IsZero())
	assert.False(t, Global("g").IsZero())
}

func TestID_Compare(t *testing.T) {
	assert.Negative(t, Instruction("f", 1).Compare(Instruction("f", 2)))
	assert.Positive(t, Instruction("g", 0).Compare(Instruction("f", 9)))
	assert.Zero(t, Local("f", "x").Compare(Local("f", "x")))
	assert.Negative(t, Global("f").Compare(Local("f", "x")))
}

func TestElement_String(t *testing.T) {
	edge := NewEdge(Local("foo", "p"), Global("g"))

	assert.Equal(t, "@foo::%p -> @g", edge.Element().String())
	assert.Equal(t, "node 12", NodeID(12).Element().String())
	assert.Equal(t, "edge 7", EdgeID(7).Element().String())
	assert.Equal(t, "@main", Global("main").Element().String())
	assert.Equal(t, ElementEdge, edge.Element().Kind())
}

func TestElement_Compare(t *testing.T) {
	a := NodeID(1).Element()
	b := NodeID(2).Element()
	assert.Negative(t, a.Compare(b))
	assert.Negative(t, Global("a").Element().Compare(a), "values sort before nodes")
	assert.Zero(t, EdgeID(4).Element().Compare(EdgeID(4).Element()))
}
