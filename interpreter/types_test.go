// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package interpreter

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchSetContains(t *testing.T) {
	tests := map[string]struct {
		set      DispatchSet
		function string
		expected bool
	}{
		"default .Call":      {set: DefaultDispatchSet(), function: ".Call", expected: true},
		"default .Fortran":   {set: DefaultDispatchSet(), function: ".Fortran", expected: true},
		"default .External2": {set: DefaultDispatchSet(), function: ".External2", expected: true},
		"default sum":        {set: DefaultDispatchSet(), function: "sum"},
		"prefix only":        {set: DefaultDispatchSet(), function: ".Callx"},
		"custom":             {set: NewDispatchSet("env.native"), function: "env.native", expected: true},
		"custom excludes":    {set: NewDispatchSet("env.native"), function: ".Call"},
		"zero value":         {function: ".Call"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.set.Contains(tc.function))
		})
	}
}

func TestDispatchSetNames(t *testing.T) {
	assert.Equal(t, []string{".C", ".Call", ".External", ".External2", ".Fortran"},
		DefaultDispatchSet().Names())
	assert.Empty(t, DispatchSet{}.Names())
}

func TestDispatchSetMark(t *testing.T) {
	frames := []Frame{
		{Function: "main"},
		{Function: "f", IsNativeDispatch: true},
		{Function: ".Call", Label: ".Call(C_sum, x)"},
		{Function: "g"},
	}

	marked := DefaultDispatchSet().Mark(frames)
	expected := []Frame{
		{Function: "main"},
		{Function: "f", IsNativeDispatch: true},
		{Function: ".Call", Label: ".Call(C_sum, x)", IsNativeDispatch: true},
		{Function: "g"},
	}
	assert.Empty(t, cmp.Diff(expected, marked))
	// The input is left untouched.
	assert.False(t, frames[2].IsNativeDispatch)
}

func TestStackSources(t *testing.T) {
	stack := StaticStack{{Function: ".C"}, {Function: "main"}}
	got := stack.InterpretedStack()
	require.Len(t, got, 2)
	got[0].Function = "changed"
	assert.Equal(t, ".C", stack[0].Function)

	var calls int
	src := StackSourceFunc(func() []Frame {
		calls++
		return []Frame{{Function: "f"}}
	})
	assert.Equal(t, []Frame{{Function: "f"}}, src.InterpretedStack())
	assert.Equal(t, 1, calls)
}

func TestLeafFirst(t *testing.T) {
	outermostFirst := []Frame{{Function: "main"}, {Function: "f"}, {Function: ".Call"}}
	got := LeafFirst(outermostFirst)
	assert.Equal(t, []Frame{{Function: ".Call"}, {Function: "f"}, {Function: "main"}}, got)
	assert.Equal(t, "main", outermostFirst[0].Function)
	assert.Empty(t, LeafFirst(nil))
}
