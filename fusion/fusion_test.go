// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package fusion

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"go.opentelemetry.io/mixedstack/interpreter"
	"go.opentelemetry.io/mixedstack/libpf"
)

const runtimeModule = "/usr/lib/R/lib/libR.so"

func isRuntime(f libpf.NativeFrame) bool {
	return f.ModulePath == runtimeModule
}

func call(function string) interpreter.Frame {
	return interpreter.Frame{Function: function, Label: function + "()"}
}

func dispatch(function string) interpreter.Frame {
	return interpreter.Frame{Function: function, Label: ".Call(" + function + ")",
		IsNativeDispatch: true}
}

func native(function, module string) libpf.NativeFrame {
	return libpf.NativeFrame{
		Address:       libpf.Address(0x1000 + len(function)*0x10),
		ReturnAddress: true,
		FunctionName:  function,
		ModulePath:    module,
	}
}

func runtimeFrame(function string) libpf.NativeFrame {
	return native(function, runtimeModule)
}

// summary renders fused frames as "I:name" or "N:name@dispatch", with "-" for
// unattributed frames.
func summary(frames libpf.Frames) []string {
	out := make([]string, 0, len(frames))
	for i := range frames {
		f := &frames[i]
		switch f.Type {
		case libpf.FrameTypeInterpreted:
			out = append(out, "I:"+f.Interpreted.Function)
		case libpf.FrameTypeNative:
			at := "-"
			if !f.Unattributed {
				at = fmt.Sprint(f.Dispatch)
			}
			out = append(out, fmt.Sprintf("N:%s@%s", f.Native.FunctionName, at))
		default:
			out = append(out, "?")
		}
	}
	return out
}

func TestFuse(t *testing.T) {
	tests := map[string]struct {
		interp   []interpreter.Frame
		native   libpf.NativeStack
		expected []string
		mismatch bool
		paired   int
		dropped  int
	}{
		"two markers two segments": {
			interp: []interpreter.Frame{call("foo"), dispatch("bar"), dispatch("baz")},
			native: libpf.NativeStack{
				native("x1", "/lib/libx.so"),
				native("x2", "/lib/libx.so"),
				native("x3", "/lib/libx.so"),
				runtimeFrame("Rf_eval"),
				native("y1", "/lib/liby.so"),
				native("y2", "/lib/liby.so"),
				runtimeFrame("do_dotcall"),
				runtimeFrame("Rf_applyClosure"),
			},
			expected: []string{
				"I:foo",
				"I:bar", "N:x1@1", "N:x2@1", "N:x3@1",
				"I:baz", "N:y1@2", "N:y2@2",
			},
			paired:  2,
			dropped: 3,
		},
		"more markers than segments": {
			interp: []interpreter.Frame{dispatch("a"), dispatch("b"), dispatch("c")},
			native: libpf.NativeStack{
				native("x1", "/lib/libx.so"),
				runtimeFrame("Rf_eval"),
				native("y1", "/lib/liby.so"),
			},
			expected: []string{"I:a", "N:x1@0", "I:b", "N:y1@1", "I:c"},
			mismatch: true,
			paired:   2,
			dropped:  1,
		},
		"nested crossing": {
			// main -> .Call(outer) -> outer_c -> callback -> .Call(inner) -> inner_c
			interp: []interpreter.Frame{
				dispatch("inner"), call("callback"), dispatch("outer"), call("main"),
			},
			native: libpf.NativeStack{
				native("inner_c", "/lib/libinner.so"),
				runtimeFrame("Rf_eval"),
				native("outer_c", "/lib/libouter.so"),
				runtimeFrame("do_dotcall"),
			},
			expected: []string{
				"I:inner", "N:inner_c@0",
				"I:callback",
				"I:outer", "N:outer_c@2",
				"I:main",
			},
			paired:  2,
			dropped: 2,
		},
		"unpaired markers toward the root": {
			interp: []interpreter.Frame{dispatch("c"), dispatch("b"), dispatch("a")},
			native: libpf.NativeStack{
				native("leaf_c", "/lib/libleaf.so"),
				runtimeFrame("do_dotcall"),
			},
			expected: []string{"I:c", "N:leaf_c@0", "I:b", "I:a"},
			mismatch: true,
			paired:   1,
			dropped:  1,
		},
		"more segments than markers": {
			interp: []interpreter.Frame{call("f"), dispatch("a"), call("main")},
			native: libpf.NativeStack{
				native("x1", "/lib/libx.so"),
				runtimeFrame("Rf_eval"),
				native("y1", "/lib/liby.so"),
				native("y2", "/lib/liby.so"),
				runtimeFrame("Rf_eval"),
				native("z1", "/lib/libz.so"),
			},
			expected: []string{
				"I:f", "I:a", "N:x1@1", "I:main",
				"N:y1@-", "N:y2@-", "N:z1@-",
			},
			mismatch: true,
			paired:   1,
			dropped:  2,
		},
		"empty native stack": {
			interp:   []interpreter.Frame{call("f"), dispatch("a"), call("main")},
			expected: []string{"I:f", "I:a", "I:main"},
		},
		"empty interpreted stack": {
			native: libpf.NativeStack{
				native("x1", "/lib/libx.so"),
				runtimeFrame("Rf_eval"),
				native("main", "/usr/bin/R"),
			},
			expected: []string{"N:x1@-", "N:Rf_eval@-", "N:main@-"},
		},
		"both empty": {
			expected: []string{},
		},
		"only runtime frames": {
			interp:   []interpreter.Frame{dispatch("a")},
			native:   libpf.NativeStack{runtimeFrame("Rf_eval"), runtimeFrame("main")},
			expected: []string{"I:a"},
			mismatch: true,
			dropped:  2,
		},
		"no markers": {
			interp:   []interpreter.Frame{call("f"), call("main")},
			native:   libpf.NativeStack{runtimeFrame("Rf_eval")},
			expected: []string{"I:f", "I:main"},
			dropped:  1,
		},
		"segment at root": {
			interp: []interpreter.Frame{dispatch("a")},
			native: libpf.NativeStack{
				runtimeFrame("Rf_eval"),
				native("start", "/lib/libc.so.6"),
			},
			expected: []string{"I:a", "N:start@0"},
			paired:   1,
			dropped:  1,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			res := Fuse(tc.interp, tc.native, isRuntime)
			assert.Empty(t, cmp.Diff(tc.expected, summary(res.Frames)))
			assert.Equal(t, tc.mismatch, res.Mismatch)
			assert.Equal(t, tc.paired, res.Paired)
			assert.Equal(t, tc.dropped, res.Dropped)
			for i := range res.Frames {
				assert.Equal(t, i, res.Frames[i].Depth)
			}
		})
	}
}

func TestFuseDegradeToInterpreted(t *testing.T) {
	interp := []interpreter.Frame{call("f"), dispatch("a"), call("main")}
	res := Fuse(interp, nil, isRuntime)

	assert.Empty(t, cmp.Diff(interp, res.Frames.Interpreted()))
	assert.Empty(t, res.Frames.Native())
	for _, f := range res.Frames {
		assert.Equal(t, libpf.FrameTypeInterpreted, f.Type)
		assert.Equal(t, libpf.Unattributed, f.Dispatch)
		assert.Nil(t, f.Native)
	}
}

func TestFuseCopiesInput(t *testing.T) {
	interp := []interpreter.Frame{dispatch("a")}
	stack := libpf.NativeStack{native("x1", "/lib/libx.so")}

	res := Fuse(interp, stack, isRuntime)
	interp[0].Function = "changed"
	stack[0].FunctionName = "changed"

	assert.Equal(t, []string{"I:a", "N:x1@0"}, summary(res.Frames))
}

func TestFuseNilClassifier(t *testing.T) {
	res := Fuse([]interpreter.Frame{dispatch("a")},
		libpf.NativeStack{native("x1", "/lib/libx.so"), runtimeFrame("Rf_eval")}, nil)
	assert.Equal(t, []string{"I:a", "N:x1@0", "N:Rf_eval@0"}, summary(res.Frames))
	assert.False(t, res.Mismatch)
}

func TestResultTrace(t *testing.T) {
	res := Fuse([]interpreter.Frame{dispatch("a"), dispatch("b")},
		libpf.NativeStack{native("x1", "/lib/libx.so")}, isRuntime)
	trace := res.Trace()
	assert.True(t, trace.Mismatch)
	assert.Equal(t, libpf.HashFrames(res.Frames), trace.Hash)
	assert.False(t, trace.Hash.IsZero())
}

// TestFuseOrderPreserving checks on random inputs that both source sequences
// survive fusion in order.
func TestFuseOrderPreserving(t *testing.T) {
	modules := []string{"/lib/libx.so", "/lib/liby.so", runtimeModule}
	r := rand.New(rand.NewPCG(7, 11)) //nolint:gosec

	for iteration := range 500 {
		interp := make([]interpreter.Frame, r.IntN(8))
		for i := range interp {
			if r.IntN(3) == 0 {
				interp[i] = dispatch(fmt.Sprintf("d%d", i))
			} else {
				interp[i] = call(fmt.Sprintf("f%d", i))
			}
		}
		stack := make(libpf.NativeStack, r.IntN(16))
		for i := range stack {
			stack[i] = native(fmt.Sprintf("n%d", i), modules[r.IntN(len(modules))])
		}

		res := Fuse(interp, stack, isRuntime)
		if len(interp) > 0 {
			assert.Empty(t, cmp.Diff(interp, res.Frames.Interpreted()),
				"iteration %d", iteration)
		}

		expectedNative := stack
		if len(interp) > 0 {
			expectedNative = stack.Filter(func(f *libpf.NativeFrame) bool {
				return !isRuntime(*f)
			})
		}
		assert.Empty(t, cmp.Diff([]libpf.NativeFrame(expectedNative),
			[]libpf.NativeFrame(res.Frames.Native()), cmpopts.EquateEmpty()),
			"iteration %d", iteration)

		// Attributed native frames directly follow their marker and
		// unattributed ones form the tail.
		seenUnattributed := false
		lastMarker := libpf.Unattributed
		for i := range res.Frames {
			f := &res.Frames[i]
			assert.Equal(t, i, f.Depth)
			switch {
			case f.Type.IsInterpreted():
				assert.False(t, seenUnattributed, "iteration %d", iteration)
				lastMarker = libpf.Unattributed
				if f.Interpreted.IsNativeDispatch {
					lastMarker = interpretedIndex(res.Frames, i)
				}
			case f.Unattributed:
				seenUnattributed = true
				assert.Equal(t, libpf.Unattributed, f.Dispatch)
			default:
				assert.False(t, seenUnattributed, "iteration %d", iteration)
				assert.Equal(t, lastMarker, f.Dispatch, "iteration %d", iteration)
				assert.True(t, interp[f.Dispatch].IsNativeDispatch, "iteration %d", iteration)
			}
		}

		// Pairing starts at the leaf: the paired markers are the leaf-most ones.
		attributed := make(map[int]bool)
		for _, f := range res.Frames {
			if f.Type.IsNative() && !f.Unattributed {
				attributed[f.Dispatch] = true
			}
		}
		marker := 0
		for i := range interp {
			if !interp[i].IsNativeDispatch {
				continue
			}
			assert.Equal(t, marker < res.Paired, attributed[i], "iteration %d", iteration)
			marker++
		}
	}
}

// interpretedIndex returns the position of the fused frame at depth among the
// interpreted frames.
func interpretedIndex(frames libpf.Frames, depth int) int {
	n := 0
	for i := range depth {
		if frames[i].Type.IsInterpreted() {
			n++
		}
	}
	return n
}
