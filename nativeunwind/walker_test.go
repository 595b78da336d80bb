// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package nativeunwind

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/mixedstack/libpf"
)

func funcName(f libpf.NativeFrame) string {
	fn := runtime.FuncForPC(uintptr(f.LookupAddress()))
	if fn == nil {
		return ""
	}
	return fn.Name()
}

//go:noinline
func walkFrom(w *Walker, maxDepth int) (libpf.NativeStack, error) {
	return w.Walk(maxDepth)
}

// nest calls fn depth frames deeper than its caller.
//
//go:noinline
func nest(depth int, fn func()) {
	if depth == 0 {
		fn()
		return
	}
	nest(depth-1, fn)
}

//go:noinline
func recurse(w *Walker, depth int) (libpf.NativeStack, error) {
	if depth == 0 {
		return w.Walk(0)
	}
	return recurse(w, depth-1)
}

func TestParseBackend(t *testing.T) {
	for typ, name := range backendNames {
		parsed, err := ParseBackend(name)
		require.NoError(t, err)
		assert.Equal(t, typ, parsed)
		assert.Equal(t, name, typ.String())
	}
	_, err := ParseBackend("libunwind")
	require.Error(t, err)
}

func TestDisabledWalker(t *testing.T) {
	w := New(Options{Backend: BackendDisabled})
	assert.False(t, w.IsAvailable())
	assert.Equal(t, BackendDisabled, w.Backend())

	stack, err := w.Walk(16)
	require.NoError(t, err)
	assert.Empty(t, stack)
}

// testWalker runs the common walker checks for one backend.
func testWalker(t *testing.T, w *Walker) {
	require.True(t, w.IsAvailable())

	t.Run("starts at caller", func(t *testing.T) {
		stack, err := walkFrom(w, 8)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(stack), 2)
		assert.Equal(t, "go.opentelemetry.io/mixedstack/nativeunwind.walkFrom", funcName(stack[0]))
		assert.True(t, strings.HasPrefix(funcName(stack[1]),
			"go.opentelemetry.io/mixedstack/nativeunwind.testWalker"), funcName(stack[1]))
		for _, f := range stack {
			assert.True(t, f.ReturnAddress)
			assert.Equal(t, libpf.UnknownModule, f.ModulePath)
		}
	})

	t.Run("max depth", func(t *testing.T) {
		for _, depth := range []int{1, 2, 3} {
			stack, err := walkFrom(w, depth)
			require.NoError(t, err)
			assert.Len(t, stack, depth)
		}
	})

	t.Run("skip", func(t *testing.T) {
		var full, skipped libpf.NativeStack
		var fullErr, skippedErr error
		// Run deep enough that both walks hit their depth limit.
		nest(4, func() {
			full, fullErr = w.WalkSkip(0, 4)
			skipped, skippedErr = w.WalkSkip(1, 3)
		})
		require.NoError(t, fullErr)
		require.NoError(t, skippedErr)
		require.Len(t, full, 4)
		require.Len(t, skipped, 3)
		assert.Equal(t, "go.opentelemetry.io/mixedstack/nativeunwind.nest", funcName(skipped[0]))
		assert.Equal(t, funcName(full[1]), funcName(skipped[0]))
		assert.Equal(t, funcName(full[2]), funcName(skipped[1]))
	})

	t.Run("frame cap", func(t *testing.T) {
		stack, err := recurse(w, MaxFrames+100)
		require.NoError(t, err)
		assert.Len(t, stack, MaxFrames)
		assert.Equal(t, "go.opentelemetry.io/mixedstack/nativeunwind.recurse", funcName(stack[0]))
	})
}

func TestCallersWalker(t *testing.T) {
	w := New(Options{Backend: BackendCallers})
	assert.Equal(t, BackendCallers, w.Backend())
	testWalker(t, w)
}

func TestDefaultBackend(t *testing.T) {
	typ := DefaultBackend()
	assert.NotEqual(t, BackendAuto, typ)
	assert.Equal(t, typ, DefaultBackend())
	assert.Equal(t, typ != BackendDisabled, IsAvailable())

	w := New(Options{})
	assert.Equal(t, typ, w.Backend())
}
