// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package interpreter defines what an interpreter adapter hands to a capture:
// its call stack as a list of frames, leaf first like a native stack, with the
// calls of foreign-call primitives marked as native dispatches.
package interpreter // import "go.opentelemetry.io/mixedstack/interpreter"

import (
	"slices"

	"go.opentelemetry.io/mixedstack/libpf"
)

// Frame is one interpreted call-site.
type Frame = libpf.InterpretedFrame

// DefaultDispatchNames are the foreign-call primitives of R.
var DefaultDispatchNames = []string{".Call", ".External", ".External2", ".C", ".Fortran"}

// DispatchSet is a set of function names that transfer control to native
// code. The zero value is an empty set.
type DispatchSet struct {
	names map[string]struct{}
}

// NewDispatchSet returns a set holding names.
func NewDispatchSet(names ...string) DispatchSet {
	set := DispatchSet{names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		set.names[name] = struct{}{}
	}
	return set
}

// DefaultDispatchSet returns a set holding DefaultDispatchNames.
func DefaultDispatchSet() DispatchSet {
	return NewDispatchSet(DefaultDispatchNames...)
}

// Contains reports whether function is a foreign-call primitive.
func (s DispatchSet) Contains(function string) bool {
	_, ok := s.names[function]
	return ok
}

// Names returns the sorted names of the set.
func (s DispatchSet) Names() []string {
	names := make([]string, 0, len(s.names))
	for name := range s.names {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Mark returns a copy of frames where every frame calling a member of the set
// is flagged as native dispatch. Frames already flagged stay flagged.
func (s DispatchSet) Mark(frames []Frame) []Frame {
	out := make([]Frame, len(frames))
	for i, f := range frames {
		f.IsNativeDispatch = f.IsNativeDispatch || s.Contains(f.Function)
		out[i] = f
	}
	return out
}

// StackSource supplies the interpreted call stack of the calling goroutine,
// innermost call first.
type StackSource interface {
	InterpretedStack() []Frame
}

// StackSourceFunc adapts a function to a StackSource.
type StackSourceFunc func() []Frame

// InterpretedStack calls f.
func (f StackSourceFunc) InterpretedStack() []Frame {
	return f()
}

// StaticStack is a StackSource returning a fixed leaf-first stack. Adapters
// that receive the stack from the interpreter's own trace API wrap it in a
// StaticStack, reversing it with LeafFirst if the interpreter lists the
// outermost call first.
type StaticStack []Frame

// InterpretedStack returns a copy of the stack.
func (s StaticStack) InterpretedStack() []Frame {
	return slices.Clone([]Frame(s))
}

// LeafFirst returns a reversed copy of a stack listed outermost call first.
func LeafFirst(outermostFirst []Frame) []Frame {
	out := slices.Clone(outermostFirst)
	slices.Reverse(out)
	return out
}
