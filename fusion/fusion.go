// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package fusion merges an interpreted call stack and a native call stack into
// one trace.
//
// Both stacks are leaf-first. Interpreted frames carry a flag for calls of
// foreign-call primitives, the dispatch markers. Native frames outside the
// interpreter runtime form foreign segments. Walking both stacks from the
// leaf in lockstep, the Nth marker is paired with the Nth foreign segment and
// the segment is emitted right after its marker. A nested crossing, where
// native code calls back into the interpreter which calls native code again,
// thus gives the innermost dispatch the leaf-most native code. The pairing is
// positional and a heuristic: nothing links a marker to the native code it
// called.
package fusion // import "go.opentelemetry.io/mixedstack/fusion"

import (
	"go.opentelemetry.io/mixedstack/interpreter"
	"go.opentelemetry.io/mixedstack/libpf"
)

// Result is the outcome of fusing two stacks.
type Result struct {
	// Frames is the fused sequence.
	Frames libpf.Frames
	// Mismatch is set if the number of dispatch markers and foreign
	// segments differ while both stacks were present.
	Mismatch bool

	// Markers is the number of dispatch markers.
	Markers int
	// Segments is the number of foreign native segments.
	Segments int
	// Paired is the number of markers that received a segment.
	Paired int
	// Unattributed is the number of native frames in the trailing block.
	Unattributed int
	// Dropped is the number of interpreter runtime frames left out.
	Dropped int
}

// Trace wraps the fused frames in a Trace with its hash set.
func (r *Result) Trace() *libpf.Trace {
	return &libpf.Trace{
		Frames:   r.Frames,
		Hash:     libpf.HashFrames(r.Frames),
		Mismatch: r.Mismatch,
	}
}

// segment is the native stack range [start, end).
type segment struct {
	start, end int
}

// foreignSegments returns the maximal runs of frames that are not runtime
// code, leaf-first.
func foreignSegments(native libpf.NativeStack, isRuntime func(libpf.NativeFrame) bool) (
	segs []segment, dropped int) {
	start := -1
	for i := range native {
		if isRuntime(native[i]) {
			dropped++
			if start >= 0 {
				segs = append(segs, segment{start, i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		segs = append(segs, segment{start, len(native)})
	}
	return segs, dropped
}

// builder appends frames to a fused sequence. Frames are copied so the
// result shares no memory with the inputs. The fused frames point into the
// copy arrays, so these must be sized for all frames up front.
type builder struct {
	frames      libpf.Frames
	interpreted []libpf.InterpretedFrame
	native      []libpf.NativeFrame
}

func newBuilder(interpreted, native int) *builder {
	return &builder{
		frames:      make(libpf.Frames, 0, interpreted+native),
		interpreted: make([]libpf.InterpretedFrame, 0, interpreted),
		native:      make([]libpf.NativeFrame, 0, native),
	}
}

func (b *builder) addInterpreted(f *interpreter.Frame) {
	b.interpreted = append(b.interpreted, *f)
	b.frames = append(b.frames, libpf.Frame{
		Type:        libpf.FrameTypeInterpreted,
		Depth:       len(b.frames),
		Interpreted: &b.interpreted[len(b.interpreted)-1],
		Dispatch:    libpf.Unattributed,
	})
}

func (b *builder) addNative(f *libpf.NativeFrame, dispatch int) {
	b.native = append(b.native, *f)
	b.frames = append(b.frames, libpf.Frame{
		Type:         libpf.FrameTypeNative,
		Depth:        len(b.frames),
		Native:       &b.native[len(b.native)-1],
		Dispatch:     dispatch,
		Unattributed: dispatch == libpf.Unattributed,
	})
}

// Fuse merges interp with native, both leaf-first. isRuntime tells which
// native frames belong to the interpreter runtime; they are left out of the
// result. A nil isRuntime treats every frame as foreign.
//
// Markers closer to the root than the last foreign segment are emitted
// without native frames. Segments closer to the root than the last marker
// are appended as unattributed block.
//
// With an empty native stack the result holds the interpreted frames only.
// With an empty interpreted stack it holds every native frame, unattributed.
func Fuse(interp []interpreter.Frame, native libpf.NativeStack,
	isRuntime func(libpf.NativeFrame) bool) Result {
	if isRuntime == nil {
		isRuntime = func(libpf.NativeFrame) bool { return false }
	}

	var res Result
	if len(interp) == 0 {
		b := newBuilder(0, len(native))
		for i := range native {
			b.addNative(&native[i], libpf.Unattributed)
		}
		res.Frames = b.frames
		res.Unattributed = len(native)
		return res
	}

	segs, dropped := foreignSegments(native, isRuntime)
	res.Segments = len(segs)
	res.Dropped = dropped

	b := newBuilder(len(interp), len(native)-dropped)
	next := 0
	for i := range interp {
		b.addInterpreted(&interp[i])
		if !interp[i].IsNativeDispatch {
			continue
		}
		res.Markers++
		if next >= len(segs) {
			continue
		}
		for j := segs[next].start; j < segs[next].end; j++ {
			b.addNative(&native[j], i)
		}
		next++
		res.Paired++
	}
	for ; next < len(segs); next++ {
		for j := segs[next].start; j < segs[next].end; j++ {
			b.addNative(&native[j], libpf.Unattributed)
			res.Unattributed++
		}
	}

	res.Frames = b.frames
	res.Mismatch = len(native) > 0 && res.Markers != res.Segments
	return res
}
