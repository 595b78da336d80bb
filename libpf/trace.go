// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "go.opentelemetry.io/mixedstack/libpf"

import (
	"fmt"

	"github.com/google/uuid"
)

// Unattributed is the Dispatch value of native frames that could not be paired
// with a dispatch marker.
const Unattributed = -1

// InterpretedFrame is a call-site as reported by the interpreter.
type InterpretedFrame struct {
	// Label is the displayable call-site label, e.g. ".Call(C_sum, x)".
	Label string
	// Function is the called function identity.
	Function string
	// Module is the interpreter level module or package, if any.
	Module string
	// SourceFile and SourceLine locate the call-site, if known.
	SourceFile string
	SourceLine uint
	// IsNativeDispatch is true when the call is one of the interpreter's
	// foreign-call primitives.
	IsNativeDispatch bool
}

func (f InterpretedFrame) String() string {
	name := f.Label
	if name == "" {
		name = f.Function
	}
	if f.SourceFile != "" {
		return fmt.Sprintf("%s at %s:%d", name, f.SourceFile, f.SourceLine)
	}
	return name
}

// Frame represents one frame in a fused stack trace. Exactly one of
// Interpreted and Native is set, as indicated by Type.
type Frame struct {
	// Type is the frame type.
	Type FrameType
	// Depth is the zero-based position in the fused trace.
	Depth int

	Interpreted *InterpretedFrame
	Native      *NativeFrame

	// Dispatch is the index into the interpreted stack of the dispatch
	// marker this native frame is attributed to, or Unattributed.
	// It is Unattributed for interpreted frames.
	Dispatch int
	// Unattributed marks native frames of the trailing block.
	Unattributed bool
}

func (f *Frame) String() string {
	switch {
	case f.Type.IsInterpreted() && f.Interpreted != nil:
		return fmt.Sprintf("#%d %s", f.Depth, f.Interpreted)
	case f.Type.IsNative() && f.Native != nil:
		return fmt.Sprintf("#%d %s", f.Depth, f.Native)
	default:
		return fmt.Sprintf("#%d <%s>", f.Depth, f.Type)
	}
}

// Frames is an ordered list of fused frames.
type Frames []Frame

// Interpreted returns the interpreted frames in order.
func (frames Frames) Interpreted() []InterpretedFrame {
	var out []InterpretedFrame
	for i := range frames {
		if frames[i].Type.IsInterpreted() {
			out = append(out, *frames[i].Interpreted)
		}
	}
	return out
}

// Native returns the native frames in order.
func (frames Frames) Native() NativeStack {
	var out NativeStack
	for i := range frames {
		if frames[i].Type.IsNative() {
			out = append(out, *frames[i].Native)
		}
	}
	return out
}

// Trace represents a fused stack trace.
type Trace struct {
	Frames Frames
	// ID identifies the capture that produced the trace.
	ID uuid.UUID
	Hash TraceHash
	// Partial is set if the native walk stopped before the stack root.
	Partial bool
	// Mismatch is set if dispatch markers and foreign segments did not pair up.
	Mismatch bool
}
