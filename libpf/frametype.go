// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "go.opentelemetry.io/mixedstack/libpf"

// FrameType defines which execution domain a fused frame comes from.
type FrameType int

const (
	// unknownFrame marks a zero-value Frame. If this appears, it's likely a bug somewhere.
	unknownFrame FrameType = iota
	// FrameTypeInterpreted identifies frames reported by the interpreter.
	FrameTypeInterpreted
	// FrameTypeNative identifies frames collected by the native unwinder.
	FrameTypeNative
)

// String returns a human-readable name of the frame type.
func (ty FrameType) String() string {
	switch ty {
	case FrameTypeInterpreted:
		return "interpreted"
	case FrameTypeNative:
		return "native"
	default:
		return "unknown"
	}
}

// IsInterpreted reports whether the frame came from the interpreter.
func (ty FrameType) IsInterpreted() bool {
	return ty == FrameTypeInterpreted
}

// IsNative reports whether the frame came from the native unwinder.
func (ty FrameType) IsNative() bool {
	return ty == FrameTypeNative
}
