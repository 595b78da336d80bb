// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf // import "go.opentelemetry.io/mixedstack/libpf"

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/xxh3"
)

// TraceHash represents the hash of a fused trace. Traces with the same frames
// in the same order have the same hash, independent of the capture ID.
type TraceHash struct {
	hi uint64
	lo uint64
}

func NewTraceHash(hi, lo uint64) TraceHash {
	return TraceHash{hi, lo}
}

// HashFrames computes the hash over the identity of each frame: the label
// and source location of interpreted frames and the address and module of
// native frames.
func HashFrames(frames Frames) TraceHash {
	h := xxh3.New()
	var num [8]byte
	for i := range frames {
		f := &frames[i]
		num[0] = byte(f.Type)
		_, _ = h.Write(num[:1])
		switch {
		case f.Interpreted != nil:
			_, _ = h.WriteString(f.Interpreted.Label)
			_, _ = h.WriteString(f.Interpreted.Function)
			_, _ = h.WriteString(f.Interpreted.SourceFile)
			binary.LittleEndian.PutUint64(num[:], uint64(f.Interpreted.SourceLine))
			_, _ = h.Write(num[:])
		case f.Native != nil:
			binary.LittleEndian.PutUint64(num[:], uint64(f.Native.Address))
			_, _ = h.Write(num[:])
			_, _ = h.WriteString(f.Native.ModulePath)
		}
		// Separator so that adjacent strings cannot shift into each other.
		_, _ = h.Write([]byte{0})
	}
	sum := h.Sum128()
	return TraceHash{sum.Hi, sum.Lo}
}

func (h TraceHash) Hi() uint64 { return h.hi }
func (h TraceHash) Lo() uint64 { return h.lo }

func (h TraceHash) IsZero() bool {
	return h.hi == 0 && h.lo == 0
}

// Hash32 returns a 32 bits hash of the input.
// It's main purpose is to be used for LRU caching.
func (h TraceHash) Hash32() uint32 {
	return uint32(h.lo)
}

func (h TraceHash) String() string {
	return fmt.Sprintf("%016x%016x", h.hi, h.lo)
}
