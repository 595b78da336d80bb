// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// This package contains a series of helper functions that are useful for x86 disassembly.
package x86helpers // import "go.opentelemetry.io/mixedstack/x86helpers"

import (
	"golang.org/x/arch/x86/x86asm"
)

// callLengths are the possible encoded lengths of a near CALL, most common
// first: rel32, register, REX prefixed register, RIP relative memory, SIB
// addressed memory and short memory forms.
var callLengths = [...]int{5, 2, 3, 6, 7, 4}

// IsCallBefore reports whether code ends with a complete CALL instruction.
// code holds the bytes right before a return address.
//
// x86 encodings are variable length, so every CALL length is tried. A match
// is a plausibility check, not a proof.
func IsCallBefore(code []byte) bool {
	for _, n := range callLengths {
		if n > len(code) {
			continue
		}
		inst, err := x86asm.Decode(code[len(code)-n:], 64)
		if err != nil {
			continue
		}
		if inst.Op == x86asm.CALL && inst.Len == n {
			return true
		}
	}
	return false
}
