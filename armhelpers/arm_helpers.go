// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// This package contains a series of helper functions that are useful for ARM disassembly.
package armhelpers // import "go.opentelemetry.io/mixedstack/armhelpers"

import (
	aa "golang.org/x/arch/arm64/arm64asm"
)

// IsCall reports whether the 4 byte instruction word is a branch with link,
// the only instructions that set the link register to the next instruction.
func IsCall(word []byte) bool {
	if len(word) < 4 {
		return false
	}
	inst, err := aa.Decode(word[:4])
	if err != nil {
		return false
	}
	return inst.Op == aa.BL || inst.Op == aa.BLR
}

// IsCallBefore reports whether code ends with a branch with link. code holds
// the bytes right before a return address.
func IsCallBefore(code []byte) bool {
	if len(code) < 4 {
		return false
	}
	return IsCall(code[len(code)-4:])
}
