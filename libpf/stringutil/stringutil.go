// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package stringutil splits text lines into fields without allocating.
package stringutil // import "go.opentelemetry.io/mixedstack/libpf/stringutil"

import "strings"

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

// FieldsN splits s at runs of blanks into f. If s holds more than len(f)
// fields, the last element gets the remainder of s. It returns the number of
// fields set.
func FieldsN(s string, f []string) int {
	n := len(f)
	si := 0
	for i := range n {
		for si < len(s) && isSpace(s[si]) {
			si++
		}
		if si >= len(s) {
			return i
		}
		if i == n-1 {
			f[i] = s[si:]
			return n
		}
		start := si
		for si < len(s) && !isSpace(s[si]) {
			si++
		}
		f[i] = s[start:si]
	}
	return n
}

// SplitN splits s at every sep into f. If s holds more than len(f) fields,
// the last element gets the remainder of s. It returns the number of fields
// set.
func SplitN(s, sep string, f []string) int {
	n := len(f)
	if n == 0 {
		return 0
	}
	i := 0
	for ; i < n-1; i++ {
		before, after, found := strings.Cut(s, sep)
		if !found {
			break
		}
		f[i] = before
		s = after
	}
	f[i] = s
	return i + 1
}
