//go:build linux

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package nativeunwind // import "go.opentelemetry.io/mixedstack/nativeunwind"

import "go.opentelemetry.io/mixedstack/x86helpers"

func isCallBefore(code []byte) bool {
	return x86helpers.IsCallBefore(code)
}
