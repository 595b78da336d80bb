//go:build linux && (amd64 || arm64)

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package nativeunwind // import "go.opentelemetry.io/mixedstack/nativeunwind"

// getfp returns the frame pointer register of its caller.
func getfp() uintptr
