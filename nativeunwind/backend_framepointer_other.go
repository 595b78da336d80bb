//go:build !linux || !(amd64 || arm64)

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package nativeunwind // import "go.opentelemetry.io/mixedstack/nativeunwind"

// newFramePointerBackend returns nil: the frame pointer walk needs checked
// memory reads and a known frame layout.
func newFramePointerBackend(bool) backend {
	return nil
}
