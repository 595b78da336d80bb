//go:build !nonativeunwind

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package nativeunwind // import "go.opentelemetry.io/mixedstack/nativeunwind"

// compiledDefault is the build time backend choice. Build with the
// nonativeunwind tag to disable native unwinding.
const compiledDefault = BackendAuto
