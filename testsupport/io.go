// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package testsupport holds helpers shared by tests of several packages.
package testsupport // import "go.opentelemetry.io/mixedstack/testsupport"

import (
	"io"
	"math/rand/v2"
	"os"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// ValidateReadAtWrapperTransparency validates that a `ReadAt` implementation provides a
// transparent view into the given reference buffer.
func ValidateReadAtWrapperTransparency(
	t testing.TB, iterations uint, reference []byte, testee io.ReaderAt) {
	t.Helper()
	bufferSize := uint64(len(reference))

	// Samples random slices to validate within the file.
	r := rand.New(rand.NewPCG(0, 0)) //nolint:gosec
	for range iterations {
		// Intentionally allow slices that over-read the file to test this case.
		length := r.Uint64() % bufferSize
		start := r.Uint64() % bufferSize

		readBuf := make([]byte, length)
		n, err := testee.ReadAt(readBuf, int64(start))

		truncReadLen := min(bufferSize-start, length)
		if truncReadLen != length {
			// Over-reads are truncated and report EOF.
			require.ErrorIs(t, err, io.EOF)
			require.Equal(t, truncReadLen, uint64(n))
		} else {
			require.NoError(t, err)
			require.Equal(t, length, uint64(n))
		}
		require.Equal(t, reference[start:][:truncReadLen], readBuf[:truncReadLen])
	}
}

// SelfExecutable returns the path of the running test binary. It skips the
// test on platforms where the binary is not an ELF file.
func SelfExecutable(t testing.TB) string {
	t.Helper()
	if runtime.GOOS != "linux" {
		t.Skipf("unsupported os %s", runtime.GOOS)
	}
	exe, err := os.Executable()
	require.NoError(t, err)
	return exe
}
