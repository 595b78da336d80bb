//go:build darwin

// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelfMappingsDyld(t *testing.T) {
	mappings, _, err := SelfMappings()
	require.NoError(t, err)
	require.Greater(t, len(mappings), 1)

	pc := uint64(reflect.ValueOf(SelfMappings).Pointer())
	exe := mappings[0]
	assert.True(t, pc >= exe.Vaddr && pc < exe.End(), "%#x not in %+v", pc, exe)

	found := false
	for _, m := range mappings {
		assert.True(t, m.IsExecutable())
		assert.NotZero(t, m.Length)
		if filepath.Base(m.Path) == "libSystem.B.dylib" {
			found = true
		}
	}
	assert.True(t, found, "libSystem.B.dylib not among loaded images")
}
