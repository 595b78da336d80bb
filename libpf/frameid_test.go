// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package libpf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	fileIDLo = 0x77efa716a912a492
	fileIDHi = 0x17445787329fd29a
	address  = 0xe51c
)

func TestFrameID(t *testing.T) {
	fileID := NewFileID(fileIDHi, fileIDLo)
	frameID := NewFrameID(fileID, address)

	assert.Equal(t, []byte{
		0x17, 0x44, 0x57, 0x87, 0x32, 0x9f, 0xd2, 0x9a, 0x77, 0xef, 0xa7, 0x16,
		0xa9, 0x12, 0xa4, 0x92, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xe5, 0x1c,
	}, frameID.Bytes())
	assert.Equal(t, fileID, frameID.FileID())
	assert.Equal(t, Address(address), frameID.Address())
	assert.Equal(t, "17445787329fd29a77efa716a912a492+0xe51c", frameID.String())

	// The hash must be stable across calls and differ between addresses.
	assert.Equal(t, frameID.Hash(), NewFrameID(fileID, address).Hash())
	assert.NotEqual(t, frameID.Hash(), NewFrameID(fileID, address+1).Hash())
	assert.Equal(t, uint32(frameID.Hash()), frameID.Hash32())
}
