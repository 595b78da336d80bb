// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package modulemap

import (
	"debug/elf"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.opentelemetry.io/mixedstack/libpf"
	"go.opentelemetry.io/mixedstack/process"
)

// fakeSource serves a fixed list of mappings and counts scans.
type fakeSource struct {
	mu       sync.Mutex
	mappings []process.Mapping
	err      error
	scans    atomic.Int32
}

func (f *fakeSource) set(mappings []process.Mapping, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mappings = mappings
	f.err = err
}

func (f *fakeSource) read() ([]process.Mapping, uint32, error) {
	f.scans.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]process.Mapping(nil), f.mappings...), 0, f.err
}

func libMapping(base uint64, path string) process.Mapping {
	return process.Mapping{
		Vaddr:  base,
		Length: 0x1000,
		Flags:  elf.PF_R | elf.PF_X,
		Inode:  1,
		Path:   path,
	}
}

func TestResolverLazyLoad(t *testing.T) {
	src := &fakeSource{}
	src.set([]process.Mapping{libMapping(0x10000, "/lib/libx.so")}, nil)
	r := NewWithSource(PolicyNotify, src.read)

	m, ok := r.Resolve(0x10010)
	require.True(t, ok)
	assert.Equal(t, "/lib/libx.so", m.Path)
	assert.Equal(t, int32(1), src.scans.Load())

	_, ok = r.Resolve(0x100)
	assert.False(t, ok)
	// A miss is a valid result and does not trigger a scan.
	assert.Equal(t, int32(1), src.scans.Load())
}

func TestResolverNotifyPolicy(t *testing.T) {
	src := &fakeSource{}
	src.set([]process.Mapping{libMapping(0x10000, "/lib/libx.so")}, nil)
	r := NewWithSource(PolicyNotify, src.read)

	require.NoError(t, r.Prepare())
	require.NoError(t, r.Prepare())
	assert.Equal(t, int32(1), src.scans.Load())

	// dlopen of a new library, reported by the embedder.
	src.set([]process.Mapping{
		libMapping(0x10000, "/lib/libx.so"),
		libMapping(0x20000, "/lib/liby.so"),
	}, nil)
	_, ok := r.Resolve(0x20010)
	assert.False(t, ok)

	r.Invalidate()
	require.NoError(t, r.Prepare())
	assert.Equal(t, int32(2), src.scans.Load())
	m, ok := r.Resolve(0x20010)
	require.True(t, ok)
	assert.Equal(t, "/lib/liby.so", m.Path)
	assert.Len(t, r.Modules(), 2)
}

func TestResolverRescanPolicy(t *testing.T) {
	src := &fakeSource{}
	src.set([]process.Mapping{libMapping(0x10000, "/lib/libx.so")}, nil)
	r := NewWithSource(PolicyRescan, src.read)

	for range 3 {
		require.NoError(t, r.Prepare())
	}
	assert.Equal(t, int32(3), src.scans.Load())
}

func TestResolverRefreshErrorKeepsSet(t *testing.T) {
	src := &fakeSource{}
	src.set([]process.Mapping{libMapping(0x10000, "/lib/libx.so")}, nil)
	r := NewWithSource(PolicyNotify, src.read)
	require.NoError(t, r.Refresh())

	errRead := errors.New("read failed")
	src.set(nil, errRead)
	err := r.Refresh()
	require.ErrorIs(t, err, errRead)

	_, ok := r.Resolve(0x10010)
	assert.True(t, ok)
}

func TestResolverNoMappingsIsEmpty(t *testing.T) {
	src := &fakeSource{}
	src.set(nil, process.ErrNoMappings)
	r := NewWithSource(PolicyRescan, src.read)

	require.NoError(t, r.Prepare())
	_, ok := r.Resolve(0x10010)
	assert.False(t, ok)
	assert.Empty(t, r.Modules())
}

func TestResolverConcurrentRefresh(t *testing.T) {
	src := &fakeSource{}
	src.set([]process.Mapping{libMapping(0x10000, "/lib/libx.so")}, nil)
	r := NewWithSource(PolicyRescan, src.read)
	require.NoError(t, r.Refresh())

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 100 {
				assert.NoError(t, r.Refresh())
			}
		}()
		go func() {
			defer wg.Done()
			for range 100 {
				m, ok := r.Resolve(libpf.Address(0x10000 + i))
				assert.True(t, ok)
				assert.Equal(t, "/lib/libx.so", m.Path)
			}
		}()
	}
	wg.Wait()
}

func TestResolverSelf(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skipf("unsupported os %s", runtime.GOOS)
	}
	r := New(PolicyRescan)
	require.NoError(t, r.Prepare())

	pc, _, _, ok := runtime.Caller(0)
	require.True(t, ok)
	m, ok := r.Resolve(libpf.Address(pc))
	require.True(t, ok)
	assert.NotEmpty(t, m.Path)
	assert.False(t, m.IsVDSO())
}
