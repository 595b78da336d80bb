// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package symbolizer fills in function names and source positions of native
// frames.
//
// Lookups go through two tiers. The first asks the debug information of the
// owning module: the Go pclntab for the running executable and DWARF for
// every ELF module. The second falls back to the ELF symbol tables (.symtab,
// .dynsym and the MiniDebugInfo .symtab) and only yields a function name.
// A frame that cannot be resolved keeps its address and module.
package symbolizer // import "go.opentelemetry.io/mixedstack/symbolizer"

import (
	"fmt"

	lru "github.com/elastic/go-freelru"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/singleflight"

	"go.opentelemetry.io/mixedstack/internal/log"
	"go.opentelemetry.io/mixedstack/libpf"
	"go.opentelemetry.io/mixedstack/metrics"
	"go.opentelemetry.io/mixedstack/modulemap"
)

const (
	// DefaultCacheSize is the default number of cached frame results.
	DefaultCacheSize = 16384
	// DefaultModuleCacheSize is the default number of modules whose
	// symbolization data is kept in memory.
	DefaultModuleCacheSize = 64
)

// Options configures a Resolver.
type Options struct {
	// CacheSize is the number of cached frame results.
	CacheSize uint32
	// ModuleCacheSize is the number of cached modules.
	ModuleCacheSize uint32
	// Demangle selects how mangled names are rendered.
	Demangle DemangleMode
}

// ModuleResolver maps an address to the module that contains it.
type ModuleResolver interface {
	Resolve(addr libpf.Address) (modulemap.ModuleRange, bool)
}

// Resolver symbolizes native frames. It is safe for concurrent use.
type Resolver struct {
	demangle DemangleMode

	// fileIDs memoizes the FileID of a path for a given size and mtime.
	fileIDs *lru.SyncedLRU[string, fileIDEntry]
	// modules holds the symbolization data per file content.
	modules *lru.SyncedLRU[libpf.FileID, *moduleInfo]
	// frames holds the results per file address.
	frames *lru.SyncedLRU[libpf.FrameID, symbolInfo]

	loads singleflight.Group
}

func hashString(s string) uint32 {
	return uint32(xxh3.HashString(s))
}

// New creates a Resolver. Zero sizes in opts select the defaults.
func New(opts Options) (*Resolver, error) {
	if opts.CacheSize == 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.ModuleCacheSize == 0 {
		opts.ModuleCacheSize = DefaultModuleCacheSize
	}

	fileIDs, err := lru.NewSynced[string, fileIDEntry](opts.ModuleCacheSize*2, hashString)
	if err != nil {
		return nil, err
	}
	modules, err := lru.NewSynced[libpf.FileID, *moduleInfo](opts.ModuleCacheSize,
		libpf.FileID.Hash32)
	if err != nil {
		return nil, err
	}
	frames, err := lru.NewSynced[libpf.FrameID, symbolInfo](opts.CacheSize,
		libpf.FrameID.Hash32)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		demangle: opts.Demangle,
		fileIDs:  fileIDs,
		modules:  modules,
		frames:   frames,
	}, nil
}

// Symbolize returns frame with the function name and, if debug information is
// available, the source position filled in. module is the module owning the
// frame and known reports whether the module lookup succeeded.
func (r *Resolver) Symbolize(frame libpf.NativeFrame, module modulemap.ModuleRange,
	known bool) libpf.NativeFrame {
	if !known {
		frame.ModulePath = libpf.UnknownModule
		metrics.Add(metrics.IDUnresolvedSymbols, 1)
		return frame
	}
	frame.ModulePath = module.Path

	info, ok := r.symbolize(module, frame.LookupAddress())
	if ok {
		frame.FunctionName = info.function
		frame.SourceFile = info.file
		frame.SourceLine = info.line
	}
	if !frame.Resolved() {
		metrics.Add(metrics.IDUnresolvedSymbols, 1)
	}
	return frame
}

// SymbolizeStack resolves the module of every frame with modules and
// symbolizes it in place.
func (r *Resolver) SymbolizeStack(stack libpf.NativeStack, modules ModuleResolver) {
	for i := range stack {
		module, known := modules.Resolve(stack[i].LookupAddress())
		stack[i] = r.Symbolize(stack[i], module, known)
	}
}

func (r *Resolver) symbolize(module modulemap.ModuleRange, addr libpf.Address) (
	symbolInfo, bool) {
	if isExecutable(module.Path) {
		if info, ok := goSymbolize(addr); ok {
			return info, true
		}
	}
	if module.IsVDSO() || module.Path == "" || module.Path == libpf.UnknownModule {
		return symbolInfo{}, false
	}

	m, err := r.module(module.Path)
	if err != nil {
		return symbolInfo{}, false
	}
	elfAddr, ok := m.mapper.RuntimeToVirtualAddress(uint64(addr), uint64(module.Base),
		module.FileOffset)
	if !ok {
		log.Debugf("Address %#x is outside the executable segments of %s",
			uint64(addr), module.Path)
		return symbolInfo{}, false
	}

	frameID := libpf.NewFrameID(m.fileID, libpf.Address(elfAddr))
	if info, ok := r.frames.Get(frameID); ok {
		metrics.Add(metrics.IDSymbolCacheHits, 1)
		return info, info.function != "" || info.file != ""
	}
	info, ok := m.symbolize(elfAddr)
	info.function = demangleName(info.function, r.demangle)
	r.frames.Add(frameID, info)
	return info, ok
}

// module returns the symbolization data of the file at path, loading it on
// first use. Concurrent loads of the same path are coalesced.
func (r *Resolver) module(path string) (*moduleInfo, error) {
	fileID, err := r.fileID(path)
	if err != nil {
		log.Debugf("Failed to identify %s: %v", path, err)
		return nil, err
	}
	if m, ok := r.modules.Get(fileID); ok {
		if m == nil {
			return nil, fmt.Errorf("no symbolization data for %s", path)
		}
		return m, nil
	}

	v, err, _ := r.loads.Do(fileID.StringNoQuotes(), func() (any, error) {
		m, err := loadModule(path, fileID)
		if err != nil {
			log.Debugf("Failed to load %s: %v", path, err)
			metrics.Add(metrics.IDDebugInfoLoadErrors, 1)
			// Remember the failure so the file is not parsed again.
			r.modules.Add(fileID, nil)
			return nil, err
		}
		r.modules.Add(fileID, m)
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*moduleInfo), nil
}

// fileID returns the FileID of path, hashing the file only if its size or
// modification time changed since the last call.
func (r *Resolver) fileID(path string) (libpf.FileID, error) {
	key, err := statKey(path)
	if err != nil {
		return libpf.FileID{}, err
	}
	if entry, ok := r.fileIDs.Get(path); ok && entry.key == key {
		return entry.fileID, nil
	}
	fileID, err := libpf.FileIDFromExecutableFile(path)
	if err != nil {
		return libpf.FileID{}, err
	}
	r.fileIDs.Add(path, fileIDEntry{key: key, fileID: fileID})
	return fileID, nil
}
