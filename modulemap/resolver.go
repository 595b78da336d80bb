// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package modulemap // import "go.opentelemetry.io/mixedstack/modulemap"

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"go.opentelemetry.io/mixedstack/internal/log"
	"go.opentelemetry.io/mixedstack/libpf"
	"go.opentelemetry.io/mixedstack/metrics"
	"go.opentelemetry.io/mixedstack/process"
)

// Policy defines when the cached module set is re-read.
type Policy int

const (
	// PolicyRescan re-reads the memory map before every capture.
	PolicyRescan Policy = iota
	// PolicyNotify re-reads the memory map only after Invalidate was called.
	PolicyNotify
)

func (p Policy) String() string {
	switch p {
	case PolicyRescan:
		return "rescan"
	case PolicyNotify:
		return "notify"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses the textual policy name.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "rescan":
		return PolicyRescan, nil
	case "notify":
		return PolicyNotify, nil
	}
	return 0, fmt.Errorf("unknown module cache policy %q", s)
}

// MappingSource returns the current memory mappings and the number of
// entries that failed to parse.
type MappingSource func() ([]process.Mapping, uint32, error)

// Resolver resolves addresses against a process-wide cached module set.
//
// Lookups read an atomically published snapshot and never block. Refreshes
// are serialized, and concurrent refresh requests share one scan.
type Resolver struct {
	source MappingSource
	policy Policy

	current atomic.Pointer[Set]
	stale   atomic.Bool

	// mu serializes refreshes.
	mu    sync.Mutex
	group singleflight.Group
}

// New returns a Resolver reading the memory map of the own process.
func New(policy Policy) *Resolver {
	return NewWithSource(policy, process.SelfMappings)
}

// NewWithSource returns a Resolver reading mappings from source.
func NewWithSource(policy Policy, source MappingSource) *Resolver {
	r := &Resolver{
		source: source,
		policy: policy,
	}
	r.stale.Store(true)
	return r
}

// Policy returns the invalidation policy of the resolver.
func (r *Resolver) Policy() Policy {
	return r.policy
}

// Invalidate marks the cached set as stale after a module was loaded or
// unloaded. The next Prepare re-reads the memory map.
func (r *Resolver) Invalidate() {
	r.stale.Store(true)
}

// Refresh re-reads the memory map and publishes the new set. Concurrent
// callers share the result of a single scan. On error the previous set stays
// published.
func (r *Resolver) Refresh() error {
	_, err, _ := r.group.Do("refresh", func() (any, error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		return nil, r.refreshLocked()
	})
	return err
}

func (r *Resolver) refreshLocked() error {
	// Clear first so that an Invalidate during the scan is not lost.
	r.stale.Store(false)

	mappings, numParseErrors, err := r.source()
	if numParseErrors > 0 {
		log.Debugf("Skipped %d unparsable memory map lines", numParseErrors)
		metrics.Add(metrics.IDMapsParseErrors, metrics.MetricValue(numParseErrors))
	}
	if err != nil && !errors.Is(err, process.ErrNoMappings) {
		r.stale.Store(true)
		return fmt.Errorf("failed to read memory mappings: %w", err)
	}

	set := FromMappings(mappings)
	r.current.Store(set)
	metrics.Add(metrics.IDModuleCacheRefreshes, 1)
	log.Debugf("Module map refreshed: %d modules", set.Len())
	return nil
}

// Prepare brings the cache up to date according to the policy. It is called
// once per capture before resolving its frames.
func (r *Resolver) Prepare() error {
	if r.policy == PolicyRescan || r.stale.Load() || r.current.Load() == nil {
		return r.Refresh()
	}
	return nil
}

// Resolve returns the module owning addr. The second return value is false
// for addresses outside every known module. If no set was loaded yet, one is
// loaded first.
func (r *Resolver) Resolve(addr libpf.Address) (ModuleRange, bool) {
	set := r.current.Load()
	if set == nil {
		if err := r.Refresh(); err != nil {
			log.Debugf("Module map unavailable: %v", err)
		}
		set = r.current.Load()
	}
	return set.Lookup(addr)
}

// Modules returns a copy of the current module set.
func (r *Resolver) Modules() []ModuleRange {
	return r.current.Load().Ranges()
}
