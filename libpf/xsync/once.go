// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package xsync provides thin wrappers around locking primitives that tie a
// lock to the data it protects.
package xsync // import "go.opentelemetry.io/mixedstack/libpf/xsync"

import (
	"sync"
	"sync/atomic"
)

// Once guards a value that is computed exactly once per process, such as the
// selected unwinding backend.
//
// The zero value is ready to use.
type Once[T any] struct {
	done atomic.Bool
	mu   sync.Mutex
	data T
}

// GetOrInit returns the guarded value, running init if no earlier call
// succeeded.
//
// A failing init leaves the Once uninitialized and the next caller retries.
// At most one init runs at a time.
func (l *Once[T]) GetOrInit(init func() (T, error)) (*T, error) {
	if l.done.Load() {
		return &l.data, nil
	}
	return l.initSlow(init)
}

func (l *Once[T]) initSlow(init func() (T, error)) (*T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.done.Load() {
		return &l.data, nil
	}

	data, err := init()
	if err != nil {
		return nil, err
	}
	l.data = data
	l.done.Store(true)
	return &l.data, nil
}

// Get returns the value if it was initialized, nil otherwise.
func (l *Once[T]) Get() *T {
	if !l.done.Load() {
		return nil
	}
	return &l.data
}

// Reset forgets the initialized value so the next GetOrInit runs init again.
// Only tests need this.
func (l *Once[T]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	var zero T
	l.data = zero
	l.done.Store(false)
}
