// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package fusion // import "go.opentelemetry.io/mixedstack/fusion"

import (
	"go.opentelemetry.io/mixedstack/internal/log"
	"go.opentelemetry.io/mixedstack/interpreter"
	"go.opentelemetry.io/mixedstack/libpf"
	"go.opentelemetry.io/mixedstack/metrics"
)

// Engine fuses stacks with a fixed runtime classifier and reports mismatches.
type Engine struct {
	matcher *RuntimeMatcher
}

// NewEngine returns an Engine using matcher to recognize runtime frames. A
// nil matcher treats every native frame as foreign.
func NewEngine(matcher *RuntimeMatcher) *Engine {
	return &Engine{matcher: matcher}
}

// Fuse is like the package level Fuse with the engine's classifier. It logs
// and counts mismatches.
func (e *Engine) Fuse(interp []interpreter.Frame, native libpf.NativeStack) Result {
	res := Fuse(interp, native, e.matcher.IsRuntime)
	if res.Mismatch {
		log.Debugf("Fusion mismatch: %d dispatch markers, %d foreign segments, "+
			"%d frames unattributed", res.Markers, res.Segments, res.Unattributed)
		metrics.AddSlice([]metrics.Metric{
			{ID: metrics.IDFusionMismatches, Value: 1},
			{ID: metrics.IDUnattributedFrames, Value: metrics.MetricValue(res.Unattributed)},
		})
	}
	return res
}
