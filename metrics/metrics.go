// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package metrics counts capture events as OpenTelemetry Int64Counters.
//
// Counters are created on the global meter provider, which is a no-op until
// the embedding program installs one with otel.SetMeterProvider.
package metrics // import "go.opentelemetry.io/mixedstack/metrics"

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"go.opentelemetry.io/mixedstack/internal/log"
)

const instrumentationName = "go.opentelemetry.io/mixedstack"

var (
	meter    = otel.Meter(instrumentationName)
	counters = make([]metric.Int64Counter, IDMax)
)

func init() {
	for _, md := range definitions {
		counter, err := meter.Int64Counter(md.Name,
			metric.WithDescription(md.Description),
			metric.WithUnit(md.Unit))
		if err != nil {
			log.Errorf("Creating Int64Counter: %v", err)
			continue
		}
		counters[md.ID] = counter
	}
}

// AddSlice adds each metric value to its counter. Zero values and unknown IDs
// are skipped.
func AddSlice(newMetrics []Metric) {
	ctx := context.Background()
	for _, m := range newMetrics {
		if m.ID <= IDInvalid || m.ID >= IDMax {
			log.Errorf("Metric value %d out of range [%d,%d]- needs investigation",
				m.ID, IDInvalid+1, IDMax-1)
			continue
		}
		if m.Value == 0 {
			continue
		}
		if counter := counters[m.ID]; counter != nil {
			counter.Add(ctx, int64(m.Value))
		}
	}
}

// Add adds value to the counter of id.
func Add(id MetricID, value MetricValue) {
	AddSlice([]Metric{{id, value}})
}

// GetDefinitions returns the metric definitions.
func GetDefinitions() []MetricDefinition {
	return append([]MetricDefinition(nil), definitions...)
}
