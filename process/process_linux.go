// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package process // import "go.opentelemetry.io/mixedstack/process"

import (
	"os"
)

// SelfMappings reads and parses the memory mappings of the own process.
func SelfMappings() ([]Mapping, uint32, error) {
	mapsFile, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, 0, err
	}
	defer mapsFile.Close()

	mappings, numParseErrors, err := ParseMappings(mapsFile)
	if err != nil {
		return mappings, numParseErrors, err
	}
	if len(mappings) == 0 {
		return nil, numParseErrors, ErrNoMappings
	}
	return mappings, numParseErrors, nil
}
