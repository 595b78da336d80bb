// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package vc provides buildtime information.
package vc // import "go.opentelemetry.io/mixedstack/vc"

import (
	"runtime/debug"
	"sync"
)

var (
	// The following variables may be set at link time using ldflags. Unset
	// values are taken from the build info embedded by the go command.

	// revision of the source tree
	revision = ""
	// buildTimestamp, timestamp of the build or the revision
	buildTimestamp = ""
	// version in vX.Y.Z{-N-abbrev} format (via git-describe --tags)
	version = ""
)

var fillOnce sync.Once

func fill() {
	fillOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		if version == "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if revision == "" {
					revision = s.Value
				}
			case "vcs.time":
				if buildTimestamp == "" {
					buildTimestamp = s.Value
				}
			}
		}
	})
}

// Revision of the source tree.
func Revision() string {
	fill()
	return revision
}

// BuildTimestamp returns the timestamp of the build.
func BuildTimestamp() string {
	fill()
	return buildTimestamp
}

// Version in vX.Y.Z{-N-abbrev} format.
func Version() string {
	fill()
	return version
}
