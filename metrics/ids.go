// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

// To add a new metric, add an ID before IDMax and a definition below.
const (
	// Leave out the 0 value. It's an indication of not explicitly initialized variables.
	IDInvalid MetricID = iota

	// Number of trace captures
	IDCaptures
	// Number of captures that failed with a recovered fault
	IDCaptureFailures
	// Number of native walks that stopped before the stack root
	IDPartialUnwinds
	// Number of native frames collected
	IDNativeFrames
	// Number of native frames without a function name after symbolization
	IDUnresolvedSymbols
	// Number of symbolization results served from the frame cache
	IDSymbolCacheHits
	// Number of module debug info loads that failed
	IDDebugInfoLoadErrors
	// Number of fused traces where markers and segments did not pair up
	IDFusionMismatches
	// Number of native frames appended as unattributed trailing block
	IDUnattributedFrames
	// Number of module map refreshes
	IDModuleCacheRefreshes
	// Number of lines of the memory map that failed to parse
	IDMapsParseErrors

	// IDMax is one more than the largest valid ID.
	IDMax
)

var definitions = []MetricDefinition{
	{IDCaptures, "mixedstack.captures",
		"Number of trace captures", "{capture}"},
	{IDCaptureFailures, "mixedstack.capture.failures",
		"Number of captures that failed with a recovered fault", "{capture}"},
	{IDPartialUnwinds, "mixedstack.unwind.partial",
		"Number of native walks that stopped before the stack root", "{walk}"},
	{IDNativeFrames, "mixedstack.unwind.frames",
		"Number of native frames collected", "{frame}"},
	{IDUnresolvedSymbols, "mixedstack.symbolizer.unresolved",
		"Number of native frames without a function name after symbolization", "{frame}"},
	{IDSymbolCacheHits, "mixedstack.symbolizer.cache_hits",
		"Number of symbolization results served from the frame cache", "{frame}"},
	{IDDebugInfoLoadErrors, "mixedstack.symbolizer.load_errors",
		"Number of module debug info loads that failed", "{module}"},
	{IDFusionMismatches, "mixedstack.fusion.mismatches",
		"Number of fused traces where markers and segments did not pair up", "{trace}"},
	{IDUnattributedFrames, "mixedstack.fusion.unattributed_frames",
		"Number of native frames appended as unattributed trailing block", "{frame}"},
	{IDModuleCacheRefreshes, "mixedstack.modulemap.refreshes",
		"Number of module map refreshes", "{refresh}"},
	{IDMapsParseErrors, "mixedstack.modulemap.parse_errors",
		"Number of lines of the memory map that failed to parse", "{line}"},
}
