// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

// Package config holds the settings of a capture pipeline and parses them
// from flags, environment variables and a YAML file.
package config // import "go.opentelemetry.io/mixedstack/config"

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/peterbourgon/ff/v3"

	"go.opentelemetry.io/mixedstack/fusion"
	"go.opentelemetry.io/mixedstack/internal/log"
	"go.opentelemetry.io/mixedstack/interpreter"
	"go.opentelemetry.io/mixedstack/modulemap"
	"go.opentelemetry.io/mixedstack/nativeunwind"
	"go.opentelemetry.io/mixedstack/symbolizer"
)

// EnvVarPrefix is the prefix of the environment variables read by Parse.
const EnvVarPrefix = "MIXEDSTACK"

const (
	defaultMaxDepth          = 256
	defaultBackend           = "auto"
	defaultModuleCachePolicy = "rescan"
	defaultDemangle          = "simplified"
)

// DefaultRuntimeModules are the module patterns of the R runtime.
var DefaultRuntimeModules = []string{"libR.so", "libR.dylib", "R.dll"}

// ErrInvalid is wrapped by all validation errors.
var ErrInvalid = errors.New("invalid configuration")

// Config is the configuration of a capture pipeline.
type Config struct {
	// MaxDepth is the maximum number of native frames per capture.
	MaxDepth int
	// Backend names the native unwinding backend.
	Backend string
	// VerifyReturnAddresses enables the call instruction check of the frame
	// pointer backend.
	VerifyReturnAddresses bool
	// ForeignCallNames are the interpreted functions that call native code.
	ForeignCallNames []string
	// RuntimeModules are glob patterns of the interpreter runtime modules.
	RuntimeModules []string
	// RuntimeFunctionPrefixes are function name prefixes of interpreter
	// runtime code linked into the executable.
	RuntimeFunctionPrefixes []string
	// ModuleCachePolicy is either "rescan" or "notify".
	ModuleCachePolicy string
	// SymbolCacheSize is the number of cached symbolization results.
	SymbolCacheSize uint
	// ModuleCacheSize is the number of modules kept loaded for symbolization.
	ModuleCacheSize uint
	// Demangle is one of "none", "simplified" or "full".
	Demangle string
	// Verbose enables debug logging.
	Verbose bool
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		MaxDepth:          defaultMaxDepth,
		Backend:           defaultBackend,
		ForeignCallNames:  append([]string(nil), interpreter.DefaultDispatchNames...),
		RuntimeModules:    append([]string(nil), DefaultRuntimeModules...),
		ModuleCachePolicy: defaultModuleCachePolicy,
		SymbolCacheSize:   symbolizer.DefaultCacheSize,
		ModuleCacheSize:   symbolizer.DefaultModuleCacheSize,
		Demangle:          defaultDemangle,
	}
}

// Validate runs validations on the provided configuration, and returns errors
// if invalid values were provided.
func (cfg *Config) Validate() error {
	if cfg.MaxDepth < 1 || cfg.MaxDepth > nativeunwind.MaxFrames {
		return fmt.Errorf("%w: max depth %d not in [1, %d]", ErrInvalid, cfg.MaxDepth,
			nativeunwind.MaxFrames)
	}
	if _, err := nativeunwind.ParseBackend(cfg.Backend); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := modulemap.ParsePolicy(cfg.ModuleCachePolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := symbolizer.ParseDemangleMode(cfg.Demangle); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if cfg.SymbolCacheSize == 0 || cfg.SymbolCacheSize > 1<<24 {
		return fmt.Errorf("%w: symbol cache size %d not in [1, %d]", ErrInvalid,
			cfg.SymbolCacheSize, 1<<24)
	}
	if cfg.ModuleCacheSize == 0 || cfg.ModuleCacheSize > 1<<16 {
		return fmt.Errorf("%w: module cache size %d not in [1, %d]", ErrInvalid,
			cfg.ModuleCacheSize, 1<<16)
	}
	if _, err := fusion.NewRuntimeMatcher(cfg.RuntimeModules,
		cfg.RuntimeFunctionPrefixes); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Help strings for command line arguments
var (
	maxDepthHelp = fmt.Sprintf("Maximum number of native frames per capture, "+
		"at most %d.", nativeunwind.MaxFrames)
	backendHelp = "Native unwinding backend: auto, callers, framepointer or disabled."
	verifyHelp  = "Check that every return address found by the framepointer backend " +
		"follows a call instruction."
	foreignCallNamesHelp        = "Comma-separated interpreted functions that call native code."
	runtimeModulesHelp          = "Comma-separated glob patterns of interpreter runtime modules."
	runtimeFunctionPrefixesHelp = "Comma-separated function name prefixes of interpreter " +
		"runtime code linked into the executable."
	moduleCachePolicyHelp = "When to re-read the loaded modules: rescan (every capture) " +
		"or notify (after an explicit invalidation)."
	symbolCacheSizeHelp = "Number of cached symbolization results."
	moduleCacheSizeHelp = "Number of modules kept loaded for symbolization."
	demangleHelp        = "Demangling of native function names: none, simplified or full."
	verboseHelp         = "Enable verbose logging."
	configHelp          = "Path of a YAML configuration file."
)

const configFileFlag = "config"

// RegisterFlags defines the flags of cfg on fs, using the current values as
// defaults, and the -config flag read by ParseOptions.
func (cfg *Config) RegisterFlags(fs *flag.FlagSet) {
	// Please keep the parameters ordered alphabetically in the source-code.
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, backendHelp)
	fs.String(configFileFlag, "", configHelp)
	fs.StringVar(&cfg.Demangle, "demangle", cfg.Demangle, demangleHelp)
	fs.Var(newListValue(&cfg.ForeignCallNames), "foreign-call-names", foreignCallNamesHelp)
	fs.IntVar(&cfg.MaxDepth, "max-depth", cfg.MaxDepth, maxDepthHelp)
	fs.StringVar(&cfg.ModuleCachePolicy, "module-cache-policy", cfg.ModuleCachePolicy,
		moduleCachePolicyHelp)
	fs.UintVar(&cfg.ModuleCacheSize, "module-cache-size", cfg.ModuleCacheSize,
		moduleCacheSizeHelp)
	fs.Var(newListValue(&cfg.RuntimeFunctionPrefixes), "runtime-function-prefixes",
		runtimeFunctionPrefixesHelp)
	fs.Var(newListValue(&cfg.RuntimeModules), "runtime-modules", runtimeModulesHelp)
	fs.UintVar(&cfg.SymbolCacheSize, "symbol-cache-size", cfg.SymbolCacheSize,
		symbolCacheSizeHelp)
	fs.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Shorthand for -verbose.")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, verboseHelp)
	fs.BoolVar(&cfg.VerifyReturnAddresses, "verify-return-addresses",
		cfg.VerifyReturnAddresses, verifyHelp)
}

// Parse registers the configuration flags on fs and parses args, then the
// MIXEDSTACK_* environment variables and finally the YAML file named by the
// -config flag. Earlier sources win. The result is validated.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := Default()
	cfg.RegisterFlags(fs)
	if err := ff.Parse(fs, args, ParseOptions()...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseOptions returns the ff options reading the MIXEDSTACK_* environment
// variables and the YAML file named by the -config flag.
func ParseOptions() []ff.Option {
	return []ff.Option{
		ff.WithEnvVarPrefix(EnvVarPrefix),
		ff.WithConfigFileFlag(configFileFlag),
		ff.WithConfigFileParser(YAMLParser),
		// Settings of other components may share the configuration file.
		ff.WithIgnoreUndefined(true),
	}
}

// Dump logs the configuration at debug level.
func (cfg *Config) Dump() {
	log.Debugf("Config: max-depth=%d backend=%s verify-return-addresses=%t",
		cfg.MaxDepth, cfg.Backend, cfg.VerifyReturnAddresses)
	log.Debugf("Config: foreign-call-names=%s runtime-modules=%s runtime-function-prefixes=%s",
		strings.Join(cfg.ForeignCallNames, ","), strings.Join(cfg.RuntimeModules, ","),
		strings.Join(cfg.RuntimeFunctionPrefixes, ","))
	log.Debugf("Config: module-cache-policy=%s symbol-cache-size=%d module-cache-size=%d "+
		"demangle=%s", cfg.ModuleCachePolicy, cfg.SymbolCacheSize, cfg.ModuleCacheSize,
		cfg.Demangle)
}
