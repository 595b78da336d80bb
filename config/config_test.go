// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := map[string]struct {
		modify func(cfg *Config)
		valid  bool
	}{
		"max depth zero":        {modify: func(cfg *Config) { cfg.MaxDepth = 0 }},
		"max depth too large":   {modify: func(cfg *Config) { cfg.MaxDepth = 1 << 20 }},
		"max depth one":         {modify: func(cfg *Config) { cfg.MaxDepth = 1 }, valid: true},
		"unknown backend":       {modify: func(cfg *Config) { cfg.Backend = "libunwind" }},
		"framepointer backend":  {modify: func(cfg *Config) { cfg.Backend = "framepointer" }, valid: true},
		"disabled backend":      {modify: func(cfg *Config) { cfg.Backend = "disabled" }, valid: true},
		"unknown policy":        {modify: func(cfg *Config) { cfg.ModuleCachePolicy = "never" }},
		"notify policy":         {modify: func(cfg *Config) { cfg.ModuleCachePolicy = "notify" }, valid: true},
		"unknown demangle mode": {modify: func(cfg *Config) { cfg.Demangle = "pretty" }},
		"full demangling":       {modify: func(cfg *Config) { cfg.Demangle = "full" }, valid: true},
		"no symbol cache":       {modify: func(cfg *Config) { cfg.SymbolCacheSize = 0 }},
		"no module cache":       {modify: func(cfg *Config) { cfg.ModuleCacheSize = 0 }},
		"no runtime modules":    {modify: func(cfg *Config) { cfg.RuntimeModules = nil }, valid: true},
		"no foreign calls":      {modify: func(cfg *Config) { cfg.ForeignCallNames = nil }, valid: true},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			tc.modify(&cfg)
			err := cfg.Validate()
			if tc.valid {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParseFlags(t *testing.T) {
	cfg, err := Parse(newFlagSet(), []string{
		"-max-depth", "64",
		"-backend", "callers",
		"-foreign-call-names", ".Call,.C",
		"-foreign-call-names", "env.native",
		"-runtime-function-prefixes", "Rf_",
		"-demangle", "full",
		"-v",
	})
	require.NoError(t, err)

	expected := Default()
	expected.MaxDepth = 64
	expected.Backend = "callers"
	expected.ForeignCallNames = []string{".Call", ".C", "env.native"}
	expected.RuntimeFunctionPrefixes = []string{"Rf_"}
	expected.Demangle = "full"
	expected.Verbose = true
	assert.Empty(t, cmp.Diff(expected, *cfg))
}

func TestParseEnv(t *testing.T) {
	t.Setenv("MIXEDSTACK_MAX_DEPTH", "32")
	t.Setenv("MIXEDSTACK_MODULE_CACHE_POLICY", "notify")
	t.Setenv("MIXEDSTACK_RUNTIME_MODULES", "libpython3*.so*, python3*")

	cfg, err := Parse(newFlagSet(), []string{"-max-depth", "16"})
	require.NoError(t, err)

	// Flags win over environment variables.
	assert.Equal(t, 16, cfg.MaxDepth)
	assert.Equal(t, "notify", cfg.ModuleCachePolicy)
	assert.Equal(t, []string{"libpython3*.so*", "python3*"}, cfg.RuntimeModules)
}

func TestParseConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixedstack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join([]string{
		"max-depth: 48",
		"backend: disabled",
		"verify-return-addresses: true",
		"foreign-call-names:",
		"  - .Call",
		"  - .External",
		"symbol-cache-size: 1024",
		"unrelated-setting: 5",
		"",
	}, "\n")), 0o644))

	t.Setenv("MIXEDSTACK_BACKEND", "callers")
	cfg, err := Parse(newFlagSet(), []string{"-config", path})
	require.NoError(t, err)

	assert.Equal(t, 48, cfg.MaxDepth)
	// Environment variables win over the configuration file.
	assert.Equal(t, "callers", cfg.Backend)
	assert.True(t, cfg.VerifyReturnAddresses)
	assert.Equal(t, []string{".Call", ".External"}, cfg.ForeignCallNames)
	assert.Equal(t, uint(1024), cfg.SymbolCacheSize)
}

func TestParseInvalid(t *testing.T) {
	tests := map[string]struct {
		args    []string
		invalid bool
	}{
		"bad backend":      {args: []string{"-backend", "libunwind"}, invalid: true},
		"negative depth":   {args: []string{"-max-depth", "-1"}, invalid: true},
		"not a number":     {args: []string{"-max-depth", "deep"}},
		"unknown flag":     {args: []string{"-frobnicate"}},
		"missing cfg file": {args: []string{"-config", "/nonexistent/mixedstack.yaml"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(newFlagSet(), tc.args)
			require.Error(t, err)
			assert.Equal(t, tc.invalid, errors.Is(err, ErrInvalid))
		})
	}
}

func TestYAMLParser(t *testing.T) {
	tests := map[string]struct {
		input    string
		expected [][2]string
		fails    bool
	}{
		"scalars": {
			input:    "b: 2\na: x\nc: true\n",
			expected: [][2]string{{"a", "x"}, {"b", "2"}, {"c", "true"}},
		},
		"sequence": {
			input:    "list: [one, two]\n",
			expected: [][2]string{{"list", "one"}, {"list", "two"}},
		},
		"null value": {
			input: "empty:\n",
		},
		"empty document": {
			input: "",
		},
		"nested mapping": {
			input: "outer:\n  inner: 1\n",
			fails: true,
		},
		"malformed": {
			input: "key: [unterminated\n",
			fails: true,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			var got [][2]string
			err := YAMLParser(strings.NewReader(tc.input), func(name, value string) error {
				got = append(got, [2]string{name, value})
				return nil
			})
			if tc.fails {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestListValue(t *testing.T) {
	target := []string{"default"}
	v := newListValue(&target)
	assert.Equal(t, "default", v.String())

	require.NoError(t, v.Set("a, b"))
	require.NoError(t, v.Set("c,,"))
	assert.Equal(t, []string{"a", "b", "c"}, target)
	assert.Equal(t, "a,b,c", v.String())
}
