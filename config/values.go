// Copyright The OpenTelemetry Authors
// SPDX-License-Identifier: Apache-2.0

package config // import "go.opentelemetry.io/mixedstack/config"

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// listValue is a flag.Value for a string list. Values are split at commas.
// The first Set replaces the default, later ones append.
type listValue struct {
	target   *[]string
	replaced bool
}

func newListValue(target *[]string) *listValue {
	return &listValue{target: target}
}

func (v *listValue) String() string {
	if v == nil || v.target == nil {
		return ""
	}
	return strings.Join(*v.target, ",")
}

func (v *listValue) Set(s string) error {
	if !v.replaced {
		*v.target = nil
		v.replaced = true
	}
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			*v.target = append(*v.target, item)
		}
	}
	return nil
}

// YAMLParser is an ff.ConfigFileParser for YAML files holding one mapping of
// flag names to values. A sequence sets the flag once per element.
func YAMLParser(r io.Reader, set func(name, value string) error) error {
	var m map[string]any
	if err := yaml.NewDecoder(r).Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		values, err := yamlValues(m[key])
		if err != nil {
			return fmt.Errorf("key %q: %w", key, err)
		}
		for _, value := range values {
			if err := set(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func yamlValues(v any) ([]string, error) {
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []any:
		values := make([]string, 0, len(v))
		for _, item := range v {
			s, err := yamlScalar(item)
			if err != nil {
				return nil, err
			}
			values = append(values, s)
		}
		return values, nil
	default:
		s, err := yamlScalar(v)
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
}

func yamlScalar(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(v), nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}
