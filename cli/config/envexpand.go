// Package config handles YAML config file loading for glean ask.
package config

import (
	"os"
	"regexp"
)

// envRef matches ${VAR} and ${VAR:-default}. Group 1 is the variable name,
// group 2 the default (empty when the :- form is absent).
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// ExpandEnv substitutes ${VAR} and ${VAR:-default} references in input with
// environment values. A set, non-empty variable wins; otherwise the default
// applies; otherwise the reference expands to the empty string rather than
// erroring, leaving missing secrets to fail downstream validation (the
// generator refuses an empty API key).
func ExpandEnv(input string) string {
	return envRef.ReplaceAllStringFunc(input, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if m == nil {
			return ref
		}
		if v, ok := os.LookupEnv(m[1]); ok && v != "" {
			return v
		}
		return m[2]
	})
}
