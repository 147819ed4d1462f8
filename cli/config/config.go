package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/arbelos-io/glean/schema"
)

// Config represents a glean.yaml configuration file.
// All values are optional and act as defaults for glean ask flags.
// CLI flags always override config values.
type Config struct {
	Database DatabaseConfig        `yaml:"database"`
	Model    ModelConfig           `yaml:"model"`
	Limits   LimitsConfig          `yaml:"limits"`
	Privacy  PrivacyConfig         `yaml:"privacy"`
	Adapter  AdapterConfig         `yaml:"adapter"`
	Roles    RolesConfig           `yaml:"roles"`
	RoleDefs map[string]RoleConfig `yaml:"role_defs"`
}

// DatabaseConfig selects the query engine and its connection target.
type DatabaseConfig struct {
	Engine string `yaml:"engine"` // "postgres" or "sqlite"
	URL    string `yaml:"url"`    // postgres connection string
	Path   string `yaml:"path"`   // sqlite database file
}

// ModelConfig holds generator defaults from the config file.
type ModelConfig struct {
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// LimitsConfig bounds validation and execution.
type LimitsConfig struct {
	RowCap             int      `yaml:"row_cap"`
	MaxRowCap          int      `yaml:"max_row_cap"`
	MaxStatementLength int      `yaml:"max_statement_length"`
	QueryTimeout       Duration `yaml:"query_timeout"`
	MaxConcurrentRuns  int      `yaml:"max_concurrent_runs"`
	RetryBackoff       Duration `yaml:"retry_backoff"`
}

// PrivacyConfig controls value masking before questions leave the process.
type PrivacyConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Store      string `yaml:"store"` // "memory" (default) or "redis"
	RedisURL   string `yaml:"redis_url"`
	KeyPrefix  string `yaml:"key_prefix,omitempty"`
	TTLSeconds int    `yaml:"ttl_seconds,omitempty"`
}

// AdapterConfig holds completion notification defaults from the config file.
type AdapterConfig struct {
	Type    string            `yaml:"type"`
	URL     string            `yaml:"url"`
	Channel string            `yaml:"channel,omitempty"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// RolesConfig holds role policy toggles.
type RolesConfig struct {
	DefaultAllow bool `yaml:"default_allow"`
}

// RoleConfig is a role visibility definition within the config file.
// Name is derived from the map key, not stored in the struct.
type RoleConfig struct {
	Tables        []string            `yaml:"tables,omitempty"`
	HiddenColumns map[string][]string `yaml:"hidden_columns,omitempty"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// RoleRules converts the map-keyed role definitions into schema.RoleRules.
// Role names are sorted only for deterministic validation output; the
// resulting map itself is order-free.
func (c *Config) RoleRules() schema.RoleRules {
	rules := schema.RoleRules{DefaultAllow: c.Roles.DefaultAllow}
	if len(c.RoleDefs) == 0 {
		return rules
	}

	names := make([]string, 0, len(c.RoleDefs))
	for name := range c.RoleDefs {
		names = append(names, name)
	}
	sort.Strings(names)

	rules.Roles = make(map[string]schema.RoleRule, len(names))
	for _, name := range names {
		rc := c.RoleDefs[name]
		rules.Roles[name] = schema.RoleRule{
			Tables:        rc.Tables,
			HiddenColumns: rc.HiddenColumns,
		}
	}
	return rules
}
