// Package config loads the pipeline configuration from a YAML file.
// Values may reference environment variables with ${VAR} or ${VAR:-default}
// so secrets stay out of the file.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"docsync/internal/source"
)

// Config is the full pipeline configuration.
type Config struct {
	// LedgerPath is the SQLite database holding versions and run history.
	LedgerPath string `yaml:"ledger_path"`

	// BlobRoot is the filesystem root of the content store.
	BlobRoot string `yaml:"blob_root"`

	// Workers bounds concurrent document fetches.
	Workers int `yaml:"workers"`

	// TempRetentionDays controls cleanup of per-run temp areas.
	TempRetentionDays int `yaml:"temp_retention_days"`

	Source source.Config `yaml:"source"`
}

// Defaults that apply when the file leaves a knob unset.
const (
	defaultWorkers       = 4
	defaultTempRetention = 7
)

// Load reads, substitutes, parses, and validates path.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(raw)
}

// Parse handles an in-memory config document.
func Parse(raw []byte) (*Config, error) {
	expanded, err := expandEnv(string(raw))
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}

	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.TempRetentionDays <= 0 {
		cfg.TempRetentionDays = defaultTempRetention
	}
	if cfg.Source.API.RateLimit.MinPause <= 0 {
		cfg.Source.API.RateLimit.MinPause = 500 * time.Millisecond
	}
	if cfg.Source.API.RateLimit.MaxPause < cfg.Source.API.RateLimit.MinPause {
		cfg.Source.API.RateLimit.MaxPause = cfg.Source.API.RateLimit.MinPause
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.LedgerPath == "" {
		return fmt.Errorf("ledger_path is required")
	}
	if c.BlobRoot == "" {
		return fmt.Errorf("blob_root is required")
	}
	if c.Source.Name == "" {
		return fmt.Errorf("source.name is required")
	}
	return nil
}

var envRefRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)

// expandEnv substitutes ${VAR} and ${VAR:-default} references. A reference
// without a default to an unset variable is an error, not an empty string:
// silently empty secrets produce confusing auth failures downstream.
func expandEnv(s string) (string, error) {
	var missing []string
	out := envRefRe.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRefRe.FindStringSubmatch(ref)
		name, hasDefault, def := m[1], m[2] != "", m[3]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		if hasDefault {
			return def
		}
		missing = append(missing, name)
		return ""
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unset environment variables: %s", strings.Join(missing, ", "))
	}
	return out, nil
}
