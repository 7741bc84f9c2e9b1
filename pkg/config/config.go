// Package config loads and validates the .skald.yaml project file: model
// endpoints, defaults, and the governance policy.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/skaldhq/skald/pkg/governance"
	"github.com/skaldhq/skald/pkg/providers"
)

// DefaultFileName is the conventional project file name.
const DefaultFileName = ".skald.yaml"

// Config is the project configuration surface.
type Config struct {
	// Models lists the configured model endpoints.
	Models []providers.ModelSpec `yaml:"models,omitempty" json:"models,omitempty"`

	// DefaultModel is the model selected before any model skill runs.
	DefaultModel string `yaml:"default_model,omitempty" json:"default_model,omitempty"`

	// DefaultContext overrides the initially selected context name.
	DefaultContext string `yaml:"default_context,omitempty" json:"default_context,omitempty"`

	// Governance is the command/env policy plus redaction rules.
	Governance *governance.Policy `yaml:"governance,omitempty" json:"governance,omitempty"`
}

// LoadFile reads and strictly decodes a config file.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load strictly decodes a config document, rejecting unknown fields.
func Load(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if err == io.EOF {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Discover walks up from dir looking for a .skald.yaml. Returns an empty
// config when none is found.
func Discover(dir string) (*Config, string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, "", err
	}
	for {
		candidate := filepath.Join(dir, DefaultFileName)
		if _, err := os.Stat(candidate); err == nil {
			cfg, err := LoadFile(candidate)
			if err != nil {
				return nil, candidate, err
			}
			return cfg, candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return &Config{}, "", nil
		}
		dir = parent
	}
}

// ModelClient builds the HTTP model client from the configured specs.
// A config with no models yields a nil client; the caller decides whether
// that is acceptable for the playbook at hand.
func (c *Config) ModelClient() (providers.ModelClient, error) {
	if len(c.Models) == 0 {
		return nil, nil
	}
	defaultID := c.DefaultModel
	if defaultID == "" {
		defaultID = c.Models[0].ID
	}
	return providers.NewHTTPModelClient(c.Models, defaultID)
}

// GovernanceEngine builds the policy engine, permissive when the config
// has no governance section.
func (c *Config) GovernanceEngine() *governance.Engine {
	return governance.NewEngine(c.Governance)
}

// Redactions compiles the configured redaction rules.
func (c *Config) Redactions() ([]*governance.CompiledRedaction, error) {
	if c.Governance == nil {
		return nil, nil
	}
	return governance.CompileRedactionRules(c.Governance.Redact)
}
