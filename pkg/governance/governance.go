// Package governance implements the command allowlist/denylist applied to
// code executed by the run skill, and the redaction rules applied to
// content before it reaches the model transport.
package governance

import (
	"fmt"
	"path/filepath"
)

// Policy is the governance section of the project configuration.
type Policy struct {
	AllowedCommands []string        `yaml:"allowed_commands,omitempty" json:"allowed_commands,omitempty"`
	DeniedCommands  []string        `yaml:"denied_commands,omitempty"  json:"denied_commands,omitempty"`
	DenyEnvVars     []string        `yaml:"deny_env_vars,omitempty"    json:"deny_env_vars,omitempty"`
	Redact          []RedactionRule `yaml:"redact,omitempty"           json:"redact,omitempty"`
}

// RedactionRule is a regex pattern-replacement pair for sanitizing text.
type RedactionRule struct {
	Pattern string `yaml:"pattern" json:"pattern" jsonschema:"required"`
	Replace string `yaml:"replace" json:"replace" jsonschema:"required"`
}

// Engine evaluates governance policy before and during execution.
type Engine struct {
	AllowedCommands []string
	DeniedCommands  []string
	DenyEnvVars     []string
}

// NewEngine creates an Engine from a policy. A nil policy is permissive.
func NewEngine(policy *Policy) *Engine {
	if policy == nil {
		return &Engine{}
	}
	return &Engine{
		AllowedCommands: policy.AllowedCommands,
		DeniedCommands:  policy.DeniedCommands,
		DenyEnvVars:     policy.DenyEnvVars,
	}
}

// CheckCommand validates the interpreter command of a run-skill step.
// Deny takes precedence over allow; a non-empty allowlist is exhaustive.
func (g *Engine) CheckCommand(command string) error {
	for _, denied := range g.DeniedCommands {
		if command == denied {
			return fmt.Errorf("command %q is denied by governance policy", command)
		}
	}
	if len(g.AllowedCommands) > 0 {
		for _, allowed := range g.AllowedCommands {
			if command == allowed {
				return nil
			}
		}
		return fmt.Errorf("command %q is not in the governance allowlist", command)
	}
	return nil
}

// CheckEnvVar validates an environment variable name against the
// deny_env_vars glob patterns.
func (g *Engine) CheckEnvVar(name string) error {
	for _, pattern := range g.DenyEnvVars {
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			// Invalid pattern blocks, for safety.
			return fmt.Errorf("invalid env var deny pattern %q: %w", pattern, err)
		}
		if matched {
			return fmt.Errorf("environment variable %q matches denied pattern %q", name, pattern)
		}
	}
	return nil
}
