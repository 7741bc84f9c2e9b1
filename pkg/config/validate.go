package config

import (
	"encoding/json"
	"fmt"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/skaldhq/skald/pkg/governance"
)

// ValidationError is a single config validation error with location
// context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile performs the full 3-phase validation pipeline on a config
// file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*Config, []*ValidationError) {
	var allErrors []*ValidationError

	cfg, err := LoadFile(path)
	if err != nil {
		allErrors = append(allErrors, &ValidationError{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		})
		return nil, allErrors
	}

	allErrors = append(allErrors, validateSemantic(cfg)...)
	allErrors = append(allErrors, ValidateDomain(cfg)...)

	if len(allErrors) > 0 {
		return cfg, allErrors
	}
	return cfg, nil
}

// validateSemantic validates the config against the generated JSON Schema.
func validateSemantic(cfg *Config) []*ValidationError {
	fail := func(msg string, args ...any) []*ValidationError {
		return []*ValidationError{{
			Phase:    "semantic",
			Message:  fmt.Sprintf(msg, args...),
			Severity: "error",
		}}
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fail("marshal for schema validation: %v", err)
	}
	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return fail("generate schema: %v", err)
	}

	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return fail("unmarshal schema: %v", err)
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("config-v0.json", schemaDoc); err != nil {
		return fail("add schema resource: %v", err)
	}
	sch, err := c.Compile("config-v0.json")
	if err != nil {
		return fail("compile schema: %v", err)
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fail("unmarshal document: %v", err)
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
			return errs
		}
		return fail("schema validation: %v", err)
	}
	return nil
}

func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain applies the Go rules JSON Schema cannot express:
// unique model ids, a resolvable default model, and compilable redaction
// patterns.
func ValidateDomain(cfg *Config) []*ValidationError {
	var errs []*ValidationError

	seen := make(map[string]bool)
	for i, m := range cfg.Models {
		path := fmt.Sprintf("models[%d]", i)
		if m.ID == "" {
			errs = append(errs, &ValidationError{
				Phase: "domain", Path: path + ".id",
				Message: "model id must not be empty", Severity: "error",
			})
			continue
		}
		if seen[m.ID] {
			errs = append(errs, &ValidationError{
				Phase: "domain", Path: path + ".id",
				Message:  fmt.Sprintf("duplicate model id %q", m.ID),
				Severity: "error",
			})
		}
		seen[m.ID] = true
		if m.Endpoint == "" {
			errs = append(errs, &ValidationError{
				Phase: "domain", Path: path + ".endpoint",
				Message:  fmt.Sprintf("model %q has no endpoint", m.ID),
				Severity: "error",
			})
		}
	}

	if cfg.DefaultModel != "" && !seen[cfg.DefaultModel] {
		errs = append(errs, &ValidationError{
			Phase: "domain", Path: "default_model",
			Message:  fmt.Sprintf("default model %q is not in models", cfg.DefaultModel),
			Severity: "error",
		})
	}

	if cfg.Governance != nil {
		if _, err := governance.CompileRedactionRules(cfg.Governance.Redact); err != nil {
			errs = append(errs, &ValidationError{
				Phase: "domain", Path: "governance.redact",
				Message:  err.Error(),
				Severity: "error",
			})
		}
	}

	return errs
}
