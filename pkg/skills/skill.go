// Package skills defines the Skill interface, the dispatch registry, and
// the built-in skills invoked by playbook annotations.
package skills

import (
	"context"

	"github.com/skaldhq/skald/pkg/contexts"
	"github.com/skaldhq/skald/pkg/governance"
	"github.com/skaldhq/skald/pkg/playbook"
	"github.com/skaldhq/skald/pkg/providers"
)

// ValidationResult is returned by Skill.Validate.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Result is the outcome of executing a single skill. The executor, not
// the skill, appends the messages to the selected context.
type Result struct {
	Messages []contexts.Message `json:"messages,omitempty"`
}

// API is the capability surface a skill receives during execution. The
// runtime executor implements it; skills never reach around it to touch
// session state directly.
type API interface {
	// ContextMessages returns a snapshot of the selected context.
	ContextMessages() []contexts.Message

	// SelectContext switches the selected context, creating it if needed.
	SelectContext(name string)

	// Model is the injected model transport.
	Model() providers.ModelClient

	// Executor is the injected command runner.
	Executor() providers.CommandExecutor

	// Governance returns the active policy engine, never nil.
	Governance() *governance.Engine

	// Redactions returns the compiled redaction rules, possibly empty.
	Redactions() []*governance.CompiledRedaction

	// ConsumeNextBlock claims the block immediately following the current
	// annotation if it has the given kind. A claimed block is the skill's
	// input payload: the executor will neither inject it into context nor
	// visit it again. Returns nil when the next block is absent or of a
	// different kind.
	ConsumeNextBlock(kind string) *playbook.Block

	// Var reads a session variable.
	Var(name string) (string, bool)

	// SetVar writes a session variable.
	SetVar(name, value string)
}

// Skill handles a specific annotation name.
// Every skill implements a strict Validate + Execute interface.
type Skill interface {
	// Validate checks skill-specific flags during playbook validation.
	// MUST NOT perform side effects.
	Validate(block *playbook.Block) ValidationResult

	// Execute runs the step and returns messages for the selected
	// context. MUST NOT append to context itself.
	Execute(ctx context.Context, api API, block *playbook.Block) (*Result, error)
}

func valid() ValidationResult {
	return ValidationResult{Valid: true}
}

func invalid(errs ...string) ValidationResult {
	return ValidationResult{Valid: false, Errors: errs}
}
