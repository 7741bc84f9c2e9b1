package skills

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/skaldhq/skald/pkg/contexts"
	"github.com/skaldhq/skald/pkg/governance"
	"github.com/skaldhq/skald/pkg/playbook"
	"github.com/skaldhq/skald/pkg/providers"
)

// TaskSkill sends a prompt to the selected model and yields the user
// prompt plus the assistant reply as context messages.
//
//	@task --prompt "Summarize the incident" --temperature 0.2
//	@task "Summarize the incident"
type TaskSkill struct{}

func (s *TaskSkill) Validate(block *playbook.Block) ValidationResult {
	if taskPrompt(block) == "" {
		return invalid("task requires a prompt (--prompt or positional text)")
	}
	if raw, ok := block.FlagValue("temperature"); ok {
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return invalid(fmt.Sprintf("task --temperature %q is not a number", raw))
		}
	}
	if raw, ok := block.FlagValue("max-tokens"); ok {
		if _, err := strconv.Atoi(raw); err != nil {
			return invalid(fmt.Sprintf("task --max-tokens %q is not a number", raw))
		}
	}
	return valid()
}

func (s *TaskSkill) Execute(ctx context.Context, api API, block *playbook.Block) (*Result, error) {
	prompt := expandVars(taskPrompt(block), api)
	if prompt == "" {
		return nil, fmt.Errorf("task at line %d has no prompt", block.Line)
	}
	prompt = governance.Redact(prompt, api.Redactions())

	opts := &providers.RequestOptions{}
	if raw, ok := block.FlagValue("temperature"); ok {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("task --temperature %q: %w", raw, err)
		}
		opts.Temperature = &t
	}
	if raw, ok := block.FlagValue("max-tokens"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("task --max-tokens %q: %w", raw, err)
		}
		opts.MaxTokens = n
	}

	resp, err := api.Model().SendRequest(ctx, contexts.RoleUser, prompt, api.ContextMessages(), opts)
	if err != nil {
		return nil, fmt.Errorf("task at line %d: %w", block.Line, err)
	}

	return &Result{Messages: []contexts.Message{
		{Role: contexts.RoleUser, Content: prompt},
		{Role: contexts.RoleAssistant, Content: resp.Reply},
	}}, nil
}

// taskPrompt resolves the prompt from --prompt or from positional values.
func taskPrompt(block *playbook.Block) string {
	if v, ok := block.FlagValue("prompt"); ok {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(strings.Join(block.PositionalValues(), " "))
}
