package skills

import (
	"context"
	"fmt"
	"strings"

	"github.com/skaldhq/skald/pkg/playbook"
)

// ModelSkill selects the model used by subsequent task steps. An unknown
// id is a step failure — there is no silent fallback to another model.
//
//	@model gpt-4o
//	@model --id gpt-4o
type ModelSkill struct{}

func (s *ModelSkill) Validate(block *playbook.Block) ValidationResult {
	if modelID(block) == "" {
		return invalid("model requires an id (--id or positional)")
	}
	return valid()
}

func (s *ModelSkill) Execute(ctx context.Context, api API, block *playbook.Block) (*Result, error) {
	id := expandVars(modelID(block), api)
	if id == "" {
		return nil, fmt.Errorf("model at line %d has no id", block.Line)
	}
	if err := api.Model().SelectModel(id); err != nil {
		return nil, fmt.Errorf("model at line %d: %w", block.Line, err)
	}
	return &Result{}, nil
}

func modelID(block *playbook.Block) string {
	if v, ok := block.FlagValue("id"); ok {
		return strings.TrimSpace(v)
	}
	vals := block.PositionalValues()
	if len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}
