package skills

import (
	"context"
	"fmt"
	"strings"

	"github.com/skaldhq/skald/pkg/playbook"
)

// SetSkill writes session variables, one per flag. Values are joined
// with spaces when a flag carries several tokens.
//
//	@set --env prod --region "us east 1"
type SetSkill struct{}

func (s *SetSkill) Validate(block *playbook.Block) ValidationResult {
	named := 0
	for _, f := range block.Flags {
		if f.Name == "" {
			return invalid("set accepts only --name value pairs, not positional values")
		}
		if f.Name == "when" {
			// Skip condition, handled by the executor — not an assignment.
			continue
		}
		named++
	}
	if named == 0 {
		return invalid("set requires at least one --name value flag")
	}
	return valid()
}

func (s *SetSkill) Execute(ctx context.Context, api API, block *playbook.Block) (*Result, error) {
	for _, f := range block.Flags {
		if f.Name == "" {
			return nil, fmt.Errorf("set at line %d: positional value without a variable name", block.Line)
		}
		if f.Name == "when" {
			continue
		}
		api.SetVar(f.Name, expandVars(strings.Join(f.Value, " "), api))
	}
	return &Result{}, nil
}
