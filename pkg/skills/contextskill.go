package skills

import (
	"context"
	"fmt"
	"strings"

	"github.com/skaldhq/skald/pkg/playbook"
)

// ContextSkill switches the selected context. Selecting a name that does
// not exist yet creates an empty context.
//
//	@context investigation
//	@context --name investigation
type ContextSkill struct{}

func (s *ContextSkill) Validate(block *playbook.Block) ValidationResult {
	if contextName(block) == "" {
		return invalid("context requires a name (--name or positional)")
	}
	return valid()
}

func (s *ContextSkill) Execute(ctx context.Context, api API, block *playbook.Block) (*Result, error) {
	name := expandVars(contextName(block), api)
	if name == "" {
		return nil, fmt.Errorf("context at line %d has no name", block.Line)
	}
	api.SelectContext(name)
	return &Result{}, nil
}

func contextName(block *playbook.Block) string {
	if v, ok := block.FlagValue("name"); ok {
		return strings.TrimSpace(v)
	}
	vals := block.PositionalValues()
	if len(vals) > 0 {
		return strings.TrimSpace(vals[0])
	}
	return ""
}
