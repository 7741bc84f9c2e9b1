package runtime

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
)

// EvalWhen evaluates a --when condition against session variables using
// expr-lang. Variables are exposed both as top-level identifiers and
// through the vars map for names that are not valid identifiers. An
// empty condition is always true.
func EvalWhen(condition string, vars map[string]string) (bool, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return true, nil
	}

	env := map[string]any{"vars": vars}
	for k, v := range vars {
		if k == "vars" {
			continue
		}
		env[k] = v
	}

	program, err := expr.Compile(condition, expr.Env(env), expr.AsBool())
	if err != nil {
		return false, fmt.Errorf("compile condition %q: %w", condition, err)
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("eval condition %q: %w", condition, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return bool (got %T)", condition, output)
	}
	return result, nil
}
