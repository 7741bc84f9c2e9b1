package skills

import "regexp"

var varRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandVars replaces ${name} references with session variables. An
// unset variable leaves the reference verbatim, so a literal ${...} in
// prose survives a playbook that never defined it.
func expandVars(s string, api API) string {
	return varRef.ReplaceAllStringFunc(s, func(match string) string {
		name := varRef.FindStringSubmatch(match)[1]
		if v, ok := api.Var(name); ok {
			return v
		}
		return match
	})
}
