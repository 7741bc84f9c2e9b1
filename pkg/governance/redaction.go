package governance

import (
	"fmt"
	"regexp"
)

// CompiledRedaction pairs a compiled pattern with its replacement text.
type CompiledRedaction struct {
	Pattern *regexp.Regexp
	Replace string
}

// CompileRedactionRules compiles every rule's pattern up front, so a bad
// regex fails at config load rather than in the middle of a run.
func CompileRedactionRules(rules []RedactionRule) ([]*CompiledRedaction, error) {
	var compiled []*CompiledRedaction
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("redaction pattern %q: %w", r.Pattern, err)
		}
		compiled = append(compiled, &CompiledRedaction{Pattern: re, Replace: r.Replace})
	}
	return compiled, nil
}

// Redact applies the rules to text in order. Command output passes
// through here before it enters a context, and all content bound for the
// model transport or a transcript passes through again on the way out.
func Redact(text string, rules []*CompiledRedaction) string {
	out := text
	for _, r := range rules {
		out = r.Pattern.ReplaceAllString(out, r.Replace)
	}
	return out
}
