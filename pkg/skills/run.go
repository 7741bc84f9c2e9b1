package skills

import (
	"context"
	"fmt"
	"strings"

	"github.com/skaldhq/skald/pkg/assertions"
	"github.com/skaldhq/skald/pkg/contexts"
	"github.com/skaldhq/skald/pkg/governance"
	"github.com/skaldhq/skald/pkg/playbook"
)

// RunSkill executes the fenced code block immediately following its
// annotation through the injected CommandExecutor. The code block is the
// skill's payload and is never injected into context as narrative.
//
//	@run --env "REGION=us-east-1" --expect-contains "deployed" --expect-exit 0
//	```bash
//	./deploy.sh
//	```
type RunSkill struct{}

func (s *RunSkill) Validate(block *playbook.Block) ValidationResult {
	var warnings []string
	for _, f := range block.Flags {
		switch f.Name {
		case "env":
			for _, v := range f.Value {
				if !strings.Contains(v, "=") {
					return invalid(fmt.Sprintf("run --env %q is not KEY=VALUE", v))
				}
			}
		case "shell", "when",
			assertions.FlagContains, assertions.FlagNotContains,
			assertions.FlagMatches, assertions.FlagExitCode:
		default:
			warnings = append(warnings, fmt.Sprintf("run: unrecognized flag --%s", f.Name))
		}
	}
	return ValidationResult{Valid: true, Warnings: warnings}
}

func (s *RunSkill) Execute(ctx context.Context, api API, block *playbook.Block) (*Result, error) {
	payload := api.ConsumeNextBlock(playbook.PlainCodeBlock)
	if payload == nil {
		return nil, fmt.Errorf("run at line %d: no code block follows the annotation", block.Line)
	}

	command, args, err := interpreterFor(block, payload.Language)
	if err != nil {
		return nil, fmt.Errorf("run at line %d: %w", block.Line, err)
	}
	if err := api.Governance().CheckCommand(command); err != nil {
		return nil, fmt.Errorf("run at line %d: %w", block.Line, err)
	}

	env, err := runEnv(api, block)
	if err != nil {
		return nil, fmt.Errorf("run at line %d: %w", block.Line, err)
	}

	code := expandVars(payload.Content, api)
	res, err := api.Executor().Execute(ctx, command, append(args, code), env)
	if err != nil {
		return nil, fmt.Errorf("run at line %d: %w", block.Line, err)
	}

	output := string(res.Stdout)
	if len(res.Stderr) > 0 {
		output += string(res.Stderr)
	}
	output = governance.Redact(output, api.Redactions())

	checks := assertions.FromFlags(block.Flags)
	results, passed := assertions.EvaluateAll(checks, output, res.ExitCode)
	if !passed {
		var failed []string
		for _, r := range results {
			if !r.Passed {
				failed = append(failed, r.Message)
			}
		}
		return nil, fmt.Errorf("run at line %d: assertion failed: %s", block.Line, strings.Join(failed, "; "))
	}
	// A non-zero exit is a failure unless an exit-code expectation
	// explicitly allowed it.
	if res.ExitCode != 0 && !hasExitCheck(checks) {
		return nil, fmt.Errorf("run at line %d: command exited with code %d: %s",
			block.Line, res.ExitCode, truncateOutput(output))
	}

	return &Result{Messages: []contexts.Message{
		{Role: contexts.RoleAgent, Content: output},
	}}, nil
}

// interpreterFor maps a fence language (or an explicit --shell override)
// to an interpreter invocation. The payload is passed as the final
// argument after the interpreter's inline-code flag.
func interpreterFor(block *playbook.Block, lang string) (string, []string, error) {
	if shell, ok := block.FlagValue("shell"); ok && shell != "" {
		return shell, []string{"-c"}, nil
	}
	switch strings.ToLower(lang) {
	case "", "sh", "shell":
		return "sh", []string{"-c"}, nil
	case "bash":
		return "bash", []string{"-c"}, nil
	case "zsh":
		return "zsh", []string{"-c"}, nil
	case "python", "python3", "py":
		return "python3", []string{"-c"}, nil
	case "javascript", "js", "node":
		return "node", []string{"-e"}, nil
	case "ruby":
		return "ruby", []string{"-e"}, nil
	case "powershell", "pwsh":
		return "pwsh", []string{"-Command"}, nil
	}
	return "", nil, fmt.Errorf("no interpreter for language %q", lang)
}

// runEnv collects --env KEY=VALUE entries, checking each name against
// the governance deny patterns and expanding ${var} in values.
func runEnv(api API, block *playbook.Block) ([]string, error) {
	var env []string
	for _, f := range block.Flags {
		if f.Name != "env" {
			continue
		}
		for _, entry := range f.Value {
			key, val, found := strings.Cut(entry, "=")
			if !found {
				return nil, fmt.Errorf("--env %q is not KEY=VALUE", entry)
			}
			if err := api.Governance().CheckEnvVar(key); err != nil {
				return nil, err
			}
			env = append(env, key+"="+expandVars(val, api))
		}
	}
	return env, nil
}

func hasExitCheck(checks []assertions.Check) bool {
	for _, c := range checks {
		if c.Type == assertions.TypeExitCode {
			return true
		}
	}
	return false
}

func truncateOutput(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
