// Package assertions implements the post-execution checks attached to run
// steps via --expect-* flags.
package assertions

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/skaldhq/skald/pkg/playbook"
)

// Assertion types.
const (
	TypeContains    = "contains"
	TypeNotContains = "not_contains"
	TypeMatches     = "matches"
	TypeExitCode    = "exit_code"
)

// Flag names recognized on run annotations.
const (
	FlagContains    = "expect-contains"
	FlagNotContains = "expect-not-contains"
	FlagMatches     = "expect-matches"
	FlagExitCode    = "expect-exit"
)

// Check is one expectation to evaluate against a step's output.
type Check struct {
	Type     string
	Expected string
}

// Result is the outcome of evaluating a single check.
type Result struct {
	Type     string `json:"type"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message"`
}

// FromFlags collects checks from a block's flags, preserving both flag
// order and value order within a repeated flag.
func FromFlags(flags []playbook.Flag) []Check {
	var checks []Check
	for _, f := range flags {
		var typ string
		switch f.Name {
		case FlagContains:
			typ = TypeContains
		case FlagNotContains:
			typ = TypeNotContains
		case FlagMatches:
			typ = TypeMatches
		case FlagExitCode:
			typ = TypeExitCode
		default:
			continue
		}
		for _, v := range f.Value {
			checks = append(checks, Check{Type: typ, Expected: v})
		}
	}
	return checks
}

// Evaluate runs a single check against the given output and exit code.
func Evaluate(c Check, output string, exitCode int) *Result {
	switch c.Type {
	case TypeContains:
		return EvalContains(output, c.Expected)
	case TypeNotContains:
		return EvalNotContains(output, c.Expected)
	case TypeMatches:
		return EvalMatches(output, c.Expected)
	case TypeExitCode:
		return EvalExitCode(exitCode, c.Expected)
	}
	return &Result{
		Type:    c.Type,
		Passed:  false,
		Message: fmt.Sprintf("unknown assertion type %q", c.Type),
	}
}

// EvaluateAll runs every check and reports whether all of them passed.
func EvaluateAll(checks []Check, output string, exitCode int) ([]*Result, bool) {
	results := make([]*Result, 0, len(checks))
	passed := true
	for _, c := range checks {
		r := Evaluate(c, output, exitCode)
		if !r.Passed {
			passed = false
		}
		results = append(results, r)
	}
	return results, passed
}

// EvalContains checks if output contains the expected substring.
func EvalContains(output, expected string) *Result {
	passed := strings.Contains(output, expected)
	msg := fmt.Sprintf("output contains %q", expected)
	if !passed {
		msg = fmt.Sprintf("output does not contain %q", expected)
	}
	return &Result{
		Type:     TypeContains,
		Expected: expected,
		Actual:   truncate(output, 200),
		Passed:   passed,
		Message:  msg,
	}
}

// EvalNotContains checks that output does NOT contain the substring.
func EvalNotContains(output, expected string) *Result {
	passed := !strings.Contains(output, expected)
	msg := fmt.Sprintf("output does not contain %q", expected)
	if !passed {
		msg = fmt.Sprintf("output contains %q (unexpected)", expected)
	}
	return &Result{
		Type:     TypeNotContains,
		Expected: expected,
		Actual:   truncate(output, 200),
		Passed:   passed,
		Message:  msg,
	}
}

// EvalMatches checks if output matches the regex pattern.
func EvalMatches(output, pattern string) *Result {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return &Result{
			Type:     TypeMatches,
			Expected: pattern,
			Actual:   truncate(output, 200),
			Passed:   false,
			Message:  fmt.Sprintf("invalid regex: %v", err),
		}
	}
	passed := re.MatchString(output)
	msg := fmt.Sprintf("output matches /%s/", pattern)
	if !passed {
		msg = fmt.Sprintf("output does not match /%s/", pattern)
	}
	return &Result{
		Type:     TypeMatches,
		Expected: pattern,
		Actual:   truncate(output, 200),
		Passed:   passed,
		Message:  msg,
	}
}

// EvalExitCode checks if the actual exit code matches the expected value,
// which arrives from the flag as a string.
func EvalExitCode(actual int, expected string) *Result {
	want, err := strconv.Atoi(strings.TrimSpace(expected))
	if err != nil {
		return &Result{
			Type:     TypeExitCode,
			Expected: expected,
			Actual:   strconv.Itoa(actual),
			Passed:   false,
			Message:  fmt.Sprintf("expected exit code %q is not a number", expected),
		}
	}
	passed := actual == want
	msg := fmt.Sprintf("exit code %d == %d", actual, want)
	if !passed {
		msg = fmt.Sprintf("exit code %d != %d", actual, want)
	}
	return &Result{
		Type:     TypeExitCode,
		Expected: strconv.Itoa(want),
		Actual:   strconv.Itoa(actual),
		Passed:   passed,
		Message:  msg,
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
