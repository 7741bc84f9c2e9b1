package playbook

import "fmt"

// Severity classifies a parse error. Critical errors disable execution;
// warnings and infos are surfaced but do not block.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Machine-readable parse error types. The string values are part of the
// editor protocol and must not change.
const (
	ErrUnclosedCodeBlock = "UnclosedCodeBlock"
	ErrInvalidAnnotation = "INVALID_ANNOTATION"
)

// ParseError is a single parse-time diagnostic with location context.
// Parse errors are collected, never thrown: one malformed region must not
// prevent discovery of valid blocks or other errors elsewhere.
type ParseError struct {
	Type     string   `json:"type"`
	Message  string   `json:"message"`
	Line     int      `json:"line"`
	Severity Severity `json:"severity"`
	Context  string   `json:"context,omitempty"`
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("[%s] line %d: %s", e.Type, e.Line, e.Message)
}
