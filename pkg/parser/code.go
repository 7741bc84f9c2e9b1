package parser

import (
	"strings"

	"github.com/skaldhq/skald/pkg/playbook"
)

const fence = "```"

// IsCodeFenceOpen reports whether the line opens a fenced code block:
// three backticks optionally followed by a language tag.
func IsCodeFenceOpen(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), fence)
}

// IsCodeFenceClose reports whether the line closes a fenced code block:
// exactly three backticks, optionally surrounded by whitespace.
func IsCodeFenceClose(line string) bool {
	return strings.TrimSpace(line) == fence
}

// ExtractLanguage returns the language tag following the opening fence,
// exactly as typed (no case folding). Empty when the fence is bare.
func ExtractLanguage(line string) string {
	t := strings.TrimSpace(line)
	return strings.TrimSpace(strings.TrimPrefix(t, fence))
}

// ParseCodeBlock parses a fenced code block starting at lines[start].
// The body is preserved verbatim, including indentation and blank lines.
// Reaching end of input without a closing fence yields a critical
// UnclosedCodeBlock error anchored at the opening line and no block; the
// consumed span is still reported so the caller can continue past it.
func ParseCodeBlock(lines []string, start int) (*playbook.Block, *playbook.ParseError, int) {
	lang := ExtractLanguage(lines[start])

	for i := start + 1; i < len(lines); i++ {
		if !IsCodeFenceClose(lines[i]) {
			continue
		}
		return &playbook.Block{
			Name:     playbook.PlainCodeBlock,
			Content:  strings.Join(lines[start+1:i], "\n"),
			Line:     start + 1,
			Language: lang,
		}, nil, i + 1
	}

	return nil, &playbook.ParseError{
		Type:     playbook.ErrUnclosedCodeBlock,
		Message:  "code block opened here is never closed",
		Line:     start + 1,
		Severity: playbook.SeverityCritical,
		Context:  strings.TrimSpace(lines[start]),
	}, len(lines)
}
