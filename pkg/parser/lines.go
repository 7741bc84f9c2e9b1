// Package parser implements the markdown annotation parser: it splits a
// playbook document into annotation, comment, code and plain-text blocks
// with source positions, collecting errors instead of aborting.
package parser

import "strings"

// IsBlank reports whether the line is empty or whitespace-only.
func IsBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// trimLeftWS returns the line without leading spaces/tabs plus the number
// of bytes trimmed (the start column of the remaining content).
func trimLeftWS(line string) (string, int) {
	trimmed := strings.TrimLeft(line, " \t")
	return trimmed, len(line) - len(trimmed)
}

// isFlagLine reports whether the line is a --flag continuation line of a
// multi-line annotation.
func isFlagLine(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "--")
}

// isIdentifier reports whether s matches [A-Za-z_][A-Za-z0-9_]*.
func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// isSpecial reports whether the line starts a non-plain-text block.
// Priority at the assembler level is annotation, then comment, then code.
func isSpecial(line string) bool {
	return IsAnnotationStart(line) || IsCommentOpen(line) || IsCodeFenceOpen(line)
}
