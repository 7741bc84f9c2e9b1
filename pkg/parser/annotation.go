package parser

import (
	"regexp"
	"strings"

	"github.com/skaldhq/skald/pkg/playbook"
)

// annotationRe matches "@identifier" with optional trailing content.
// Identifiers are [A-Za-z_][A-Za-z0-9_]*, case preserved.
var annotationRe = regexp.MustCompile(`^@([A-Za-z_][A-Za-z0-9_]*)(?:[ \t]+(.*))?$`)

// IsAnnotationStart reports whether the line begins with an @ marker.
// A line can start an annotation and still fail to parse (bare "@").
func IsAnnotationStart(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "@")
}

// ParseAnnotationBlock parses an annotation starting at lines[start].
//
// Single-line form: trailing content after @name is parsed immediately as
// flags or positional values and the block ends on that line.
//
// Multi-line form: with no trailing content, subsequent lines beginning
// with -- are consumed as continuation flag lines; scanning stops at the
// first blank line, the next @ line, a comment opener, or any line that is
// not a flag line.
//
// A line starting with @ that does not match the identifier grammar yields
// a critical INVALID_ANNOTATION error and no block.
func ParseAnnotationBlock(lines []string, start int) (*playbook.Block, *playbook.ParseError, int) {
	raw := lines[start]
	trimmed, col := trimLeftWS(raw)

	m := annotationRe.FindStringSubmatch(strings.TrimRight(trimmed, " \t"))
	if m == nil {
		return nil, &playbook.ParseError{
			Type:     playbook.ErrInvalidAnnotation,
			Message:  "malformed annotation: expected @ followed by an identifier",
			Line:     start + 1,
			Severity: playbook.SeverityCritical,
			Context:  strings.TrimSpace(raw),
		}, start + 1
	}

	name, trailing := m[1], m[2]
	annPos := &playbook.Position{Line: start + 1, Start: col, Length: 1 + len(name)}

	// Single-line form.
	if trailing != "" {
		after := trimmed[1+len(name):]
		ws := len(after) - len(strings.TrimLeft(after, " \t"))
		trailingCol := col + 1 + len(name) + ws
		return &playbook.Block{
			Name:               name,
			Flags:              ParseFlagsOrValuesAt(trailing, start+1, trailingCol),
			Content:            raw,
			Line:               start + 1,
			AnnotationPosition: annPos,
		}, nil, start + 1
	}

	// Multi-line form: gather -- continuation lines.
	var flags []playbook.Flag
	i := start + 1
	for ; i < len(lines); i++ {
		line := lines[i]
		if IsBlank(line) || IsAnnotationStart(line) || IsCommentOpen(line) || !isFlagLine(line) {
			break
		}
		flagContent, flagCol := trimLeftWS(line)
		flags = append(flags, ParseFlagsAt(flagContent, i+1, flagCol)...)
	}

	return &playbook.Block{
		Name:               name,
		Flags:              flags,
		Content:            strings.Join(lines[start:i], "\n"),
		Line:               start + 1,
		AnnotationPosition: annPos,
	}, nil, i
}
