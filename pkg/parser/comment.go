package parser

import (
	"strings"

	"github.com/skaldhq/skald/pkg/playbook"
)

const (
	commentOpen  = "<!--"
	commentClose = "-->"
)

// IsCommentOpen reports whether the line begins an HTML comment.
func IsCommentOpen(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), commentOpen)
}

// IsComment reports whether the line is a complete single-line comment:
// it both opens with <!-- and closes with --> on the same line.
func IsComment(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, commentOpen) && strings.Contains(t[len(commentOpen):], commentClose)
}

// ParseCommentBlock parses a comment block starting at lines[start] and
// returns the block plus the index of the first unconsumed line.
//
// A multi-line comment with no closing marker consumes to end of file and
// is still returned as one block. This is intentional permissive policy,
// matching how browsers treat unterminated comments, not an error state.
func ParseCommentBlock(lines []string, start int) (*playbook.Block, int) {
	first := strings.TrimSpace(lines[start])

	// Single-line form: everything between the markers, trimmed.
	if IsComment(lines[start]) {
		inner := first[len(commentOpen):]
		inner = inner[:strings.Index(inner, commentClose)]
		return &playbook.Block{
			Name:    playbook.PlainComment,
			Content: strings.TrimSpace(inner),
			Line:    start + 1,
		}, start + 1
	}

	// Multi-line form: trailing content on the opening line, then full
	// lines until a line containing the close marker. Content before the
	// marker on the closing line is kept; anything after it is discarded.
	var parts []string
	if rest := strings.TrimPrefix(first, commentOpen); rest != "" {
		parts = append(parts, rest)
	}
	i := start + 1
	for ; i < len(lines); i++ {
		if idx := strings.Index(lines[i], commentClose); idx >= 0 {
			parts = append(parts, lines[i][:idx])
			i++
			break
		}
		parts = append(parts, lines[i])
	}

	return &playbook.Block{
		Name:    playbook.PlainComment,
		Content: strings.TrimSpace(strings.Join(parts, "\n")),
		Line:    start + 1,
	}, i
}
