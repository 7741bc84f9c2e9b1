package parser

import (
	"strings"

	"github.com/skaldhq/skald/pkg/playbook"
)

// Parse assembles a playbook from raw document text.
//
// At each position the recognizers are tried in priority order: annotation,
// comment, code fence; anything else starts a plain-text run that extends
// to the next special line or end of file. Parse errors are collected, not
// thrown — the reported next position is honored even for a malformed
// region, so one bad annotation or unterminated fence never hides later
// blocks or errors. Every input line ends up in exactly one block.
func Parse(text string) *playbook.Playbook {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	pb := &playbook.Playbook{}

	collect := func(block *playbook.Block, perr *playbook.ParseError) {
		if block != nil {
			pb.Blocks = append(pb.Blocks, block)
		}
		if perr != nil {
			pb.Errors = append(pb.Errors, perr)
		}
	}

	i := 0
	for i < len(lines) {
		line := lines[i]
		var next int
		switch {
		case IsAnnotationStart(line):
			block, perr, n := ParseAnnotationBlock(lines, i)
			collect(block, perr)
			next = n
		case IsCommentOpen(line):
			block, n := ParseCommentBlock(lines, i)
			collect(block, nil)
			next = n
		case IsCodeFenceOpen(line):
			block, perr, n := ParseCodeBlock(lines, i)
			collect(block, perr)
			next = n
		default:
			j := i + 1
			for j < len(lines) && !isSpecial(lines[j]) {
				j++
			}
			collect(&playbook.Block{
				Name:    playbook.PlainText,
				Content: strings.Join(lines[i:j], "\n"),
				Line:    i + 1,
			}, nil)
			next = j
		}
		if next <= i {
			next = i + 1 // guard against a stuck recognizer
		}
		i = next
	}
	return pb
}

// ParseBytes is a convenience wrapper over Parse for callers holding bytes.
func ParseBytes(data []byte) *playbook.Playbook {
	return Parse(string(data))
}
