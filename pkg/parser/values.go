package parser

import (
	"strings"

	"github.com/skaldhq/skald/pkg/playbook"
)

// token is one extracted value with its offset inside the scanned fragment.
// For quoted tokens the text has the quotes stripped but start/length cover
// the quotes, so editor highlights span the full source token.
type token struct {
	text   string
	start  int
	length int
	quoted bool
}

// scanTokens splits a fragment into double-quoted strings and maximal runs
// of non-whitespace characters. A quoted token may be empty (""); an
// unterminated quote consumes the rest of the fragment.
func scanTokens(s string) []token {
	var toks []token
	i := 0
	for i < len(s) {
		if s[i] == ' ' || s[i] == '\t' {
			i++
			continue
		}
		if s[i] == '"' {
			j := i + 1
			for j < len(s) && s[j] != '"' {
				j++
			}
			if j < len(s) {
				toks = append(toks, token{text: s[i+1 : j], start: i, length: j - i + 1, quoted: true})
				i = j + 1
			} else {
				toks = append(toks, token{text: s[i+1:], start: i, length: len(s) - i, quoted: true})
				i = len(s)
			}
			continue
		}
		j := i
		for j < len(s) && s[j] != ' ' && s[j] != '\t' {
			j++
		}
		toks = append(toks, token{text: s[i:j], start: i, length: j - i})
		i = j
	}
	return toks
}

// isFlagToken reports whether the token is a --identifier flag marker.
// Quoted tokens are always values, never flags.
func isFlagToken(t token) bool {
	return !t.quoted && strings.HasPrefix(t.text, "--") && isIdentifier(t.text[2:])
}

// tokenPosition converts a token offset into an absolute source position.
// Returns nil when no line number was supplied (line <= 0).
func tokenPosition(t token, line, col int) *playbook.Position {
	if line <= 0 {
		return nil
	}
	return &playbook.Position{Line: line, Start: col + t.start, Length: t.length}
}

// ParseValues extracts quoted or bare value tokens from a fragment.
// `"a" "b" c` yields ["a" "b" "c"]; `""` yields [""]; "" yields nil.
func ParseValues(s string) []string {
	toks := scanTokens(s)
	if len(toks) == 0 {
		return nil
	}
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.text
	}
	return out
}

// ParseFlags parses --name value... pairs without position tracking.
func ParseFlags(s string) []playbook.Flag {
	return ParseFlagsAt(s, 0, 0)
}

// ParseFlagsAt parses --name value... pairs. All value tokens up to the
// next --identifier (or end of fragment) belong to the preceding flag; a
// flag with no following tokens keeps an empty (non-nil) value list.
// Tokens before the first flag marker are ignored. When line > 0, every
// flag name and value token receives an absolute source position anchored
// at column col.
func ParseFlagsAt(s string, line, col int) []playbook.Flag {
	var flags []playbook.Flag
	for _, t := range scanTokens(s) {
		if isFlagToken(t) {
			flags = append(flags, playbook.Flag{
				Name:     t.text[2:],
				Value:    []string{},
				Position: tokenPosition(t, line, col),
			})
			continue
		}
		if len(flags) == 0 {
			continue
		}
		cur := &flags[len(flags)-1]
		cur.Value = append(cur.Value, t.text)
		if pos := tokenPosition(t, line, col); pos != nil {
			cur.ValuePositions = append(cur.ValuePositions, *pos)
		}
	}
	return flags
}

// ParseFlagsOrValues parses annotation trailing content without position
// tracking. See ParseFlagsOrValuesAt.
func ParseFlagsOrValues(s string) []playbook.Flag {
	return ParseFlagsOrValuesAt(s, 0, 0)
}

// ParseFlagsOrValuesAt decides the grammar branch by lookahead:
//   - content starting with "--" is parsed as named flags;
//   - content starting with a quote or any non-dash character is parsed as
//     positional values, returned as one synthetic flag with an empty name;
//   - content starting with a single dash that is not "--" is invalid and
//     yields nil (the caller treats this as "no flags found", not an error).
func ParseFlagsOrValuesAt(s string, line, col int) []playbook.Flag {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if strings.HasPrefix(trimmed, "--") {
		return ParseFlagsAt(s, line, col)
	}
	if trimmed[0] == '-' {
		return nil
	}

	toks := scanTokens(s)
	if len(toks) == 0 {
		return nil
	}
	flag := playbook.Flag{Name: "", Value: make([]string, 0, len(toks))}
	for _, t := range toks {
		flag.Value = append(flag.Value, t.text)
		if pos := tokenPosition(t, line, col); pos != nil {
			flag.ValuePositions = append(flag.ValuePositions, *pos)
		}
	}
	return []playbook.Flag{flag}
}
