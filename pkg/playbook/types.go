// Package playbook defines the block data model produced by parsing a
// markdown playbook and the parse-error types collected alongside it.
package playbook

// Reserved block names for non-annotation blocks. Any other name is the
// annotation's skill name (e.g. "task", "run").
const (
	PlainText      = "plainText"
	PlainComment   = "plainComment"
	PlainCodeBlock = "plainCodeBlock"
)

// Position is an absolute source location for editor highlighting.
// Line is 1-indexed; Start is the 0-indexed column of the first character.
type Position struct {
	Line   int `json:"line"`
	Start  int `json:"start"`
	Length int `json:"length"`
}

// Flag is a single --name value... parameter attached to an annotation.
// A Flag with an empty Name carries the annotation's positional values.
// Value is always a slice: a flag may carry several quoted tokens, and the
// source order of the entries is preserved.
type Flag struct {
	Name           string     `json:"name"`
	Value          []string   `json:"value"`
	Position       *Position  `json:"position,omitempty"`
	ValuePositions []Position `json:"valuePositions,omitempty"`
}

// Block is one parsed unit of the document: an annotation, a plain-text run,
// a comment, or a fenced code block. Blocks are immutable after parsing and
// appear in document order; every input line belongs to exactly one block.
type Block struct {
	Name    string `json:"name"`
	Flags   []Flag `json:"flags,omitempty"`
	Content string `json:"content"`
	// Line is the 1-indexed line the block starts on.
	Line int `json:"line"`
	// AnnotationPosition locates the @name token for annotation blocks.
	AnnotationPosition *Position `json:"annotationPosition,omitempty"`
	// Language is the code fence tag, stored exactly as typed.
	Language string `json:"language,omitempty"`
}

// IsPlain reports whether the block is a non-annotation block.
func (b *Block) IsPlain() bool {
	switch b.Name {
	case PlainText, PlainComment, PlainCodeBlock:
		return true
	}
	return false
}

// IsAnnotation reports whether the block invokes a skill.
func (b *Block) IsAnnotation() bool {
	return !b.IsPlain()
}

// Flag returns the first flag with the given name, or nil.
func (b *Block) Flag(name string) *Flag {
	for i := range b.Flags {
		if b.Flags[i].Name == name {
			return &b.Flags[i]
		}
	}
	return nil
}

// FlagValue returns the first value of the named flag, and whether the
// flag is present at all.
func (b *Block) FlagValue(name string) (string, bool) {
	f := b.Flag(name)
	if f == nil {
		return "", false
	}
	if len(f.Value) == 0 {
		return "", true
	}
	return f.Value[0], true
}

// PositionalValues returns the bare/quoted values given without a flag name.
func (b *Block) PositionalValues() []string {
	f := b.Flag("")
	if f == nil {
		return nil
	}
	return f.Value
}

// Playbook is the result of one parse call: the ordered block list plus the
// collected parse errors. A playbook with critical errors must not execute.
type Playbook struct {
	Blocks []*Block      `json:"blocks"`
	Errors []*ParseError `json:"errors,omitempty"`
}

// HasCriticalErrors reports whether any collected error blocks execution.
func (p *Playbook) HasCriticalErrors() bool {
	for _, e := range p.Errors {
		if e.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// Annotations returns the executable annotation blocks in document order.
func (p *Playbook) Annotations() []*Block {
	var out []*Block
	for _, b := range p.Blocks {
		if b.IsAnnotation() {
			out = append(out, b)
		}
	}
	return out
}
