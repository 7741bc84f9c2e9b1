package parser

import (
	"reflect"
	"testing"

	"github.com/skaldhq/skald/pkg/playbook"
)

func TestParseAnnotationBlockSingleLineFlags(t *testing.T) {
	lines := []string{`@task --prompt "summarize" --model gpt`, "next"}
	block, perr, next := ParseAnnotationBlock(lines, 0)
	if perr != nil {
		t.Fatalf("unexpected error: %v", perr)
	}
	if next != 1 {
		t.Fatalf("next = %d, want 1", next)
	}
	if block.Name != "task" {
		t.Errorf("name = %q", block.Name)
	}
	if len(block.Flags) != 2 || block.Flags[0].Name != "prompt" || block.Flags[1].Name != "model" {
		t.Errorf("flags = %+v", block.Flags)
	}
	if v, ok := block.FlagValue("prompt"); !ok || v != "summarize" {
		t.Errorf("prompt value = %q (present=%v)", v, ok)
	}
}

func TestParseAnnotationBlockPositionalValues(t *testing.T) {
	lines := []string{`@context "analysis"`}
	block, _, _ := ParseAnnotationBlock(lines, 0)
	if got := block.PositionalValues(); !reflect.DeepEqual(got, []string{"analysis"}) {
		t.Errorf("positional values = %#v", got)
	}
}

func TestParseAnnotationBlockMultiLine(t *testing.T) {
	lines := []string{
		"@task",
		`--prompt "first"`,
		`--files "a" "b"`,
		"",
		`--ignored "after blank"`,
	}
	block, perr, next := ParseAnnotationBlock(lines, 0)
	if perr != nil {
		t.Fatalf("unexpected error: %v", perr)
	}
	if next != 3 {
		t.Fatalf("next = %d, want 3 (stop at blank line)", next)
	}
	if len(block.Flags) != 2 {
		t.Fatalf("flags = %+v", block.Flags)
	}
	if !reflect.DeepEqual(block.Flags[1].Value, []string{"a", "b"}) {
		t.Errorf("files values = %#v", block.Flags[1].Value)
	}
}

func TestParseAnnotationBlockMultiLineStops(t *testing.T) {
	tests := []struct {
		name     string
		stopLine string
	}{
		{"next annotation", "@other"},
		{"comment opener", "<!-- note -->"},
		{"plain text", "not a flag line"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines := []string{"@task", `--a 1`, tt.stopLine}
			_, _, next := ParseAnnotationBlock(lines, 0)
			if next != 2 {
				t.Errorf("next = %d, want 2 (stop before %q)", next, tt.stopLine)
			}
		})
	}
}

func TestParseAnnotationBlockInvalid(t *testing.T) {
	for _, line := range []string{"@", "@1abc", "@-dash"} {
		block, perr, next := ParseAnnotationBlock([]string{line}, 0)
		if block != nil {
			t.Errorf("%q: no block expected, got %+v", line, block)
		}
		if perr == nil || perr.Type != playbook.ErrInvalidAnnotation || perr.Severity != playbook.SeverityCritical {
			t.Errorf("%q: error = %+v, want critical INVALID_ANNOTATION", line, perr)
		}
		if next != 1 {
			t.Errorf("%q: next = %d, want 1", line, next)
		}
	}
}

func TestAnnotationPosition(t *testing.T) {
	lines := []string{`  @deploy --env prod`}
	block, _, _ := ParseAnnotationBlock(lines, 0)
	pos := block.AnnotationPosition
	if pos == nil {
		t.Fatal("annotationPosition missing")
	}
	if pos.Line != 1 || pos.Start != 2 || pos.Length != 7 {
		t.Errorf("position = %+v, want line 1 start 2 length 7 (@deploy)", pos)
	}
	// Inline flag positions are absolute within the original line.
	f := block.Flag("env")
	if f == nil || f.Position == nil {
		t.Fatal("env flag position missing")
	}
	if f.Position.Start != 10 || f.Position.Length != 5 {
		t.Errorf("flag position = %+v", f.Position)
	}
}

func TestAnnotationCasePreserved(t *testing.T) {
	block, _, _ := ParseAnnotationBlock([]string{"@RunLocal"}, 0)
	if block.Name != "RunLocal" {
		t.Errorf("identifier case must be preserved, got %q", block.Name)
	}
}
