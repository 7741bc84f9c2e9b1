package diagram

import (
	"strings"
	"testing"

	"github.com/skaldhq/skald/pkg/parser"
)

func TestGenerateMermaid_LinearFlow(t *testing.T) {
	pb := parser.Parse("Check the service.\n\n@task --prompt \"diagnose\"\n")

	out, err := Generate(pb, "linear-test", FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "flowchart TD") {
		t.Error("missing flowchart header")
	}
	if !strings.Contains(out, "START([Start]) --> B1") {
		t.Errorf("missing start edge, got:\n%s", out)
	}
	if !strings.Contains(out, "B1 --> B3") {
		t.Errorf("missing sequential edge, got:\n%s", out)
	}
	if !strings.Contains(out, "DONE") {
		t.Error("missing done node")
	}
}

func TestGenerateMermaid_WhenCondition(t *testing.T) {
	pb := parser.Parse("@task --prompt \"a\"\n\n@task --prompt \"b\" --when \"env == 'prod'\"\n\n@task --prompt \"c\"\n")

	out, err := Generate(pb, "cond", FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "env == 'prod'") {
		t.Errorf("missing condition label, got:\n%s", out)
	}
	if !strings.Contains(out, "skipped") {
		t.Errorf("missing bypass edge, got:\n%s", out)
	}
}

func TestGenerateMermaid_RunPayloadMerged(t *testing.T) {
	pb := parser.Parse("@run\n```sh\nls -l\n```\n")

	out, err := Generate(pb, "payload", FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "run") {
		t.Errorf("missing run node, got:\n%s", out)
	}
	// The fenced payload belongs to the @run step, not its own node.
	if strings.Count(out, "⚡") > 1 {
		t.Errorf("payload rendered as separate node:\n%s", out)
	}
	if !strings.Contains(out, "style B1 fill:") {
		t.Errorf("missing run style, got:\n%s", out)
	}
}

func TestGenerateMermaid_CommentsInvisible(t *testing.T) {
	pb := parser.Parse("<!-- internal note -->\n\n@task --prompt \"go\"\n")

	out, err := Generate(pb, "comments", FormatMermaid)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(out, "internal note") {
		t.Errorf("comment leaked into diagram:\n%s", out)
	}
}

func TestGenerateASCII(t *testing.T) {
	pb := parser.Parse("Intro line.\n\n@task --prompt \"summarize the incident\"\n\n@run\n```sh\nuptime\n```\n")

	out, err := Generate(pb, "ASCII Test", FormatASCII)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "ASCII Test") {
		t.Error("missing title")
	}
	if !strings.Contains(out, "🤖") {
		t.Error("missing task icon")
	}
	if !strings.Contains(out, "⚡") {
		t.Error("missing run icon")
	}
	if !strings.Contains(out, "┌") || !strings.Contains(out, "└") {
		t.Error("missing box borders")
	}
}

func TestGenerateASCII_Empty(t *testing.T) {
	pb := parser.Parse("")
	out, err := Generate(pb, "Empty", FormatASCII)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "(empty)") {
		t.Errorf("expected empty marker, got:\n%s", out)
	}
}

func TestGenerate_UnsupportedFormat(t *testing.T) {
	pb := parser.Parse("prose\n")
	_, err := Generate(pb, "x", "svg")
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGenerate_NilPlaybook(t *testing.T) {
	_, err := Generate(nil, "x", FormatMermaid)
	if err == nil {
		t.Fatal("expected error for nil playbook")
	}
}

func TestAnnotationLabels(t *testing.T) {
	pb := parser.Parse("@context --name scratch\n\n@model gpt-test\n\n@file --load notes.txt\n")

	nodes := collectNodes(pb)
	if len(nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(nodes))
	}
	if nodes[0].label != "context: scratch" {
		t.Errorf("context label = %q", nodes[0].label)
	}
	if nodes[1].label != "model: gpt-test" {
		t.Errorf("model label = %q", nodes[1].label)
	}
	if nodes[2].label != "load notes.txt" {
		t.Errorf("file label = %q", nodes[2].label)
	}
}
