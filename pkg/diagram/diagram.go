// Package diagram generates visual diagrams from parsed playbooks.
// Supports Mermaid flowchart and ASCII formats.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/skaldhq/skald/pkg/playbook"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Generate produces a diagram string from a parsed playbook. The title
// labels the header node, usually the file name.
func Generate(pb *playbook.Playbook, title string, format Format) (string, error) {
	if pb == nil {
		return "", fmt.Errorf("nil playbook")
	}
	switch format {
	case FormatMermaid:
		return generateMermaid(pb, title), nil
	case FormatASCII:
		return generateASCII(pb, title), nil
	default:
		return "", fmt.Errorf("unsupported diagram format: %s", format)
	}
}

// --- Mermaid flowchart ---

func generateMermaid(pb *playbook.Playbook, title string) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")

	nodes := collectNodes(pb)
	if len(nodes) == 0 {
		return b.String()
	}

	b.WriteString("    START([Start]) --> " + nodes[0].id + "\n")

	for i, n := range nodes {
		b.WriteString("    " + nodeDefinition(n) + "\n")

		if i >= len(nodes)-1 {
			continue
		}
		next := nodes[i+1].id
		if n.when != "" {
			// Conditional blocks are skipped when the condition is false;
			// the dotted edge is the bypass.
			b.WriteString(fmt.Sprintf("    %s -->|%q| %s\n", n.id, truncate(n.when, 30), next))
			b.WriteString(fmt.Sprintf("    %s -.->|\"skipped\"| %s\n", n.id, next))
		} else {
			b.WriteString(fmt.Sprintf("    %s --> %s\n", n.id, next))
		}
	}

	b.WriteString("    " + nodes[len(nodes)-1].id + " --> DONE([✓ Done])\n")
	b.WriteString("    style DONE fill:#0d6,stroke:#0a5,color:#fff\n")

	// Highlight shell steps — they are the ones with side effects.
	for _, n := range nodes {
		if n.kind == "run" {
			b.WriteString(fmt.Sprintf("    style %s fill:#1a3a4a,stroke:#0af\n", n.id))
		}
	}

	return b.String()
}

func nodeDefinition(n diagramNode) string {
	icon := nodeIcon(n.kind)
	label := escMermaid(truncate(n.label, 40))

	switch n.kind {
	case "prose":
		return fmt.Sprintf(`%s>"%s"]`, n.id, label)
	case "code":
		return fmt.Sprintf(`%s[/"`+icon+` %s"/]`, n.id, label)
	case "run":
		return fmt.Sprintf(`%s["`+icon+` %s"]`, n.id, label)
	case "task":
		return fmt.Sprintf(`%s{{"`+icon+` %s"}}`, n.id, label)
	default:
		return fmt.Sprintf(`%s["`+icon+` %s"]`, n.id, label)
	}
}

// --- ASCII ---

func generateASCII(pb *playbook.Playbook, title string) string {
	var b strings.Builder

	if title == "" {
		title = "Playbook"
	}

	nodes := collectNodes(pb)
	if len(nodes) == 0 {
		b.WriteString(title + " (empty)\n")
		return b.String()
	}

	// Compute uniform box width so every box and connector aligns.
	const indent = 8
	boxWidth := computeUniformBoxWidth(nodes, title)
	connCol := indent + 1 + boxWidth/2 // +1 accounts for the └/┌ border character
	pad := strings.Repeat(" ", indent)
	connPad := strings.Repeat(" ", connCol)

	// Header — same width as body boxes, title centered.
	headerText := centerPad(title, boxWidth)
	mid := boxWidth / 2
	b.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString(pad + "║" + headerText + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", mid) + "╤" + strings.Repeat("═", boxWidth-mid-1) + "╝\n")
	b.WriteString(connPad + "│\n")

	for i, n := range nodes {
		writeASCIINode(&b, n, indent, boxWidth)
		if i < len(nodes)-1 {
			b.WriteString(connPad + "│\n")
		}
	}

	return b.String()
}

// computeUniformBoxWidth returns the widest interior width needed
// across all nodes and the header title.
func computeUniformBoxWidth(nodes []diagramNode, title string) int {
	minWidth := 22
	w := minWidth

	titleWidth := runewidth.StringWidth(title) + 4 // "  title  "
	if titleWidth > w {
		w = titleWidth
	}

	for _, n := range nodes {
		if nw := nodeContentWidth(n); nw > w {
			w = nw
		}
	}
	return w
}

// nodeContentWidth returns the interior width a single node box needs.
func nodeContentWidth(n diagramNode) int {
	content := fmt.Sprintf(" %s %s ", nodeIcon(n.kind), n.label)
	w := runewidth.StringWidth(content)
	if n.when != "" {
		whenLine := " ? " + truncate(n.when, 40)
		if ww := runewidth.StringWidth(whenLine); ww > w {
			w = ww
		}
	}
	return w
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	right := total - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}

func writeASCIINode(b *strings.Builder, n diagramNode, indent, boxWidth int) {
	content := fmt.Sprintf(" %s %s ", nodeIcon(n.kind), n.label)
	contentWidth := runewidth.StringWidth(content)

	pad := strings.Repeat(" ", indent)
	topBot := strings.Repeat("─", boxWidth)
	mid := boxWidth / 2

	b.WriteString(pad + "┌" + topBot + "┐\n")
	b.WriteString(pad + "│" + content + strings.Repeat(" ", boxWidth-contentWidth) + "│\n")
	if n.when != "" {
		whenLine := " ? " + truncate(n.when, 40)
		whenWidth := runewidth.StringWidth(whenLine)
		b.WriteString(pad + "│" + whenLine + strings.Repeat(" ", boxWidth-whenWidth) + "│\n")
	}
	b.WriteString(pad + "└" + strings.Repeat("─", mid) + "┬" + strings.Repeat("─", boxWidth-mid-1) + "┘\n")
}

func nodeIcon(kind string) string {
	switch kind {
	case "task":
		return "🤖"
	case "run", "code":
		return "⚡"
	case "file":
		return "📄"
	case "context":
		return "📚"
	case "model":
		return "🧠"
	case "prose":
		return "¶"
	default:
		return "○"
	}
}

// --- playbook walking ---

type diagramNode struct {
	id    string
	label string
	kind  string
	when  string
	line  int
}

// collectNodes flattens the block sequence into diagram nodes. Comments
// and blank prose are invisible; a code block immediately following a
// @run annotation is the payload of that step, not a node of its own.
func collectNodes(pb *playbook.Playbook) []diagramNode {
	var nodes []diagramNode
	skipNext := false

	for _, blk := range pb.Blocks {
		if skipNext {
			skipNext = false
			if blk.Name == playbook.PlainCodeBlock {
				continue
			}
		}

		switch blk.Name {
		case playbook.PlainComment:
			continue
		case playbook.PlainText:
			if strings.TrimSpace(blk.Content) == "" {
				continue
			}
			nodes = append(nodes, diagramNode{
				id:    fmt.Sprintf("B%d", blk.Line),
				label: firstLine(blk.Content),
				kind:  "prose",
				line:  blk.Line,
			})
		case playbook.PlainCodeBlock:
			label := "code"
			if blk.Language != "" {
				label = blk.Language
			}
			nodes = append(nodes, diagramNode{
				id:    fmt.Sprintf("B%d", blk.Line),
				label: label,
				kind:  "code",
				line:  blk.Line,
			})
		default:
			n := diagramNode{
				id:   fmt.Sprintf("B%d", blk.Line),
				kind: blk.Name,
				line: blk.Line,
			}
			n.label = annotationLabel(blk)
			if when, ok := blk.FlagValue("when"); ok {
				n.when = when
			}
			if blk.Name == "run" {
				skipNext = true
			}
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func annotationLabel(blk *playbook.Block) string {
	switch blk.Name {
	case "task":
		if prompt, ok := blk.FlagValue("prompt"); ok && prompt != "" {
			return truncate(prompt, 40)
		}
		if vals := blk.PositionalValues(); len(vals) > 0 {
			return truncate(strings.Join(vals, " "), 40)
		}
		return "task"
	case "context":
		if name, ok := blk.FlagValue("name"); ok && name != "" {
			return "context: " + name
		}
		if vals := blk.PositionalValues(); len(vals) > 0 {
			return "context: " + vals[0]
		}
		return "context"
	case "model":
		if id, ok := blk.FlagValue("id"); ok && id != "" {
			return "model: " + id
		}
		if vals := blk.PositionalValues(); len(vals) > 0 {
			return "model: " + vals[0]
		}
		return "model"
	case "run":
		if shell, ok := blk.FlagValue("shell"); ok && shell != "" {
			return "run (" + shell + ")"
		}
		return "run"
	case "file":
		if path, ok := blk.FlagValue("load"); ok {
			return "load " + path
		}
		if path, ok := blk.FlagValue("save"); ok {
			return "save " + path
		}
		return "file"
	}
	return "@" + blk.Name
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return truncate(s, 40)
}

// --- string helpers ---

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
