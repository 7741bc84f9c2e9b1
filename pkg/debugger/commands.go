package debugger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/skaldhq/skald/pkg/playbook"
)

// handleNext executes the next pending block.
func (d *Debugger) handleNext(ctx context.Context) {
	if d.failed {
		fmt.Fprintf(d.output, "A block has failed; restart the debugger to run again from the top.\n")
		return
	}
	if d.walk.Done() {
		fmt.Fprintf(d.output, "Playbook completed.\n")
		return
	}

	block, err := d.walk.Step(ctx)
	if block == nil && err == nil {
		fmt.Fprintf(d.output, "Playbook completed.\n")
		return
	}
	if err != nil {
		d.failed = true
		fmt.Fprintf(d.output, "  ✗ %s failed: %v\n", describeBlock(block), err)
		return
	}
	fmt.Fprintf(d.output, "  ✓ %s\n", describeBlock(block))
}

// handleContinue executes all remaining blocks, halting on failure.
func (d *Debugger) handleContinue(ctx context.Context) {
	for !d.walk.Done() && !d.failed {
		d.handleNext(ctx)
	}
	if d.failed {
		fmt.Fprintf(d.output, "Halted on failure.\n")
		return
	}
	fmt.Fprintf(d.output, "All blocks completed.\n")
}

// handleBlocks lists the playbook's blocks with a cursor at the next one.
func (d *Debugger) handleBlocks() {
	pos := d.walk.Position()
	for i, b := range d.walk.Blocks() {
		marker := "  "
		if i == pos && !d.walk.Done() {
			marker = "▶ "
		}
		fmt.Fprintf(d.output, "%s[%d] line %d  %s\n", marker, i, b.Line, describeBlock(b))
	}
}

// handleContext prints the selected context's messages.
func (d *Debugger) handleContext() {
	store := d.sess.Contexts()
	msgs := store.Messages()
	fmt.Fprintf(d.output, "context %q — %d messages\n", store.SelectedName(), len(msgs))
	for _, m := range msgs {
		content := m.Content
		if len(content) > 120 {
			content = content[:120] + "..."
		}
		fmt.Fprintf(d.output, "  [%s] %s\n", m.Role, strings.ReplaceAll(content, "\n", "\\n"))
	}
}

// handleVars prints the session variables.
func (d *Debugger) handleVars() {
	vars := d.sess.VarsSnapshot()
	if len(vars) == 0 {
		fmt.Fprintf(d.output, "No variables defined.\n")
		return
	}
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(d.output, "  %s = %q\n", name, vars[name])
	}
}

// handleHelp prints the command reference.
func (d *Debugger) handleHelp() {
	fmt.Fprintf(d.output, `Commands:
  next, n       execute the next block
  continue, c   execute all remaining blocks (halts on failure)
  blocks, b     list blocks with the execution cursor
  context       show the selected context's messages
  vars, v       show session variables
  help, ?       show this help
  quit, q       exit the debugger
`)
}

func describeBlock(b *playbook.Block) string {
	switch b.Name {
	case playbook.PlainText:
		return "plain text"
	case playbook.PlainComment:
		return "comment"
	case playbook.PlainCodeBlock:
		if b.Language != "" {
			return fmt.Sprintf("code block (%s)", b.Language)
		}
		return "code block"
	}
	return "@" + b.Name
}
