// Package debugger implements the interactive REPL for stepping through
// a playbook block by block.
package debugger

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	"github.com/skaldhq/skald/pkg/playbook"
	"github.com/skaldhq/skald/pkg/runtime"
)

// Debugger steps a single session through a playbook under user control.
type Debugger struct {
	pb     *playbook.Playbook
	sess   *runtime.Session
	walk   *runtime.Walk
	output io.Writer
	rl     *readline.Instance
	failed bool
}

// New creates a debugger for the given playbook. Critical parse errors
// disable debugging just as they disable a run.
func New(pb *playbook.Playbook, exec *runtime.Executor) (*Debugger, error) {
	if pb.HasCriticalErrors() {
		return nil, fmt.Errorf("%w (%d)", runtime.ErrCriticalErrors, len(pb.Errors))
	}
	sess := runtime.NewSession("debug", runtime.Hooks{})
	return &Debugger{
		pb:     pb,
		sess:   sess,
		walk:   exec.NewWalk(sess, pb),
		output: os.Stdout,
	}, nil
}

// Session exposes the underlying session so callers can seed variables
// before stepping.
func (d *Debugger) Session() *runtime.Session {
	return d.sess
}

// Run starts the interactive REPL loop.
func (d *Debugger) Run(ctx context.Context) error {
	commands := []string{"next", "continue", "blocks", "context", "vars", "help", "quit"}

	completer := readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children, readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          d.buildPrompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("init readline: %w", err)
	}
	d.rl = rl
	defer rl.Close()

	fmt.Fprintf(d.output, "skald debugger — %d blocks\n", len(d.pb.Blocks))
	fmt.Fprintf(d.output, "Type 'help' for available commands, 'next' to execute the next block.\n\n")

	for {
		rl.SetPrompt(d.buildPrompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch strings.Fields(line)[0] {
		case "next", "n":
			d.handleNext(ctx)
		case "continue", "c":
			d.handleContinue(ctx)
		case "blocks", "b":
			d.handleBlocks()
		case "context":
			d.handleContext()
		case "vars", "v":
			d.handleVars()
		case "help", "?":
			d.handleHelp()
		case "quit", "q":
			fmt.Fprintf(d.output, "Exiting debugger.\n")
			return nil
		default:
			fmt.Fprintf(d.output, "Unknown command: %q. Type 'help' for available commands.\n", line)
		}
	}
}

// buildPrompt creates the prompt string: skald[block N/total]>
func (d *Debugger) buildPrompt() string {
	total := len(d.pb.Blocks)
	if d.failed {
		return "skald[failed]> "
	}
	if d.walk.Done() {
		return "skald[done]> "
	}
	return fmt.Sprintf("skald[%d/%d]> ", d.walk.Position()+1, total)
}
