package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/skaldhq/skald/pkg/contexts"
	"github.com/skaldhq/skald/pkg/governance"
	"github.com/skaldhq/skald/pkg/playbook"
	"github.com/skaldhq/skald/pkg/providers"
	"github.com/skaldhq/skald/pkg/skills"
)

// ErrCriticalErrors is returned when a run is requested for a playbook
// whose parse produced critical errors.
var ErrCriticalErrors = errors.New("playbook has critical parse errors")

// Executor runs playbooks against a session. It owns the injected
// collaborators; sessions own the per-document state.
type Executor struct {
	Registry   *skills.Registry
	Model      providers.ModelClient
	Commands   providers.CommandExecutor
	Gov        *governance.Engine
	Redactions []*governance.CompiledRedaction
}

// NewExecutor wires an executor. A nil registry gets the builtins; a nil
// governance engine gets a permissive one.
func NewExecutor(registry *skills.Registry, model providers.ModelClient, commands providers.CommandExecutor) *Executor {
	if registry == nil {
		registry = skills.Builtins()
	}
	return &Executor{
		Registry: registry,
		Model:    model,
		Commands: commands,
		Gov:      governance.NewEngine(nil),
	}
}

// Run executes the playbook top to bottom. Blocks execute strictly in
// document order; pause and stop take effect only between blocks; the
// first step failure halts the run and puts the session into the error
// state. Completing or stopping returns the session to idle.
func (e *Executor) Run(ctx context.Context, sess *Session, pb *playbook.Playbook) error {
	if pb.HasCriticalErrors() {
		return fmt.Errorf("%w (%d)", ErrCriticalErrors, len(pb.Errors))
	}
	if err := sess.begin(); err != nil {
		return err
	}

	w := e.NewWalk(sess, pb)
	for !w.Done() {
		if sess.boundary() {
			sess.finishStopped()
			return nil
		}
		if _, err := w.Step(ctx); err != nil {
			sess.fail(err.Error())
			return err
		}
	}
	sess.finishCompleted()
	return nil
}

// Walk advances through a playbook one block at a time. Run drives it
// with the pause/stop machinery; the debugger drives it directly.
type Walk struct {
	exec     *Executor
	sess     *Session
	pb       *playbook.Playbook
	next     int
	consumed map[int]bool
}

// NewWalk starts a walk at the first block.
func (e *Executor) NewWalk(sess *Session, pb *playbook.Playbook) *Walk {
	return &Walk{exec: e, sess: sess, pb: pb, consumed: make(map[int]bool)}
}

// Done reports whether every block has been visited.
func (w *Walk) Done() bool {
	return w.next >= len(w.pb.Blocks)
}

// Blocks returns the playbook being walked.
func (w *Walk) Blocks() []*playbook.Block {
	return w.pb.Blocks
}

// Position returns the index of the next block to visit.
func (w *Walk) Position() int {
	return w.next
}

// Step handles the next pending block and returns it. Comments and
// already-consumed payload blocks are passed over silently; plain text
// and unconsumed code blocks are injected into the selected context as
// agent narrative; annotations are dispatched to their skill, with the
// resulting messages appended to the selected context on success. A nil
// block with a nil error means the walk ran out of blocks.
func (w *Walk) Step(ctx context.Context) (*playbook.Block, error) {
	for w.next < len(w.pb.Blocks) {
		i := w.next
		block := w.pb.Blocks[i]
		w.next++

		if w.consumed[i] || block.Name == playbook.PlainComment {
			continue
		}
		// Whitespace-only prose separates blocks; it carries no narrative.
		if block.Name == playbook.PlainText && strings.TrimSpace(block.Content) == "" {
			continue
		}

		if block.IsPlain() {
			w.sess.Contexts().Append(contexts.Message{
				Role:    contexts.RoleAgent,
				Content: block.Content,
			})
			return block, nil
		}

		return block, w.dispatch(ctx, i, block)
	}
	return nil, nil
}

func (w *Walk) dispatch(ctx context.Context, index int, block *playbook.Block) error {
	if cond, ok := block.FlagValue("when"); ok {
		run, err := EvalWhen(cond, w.sess.VarsSnapshot())
		if err != nil {
			w.sess.setFailedLine(block.Line)
			return fmt.Errorf("block at line %d: %w", block.Line, err)
		}
		if !run {
			return nil
		}
	}

	w.sess.setCurrentLine(block.Line)

	api := &walkAPI{walk: w, index: index}
	res, err := w.exec.Registry.Dispatch(ctx, api, block)
	if err != nil {
		w.sess.setFailedLine(block.Line)
		return fmt.Errorf("block at line %d: %w", block.Line, err)
	}
	if res != nil && len(res.Messages) > 0 {
		w.sess.Contexts().Append(res.Messages...)
	}
	return nil
}

// walkAPI is the capability surface handed to a skill for one dispatch.
type walkAPI struct {
	walk  *Walk
	index int
}

func (a *walkAPI) ContextMessages() []contexts.Message {
	return a.walk.sess.Contexts().Messages()
}

func (a *walkAPI) SelectContext(name string) {
	a.walk.sess.Contexts().Select(name)
}

func (a *walkAPI) Model() providers.ModelClient {
	return a.walk.exec.Model
}

func (a *walkAPI) Executor() providers.CommandExecutor {
	return a.walk.exec.Commands
}

func (a *walkAPI) Governance() *governance.Engine {
	if a.walk.exec.Gov == nil {
		return governance.NewEngine(nil)
	}
	return a.walk.exec.Gov
}

func (a *walkAPI) Redactions() []*governance.CompiledRedaction {
	return a.walk.exec.Redactions
}

func (a *walkAPI) ConsumeNextBlock(kind string) *playbook.Block {
	next := a.index + 1
	if next >= len(a.walk.pb.Blocks) || a.walk.consumed[next] {
		return nil
	}
	block := a.walk.pb.Blocks[next]
	if block.Name != kind {
		return nil
	}
	a.walk.consumed[next] = true
	return block
}

func (a *walkAPI) Var(name string) (string, bool) {
	return a.walk.sess.Var(name)
}

func (a *walkAPI) SetVar(name, value string) {
	a.walk.sess.SetVar(name, value)
}
