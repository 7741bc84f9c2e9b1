// Package recorder wraps a command executor and captures every command a
// run issues, so a session can be saved as a reviewable transcript.
package recorder

import (
	"context"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/skaldhq/skald/pkg/governance"
	"github.com/skaldhq/skald/pkg/providers"
)

// CapturedCommand records a single executed command.
type CapturedCommand struct {
	Command  string `yaml:"command"`
	Args     string `yaml:"args,omitempty"`
	ExitCode int    `yaml:"exit_code"`
	Stdout   string `yaml:"stdout,omitempty"`
	Stderr   string `yaml:"stderr,omitempty"`
	Duration string `yaml:"duration,omitempty"`
}

// Transcript is the saved form of a recorded run.
type Transcript struct {
	Playbook   string            `yaml:"playbook"`
	CapturedAt string            `yaml:"captured_at"`
	Commands   []CapturedCommand `yaml:"commands"`
}

// Recorder wraps a CommandExecutor and captures all command results.
type Recorder struct {
	inner      providers.CommandExecutor
	Commands   []CapturedCommand
	redactions []*governance.CompiledRedaction
}

// New creates a recording wrapper around an existing command executor.
func New(inner providers.CommandExecutor) *Recorder {
	return &Recorder{inner: inner}
}

// SetRedactions configures redaction rules applied to captured output.
func (r *Recorder) SetRedactions(rules []*governance.CompiledRedaction) {
	r.redactions = rules
}

// Execute delegates to the inner executor and records the result.
func (r *Recorder) Execute(ctx context.Context, command string, args []string, env []string) (*providers.CommandResult, error) {
	result, err := r.inner.Execute(ctx, command, args, env)
	if err != nil {
		return nil, err
	}

	captured := CapturedCommand{
		Command:  command,
		Args:     strings.Join(args, " "),
		ExitCode: result.ExitCode,
		Stdout:   r.redact(string(result.Stdout)),
		Stderr:   r.redact(string(result.Stderr)),
		Duration: result.Duration.Truncate(time.Millisecond).String(),
	}
	r.Commands = append(r.Commands, captured)
	return result, nil
}

// WriteTranscript saves the captured commands as a YAML transcript.
func (r *Recorder) WriteTranscript(path, playbookName string) error {
	t := Transcript{
		Playbook:   playbookName,
		CapturedAt: time.Now().UTC().Format(time.RFC3339),
		Commands:   r.Commands,
	}
	data, err := yaml.Marshal(&t)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (r *Recorder) redact(s string) string {
	return governance.Redact(s, r.redactions)
}
