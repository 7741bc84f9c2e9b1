package recorder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skaldhq/skald/pkg/governance"
	"github.com/skaldhq/skald/pkg/providers"
)

type mockExecutor struct {
	result *providers.CommandResult
}

func (m *mockExecutor) Execute(ctx context.Context, command string, args []string, env []string) (*providers.CommandResult, error) {
	return m.result, nil
}

func TestRecorder_CapturesCommand(t *testing.T) {
	inner := &mockExecutor{
		result: &providers.CommandResult{
			ExitCode: 0,
			Stdout:   []byte("200"),
		},
	}

	rec := New(inner)
	_, err := rec.Execute(context.Background(), "curl", []string{"-s", "http://localhost"}, nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(rec.Commands) != 1 {
		t.Fatalf("expected 1 command, got %d", len(rec.Commands))
	}

	c := rec.Commands[0]
	if c.Command != "curl" || c.Args != "-s http://localhost" {
		t.Errorf("command=%q args=%q", c.Command, c.Args)
	}
	if c.Stdout != "200" {
		t.Errorf("stdout=%q, want 200", c.Stdout)
	}
}

func TestRecorder_RedactsSecrets(t *testing.T) {
	inner := &mockExecutor{
		result: &providers.CommandResult{
			ExitCode: 0,
			Stdout:   []byte("auth: token=supersecret123"),
		},
	}

	rules, err := governance.CompileRedactionRules([]governance.RedactionRule{
		{Pattern: `token=\S+`, Replace: "token=<REDACTED>"},
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := New(inner)
	rec.SetRedactions(rules)

	if _, err := rec.Execute(context.Background(), "curl", nil, nil); err != nil {
		t.Fatal(err)
	}

	if got := rec.Commands[0].Stdout; got != "auth: token=<REDACTED>" {
		t.Errorf("stdout=%q, want redacted", got)
	}
}

func TestRecorder_WriteTranscript(t *testing.T) {
	inner := &mockExecutor{
		result: &providers.CommandResult{ExitCode: 1, Stderr: []byte("boom")},
	}

	rec := New(inner)
	if _, err := rec.Execute(context.Background(), "sh", []string{"-c", "exit 1"}, nil); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "transcript.yaml")
	if err := rec.WriteTranscript(path, "deploy.md"); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	if !strings.Contains(out, "playbook: deploy.md") {
		t.Errorf("missing playbook name:\n%s", out)
	}
	if !strings.Contains(out, "exit_code: 1") || !strings.Contains(out, "boom") {
		t.Errorf("missing command details:\n%s", out)
	}
}
