package skills

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/skaldhq/skald/pkg/contexts"
	"github.com/skaldhq/skald/pkg/governance"
	"github.com/skaldhq/skald/pkg/playbook"
	"github.com/skaldhq/skald/pkg/providers"
)

// fakeAPI is a minimal capability surface for exercising skills directly.
type fakeAPI struct {
	store      *contexts.Store
	model      providers.ModelClient
	exec       providers.CommandExecutor
	gov        *governance.Engine
	redactions []*governance.CompiledRedaction
	next       *playbook.Block
	consumed   bool
	vars       map[string]string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		store: contexts.NewStore(),
		model: &providers.ReplayModelClient{Replies: []string{"scripted reply"}},
		exec:  &providers.DryRunExecutor{},
		gov:   governance.NewEngine(nil),
		vars:  make(map[string]string),
	}
}

func (a *fakeAPI) ContextMessages() []contexts.Message          { return a.store.Messages() }
func (a *fakeAPI) SelectContext(name string)                    { a.store.Select(name) }
func (a *fakeAPI) Model() providers.ModelClient                 { return a.model }
func (a *fakeAPI) Executor() providers.CommandExecutor          { return a.exec }
func (a *fakeAPI) Governance() *governance.Engine               { return a.gov }
func (a *fakeAPI) Redactions() []*governance.CompiledRedaction  { return a.redactions }
func (a *fakeAPI) Var(name string) (string, bool)               { v, ok := a.vars[name]; return v, ok }
func (a *fakeAPI) SetVar(name, value string)                    { a.vars[name] = value }

func (a *fakeAPI) ConsumeNextBlock(kind string) *playbook.Block {
	if a.next == nil || a.next.Name != kind {
		return nil
	}
	a.consumed = true
	return a.next
}

// fakeExecutor returns one scripted result for every call.
type fakeExecutor struct {
	result   *providers.CommandResult
	err      error
	commands []string
	args     [][]string
	envs     [][]string
}

func (f *fakeExecutor) Execute(ctx context.Context, command string, args []string, env []string) (*providers.CommandResult, error) {
	f.commands = append(f.commands, command)
	f.args = append(f.args, args)
	f.envs = append(f.envs, env)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func annotation(name string, flags ...playbook.Flag) *playbook.Block {
	return &playbook.Block{Name: name, Flags: flags, Line: 1}
}

func flag(name string, values ...string) playbook.Flag {
	if values == nil {
		values = []string{}
	}
	return playbook.Flag{Name: name, Value: values}
}

func TestTaskSkillSendsPromptAndCollectsReply(t *testing.T) {
	api := newFakeAPI()
	block := annotation("task", flag("prompt", "summarize the logs"))

	res, err := (&TaskSkill{}).Execute(context.Background(), api, block)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Messages) != 2 {
		t.Fatalf("messages = %+v", res.Messages)
	}
	if res.Messages[0].Role != contexts.RoleUser || res.Messages[0].Content != "summarize the logs" {
		t.Errorf("prompt message = %+v", res.Messages[0])
	}
	if res.Messages[1].Role != contexts.RoleAssistant || res.Messages[1].Content != "scripted reply" {
		t.Errorf("reply message = %+v", res.Messages[1])
	}
	// The skill returns messages; it must not have appended them itself.
	if api.store.Len() != 0 {
		t.Errorf("skill wrote to context directly: %+v", api.store.Messages())
	}
}

func TestTaskSkillPositionalPrompt(t *testing.T) {
	api := newFakeAPI()
	block := annotation("task", flag("", "check", "disk", "space"))

	res, err := (&TaskSkill{}).Execute(context.Background(), api, block)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Messages[0].Content != "check disk space" {
		t.Errorf("prompt = %q", res.Messages[0].Content)
	}
}

func TestTaskSkillExpandsVars(t *testing.T) {
	api := newFakeAPI()
	api.SetVar("service", "billing")
	block := annotation("task", flag("prompt", "restart ${service} and ${unknown}"))

	res, err := (&TaskSkill{}).Execute(context.Background(), api, block)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.Messages[0].Content != "restart billing and ${unknown}" {
		t.Errorf("prompt = %q", res.Messages[0].Content)
	}
}

func TestTaskSkillTransportErrorPropagates(t *testing.T) {
	api := newFakeAPI()
	api.model = &providers.ReplayModelClient{Err: errors.New("transport down")}
	block := annotation("task", flag("prompt", "hi"))

	if _, err := (&TaskSkill{}).Execute(context.Background(), api, block); err == nil {
		t.Error("transport failure must fail the step")
	}
}

func TestTaskSkillValidate(t *testing.T) {
	s := &TaskSkill{}
	if r := s.Validate(annotation("task")); r.Valid {
		t.Error("task without a prompt must be invalid")
	}
	if r := s.Validate(annotation("task", flag("prompt", "x"), flag("temperature", "warm"))); r.Valid {
		t.Error("non-numeric temperature must be invalid")
	}
	if r := s.Validate(annotation("task", flag("prompt", "x"), flag("temperature", "0.2"))); !r.Valid {
		t.Errorf("valid task rejected: %v", r.Errors)
	}
}

func TestContextSkillSelects(t *testing.T) {
	api := newFakeAPI()
	block := annotation("context", flag("", "investigation"))

	res, err := (&ContextSkill{}).Execute(context.Background(), api, block)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(res.Messages) != 0 {
		t.Errorf("context switch produced messages: %+v", res.Messages)
	}
	if api.store.SelectedName() != "investigation" {
		t.Errorf("selected = %q", api.store.SelectedName())
	}
}

func TestModelSkillNoSilentFallback(t *testing.T) {
	api := newFakeAPI()
	api.model = &providers.ReplayModelClient{RejectModels: []string{"missing-model"}}

	block := annotation("model", flag("", "missing-model"))
	if _, err := (&ModelSkill{}).Execute(context.Background(), api, block); err == nil {
		t.Error("rejected model selection must fail the step")
	}

	block = annotation("model", flag("id", "gpt-4o"))
	if _, err := (&ModelSkill{}).Execute(context.Background(), api, block); err != nil {
		t.Errorf("valid selection failed: %v", err)
	}
}

func codePayload(lang, content string) *playbook.Block {
	return &playbook.Block{Name: playbook.PlainCodeBlock, Content: content, Language: lang, Line: 2}
}

func TestRunSkillExecutesPayload(t *testing.T) {
	api := newFakeAPI()
	exec := &fakeExecutor{result: &providers.CommandResult{Stdout: []byte("deployed ok\n")}}
	api.exec = exec
	api.next = codePayload("bash", "./deploy.sh")

	block := annotation("run")
	res, err := (&RunSkill{}).Execute(context.Background(), api, block)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !api.consumed {
		t.Error("payload block was not consumed")
	}
	if exec.commands[0] != "bash" || exec.args[0][0] != "-c" || exec.args[0][1] != "./deploy.sh" {
		t.Errorf("invocation = %s %v", exec.commands[0], exec.args[0])
	}
	if len(res.Messages) != 1 || res.Messages[0].Role != contexts.RoleAgent {
		t.Fatalf("messages = %+v", res.Messages)
	}
	if res.Messages[0].Content != "deployed ok\n" {
		t.Errorf("output = %q", res.Messages[0].Content)
	}
}

func TestRunSkillRequiresPayload(t *testing.T) {
	api := newFakeAPI()
	if _, err := (&RunSkill{}).Execute(context.Background(), api, annotation("run")); err == nil {
		t.Error("run without a following code block must fail")
	}
}

func TestRunSkillNonZeroExitFails(t *testing.T) {
	api := newFakeAPI()
	api.exec = &fakeExecutor{result: &providers.CommandResult{Stdout: []byte("boom"), ExitCode: 2}}
	api.next = codePayload("sh", "exit 2")

	if _, err := (&RunSkill{}).Execute(context.Background(), api, annotation("run")); err == nil {
		t.Error("non-zero exit without an expectation must fail")
	}
}

func TestRunSkillExpectedExitPasses(t *testing.T) {
	api := newFakeAPI()
	api.exec = &fakeExecutor{result: &providers.CommandResult{ExitCode: 2}}
	api.next = codePayload("sh", "exit 2")

	block := annotation("run", flag("expect-exit", "2"))
	if _, err := (&RunSkill{}).Execute(context.Background(), api, block); err != nil {
		t.Errorf("expected exit code rejected: %v", err)
	}
}

func TestRunSkillAssertionFailure(t *testing.T) {
	api := newFakeAPI()
	api.exec = &fakeExecutor{result: &providers.CommandResult{Stdout: []byte("error: timeout")}}
	api.next = codePayload("sh", "./check.sh")

	block := annotation("run", flag("expect-contains", "healthy"))
	_, err := (&RunSkill{}).Execute(context.Background(), api, block)
	if err == nil || !strings.Contains(err.Error(), "assertion failed") {
		t.Errorf("err = %v", err)
	}
}

func TestRunSkillGovernanceDeniesInterpreter(t *testing.T) {
	api := newFakeAPI()
	api.gov = governance.NewEngine(&governance.Policy{DeniedCommands: []string{"bash"}})
	api.next = codePayload("bash", "whoami")

	if _, err := (&RunSkill{}).Execute(context.Background(), api, annotation("run")); err == nil {
		t.Error("denied interpreter must fail before executing")
	}
}

func TestRunSkillEnvFlags(t *testing.T) {
	api := newFakeAPI()
	api.SetVar("region", "us-east-1")
	exec := &fakeExecutor{result: &providers.CommandResult{}}
	api.exec = exec
	api.next = codePayload("sh", "env")

	block := annotation("run", flag("env", "REGION=${region}", "STAGE=prod"))
	if _, err := (&RunSkill{}).Execute(context.Background(), api, block); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	want := []string{"REGION=us-east-1", "STAGE=prod"}
	if len(exec.envs[0]) != 2 || exec.envs[0][0] != want[0] || exec.envs[0][1] != want[1] {
		t.Errorf("env = %v", exec.envs[0])
	}

	api.gov = governance.NewEngine(&governance.Policy{DenyEnvVars: []string{"AWS_*"}})
	api.consumed = false
	block = annotation("run", flag("env", "AWS_SECRET_ACCESS_KEY=x"))
	if _, err := (&RunSkill{}).Execute(context.Background(), api, block); err == nil {
		t.Error("denied env var must fail")
	}
}

func TestRunSkillRedactsOutput(t *testing.T) {
	api := newFakeAPI()
	rules, err := governance.CompileRedactionRules([]governance.RedactionRule{
		{Pattern: `token=\S+`, Replace: "token=[REDACTED]"},
	})
	if err != nil {
		t.Fatalf("CompileRedactionRules: %v", err)
	}
	api.redactions = rules
	api.exec = &fakeExecutor{result: &providers.CommandResult{Stdout: []byte("token=abc123 done")}}
	api.next = codePayload("sh", "./login.sh")

	res, err := (&RunSkill{}).Execute(context.Background(), api, annotation("run"))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.Contains(res.Messages[0].Content, "abc123") {
		t.Errorf("secret survived redaction: %q", res.Messages[0].Content)
	}
}

func TestRunSkillUnknownLanguage(t *testing.T) {
	api := newFakeAPI()
	api.next = codePayload("cobol", "DISPLAY 'HI'")
	if _, err := (&RunSkill{}).Execute(context.Background(), api, annotation("run")); err == nil {
		t.Error("unmapped language must fail")
	}
}

func TestFileSkillLoadAndSave(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(src, []byte("incident notes"), 0o644); err != nil {
		t.Fatal(err)
	}

	api := newFakeAPI()
	res, err := (&FileSkill{}).Execute(context.Background(), api, annotation("file", flag("load", src)))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(res.Messages) != 1 || res.Messages[0].Role != contexts.RoleAgent || res.Messages[0].Content != "incident notes" {
		t.Errorf("messages = %+v", res.Messages)
	}

	// Save writes the latest assistant reply.
	api.store.Append(
		contexts.Message{Role: contexts.RoleAssistant, Content: "draft"},
		contexts.Message{Role: contexts.RoleAssistant, Content: "final summary"},
	)
	out := filepath.Join(dir, "out", "summary.md")
	if _, err := (&FileSkill{}).Execute(context.Background(), api, annotation("file", flag("save", out))); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if string(data) != "final summary" {
		t.Errorf("saved = %q", data)
	}
}

func TestFileSkillSaveWithoutReply(t *testing.T) {
	api := newFakeAPI()
	out := filepath.Join(t.TempDir(), "x.md")
	if _, err := (&FileSkill{}).Execute(context.Background(), api, annotation("file", flag("save", out))); err == nil {
		t.Error("save with no assistant reply must fail")
	}
}

func TestSetSkillWritesVars(t *testing.T) {
	api := newFakeAPI()
	block := annotation("set", flag("env", "prod"), flag("region", "us", "east"))

	if _, err := (&SetSkill{}).Execute(context.Background(), api, block); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if v, _ := api.Var("env"); v != "prod" {
		t.Errorf("env = %q", v)
	}
	if v, _ := api.Var("region"); v != "us east" {
		t.Errorf("region = %q", v)
	}
}

func TestSetSkillIgnoresWhenFlag(t *testing.T) {
	api := newFakeAPI()
	block := annotation("set", flag("when", "env == 'prod'"), flag("target", "prod"))

	if _, err := (&SetSkill{}).Execute(context.Background(), api, block); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if _, ok := api.Var("when"); ok {
		t.Error("condition flag leaked into session variables")
	}
	if v, _ := api.Var("target"); v != "prod" {
		t.Errorf("target = %q", v)
	}

	if r := (&SetSkill{}).Validate(annotation("set", flag("when", "x"))); r.Valid {
		t.Error("set with only a condition flag must be invalid")
	}
}

func TestRegistryDispatchUnknownSkill(t *testing.T) {
	r := Builtins()
	api := newFakeAPI()

	_, err := r.Dispatch(context.Background(), api, annotation("teleport"))
	if !errors.Is(err, ErrSkillNotFound) {
		t.Errorf("err = %v, want ErrSkillNotFound", err)
	}
}

func TestRegistryCaseSensitiveLookup(t *testing.T) {
	r := Builtins()
	if _, ok := r.Lookup("Task"); ok {
		t.Error("lookup must be case-sensitive")
	}
	if _, ok := r.Lookup("task"); !ok {
		t.Error("builtin task missing")
	}
}

func TestRegistryValidateUnknownName(t *testing.T) {
	r := Builtins()
	if res := r.Validate(annotation("teleport")); res.Valid {
		t.Error("unknown skill must fail validation")
	}
}
