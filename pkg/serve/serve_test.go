package serve

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/skaldhq/skald/pkg/contexts"
	"github.com/skaldhq/skald/pkg/providers"
	"github.com/skaldhq/skald/pkg/runtime"
	"github.com/skaldhq/skald/pkg/skills"
)

// syncBuffer keeps concurrent notification writes from racing the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Messages(t *testing.T) []Message {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var msgs []Message
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m Message
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad message %q: %v", line, err)
		}
		msgs = append(msgs, m)
	}
	return msgs
}

func request(t *testing.T, id int, method string, params any) string {
	t.Helper()
	data, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := json.Marshal(Message{JSONRPC: "2.0", ID: &id, Method: method, Params: data})
	if err != nil {
		t.Fatal(err)
	}
	return string(msg) + "\n"
}

func runServer(t *testing.T, model providers.ModelClient, input string) []Message {
	t.Helper()
	exec := runtime.NewExecutor(skills.Builtins(), model, &providers.DryRunExecutor{})
	out := &syncBuffer{}
	srv := NewWith(strings.NewReader(input), out, exec, nil)
	if err := srv.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out.Messages(t)
}

func resultFor(t *testing.T, msgs []Message, id int) json.RawMessage {
	t.Helper()
	for _, m := range msgs {
		if m.ID != nil && *m.ID == id {
			if m.Error != nil {
				t.Fatalf("request %d failed: %s", id, m.Error.Message)
			}
			return m.Result
		}
	}
	t.Fatalf("no response for id %d in %+v", id, msgs)
	return nil
}

func errorFor(msgs []Message, id int) *RPCError {
	for _, m := range msgs {
		if m.ID != nil && *m.ID == id {
			return m.Error
		}
	}
	return nil
}

func eventsFor(msgs []Message, method string) []json.RawMessage {
	var out []json.RawMessage
	for _, m := range msgs {
		if m.ID == nil && m.Method == method {
			out = append(out, m.Params)
		}
	}
	return out
}

func TestSessionOpenParseStartLifecycle(t *testing.T) {
	doc := "@task --prompt \"summarize\"\n"
	input := request(t, 1, "session/open", SessionParams{Session: "file:///a.md"}) +
		request(t, 2, "playbook/parse", ParseParams{Session: "file:///a.md", Text: doc}) +
		request(t, 3, "exec/start", SessionParams{Session: "file:///a.md"})

	model := &providers.ReplayModelClient{Replies: []string{"summary"}}
	msgs := runServer(t, model, input)

	var opened StateInfo
	if err := json.Unmarshal(resultFor(t, msgs, 1), &opened); err != nil {
		t.Fatal(err)
	}
	if opened.State != "idle" {
		t.Errorf("open state = %q", opened.State)
	}

	var parsed struct {
		Blocks     []BlockInfo `json:"blocks"`
		Executable bool        `json:"executable"`
	}
	if err := json.Unmarshal(resultFor(t, msgs, 2), &parsed); err != nil {
		t.Fatal(err)
	}
	if len(parsed.Blocks) != 1 || parsed.Blocks[0].Name != "task" || !parsed.Executable {
		t.Errorf("parse result = %+v", parsed)
	}

	resultFor(t, msgs, 3)

	// Run completed before Run() returned; state events cover the
	// running and idle transitions.
	var states []string
	for _, raw := range eventsFor(msgs, "exec/state") {
		var st StateInfo
		if err := json.Unmarshal(raw, &st); err != nil {
			t.Fatal(err)
		}
		states = append(states, st.State)
	}
	if len(states) < 2 || states[0] != "running" || states[len(states)-1] != "idle" {
		t.Errorf("state events = %v", states)
	}

	if len(eventsFor(msgs, "exec/block")) == 0 {
		t.Error("no exec/block highlight events")
	}
	if len(model.Requests) != 1 || model.Requests[0] != "summarize" {
		t.Errorf("model requests = %v", model.Requests)
	}
}

func TestExecStartRejectsCriticalErrors(t *testing.T) {
	doc := "```bash\necho hi\n" // unclosed fence
	input := request(t, 1, "session/open", SessionParams{Session: "s"}) +
		request(t, 2, "playbook/parse", ParseParams{Session: "s", Text: doc}) +
		request(t, 3, "exec/start", SessionParams{Session: "s"})

	msgs := runServer(t, &providers.ReplayModelClient{}, input)

	var parsed struct {
		Executable bool `json:"executable"`
	}
	if err := json.Unmarshal(resultFor(t, msgs, 2), &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed.Executable {
		t.Error("critical errors must disable execution")
	}

	rpcErr := errorFor(msgs, 3)
	if rpcErr == nil || !strings.Contains(rpcErr.Message, "critical") {
		t.Errorf("exec/start error = %+v", rpcErr)
	}
}

func TestExecStartWithoutParse(t *testing.T) {
	input := request(t, 1, "session/open", SessionParams{Session: "s"}) +
		request(t, 2, "exec/start", SessionParams{Session: "s"})
	msgs := runServer(t, &providers.ReplayModelClient{}, input)

	if rpcErr := errorFor(msgs, 2); rpcErr == nil {
		t.Error("exec/start before playbook/parse must fail")
	}
}

func TestUnknownMethodAndUnknownSession(t *testing.T) {
	input := request(t, 1, "teleport", nil) +
		request(t, 2, "state/get", SessionParams{Session: "never-opened"})
	msgs := runServer(t, &providers.ReplayModelClient{}, input)

	if rpcErr := errorFor(msgs, 1); rpcErr == nil || rpcErr.Code != -32601 {
		t.Errorf("unknown method error = %+v", rpcErr)
	}
	if rpcErr := errorFor(msgs, 2); rpcErr == nil {
		t.Error("state/get for unopened session must fail")
	}
}

func TestSessionCloseForgetsPlaybook(t *testing.T) {
	doc := "@task --prompt \"x\"\n"
	input := request(t, 1, "session/open", SessionParams{Session: "s"}) +
		request(t, 2, "playbook/parse", ParseParams{Session: "s", Text: doc}) +
		request(t, 3, "session/close", SessionParams{Session: "s"}) +
		request(t, 4, "session/open", SessionParams{Session: "s"}) +
		request(t, 5, "exec/start", SessionParams{Session: "s"})

	msgs := runServer(t, &providers.ReplayModelClient{Replies: []string{"r"}}, input)
	resultFor(t, msgs, 3)
	if rpcErr := errorFor(msgs, 5); rpcErr == nil {
		t.Error("reopened session must not retain the old parse")
	}
}

// gateModel blocks inside its single model request until released,
// holding the session in the running state.
type gateModel struct {
	started chan struct{}
	release chan struct{}
}

func (m *gateModel) SelectModel(id string) error { return nil }

func (m *gateModel) SendRequest(ctx context.Context, role, content string, msgs []contexts.Message, opts *providers.RequestOptions) (*providers.ModelResponse, error) {
	close(m.started)
	<-m.release
	return &providers.ModelResponse{Reply: "done"}, nil
}

func TestExecStartWhileRunningConflicts(t *testing.T) {
	model := &gateModel{started: make(chan struct{}), release: make(chan struct{})}
	exec := runtime.NewExecutor(skills.Builtins(), model, &providers.DryRunExecutor{})
	out := &syncBuffer{}
	pr, pw := io.Pipe()
	srv := NewWith(pr, out, exec, nil)

	done := make(chan error, 1)
	go func() { done <- srv.Run() }()

	doc := "@task --prompt \"long step\"\n"
	io.WriteString(pw, request(t, 1, "session/open", SessionParams{Session: "s"}))
	io.WriteString(pw, request(t, 2, "playbook/parse", ParseParams{Session: "s", Text: doc}))
	io.WriteString(pw, request(t, 3, "exec/start", SessionParams{Session: "s"}))
	<-model.started

	io.WriteString(pw, request(t, 4, "exec/start", SessionParams{Session: "s"}))

	var rpcErr *RPCError
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if rpcErr = errorFor(out.Messages(t), 4); rpcErr != nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if rpcErr == nil || !strings.Contains(rpcErr.Message, "already running") {
		t.Errorf("second exec/start = %+v, want already-running error", rpcErr)
	}

	close(model.release)
	pw.Close()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	resultFor(t, out.Messages(t), 3)
}

func TestStateGetReportsFailure(t *testing.T) {
	doc := "@task --prompt \"x\"\n"
	// Zero replies: the task fails at line 1.
	input := request(t, 1, "session/open", SessionParams{Session: "s"}) +
		request(t, 2, "playbook/parse", ParseParams{Session: "s", Text: doc}) +
		request(t, 3, "exec/start", SessionParams{Session: "s"})

	msgs := runServer(t, &providers.ReplayModelClient{}, input)
	resultFor(t, msgs, 3)

	// The final exec/state event carries the error state.
	events := eventsFor(msgs, "exec/state")
	if len(events) == 0 {
		t.Fatal("no exec/state events")
	}
	var last StateInfo
	if err := json.Unmarshal(events[len(events)-1], &last); err != nil {
		t.Fatal(err)
	}
	if last.State != "error" {
		t.Errorf("final state = %q, want error", last.State)
	}
}
