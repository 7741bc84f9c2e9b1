package providers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/skaldhq/skald/pkg/contexts"
)

func TestHTTPModelClientSelectModel(t *testing.T) {
	client, err := NewHTTPModelClient([]ModelSpec{
		{ID: "alpha", Endpoint: "http://localhost/v1/chat/completions"},
		{ID: "beta", Endpoint: "http://localhost/v1/chat/completions"},
	}, "alpha")
	if err != nil {
		t.Fatalf("NewHTTPModelClient: %v", err)
	}

	if err := client.SelectModel("beta"); err != nil {
		t.Errorf("select configured model: %v", err)
	}
	if client.SelectedModel() != "beta" {
		t.Errorf("selected = %q", client.SelectedModel())
	}

	// Unknown id must fail and leave the selection untouched.
	if err := client.SelectModel("gamma"); err == nil {
		t.Error("selecting an unconfigured model must fail")
	}
	if client.SelectedModel() != "beta" {
		t.Errorf("failed selection changed the active model to %q", client.SelectedModel())
	}
}

func TestHTTPModelClientUnknownDefault(t *testing.T) {
	_, err := NewHTTPModelClient([]ModelSpec{{ID: "alpha"}}, "missing")
	if err == nil {
		t.Error("unknown default model must be rejected")
	}
}

func TestHTTPModelClientSendRequest(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "the reply"}},
			},
		})
	}))
	defer srv.Close()

	client, err := NewHTTPModelClient([]ModelSpec{{ID: "alpha", Endpoint: srv.URL}}, "alpha")
	if err != nil {
		t.Fatalf("NewHTTPModelClient: %v", err)
	}

	history := []contexts.Message{
		{Role: contexts.RoleAgent, Content: "narrative"},
		{Role: contexts.RoleAssistant, Content: "earlier reply"},
	}
	resp, err := client.SendRequest(context.Background(), contexts.RoleUser, "question", history, nil)
	if err != nil {
		t.Fatalf("SendRequest: %v", err)
	}
	if resp.Reply != "the reply" {
		t.Errorf("reply = %q", resp.Reply)
	}

	if len(got.Messages) != 3 {
		t.Fatalf("wire messages = %+v", got.Messages)
	}
	// Agent narrative goes over the wire as user content.
	if got.Messages[0].Role != "user" || got.Messages[1].Role != "assistant" {
		t.Errorf("wire roles = %q, %q", got.Messages[0].Role, got.Messages[1].Role)
	}
	if got.Messages[2].Content != "question" {
		t.Errorf("prompt not last: %+v", got.Messages)
	}
}

func TestHTTPModelClientErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad key"}})
	}))
	defer srv.Close()

	client, _ := NewHTTPModelClient([]ModelSpec{{ID: "alpha", Endpoint: srv.URL}}, "alpha")
	_, err := client.SendRequest(context.Background(), "user", "hi", nil, nil)
	if err == nil || !strings.Contains(err.Error(), "bad key") {
		t.Errorf("err = %v, want transport error surfaced", err)
	}
}

func TestReplayModelClient(t *testing.T) {
	client := &ReplayModelClient{Replies: []string{"one", "two"}}

	for _, want := range []string{"one", "two"} {
		resp, err := client.SendRequest(context.Background(), "user", "q", nil, nil)
		if err != nil {
			t.Fatalf("SendRequest: %v", err)
		}
		if resp.Reply != want {
			t.Errorf("reply = %q, want %q", resp.Reply, want)
		}
	}
	if _, err := client.SendRequest(context.Background(), "user", "q", nil, nil); err == nil {
		t.Error("exhausted replay must fail")
	}
}

func TestDryRunExecutorRecordsCommands(t *testing.T) {
	ex := &DryRunExecutor{}
	res, err := ex.Execute(context.Background(), "kubectl", []string{"get", "pods"}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(res.Stdout) != DryRunPlaceholder || res.ExitCode != 0 {
		t.Errorf("result = %+v", res)
	}
	if len(ex.Commands) != 1 || ex.Commands[0] != "kubectl get pods" {
		t.Errorf("commands = %v", ex.Commands)
	}
}

func TestRealExecutorExitCode(t *testing.T) {
	ex := &RealExecutor{}
	res, err := ex.Execute(context.Background(), "sh", []string{"-c", "echo out; echo err >&2; exit 3"}, nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", res.ExitCode)
	}
	if strings.TrimSpace(string(res.Stdout)) != "out" || strings.TrimSpace(string(res.Stderr)) != "err" {
		t.Errorf("stdout=%q stderr=%q", res.Stdout, res.Stderr)
	}
}
