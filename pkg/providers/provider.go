// Package providers defines the injected collaborator interfaces the
// executor and skills depend on — the model transport and local command
// execution — together with real, replay and dry-run implementations.
package providers

import (
	"context"
	"time"

	"github.com/skaldhq/skald/pkg/contexts"
)

// ModelSpec describes one configured model endpoint.
type ModelSpec struct {
	ID        string `yaml:"id"                    json:"id"                    jsonschema:"required"`
	Endpoint  string `yaml:"endpoint"              json:"endpoint"              jsonschema:"required"`
	APIKeyEnv string `yaml:"api_key_env,omitempty" json:"api_key_env,omitempty"`
}

// RequestOptions are per-request tuning knobs passed by skills.
type RequestOptions struct {
	Temperature *float64
	MaxTokens   int
}

// ModelResponse is the reply to a single model request.
type ModelResponse struct {
	Reply string
	Raw   []byte
}

// ModelClient abstracts the language-model transport.
// Implementations: HTTPModelClient, ReplayModelClient, DryRunModelClient.
//
// SelectModel must fail for an unknown or misconfigured id — never fall
// back silently to a different model.
type ModelClient interface {
	SelectModel(id string) error
	SendRequest(ctx context.Context, role, content string, contextMessages []contexts.Message, opts *RequestOptions) (*ModelResponse, error)
}

// CommandResult holds the output of a single command execution.
type CommandResult struct {
	Stdout   []byte        `json:"stdout"`
	Stderr   []byte        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// CommandExecutor abstracts real vs dry-run command execution for the run
// skill. Implementations: RealExecutor, DryRunExecutor.
type CommandExecutor interface {
	Execute(ctx context.Context, command string, args []string, env []string) (*CommandResult, error)
}
