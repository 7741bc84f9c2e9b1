package providers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/skaldhq/skald/pkg/contexts"
)

// Placeholder substituted for real output in dry-run mode.
const DryRunPlaceholder = "<dry-run>"

// DryRunModelClient accepts any model id and answers every request with a
// placeholder, so a playbook can be walked end to end with zero side
// effects.
type DryRunModelClient struct {
	mu       sync.Mutex
	Requests []string
}

func (c *DryRunModelClient) SelectModel(id string) error { return nil }

func (c *DryRunModelClient) SendRequest(ctx context.Context, role, content string, contextMessages []contexts.Message, opts *RequestOptions) (*ModelResponse, error) {
	c.mu.Lock()
	c.Requests = append(c.Requests, content)
	c.mu.Unlock()
	return &ModelResponse{Reply: DryRunPlaceholder, Raw: []byte(DryRunPlaceholder)}, nil
}

// DryRunExecutor records the commands it would run and reports placeholder
// output with exit code 0.
type DryRunExecutor struct {
	mu       sync.Mutex
	Commands []string
}

func (d *DryRunExecutor) Execute(ctx context.Context, command string, args []string, env []string) (*CommandResult, error) {
	d.mu.Lock()
	d.Commands = append(d.Commands, strings.TrimSpace(command+" "+strings.Join(args, " ")))
	d.mu.Unlock()
	return &CommandResult{
		Stdout:   []byte(DryRunPlaceholder),
		ExitCode: 0,
		Duration: time.Duration(0),
	}, nil
}
