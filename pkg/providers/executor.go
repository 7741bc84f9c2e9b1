package providers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// RealExecutor runs commands via os/exec. Extra env entries are appended
// to the parent environment rather than replacing it.
type RealExecutor struct{}

// Execute runs a command, capturing stdout and stderr separately. A
// non-zero exit code is reported in the result, not as an error; only
// failures to start the process at all return an error.
func (r *RealExecutor) Execute(ctx context.Context, command string, args []string, env []string) (*CommandResult, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, command, args...)
	if len(env) > 0 {
		cmd.Env = append(os.Environ(), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		exitErr, ok := err.(*exec.ExitError)
		if !ok {
			return nil, fmt.Errorf("execute command %q: %w", command, err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &CommandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Duration: time.Since(start),
	}, nil
}
