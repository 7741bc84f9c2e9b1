// Package main provides the skald-tui binary — Bubble Tea terminal runner.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/skaldhq/skald/pkg/config"
	"github.com/skaldhq/skald/pkg/parser"
	"github.com/skaldhq/skald/pkg/playbook"
	"github.com/skaldhq/skald/pkg/providers"
	"github.com/skaldhq/skald/pkg/runtime"
	"github.com/skaldhq/skald/pkg/skills"
	"github.com/skaldhq/skald/pkg/tui"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: skald-tui <playbook.md> [--mode real|dry-run]")
		os.Exit(1)
	}

	filePath := os.Args[1]
	mode := "dry-run"

	for i := 2; i < len(os.Args); i++ {
		if os.Args[i] == "--mode" && i+1 < len(os.Args) {
			i++
			mode = os.Args[i]
		}
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	pb := parser.ParseBytes(data)
	if pb.HasCriticalErrors() {
		for _, e := range pb.Errors {
			if e.Severity == playbook.SeverityCritical {
				fmt.Fprintf(os.Stderr, "  ✗ line %d: %s\n", e.Line, e.Message)
			}
		}
		fmt.Fprintln(os.Stderr, "Validation failed")
		os.Exit(1)
	}

	exec, err := buildExecutor(mode, filepath.Dir(filePath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := tui.Run(filepath.Base(filePath), pb, exec); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func buildExecutor(mode, dir string) (*runtime.Executor, error) {
	cfg, _, err := config.Discover(dir)
	if err != nil {
		return nil, err
	}

	var model providers.ModelClient
	var commands providers.CommandExecutor

	switch mode {
	case "dry-run":
		model = &providers.DryRunModelClient{}
		commands = &providers.DryRunExecutor{}
	case "real":
		model, err = cfg.ModelClient()
		if err != nil {
			return nil, err
		}
		if model == nil {
			return nil, fmt.Errorf("no model configured — add a models: section to %s or use --mode dry-run", config.DefaultFileName)
		}
		commands = &providers.RealExecutor{}
	default:
		return nil, fmt.Errorf("unknown mode %q: use real or dry-run", mode)
	}

	exec := runtime.NewExecutor(skills.Builtins(), model, commands)
	exec.Gov = cfg.GovernanceEngine()
	if exec.Redactions, err = cfg.Redactions(); err != nil {
		return nil, err
	}
	return exec, nil
}
