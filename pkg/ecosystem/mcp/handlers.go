package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/skaldhq/skald/pkg/config"
	"github.com/skaldhq/skald/pkg/parser"
	"github.com/skaldhq/skald/pkg/playbook"
	"github.com/skaldhq/skald/pkg/providers"
	"github.com/skaldhq/skald/pkg/runtime"
	"github.com/skaldhq/skald/pkg/skills"
)

// HandleValidate implements the skald/validate MCP tool. It accepts either
// a file path or inline playbook text, and reports parse diagnostics plus
// per-skill validation of every annotation.
func HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	text, _ := args["text"].(string)

	if path == "" && text == "" {
		return errorResult("either path or text is required"), nil
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return errorResult(fmt.Sprintf("read playbook: %s", err)), nil
		}
		text = string(data)
	}

	pb := parser.Parse(text)

	blocks := make([]map[string]any, 0, len(pb.Blocks))
	for _, b := range pb.Blocks {
		info := map[string]any{
			"name": b.Name,
			"line": b.Line,
		}
		if b.Language != "" {
			info["language"] = b.Language
		}
		if len(b.Flags) > 0 {
			var names []string
			for _, f := range b.Flags {
				if f.Name != "" {
					names = append(names, f.Name)
				}
			}
			info["flags"] = names
		}
		blocks = append(blocks, info)
	}

	reg := skills.Builtins()
	var skillErrs, skillWarns []map[string]any
	for _, b := range pb.Annotations() {
		res := reg.Validate(b)
		for _, msg := range res.Errors {
			skillErrs = append(skillErrs, map[string]any{"line": b.Line, "skill": b.Name, "message": msg})
		}
		for _, msg := range res.Warnings {
			skillWarns = append(skillWarns, map[string]any{"line": b.Line, "skill": b.Name, "message": msg})
		}
	}

	failed := pb.HasCriticalErrors() || len(skillErrs) > 0
	response := map[string]any{
		"blocks":     blocks,
		"errors":     pb.Errors,
		"executable": !failed,
	}
	if len(skillErrs) > 0 {
		response["skill_errors"] = skillErrs
	}
	if len(skillWarns) > 0 {
		response["skill_warnings"] = skillWarns
	}
	data, _ := json.MarshalIndent(response, "", "  ")

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: failed,
	}, nil
}

// HandleSchema implements the skald/schema MCP tool.
func HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := config.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleRun implements the skald/run MCP tool.
func HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	path, _ := args["path"].(string)
	if path == "" {
		return errorResult("path argument is required"), nil
	}
	mode, _ := args["mode"].(string)
	if mode == "" {
		mode = "dry-run" // safe default for AI agents
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errorResult(fmt.Sprintf("read playbook: %s", err)), nil
	}
	pb := parser.ParseBytes(data)
	if pb.HasCriticalErrors() {
		return errorResult(formatErrors(pb.Errors)), nil
	}

	exec, err := buildExecutor(mode, filepath.Dir(path))
	if err != nil {
		return errorResult(err.Error()), nil
	}

	sess := runtime.NewSession(filepath.Base(path), runtime.Hooks{})
	runErr := exec.Run(ctx, sess, pb)

	response := map[string]any{
		"mode":  mode,
		"state": string(sess.State()),
	}
	if runErr != nil {
		response["error"] = runErr.Error()
		_, failed := sess.Highlights()
		if failed != 0 {
			response["failed_line"] = failed
		}
	}
	if vars := sess.VarsSnapshot(); len(vars) > 0 {
		response["vars"] = vars
	}

	store := sess.Contexts()
	ctxs := make(map[string]any)
	for _, name := range store.Names() {
		if msgs, ok := store.MessagesIn(name); ok {
			ctxs[name] = msgs
		}
	}
	response["contexts"] = ctxs

	out, _ := json.MarshalIndent(response, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(out))},
		IsError: runErr != nil,
	}, nil
}

// buildExecutor assembles the run collaborators for the requested mode.
// Real mode needs a configured model endpoint; dry-run never touches the
// network or the shell.
func buildExecutor(mode, dir string) (*runtime.Executor, error) {
	cfg, _, err := config.Discover(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
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
			return nil, fmt.Errorf("model config: %w", err)
		}
		if model == nil {
			return nil, fmt.Errorf("real mode requires a configured model endpoint")
		}
		commands = &providers.RealExecutor{}
	default:
		return nil, fmt.Errorf("unknown mode %q — use 'dry-run' or 'real'", mode)
	}

	exec := runtime.NewExecutor(skills.Builtins(), model, commands)
	exec.Gov = cfg.GovernanceEngine()
	if exec.Redactions, err = cfg.Redactions(); err != nil {
		return nil, fmt.Errorf("redaction config: %w", err)
	}
	return exec, nil
}

func formatErrors(errs []*playbook.ParseError) string {
	var msgs []string
	for _, e := range errs {
		if e.Severity == playbook.SeverityCritical {
			msgs = append(msgs, e.Error())
		}
	}
	return strings.Join(msgs, "; ")
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
