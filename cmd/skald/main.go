package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skaldhq/skald/pkg/config"
	"github.com/skaldhq/skald/pkg/debugger"
	"github.com/skaldhq/skald/pkg/ecosystem/recorder"
	"github.com/skaldhq/skald/pkg/parser"
	"github.com/skaldhq/skald/pkg/playbook"
	"github.com/skaldhq/skald/pkg/providers"
	"github.com/skaldhq/skald/pkg/runtime"
	"github.com/skaldhq/skald/pkg/serve"
	"github.com/skaldhq/skald/pkg/skills"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	loadDotEnv() // load .env file if present (gitignored)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadDotEnv reads a .env file from the working directory and sets
// any variables that aren't already set in the environment.
// Lines are KEY=VALUE (or KEY="VALUE"). Comments (#) and blanks are skipped.
// The .env file is gitignored so secrets never end up in source control.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return // no .env file — that's fine
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.TrimSpace(parts[1])
		// Remove surrounding quotes
		val = strings.Trim(val, `"'`)
		// Don't overwrite existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:   "skald",
	Short: "Markdown playbook engine",
	Long:  "skald — parse and execute annotated markdown playbooks with AI model tasks, governed shell steps, and conversation contexts.",
}

// --- validate ---

var validateCmd = &cobra.Command{
	Use:   "validate [playbook.md]",
	Short: "Parse a playbook and report blocks and diagnostics",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	// Config files get the config validator; everything else is a playbook.
	if filepath.Base(filePath) == config.DefaultFileName ||
		strings.HasSuffix(filePath, ".yaml") || strings.HasSuffix(filePath, ".yml") {
		return validateConfig(filePath)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read %s: %w", filePath, err)
	}
	pb := parser.ParseBytes(data)

	for _, e := range pb.Errors {
		switch e.Severity {
		case playbook.SeverityCritical:
			fmt.Fprintf(os.Stderr, "  ✗ line %d: [%s] %s\n", e.Line, e.Type, e.Message)
		default:
			fmt.Fprintf(os.Stderr, "  ⚠ line %d: [%s] %s\n", e.Line, e.Type, e.Message)
		}
	}

	// Per-skill checks catch what the parser cannot: unknown annotation
	// names, missing required flags, malformed flag values.
	reg := skills.Builtins()
	var skillErrs int
	for _, b := range pb.Annotations() {
		res := reg.Validate(b)
		for _, w := range res.Warnings {
			fmt.Fprintf(os.Stderr, "  ⚠ line %d: @%s: %s\n", b.Line, b.Name, w)
		}
		for _, msg := range res.Errors {
			skillErrs++
			fmt.Fprintf(os.Stderr, "  ✗ line %d: @%s: %s\n", b.Line, b.Name, msg)
		}
	}

	if pb.HasCriticalErrors() || skillErrs > 0 {
		return fmt.Errorf("validation failed: playbook is not executable")
	}
	fmt.Printf("✓ %s is valid (%d blocks, %d annotations)\n",
		filePath, len(pb.Blocks), len(pb.Annotations()))
	return nil
}

func validateConfig(filePath string) error {
	cfg, errs := config.ValidateFile(filePath)
	var failed bool
	for _, e := range errs {
		if e.Severity == "warning" {
			fmt.Fprintf(os.Stderr, "  ⚠ [%s] %s\n", e.Phase, e.Message)
			continue
		}
		failed = true
		fmt.Fprintf(os.Stderr, "  ✗ [%s] %s\n", e.Phase, e.Message)
		if e.Path != "" {
			fmt.Fprintf(os.Stderr, "    at: %s\n", e.Path)
		}
	}
	if failed {
		return fmt.Errorf("validation failed")
	}
	fmt.Printf("✓ %s is valid (%d models)\n", filePath, len(cfg.Models))
	return nil
}

// --- run ---

var (
	runMode   string
	runVars   []string
	runRecord string
)

var runCmd = &cobra.Command{
	Use:   "run [playbook.md]",
	Short: "Execute a playbook top to bottom",
	Args:  cobra.ExactArgs(1),
	RunE:  runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	pb, err := loadPlaybook(filePath)
	if err != nil {
		return err
	}

	exec, err := buildExecutor(runMode, filepath.Dir(filePath))
	if err != nil {
		return err
	}

	var rec *recorder.Recorder
	if runRecord != "" {
		rec = recorder.New(exec.Commands)
		rec.SetRedactions(exec.Redactions)
		exec.Commands = rec
	}

	hooks := runtime.Hooks{
		OnHighlight: func(id string, current, failed int) {
			if failed != 0 {
				fmt.Printf("  ✗ line %d\n", failed)
			} else if current != 0 {
				fmt.Printf("  ▸ line %d\n", current)
			}
		},
	}
	sess := runtime.NewSession(filepath.Base(filePath), hooks)
	if err := applyVars(sess, runVars); err != nil {
		return err
	}

	fmt.Printf("Mode: %s\n", runMode)
	runErr := exec.Run(context.Background(), sess, pb)

	// Write the transcript even for failed runs — that is when it is
	// most useful.
	if rec != nil {
		if err := rec.WriteTranscript(runRecord, filepath.Base(filePath)); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write transcript: %v\n", err)
		} else {
			fmt.Printf("  Transcript: %s\n", runRecord)
		}
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", runErr)
		os.Exit(1)
	}

	store := sess.Contexts()
	fmt.Printf("✓ completed (%d context messages)\n", store.Len())
	return nil
}

// --- debug ---

var (
	debugMode string
	debugVars []string
)

var debugCmd = &cobra.Command{
	Use:   "debug [playbook.md]",
	Short: "Step through a playbook interactively",
	Args:  cobra.ExactArgs(1),
	RunE:  runDebug,
}

func runDebug(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	pb, err := loadPlaybook(filePath)
	if err != nil {
		return err
	}

	exec, err := buildExecutor(debugMode, filepath.Dir(filePath))
	if err != nil {
		return err
	}

	d, err := debugger.New(pb, exec)
	if err != nil {
		return fmt.Errorf("create debugger: %w", err)
	}
	if err := applyVars(d.Session(), debugVars); err != nil {
		return err
	}
	return d.Run(context.Background())
}

// --- serve ---

var (
	serveLogLevel string
	serveLogFile  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start JSON-RPC server for editor integration (stdio)",
	Long: `Start a JSON-RPC server that communicates over stdin/stdout.
Used by editor extensions to drive playbook execution interactively.
Messages are newline-delimited JSON-RPC 2.0.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		switch serveLogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
		log, closer, err := serve.NewLogger(level, serveLogFile)
		if err != nil {
			return fmt.Errorf("logger setup: %w", err)
		}
		defer closer.Close()

		cwd, _ := os.Getwd()
		exec, err := buildExecutor("real", cwd)
		if err != nil {
			return err
		}
		return serve.New(exec, log).Run()
	},
}

// --- schema export ---

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Schema operations",
}

var schemaExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the config JSON Schema to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := config.GenerateJSONSchema()
		if err != nil {
			return fmt.Errorf("generate schema: %w", err)
		}
		var out json.RawMessage = data
		formatted, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			fmt.Println(string(data))
			return nil
		}
		fmt.Println(string(formatted))
		return nil
	},
}

// --- version ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("skald %s (build: %s)\n", version, commit)
	},
}

// --- shared helpers ---

// loadPlaybook reads and parses a playbook, printing diagnostics and
// rejecting documents with critical errors.
func loadPlaybook(filePath string) (*playbook.Playbook, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filePath, err)
	}
	pb := parser.ParseBytes(data)
	for _, e := range pb.Errors {
		if e.Severity != playbook.SeverityCritical {
			fmt.Fprintf(os.Stderr, "  ⚠ line %d: %s\n", e.Line, e.Message)
		}
	}
	if pb.HasCriticalErrors() {
		for _, e := range pb.Errors {
			if e.Severity == playbook.SeverityCritical {
				fmt.Fprintf(os.Stderr, "  ✗ line %d: %s\n", e.Line, e.Message)
			}
		}
		return nil, fmt.Errorf("playbook has critical parse errors")
	}
	return pb, nil
}

// buildExecutor assembles run collaborators for the requested mode using
// the discovered project config.
func buildExecutor(mode, dir string) (*runtime.Executor, error) {
	cfg, cfgPath, err := config.Discover(dir)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
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
			return nil, fmt.Errorf("no model configured — add a models: section to %s or use --mode dry-run", config.DefaultFileName)
		}
		commands = &providers.RealExecutor{}
	default:
		return nil, fmt.Errorf("unknown mode %q: use real or dry-run", mode)
	}

	exec := runtime.NewExecutor(skills.Builtins(), model, commands)
	exec.Gov = cfg.GovernanceEngine()
	if exec.Redactions, err = cfg.Redactions(); err != nil {
		return nil, fmt.Errorf("redaction config: %w", err)
	}
	return exec, nil
}

// applyVars seeds key=value pairs into the session.
func applyVars(sess *runtime.Session, pairs []string) error {
	for _, v := range pairs {
		parts := strings.SplitN(v, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid --var %q: expected key=value", v)
		}
		sess.SetVar(parts[0], parts[1])
	}
	return nil
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", "real", "Execution mode: real or dry-run")
	runCmd.Flags().StringArrayVar(&runVars, "var", nil, "Set a session variable (key=value), repeatable")
	runCmd.Flags().StringVar(&runRecord, "record", "", "Save executed commands as a YAML transcript to this path")

	debugCmd.Flags().StringVar(&debugMode, "mode", "dry-run", "Execution mode: real or dry-run")
	debugCmd.Flags().StringArrayVar(&debugVars, "var", nil, "Set a session variable (key=value), repeatable")

	serveCmd.Flags().StringVar(&serveLogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "Also write JSON logs to this file")

	schemaCmd.AddCommand(schemaExportCmd)

	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(debugCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}
