package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/skaldhq/skald/pkg/runtime"
)

var (
	watchMode     string
	watchVars     []string
	watchDebounce string
)

var watchCmd = &cobra.Command{
	Use:   "watch [playbook.md]",
	Short: "Re-run a playbook whenever the file changes",
	Long: `Watch a playbook file and re-run it on every save.
Defaults to dry-run mode so an editor save never triggers real side
effects by accident.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	debounce, err := time.ParseDuration(watchDebounce)
	if err != nil {
		return fmt.Errorf("invalid --debounce: %w", err)
	}

	// Watch the directory, not the file: editors replace files on save
	// and a file-level watch dies with the old inode.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(filePath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(filePath), err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runs := make(chan struct{}, 1)
	runs <- struct{}{} // initial run before the first save

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()
		target := filepath.Clean(filePath)
		for {
			select {
			case <-ctx.Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					select {
					case runs <- struct{}{}:
					default: // a run is already queued
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(os.Stderr, "  ! watch error: %v\n", err)
			}
		}
	})

	g.Go(func() error {
		run := 0
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-runs:
				run++
				watchOnce(ctx, filePath, run)
			}
		}
	})

	fmt.Printf("Watching %s (mode: %s) — Ctrl-C to stop\n", filePath, watchMode)
	return g.Wait()
}

// watchOnce parses and runs the playbook once, reporting a one-line
// summary. Parse or run failures never stop the watch loop; the next
// save gets a fresh attempt.
func watchOnce(ctx context.Context, filePath string, run int) {
	ts := time.Now().Format("15:04:05")

	pb, err := loadPlaybook(filePath)
	if err != nil {
		fmt.Printf("%s  ✗ run %d: %v\n", ts, run, err)
		return
	}

	exec, err := buildExecutor(watchMode, filepath.Dir(filePath))
	if err != nil {
		fmt.Printf("%s  ✗ run %d: %v\n", ts, run, err)
		return
	}

	sess := runtime.NewSession(fmt.Sprintf("watch-%d", run), runtime.Hooks{})
	if err := applyVars(sess, watchVars); err != nil {
		fmt.Printf("%s  ✗ run %d: %v\n", ts, run, err)
		return
	}

	start := time.Now()
	if runErr := exec.Run(ctx, sess, pb); runErr != nil {
		_, failed := sess.Highlights()
		fmt.Printf("%s  ✗ run %d failed at line %d: %v\n", ts, run, failed, runErr)
		return
	}
	fmt.Printf("%s  ✓ run %d (%d context messages)  %s\n",
		ts, run, sess.Contexts().Len(), time.Since(start).Truncate(time.Millisecond))
}

func init() {
	watchCmd.Flags().StringVar(&watchMode, "mode", "dry-run", "Execution mode: real or dry-run")
	watchCmd.Flags().StringArrayVar(&watchVars, "var", nil, "Set a session variable (key=value), repeatable")
	watchCmd.Flags().StringVar(&watchDebounce, "debounce", "300ms", "Delay after the last write before re-running")
	rootCmd.AddCommand(watchCmd)
}
