package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/taskforge/taskforge/internal/capability"
	"github.com/taskforge/taskforge/internal/config"
	"github.com/taskforge/taskforge/internal/events"
	"github.com/taskforge/taskforge/internal/executor"
	"github.com/taskforge/taskforge/internal/history"
	"github.com/taskforge/taskforge/internal/runner"
	"github.com/taskforge/taskforge/internal/tui"
)

func main() {
	graphPath := flag.String("graph", "", "path to a graph JSON file (required)")
	concurrency := flag.Int("concurrency", 0, "concurrency ceiling (overrides config)")
	runTimeout := flag.Duration("timeout", 0, "whole-run timeout (overrides config)")
	abortOnFailure := flag.Bool("abort-on-failure", false, "cancel the run on the first failed task")
	monitor := flag.Bool("monitor", false, "show the live run monitor")
	record := flag.Bool("record", false, "record the run to the history database")
	flag.Parse()

	if *graphPath == "" {
		fmt.Fprintln(os.Stderr, "usage: taskforge -graph <file> [-concurrency N] [-timeout D] [-abort-on-failure] [-monitor] [-record]")
		os.Exit(2)
	}

	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}
	if *runTimeout > 0 {
		cfg.RunTimeout = config.Duration(*runTimeout)
	}
	if *abortOnFailure {
		cfg.AbortOnFailure = true
	}

	graph, err := config.LoadGraph(*graphPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading graph: %v\n", err)
		os.Exit(1)
	}

	registry := capability.NewRegistry()
	registerBuiltins(registry)

	bus := events.NewBus()
	defer bus.Close()

	var store history.Store
	if *record {
		path := cfg.HistoryPath
		if path == "" {
			path, err = history.DefaultPath()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error resolving history path: %v\n", err)
				os.Exit(1)
			}
		}
		s, err := history.NewSQLiteStore(ctx, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening history database: %v\n", err)
			os.Exit(1)
		}
		defer s.Close()
		store = s
	}

	ctrl := runner.New(runner.Config{
		Concurrency:    cfg.Concurrency,
		RunTimeout:     cfg.RunTimeout.Std(),
		AbortOnFailure: cfg.AbortOnFailure,
		Registry:       registry,
		Breakers:       executor.NewBreakerRegistry(),
		Bus:            bus,
		History:        store,
	}, graph)

	if *monitor {
		runWithMonitor(ctx, ctrl, bus)
		return
	}

	result, err := ctrl.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	printReport(result)
	if result.Outcome != runner.OutcomeAllSucceeded {
		os.Exit(1)
	}
}

// runWithMonitor runs the controller under the TUI. The monitor stays up
// after the run resolves so the final state can be read; 'q' exits.
func runWithMonitor(ctx context.Context, ctrl *runner.Controller, bus *events.Bus) {
	p := tea.NewProgram(tui.New(bus), tea.WithAltScreen())

	resultChan := make(chan *runner.RunResult, 1)
	go func() {
		result, err := ctrl.Run(ctx)
		if err != nil {
			log.Printf("ERROR: run failed to start: %v", err)
			p.Quit()
			return
		}
		resultChan <- result
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	select {
	case result := <-resultChan:
		printReport(result)
		if result.Outcome != runner.OutcomeAllSucceeded {
			os.Exit(1)
		}
	case <-time.After(time.Second):
		// Monitor quit before the run resolved; the signal context will
		// wind the run down.
	}
}

// printReport writes a per-task summary to stdout.
func printReport(result *runner.RunResult) {
	fmt.Printf("run %s: %s (%s)\n", result.RunID, result.Outcome, result.Elapsed.Round(time.Millisecond))

	ids := make([]string, 0, len(result.Tasks))
	for id := range result.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		res := result.Tasks[id]
		line := fmt.Sprintf("  %-20s %-10s", id, res.State)
		if res.Attempts > 0 {
			line += fmt.Sprintf(" attempts=%d elapsed=%s", res.Attempts, res.Elapsed.Round(time.Millisecond))
		}
		if res.Err != nil {
			line += fmt.Sprintf(" err=%v", res.Err)
		}
		fmt.Println(line)
	}

	if failed := result.Failed(); len(failed) > 0 {
		sort.Strings(failed)
		fmt.Printf("failed tasks: %s\n", strings.Join(failed, ", "))
	}
}

// registerBuiltins installs the built-in capabilities: "shell" runs a bash
// command, "sleep" idles for a duration. Anything richer belongs to the
// embedding application.
func registerBuiltins(registry *capability.Registry) {
	_ = registry.Register("shell", capability.HandlerFunc(runShell))
	_ = registry.Register("sleep", capability.HandlerFunc(runSleep))
}

func runShell(ctx context.Context, args map[string]any) (capability.Result, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return capability.Result{}, errors.New("shell: missing command argument")
	}

	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	if err := cmd.Run(); err != nil {
		return capability.Result{Output: buf.String()}, fmt.Errorf("shell: %w", err)
	}
	return capability.Result{Output: buf.String()}, nil
}

func runSleep(ctx context.Context, args map[string]any) (capability.Result, error) {
	spec, _ := args["duration"].(string)
	d, err := time.ParseDuration(spec)
	if err != nil {
		return capability.Result{}, fmt.Errorf("sleep: invalid duration %q: %w", spec, err)
	}

	select {
	case <-time.After(d):
		return capability.Result{Output: fmt.Sprintf("slept %s", d)}, nil
	case <-ctx.Done():
		return capability.Result{}, ctx.Err()
	}
}
