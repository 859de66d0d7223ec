// taskkernd is the long-lived per-worktree task-execution kernel daemon.
// It listens on a Unix domain socket derived from the invoking user and
// worktree, and serves the JSON-RPC commands documented in
// internal/daemon.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/taskkern/taskkernd/internal/daemon"
	"github.com/taskkern/taskkernd/internal/runtime"
	"github.com/taskkern/taskkernd/internal/runtimecfg"
)

func main() {
	worktree := flag.String("worktree", "", "worktree root (defaults to the current directory)")
	flag.Parse()

	cfg, err := runtimecfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "taskkernd: %v\n", err)
		os.Exit(1)
	}

	wt := resolveWorktree(*worktree, cfg.WorktreeOverride)

	socketPath := cfg.SocketPath
	if socketPath == "" {
		socketPath, err = daemon.SocketPath(wt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "taskkernd: %v\n", err)
			os.Exit(1)
		}
	}

	rt, err := runtime.New(cfg.Runtime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "taskkernd: %v\n", err)
		os.Exit(1)
	}

	claudeDir := filepath.Join(wt, ".claude")
	d := daemon.New(daemon.Config{
		SocketPath:    socketPath,
		StatePath:     filepath.Join(claudeDir, "dev-workflow-state.json"),
		TrajectoryLog: filepath.Join(claudeDir, "trajectory.jsonl"),
		Runtime:       rt,
		TrajectoryCap: cfg.TrajectoryTailCap,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("taskkernd: received %s, shutting down", sig)
		d.Shutdown(5 * time.Second)
	}()

	if err := d.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "taskkernd: %v\n", err)
		os.Exit(1)
	}
}

// resolveWorktree applies the override precedence: --worktree flag,
// then TASKKERN_WORKTREE (already folded into cfg by runtimecfg.Load),
// then the current working directory.
func resolveWorktree(flagValue, envOverride string) string {
	if flagValue != "" {
		return flagValue
	}
	if envOverride != "" {
		return envOverride
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
