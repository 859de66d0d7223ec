// taskkernctl is the thin "dumb client" that exercises the daemon's RPC
// surface. It deliberately does no schema validation or type coercion of
// its own (original spec §9): every field value it forwards is a literal
// string (or, for exec/git, a list of literal strings) taken straight from
// argv, and the daemon alone decides how to interpret it.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/taskkern/taskkernd/internal/daemon"
	"github.com/taskkern/taskkernd/internal/wire"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	worktree := flag.String("worktree", ".", "worktree root")
	socketFlag := flag.String("socket", "", "override the daemon socket path")

	command := os.Args[1]
	rest := os.Args[2:]
	// Flags go right after the subcommand, before any positional argument:
	// parsing stops at the first non-flag argument, so everything from there
	// on (including exec/git arguments that start with '-') stays positional.
	flag.CommandLine.Parse(rest)
	positional := flag.Args()

	socketPath := *socketFlag
	if socketPath == "" {
		var err error
		socketPath, err = daemon.SocketPath(*worktree)
		if err != nil {
			fail(err)
		}
	}

	req, err := buildRequest(command, positional)
	if err != nil {
		fail(err)
	}

	resp, err := call(socketPath, req)
	if err != nil {
		fail(err)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		fail(err)
	}
	fmt.Println(string(out))
	if resp.Status != "ok" {
		os.Exit(1)
	}
}

// buildRequest maps a subcommand and its positional arguments onto a
// wire.Request. Every value placed in fields is the argv string verbatim
// (or, for exec/git's trailing args, a []string of argv strings verbatim) —
// there is no attempt here to guess that "5" means an integer timeout or
// "true" means a boolean; that coercion belongs to the daemon alone.
func buildRequest(command string, args []string) (wire.Request, error) {
	switch command {
	case "ping", "state", "shutdown":
		rpc := command
		if command == "state" {
			rpc = "get_state"
		}
		return wire.Request{Command: rpc}, nil

	case "import":
		if len(args) != 1 {
			return wire.Request{}, fmt.Errorf("usage: taskkernctl import <plan-file>")
		}
		content, err := os.ReadFile(args[0])
		if err != nil {
			return wire.Request{}, err
		}
		return requestWithFields("plan_import", map[string]any{"content": string(content)})

	case "validate":
		if len(args) != 1 {
			return wire.Request{}, fmt.Errorf("usage: taskkernctl validate <plan-file>")
		}
		content, err := os.ReadFile(args[0])
		if err != nil {
			return wire.Request{}, err
		}
		return requestWithFields("plan_validate", map[string]any{"content": string(content)})

	case "claim":
		if len(args) != 1 {
			return wire.Request{}, fmt.Errorf("usage: taskkernctl claim <worker>")
		}
		return requestWithFields("task_claim", map[string]any{"worker_id": args[0]})

	case "complete":
		if len(args) != 2 {
			return wire.Request{}, fmt.Errorf("usage: taskkernctl complete <task> <worker>")
		}
		return requestWithFields("task_complete", map[string]any{"task_id": args[0], "worker_id": args[1]})

	case "fail":
		if len(args) < 2 {
			return wire.Request{}, fmt.Errorf("usage: taskkernctl fail <task> <worker> [reason]")
		}
		fields := map[string]any{"task_id": args[0], "worker_id": args[1]}
		if len(args) >= 3 {
			fields["reason"] = args[2]
		}
		return requestWithFields("task_fail", fields)

	case "exec", "git":
		if len(args) < 1 {
			return wire.Request{}, fmt.Errorf("usage: taskkernctl %s <cwd> [args...]", command)
		}
		cwd := args[0]
		cmdArgs := args[1:]
		fields := map[string]any{"cwd": cwd, "args": cmdArgs}
		return requestWithFields(command, fields)

	default:
		return wire.Request{}, fmt.Errorf("unknown subcommand %q", command)
	}
}

func requestWithFields(rpc string, fields map[string]any) (wire.Request, error) {
	data, err := json.Marshal(fields)
	if err != nil {
		return wire.Request{}, err
	}
	return wire.Request{Command: rpc, Fields: data}, nil
}

func call(socketPath string, req wire.Request) (wire.Response, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return wire.Response{}, fmt.Errorf("connect to daemon at %s: %w (is taskkernd running?)", socketPath, err)
	}
	defer conn.Close()

	if err := wire.WriteRequest(conn, req); err != nil {
		return wire.Response{}, fmt.Errorf("send request: %w", err)
	}

	resp, err := wire.ReadResponse(bufio.NewReader(conn))
	if err != nil {
		return wire.Response{}, fmt.Errorf("read response: %w", err)
	}
	return resp, nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: taskkernctl <command> [--worktree=path] [--socket=path] [args...]")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  ping")
	fmt.Fprintln(os.Stderr, "  state")
	fmt.Fprintln(os.Stderr, "  import <plan-file>")
	fmt.Fprintln(os.Stderr, "  validate <plan-file>")
	fmt.Fprintln(os.Stderr, "  claim <worker>")
	fmt.Fprintln(os.Stderr, "  complete <task> <worker>")
	fmt.Fprintln(os.Stderr, "  fail <task> <worker> [reason]")
	fmt.Fprintln(os.Stderr, "  exec <cwd> [args...]")
	fmt.Fprintln(os.Stderr, "  git <cwd> [args...]")
	fmt.Fprintln(os.Stderr, "  shutdown")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "taskkernctl: %v\n", err)
	os.Exit(1)
}

