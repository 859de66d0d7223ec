package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/taskkern/taskkernd/internal/planparse"
	"github.com/taskkern/taskkernd/internal/runtime"
	"github.com/taskkern/taskkernd/internal/stateengine"
	"github.com/taskkern/taskkernd/internal/wire"
)

// dispatch routes a decoded request to its handler. Handler errors, missing
// fields, and unknown commands are all mapped to a wire.Err response here —
// handlers never return a Go error out of this function, and a panicking
// handler is caught by handleConn's recover, so a single bad request can
// never take down the connection goroutine or the server (original spec
// §4.7, §7 "handler exceptions never crash the connection thread").
func (d *Daemon) dispatch(req wire.Request) wire.Response {
	switch req.Command {
	case "ping":
		return d.handlePing()
	case "get_state":
		return d.handleGetState()
	case "update_state":
		return d.handleUpdateState(req)
	case "plan_import":
		return d.handlePlanImport(req)
	case "plan_validate":
		return d.handlePlanValidate(req)
	case "task_claim":
		return d.handleTaskClaim(req)
	case "task_complete":
		return d.handleTaskComplete(req)
	case "task_fail":
		return d.handleTaskFail(req)
	case "exec":
		return d.handleExec(req)
	case "git":
		return d.handleGit(req)
	case "shutdown":
		return d.handleShutdown()
	default:
		return wire.Err("unknown command: %s", req.Command)
	}
}

func (d *Daemon) handlePing() wire.Response {
	return wire.OK(map[string]any{"running": true, "pid": os.Getpid()})
}

func (d *Daemon) handleGetState() wire.Response {
	s, err := d.engine.GetState()
	if err != nil {
		return wire.Err("get_state: %v", err)
	}
	return wire.OK(s)
}

func (d *Daemon) handleUpdateState(req wire.Request) wire.Response {
	var updates map[string]any
	if err := req.RequireField("updates", &updates); err != nil {
		return wire.Err("update_state: %v", err)
	}
	s, err := d.engine.UpdateState(updates)
	if err != nil {
		return wire.Err("update_state: %v", err)
	}
	return wire.OK(s)
}

func (d *Daemon) handlePlanImport(req wire.Request) wire.Response {
	var content string
	if err := req.RequireField("content", &content); err != nil {
		return wire.Err("plan_import: %v", err)
	}

	pd, err := planparse.Parse(content)
	if err != nil {
		return wire.Err("plan_import: %v", err)
	}

	s, err := d.engine.ImportPlan(pd)
	if err != nil {
		return wire.Err("plan_import: %v", err)
	}

	ids := make([]string, 0, len(s.Tasks))
	for id := range s.Tasks {
		ids = append(ids, id)
	}

	d.logTrajectory(map[string]any{
		"event":      "plan_import",
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		"task_count": len(s.Tasks),
	})

	return wire.OK(map[string]any{
		"goal":       s.Goal,
		"task_count": len(s.Tasks),
		"task_ids":   ids,
	})
}

// handlePlanValidate is a supplemental, side-effect-free dry run of
// plan_import (SPEC_FULL.md adds this alongside the original spec's table):
// it parses and validates a document without touching persisted state.
func (d *Daemon) handlePlanValidate(req wire.Request) wire.Response {
	var content string
	if err := req.RequireField("content", &content); err != nil {
		return wire.Err("plan_validate: %v", err)
	}
	if err := planparse.Validate(content); err != nil {
		return wire.Err("plan_validate: %v", err)
	}
	return wire.OK(map[string]any{"valid": true})
}

func (d *Daemon) handleTaskClaim(req wire.Request) wire.Response {
	var workerID string
	if err := req.RequireField("worker_id", &workerID); err != nil {
		return wire.Err("task_claim: %v", err)
	}

	task, kind, err := d.engine.ClaimTask(workerID)
	if err != nil {
		if errors.Is(err, stateengine.ErrNoWorkflow) {
			return wire.OK(nil)
		}
		return wire.Err("task_claim: %v", err)
	}
	if task == nil {
		return wire.OK(nil)
	}

	// Lock hierarchy: the state lock inside ClaimTask has already been
	// released by the time we get here, so logging to the trajectory
	// below never happens while the state lock is held (§5).
	eventName := "claim"
	if kind == stateengine.ClaimReclaim {
		eventName = "reclaim"
	}
	event := map[string]any{
		"event":     eventName,
		"task_id":   task.ID,
		"worker_id": workerID,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if kind == stateengine.ClaimReclaim {
		event["retry_count"] = d.trajectory.CountForTask(task.ID)
	}
	d.logTrajectory(event)

	resp := map[string]any{
		"task_id":     task.ID,
		"description": task.Description,
	}
	switch kind {
	case stateengine.ClaimRetry:
		resp["is_retry"] = true
	case stateengine.ClaimReclaim:
		resp["is_reclaim"] = true
	}
	return wire.OK(resp)
}

func (d *Daemon) handleTaskComplete(req wire.Request) wire.Response {
	var taskID, workerID string
	if err := req.RequireField("task_id", &taskID); err != nil {
		return wire.Err("task_complete: %v", err)
	}
	if err := req.RequireField("worker_id", &workerID); err != nil {
		return wire.Err("task_complete: %v", err)
	}

	if _, err := d.engine.CompleteTask(taskID, workerID); err != nil {
		return wire.Err("task_complete: %v", err)
	}

	d.logTrajectory(map[string]any{
		"event":     "complete",
		"task_id":   taskID,
		"worker_id": workerID,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
	return wire.OK(map[string]any{"task_id": taskID})
}

// handleTaskFail is the supplemental analogue of task_complete that
// SPEC_FULL.md adds to the handler table.
func (d *Daemon) handleTaskFail(req wire.Request) wire.Response {
	var taskID, workerID string
	if err := req.RequireField("task_id", &taskID); err != nil {
		return wire.Err("task_fail: %v", err)
	}
	if err := req.RequireField("worker_id", &workerID); err != nil {
		return wire.Err("task_fail: %v", err)
	}

	var reason string
	req.Field("reason", &reason)

	if _, err := d.engine.FailTask(taskID, workerID, reason); err != nil {
		return wire.Err("task_fail: %v", err)
	}

	d.logTrajectory(map[string]any{
		"event":     "fail",
		"task_id":   taskID,
		"worker_id": workerID,
		"reason":    reason,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
	return wire.OK(map[string]any{"task_id": taskID})
}

func (d *Daemon) handleExec(req wire.Request) wire.Response {
	var args []string
	var cwd string
	if err := req.RequireField("args", &args); err != nil {
		return wire.Err("exec: %v", err)
	}
	if err := req.RequireField("cwd", &cwd); err != nil {
		return wire.Err("exec: %v", err)
	}
	var env map[string]string
	req.Field("env", &env)
	var timeoutSeconds int
	req.Field("timeout", &timeoutSeconds)

	// exclusive is deliberately not client-settable here (original spec
	// §4.7's exec row): only the git handler may request it.
	return d.runAndRespond(args, cwd, env, timeoutSeconds, false, "exec")
}

func (d *Daemon) handleGit(req wire.Request) wire.Response {
	var args []string
	var cwd string
	if err := req.RequireField("args", &args); err != nil {
		return wire.Err("git: %v", err)
	}
	if err := req.RequireField("cwd", &cwd); err != nil {
		return wire.Err("git: %v", err)
	}
	var env map[string]string
	req.Field("env", &env)
	var timeoutSeconds int
	req.Field("timeout", &timeoutSeconds)

	full := append([]string{d.vcsBin}, args...)
	return d.runAndRespond(full, cwd, env, timeoutSeconds, true, "git")
}

func (d *Daemon) runAndRespond(args []string, cwd string, env map[string]string, timeoutSeconds int, exclusive bool, eventName string) wire.Response {
	timeout := time.Duration(timeoutSeconds) * time.Second

	result, err := d.rt.Execute(context.Background(), runtime.Request{
		Args:      args,
		Cwd:       cwd,
		Timeout:   timeout,
		Env:       env,
		Exclusive: exclusive,
	})
	var timeoutErr *runtime.TimeoutError
	if err != nil && !errors.As(err, &timeoutErr) {
		return wire.Err("%s: %v", eventName, err)
	}

	event := map[string]any{
		"event":      eventName,
		"args":       args,
		"cwd":        cwd,
		"returncode": result.ExitCode,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if result.SignalName != "" {
		event["signal_name"] = result.SignalName
	}
	d.logTrajectory(event)

	resp := map[string]any{
		"returncode": result.ExitCode,
		"stdout":     result.Stdout,
		"stderr":     result.Stderr,
	}
	if result.SignalName != "" {
		resp["signal_name"] = result.SignalName
	}
	return wire.OK(resp)
}

func (d *Daemon) handleShutdown() wire.Response {
	go d.Shutdown(5 * time.Second)
	return wire.OK(map[string]any{"shutdown": true})
}

// logTrajectory appends event, never under the state lock (handlers above
// only call this after their Engine call has already returned, so the
// state lock has necessarily been released by the time this runs).
func (d *Daemon) logTrajectory(event map[string]any) {
	if err := d.trajectory.Log(event); err != nil {
		fmt.Fprintf(os.Stderr, "taskkernd: trajectory log: %v\n", err)
	}
}
