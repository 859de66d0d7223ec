package stateengine

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/taskkern/taskkernd/internal/planparse"
)

// ClaimKind distinguishes the three ways ClaimTask can succeed, matching the
// is_retry / is_reclaim flags the task_claim RPC response carries.
type ClaimKind int

const (
	ClaimFresh ClaimKind = iota
	ClaimRetry
	ClaimReclaim
)

// Engine is the single-owner, lock-protected state engine described in
// SPEC_FULL.md §4.6. One Engine exists per daemon instance; its mutex is the
// "state lock" at the top of the lock hierarchy — callers must release it
// (by returning from the Engine method) before acquiring the trajectory
// logger's lock or the global execution lock.
type Engine struct {
	path string

	mu    sync.Mutex
	state *WorkflowState

	// now is a test seam; production code always uses time.Now.
	now func() time.Time
}

// New creates an Engine that persists to path. It does not load from disk
// eagerly; the first call that needs state triggers a lazy load, matching
// the "auto-load" behavior of claim_task in the original spec.
func New(path string) *Engine {
	return &Engine{path: path, now: time.Now}
}

// SetClock overrides the engine's time source. Exported for tests that need
// to simulate lease expiry without a real sleep; production callers never
// need it.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = now
}

// ensureLoaded loads state from disk into memory if nothing is loaded yet.
// Must be called with mu held. A missing file is not an error: it leaves
// e.state nil, which callers treat as ErrNoWorkflow.
func (e *Engine) ensureLoaded() error {
	if e.state != nil {
		return nil
	}
	s, err := loadFromDisk(e.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	e.state = s
	return nil
}

// GetState returns a deep copy of the current state, or nil if no plan has
// been imported. Matches the original spec's "no workflow" soft-null case.
func (e *Engine) GetState() (*WorkflowState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}
	return e.state.clone(), nil
}

// ImportPlan replaces any prior state wholesale with the tasks from pd, all
// PENDING, in the order of pd.TaskOrder. The DAG is validated before the state
// is persisted or adopted in memory, so a rejected import leaves the prior
// on-disk state untouched (original spec §8 scenario 9).
func (e *Engine) ImportPlan(pd *planparse.PlanDefinition) (*WorkflowState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tasks := make(map[string]*Task, len(pd.Tasks))
	for id, pt := range pd.Tasks {
		timeout := pt.TimeoutSeconds
		if timeout <= 0 {
			timeout = planparse.DefaultTimeoutSeconds()
		}
		tasks[id] = &Task{
			ID:             id,
			Description:    pt.Description,
			Status:         StatusPending,
			Dependencies:   append([]string(nil), pt.Dependencies...),
			TimeoutSeconds: timeout,
			Instructions:   pt.Instructions,
			Role:           pt.Role,
		}
	}

	order := pd.TaskOrder
	if len(order) != len(tasks) {
		order = make([]string, 0, len(tasks))
		for id := range tasks {
			order = append(order, id)
		}
	}

	next := &WorkflowState{
		Goal:      pd.Goal,
		Enabled:   true,
		Tasks:     tasks,
		TaskOrder: order,
	}
	if err := next.validate(); err != nil {
		return nil, fmt.Errorf("plan rejected: %w", err)
	}
	if err := saveAtomic(e.path, next); err != nil {
		return nil, err
	}

	e.state = next
	return e.state.clone(), nil
}

// ClaimTask implements the single atomic claim critical section from the
// original spec §4.6: idempotent re-claim (with lease renewal), then
// first-claimable-in-order scan (PENDING-with-satisfied-deps, or a
// timed-out RUNNING "zombie"), then persist.
func (e *Engine) ClaimTask(workerID string) (*Task, ClaimKind, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoaded(); err != nil {
		return nil, ClaimFresh, err
	}
	if e.state == nil {
		return nil, ClaimFresh, ErrNoWorkflow
	}

	now := e.now()

	// Idempotency / lease-renewal: a task this worker already owns and
	// whose lease has not expired is returned again, with started_at
	// advanced so legitimate retries extend the lease instead of racing
	// a reclaim.
	for _, id := range e.state.TaskOrder {
		t := e.state.Tasks[id]
		if t.Status == StatusRunning && t.ClaimedBy == workerID && !t.isTimedOut(now) {
			started := now
			t.StartedAt = &started
			if err := saveAtomic(e.path, e.state); err != nil {
				return nil, ClaimFresh, err
			}
			return t.clone(), ClaimRetry, nil
		}
	}

	// First-claimable-in-order scan.
	var claimed *Task
	kind := ClaimFresh
	for _, id := range e.state.TaskOrder {
		t := e.state.Tasks[id]
		switch {
		case t.Status == StatusPending && dependenciesSatisfied(t, e.state.Tasks):
			claimed = t
			kind = ClaimFresh
		case t.Status == StatusRunning && t.isTimedOut(now):
			claimed = t
			kind = ClaimReclaim
		default:
			continue
		}
		break
	}
	if claimed == nil {
		return nil, ClaimFresh, nil
	}

	started := now
	claimed.Status = StatusRunning
	claimed.StartedAt = &started
	claimed.CompletedAt = nil
	claimed.ClaimedBy = workerID

	if err := saveAtomic(e.path, e.state); err != nil {
		return nil, ClaimFresh, err
	}
	return claimed.clone(), kind, nil
}

// CompleteTask validates ownership, then marks a task COMPLETED. Per the
// recorded Open Question decision, completion is allowed even if the
// lease had technically expired by wall-clock time: the owner check is
// what matters, not a race against the reclaim threshold.
func (e *Engine) CompleteTask(taskID, workerID string) (*Task, error) {
	return e.terminate(taskID, workerID, StatusCompleted, "")
}

// FailTask is the supplemental analogue of CompleteTask (SPEC_FULL.md adds
// task_fail alongside task_complete): same ownership-checked atomic
// critical section, ending in FAILED instead of COMPLETED and persisting
// reason on the task as FailureReason.
func (e *Engine) FailTask(taskID, workerID, reason string) (*Task, error) {
	return e.terminate(taskID, workerID, StatusFailed, reason)
}

func (e *Engine) terminate(taskID, workerID string, final Status, reason string) (*Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}
	if e.state == nil {
		return nil, ErrNoWorkflow
	}

	t, ok := e.state.Tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	if t.ClaimedBy != workerID {
		return nil, &OwnershipError{TaskID: taskID, RequestBy: workerID, OwnedBy: t.ClaimedBy}
	}

	now := e.now()
	t.Status = final
	t.CompletedAt = &now
	if final == StatusFailed {
		t.FailureReason = reason
	}

	if err := saveAtomic(e.path, e.state); err != nil {
		return nil, err
	}
	return t.clone(), nil
}

// UpdateState applies a field-wise update to plan metadata (goal, enabled,
// workflow kind, commit pointers). Per the recorded Open Question decision,
// unknown or type-incompatible fields are rejected rather than silently
// coerced or ignored.
func (e *Engine) UpdateState(updates map[string]any) (*WorkflowState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureLoaded(); err != nil {
		return nil, err
	}
	if e.state == nil {
		return nil, ErrNoWorkflow
	}

	next := e.state.clone()
	for k, v := range updates {
		switch k {
		case "goal":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("update_state: field %q must be a string", k)
			}
			next.Goal = s
		case "enabled":
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("update_state: field %q must be a boolean", k)
			}
			next.Enabled = b
		case "workflow_kind":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("update_state: field %q must be a string", k)
			}
			next.WorkflowKind = s
		case "base_commit":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("update_state: field %q must be a string", k)
			}
			next.BaseCommit = s
		case "last_commit":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("update_state: field %q must be a string", k)
			}
			next.LastCommit = s
		default:
			return nil, fmt.Errorf("update_state: unknown field %q", k)
		}
	}

	if err := next.validate(); err != nil {
		return nil, err
	}
	if err := saveAtomic(e.path, next); err != nil {
		return nil, err
	}
	e.state = next
	return e.state.clone(), nil
}
