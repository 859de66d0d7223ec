// Package stateengine holds the single-owner, lock-protected WorkflowState:
// the DAG of tasks that plan_import creates and that task_claim/task_complete
// mutate under the state lock described in SPEC_FULL.md's concurrency model.
package stateengine

import "time"

// Status is a Task's lifecycle stage.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Task is one node in the WorkflowState DAG. Unlike planparse.PlanTask it
// carries the runtime fields (status, timestamps, claimant) that only the
// state engine is allowed to mutate.
type Task struct {
	ID             string     `json:"id"`
	Description    string     `json:"description"`
	Status         Status     `json:"status"`
	Dependencies   []string   `json:"dependencies,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ClaimedBy      string     `json:"claimed_by,omitempty"`
	TimeoutSeconds int        `json:"timeout_seconds"`
	Instructions   string     `json:"instructions,omitempty"`
	Role           string     `json:"role,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
}

// isTimedOut reports whether a RUNNING task's lease has expired as of now.
func (t *Task) isTimedOut(now time.Time) bool {
	if t.Status != StatusRunning || t.StartedAt == nil {
		return false
	}
	deadline := t.StartedAt.Add(time.Duration(t.TimeoutSeconds) * time.Second)
	return now.After(deadline)
}

// dependenciesSatisfied reports whether every dependency of t is COMPLETED
// in tasks.
func dependenciesSatisfied(t *Task, tasks map[string]*Task) bool {
	for _, dep := range t.Dependencies {
		d, ok := tasks[dep]
		if !ok || d.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// clone returns a deep copy of t, safe to hand to callers outside the lock.
func (t *Task) clone() *Task {
	cp := *t
	if t.Dependencies != nil {
		cp.Dependencies = append([]string(nil), t.Dependencies...)
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		cp.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		cp.CompletedAt = &completed
	}
	return &cp
}
