// Package planparse ingests a plan document (structured Markdown, or an
// embedded-JSON fallback) and produces a validated PlanDefinition: a DAG of
// tasks with no runtime fields, ready for the state engine to convert into a
// fresh WorkflowState.
package planparse

// PlanTask is one task entry in a PlanDefinition. It carries no runtime
// fields (status, timestamps, claimant) — those belong to
// internal/stateengine.Task, created fresh from this definition.
type PlanTask struct {
	Description    string   `json:"description"`
	Dependencies   []string `json:"dependencies,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
	Instructions   string   `json:"instructions,omitempty"`
	Role           string   `json:"role,omitempty"`
}

// PlanDefinition is the validated output of Parse: a goal plus a DAG of
// tasks. TaskOrder is the order the state engine uses for its claim scan.
// For the Markdown form it is group-table order (groups ascending, ids in
// row order); for the JSON form it is the task ids sorted as strings, since
// the order of keys in the JSON "tasks" object is not kept.
type PlanDefinition struct {
	Goal      string              `json:"goal"`
	Tasks     map[string]PlanTask `json:"tasks"`
	TaskOrder []string            `json:"-"`
}

const defaultTimeoutSeconds = 600

// DefaultTimeoutSeconds is exported so the state engine and tests can share
// the same default without importing parser internals.
func DefaultTimeoutSeconds() int { return defaultTimeoutSeconds }
