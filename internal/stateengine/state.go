package stateengine

import (
	"fmt"
	"sort"
)

// WorkflowState is the DAG of tasks plus plan metadata, the unit that
// plan_import replaces wholesale and that Engine persists atomically.
type WorkflowState struct {
	Goal           string           `json:"goal"`
	PlanSourcePath string           `json:"plan_source_path,omitempty"`
	BaseCommit     string           `json:"base_commit,omitempty"`
	LastCommit     string           `json:"last_commit,omitempty"`
	WorkflowKind   string           `json:"workflow_kind,omitempty"`
	Enabled        bool             `json:"enabled"`
	Tasks          map[string]*Task `json:"tasks"`
	TaskOrder      []string         `json:"task_order,omitempty"`
}

// clone returns a deep copy of s, suitable for handing to a caller outside
// the state lock (get_state must never leak a pointer to live state).
func (s *WorkflowState) clone() *WorkflowState {
	if s == nil {
		return nil
	}
	cp := &WorkflowState{
		Goal:           s.Goal,
		PlanSourcePath: s.PlanSourcePath,
		BaseCommit:     s.BaseCommit,
		LastCommit:     s.LastCommit,
		WorkflowKind:   s.WorkflowKind,
		Enabled:        s.Enabled,
		Tasks:          make(map[string]*Task, len(s.Tasks)),
		TaskOrder:      append([]string(nil), s.TaskOrder...),
	}
	for id, t := range s.Tasks {
		cp.Tasks[id] = t.clone()
	}
	return cp
}

// validate checks the data-model invariants from the original spec §3 that
// must hold after every persisted write.
func (s *WorkflowState) validate() error {
	for id, t := range s.Tasks {
		seen := make(map[string]bool, len(t.Dependencies))
		for _, dep := range t.Dependencies {
			if dep == id {
				return fmt.Errorf("task %q depends on itself", id)
			}
			if seen[dep] {
				return fmt.Errorf("task %q lists dependency %q more than once", id, dep)
			}
			seen[dep] = true
			if _, ok := s.Tasks[dep]; !ok {
				return fmt.Errorf("task %q depends on unknown task %q", id, dep)
			}
		}

		switch t.Status {
		case StatusRunning:
			if t.StartedAt == nil || t.ClaimedBy == "" {
				return fmt.Errorf("task %q is RUNNING but missing started_at or claimed_by", id)
			}
		case StatusCompleted:
			if t.CompletedAt == nil || t.StartedAt == nil {
				return fmt.Errorf("task %q is COMPLETED but missing started_at or completed_at", id)
			}
		case StatusPending:
			if t.StartedAt != nil || t.CompletedAt != nil || t.ClaimedBy != "" {
				return fmt.Errorf("task %q is PENDING but carries runtime fields", id)
			}
		}
	}
	return detectCycle(s.Tasks)
}

// color states for the grey/white/black DFS cycle detector (mirrors
// internal/planparse.detectCycle: iterative, not recursive).
type color int

const (
	white color = iota
	grey
	black
)

func detectCycle(tasks map[string]*Task) error {
	colors := make(map[string]color, len(tasks))

	type frame struct {
		id      string
		depIdx  int
		depList []string
	}

	ids := make([]string, 0, len(tasks))
	for id := range tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, start := range ids {
		if colors[start] != white {
			continue
		}
		stack := []*frame{{id: start, depList: tasks[start].Dependencies}}
		colors[start] = grey

		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.depIdx >= len(top.depList) {
				colors[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}
			dep := top.depList[top.depIdx]
			top.depIdx++

			switch colors[dep] {
			case white:
				colors[dep] = grey
				stack = append(stack, &frame{id: dep, depList: tasks[dep].Dependencies})
			case grey:
				return fmt.Errorf("cycle detected involving task %q", dep)
			case black:
			}
		}
	}
	return nil
}
