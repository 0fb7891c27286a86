package workflow

import (
	"fmt"
	"sort"
)

// Workflow is the aggregate root: a named directed graph of steps and
// transitions with a single entry point. Cycles are legal; agent patterns
// such as ReAct loop back from execution to analysis.
type Workflow struct {
	ID          string
	Name        string
	Description string
	Metadata    map[string]any

	steps       map[string]*Step
	transitions map[string]*Transition
	entryPoint  string
}

// New creates an empty workflow.
func New(id, name, description string) *Workflow {
	return &Workflow{
		ID:          id,
		Name:        name,
		Description: description,
		Metadata:    make(map[string]any),
		steps:       make(map[string]*Step),
		transitions: make(map[string]*Transition),
	}
}

// AddStep registers a step. Duplicate IDs are rejected.
func (w *Workflow) AddStep(step *Step) error {
	if step == nil {
		return NewError(ErrCodeInvalidStep, "step must not be nil")
	}
	if _, exists := w.steps[step.ID]; exists {
		return NewError(ErrCodeInvalidStep, fmt.Sprintf("duplicate step ID %q", step.ID))
	}
	w.steps[step.ID] = step
	return nil
}

// AddTransition registers a transition. Duplicate IDs are rejected;
// endpoint existence is checked by Validate so structures can be built in
// any order.
func (w *Workflow) AddTransition(t *Transition) error {
	if t == nil {
		return NewError(ErrCodeInvalidGraph, "transition must not be nil")
	}
	if _, exists := w.transitions[t.ID]; exists {
		return NewError(ErrCodeInvalidGraph, fmt.Sprintf("duplicate transition ID %q", t.ID))
	}
	w.transitions[t.ID] = t
	return nil
}

// SetEntryPoint sets the entry step ID.
func (w *Workflow) SetEntryPoint(stepID string) {
	w.entryPoint = stepID
}

// EntryPoint returns the entry step ID.
func (w *Workflow) EntryPoint() string {
	return w.entryPoint
}

// Step returns a step by ID.
func (w *Workflow) Step(id string) (*Step, bool) {
	s, ok := w.steps[id]
	return s, ok
}

// StepByName returns the first step with the given name.
func (w *Workflow) StepByName(name string) (*Step, bool) {
	for _, s := range w.steps {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// Steps returns all steps keyed by ID.
func (w *Workflow) Steps() map[string]*Step {
	return w.steps
}

// Transitions returns all transitions keyed by ID.
func (w *Workflow) Transitions() map[string]*Transition {
	return w.transitions
}

// StepCount returns the number of steps.
func (w *Workflow) StepCount() int { return len(w.steps) }

// TransitionCount returns the number of transitions.
func (w *Workflow) TransitionCount() int { return len(w.transitions) }

// TransitionsFrom returns the transitions leaving a step, ordered by
// priority descending, then by ID for a stable order.
func (w *Workflow) TransitionsFrom(stepID string) []*Transition {
	var out []*Transition
	for _, t := range w.transitions {
		if t.From == stepID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Validate checks structural integrity: entry point set and present, every
// transition endpoint present, and every step reachable from the entry.
// All violations are accumulated.
func (w *Workflow) Validate() error {
	var violations []string

	if len(w.steps) == 0 {
		violations = append(violations, "workflow has no steps")
	}
	if w.entryPoint == "" {
		violations = append(violations, "entry point not set")
	} else if _, ok := w.steps[w.entryPoint]; !ok {
		violations = append(violations, fmt.Sprintf("entry point %q does not exist", w.entryPoint))
	}

	for _, t := range w.transitions {
		if _, ok := w.steps[t.From]; !ok {
			violations = append(violations, fmt.Sprintf("transition %s references missing source step %q", t.ID, t.From))
		}
		if _, ok := w.steps[t.To]; !ok {
			violations = append(violations, fmt.Sprintf("transition %s references missing target step %q", t.ID, t.To))
		}
	}

	// Reachability only makes sense once the basics hold.
	if len(violations) == 0 {
		reachable := make(map[string]bool)
		w.markReachable(w.entryPoint, reachable)
		var orphaned []string
		for id := range w.steps {
			if !reachable[id] {
				orphaned = append(orphaned, id)
			}
		}
		sort.Strings(orphaned)
		for _, id := range orphaned {
			violations = append(violations, fmt.Sprintf("step %q not reachable from entry", id))
		}
	}

	if len(violations) > 0 {
		return NewValidationError("workflow "+w.ID, violations)
	}
	return nil
}

func (w *Workflow) markReachable(stepID string, reachable map[string]bool) {
	if reachable[stepID] {
		return
	}
	reachable[stepID] = true
	for _, t := range w.TransitionsFrom(stepID) {
		w.markReachable(t.To, reachable)
	}
}
