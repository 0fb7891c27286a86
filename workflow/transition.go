package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flowforge/flowforge/workflow/expr"
)

// TransitionType defines how a transition is selected during execution.
type TransitionType string

const (
	// TransitionSimple is always taken when reached.
	TransitionSimple TransitionType = "simple"
	// TransitionConditional is taken when its condition evaluates to true.
	TransitionConditional TransitionType = "conditional"
	// TransitionTimeout is taken when the source step timed out.
	TransitionTimeout TransitionType = "timeout"
	// TransitionError is taken when the source step failed.
	TransitionError TransitionType = "error"
)

var transitionTypes = map[TransitionType]bool{
	TransitionSimple: true, TransitionConditional: true,
	TransitionTimeout: true, TransitionError: true,
}

// Transition is a directed edge between two steps. From and To reference
// step IDs and must differ; conditional transitions carry an expression
// evaluated by workflow/expr against the execution context.
type Transition struct {
	ID        string
	From      string
	To        string
	Type      TransitionType
	Condition string
	Priority  int
	Enabled   bool
	Timeout   time.Duration
}

// TransitionOption configures a Transition at construction time.
type TransitionOption func(*Transition)

// WithTransitionID overrides the generated transition ID.
func WithTransitionID(id string) TransitionOption {
	return func(t *Transition) { t.ID = id }
}

// WithCondition sets the condition expression (conditional transitions).
func WithCondition(cond string) TransitionOption {
	return func(t *Transition) { t.Condition = cond }
}

// WithPriority sets the selection priority. Higher wins.
func WithPriority(p int) TransitionOption {
	return func(t *Transition) { t.Priority = p }
}

// WithDisabled creates the transition in disabled state.
func WithDisabled() TransitionOption {
	return func(t *Transition) { t.Enabled = false }
}

// WithTransitionTimeout sets the timeout budget for the transition.
func WithTransitionTimeout(d time.Duration) TransitionOption {
	return func(t *Transition) { t.Timeout = d }
}

// NewTransition creates a validated Transition between two step IDs.
func NewTransition(from, to string, typ TransitionType, opts ...TransitionOption) (*Transition, error) {
	t := &Transition{
		ID:      uuid.NewString(),
		From:    from,
		To:      to,
		Type:    typ,
		Enabled: true,
	}
	for _, opt := range opts {
		opt(t)
	}

	var violations []string
	if from == "" {
		violations = append(violations, "from_step must not be empty")
	}
	if to == "" {
		violations = append(violations, "to_step must not be empty")
	}
	if from != "" && from == to {
		violations = append(violations, fmt.Sprintf("self transition %q -> %q is not allowed", from, to))
	}
	if !transitionTypes[typ] {
		violations = append(violations, fmt.Sprintf("unknown transition type %q", typ))
	}
	if typ == TransitionConditional && t.Condition == "" {
		violations = append(violations, "conditional transition requires a condition")
	}
	if t.Timeout < 0 {
		violations = append(violations, "timeout must not be negative")
	}
	if len(violations) > 0 {
		return nil, NewValidationError(fmt.Sprintf("transition %s->%s", from, to), violations)
	}
	return t, nil
}

// EvaluateCondition reports whether the transition should be taken for the
// given context variables. Simple transitions always match; timeout and
// error transitions never match here because they are selected by the
// executor on their respective outcomes.
func (t *Transition) EvaluateCondition(vars map[string]any) (bool, error) {
	if !t.Enabled {
		return false, nil
	}
	switch t.Type {
	case TransitionSimple:
		return true, nil
	case TransitionConditional:
		ok, err := expr.Evaluate(t.Condition, vars)
		if err != nil {
			return false, NewError(ErrCodeConditionFailed,
				fmt.Sprintf("condition %q", t.Condition)).WithCause(err)
		}
		return ok, nil
	default:
		return false, nil
	}
}

// Clone returns a copy of the transition.
func (t *Transition) Clone() *Transition {
	c := *t
	return &c
}
