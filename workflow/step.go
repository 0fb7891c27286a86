package workflow

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
)

// StepType defines the role of a step within the workflow graph.
type StepType string

const (
	// StepAnalysis performs reasoning over the current state.
	StepAnalysis StepType = "analysis"
	// StepExecution performs an external action such as a tool call.
	StepExecution StepType = "execution"
	// StepDecision routes execution based on accumulated state.
	StepDecision StepType = "decision"
	// StepWaiting blocks until an external signal arrives.
	StepWaiting StepType = "waiting"
	// StepNotification emits a message without altering control flow.
	StepNotification StepType = "notification"
	// StepStart marks an explicit entry step.
	StepStart StepType = "start"
	// StepEnd marks a terminal step.
	StepEnd StepType = "end"
	// StepParallel fans out to all simple successors concurrently.
	StepParallel StepType = "parallel"
	// StepControl hosts control-flow helpers such as error recovery.
	StepControl StepType = "control"
)

// stepTypes is the set of valid step types.
var stepTypes = map[StepType]bool{
	StepAnalysis: true, StepExecution: true, StepDecision: true,
	StepWaiting: true, StepNotification: true, StepStart: true,
	StepEnd: true, StepParallel: true, StepControl: true,
}

// stepNamePattern is the naming rule for steps. Names double as graph node
// identifiers in templates, so they must stay machine friendly.
var stepNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

// Step is the unit of execution within a workflow. Invariants are checked at
// construction; an instance that exists is valid.
type Step struct {
	ID          string
	Name        string
	Type        StepType
	Description string
	Config      map[string]any
	// Timeout bounds a single handler invocation. Zero means no limit;
	// enforcement is the executor's responsibility.
	Timeout    time.Duration
	RetryCount int
	RetryDelay time.Duration

	preConditions  map[string]struct{}
	postConditions map[string]struct{}
}

// StepOption configures a Step at construction time.
type StepOption func(*Step)

// WithStepID overrides the generated step ID.
func WithStepID(id string) StepOption {
	return func(s *Step) { s.ID = id }
}

// WithStepDescription sets the step description.
func WithStepDescription(desc string) StepOption {
	return func(s *Step) { s.Description = desc }
}

// WithStepConfig sets a config value.
func WithStepConfig(key string, value any) StepOption {
	return func(s *Step) { s.Config[key] = value }
}

// WithStepTimeout sets the per-invocation timeout.
func WithStepTimeout(d time.Duration) StepOption {
	return func(s *Step) { s.Timeout = d }
}

// WithStepRetry sets the retry count and delay between attempts.
func WithStepRetry(count int, delay time.Duration) StepOption {
	return func(s *Step) {
		s.RetryCount = count
		s.RetryDelay = delay
	}
}

// WithPreCondition adds a named pre-condition. Duplicates are ignored.
func WithPreCondition(cond string) StepOption {
	return func(s *Step) { s.preConditions[cond] = struct{}{} }
}

// WithPostCondition adds a named post-condition. Duplicates are ignored.
func WithPostCondition(cond string) StepOption {
	return func(s *Step) { s.postConditions[cond] = struct{}{} }
}

// NewStep creates a validated Step. The ID defaults to a UUID; templates
// typically override it with the step name for deterministic graphs.
func NewStep(name string, typ StepType, opts ...StepOption) (*Step, error) {
	s := &Step{
		ID:             uuid.NewString(),
		Name:           name,
		Type:           typ,
		Config:         make(map[string]any),
		preConditions:  make(map[string]struct{}),
		postConditions: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	var violations []string
	if name == "" {
		violations = append(violations, "name must not be empty")
	} else if !stepNamePattern.MatchString(name) {
		violations = append(violations, fmt.Sprintf("name %q must match %s", name, stepNamePattern.String()))
	}
	if !stepTypes[typ] {
		violations = append(violations, fmt.Sprintf("unknown step type %q", typ))
	}
	if s.Timeout < 0 {
		violations = append(violations, "timeout must not be negative")
	}
	if s.RetryCount < 0 {
		violations = append(violations, "retry_count must not be negative")
	}
	if s.RetryDelay < 0 {
		violations = append(violations, "retry_delay must not be negative")
	}
	if len(violations) > 0 {
		return nil, NewValidationError("step "+name, violations)
	}
	return s, nil
}

// PreConditions returns the pre-condition set in sorted order.
func (s *Step) PreConditions() []string {
	return sortedConditions(s.preConditions)
}

// PostConditions returns the post-condition set in sorted order.
func (s *Step) PostConditions() []string {
	return sortedConditions(s.postConditions)
}

func sortedConditions(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Clone returns a deep copy of the step.
func (s *Step) Clone() *Step {
	c := &Step{
		ID:             s.ID,
		Name:           s.Name,
		Type:           s.Type,
		Description:    s.Description,
		Config:         make(map[string]any, len(s.Config)),
		Timeout:        s.Timeout,
		RetryCount:     s.RetryCount,
		RetryDelay:     s.RetryDelay,
		preConditions:  make(map[string]struct{}, len(s.preConditions)),
		postConditions: make(map[string]struct{}, len(s.postConditions)),
	}
	for k, v := range s.Config {
		c.Config[k] = v
	}
	for k := range s.preConditions {
		c.preConditions[k] = struct{}{}
	}
	for k := range s.postConditions {
		c.postConditions[k] = struct{}{}
	}
	return c
}

// IsTerminal reports whether execution stops after this step.
func (s *Step) IsTerminal() bool {
	return s.Type == StepEnd
}
