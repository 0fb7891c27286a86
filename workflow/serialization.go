package workflow

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// StepDefinition is the serialized form of a step.
type StepDefinition struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Type        string         `json:"type" yaml:"type"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	Timeout     string         `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	RetryCount  int            `json:"retry_count,omitempty" yaml:"retry_count,omitempty"`
	RetryDelay  string         `json:"retry_delay,omitempty" yaml:"retry_delay,omitempty"`
	PreCond     []string       `json:"pre_conditions,omitempty" yaml:"pre_conditions,omitempty"`
	PostCond    []string       `json:"post_conditions,omitempty" yaml:"post_conditions,omitempty"`
}

// TransitionDefinition is the serialized form of a transition.
type TransitionDefinition struct {
	ID        string `json:"id" yaml:"id"`
	From      string `json:"from" yaml:"from"`
	To        string `json:"to" yaml:"to"`
	Type      string `json:"type" yaml:"type"`
	Condition string `json:"condition,omitempty" yaml:"condition,omitempty"`
	Priority  int    `json:"priority,omitempty" yaml:"priority,omitempty"`
	Disabled  bool   `json:"disabled,omitempty" yaml:"disabled,omitempty"`
	Timeout   string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Definition is the portable form of a whole workflow.
type Definition struct {
	ID          string                 `json:"id" yaml:"id"`
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	EntryPoint  string                 `json:"entry_point" yaml:"entry_point"`
	Metadata    map[string]any         `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Steps       []StepDefinition       `json:"steps" yaml:"steps"`
	Transitions []TransitionDefinition `json:"transitions" yaml:"transitions"`
}

// ToDefinition converts a workflow into its portable form. Steps and
// transitions are emitted in stable ID order.
func (w *Workflow) ToDefinition() *Definition {
	def := &Definition{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		EntryPoint:  w.EntryPoint(),
		Metadata:    w.Metadata,
	}
	stepIDs := make([]string, 0, w.StepCount())
	for id := range w.Steps() {
		stepIDs = append(stepIDs, id)
	}
	sort.Strings(stepIDs)
	for _, id := range stepIDs {
		step, _ := w.Step(id)
		sd := StepDefinition{
			ID:          step.ID,
			Name:        step.Name,
			Type:        string(step.Type),
			Description: step.Description,
			Config:      step.Config,
			RetryCount:  step.RetryCount,
			PreCond:     step.PreConditions(),
			PostCond:    step.PostConditions(),
		}
		if step.Timeout > 0 {
			sd.Timeout = step.Timeout.String()
		}
		if step.RetryDelay > 0 {
			sd.RetryDelay = step.RetryDelay.String()
		}
		def.Steps = append(def.Steps, sd)
	}
	transIDs := make([]string, 0, w.TransitionCount())
	for id := range w.Transitions() {
		transIDs = append(transIDs, id)
	}
	sort.Strings(transIDs)
	for _, id := range transIDs {
		t := w.Transitions()[id]
		td := TransitionDefinition{
			ID:        t.ID,
			From:      t.From,
			To:        t.To,
			Type:      string(t.Type),
			Condition: t.Condition,
			Priority:  t.Priority,
			Disabled:  !t.Enabled,
		}
		if t.Timeout > 0 {
			td.Timeout = t.Timeout.String()
		}
		def.Transitions = append(def.Transitions, td)
	}
	return def
}

// FromDefinition rebuilds a workflow from its portable form and validates
// the result.
func FromDefinition(def *Definition) (*Workflow, error) {
	if def == nil {
		return nil, NewError(ErrCodeValidation, "definition is nil")
	}
	w := New(def.ID, def.Name, def.Description)
	w.Metadata = def.Metadata

	for _, sd := range def.Steps {
		opts := []StepOption{
			WithStepID(sd.ID),
			WithStepDescription(sd.Description),
		}
		for k, v := range sd.Config {
			opts = append(opts, WithStepConfig(k, v))
		}
		if sd.Timeout != "" {
			d, err := time.ParseDuration(sd.Timeout)
			if err != nil {
				return nil, NewError(ErrCodeValidation,
					fmt.Sprintf("step %q: bad timeout %q", sd.Name, sd.Timeout)).WithCause(err)
			}
			opts = append(opts, WithStepTimeout(d))
		}
		if sd.RetryCount > 0 {
			delay := time.Duration(0)
			if sd.RetryDelay != "" {
				d, err := time.ParseDuration(sd.RetryDelay)
				if err != nil {
					return nil, NewError(ErrCodeValidation,
						fmt.Sprintf("step %q: bad retry delay %q", sd.Name, sd.RetryDelay)).WithCause(err)
				}
				delay = d
			}
			opts = append(opts, WithStepRetry(sd.RetryCount, delay))
		}
		for _, c := range sd.PreCond {
			opts = append(opts, WithPreCondition(c))
		}
		for _, c := range sd.PostCond {
			opts = append(opts, WithPostCondition(c))
		}
		step, err := NewStep(sd.Name, StepType(sd.Type), opts...)
		if err != nil {
			return nil, err
		}
		if err := w.AddStep(step); err != nil {
			return nil, err
		}
	}

	for _, td := range def.Transitions {
		opts := []TransitionOption{WithTransitionID(td.ID), WithPriority(td.Priority)}
		if td.Condition != "" {
			opts = append(opts, WithCondition(td.Condition))
		}
		if td.Disabled {
			opts = append(opts, WithDisabled())
		}
		if td.Timeout != "" {
			d, err := time.ParseDuration(td.Timeout)
			if err != nil {
				return nil, NewError(ErrCodeValidation,
					fmt.Sprintf("transition %q: bad timeout %q", td.ID, td.Timeout)).WithCause(err)
			}
			opts = append(opts, WithTransitionTimeout(d))
		}
		t, err := NewTransition(td.From, td.To, TransitionType(td.Type), opts...)
		if err != nil {
			return nil, err
		}
		if err := w.AddTransition(t); err != nil {
			return nil, err
		}
	}

	if def.EntryPoint != "" {
		w.SetEntryPoint(def.EntryPoint)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return w, nil
}

// MarshalYAML serializes a workflow to YAML.
func MarshalYAML(w *Workflow) ([]byte, error) {
	return yaml.Marshal(w.ToDefinition())
}

// UnmarshalYAML builds a workflow from YAML.
func UnmarshalYAML(data []byte) (*Workflow, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, NewError(ErrCodeValidation, "invalid workflow yaml").WithCause(err)
	}
	return FromDefinition(&def)
}

// MarshalJSON serializes a workflow to JSON.
func MarshalJSON(w *Workflow) ([]byte, error) {
	return json.MarshalIndent(w.ToDefinition(), "", "  ")
}

// UnmarshalJSON builds a workflow from JSON.
func UnmarshalJSON(data []byte) (*Workflow, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, NewError(ErrCodeValidation, "invalid workflow json").WithCause(err)
	}
	return FromDefinition(&def)
}
