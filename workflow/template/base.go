// Package template provides parameterized workflow construction: a base
// template with declarative parameter specs, the built-in ReAct and
// Plan-Execute families, and a registry.
package template

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/flowforge/flowforge/workflow"
)

// ParameterType enumerates the allowed parameter types.
type ParameterType string

const (
	TypeString  ParameterType = "string"
	TypeInteger ParameterType = "integer"
	TypeNumber  ParameterType = "number"
	TypeBoolean ParameterType = "boolean"
	TypeArray   ParameterType = "array"
	TypeObject  ParameterType = "object"
)

// ParameterSpec declares one template parameter.
type ParameterSpec struct {
	Name        string        `json:"name"`
	Type        ParameterType `json:"type"`
	Description string        `json:"description,omitempty"`
	Required    bool          `json:"required,omitempty"`
	Default     any           `json:"default,omitempty"`
	Min         *float64      `json:"min,omitempty"`
	Max         *float64      `json:"max,omitempty"`
	Items       ParameterType `json:"items,omitempty"`
}

// TemplateError wraps a template failure with the template's name.
type TemplateError struct {
	TemplateName string
	Message      string
	Cause        error
}

func (e *TemplateError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("template %q: %s: %v", e.TemplateName, e.Message, e.Cause)
	}
	return fmt.Sprintf("template %q: %s", e.TemplateName, e.Message)
}

func (e *TemplateError) Unwrap() error { return e.Cause }

// BuildFunc assembles the steps and transitions of a workflow created from a
// template. The config passed in already has defaults applied.
type BuildFunc func(wf *workflow.Workflow, config map[string]any) error

// Template is the construction contract the registry works against.
type Template interface {
	Name() string
	Description() string
	Category() string
	Parameters() []ParameterSpec
	ValidateParameters(config map[string]any) []string
	CreateWorkflow(name, description string, config map[string]any) (*workflow.Workflow, error)
}

// BaseTemplate carries the shared template mechanics; concrete templates
// supply the parameter specs and a build hook.
type BaseTemplate struct {
	name        string
	description string
	category    string
	params      []ParameterSpec
	build       BuildFunc
}

// NewBaseTemplate creates a template from its declarative parts.
func NewBaseTemplate(name, description, category string, params []ParameterSpec, build BuildFunc) *BaseTemplate {
	return &BaseTemplate{
		name:        name,
		description: description,
		category:    category,
		params:      params,
		build:       build,
	}
}

func (t *BaseTemplate) Name() string        { return t.name }
func (t *BaseTemplate) Description() string { return t.description }
func (t *BaseTemplate) Category() string    { return t.category }

// Parameters returns a copy of the parameter specs.
func (t *BaseTemplate) Parameters() []ParameterSpec {
	out := make([]ParameterSpec, len(t.params))
	copy(out, t.params)
	return out
}

// ValidateParameters checks the config against the specs and returns every
// violation: missing required values first, then type, range and array item
// mismatches.
func (t *BaseTemplate) ValidateParameters(config map[string]any) []string {
	var problems []string
	for _, spec := range t.params {
		value, present := config[spec.Name]
		if !present {
			if spec.Required && spec.Default == nil {
				problems = append(problems, fmt.Sprintf("parameter %q is required", spec.Name))
			}
			continue
		}
		if !typeMatches(spec.Type, value) {
			problems = append(problems, fmt.Sprintf("parameter %q must be of type %s", spec.Name, spec.Type))
			continue
		}
		if spec.Min != nil || spec.Max != nil {
			if f, ok := asNumber(value); ok {
				if spec.Min != nil && f < *spec.Min {
					problems = append(problems, fmt.Sprintf("parameter %q must be >= %v", spec.Name, *spec.Min))
				}
				if spec.Max != nil && f > *spec.Max {
					problems = append(problems, fmt.Sprintf("parameter %q must be <= %v", spec.Name, *spec.Max))
				}
			}
		}
		if spec.Type == TypeArray && spec.Items != "" {
			rv := reflect.ValueOf(value)
			for i := 0; i < rv.Len(); i++ {
				if !typeMatches(spec.Items, rv.Index(i).Interface()) {
					problems = append(problems, fmt.Sprintf("parameter %q item %d must be of type %s", spec.Name, i, spec.Items))
				}
			}
		}
	}
	return problems
}

// CreateWorkflow validates the config, applies defaults, and builds a
// workflow named `{template}_{name}` carrying template metadata. The
// finished workflow is validated before it is returned.
func (t *BaseTemplate) CreateWorkflow(name, description string, config map[string]any) (*workflow.Workflow, error) {
	if name == "" {
		return nil, &TemplateError{TemplateName: t.name, Message: "workflow name is required"}
	}
	if problems := t.ValidateParameters(config); len(problems) > 0 {
		return nil, &TemplateError{
			TemplateName: t.name,
			Message:      "invalid parameters: " + strings.Join(problems, "; "),
		}
	}

	merged := t.applyDefaults(config)
	if description == "" {
		description = t.description
	}

	wf := workflow.New(fmt.Sprintf("%s_%s", t.name, name), name, description)
	wf.Metadata = map[string]any{
		"template":          t.name,
		"template_category": t.category,
	}

	if t.build != nil {
		if err := t.build(wf, merged); err != nil {
			return nil, &TemplateError{TemplateName: t.name, Message: "build failed", Cause: err}
		}
	}
	if err := wf.Validate(); err != nil {
		return nil, &TemplateError{TemplateName: t.name, Message: "built workflow is invalid", Cause: err}
	}
	return wf, nil
}

// applyDefaults merges spec defaults under the caller's values.
func (t *BaseTemplate) applyDefaults(config map[string]any) map[string]any {
	merged := make(map[string]any, len(config)+len(t.params))
	for _, spec := range t.params {
		if spec.Default != nil {
			merged[spec.Name] = spec.Default
		}
	}
	for k, v := range config {
		merged[k] = v
	}
	return merged
}

func typeMatches(pt ParameterType, value any) bool {
	switch pt {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	case TypeInteger:
		switch v := value.(type) {
		case int, int32, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case TypeNumber:
		_, ok := asNumber(value)
		return ok
	case TypeArray:
		k := reflect.ValueOf(value).Kind()
		return k == reflect.Slice || k == reflect.Array
	case TypeObject:
		return reflect.ValueOf(value).Kind() == reflect.Map
	default:
		return false
	}
}

func asNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// addStep adds a step whose ID equals its name so template-built graphs are
// deterministic.
func addStep(wf *workflow.Workflow, name string, typ workflow.StepType, opts ...workflow.StepOption) error {
	opts = append([]workflow.StepOption{workflow.WithStepID(name)}, opts...)
	step, err := workflow.NewStep(name, typ, opts...)
	if err != nil {
		return err
	}
	return wf.AddStep(step)
}

func addTransition(wf *workflow.Workflow, from, to string, typ workflow.TransitionType, opts ...workflow.TransitionOption) error {
	t, err := workflow.NewTransition(from, to, typ, opts...)
	if err != nil {
		return err
	}
	return wf.AddTransition(t)
}
