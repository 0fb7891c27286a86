package workflow

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// RuleType classifies a validation or business rule.
type RuleType string

const (
	RuleValidation  RuleType = "validation"
	RuleBusiness    RuleType = "business"
	RuleSecurity    RuleType = "security"
	RulePerformance RuleType = "performance"
)

var ruleTypes = map[RuleType]bool{
	RuleValidation: true, RuleBusiness: true,
	RuleSecurity: true, RulePerformance: true,
}

// RuleOperator is the comparison applied to the target field.
type RuleOperator string

const (
	OpEquals      RuleOperator = "equals"
	OpNotEquals   RuleOperator = "not_equals"
	OpGreaterThan RuleOperator = "greater_than"
	OpLessThan    RuleOperator = "less_than"
	OpContains    RuleOperator = "contains"
	OpRegex       RuleOperator = "regex"
	OpIn          RuleOperator = "in"
	OpNotIn       RuleOperator = "not_in"
)

var ruleOperators = map[RuleOperator]bool{
	OpEquals: true, OpNotEquals: true, OpGreaterThan: true, OpLessThan: true,
	OpContains: true, OpRegex: true, OpIn: true, OpNotIn: true,
}

// RuleFunc is a custom predicate overriding the operator comparison.
type RuleFunc func(value any) bool

// Rule describes a check applied to a field of the execution context.
type Rule struct {
	ID           string
	Name         string
	Type         RuleType
	TargetField  string
	Operator     RuleOperator
	Value        any
	Enabled      bool
	Required     bool
	ErrorMessage string
	CustomFunc   RuleFunc

	// compiled regex cached at construction for the regex operator
	pattern *regexp.Regexp
}

// RuleOption configures a Rule at construction time.
type RuleOption func(*Rule)

// WithRuleID overrides the generated rule ID.
func WithRuleID(id string) RuleOption {
	return func(r *Rule) { r.ID = id }
}

// WithRuleRequired marks the target field as mandatory.
func WithRuleRequired() RuleOption {
	return func(r *Rule) { r.Required = true }
}

// WithRuleDisabled creates the rule in disabled state.
func WithRuleDisabled() RuleOption {
	return func(r *Rule) { r.Enabled = false }
}

// WithRuleErrorMessage overrides the generated error message.
func WithRuleErrorMessage(msg string) RuleOption {
	return func(r *Rule) { r.ErrorMessage = msg }
}

// WithRuleFunc sets a custom predicate that replaces operator evaluation.
func WithRuleFunc(fn RuleFunc) RuleOption {
	return func(r *Rule) { r.CustomFunc = fn }
}

// NewRule creates a validated Rule. Regex values must compile and the in /
// not_in operators require a slice value.
func NewRule(name string, typ RuleType, targetField string, op RuleOperator, value any, opts ...RuleOption) (*Rule, error) {
	r := &Rule{
		ID:          uuid.NewString(),
		Name:        name,
		Type:        typ,
		TargetField: targetField,
		Operator:    op,
		Value:       value,
		Enabled:     true,
	}
	for _, opt := range opts {
		opt(r)
	}

	var violations []string
	if name == "" {
		violations = append(violations, "name must not be empty")
	}
	if targetField == "" {
		violations = append(violations, "target_field must not be empty")
	}
	if !ruleTypes[typ] {
		violations = append(violations, fmt.Sprintf("unknown rule type %q", typ))
	}
	if !ruleOperators[op] {
		violations = append(violations, fmt.Sprintf("unknown operator %q", op))
	}
	if op == OpRegex {
		pattern, ok := value.(string)
		if !ok {
			violations = append(violations, "regex operator requires a string pattern")
		} else if compiled, err := regexp.Compile(pattern); err != nil {
			violations = append(violations, fmt.Sprintf("invalid regex %q: %v", pattern, err))
		} else {
			r.pattern = compiled
		}
	}
	if op == OpIn || op == OpNotIn {
		if value == nil || reflect.ValueOf(value).Kind() != reflect.Slice {
			violations = append(violations, fmt.Sprintf("%s operator requires a collection value", op))
		}
	}
	if len(violations) > 0 {
		return nil, NewValidationError("rule "+name, violations)
	}

	if r.ErrorMessage == "" {
		r.ErrorMessage = fmt.Sprintf("field %q failed rule %q (%s %v)", targetField, name, op, value)
	}
	return r, nil
}

// Evaluate applies the rule to the given field map. A disabled rule always
// passes. A missing field passes unless the rule is required.
func (r *Rule) Evaluate(fields map[string]any) (bool, error) {
	if !r.Enabled {
		return true, nil
	}

	value, present := fields[r.TargetField]
	if !present {
		if r.Required {
			return false, nil
		}
		return true, nil
	}

	if r.CustomFunc != nil {
		return r.CustomFunc(value), nil
	}

	switch r.Operator {
	case OpEquals:
		return equalValues(value, r.Value), nil
	case OpNotEquals:
		return !equalValues(value, r.Value), nil
	case OpGreaterThan:
		lf, lok := asFloat(value)
		rf, rok := asFloat(r.Value)
		if !lok || !rok {
			return false, NewError(ErrCodeInvalidRule,
				fmt.Sprintf("rule %q: greater_than requires numeric operands", r.Name))
		}
		return lf > rf, nil
	case OpLessThan:
		lf, lok := asFloat(value)
		rf, rok := asFloat(r.Value)
		if !lok || !rok {
			return false, NewError(ErrCodeInvalidRule,
				fmt.Sprintf("rule %q: less_than requires numeric operands", r.Name))
		}
		return lf < rf, nil
	case OpContains:
		return strings.Contains(fmt.Sprintf("%v", value), fmt.Sprintf("%v", r.Value)), nil
	case OpRegex:
		return r.pattern.MatchString(fmt.Sprintf("%v", value)), nil
	case OpIn:
		return collectionContains(r.Value, value), nil
	case OpNotIn:
		return !collectionContains(r.Value, value), nil
	}
	return false, NewError(ErrCodeInvalidRule, fmt.Sprintf("rule %q: unknown operator %q", r.Name, r.Operator))
}

func equalValues(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

func collectionContains(collection, value any) bool {
	rv := reflect.ValueOf(collection)
	if !rv.IsValid() || rv.Kind() != reflect.Slice {
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if equalValues(rv.Index(i).Interface(), value) {
			return true
		}
	}
	return false
}

func asFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	default:
		return 0, false
	}
}
