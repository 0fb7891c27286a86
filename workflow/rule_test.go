package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRule(t *testing.T) {
	t.Run("valid rule", func(t *testing.T) {
		r, err := NewRule("score_check", RuleValidation, "score", OpGreaterThan, 0.5)
		require.NoError(t, err)
		assert.True(t, r.Enabled)
		assert.NotEmpty(t, r.ErrorMessage)
	})

	t.Run("invalid regex rejected at construction", func(t *testing.T) {
		_, err := NewRule("bad", RuleValidation, "field", OpRegex, "([")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid regex")
	})

	t.Run("in requires a collection", func(t *testing.T) {
		_, err := NewRule("bad", RuleValidation, "field", OpIn, "not-a-slice")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "collection")
	})

	t.Run("violations accumulate", func(t *testing.T) {
		_, err := NewRule("", RuleType("weird"), "", RuleOperator("maybe"), nil)
		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.GreaterOrEqual(t, len(vErr.Violations), 4)
	})
}

func TestRule_Evaluate(t *testing.T) {
	tests := []struct {
		name     string
		op       RuleOperator
		value    any
		fields   map[string]any
		opts     []RuleOption
		expected bool
	}{
		{
			name: "equals numeric cross-type",
			op:   OpEquals, value: 3,
			fields:   map[string]any{"f": 3.0},
			expected: true,
		},
		{
			name: "not equals",
			op:   OpNotEquals, value: "a",
			fields:   map[string]any{"f": "b"},
			expected: true,
		},
		{
			name: "greater than",
			op:   OpGreaterThan, value: 10,
			fields:   map[string]any{"f": 11},
			expected: true,
		},
		{
			name: "less than false",
			op:   OpLessThan, value: 10,
			fields:   map[string]any{"f": 11},
			expected: false,
		},
		{
			name: "contains",
			op:   OpContains, value: "llo",
			fields:   map[string]any{"f": "hello"},
			expected: true,
		},
		{
			name: "regex",
			op:   OpRegex, value: `^wf_[0-9]+$`,
			fields:   map[string]any{"f": "wf_42"},
			expected: true,
		},
		{
			name: "in",
			op:   OpIn, value: []string{"a", "b"},
			fields:   map[string]any{"f": "b"},
			expected: true,
		},
		{
			name: "not in",
			op:   OpNotIn, value: []string{"a", "b"},
			fields:   map[string]any{"f": "c"},
			expected: true,
		},
		{
			name: "missing optional field passes",
			op:   OpEquals, value: 1,
			fields:   map[string]any{},
			expected: true,
		},
		{
			name: "missing required field fails",
			op:   OpEquals, value: 1,
			fields:   map[string]any{},
			opts:     []RuleOption{WithRuleRequired()},
			expected: false,
		},
		{
			name: "disabled rule always passes",
			op:   OpEquals, value: 1,
			fields:   map[string]any{"f": 2},
			opts:     []RuleOption{WithRuleDisabled()},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRule("r", RuleValidation, "f", tt.op, tt.value, tt.opts...)
			require.NoError(t, err)
			got, err := r.Evaluate(tt.fields)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRule_CustomFuncOverridesOperator(t *testing.T) {
	r, err := NewRule("custom", RuleBusiness, "f", OpEquals, "ignored",
		WithRuleFunc(func(value any) bool {
			s, ok := value.(string)
			return ok && len(s) > 3
		}))
	require.NoError(t, err)

	got, err := r.Evaluate(map[string]any{"f": "long enough"})
	require.NoError(t, err)
	assert.True(t, got)

	got, err = r.Evaluate(map[string]any{"f": "no"})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestRule_GreaterThanNonNumeric(t *testing.T) {
	r, err := NewRule("r", RuleValidation, "f", OpGreaterThan, 1)
	require.NoError(t, err)
	_, err = r.Evaluate(map[string]any{"f": "text"})
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidRule, GetErrorCode(err))
}
