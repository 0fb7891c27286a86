package workflow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNewStep(t *testing.T) {
	tests := []struct {
		name     string
		stepName string
		stepType StepType
		opts     []StepOption
		wantErr  string
	}{
		{
			name:     "minimal valid step",
			stepName: "analyze",
			stepType: StepAnalysis,
		},
		{
			name:     "full configuration",
			stepName: "execute_tool",
			stepType: StepExecution,
			opts: []StepOption{
				WithStepID("execute_tool"),
				WithStepDescription("run the tool"),
				WithStepConfig("tools", []string{"search"}),
				WithStepTimeout(30 * time.Second),
				WithStepRetry(2, time.Second),
				WithPreCondition("input_ready"),
				WithPostCondition("output_present"),
			},
		},
		{
			name:     "empty name",
			stepName: "",
			stepType: StepAnalysis,
			wantErr:  "name",
		},
		{
			name:     "name starting with digit",
			stepName: "1step",
			stepType: StepAnalysis,
			wantErr:  "name",
		},
		{
			name:     "name with hyphen",
			stepName: "bad-name",
			stepType: StepAnalysis,
			wantErr:  "name",
		},
		{
			name:     "unknown type",
			stepName: "ok",
			stepType: StepType("bogus"),
			wantErr:  "type",
		},
		{
			name:     "negative timeout",
			stepName: "ok",
			stepType: StepAnalysis,
			opts:     []StepOption{WithStepTimeout(-time.Second)},
			wantErr:  "timeout",
		},
		{
			name:     "negative retry count",
			stepName: "ok",
			stepType: StepAnalysis,
			opts:     []StepOption{WithStepRetry(-1, 0)},
			wantErr:  "retry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step, err := NewStep(tt.stepName, tt.stepType, tt.opts...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, strings.ToLower(err.Error()), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.stepName, step.Name)
			assert.NotEmpty(t, step.ID)
		})
	}
}

func TestNewStep_CollectsAllViolations(t *testing.T) {
	_, err := NewStep("", StepType("bogus"), WithStepTimeout(-time.Second))
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.GreaterOrEqual(t, len(vErr.Violations), 3)
}

func TestStep_ConditionsSortedAndDeduplicated(t *testing.T) {
	step, err := NewStep("check", StepDecision,
		WithPreCondition("b"),
		WithPreCondition("a"),
		WithPreCondition("a"),
		WithPostCondition("done"),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, step.PreConditions())
	assert.Equal(t, []string{"done"}, step.PostConditions())
}

func TestStep_IsTerminal(t *testing.T) {
	end, err := NewStep("finalize", StepEnd)
	require.NoError(t, err)
	assert.True(t, end.IsTerminal())

	mid, err := NewStep("analyze", StepAnalysis)
	require.NoError(t, err)
	assert.False(t, mid.IsTerminal())
}

func TestStep_CloneIsIndependent(t *testing.T) {
	orig, err := NewStep("analyze", StepAnalysis, WithStepConfig("k", "v"))
	require.NoError(t, err)

	clone := orig.Clone()
	clone.Config["k"] = "changed"
	clone.Name = "other"

	assert.Equal(t, "v", orig.Config["k"])
	assert.Equal(t, "analyze", orig.Name)
}

// Property: the naming rule accepts exactly ASCII letter-led identifiers.
func TestStepNaming_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[a-zA-Z][a-zA-Z0-9_]{0,30}`).Draw(t, "name")
		_, err := NewStep(name, StepAnalysis)
		if err != nil {
			t.Fatalf("valid name %q rejected: %v", name, err)
		}
	})

	rapid.Check(t, func(t *rapid.T) {
		name := rapid.StringMatching(`[0-9_\-][a-zA-Z0-9_\-]{0,10}`).Draw(t, "name")
		_, err := NewStep(name, StepAnalysis)
		if err == nil {
			t.Fatalf("invalid name %q accepted", name)
		}
	})
}
