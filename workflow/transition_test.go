package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		typ     TransitionType
		opts    []TransitionOption
		wantErr string
	}{
		{
			name: "simple transition",
			from: "a", to: "b",
			typ: TransitionSimple,
		},
		{
			name: "conditional with condition",
			from: "a", to: "b",
			typ:  TransitionConditional,
			opts: []TransitionOption{WithCondition("$ready")},
		},
		{
			name: "self loop rejected",
			from: "a", to: "a",
			typ:     TransitionSimple,
			wantErr: "self transition",
		},
		{
			name: "empty from",
			from: "", to: "b",
			typ:     TransitionSimple,
			wantErr: "from_step",
		},
		{
			name: "empty to",
			from: "a", to: "",
			typ:     TransitionSimple,
			wantErr: "to_step",
		},
		{
			name: "conditional without condition",
			from: "a", to: "b",
			typ:     TransitionConditional,
			wantErr: "requires a condition",
		},
		{
			name: "unknown type",
			from: "a", to: "b",
			typ:     TransitionType("hop"),
			wantErr: "unknown transition type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := NewTransition(tt.from, tt.to, tt.typ, tt.opts...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, tr.Enabled)
			assert.NotEmpty(t, tr.ID)
		})
	}
}

func TestTransition_EvaluateCondition(t *testing.T) {
	t.Run("simple always matches", func(t *testing.T) {
		tr, err := NewTransition("a", "b", TransitionSimple)
		require.NoError(t, err)
		ok, err := tr.EvaluateCondition(nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("conditional follows expression", func(t *testing.T) {
		tr, err := NewTransition("a", "b", TransitionConditional,
			WithCondition("$score > 0.5"))
		require.NoError(t, err)

		ok, err := tr.EvaluateCondition(map[string]any{"score": 0.9})
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = tr.EvaluateCondition(map[string]any{"score": 0.1})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("disabled never matches", func(t *testing.T) {
		tr, err := NewTransition("a", "b", TransitionSimple, WithDisabled())
		require.NoError(t, err)
		ok, err := tr.EvaluateCondition(nil)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("error and timeout are executor selected", func(t *testing.T) {
		for _, typ := range []TransitionType{TransitionError, TransitionTimeout} {
			tr, err := NewTransition("a", "b", typ)
			require.NoError(t, err)
			ok, err := tr.EvaluateCondition(map[string]any{"anything": true})
			require.NoError(t, err)
			assert.False(t, ok)
		}
	})

	t.Run("broken expression reports condition failure", func(t *testing.T) {
		tr, err := NewTransition("a", "b", TransitionConditional,
			WithCondition(`$x == "unterminated`))
		require.NoError(t, err)
		_, err = tr.EvaluateCondition(nil)
		require.Error(t, err)
		assert.Equal(t, ErrCodeConditionFailed, GetErrorCode(err))
	})
}
