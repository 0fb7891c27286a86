package workflow

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestExecutionState_ImmutableRegime(t *testing.T) {
	s := NewExecutionState("wf", "exec")
	s.SetData("count", 1)

	c := s.WithField("count", 2)
	v, _ := s.Get("count")
	assert.Equal(t, 1, v, "receiver must stay untouched")
	v, _ = c.Get("count")
	assert.Equal(t, 2, v)
	assert.Equal(t, s.ExecutionID, c.ExecutionID)

	md := s.WithMetadata(map[string]any{"source": "test"})
	assert.Empty(t, s.Metadata())
	assert.Equal(t, "test", md.Metadata()["source"])

	withMsgs := s.WithMessages([]Message{{Role: "user", Content: "hi"}})
	assert.Empty(t, s.Messages())
	require.Len(t, withMsgs.Messages(), 1)
}

func TestExecutionState_MutableRegime(t *testing.T) {
	s := NewExecutionState("wf", "exec")

	s.SetData("phase", "analysis")
	v, ok := s.Get("phase")
	require.True(t, ok)
	assert.Equal(t, "analysis", v)

	s.AddMessage(Message{Role: "assistant", Content: "thinking"})
	s.AddMessage(Message{Role: "tool", Content: "result"})
	assert.Len(t, s.Messages(), 2)

	// Data() hands out a copy, writes to it must not leak back.
	d := s.Data()
	d["phase"] = "tampered"
	v, _ = s.Get("phase")
	assert.Equal(t, "analysis", v)

	assert.False(t, s.Completed)
	s.MarkCompleted()
	assert.True(t, s.Completed)
}

func TestExecutionState_HasError(t *testing.T) {
	s := NewExecutionState("wf", "exec")
	assert.False(t, s.HasError())
	s.SetData("error", "tool exploded")
	assert.True(t, s.HasError())
}

func TestExecutionState_ConcurrentWrites(t *testing.T) {
	s := NewExecutionState("wf", "exec")
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			s.SetData("k", n)
			s.AddMessage(Message{Role: "worker"})
			_ = s.Data()
		}(i)
	}
	wg.Wait()
	assert.Len(t, s.Messages(), 16)
}

func TestStateRoundTrip(t *testing.T) {
	s := NewExecutionState("wf_1", "exec_1")
	s.SetData("answer", "42")
	s.AddMessage(Message{Role: "user", Content: "question", Metadata: map[string]any{"lang": "en"}})
	s.MarkCompleted()
	s.Status = ExecutionCompleted

	back, err := StateFromMap(s.ToMap())
	require.NoError(t, err)
	assert.Equal(t, s.WorkflowID, back.WorkflowID)
	assert.Equal(t, s.ExecutionID, back.ExecutionID)
	assert.Equal(t, s.Status, back.Status)
	assert.True(t, back.Completed)
	assert.Equal(t, s.Data(), back.Data())
	assert.Equal(t, s.Messages(), back.Messages())
}

// Serialization has to survive a real JSON hop, not just an in-process map.
func TestStateRoundTrip_ThroughJSON(t *testing.T) {
	s := NewExecutionState("wf_1", "exec_1")
	s.SetData("tool", "search")
	s.AddMessage(Message{Role: "assistant", Content: "..."})

	raw, err := json.Marshal(s.ToMap())
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))

	back, err := StateFromMap(m)
	require.NoError(t, err)
	assert.Equal(t, "wf_1", back.WorkflowID)
	v, _ := back.Get("tool")
	assert.Equal(t, "search", v)
	require.Len(t, back.Messages(), 1)
	assert.Equal(t, "assistant", back.Messages()[0].Role)
}

func TestStateFromMap_Invalid(t *testing.T) {
	_, err := StateFromMap(map[string]any{"execution_id": "e"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow_id")

	_, err = StateFromMap(map[string]any{
		"workflow_id": "w", "execution_id": "e", "created_at": "not-a-time",
	})
	require.Error(t, err)
	assert.Equal(t, ErrCodeValidation, GetErrorCode(err))
}

func TestStateRoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := NewExecutionState(
			rapid.StringMatching(`wf_[a-z0-9]{1,8}`).Draw(t, "wf"),
			rapid.StringMatching(`exec_[a-z0-9]{1,8}`).Draw(t, "exec"),
		)
		n := rapid.IntRange(0, 5).Draw(t, "fields")
		for i := 0; i < n; i++ {
			s.SetData(
				rapid.StringMatching(`[a-z]{1,6}`).Draw(t, "key"),
				rapid.StringMatching(`[a-zA-Z0-9 ]{0,12}`).Draw(t, "val"),
			)
		}

		back, err := StateFromMap(s.ToMap())
		if err != nil {
			t.Fatalf("round trip failed: %v", err)
		}
		if back.WorkflowID != s.WorkflowID || back.ExecutionID != s.ExecutionID {
			t.Fatalf("identity lost: %s/%s", back.WorkflowID, back.ExecutionID)
		}
		if len(back.Data()) != len(s.Data()) {
			t.Fatalf("data size changed: %d != %d", len(back.Data()), len(s.Data()))
		}
	})
}
