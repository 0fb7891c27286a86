package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFactory struct {
	err error
}

func (f *fakeFactory) CreateWorkflow(templateName, workflowName string, _ map[string]any) (*Workflow, error) {
	if f.err != nil {
		return nil, f.err
	}
	w := New(templateName+"_"+workflowName, workflowName, "")
	step, err := NewStep("done", StepEnd, WithStepID("done"))
	if err != nil {
		return nil, err
	}
	if err := w.AddStep(step); err != nil {
		return nil, err
	}
	w.SetEntryPoint("done")
	return w, nil
}

func newTestManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	orch := NewOrchestrator(zap.NewNop(), WithExecutor(NewGraphExecutor(zap.NewNop())))
	return NewManager(zap.NewNop(), orch, opts...)
}

func TestManager_DeployAndRun(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Deploy(loopWorkflow(t)))

	state, err := m.Run(context.Background(), "wf_loop", nil)
	require.NoError(t, err)
	assert.True(t, state.Completed)

	record, err := m.Status(state.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, ExecutionCompleted, record.Status)
}

func TestManager_RunAsync(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Deploy(loopWorkflow(t)))

	execID, results, err := m.RunAsync(context.Background(), "wf_loop", nil)
	require.NoError(t, err)
	select {
	case res := <-results:
		require.NoError(t, res.Err)
		assert.Equal(t, execID, res.ExecutionID)
	case <-time.After(5 * time.Second):
		t.Fatal("async run did not finish")
	}
}

func TestManager_DeployFromTemplate(t *testing.T) {
	t.Run("no factory configured", func(t *testing.T) {
		m := newTestManager(t)
		_, err := m.DeployFromTemplate("react", "agent", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "factory")
	})

	t.Run("factory errors propagate", func(t *testing.T) {
		m := newTestManager(t, WithWorkflowFactory(&fakeFactory{
			err: NewError(ErrCodeValidation, "unknown template"),
		}))
		_, err := m.DeployFromTemplate("react", "agent", nil)
		require.Error(t, err)
	})

	t.Run("deploys the built workflow", func(t *testing.T) {
		m := newTestManager(t, WithWorkflowFactory(&fakeFactory{}))
		wf, err := m.DeployFromTemplate("react", "agent", nil)
		require.NoError(t, err)
		assert.Equal(t, "react_agent", wf.ID)

		state, err := m.Run(context.Background(), "react_agent", nil)
		require.NoError(t, err)
		assert.True(t, state.Completed)
	})
}

func TestManager_DeployFromBytes(t *testing.T) {
	m := newTestManager(t)
	src := loopWorkflow(t)

	rawYAML, err := MarshalYAML(src)
	require.NoError(t, err)
	wf, err := m.DeployYAML(rawYAML)
	require.NoError(t, err)
	assert.Equal(t, src.ID, wf.ID)

	rawJSON, err := MarshalJSON(src)
	require.NoError(t, err)
	_, err = m.DeployJSON(rawJSON)
	require.NoError(t, err)

	_, err = m.DeployYAML([]byte("not yaml: ["))
	require.Error(t, err)
}

func TestManager_PruneLoop(t *testing.T) {
	orch := NewOrchestrator(zap.NewNop(),
		WithExecutor(NewGraphExecutor(zap.NewNop())),
		WithExecutionTTL(time.Nanosecond),
	)
	require.NoError(t, orch.RegisterWorkflow(loopWorkflow(t)))
	m := NewManager(zap.NewNop(), orch, WithPruneInterval(10*time.Millisecond))

	state, err := m.Run(context.Background(), "wf_loop", nil)
	require.NoError(t, err)

	m.Start()
	m.Start() // second Start is a no-op
	defer m.Stop()

	require.Eventually(t, func() bool {
		_, err := m.Status(state.ExecutionID)
		return err != nil
	}, time.Second, 10*time.Millisecond, "finished record should be pruned")
}

func TestManager_StopWithoutStart(t *testing.T) {
	m := newTestManager(t)
	m.Stop() // must not panic or block
}
