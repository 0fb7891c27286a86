package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:  3,
		RecoveryTimeout:   time.Hour,
		HalfOpenMaxProbes: 2,
		HalfOpenSuccesses: 2,
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("risky", testBreakerConfig(), zap.NewNop())

	for i := 0; i < 2; i++ {
		require.NoError(t, cb.Allow())
		cb.RecordFailure()
	}
	assert.Equal(t, CircuitClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.Equal(t, 3, cb.Failures())

	err := cb.Allow()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Contains(t, err.Error(), `"risky"`)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("flaky", testBreakerConfig(), zap.NewNop())

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.FailureThreshold = 1
	cfg.RecoveryTimeout = time.Millisecond
	cb := NewCircuitBreaker("risky", cfg, zap.NewNop())

	cb.RecordFailure()
	require.Equal(t, CircuitOpen, cb.State())

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	cb.RecordSuccess()
	require.NoError(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.FailureThreshold = 1
	cfg.RecoveryTimeout = time.Millisecond
	cb := NewCircuitBreaker("risky", cfg, zap.NewNop())

	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, cb.Allow())
	require.Equal(t, CircuitHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenProbeLimit(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.FailureThreshold = 1
	cfg.RecoveryTimeout = time.Millisecond
	cfg.HalfOpenMaxProbes = 1
	cb := NewCircuitBreaker("risky", cfg, zap.NewNop())

	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, cb.Allow())

	err := cb.Allow()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max probes")
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cfg := testBreakerConfig()
	cfg.FailureThreshold = 1
	cb := NewCircuitBreaker("risky", cfg, zap.NewNop())

	cb.RecordFailure()
	require.Equal(t, CircuitOpen, cb.State())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, 0, cb.Failures())
	require.NoError(t, cb.Allow())
}

func TestBreakerSet(t *testing.T) {
	set := NewBreakerSet(testBreakerConfig(), zap.NewNop())

	a := set.Get("analyze")
	assert.Same(t, a, set.Get("analyze"))
	assert.NotSame(t, a, set.Get("execute_tool"))

	for i := 0; i < 3; i++ {
		a.RecordFailure()
	}
	states := set.States()
	assert.Equal(t, CircuitOpen, states["analyze"])
	assert.Equal(t, CircuitClosed, states["execute_tool"])

	set.ResetAll()
	assert.Equal(t, CircuitClosed, set.Get("analyze").State())
}

func TestGraphExecutor_CircuitBreakerTrips(t *testing.T) {
	w := New("wf_breaker", "breaker", "")
	require.NoError(t, w.AddStep(mustStep(t, "risky", StepExecution,
		WithStepRetry(3, 0))))
	require.NoError(t, w.AddStep(mustStep(t, "done", StepEnd)))
	require.NoError(t, w.AddTransition(mustTransition(t, "risky", "done", TransitionSimple)))
	w.SetEntryPoint("risky")

	boom := StepHandlerFunc(func(_ context.Context, _ *Step, _ *ExecutionState) (map[string]any, error) {
		return nil, errors.New("backend down")
	})
	cfg := testBreakerConfig()
	cfg.FailureThreshold = 2
	exec := NewGraphExecutor(zap.NewNop(),
		WithCircuitBreaker(cfg),
		WithNameHandler("risky", boom),
	)

	// 第一次运行：两次失败后熔断，重试被熔断器截断。
	_, err := exec.Execute(context.Background(), w, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `step "risky" failed`)
	assert.Equal(t, CircuitOpen, exec.Breakers().States()["risky"])

	// 第二次运行：熔断器直接拒绝，处理器不再被调用。
	_, err = exec.Execute(context.Background(), w, nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit breaker open")
	assert.Equal(t, ErrCodeExecution, GetErrorCode(err))
}
