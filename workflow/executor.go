package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// StepHandler executes a single step. The returned map is merged into the
// execution state's data. Handlers are the bridge to external collaborators
// such as LLM clients and tool runtimes.
type StepHandler interface {
	Execute(ctx context.Context, step *Step, state *ExecutionState) (map[string]any, error)
}

// StepHandlerFunc adapts a function to the StepHandler interface.
type StepHandlerFunc func(ctx context.Context, step *Step, state *ExecutionState) (map[string]any, error)

func (f StepHandlerFunc) Execute(ctx context.Context, step *Step, state *ExecutionState) (map[string]any, error) {
	return f(ctx, step, state)
}

// PassthroughHandler leaves the state unchanged.
func PassthroughHandler() StepHandler {
	return StepHandlerFunc(func(context.Context, *Step, *ExecutionState) (map[string]any, error) {
		return nil, nil
	})
}

// Executor runs a workflow to completion. Execute blocks; ExecuteAsync is a
// genuinely separate non-blocking path delivering its outcome on a channel.
type Executor interface {
	Execute(ctx context.Context, wf *Workflow, state *ExecutionState, execCtx map[string]any) (*ExecutionState, error)
	ExecuteAsync(ctx context.Context, wf *Workflow, state *ExecutionState, execCtx map[string]any) <-chan ExecutionResult
}

// HistorySink receives completed execution histories.
type HistorySink interface {
	Save(ctx context.Context, history *ExecutionHistory) error
}

// StepObserver receives per-step outcomes, e.g. for metrics.
type StepObserver func(workflowID string, step *Step, status ExecutionStatus)

// GraphExecutor is the default in-process executor. It walks the graph from
// the entry node, runs a handler per step with timeout and retry, follows
// error/timeout transitions on failure, and selects the next node from the
// enabled outgoing transitions in priority order.
type GraphExecutor struct {
	logger       *zap.Logger
	maxSteps     int
	typeHandlers map[StepType]StepHandler
	nameHandlers map[string]StepHandler
	fallback     StepHandler
	histories    HistorySink
	observer     StepObserver
	breakers     *BreakerSet
}

// GraphExecutorOption configures a GraphExecutor.
type GraphExecutorOption func(*GraphExecutor)

// WithMaxSteps bounds the number of step executions per run. The guard stops
// runaway loops in cyclic workflows.
func WithMaxSteps(n int) GraphExecutorOption {
	return func(e *GraphExecutor) { e.maxSteps = n }
}

// WithTypeHandler registers a handler for all steps of a type.
func WithTypeHandler(typ StepType, h StepHandler) GraphExecutorOption {
	return func(e *GraphExecutor) { e.typeHandlers[typ] = h }
}

// WithNameHandler registers a handler for steps with a specific name.
// Name handlers take precedence over type handlers.
func WithNameHandler(name string, h StepHandler) GraphExecutorOption {
	return func(e *GraphExecutor) { e.nameHandlers[name] = h }
}

// WithHistorySink attaches a sink for completed execution histories.
func WithHistorySink(sink HistorySink) GraphExecutorOption {
	return func(e *GraphExecutor) { e.histories = sink }
}

// WithStepObserver attaches a per-step outcome observer.
func WithStepObserver(obs StepObserver) GraphExecutorOption {
	return func(e *GraphExecutor) { e.observer = obs }
}

// WithCircuitBreaker guards every handler invocation with a per-step circuit
// breaker. A step whose handler keeps failing is rejected outright until the
// recovery timeout elapses; the rejection follows the step's error transition
// when one exists.
func WithCircuitBreaker(config BreakerConfig) GraphExecutorOption {
	return func(e *GraphExecutor) { e.breakers = NewBreakerSet(config, e.logger) }
}

// NewGraphExecutor creates a graph executor. Steps without a registered
// handler run the passthrough handler.
func NewGraphExecutor(logger *zap.Logger, opts ...GraphExecutorOption) *GraphExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &GraphExecutor{
		logger:       logger.With(zap.String("component", "graph_executor")),
		maxSteps:     100,
		typeHandlers: make(map[StepType]StepHandler),
		nameHandlers: make(map[string]StepHandler),
		fallback:     PassthroughHandler(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the workflow to completion. The returned state is the input
// state after all handler updates; on error the partially updated state is
// returned together with the error.
func (e *GraphExecutor) Execute(ctx context.Context, wf *Workflow, state *ExecutionState, execCtx map[string]any) (_ *ExecutionState, err error) {
	graph, err := BuildGraph(wf)
	if err != nil {
		return nil, err
	}
	if state == nil {
		state = NewExecutionState(wf.ID, uuid.NewString())
	}

	history := NewExecutionHistory(state.ExecutionID, wf.ID)
	defer func() {
		// Handler panics become failed executions, not process crashes.
		if r := recover(); r != nil {
			err = NewError(ErrCodeExecution, fmt.Sprintf("step handler panic: %v", r))
		}
		history.Complete(err)
		e.saveHistory(history)
	}()

	e.logger.Info("starting workflow execution",
		zap.String("workflow_id", wf.ID),
		zap.String("execution_id", state.ExecutionID),
		zap.String("entry", graph.Entry()),
	)

	current, err := graph.MustNode(graph.Entry())
	if err != nil {
		return state, err
	}

	executed := 0
	for {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		default:
		}

		if executed >= e.maxSteps {
			return state, NewError(ErrCodeStepLimitReached,
				fmt.Sprintf("workflow %s exceeded %d steps", wf.ID, e.maxSteps))
		}
		executed++

		stepErr := e.runStep(ctx, current.Step, state, history)
		if stepErr != nil {
			next, recovered := e.recoveryTarget(graph, current, stepErr)
			if !recovered {
				return state, stepErr
			}
			state.SetData("last_error", stepErr.Error())
			e.logger.Warn("step failed, following recovery transition",
				zap.String("step", current.Step.Name),
				zap.String("next", next.Step.Name),
				zap.Error(stepErr),
			)
			current = next
			continue
		}

		if current.Step.IsTerminal() {
			break
		}

		var next *Node
		if current.Step.Type == StepParallel {
			next, err = e.runParallel(ctx, graph, current, state, history)
		} else {
			next, err = e.selectNext(graph, current, state, execCtx)
		}
		if err != nil {
			return state, err
		}
		if next == nil {
			break
		}
		current = next
	}

	state.MarkCompleted()
	state.Status = ExecutionCompleted
	e.logger.Info("workflow execution completed",
		zap.String("workflow_id", wf.ID),
		zap.Int("steps_executed", executed),
	)
	return state, nil
}

// ExecuteAsync runs the workflow in a goroutine and delivers the outcome on
// the returned channel.
func (e *GraphExecutor) ExecuteAsync(ctx context.Context, wf *Workflow, state *ExecutionState, execCtx map[string]any) <-chan ExecutionResult {
	results := make(chan ExecutionResult, 1)
	go func() {
		defer close(results)
		final, err := e.Execute(ctx, wf, state, execCtx)
		execID := ""
		if final != nil {
			execID = final.ExecutionID
		}
		results <- ExecutionResult{ExecutionID: execID, State: final, Err: err}
	}()
	return results
}

// runStep executes one step with its retry and timeout budget.
func (e *GraphExecutor) runStep(ctx context.Context, step *Step, state *ExecutionState, history *ExecutionHistory) error {
	handler := e.handlerFor(step)

	var breaker *CircuitBreaker
	if e.breakers != nil {
		breaker = e.breakers.Get(step.Name)
	}

	var lastErr error
	for attempt := 0; attempt <= step.RetryCount; attempt++ {
		if breaker != nil {
			if err := breaker.Allow(); err != nil {
				if lastErr != nil {
					break
				}
				return NewError(ErrCodeExecution,
					fmt.Sprintf("step %q rejected", step.Name)).WithCause(err)
			}
		}
		if attempt > 0 && step.RetryDelay > 0 {
			timer := time.NewTimer(step.RetryDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		rec := history.RecordStepStart(step, attempt)

		stepCtx := ctx
		cancel := context.CancelFunc(func() {})
		if step.Timeout > 0 {
			stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		}
		updates, err := handler.Execute(stepCtx, step, state)
		cancel()

		history.RecordStepEnd(rec, err)
		if e.observer != nil {
			status := ExecutionCompleted
			if err != nil {
				status = ExecutionFailed
			}
			e.observer(state.WorkflowID, step, status)
		}

		if breaker != nil {
			if err == nil {
				breaker.RecordSuccess()
			} else {
				breaker.RecordFailure()
			}
		}

		if err == nil {
			for k, v := range updates {
				state.SetData(k, v)
			}
			return nil
		}
		lastErr = err
		if errors.Is(err, context.Canceled) {
			return err
		}
		e.logger.Debug("step attempt failed",
			zap.String("step", step.Name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return NewError(ErrCodeExecution, fmt.Sprintf("step %q failed", step.Name)).WithCause(lastErr)
}

// recoveryTarget returns the target of an error or timeout transition
// matching the failure, when one exists.
func (e *GraphExecutor) recoveryTarget(graph *Graph, node *Node, stepErr error) (*Node, bool) {
	wantType := TransitionError
	if errors.Is(stepErr, context.DeadlineExceeded) {
		wantType = TransitionTimeout
	}
	for _, edge := range graph.Outgoing(node.ID) {
		if edge.Transition.Type != wantType || !edge.Transition.Enabled {
			continue
		}
		if target, ok := graph.Node(edge.To); ok {
			return target, true
		}
	}
	// Error transitions also cover timeouts when no timeout edge exists.
	if wantType == TransitionTimeout {
		for _, edge := range graph.Outgoing(node.ID) {
			if edge.Transition.Type != TransitionError || !edge.Transition.Enabled {
				continue
			}
			if target, ok := graph.Node(edge.To); ok {
				return target, true
			}
		}
	}
	return nil, false
}

// selectNext picks the next node from the outgoing transitions in priority
// order. Error and timeout transitions are skipped; they are selected by the
// failure path only.
func (e *GraphExecutor) selectNext(graph *Graph, node *Node, state *ExecutionState, execCtx map[string]any) (*Node, error) {
	vars := conditionVars(state, execCtx)
	for _, edge := range graph.Outgoing(node.ID) {
		t := edge.Transition
		if t.Type == TransitionError || t.Type == TransitionTimeout {
			continue
		}
		ok, err := t.EvaluateCondition(vars)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		return graph.MustNode(edge.To)
	}
	return nil, nil
}

// runParallel fans out over the targets of the enabled outgoing simple
// transitions, executes each target step concurrently, and resumes at the
// join step named in the parallel step's config ("join"). Without a join
// the workflow ends after the fan-out.
func (e *GraphExecutor) runParallel(ctx context.Context, graph *Graph, node *Node, state *ExecutionState, history *ExecutionHistory) (*Node, error) {
	var targets []*Node
	for _, edge := range graph.Outgoing(node.ID) {
		if edge.Transition.Type != TransitionSimple || !edge.Transition.Enabled {
			continue
		}
		target, err := graph.MustNode(edge.To)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		g.Go(func() error {
			return e.runStep(gctx, target.Step, state, history)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, NewError(ErrCodeExecution,
			fmt.Sprintf("parallel fan-out at %q failed", node.Step.Name)).WithCause(err)
	}

	joinID, _ := node.Step.Config["join"].(string)
	if joinID == "" {
		return nil, nil
	}
	return graph.MustNode(joinID)
}

// Breakers exposes the circuit breaker set, nil unless WithCircuitBreaker
// was used.
func (e *GraphExecutor) Breakers() *BreakerSet {
	return e.breakers
}

func (e *GraphExecutor) handlerFor(step *Step) StepHandler {
	if h, ok := e.nameHandlers[step.Name]; ok {
		return h
	}
	if h, ok := e.typeHandlers[step.Type]; ok {
		return h
	}
	return e.fallback
}

func (e *GraphExecutor) saveHistory(history *ExecutionHistory) {
	if e.histories == nil {
		return
	}
	// History persistence is best effort and never fails the execution.
	if err := e.histories.Save(context.Background(), history); err != nil {
		e.logger.Warn("failed to save execution history",
			zap.String("execution_id", history.ExecutionID),
			zap.Error(err),
		)
	}
}

// conditionVars merges the execution context with the state data. State data
// wins on key conflicts because it reflects the newest step outputs.
func conditionVars(state *ExecutionState, execCtx map[string]any) map[string]any {
	vars := make(map[string]any, len(execCtx)+8)
	for k, v := range execCtx {
		vars[k] = v
	}
	for k, v := range state.Data() {
		vars[k] = v
	}
	return vars
}
