package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ExecutionObserver receives execution lifecycle events, e.g. for metrics.
type ExecutionObserver interface {
	ExecutionStarted(workflowID string)
	ExecutionFinished(workflowID string, status ExecutionStatus, elapsed time.Duration)
}

// Orchestrator owns the registered workflows and their execution records.
// 工作流的注册与执行入口，执行本身委托给 Executor。
type Orchestrator struct {
	logger   *zap.Logger
	executor Executor
	prompts  PromptService
	observer ExecutionObserver
	limiter  *rate.Limiter
	tracer   trace.Tracer
	ttl      time.Duration

	mu         sync.RWMutex
	workflows  map[string]*Workflow
	executions map[string]*ExecutionRecord
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithExecutor sets the executor used for all runs.
func WithExecutor(exec Executor) OrchestratorOption {
	return func(o *Orchestrator) { o.executor = exec }
}

// WithPromptService attaches a prompt service. Preparation failures are
// logged and the run proceeds with the caller's context unchanged.
func WithPromptService(ps PromptService) OrchestratorOption {
	return func(o *Orchestrator) { o.prompts = ps }
}

// WithExecutionObserver attaches a lifecycle observer.
func WithExecutionObserver(obs ExecutionObserver) OrchestratorOption {
	return func(o *Orchestrator) { o.observer = obs }
}

// WithRateLimit bounds execution starts per second.
func WithRateLimit(perSecond float64, burst int) OrchestratorOption {
	return func(o *Orchestrator) { o.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// WithTracer attaches a tracer; each execution runs inside a span.
func WithTracer(tracer trace.Tracer) OrchestratorOption {
	return func(o *Orchestrator) { o.tracer = tracer }
}

// WithExecutionTTL sets how long finished execution records are retained
// before PruneExpired removes them.
func WithExecutionTTL(ttl time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.ttl = ttl }
}

// NewOrchestrator creates an orchestrator. An executor must be configured
// before Execute is called, either here or via SetExecutor.
func NewOrchestrator(logger *zap.Logger, opts ...OrchestratorOption) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		logger:     logger.With(zap.String("component", "orchestrator")),
		ttl:        time.Hour,
		workflows:  make(map[string]*Workflow),
		executions: make(map[string]*ExecutionRecord),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetExecutor replaces the executor.
func (o *Orchestrator) SetExecutor(exec Executor) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.executor = exec
}

// RegisterWorkflow validates and registers a workflow. Registering an ID
// again replaces the previous definition with a warning.
func (o *Orchestrator) RegisterWorkflow(wf *Workflow) error {
	if err := wf.Validate(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.workflows[wf.ID]; exists {
		o.logger.Warn("overwriting registered workflow", zap.String("workflow_id", wf.ID))
	}
	o.workflows[wf.ID] = wf
	o.logger.Info("workflow registered",
		zap.String("workflow_id", wf.ID),
		zap.String("name", wf.Name),
		zap.Int("steps", wf.StepCount()),
	)
	return nil
}

// Workflow returns a registered workflow.
func (o *Orchestrator) Workflow(id string) (*Workflow, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	wf, ok := o.workflows[id]
	return wf, ok
}

// WorkflowIDs lists the registered workflow IDs.
func (o *Orchestrator) WorkflowIDs() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := make([]string, 0, len(o.workflows))
	for id := range o.workflows {
		ids = append(ids, id)
	}
	return ids
}

// Execute runs a registered workflow to completion. The execution record is
// updated before the error is returned, so a failed run is always observable
// through Execution afterwards.
func (o *Orchestrator) Execute(ctx context.Context, workflowID string, execCtx map[string]any) (*ExecutionState, error) {
	wf, exec, err := o.prepare(workflowID)
	if err != nil {
		return nil, err
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	execID := uuid.NewString()
	record := o.startRecord(execID, workflowID)

	if o.tracer != nil {
		var span trace.Span
		ctx, span = o.tracer.Start(ctx, "workflow.execute",
			trace.WithAttributes(
				attribute.String("workflow.id", workflowID),
				attribute.String("workflow.execution_id", execID),
			))
		defer span.End()
		defer func() {
			if record.Status == ExecutionFailed {
				span.SetStatus(codes.Error, record.Error)
			}
		}()
	}

	execCtx = o.prepareContext(ctx, wf, execCtx)

	state := NewExecutionState(wf.ID, execID)
	for k, v := range execCtx {
		state.SetData(k, v)
	}

	final, runErr := exec.Execute(ctx, wf, state, execCtx)
	o.finishRecord(record, final, runErr)
	if runErr != nil {
		o.logger.Error("workflow execution failed",
			zap.String("workflow_id", workflowID),
			zap.String("execution_id", execID),
			zap.Error(runErr),
		)
		return final, runErr
	}
	return final, nil
}

// ExecuteAsync starts a run without blocking. It returns the execution ID
// and a channel that delivers the final result. Registration and executor
// errors are reported synchronously.
func (o *Orchestrator) ExecuteAsync(ctx context.Context, workflowID string, execCtx map[string]any) (string, <-chan ExecutionResult, error) {
	if _, _, err := o.prepare(workflowID); err != nil {
		return "", nil, err
	}

	execID := uuid.NewString()
	results := make(chan ExecutionResult, 1)
	go func() {
		defer close(results)
		state, err := o.executeWithID(ctx, workflowID, execID, execCtx)
		results <- ExecutionResult{ExecutionID: execID, State: state, Err: err}
	}()
	return execID, results, nil
}

// executeWithID is the async body: same record lifecycle as Execute but with
// a pre-assigned execution ID.
func (o *Orchestrator) executeWithID(ctx context.Context, workflowID, execID string, execCtx map[string]any) (*ExecutionState, error) {
	wf, exec, err := o.prepare(workflowID)
	if err != nil {
		return nil, err
	}
	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	record := o.startRecord(execID, workflowID)
	execCtx = o.prepareContext(ctx, wf, execCtx)

	state := NewExecutionState(wf.ID, execID)
	for k, v := range execCtx {
		state.SetData(k, v)
	}

	final, runErr := exec.Execute(ctx, wf, state, execCtx)
	o.finishRecord(record, final, runErr)
	return final, runErr
}

// Execution returns the record for an execution ID.
func (o *Orchestrator) Execution(execID string) (*ExecutionRecord, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	record, ok := o.executions[execID]
	if !ok {
		return nil, ErrExecutionNotFound
	}
	return record, nil
}

// ActiveExecutions lists the records still running.
func (o *Orchestrator) ActiveExecutions() []*ExecutionRecord {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var active []*ExecutionRecord
	for _, record := range o.executions {
		if !record.Status.IsTerminal() {
			active = append(active, record)
		}
	}
	return active
}

// CleanupExecution removes a finished execution record. Running executions
// are kept.
func (o *Orchestrator) CleanupExecution(execID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	record, ok := o.executions[execID]
	if !ok || !record.Status.IsTerminal() {
		return false
	}
	delete(o.executions, execID)
	return true
}

// PruneExpired removes finished records whose completion is older than the
// configured TTL and returns how many were removed. Callers run this
// periodically so the execution map stays bounded.
func (o *Orchestrator) PruneExpired() int {
	cutoff := time.Now().Add(-o.ttl)
	o.mu.Lock()
	defer o.mu.Unlock()
	removed := 0
	for id, record := range o.executions {
		if !record.Status.IsTerminal() || record.CompletedAt == nil {
			continue
		}
		if record.CompletedAt.Before(cutoff) {
			delete(o.executions, id)
			removed++
		}
	}
	if removed > 0 {
		o.logger.Debug("pruned expired execution records", zap.Int("removed", removed))
	}
	return removed
}

// prepare resolves the workflow and executor for a run.
func (o *Orchestrator) prepare(workflowID string) (*Workflow, Executor, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	wf, ok := o.workflows[workflowID]
	if !ok {
		return nil, nil, ErrWorkflowNotFound
	}
	if o.executor == nil {
		return nil, nil, ErrExecutorNotSet
	}
	return wf, o.executor, nil
}

// prepareContext lets the prompt service enrich the context. Fail open:
// preparation errors are logged and the original context is used.
func (o *Orchestrator) prepareContext(ctx context.Context, wf *Workflow, execCtx map[string]any) map[string]any {
	if execCtx == nil {
		execCtx = make(map[string]any)
	}
	if o.prompts == nil {
		return execCtx
	}
	enriched, err := o.prompts.PrepareExecutionContext(ctx, wf, execCtx)
	if err != nil {
		o.logger.Warn("prompt preparation failed, continuing with original context",
			zap.String("workflow_id", wf.ID),
			zap.Error(err),
		)
		return execCtx
	}
	return enriched
}

func (o *Orchestrator) startRecord(execID, workflowID string) *ExecutionRecord {
	record := NewExecutionRecord(execID, workflowID)
	o.mu.Lock()
	o.executions[execID] = record
	o.mu.Unlock()
	if o.observer != nil {
		o.observer.ExecutionStarted(workflowID)
	}
	return record
}

// finishRecord settles the record before the caller sees the outcome.
// 状态数据里带 error 字段的执行同样记为失败。
func (o *Orchestrator) finishRecord(record *ExecutionRecord, state *ExecutionState, runErr error) {
	switch {
	case runErr != nil:
		record.MarkFailed(runErr)
	case state != nil && state.HasError():
		record.MarkFailed(NewError(ErrCodeExecution, "workflow reported an error state"))
	default:
		record.MarkCompleted()
	}
	if o.observer != nil {
		o.observer.ExecutionFinished(record.WorkflowID, record.Status, record.Duration())
	}
}
