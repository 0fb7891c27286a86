package workflow

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// WorkflowFactory builds workflows from named templates. The template
// registry implements this.
type WorkflowFactory interface {
	CreateWorkflow(templateName, workflowName string, config map[string]any) (*Workflow, error)
}

// Manager is the front door for deploying and running workflows. It wraps an
// Orchestrator and owns the background pruning of finished execution records.
type Manager struct {
	logger       *zap.Logger
	orchestrator *Orchestrator
	factory      WorkflowFactory
	interval     time.Duration
	stop         chan struct{}
	done         chan struct{}
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPruneInterval sets how often finished execution records are pruned.
func WithPruneInterval(d time.Duration) ManagerOption {
	return func(m *Manager) { m.interval = d }
}

// WithWorkflowFactory attaches a template-backed workflow factory so
// DeployFromTemplate can be used.
func WithWorkflowFactory(f WorkflowFactory) ManagerOption {
	return func(m *Manager) { m.factory = f }
}

// NewManager creates a manager around an orchestrator.
func NewManager(logger *zap.Logger, orch *Orchestrator, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		logger:       logger.With(zap.String("component", "workflow_manager")),
		orchestrator: orch,
		interval:     5 * time.Minute,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Orchestrator exposes the wrapped orchestrator.
func (m *Manager) Orchestrator() *Orchestrator { return m.orchestrator }

// Deploy validates and registers a workflow.
func (m *Manager) Deploy(wf *Workflow) error {
	return m.orchestrator.RegisterWorkflow(wf)
}

// DeployFromTemplate builds a workflow from a registered template, deploys
// it, and returns it.
func (m *Manager) DeployFromTemplate(templateName, workflowName string, config map[string]any) (*Workflow, error) {
	if m.factory == nil {
		return nil, NewError(ErrCodeValidation, "no workflow factory configured")
	}
	wf, err := m.factory.CreateWorkflow(templateName, workflowName, config)
	if err != nil {
		return nil, err
	}
	if err := m.orchestrator.RegisterWorkflow(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// DeployYAML registers a workflow from its YAML definition and returns it.
func (m *Manager) DeployYAML(data []byte) (*Workflow, error) {
	wf, err := UnmarshalYAML(data)
	if err != nil {
		return nil, err
	}
	if err := m.orchestrator.RegisterWorkflow(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// DeployJSON registers a workflow from its JSON definition and returns it.
func (m *Manager) DeployJSON(data []byte) (*Workflow, error) {
	wf, err := UnmarshalJSON(data)
	if err != nil {
		return nil, err
	}
	if err := m.orchestrator.RegisterWorkflow(wf); err != nil {
		return nil, err
	}
	return wf, nil
}

// Run executes a deployed workflow and blocks until it finishes.
func (m *Manager) Run(ctx context.Context, workflowID string, execCtx map[string]any) (*ExecutionState, error) {
	return m.orchestrator.Execute(ctx, workflowID, execCtx)
}

// RunAsync starts a deployed workflow without blocking.
func (m *Manager) RunAsync(ctx context.Context, workflowID string, execCtx map[string]any) (string, <-chan ExecutionResult, error) {
	return m.orchestrator.ExecuteAsync(ctx, workflowID, execCtx)
}

// Status returns the record for an execution.
func (m *Manager) Status(execID string) (*ExecutionRecord, error) {
	return m.orchestrator.Execution(execID)
}

// Start launches the background pruner. Call Stop to shut it down.
func (m *Manager) Start() {
	if m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.pruneLoop()
	m.logger.Info("workflow manager started", zap.Duration("prune_interval", m.interval))
}

// Stop shuts down the background pruner and waits for it to exit.
func (m *Manager) Stop() {
	if m.stop == nil {
		return
	}
	close(m.stop)
	<-m.done
	m.stop = nil
	m.logger.Info("workflow manager stopped")
}

func (m *Manager) pruneLoop() {
	defer close(m.done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.orchestrator.PruneExpired()
		}
	}
}
