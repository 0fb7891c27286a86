package workflow

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionStatus is the lifecycle state of a workflow execution.
type ExecutionStatus string

const (
	// ExecutionRunning indicates the execution is in progress.
	ExecutionRunning ExecutionStatus = "running"
	// ExecutionCompleted indicates the execution finished successfully.
	ExecutionCompleted ExecutionStatus = "completed"
	// ExecutionFailed indicates the execution failed.
	ExecutionFailed ExecutionStatus = "failed"
)

// IsTerminal reports whether the status is final.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionCompleted || s == ExecutionFailed
}

// ExecutionRecord tracks one workflow execution from start to completion.
// Records live in the orchestrator until CleanupExecution or PruneExpired
// removes them.
type ExecutionRecord struct {
	ExecutionID string          `json:"execution_id"`
	WorkflowID  string          `json:"workflow_id"`
	Status      ExecutionStatus `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// NewExecutionRecord creates a running record for a workflow.
func NewExecutionRecord(executionID, workflowID string) *ExecutionRecord {
	if executionID == "" {
		executionID = uuid.NewString()
	}
	return &ExecutionRecord{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		Status:      ExecutionRunning,
		StartedAt:   time.Now(),
	}
}

// MarkCompleted transitions the record to completed.
func (r *ExecutionRecord) MarkCompleted() {
	now := time.Now()
	r.Status = ExecutionCompleted
	r.CompletedAt = &now
}

// MarkFailed transitions the record to failed and stores the error.
func (r *ExecutionRecord) MarkFailed(err error) {
	now := time.Now()
	r.Status = ExecutionFailed
	r.CompletedAt = &now
	if err != nil {
		r.Error = err.Error()
	}
}

// Duration returns the elapsed execution time. For running records it is
// the time since start.
func (r *ExecutionRecord) Duration() time.Duration {
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	return time.Since(r.StartedAt)
}

// ExecutionResult is the outcome delivered on asynchronous execution paths.
type ExecutionResult struct {
	ExecutionID string
	State       *ExecutionState
	Err         error
}
