package workflow

import (
	"sync"
	"time"
)

// StepRecord records the execution of a single step.
type StepRecord struct {
	StepID    string          `json:"step_id"`
	StepName  string          `json:"step_name"`
	StepType  StepType        `json:"step_type"`
	Attempt   int             `json:"attempt"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	Duration  time.Duration   `json:"duration"`
	Status    ExecutionStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
}

// ExecutionHistory records the complete execution path of a workflow run.
type ExecutionHistory struct {
	ExecutionID string           `json:"execution_id"`
	WorkflowID  string           `json:"workflow_id"`
	StartTime   time.Time        `json:"start_time"`
	EndTime     time.Time        `json:"end_time"`
	Duration    time.Duration    `json:"duration"`
	Status      ExecutionStatus  `json:"status"`
	Steps       []*StepRecord    `json:"steps"`
	Error       string           `json:"error,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
	mu          sync.RWMutex
}

// NewExecutionHistory creates a running history for an execution.
func NewExecutionHistory(executionID, workflowID string) *ExecutionHistory {
	return &ExecutionHistory{
		ExecutionID: executionID,
		WorkflowID:  workflowID,
		StartTime:   time.Now(),
		Status:      ExecutionRunning,
		Steps:       make([]*StepRecord, 0),
		Metadata:    make(map[string]any),
	}
}

// RecordStepStart appends a running step record and returns it.
func (h *ExecutionHistory) RecordStepStart(step *Step, attempt int) *StepRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec := &StepRecord{
		StepID:    step.ID,
		StepName:  step.Name,
		StepType:  step.Type,
		Attempt:   attempt,
		StartTime: time.Now(),
		Status:    ExecutionRunning,
	}
	h.Steps = append(h.Steps, rec)
	return rec
}

// RecordStepEnd closes a step record with its outcome.
func (h *ExecutionHistory) RecordStepEnd(rec *StepRecord, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec.EndTime = time.Now()
	rec.Duration = rec.EndTime.Sub(rec.StartTime)
	if err != nil {
		rec.Status = ExecutionFailed
		rec.Error = err.Error()
	} else {
		rec.Status = ExecutionCompleted
	}
}

// Complete closes the history with the overall outcome.
func (h *ExecutionHistory) Complete(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.EndTime = time.Now()
	h.Duration = h.EndTime.Sub(h.StartTime)
	if err != nil {
		h.Status = ExecutionFailed
		h.Error = err.Error()
	} else {
		h.Status = ExecutionCompleted
	}
}

// GetSteps returns a copy of the step records.
func (h *ExecutionHistory) GetSteps() []*StepRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	steps := make([]*StepRecord, len(h.Steps))
	copy(steps, h.Steps)
	return steps
}

// StepByID returns the most recent record for a step ID.
func (h *ExecutionHistory) StepByID(stepID string) *StepRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := len(h.Steps) - 1; i >= 0; i-- {
		if h.Steps[i].StepID == stepID {
			return h.Steps[i]
		}
	}
	return nil
}
