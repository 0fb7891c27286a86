// Package persistence stores workflow execution histories. The in-memory
// store is the default; the Redis store serves deployments that outlive a
// single process.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/flowforge/flowforge/workflow"
)

var (
	ErrNotFound     = errors.New("execution history not found")
	ErrInvalidInput = errors.New("invalid input")
)

// HistoryStore persists execution histories.
type HistoryStore interface {
	Save(ctx context.Context, history *workflow.ExecutionHistory) error
	Get(ctx context.Context, executionID string) (*workflow.ExecutionHistory, error)
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*workflow.ExecutionHistory, error)
	Delete(ctx context.Context, executionID string) error
	// Cleanup removes finished histories older than the given age and
	// returns how many were removed.
	Cleanup(ctx context.Context, olderThan time.Duration) (int, error)
	Close() error
}
