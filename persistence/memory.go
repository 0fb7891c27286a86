package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flowforge/flowforge/workflow"
)

// MemoryHistoryStore keeps histories in process memory. Suitable for tests
// and single-process deployments.
type MemoryHistoryStore struct {
	mu        sync.RWMutex
	histories map[string]*workflow.ExecutionHistory
}

// NewMemoryHistoryStore creates an empty in-memory store.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{
		histories: make(map[string]*workflow.ExecutionHistory),
	}
}

// Save stores a history, replacing any previous one for the same execution.
func (s *MemoryHistoryStore) Save(_ context.Context, history *workflow.ExecutionHistory) error {
	if history == nil || history.ExecutionID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[history.ExecutionID] = history
	return nil
}

// Get retrieves a history by execution ID.
func (s *MemoryHistoryStore) Get(_ context.Context, executionID string) (*workflow.ExecutionHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.histories[executionID]
	if !ok {
		return nil, ErrNotFound
	}
	return h, nil
}

// ListByWorkflow returns the histories for a workflow, newest first.
func (s *MemoryHistoryStore) ListByWorkflow(_ context.Context, workflowID string, limit int) ([]*workflow.ExecutionHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*workflow.ExecutionHistory
	for _, h := range s.histories {
		if h.WorkflowID == workflowID {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a history.
func (s *MemoryHistoryStore) Delete(_ context.Context, executionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.histories[executionID]; !ok {
		return ErrNotFound
	}
	delete(s.histories, executionID)
	return nil
}

// Cleanup removes finished histories older than the given age.
func (s *MemoryHistoryStore) Cleanup(_ context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, h := range s.histories {
		if h.Status.IsTerminal() && !h.EndTime.IsZero() && h.EndTime.Before(cutoff) {
			delete(s.histories, id)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryHistoryStore) Close() error { return nil }

var _ HistoryStore = (*MemoryHistoryStore)(nil)
