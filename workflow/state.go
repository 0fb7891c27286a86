package workflow

import (
	"fmt"
	"sync"
	"time"
)

// Message is one entry of the conversation-style log carried by a state.
type Message struct {
	Role     string         `json:"role"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ExecutionState is the mutable state threaded through a workflow run.
//
// Two update regimes coexist and the method signatures make the difference
// explicit: WithField, WithMetadata and WithMessages return a fresh copy
// and leave the receiver untouched; SetData and AddMessage mutate the
// receiver in place under a lock. Callers choose the regime per call site.
type ExecutionState struct {
	WorkflowID  string
	ExecutionID string
	Status      ExecutionStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Completed   bool

	mu       sync.RWMutex
	data     map[string]any
	metadata map[string]any
	messages []Message
}

// NewExecutionState creates a state for the given workflow and execution.
func NewExecutionState(workflowID, executionID string) *ExecutionState {
	now := time.Now()
	return &ExecutionState{
		WorkflowID:  workflowID,
		ExecutionID: executionID,
		Status:      ExecutionRunning,
		CreatedAt:   now,
		UpdatedAt:   now,
		data:        make(map[string]any),
		metadata:    make(map[string]any),
	}
}

// --- mutable operations (in-place, locked) ---

// SetData stores a data value on the receiver.
func (s *ExecutionState) SetData(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.UpdatedAt = time.Now()
}

// AddMessage appends a message to the receiver.
func (s *ExecutionState) AddMessage(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	s.UpdatedAt = time.Now()
}

// MarkCompleted flags the state as completed.
func (s *ExecutionState) MarkCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Completed = true
	s.UpdatedAt = time.Now()
}

// --- immutable operations (return a new state) ---

// WithField returns a copy of the state with one data field replaced.
func (s *ExecutionState) WithField(key string, value any) *ExecutionState {
	c := s.clone()
	c.data[key] = value
	c.UpdatedAt = time.Now()
	return c
}

// WithMetadata returns a copy of the state with metadata merged in.
func (s *ExecutionState) WithMetadata(md map[string]any) *ExecutionState {
	c := s.clone()
	for k, v := range md {
		c.metadata[k] = v
	}
	c.UpdatedAt = time.Now()
	return c
}

// WithMessages returns a copy of the state with the message log replaced.
func (s *ExecutionState) WithMessages(msgs []Message) *ExecutionState {
	c := s.clone()
	c.messages = make([]Message, len(msgs))
	copy(c.messages, msgs)
	c.UpdatedAt = time.Now()
	return c
}

// --- accessors ---

// Get returns a data value.
func (s *ExecutionState) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Data returns a copy of the data map.
func (s *ExecutionState) Data() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Metadata returns a copy of the metadata map.
func (s *ExecutionState) Metadata() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.metadata))
	for k, v := range s.metadata {
		out[k] = v
	}
	return out
}

// Messages returns a copy of the message log.
func (s *ExecutionState) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// HasError reports whether an "error" data field is present.
func (s *ExecutionState) HasError() bool {
	_, ok := s.Get("error")
	return ok
}

func (s *ExecutionState) clone() *ExecutionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &ExecutionState{
		WorkflowID:  s.WorkflowID,
		ExecutionID: s.ExecutionID,
		Status:      s.Status,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		Completed:   s.Completed,
		data:        make(map[string]any, len(s.data)),
		metadata:    make(map[string]any, len(s.metadata)),
		messages:    make([]Message, len(s.messages)),
	}
	for k, v := range s.data {
		c.data[k] = v
	}
	for k, v := range s.metadata {
		c.metadata[k] = v
	}
	copy(c.messages, s.messages)
	return c
}

// --- serialization ---

// ToMap serializes the state into a plain map. Timestamps are RFC3339Nano
// strings so the result survives JSON or YAML encoding.
func (s *ExecutionState) ToMap() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := make([]map[string]any, 0, len(s.messages))
	for _, m := range s.messages {
		entry := map[string]any{"role": m.Role, "content": m.Content}
		if len(m.Metadata) > 0 {
			entry["metadata"] = m.Metadata
		}
		msgs = append(msgs, entry)
	}

	data := make(map[string]any, len(s.data))
	for k, v := range s.data {
		data[k] = v
	}
	metadata := make(map[string]any, len(s.metadata))
	for k, v := range s.metadata {
		metadata[k] = v
	}

	return map[string]any{
		"workflow_id":  s.WorkflowID,
		"execution_id": s.ExecutionID,
		"status":       string(s.Status),
		"data":         data,
		"metadata":     metadata,
		"messages":     msgs,
		"completed":    s.Completed,
		"created_at":   s.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":   s.UpdatedAt.Format(time.RFC3339Nano),
	}
}

// StateFromMap rebuilds a state from its ToMap form.
func StateFromMap(m map[string]any) (*ExecutionState, error) {
	s := &ExecutionState{
		data:     make(map[string]any),
		metadata: make(map[string]any),
	}

	var ok bool
	if s.WorkflowID, ok = m["workflow_id"].(string); !ok {
		return nil, NewError(ErrCodeValidation, "state map missing workflow_id")
	}
	if s.ExecutionID, ok = m["execution_id"].(string); !ok {
		return nil, NewError(ErrCodeValidation, "state map missing execution_id")
	}
	if status, ok := m["status"].(string); ok {
		s.Status = ExecutionStatus(status)
	}
	if completed, ok := m["completed"].(bool); ok {
		s.Completed = completed
	}
	if data, ok := m["data"].(map[string]any); ok {
		for k, v := range data {
			s.data[k] = v
		}
	}
	if md, ok := m["metadata"].(map[string]any); ok {
		for k, v := range md {
			s.metadata[k] = v
		}
	}
	if msgs, ok := m["messages"].([]map[string]any); ok {
		for _, entry := range msgs {
			s.messages = append(s.messages, messageFromMap(entry))
		}
	} else if rawMsgs, ok := m["messages"].([]any); ok {
		// JSON decoding yields []any
		for _, raw := range rawMsgs {
			if entry, ok := raw.(map[string]any); ok {
				s.messages = append(s.messages, messageFromMap(entry))
			}
		}
	}

	var err error
	if s.CreatedAt, err = parseTimestamp(m["created_at"]); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTimestamp(m["updated_at"]); err != nil {
		return nil, err
	}
	return s, nil
}

func messageFromMap(entry map[string]any) Message {
	msg := Message{}
	if role, ok := entry["role"].(string); ok {
		msg.Role = role
	}
	if content, ok := entry["content"].(string); ok {
		msg.Content = content
	}
	if md, ok := entry["metadata"].(map[string]any); ok {
		msg.Metadata = md
	}
	return msg
}

func parseTimestamp(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, NewError(ErrCodeValidation, fmt.Sprintf("invalid timestamp %q", s)).WithCause(err)
	}
	return ts, nil
}
