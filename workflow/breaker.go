package workflow

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState is the state of a step circuit breaker.
type CircuitState int

const (
	// CircuitClosed lets step invocations through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects step invocations until the recovery timeout elapses.
	CircuitOpen
	// CircuitHalfOpen lets a bounded number of probe invocations through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// BreakerConfig tunes the per-step circuit breakers.
type BreakerConfig struct {
	// FailureThreshold 连续失败多少次后熔断。
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`
	// RecoveryTimeout 熔断后等待多久进入半开状态。
	RecoveryTimeout time.Duration `json:"recovery_timeout" yaml:"recovery_timeout"`
	// HalfOpenMaxProbes 半开状态允许的探测次数。
	HalfOpenMaxProbes int `json:"half_open_max_probes" yaml:"half_open_max_probes"`
	// HalfOpenSuccesses 半开状态连续成功多少次后恢复。
	HalfOpenSuccesses int `json:"half_open_successes" yaml:"half_open_successes"`
}

// DefaultBreakerConfig returns the default breaker tuning.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold:  5,
		RecoveryTimeout:   30 * time.Second,
		HalfOpenMaxProbes: 3,
		HalfOpenSuccesses: 2,
	}
}

// CircuitBreaker guards one step against repeated handler failures. All
// methods are safe for concurrent use.
type CircuitBreaker struct {
	stepName    string
	config      BreakerConfig
	state       CircuitState
	failures    int
	successes   int
	probes      int
	lastFailure time.Time
	logger      *zap.Logger
	mu          sync.Mutex
}

// NewCircuitBreaker creates a closed breaker for the given step.
func NewCircuitBreaker(stepName string, config BreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CircuitBreaker{
		stepName: stepName,
		config:   config,
		state:    CircuitClosed,
		logger:   logger.With(zap.String("step", stepName)),
	}
}

// Allow reports whether the next invocation may proceed. An open breaker
// transitions to half-open once the recovery timeout has elapsed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return nil

	case CircuitOpen:
		if time.Since(cb.lastFailure) >= cb.config.RecoveryTimeout {
			cb.transitionTo(CircuitHalfOpen, "recovery timeout elapsed")
			cb.probes = 1
			cb.successes = 0
			return nil
		}
		return fmt.Errorf("circuit breaker open for step %q: %d consecutive failures, retry after %v",
			cb.stepName, cb.failures, cb.config.RecoveryTimeout-time.Since(cb.lastFailure))

	case CircuitHalfOpen:
		if cb.probes < cb.config.HalfOpenMaxProbes {
			cb.probes++
			return nil
		}
		return fmt.Errorf("circuit breaker half-open for step %q: max probes (%d) reached",
			cb.stepName, cb.config.HalfOpenMaxProbes)

	default:
		return fmt.Errorf("circuit breaker for step %q in unknown state %d", cb.stepName, cb.state)
	}
}

// RecordSuccess feeds a successful invocation into the breaker.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failures = 0

	case CircuitHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.HalfOpenSuccesses {
			cb.transitionTo(CircuitClosed, fmt.Sprintf("%d consecutive successes in half-open", cb.successes))
			cb.failures = 0
			cb.successes = 0
		}
	}
}

// RecordFailure feeds a failed invocation into the breaker.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()

	switch cb.state {
	case CircuitClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.transitionTo(CircuitOpen, fmt.Sprintf("%d consecutive failures", cb.failures))
		}

	case CircuitHalfOpen:
		// 半开状态下任何失败都重新熔断。
		cb.successes = 0
		cb.transitionTo(CircuitOpen, "failure in half-open state")
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the consecutive failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset returns the breaker to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state != CircuitClosed {
		cb.transitionTo(CircuitClosed, "manual reset")
	}
	cb.failures = 0
	cb.successes = 0
	cb.probes = 0
}

// transitionTo must be called with the mutex held.
func (cb *CircuitBreaker) transitionTo(newState CircuitState, reason string) {
	oldState := cb.state
	cb.state = newState
	cb.logger.Info("circuit breaker state change",
		zap.String("old_state", oldState.String()),
		zap.String("new_state", newState.String()),
		zap.String("reason", reason),
		zap.Int("failures", cb.failures),
	)
}

// BreakerSet holds one breaker per step name, created on demand.
type BreakerSet struct {
	breakers map[string]*CircuitBreaker
	config   BreakerConfig
	logger   *zap.Logger
	mu       sync.RWMutex
}

// NewBreakerSet creates an empty breaker set.
func NewBreakerSet(config BreakerConfig, logger *zap.Logger) *BreakerSet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BreakerSet{
		breakers: make(map[string]*CircuitBreaker),
		config:   config,
		logger:   logger,
	}
}

// Get returns the breaker for the step, creating it on first use.
func (s *BreakerSet) Get(stepName string) *CircuitBreaker {
	s.mu.RLock()
	if cb, ok := s.breakers[stepName]; ok {
		s.mu.RUnlock()
		return cb
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[stepName]; ok {
		return cb
	}
	cb := NewCircuitBreaker(stepName, s.config, s.logger)
	s.breakers[stepName] = cb
	return cb
}

// States returns a snapshot of every breaker's state by step name.
func (s *BreakerSet) States() map[string]CircuitState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	states := make(map[string]CircuitState, len(s.breakers))
	for name, cb := range s.breakers {
		states[name] = cb.State()
	}
	return states
}

// ResetAll closes every breaker in the set.
func (s *BreakerSet) ResetAll() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cb := range s.breakers {
		cb.Reset()
	}
}
