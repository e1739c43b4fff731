package circuitbreaker

import (
	"sort"
	"sync"
	"time"

	"clinic-dispatcher/internal/common/logger"
	"clinic-dispatcher/internal/common/metrics"
)

// capabilityState is guarded by its own mutex so a burst of failures on one
// capability never delays reads or writes on another.
type capabilityState struct {
	mu            sync.Mutex
	failureCount  uint
	lastFailureAt time.Time
	state         State
}

// Breaker tracks failures per capability.
type Breaker struct {
	config *Config
	logger logger.Logger
	now    func() time.Time

	mu     sync.RWMutex
	states map[string]*capabilityState
}

type Option func(*Breaker)

// WithClock replaces time.Now; tests use it to step through the recovery window.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) { b.now = now }
}

func New(cfg *Config, log logger.Logger, opts ...Option) *Breaker {
	if cfg == nil {
		cfg = &Config{FailureThreshold: 5, RecoveryTimeout: 60 * time.Second}
	}
	b := &Breaker{
		config: cfg,
		logger: logger.ForComponent(log, "circuit-breaker"),
		now:    time.Now,
		states: make(map[string]*capabilityState),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// get returns the state for capability, creating a CLOSED one on first reference.
func (b *Breaker) get(capability string) *capabilityState {
	b.mu.RLock()
	cs, ok := b.states[capability]
	b.mu.RUnlock()
	if ok {
		return cs
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if cs, ok = b.states[capability]; ok {
		return cs
	}
	cs = &capabilityState{state: StateClosed}
	b.states[capability] = cs
	metrics.CircuitState.WithLabelValues(capability).Set(float64(StateClosed))
	return cs
}

// IsOpen reports whether calls to capability should be short-circuited.
// Once the recovery window elapses it returns false without touching the
// stored state, letting callers send a trial call.
func (b *Breaker) IsOpen(capability string) bool {
	return b.State(capability) == StateOpen
}

// State returns the externally observed state, projecting HALF_OPEN.
func (b *Breaker) State(capability string) State {
	cs := b.get(capability)
	cs.mu.Lock()
	st := b.observe(cs)
	cs.mu.Unlock()

	if st == StateHalfOpen {
		metrics.CircuitState.WithLabelValues(capability).Set(float64(StateHalfOpen))
	}
	return st
}

// observe must be called with cs.mu held.
func (b *Breaker) observe(cs *capabilityState) State {
	if cs.state != StateOpen {
		return cs.state
	}
	if b.now().Sub(cs.lastFailureAt) >= b.config.RecoveryTimeout {
		return StateHalfOpen
	}
	return StateOpen
}

// RecordSuccess resets the counter and closes the circuit unconditionally.
func (b *Breaker) RecordSuccess(capability string) {
	cs := b.get(capability)
	cs.mu.Lock()
	wasOpen := cs.state == StateOpen
	cs.failureCount = 0
	cs.state = StateClosed
	cs.mu.Unlock()

	metrics.CircuitState.WithLabelValues(capability).Set(float64(StateClosed))
	if wasOpen {
		b.logger.Info("circuit closed", map[string]interface{}{"capability": capability})
	}
}

func (b *Breaker) RecordFailure(capability string) {
	cs := b.get(capability)
	cs.mu.Lock()
	cs.failureCount++
	cs.lastFailureAt = b.now()
	tripped := cs.state != StateOpen && cs.failureCount >= b.config.FailureThreshold
	if cs.failureCount >= b.config.FailureThreshold {
		cs.state = StateOpen
	}
	count := cs.failureCount
	cs.mu.Unlock()

	if count >= b.config.FailureThreshold {
		metrics.CircuitState.WithLabelValues(capability).Set(float64(StateOpen))
	}
	if tripped {
		b.logger.Warn("circuit opened", map[string]interface{}{
			"capability":      capability,
			"failureCount":    count,
			"recoveryTimeout": b.config.RecoveryTimeout.String(),
		})
	}
}

// Snapshot returns every known capability's state, sorted by name.
func (b *Breaker) Snapshot() []Stats {
	b.mu.RLock()
	names := make([]string, 0, len(b.states))
	for name := range b.states {
		names = append(names, name)
	}
	b.mu.RUnlock()
	sort.Strings(names)

	out := make([]Stats, 0, len(names))
	for _, name := range names {
		cs := b.get(name)
		cs.mu.Lock()
		st := Stats{
			Capability:   name,
			State:        b.observe(cs).String(),
			FailureCount: cs.failureCount,
		}
		if !cs.lastFailureAt.IsZero() {
			at := cs.lastFailureAt
			st.LastFailureAt = &at
		}
		cs.mu.Unlock()
		out = append(out, st)
	}
	return out
}
