package kernel

// BreakerState names the per-system circuit breaker's state (spec §4.8,
// glossary "Circuit breaker").
type BreakerState int

const (
	Closed BreakerState = iota
	Open
	Probing
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case Probing:
		return "Probing"
	default:
		return "Unknown"
	}
}

const (
	failureThreshold = 3
	probeInterval    = 60
)

// circuitBreaker isolates a single system's faults from the rest of the
// tick: after three consecutive failures it opens and the system is
// skipped; every probeInterval ticks it is probed once; one successful
// probe closes it, a failed probe reopens it (spec §4.8, invariant 11,
// scenario S6).
type circuitBreaker struct {
	state               BreakerState
	consecutiveFailures int
	ticksSinceOpen      uint64
}

// ShouldRun reports whether the system owning this breaker should execute
// this tick, advancing the breaker's internal open-wait counter as a side
// effect.
func (cb *circuitBreaker) ShouldRun() bool {
	switch cb.state {
	case Closed:
		return true
	case Open:
		if cb.ticksSinceOpen >= probeInterval {
			cb.state = Probing
			return true
		}
		cb.ticksSinceOpen++
		return false
	case Probing:
		return true
	default:
		return true
	}
}

// RecordResult must be called exactly once per tick in which ShouldRun
// returned true, reporting whether that run raised a SystemFault.
func (cb *circuitBreaker) RecordResult(faulted bool) {
	if !faulted {
		cb.state = Closed
		cb.consecutiveFailures = 0
		cb.ticksSinceOpen = 0
		return
	}
	cb.consecutiveFailures++
	if cb.state == Probing || cb.consecutiveFailures >= failureThreshold {
		cb.state = Open
		cb.ticksSinceOpen = 0
	}
}

// State returns the breaker's current state, for diagnostics.
func (cb *circuitBreaker) State() BreakerState { return cb.state }
