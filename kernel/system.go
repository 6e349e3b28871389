package kernel

import (
	"github.com/TheBitDrifter/fdp"
	"github.com/TheBitDrifter/fdp/event"
)

// System is one registered unit of per-tick behavior. Run receives a
// read-only View and returns an error if it faults; a returned error is
// caught by the scheduler and charged to this system's circuit breaker
// (spec §4.8 SystemFault) — it is never propagated to the caller of Tick.
type System interface {
	Run(v *View) error
}

// SystemFunc adapts a plain function to System, the same convenience
// wrapper idiom as http.HandlerFunc.
type SystemFunc func(v *View) error

func (f SystemFunc) Run(v *View) error { return f(v) }

// Policy selects when a registered system runs within its phase (spec
// §4.8).
type Policy int

const (
	// Synchronous systems run every tick, in registration order, on the
	// scheduler's own goroutine.
	Synchronous Policy = iota
	// SlowBackground systems run on a worker goroutine at a reduced rate;
	// their command buffer is drained on the main thread at this phase's
	// boundary, after every Synchronous system of the same phase (spec §5).
	SlowBackground
	// Reactive systems run only when at least one watched event type has a
	// non-empty read queue.
	Reactive
)

func (p Policy) String() string {
	switch p {
	case Synchronous:
		return "Synchronous"
	case SlowBackground:
		return "SlowBackground"
	case Reactive:
		return "Reactive"
	default:
		return "Unknown"
	}
}

// watchedEventCheck is a type-erased "does this event type's read queue
// have anything in it" probe, built once per watched event type at
// registration via WatchEvent[E] since Go cannot express a
// dynamically-typed list of event types directly.
type watchedEventCheck func(bus *event.Bus) bool

// WatchEvent builds a watched-event predicate for Reactive-policy
// registration, checking event type E's current read queue.
func WatchEvent[E any]() watchedEventCheck {
	return func(bus *event.Bus) bool { return event.HasAny[E](bus) }
}

// registration is the metadata the scheduler keeps for one registered
// system (spec §4.8 "Per-system metadata").
type registration struct {
	system  System
	label   string
	phase   Phase
	policy  Policy
	backgroundHz float64
	watchedEvents []watchedEventCheck
	watchedComponents []fdp.TypeID

	breaker circuitBreaker

	// background scheduling state
	lastRunTick uint64
	intervalTicks uint64
	cb *fdp.CommandBuffer
}

// Option configures a RegisterSystem call beyond the required
// phase/policy.
type Option func(*registration)

// WithLabel names a system for diagnostics (breaker state, logging). If
// omitted the scheduler uses its registration index.
func WithLabel(label string) Option {
	return func(r *registration) { r.label = label }
}

// WithBackgroundHz sets a SlowBackground system's target rate. Combined
// with the scheduler's own tick rate (ticksPerSecond passed to
// NewScheduler) this determines how many ticks elapse between runs.
func WithBackgroundHz(hz float64) Option {
	return func(r *registration) { r.backgroundHz = hz }
}

// WithWatchedEvent adds event type E to a Reactive system's watch set.
func WithWatchedEvent[E any]() Option {
	return func(r *registration) { r.watchedEvents = append(r.watchedEvents, WatchEvent[E]()) }
}

// WithWatchedComponents records the component types a system declares
// interest in, informational metadata consumed by external tooling (e.g.
// a dependency-graph inspector); the scheduler itself does not gate
// execution on it.
func WithWatchedComponents(ids ...fdp.TypeID) Option {
	return func(r *registration) { r.watchedComponents = append(r.watchedComponents, ids...) }
}
