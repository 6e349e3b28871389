package kernel

import (
	"fmt"
	"sync"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/fdp"
	"github.com/TheBitDrifter/fdp/clock"
	"github.com/TheBitDrifter/fdp/event"
)

// SchedulerOptions configures a Scheduler, generalizing the teacher's
// package-level Config singleton (config.go) into an explicit constructor
// parameter (spec §9 "replace global mutable state with explicit
// parameters").
type SchedulerOptions struct {
	// TicksPerSecond is used to convert a SlowBackground system's declared
	// Hz into a tick interval. Defaults to 60 if zero.
	TicksPerSecond float64
}

// TickHook is called once per tick, after the event bus has swapped and
// transient components have been cleared, handing the observer the
// now-stable post-swap state (spec §4.9: the recorder captures "the
// contents of the read queue at frame end (post-swap)").
type TickHook func(tick uint64, gt clock.GlobalTime, store *fdp.EntityStore, bus *event.Bus)

// Scheduler orders registered systems by declared phase, applies each
// one's execution policy, and drives the tick (spec §4.8 "SystemScheduler
// (Kernel)").
type Scheduler struct {
	store   *fdp.EntityStore
	bus     *event.Bus
	clock   clock.Controller
	timeAcc fdp.ComponentAccessor[clock.GlobalTime]

	ticksPerSecond float64
	phases         [phaseCount][]*registration
	tickNum        uint64

	bgMu sync.Mutex
	bgWG sync.WaitGroup

	onTick TickHook
}

// NewScheduler wires store, bus, and a time controller together. It
// registers a NoRecord singleton component to carry GlobalTime, mirroring
// the tick algorithm's step 1 ("advance time via the controller, writing
// GlobalTime to the singleton").
func NewScheduler(store *fdp.EntityStore, bus *event.Bus, controller clock.Controller, opts SchedulerOptions) *Scheduler {
	tps := opts.TicksPerSecond
	if tps <= 0 {
		tps = 60
	}
	acc, err := fdp.RegisterComponent[clock.GlobalTime](store, "__global_time", fdp.NoRecord)
	if err != nil {
		panic(bark.AddTrace(err))
	}
	return &Scheduler{
		store:          store,
		bus:            bus,
		clock:          controller,
		timeAcc:        acc,
		ticksPerSecond: tps,
	}
}

// RegisterSystem installs sys into phase under policy. Systems run in the
// order they were registered, within their phase.
func (s *Scheduler) RegisterSystem(sys System, phase Phase, policy Policy, opts ...Option) {
	r := &registration{system: sys, phase: phase, policy: policy, cb: fdp.NewCommandBuffer()}
	for _, o := range opts {
		o(r)
	}
	if r.label == "" {
		r.label = fmt.Sprintf("%s#%d", phase, len(s.phases[phase]))
	}
	if policy == SlowBackground {
		hz := r.backgroundHz
		if hz <= 0 {
			hz = 1
		}
		r.intervalTicks = uint64(s.ticksPerSecond / hz)
		if r.intervalTicks == 0 {
			r.intervalTicks = 1
		}
	}
	s.phases[phase] = append(s.phases[phase], r)
}

// OnTick installs a hook run at the very end of every tick, typically used
// to wire a FlightRecorder's Capture call in (spec: "notify recorder").
// Only one hook is kept; calling OnTick again replaces it.
func (s *Scheduler) OnTick(fn TickHook) { s.onTick = fn }

// Store returns the entity store this scheduler drives.
func (s *Scheduler) Store() *fdp.EntityStore { return s.store }

// Bus returns the event bus this scheduler drives.
func (s *Scheduler) Bus() *event.Bus { return s.bus }

// TickNumber returns the number of completed ticks.
func (s *Scheduler) TickNumber() uint64 { return s.tickNum }

// BreakerState reports the circuit-breaker state of every registered
// system labeled label, across all phases (labels are not required to be
// unique, so this can return more than one match).
func (s *Scheduler) BreakerState(label string) []BreakerState {
	var out []BreakerState
	for _, regs := range s.phases {
		for _, r := range regs {
			if r.label == label {
				out = append(out, r.breaker.State())
			}
		}
	}
	return out
}

// Tick advances time via the controller, writes GlobalTime to its
// singleton, runs every phase in order, plays back each system's command
// buffer, swaps the event bus, clears Transient components, and finally
// notifies the tick hook (spec §4.8 "Tick algorithm").
func (s *Scheduler) Tick() {
	gt := s.clock.Update()
	if err := fdp.SetSingleton(s.store, s.timeAcc, gt); err != nil {
		panic(bark.AddTrace(err))
	}
	s.tickNum++

	for _, phase := range phaseOrder {
		s.runPhase(phase, gt)
	}

	s.bus.SwapBuffers()
	s.store.Tick()

	if s.onTick != nil {
		s.onTick(s.tickNum, gt, s.store, s.bus)
	}
}

// backgroundReadLock is the store lock bit held for the span from a phase's
// first SlowBackground launch through joining every such goroutine. While
// held, a Synchronous/Reactive system's command-buffer playback queues
// instead of mutating tables and header masks directly, so it never races
// a background goroutine's View reads of the same store (spec §5 "a
// borrow guard prevents concurrent writers").
const backgroundReadLock = 0

func (s *Scheduler) runPhase(phase Phase, gt clock.GlobalTime) {
	regs := s.phases[phase]
	var background []*registration
	locked := false

	for _, r := range regs {
		switch r.policy {
		case Synchronous:
			s.runOne(r, gt)
		case Reactive:
			if !s.anyWatched(r) {
				continue
			}
			s.runOne(r, gt)
		case SlowBackground:
			if r.lastRunTick != 0 && s.tickNum-r.lastRunTick < r.intervalTicks {
				continue
			}
			r.lastRunTick = s.tickNum
			if !locked {
				s.store.AddLock(backgroundReadLock)
				locked = true
			}
			s.launchBackground(r, gt)
			background = append(background, r)
		}
	}

	// The background-system command buffer applied at phase P is logically
	// ordered after all synchronous systems of phase P in the same tick
	// (spec §5): join every background goroutine launched this phase
	// before releasing the lock, which drains any playback a later
	// synchronous/reactive system queued while a background read was in
	// flight, then apply the background systems' own buffers.
	s.bgWG.Wait()
	if locked {
		s.store.RemoveLock(backgroundReadLock)
	}
	for _, r := range background {
		s.store.PlaybackOrQueue(r.cb, s.bus)
	}
}

func (s *Scheduler) anyWatched(r *registration) bool {
	for _, check := range r.watchedEvents {
		if check(s.bus) {
			return true
		}
	}
	return false
}

// runOne executes a Synchronous or Reactive system on the calling
// goroutine, charging any fault to its circuit breaker, then applies its
// command buffer via PlaybackOrQueue: normally immediately, so writes from
// the earlier-registered system become visible to the next system in the
// same phase (spec §5) — but deferred if a SlowBackground system launched
// earlier this phase is still in flight, so this write can never race that
// goroutine's View reads.
func (s *Scheduler) runOne(r *registration, gt clock.GlobalTime) {
	if !r.breaker.ShouldRun() {
		return
	}
	view := &View{store: s.store, bus: s.bus, cb: r.cb, tick: s.tickNum, time: gt}
	err := s.execute(r, view)
	r.breaker.RecordResult(err != nil)
	if err != nil {
		bark.Warn(fmt.Sprintf("fdp/kernel: system %q faulted: %v", r.label, err))
	}
	s.store.PlaybackOrQueue(r.cb, s.bus)
}

// launchBackground runs a SlowBackground system on its own goroutine,
// giving it a read-only View over the store and its own command buffer;
// the goroutine is joined (and its buffer played back) at the owning
// phase's boundary by runPhase, never mid-phase.
func (s *Scheduler) launchBackground(r *registration, gt clock.GlobalTime) {
	if !r.breaker.ShouldRun() {
		return
	}
	view := &View{store: s.store, bus: s.bus, cb: r.cb, tick: s.tickNum, time: gt}
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		err := s.execute(r, view)
		s.bgMu.Lock()
		r.breaker.RecordResult(err != nil)
		s.bgMu.Unlock()
		if err != nil {
			bark.Warn(fmt.Sprintf("fdp/kernel: background system %q faulted: %v", r.label, err))
		}
	}()
}

// execute runs r.system.Run, converting a panic into a SystemFault error
// rather than letting it propagate — spec §9 "replace exceptions for
// control flow with a result type carried back from each system
// invocation".
func (s *Scheduler) execute(r *registration, view *View) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("fdp/kernel: system %q panicked: %v", r.label, rec)
		}
	}()
	return r.system.Run(view)
}
