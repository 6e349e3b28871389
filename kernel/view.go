package kernel

import (
	"github.com/TheBitDrifter/fdp"
	"github.com/TheBitDrifter/fdp/clock"
	"github.com/TheBitDrifter/fdp/event"
)

// View is the read-only contract a registered system receives (spec §6
// "View contract consumed by systems"). All mutation goes through the
// view's CommandBuffer; direct writes against the store are not exposed
// here.
type View struct {
	store *fdp.EntityStore
	bus   *event.Bus
	cb    *fdp.CommandBuffer
	tick  uint64
	time  clock.GlobalTime
}

// Query returns a query builder over the live store.
func (v *View) Query() *fdp.QueryBuilder { return v.store.Query() }

// IsAlive reports whether e still refers to a live entity.
func (v *View) IsAlive(e fdp.Entity) bool { return v.store.IsAlive(e) }

// GetCommandBuffer returns the buffer this system's mutations and
// publications must go through; the scheduler plays it back at this
// phase's boundary.
func (v *View) GetCommandBuffer() *fdp.CommandBuffer { return v.cb }

// Tick returns the current tick counter.
func (v *View) Tick() uint64 { return v.tick }

// Time returns the GlobalTime produced by this tick's clock.Controller.Update.
func (v *View) Time() clock.GlobalTime { return v.time }

// GetRO returns a read-only pointer to e's plain-data component value, or
// ok=false if e doesn't hold it (mirrors ComponentAccessor.Get without the
// staleness error — a Reactive/Synchronous system is expected to check
// IsAlive itself if it cares).
func GetRO[T any](v *View, acc fdp.ComponentAccessor[T], e fdp.Entity) (value *T, ok bool) {
	if !acc.Has(e) {
		return nil, false
	}
	got, err := acc.Get(e)
	if err != nil {
		return nil, false
	}
	return got, true
}

// GetManagedRO is GetRO's boxed-component counterpart.
func GetManagedRO[T any](v *View, acc fdp.ManagedComponentAccessor[T], e fdp.Entity) (value *T, ok bool) {
	if !acc.Has(e) {
		return nil, false
	}
	got, err := acc.Get(e)
	if err != nil {
		return nil, false
	}
	return got, true
}

// Has reports whether e holds the plain-data component acc addresses.
func Has[T any](v *View, acc fdp.ComponentAccessor[T], e fdp.Entity) bool {
	return acc.Has(e)
}

// HasManaged reports whether e holds the boxed component acc addresses.
func HasManaged[T any](v *View, acc fdp.ManagedComponentAccessor[T], e fdp.Entity) bool {
	return acc.Has(e)
}

// Consume returns the current tick's read queue for event type E — events
// published on the previous tick, visible exactly once (spec §4.5).
func Consume[E any](v *View) []E {
	return event.Consume[E](v.bus)
}

// ConsumeManaged is Consume's name for boxed event types; the bus does not
// distinguish managed from plain-data events (spec §4.5), so this is an
// alias kept for symmetry with GetManagedRO/HasManaged.
func ConsumeManaged[E any](v *View) []E {
	return event.Consume[E](v.bus)
}
