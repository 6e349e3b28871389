package fdp

// EventPublisher is the narrow interface CommandBuffer needs from an event
// bus: dispatch one boxed event to whichever typed queue its dynamic type
// belongs to. fdp/event.Bus implements this.
type EventPublisher interface {
	PublishDynamic(event any)
}

type playbackContext struct {
	store *EntityStore
	bus   EventPublisher
}

// command is one append-only record. It generalizes the teacher's
// EntityOperation (operation_queue.go: NewEntityOperation,
// DestroyEntityOperation, AddComponentOperation, RemoveComponentOperation,
// each guarded by a recycled/generation check) into the spec's
// CommandBuffer record set (§4.4), replacing the teacher's per-type
// struct-with-Apply-method shape with a closure captured at enqueue time —
// Go methods cannot carry their own extra type parameters, so the
// type-specific part (which ComponentAccessor[T], which value) is closed
// over instead of expressed as a generic struct field.
type command struct {
	run func(ctx *playbackContext)
}

// CommandBuffer is an append-only log of deferred entity/component
// mutations and event publications, applied at a tick or phase boundary.
// Playback is stable and sequential in insertion order within one buffer
// (spec invariant 7).
type CommandBuffer struct {
	records []command
}

// NewCommandBuffer returns an empty buffer.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{}
}

func (cb *CommandBuffer) append(c command) {
	cb.records = append(cb.records, c)
}

// Len reports the number of buffered records.
func (cb *CommandBuffer) Len() int {
	return len(cb.records)
}

// CreateEntity enqueues entity creation. Each setup closure runs against
// the freshly created entity once it actually exists, during playback —
// this is the buffer's placeholder mechanism for referencing an
// as-yet-nonexistent entity (spec: "a placeholder for freshly created
// entities").
func (cb *CommandBuffer) CreateEntity(setup ...func(store *EntityStore, e Entity)) {
	cb.append(command{run: func(ctx *playbackContext) {
		e, err := ctx.store.Create()
		if err != nil {
			return
		}
		for _, fn := range setup {
			fn(ctx.store, e)
		}
	}})
}

// DestroyEntity enqueues destruction of target. A command targeting an
// already-destroyed entity is silently dropped at playback.
func (cb *CommandBuffer) DestroyEntity(target Entity) {
	cb.append(command{run: func(ctx *playbackContext) {
		if !ctx.store.IsAlive(target) {
			return
		}
		ctx.store.Destroy(target)
	}})
}

// SetLifecycle enqueues a lifecycle-state transition for target.
func (cb *CommandBuffer) SetLifecycle(target Entity, state LifecycleState) {
	cb.append(command{run: func(ctx *playbackContext) {
		if !ctx.store.IsAlive(target) {
			return
		}
		ctx.store.setLifecycle(target, state)
	}})
}

// AddComponent enqueues adding/overwriting a plain-data component on
// target.
func AddComponent[T any](cb *CommandBuffer, acc ComponentAccessor[T], target Entity, value T) {
	cb.append(command{run: func(ctx *playbackContext) {
		if !ctx.store.IsAlive(target) {
			return
		}
		_ = acc.Add(target, value)
	}})
}

// SetComponent enqueues overwriting an already-present plain-data
// component's value on target; if absent it is added.
func SetComponent[T any](cb *CommandBuffer, acc ComponentAccessor[T], target Entity, value T) {
	AddComponent(cb, acc, target, value)
}

// RemoveComponent enqueues removing a plain-data component from target.
func RemoveComponent[T any](cb *CommandBuffer, acc ComponentAccessor[T], target Entity) {
	cb.append(command{run: func(ctx *playbackContext) {
		if !ctx.store.IsAlive(target) {
			return
		}
		_ = acc.Remove(target)
	}})
}

// SetManaged enqueues setting a boxed (reference-held) component's value
// on target.
func SetManaged[T any](cb *CommandBuffer, acc ManagedComponentAccessor[T], target Entity, value T) {
	cb.append(command{run: func(ctx *playbackContext) {
		if !ctx.store.IsAlive(target) {
			return
		}
		_ = acc.Set(target, value)
	}})
}

// PublishEvent enqueues an event to be appended to the bus's write queue
// at playback.
func PublishEvent[T any](cb *CommandBuffer, event T) {
	cb.append(command{run: func(ctx *playbackContext) {
		if ctx.bus == nil {
			return
		}
		ctx.bus.PublishDynamic(event)
	}})
}

// Playback applies every record against store, in insertion order,
// publishing any buffered events to bus's write queue. The buffer is
// cleared afterward.
func (cb *CommandBuffer) Playback(store *EntityStore, bus EventPublisher) {
	ctx := &playbackContext{store: store, bus: bus}
	for _, rec := range cb.records {
		rec.run(ctx)
	}
	cb.records = cb.records[:0]
}
