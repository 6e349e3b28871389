package fdp

import (
	"bytes"
	"testing"
)

type Position struct{ X, Y float64 }
type Velocity struct{ DX, DY float64 }
type Tag struct{ Value int }

// TestRegisterComponentIsIdempotent exercises re-registering the same Go
// type under the same store: it must return the existing accessor rather
// than erroring or allocating a second table.
func TestRegisterComponentIsIdempotent(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	a, err := RegisterComponent[Position](store, "Position", Default)
	if err != nil {
		t.Fatalf("RegisterComponent: %v", err)
	}
	b, err := RegisterComponent[Position](store, "Position", Default)
	if err != nil {
		t.Fatalf("RegisterComponent (second): %v", err)
	}
	if a.TypeID() != b.TypeID() {
		t.Fatalf("TypeID mismatch: %d vs %d, want idempotent re-registration", a.TypeID(), b.TypeID())
	}
}

// TestRegisterComponentDuplicateNameDifferentType exercises
// DuplicateRegistrationError: two distinct Go types cannot share a
// persistent name.
func TestRegisterComponentDuplicateNameDifferentType(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	if _, err := RegisterComponent[Position](store, "shared", Default); err != nil {
		t.Fatalf("RegisterComponent: %v", err)
	}
	_, err := RegisterComponent[Velocity](store, "shared", Default)
	if err == nil {
		t.Fatal("RegisterComponent under a taken name = nil error")
	}
	if _, ok := err.(DuplicateRegistrationError); !ok {
		t.Fatalf("error = %T, want DuplicateRegistrationError", err)
	}
}

// TestComponentAccessorAddGetRemove exercises the basic accessor contract:
// Add installs a value and marks it present, Get surfaces absence, Remove
// clears both.
func TestComponentAccessorAddGetRemove(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	pos, _ := RegisterComponent[Position](store, "Position", Default)

	e, err := store.Create()
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if pos.Has(e) {
		t.Fatal("Has(e) = true before Add")
	}
	if _, err := pos.Get(e); err == nil {
		t.Fatal("Get(e) = nil error before Add")
	} else if _, ok := err.(ComponentNotPresentError); !ok {
		t.Fatalf("Get(e) error = %T, want ComponentNotPresentError", err)
	}

	if err := pos.Add(e, Position{X: 1, Y: 2}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !pos.Has(e) {
		t.Fatal("Has(e) = false after Add")
	}
	got, err := pos.Get(e)
	if err != nil {
		t.Fatalf("Get after Add: %v", err)
	}
	if got.X != 1 || got.Y != 2 {
		t.Fatalf("Get after Add = %+v, want {1 2}", got)
	}

	if err := pos.Remove(e); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if pos.Has(e) {
		t.Fatal("Has(e) = true after Remove")
	}
}

// TestGetOnStaleEntitySurfacesStaleEntityError exercises the spec's
// "get_* APIs surface staleness" rule, contrasted with a mutation API
// (Add) silently no-oping on the same stale handle.
func TestGetOnStaleEntitySurfacesStaleEntityError(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	pos, _ := RegisterComponent[Position](store, "Position", Default)

	e, _ := store.Create()
	pos.Add(e, Position{X: 1, Y: 1})
	store.Destroy(e)

	if _, err := pos.Get(e); err == nil {
		t.Fatal("Get(stale) = nil error")
	} else if _, ok := err.(StaleEntityError); !ok {
		t.Fatalf("Get(stale) error = %T, want StaleEntityError", err)
	}

	// Add is not a get_* API: a stale target is a silent no-op, per §7.
	if err := pos.Add(e, Position{X: 9, Y: 9}); err != nil {
		t.Fatalf("Add(stale) = %v, want nil (silent no-op)", err)
	}
}

// TestQueryWithWithout exercises scenario S2 / invariant 4: a query
// matches entities by (include & exclude) bitmask, not by Go type
// identity.
func TestQueryWithWithout(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	pos, _ := RegisterComponent[Position](store, "Position", Default)
	vel, _ := RegisterComponent[Velocity](store, "Velocity", Default)

	moving, _ := store.Create()
	pos.Add(moving, Position{X: 1})
	vel.Add(moving, Velocity{DX: 1})

	still, _ := store.Create()
	pos.Add(still, Position{X: 2})

	q := store.Query().With(pos.TypeID()).Without(vel.TypeID()).Build()
	var got []Entity
	for e := range q.Iter() {
		got = append(got, e)
	}
	if len(got) != 1 || got[0] != still {
		t.Fatalf("With(Position).Without(Velocity) = %v, want [%v]", got, still)
	}
	if n := q.Count(); n != 1 {
		t.Fatalf("Count() = %d, want 1", n)
	}

	qMoving := store.Query().With(pos.TypeID()).With(vel.TypeID()).Build()
	if n := qMoving.Count(); n != 1 {
		t.Fatalf("With(Position).With(Velocity).Count() = %d, want 1", n)
	}
}

// TestQuerySkipsDestroyedEntities exercises Query.Matches' liveness check:
// a destroyed entity never matches, since DestroyEntity marks its slot
// inactive and clears the slot's component mask.
func TestQuerySkipsDestroyedEntities(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	pos, _ := RegisterComponent[Position](store, "Position", Default)

	e, _ := store.Create()
	pos.Add(e, Position{X: 1})
	store.Destroy(e)

	q := store.Query().With(pos.TypeID()).Build()
	if n := q.Count(); n != 0 {
		t.Fatalf("Count() after Destroy = %d, want 0", n)
	}
}

// TestTickClearsTransientComponents exercises invariant 8: a Transient
// component is absent from the store at the start of every tick, while a
// Default component survives.
func TestTickClearsTransientComponents(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	pos, _ := RegisterComponent[Position](store, "Position", Default)
	tag, _ := RegisterComponent[Tag](store, "Tag", Transient)

	e, _ := store.Create()
	pos.Add(e, Position{X: 5})
	tag.Add(e, Tag{Value: 1})

	if !tag.Has(e) || !pos.Has(e) {
		t.Fatal("components missing right after Add")
	}

	store.Tick()

	if tag.Has(e) {
		t.Fatal("Transient component survived Tick()")
	}
	if !pos.Has(e) {
		t.Fatal("Default component was cleared by Tick()")
	}
	got, err := pos.Get(e)
	if err != nil || got.X != 5 {
		t.Fatalf("Default component value after Tick() = %+v, %v, want {5 0}, nil", got, err)
	}
}

// TestSingletonSetGetHas exercises SetSingleton/GetSingleton/HasSingleton:
// a single reserved entity holds one instance of T regardless of how many
// times SetSingleton is called.
func TestSingletonSetGetHas(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	pos, _ := RegisterComponent[Position](store, "Position", Default)

	if HasSingleton(store, pos) {
		t.Fatal("HasSingleton = true before any SetSingleton")
	}
	if _, ok := GetSingleton(store, pos); ok {
		t.Fatal("GetSingleton ok = true before any SetSingleton")
	}

	if err := SetSingleton(store, pos, Position{X: 1, Y: 1}); err != nil {
		t.Fatalf("SetSingleton: %v", err)
	}
	got, ok := GetSingleton(store, pos)
	if !ok || got.X != 1 {
		t.Fatalf("GetSingleton = %+v, %v, want {1 1}, true", got, ok)
	}

	if err := SetSingleton(store, pos, Position{X: 2, Y: 2}); err != nil {
		t.Fatalf("SetSingleton (second): %v", err)
	}
	got, ok = GetSingleton(store, pos)
	if !ok || got.X != 2 {
		t.Fatalf("GetSingleton after second Set = %+v, %v, want {2 2}, true", got, ok)
	}
}

// TestSaveLoadRoundTrip exercises the Save/Load facade: a Default
// component's values and liveness survive a round trip, while a Transient
// component is never persisted.
func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	pos, _ := RegisterComponent[Position](store, "Position", Default)
	tag, _ := RegisterComponent[Tag](store, "Tag", Transient)

	e1, _ := store.Create()
	pos.Add(e1, Position{X: 1, Y: 2})
	tag.Add(e1, Tag{Value: 1})

	e2, _ := store.Create()
	pos.Add(e2, Position{X: 3, Y: 4})

	buf := new(bytes.Buffer)
	if err := store.Save(buf); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := NewEntityStore(StoreOptions{})
	restoredPos, _ := RegisterComponent[Position](restored, "Position", Default)
	restoredTag, _ := RegisterComponent[Tag](restored, "Tag", Transient)

	if err := restored.Load(buf); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if !restored.IsAlive(e1) || !restored.IsAlive(e2) {
		t.Fatal("entities not alive after Load")
	}
	got1, err := restoredPos.Get(e1)
	if err != nil || got1.X != 1 || got1.Y != 2 {
		t.Fatalf("restored e1 Position = %+v, %v, want {1 2}, nil", got1, err)
	}
	got2, err := restoredPos.Get(e2)
	if err != nil || got2.X != 3 || got2.Y != 4 {
		t.Fatalf("restored e2 Position = %+v, %v, want {3 4}, nil", got2, err)
	}
	if restoredTag.Has(e1) {
		t.Fatal("Transient component survived Save/Load")
	}
}

// TestCommandBufferPlaybackIsSequential exercises invariant 7: a
// CommandBuffer's records apply in insertion order.
func TestCommandBufferPlaybackIsSequential(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	pos, _ := RegisterComponent[Position](store, "Position", Default)

	e, _ := store.Create()
	pos.Add(e, Position{X: 0})

	cb := NewCommandBuffer()
	for i := 1; i <= 5; i++ {
		n := i
		SetComponent(cb, pos, e, Position{X: float64(n)})
	}
	store.PlaybackCommandBuffer(cb)

	got, err := pos.Get(e)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.X != 5 {
		t.Fatalf("Position.X after playback = %v, want 5 (last write wins)", got.X)
	}
	if cb.Len() != 0 {
		t.Fatalf("CommandBuffer.Len() after Playback = %d, want 0 (cleared)", cb.Len())
	}
}

// TestCommandBufferDestroyThenMutateIsNoOp exercises CommandBuffer
// sequencing against a destroyed target: a command queued against an
// entity destroyed earlier in the same buffer is a silent no-op.
func TestCommandBufferDestroyThenMutateIsNoOp(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	pos, _ := RegisterComponent[Position](store, "Position", Default)

	e, _ := store.Create()
	pos.Add(e, Position{X: 1})

	cb := NewCommandBuffer()
	cb.DestroyEntity(e)
	SetComponent(cb, pos, e, Position{X: 99})
	store.PlaybackCommandBuffer(cb)

	if store.IsAlive(e) {
		t.Fatal("entity still alive after CommandBuffer.DestroyEntity playback")
	}
}

// TestCommandBufferCreateEntityPlaceholder exercises CreateEntity's setup
// closure: it runs against the freshly created entity once it exists
// during playback, standing in for a not-yet-allocated handle.
func TestCommandBufferCreateEntityPlaceholder(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	pos, _ := RegisterComponent[Position](store, "Position", Default)

	cb := NewCommandBuffer()
	cb.CreateEntity(func(s *EntityStore, e Entity) {
		pos.Add(e, Position{X: 7, Y: 8})
	})
	store.PlaybackCommandBuffer(cb)

	var found *Position
	for e := range store.Query().With(pos.TypeID()).Build().Iter() {
		found, _ = pos.Get(e)
	}
	if found == nil || found.X != 7 || found.Y != 8 {
		t.Fatalf("created entity's Position = %v, want {7 8}", found)
	}
}

// TestDirectMutationLockedReturnsLockedStorageError exercises the borrow
// guard a scheduler holds around an in-flight SlowBackground system: while
// the store is locked, Add reports LockedStorageError instead of mutating,
// and the same call succeeds once every lock bit is released.
func TestDirectMutationLockedReturnsLockedStorageError(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	pos, _ := RegisterComponent[Position](store, "Position", Default)
	e, _ := store.Create()

	store.AddLock(0)
	if _, ok := pos.Add(e, Position{X: 1}).(LockedStorageError); !ok {
		t.Fatal("Add while locked did not return LockedStorageError")
	}
	if pos.Has(e) {
		t.Fatal("Add while locked mutated the table")
	}

	store.RemoveLock(0)
	if err := pos.Add(e, Position{X: 1}); err != nil {
		t.Fatalf("Add after unlock: %v", err)
	}
}

// TestPlaybackOrQueueDefersWhileLocked exercises EntityStore.PlaybackOrQueue:
// a buffer applied while the store is locked is held, not dropped, and
// drains in order once RemoveLock brings the lock mask back to empty.
func TestPlaybackOrQueueDefersWhileLocked(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	pos, _ := RegisterComponent[Position](store, "Position", Default)
	e, _ := store.Create()

	cb := NewCommandBuffer()
	SetComponent(cb, pos, e, Position{X: 5, Y: 6})

	store.AddLock(0)
	store.PlaybackOrQueue(cb, nil)
	if pos.Has(e) {
		t.Fatal("PlaybackOrQueue applied a buffer while the store was locked")
	}

	store.RemoveLock(0)
	got, err := pos.Get(e)
	if err != nil {
		t.Fatalf("Get after RemoveLock drained the queue: %v", err)
	}
	if got.X != 5 || got.Y != 6 {
		t.Fatalf("Position after queued playback = %+v, want {5 6}", *got)
	}
}
