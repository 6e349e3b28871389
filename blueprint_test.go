package fdp

import "testing"

// TestBlueprintApplyInstallsComponents exercises TkbTemplate.Apply: every
// registered component assignment runs against the target entity, in
// registration order.
func TestBlueprintApplyInstallsComponents(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	pos, _ := RegisterComponent[Position](store, "Position", Default)
	vel, _ := RegisterComponent[Velocity](store, "Velocity", Default)

	tpl := NewBlueprint("mover", 1)
	tpl = WithComponent(tpl, pos, Position{X: 1, Y: 1})
	tpl = WithComponent(tpl, vel, Velocity{DX: 2, DY: 2})

	e, _ := store.Create()
	tpl.Apply(store, e)

	gotPos, err := pos.Get(e)
	if err != nil || gotPos.X != 1 {
		t.Fatalf("Position after Apply = %+v, %v, want {1 1}, nil", gotPos, err)
	}
	gotVel, err := vel.Get(e)
	if err != nil || gotVel.DX != 2 {
		t.Fatalf("Velocity after Apply = %+v, %v, want {2 2}, nil", gotVel, err)
	}
}

// TestBlueprintRegistryRegisterAndGet exercises BlueprintRegistry's
// name-keyed lookup.
func TestBlueprintRegistryRegisterAndGet(t *testing.T) {
	reg := NewBlueprintRegistry(4)
	tpl := NewBlueprint("mover", 1)

	if err := reg.Register(tpl); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got, ok := reg.Get("mover")
	if !ok || got.Name != "mover" || got.ID != 1 {
		t.Fatalf("Get(mover) = %+v, %v, want {Name:mover ID:1}, true", got, ok)
	}
	if _, ok := reg.Get("missing"); ok {
		t.Fatal("Get(missing) ok = true")
	}
}

// TestBlueprintRegistryConstructDrivesConstructionHandshake exercises
// Construct: it creates an entity, applies the blueprint's components, and
// begins the spec §3 construction handshake by publishing a
// ConstructionOrder through the supplied CommandBuffer.
func TestBlueprintRegistryConstructDrivesConstructionHandshake(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	pos, _ := RegisterComponent[Position](store, "Position", Default)

	reg := NewBlueprintRegistry(4)
	tpl := WithComponent(NewBlueprint("mover", 42), pos, Position{X: 3, Y: 4})
	if err := reg.Register(tpl); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cb := NewCommandBuffer()
	e, err := reg.Construct(store, cb, "mover", 1, 100)
	if err != nil {
		t.Fatalf("Construct: %v", err)
	}

	if got := store.GetLifecycle(e); got != Constructing {
		t.Fatalf("GetLifecycle after Construct = %v, want Constructing", got)
	}
	gotPos, err := pos.Get(e)
	if err != nil || gotPos.X != 3 {
		t.Fatalf("Position after Construct = %+v, %v, want {3 4}, nil", gotPos, err)
	}
	if cb.Len() != 1 {
		t.Fatalf("CommandBuffer.Len() after Construct = %d, want 1 (the ConstructionOrder publish)", cb.Len())
	}

	var published []ConstructionOrder
	fake := publisherFunc(func(ev any) {
		if co, ok := ev.(ConstructionOrder); ok {
			published = append(published, co)
		}
	})
	cb.Playback(store, fake)
	if len(published) != 1 || published[0].Entity != e || published[0].BlueprintID != 42 {
		t.Fatalf("published ConstructionOrder = %+v, want one for entity %v blueprint 42", published, e)
	}
}

// TestBlueprintRegistryConstructUnknownName exercises the error path: a
// never-registered blueprint name fails rather than creating an entity.
func TestBlueprintRegistryConstructUnknownName(t *testing.T) {
	store := NewEntityStore(StoreOptions{})
	reg := NewBlueprintRegistry(4)
	cb := NewCommandBuffer()

	if _, err := reg.Construct(store, cb, "missing", 1, 0); err == nil {
		t.Fatal("Construct(missing) = nil error")
	}
}

type publisherFunc func(event any)

func (f publisherFunc) PublishDynamic(event any) { f(event) }
