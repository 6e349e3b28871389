package fdp

import "testing"

// TestCreateAssignsNonZeroGeneration exercises invariant 1: a freshly
// created slot's generation is never 0, so the zero Entity never aliases a
// live handle.
func TestCreateAssignsNonZeroGeneration(t *testing.T) {
	ix := NewEntityIndex(0)
	e, err := ix.CreateEntity()
	if err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	if e.Generation == 0 {
		t.Fatal("Generation = 0, want nonzero")
	}
	if e.Index == 0 {
		t.Fatal("Index = 0, want nonzero (0 is reserved for Null)")
	}
	if !ix.IsAlive(e) {
		t.Fatal("IsAlive(e) = false right after CreateEntity")
	}
}

// TestDestroyBumpsGenerationAndFreesSlot exercises invariant 2: destroying
// an entity bumps its generation (so stale handles are rejected) and
// returns the slot to the free list for reuse.
func TestDestroyBumpsGenerationAndFreesSlot(t *testing.T) {
	ix := NewEntityIndex(0)
	e, _ := ix.CreateEntity()
	oldGen := e.Generation

	ix.DestroyEntity(e)
	if ix.IsAlive(e) {
		t.Fatal("IsAlive(e) = true after DestroyEntity")
	}

	e2, err := ix.CreateEntity()
	if err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}
	if e2.Index != e.Index {
		t.Fatalf("reused index = %d, want %d (LIFO free list)", e2.Index, e.Index)
	}
	if e2.Generation == oldGen {
		t.Fatalf("reused slot generation = %d, want different from stale generation %d", e2.Generation, oldGen)
	}
	if !ix.IsAlive(e2) {
		t.Fatal("IsAlive(e2) = false right after reuse")
	}
	if ix.IsAlive(e) {
		t.Fatal("stale handle e reads alive after its slot was recycled")
	}
}

// TestGenerationWrapSkipsZero exercises the "skip 0 on wraparound" half of
// invariant 1: repeatedly destroying and recreating the same slot must
// never leave it at generation 0, even as the counter wraps a uint16.
func TestGenerationWrapSkipsZero(t *testing.T) {
	ix := NewEntityIndex(0)
	e, _ := ix.CreateEntity()
	for i := 0; i < 1<<17; i++ {
		ix.DestroyEntity(e)
		e, _ = ix.CreateEntity()
		if e.Generation == 0 {
			t.Fatalf("generation hit 0 after %d create/destroy cycles", i)
		}
	}
}

// TestFreeListIsLIFO exercises invariant 3: the most recently freed slot is
// the first one reused, keeping the live set dense.
func TestFreeListIsLIFO(t *testing.T) {
	ix := NewEntityIndex(0)
	a, _ := ix.CreateEntity()
	b, _ := ix.CreateEntity()
	c, _ := ix.CreateEntity()

	ix.DestroyEntity(a)
	ix.DestroyEntity(b)
	ix.DestroyEntity(c)

	first, _ := ix.CreateEntity()
	second, _ := ix.CreateEntity()
	third, _ := ix.CreateEntity()

	if first.Index != c.Index {
		t.Fatalf("first reused index = %d, want %d (last freed)", first.Index, c.Index)
	}
	if second.Index != b.Index {
		t.Fatalf("second reused index = %d, want %d", second.Index, b.Index)
	}
	if third.Index != a.Index {
		t.Fatalf("third reused index = %d, want %d", third.Index, a.Index)
	}
}

// TestCapacityExceeded exercises MaxEntities enforcement: creation fails
// once every slot is in use and no freed slot is available.
func TestCapacityExceeded(t *testing.T) {
	ix := NewEntityIndex(2)
	if _, err := ix.CreateEntity(); err != nil {
		t.Fatalf("CreateEntity 1: %v", err)
	}
	if _, err := ix.CreateEntity(); err != nil {
		t.Fatalf("CreateEntity 2: %v", err)
	}
	_, err := ix.CreateEntity()
	if err == nil {
		t.Fatal("CreateEntity 3 = nil error, want CapacityExceededError")
	}
	if _, ok := err.(CapacityExceededError); !ok {
		t.Fatalf("CreateEntity 3 error = %T, want CapacityExceededError", err)
	}
}

// TestNullIsNeverAlive exercises the Null-sentinel half of
// invariant 1: the zero Entity is never alive.
func TestNullIsNeverAlive(t *testing.T) {
	ix := NewEntityIndex(0)
	if ix.IsAlive(Null) {
		t.Fatal("IsAlive(Null) = true")
	}
	if Null.Valid() {
		t.Fatal("Null.Valid() = true")
	}
	e, _ := ix.CreateEntity()
	if !e.Valid() {
		t.Fatal("freshly created entity Valid() = false")
	}
}
