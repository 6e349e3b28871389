package fdp

import "fmt"

// TkbTemplate is a named, ordered list of (component-type, value) pairs
// applied to a new entity — the spec's Blueprint/Template (§3, §4.11),
// generalizing the teacher's implicit "create N entities with these
// components" call (storage.NewEntities(n, comps...)) into a registered,
// reusable, named unit driven through the construction handshake (§3)
// rather than applied immediately.
type TkbTemplate struct {
	ID    int
	Name  string
	apply []func(store *EntityStore, e Entity)
}

// NewBlueprint starts an empty template under name and id.
func NewBlueprint(name string, id int) TkbTemplate {
	return TkbTemplate{ID: id, Name: name}
}

// WithComponent appends a plain-data component assignment to tpl,
// returning tpl for chaining.
func WithComponent[T any](tpl TkbTemplate, acc ComponentAccessor[T], value T) TkbTemplate {
	tpl.apply = append(tpl.apply, func(s *EntityStore, e Entity) {
		_ = acc.Add(e, value)
	})
	return tpl
}

// WithManagedComponent appends a boxed component assignment to tpl.
func WithManagedComponent[T any](tpl TkbTemplate, acc ManagedComponentAccessor[T], value T) TkbTemplate {
	tpl.apply = append(tpl.apply, func(s *EntityStore, e Entity) {
		_ = acc.Set(e, value)
	})
	return tpl
}

// Apply runs every registered component assignment against e.
func (tpl TkbTemplate) Apply(store *EntityStore, e Entity) {
	for _, fn := range tpl.apply {
		fn(store, e)
	}
}

// BlueprintRegistry is the named store of registered blueprints, backed by
// the same Cache[T] the teacher uses for its own lookup tables.
type BlueprintRegistry struct {
	cache Cache[TkbTemplate]
}

// NewBlueprintRegistry builds a registry capped at capacity distinct
// blueprint names.
func NewBlueprintRegistry(capacity int) *BlueprintRegistry {
	return &BlueprintRegistry{cache: Factory.NewCache(capacity)}
}

// Register installs tpl under its own name. Re-registering the same name
// with a different id or component set is rejected by Cache.Register once
// capacity is exhausted, but otherwise simply overwrites — callers should
// register each blueprint exactly once at startup.
func (r *BlueprintRegistry) Register(tpl TkbTemplate) error {
	_, err := r.cache.Register(tpl.Name, tpl)
	return err
}

// Get looks up a registered blueprint by name.
func (r *BlueprintRegistry) Get(name string) (TkbTemplate, bool) {
	idx, ok := r.cache.GetIndex(name)
	if !ok {
		return TkbTemplate{}, false
	}
	return *r.cache.GetItem(idx), true
}

// Construct creates a new entity, applies the named blueprint's
// components, and drives it into the Constructing lifecycle state,
// publishing a ConstructionOrder that participating systems must each ack
// (spec §3).
func (r *BlueprintRegistry) Construct(store *EntityStore, cb *CommandBuffer, name string, requiredAcks int, currentFrame uint64) (Entity, error) {
	tpl, ok := r.Get(name)
	if !ok {
		return Null, fmt.Errorf("fdp: unknown blueprint %q", name)
	}
	e, err := store.Create()
	if err != nil {
		return Null, err
	}
	tpl.Apply(store, e)
	store.BeginConstruction(e, requiredAcks, currentFrame)
	PublishEvent(cb, ConstructionOrder{Entity: e, BlueprintID: tpl.ID, Frame: currentFrame})
	return e, nil
}
