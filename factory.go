package fdp

// factory implements the factory pattern for fdp's top-level constructors,
// the same single-instance convention as the teacher's factory.go.
type factory struct{}

// Factory is the package's single factory instance.
var Factory factory

// NewStore creates a new EntityStore with the given options.
func (f factory) NewStore(opts StoreOptions) *EntityStore {
	return NewEntityStore(opts)
}

// NewCache creates a Cache with the specified capacity, used by the
// blueprint registry (blueprint.go).
func (f factory) NewCache(capacity int) Cache[TkbTemplate] {
	return &SimpleCache[TkbTemplate]{
		itemIndices: make(map[string]int),
		maxCapacity: capacity,
	}
}
