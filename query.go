// Package fdp provides the entity, component, event-adjacent, and query
// core of the Fast Data Plane runtime.
package fdp

import (
	"iter"

	"github.com/TheBitDrifter/mask"
)

// QueryBuilder compiles an include/exclude Bitmask256 predicate. Obtained
// from EntityStore.Query(), generalizing the teacher's And/Or/Not query
// tree (query.go) into the spec's with/without builder (§4.3, §4.6): the
// teacher's archetype-grouped storage needed composite boolean nodes to
// evaluate per-archetype masks against many candidate archetypes; a flat
// per-entity-header mask only ever needs one include mask and one exclude
// mask evaluated once per entity.
type QueryBuilder struct {
	store   *EntityStore
	include mask.Mask256
	exclude mask.Mask256
}

// With adds a component type to the include set: matching entities must
// hold it.
func (b *QueryBuilder) With(typeID TypeID) *QueryBuilder {
	b.include.Mark(uint32(typeID))
	return b
}

// Without adds a component type to the exclude set: matching entities must
// not hold it.
func (b *QueryBuilder) Without(typeID TypeID) *QueryBuilder {
	b.exclude.Mark(uint32(typeID))
	return b
}

// Build compiles the query. The result is cheap to iterate repeatedly and
// stays valid as long as none of its referenced type-ids are later reused
// for a different type (this store never reuses type-ids).
func (b *QueryBuilder) Build() *Query {
	return &Query{store: b.store, include: b.include, exclude: b.exclude}
}

// Query is a compiled include/exclude predicate over entity headers. It
// does not materialize results; Iter yields a forward, restartable
// sequence of matching live entities in ascending slot-index order.
type Query struct {
	store   *EntityStore
	include mask.Mask256
	exclude mask.Mask256
}

// Matches reports whether header satisfies the compiled predicate:
// (header.mask & include) == include && (header.mask & exclude) == 0 &&
// header.active.
func (q *Query) Matches(header *EntityHeader) bool {
	if !header.Active {
		return false
	}
	if !header.ComponentMask.ContainsAll(q.include) {
		return false
	}
	if !header.ComponentMask.ContainsNone(q.exclude) {
		return false
	}
	return true
}

// Iter walks every chunk in ascending index order, skipping empty chunks
// entirely, and yields each live matching Entity.
func (q *Query) Iter() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		ix := q.store.index
		chunkCount := ix.ChunkCount()
		liveness := make([]bool, chunkSize)
		for c := 0; c < chunkCount; c++ {
			if ix.ChunkPopulation(c) == 0 {
				continue
			}
			ix.ChunkLiveness(c, liveness)
			for s := 0; s < chunkSize; s++ {
				if !liveness[s] {
					continue
				}
				idx := uint32(c*chunkSize + s)
				header := ix.GetHeader(idx)
				if !q.Matches(header) {
					continue
				}
				if !yield(Entity{Index: idx, Generation: header.Generation}) {
					return
				}
			}
		}
	}
}

// Count returns the number of currently-matching entities without
// allocating a result slice.
func (q *Query) Count() int {
	n := 0
	for range q.Iter() {
		n++
	}
	return n
}
