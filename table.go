package fdp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ComponentTable is dense per-type column storage for a plain-data
// (fixed-size, trivially copyable) component type, indexed directly by
// entity slot index. Presence is derived from EntityHeader.ComponentMask
// by the owning EntityStore; the table itself only grows to cover
// whichever slot was last written.
type ComponentTable[T any] struct {
	typeID   TypeID
	name     string
	policy   DataPolicy
	storage  []T
	version  uint64
	slotVers []uint64
}

func newComponentTable[T any](id TypeID, name string, policy DataPolicy) *ComponentTable[T] {
	return &ComponentTable[T]{typeID: id, name: name, policy: policy}
}

func (t *ComponentTable[T]) TypeID() TypeID          { return t.typeID }
func (t *ComponentTable[T]) Policy() DataPolicy      { return t.policy }
func (t *ComponentTable[T]) PersistentName() string  { return t.name }
func (t *ComponentTable[T]) Boxed() bool             { return false }
func (t *ComponentTable[T]) Version() uint64         { return t.version }

func (t *ComponentTable[T]) EnsureCapacity(idx uint32) {
	if int(idx) < len(t.storage) {
		return
	}
	grown := make([]T, idx+1)
	copy(grown, t.storage)
	t.storage = grown
	grownVers := make([]uint64, idx+1)
	copy(grownVers, t.slotVers)
	t.slotVers = grownVers
}

// Set writes value at idx, bumping the table and per-slot version.
func (t *ComponentTable[T]) Set(idx uint32, value T) {
	t.EnsureCapacity(idx)
	t.storage[idx] = value
	t.version++
	t.slotVers[idx] = t.version
}

// Get returns a pointer to the slot's current value. Caller must confirm
// presence via the entity's component mask first; an absent slot reads as
// the zero value of T.
func (t *ComponentTable[T]) Get(idx uint32) *T {
	t.EnsureCapacity(idx)
	return &t.storage[idx]
}

func (t *ComponentTable[T]) Remove(idx uint32) {
	if int(idx) >= len(t.storage) {
		return
	}
	var zero T
	t.storage[idx] = zero
	t.version++
	t.slotVers[idx] = t.version
}

func (t *ComponentTable[T]) Clear() {
	t.storage = nil
	t.slotVers = nil
	t.version++
}

func (t *ComponentTable[T]) ChangedSince(idx uint32, baseline uint64) bool {
	if int(idx) >= len(t.slotVers) {
		return false
	}
	return t.slotVers[idx] > baseline
}

func (t *ComponentTable[T]) VersionAt(idx uint32) uint64 {
	if int(idx) >= len(t.slotVers) {
		return 0
	}
	return t.slotVers[idx]
}

func (t *ComponentTable[T]) codec() componentCodec {
	return plainCodec[T]{table: t}
}

// plainCodec encodes/decodes fixed-size struct values with encoding/binary,
// the same little-endian, reflection-driven approach used for the wire
// format in other append-only binary stores in the corpus (see
// other_examples' EntityDB binary format). T must contain only fixed-size
// fields (no slices, maps, strings, or pointers).
type plainCodec[T any] struct {
	table *ComponentTable[T]
}

func (c plainCodec[T]) encode(idx uint32, dst []byte) ([]byte, bool) {
	if int(idx) >= len(c.table.storage) {
		var zero T
		buf := new(bytes.Buffer)
		if err := binary.Write(buf, binary.LittleEndian, zero); err != nil {
			panic(fmt.Sprintf("fdp: component %s is not a fixed-size type: %v", c.table.name, err))
		}
		return append(dst, buf.Bytes()...), true
	}
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, c.table.storage[idx]); err != nil {
		panic(fmt.Sprintf("fdp: component %s is not a fixed-size type: %v", c.table.name, err))
	}
	return append(dst, buf.Bytes()...), true
}

func (c plainCodec[T]) decode(idx uint32, src []byte) (int, error) {
	var value T
	r := bytes.NewReader(src)
	if err := binary.Read(r, binary.LittleEndian, &value); err != nil {
		return 0, fmt.Errorf("fdp: decode component %s: %w", c.table.name, err)
	}
	consumed := len(src) - r.Len()
	c.table.Set(idx, value)
	return consumed, nil
}

// ManagedComponentTable is dense per-type column storage for a boxed
// (variable-size, reference-held) component type. Absence is represented
// by a nil pointer.
type ManagedComponentTable[T any] struct {
	typeID  TypeID
	name    string
	policy  DataPolicy
	storage []*T
	version uint64
	slotVers []uint64
	encodeFn func(T) ([]byte, error)
	decodeFn func([]byte) (T, error)
}

func newManagedComponentTable[T any](id TypeID, name string, policy DataPolicy, enc func(T) ([]byte, error), dec func([]byte) (T, error)) *ManagedComponentTable[T] {
	return &ManagedComponentTable[T]{typeID: id, name: name, policy: policy, encodeFn: enc, decodeFn: dec}
}

func (t *ManagedComponentTable[T]) TypeID() TypeID         { return t.typeID }
func (t *ManagedComponentTable[T]) Policy() DataPolicy     { return t.policy }
func (t *ManagedComponentTable[T]) PersistentName() string { return t.name }
func (t *ManagedComponentTable[T]) Boxed() bool            { return true }
func (t *ManagedComponentTable[T]) Version() uint64        { return t.version }

func (t *ManagedComponentTable[T]) EnsureCapacity(idx uint32) {
	if int(idx) < len(t.storage) {
		return
	}
	grown := make([]*T, idx+1)
	copy(grown, t.storage)
	t.storage = grown
	grownVers := make([]uint64, idx+1)
	copy(grownVers, t.slotVers)
	t.slotVers = grownVers
}

func (t *ManagedComponentTable[T]) Set(idx uint32, value T) {
	t.EnsureCapacity(idx)
	v := value
	t.storage[idx] = &v
	t.version++
	t.slotVers[idx] = t.version
}

func (t *ManagedComponentTable[T]) Get(idx uint32) *T {
	t.EnsureCapacity(idx)
	return t.storage[idx]
}

func (t *ManagedComponentTable[T]) Remove(idx uint32) {
	if int(idx) >= len(t.storage) {
		return
	}
	t.storage[idx] = nil
	t.version++
	t.slotVers[idx] = t.version
}

func (t *ManagedComponentTable[T]) Clear() {
	t.storage = nil
	t.slotVers = nil
	t.version++
}

func (t *ManagedComponentTable[T]) ChangedSince(idx uint32, baseline uint64) bool {
	if int(idx) >= len(t.slotVers) {
		return false
	}
	return t.slotVers[idx] > baseline
}

func (t *ManagedComponentTable[T]) VersionAt(idx uint32) uint64 {
	if int(idx) >= len(t.slotVers) {
		return 0
	}
	return t.slotVers[idx]
}

func (t *ManagedComponentTable[T]) codec() componentCodec {
	return managedCodec[T]{table: t}
}

type managedCodec[T any] struct {
	table *ManagedComponentTable[T]
}

func (c managedCodec[T]) encode(idx uint32, dst []byte) ([]byte, bool) {
	if int(idx) >= len(c.table.storage) || c.table.storage[idx] == nil {
		return dst, false
	}
	payload, err := c.table.encodeFn(*c.table.storage[idx])
	if err != nil {
		panic(fmt.Sprintf("fdp: encode managed component %s: %v", c.table.name, err))
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	dst = append(dst, lenBuf[:]...)
	dst = append(dst, payload...)
	return dst, true
}

func (c managedCodec[T]) decode(idx uint32, src []byte) (int, error) {
	if len(src) < 4 {
		return 0, fmt.Errorf("fdp: truncated managed component %s payload", c.table.name)
	}
	n := int(binary.LittleEndian.Uint32(src))
	if len(src) < 4+n {
		return 0, fmt.Errorf("fdp: truncated managed component %s payload", c.table.name)
	}
	value, err := c.table.decodeFn(src[4 : 4+n])
	if err != nil {
		return 0, fmt.Errorf("fdp: decode managed component %s: %w", c.table.name, err)
	}
	c.table.Set(idx, value)
	return 4 + n, nil
}
