package fdp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"reflect"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// StoreOptions configures a new EntityStore, generalizing the teacher's
// package-level Config singleton (config.go) into an explicit constructor
// parameter per the spec's "replace global mutable state with explicit
// parameters" design note (§9).
type StoreOptions struct {
	// MaxEntities caps live entity slots; 0 means unbounded.
	MaxEntities uint32
	// LifecycleTimeoutFrames bounds construction/teardown acks; 0 uses
	// DefaultLifecycleTimeoutFrames.
	LifecycleTimeoutFrames uint64
}

// EntityStore is the facade composing the EntityIndex and every
// ComponentTable, owning the query engine and command-buffer playback
// (spec §4.3). It is the single point of exclusive ownership over entity
// and component state; iterators and read-only views borrow from it and
// must not outlive a tick.
type EntityStore struct {
	index    *EntityIndex
	tables   []componentTable
	nameToID map[string]TypeID
	typeToID map[reflect.Type]TypeID

	singletons map[TypeID]Entity

	cmdBuffer *CommandBuffer
	lifecycle *lifecycleManager

	globalVersion uint64

	lifecycleTypeID TypeID
	lifecycleTable  *ComponentTable[LifecycleState]

	// locks and pending generalize the teacher's storage lock discipline
	// (storage.go: locks mask.Mask256, AddLock/RemoveLock/operationQueue) to
	// back the scheduler's borrow guard: a direct mutation attempted while
	// locked reports LockedStorageError, while a buffered CommandBuffer
	// playback queues instead and drains in order once the last lock bit
	// clears (spec §5 "a borrow guard prevents concurrent writers").
	locks   mask.Mask256
	pending []pendingPlayback
}

type pendingPlayback struct {
	cb  *CommandBuffer
	bus EventPublisher
}

// NewEntityStore constructs an empty store. A reserved internal component
// tracks per-entity LifecycleState; it is never exposed as a registrable
// user type.
func NewEntityStore(opts StoreOptions) *EntityStore {
	s := &EntityStore{
		index:      NewEntityIndex(opts.MaxEntities),
		nameToID:   make(map[string]TypeID),
		typeToID:   make(map[reflect.Type]TypeID),
		singletons: make(map[TypeID]Entity),
		cmdBuffer:  NewCommandBuffer(),
		lifecycle:  newLifecycleManager(opts.LifecycleTimeoutFrames),
	}
	id, err := registerInternal[LifecycleState](s, "__lifecycle", NoRecord)
	if err != nil {
		panic(bark.AddTrace(err))
	}
	s.lifecycleTypeID = id
	s.lifecycleTable = s.tables[id].(*ComponentTable[LifecycleState])
	return s
}

// --- entity lifecycle (create/destroy/tick) ---

// Create allocates a new entity with no components.
func (s *EntityStore) Create() (Entity, error) {
	return s.index.CreateEntity()
}

// Destroy immediately destroys e. A stale handle is a no-op.
func (s *EntityStore) Destroy(e Entity) {
	s.index.DestroyEntity(e)
}

// IsAlive reports whether e still refers to a live slot.
func (s *EntityStore) IsAlive(e Entity) bool {
	return s.index.IsAlive(e)
}

// Locked reports whether any lock bit is held.
func (s *EntityStore) Locked() bool {
	return !s.locks.IsEmpty()
}

// AddLock marks bit held, blocking direct mutation and deferring any
// CommandBuffer playback routed through PlaybackOrQueue until every lock
// bit is released.
func (s *EntityStore) AddLock(bit uint32) {
	s.locks.Mark(bit)
}

// RemoveLock releases bit. Once no lock bit remains, every queued playback
// is drained in the order it was queued.
func (s *EntityStore) RemoveLock(bit uint32) {
	s.locks.Unmark(bit)
	if s.locks.IsEmpty() {
		pending := s.pending
		s.pending = nil
		for _, p := range pending {
			p.cb.Playback(s, p.bus)
		}
	}
}

// PlaybackOrQueue applies cb against s immediately, or — if s is locked —
// defers it until RemoveLock brings the store back to fully unlocked. This
// is how a scheduler phase keeps a synchronous system's writes from racing
// a SlowBackground system's in-flight reads of the same store.
func (s *EntityStore) PlaybackOrQueue(cb *CommandBuffer, bus EventPublisher) {
	if s.Locked() {
		s.pending = append(s.pending, pendingPlayback{cb: cb, bus: bus})
		return
	}
	cb.Playback(s, bus)
}

// GlobalVersion returns the store's tick counter.
func (s *EntityStore) GlobalVersion() uint64 {
	return s.globalVersion
}

// Tick advances the global version and clears every Transient component
// from every live entity (spec invariant 8: a Transient component is
// absent from the store at the start of every tick).
func (s *EntityStore) Tick() {
	s.globalVersion++
	for _, t := range s.tables {
		if t.Policy() != Transient {
			continue
		}
		bit := uint32(t.TypeID())
		chunkCount := s.index.ChunkCount()
		liveness := make([]bool, chunkSize)
		for c := 0; c < chunkCount; c++ {
			if s.index.ChunkPopulation(c) == 0 {
				continue
			}
			s.index.ChunkLiveness(c, liveness)
			for slot := 0; slot < chunkSize; slot++ {
				if !liveness[slot] {
					continue
				}
				idx := uint32(c*chunkSize + slot)
				s.index.GetHeader(idx).ComponentMask.Unmark(bit)
			}
		}
		t.Clear()
	}
}

// --- component registry ---

// registerInternal is the core of RegisterComponent, shared with the
// store's own bootstrap registration of the lifecycle table.
func registerInternal[T any](s *EntityStore, name string, policy DataPolicy) (TypeID, error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if id, ok := s.typeToID[rt]; ok {
		return id, nil // idempotent re-registration of the same type
	}
	if _, ok := s.nameToID[name]; ok {
		return 0, DuplicateRegistrationError{Name: name}
	}
	if len(s.tables) >= maxComponentTypes {
		return 0, TooManyComponentTypesError{}
	}
	id := TypeID(len(s.tables))
	s.tables = append(s.tables, newComponentTable[T](id, name, policy))
	s.typeToID[rt] = id
	s.nameToID[name] = id
	return id, nil
}

// RegisterComponent registers plain-data component type T under a stable
// persistent name and recording policy, returning an accessor. Registering
// the same T twice is idempotent; registering a distinct type under a name
// already in use fails with DuplicateRegistrationError.
func RegisterComponent[T any](s *EntityStore, name string, policy DataPolicy) (ComponentAccessor[T], error) {
	id, err := registerInternal[T](s, name, policy)
	if err != nil {
		return ComponentAccessor[T]{}, err
	}
	return ComponentAccessor[T]{id: id, table: s.tables[id].(*ComponentTable[T]), store: s}, nil
}

// RegisterManagedComponent registers boxed component type T with explicit
// encode/decode functions used by the recorder and the save/load facade.
func RegisterManagedComponent[T any](s *EntityStore, name string, policy DataPolicy, encode func(T) ([]byte, error), decode func([]byte) (T, error)) (ManagedComponentAccessor[T], error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if id, ok := s.typeToID[rt]; ok {
		return ManagedComponentAccessor[T]{id: id, table: s.tables[id].(*ManagedComponentTable[T]), store: s}, nil
	}
	if _, ok := s.nameToID[name]; ok {
		return ManagedComponentAccessor[T]{}, DuplicateRegistrationError{Name: name}
	}
	if len(s.tables) >= maxComponentTypes {
		return ManagedComponentAccessor[T]{}, TooManyComponentTypesError{}
	}
	id := TypeID(len(s.tables))
	s.tables = append(s.tables, newManagedComponentTable[T](id, name, policy, encode, decode))
	s.typeToID[rt] = id
	s.nameToID[name] = id
	return ManagedComponentAccessor[T]{id: id, table: s.tables[id].(*ManagedComponentTable[T]), store: s}, nil
}

// TryGetTable returns the type-erased table registered under name, for the
// narrow inspection view (spec §9: iterate_component_types/get_raw/set_raw).
func (s *EntityStore) TryGetTable(name string) (componentTable, bool) {
	id, ok := s.nameToID[name]
	if !ok {
		return nil, false
	}
	return s.tables[id], true
}

// IterateComponentTypes calls fn for every registered component type's
// name, type-id, and policy.
func (s *EntityStore) IterateComponentTypes(fn func(name string, id TypeID, policy DataPolicy)) {
	for _, t := range s.tables {
		if t.TypeID() == s.lifecycleTypeID {
			continue
		}
		fn(t.PersistentName(), t.TypeID(), t.Policy())
	}
}

// GetRaw returns the codec-encoded bytes for entity e's slot in component
// type id, or false if the entity doesn't hold it.
func (s *EntityStore) GetRaw(e Entity, id TypeID) ([]byte, bool) {
	if !s.IsAlive(e) || int(id) >= len(s.tables) {
		return nil, false
	}
	if !hasBit(s.index.GetHeader(e.Index).ComponentMask, id) {
		return nil, false
	}
	return s.EncodeComponentAt(e.Index, id)
}

// SetRaw decodes bytes (as produced by GetRaw) into entity e's slot for
// component type id and marks the component present.
func (s *EntityStore) SetRaw(e Entity, id TypeID, data []byte) error {
	if !s.IsAlive(e) {
		return StaleEntityError{Entity: e}
	}
	if int(id) >= len(s.tables) {
		return UnknownComponentError{TypeName: fmt.Sprintf("type-id %d", id)}
	}
	return s.DecodeComponentAt(e.Index, id, data)
}

// EncodeComponentAt returns the codec-encoded bytes for raw slot idx in
// component type id, regardless of liveness. The FlightRecorder and
// PlaybackController (fdp/recorder) address slots directly rather than
// through an Entity handle, since a recording's entity section enumerates
// every allocated slot, live or freed.
func (s *EntityStore) EncodeComponentAt(idx uint32, id TypeID) ([]byte, bool) {
	if int(id) >= len(s.tables) {
		return nil, false
	}
	return s.tables[id].codec().encode(idx, nil)
}

// HasComponentAt reports whether raw slot idx's header marks component
// type id present, regardless of whether idx currently belongs to a live
// entity. The FlightRecorder uses this to skip never-written plain-data
// slots, whose codec otherwise happily encodes a zero value (table.go
// plainCodec.encode never reports ok=false).
func (s *EntityStore) HasComponentAt(idx uint32, id TypeID) bool {
	if int(id) >= len(s.tables) {
		return false
	}
	return hasBit(s.index.GetHeader(idx).ComponentMask, id)
}

// DecodeComponentAt installs codec-encoded bytes into raw slot idx for
// component type id and marks the component present in that slot's header,
// used by PlaybackController restore.
func (s *EntityStore) DecodeComponentAt(idx uint32, id TypeID, data []byte) error {
	if int(id) >= len(s.tables) {
		return UnknownComponentError{TypeName: fmt.Sprintf("type-id %d", id)}
	}
	if _, err := s.tables[id].codec().decode(idx, data); err != nil {
		return err
	}
	s.index.GetHeader(idx).ComponentMask.Mark(uint32(id))
	return nil
}

// ComponentChangedSince reports whether slot idx's value in component type
// id has been written since table version baseline. The FlightRecorder
// uses this to decide whether a slot belongs in a delta section (spec
// §4.9).
func (s *EntityStore) ComponentChangedSince(idx uint32, id TypeID, baseline uint64) bool {
	if int(id) >= len(s.tables) {
		return false
	}
	return s.tables[id].ChangedSince(idx, baseline)
}

// ComponentTableVersion returns component type id's table-global version
// counter, used by the recorder as a per-type delta baseline.
func (s *EntityStore) ComponentTableVersion(id TypeID) uint64 {
	if int(id) >= len(s.tables) {
		return 0
	}
	return s.tables[id].Version()
}

// MaxSlotIndex returns the highest entity slot index ever allocated.
func (s *EntityStore) MaxSlotIndex() uint32 {
	return s.index.MaxSlotIndex()
}

// HeaderAt returns a copy of the raw per-slot header at idx, live or freed.
// Used by the recorder to build a recording's entity section and by
// playback restore to drive RestoreHeaders.
func (s *EntityStore) HeaderAt(idx uint32) EntityHeader {
	return *s.index.GetHeader(idx)
}

// RestoreHeaders discards every component table and rebuilds the entity
// index from a restored header set, bypassing normal create/destroy
// mutation. Used by PlaybackController to apply a recording's keyframe and
// by Load to reset the store before restoring saved component data.
func (s *EntityStore) RestoreHeaders(headers map[uint32]EntityHeader, maxIdx uint32) {
	for _, t := range s.tables {
		if t.TypeID() == s.lifecycleTypeID {
			continue
		}
		t.Clear()
	}
	s.RestoreHeadersOnly(headers, maxIdx)
}

// RestoreHeadersOnly rebuilds the entity index from a restored header set
// without touching any component table, used by PlaybackController to
// apply a delta frame's entity section on top of component data already
// installed from the preceding keyframe and deltas.
func (s *EntityStore) RestoreHeadersOnly(headers map[uint32]EntityHeader, maxIdx uint32) {
	s.index.rebuildFromHeaders(headers, maxIdx)
	s.singletons = make(map[TypeID]Entity)
}

// --- query ---

// Query returns a builder for compiling an include/exclude predicate.
func (s *EntityStore) Query() *QueryBuilder {
	return &QueryBuilder{store: s}
}

// --- command buffer ---

// GetCommandBuffer returns the store's single scratch command buffer, to
// be played back by the scheduler at a phase boundary. In a multi-system
// scheduler each system instead owns its own CommandBuffer (see
// fdp/kernel); this one is convenient for direct, single-threaded use of
// the store.
func (s *EntityStore) GetCommandBuffer() *CommandBuffer {
	return s.cmdBuffer
}

// PlaybackCommandBuffer is a convenience wrapper applying cb against this
// store with no event bus attached (events published during playback are
// dropped). Callers driving a real simulation should call cb.Playback
// directly with their event bus.
func (s *EntityStore) PlaybackCommandBuffer(cb *CommandBuffer) {
	cb.Playback(s, nil)
}

// --- lifecycle ---

func (s *EntityStore) setLifecycle(e Entity, state LifecycleState) {
	s.lifecycleTable.Set(e.Index, state)
	s.index.GetHeader(e.Index).ComponentMask.Mark(uint32(s.lifecycleTypeID))
}

// GetLifecycle returns e's current lifecycle state, defaulting to Active
// for entities that never went through BeginConstruction (e.g. created
// directly via Create rather than a blueprint).
func (s *EntityStore) GetLifecycle(e Entity) LifecycleState {
	if !s.IsAlive(e) || !hasBit(s.index.GetHeader(e.Index).ComponentMask, s.lifecycleTypeID) {
		return Active
	}
	return *s.lifecycleTable.Get(e.Index)
}

// BeginConstruction transitions e into Constructing, awaiting
// requiredAcks ConstructionAck events before promotion to Active.
func (s *EntityStore) BeginConstruction(e Entity, requiredAcks int, currentFrame uint64) {
	s.setLifecycle(e, Constructing)
	s.lifecycle.begin(e, Constructing, requiredAcks, currentFrame)
}

// BeginTeardown transitions e into TearDown, awaiting requiredAcks
// TeardownAck events before the entity is destroyed.
func (s *EntityStore) BeginTeardown(e Entity, requiredAcks int, currentFrame uint64) {
	s.setLifecycle(e, TearDown)
	s.lifecycle.begin(e, TearDown, requiredAcks, currentFrame)
}

// AckConstruction records one ConstructionAck for e. When every required
// ack has landed successfully, e is promoted to Active; on any failed ack
// the entity is destroyed instead.
func (s *EntityStore) AckConstruction(e Entity, success bool) {
	complete, failed := s.lifecycle.ack(e, success)
	if !complete {
		return
	}
	if failed {
		s.Destroy(e)
		return
	}
	s.setLifecycle(e, Active)
}

// AckTeardown records one TeardownAck for e, destroying it once every
// required ack has landed.
func (s *EntityStore) AckTeardown(e Entity, success bool) {
	complete, _ := s.lifecycle.ack(e, success)
	if complete {
		s.Destroy(e)
	}
}

// ExpireLifecycleTimeouts destroys any entity whose construction or
// teardown ack budget has elapsed as of currentFrame, logging a warning for
// each and returning the destroyed entities.
func (s *EntityStore) ExpireLifecycleTimeouts(currentFrame uint64) []Entity {
	stale := s.lifecycle.expired(currentFrame)
	out := make([]Entity, 0, len(stale))
	for _, partial := range stale {
		header := s.index.GetHeader(partial.Index)
		e := Entity{Index: partial.Index, Generation: header.Generation}
		if !s.IsAlive(e) {
			continue
		}
		s.Destroy(e)
		bark.Warn(fmt.Sprintf("fdp: lifecycle ack timeout, destroyed entity %+v", e))
		out = append(out, e)
	}
	return out
}

// --- singletons ---

func (s *EntityStore) singletonEntity(id TypeID, create bool) (Entity, error) {
	if e, ok := s.singletons[id]; ok {
		return e, nil
	}
	if !create {
		return Null, nil
	}
	e, err := s.Create()
	if err != nil {
		return Null, err
	}
	s.singletons[id] = e
	return e, nil
}

// SetSingleton installs value as the sole instance of T, creating the
// reserved singleton entity on first use.
func SetSingleton[T any](s *EntityStore, acc ComponentAccessor[T], value T) error {
	e, err := s.singletonEntity(acc.id, true)
	if err != nil {
		return err
	}
	return acc.Add(e, value)
}

// GetSingleton returns T's singleton instance, or ok=false if it has never
// been set.
func GetSingleton[T any](s *EntityStore, acc ComponentAccessor[T]) (value *T, ok bool) {
	e, _ := s.singletonEntity(acc.id, false)
	if e == Null {
		return nil, false
	}
	if !acc.Has(e) {
		return nil, false
	}
	v, _ := acc.Get(e)
	return v, true
}

// HasSingleton reports whether T's singleton has been set.
func HasSingleton[T any](s *EntityStore, acc ComponentAccessor[T]) bool {
	e, _ := s.singletonEntity(acc.id, false)
	return e != Null && acc.Has(e)
}

// --- save / load facade ---

const saveFormatVersion uint16 = 1

var saveMagic = [4]byte{'F', 'D', 'P', 'S'}

// Save writes a single framed record {format_version, entities[],
// component_blobs} covering every live entity and every table whose
// policy is Default or NoRecord (Transient types are never persisted, per
// spec §4.3/§6).
func (s *EntityStore) Save(w io.Writer) error {
	bw := &countingWriter{w: w}
	if err := binary.Write(bw, binary.LittleEndian, saveMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, saveFormatVersion); err != nil {
		return err
	}

	var entities []Entity
	for e := range s.Query().Build().Iter() {
		entities = append(entities, e)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(entities))); err != nil {
		return err
	}
	for _, e := range entities {
		header := s.index.GetHeader(e.Index)
		if err := binary.Write(bw, binary.LittleEndian, e.Index); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, e.Generation); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, header.TypeTag); err != nil {
			return err
		}
	}

	var recordable []componentTable
	for _, t := range s.tables {
		if t.TypeID() == s.lifecycleTypeID {
			continue
		}
		if t.Policy() == Transient {
			continue
		}
		recordable = append(recordable, t)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint16(len(recordable))); err != nil {
		return err
	}
	for _, t := range recordable {
		name := t.PersistentName()
		if err := binary.Write(bw, binary.LittleEndian, uint16(len(name))); err != nil {
			return err
		}
		if _, err := bw.Write([]byte(name)); err != nil {
			return err
		}
		blob := s.encodeTableBlob(t, entities)
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(blob))); err != nil {
			return err
		}
		if _, err := bw.Write(blob); err != nil {
			return err
		}
	}
	return nil
}

// encodeTableBlob writes one [slotIndex u32][payloadLen u32][payload]
// entry per live entity that holds t, preceded by a u32 entry count.
func (s *EntityStore) encodeTableBlob(t componentTable, entities []Entity) []byte {
	var buf bytes.Buffer
	var count uint32
	var body bytes.Buffer
	codec := t.codec()
	for _, e := range entities {
		if !hasBit(s.index.GetHeader(e.Index).ComponentMask, t.TypeID()) {
			continue
		}
		payload, ok := codec.encode(e.Index, nil)
		if !ok {
			continue
		}
		binary.Write(&body, binary.LittleEndian, e.Index)
		binary.Write(&body, binary.LittleEndian, uint32(len(payload)))
		body.Write(payload)
		count++
	}
	binary.Write(&buf, binary.LittleEndian, count)
	buf.Write(body.Bytes())
	return buf.Bytes()
}

// Load resets the store and restores it from a Save-produced stream.
// Component blobs whose persistent name is unknown to this store are
// skipped without error.
func (s *EntityStore) Load(r io.Reader) error {
	var magic [4]byte
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return PlaybackCorruptError{Reason: "truncated header"}
	}
	if magic != saveMagic {
		return PlaybackCorruptError{Reason: "bad magic"}
	}
	var version uint16
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return PlaybackCorruptError{Reason: "truncated header"}
	}
	if version != saveFormatVersion {
		return PlaybackCorruptError{Reason: fmt.Sprintf("unsupported format version %d", version)}
	}

	var entityCount uint32
	if err := binary.Read(r, binary.LittleEndian, &entityCount); err != nil {
		return PlaybackCorruptError{Reason: "truncated entity count"}
	}
	headers := make(map[uint32]EntityHeader, entityCount)
	var maxIdx uint32
	for i := uint32(0); i < entityCount; i++ {
		var idx uint32
		var gen uint16
		var typeTag uint64
		if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
			return PlaybackCorruptError{Reason: "truncated entity record"}
		}
		if err := binary.Read(r, binary.LittleEndian, &gen); err != nil {
			return PlaybackCorruptError{Reason: "truncated entity record"}
		}
		if err := binary.Read(r, binary.LittleEndian, &typeTag); err != nil {
			return PlaybackCorruptError{Reason: "truncated entity record"}
		}
		headers[idx] = EntityHeader{Generation: gen, Active: true, TypeTag: typeTag}
		if idx > maxIdx {
			maxIdx = idx
		}
	}

	s.RestoreHeaders(headers, maxIdx)

	var sectionCount uint16
	if err := binary.Read(r, binary.LittleEndian, &sectionCount); err != nil {
		return PlaybackCorruptError{Reason: "truncated section count"}
	}
	for i := uint16(0); i < sectionCount; i++ {
		var nameLen uint16
		if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
			return PlaybackCorruptError{Reason: "truncated section name length"}
		}
		nameBytes := make([]byte, nameLen)
		if _, err := io.ReadFull(r, nameBytes); err != nil {
			return PlaybackCorruptError{Reason: "truncated section name"}
		}
		name := string(nameBytes)
		var blobLen uint32
		if err := binary.Read(r, binary.LittleEndian, &blobLen); err != nil {
			return PlaybackCorruptError{Reason: "truncated section length"}
		}
		blob := make([]byte, blobLen)
		if _, err := io.ReadFull(r, blob); err != nil {
			return PlaybackCorruptError{Reason: "truncated section payload"}
		}

		id, ok := s.nameToID[name]
		if !ok {
			continue // unknown persisted type: skipped without error
		}
		if err := s.decodeTableBlob(id, blob); err != nil {
			return err
		}
	}
	return nil
}

func (s *EntityStore) decodeTableBlob(id TypeID, blob []byte) error {
	if len(blob) < 4 {
		return PlaybackCorruptError{Reason: "truncated blob count"}
	}
	count := binary.LittleEndian.Uint32(blob)
	off := 4
	codec := s.tables[id].codec()
	for i := uint32(0); i < count; i++ {
		if off+8 > len(blob) {
			return PlaybackCorruptError{Reason: "truncated blob entry"}
		}
		idx := binary.LittleEndian.Uint32(blob[off:])
		off += 4
		n := int(binary.LittleEndian.Uint32(blob[off:]))
		off += 4
		if off+n > len(blob) {
			return PlaybackCorruptError{Reason: "truncated blob payload"}
		}
		if _, err := codec.decode(idx, blob[off:off+n]); err != nil {
			return err
		}
		off += n
		s.index.GetHeader(idx).ComponentMask.Mark(uint32(id))
	}
	return nil
}

// countingWriter adapts io.Writer for binary.Write call sites that need an
// io.Writer (binary.Write already accepts one directly; kept for symmetry
// with possible future instrumentation).
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// hasBit reports whether bit is set in m.
func hasBit(m mask.Mask256, bit TypeID) bool {
	var single mask.Mask256
	single.Mark(uint32(bit))
	return m.ContainsAll(single)
}
