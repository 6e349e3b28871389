// Package event provides the Fast Data Plane EventBus: a type-indexed,
// double-buffered publish/consume pipeline (spec §4.5). Each registered
// event type owns two queues, write and read; Publish appends to write,
// Consume reads the current read queue, and SwapBuffers atomically
// exchanges them and clears the new write queue.
//
// Events published during tick N become visible to Consume on tick N+1,
// exactly once, in publication order (spec invariant 5) — callers are
// expected to call SwapBuffers exactly once per tick, at the tick
// boundary (fdp/kernel does this).
package event

import (
	"bytes"
	"encoding/binary"
	"io"
	"reflect"
	"sync"
)

// typedQueue is the type-erased shape every per-event-type queue satisfies,
// letting Bus hold a single homogeneous map over heterogeneously-typed
// event payloads — the same type-erasure idiom the root package uses for
// componentTable (component.go).
type typedQueue interface {
	swap()
	clear()
	publishDynamic(e any) bool
}

type queue[E any] struct {
	write []E
	read  []E

	name   string
	encode func(E) ([]byte, error)
	decode func([]byte) (E, error)
}

func (q *queue[E]) swap() {
	q.read, q.write = q.write, q.read[:0]
}

func (q *queue[E]) clear() {
	q.write = q.write[:0]
	q.read = q.read[:0]
}

func (q *queue[E]) publishDynamic(e any) bool {
	v, ok := e.(E)
	if !ok {
		return false
	}
	q.write = append(q.write, v)
	return true
}

// EncodeRead serializes the current read queue as a frame a recorder can
// write verbatim: a uint32 element count followed by each element, either
// fixed-size binary.Write encoding (the plainCodec idiom, table.go) or,
// when a custom codec was installed via RegisterCodec, a length-prefixed
// payload per element (the managedCodec idiom).
func (q *queue[E]) EncodeRead() ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(q.read))); err != nil {
		return nil, err
	}
	for _, v := range q.read {
		if q.encode != nil {
			payload, err := q.encode(v)
			if err != nil {
				return nil, err
			}
			if err := binary.Write(buf, binary.LittleEndian, uint32(len(payload))); err != nil {
				return nil, err
			}
			buf.Write(payload)
			continue
		}
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeIntoRead replaces the read queue with the contents of data, the
// inverse of EncodeRead — used by a PlaybackController to reproduce
// exactly what consumers saw on a recorded tick (spec §4.10).
func (q *queue[E]) DecodeIntoRead(data []byte) error {
	r := bytes.NewReader(data)
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return err
	}
	out := make([]E, 0, count)
	for i := uint32(0); i < count; i++ {
		if q.decode != nil {
			var plen uint32
			if err := binary.Read(r, binary.LittleEndian, &plen); err != nil {
				return err
			}
			payload := make([]byte, plen)
			if _, err := io.ReadFull(r, payload); err != nil {
				return err
			}
			v, err := q.decode(payload)
			if err != nil {
				return err
			}
			out = append(out, v)
			continue
		}
		var v E
		if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
			return err
		}
		out = append(out, v)
	}
	q.read = out
	return nil
}

// RecordableQueue is the type-erased view of a registered event type's
// queue that a recorder works with, never knowing the concrete event
// type at compile time (mirrors componentTable in the root package).
type RecordableQueue interface {
	EncodeRead() ([]byte, error)
	DecodeIntoRead(data []byte) error
}

// Bus owns one double-buffered queue per registered event type.
type Bus struct {
	mu     sync.Mutex
	queues map[reflect.Type]typedQueue
	byName map[string]RecordableQueue
}

// NewBus returns an empty event bus.
func NewBus() *Bus {
	return &Bus{
		queues: make(map[reflect.Type]typedQueue),
		byName: make(map[string]RecordableQueue),
	}
}

// Register explicitly installs an empty queue for event type E. Publish
// and Consume also register lazily on first use, so calling Register is
// only needed to make a type known to PublishDynamic before anything has
// published it directly.
func Register[E any](b *Bus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	typedQueueFor[E](b)
}

// RegisterNamed gives event type E a stable name and makes its queue
// visible to IterateRegisteredTypes, the identifier a FlightRecorder uses
// for the event type in its frame headers (spec §4.9). E must be a
// fixed-size struct, the same constraint RegisterComponent places on
// plain-data components (table.go plainCodec) — use RegisterCodec for
// variable-length payloads.
func RegisterNamed[E any](b *Bus, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := typedQueueFor[E](b)
	q.name = name
	b.byName[name] = q
}

// RegisterCodec is RegisterNamed plus an explicit encode/decode pair for
// event payloads that aren't fixed-size structs, mirroring
// RegisterManagedComponent (root package) for events.
func RegisterCodec[E any](b *Bus, name string, encode func(E) ([]byte, error), decode func([]byte) (E, error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := typedQueueFor[E](b)
	q.name = name
	q.encode = encode
	q.decode = decode
	b.byName[name] = q
}

// IterateRegisteredTypes calls fn once per explicitly named event type
// (RegisterNamed/RegisterCodec), handing back a type-erased
// RecordableQueue a recorder can snapshot without knowing the concrete
// event type.
func (b *Bus) IterateRegisteredTypes(fn func(name string, q RecordableQueue)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, q := range b.byName {
		fn(name, q)
	}
}

func typedQueueFor[E any](b *Bus) *queue[E] {
	rt := reflect.TypeOf((*E)(nil)).Elem()
	if q, ok := b.queues[rt]; ok {
		return q.(*queue[E])
	}
	q := &queue[E]{}
	b.queues[rt] = q
	return q
}

// Publish appends event e to its type's write queue.
func Publish[E any](b *Bus, e E) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := typedQueueFor[E](b)
	q.write = append(q.write, e)
}

// Consume returns the current read queue for E. The returned slice is a
// borrowed view into the bus's internal buffer and must not be retained
// past the next SwapBuffers call.
func Consume[E any](b *Bus) []E {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := typedQueueFor[E](b)
	return q.read
}

// InspectRead returns the current read queue for E without consuming
// semantics beyond what Consume already provides — exposed separately so
// debug panels (spec §4.5 "inspect_read") can be written against a name
// that doesn't imply draining.
func InspectRead[E any](b *Bus) []E {
	return Consume[E](b)
}

// HasAny reports whether E's read queue is non-empty, the predicate a
// Reactive-policy system (fdp/kernel) uses to decide whether to run.
func HasAny[E any](b *Bus) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := typedQueueFor[E](b)
	return len(q.read) > 0
}

// PublishDynamic appends a boxed event whose concrete type is resolved at
// runtime via reflection, used by CommandBuffer.PublishEvent (root
// package) playback, which only holds an `any` captured at enqueue time.
// An event whose type was never registered or published is dropped.
func (b *Bus) PublishDynamic(e any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rt := reflect.TypeOf(e)
	q, ok := b.queues[rt]
	if !ok {
		return
	}
	q.publishDynamic(e)
}

// SwapBuffers moves every type's write queue into its read queue and
// clears the new write queue (spec invariant 6). Called once per tick, at
// the tick boundary.
func (b *Bus) SwapBuffers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.queues {
		q.swap()
	}
}

// Clear empties every queue, used when a PlaybackController restores event
// state at a seek target rather than accumulating it tick by tick.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, q := range b.queues {
		q.clear()
	}
}

// SeedRead installs values as E's current read queue directly, bypassing
// publish/swap — used by PlaybackController to reproduce exactly what
// consumers saw on the recorded tick (spec §4.10 "Deterministic replay").
func SeedRead[E any](b *Bus, values []E) {
	b.mu.Lock()
	defer b.mu.Unlock()
	q := typedQueueFor[E](b)
	q.read = append(q.read[:0], values...)
}
