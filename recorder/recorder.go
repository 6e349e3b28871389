package recorder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/fdp"
	"github.com/TheBitDrifter/fdp/clock"
	"github.com/TheBitDrifter/fdp/event"
)

// Options configures a FlightRecorder.
type Options struct {
	// Path is the recording file to create. A sidecar "<Path>.meta" is
	// written alongside it on Close.
	Path string
	// KeyframeInterval forces a full snapshot every this many frames; 0
	// uses defaultKeyframeInterval (spec §4.9 "Cadence").
	KeyframeInterval int
	// Blocking selects backpressure behavior when the writer's ring is
	// full: true waits for room, false drops the frame and increments
	// Dropped (spec §4.9 "Backpressure").
	Blocking bool
	// RingSize bounds the writer's frame-buffer channel; 0 uses 64.
	RingSize int
	// NodeID identifies this recording's origin, written to the header.
	NodeID int32
	// EventNames fixes the stable type_id assignment for event sections:
	// index in this slice is the type_id written to the wire format.
	// PlaybackController must be given the same slice, in the same
	// order, to decode a recording produced with it.
	EventNames []string
}

// FlightRecorder captures one frame per tick to an append-only stream on
// a dedicated writer goroutine (spec §4.9). Capture is meant to be wired
// as a kernel.TickHook.
type FlightRecorder struct {
	opts      Options
	file      *os.File
	ch        chan []byte
	closeOnce sync.Once
	wg        sync.WaitGroup

	createdUTCMs uint64

	frameCount  uint64
	baselines   map[fdp.TypeID]uint64
	lastMaxSlot uint32
	eventIDs    map[string]uint16

	dropped uint64
}

// NewFlightRecorder creates opts.Path, writes the stream header, and
// starts the writer goroutine.
func NewFlightRecorder(opts Options) (*FlightRecorder, error) {
	if opts.KeyframeInterval <= 0 {
		opts.KeyframeInterval = defaultKeyframeInterval
	}
	ringSize := opts.RingSize
	if ringSize <= 0 {
		ringSize = 64
	}

	f, err := os.Create(opts.Path)
	if err != nil {
		return nil, err
	}
	hdr := Header{
		FormatVersion:    formatVersion,
		KeyframeInterval: uint16(opts.KeyframeInterval),
		CreatedUTCMs:     uint64(time.Now().UnixMilli()),
		NodeID:           opts.NodeID,
	}
	if err := writeHeader(f, hdr); err != nil {
		f.Close()
		return nil, err
	}

	eventIDs := make(map[string]uint16, len(opts.EventNames))
	for i, name := range opts.EventNames {
		eventIDs[name] = uint16(i)
	}

	fr := &FlightRecorder{
		opts:         opts,
		file:         f,
		createdUTCMs: hdr.CreatedUTCMs,
		ch:           make(chan []byte, ringSize),
		baselines:    make(map[fdp.TypeID]uint64),
		eventIDs:     eventIDs,
	}
	fr.wg.Add(1)
	go fr.writeLoop()
	return fr, nil
}

func (fr *FlightRecorder) writeLoop() {
	defer fr.wg.Done()
	for data := range fr.ch {
		if _, err := fr.file.Write(data); err != nil {
			bark.Warn(fmt.Sprintf("fdp/recorder: write frame: %v", err))
		}
	}
}

// Dropped returns the number of frames discarded because the ring was
// full under non-blocking backpressure.
func (fr *FlightRecorder) Dropped() uint64 {
	return atomic.LoadUint64(&fr.dropped)
}

// Capture builds and enqueues one frame for tick. Its signature matches
// kernel.TickHook so it can be wired directly via Scheduler.OnTick.
func (fr *FlightRecorder) Capture(tick uint64, gt clock.GlobalTime, store *fdp.EntityStore, bus *event.Bus) {
	frame := fr.buildFrame(tick, gt, store, bus)
	buf := new(bytes.Buffer)
	if _, err := writeFrame(buf, frame); err != nil {
		bark.Warn(fmt.Sprintf("fdp/recorder: encode frame %d: %v", tick, err))
		return
	}
	fr.enqueue(buf.Bytes())
}

func (fr *FlightRecorder) enqueue(data []byte) {
	if fr.opts.Blocking {
		fr.ch <- data
		return
	}
	select {
	case fr.ch <- data:
	default:
		atomic.AddUint64(&fr.dropped, 1)
	}
}

func (fr *FlightRecorder) buildFrame(tick uint64, gt clock.GlobalTime, store *fdp.EntityStore, bus *event.Bus) Frame {
	isKeyframe := fr.frameCount == 0 || fr.frameCount%uint64(fr.opts.KeyframeInterval) == 0
	fr.frameCount++

	maxIdx := store.MaxSlotIndex()
	fr.lastMaxSlot = maxIdx

	entities := make([]entityRecord, 0, maxIdx+1)
	for idx := uint32(0); idx <= maxIdx; idx++ {
		h := store.HeaderAt(idx)
		entities = append(entities, entityRecord{
			Index:      idx,
			Generation: h.Generation,
			Active:     h.Active,
			TypeTag:    h.TypeTag,
			Mask:       fdp.EncodeMask256(h.ComponentMask),
		})
	}

	var components []componentSection
	store.IterateComponentTypes(func(name string, id fdp.TypeID, policy fdp.DataPolicy) {
		if policy == fdp.NoRecord {
			return
		}
		baseline := fr.baselines[id]
		if isKeyframe {
			payload, count := fr.encodeSlots(store, id, maxIdx, nil)
			if count > 0 {
				components = append(components, componentSection{TypeID: uint16(id), Kind: uint8(KeyframeKind), Payload: payload})
			}
		} else {
			payload, count := fr.encodeSlots(store, id, maxIdx, func(idx uint32) bool {
				return store.ComponentChangedSince(idx, id, baseline)
			})
			if count > 0 {
				components = append(components, componentSection{TypeID: uint16(id), Kind: uint8(DeltaKind), Payload: payload})
			}
		}
		fr.baselines[id] = store.ComponentTableVersion(id)
	})

	var events []eventSection
	bus.IterateRegisteredTypes(func(name string, q event.RecordableQueue) {
		id, ok := fr.eventIDs[name]
		if !ok {
			return
		}
		payload, err := q.EncodeRead()
		if err != nil {
			bark.Warn(fmt.Sprintf("fdp/recorder: encode event %q: %v", name, err))
			return
		}
		// EncodeRead's payload starts with the uint32 element count.
		events = append(events, eventSection{TypeID: id, Count: binary.LittleEndian.Uint32(payload), Payloads: payload})
	})

	kind := KeyframeKind
	if !isKeyframe {
		kind = DeltaKind
	}
	return Frame{
		Kind:         kind,
		FrameNumber:  tick,
		DeltaSeconds: float32(gt.Delta),
		TimeScale:    float32(gt.TimeScale),
		WallTicks:    int64(gt.Frame),
		Entities:     entities,
		Components:   components,
		Events:       events,
	}
}

// encodeSlots writes a [count u32][{idx u32, len u32, payload}...] blob
// for every slot in [0, maxIdx] that holds component id and satisfies
// filter (nil filter means "every present slot"), the same per-table
// framing the root package's Save uses (store.go encodeTableBlob).
func (fr *FlightRecorder) encodeSlots(store *fdp.EntityStore, id fdp.TypeID, maxIdx uint32, filter func(idx uint32) bool) ([]byte, int) {
	var body bytes.Buffer
	var count uint32
	for idx := uint32(0); idx <= maxIdx; idx++ {
		if !store.HasComponentAt(idx, id) {
			continue
		}
		if filter != nil && !filter(idx) {
			continue
		}
		payload, ok := store.EncodeComponentAt(idx, id)
		if !ok {
			continue
		}
		binary.Write(&body, binary.LittleEndian, idx)
		binary.Write(&body, binary.LittleEndian, uint32(len(payload)))
		body.Write(payload)
		count++
	}
	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, count)
	out.Write(body.Bytes())
	return out.Bytes(), int(count)
}

// Close drains the writer goroutine, closes the stream, and writes the
// sidecar metadata file. Safe to call more than once.
func (fr *FlightRecorder) Close() error {
	var closeErr error
	fr.closeOnce.Do(func() {
		close(fr.ch)
		fr.wg.Wait()
		closeErr = fr.file.Close()
		meta := Meta{
			FormatVersion:    formatVersion,
			CreatedUTCMs:     fr.createdUTCMs,
			NodeID:           fr.opts.NodeID,
			MaxEntityIndex:   fr.lastMaxSlot,
			KeyframeInterval: uint16(fr.opts.KeyframeInterval),
		}
		if err := writeMeta(fr.opts.Path+".meta", meta); err != nil {
			bark.Warn(fmt.Sprintf("fdp/recorder: write meta: %v", err))
		}
	})
	return closeErr
}
