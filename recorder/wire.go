// Package recorder implements the Fast Data Plane flight-recorder wire
// format: an append-only stream of keyframe/delta frames written by
// FlightRecorder and read back by PlaybackController (spec §4.9/§4.10,
// §6 "Recording file format"). The container layout is grounded on
// other_examples/.../osakka-entitydb binary-format.go's magic-prefixed,
// fixed-header-plus-sections style, adapted to the FDP frame shape.
package recorder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// magic identifies a recording stream: "FDPR".
var magic = [4]byte{'F', 'D', 'P', 'R'}

// formatVersion is bumped whenever the frame layout changes incompatibly.
const formatVersion uint16 = 1

// defaultKeyframeInterval is forced every this many frames when the
// caller doesn't set Options.KeyframeInterval (spec §4.9 "Cadence").
const defaultKeyframeInterval = 60

// FrameKind distinguishes a full snapshot from an incremental delta.
type FrameKind uint8

const (
	KeyframeKind FrameKind = 0
	DeltaKind    FrameKind = 1
)

// Header is the fixed leading record of a recording stream.
type Header struct {
	FormatVersion    uint16
	KeyframeInterval uint16
	CreatedUTCMs     uint64
	NodeID           int32
}

func writeHeader(w io.Writer, h Header) error {
	if err := binary.Write(w, binary.LittleEndian, magic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h.FormatVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h.KeyframeInterval); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, h.CreatedUTCMs); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, h.NodeID)
}

func readHeader(r io.Reader) (Header, error) {
	var got [4]byte
	if err := binary.Read(r, binary.LittleEndian, &got); err != nil {
		return Header{}, fmt.Errorf("recorder: truncated header: %w", err)
	}
	if got != magic {
		return Header{}, fmt.Errorf("recorder: bad magic %x", got)
	}
	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h.FormatVersion); err != nil {
		return Header{}, fmt.Errorf("recorder: truncated header: %w", err)
	}
	if h.FormatVersion != formatVersion {
		return Header{}, fmt.Errorf("recorder: unsupported format version %d", h.FormatVersion)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.KeyframeInterval); err != nil {
		return Header{}, fmt.Errorf("recorder: truncated header: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.CreatedUTCMs); err != nil {
		return Header{}, fmt.Errorf("recorder: truncated header: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.NodeID); err != nil {
		return Header{}, fmt.Errorf("recorder: truncated header: %w", err)
	}
	return h, nil
}

// entityRecord is one slot's recorded header, keyed implicitly by
// position in the entity section.
type entityRecord struct {
	Index      uint32
	Generation uint16
	Active     bool
	TypeTag    uint64
	Mask       [32]byte
}

// componentSection is one component type's payload within a frame.
type componentSection struct {
	TypeID  uint16
	Kind    uint8 // 0=full, 1=delta
	Payload []byte
}

// eventSection is one event type's captured read queue within a frame.
type eventSection struct {
	TypeID   uint16
	Count    uint32
	Payloads []byte
}

// Frame is one fully decoded recording entry (spec §6 "Frame").
type Frame struct {
	Kind         FrameKind
	FrameNumber  uint64
	DeltaSeconds float32
	TimeScale    float32
	WallTicks    int64

	Entities []entityRecord

	Components []componentSection
	Events     []eventSection
}

func writeFrame(w io.Writer, f Frame) (int64, error) {
	buf := new(bytes.Buffer)

	binary.Write(buf, binary.LittleEndian, uint8(f.Kind))
	binary.Write(buf, binary.LittleEndian, f.FrameNumber)
	binary.Write(buf, binary.LittleEndian, f.DeltaSeconds)
	binary.Write(buf, binary.LittleEndian, f.TimeScale)
	binary.Write(buf, binary.LittleEndian, f.WallTicks)

	entityBuf := new(bytes.Buffer)
	for _, e := range f.Entities {
		binary.Write(entityBuf, binary.LittleEndian, e.Index)
		binary.Write(entityBuf, binary.LittleEndian, e.Generation)
		binary.Write(entityBuf, binary.LittleEndian, e.Active)
		binary.Write(entityBuf, binary.LittleEndian, e.TypeTag)
		binary.Write(entityBuf, binary.LittleEndian, e.Mask)
	}
	binary.Write(buf, binary.LittleEndian, uint32(entityBuf.Len()))
	buf.Write(entityBuf.Bytes())

	binary.Write(buf, binary.LittleEndian, uint16(len(f.Components)))
	for _, c := range f.Components {
		binary.Write(buf, binary.LittleEndian, c.TypeID)
		binary.Write(buf, binary.LittleEndian, c.Kind)
		binary.Write(buf, binary.LittleEndian, uint32(len(c.Payload)))
		buf.Write(c.Payload)
	}

	binary.Write(buf, binary.LittleEndian, uint16(len(f.Events)))
	for _, ev := range f.Events {
		binary.Write(buf, binary.LittleEndian, ev.TypeID)
		binary.Write(buf, binary.LittleEndian, ev.Count)
		binary.Write(buf, binary.LittleEndian, uint32(len(ev.Payloads)))
		buf.Write(ev.Payloads)
	}

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

func readFrame(r io.Reader) (Frame, error) {
	var f Frame
	var kind uint8
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return Frame{}, err
	}
	f.Kind = FrameKind(kind)
	if err := binary.Read(r, binary.LittleEndian, &f.FrameNumber); err != nil {
		return Frame{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &f.DeltaSeconds); err != nil {
		return Frame{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &f.TimeScale); err != nil {
		return Frame{}, err
	}
	if err := binary.Read(r, binary.LittleEndian, &f.WallTicks); err != nil {
		return Frame{}, err
	}

	var entityLen uint32
	if err := binary.Read(r, binary.LittleEndian, &entityLen); err != nil {
		return Frame{}, err
	}
	entityBytes := make([]byte, entityLen)
	if _, err := io.ReadFull(r, entityBytes); err != nil {
		return Frame{}, err
	}
	er := bytes.NewReader(entityBytes)
	const recordSize = 4 + 2 + 1 + 8 + 32
	for er.Len() > 0 {
		if er.Len() < recordSize {
			return Frame{}, fmt.Errorf("recorder: truncated entity record")
		}
		var rec entityRecord
		binary.Read(er, binary.LittleEndian, &rec.Index)
		binary.Read(er, binary.LittleEndian, &rec.Generation)
		binary.Read(er, binary.LittleEndian, &rec.Active)
		binary.Read(er, binary.LittleEndian, &rec.TypeTag)
		binary.Read(er, binary.LittleEndian, &rec.Mask)
		f.Entities = append(f.Entities, rec)
	}

	var componentCount uint16
	if err := binary.Read(r, binary.LittleEndian, &componentCount); err != nil {
		return Frame{}, err
	}
	for i := uint16(0); i < componentCount; i++ {
		var c componentSection
		if err := binary.Read(r, binary.LittleEndian, &c.TypeID); err != nil {
			return Frame{}, err
		}
		if err := binary.Read(r, binary.LittleEndian, &c.Kind); err != nil {
			return Frame{}, err
		}
		var plen uint32
		if err := binary.Read(r, binary.LittleEndian, &plen); err != nil {
			return Frame{}, err
		}
		c.Payload = make([]byte, plen)
		if _, err := io.ReadFull(r, c.Payload); err != nil {
			return Frame{}, err
		}
		f.Components = append(f.Components, c)
	}

	var eventCount uint16
	if err := binary.Read(r, binary.LittleEndian, &eventCount); err != nil {
		return Frame{}, err
	}
	for i := uint16(0); i < eventCount; i++ {
		var ev eventSection
		if err := binary.Read(r, binary.LittleEndian, &ev.TypeID); err != nil {
			return Frame{}, err
		}
		if err := binary.Read(r, binary.LittleEndian, &ev.Count); err != nil {
			return Frame{}, err
		}
		var plen uint32
		if err := binary.Read(r, binary.LittleEndian, &plen); err != nil {
			return Frame{}, err
		}
		ev.Payloads = make([]byte, plen)
		if _, err := io.ReadFull(r, ev.Payloads); err != nil {
			return Frame{}, err
		}
		f.Events = append(f.Events, ev)
	}

	return f, nil
}
