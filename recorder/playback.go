package recorder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/TheBitDrifter/fdp"
	"github.com/TheBitDrifter/fdp/event"
)

// frameIndexEntry is one scanned frame's file offset and identity, built
// once by Open (spec §4.10 "builds a frame index").
type frameIndexEntry struct {
	offset      int64
	kind        FrameKind
	frameNumber uint64
}

// PlaybackController seeks and steps a recording, restoring an
// EntityStore and EventBus to exactly what they held at a given frame
// (spec §4.10).
type PlaybackController struct {
	file       *os.File
	header     Header
	frames     []frameIndexEntry
	eventNames []string

	current int // index into frames; -1 before the first frame
}

// Open validates path's header and scans every frame to build a seek
// index. eventNames must match, in order, the Options.EventNames the
// recording was captured with.
func Open(path string, eventNames []string) (*PlaybackController, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	hdr, err := readHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	pc := &PlaybackController{file: f, header: hdr, eventNames: eventNames, current: -1}
	for {
		offset, err := f.Seek(0, io.SeekCurrent)
		if err != nil {
			f.Close()
			return nil, err
		}
		fr, err := readFrame(f)
		if err == io.EOF {
			break
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("recorder: scanning frame index: %w", err)
		}
		pc.frames = append(pc.frames, frameIndexEntry{offset: offset, kind: fr.Kind, frameNumber: fr.FrameNumber})
	}
	return pc, nil
}

// Close releases the underlying file handle.
func (pc *PlaybackController) Close() error { return pc.file.Close() }

// CurrentFrame returns the frame number last applied by SeekToFrame,
// StepForward, or StepBackward, or 0 before the first.
func (pc *PlaybackController) CurrentFrame() uint64 {
	if pc.current < 0 {
		return 0
	}
	return pc.frames[pc.current].frameNumber
}

// IsAtEnd reports whether the cursor is on the last recorded frame.
func (pc *PlaybackController) IsAtEnd() bool {
	return pc.current == len(pc.frames)-1
}

func (pc *PlaybackController) readFrameAt(i int) (Frame, error) {
	if _, err := pc.file.Seek(pc.frames[i].offset, io.SeekStart); err != nil {
		return Frame{}, err
	}
	return readFrame(pc.file)
}

// SeekToFrame locates the nearest preceding keyframe at or before
// frameNumber, restores store and bus from it, then applies every
// subsequent delta up to and including frameNumber.
func (pc *PlaybackController) SeekToFrame(store *fdp.EntityStore, bus *event.Bus, frameNumber uint64) error {
	targetIdx := -1
	for i, e := range pc.frames {
		if e.frameNumber == frameNumber {
			targetIdx = i
			break
		}
	}
	if targetIdx < 0 {
		return fmt.Errorf("recorder: no frame %d in recording", frameNumber)
	}

	kfIdx := -1
	for i := targetIdx; i >= 0; i-- {
		if pc.frames[i].kind == KeyframeKind {
			kfIdx = i
			break
		}
	}
	if kfIdx < 0 {
		return fmt.Errorf("recorder: no keyframe precedes frame %d", frameNumber)
	}

	kf, err := pc.readFrameAt(kfIdx)
	if err != nil {
		return err
	}
	if err := pc.applyKeyframe(store, bus, kf); err != nil {
		return err
	}

	for i := kfIdx + 1; i <= targetIdx; i++ {
		df, err := pc.readFrameAt(i)
		if err != nil {
			return err
		}
		if err := pc.applyDelta(store, bus, df); err != nil {
			return err
		}
	}

	pc.current = targetIdx
	return nil
}

// StepForward advances one frame and applies it, returning false if
// already at the last frame.
func (pc *PlaybackController) StepForward(store *fdp.EntityStore, bus *event.Bus) (bool, error) {
	if pc.current+1 >= len(pc.frames) {
		return false, nil
	}
	next := pc.current + 1
	f, err := pc.readFrameAt(next)
	if err != nil {
		return false, err
	}
	if f.Kind == KeyframeKind {
		if err := pc.applyKeyframe(store, bus, f); err != nil {
			return false, err
		}
	} else {
		if err := pc.applyDelta(store, bus, f); err != nil {
			return false, err
		}
	}
	pc.current = next
	return true, nil
}

// StepBackward retreats one frame by reseeking from the nearest preceding
// keyframe, returning false if already at the first frame.
func (pc *PlaybackController) StepBackward(store *fdp.EntityStore, bus *event.Bus) (bool, error) {
	if pc.current <= 0 {
		return false, nil
	}
	target := pc.frames[pc.current-1].frameNumber
	if err := pc.SeekToFrame(store, bus, target); err != nil {
		return false, err
	}
	return true, nil
}

func (pc *PlaybackController) applyKeyframe(store *fdp.EntityStore, bus *event.Bus, f Frame) error {
	headers, maxIdx := decodeEntitySection(f.Entities)
	store.RestoreHeaders(headers, maxIdx)
	return pc.applyComponentsAndEvents(store, bus, f)
}

func (pc *PlaybackController) applyDelta(store *fdp.EntityStore, bus *event.Bus, f Frame) error {
	headers, maxIdx := decodeEntitySection(f.Entities)
	store.RestoreHeadersOnly(headers, maxIdx)
	return pc.applyComponentsAndEvents(store, bus, f)
}

func (pc *PlaybackController) applyComponentsAndEvents(store *fdp.EntityStore, bus *event.Bus, f Frame) error {
	for _, c := range f.Components {
		if err := decodeSlots(store, fdp.TypeID(c.TypeID), c.Payload); err != nil {
			return err
		}
	}

	bus.Clear()
	for _, evSec := range f.Events {
		if int(evSec.TypeID) >= len(pc.eventNames) {
			continue
		}
		name := pc.eventNames[evSec.TypeID]
		var decodeErr error
		bus.IterateRegisteredTypes(func(qName string, q event.RecordableQueue) {
			if qName != name {
				return
			}
			if err := q.DecodeIntoRead(evSec.Payloads); err != nil {
				decodeErr = err
			}
		})
		if decodeErr != nil {
			return decodeErr
		}
	}
	return nil
}

func decodeEntitySection(records []entityRecord) (map[uint32]fdp.EntityHeader, uint32) {
	headers := make(map[uint32]fdp.EntityHeader, len(records))
	var maxIdx uint32
	for _, r := range records {
		headers[r.Index] = fdp.EntityHeader{
			Generation:    r.Generation,
			Active:        r.Active,
			TypeTag:       r.TypeTag,
			ComponentMask: fdp.DecodeMask256(r.Mask),
		}
		if r.Index > maxIdx {
			maxIdx = r.Index
		}
	}
	return headers, maxIdx
}

func decodeSlots(store *fdp.EntityStore, id fdp.TypeID, blob []byte) error {
	if len(blob) < 4 {
		return fmt.Errorf("recorder: truncated component blob")
	}
	count := binary.LittleEndian.Uint32(blob)
	r := bytes.NewReader(blob[4:])
	for i := uint32(0); i < count; i++ {
		var idx uint32
		if err := binary.Read(r, binary.LittleEndian, &idx); err != nil {
			return fmt.Errorf("recorder: truncated component entry: %w", err)
		}
		var plen uint32
		if err := binary.Read(r, binary.LittleEndian, &plen); err != nil {
			return fmt.Errorf("recorder: truncated component entry: %w", err)
		}
		payload := make([]byte, plen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return fmt.Errorf("recorder: truncated component payload: %w", err)
		}
		if err := store.DecodeComponentAt(idx, id, payload); err != nil {
			return err
		}
	}
	return nil
}
