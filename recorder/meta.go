package recorder

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Meta mirrors a recording's Header plus MaxEntityIndex, written to
// "<path>.meta" so a tool can inspect a recording without reading the
// whole stream (spec §4.9 "Metadata file").
type Meta struct {
	FormatVersion    uint16
	CreatedUTCMs     uint64
	NodeID           int32
	MaxEntityIndex   uint32
	KeyframeInterval uint16
}

func writeMeta(path string, m Meta) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, m.FormatVersion); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, m.CreatedUTCMs); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, m.NodeID); err != nil {
		return err
	}
	if err := binary.Write(f, binary.LittleEndian, m.MaxEntityIndex); err != nil {
		return err
	}
	return binary.Write(f, binary.LittleEndian, m.KeyframeInterval)
}

// ReadMeta loads a recording's sidecar metadata file without opening the
// (potentially large) recording itself.
func ReadMeta(path string) (Meta, error) {
	f, err := os.Open(path)
	if err != nil {
		return Meta{}, err
	}
	defer f.Close()

	var m Meta
	if err := binary.Read(f, binary.LittleEndian, &m.FormatVersion); err != nil {
		return Meta{}, fmt.Errorf("recorder: truncated meta: %w", err)
	}
	if m.FormatVersion != formatVersion {
		return Meta{}, fmt.Errorf("recorder: unsupported meta format version %d", m.FormatVersion)
	}
	if err := binary.Read(f, binary.LittleEndian, &m.CreatedUTCMs); err != nil {
		return Meta{}, fmt.Errorf("recorder: truncated meta: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &m.NodeID); err != nil {
		return Meta{}, fmt.Errorf("recorder: truncated meta: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &m.MaxEntityIndex); err != nil {
		return Meta{}, fmt.Errorf("recorder: truncated meta: %w", err)
	}
	if err := binary.Read(f, binary.LittleEndian, &m.KeyframeInterval); err != nil {
		return Meta{}, fmt.Errorf("recorder: truncated meta: %w", err)
	}
	return m, nil
}
