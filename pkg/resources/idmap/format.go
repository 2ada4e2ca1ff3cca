package idmap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/droidres/reskit/pkg/resources"
)

const (
	// Magic identifies an idmap file, "IDMP" read little-endian.
	Magic = 0x504D4449
	// Version is the only format revision this package reads or writes.
	Version = 1
	// PathLength is the fixed size of the two path fields.
	PathLength = 256
	// NoEntry fills the gaps of a dense type-entry array.
	NoEntry = 0xFFFFFFFF

	headerSize     = 528
	dataHeaderSize = 8
	typeEntryFixed = 8
)

// Header is the outer file header: identity plus the freshness fields
// the up-to-date check compares.
type Header struct {
	Magic       uint32
	Version     uint32
	TargetCRC   uint32
	OverlayCRC  uint32
	TargetPath  string
	OverlayPath string
}

// DataHeader opens the data section.
type DataHeader struct {
	TargetPackageID uint8
	TypeCount       uint16
}

// TypeEntry maps one target type onto one overlay type: a dense array
// of overlay entry indexes starting at EntryOffset in the target's
// entry space, NoEntry marking the holes.
type TypeEntry struct {
	TargetTypeID  uint8
	OverlayTypeID uint8
	EntryOffset   uint16
	Entries       []uint32
}

// Idmap is one parsed or freshly built index file.
type Idmap struct {
	Header Header
	Data   DataHeader
	Types  []TypeEntry
}

// sections flattens the file into its serializable pieces in file
// order. Pack dispatches over the shapes in a single switch.
func (im *Idmap) sections() []any {
	out := make([]any, 0, 2+len(im.Types))
	out = append(out, im.Header, im.Data)
	for _, t := range im.Types {
		out = append(out, t)
	}
	return out
}

// Pack serializes the idmap: the 528-byte header followed immediately
// by the data section.
func (im *Idmap) Pack() ([]byte, error) {
	size := headerSize + dataHeaderSize
	for i := range im.Types {
		size += typeEntryFixed + 4*len(im.Types[i].Entries)
	}
	buf := make([]byte, 0, size)
	for _, s := range im.sections() {
		var err error
		switch v := s.(type) {
		case Header:
			buf, err = appendHeader(buf, v)
		case DataHeader:
			buf = appendDataHeader(buf, v)
		case TypeEntry:
			buf = appendTypeEntry(buf, v)
		}
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendHeader(buf []byte, h Header) ([]byte, error) {
	buf = binary.LittleEndian.AppendUint32(buf, h.Magic)
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = binary.LittleEndian.AppendUint32(buf, h.TargetCRC)
	buf = binary.LittleEndian.AppendUint32(buf, h.OverlayCRC)
	buf, err := appendPath(buf, h.TargetPath)
	if err != nil {
		return nil, err
	}
	return appendPath(buf, h.OverlayPath)
}

func appendPath(buf []byte, path string) ([]byte, error) {
	if len(path) > PathLength {
		return nil, fmt.Errorf("path %q is %d bytes, limit %d: %w",
			path, len(path), PathLength, resources.ErrPathTooLong)
	}
	buf = append(buf, path...)
	return append(buf, make([]byte, PathLength-len(path))...), nil
}

func appendDataHeader(buf []byte, d DataHeader) []byte {
	buf = append(buf, d.TargetPackageID, 0, 0, 0)
	buf = binary.LittleEndian.AppendUint16(buf, d.TypeCount)
	return binary.LittleEndian.AppendUint16(buf, 0)
}

func appendTypeEntry(buf []byte, t TypeEntry) []byte {
	buf = append(buf, t.TargetTypeID, t.OverlayTypeID)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(t.Entries)))
	buf = binary.LittleEndian.AppendUint16(buf, t.EntryOffset)
	buf = binary.LittleEndian.AppendUint16(buf, 0)
	for _, e := range t.Entries {
		buf = binary.LittleEndian.AppendUint32(buf, e)
	}
	return buf
}

// FromBinary parses a serialized idmap. Pack of the result reproduces
// the input byte for byte.
func FromBinary(data []byte) (*Idmap, error) {
	if len(data) < headerSize+dataHeaderSize {
		return nil, fmt.Errorf("idmap of %d bytes too short: %w", len(data), resources.ErrMalformed)
	}

	im := &Idmap{}
	im.Header.Magic = binary.LittleEndian.Uint32(data[0:])
	if im.Header.Magic != Magic {
		return nil, fmt.Errorf("bad idmap magic %#08x: %w", im.Header.Magic, resources.ErrMalformed)
	}
	im.Header.Version = binary.LittleEndian.Uint32(data[4:])
	if im.Header.Version != Version {
		return nil, fmt.Errorf("unsupported idmap version %d: %w", im.Header.Version, resources.ErrMalformed)
	}
	im.Header.TargetCRC = binary.LittleEndian.Uint32(data[8:])
	im.Header.OverlayCRC = binary.LittleEndian.Uint32(data[12:])
	im.Header.TargetPath = trimPath(data[16 : 16+PathLength])
	im.Header.OverlayPath = trimPath(data[16+PathLength : 16+2*PathLength])

	off := headerSize
	im.Data.TargetPackageID = data[off]
	im.Data.TypeCount = binary.LittleEndian.Uint16(data[off+4:])
	off += dataHeaderSize

	for i := 0; i < int(im.Data.TypeCount); i++ {
		if off+typeEntryFixed > len(data) {
			return nil, fmt.Errorf("type entry %d at %#x out of bounds: %w", i, off, resources.ErrMalformed)
		}
		te := TypeEntry{
			TargetTypeID:  data[off],
			OverlayTypeID: data[off+1],
			EntryOffset:   binary.LittleEndian.Uint16(data[off+4:]),
		}
		count := int(binary.LittleEndian.Uint16(data[off+2:]))
		off += typeEntryFixed
		if off+4*count > len(data) {
			return nil, fmt.Errorf("type entry %d overruns file: %w", i, resources.ErrMalformed)
		}
		te.Entries = make([]uint32, count)
		for j := 0; j < count; j++ {
			te.Entries[j] = binary.LittleEndian.Uint32(data[off+4*j:])
		}
		off += 4 * count
		im.Types = append(im.Types, te)
	}
	return im, nil
}

func trimPath(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}

// TargetPackageID returns the package byte the mapping redirects.
func (im *Idmap) TargetPackageID() uint8 { return im.Data.TargetPackageID }

// Lookup translates a target resource id into the overlay's id space.
// ok is false when the idmap does not cover the entry. The package byte
// is carried over so the result stays a well-formed id; only its type
// and entry address the overlay's table.
func (im *Idmap) Lookup(target resources.ResID) (resources.ResID, bool) {
	if target.PackageID() != im.Data.TargetPackageID {
		return 0, false
	}
	for i := range im.Types {
		te := &im.Types[i]
		if te.TargetTypeID != target.TypeIndex() {
			continue
		}
		idx := int(target.EntryIndex()) - int(te.EntryOffset)
		if idx < 0 || idx >= len(te.Entries) || te.Entries[idx] == NoEntry {
			return 0, false
		}
		return resources.MakeResID(target.PackageID(), te.OverlayTypeID, uint16(te.Entries[idx])), true
	}
	return 0, false
}
