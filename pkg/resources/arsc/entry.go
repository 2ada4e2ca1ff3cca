package arsc

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/droidres/reskit/pkg/resources"
)

// Entry flags.
const (
	FlagComplex uint16 = 0x0001
	FlagPublic  uint16 = 0x0002
	FlagWeak    uint16 = 0x0004
)

// Type chunk flags.
const FlagSparse uint8 = 0x01

// NoEntry is the dense offset-table sentinel for an absent entry.
const NoEntry uint32 = 0xffffffff

const (
	typeChunkFixedHeader = 20 // before the trailing config record
	entryHeaderSize      = 8
	mapEntryHeaderSize   = 16
	mapValueSize         = 12 // key + value per bag pair
)

// Entry is one decoded resource entry: either a simple inline value or a
// bag (parent reference plus sorted key/value pairs).
type Entry struct {
	Size     uint16
	Flags    uint16
	KeyIndex uint32

	// Simple entries only.
	Value resources.Value

	// Bag entries only.
	ParentID resources.ResID
	Maps     []MapEntry
}

// MapEntry is one key/value pair of a bag.
type MapEntry struct {
	Key   resources.ResID
	Value resources.Value
}

// IsComplex reports whether the entry is a bag.
func (e *Entry) IsComplex() bool {
	return e.Flags&FlagComplex != 0
}

// TypeChunk is one block of entries sharing a single configuration.
type TypeChunk struct {
	TypeID     uint8
	Sparse     bool
	EntryCount uint32
	Config     resources.Config

	data         []byte
	headerSize   uint16
	entriesStart uint32
}

func parseTypeChunk(chunk []byte, h chunkHeader) (*TypeChunk, error) {
	if h.headerSize < typeChunkFixedHeader+4 {
		return nil, fmt.Errorf("type chunk header %d too small: %w", h.headerSize, resources.ErrMalformed)
	}
	t := &TypeChunk{
		TypeID:     chunk[8],
		Sparse:     chunk[9]&FlagSparse != 0,
		EntryCount: binary.LittleEndian.Uint32(chunk[12:16]),
		data:       chunk,
		headerSize: h.headerSize,
	}
	t.entriesStart = binary.LittleEndian.Uint32(chunk[16:20])
	if t.TypeID == 0 {
		return nil, fmt.Errorf("type chunk with id 0: %w", resources.ErrMalformed)
	}

	cfg, _, err := resources.ParseConfig(chunk[typeChunkFixedHeader:h.headerSize])
	if err != nil {
		return nil, fmt.Errorf("type chunk config: %w", err)
	}
	t.Config = cfg

	offsetsEnd := uint64(h.headerSize) + uint64(t.EntryCount)*4
	if offsetsEnd > uint64(len(chunk)) {
		return nil, fmt.Errorf("type chunk offset table out of bounds: %w", resources.ErrMalformed)
	}
	if t.entriesStart > uint32(len(chunk)) || t.entriesStart < uint32(h.headerSize) {
		return nil, fmt.Errorf("type chunk entries start %d out of bounds: %w", t.entriesStart, resources.ErrMalformed)
	}

	if t.Sparse {
		// sparse tables must be sorted for the binary search
		prev := -1
		for i := uint32(0); i < t.EntryCount; i++ {
			idx := int(binary.LittleEndian.Uint16(chunk[uint32(h.headerSize)+4*i:]))
			if idx <= prev {
				return nil, fmt.Errorf("sparse entries not ascending at %d: %w", i, resources.ErrMalformed)
			}
			prev = idx
		}
	}
	return t, nil
}

// entryOffset resolves an entry index to its payload offset within the
// chunk, reporting absence via ok.
func (t *TypeChunk) entryOffset(entryIndex uint16) (uint32, bool) {
	if t.Sparse {
		n := int(t.EntryCount)
		i := sort.Search(n, func(i int) bool {
			return binary.LittleEndian.Uint16(t.data[int(t.headerSize)+4*i:]) >= entryIndex
		})
		if i >= n || binary.LittleEndian.Uint16(t.data[int(t.headerSize)+4*i:]) != entryIndex {
			return 0, false
		}
		off := binary.LittleEndian.Uint16(t.data[int(t.headerSize)+4*i+2:])
		return t.entriesStart + uint32(off)*4, true
	}
	if uint32(entryIndex) >= t.EntryCount {
		return 0, false
	}
	rel := binary.LittleEndian.Uint32(t.data[int(t.headerSize)+4*int(entryIndex):])
	if rel == NoEntry {
		return 0, false
	}
	return t.entriesStart + rel, true
}

// EntryAt decodes the entry at entryIndex, or resources.ErrNotFound when
// the chunk does not define it.
func (t *TypeChunk) EntryAt(entryIndex uint16) (*Entry, error) {
	off, ok := t.entryOffset(entryIndex)
	if !ok {
		return nil, resources.ErrNotFound
	}
	return parseEntry(t.data, int(off))
}

// HasEntry reports whether the chunk defines the entry without decoding it.
func (t *TypeChunk) HasEntry(entryIndex uint16) bool {
	_, ok := t.entryOffset(entryIndex)
	return ok
}

// EntryIndexes lists every entry index the chunk defines, ascending.
func (t *TypeChunk) EntryIndexes() []uint16 {
	var out []uint16
	if t.Sparse {
		for i := uint32(0); i < t.EntryCount; i++ {
			out = append(out, binary.LittleEndian.Uint16(t.data[uint32(t.headerSize)+4*i:]))
		}
		return out
	}
	for i := uint32(0); i < t.EntryCount; i++ {
		if binary.LittleEndian.Uint32(t.data[uint32(t.headerSize)+4*i:]) != NoEntry {
			out = append(out, uint16(i))
		}
	}
	return out
}

func parseEntry(chunk []byte, off int) (*Entry, error) {
	if off < 0 || off+entryHeaderSize > len(chunk) {
		return nil, fmt.Errorf("entry at %#x out of bounds: %w", off, resources.ErrMalformed)
	}
	e := &Entry{
		Size:     binary.LittleEndian.Uint16(chunk[off : off+2]),
		Flags:    binary.LittleEndian.Uint16(chunk[off+2 : off+4]),
		KeyIndex: binary.LittleEndian.Uint32(chunk[off+4 : off+8]),
	}
	if e.Size < entryHeaderSize {
		return nil, fmt.Errorf("entry size %d under header size: %w", e.Size, resources.ErrMalformed)
	}

	if !e.IsComplex() {
		v, err := parseValueAt(chunk, off+int(e.Size))
		if err != nil {
			return nil, err
		}
		e.Value = v
		return e, nil
	}

	if e.Size < mapEntryHeaderSize || off+mapEntryHeaderSize > len(chunk) {
		return nil, fmt.Errorf("bag entry size %d under map header: %w", e.Size, resources.ErrMalformed)
	}
	e.ParentID = resources.ResID(binary.LittleEndian.Uint32(chunk[off+8 : off+12]))
	count := binary.LittleEndian.Uint32(chunk[off+12 : off+16])

	mapsOff := off + int(e.Size)
	if uint64(mapsOff)+uint64(count)*mapValueSize > uint64(len(chunk)) {
		return nil, fmt.Errorf("bag with %d pairs out of bounds: %w", count, resources.ErrMalformed)
	}
	e.Maps = make([]MapEntry, count)
	for i := uint32(0); i < count; i++ {
		p := mapsOff + int(i)*mapValueSize
		key := resources.ResID(binary.LittleEndian.Uint32(chunk[p : p+4]))
		v, err := parseValueAt(chunk, p+4)
		if err != nil {
			return nil, err
		}
		if i > 0 && key <= e.Maps[i-1].Key {
			return nil, fmt.Errorf("bag keys not strictly ascending at %d: %w", i, resources.ErrMalformed)
		}
		e.Maps[i] = MapEntry{Key: key, Value: v}
	}
	return e, nil
}

func parseValueAt(chunk []byte, off int) (resources.Value, error) {
	if off < 0 || off+resources.ValueSize > len(chunk) {
		return resources.Value{}, fmt.Errorf("value at %#x out of bounds: %w", off, resources.ErrMalformed)
	}
	return resources.ParseValue(chunk[off : off+resources.ValueSize])
}
