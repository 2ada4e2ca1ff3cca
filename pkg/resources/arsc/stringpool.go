package arsc

import (
	"encoding/binary"
	"fmt"
	"unicode/utf16"

	"github.com/droidres/reskit/pkg/resources"
)

// String pool header flags.
const (
	SortedFlag uint32 = 1 << 0
	UTF8Flag   uint32 = 1 << 8
)

const stringPoolHeaderSize = 28

// StringPool holds the decoded strings of one pool chunk. Styles are
// skipped; nothing in resolution consumes them.
type StringPool struct {
	strings []string
	sorted  bool
}

// Len returns the number of strings in the pool.
func (p *StringPool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.strings)
}

// StringAt returns the string at the given pool index.
func (p *StringPool) StringAt(idx uint32) (string, error) {
	if p == nil || idx >= uint32(len(p.strings)) {
		return "", fmt.Errorf("string pool index %d of %d: %w", idx, p.Len(), resources.ErrMalformed)
	}
	return p.strings[idx], nil
}

// IndexOf returns the pool index of s, or -1 when absent.
func (p *StringPool) IndexOf(s string) int {
	if p == nil {
		return -1
	}
	for i, v := range p.strings {
		if v == s {
			return i
		}
	}
	return -1
}

// parseStringPool decodes a whole string pool chunk. Offsets are
// validated against the chunk bounds; both UTF-8 and UTF-16 payloads are
// supported.
func parseStringPool(chunk []byte) (*StringPool, error) {
	h, err := parseChunkHeader(chunk, 0)
	if err != nil {
		return nil, err
	}
	if h.typ != ChunkStringPool || h.headerSize < stringPoolHeaderSize {
		return nil, fmt.Errorf("not a string pool chunk (type %#04x): %w", h.typ, resources.ErrMalformed)
	}

	stringCount := binary.LittleEndian.Uint32(chunk[8:12])
	flags := binary.LittleEndian.Uint32(chunk[16:20])
	stringsStart := binary.LittleEndian.Uint32(chunk[20:24])

	offsetsEnd := uint64(h.headerSize) + uint64(stringCount)*4
	if offsetsEnd > uint64(len(chunk)) || uint64(stringsStart) > uint64(len(chunk)) {
		return nil, fmt.Errorf("string pool offsets out of bounds: %w", resources.ErrMalformed)
	}

	utf8 := flags&UTF8Flag != 0
	pool := &StringPool{
		strings: make([]string, stringCount),
		sorted:  flags&SortedFlag != 0,
	}
	for i := uint32(0); i < stringCount; i++ {
		rel := binary.LittleEndian.Uint32(chunk[uint32(h.headerSize)+4*i:])
		off := uint64(stringsStart) + uint64(rel)
		if off >= uint64(len(chunk)) {
			return nil, fmt.Errorf("string %d offset out of bounds: %w", i, resources.ErrMalformed)
		}
		var s string
		if utf8 {
			s, err = decodeUTF8String(chunk, int(off))
		} else {
			s, err = decodeUTF16String(chunk, int(off))
		}
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
		pool.strings[i] = s
	}
	return pool, nil
}

// UTF-8 entries carry two lengths, each one or two bytes: the UTF-16
// code-unit count (unused here) then the byte count.
func decodeUTF8String(chunk []byte, off int) (string, error) {
	_, off, err := readUTF8Length(chunk, off)
	if err != nil {
		return "", err
	}
	n, off, err := readUTF8Length(chunk, off)
	if err != nil {
		return "", err
	}
	if off+n > len(chunk) {
		return "", resources.ErrMalformed
	}
	return string(chunk[off : off+n]), nil
}

func readUTF8Length(chunk []byte, off int) (int, int, error) {
	if off >= len(chunk) {
		return 0, 0, resources.ErrMalformed
	}
	first := chunk[off]
	if first&0x80 == 0 {
		return int(first), off + 1, nil
	}
	if off+1 >= len(chunk) {
		return 0, 0, resources.ErrMalformed
	}
	return int(first&0x7f)<<8 | int(chunk[off+1]), off + 2, nil
}

// UTF-16 entries carry a code-unit count in one or two uint16s followed
// by little-endian code units.
func decodeUTF16String(chunk []byte, off int) (string, error) {
	n, off, err := readUTF16Length(chunk, off)
	if err != nil {
		return "", err
	}
	if off+2*n > len(chunk) {
		return "", resources.ErrMalformed
	}
	units := make([]uint16, n)
	for i := 0; i < n; i++ {
		units[i] = binary.LittleEndian.Uint16(chunk[off+2*i:])
	}
	return string(utf16.Decode(units)), nil
}

func readUTF16Length(chunk []byte, off int) (int, int, error) {
	if off+2 > len(chunk) {
		return 0, 0, resources.ErrMalformed
	}
	first := binary.LittleEndian.Uint16(chunk[off:])
	if first&0x8000 == 0 {
		return int(first), off + 2, nil
	}
	if off+4 > len(chunk) {
		return 0, 0, resources.ErrMalformed
	}
	second := binary.LittleEndian.Uint16(chunk[off+2:])
	return int(first&0x7fff)<<16 | int(second), off + 4, nil
}

// decodeUTF16Fixed reads a NUL-terminated UTF-16 string out of a
// fixed-size field (package and overlayable names).
func decodeUTF16Fixed(field []byte) string {
	units := make([]uint16, 0, len(field)/2)
	for i := 0; i+1 < len(field); i += 2 {
		u := binary.LittleEndian.Uint16(field[i:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units))
}
