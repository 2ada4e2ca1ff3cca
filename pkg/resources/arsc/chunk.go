// Package arsc decodes compiled resource tables: the chunked binary
// container, its string pools, and the per-package type data. Everything
// is parsed out of a single byte slice; no chunk is trusted until its
// declared bounds have been checked against the enclosing region.
package arsc

import (
	"encoding/binary"
	"fmt"

	"github.com/droidres/reskit/pkg/resources"
)

// Chunk type tags.
const (
	ChunkNull                   uint16 = 0x0000
	ChunkStringPool             uint16 = 0x0001
	ChunkTable                  uint16 = 0x0002
	ChunkXML                    uint16 = 0x0003
	ChunkTablePackage           uint16 = 0x0200
	ChunkTableType              uint16 = 0x0201
	ChunkTableTypeSpec          uint16 = 0x0202
	ChunkTableLibrary           uint16 = 0x0203
	ChunkTableOverlayable       uint16 = 0x0204
	ChunkTableOverlayablePolicy uint16 = 0x0205
	ChunkTableStagedAlias       uint16 = 0x0206
)

// ChunkHeaderSize is the fixed prefix every chunk starts with.
const ChunkHeaderSize = 8

type chunkHeader struct {
	typ        uint16
	headerSize uint16
	size       uint32
}

// parseChunkHeader reads and validates the chunk at off. The declared
// size must lie fully inside data and the header inside the chunk.
func parseChunkHeader(data []byte, off int) (chunkHeader, error) {
	if off < 0 || off+ChunkHeaderSize > len(data) {
		return chunkHeader{}, fmt.Errorf("chunk header at %#x out of bounds: %w", off, resources.ErrMalformed)
	}
	h := chunkHeader{
		typ:        binary.LittleEndian.Uint16(data[off : off+2]),
		headerSize: binary.LittleEndian.Uint16(data[off+2 : off+4]),
		size:       binary.LittleEndian.Uint32(data[off+4 : off+8]),
	}
	if h.headerSize < ChunkHeaderSize || uint32(h.headerSize) > h.size {
		return chunkHeader{}, fmt.Errorf("chunk at %#x: header size %d vs size %d: %w",
			off, h.headerSize, h.size, resources.ErrMalformed)
	}
	if uint64(off)+uint64(h.size) > uint64(len(data)) {
		return chunkHeader{}, fmt.Errorf("chunk at %#x: size %d exceeds region: %w",
			off, h.size, resources.ErrMalformed)
	}
	return h, nil
}

// forEachChunk walks the consecutive chunks in region and hands each one,
// bounds-checked, to fn.
func forEachChunk(region []byte, fn func(h chunkHeader, chunk []byte) error) error {
	off := 0
	for off < len(region) {
		h, err := parseChunkHeader(region, off)
		if err != nil {
			return err
		}
		if err := fn(h, region[off:off+int(h.size)]); err != nil {
			return err
		}
		off += int(h.size)
	}
	return nil
}
