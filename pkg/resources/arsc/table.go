package arsc

import (
	"encoding/binary"
	"fmt"

	"github.com/droidres/reskit/pkg/resources"
)

const tableHeaderSize = 12 // chunk + package count

// Table is one parsed resource table: the global value-string pool plus
// its packages.
type Table struct {
	Strings  *StringPool
	Packages []*Package
}

// ParseTable decodes a whole resource table blob.
func ParseTable(data []byte) (*Table, error) {
	h, err := parseChunkHeader(data, 0)
	if err != nil {
		return nil, err
	}
	if h.typ != ChunkTable {
		return nil, fmt.Errorf("not a resource table (type %#04x): %w", h.typ, resources.ErrMalformed)
	}
	if h.headerSize < tableHeaderSize {
		return nil, fmt.Errorf("table header %d too small: %w", h.headerSize, resources.ErrMalformed)
	}
	declared := binary.LittleEndian.Uint32(data[8:12])

	table := &Table{}
	err = forEachChunk(data[h.headerSize:h.size], func(ch chunkHeader, sub []byte) error {
		switch ch.typ {
		case ChunkStringPool:
			if table.Strings == nil {
				pool, err := parseStringPool(sub)
				if err != nil {
					return err
				}
				table.Strings = pool
			}
			return nil
		case ChunkTablePackage:
			// A corrupt header may declare fewer packages than the body
			// carries; stop rather than trust the body.
			if uint32(len(table.Packages)) >= declared {
				return fmt.Errorf("table declares %d packages, found more: %w",
					declared, resources.ErrMalformed)
			}
			pkg, err := parsePackage(sub, ch)
			if err != nil {
				return err
			}
			table.Packages = append(table.Packages, pkg)
			return nil
		default:
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return table, nil
}

// PackageByID returns the package with the given build-time ID.
func (t *Table) PackageByID(id uint8) *Package {
	for _, p := range t.Packages {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// PackageByName returns the package with the given canonical name.
func (t *Table) PackageByName(name string) *Package {
	for _, p := range t.Packages {
		if p.Name == name {
			return p
		}
	}
	return nil
}
