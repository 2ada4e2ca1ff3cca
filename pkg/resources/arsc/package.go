package arsc

import (
	"encoding/binary"
	"fmt"
	"sort"

	"golang.org/x/text/language"

	"github.com/droidres/reskit/pkg/resources"
)

const packageFixedHeader = 284 // chunk + id + name[128] + four pool offsets

// Package is the parsed, read-only view of one package inside a table.
type Package struct {
	// ID is the package ID baked into the binary. Zero means the package
	// is dynamic and receives its real ID at load time.
	ID   uint8
	Name string

	TypeStrings *StringPool
	KeyStrings  *StringPool

	// Libraries lists the build-time package IDs this package declares
	// for references into other shared libraries.
	Libraries []LibraryEntry

	// Overlayables carries the <overlayable> declarations with their
	// policy blocks.
	Overlayables []Overlayable

	specs      map[uint8]*typeSpec
	types      map[uint8][]*TypeChunk
	typeOrder  []uint8
	policyByID map[resources.ResID]uint32
}

// LibraryEntry maps a build-time package ID to the package name that
// provides it.
type LibraryEntry struct {
	PackageID uint8
	Name      string
}

// Overlayable is one <overlayable> declaration.
type Overlayable struct {
	Name     string
	Actor    string
	Policies []PolicySet
}

// PolicySet is one policy block of an overlayable declaration: the
// policy bitmask and the entries it covers.
type PolicySet struct {
	Flags uint32
	IDs   []resources.ResID
}

type typeSpec struct {
	typeID uint8
	flags  []uint32
}

// EntryResult is a findEntry hit: the decoded entry, the config of the
// winning chunk, and the union of axis flags over every chunk that
// defines the entry.
type EntryResult struct {
	Entry     *Entry
	Config    resources.Config
	TypeFlags uint32
}

// IsDynamic reports whether the package needs a runtime-assigned ID.
func (p *Package) IsDynamic() bool {
	return p.ID == 0
}

func parsePackage(chunk []byte, h chunkHeader) (*Package, error) {
	if h.headerSize < packageFixedHeader {
		return nil, fmt.Errorf("package header %d too small: %w", h.headerSize, resources.ErrMalformed)
	}
	p := &Package{
		ID:         uint8(binary.LittleEndian.Uint32(chunk[8:12])),
		Name:       decodeUTF16Fixed(chunk[12 : 12+256]),
		specs:      make(map[uint8]*typeSpec),
		types:      make(map[uint8][]*TypeChunk),
		policyByID: make(map[resources.ResID]uint32),
	}

	typeStrings := binary.LittleEndian.Uint32(chunk[268:272])
	keyStrings := binary.LittleEndian.Uint32(chunk[276:280])
	var err error
	if typeStrings != 0 {
		if typeStrings >= uint32(len(chunk)) {
			return nil, fmt.Errorf("type strings offset out of bounds: %w", resources.ErrMalformed)
		}
		if p.TypeStrings, err = parseStringPoolAt(chunk, typeStrings); err != nil {
			return nil, fmt.Errorf("type strings: %w", err)
		}
	}
	if keyStrings != 0 {
		if keyStrings >= uint32(len(chunk)) {
			return nil, fmt.Errorf("key strings offset out of bounds: %w", resources.ErrMalformed)
		}
		if p.KeyStrings, err = parseStringPoolAt(chunk, keyStrings); err != nil {
			return nil, fmt.Errorf("key strings: %w", err)
		}
	}

	err = forEachChunk(chunk[h.headerSize:h.size], func(ch chunkHeader, sub []byte) error {
		switch ch.typ {
		case ChunkStringPool:
			// already reached through the declared offsets
			return nil
		case ChunkTableTypeSpec:
			return p.addTypeSpec(sub, ch)
		case ChunkTableType:
			return p.addTypeChunk(sub, ch)
		case ChunkTableLibrary:
			return p.addLibrary(sub, ch)
		case ChunkTableOverlayable:
			return p.addOverlayable(sub, ch)
		default:
			// newer chunk kinds pass through unparsed
			return nil
		}
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func parseStringPoolAt(chunk []byte, off uint32) (*StringPool, error) {
	h, err := parseChunkHeader(chunk, int(off))
	if err != nil {
		return nil, err
	}
	return parseStringPool(chunk[off : uint64(off)+uint64(h.size)])
}

func (p *Package) addTypeSpec(sub []byte, ch chunkHeader) error {
	if ch.headerSize < 16 {
		return fmt.Errorf("type spec header %d too small: %w", ch.headerSize, resources.ErrMalformed)
	}
	id := sub[8]
	if id == 0 {
		return fmt.Errorf("type spec with id 0: %w", resources.ErrMalformed)
	}
	count := binary.LittleEndian.Uint32(sub[12:16])
	if uint64(ch.headerSize)+uint64(count)*4 > uint64(len(sub)) {
		return fmt.Errorf("type spec flags out of bounds: %w", resources.ErrMalformed)
	}
	spec := &typeSpec{typeID: id, flags: make([]uint32, count)}
	for i := uint32(0); i < count; i++ {
		spec.flags[i] = binary.LittleEndian.Uint32(sub[uint32(ch.headerSize)+4*i:])
	}
	p.specs[id] = spec
	return nil
}

func (p *Package) addTypeChunk(sub []byte, ch chunkHeader) error {
	t, err := parseTypeChunk(sub, ch)
	if err != nil {
		return err
	}
	if _, seen := p.types[t.TypeID]; !seen {
		p.typeOrder = append(p.typeOrder, t.TypeID)
	}
	p.types[t.TypeID] = append(p.types[t.TypeID], t)
	return nil
}

func (p *Package) addLibrary(sub []byte, ch chunkHeader) error {
	if ch.headerSize < 12 {
		return fmt.Errorf("library header %d too small: %w", ch.headerSize, resources.ErrMalformed)
	}
	count := binary.LittleEndian.Uint32(sub[8:12])
	const entrySize = 4 + 256
	if uint64(ch.headerSize)+uint64(count)*entrySize > uint64(len(sub)) {
		return fmt.Errorf("library entries out of bounds: %w", resources.ErrMalformed)
	}
	for i := uint32(0); i < count; i++ {
		off := uint32(ch.headerSize) + i*entrySize
		p.Libraries = append(p.Libraries, LibraryEntry{
			PackageID: uint8(binary.LittleEndian.Uint32(sub[off:])),
			Name:      decodeUTF16Fixed(sub[off+4 : off+4+256]),
		})
	}
	return nil
}

func (p *Package) addOverlayable(sub []byte, ch chunkHeader) error {
	const nameSize = 512
	if ch.headerSize < ChunkHeaderSize+2*nameSize {
		return fmt.Errorf("overlayable header %d too small: %w", ch.headerSize, resources.ErrMalformed)
	}
	o := Overlayable{
		Name:  decodeUTF16Fixed(sub[8 : 8+nameSize]),
		Actor: decodeUTF16Fixed(sub[8+nameSize : 8+2*nameSize]),
	}
	err := forEachChunk(sub[ch.headerSize:ch.size], func(pc chunkHeader, policy []byte) error {
		if pc.typ != ChunkTableOverlayablePolicy {
			return nil
		}
		if pc.headerSize < 16 {
			return fmt.Errorf("overlayable policy header too small: %w", resources.ErrMalformed)
		}
		flags := binary.LittleEndian.Uint32(policy[8:12])
		count := binary.LittleEndian.Uint32(policy[12:16])
		if uint64(pc.headerSize)+uint64(count)*4 > uint64(len(policy)) {
			return fmt.Errorf("overlayable policy ids out of bounds: %w", resources.ErrMalformed)
		}
		set := PolicySet{Flags: flags, IDs: make([]resources.ResID, count)}
		for i := uint32(0); i < count; i++ {
			id := resources.ResID(binary.LittleEndian.Uint32(policy[uint32(pc.headerSize)+4*i:]))
			set.IDs[i] = id
			p.policyByID[id] |= flags
		}
		o.Policies = append(o.Policies, set)
		return nil
	})
	if err != nil {
		return err
	}
	p.Overlayables = append(p.Overlayables, o)
	return nil
}

// OverlayablePolicy returns the declared policy mask for an entry. ok is
// false when no overlayable declaration names it. The package byte of id
// is ignored so both build-time and runtime IDs resolve.
func (p *Package) OverlayablePolicy(id resources.ResID) (uint32, bool) {
	flags, ok := p.policyByID[id.WithPackage(p.ID)]
	return flags, ok
}

// TypeCount returns the highest type index the package defines.
func (p *Package) TypeCount() int {
	highest := 0
	for id := range p.types {
		if int(id) > highest {
			highest = int(id)
		}
	}
	return highest
}

// EntryIndexes lists every entry index the package defines for a type
// across all of its configs, ascending without duplicates.
func (p *Package) EntryIndexes(typeIndex uint8) []uint16 {
	seen := make(map[uint16]struct{})
	var out []uint16
	for _, t := range p.types[typeIndex] {
		for _, idx := range t.EntryIndexes() {
			if _, ok := seen[idx]; ok {
				continue
			}
			seen[idx] = struct{}{}
			out = append(out, idx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// specFlags returns the build-time axis-variance word for an entry, zero
// when the spec chunk is missing or short.
func (p *Package) specFlags(typeIndex uint8, entryIndex uint16) uint32 {
	spec, ok := p.specs[typeIndex]
	if !ok || int(entryIndex) >= len(spec.flags) {
		return 0
	}
	return spec.flags[entryIndex]
}

// FindEntry locates the best-matching definition of an entry under the
// desired config. Chunks whose config does not match are skipped; among
// the matchers the best config wins. TypeFlags is the union of the spec
// flags and the pinned axes of every chunk defining the entry, matching
// or not, so callers can invalidate conservatively.
func (p *Package) FindEntry(typeIndex uint8, entryIndex uint16, desired *resources.Config) (EntryResult, error) {
	chunks, ok := p.types[typeIndex]
	if !ok {
		return EntryResult{}, resources.ErrNotFound
	}

	var defaultCfg resources.Config
	flags := p.specFlags(typeIndex, entryIndex)

	var (
		best    *TypeChunk
		bestOff uint32
		bestCfg resources.Config
	)
	for _, t := range chunks {
		off, present := t.entryOffset(entryIndex)
		if !present {
			continue
		}
		cfg := t.Config
		flags |= cfg.Diff(&defaultCfg)
		if !cfg.Match(desired) {
			continue
		}
		if best == nil || cfg.IsBetterThan(&bestCfg, desired) {
			best, bestOff, bestCfg = t, off, cfg
		}
	}
	if best == nil {
		return EntryResult{}, resources.ErrNotFound
	}

	entry, err := parseEntry(best.data, int(bestOff))
	if err != nil {
		return EntryResult{}, err
	}
	return EntryResult{Entry: entry, Config: bestCfg, TypeFlags: flags}, nil
}

// EntryName returns the key-pool name of an entry, taken from its first
// definition in any config.
func (p *Package) EntryName(typeIndex uint8, entryIndex uint16) (string, error) {
	for _, t := range p.types[typeIndex] {
		entry, err := t.EntryAt(entryIndex)
		if err != nil {
			continue
		}
		return p.KeyStrings.StringAt(entry.KeyIndex)
	}
	return "", resources.ErrNotFound
}

// TypeName returns the name of a 1-based type index.
func (p *Package) TypeName(typeIndex uint8) (string, error) {
	if typeIndex == 0 {
		return "", resources.ErrNotFound
	}
	return p.TypeStrings.StringAt(uint32(typeIndex) - 1)
}

// FindEntryByName composes the resource ID for type/entry names, zero on
// miss. The returned ID carries the build-time package ID.
func (p *Package) FindEntryByName(typeName, entryName string) resources.ResID {
	ti := p.TypeStrings.IndexOf(typeName)
	if ti < 0 {
		return 0
	}
	typeIndex := uint8(ti + 1)
	for _, t := range p.types[typeIndex] {
		for _, ei := range t.EntryIndexes() {
			entry, err := t.EntryAt(ei)
			if err != nil {
				continue
			}
			name, err := p.KeyStrings.StringAt(entry.KeyIndex)
			if err != nil {
				continue
			}
			if name == entryName {
				return resources.MakeResID(p.ID, typeIndex, ei)
			}
		}
	}
	return 0
}

// CollectConfigurations returns every distinct config the package's type
// chunks carry. Mipmap types can be skipped the way launchers expect.
func (p *Package) CollectConfigurations(skipMipmap bool) []resources.Config {
	seen := make(map[resources.Config]bool)
	var out []resources.Config
	for _, typeID := range p.typeOrder {
		if skipMipmap {
			if name, err := p.TypeName(typeID); err == nil && name == "mipmap" {
				continue
			}
		}
		for _, t := range p.types[typeID] {
			if !seen[t.Config] {
				seen[t.Config] = true
				out = append(out, t.Config)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// CollectLocales returns the BCP-47 tags of every locale-bearing config.
// mergeEquivalent folds deprecated codes into their modern equivalents.
func (p *Package) CollectLocales(mergeEquivalent bool) []string {
	seen := make(map[string]bool)
	var out []string
	for _, cfg := range p.CollectConfigurations(false) {
		loc := cfg.Locale()
		if loc == "" {
			continue
		}
		if mergeEquivalent {
			if tag, err := language.Parse(loc); err == nil {
				loc = tag.String()
			}
		}
		if !seen[loc] {
			seen[loc] = true
			out = append(out, loc)
		}
	}
	sort.Strings(out)
	return out
}
