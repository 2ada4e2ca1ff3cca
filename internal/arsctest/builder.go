// Package arsctest builds compiled resource tables for tests. It is an
// independent writer for the chunk format the arsc package reads, so
// encode and decode bugs cannot cancel each other out.
package arsctest

import (
	"encoding/binary"
	"sort"
	"unicode/utf16"

	"github.com/droidres/reskit/pkg/resources"
)

// Chunk tags and flags, writer side.
const (
	resStringPool         uint16 = 0x0001
	resTable              uint16 = 0x0002
	resTablePackage       uint16 = 0x0200
	resTableType          uint16 = 0x0201
	resTableTypeSpec      uint16 = 0x0202
	resTableLibrary       uint16 = 0x0203
	resTableOverlayable   uint16 = 0x0204
	resTableOverlayPolicy uint16 = 0x0205

	flagComplex uint16 = 0x0001
	flagSparse  uint8  = 0x01
	utf8Flag    uint32 = 1 << 8
	noEntry     uint32 = 0xffffffff
)

// BagPair is one key/value of a bag under construction.
type BagPair struct {
	Key   resources.ResID
	Value resources.Value
}

// PolicyBlock is one policy set of an overlayable declaration.
type PolicyBlock struct {
	Flags uint32
	IDs   []resources.ResID
}

// Builder assembles a whole resource table.
type Builder struct {
	values poolBuilder
	pkgs   []*PackageBuilder
}

// NewBuilder returns an empty table builder. The global value pool is
// written UTF-8, type and key pools UTF-16, the way aapt2 lays them out.
func NewBuilder() *Builder {
	b := &Builder{}
	b.values.utf8 = true
	return b
}

// PoolString interns s in the global value pool and returns its index,
// for use as the Data of a string-typed Value.
func (b *Builder) PoolString(s string) uint32 {
	return b.values.add(s)
}

// AddPackage appends a package with the given build-time ID. ID zero
// builds a dynamic (shared library) package.
func (b *Builder) AddPackage(id uint8, name string) *PackageBuilder {
	p := &PackageBuilder{table: b, id: id, name: name}
	b.pkgs = append(b.pkgs, p)
	return p
}

// Build serializes the table.
func (b *Builder) Build() []byte {
	var body []byte
	body = append(body, b.values.build()...)
	for _, p := range b.pkgs {
		body = append(body, p.build()...)
	}

	buf := make([]byte, 12, 12+len(body))
	binary.LittleEndian.PutUint16(buf[0:2], resTable)
	binary.LittleEndian.PutUint16(buf[2:4], 12)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(12+len(body)))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(b.pkgs)))
	return append(buf, body...)
}

// PackageBuilder assembles one package chunk.
type PackageBuilder struct {
	table *Builder
	id    uint8
	name  string

	typeNames poolBuilder
	keyNames  poolBuilder

	types        []*typeBuilder
	libraries    []libraryDecl
	overlayables []overlayableDecl
}

type libraryDecl struct {
	id   uint8
	name string
}

type overlayableDecl struct {
	name     string
	actor    string
	policies []PolicyBlock
}

type typeBuilder struct {
	index      uint8
	entryIndex map[string]uint16
	entryCount uint16
	specFlags  map[uint16]uint32
	chunks     []*chunkBuilder
}

type chunkBuilder struct {
	key     string
	cfg     resources.Config
	sparse  bool
	entries map[uint16]*entryDecl
}

type entryDecl struct {
	flags    uint16
	keyIndex uint32
	value    resources.Value
	bag      bool
	parent   resources.ResID
	pairs    []BagPair
}

func (p *PackageBuilder) typeFor(name string) *typeBuilder {
	// p.types is appended in lockstep with the type-name pool, so the
	// pool index doubles as the slice index.
	if idx, ok := p.typeNames.index[name]; ok {
		return p.types[idx]
	}
	idx := p.typeNames.add(name)
	t := &typeBuilder{
		index:      uint8(idx + 1),
		entryIndex: make(map[string]uint16),
		specFlags:  make(map[uint16]uint32),
	}
	p.types = append(p.types, t)
	return t
}

func (p *PackageBuilder) chunkFor(t *typeBuilder, cfg resources.Config) *chunkBuilder {
	key := cfg.String()
	for _, c := range t.chunks {
		if c.key == key {
			return c
		}
	}
	c := &chunkBuilder{key: key, cfg: cfg, entries: make(map[uint16]*entryDecl)}
	t.chunks = append(t.chunks, c)
	return c
}

func (p *PackageBuilder) entryFor(t *typeBuilder, name string) uint16 {
	if idx, ok := t.entryIndex[name]; ok {
		return idx
	}
	p.keyNames.add(name)
	idx := t.entryCount
	t.entryIndex[name] = idx
	t.entryCount++
	return idx
}

// ReserveEntry assigns an entry index for name without defining it in
// any config, leaving a hole in dense offset tables.
func (p *PackageBuilder) ReserveEntry(typeName, entryName string) uint16 {
	return p.entryFor(p.typeFor(typeName), entryName)
}

// AddValue defines a simple entry under cfg.
func (p *PackageBuilder) AddValue(typeName string, cfg resources.Config, entryName string, v resources.Value) {
	t := p.typeFor(typeName)
	idx := p.entryFor(t, entryName)
	c := p.chunkFor(t, cfg)
	c.entries[idx] = &entryDecl{keyIndex: p.keyNames.add(entryName), value: v}
}

// AddString defines a simple string entry, interning s in the value pool.
func (p *PackageBuilder) AddString(typeName string, cfg resources.Config, entryName, s string) {
	p.AddValue(typeName, cfg, entryName, resources.Value{
		Size:     resources.ValueSize,
		DataType: resources.TypeString,
		Data:     p.table.PoolString(s),
	})
}

// AddReference defines a simple entry referencing another resource.
func (p *PackageBuilder) AddReference(typeName string, cfg resources.Config, entryName string, target resources.ResID) {
	p.AddValue(typeName, cfg, entryName, resources.Value{
		Size:     resources.ValueSize,
		DataType: resources.TypeReference,
		Data:     uint32(target),
	})
}

// AddBag defines a complex entry under cfg. Pairs are sorted by key
// before writing; the reader requires ascending keys.
func (p *PackageBuilder) AddBag(typeName string, cfg resources.Config, entryName string, parent resources.ResID, pairs []BagPair) {
	t := p.typeFor(typeName)
	idx := p.entryFor(t, entryName)
	c := p.chunkFor(t, cfg)
	sorted := append([]BagPair(nil), pairs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })
	c.entries[idx] = &entryDecl{
		keyIndex: p.keyNames.add(entryName),
		bag:      true,
		parent:   parent,
		pairs:    sorted,
	}
}

// SetSpecFlags records the axis-variance word the type spec carries for
// an entry.
func (p *PackageBuilder) SetSpecFlags(typeName, entryName string, flags uint32) {
	t := p.typeFor(typeName)
	idx := p.entryFor(t, entryName)
	t.specFlags[idx] = flags
}

// MarkSparse makes the chunk for cfg use the sparse offset encoding.
func (p *PackageBuilder) MarkSparse(typeName string, cfg resources.Config) {
	p.chunkFor(p.typeFor(typeName), cfg).sparse = true
}

// AddLibrary declares a build-time package ID to package name mapping.
func (p *PackageBuilder) AddLibrary(id uint8, name string) {
	p.libraries = append(p.libraries, libraryDecl{id: id, name: name})
}

// AddOverlayable declares an overlayable block with its policies.
func (p *PackageBuilder) AddOverlayable(name, actor string, policies []PolicyBlock) {
	p.overlayables = append(p.overlayables, overlayableDecl{name: name, actor: actor, policies: policies})
}

// ResID composes the build-time resource ID for an already-added entry,
// zero when the names are unknown.
func (p *PackageBuilder) ResID(typeName, entryName string) resources.ResID {
	idx, ok := p.typeNames.index[typeName]
	if !ok {
		return 0
	}
	t := p.types[idx]
	entry, ok := t.entryIndex[entryName]
	if !ok {
		return 0
	}
	return resources.MakeResID(p.id, t.index, entry)
}

func (p *PackageBuilder) build() []byte {
	typePool := p.typeNames.build()
	keyPool := p.keyNames.build()

	var body []byte
	for _, t := range p.types {
		body = append(body, buildTypeSpec(t)...)
		for _, c := range t.chunks {
			body = append(body, buildTypeChunk(t, c)...)
		}
	}
	if len(p.libraries) > 0 {
		body = append(body, buildLibrary(p.libraries)...)
	}
	for _, o := range p.overlayables {
		body = append(body, buildOverlayable(o)...)
	}

	const headerSize = 284
	size := headerSize + len(typePool) + len(keyPool) + len(body)
	buf := make([]byte, headerSize, size)
	binary.LittleEndian.PutUint16(buf[0:2], resTablePackage)
	binary.LittleEndian.PutUint16(buf[2:4], headerSize)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(size))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(p.id))
	copy(buf[12:268], utf16Fixed(p.name, 128))
	binary.LittleEndian.PutUint32(buf[268:272], headerSize)
	binary.LittleEndian.PutUint32(buf[272:276], uint32(p.typeNames.count()))
	binary.LittleEndian.PutUint32(buf[276:280], uint32(headerSize+len(typePool)))
	binary.LittleEndian.PutUint32(buf[280:284], uint32(p.keyNames.count()))
	buf = append(buf, typePool...)
	buf = append(buf, keyPool...)
	return append(buf, body...)
}

func buildTypeSpec(t *typeBuilder) []byte {
	const headerSize = 16
	size := headerSize + 4*int(t.entryCount)
	buf := make([]byte, size)
	binary.LittleEndian.PutUint16(buf[0:2], resTableTypeSpec)
	binary.LittleEndian.PutUint16(buf[2:4], headerSize)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(size))
	buf[8] = t.index
	binary.LittleEndian.PutUint32(buf[12:16], uint32(t.entryCount))
	for idx, flags := range t.specFlags {
		binary.LittleEndian.PutUint32(buf[headerSize+4*int(idx):], flags)
	}
	return buf
}

func buildTypeChunk(t *typeBuilder, c *chunkBuilder) []byte {
	cfgBytes := c.cfg.Pack()
	headerSize := 20 + len(cfgBytes)

	indexes := make([]uint16, 0, len(c.entries))
	for idx := range c.entries {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	var payload []byte
	offsets := make(map[uint16]uint32, len(indexes))
	for _, idx := range indexes {
		offsets[idx] = uint32(len(payload))
		payload = append(payload, encodeEntry(c.entries[idx])...)
	}

	tableCount := int(t.entryCount)
	if c.sparse {
		tableCount = len(indexes)
	}
	entriesStart := headerSize + 4*tableCount
	size := entriesStart + len(payload)

	buf := make([]byte, entriesStart, size)
	binary.LittleEndian.PutUint16(buf[0:2], resTableType)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(headerSize))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(size))
	buf[8] = t.index
	if c.sparse {
		buf[9] = flagSparse
	}
	binary.LittleEndian.PutUint32(buf[12:16], uint32(tableCount))
	binary.LittleEndian.PutUint32(buf[16:20], uint32(entriesStart))
	copy(buf[20:], cfgBytes)

	if c.sparse {
		for i, idx := range indexes {
			binary.LittleEndian.PutUint16(buf[headerSize+4*i:], idx)
			binary.LittleEndian.PutUint16(buf[headerSize+4*i+2:], uint16(offsets[idx]/4))
		}
	} else {
		for i := 0; i < tableCount; i++ {
			off := noEntry
			if v, ok := offsets[uint16(i)]; ok {
				off = v
			}
			binary.LittleEndian.PutUint32(buf[headerSize+4*i:], off)
		}
	}
	return append(buf, payload...)
}

func encodeEntry(e *entryDecl) []byte {
	if !e.bag {
		buf := make([]byte, 16)
		binary.LittleEndian.PutUint16(buf[0:2], 8)
		binary.LittleEndian.PutUint16(buf[2:4], e.flags)
		binary.LittleEndian.PutUint32(buf[4:8], e.keyIndex)
		copy(buf[8:16], e.value.Pack())
		return buf
	}
	buf := make([]byte, 16+12*len(e.pairs))
	binary.LittleEndian.PutUint16(buf[0:2], 16)
	binary.LittleEndian.PutUint16(buf[2:4], e.flags|flagComplex)
	binary.LittleEndian.PutUint32(buf[4:8], e.keyIndex)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(e.parent))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(e.pairs)))
	for i, pair := range e.pairs {
		off := 16 + 12*i
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(pair.Key))
		copy(buf[off+4:off+12], pair.Value.Pack())
	}
	return buf
}

func buildLibrary(libs []libraryDecl) []byte {
	const headerSize = 12
	const entrySize = 4 + 256
	size := headerSize + entrySize*len(libs)
	buf := make([]byte, size)
	binary.LittleEndian.PutUint16(buf[0:2], resTableLibrary)
	binary.LittleEndian.PutUint16(buf[2:4], headerSize)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(size))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(libs)))
	for i, lib := range libs {
		off := headerSize + entrySize*i
		binary.LittleEndian.PutUint32(buf[off:], uint32(lib.id))
		copy(buf[off+4:off+4+256], utf16Fixed(lib.name, 128))
	}
	return buf
}

func buildOverlayable(o overlayableDecl) []byte {
	const headerSize = 8 + 512 + 512

	var body []byte
	for _, pol := range o.policies {
		pbuf := make([]byte, 16+4*len(pol.IDs))
		binary.LittleEndian.PutUint16(pbuf[0:2], resTableOverlayPolicy)
		binary.LittleEndian.PutUint16(pbuf[2:4], 16)
		binary.LittleEndian.PutUint32(pbuf[4:8], uint32(len(pbuf)))
		binary.LittleEndian.PutUint32(pbuf[8:12], pol.Flags)
		binary.LittleEndian.PutUint32(pbuf[12:16], uint32(len(pol.IDs)))
		for i, id := range pol.IDs {
			binary.LittleEndian.PutUint32(pbuf[16+4*i:], uint32(id))
		}
		body = append(body, pbuf...)
	}

	buf := make([]byte, headerSize, headerSize+len(body))
	binary.LittleEndian.PutUint16(buf[0:2], resTableOverlayable)
	binary.LittleEndian.PutUint16(buf[2:4], headerSize)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize+len(body)))
	copy(buf[8:8+512], utf16Fixed(o.name, 256))
	copy(buf[8+512:8+1024], utf16Fixed(o.actor, 256))
	return append(buf, body...)
}

// poolBuilder accumulates a deduplicated string pool.
type poolBuilder struct {
	utf8    bool
	strings []string
	index   map[string]uint32
}

func (p *poolBuilder) add(s string) uint32 {
	if idx, ok := p.index[s]; ok {
		return idx
	}
	if p.index == nil {
		p.index = make(map[string]uint32)
	}
	idx := uint32(len(p.strings))
	p.strings = append(p.strings, s)
	p.index[s] = idx
	return idx
}

func (p *poolBuilder) count() int {
	return len(p.strings)
}

func (p *poolBuilder) build() []byte {
	const headerSize = 28
	var data []byte
	offsets := make([]uint32, len(p.strings))
	for i, s := range p.strings {
		offsets[i] = uint32(len(data))
		if p.utf8 {
			data = append(data, encodeUTF8Entry(s)...)
		} else {
			data = append(data, encodeUTF16Entry(s)...)
		}
	}
	for len(data)%4 != 0 {
		data = append(data, 0)
	}

	stringsStart := headerSize + 4*len(p.strings)
	size := stringsStart + len(data)
	buf := make([]byte, stringsStart, size)
	binary.LittleEndian.PutUint16(buf[0:2], resStringPool)
	binary.LittleEndian.PutUint16(buf[2:4], headerSize)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(size))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(p.strings)))
	var flags uint32
	if p.utf8 {
		flags |= utf8Flag
	}
	binary.LittleEndian.PutUint32(buf[16:20], flags)
	binary.LittleEndian.PutUint32(buf[20:24], uint32(stringsStart))
	for i, off := range offsets {
		binary.LittleEndian.PutUint32(buf[headerSize+4*i:], off)
	}
	return append(buf, data...)
}

func encodeUTF8Entry(s string) []byte {
	units := len(utf16.Encode([]rune(s)))
	var buf []byte
	buf = appendUTF8Length(buf, units)
	buf = appendUTF8Length(buf, len(s))
	buf = append(buf, s...)
	return append(buf, 0)
}

func appendUTF8Length(buf []byte, n int) []byte {
	if n < 0x80 {
		return append(buf, byte(n))
	}
	return append(buf, byte(0x80|n>>8), byte(n))
}

func encodeUTF16Entry(s string) []byte {
	units := utf16.Encode([]rune(s))
	var buf []byte
	if len(units) < 0x8000 {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(units)))
	} else {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(0x8000|len(units)>>16))
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(units)))
	}
	for _, u := range units {
		buf = binary.LittleEndian.AppendUint16(buf, u)
	}
	return binary.LittleEndian.AppendUint16(buf, 0)
}

func utf16Fixed(s string, maxUnits int) []byte {
	out := make([]byte, 2*maxUnits)
	units := utf16.Encode([]rune(s))
	if len(units) > maxUnits-1 {
		units = units[:maxUnits-1]
	}
	for i, u := range units {
		binary.LittleEndian.PutUint16(out[2*i:], u)
	}
	return out
}
