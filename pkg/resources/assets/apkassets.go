// Package assets is the runtime half of resource resolution: a stack of
// loaded archives, package groups with dynamic reference rewriting, a
// cache of flattened bags, and themes layered on top.
package assets

import (
	"archive/zip"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"

	"github.com/droidres/reskit/pkg/resources"
	"github.com/droidres/reskit/pkg/resources/arsc"
)

// TableEntryName is the archive member holding the compiled resource table.
const TableEntryName = "resources.arsc"

// Cookie says which archive in a manager's stack supplied a value. It is
// the index into the stack handed to SetApkAssets.
type Cookie int32

// InvalidCookie marks a value that did not come from any archive.
const InvalidCookie Cookie = -1

// OverlayMapping redirects target resource ids into an overlay's own id
// space. A loaded idmap satisfies this.
type OverlayMapping interface {
	// TargetPackageID is the package byte the mapping applies to.
	TargetPackageID() uint8
	// Lookup translates a target id. ok is false when the target entry
	// is not overlaid.
	Lookup(target resources.ResID) (overlay resources.ResID, ok bool)
}

// ApkAssets is one loaded archive: the parsed resource table, where it
// came from, and the checksum of the raw table bytes.
type ApkAssets struct {
	path    string
	table   *arsc.Table
	crc     uint32
	overlay OverlayMapping
}

// LoadApk opens an archive and parses its resource table.
func LoadApk(path string) (*ApkAssets, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open apk %s", path)
	}
	defer r.Close()

	for _, f := range r.File {
		if f.Name != TableEntryName {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "open %s in %s", TableEntryName, path)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "read %s in %s", TableEntryName, path)
		}
		return LoadTable(data, path)
	}
	return nil, errors.Errorf("no %s in %s", TableEntryName, path)
}

// LoadTable parses a raw resource table. path is recorded for reporting
// and may be empty.
func LoadTable(data []byte, path string) (*ApkAssets, error) {
	table, err := arsc.ParseTable(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse resource table of %s", path)
	}
	return &ApkAssets{
		path:  path,
		table: table,
		crc:   crc32.ChecksumIEEE(data),
	}, nil
}

// WithIdmap attaches an overlay mapping, turning the archive into a
// loaded overlay. The receiver is returned for chaining.
func (a *ApkAssets) WithIdmap(m OverlayMapping) *ApkAssets {
	a.overlay = m
	return a
}

// Path returns the origin path of the archive.
func (a *ApkAssets) Path() string { return a.path }

// Table returns the parsed resource table.
func (a *ApkAssets) Table() *arsc.Table { return a.table }

// TableCRC returns the IEEE CRC-32 of the raw table bytes. The idmap
// freshness check is built on this checksum.
func (a *ApkAssets) TableCRC() uint32 { return a.crc }

// IsOverlay reports whether an overlay mapping is attached.
func (a *ApkAssets) IsOverlay() bool { return a.overlay != nil }

// ResourceName looks up the symbolic name of an id using the build-time
// package ids of this archive alone, without a manager.
func (a *ApkAssets) ResourceName(id resources.ResID) (resources.ResourceName, error) {
	pkg := a.table.PackageByID(id.PackageID())
	if pkg == nil {
		return resources.ResourceName{}, errors.Wrapf(resources.ErrNoPackage, "resource %v in %s", id, a.path)
	}
	typeName, err := pkg.TypeName(id.TypeIndex())
	if err != nil {
		return resources.ResourceName{}, err
	}
	entryName, err := pkg.EntryName(id.TypeIndex(), id.EntryIndex())
	if err != nil {
		return resources.ResourceName{}, err
	}
	return resources.ResourceName{Package: pkg.Name, Type: typeName, Entry: entryName}, nil
}
