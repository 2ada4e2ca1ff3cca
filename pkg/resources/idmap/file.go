package idmap

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/droidres/reskit/pkg/resources"
	"github.com/droidres/reskit/pkg/resources/assets"
)

// ReadFromFile loads and parses an idmap file.
func ReadFromFile(path string) (*Idmap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read idmap %s", path)
	}
	im, err := FromBinary(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse idmap %s", path)
	}
	return im, nil
}

// WriteToFile serializes the idmap to path.
func (im *Idmap) WriteToFile(path string) error {
	data, err := im.Pack()
	if err != nil {
		return errors.Wrap(err, "pack idmap")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "write idmap %s", path)
	}
	return nil
}

// IsUpToDate reports whether the idmap still describes the archives at
// the given paths. Any difference in identity, path, or table checksum
// forces a rebuild.
func (im *Idmap) IsUpToDate(targetPath, overlayPath string) (bool, error) {
	if im.Header.Magic != Magic || im.Header.Version != Version {
		return false, nil
	}
	if im.Header.TargetPath != targetPath || im.Header.OverlayPath != overlayPath {
		return false, nil
	}
	target, err := assets.LoadApk(targetPath)
	if err != nil {
		return false, errors.Wrap(err, "load target")
	}
	overlay, err := assets.LoadApk(overlayPath)
	if err != nil {
		return false, errors.Wrap(err, "load overlay")
	}
	return im.Header.TargetCRC == target.TableCRC() &&
		im.Header.OverlayCRC == overlay.TableCRC(), nil
}

// CanonicalPathFor maps an overlay path to its idmap file under dir:
// separators become '@' and the name gains an @idmap suffix, so one
// flat directory can cache idmaps for overlays anywhere on disk.
func CanonicalPathFor(dir, overlayPath string) string {
	name := strings.ReplaceAll(strings.TrimPrefix(overlayPath, "/"), "/", "@") + "@idmap"
	return filepath.Join(dir, name)
}

// Dump writes a human-readable rendition of the idmap. verbose adds
// every mapped entry.
func (im *Idmap) Dump(w io.Writer, verbose bool) error {
	var err error
	p := func(format string, args ...any) {
		if err == nil {
			_, err = fmt.Fprintf(w, format, args...)
		}
	}

	p("magic          : %#08x\n", im.Header.Magic)
	p("version        : %d\n", im.Header.Version)
	p("target crc     : %#08x\n", im.Header.TargetCRC)
	p("overlay crc    : %#08x\n", im.Header.OverlayCRC)
	p("target path    : %s\n", im.Header.TargetPath)
	p("overlay path   : %s\n", im.Header.OverlayPath)
	p("target package : %#02x\n", im.Data.TargetPackageID)
	p("type count     : %d\n", im.Data.TypeCount)
	if !verbose {
		return err
	}
	for _, te := range im.Types {
		p("type %#02x -> %#02x (%d entries from offset %d)\n",
			te.TargetTypeID, te.OverlayTypeID, len(te.Entries), te.EntryOffset)
		for i, e := range te.Entries {
			if e == NoEntry {
				continue
			}
			tid := resources.MakeResID(im.Data.TargetPackageID, te.TargetTypeID, te.EntryOffset+uint16(i))
			oid := resources.MakeResID(im.Data.TargetPackageID, te.OverlayTypeID, uint16(e))
			p("  %v -> %v\n", tid, oid)
		}
	}
	return err
}
