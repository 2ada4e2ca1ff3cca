package idmap

import (
	"sort"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/droidres/reskit/pkg/resources"
	"github.com/droidres/reskit/pkg/resources/arsc"
	"github.com/droidres/reskit/pkg/resources/assets"
)

// Build loads the target and overlay archives and produces their idmap.
func Build(targetPath, overlayPath string, fulfilled PolicyFlags, enforceOverlayable bool, logger hclog.Logger) (*Idmap, error) {
	target, err := assets.LoadApk(targetPath)
	if err != nil {
		return nil, errors.Wrap(err, "load target")
	}
	overlay, err := assets.LoadApk(overlayPath)
	if err != nil {
		return nil, errors.Wrap(err, "load overlay")
	}
	return BuildFromAssets(target, overlay, fulfilled, enforceOverlayable, logger)
}

// BuildFromAssets produces the idmap for archives that are already
// loaded. Paths and checksums recorded in the header come from the
// archives themselves.
//
// Overlay entries are matched to target entries by "type/entry" name.
// With enforceOverlayable set, a match survives only if the target
// entry's declared policies intersect fulfilled; entries without any
// overlayable declaration fall back to DefaultPolicies. An empty
// result is not an error: the idmap is then header-only with
// TypeCount zero.
func BuildFromAssets(target, overlay *assets.ApkAssets, fulfilled PolicyFlags, enforceOverlayable bool, logger hclog.Logger) (*Idmap, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	logger = logger.Named("idmap")

	if len(target.Path()) > PathLength {
		return nil, errors.Wrapf(resources.ErrPathTooLong, "target path %q", target.Path())
	}
	if len(overlay.Path()) > PathLength {
		return nil, errors.Wrapf(resources.ErrPathTooLong, "overlay path %q", overlay.Path())
	}

	targetPkg, err := mainPackage(target)
	if err != nil {
		return nil, errors.Wrap(err, "target")
	}
	overlayPkg, err := mainPackage(overlay)
	if err != nil {
		return nil, errors.Wrap(err, "overlay")
	}

	overlayByName := overlayNameMap(overlayPkg)

	type typeMapping struct {
		overlayType uint8
		entries     map[uint16]uint32
	}
	byType := make(map[uint8]*typeMapping)

	mapped := 0
	for ti := 1; ti <= targetPkg.TypeCount(); ti++ {
		typeID := uint8(ti)
		typeName, err := targetPkg.TypeName(typeID)
		if err != nil {
			continue
		}
		for _, ei := range targetPkg.EntryIndexes(typeID) {
			entryName, err := targetPkg.EntryName(typeID, ei)
			if err != nil {
				continue
			}
			key := typeName + "/" + entryName
			dst, ok := overlayByName[key]
			if !ok {
				continue
			}

			if enforceOverlayable {
				id := resources.MakeResID(targetPkg.ID, typeID, ei)
				declared, hasPolicy := targetPkg.OverlayablePolicy(id)
				if !hasPolicy {
					if fulfilled&DefaultPolicies == 0 {
						logger.Trace("target entry not overlayable, skipped", "name", key)
						continue
					}
				} else if PolicyFlags(declared)&fulfilled == 0 {
					logger.Trace("policies unfulfilled, skipped",
						"name", key, "declared", PolicyFlags(declared).String())
					continue
				}
			}

			m := byType[typeID]
			if m == nil {
				m = &typeMapping{overlayType: dst.TypeIndex(), entries: make(map[uint16]uint32)}
				byType[typeID] = m
			}
			m.entries[ei] = uint32(dst.EntryIndex())
			mapped++
		}
	}

	im := &Idmap{
		Header: Header{
			Magic:       Magic,
			Version:     Version,
			TargetCRC:   target.TableCRC(),
			OverlayCRC:  overlay.TableCRC(),
			TargetPath:  target.Path(),
			OverlayPath: overlay.Path(),
		},
		Data: DataHeader{TargetPackageID: runtimeByte(targetPkg)},
	}

	typeIDs := make([]int, 0, len(byType))
	for ti := range byType {
		typeIDs = append(typeIDs, int(ti))
	}
	sort.Ints(typeIDs)

	for _, ti := range typeIDs {
		m := byType[uint8(ti)]
		lo, hi := uint16(0xFFFF), uint16(0)
		for ei := range m.entries {
			if ei < lo {
				lo = ei
			}
			if ei > hi {
				hi = ei
			}
		}
		entries := make([]uint32, int(hi)-int(lo)+1)
		for i := range entries {
			entries[i] = NoEntry
		}
		for ei, v := range m.entries {
			entries[int(ei)-int(lo)] = v
		}
		im.Types = append(im.Types, TypeEntry{
			TargetTypeID:  uint8(ti),
			OverlayTypeID: m.overlayType,
			EntryOffset:   lo,
			Entries:       entries,
		})
	}
	im.Data.TypeCount = uint16(len(im.Types))

	logger.Debug("idmap built",
		"target", target.Path(), "overlay", overlay.Path(),
		"types", len(im.Types), "entries", mapped)
	return im, nil
}

func mainPackage(apk *assets.ApkAssets) (*arsc.Package, error) {
	if len(apk.Table().Packages) == 0 {
		return nil, errors.Errorf("%s has no resource package", apk.Path())
	}
	return apk.Table().Packages[0], nil
}

// runtimeByte is the package byte recorded in the data header: the
// build-time ID, or the app ID when the package is dynamic.
func runtimeByte(p *arsc.Package) uint8 {
	if p.ID != 0 {
		return p.ID
	}
	return resources.PackageIDApp
}

// overlayNameMap indexes every overlay entry by its "type/entry" form.
func overlayNameMap(p *arsc.Package) map[string]resources.ResID {
	out := make(map[string]resources.ResID)
	for ti := 1; ti <= p.TypeCount(); ti++ {
		typeID := uint8(ti)
		typeName, err := p.TypeName(typeID)
		if err != nil {
			continue
		}
		for _, ei := range p.EntryIndexes(typeID) {
			entryName, err := p.EntryName(typeID, ei)
			if err != nil {
				continue
			}
			out[typeName+"/"+entryName] = resources.MakeResID(p.ID, typeID, ei)
		}
	}
	return out
}
