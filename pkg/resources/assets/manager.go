package assets

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/droidres/reskit/pkg/resources"
	"github.com/droidres/reskit/pkg/resources/arsc"
)

// maxReferenceDepth bounds reference and attribute chains.
const maxReferenceDepth = 20

// noGroup marks an unassigned slot in the package id index.
const noGroup = 0xFF

// loadedPackage is one package's membership in a group: the parsed
// package, the archive it came from, and the overlay mapping when the
// package was contributed through an idmap.
type loadedPackage struct {
	cookie  Cookie
	pkg     *arsc.Package
	apk     *ApkAssets
	overlay OverlayMapping
}

// packageGroup collects every package answering to one runtime package
// id: the package itself plus any overlays targeting it, in stack order.
type packageGroup struct {
	refTable DynamicRefTable
	packages []loadedPackage
}

// AssetManager resolves resource ids against a stack of loaded archives.
// Later archives shadow earlier ones, which is what makes runtime
// overlays and split APKs work. All lookups go through one coarse lock,
// so a manager is safe for concurrent use.
type AssetManager struct {
	mu     sync.Mutex
	logger hclog.Logger

	apkAssets  []*ApkAssets
	groups     []*packageGroup
	groupIndex [256]uint8
	config     resources.Config
	cachedBags map[resources.ResID]*ResolvedBag
}

// ResourceValue is a resolved simple value together with where it came
// from: the supplying archive, the configuration of the winning chunk,
// and the union of axis flags across every chunk defining the entry.
type ResourceValue struct {
	Cookie Cookie
	Value  resources.Value
	Config resources.Config
	Flags  uint32
}

// findResult is an internal findEntry hit. localID is the id inside the
// supplying package, which differs from the requested id when the hit
// went through an overlay mapping.
type findResult struct {
	cookie  Cookie
	entry   *arsc.Entry
	config  resources.Config
	flags   uint32
	pkg     *loadedPackage
	localID resources.ResID
	group   *packageGroup
}

// NewAssetManager returns an empty manager. Call SetApkAssets to load a
// stack.
func NewAssetManager(logger hclog.Logger) *AssetManager {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	am := &AssetManager{
		logger:     logger.Named("assets"),
		cachedBags: make(map[resources.ResID]*ResolvedBag),
	}
	for i := range am.groupIndex {
		am.groupIndex[i] = noGroup
	}
	return am
}

// SetApkAssets replaces the archive stack and rebuilds package groups and
// dynamic reference tables from scratch. Packages keep whatever nonzero
// id they were built with; dynamic packages are assigned the next free id
// from 0x02 in stack order. Overlay archives join the group of their
// target package and must come after it in the stack. With invalidate set
// cached bags are dropped; pass false only when the new stack is
// id-compatible with the old one.
func (am *AssetManager) SetApkAssets(stack []*ApkAssets, invalidate bool) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	am.apkAssets = append([]*ApkAssets(nil), stack...)
	am.groups = nil
	for i := range am.groupIndex {
		am.groupIndex[i] = noGroup
	}

	var used [256]bool
	for _, apk := range stack {
		if apk.overlay != nil {
			continue
		}
		for _, pkg := range apk.table.Packages {
			if pkg.ID != 0 {
				used[pkg.ID] = true
			}
		}
	}

	nextID := resources.PackageIDPlatform + 1
	assignDynamic := func() (uint8, bool) {
		for nextID < resources.PackageIDApp {
			id := nextID
			nextID++
			if !used[id] {
				used[id] = true
				return id, true
			}
		}
		return 0, false
	}

	for idx, apk := range stack {
		cookie := Cookie(idx)
		for _, pkg := range apk.table.Packages {
			var runtimeID uint8
			var overlay OverlayMapping
			switch {
			case apk.overlay != nil:
				runtimeID = apk.overlay.TargetPackageID()
				if am.groupIndex[runtimeID] == noGroup {
					am.logger.Warn("overlay loaded before its target, skipping",
						"path", apk.path, "target", fmt.Sprintf("0x%02x", runtimeID))
					continue
				}
				overlay = apk.overlay
			case pkg.ID != 0:
				runtimeID = pkg.ID
			default:
				id, ok := assignDynamic()
				if !ok {
					return errors.Errorf("no free package id for %s", pkg.Name)
				}
				runtimeID = id
				am.logger.Debug("assigned dynamic package id",
					"package", pkg.Name, "id", id)
			}

			gi := am.groupIndex[runtimeID]
			if gi == noGroup {
				gi = uint8(len(am.groups))
				group := &packageGroup{}
				group.refTable.assigned = runtimeID
				am.groups = append(am.groups, group)
				am.groupIndex[runtimeID] = gi
			}
			am.groups[gi].packages = append(am.groups[gi].packages, loadedPackage{
				cookie:  cookie,
				pkg:     pkg,
				apk:     apk,
				overlay: overlay,
			})
		}
	}

	for _, group := range am.groups {
		// Identity entries first: they keep remapping idempotent for ids
		// already in runtime space. Library declarations then override
		// their build-time ids.
		for _, other := range am.groups {
			group.refTable.AddMapping(other.refTable.assigned, other.refTable.assigned)
		}
		for i := range group.packages {
			for _, lib := range group.packages[i].pkg.Libraries {
				target, ok := am.runtimePackageIDLocked(lib.Name)
				if !ok {
					am.logger.Warn("shared library not loaded", "package", lib.Name)
					continue
				}
				group.refTable.AddMapping(lib.PackageID, target)
			}
		}
	}

	am.logger.Debug("apk assets installed",
		"archives", len(stack), "groups", len(am.groups))

	if invalidate {
		am.cachedBags = make(map[resources.ResID]*ResolvedBag)
	}
	return nil
}

// runtimePackageIDLocked finds the runtime id a package name answers to.
func (am *AssetManager) runtimePackageIDLocked(name string) (uint8, bool) {
	for _, group := range am.groups {
		for i := range group.packages {
			lp := &group.packages[i]
			if lp.overlay == nil && lp.pkg.Name == name {
				return group.refTable.assigned, true
			}
		}
	}
	return 0, false
}

// SetConfiguration installs the device configuration and evicts cached
// bags whose entries pinned any axis that changed.
func (am *AssetManager) SetConfiguration(cfg resources.Config) {
	am.mu.Lock()
	defer am.mu.Unlock()

	diff := am.config.Diff(&cfg)
	am.config = cfg
	if diff != 0 {
		am.invalidateLocked(diff)
	}
}

// Configuration returns the installed device configuration.
func (am *AssetManager) Configuration() resources.Config {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.config
}

// InvalidateCaches drops cached data. A mask of ^uint32(0) clears
// everything; any other mask evicts only bags that pinned a changed axis.
func (am *AssetManager) InvalidateCaches(diffMask uint32) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.invalidateLocked(diffMask)
}

func (am *AssetManager) invalidateLocked(diffMask uint32) {
	if diffMask == ^uint32(0) {
		am.cachedBags = make(map[resources.ResID]*ResolvedBag)
		return
	}
	for id, bag := range am.cachedBags {
		if bag.TypeSpecFlags&diffMask != 0 {
			delete(am.cachedBags, id)
		}
	}
}

// ApkAt returns the archive a cookie points into, nil for invalid
// cookies.
func (am *AssetManager) ApkAt(cookie Cookie) *ApkAssets {
	am.mu.Lock()
	defer am.mu.Unlock()
	if cookie < 0 || int(cookie) >= len(am.apkAssets) {
		return nil
	}
	return am.apkAssets[cookie]
}

// findEntryLocked walks the requested id's package group in stack order.
// The best-matching config wins; equal configs prefer the later archive,
// which gives overlays precedence. Axis flags accumulate over every
// package that defines the entry, matching or not. With stopAtFirst the
// walk ends on the first definition found, which is all name lookups
// need.
func (am *AssetManager) findEntryLocked(id resources.ResID, densityOverride uint16, stopAtFirst bool) (findResult, error) {
	if !id.IsValid() {
		return findResult{}, errors.Wrapf(resources.ErrBadID, "find entry %v", id)
	}

	desired := am.config
	if densityOverride != 0 {
		desired.Density = densityOverride
	}

	gi := am.groupIndex[id.PackageID()]
	if gi == noGroup {
		return findResult{}, errors.Wrapf(resources.ErrNoPackage, "find entry %v", id)
	}
	group := am.groups[gi]

	var (
		found bool
		out   findResult
	)
	for i := range group.packages {
		lp := &group.packages[i]
		local := id
		if lp.overlay != nil {
			mapped, ok := lp.overlay.Lookup(id)
			if !ok {
				continue
			}
			local = mapped
		}
		res, err := lp.pkg.FindEntry(local.TypeIndex(), local.EntryIndex(), &desired)
		if err != nil {
			if errors.Is(err, resources.ErrNotFound) {
				continue
			}
			return findResult{}, err
		}
		out.flags |= res.TypeFlags
		if !found || res.Config.IsBetterThan(&out.config, &desired) || res.Config == out.config {
			found = true
			out.cookie = lp.cookie
			out.entry = res.Entry
			out.config = res.Config
			out.pkg = lp
			out.localID = local
			out.group = group
		}
		if stopAtFirst {
			break
		}
	}
	if !found {
		return findResult{}, errors.Wrapf(resources.ErrNotFound, "find entry %v", id)
	}
	return out, nil
}

// GetResource returns the value of a simple resource under the current
// configuration. Complex entries fail with ErrIsComplex unless mayBeBag
// is set, in which case the caller gets a reference to the id itself so
// reference chasing can hand it to GetBag. A nonzero densityOverride
// substitutes the density axis for this lookup only. The returned value
// is remapped through the supplying group's dynamic reference table; no
// references are chased here.
func (am *AssetManager) GetResource(id resources.ResID, mayBeBag bool, densityOverride uint16) (ResourceValue, error) {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.getResourceLocked(id, mayBeBag, densityOverride)
}

func (am *AssetManager) getResourceLocked(id resources.ResID, mayBeBag bool, densityOverride uint16) (ResourceValue, error) {
	res, err := am.findEntryLocked(id, densityOverride, false)
	if err != nil {
		return ResourceValue{}, err
	}

	if res.entry.IsComplex() {
		if !mayBeBag {
			return ResourceValue{}, errors.Wrapf(resources.ErrIsComplex, "resource %v", id)
		}
		return ResourceValue{
			Cookie: res.cookie,
			Value: resources.Value{
				Size:     resources.ValueSize,
				DataType: resources.TypeReference,
				Data:     uint32(id),
			},
			Config: res.config,
			Flags:  res.flags,
		}, nil
	}

	value := res.entry.Value
	if err := res.group.refTable.LookupResourceValue(&value); err != nil {
		return ResourceValue{}, errors.Wrapf(err, "resource %v", id)
	}
	return ResourceValue{
		Cookie: res.cookie,
		Value:  value,
		Config: res.config,
		Flags:  res.flags,
	}, nil
}

// ResolveReference chases rv through reference values, at most
// maxReferenceDepth hops, updating it in place and accumulating axis
// flags along the chain. The returned id names the last reference looked
// up. A chain that lands on a reference to its own id stops with the
// reference left in place; a chain longer than the cap stops with
// whatever was reached. Both are soft exits.
func (am *AssetManager) ResolveReference(rv *ResourceValue) (resources.ResID, error) {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.resolveReferenceLocked(rv)
}

func (am *AssetManager) resolveReferenceLocked(rv *ResourceValue) (resources.ResID, error) {
	var lastRef resources.ResID
	// The lookup that produced rv counts as the first step of the chain.
	for i := 1; i < maxReferenceDepth; i++ {
		if rv.Value.DataType != resources.TypeReference || rv.Value.Data == 0 {
			return lastRef, nil
		}
		id := resources.ResID(rv.Value.Data)
		lastRef = id
		next, err := am.getResourceLocked(id, true, 0)
		if err != nil {
			return lastRef, err
		}
		rv.Flags |= next.Flags
		if next.Value.DataType == resources.TypeReference && next.Value.Data == uint32(id) {
			// Self reference. Leave the current value alone.
			return lastRef, nil
		}
		rv.Cookie = next.Cookie
		rv.Value = next.Value
		rv.Config = next.Config
	}
	am.logger.Debug("reference chain hit depth cap", "last", lastRef.String())
	return lastRef, nil
}

// GetResourceName reverses an id into package:type/entry form using the
// first archive that defines the entry in any configuration.
func (am *AssetManager) GetResourceName(id resources.ResID) (resources.ResourceName, error) {
	am.mu.Lock()
	defer am.mu.Unlock()

	res, err := am.findEntryLocked(id, 0, true)
	if err != nil {
		return resources.ResourceName{}, err
	}
	pkg := res.pkg.pkg
	typeName, err := pkg.TypeName(res.localID.TypeIndex())
	if err != nil {
		return resources.ResourceName{}, err
	}
	entryName, err := pkg.KeyStrings.StringAt(res.entry.KeyIndex)
	if err != nil {
		return resources.ResourceName{}, err
	}
	return resources.ResourceName{Package: pkg.Name, Type: typeName, Entry: entryName}, nil
}

// GetResourceID resolves a "package:type/entry" name back to a runtime
// id. Empty package or type segments fall back to the supplied defaults.
// Attribute lookups that miss retry the private attribute type the
// compiler moves non-public attributes into.
func (am *AssetManager) GetResourceID(name, fallbackType, fallbackPackage string) (resources.ResID, error) {
	am.mu.Lock()
	defer am.mu.Unlock()

	pkgName, typeName, entryName := splitResourceName(name)
	if entryName == "" {
		return 0, errors.Wrapf(resources.ErrBadID, "resource name %q", name)
	}
	if typeName == "" {
		typeName = fallbackType
	}
	if pkgName == "" {
		pkgName = fallbackPackage
	}

	for _, group := range am.groups {
		for i := range group.packages {
			lp := &group.packages[i]
			if lp.overlay != nil || lp.pkg.Name != pkgName {
				continue
			}
			id := lp.pkg.FindEntryByName(typeName, entryName)
			if id == 0 && typeName == "attr" {
				id = lp.pkg.FindEntryByName("^attr-private", entryName)
			}
			if id != 0 {
				return id.WithPackage(group.refTable.assigned), nil
			}
		}
	}
	return 0, errors.Wrapf(resources.ErrNotFound, "resource %s:%s/%s", pkgName, typeName, entryName)
}

// splitResourceName breaks "package:type/entry" into its segments. Both
// the package and type prefixes are optional.
func splitResourceName(s string) (pkg, typ, entry string) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		pkg, s = s[:i], s[i+1:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		typ, s = s[:i], s[i+1:]
	}
	return pkg, typ, s
}

// GetLocales returns the sorted union of locales over every loaded
// archive. With mergeEquivalent set, deprecated language codes collapse
// into their modern forms.
func (am *AssetManager) GetLocales(mergeEquivalent bool) []string {
	am.mu.Lock()
	defer am.mu.Unlock()

	seen := make(map[string]struct{})
	var out []string
	for _, apk := range am.apkAssets {
		for _, pkg := range apk.table.Packages {
			for _, loc := range pkg.CollectLocales(mergeEquivalent) {
				if _, ok := seen[loc]; ok {
					continue
				}
				seen[loc] = struct{}{}
				out = append(out, loc)
			}
		}
	}
	sort.Strings(out)
	return out
}

// GetConfigurations returns the union of configurations over every
// loaded archive, sorted by qualifier string.
func (am *AssetManager) GetConfigurations(skipMipmap bool) []resources.Config {
	am.mu.Lock()
	defer am.mu.Unlock()

	seen := make(map[string]struct{})
	var out []resources.Config
	for _, apk := range am.apkAssets {
		for _, pkg := range apk.table.Packages {
			for _, cfg := range pkg.CollectConfigurations(skipMipmap) {
				key := cfg.String()
				if _, ok := seen[key]; ok {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, cfg)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// remapDynamicID rewrites an id through the reference table of the group
// answering to pkg. Themes use this for dynamic attribute cells.
func (am *AssetManager) remapDynamicID(pkg uint8, id *resources.ResID) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	gi := am.groupIndex[pkg]
	if gi == noGroup {
		return errors.Wrapf(resources.ErrNoPackage, "package group 0x%02x", pkg)
	}
	return am.groups[gi].refTable.LookupResourceID(id)
}

// remapDynamicValue is remapDynamicID for whole values.
func (am *AssetManager) remapDynamicValue(pkg uint8, v *resources.Value) error {
	am.mu.Lock()
	defer am.mu.Unlock()

	gi := am.groupIndex[pkg]
	if gi == noGroup {
		return errors.Wrapf(resources.ErrNoPackage, "package group 0x%02x", pkg)
	}
	return am.groups[gi].refTable.LookupResourceValue(v)
}
