package assets

import (
	"github.com/pkg/errors"

	"github.com/droidres/reskit/pkg/resources"
)

// ErrForeignTheme is returned by SetTo when the source theme hangs off a
// different asset manager.
var ErrForeignTheme = errors.New("theme belongs to a different asset manager")

// themeEntry is one applied attribute cell. An unset cell keeps the zero
// value: a null of undefined data.
type themeEntry struct {
	cookie Cookie
	flags  uint32
	value  resources.Value
}

// themeInitialCells is the starting allocation of a type's cell array:
// as many cells as fit in a kilobyte.
const themeInitialCells = 64

type themeType struct {
	entries []themeEntry
}

type themePackage struct {
	types [256]*themeType
}

// Theme is a stack of applied styles flattened into per-attribute cells,
// indexed by package, type and entry of the attribute id. A theme is
// bound to its manager and is not safe for concurrent use; the manager
// calls it makes underneath are.
type Theme struct {
	am       *AssetManager
	flags    uint32
	packages [256]*themePackage
}

// NewTheme returns an empty theme bound to the manager.
func (am *AssetManager) NewTheme() *Theme {
	return &Theme{am: am}
}

// ApplyStyle folds a style bag into the theme. Without force only unset
// cells are written, so the first style applied wins each attribute;
// with force later styles override. An explicit empty value claims its
// cell like any other value.
func (t *Theme) ApplyStyle(style resources.ResID, force bool) error {
	bag, err := t.am.GetBag(style)
	if err != nil {
		return errors.Wrapf(err, "apply style %v", style)
	}
	t.flags |= bag.TypeSpecFlags

	// First pass sizes the cell arrays so the write pass never
	// reallocates. Keys that are not attribute ids are skipped whole.
	needed := make(map[uint16]int)
	for _, e := range bag.Entries {
		if !e.Key.IsValid() {
			continue
		}
		k := uint16(e.Key.PackageID())<<8 | uint16(e.Key.TypeIndex())
		if n := int(e.Key.EntryIndex()) + 1; n > needed[k] {
			needed[k] = n
		}
	}
	for k, n := range needed {
		tt := t.ensureType(uint8(k>>8), uint8(k))
		if len(tt.entries) >= n {
			continue
		}
		if cap(tt.entries) >= n {
			tt.entries = tt.entries[:n]
			continue
		}
		grown := make([]themeEntry, n, max(n, themeInitialCells))
		copy(grown, tt.entries)
		tt.entries = grown
	}

	for _, e := range bag.Entries {
		if !e.Key.IsValid() || e.Value.IsUndefined() {
			continue
		}
		p := t.packages[e.Key.PackageID()]
		cell := &p.types[e.Key.TypeIndex()].entries[e.Key.EntryIndex()]
		if force || cell.value.IsUndefined() {
			cell.cookie = e.Cookie
			cell.flags |= bag.TypeSpecFlags
			cell.value = e.Value
		}
	}
	return nil
}

// GetAttribute reads an attribute cell, chasing attribute indirections
// through the theme itself, at most maxReferenceDepth hops. References
// are not resolved here; ResolveAttributeReference runs the full chain.
func (t *Theme) GetAttribute(attr resources.ResID) (ResourceValue, error) {
	var flags uint32
	for i := 0; i < maxReferenceDepth; i++ {
		cell := t.lookup(attr)
		if cell == nil || cell.value.IsUndefined() {
			return ResourceValue{}, errors.Wrapf(resources.ErrNotFound, "attribute %v", attr)
		}
		flags |= cell.flags
		switch cell.value.DataType {
		case resources.TypeAttribute:
			attr = resources.ResID(cell.value.Data)
		case resources.TypeDynamicAttribute:
			id := resources.ResID(cell.value.Data)
			if err := t.am.remapDynamicID(attr.PackageID(), &id); err != nil {
				return ResourceValue{}, errors.Wrapf(err, "attribute %v", attr)
			}
			attr = id
		case resources.TypeDynamicReference:
			out := ResourceValue{Cookie: cell.cookie, Value: cell.value, Flags: flags}
			if err := t.am.remapDynamicValue(attr.PackageID(), &out.Value); err != nil {
				return ResourceValue{}, errors.Wrapf(err, "attribute %v", attr)
			}
			return out, nil
		default:
			return ResourceValue{Cookie: cell.cookie, Value: cell.value, Flags: flags}, nil
		}
	}
	return ResourceValue{}, errors.Wrap(resources.ErrDepthExceeded, "attribute chain")
}

// ResolveAttributeReference resolves rv fully: attribute values go
// through the theme first, then whatever comes out is chased through
// references by the manager. Returns the last reference id seen, like
// ResolveReference.
func (t *Theme) ResolveAttributeReference(rv *ResourceValue) (resources.ResID, error) {
	if rv.Value.DataType == resources.TypeAttribute {
		av, err := t.GetAttribute(resources.ResID(rv.Value.Data))
		if err != nil {
			return 0, err
		}
		av.Flags |= rv.Flags
		*rv = av
	}
	return t.am.ResolveReference(rv)
}

// SetTo makes the theme an exact copy of other. Both themes must hang
// off the same manager since cells carry cookies into its stack.
func (t *Theme) SetTo(other *Theme) error {
	if t == other {
		return nil
	}
	if t.am != other.am {
		return ErrForeignTheme
	}
	t.flags = other.flags
	t.packages = [256]*themePackage{}
	for pi, p := range other.packages {
		if p == nil {
			continue
		}
		np := &themePackage{}
		for ti, tt := range p.types {
			if tt == nil {
				continue
			}
			np.types[ti] = &themeType{entries: append([]themeEntry(nil), tt.entries...)}
		}
		t.packages[pi] = np
	}
	return nil
}

// Clear resets to an empty theme.
func (t *Theme) Clear() {
	t.flags = 0
	t.packages = [256]*themePackage{}
}

// ChangingConfigurations returns the union of axis flags of every style
// applied so far.
func (t *Theme) ChangingConfigurations() uint32 {
	return t.flags
}

func (t *Theme) lookup(attr resources.ResID) *themeEntry {
	if !attr.IsValid() {
		return nil
	}
	p := t.packages[attr.PackageID()]
	if p == nil {
		return nil
	}
	tt := p.types[attr.TypeIndex()]
	if tt == nil || int(attr.EntryIndex()) >= len(tt.entries) {
		return nil
	}
	return &tt.entries[attr.EntryIndex()]
}

func (t *Theme) ensureType(pkg, typ uint8) *themeType {
	p := t.packages[pkg]
	if p == nil {
		p = &themePackage{}
		t.packages[pkg] = p
	}
	tt := p.types[typ]
	if tt == nil {
		tt = &themeType{}
		p.types[typ] = tt
	}
	return tt
}
