package assets

import (
	"github.com/pkg/errors"

	"github.com/droidres/reskit/pkg/resources"
)

// DynamicRefTable rewrites build-time package references into the runtime
// package space of one package group. Shared libraries compile against
// package byte zero for their own resources and against declared
// build-time ids for other libraries; both get patched here once the load
// order is known.
type DynamicRefTable struct {
	assigned uint8
	mapping  map[uint8]uint8
}

// AssignedPackageID returns the runtime package id of the owning group.
func (d *DynamicRefTable) AssignedPackageID() uint8 {
	return d.assigned
}

// AddMapping records that references built against buildID resolve to
// runtimeID.
func (d *DynamicRefTable) AddMapping(buildID, runtimeID uint8) {
	if d.mapping == nil {
		d.mapping = make(map[uint8]uint8)
	}
	d.mapping[buildID] = runtimeID
}

// LookupResourceID rewrites id in place into the runtime package space.
// Platform and application ids are absolute and pass through. Package
// byte zero is a library referencing itself and resolves to the assigned
// id of this group. Anything else must have a recorded mapping.
func (d *DynamicRefTable) LookupResourceID(id *resources.ResID) error {
	res := *id
	if res == 0 {
		return nil
	}
	switch pkg := res.PackageID(); pkg {
	case resources.PackageIDPlatform, resources.PackageIDApp:
		return nil
	case 0x00:
		*id = res.WithPackage(d.assigned)
		return nil
	default:
		mapped, ok := d.mapping[pkg]
		if !ok {
			return errors.Wrapf(resources.ErrNoPackage, "dynamic reference %v", res)
		}
		*id = res.WithPackage(mapped)
		return nil
	}
}

// LookupResourceValue normalizes dynamic reference and attribute values:
// the payload id is rewritten and the type collapses to its plain form.
// Values of any other type pass through untouched.
func (d *DynamicRefTable) LookupResourceValue(v *resources.Value) error {
	var plain resources.DataType
	switch v.DataType {
	case resources.TypeDynamicReference:
		plain = resources.TypeReference
	case resources.TypeDynamicAttribute:
		plain = resources.TypeAttribute
	default:
		return nil
	}
	id := resources.ResID(v.Data)
	if err := d.LookupResourceID(&id); err != nil {
		return err
	}
	v.DataType = plain
	v.Data = uint32(id)
	return nil
}
