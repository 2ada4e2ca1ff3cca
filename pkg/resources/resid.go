// Package resources holds the shared data model of the resource resolution
// engine: packed resource identifiers, typed values, and the device
// configuration descriptor with its match/better-than ordering.
package resources

import "fmt"

// ResID is a packed 32-bit resource identifier: 0xPPTTEEEE where PP is the
// package id, TT the 1-based type index and EEEE the 0-based entry index.
type ResID uint32

// Well-known package ids. The platform always loads as 0x01; the application
// itself as 0x7F. Everything between is handed out at load time.
const (
	PackageIDPlatform uint8 = 0x01
	PackageIDApp      uint8 = 0x7F
)

// MakeResID packs the three components into an identifier.
func MakeResID(pkg uint8, typeIndex uint8, entryIndex uint16) ResID {
	return ResID(uint32(pkg)<<24 | uint32(typeIndex)<<16 | uint32(entryIndex))
}

// PackageID returns the package byte.
func (id ResID) PackageID() uint8 {
	return uint8(id >> 24)
}

// TypeIndex returns the 1-based type index within the package.
func (id ResID) TypeIndex() uint8 {
	return uint8(id >> 16)
}

// EntryIndex returns the 0-based entry index within the type.
func (id ResID) EntryIndex() uint16 {
	return uint16(id)
}

// IsValid reports whether the id names a real entry slot: both the package
// byte and the type byte must be nonzero.
func (id ResID) IsValid() bool {
	return id.PackageID() != 0 && id.TypeIndex() != 0
}

// IsInternal reports whether the id lives in the internal key space used for
// structural bag keys (package byte zero). Internal ids are never run through
// dynamic reference rewriting.
func (id ResID) IsInternal() bool {
	return id.PackageID() == 0
}

// WithPackage returns the id with its package byte replaced.
func (id ResID) WithPackage(pkg uint8) ResID {
	return ResID(uint32(pkg)<<24 | uint32(id)&0x00FFFFFF)
}

func (id ResID) String() string {
	return fmt.Sprintf("0x%08x", uint32(id))
}

// ResourceName is the parsed symbolic form of an identifier.
type ResourceName struct {
	Package string
	Type    string
	Entry   string
}

func (n ResourceName) String() string {
	switch {
	case n.Package != "" && n.Type != "":
		return n.Package + ":" + n.Type + "/" + n.Entry
	case n.Type != "":
		return n.Type + "/" + n.Entry
	default:
		return n.Entry
	}
}
