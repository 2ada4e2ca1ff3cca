// Package idmap builds, serializes, and applies overlay index files:
// per-type mappings from target entry IDs to overlay entry IDs, gated
// by the overlay policy in force.
package idmap

import (
	"strings"

	"github.com/pkg/errors"
)

// PolicyFlags is the overlay policy bitmask. The bit values are the
// ones overlayable policy chunks carry in resource tables.
type PolicyFlags uint32

const (
	// PolicyPublic permits overlaying entries declared overlayable
	// with the public policy.
	PolicyPublic PolicyFlags = 0x00000001
	// PolicySystemPartition permits overlays residing on the system
	// partition.
	PolicySystemPartition PolicyFlags = 0x00000002
	// PolicyVendorPartition permits overlays residing on the vendor
	// partition.
	PolicyVendorPartition PolicyFlags = 0x00000004
	// PolicyProductPartition permits overlays residing on the product
	// partition.
	PolicyProductPartition PolicyFlags = 0x00000008
	// PolicySignature permits overlays signed with the target's
	// signature.
	PolicySignature PolicyFlags = 0x00000010
	// PolicyOdmPartition permits overlays residing on the odm
	// partition.
	PolicyOdmPartition PolicyFlags = 0x00000020
	// PolicyOemPartition permits overlays residing on the oem
	// partition.
	PolicyOemPartition PolicyFlags = 0x00000040
)

// DefaultPolicies is the mask applied to target entries that carry no
// overlayable declaration: the signature policy plus every partition.
const DefaultPolicies = PolicySignature |
	PolicySystemPartition |
	PolicyVendorPartition |
	PolicyProductPartition |
	PolicyOdmPartition |
	PolicyOemPartition

// policyNames is ordered by bit value so String output is stable.
var policyNames = []struct {
	flag PolicyFlags
	name string
}{
	{PolicyPublic, "public"},
	{PolicySystemPartition, "system"},
	{PolicyVendorPartition, "vendor"},
	{PolicyProductPartition, "product"},
	{PolicySignature, "signature"},
	{PolicyOdmPartition, "odm"},
	{PolicyOemPartition, "oem"},
}

// String renders the mask in pipe-joined form, "public|product".
func (p PolicyFlags) String() string {
	if p == 0 {
		return "none"
	}
	var parts []string
	for _, pn := range policyNames {
		if p&pn.flag != 0 {
			parts = append(parts, pn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParsePolicies reads a pipe-joined policy list back into a mask.
func ParsePolicies(s string) (PolicyFlags, error) {
	var out PolicyFlags
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		found := false
		for _, pn := range policyNames {
			if pn.name == part {
				out |= pn.flag
				found = true
				break
			}
		}
		if !found {
			return 0, errors.Errorf("unknown policy %q", part)
		}
	}
	return out, nil
}
