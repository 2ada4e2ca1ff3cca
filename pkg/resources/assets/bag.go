package assets

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/droidres/reskit/pkg/resources"
)

// BagEntry is one key/value pair of a resolved bag.
type BagEntry struct {
	Cookie Cookie
	Key    resources.ResID
	Value  resources.Value
}

// ResolvedBag is a flattened complex entry: parent bags merged in, keys
// and values rewritten to runtime ids, entries sorted ascending by key.
type ResolvedBag struct {
	TypeSpecFlags uint32
	Entries       []BagEntry
}

// bagInFlight marks a bag currently being built. Seeing it on a cache
// hit means the parent chain walked back into itself.
var bagInFlight = &ResolvedBag{}

// GetBag returns the flattened bag behind a complex resource. Results
// are cached until the configuration moves on one of their axes.
func (am *AssetManager) GetBag(id resources.ResID) (*ResolvedBag, error) {
	am.mu.Lock()
	defer am.mu.Unlock()
	return am.getBagLocked(id)
}

func (am *AssetManager) getBagLocked(id resources.ResID) (*ResolvedBag, error) {
	if bag, ok := am.cachedBags[id]; ok {
		if bag == bagInFlight {
			return nil, errors.Wrapf(resources.ErrNotFound, "bag %v: parent cycle", id)
		}
		return bag, nil
	}

	res, err := am.findEntryLocked(id, 0, false)
	if err != nil {
		return nil, err
	}
	if !res.entry.IsComplex() {
		return nil, errors.Wrapf(resources.ErrNotFound, "bag %v: entry is not complex", id)
	}

	am.cachedBags[id] = bagInFlight
	bag, err := am.buildBagLocked(id, res)
	if err != nil {
		delete(am.cachedBags, id)
		return nil, err
	}
	am.cachedBags[id] = bag
	return bag, nil
}

func (am *AssetManager) buildBagLocked(id resources.ResID, res findResult) (*ResolvedBag, error) {
	entry := res.entry
	refTable := &res.group.refTable

	own := make([]BagEntry, 0, len(entry.Maps))
	for _, m := range entry.Maps {
		key := m.Key
		if !key.IsInternal() {
			if err := refTable.LookupResourceID(&key); err != nil {
				return nil, errors.Wrapf(err, "bag %v key", id)
			}
		}
		value := m.Value
		if err := refTable.LookupResourceValue(&value); err != nil {
			return nil, errors.Wrapf(err, "bag %v value under key %v", id, key)
		}
		own = append(own, BagEntry{Cookie: res.cookie, Key: key, Value: value})
	}
	// Rewriting keys into runtime package space can reorder them.
	sort.SliceStable(own, func(i, j int) bool { return own[i].Key < own[j].Key })

	parent := entry.ParentID
	if parent == 0 {
		return &ResolvedBag{TypeSpecFlags: res.flags, Entries: own}, nil
	}

	if err := refTable.LookupResourceID(&parent); err != nil {
		return nil, errors.Wrapf(err, "bag %v parent", id)
	}
	parentBag, err := am.getBagLocked(parent)
	if err != nil {
		return nil, errors.Wrapf(err, "bag %v parent %v", id, parent)
	}

	merged := make([]BagEntry, 0, len(parentBag.Entries)+len(own))
	pi, ci := 0, 0
	for pi < len(parentBag.Entries) && ci < len(own) {
		switch {
		case own[ci].Key < parentBag.Entries[pi].Key:
			merged = append(merged, own[ci])
			ci++
		case own[ci].Key == parentBag.Entries[pi].Key:
			// Child overrides parent.
			merged = append(merged, own[ci])
			ci++
			pi++
		default:
			merged = append(merged, parentBag.Entries[pi])
			pi++
		}
	}
	merged = append(merged, parentBag.Entries[pi:]...)
	merged = append(merged, own[ci:]...)

	return &ResolvedBag{
		TypeSpecFlags: res.flags | parentBag.TypeSpecFlags,
		Entries:       merged,
	}, nil
}
