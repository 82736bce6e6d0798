package layout

import "slices"

// usedRange is a half-open interval [start, end) of slots held by owner.
type usedRange struct {
	start, end uint64
	owner      string
}

// rangeSet tracks used slots of one kind in one space, sorted by start.
type rangeSet struct {
	used []usedRange
}

func rangeEnd(start, count uint64) uint64 {
	if count == UnboundedCount || start > UnboundedCount-count {
		return UnboundedCount
	}
	return start + count
}

// reserve marks [start, start+count) as used. It returns the owner of the
// first overlapping range; the slots are taken either way.
func (r *rangeSet) reserve(start, count uint64, owner string) (string, bool) {
	end := rangeEnd(start, count)
	conflict := ""
	for _, u := range r.used {
		if u.start < end && start < u.end {
			conflict = u.owner
			break
		}
	}
	r.insert(usedRange{start: start, end: end, owner: owner})
	return conflict, conflict == ""
}

// allocate takes the lowest gap that fits count slots.
func (r *rangeSet) allocate(count uint64, owner string) uint64 {
	next := uint64(0)
	for _, u := range r.used {
		if rangeEnd(next, count) <= u.start {
			break
		}
		next = max(next, u.end)
	}
	r.insert(usedRange{start: next, end: rangeEnd(next, count), owner: owner})
	return next
}

func (r *rangeSet) insert(u usedRange) {
	i, _ := slices.BinarySearchFunc(r.used, u.start, func(x usedRange, s uint64) int {
		switch {
		case x.start < s:
			return -1
		case x.start > s:
			return 1
		}
		return 0
	})
	r.used = slices.Insert(r.used, i, u)
}

func (r *rangeSet) empty() bool { return len(r.used) == 0 }

type slotKey struct {
	kind  Kind
	space uint64
}

// allocator hands out register slots per (kind, space) and whole spaces.
type allocator struct {
	slots  map[slotKey]*rangeSet
	spaces rangeSet
}

func newAllocator() *allocator {
	return &allocator{slots: make(map[slotKey]*rangeSet)}
}

func (a *allocator) set(k Kind, space uint64) *rangeSet {
	key := slotKey{kind: k, space: space}
	rs := a.slots[key]
	if rs == nil {
		rs = &rangeSet{}
		a.slots[key] = rs
	}
	return rs
}

func (a *allocator) reserve(k Kind, space, start, count uint64, owner string) (string, bool) {
	return a.set(k, space).reserve(start, count, owner)
}

func (a *allocator) allocate(k Kind, space, count uint64, owner string) uint64 {
	return a.set(k, space).allocate(count, owner)
}

// claimUsedSpaces reserves every space that already holds a slot, so that
// space-creating parameters never share a space with loose bindings.
func (a *allocator) claimUsedSpaces() {
	used := make([]uint64, 0, len(a.slots))
	for key, rs := range a.slots {
		if !rs.empty() {
			used = append(used, key.space)
		}
	}
	slices.Sort(used)
	for _, s := range slices.Compact(used) {
		a.spaces.reserve(s, 1, "")
	}
}

func (a *allocator) reserveSpace(start, count uint64, owner string) (string, bool) {
	return a.spaces.reserve(start, count, owner)
}

func (a *allocator) allocateSpace(count uint64, owner string) uint64 {
	return a.spaces.allocate(count, owner)
}
