// Package avail implements the free-space table algorithms shared by the
// header-resident avail table, bucket-local avail tables, and overflow
// avail blocks: sorted-by-size insertion with coalescing, first-fit
// lookup, and the push/pop machinery that moves entries between the
// header table and the overflow stack.
package avail

import (
	"sort"

	"github.com/sailfishos-mirror/gdbm/internal/wire"
)

// Full reports whether t has no room for another entry.
func Full(t *wire.AvailTable) bool {
	return len(t.Elems) >= int(t.Capacity)
}

// FirstFit returns the index of the smallest entry with Size >= n, or
// false if none exists or the table lacks room logic (table is assumed
// sorted ascending by size, which Insert maintains as an invariant).
func FirstFit(t *wire.AvailTable, n int32) (int, bool) {
	idx := sort.Search(len(t.Elems), func(i int) bool { return t.Elems[i].Size >= n })
	if idx == len(t.Elems) {
		return 0, false
	}

	return idx, true
}

// RemoveAt extracts and returns the entry at idx, shifting the tail left.
func RemoveAt(t *wire.AvailTable, idx int) wire.AvailElem {
	e := t.Elems[idx]
	t.Elems = append(t.Elems[:idx], t.Elems[idx+1:]...)

	return e
}

// Insert adds elem to t, first attempting to coalesce it with any
// adjacent entry (adjacency is e.Offset+e.Size == elem.Offset or the
// reverse, checked by a linear scan since the table is sorted by size,
// not offset) when coalesce is true, then inserting the (possibly
// merged) result at its sorted position. It reports whether the table
// had room; if not (and no coalesce was possible), the caller is
// responsible for making room (pushing an overflow block) before
// retrying.
func Insert(t *wire.AvailTable, elem wire.AvailElem, coalesce bool) bool {
	if coalesce {
		elem = coalesceAdjacent(t, elem)
	}

	if elem.Size <= wire.IgnoreSize {
		return true // degenerate after merge; nothing to store
	}

	if Full(t) {
		return false
	}

	idx := sort.Search(len(t.Elems), func(i int) bool { return t.Elems[i].Size >= elem.Size })
	t.Elems = append(t.Elems, wire.AvailElem{})
	copy(t.Elems[idx+1:], t.Elems[idx:])
	t.Elems[idx] = elem

	return true
}

// coalesceAdjacent repeatedly merges elem with any table entry adjacent
// to it in file-offset space, removing the merged entries from the table
// as it goes, and returns the fully-merged element (not yet reinserted).
func coalesceAdjacent(t *wire.AvailTable, elem wire.AvailElem) wire.AvailElem {
	for {
		merged := false

		for i, e := range t.Elems {
			if e.Offset+int64(e.Size) == elem.Offset {
				elem = wire.AvailElem{Size: e.Size + elem.Size, Offset: e.Offset}
				RemoveAt(t, i)
				merged = true

				break
			}

			if elem.Offset+int64(elem.Size) == e.Offset {
				elem = wire.AvailElem{Size: e.Size + elem.Size, Offset: elem.Offset}
				RemoveAt(t, i)
				merged = true

				break
			}
		}

		if !merged {
			return elem
		}
	}
}

// SplitForPush partitions t's entries into "keep" (even-indexed by
// current sorted position) and "move" (odd-indexed), per
// push_avail_block: when the header table overflows, half its entries
// move out to a fresh overflow block. The returned tables share no
// backing array with t.
func SplitForPush(t *wire.AvailTable) (keep, move []wire.AvailElem) {
	for i, e := range t.Elems {
		if i%2 == 0 {
			keep = append(keep, e)
		} else {
			move = append(move, e)
		}
	}

	return keep, move
}
