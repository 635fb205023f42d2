package avail_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sailfishos-mirror/gdbm/internal/avail"
	"github.com/sailfishos-mirror/gdbm/internal/wire"
)

func table(capacity int32, elems ...wire.AvailElem) *wire.AvailTable {
	return &wire.AvailTable{Capacity: capacity, Elems: elems}
}

func TestInsertMaintainsAscendingSizeOrder(t *testing.T) {
	tbl := table(10)

	require.True(t, avail.Insert(tbl, wire.AvailElem{Size: 100, Offset: 1000}, true))
	require.True(t, avail.Insert(tbl, wire.AvailElem{Size: 20, Offset: 2000}, true))
	require.True(t, avail.Insert(tbl, wire.AvailElem{Size: 50, Offset: 3000}, true))

	sizes := make([]int32, len(tbl.Elems))
	for i, e := range tbl.Elems {
		sizes[i] = e.Size
	}

	require.Equal(t, []int32{20, 50, 100}, sizes)
}

func TestInsertCoalescesAdjacentBlocks(t *testing.T) {
	tbl := table(10, wire.AvailElem{Size: 50, Offset: 1000})

	require.True(t, avail.Insert(tbl, wire.AvailElem{Size: 30, Offset: 1050}, true))

	require.Len(t, tbl.Elems, 1)
	require.Equal(t, int32(80), tbl.Elems[0].Size)
	require.Equal(t, int64(1000), tbl.Elems[0].Offset)
}

func TestInsertCoalescesOnBothSides(t *testing.T) {
	tbl := table(10,
		wire.AvailElem{Size: 40, Offset: 1000},
		wire.AvailElem{Size: 20, Offset: 1100},
	)

	// fills the gap between the two existing entries: 1000+40=1040, and
	// this new block ends at 1100, so it should merge with both.
	require.True(t, avail.Insert(tbl, wire.AvailElem{Size: 60, Offset: 1040}, true))

	require.Len(t, tbl.Elems, 1)
	require.Equal(t, int32(120), tbl.Elems[0].Size)
	require.Equal(t, int64(1000), tbl.Elems[0].Offset)
}

func TestInsertDegenerateAfterMergeIsDropped(t *testing.T) {
	tbl := table(10)

	ok := avail.Insert(tbl, wire.AvailElem{Size: wire.IgnoreSize, Offset: 1000}, true)
	require.True(t, ok)
	require.Empty(t, tbl.Elems)
}

func TestInsertReportsFullTable(t *testing.T) {
	tbl := table(1, wire.AvailElem{Size: 100, Offset: 1000})

	ok := avail.Insert(tbl, wire.AvailElem{Size: 200, Offset: 5000}, true)
	require.False(t, ok)
	require.True(t, avail.Full(tbl))
}

func TestInsertWithCoalesceDisabledDoesNotMerge(t *testing.T) {
	tbl := table(10, wire.AvailElem{Size: 50, Offset: 1000})

	require.True(t, avail.Insert(tbl, wire.AvailElem{Size: 30, Offset: 1050}, false))

	require.Len(t, tbl.Elems, 2)

	sizes := make([]int32, len(tbl.Elems))
	for i, e := range tbl.Elems {
		sizes[i] = e.Size
	}

	require.Equal(t, []int32{30, 50}, sizes)
}

func TestFirstFit(t *testing.T) {
	tbl := table(10,
		wire.AvailElem{Size: 20, Offset: 1},
		wire.AvailElem{Size: 50, Offset: 2},
		wire.AvailElem{Size: 100, Offset: 3},
	)

	idx, ok := avail.FirstFit(tbl, 40)
	require.True(t, ok)
	require.Equal(t, 1, idx)

	_, ok = avail.FirstFit(tbl, 1000)
	require.False(t, ok)
}

func TestRemoveAt(t *testing.T) {
	tbl := table(10,
		wire.AvailElem{Size: 20, Offset: 1},
		wire.AvailElem{Size: 50, Offset: 2},
	)

	e := avail.RemoveAt(tbl, 0)
	require.Equal(t, int32(20), e.Size)
	require.Len(t, tbl.Elems, 1)
	require.Equal(t, int32(50), tbl.Elems[0].Size)
}

func TestSplitForPush(t *testing.T) {
	tbl := table(10,
		wire.AvailElem{Size: 10, Offset: 1},
		wire.AvailElem{Size: 20, Offset: 2},
		wire.AvailElem{Size: 30, Offset: 3},
		wire.AvailElem{Size: 40, Offset: 4},
	)

	keep, move := avail.SplitForPush(tbl)

	require.Len(t, keep, 2)
	require.Len(t, move, 2)
	require.Equal(t, int32(10), keep[0].Size)
	require.Equal(t, int32(20), move[0].Size)
}
