package gdbm

import (
	"github.com/sailfishos-mirror/gdbm/internal/avail"
	"github.com/sailfishos-mirror/gdbm/internal/wire"
)

// allocRecord finds or creates size bytes of file space for a new record,
// preferring b's own distributed avail table, then the header's central
// table, then the header's overflow chain, and only growing the file as a
// last resort. Any leftover space beyond what was asked for is returned
// to whichever table it came from.
func (db *DB) allocRecord(b *wire.Bucket, size int32) (int64, error) {
	if off, ok := db.takeFrom(&b.Avail, size); ok {
		if err := db.adjustBucketAvail(b); err != nil {
			return 0, err
		}

		return off, nil
	}

	if off, ok := db.takeFrom(&db.header.Avail, size); ok {
		db.headerDirty = true
		return off, nil
	}

	if off, ok, err := db.takeFromOverflow(size); err != nil {
		return 0, err
	} else if ok {
		return off, nil
	}

	return db.growFile(size)
}

func (db *DB) takeFrom(t *wire.AvailTable, size int32) (int64, bool) {
	idx, ok := avail.FirstFit(t, size)
	if !ok {
		return 0, false
	}

	e := avail.RemoveAt(t, idx)
	db.metrics.AvailAlloc(size)

	if leftover := e.Size - size; leftover > wire.IgnoreSize {
		avail.Insert(t, wire.AvailElem{Size: leftover, Offset: e.Offset + int64(size)}, db.coalesceBlocks)
	}

	return e.Offset, true
}

func (db *DB) growFile(size int32) (int64, error) {
	off, err := db.file.Size()
	if err != nil {
		return 0, db.fatal(newErr(FileStatError, db.path, err))
	}

	if err := db.file.Truncate(off + int64(size)); err != nil {
		return 0, db.fatal(newErr(FileTruncateError, db.path, err))
	}

	db.header.NextBlock = off + int64(size)
	db.headerDirty = true

	return off, nil
}

// freeRecord returns a record's space to circulation. Per the free-space
// policy: an extent as large as a full block, or the handle having been
// opened with CentralFreeBlocks, always goes straight to the header's
// central table; anything smaller goes to b's distributed table, falling
// back to the header table when b's table has no room even after
// rebalancing.
func (db *DB) freeRecord(b *wire.Bucket, elem wire.AvailElem) error {
	db.metrics.AvailFree(elem.Size)

	if db.centralFree || elem.Size >= db.header.BlockSize {
		return db.freeToHeader(elem)
	}

	if avail.Insert(&b.Avail, elem, db.coalesceBlocks) {
		return db.adjustBucketAvail(b)
	}

	// b's table is full even after attempting to coalesce; relieve
	// pressure by moving half its entries to the header table, then
	// retry.
	if err := db.pushBucketAvail(b); err != nil {
		return err
	}

	if avail.Insert(&b.Avail, elem, db.coalesceBlocks) {
		return nil
	}

	return db.freeToHeader(elem)
}

// adjustBucketAvail rebalances b's distributed avail table against the
// header's central table, run after every change to b's table: below a
// third full, it pulls a single entry in from the header to keep local
// allocation working without round-tripping there; above two-thirds
// full, it pushes half its entries back out, mirroring the pressure
// relief freeRecord performs when the table is completely full.
func (db *DB) adjustBucketAvail(b *wire.Bucket) error {
	capacity := int(b.Avail.Capacity)
	low := capacity / 3
	high := capacity * 2 / 3

	switch n := len(b.Avail.Elems); {
	case n > high:
		return db.pushBucketAvail(b)
	case n < low:
		return db.pullBucketAvail(b)
	default:
		return nil
	}
}

// pushBucketAvail moves half of b's avail entries out to the header's
// central table.
func (db *DB) pushBucketAvail(b *wire.Bucket) error {
	keep, move := avail.SplitForPush(&b.Avail)
	b.Avail.Elems = keep

	for _, e := range move {
		if err := db.freeToHeader(e); err != nil {
			return err
		}
	}

	return nil
}

// pullBucketAvail takes one entry from the header's central table into
// b's distributed table, if the header has one to give and b has room.
func (db *DB) pullBucketAvail(b *wire.Bucket) error {
	if avail.Full(&b.Avail) || len(db.header.Avail.Elems) == 0 {
		return nil
	}

	e := avail.RemoveAt(&db.header.Avail, len(db.header.Avail.Elems)-1)
	db.headerDirty = true

	if !avail.Insert(&b.Avail, e, db.coalesceBlocks) {
		// Table reported room a moment ago; put it back rather than
		// drop it on the floor.
		avail.Insert(&db.header.Avail, e, db.coalesceBlocks)
	}

	return nil
}

func (db *DB) freeToHeader(elem wire.AvailElem) error {
	db.headerDirty = true

	if avail.Insert(&db.header.Avail, elem, db.coalesceBlocks) {
		return nil
	}

	if err := db.pushHeaderOverflow(); err != nil {
		return err
	}

	if !avail.Insert(&db.header.Avail, elem, db.coalesceBlocks) {
		return db.fatal(newErr(BadAvail, "header avail table full after overflow push", nil))
	}

	return nil
}

// pushHeaderOverflow moves half the header table's entries out to a fresh
// overflow block on disk, linking it in as the new head of the overflow
// chain, freeing room in the header table for further inserts.
func (db *DB) pushHeaderOverflow() error {
	keep, move := avail.SplitForPush(&db.header.Avail)
	if len(move) == 0 {
		return db.fatal(newErr(BadAvail, "header avail table empty but reported full", nil))
	}

	cap32 := db.header.Avail.Capacity
	w := db.header.OffWidth()
	blockLen := int64(wire.AvailBlockHeaderSize(w)) + int64(cap32)*int64(wire.AvailElemSize(w))

	blockOff, err := db.growFile(int32(blockLen))
	if err != nil {
		return err
	}

	newBlock := wire.AvailTable{Capacity: cap32, NextBlock: db.header.Avail.NextBlock, Elems: move}

	buf := wire.EncodeAvailBlock(w, newBlock)
	if _, err := db.file.WriteAt(buf, blockOff); err != nil {
		return db.fatal(newErr(FileWriteError, "write overflow avail block", err))
	}

	db.header.Avail.Elems = keep
	db.header.Avail.NextBlock = blockOff

	return nil
}

// takeFromOverflow walks the header's overflow chain looking for an
// extent of at least size bytes. A block that yields an entry is
// rewritten in place; a fully drained block is left on disk (its own
// space is not reclaimed), a known simplification from the original
// engine's fuller overflow-block bookkeeping.
func (db *DB) takeFromOverflow(size int32) (int64, bool, error) {
	w := db.header.OffWidth()
	next := db.header.Avail.NextBlock

	for next != 0 {
		blockLen := int64(wire.AvailBlockHeaderSize(w)) + peekCapacityGuess(db, w, next)

		buf := make([]byte, blockLen)
		if _, err := db.file.ReadAt(buf, next); err != nil {
			return 0, false, db.fatal(newErr(FileReadError, db.path, err))
		}

		t, err := wire.DecodeAvailBlock(buf, w)
		if err != nil {
			return 0, false, db.fatal(newErr(BadAvail, db.path, err))
		}

		idx, ok := avail.FirstFit(&t, size)
		if !ok {
			next = t.NextBlock
			continue
		}

		e := avail.RemoveAt(&t, idx)

		if leftover := e.Size - size; leftover > wire.IgnoreSize {
			avail.Insert(&t, wire.AvailElem{Size: leftover, Offset: e.Offset + int64(size)}, db.coalesceBlocks)
		}

		out := wire.EncodeAvailBlock(w, t)
		if _, err := db.file.WriteAt(out, next); err != nil {
			return 0, false, db.fatal(newErr(FileWriteError, db.path, err))
		}

		db.metrics.AvailAlloc(size)

		return e.Offset, true, nil
	}

	return 0, false, nil
}

// peekCapacityGuess returns the byte length of an overflow block's entry
// array, sized by the header's own avail capacity, which every overflow
// block this engine writes shares (see pushHeaderOverflow).
func peekCapacityGuess(db *DB, w int, _ int64) int64 {
	return int64(db.header.Avail.Capacity) * int64(wire.AvailElemSize(w))
}
