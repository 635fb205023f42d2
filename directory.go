package gdbm

import (
	"github.com/sailfishos-mirror/gdbm/internal/wire"
)

// loadBucket returns the bucket at offset, from cache if present,
// otherwise reading and decoding it from disk and caching the result.
func (db *DB) loadBucket(offset int64) (*wire.Bucket, error) {
	if b, ok := db.cache.Get(offset); ok {
		db.metrics.CacheHit()
		return b, nil
	}

	db.metrics.CacheMiss()

	buf := make([]byte, db.header.BucketSize)
	if _, err := db.file.ReadAt(buf, offset); err != nil {
		return nil, db.fatal(newErr(FileReadError, db.path, err))
	}

	b, err := wire.DecodeBucket(buf, db.header.OffWidth(), int(db.header.BucketElems))
	if err != nil {
		return nil, db.fatal(newErr(BadBucket, db.path, err))
	}

	if evicted, ok := db.cache.Put(offset, b, false); ok {
		if err := db.writeBucketAt(evicted.Offset, evicted.Bucket); err != nil {
			return nil, err
		}

		db.metrics.CacheEvict()
	}

	return b, nil
}

// touchDirty marks the cached bucket at offset as needing write-back.
func (db *DB) touchDirty(offset int64) {
	db.cache.MarkDirty(offset)
}

func (db *DB) writeBucketAt(offset int64, b *wire.Bucket) error {
	buf, err := wire.EncodeBucket(b, db.header.OffWidth(), int(db.header.BucketSize))
	if err != nil {
		return db.fatal(newErr(BadBucket, db.path, err))
	}

	if _, err := db.file.WriteAt(buf, offset); err != nil {
		return db.fatal(newErr(FileWriteError, db.path, err))
	}

	return nil
}

// bucketFor returns the bucket owning key's hash, along with the
// directory index it was reached through and the bucket's file offset.
func (db *DB) bucketFor(hash int32) (b *wire.Bucket, dirIdx int64, offset int64, err error) {
	dirIdx = wire.DirIndex(hash, db.header.DirBits)
	if dirIdx < 0 || int(dirIdx) >= len(db.dir) {
		return nil, 0, 0, db.fatal(newErr(BadDirEntry, db.path, nil))
	}

	offset = db.dir[dirIdx]

	b, err = db.loadBucket(offset)
	if err != nil {
		return nil, 0, 0, err
	}

	return b, dirIdx, offset, nil
}

// ensureRoom makes sure a bucket has at least one empty slot for a new
// key, splitting it (and doubling the directory first, if its local
// depth has caught up with the global depth) as many times as needed --
// a split does not guarantee the two halves are non-full when all
// entries happen to share the same extra hash bit, so this loops.
func (db *DB) ensureRoom(hash int32, offset int64) (*wire.Bucket, int64, error) {
	for {
		b, err := db.loadBucket(offset)
		if err != nil {
			return nil, 0, err
		}

		if b.Count < int32(len(b.Table)) {
			return b, offset, nil
		}

		if err := db.splitBucket(offset, b); err != nil {
			return nil, 0, err
		}

		dirIdx := wire.DirIndex(hash, db.header.DirBits)
		offset = db.dir[dirIdx]
	}
}

// splitBucket divides a full bucket's entries between it and a freshly
// allocated sibling, one bit deeper, doubling the directory first if the
// bucket's local depth has reached the directory's global depth.
func (db *DB) splitBucket(offset int64, b *wire.Bucket) error {
	if b.BucketBits >= db.header.DirBits {
		if err := db.doubleDirectory(); err != nil {
			return err
		}
	}

	newBits := b.BucketBits + 1

	sibling := wire.NewBucket(len(b.Table), newBits)
	kept := wire.NewBucket(len(b.Table), newBits)

	for _, e := range b.Table {
		if e.Empty() {
			continue
		}

		if wire.BucketBitPrefix(e.HashValue, newBits) == 1 {
			placeElem(sibling, e)
		} else {
			placeElem(kept, e)
		}
	}

	// Distributed avail entries stay with the original (now "kept")
	// bucket rather than being redivided between the two halves; the
	// sibling starts with an empty avail table and earns its own entries
	// over time. adjustBucketAvail amortizes any resulting imbalance.
	kept.Avail = b.Avail

	siblingOffset, err := db.growFile(db.header.BucketSize)
	if err != nil {
		return err
	}

	if err := db.writeBucketAt(siblingOffset, sibling); err != nil {
		return err
	}

	*b = *kept
	db.touchDirty(offset)

	for i := range db.dir {
		if db.dir[i] != offset {
			continue
		}

		h := int32(i) << uint(wire.HashBits-int(db.header.DirBits))
		if wire.BucketBitPrefix(h, newBits) == 1 {
			db.dir[i] = siblingOffset
		}
	}

	db.dirDirty = true

	return nil
}

func placeElem(b *wire.Bucket, e wire.BucketElem) {
	for i := range b.Table {
		if b.Table[i].Empty() {
			b.Table[i] = e
			b.Count++
			return
		}
	}
}

// doubleDirectory doubles the directory's entry count, duplicating every
// existing pointer into the two new slots it maps to.
func (db *DB) doubleDirectory() error {
	newDir := make([]int64, len(db.dir)*2)

	for i, off := range db.dir {
		newDir[2*i] = off
		newDir[2*i+1] = off
	}

	db.dir = newDir
	db.header.DirBits++
	db.header.DirSize = int32(wire.DirSizeBytes(int(db.header.DirBits), db.header.OffWidth()))

	newOffset, err := db.growFile(db.header.DirSize)
	if err != nil {
		return err
	}

	db.header.DirOffset = newOffset
	db.headerDirty = true
	db.dirDirty = true

	return nil
}
