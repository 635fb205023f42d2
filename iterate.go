package gdbm

import "github.com/sailfishos-mirror/gdbm/internal/wire"

// FirstKey returns the first key in iteration order, or ItemNotFound if
// the database is empty. Iteration order is the bucket/slot layout, not
// insertion or sorted order, and is undefined across a Store or Delete
// that triggers a split or directory doubling.
func (db *DB) FirstKey() ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.keyFrom(0, -1, 0)
}

// NextKey returns the key following key in iteration order, or
// ItemNotFound once the end is reached.
func (db *DB) NextKey(key []byte) ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.nextKeyFrom(key)
}

func (db *DB) nextKeyFrom(key []byte) ([]byte, error) {
	hash := wire.Hash(key)

	b, dirIdx, _, err := db.bucketFor(hash)
	if err != nil {
		return nil, err
	}

	idx := findSlot(db, b, hash, key)
	if idx < 0 {
		return nil, newErr(ItemNotFound, "key not found", nil)
	}

	return db.keyFrom(dirIdx, idx, db.dir[dirIdx])
}

// keyFrom scans forward starting at (dirIdx, after elemIdx) within the
// bucket at lastOffset, then continues into subsequent, not-yet-visited
// buckets in directory order.
func (db *DB) keyFrom(dirIdx int64, elemIdx int, lastOffset int64) ([]byte, error) {
	for dirIdx < int64(len(db.dir)) {
		offset := db.dir[dirIdx]

		if offset != lastOffset {
			elemIdx = -1
			lastOffset = offset
		}

		b, err := db.loadBucket(offset)
		if err != nil {
			return nil, err
		}

		for i := elemIdx + 1; i < len(b.Table); i++ {
			if b.Table[i].Empty() {
				continue
			}

			return db.readKey(&b.Table[i])
		}

		// Exhausted this bucket; skip every remaining directory entry
		// still pointing at it before moving on to the next bucket.
		for dirIdx < int64(len(db.dir)) && db.dir[dirIdx] == offset {
			dirIdx++
		}
	}

	return nil, newErr(ItemNotFound, "no more keys", nil)
}

func (db *DB) readKey(e *wire.BucketElem) ([]byte, error) {
	key := make([]byte, e.KeySize)
	if _, err := db.file.ReadAt(key, e.DataPointer); err != nil {
		return nil, db.fatal(newErr(FileReadError, db.path, err))
	}

	return key, nil
}

// Count reports the number of stored key/value pairs. It walks every
// bucket once, the same cost as a full iteration.
func (db *DB) Count() (int64, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var count int64

	var lastOffset int64 = -1

	for _, offset := range db.dir {
		if offset == lastOffset {
			continue
		}

		lastOffset = offset

		b, err := db.loadBucket(offset)
		if err != nil {
			return 0, err
		}

		count += int64(b.Count)
	}

	return count, nil
}
