package gdbm

import (
	"bytes"

	"github.com/sailfishos-mirror/gdbm/internal/wire"
)

// Store inserts or replaces key with data, per mode.
func (db *DB) Store(key, data []byte, mode StoreMode) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.storeLocked(key, data, mode)
}

func (db *DB) storeLocked(key, data []byte, mode StoreMode) error {
	if err := db.checkWritable(); err != nil {
		return err
	}

	hash := wire.Hash(key)

	b, _, offset, err := db.bucketFor(hash)
	if err != nil {
		return err
	}

	if idx := findSlot(db, b, hash, key); idx >= 0 {
		if mode == Insert {
			return newErr(CannotReplace, "key already exists", nil)
		}

		old := b.Table[idx]

		if err := db.freeRecord(b, wire.AvailElem{Size: old.KeySize + old.DataSize, Offset: old.DataPointer}); err != nil {
			return err
		}

		recOff, err := db.allocRecord(b, int32(len(key)+len(data)))
		if err != nil {
			return err
		}

		if err := db.writeRecord(recOff, key, data); err != nil {
			return err
		}

		b.Table[idx].DataPointer = recOff
		b.Table[idx].KeySize = int32(len(key))
		b.Table[idx].DataSize = int32(len(data))
		setKeyStart(&b.Table[idx], key)

		db.touchDirty(offset)

		return db.syncIfRequested()
	}

	b, offset, err = db.ensureRoom(hash, offset)
	if err != nil {
		return err
	}

	recOff, err := db.allocRecord(b, int32(len(key)+len(data)))
	if err != nil {
		return err
	}

	if err := db.writeRecord(recOff, key, data); err != nil {
		return err
	}

	slot := -1

	for i := range b.Table {
		if b.Table[i].Empty() {
			slot = i
			break
		}
	}

	if slot < 0 {
		return db.fatal(newErr(BadBucket, "no empty slot after ensureRoom", nil))
	}

	b.Table[slot] = wire.BucketElem{
		HashValue:   hash,
		DataPointer: recOff,
		KeySize:     int32(len(key)),
		DataSize:    int32(len(data)),
	}
	setKeyStart(&b.Table[slot], key)
	b.Count++

	db.touchDirty(offset)

	return db.syncIfRequested()
}

// Fetch returns the value stored for key, or a *Error with Code
// ItemNotFound if it is absent.
func (db *DB) Fetch(key []byte) ([]byte, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.fetchLocked(key)
}

func (db *DB) fetchLocked(key []byte) ([]byte, error) {
	hash := wire.Hash(key)

	b, _, _, err := db.bucketFor(hash)
	if err != nil {
		return nil, err
	}

	idx := findSlot(db, b, hash, key)
	if idx < 0 {
		return nil, newErr(ItemNotFound, "key not found", nil)
	}

	e := b.Table[idx]

	data := make([]byte, e.DataSize)
	if _, err := db.file.ReadAt(data, e.DataPointer+int64(e.KeySize)); err != nil {
		return nil, db.fatal(newErr(FileReadError, db.path, err))
	}

	return data, nil
}

// Exists reports whether key is present, without reading its value.
func (db *DB) Exists(key []byte) (bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	hash := wire.Hash(key)

	b, _, _, err := db.bucketFor(hash)
	if err != nil {
		return false, err
	}

	return findSlot(db, b, hash, key) >= 0, nil
}

// Delete removes key, returning ItemNotFound if it is absent.
func (db *DB) Delete(key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.checkWritable(); err != nil {
		return err
	}

	hash := wire.Hash(key)

	b, _, offset, err := db.bucketFor(hash)
	if err != nil {
		return err
	}

	idx := findSlot(db, b, hash, key)
	if idx < 0 {
		return newErr(ItemNotFound, "key not found", nil)
	}

	e := b.Table[idx]

	if err := db.freeRecord(b, wire.AvailElem{Size: e.KeySize + e.DataSize, Offset: e.DataPointer}); err != nil {
		return err
	}

	b.Table[idx] = wire.BucketElem{HashValue: wire.EmptyHash}
	b.Count--

	db.touchDirty(offset)

	return db.syncIfRequested()
}

// findSlot linearly scans b for a live slot whose hash matches and whose
// full key (read from disk, past the cheap key_start/hash pre-filter)
// equals key. Returns -1 if absent.
func findSlot(db *DB, b *wire.Bucket, hash int32, key []byte) int {
	for i := range b.Table {
		e := &b.Table[i]

		if e.Empty() || e.HashValue != hash {
			continue
		}

		if int(e.KeySize) != len(key) {
			continue
		}

		n := len(key)
		if n > 4 {
			n = 4
		}

		if !bytes.Equal(e.KeyStart[:n], key[:n]) {
			continue
		}

		stored := make([]byte, e.KeySize)
		if _, err := db.file.ReadAt(stored, e.DataPointer); err != nil {
			continue
		}

		if bytes.Equal(stored, key) {
			return i
		}
	}

	return -1
}

func setKeyStart(e *wire.BucketElem, key []byte) {
	n := copy(e.KeyStart[:], key)
	for ; n < len(e.KeyStart); n++ {
		e.KeyStart[n] = 0
	}
}

func (db *DB) writeRecord(offset int64, key, data []byte) error {
	buf := make([]byte, len(key)+len(data))
	copy(buf, key)
	copy(buf[len(key):], data)

	if _, err := db.file.WriteAt(buf, offset); err != nil {
		return db.fatal(newErr(FileWriteError, db.path, err))
	}

	return nil
}
