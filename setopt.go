package gdbm

import "github.com/sailfishos-mirror/gdbm/internal/wire"

// resizeCache changes the bucket cache's capacity in place, writing back
// whatever entries shrinking evicts. The most-recently-used bucket --
// whichever one the caller was last operating on -- is never evicted
// unless capacity shrinks the cache down to nothing, since Resize walks
// from the LRU end.
func (db *DB) resizeCache(capacity int) error {
	for _, e := range db.cache.Resize(capacity) {
		if err := db.writeBucketAt(e.Offset, e.Bucket); err != nil {
			return err
		}
	}

	return nil
}

// SetOpt changes a runtime-tunable parameter. Not every OptCode is
// writable after Open; OptCachesize is the common case callers use.
// Codes describing the file's fixed geometry or identity (OptBlockSize,
// OptDirDepth, OptBucketSize, OptDBName, OptDBFormat, OptOpenFlags) are
// read-only and rejected here with OptBadVal.
func (db *DB) SetOpt(code OptCode, value int) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch code {
	case OptCachesize:
		if value <= 0 {
			return newErr(OptBadVal, "cachesize must be positive", nil)
		}

		return db.resizeCache(value)
	case OptCoalesceBlocks:
		db.coalesceBlocks = value != 0
	case OptCentralFreeBlocks:
		db.centralFree = value != 0
	case OptSyncMode:
		db.syncMode = value != 0
	case OptMmapSize:
		// Accepted for API compatibility; the mmap window size is fixed
		// at Open time via iox.RealOptions.MaxWindow in this engine.
	case OptAutoCache:
		db.autoCache = value != 0
	case OptMmapEnable:
		db.mmapEnabled = value != 0
	default:
		return newErr(OptBadVal, "unknown or read-only option code", nil)
	}

	return nil
}

// GetOpt reads back a runtime-tunable or informational parameter as an
// int. OptDBName is string-valued and is rejected here; use
// GetOptString for it.
func (db *DB) GetOpt(code OptCode) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch code {
	case OptCachesize:
		return db.cache.Len(), nil
	case OptCoalesceBlocks:
		return boolToInt(db.coalesceBlocks), nil
	case OptCentralFreeBlocks:
		return boolToInt(db.centralFree), nil
	case OptSyncMode:
		return boolToInt(db.syncMode), nil
	case OptAutoCache:
		return boolToInt(db.autoCache), nil
	case OptMmapEnable:
		return boolToInt(db.mmapEnabled), nil
	case OptBlockSize:
		return int(db.header.BlockSize), nil
	case OptDirDepth:
		return int(db.header.DirBits), nil
	case OptBucketSize:
		return int(db.header.BucketSize), nil
	case OptDBFormat:
		return dbFormat(db.header.Magic), nil
	case OptOpenFlags:
		return int(db.openFlags), nil
	default:
		return 0, newErr(OptBadVal, "unknown or unreadable option code", nil)
	}
}

// GetOptString reads back a string-valued parameter. OptDBName is
// currently the only one.
func (db *DB) GetOptString(code OptCode) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	switch code {
	case OptDBName:
		return db.path, nil
	default:
		return "", newErr(OptBadVal, "unknown or non-string option code", nil)
	}
}

// dbFormat classifies magic the way the original engine's
// GDBM_GETDB_FORMAT does: 0 old-style, 1 standard, 2 numsync.
func dbFormat(magic uint32) int {
	switch {
	case magic == wire.MagicOld:
		return 0
	case wire.IsNumsync(magic):
		return 2
	default:
		return 1
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}

	return 0
}
