package gdbm

import (
	"context"
	"os"
	"time"

	"github.com/sailfishos-mirror/gdbm/internal/bucketcache"
	"github.com/sailfishos-mirror/gdbm/internal/iox"
	"github.com/sailfishos-mirror/gdbm/internal/lockmgr"
)

// Reorganize compacts the database: every live key/value is rewritten
// into a fresh file with empty avail tables and a minimal directory, and
// the original file is atomically replaced. It is the only operation that
// can shrink a database that has accumulated a lot of free space.
func (db *DB) Reorganize() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.checkWritable(); err != nil {
		return err
	}

	if err := db.flushLocked(); err != nil {
		return err
	}

	tmpPath := db.path + ".reorg.tmp"

	tmp, err := Open(tmpPath, OpenOptions{
		Flags:             NewDB | NoLock,
		BlockSize:         int(db.header.BlockSize),
		CacheSize:         defaultCacheSize,
		NoCoalesce:        !db.coalesceBlocks,
		CentralFreeBlocks: db.centralFree,
	})
	if err != nil {
		return newErr(FileOpenError, tmpPath, err)
	}

	if err := db.copyAllInto(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)

		return err
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return newErr(FileCloseError, tmpPath, err)
	}

	if err := db.swapInLocked(tmpPath); err != nil {
		return err
	}

	return nil
}

func (db *DB) copyAllInto(tmp *DB) error {
	key, err := db.keyFrom(0, -1, 0)

	for err == nil {
		data, ferr := db.fetchLocked(key)
		if ferr != nil {
			return ferr
		}

		if serr := tmp.storeLocked(key, data, Replace); serr != nil {
			return serr
		}

		key, err = db.nextKeyFrom(key)
	}

	if code, ok := errCodeOf(err); ok && code == ItemNotFound {
		return nil
	}

	return err
}

// swapInLocked releases the current file/lock, renames tmpPath over
// db.path, and reopens the handle against the replacement file in place,
// preserving the caller's *DB identity and lock state.
func (db *DB) swapInLocked(tmpPath string) error {
	if db.flock != nil {
		_ = db.flock.Release(db.osFile)
	}

	_ = db.file.Close()

	if err := os.Rename(tmpPath, db.path); err != nil {
		return newErr(FileWriteError, db.path, err)
	}

	f, err := os.OpenFile(db.path, os.O_RDWR, 0)
	if err != nil {
		return newErr(FileOpenError, db.path, err)
	}

	db.osFile = f
	db.file = iox.NewReal(f, iox.RealOptions{MmapEnabled: true})

	if !db.noLock {
		lock, err := lockmgr.Acquire(context.Background(), f, db.path, lockmgr.Options{
			Mode:    lockmgr.Exclusive,
			Wait:    lockmgr.WaitRetry,
			Timeout: 5 * time.Second,
		})
		if err != nil {
			return newErr(CantBeWriter, db.path, err)
		}

		db.flock = lock
	}

	if err := db.openExisting(); err != nil {
		return err
	}

	db.cache = bucketcache.New(defaultCacheSize)

	return nil
}

func errCodeOf(err error) (Code, bool) {
	e, ok := err.(*Error)
	if !ok {
		return 0, false
	}

	return e.Code, true
}
