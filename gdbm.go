// Package gdbm is an embedded, single-file, extendible-hashing key/value
// store modelled on the on-disk format of GNU dbm. Keys are hashed with
// FNV-1a rather than GNU dbm's own hash, so its files are not
// interchangeable with GNU dbm's. A DB is a handle
// on one such file: opening it reads the header and directory into memory
// and takes an advisory lock; every other operation (Store, Fetch,
// Delete, iteration, Reorganize, Dump/Load, Recover) works against that
// handle.
//
// A DB is not safe for concurrent use from multiple goroutines without
// external synchronization beyond what the file lock provides -- the file
// lock serializes access across processes, not goroutines within one.
package gdbm

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sailfishos-mirror/gdbm/internal/bucketcache"
	"github.com/sailfishos-mirror/gdbm/internal/iox"
	"github.com/sailfishos-mirror/gdbm/internal/lockmgr"
	"github.com/sailfishos-mirror/gdbm/internal/logx"
	"github.com/sailfishos-mirror/gdbm/internal/metrics"
	"github.com/sailfishos-mirror/gdbm/internal/wire"
)

const defaultCacheSize = 100

// DB is an open handle on a GDBM-format database file.
type DB struct {
	mu sync.Mutex

	path        string
	osFile      *os.File
	file        iox.Filer
	flock       *lockmgr.Lock
	readOnly    bool
	noLock      bool
	syncMode    bool
	openFlags   OpenFlag
	mmapEnabled bool
	autoCache   bool

	header       wire.Header
	headerDirty  bool
	dir          []int64
	dirDirty     bool

	cache *bucketcache.Cache

	coalesceBlocks bool
	centralFree    bool

	metrics metrics.Sink
	logger  logx.Logger

	needsRecovery bool
	lastErr       error
}

// Open opens or creates the database at path according to opts.
func Open(path string, opts OpenOptions) (*DB, error) {
	if err := validateFlags(opts.Flags); err != nil {
		return nil, err
	}

	db := &DB{
		path:           path,
		readOnly:       opts.Flags.has(Reader),
		noLock:         opts.Flags.has(NoLock),
		syncMode:       opts.Flags.has(Sync),
		openFlags:      opts.Flags,
		mmapEnabled:    !opts.Flags.has(NoMmap),
		coalesceBlocks: !opts.NoCoalesce,
		centralFree:    opts.CentralFreeBlocks,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
	}

	if db.metrics == nil {
		db.metrics = metrics.Noop
	}

	if db.logger == nil {
		db.logger = logx.Discard
	}

	osFlag, perm := osOpenFlags(opts.Flags)

	f, err := os.OpenFile(path, osFlag, perm)
	if err != nil {
		return nil, newErr(FileOpenError, path, err)
	}

	db.osFile = f

	realOpts := iox.RealOptions{MmapEnabled: db.mmapEnabled}
	db.file = iox.NewReal(f, realOpts)

	if err := db.acquireLock(opts); err != nil {
		_ = f.Close()
		return nil, err
	}

	fresh := opts.Flags.has(NewDB)
	if !fresh {
		size, sizeErr := db.file.Size()
		if sizeErr != nil {
			db.cleanupFailedOpen()
			return nil, newErr(FileStatError, path, sizeErr)
		}

		fresh = size == 0 && opts.Flags.has(WRCreat)
	}

	if fresh {
		if err := db.createFresh(opts); err != nil {
			db.cleanupFailedOpen()
			return nil, err
		}
	} else {
		if err := db.openExisting(); err != nil {
			db.cleanupFailedOpen()
			return nil, err
		}
	}

	cacheSize := opts.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}

	db.cache = bucketcache.New(cacheSize)

	return db, nil
}

func (db *DB) cleanupFailedOpen() {
	if db.flock != nil {
		_ = db.flock.Release(db.osFile)
	}

	_ = db.osFile.Close()
}

func validateFlags(f OpenFlag) error {
	count := 0
	for _, bit := range []OpenFlag{Reader, Writer, WRCreat, NewDB} {
		if f.has(bit) {
			count++
		}
	}

	if count != 1 {
		return newErr(BadOpenFlags, "exactly one of Reader, Writer, WRCreat, NewDB must be set", nil)
	}

	return nil
}

func osOpenFlags(f OpenFlag) (int, os.FileMode) {
	switch {
	case f.has(Reader):
		return os.O_RDONLY, 0
	case f.has(NewDB):
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, 0666
	case f.has(WRCreat):
		return os.O_RDWR | os.O_CREATE, 0666
	default: // Writer
		return os.O_RDWR, 0
	}
}

func (db *DB) acquireLock(opts OpenOptions) error {
	if db.noLock {
		return nil
	}

	mode := lockmgr.Exclusive
	if db.readOnly {
		mode = lockmgr.Shared
	}

	wait := lockmgr.WaitNone
	switch opts.LockWait {
	case LockWaitRetry:
		wait = lockmgr.WaitRetry
	case LockWaitSignal:
		wait = lockmgr.WaitSignal
	}

	start := time.Now()

	lock, err := lockmgr.Acquire(context.Background(), db.osFile, db.path, lockmgr.Options{
		Mode:          mode,
		Wait:          wait,
		Timeout:       opts.LockTimeout,
		RetryInterval: 50 * time.Millisecond,
	})

	db.metrics.LockWait(modeLabel(mode), time.Since(start))

	if err != nil {
		code := CantBeWriter
		if db.readOnly {
			code = CantBeReader
		}

		return newErr(code, db.path, err)
	}

	db.flock = lock

	return nil
}

func modeLabel(m lockmgr.Mode) string {
	if m == lockmgr.Exclusive {
		return "exclusive"
	}

	return "shared"
}

// Close flushes any cached writes and releases the database handle. Close
// is safe to call once; calling it again is a programming error.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	var firstErr error

	if !db.readOnly {
		if err := db.flushLocked(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if db.flock != nil {
		if err := db.flock.Release(db.osFile); err != nil && firstErr == nil {
			firstErr = newErr(FileCloseError, db.path, err)
		}
	}

	if err := db.file.Close(); err != nil && firstErr == nil {
		firstErr = newErr(FileCloseError, db.path, err)
	}

	return firstErr
}

// Sync flushes cached buckets, the directory, and the header, then fsyncs
// the underlying file.
func (db *DB) Sync() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	return db.flushLocked()
}

func (db *DB) flushLocked() error {
	if db.readOnly {
		return nil
	}

	if err := db.cache.Flush(db.writeBucketAt); err != nil {
		return err
	}

	if db.dirDirty {
		if err := db.writeDirectory(); err != nil {
			return err
		}

		db.dirDirty = false
	}

	if db.headerDirty {
		if err := db.writeHeader(); err != nil {
			return err
		}

		db.headerDirty = false
	}

	if err := db.file.Sync(); err != nil {
		return db.fatal(newErr(FileSyncError, db.path, err))
	}

	db.metrics.Sync()

	return nil
}

// syncIfRequested fsyncs after a mutating call when the handle was opened
// with the Sync flag; otherwise buffered state is flushed on Close/Sync.
func (db *DB) syncIfRequested() error {
	if !db.syncMode {
		return nil
	}

	return db.flushLocked()
}

// fatal records err as the handle's sticky error, latching needsRecovery
// when the code demands it, and returns err unchanged for the caller to
// propagate.
func (db *DB) fatal(err *Error) *Error {
	db.lastErr = err

	if isFatal(err.Code) {
		db.needsRecovery = true
	}

	return err
}

// LastError returns the most recent error recorded on the handle, or nil.
func (db *DB) LastError() error { return db.lastErr }

// NeedsRecovery reports whether a prior operation left the database in a
// state where Recover should be run before further writes are trusted.
func (db *DB) NeedsRecovery() bool { return db.needsRecovery }

func (db *DB) checkWritable() error {
	if db.readOnly {
		return newErr(CantBeWriter, "database opened read-only", nil)
	}

	if db.needsRecovery {
		return newErr(NeedRecovery, "database needs recovery before further writes", nil)
	}

	return nil
}

func (db *DB) writeHeader() error {
	buf, err := wire.EncodeHeader(&db.header)
	if err != nil {
		return db.fatal(newErr(BadHeader, "encode header", err))
	}

	if int32(len(buf)) > db.header.BlockSize {
		return db.fatal(newErr(BlockSizeError, fmt.Sprintf("encoded header %d exceeds block size %d", len(buf), db.header.BlockSize), nil))
	}

	if _, err := db.file.WriteAt(buf, 0); err != nil {
		return db.fatal(newErr(FileWriteError, "write header", err))
	}

	return nil
}

func (db *DB) writeDirectory() error {
	buf := wire.EncodeDirectory(db.header.OffWidth(), db.dir)

	if _, err := db.file.WriteAt(buf, db.header.DirOffset); err != nil {
		return db.fatal(newErr(FileWriteError, "write directory", err))
	}

	return nil
}
