package gdbm

import (
	"time"

	"github.com/sailfishos-mirror/gdbm/internal/logx"
	"github.com/sailfishos-mirror/gdbm/internal/metrics"
)

// OpenFlag is a bitmask selecting how Open treats the file.
type OpenFlag int

const (
	// Reader opens the database read-only; no lock beyond a shared one is
	// taken, and mutating calls fail with CantBeWriter.
	Reader OpenFlag = 1 << iota
	// Writer opens the database read-write, taking an exclusive lock.
	Writer
	// WRCreat is Writer, additionally creating the file if it is missing.
	WRCreat
	// NewDB always creates a fresh, empty database, truncating any
	// existing file at the path.
	NewDB
	// NoLock disables the advisory file lock entirely. The caller takes on
	// responsibility for serializing access.
	NoLock
	// NoMmap turns off the file layer's memory-mapped window (reported by
	// OptMmapEnable). The engine reads through ReadAt whether or not it is
	// set.
	NoMmap
	// Sync fsyncs the file after every mutating operation instead of only
	// on Close/Sync.
	Sync
	// CloExec sets close-on-exec on the underlying descriptor.
	CloExec
	// Numsync selects the numsync header format for a newly created
	// database (ignored when opening an existing file).
	Numsync
)

func (f OpenFlag) has(bit OpenFlag) bool { return f&bit != 0 }

// StoreMode selects Store's collision behavior.
type StoreMode int

const (
	// Insert fails with CannotReplace if the key already exists.
	Insert StoreMode = iota
	// Replace overwrites an existing key's value.
	Replace
)

// OpenOptions configures Open beyond the OpenFlag bitmask.
type OpenOptions struct {
	Flags OpenFlag

	// BlockSize is the block size used when creating a new database. Zero
	// selects 4096 bytes; the filesystem's preferred I/O block size is not
	// consulted.
	BlockSize int

	// CacheSize is the number of buckets the in-memory bucket cache holds.
	// Zero selects a small built-in default.
	CacheSize int

	// LockTimeout bounds how long Open waits to acquire the file lock when
	// LockWait is LockWaitRetry or LockWaitSignal.
	LockTimeout time.Duration

	// LockWait selects the wait policy used to acquire the file lock.
	// Zero value is LockWaitNone (fail fast), matching the original engine's
	// default of never blocking unless asked.
	LockWait LockWaitPolicy

	// CentralFreeBlocks, when true, biases newly freed space toward the
	// header-resident avail table rather than leaving it distributed
	// across buckets (see the Reorganize/avail design notes).
	CentralFreeBlocks bool

	// NoCoalesce disables merging of adjacent free extents on Free.
	// Coalescing is on by default, matching the original engine; set
	// this to opt out, or flip it later via SetOpt(OptCoalesceBlocks).
	NoCoalesce bool

	// Metrics receives counters and timings for cache hits/misses/
	// evictions, avail allocation/free sizes, lock wait times, and
	// syncs. Defaults to a no-op sink; construct a *metrics.Prom to wire
	// it to Prometheus.
	Metrics metrics.Sink

	// Logger receives the warnings Recover emits about corrupt buckets and
	// out-of-range directory entries. Defaults to a discarding logger; use
	// logx.Glog{} to route through glog.
	Logger logx.Logger
}

// LockWaitPolicy mirrors lockmgr.WaitPolicy without exposing the internal
// package in the public API.
type LockWaitPolicy int

const (
	LockWaitNone LockWaitPolicy = iota
	LockWaitRetry
	LockWaitSignal
)

// OptCode selects a runtime-tunable parameter for SetOpt/GetOpt. Naming
// and numbering follow the original engine's GDBM_SETOPT/GDBM_GETOPT
// codes; not every code is writable (SetOpt rejects those with
// OptBadVal) and some are read-only by nature (the file's own geometry).
type OptCode int

const (
	// OptCachesize: SetOpt sets the bucket cache's capacity; GetOpt
	// reports how many buckets are currently cached, not the capacity.
	OptCachesize OptCode = iota
	// OptCoalesceBlocks toggles adjacent free-extent merging on Free.
	// Read/write.
	OptCoalesceBlocks
	// OptCentralFreeBlocks toggles biasing freed space to the header's
	// central avail table. Read/write.
	OptCentralFreeBlocks
	// OptSyncMode toggles fsync-after-every-write. Read/write.
	OptSyncMode
	// OptMmapSize is the mmap window size. Accepted for API
	// compatibility; this engine fixes the window at Open time.
	OptMmapSize
	// OptAutoCache is an auto-cache flag stored on the handle. Read/write;
	// nothing in the engine reads it, so the cache is never resized
	// automatically.
	OptAutoCache
	// OptMmapEnable reports or toggles the handle's mmap flag (initially
	// the inverse of NoMmap). Read/write; the engine reads through ReadAt
	// whatever its value.
	OptMmapEnable
	// OptBlockSize is the file's block size. Read-only.
	OptBlockSize
	// OptDirDepth is the directory's current bit depth. Read-only.
	OptDirDepth
	// OptBucketSize is the on-disk size, in bytes, of one bucket.
	// Read-only.
	OptBucketSize
	// OptDBName reports the path the handle was opened with, via
	// GetOptString; GetOpt rejects it with OptBadVal. Read-only.
	OptDBName
	// OptDBFormat reports the on-disk format: 0 old, 1 standard,
	// 2 numsync. Read-only.
	OptDBFormat
	// OptOpenFlags reports the OpenFlag bits the handle was opened
	// with. Read-only.
	OptOpenFlags
)
