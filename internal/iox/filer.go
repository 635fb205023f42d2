// Package iox provides the file-level abstraction the storage engine runs
// on: positioned reads/writes, sync, truncate, and an optional sliding
// memory-mapped read window. A second, fault-injecting implementation of
// the same interface lets tests exercise short-read and write-failure
// paths without corrupting real files.
package iox

import (
	"io"
	"os"
)

// Filer is everything the engine needs from an open database file. It
// mirrors the shape of a single [os.File], not a general filesystem: the
// engine only ever has one file open at a time (plus, transiently, the
// temporary file Reorganize builds, which gets its own Filer).
type Filer interface {
	// ReadAt reads len(p) bytes starting at off, retrying on short reads
	// from the underlying descriptor. It returns io.ErrUnexpectedEOF if
	// the file is shorter than off+len(p), never a partial read.
	ReadAt(p []byte, off int64) (int, error)

	// WriteAt writes all of p at off, retrying on short writes.
	WriteAt(p []byte, off int64) (int, error)

	// Size returns the current file size.
	Size() (int64, error)

	// Truncate sets the file length, growing or shrinking it.
	Truncate(size int64) error

	// Sync commits file contents and metadata to stable storage.
	Sync() error

	// Fd returns the underlying descriptor, used by the lock manager.
	Fd() uintptr

	// Close releases the descriptor. Any mapped window is unmapped first.
	Close() error

	// Mmap returns a read-only view of [off, off+length) of the file,
	// sliding the internal mapped window as needed. The returned slice is
	// only valid until the next call to Mmap or Close. A Filer that does
	// not support mmap (or was opened with mmap disabled) returns
	// ErrMmapDisabled, and callers fall back to ReadAt.
	Mmap(off, length int64) ([]byte, error)
}

// ErrMmapDisabled is returned by Filer.Mmap when the underlying
// implementation has no memory-mapped fast path available.
var ErrMmapDisabled = errMmapDisabled{}

type errMmapDisabled struct{}

func (errMmapDisabled) Error() string { return "iox: mmap disabled for this filer" }

// OpenReal opens (or creates) path as a real, syscall-backed Filer.
func OpenReal(path string, flag int, perm os.FileMode, opts RealOptions) (Filer, error) {
	f, err := os.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return newReal(f, opts), nil
}

// RealOptions tunes the real filer's optional mmap fast path.
type RealOptions struct {
	// MmapEnabled turns on the sliding read-only mmap window.
	MmapEnabled bool

	// MaxWindow bounds the size of the mapped window in bytes. The window
	// slides (remaps) when a read falls outside it. Zero selects a
	// sensible default.
	MaxWindow int64
}

// compile-time checks that *os.File satisfies enough of Filer's shape to
// be wrapped directly; the real implementation embeds it.
var _ interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
} = (*os.File)(nil)
