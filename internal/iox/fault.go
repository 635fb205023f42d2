package iox

import (
	"io"
	"sync"
)

// Fault wraps a Filer and lets tests inject deterministic failures: short
// reads, write errors, and sync errors, at a chosen byte offset or after a
// chosen number of calls. It exists so the NEED_RECOVERY and durability
// paths in the engine can be exercised without truncating or corrupting a
// real file out from under a running test.
type Fault struct {
	mu       sync.Mutex
	inner    Filer
	ReadErr  error // returned verbatim by the next matching ReadAt
	WriteErr error // returned verbatim by the next matching WriteAt
	SyncErr  error

	// TruncateReadsAt, if non-negative, caps every ReadAt as though the
	// file were only this many bytes long, producing io.ErrUnexpectedEOF
	// for any read that extends past it.
	TruncateReadsAt int64

	FailAfterReads  int // <=0 disables
	FailAfterWrites int
	reads, writes   int
}

// NewFault wraps inner. TruncateReadsAt defaults to -1 (disabled).
func NewFault(inner Filer) *Fault {
	return &Fault{inner: inner, TruncateReadsAt: -1}
}

func (f *Fault) ReadAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	f.reads++

	if f.ReadErr != nil {
		err := f.ReadErr
		f.ReadErr = nil
		f.mu.Unlock()

		return 0, err
	}

	if f.FailAfterReads > 0 && f.reads > f.FailAfterReads {
		f.mu.Unlock()
		return 0, io.ErrUnexpectedEOF
	}

	trunc := f.TruncateReadsAt
	f.mu.Unlock()

	if trunc >= 0 && off+int64(len(p)) > trunc {
		if off >= trunc {
			return 0, io.ErrUnexpectedEOF
		}

		short := make([]byte, trunc-off)

		n, err := f.inner.ReadAt(short, off)
		if err != nil {
			return n, err
		}

		copy(p, short)

		return n, io.ErrUnexpectedEOF
	}

	return f.inner.ReadAt(p, off)
}

func (f *Fault) WriteAt(p []byte, off int64) (int, error) {
	f.mu.Lock()
	f.writes++

	if f.WriteErr != nil {
		err := f.WriteErr
		f.WriteErr = nil
		f.mu.Unlock()

		return 0, err
	}

	if f.FailAfterWrites > 0 && f.writes > f.FailAfterWrites {
		f.mu.Unlock()
		return 0, io.ErrShortWrite
	}

	f.mu.Unlock()

	return f.inner.WriteAt(p, off)
}

func (f *Fault) Size() (int64, error) { return f.inner.Size() }

func (f *Fault) Truncate(size int64) error { return f.inner.Truncate(size) }

func (f *Fault) Sync() error {
	f.mu.Lock()
	if f.SyncErr != nil {
		err := f.SyncErr
		f.SyncErr = nil
		f.mu.Unlock()

		return err
	}
	f.mu.Unlock()

	return f.inner.Sync()
}

func (f *Fault) Fd() uintptr { return f.inner.Fd() }

func (f *Fault) Close() error { return f.inner.Close() }

func (f *Fault) Mmap(off, length int64) ([]byte, error) { return f.inner.Mmap(off, length) }
