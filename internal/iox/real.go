package iox

import (
	"errors"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

const defaultMaxWindow = 64 << 20 // 64 MiB

// realFiler is the production Filer, backed by a real *os.File and an
// optional sliding mmap window served by Mmap.
type realFiler struct {
	f *os.File

	mu        sync.Mutex
	mmapOn    bool
	maxWindow int64

	mapped     []byte // currently mapped region, or nil
	winOff     int64  // file offset the mapping starts at
	winLen     int64  // length of the mapping
}

// NewReal wraps an already-open *os.File as a Filer. Used when the caller
// (the engine) must keep the *os.File itself around too, for the lock
// manager's fstat-identity checks.
func NewReal(f *os.File, opts RealOptions) Filer {
	return newReal(f, opts)
}

func newReal(f *os.File, opts RealOptions) *realFiler {
	win := opts.MaxWindow
	if win <= 0 {
		win = defaultMaxWindow
	}

	return &realFiler{f: f, mmapOn: opts.MmapEnabled, maxWindow: win}
}

func (r *realFiler) Fd() uintptr { return r.f.Fd() }

func (r *realFiler) Size() (int64, error) {
	fi, err := r.f.Stat()
	if err != nil {
		return 0, err
	}

	return fi.Size(), nil
}

func (r *realFiler) Truncate(size int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.unmapLocked()

	return r.f.Truncate(size)
}

func (r *realFiler) Sync() error {
	return r.f.Sync()
}

func (r *realFiler) Close() error {
	r.mu.Lock()
	r.unmapLocked()
	r.mu.Unlock()

	return r.f.Close()
}

// ReadAt retries until len(p) bytes are read or a real error/EOF occurs.
// Per the file I/O layer's contract, a file shorter than off+len(p) is
// reported as io.ErrUnexpectedEOF, never a silent partial read.
func (r *realFiler) ReadAt(p []byte, off int64) (int, error) {
	total := 0

	for total < len(p) {
		n, err := r.f.ReadAt(p[total:], off+int64(total))
		total += n

		if err != nil {
			if errors.Is(err, io.EOF) && total < len(p) {
				return total, io.ErrUnexpectedEOF
			}

			if total < len(p) {
				return total, err
			}

			break
		}

		if n == 0 {
			return total, io.ErrUnexpectedEOF
		}
	}

	return total, nil
}

// WriteAt retries short writes until all of p lands or a real error occurs.
func (r *realFiler) WriteAt(p []byte, off int64) (int, error) {
	total := 0

	for total < len(p) {
		n, err := r.f.WriteAt(p[total:], off+int64(total))
		total += n

		if err != nil {
			return total, err
		}

		if n == 0 {
			return total, io.ErrShortWrite
		}
	}

	r.mu.Lock()
	r.invalidateOverlapLocked(off, int64(len(p)))
	r.mu.Unlock()

	return total, nil
}

// Mmap returns the requested window, sliding the mapping if necessary.
func (r *realFiler) Mmap(off, length int64) ([]byte, error) {
	if !r.mmapOn {
		return nil, ErrMmapDisabled
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.mapped != nil && off >= r.winOff && off+length <= r.winOff+r.winLen {
		return r.mapped[off-r.winOff : off-r.winOff+length], nil
	}

	size, err := r.Size()
	if err != nil {
		return nil, err
	}

	// mmap offsets must be page-aligned; map from the page holding off.
	winOff := off &^ int64(os.Getpagesize()-1)
	need := off - winOff + length

	winLen := need
	if winLen < r.maxWindow {
		winLen = r.maxWindow
	}

	if winOff+winLen > size {
		winLen = size - winOff
	}

	if winLen < need {
		return nil, io.ErrUnexpectedEOF
	}

	r.unmapLocked()

	data, err := unix.Mmap(int(r.f.Fd()), winOff, int(winLen), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}

	r.mapped = data
	r.winOff = winOff
	r.winLen = winLen

	return r.mapped[off-winOff : off-winOff+length], nil
}

func (r *realFiler) unmapLocked() {
	if r.mapped == nil {
		return
	}

	_ = unix.Munmap(r.mapped)
	r.mapped = nil
	r.winOff = 0
	r.winLen = 0
}

// invalidateOverlapLocked drops the mapped window if a write through this
// filer touched the region it covers, so the next Mmap call maps the
// region afresh. MAP_SHARED pages are in fact kept coherent with writes
// through the same fd, so this is a belt-and-braces safeguard; writes
// made through another descriptor never reach it.
func (r *realFiler) invalidateOverlapLocked(off, length int64) {
	if r.mapped == nil {
		return
	}

	if off+length <= r.winOff || off >= r.winOff+r.winLen {
		return
	}

	r.unmapLocked()
}
