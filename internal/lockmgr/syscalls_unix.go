package lockmgr

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// fstatIdentity returns the (dev, ino) pair identifying the open file, used
// to detect lock-file replacement races: a lock acquired on a descriptor
// is worthless if, by the time the wait finished, someone unlinked and
// recreated the path out from under us.
func fstatIdentity(f *os.File) (dev, ino uint64, err error) {
	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return 0, 0, fmt.Errorf("lockmgr: fstat: %w", err)
	}

	return uint64(st.Dev), st.Ino, nil
}

// verifyIdentity re-stats path and compares against the identity captured
// before the lock wait began.
func verifyIdentity(path string, dev, ino uint64) error {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return fmt.Errorf("lockmgr: stat after lock: %w", err)
	}

	if uint64(st.Dev) != dev || st.Ino != ino {
		return ErrStale
	}

	return nil
}

func flockOp(mode Mode, blocking bool) int {
	op := unix.LOCK_SH
	if mode == Exclusive {
		op = unix.LOCK_EX
	}

	if !blocking {
		op |= unix.LOCK_NB
	}

	return op
}

func tryFlock(f *os.File, mode Mode) error {
	err := unix.Flock(int(f.Fd()), flockOp(mode, false))
	return classifyLockErr(err)
}

func blockFlock(f *os.File, mode Mode) error {
	err := unix.Flock(int(f.Fd()), flockOp(mode, true))
	return classifyLockErr(err)
}

// lockf-style whole-file exclusive/shared lock via fcntl F_SETLK with a
// zero-length range, which POSIX defines as covering to EOF and beyond.
// This is a distinct mechanism from raw flock() on platforms where both
// exist (they do not interoperate: a flock() held elsewhere is invisible
// to fcntl() record locks), which is exactly why the fallback chain tries
// them as independent steps rather than assuming one implies the other.
func tryLockf(f *os.File, mode Mode) error {
	return fcntlLock(f, mode, false)
}

func blockLockf(f *os.File, mode Mode) error {
	return fcntlLock(f, mode, true)
}

func tryFcntl(f *os.File, mode Mode) error {
	return fcntlLock(f, mode, false)
}

func blockFcntl(f *os.File, mode Mode) error {
	return fcntlLock(f, mode, true)
}

func fcntlLock(f *os.File, mode Mode, blocking bool) error {
	typ := int16(unix.F_RDLCK)
	if mode == Exclusive {
		typ = unix.F_WRLCK
	}

	lk := unix.Flock_t{
		Type:   typ,
		Whence: int16(os.SEEK_SET),
		Start:  0,
		Len:    0,
	}

	cmd := unix.F_SETLK
	if blocking {
		cmd = unix.F_SETLKW
	}

	err := unix.FcntlFlock(f.Fd(), cmd, &lk)

	return classifyLockErr(err)
}

func fcntlUnlock(f *os.File) error {
	lk := unix.Flock_t{Type: unix.F_UNLCK, Whence: int16(os.SEEK_SET)}
	return unix.FcntlFlock(f.Fd(), unix.F_SETLK, &lk)
}

func classifyLockErr(err error) error {
	if err == nil {
		return nil
	}

	switch err {
	case unix.EAGAIN, unix.EACCES:
		return ErrContended
	case unix.ENOLCK, unix.EOPNOTSUPP, unix.EINVAL:
		return errUnsupported
	default:
		return fmt.Errorf("lockmgr: lock syscall: %w", err)
	}
}
