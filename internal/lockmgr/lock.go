// Package lockmgr implements the engine's whole-file advisory lock: a
// fallback chain of locking mechanisms (flock, then lockf-style exclusive
// byte-range, then POSIX fcntl record locking), three wait policies, and
// inode-based detection of lock-file replacement races.
package lockmgr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sys/unix"
)

// Mode is whether the lock is being taken for reading or writing.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

// WaitPolicy selects how Acquire behaves on contention.
type WaitPolicy int

const (
	// WaitNone fails immediately if the lock is held elsewhere.
	WaitNone WaitPolicy = iota
	// WaitRetry polls at RetryInterval until Timeout elapses.
	WaitRetry
	// WaitSignal issues one blocking lock call bounded by Timeout.
	WaitSignal
)

// Mechanism identifies which locking primitive ultimately succeeded.
type Mechanism int

const (
	MechFlock Mechanism = iota
	MechLockf
	MechFcntl
)

func (m Mechanism) String() string {
	switch m {
	case MechFlock:
		return "flock"
	case MechLockf:
		return "lockf"
	case MechFcntl:
		return "fcntl"
	default:
		return "unknown"
	}
}

// Options configures Acquire.
type Options struct {
	Mode          Mode
	Wait          WaitPolicy
	Timeout       time.Duration
	RetryInterval time.Duration
}

// Lock is a held advisory lock on an open file descriptor. Release it
// exactly once, symmetrically with how it was acquired.
type Lock struct {
	fd        uintptr
	mechanism Mechanism
	mode      Mode
	dev, ino  uint64
	path      string
}

// Mechanism reports which fallback-chain member ultimately held the lock.
func (l *Lock) Mechanism() Mechanism { return l.mechanism }

// ErrContended is wrapped into CantBeReader/CantBeWriter by the caller;
// lockmgr itself stays error-code agnostic so the engine's taxonomy lives
// in one place (see errors.go at the module root).
var ErrContended = errors.New("lockmgr: lock contended")

// ErrStale is returned when the lock file's inode no longer matches the
// path it was opened from, meaning another process replaced it out from
// under us mid-wait.
var ErrStale = errors.New("lockmgr: lock file replaced during wait")

// Acquire takes the lock on fd (which must be opened against path),
// walking the fallback chain flock -> lockf -> fcntl and skipping any
// mechanism not supported by the platform/filesystem (e.g. NFS mounts
// that reject flock). The path and an *os.File are both required: the
// descriptor for the actual locking syscalls, the path to verify identity
// after a wait (guards against a concurrent unlink+recreate).
func Acquire(ctx context.Context, f *os.File, path string, opts Options) (*Lock, error) {
	dev, ino, err := fstatIdentity(f)
	if err != nil {
		return nil, err
	}

	l := &Lock{fd: f.Fd(), mode: opts.Mode, dev: dev, ino: ino, path: path}

	switch opts.Wait {
	case WaitNone:
		err = tryChain(l, f)
	case WaitRetry:
		err = acquireRetry(ctx, l, f, opts)
	case WaitSignal:
		err = acquireSignal(ctx, l, f, opts)
	default:
		return nil, fmt.Errorf("lockmgr: unknown wait policy %d", opts.Wait)
	}

	if err != nil {
		return nil, err
	}

	if err := verifyIdentity(path, dev, ino); err != nil {
		_ = releaseMechanism(f, l.mechanism)
		return nil, err
	}

	return l, nil
}

// Release gives up the lock using whichever mechanism Acquire settled on.
func (l *Lock) Release(f *os.File) error {
	return releaseMechanism(f, l.mechanism)
}

// tryChain attempts flock, then lockf, then fcntl, each non-blocking;
// the first mechanism that isn't ENOTSUP/EOPNOTSUPP on this platform wins
// or fails with contention.
func tryChain(l *Lock, f *os.File) error {
	type attempt struct {
		mech Mechanism
		try  func() error
	}

	attempts := []attempt{
		{MechFlock, func() error { return tryFlock(f, l.mode) }},
		{MechLockf, func() error { return tryLockf(f, l.mode) }},
		{MechFcntl, func() error { return tryFcntl(f, l.mode) }},
	}

	var lastErr error

	for _, a := range attempts {
		err := a.try()
		if err == nil {
			l.mechanism = a.mech
			return nil
		}

		if errors.Is(err, errUnsupported) {
			continue
		}

		lastErr = err

		if errors.Is(err, ErrContended) {
			return err
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("lockmgr: no locking mechanism available on this platform")
	}

	return lastErr
}

func acquireRetry(ctx context.Context, l *Lock, f *os.File, opts Options) error {
	interval := opts.RetryInterval
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	boundedCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	bo := backoff.WithContext(backoff.NewConstantBackOff(interval), boundedCtx)

	op := func() error {
		err := tryChain(l, f)
		if err == nil {
			return nil
		}

		if errors.Is(err, ErrContended) {
			return err // retryable
		}

		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, bo); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("lockmgr: retry wait timed out after %s: %w", timeout, ErrContended)
		}

		return err
	}

	return nil
}

// acquireSignal issues one blocking lock call bounded by opts.Timeout. The
// original engine arms SIGALRM around a blocking fcntl/flock call and
// restores the prior handler on return; Go does not let user code safely
// interrupt a blocked syscall with a signal without racing the runtime's
// own signal handling, so the equivalent here runs the blocking call on a
// background goroutine and races it against a timer, exactly the
// technique the filesystem layer this is grounded on uses for its own
// cancellable blocking lock.
func acquireSignal(ctx context.Context, l *Lock, f *os.File, opts Options) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	done := make(chan error, 1)

	go func() {
		done <- blockingChain(l, f)
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		return fmt.Errorf("lockmgr: signal-mode wait timed out after %s: %w", timeout, ErrContended)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// blockingChain is tryChain's blocking counterpart: it waits for whichever
// mechanism in the fallback chain is available instead of failing
// immediately on contention.
func blockingChain(l *Lock, f *os.File) error {
	type attempt struct {
		mech Mechanism
		try  func() error
	}

	attempts := []attempt{
		{MechFlock, func() error { return blockFlock(f, l.mode) }},
		{MechLockf, func() error { return blockLockf(f, l.mode) }},
		{MechFcntl, func() error { return blockFcntl(f, l.mode) }},
	}

	var lastErr error

	for _, a := range attempts {
		err := a.try()
		if err == nil {
			l.mechanism = a.mech
			return nil
		}

		if errors.Is(err, errUnsupported) {
			continue
		}

		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("lockmgr: no locking mechanism available on this platform")
	}

	return lastErr
}

var errUnsupported = errors.New("lockmgr: mechanism unsupported")

func releaseMechanism(f *os.File, mech Mechanism) error {
	switch mech {
	case MechFlock:
		return unix.Flock(int(f.Fd()), unix.LOCK_UN)
	case MechLockf:
		return fcntlUnlock(f)
	case MechFcntl:
		return fcntlUnlock(f)
	default:
		return nil
	}
}
