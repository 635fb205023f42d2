// Package metrics defines the engine's observability sink: an interface
// the core calls unconditionally, satisfied by a no-op default and by a
// Prometheus-backed collector for callers that want counters and
// histograms exported.
package metrics

import "time"

// Sink receives counters and timings from the engine. All methods must be
// safe for concurrent use; the core calls most of them while holding the
// handle's mutex.
type Sink interface {
	CacheHit()
	CacheMiss()
	CacheEvict()
	AvailAlloc(size int32)
	AvailFree(size int32)
	LockWait(mode string, d time.Duration)
	Sync()
}

// Noop discards every observation; it is the default Sink when the caller
// does not configure one.
var Noop Sink = noop{}

type noop struct{}

func (noop) CacheHit()                          {}
func (noop) CacheMiss()                         {}
func (noop) CacheEvict()                        {}
func (noop) AvailAlloc(int32)                   {}
func (noop) AvailFree(int32)                    {}
func (noop) LockWait(string, time.Duration)     {}
func (noop) Sync()                              {}
