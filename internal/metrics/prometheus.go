package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prom is a Sink backed by Prometheus collectors, registered against the
// supplied registerer (typically prometheus.DefaultRegisterer).
type Prom struct {
	cacheHits   prometheus.Counter
	cacheMiss   prometheus.Counter
	cacheEvict  prometheus.Counter
	availAlloc  prometheus.Histogram
	availFree   prometheus.Histogram
	lockWait    *prometheus.HistogramVec
	syncs       prometheus.Counter
}

// NewProm builds and registers a Prom sink. Registration errors (e.g. a
// second DB instance reusing the default registerer) are returned so the
// caller can fall back to Noop instead.
func NewProm(reg prometheus.Registerer, namespace string) (*Prom, error) {
	p := &Prom{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bucket_cache", Name: "hits_total",
			Help: "Bucket cache lookups served from memory.",
		}),
		cacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bucket_cache", Name: "misses_total",
			Help: "Bucket cache lookups requiring a disk read.",
		}),
		cacheEvict: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "bucket_cache", Name: "evictions_total",
			Help: "Buckets evicted from the cache to make room.",
		}),
		availAlloc: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "avail", Name: "alloc_bytes",
			Help: "Sizes of free-space extents allocated to new records.",
			Buckets: prometheus.ExponentialBuckets(32, 2, 12),
		}),
		availFree: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "avail", Name: "free_bytes",
			Help: "Sizes of free-space extents returned by deletes.",
			Buckets: prometheus.ExponentialBuckets(32, 2, 12),
		}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "lock", Name: "wait_seconds",
			Help: "Time spent waiting to acquire the file lock.",
		}, []string{"mode"}),
		syncs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "sync_total",
			Help: "Calls to Sync/Close that flushed data to stable storage.",
		}),
	}

	for _, c := range []prometheus.Collector{
		p.cacheHits, p.cacheMiss, p.cacheEvict, p.availAlloc, p.availFree, p.lockWait, p.syncs,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *Prom) CacheHit()        { p.cacheHits.Inc() }
func (p *Prom) CacheMiss()       { p.cacheMiss.Inc() }
func (p *Prom) CacheEvict()      { p.cacheEvict.Inc() }
func (p *Prom) AvailAlloc(n int32) { p.availAlloc.Observe(float64(n)) }
func (p *Prom) AvailFree(n int32)  { p.availFree.Observe(float64(n)) }
func (p *Prom) Sync()            { p.syncs.Inc() }

func (p *Prom) LockWait(mode string, d time.Duration) {
	p.lockWait.WithLabelValues(mode).Observe(d.Seconds())
}
