package pager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the pager's Prometheus counters.
type Metrics struct {
	PageReads    prometheus.Counter
	CacheHits    prometheus.Counter
	Evictions    prometheus.Counter
	PendingReads prometheus.Counter
	PagesWritten prometheus.Counter
	Flushes      prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return f.NewCounter(prometheus.CounterOpts{
			Namespace: "golite",
			Subsystem: "pager",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		PageReads:    counter("page_reads_total", "Pages read from the database file"),
		CacheHits:    counter("cache_hits_total", "Page requests served from the cache"),
		Evictions:    counter("cache_evictions_total", "Clean pages evicted from the cache"),
		PendingReads: counter("pending_reads_total", "Reads handed back before the page was loaded"),
		PagesWritten: counter("pages_written_total", "Pages written by Flush"),
		Flushes:      counter("flushes_total", "Flush calls that wrote at least one page"),
	}
}
