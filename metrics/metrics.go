// Package metrics exposes sparsecoll call statistics as a custom
// prometheus.Collector: a mutex-guarded map of named *CollStats handles,
// each contributing one Collect pass over an atomically-updated in-memory
// counter set. There's no external resource to re-read, so Collect has no
// error path and nothing to evict.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/atomic"
)

// CollStats accumulates counters for one named collective call site
// (typically one per Algorithm). Every field is updated with atomic
// add/store, so a single CollStats may be shared across concurrently
// running ExtComm handles.
type CollStats struct {
	label string

	calls        atomic.Uint64
	bytesSent    atomic.Uint64
	bytesRecv    atomic.Uint64
	partners     atomic.Uint64
	barrierSpins atomic.Uint64
}

// NewCollStats creates a stats handle for one label (e.g. an Algorithm's
// String()). Register it with a Registry via Collector to expose it.
func NewCollStats(label string) *CollStats {
	return &CollStats{label: label}
}

// RecordCall accounts for one completed collective call: the number of
// bytes moved in each direction and how many partners the receive side
// discovered (the algorithms pass their receive count).
func (c *CollStats) RecordCall(bytesSent, bytesRecv, partners int) {
	c.calls.Inc()
	c.bytesSent.Add(uint64(bytesSent))
	c.bytesRecv.Add(uint64(bytesRecv))
	c.partners.Add(uint64(partners))
}

// Calls, BytesSent, BytesRecv, Partners and BarrierSpins read back the
// current counter values, for callers (like cmd/xcrsbench) that want to
// print a snapshot without standing up a full prometheus scrape.
func (c *CollStats) Calls() uint64        { return c.calls.Load() }
func (c *CollStats) BytesSent() uint64    { return c.bytesSent.Load() }
func (c *CollStats) BytesRecv() uint64    { return c.bytesRecv.Load() }
func (c *CollStats) Partners() uint64     { return c.partners.Load() }
func (c *CollStats) BarrierSpins() uint64 { return c.barrierSpins.Load() }

// RecordBarrierSpin counts one nonblocking-barrier polling iteration
// (AlltoallCRSNonblocking's IProbe/Test loop), useful for spotting a rank
// that spins far longer than its peers.
func (c *CollStats) RecordBarrierSpin() {
	c.barrierSpins.Inc()
}

var (
	callsDesc = prometheus.NewDesc(
		"sparsecoll_calls_total", "Completed collective calls.", []string{"algorithm"}, nil)
	bytesSentDesc = prometheus.NewDesc(
		"sparsecoll_bytes_sent_total", "Bytes sent across completed calls.", []string{"algorithm"}, nil)
	bytesRecvDesc = prometheus.NewDesc(
		"sparsecoll_bytes_received_total", "Bytes received across completed calls.", []string{"algorithm"}, nil)
	partnersDesc = prometheus.NewDesc(
		"sparsecoll_partners_total", "Sum of distinct partner ranks across completed calls.", []string{"algorithm"}, nil)
	barrierSpinsDesc = prometheus.NewDesc(
		"sparsecoll_barrier_spins_total", "Nonblocking-barrier polling iterations.", []string{"algorithm"}, nil)
)

// Collector aggregates any number of CollStats handles into one
// prometheus.Collector.
type Collector struct {
	mu    sync.Mutex
	stats map[string]*CollStats
}

// NewCollector returns an empty Collector. Track handles with Add.
func NewCollector() *Collector {
	return &Collector{stats: make(map[string]*CollStats)}
}

// Add registers a CollStats handle under its own label, replacing any
// previous handle registered under the same label.
func (c *Collector) Add(s *CollStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats[s.label] = s
}

func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	descs <- callsDesc
	descs <- bytesSentDesc
	descs <- bytesRecvDesc
	descs <- partnersDesc
	descs <- barrierSpinsDesc
}

func (c *Collector) Collect(out chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for label, s := range c.stats {
		out <- prometheus.MustNewConstMetric(callsDesc, prometheus.CounterValue, float64(s.calls.Load()), label)
		out <- prometheus.MustNewConstMetric(bytesSentDesc, prometheus.CounterValue, float64(s.bytesSent.Load()), label)
		out <- prometheus.MustNewConstMetric(bytesRecvDesc, prometheus.CounterValue, float64(s.bytesRecv.Load()), label)
		out <- prometheus.MustNewConstMetric(partnersDesc, prometheus.CounterValue, float64(s.partners.Load()), label)
		out <- prometheus.MustNewConstMetric(barrierSpinsDesc, prometheus.CounterValue, float64(s.barrierSpins.Load()), label)
	}
}
