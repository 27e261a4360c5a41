// Package dbsprom exports dbs.Table statistics as Prometheus metrics.
package dbsprom

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/llxisdsh/dbs"
)

// Collector reads a table's statistics on every scrape. Per-worker counters
// carry a "worker" label; operations made directly on the table are reported
// with worker="shared".
type Collector struct {
	t *dbs.Table

	capacity *prometheus.Desc
	elements *prometheus.Desc
	full     *prometheus.Desc
	inserts  *prometheus.Desc
	hits     *prometheus.Desc
	misses   *prometheus.Desc
	rehashes *prometheus.Desc
	stalls   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for t whose metric names start with
// namespace.
func NewCollector(t *dbs.Table, namespace string) *Collector {
	name := func(n string) string {
		return prometheus.BuildFQName(namespace, "state_table", n)
	}
	worker := []string{"worker"}
	return &Collector{
		t:        t,
		capacity: prometheus.NewDesc(name("capacity"), "Number of buckets in the state table.", nil, nil),
		elements: prometheus.NewDesc(name("elements"), "Number of stored state vectors.", nil, nil),
		full:     prometheus.NewDesc(name("full"), "1 once the state table has been declared full.", nil, nil),
		inserts:  prometheus.NewDesc(name("inserts_total"), "State vectors stored.", worker, nil),
		hits:     prometheus.NewDesc(name("hits_total"), "Lookups that found their state vector.", worker, nil),
		misses:   prometheus.NewDesc(name("misses_total"), "Buckets whose memoized hash matched a different vector.", worker, nil),
		rehashes: prometheus.NewDesc(name("rehashes_total"), "Probe rounds beyond the first.", worker, nil),
		stalls:   prometheus.NewDesc(name("stalls_total"), "Publish waits that exceeded the spin budget.", worker, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.capacity, c.elements, c.full,
		c.inserts, c.hits, c.misses, c.rehashes, c.stalls,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.t.Stats()
	full := 0.0
	if s.Full {
		full = 1
	}
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity))
	ch <- prometheus.MustNewConstMetric(c.elements, prometheus.GaugeValue, float64(s.Inserts))
	ch <- prometheus.MustNewConstMetric(c.full, prometheus.GaugeValue, full)

	for id := range c.t.NumWorkers() {
		wc, err := c.t.WorkerStats(id)
		if err != nil || wc == (dbs.Counters{}) {
			continue
		}
		c.collectCounters(ch, wc, strconv.Itoa(id))
	}
	if shared := c.t.SharedStats(); shared != (dbs.Counters{}) {
		c.collectCounters(ch, shared, "shared")
	}
}

func (c *Collector) collectCounters(ch chan<- prometheus.Metric, wc dbs.Counters, worker string) {
	ch <- prometheus.MustNewConstMetric(c.inserts, prometheus.CounterValue, float64(wc.Inserts), worker)
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(wc.Hits), worker)
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(wc.Misses), worker)
	ch <- prometheus.MustNewConstMetric(c.rehashes, prometheus.CounterValue, float64(wc.Rehashes), worker)
	ch <- prometheus.MustNewConstMetric(c.stalls, prometheus.CounterValue, float64(wc.Stalls), worker)
}
