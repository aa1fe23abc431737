package ygggo_mysqlpool

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector exports Manager.Stats to Prometheus. Register it with
// prometheus.MustRegister(NewCollector(m, "orders")).
type Collector struct {
	m *Manager

	poolSize      *prometheus.Desc
	open          *prometheus.Desc
	inUse         *prometheus.Desc
	idle          *prometheus.Desc
	checkedOut    *prometheus.Desc
	maxCheckedOut *prometheus.Desc
	waitCount     *prometheus.Desc
	waitSeconds   *prometheus.Desc
	discarded     *prometheus.Desc
	queries       *prometheus.Desc
	failures      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector for m. name becomes the "pool" label so
// several managers can be registered side by side.
func NewCollector(m *Manager, name string) *Collector {
	labels := prometheus.Labels{"pool": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc("ygggo_mysqlpool_"+metric, help, nil, labels)
	}
	return &Collector{
		m:             m,
		poolSize:      desc("pool_size", "Maximum number of concurrently checked-out connections"),
		open:          desc("connections_open", "Open connections, in use plus idle"),
		inUse:         desc("connections_in_use", "Connections currently in use"),
		idle:          desc("connections_idle", "Idle connections"),
		checkedOut:    desc("connections_checked_out", "Connections currently lent to callers"),
		maxCheckedOut: desc("connections_checked_out_max", "High-water mark of checked-out connections"),
		waitCount:     desc("wait_count_total", "Acquisitions that had to wait for a connection"),
		waitSeconds:   desc("wait_seconds_total", "Total time spent waiting for a connection"),
		discarded:     desc("connections_discarded_total", "Connections discarded after connection-fatal errors"),
		queries:       desc("queries_total", "Queries executed"),
		failures:      desc("query_failures_total", "Queries that failed"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.poolSize, c.open, c.inUse, c.idle, c.checkedOut, c.maxCheckedOut,
		c.waitCount, c.waitSeconds, c.discarded, c.queries, c.failures,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.m.Stats()
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}
	counter := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v)
	}
	gauge(c.poolSize, float64(s.PoolSize))
	gauge(c.open, float64(s.Open))
	gauge(c.inUse, float64(s.InUse))
	gauge(c.idle, float64(s.Idle))
	gauge(c.checkedOut, float64(s.CheckedOut))
	gauge(c.maxCheckedOut, float64(s.MaxCheckedOut))
	counter(c.waitCount, float64(s.WaitCount))
	counter(c.waitSeconds, s.WaitDuration.Seconds())
	counter(c.discarded, float64(s.Discarded))
	counter(c.queries, float64(s.Queries))
	counter(c.failures, float64(s.Failures))
}
