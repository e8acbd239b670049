package metric

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ShardSizer reports the number of keys held by each store shard.
type ShardSizer interface {
	ShardSizes() []int
}

// StoreCollector exports store occupancy on every scrape.
type StoreCollector struct {
	store ShardSizer
	keys  *prometheus.Desc
}

// NewStoreCollector creates a collector reading from store.
func NewStoreCollector(store ShardSizer) *StoreCollector {
	return &StoreCollector{
		store: store,
		keys: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "store", "keys"),
			"Number of keys held by each store shard",
			[]string{"shard"}, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *StoreCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.keys
}

// Collect implements prometheus.Collector.
func (c *StoreCollector) Collect(ch chan<- prometheus.Metric) {
	for i, n := range c.store.ShardSizes() {
		ch <- prometheus.MustNewConstMetric(c.keys, prometheus.GaugeValue, float64(n), strconv.Itoa(i))
	}
}
