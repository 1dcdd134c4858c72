package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	goidentity "github.com/wizardcld/goidentity"
	"github.com/wizardcld/goidentity/metrics/export/internaldefs"
)

type metricsSource interface {
	MetricsSnapshot() goidentity.MetricsSnapshot
}

// Collector adapts the engine's atomic counters into a
// [prometheus.Collector]. Every scrape takes a fresh snapshot; nothing is
// cached between scrapes.
type Collector struct {
	source         metricsSource
	counterDescs   []*prometheus.Desc
	histogramDescs []*prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector builds a collector reading from the engine.
func NewCollector(engine *goidentity.Engine) *Collector {
	return NewCollectorFromSource(engine)
}

// NewCollectorFromSource builds a collector from any snapshot source, which
// tests use to feed synthetic snapshots.
func NewCollectorFromSource(source metricsSource) *Collector {
	c := &Collector{source: source}
	for _, def := range internaldefs.CounterDefs {
		c.counterDescs = append(c.counterDescs, prometheus.NewDesc(def.Name, def.Help, nil, nil))
	}
	for _, def := range internaldefs.HistogramDefs {
		c.histogramDescs = append(c.histogramDescs, prometheus.NewDesc(def.Name, def.Help, nil, nil))
	}
	return c
}

// Describe implements [prometheus.Collector].
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.counterDescs {
		ch <- d
	}
	for _, d := range c.histogramDescs {
		ch <- d
	}
}

// Collect implements [prometheus.Collector]. Histogram sums are not tracked
// by the core, so they are reported as zero.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.source == nil {
		return
	}
	snapshot := c.source.MetricsSnapshot()

	for i, def := range internaldefs.CounterDefs {
		ch <- prometheus.MustNewConstMetric(
			c.counterDescs[i],
			prometheus.CounterValue,
			float64(snapshot.Counters[def.ID]),
		)
	}

	for i, def := range internaldefs.HistogramDefs {
		raw := internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID])
		cumulative := internaldefs.CumulativeBuckets(raw)

		buckets := make(map[float64]uint64, len(internaldefs.HistogramUpperBounds))
		for j, bound := range internaldefs.HistogramUpperBounds {
			buckets[bound] = cumulative[j]
		}
		count := cumulative[len(cumulative)-1]

		ch <- prometheus.MustNewConstHistogram(c.histogramDescs[i], count, 0, buckets)
	}
}

// Handler registers the collector on a private registry and returns the
// scrape endpoint for it.
func Handler(engine *goidentity.Engine) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(engine))
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
