// Package metrics exposes run progress and results as Prometheus metrics.
//
// A Collector is a suite hook. Its registry can be served over HTTP while
// the run is in progress or written to a node-exporter textfile at the end.
package metrics

import (
	"context"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/abdul-hamid-achik/suiterun/packages/core/runner"
	"github.com/abdul-hamid-achik/suiterun/packages/feature"
)

const MetricsNamespace = "suiterun"

// Collector records feature outcomes and limiter state into its own registry
type Collector struct {
	registry *prometheus.Registry
	limiter  atomic.Pointer[runner.Limiter]

	featuresTotal   *prometheus.CounterVec
	featureErrors   prometheus.Counter
	featureDuration *prometheus.HistogramVec
	threads         prometheus.Gauge
	runComplete     prometheus.Gauge
	runDuration     prometheus.Gauge
	runInfo         *prometheus.GaugeVec
}

// NewCollector registers the suiterun metrics on a fresh registry
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	c := &Collector{registry: reg}

	c.featuresTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "features_total",
		Help:      "Count of finished features by status",
	}, []string{
		"status",
	})

	c.featureErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Name:      "feature_errors_total",
		Help:      "Count of features whose executor crashed",
	})

	c.featureDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Name:      "feature_duration_seconds",
		Help:      "Duration of executed features",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
	}, []string{
		"status",
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "features_in_flight",
		Help:      "Features currently holding a concurrency slot",
	}, func() float64 {
		if l := c.limiter.Load(); l != nil {
			return float64(l.InUse())
		}
		return 0
	})

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "features_in_flight_peak",
		Help:      "Highest number of features that held a slot at once",
	}, func() float64 {
		if l := c.limiter.Load(); l != nil {
			return float64(l.Peak())
		}
		return 0
	})

	c.threads = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "threads",
		Help:      "Configured concurrency ceiling",
	})

	c.runComplete = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_complete",
		Help:      "1 if every feature of the last run finished, 0 otherwise",
	})

	c.runDuration = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_duration_seconds",
		Help:      "Wall clock time of the last run",
	})

	c.runInfo = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Name:      "run_info",
		Help:      "Identity of the current run",
	}, []string{
		"run_id",
		"environment",
	})

	return c
}

// Registry returns the registry the collector writes to
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) BeforeSuite(_ context.Context, s *runner.Suite) error {
	c.limiter.Store(s.Limiter())
	c.threads.Set(float64(s.Threads()))
	c.runComplete.Set(0)
	c.runInfo.Reset()
	c.runInfo.WithLabelValues(s.RunID(), s.Environment()).Set(1)
	return nil
}

func (c *Collector) BeforeFeature(context.Context, *runner.Suite, *feature.Feature) error {
	return nil
}

func (c *Collector) AfterFeature(_ context.Context, _ *runner.Suite, _ *feature.Feature, o *runner.Outcome) error {
	status := string(o.Status)
	c.featuresTotal.WithLabelValues(status).Inc()
	c.featureDuration.WithLabelValues(status).Observe(o.Duration.Seconds())
	if o.Fatal {
		c.featureErrors.Inc()
	}
	return nil
}

// AfterSuite records the run totals. Skipped features never reach
// AfterFeature, so they are counted here.
func (c *Collector) AfterSuite(_ context.Context, _ *runner.Suite, r *runner.Result) error {
	c.featuresTotal.WithLabelValues(string(runner.StatusSkipped)).Add(float64(r.Skipped))
	c.runDuration.Set(r.WallClock.Seconds())
	if r.Complete {
		c.runComplete.Set(1)
	}
	return nil
}

var _ runner.Hook = (*Collector)(nil)
