// Package monitoring exposes Prometheus metrics for the pipeline and
// evaluates load and enrichment health for alerting.
package monitoring

import (
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rotisserie/eris"

	"github.com/sells-group/community-solar/internal/store"
)

const (
	namespace            = "community_solar"
	defaultCheckInterval = 5 * time.Minute
)

// Metrics holds the pipeline's counters and histograms. It implements the
// observer interfaces of the loader, the solar client and the enrichment runner.
type Metrics struct {
	Loads          *prometheus.CounterVec // labels: table, status={complete,failed}
	LoadRows       *prometheus.CounterVec // labels: table, result={inserted,failed}
	SolarRequests  *prometheus.CounterVec // labels: outcome
	SolarDuration  prometheus.Histogram
	Enrichments    *prometheus.CounterVec   // labels: outcome
	EnrichDuration *prometheus.HistogramVec // labels: outcome
}

// NewMetrics creates the pipeline metrics and registers them with reg.
// Pass prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Bulk table loads by table and final status.",
		}, []string{"table", "status"}),
		LoadRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_rows_total",
			Help:      "Rows processed by bulk loads, by table and result.",
		}, []string{"table", "result"}),
		SolarRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "solar_requests_total",
			Help:      "Google Solar API attempts by outcome.",
		}, []string{"outcome"}),
		SolarDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "solar_request_duration_seconds",
			Help:      "Google Solar API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		Enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichments_total",
			Help:      "Locations processed by the enrichment runner, by outcome.",
		}, []string{"outcome"}),
		EnrichDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "enrichment_duration_seconds",
			Help:      "Time to fetch, derive and persist one location, including pacing and throttle cooldowns.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 30, 120},
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.Loads,
		m.LoadRows,
		m.SolarRequests,
		m.SolarDuration,
		m.Enrichments,
		m.EnrichDuration,
	)
	return m
}

// ObserveLoad records the outcome of one table load.
func (m *Metrics) ObserveLoad(table string, result *store.LoadResult, err error) {
	status := store.LoadComplete
	if err != nil || result == nil {
		status = store.LoadFailed
	}
	m.Loads.WithLabelValues(table, status).Inc()
	if result != nil {
		m.LoadRows.WithLabelValues(table, "inserted").Add(float64(result.Inserted))
		m.LoadRows.WithLabelValues(table, "failed").Add(float64(result.Failed()))
	}
}

// ObserveRequest records one Solar API attempt.
func (m *Metrics) ObserveRequest(outcome string, elapsed time.Duration) {
	m.SolarRequests.WithLabelValues(outcome).Inc()
	m.SolarDuration.Observe(elapsed.Seconds())
}

// ObserveEnrichment records one processed location.
func (m *Metrics) ObserveEnrichment(outcome string, elapsed time.Duration) {
	m.Enrichments.WithLabelValues(outcome).Inc()
	m.EnrichDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// CounterTotals flattens the pipeline counters gathered from g into
// series names such as `community_solar_enrichments_total{outcome="enriched"}`.
// Runtime and histogram series are skipped.
func CounterTotals(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: gather metrics")
	}

	totals := make(map[string]float64)
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER || !strings.HasPrefix(mf.GetName(), namespace+"_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			totals[seriesName(mf.GetName(), m.GetLabel())] = m.GetCounter().GetValue()
		}
	}
	return totals, nil
}

func seriesName(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	pairs := make([]string, 0, len(labels))
	for _, l := range labels {
		pairs = append(pairs, l.GetName()+`="`+l.GetValue()+`"`)
	}
	sort.Strings(pairs)
	return name + "{" + strings.Join(pairs, ",") + "}"
}
