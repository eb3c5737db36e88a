package main

import (
	"context"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/community-solar/internal/fetcher"
	"github.com/sells-group/community-solar/internal/ingest"
	"github.com/sells-group/community-solar/internal/monitoring"
	"github.com/sells-group/community-solar/internal/store"
	"github.com/sells-group/community-solar/pkg/arcgis"
)

// openStore validates the config for mode and opens the migrated store.
func openStore(ctx context.Context, mode string) (*store.SQLiteStore, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := store.NewSQLite(cfg.Store.Path, store.WithCommitEvery(cfg.Store.CommitEvery))
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newMetrics builds a registry holding the pipeline metrics, the
// enrichment-state gauge and the Go runtime collectors.
func newMetrics(st monitoring.StatusStore) (*monitoring.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		monitoring.NewStateCollector(st),
	)
	return monitoring.NewMetrics(reg), reg
}

// logCounters logs the pipeline counters a command recorded.
func logCounters(g prometheus.Gatherer) {
	totals, err := monitoring.CounterTotals(g)
	if err != nil {
		zap.L().Warn("failed to collect run metrics", zap.Error(err))
		return
	}
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]zap.Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, zap.Float64(name, totals[name]))
	}
	zap.L().Info("run metrics", fields...)
}

// newLoader wires the ingestion loader to the configured sources.
func newLoader(st *store.SQLiteStore, observer ingest.Observer) *ingest.Loader {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:   "community-solar/1.0",
		DefaultRate: rate.Limit(2),
	})
	exporter := arcgis.NewClient(arcgis.WithPollInterval(cfg.Sources.PollInterval))
	return ingest.NewLoader(st, f,
		ingest.WithExporter(exporter),
		ingest.WithObserver(observer),
		ingest.WithWorkDir(cfg.Sources.WorkDir),
		ingest.WithEncoding(cfg.Sources.Encoding),
	)
}

// sourceFor returns the configured source for a dataset.
func sourceFor(d ingest.Dataset) (string, error) {
	var src string
	switch d.Name {
	case ingest.Locations.Name:
		src = cfg.Sources.LocationsURL
	case ingest.CEJST.Name:
		src = cfg.Sources.CEJST
	case ingest.PropertyCodes.Name:
		src = cfg.Sources.PropertyCodes
	}
	if src == "" {
		return "", eris.Errorf("no source configured for %s", d.Name)
	}
	return src, nil
}
