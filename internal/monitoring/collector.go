package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/community-solar/internal/model"
	"github.com/sells-group/community-solar/internal/store"
)

// StatusStore is the subset of the store read by the collector.
type StatusStore interface {
	StateCounts(ctx context.Context) (map[model.EnrichmentState]int, error)
	TableExists(ctx context.Context, table string) (bool, error)
	CountRows(ctx context.Context, table string) (int, error)
	ListLoads(ctx context.Context, limit int) ([]store.LoadRun, error)
}

// Snapshot is a point-in-time view of the pipeline database.
type Snapshot struct {
	// Enrichment state counts keyed by state name.
	States map[string]int `json:"states"`
	// Row counts for every pipeline table that exists.
	Tables map[string]int `json:"tables"`

	RecentLoads []store.LoadRun `json:"recent_loads"`
	FailedLoads int             `json:"failed_loads"`
	FailedRows  int             `json:"failed_rows"`
	LoadedRows  int             `json:"loaded_rows"`

	CollectedAt time.Time `json:"collected_at"`
}

// Pending returns the number of locations never probed.
func (s *Snapshot) Pending() int {
	return s.States[model.StateUnchecked.String()]
}

// Collector gathers snapshots from the store.
type Collector struct {
	store     StatusStore
	loadLimit int
}

// NewCollector creates a new status collector. Snapshots include the most
// recent loadLimit load runs (default 20).
func NewCollector(st StatusStore, loadLimit int) *Collector {
	if loadLimit <= 0 {
		loadLimit = 20
	}
	return &Collector{store: st, loadLimit: loadLimit}
}

// Collect gathers a snapshot of the pipeline database.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	snap := &Snapshot{
		States:      make(map[string]int),
		Tables:      make(map[string]int),
		CollectedAt: time.Now().UTC(),
	}

	counts, err := c.store.StateCounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: state counts")
	}
	for _, st := range []model.EnrichmentState{model.StateUnchecked, model.StateNoData, model.StateHasData} {
		snap.States[st.String()] = counts[st]
	}

	for _, table := range []string{store.TableLocations, store.TableEstimates, store.TableCEJST, store.TablePropertyCodes} {
		ok, err := c.store.TableExists(ctx, table)
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: check %s", table)
		}
		if !ok {
			continue
		}
		n, err := c.store.CountRows(ctx, table)
		if err != nil {
			return nil, eris.Wrapf(err, "monitoring: count %s", table)
		}
		snap.Tables[table] = n
	}

	loads, err := c.store.ListLoads(ctx, c.loadLimit)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list loads")
	}
	snap.RecentLoads = loads
	for _, l := range loads {
		if l.Status == store.LoadFailed {
			snap.FailedLoads++
		}
		snap.FailedRows += l.Failed
		snap.LoadedRows += l.Inserted
	}

	return snap, nil
}

var stateDesc = prometheus.NewDesc(
	prometheus.BuildFQName(namespace, "", "locations"),
	"Locations by enrichment state.",
	[]string{"state"}, nil,
)

// StateCollector exports enrichment-state counts as a gauge on every scrape.
type StateCollector struct {
	store   StatusStore
	timeout time.Duration
}

// NewStateCollector creates a prometheus.Collector over the store's state counts.
func NewStateCollector(st StatusStore) *StateCollector {
	return &StateCollector{store: st, timeout: 5 * time.Second}
}

// Describe implements prometheus.Collector.
func (c *StateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- stateDesc
}

// Collect implements prometheus.Collector.
func (c *StateCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	counts, err := c.store.StateCounts(ctx)
	if err != nil {
		zap.L().Warn("monitoring: state counts for scrape", zap.Error(err))
		return
	}
	for _, st := range []model.EnrichmentState{model.StateUnchecked, model.StateNoData, model.StateHasData} {
		ch <- prometheus.MustNewConstMetric(stateDesc, prometheus.GaugeValue, float64(counts[st]), st.String())
	}
}
