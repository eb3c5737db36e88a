package store

import (
	"context"

	"github.com/sells-group/community-solar/internal/model"
)

// Table names match the existing database read by downstream consumers.
const (
	TableLocations     = "LOCATIONS"
	TableEstimates     = "GOOGLE_SOLAR"
	TableCEJST         = "CEJST"
	TablePropertyCodes = "PROPERTY_CODES"
	TableLoadLog       = "LOAD_LOG"
)

// CandidateFilter specifies which locations are offered for enrichment.
type CandidateFilter struct {
	Limit            int    `json:"limit"`
	ClassPrefix      string `json:"class_prefix"`      // property-class prefix, default "6"
	IncludeUnchecked bool   `json:"include_unchecked"` // also offer state-0 rows
}

// SiteFilter specifies criteria for listing enriched sites.
type SiteFilter struct {
	City              string  `json:"city,omitempty"`
	PropertyCode      string  `json:"property_code,omitempty"`
	MinYearlyKWh      float64 `json:"min_yearly_kwh,omitempty"`
	DisadvantagedOnly bool    `json:"disadvantaged_only,omitempty"`
	Limit             int     `json:"limit,omitempty"`
	Offset            int     `json:"offset,omitempty"`
}

// Store defines the persistence interface for the pipeline.
type Store interface {
	// Schema
	EnsureTable(ctx context.Context, table string, header []string) (bool, error)
	EnsureEstimateTable(ctx context.Context) error
	TableExists(ctx context.Context, table string) (bool, error)
	Columns(ctx context.Context, table string) ([]ColumnInfo, error)
	CountRows(ctx context.Context, table string) (int, error)

	// Bulk load
	LoadRows(ctx context.Context, table string, columns []string, rows <-chan []string) (*LoadResult, error)

	// Enrichment state
	SelectCandidates(ctx context.Context, filter CandidateFilter) ([]model.Location, error)
	MarkNoData(ctx context.Context, locationID int64) error
	SaveEstimate(ctx context.Context, est *model.SolarEstimate) error
	StateCounts(ctx context.Context) (map[model.EnrichmentState]int, error)

	// Load log
	StartLoad(ctx context.Context, table, source string) (*LoadRun, error)
	FinishLoad(ctx context.Context, run *LoadRun, result *LoadResult, loadErr error) error
	ListLoads(ctx context.Context, limit int) ([]LoadRun, error)

	// Reporting (read-only)
	ListSites(ctx context.Context, filter SiteFilter) ([]model.Site, error)
	DataDictionary(ctx context.Context) ([]TableDictionary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Reset(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var _ Store = (*SQLiteStore)(nil)
