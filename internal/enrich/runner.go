// Package enrich runs the sequential Google Solar enrichment batch over
// eligible locations.
package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/community-solar/internal/estimate"
	"github.com/sells-group/community-solar/internal/model"
	"github.com/sells-group/community-solar/internal/store"
	"github.com/sells-group/community-solar/pkg/solar"
)

// Per-record outcomes reported to an Observer.
const (
	OutcomeEnriched  = "enriched"
	OutcomeNoData    = "no_data"
	OutcomeMalformed = "malformed"
	OutcomeSkipped   = "skipped"
	OutcomeFailed    = "failed"
	OutcomeAborted   = "aborted"
)

// Store is the subset of the pipeline store the runner needs.
type Store interface {
	SelectCandidates(ctx context.Context, filter store.CandidateFilter) ([]model.Location, error)
	MarkNoData(ctx context.Context, locationID int64) error
	SaveEstimate(ctx context.Context, est *model.SolarEstimate) error
}

// Observer receives one call per processed location.
type Observer interface {
	ObserveEnrichment(outcome string, elapsed time.Duration)
}

// Options configures a single run.
type Options struct {
	Filter store.CandidateFilter
}

// Summary counts what a run did.
type Summary struct {
	Candidates int  `json:"candidates"`
	Attempted  int  `json:"attempted"`
	Enriched   int  `json:"enriched"`
	NoData     int  `json:"no_data"`
	Malformed  int  `json:"malformed"`
	Skipped    int  `json:"skipped"`
	Failed     int  `json:"failed"`
	Aborted    bool `json:"aborted"`
}

// Runner fetches, derives and persists solar estimates one location at a time.
type Runner struct {
	store    Store
	client   solar.Client
	observer Observer
}

// NewRunner creates a Runner. observer may be nil.
func NewRunner(st Store, client solar.Client, observer Observer) *Runner {
	return &Runner{store: st, client: client, observer: observer}
}

// Run processes every candidate selected by opts.Filter in location order.
// A rejected API key stops the batch and is returned; per-location failures
// are logged and counted. Cancellation is checked between locations.
func (r *Runner) Run(ctx context.Context, opts Options) (*Summary, error) {
	log := zap.L().With(zap.String("component", "enrich"))

	candidates, err := r.store.SelectCandidates(ctx, opts.Filter)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: select candidates")
	}

	summary := &Summary{Candidates: len(candidates)}
	log.Info("enrich: starting batch", zap.Int("candidates", len(candidates)))

	for _, loc := range candidates {
		if err := ctx.Err(); err != nil {
			log.Info("enrich: stopping between records", zap.Int("attempted", summary.Attempted))
			return summary, eris.Wrap(err, "enrich: cancelled")
		}

		summary.Attempted++
		start := time.Now()
		outcome, err := r.process(ctx, loc)
		r.observe(outcome, time.Since(start))

		if err != nil {
			if outcome == OutcomeAborted {
				summary.Aborted = true
				log.Error("enrich: aborting batch",
					zap.Int64("location_id", loc.ID),
					zap.Int("remaining", len(candidates)-summary.Attempted),
					zap.Error(err),
				)
			} else {
				// Storage failure; nothing later in the batch can be persisted.
				summary.Failed++
			}
			return summary, eris.Wrapf(err, "enrich: location %d", loc.ID)
		}

		switch outcome {
		case OutcomeEnriched:
			summary.Enriched++
		case OutcomeNoData:
			summary.NoData++
		case OutcomeMalformed:
			summary.Malformed++
		case OutcomeSkipped:
			summary.Skipped++
		case OutcomeFailed:
			summary.Failed++
		}
	}

	log.Info("enrich: batch complete",
		zap.Int("attempted", summary.Attempted),
		zap.Int("enriched", summary.Enriched),
		zap.Int("no_data", summary.NoData),
		zap.Int("malformed", summary.Malformed),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// process handles one location. Per-record failures are logged and reported
// through the outcome alone; a returned error stops the batch.
func (r *Runner) process(ctx context.Context, loc model.Location) (string, error) {
	log := zap.L().With(zap.Int64("location_id", loc.ID))

	raw, err := r.client.FindClosest(ctx, loc.Latitude, loc.Longitude)
	switch {
	case err == nil:
	case errors.Is(err, solar.ErrPermissionDenied):
		return OutcomeAborted, err
	case errors.Is(err, solar.ErrNoData):
		// A completed fetch is persisted even if ctx is cancelled meanwhile.
		if merr := r.store.MarkNoData(context.WithoutCancel(ctx), loc.ID); merr != nil {
			return OutcomeFailed, merr
		}
		log.Debug("enrich: no building insights")
		return OutcomeNoData, nil
	case ctx.Err() != nil:
		return OutcomeAborted, err
	default:
		log.Warn("enrich: fetch failed, state unchanged", zap.Error(err))
		return OutcomeFailed, nil
	}

	metrics, err := estimate.DeriveMetrics(raw)
	if err != nil {
		var mde *estimate.MissingDataError
		if errors.As(err, &mde) {
			log.Warn("enrich: malformed payload, state unchanged",
				zap.String("field", mde.Field),
				zap.Error(err),
			)
			return OutcomeMalformed, nil
		}
		log.Warn("enrich: derive failed, state unchanged", zap.Error(err))
		return OutcomeFailed, nil
	}

	est := metrics.ForLocation(loc)
	if err := r.store.SaveEstimate(context.WithoutCancel(ctx), est); err != nil {
		if errors.Is(err, store.ErrDuplicateEstimate) {
			log.Warn("enrich: estimate already stored", zap.Error(err))
			return OutcomeSkipped, nil
		}
		return OutcomeFailed, err
	}

	log.Debug("enrich: estimate saved",
		zap.Int64("solar_id", est.ID),
		zap.Float64("yearly_energy_dc_kwh", est.YearlyEnergyDCKWh),
	)
	return OutcomeEnriched, nil
}

func (r *Runner) observe(outcome string, elapsed time.Duration) {
	if r.observer != nil {
		r.observer.ObserveEnrichment(outcome, elapsed)
	}
}
