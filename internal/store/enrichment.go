package store

import (
	"context"
	"database/sql"
	"errors"
	"regexp"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/community-solar/internal/model"
)

// DefaultClassPrefix selects commercial and utility parcels.
const DefaultClassPrefix = "6"

// ErrDuplicateEstimate is returned when a location already has an estimate.
var ErrDuplicateEstimate = eris.New("estimate already exists")

var classPrefixPattern = regexp.MustCompile(`^[0-9]*$`)

const candidateQuery = `
SELECT l.location_id, l.latitude, l.longitude,
	COALESCE(CAST(l.dlgf_prop_class_code AS TEXT), '') AS dlgf_prop_class_code,
	COALESCE(l.has_solar_data, 0) AS has_solar_data
FROM LOCATIONS l
WHERE NOT EXISTS (SELECT 1 FROM GOOGLE_SOLAR g WHERE g.location_id = l.location_id)
	AND COALESCE(l.has_solar_data, 0) BETWEEN ? AND 1
	AND CAST(l.dlgf_prop_class_code AS TEXT) LIKE ?
	AND typeof(l.latitude) = 'real'
	AND typeof(l.longitude) = 'real'
ORDER BY l.location_id
LIMIT ?`

// SelectCandidates returns locations eligible for an enrichment attempt:
// no estimate yet, state 1 (or 0 when IncludeUnchecked), a matching
// property class and numeric coordinates. Ordered by location_id.
func (s *SQLiteStore) SelectCandidates(ctx context.Context, filter CandidateFilter) ([]model.Location, error) {
	prefix := filter.ClassPrefix
	if prefix == "" {
		prefix = DefaultClassPrefix
	}
	if !classPrefixPattern.MatchString(prefix) {
		return nil, eris.Errorf("sqlite: invalid class prefix %q", prefix)
	}
	minState := model.StateNoData
	if filter.IncludeUnchecked {
		minState = model.StateUnchecked
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	var locs []model.Location
	if err := s.db.SelectContext(ctx, &locs, candidateQuery, int(minState), prefix+"%", limit); err != nil {
		return nil, eris.Wrap(err, "sqlite: select candidates")
	}
	return locs, nil
}

// MarkNoData records that a location was probed without usable data. A
// location that already has data is left untouched.
func (s *SQLiteStore) MarkNoData(ctx context.Context, locationID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE LOCATIONS SET has_solar_data = ? WHERE location_id = ? AND COALESCE(has_solar_data, 0) <= ?`,
		int(model.StateNoData), locationID, int(model.StateNoData),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark no data %d", locationID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n > 0 {
		return nil
	}

	state, err := s.LocationState(ctx, locationID)
	if err != nil {
		return err
	}
	zap.L().Debug("location already has data, state kept",
		zap.Int64("location_id", locationID),
		zap.Stringer("state", state),
	)
	return nil
}

const insertEstimate = `
INSERT INTO GOOGLE_SOLAR (
	location_id, latitude, longitude, imagery_quality, imagery_date,
	max_array_panels_count, panel_capacity_watts, nominal_power_watts,
	yearly_energy_dc_kwh, carbon_offset_factor_kg_per_mwh,
	estimated_annual_co2_savings_tons, estimated_houses_powered
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SaveEstimate advances the location to state 2 and inserts its estimate
// in one transaction. On success est.ID is set.
func (s *SQLiteStore) SaveEstimate(ctx context.Context, est *model.SolarEstimate) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save estimate")
	}
	defer tx.Rollback() //nolint:errcheck

	var existing int
	if err := tx.GetContext(ctx, &existing,
		`SELECT COUNT(*) FROM GOOGLE_SOLAR WHERE location_id = ?`, est.LocationID); err != nil {
		return eris.Wrapf(err, "sqlite: check estimate %d", est.LocationID)
	}
	if existing > 0 {
		return eris.Wrapf(ErrDuplicateEstimate, "sqlite: location %d", est.LocationID)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE LOCATIONS SET has_solar_data = ? WHERE location_id = ?`,
		int(model.StateHasData), est.LocationID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark has data %d", est.LocationID)
	}
	if err := checkRowsAffected(res, "location", est.LocationID); err != nil {
		return err
	}

	res, err = tx.ExecContext(ctx, insertEstimate,
		est.LocationID, est.Latitude, est.Longitude,
		est.ImageryQuality, est.ImageryDate,
		est.PanelCount, est.PanelCapacityWatts, est.NominalPowerWatts,
		est.YearlyEnergyDCKWh, est.CarbonOffsetFactor,
		est.AnnualCO2SavingsTons, est.EstimatedHousesPowered,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert estimate %d", est.LocationID)
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "sqlite: commit save estimate")
	}
	if id, err := res.LastInsertId(); err == nil {
		est.ID = id
	}
	return nil
}

// GetEstimate returns the estimate for a location, or nil if none exists.
func (s *SQLiteStore) GetEstimate(ctx context.Context, locationID int64) (*model.SolarEstimate, error) {
	var est model.SolarEstimate
	err := s.db.GetContext(ctx, &est, `
		SELECT solar_id, location_id, latitude, longitude,
			COALESCE(imagery_quality, '') AS imagery_quality, imagery_date,
			COALESCE(max_array_panels_count, 0) AS max_array_panels_count,
			COALESCE(panel_capacity_watts, 0) AS panel_capacity_watts,
			COALESCE(nominal_power_watts, 0) AS nominal_power_watts,
			COALESCE(yearly_energy_dc_kwh, 0) AS yearly_energy_dc_kwh,
			COALESCE(carbon_offset_factor_kg_per_mwh, 0) AS carbon_offset_factor_kg_per_mwh,
			COALESCE(estimated_annual_co2_savings_tons, 0) AS estimated_annual_co2_savings_tons,
			COALESCE(estimated_houses_powered, 0) AS estimated_houses_powered,
			date_added
		FROM GOOGLE_SOLAR WHERE location_id = ?`, locationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get estimate %d", locationID)
	}
	return &est, nil
}

// LocationState returns the enrichment state of one location.
func (s *SQLiteStore) LocationState(ctx context.Context, locationID int64) (model.EnrichmentState, error) {
	var state int
	err := s.db.GetContext(ctx, &state,
		`SELECT COALESCE(has_solar_data, 0) FROM LOCATIONS WHERE location_id = ?`, locationID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, eris.Errorf("location not found: %d", locationID)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: location state %d", locationID)
	}
	return model.EnrichmentState(state), nil
}

// StateCounts returns the number of locations in each enrichment state.
// A missing LOCATIONS table yields an empty map.
func (s *SQLiteStore) StateCounts(ctx context.Context) (map[model.EnrichmentState]int, error) {
	counts := make(map[model.EnrichmentState]int)
	exists, err := s.TableExists(ctx, TableLocations)
	if err != nil || !exists {
		return counts, err
	}

	var rows []struct {
		State int `db:"state"`
		N     int `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT COALESCE(has_solar_data, 0) AS state, COUNT(*) AS n FROM LOCATIONS GROUP BY 1`); err != nil {
		return nil, eris.Wrap(err, "sqlite: state counts")
	}
	for _, r := range rows {
		counts[model.EnrichmentState(r.State)] = r.N
	}
	return counts, nil
}
