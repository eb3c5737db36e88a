package store

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/community-solar/internal/model"
)

const siteSelect = `
SELECT l.location_id, l.latitude, l.longitude,
	COALESCE(CAST(l.dlgf_prop_class_code AS TEXT), '') AS dlgf_prop_class_code,
	COALESCE(pc.name, '') AS property_name,
	COALESCE(l.geofulladdress, '') AS geofulladdress,
	COALESCE(l.geocity, '') AS geocity,
	COALESCE(CAST(l.geozip AS TEXT), '') AS geozip,
	COALESCE(substr(l.geobg10, 1, 11), '') AS tract_id,
	COALESCE(c.identified_as_disadvantaged, '') AS identified_as_disadvantaged,
	COALESCE(g.max_array_panels_count, 0) AS max_array_panels_count,
	COALESCE(g.nominal_power_watts, 0) AS nominal_power_watts,
	COALESCE(g.yearly_energy_dc_kwh, 0) AS yearly_energy_dc_kwh,
	COALESCE(g.estimated_annual_co2_savings_tons, 0) AS estimated_annual_co2_savings_tons,
	COALESCE(g.estimated_houses_powered, 0) AS estimated_houses_powered
FROM LOCATIONS l
JOIN GOOGLE_SOLAR g ON g.location_id = l.location_id
LEFT JOIN CEJST c ON c.census_tract_2010_ID = substr(l.geobg10, 1, 11)
LEFT JOIN PROPERTY_CODES pc ON pc.property_code = l.dlgf_prop_class_code`

// ListSites returns enriched locations joined with their reference data,
// ordered by yearly energy descending. It only reads.
func (s *SQLiteStore) ListSites(ctx context.Context, filter SiteFilter) ([]model.Site, error) {
	for _, t := range []string{TableLocations, TableEstimates, TableCEJST, TablePropertyCodes} {
		ok, err := s.TableExists(ctx, t)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, eris.Errorf("sqlite: list sites: table %s does not exist", t)
		}
	}

	var (
		where []string
		args  []any
	)
	if filter.City != "" {
		where = append(where, "l.geocity = ? COLLATE NOCASE")
		args = append(args, filter.City)
	}
	if filter.PropertyCode != "" {
		where = append(where, "CAST(l.dlgf_prop_class_code AS TEXT) = ?")
		args = append(args, filter.PropertyCode)
	}
	if filter.MinYearlyKWh > 0 {
		where = append(where, "g.yearly_energy_dc_kwh >= ?")
		args = append(args, filter.MinYearlyKWh)
	}
	if filter.DisadvantagedOnly {
		where = append(where, "c.identified_as_disadvantaged IN ('True', 'true', 'TRUE', '1')")
	}

	query := siteSelect
	if len(where) > 0 {
		query += "\nWHERE " + strings.Join(where, " AND ")
	}
	query += "\nGROUP BY l.location_id\nORDER BY g.yearly_energy_dc_kwh DESC, l.location_id"

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += "\nLIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	var sites []model.Site
	if err := s.db.SelectContext(ctx, &sites, query, args...); err != nil {
		return nil, eris.Wrap(err, "sqlite: list sites")
	}
	return sites, nil
}
