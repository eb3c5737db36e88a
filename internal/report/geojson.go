package report

import (
	"encoding/json"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/community-solar/internal/model"
)

// FeatureCollection converts sites into GeoJSON point features keyed by
// location id. Coordinates are WGS84 longitude, latitude.
func FeatureCollection(sites []model.Site) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(sites))}
	for _, s := range sites {
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       strconv.FormatInt(s.LocationID, 10),
			Geometry: geom.NewPointFlat(geom.XY, []float64{s.Longitude, s.Latitude}),
			Properties: map[string]any{
				"location_id":          s.LocationID,
				"address":              s.Address,
				"city":                 s.City,
				"zip":                  s.Zip,
				"property_code":        s.PropertyClassCode,
				"property_name":        s.PropertyName,
				"tract_id":             s.TractID,
				"disadvantaged":        s.Disadvantaged,
				"panel_count":          s.PanelCount,
				"nominal_power_watts":  s.NominalPowerWatts,
				"yearly_energy_dc_kwh": s.YearlyEnergyDCKWh,
				"co2_savings_tons":     s.AnnualCO2SavingsTons,
				"houses_powered":       s.HousesPowered,
			},
		})
	}
	return fc
}

// MarshalGeoJSON encodes sites as a GeoJSON FeatureCollection.
func MarshalGeoJSON(sites []model.Site) ([]byte, error) {
	data, err := json.Marshal(FeatureCollection(sites))
	if err != nil {
		return nil, eris.Wrap(err, "report: marshal geojson")
	}
	return data, nil
}
