package report

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/community-solar/internal/model"
)

// Shapefile attribute names are limited to 10 characters.
var shapeFields = []shp.Field{
	shp.NumberField("LOC_ID", 12),
	shp.StringField("ADDRESS", 120),
	shp.StringField("CITY", 60),
	shp.StringField("ZIP", 10),
	shp.StringField("PROP_CODE", 5),
	shp.StringField("PROP_NAME", 80),
	shp.StringField("TRACT_ID", 11),
	shp.StringField("DISADV", 5),
	shp.NumberField("PANELS", 8),
	shp.FloatField("NOMINAL_W", 14, 2),
	shp.FloatField("YEARLY_KWH", 14, 2),
	shp.FloatField("CO2_TONS", 12, 2),
	shp.FloatField("HOUSES", 10, 2),
}

// WriteShapefile writes sites as a point shapefile. path names the .shp
// file; the .shx and .dbf companions are written beside it.
func WriteShapefile(path string, sites []model.Site) error {
	if !strings.HasSuffix(strings.ToLower(path), ".shp") {
		path += ".shp"
	}
	base := path[:len(path)-len(".shp")]

	w, err := shp.Create(path, shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "report: create shapefile %s", path)
	}
	if err := writeShapes(w, sites); err != nil {
		w.Close()
		return err
	}
	w.Close()

	// go-shp v0.1.1 names the attribute table "<base>dbf", without the dot.
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "report: rename attribute table for %s", path)
	}
	return nil
}

func writeShapes(w *shp.Writer, sites []model.Site) error {
	if err := w.SetFields(shapeFields); err != nil {
		return eris.Wrap(err, "report: set shapefile fields")
	}

	for _, s := range sites {
		row := int(w.Write(&shp.Point{X: s.Longitude, Y: s.Latitude}))
		values := []any{
			int(s.LocationID),
			truncate(s.Address, 120),
			truncate(s.City, 60),
			s.Zip,
			s.PropertyClassCode,
			truncate(s.PropertyName, 80),
			s.TractID,
			s.Disadvantaged,
			s.PanelCount,
			s.NominalPowerWatts,
			s.YearlyEnergyDCKWh,
			s.AnnualCO2SavingsTons,
			s.HousesPowered,
		}
		for field, v := range values {
			if err := w.WriteAttribute(row, field, v); err != nil {
				return eris.Wrapf(err, "report: write attribute %d for location %d", field, s.LocationID)
			}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
