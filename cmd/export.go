package main

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/community-solar/internal/report"
	"github.com/sells-group/community-solar/internal/store"
)

var exportFlags struct {
	format string
	out    string
	filter store.SiteFilter
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export enriched sites as GeoJSON or an ESRI shapefile",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context(), "db")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		sites, err := st.ListSites(cmd.Context(), exportFlags.filter)
		if err != nil {
			return err
		}

		out := exportFlags.out
		switch strings.ToLower(exportFlags.format) {
		case "geojson":
			if out == "" {
				out = "community_solar_sites.geojson"
			}
			data, err := report.MarshalGeoJSON(sites)
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return eris.Wrapf(err, "export: write %s", out)
			}
		case "shapefile", "shp":
			if out == "" {
				out = "community_solar_sites.shp"
			}
			if err := report.WriteShapefile(out, sites); err != nil {
				return err
			}
		default:
			return eris.Errorf("export: unknown format %q (want geojson or shapefile)", exportFlags.format)
		}

		zap.L().Info("sites exported",
			zap.String("format", exportFlags.format),
			zap.String("path", out),
			zap.Int("sites", len(sites)),
		)
		return nil
	},
}

func init() {
	f := exportCmd.Flags()
	f.StringVar(&exportFlags.format, "format", "geojson", "output format: geojson or shapefile")
	f.StringVar(&exportFlags.out, "out", "", "output path")
	f.StringVar(&exportFlags.filter.City, "city", "", "only sites in this city")
	f.StringVar(&exportFlags.filter.PropertyCode, "property-code", "", "only sites with this property class code")
	f.Float64Var(&exportFlags.filter.MinYearlyKWh, "min-kwh", 0, "minimum yearly DC energy in kWh")
	f.BoolVar(&exportFlags.filter.DisadvantagedOnly, "disadvantaged", false, "only sites in disadvantaged census tracts")
	f.IntVar(&exportFlags.filter.Limit, "limit", 0, "maximum sites (0 for all)")
	rootCmd.AddCommand(exportCmd)
}
