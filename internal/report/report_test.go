package report

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/community-solar/internal/model"
	"github.com/sells-group/community-solar/internal/store"
)

var locationHeader = []string{
	"latitude", "longitude", "dlgf_prop_class_code", "geofulladdress",
	"geocity", "geostate", "geozip", "geocounty", "geobg10", "geobg20",
}

func load(t *testing.T, st *store.SQLiteStore, table string, header []string, rows ...[]string) {
	t.Helper()
	ctx := context.Background()
	_, err := st.EnsureTable(ctx, table, header)
	require.NoError(t, err)
	ch := make(chan []string, len(rows))
	for _, r := range rows {
		ch <- r
	}
	close(ch)
	res, err := st.LoadRows(ctx, table, header, ch)
	require.NoError(t, err)
	require.Empty(t, res.Failures)
}

// newSeededStore creates three locations; 1 and 2 are enriched, 1 sits in a
// disadvantaged tract.
func newSeededStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	load(t, st, store.TableLocations, locationHeader,
		[]string{"39.77", "-86.15", "640", "1 Main St", "Indianapolis", "IN", "46204", "Marion", "180970101001", "180970101001"},
		[]string{"41.08", "-85.14", "685", "2 Elm St", "Fort Wayne", "IN", "46802", "Allen", "180030001001", "180030001001"},
		[]string{"40.42", "-86.91", "610", "3 Oak St", "Lafayette", "IN", "47901", "Tippecanoe", "181570001001", "181570001001"},
	)
	load(t, st, store.TableCEJST, []string{"census_tract_2010_ID", "identified_as_disadvantaged"},
		[]string{"18097010100", "True"},
		[]string{"18003000100", "False"},
	)
	load(t, st, store.TablePropertyCodes, []string{"property_code", "description", "name"},
		[]string{"640", "Exempt property owned by a township", "Exempt"},
		[]string{"685", "Exempt property owned by a religious organization", "Religious"},
	)

	for id, kwh := range map[int64]float64{1: 15000, 2: 4000} {
		require.NoError(t, st.SaveEstimate(ctx, &model.SolarEstimate{
			LocationID:         id,
			ImageryQuality:     "HIGH",
			PanelCount:         40,
			PanelCapacityWatts: 400,
			NominalPowerWatts:  16000,
			YearlyEnergyDCKWh:  kwh,
		}))
	}
	return st
}
