package monitoring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/community-solar/internal/model"
	"github.com/sells-group/community-solar/internal/store"
)

type fakeStatusStore struct {
	counts   map[model.EnrichmentState]int
	tables   map[string]int
	loads    []store.LoadRun
	countErr error
}

func (f *fakeStatusStore) StateCounts(context.Context) (map[model.EnrichmentState]int, error) {
	return f.counts, f.countErr
}

func (f *fakeStatusStore) TableExists(_ context.Context, table string) (bool, error) {
	_, ok := f.tables[table]
	return ok, nil
}

func (f *fakeStatusStore) CountRows(_ context.Context, table string) (int, error) {
	return f.tables[table], nil
}

func (f *fakeStatusStore) ListLoads(context.Context, int) ([]store.LoadRun, error) {
	return f.loads, nil
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{
		counts: map[model.EnrichmentState]int{model.StateUnchecked: 90, model.StateNoData: 7, model.StateHasData: 3},
		tables: map[string]int{store.TableLocations: 100, store.TableEstimates: 3},
		loads: []store.LoadRun{
			{Table: store.TableLocations, Status: store.LoadComplete, Inserted: 100},
			{Table: store.TableCEJST, Status: store.LoadFailed, Inserted: 5, Failed: 2},
		},
	}
}

func TestCollector_Collect(t *testing.T) {
	snap, err := NewCollector(newFakeStatusStore(), 0).Collect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"unchecked": 90, "checked_no_data": 7, "checked_has_data": 3}, snap.States)
	assert.Equal(t, 90, snap.Pending())
	assert.Equal(t, map[string]int{store.TableLocations: 100, store.TableEstimates: 3}, snap.Tables)
	assert.Equal(t, 1, snap.FailedLoads)
	assert.Equal(t, 2, snap.FailedRows)
	assert.Equal(t, 105, snap.LoadedRows)
	assert.False(t, snap.CollectedAt.IsZero())
}

func TestCollector_StateCountError(t *testing.T) {
	fs := newFakeStatusStore()
	fs.countErr = errors.New("locked")

	_, err := NewCollector(fs, 5).Collect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitoring: state counts")
}

func TestCollector_RealStore(t *testing.T) {
	st, err := store.NewSQLite(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	snap, err := NewCollector(st, 10).Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Pending())
	assert.NotContains(t, snap.Tables, store.TableLocations)
	assert.Contains(t, snap.Tables, store.TableEstimates)
}

func TestStateCollector(t *testing.T) {
	c := NewStateCollector(newFakeStatusStore())

	expected := `
# HELP community_solar_locations Locations by enrichment state.
# TYPE community_solar_locations gauge
community_solar_locations{state="checked_has_data"} 3
community_solar_locations{state="checked_no_data"} 7
community_solar_locations{state="unchecked"} 90
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestStateCollector_ErrorEmitsNothing(t *testing.T) {
	fs := newFakeStatusStore()
	fs.countErr = errors.New("locked")

	assert.Equal(t, 0, testutil.CollectAndCount(NewStateCollector(fs)))
}
