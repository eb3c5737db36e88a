package enrich

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/community-solar/internal/model"
	"github.com/sells-group/community-solar/internal/store"
	"github.com/sells-group/community-solar/pkg/solar"
	"github.com/sells-group/community-solar/pkg/solar/mocks"
)

const payload = `{
  "imageryQuality": "HIGH",
  "imageryDate": {"year": 2023, "month": 6, "day": 15},
  "solarPotential": {
    "maxArrayPanelsCount": 40,
    "panelCapacityWatts": 400,
    "carbonOffsetFactorKgPerMwh": 428.5,
    "solarPanelConfigs": [
      {"panelsCount": 10, "yearlyEnergyDcKwh": 4000},
      {"panelsCount": 40, "yearlyEnergyDcKwh": 15000}
    ]
  }
}`

var header = []string{
	"latitude", "longitude", "dlgf_prop_class_code", "geofulladdress",
	"geocity", "geostate", "geozip", "geocounty", "geobg10", "geobg20",
}

// newSeededStore loads one state-1 location per latitude, in order.
func newSeededStore(t *testing.T, lats ...string) *store.SQLiteStore {
	t.Helper()
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	_, err = st.EnsureTable(ctx, store.TableLocations, header)
	require.NoError(t, err)
	rows := make(chan []string, len(lats))
	for _, lat := range lats {
		rows <- []string{lat, "-86.15", "640", "1 Main St", "Indianapolis", "IN", "46204", "Marion", "180970101001", "180970101001"}
	}
	close(rows)
	res, err := st.LoadRows(ctx, store.TableLocations, header, rows)
	require.NoError(t, err)
	require.Equal(t, len(lats), res.Inserted)

	for i := range lats {
		require.NoError(t, st.MarkNoData(ctx, int64(i+1)))
	}
	return st
}

func state(t *testing.T, st *store.SQLiteStore, id int64) model.EnrichmentState {
	t.Helper()
	s, err := st.LocationState(context.Background(), id)
	require.NoError(t, err)
	return s
}

type countingObserver struct {
	outcomes map[string]int
}

func (c *countingObserver) ObserveEnrichment(outcome string, _ time.Duration) {
	if c.outcomes == nil {
		c.outcomes = make(map[string]int)
	}
	c.outcomes[outcome]++
}

func TestRun_MixedOutcomes(t *testing.T) {
	st := newSeededStore(t, "39.1", "39.2", "39.3", "39.4")
	client := mocks.NewMockClient(t)
	client.On("FindClosest", mock.Anything, 39.1, -86.15).Return([]byte(payload), nil).Once()
	client.On("FindClosest", mock.Anything, 39.2, -86.15).Return(nil, solar.ErrNoData).Once()
	client.On("FindClosest", mock.Anything, 39.3, -86.15).Return([]byte(`[1,2,3]`), nil).Once()
	client.On("FindClosest", mock.Anything, 39.4, -86.15).Return(nil, errors.New("connection reset")).Once()

	obs := &countingObserver{}
	summary, err := NewRunner(st, client, obs).Run(context.Background(), Options{Filter: store.CandidateFilter{Limit: 10}})
	require.NoError(t, err)

	assert.Equal(t, &Summary{Candidates: 4, Attempted: 4, Enriched: 1, NoData: 1, Malformed: 1, Failed: 1}, summary)
	assert.Equal(t, map[string]int{OutcomeEnriched: 1, OutcomeNoData: 1, OutcomeMalformed: 1, OutcomeFailed: 1}, obs.outcomes)

	assert.Equal(t, model.StateHasData, state(t, st, 1))
	assert.Equal(t, model.StateNoData, state(t, st, 2))
	assert.Equal(t, model.StateNoData, state(t, st, 3))
	assert.Equal(t, model.StateNoData, state(t, st, 4))

	est, err := st.GetEstimate(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, est)
	assert.Equal(t, 40, est.PanelCount)
	assert.InDelta(t, 15000.0, est.YearlyEnergyDCKWh, 0.001)
	assert.InDelta(t, 10.485, est.AnnualCO2SavingsTons, 0.006)

	for _, id := range []int64{2, 3, 4} {
		est, err := st.GetEstimate(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, est)
	}
}

func TestRun_EnrichedLocationsNotReselected(t *testing.T) {
	st := newSeededStore(t, "39.1", "39.2")
	client := mocks.NewMockClient(t)
	client.On("FindClosest", mock.Anything, 39.1, -86.15).Return([]byte(payload), nil).Once()
	client.On("FindClosest", mock.Anything, 39.2, -86.15).Return(nil, solar.ErrNoData).Twice()

	r := NewRunner(st, client, nil)
	first, err := r.Run(context.Background(), Options{Filter: store.CandidateFilter{Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Attempted)

	// Only the no-data location is offered again.
	second, err := r.Run(context.Background(), Options{Filter: store.CandidateFilter{Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Candidates)
	assert.Equal(t, 1, second.NoData)
}

func TestRun_PermissionDeniedHaltsBatch(t *testing.T) {
	st := newSeededStore(t, "39.1", "39.2", "39.3")
	client := mocks.NewMockClient(t)
	client.On("FindClosest", mock.Anything, 39.1, -86.15).Return([]byte(payload), nil).Once()
	client.On("FindClosest", mock.Anything, 39.2, -86.15).Return(nil, solar.ErrPermissionDenied).Once()

	obs := &countingObserver{}
	summary, err := NewRunner(st, client, obs).Run(context.Background(), Options{Filter: store.CandidateFilter{Limit: 10}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, solar.ErrPermissionDenied))
	assert.True(t, summary.Aborted)
	assert.Equal(t, 2, summary.Attempted)
	assert.Equal(t, 1, summary.Enriched)
	assert.Equal(t, 1, obs.outcomes[OutcomeAborted])

	assert.Equal(t, model.StateHasData, state(t, st, 1))
	assert.Equal(t, model.StateNoData, state(t, st, 2))
	assert.Equal(t, model.StateNoData, state(t, st, 3))
	client.AssertNotCalled(t, "FindClosest", mock.Anything, 39.3, -86.15)
}

func TestRun_CancelledBetweenRecords(t *testing.T) {
	st := newSeededStore(t, "39.1", "39.2")
	ctx, cancel := context.WithCancel(context.Background())

	client := mocks.NewMockClient(t)
	client.On("FindClosest", mock.Anything, 39.1, -86.15).
		Run(func(mock.Arguments) { cancel() }).
		Return([]byte(payload), nil).Once()

	summary, err := NewRunner(st, client, nil).Run(ctx, Options{Filter: store.CandidateFilter{Limit: 10}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, summary.Attempted)

	// The in-flight record still completes.
	assert.Equal(t, model.StateHasData, state(t, st, 1))
	assert.Equal(t, model.StateNoData, state(t, st, 2))
}

func TestRun_CancelledDuringFetchLeavesState(t *testing.T) {
	st := newSeededStore(t, "39.1")
	ctx, cancel := context.WithCancel(context.Background())

	client := mocks.NewMockClient(t)
	client.On("FindClosest", mock.Anything, 39.1, -86.15).
		Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled).Once()

	summary, err := NewRunner(st, client, nil).Run(ctx, Options{Filter: store.CandidateFilter{Limit: 10}})
	require.Error(t, err)
	assert.True(t, summary.Aborted)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, model.StateNoData, state(t, st, 1))
}

func TestRun_LimitAndUnchecked(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))
	_, err = st.EnsureTable(ctx, store.TableLocations, header)
	require.NoError(t, err)
	rows := make(chan []string, 3)
	for _, lat := range []string{"39.1", "39.2", "39.3"} {
		rows <- []string{lat, "-86.15", "610", "", "", "", "", "", "", ""}
	}
	close(rows)
	_, err = st.LoadRows(ctx, store.TableLocations, header, rows)
	require.NoError(t, err)

	client := mocks.NewMockClient(t)

	// State-0 rows are not offered by default.
	summary, err := NewRunner(st, client, nil).Run(ctx, Options{Filter: store.CandidateFilter{Limit: 10}})
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Candidates)

	client.On("FindClosest", mock.Anything, mock.Anything, -86.15).Return(nil, solar.ErrNoData).Twice()
	summary, err = NewRunner(st, client, nil).Run(ctx, Options{Filter: store.CandidateFilter{Limit: 2, IncludeUnchecked: true}})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Candidates)
	assert.Equal(t, 2, summary.NoData)
	assert.Equal(t, model.StateUnchecked, state(t, st, 3))
}

type failingStore struct {
	Store
	candidates []model.Location
	saveErr    error
}

func (f *failingStore) SelectCandidates(context.Context, store.CandidateFilter) ([]model.Location, error) {
	return f.candidates, nil
}

func (f *failingStore) SaveEstimate(context.Context, *model.SolarEstimate) error {
	return f.saveErr
}

func TestRun_DuplicateEstimateSkipped(t *testing.T) {
	fs := &failingStore{
		candidates: []model.Location{{ID: 7, Latitude: 39.1, Longitude: -86.15}},
		saveErr:    store.ErrDuplicateEstimate,
	}
	client := mocks.NewMockClient(t)
	client.On("FindClosest", mock.Anything, 39.1, -86.15).Return([]byte(payload), nil).Once()

	summary, err := NewRunner(fs, client, nil).Run(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
}

func TestRun_StorageFailureStops(t *testing.T) {
	fs := &failingStore{
		candidates: []model.Location{{ID: 7, Latitude: 39.1, Longitude: -86.15}, {ID: 8, Latitude: 39.2, Longitude: -86.15}},
		saveErr:    errors.New("disk I/O error"),
	}
	client := mocks.NewMockClient(t)
	client.On("FindClosest", mock.Anything, 39.1, -86.15).Return([]byte(payload), nil).Once()

	summary, err := NewRunner(fs, client, nil).Run(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "location 7")
	assert.Equal(t, 1, summary.Failed)
	assert.False(t, summary.Aborted)
}
