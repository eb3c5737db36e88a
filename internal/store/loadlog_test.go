package store

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLite_LoadLog_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.StartLoad(ctx, TableCEJST, "cejst_data.csv")
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, LoadRunning, run.Status)

	result := &LoadResult{Table: TableCEJST, Inserted: 10, Failures: []RowFailure{{Line: 3}}}
	require.NoError(t, st.FinishLoad(ctx, run, result, nil))
	assert.Equal(t, LoadComplete, run.Status)
	require.NotNil(t, run.FinishedAt)

	runs, err := st.ListLoads(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.RunID, runs[0].RunID)
	assert.Equal(t, TableCEJST, runs[0].Table)
	assert.Equal(t, "cejst_data.csv", runs[0].Source)
	assert.Equal(t, LoadComplete, runs[0].Status)
	assert.Equal(t, 10, runs[0].Inserted)
	assert.Equal(t, 1, runs[0].Failed)
	assert.NotNil(t, runs[0].FinishedAt)
}

func TestSQLite_LoadLog_Failed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.StartLoad(ctx, TableLocations, "https://example.com/locations.csv")
	require.NoError(t, err)

	require.NoError(t, st.FinishLoad(ctx, run, nil, eris.New("download failed")))
	assert.Equal(t, LoadFailed, run.Status)

	runs, err := st.ListLoads(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, LoadFailed, runs[0].Status)
	assert.Equal(t, "download failed", runs[0].Error)
}

func TestSQLite_LoadLog_FinishUnknownRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.FinishLoad(context.Background(), &LoadRun{RunID: "missing"}, &LoadResult{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load run not found")
}
