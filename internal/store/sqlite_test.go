package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T, opts ...Option) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

// feed sends rows on a closed channel.
func feed(rows ...[]string) <-chan []string {
	ch := make(chan []string, len(rows))
	for _, r := range rows {
		ch <- r
	}
	close(ch)
	return ch
}

var locationHeader = []string{
	"latitude", "longitude", "dlgf_prop_class_code", "geofulladdress",
	"geocity", "geostate", "geozip", "geocounty", "geobg10", "geobg20",
}

// seedLocations creates LOCATIONS and loads rows in header order.
func seedLocations(t *testing.T, st *SQLiteStore, rows ...[]string) {
	t.Helper()
	ctx := context.Background()
	_, err := st.EnsureTable(ctx, TableLocations, locationHeader)
	require.NoError(t, err)
	res, err := st.LoadRows(ctx, TableLocations, locationHeader, feed(rows...))
	require.NoError(t, err)
	require.Empty(t, res.Failures)
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.Migrate(ctx))

	for _, table := range []string{TableEstimates, TableLoadLog} {
		ok, err := st.TableExists(ctx, table)
		require.NoError(t, err)
		assert.True(t, ok, table)
	}
}

func TestSQLite_Ping(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Ping(context.Background()))
}

func TestSQLite_Reset(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	seedLocations(t, st, []string{"39.7", "-86.1", "640", "1 Main St", "Indianapolis", "IN", "46204", "Marion", "180970101001", "180970101002"})

	require.NoError(t, st.Reset(ctx))

	for _, table := range []string{TableLocations, TableEstimates, TableCEJST, TablePropertyCodes, TableLoadLog} {
		ok, err := st.TableExists(ctx, table)
		require.NoError(t, err)
		assert.False(t, ok, table)
	}

	// Reset on an empty database is a no-op.
	require.NoError(t, st.Reset(ctx))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"latitude"`, quoteIdent("latitude"))
	assert.Equal(t, `"Census tract ""2010"""`, quoteIdent(`Census tract "2010"`))
}

func TestValidTable(t *testing.T) {
	assert.NoError(t, validTable("LOCATIONS"))
	assert.NoError(t, validTable("load_log_2"))
	assert.Error(t, validTable("LOCATIONS; DROP TABLE CEJST"))
	assert.Error(t, validTable(""))
	assert.Error(t, validTable("1abc"))
}
