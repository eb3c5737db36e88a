package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://hub.arcgis.com/api/download"))
	assert.True(t, IsRemote("http://localhost:8080/x.csv"))
	assert.False(t, IsRemote("data/cejst_data.csv"))
	assert.False(t, IsRemote("/tmp/https.csv"))
}

func TestLocalize_LocalPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codes.csv")
	require.NoError(t, os.WriteFile(path, []byte("a\n"), 0o644))

	got, err := Localize(context.Background(), newTestFetcher(), path, t.TempDir(), "x.csv")
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestLocalize_MissingLocalPath(t *testing.T) {
	_, err := Localize(context.Background(), newTestFetcher(), "nope.csv", t.TempDir(), "x.csv")
	assert.Error(t, err)
}

func TestLocalize_Download(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("census_tract_2010_ID\n18001030100\n"))
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "work")

	got, err := Localize(context.Background(), newTestFetcher(), srv.URL+"/files/cejst.csv", dir, "fallback.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "cejst.csv"), got)

	got, err = Localize(context.Background(), newTestFetcher(), srv.URL+"/export?id=1", dir, "fallback.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "fallback.csv"), got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Contains(t, string(data), "18001030100")
}
