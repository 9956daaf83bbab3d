package server_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beetlebugorg/enctiler/internal/registry"
	"github.com/beetlebugorg/enctiler/internal/server"
	"github.com/beetlebugorg/enctiler/internal/testutil"
)

// newTestServer builds a registry with charts "alpha" and "beta".
//
// alpha holds one tile at z=3, x=2, slippy y=5; the archive stores it at
// TMS row 2, so a hit proves the row flip is applied on the serve path.
func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	dir := t.TempDir()
	testutil.WriteArchive(t, filepath.Join(dir, "alpha.mbtiles"),
		map[string]string{
			"name":   "alpha",
			"format": "pbf",
			"bounds": "-71.5,42.0,-71.0,42.5",
		},
		[]testutil.TileRow{
			{Zoom: 3, Column: 2, Row: 2, Data: []byte("alpha-tile")},
		})
	testutil.WriteArchive(t, filepath.Join(dir, "beta.mbtiles"),
		map[string]string{"name": "beta"},
		[]testutil.TileRow{
			{Zoom: 3, Column: 2, Row: 2, Data: []byte("beta-tile")},
		})

	log := logrus.New()
	log.SetOutput(io.Discard)

	reg, err := registry.Load(dir, "", log)
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })

	return server.New(reg, log).Handler()
}

func get(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestTileHit(t *testing.T) {
	handler := newTestServer(t)

	rec := get(t, handler, "/tiles/alpha/3/2/5.pbf")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alpha-tile", rec.Body.String())
	assert.Equal(t, "application/x-protobuf", rec.Header().Get("Content-Type"))
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "public, max-age=31536000", rec.Header().Get("Cache-Control"))
}

func TestTileMissIsNoContent(t *testing.T) {
	handler := newTestServer(t)

	// Valid chart, coordinate outside its data extent.
	rec := get(t, handler, "/tiles/alpha/3/1/1.pbf")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestUnknownChartIsDistinctFromMissingTile(t *testing.T) {
	handler := newTestServer(t)

	rec := get(t, handler, "/tiles/gamma/3/2/5.pbf")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "chart not found")

	rec = get(t, handler, "/tiles/alpha/3/1/1.pbf")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestMalformedCoordinates(t *testing.T) {
	handler := newTestServer(t)

	for _, path := range []string{
		"/tiles/alpha/three/2/5.pbf",
		"/tiles/alpha/3/-1/5.pbf",
		"/tiles/alpha/3/2/nan.pbf",
		"/tiles/alpha/3/9/5.pbf", // x outside the z=3 grid
		"/tiles/alpha/3/2/8.pbf", // y outside the z=3 grid
		"/tiles/alpha/3/2.pbf",
		"/tiles/alpha/3/2/5/6/7.pbf",
	} {
		rec := get(t, handler, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "path %s", path)
	}
}

func TestLegacyFormMatchesExplicitForm(t *testing.T) {
	handler := newTestServer(t)

	// "alpha" sorts first, so the legacy form must delegate to it and the
	// responses must be byte-identical across hit, miss and bad-coordinate
	// outcomes.
	cases := []struct{ legacy, explicit string }{
		{"/tiles/3/2/5.pbf", "/tiles/alpha/3/2/5.pbf"},
		{"/tiles/3/1/1.pbf", "/tiles/alpha/3/1/1.pbf"},
		{"/tiles/3/2/99.pbf", "/tiles/alpha/3/2/99.pbf"},
	}
	for _, tc := range cases {
		legacy := get(t, handler, tc.legacy)
		explicit := get(t, handler, tc.explicit)
		assert.Equal(t, explicit.Code, legacy.Code, "status for %s", tc.legacy)
		assert.Equal(t, explicit.Body.Bytes(), legacy.Body.Bytes(), "body for %s", tc.legacy)
	}
}

func TestLegacyFormWithEmptyRegistry(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	reg, err := registry.Load(filepath.Join(t.TempDir(), "missing"), "", log)
	require.NoError(t, err)
	handler := server.New(reg, log).Handler()

	rec := get(t, handler, "/tiles/3/2/5.pbf")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A malformed coordinate is the client's fault regardless of how many
	// charts are loaded.
	rec = get(t, handler, "/tiles/3/2/nan.pbf")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStorageFailureIsServerError(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteArchive(t, filepath.Join(dir, "alpha.mbtiles"),
		map[string]string{"name": "alpha", "format": "pbf"},
		[]testutil.TileRow{
			{Zoom: 3, Column: 2, Row: 2, Data: []byte("alpha-tile")},
		})

	log := logrus.New()
	log.SetOutput(io.Discard)

	reg, err := registry.Load(dir, "", log)
	require.NoError(t, err)
	handler := server.New(reg, log).Handler()

	// Closing the registry makes every subsequent tile query fail at the
	// storage layer; that is the server's fault, not the client's.
	require.NoError(t, reg.Close())

	rec := get(t, handler, "/tiles/alpha/3/2/5.pbf")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "tile storage error")
}

func TestHealth(t *testing.T) {
	handler := newTestServer(t)

	rec := get(t, handler, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status string `json:"status"`
		Charts []struct {
			Name string `json:"name"`
			Path string `json:"path"`
		} `json:"charts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Charts, 2)
	assert.Equal(t, "alpha", resp.Charts[0].Name)
	assert.NotEmpty(t, resp.Charts[0].Path)
}

func TestChartListing(t *testing.T) {
	handler := newTestServer(t)

	rec := get(t, handler, "/charts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var charts []struct {
		Name       string            `json:"name"`
		Metadata   map[string]string `json:"metadata"`
		TileCount  int               `json:"tileCount"`
		ZoomLevels []int             `json:"zoomLevels"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &charts))
	require.Len(t, charts, 2)
	assert.Equal(t, "alpha", charts[0].Name)
	assert.Equal(t, 1, charts[0].TileCount)
	assert.Equal(t, []int{3}, charts[0].ZoomLevels)
	assert.Equal(t, "pbf", charts[0].Metadata["format"])
}

func TestCoverage(t *testing.T) {
	handler := newTestServer(t)

	rec := get(t, handler, "/charts/coverage?bbox=-71.4,42.1,-71.2,42.3")
	require.Equal(t, http.StatusOK, rec.Code)

	var charts []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &charts))
	require.Len(t, charts, 1)
	assert.Equal(t, "alpha", charts[0].Name)

	rec = get(t, handler, "/charts/coverage?bbox=0,0,1,1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &charts))
	assert.Empty(t, charts)

	rec = get(t, handler, "/charts/coverage")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(t, handler, "/charts/coverage?bbox=bogus")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSHeaders(t *testing.T) {
	handler := newTestServer(t)

	rec := get(t, handler, "/tiles/alpha/3/2/5.pbf")
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/tiles/alpha/3/2/5.pbf", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
