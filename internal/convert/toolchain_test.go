package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLayerListing(t *testing.T) {
	out := `INFO: Open of 'US5MA22M.000'
      using driver 'S57' successful.
1: DSID (None)
2: DEPARE (Polygon)
3: DEPCNT (Line String)
4: LIGHTS (Point)
11: M_COVR (Polygon)
`
	layers := parseLayerListing(out)
	assert.Equal(t, []string{"DSID", "DEPARE", "DEPCNT", "LIGHTS", "M_COVR"}, layers)
}

func TestParseLayerListingEmpty(t *testing.T) {
	assert.Empty(t, parseLayerListing(""))
	assert.Empty(t, parseLayerListing("INFO: Open of 'empty.000'\n"))
}

func TestNewOGRToolchainDefaults(t *testing.T) {
	tc := NewOGRToolchain("", "", "")
	assert.Equal(t, "ogrinfo", tc.OGRInfo)
	assert.Equal(t, "ogr2ogr", tc.OGR2OGR)
	assert.Equal(t, "tippecanoe", tc.Tippecanoe)

	tc = NewOGRToolchain("/opt/gdal/bin/ogrinfo", "", "/usr/local/bin/tippecanoe")
	assert.Equal(t, "/opt/gdal/bin/ogrinfo", tc.OGRInfo)
	assert.Equal(t, "ogr2ogr", tc.OGR2OGR)
	assert.Equal(t, "/usr/local/bin/tippecanoe", tc.Tippecanoe)
}

func TestChartName(t *testing.T) {
	assert.Equal(t, "US5MA22M", chartName("/data/charts/US5MA22M.000"))
	assert.Equal(t, "US4MD81M", chartName("US4MD81M.000"))
}
