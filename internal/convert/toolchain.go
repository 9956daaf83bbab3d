package convert

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
)

// Toolchain is the capability interface over the two external utilities
// the pipeline orchestrates: per-layer geometry extraction and packaging
// of geometry into a tile archive. Their internal behavior is never
// reimplemented here, only invoked and parsed. Tests substitute a fake
// that returns canned geometry sets.
type Toolchain interface {
	// ListLayers returns the named layers present in a source chart
	// file, using the extraction utility's metadata-only mode.
	ListLayers(ctx context.Context, source string) ([]string, error)

	// ExtractLayer extracts exactly one layer from a source file,
	// writing a GeoJSON feature collection to dest.
	ExtractLayer(ctx context.Context, source, layer, dest string) error

	// Package packages the given GeoJSON files into one tile archive at
	// dest, all under a single source-layer, for the declared zoom range.
	// Re-running with identical inputs overwrites any prior archive.
	Package(ctx context.Context, chart string, geojsonPaths []string, dest string, minZoom, maxZoom int) error
}

// OGRToolchain shells out to GDAL's ogrinfo/ogr2ogr for extraction and to
// tippecanoe for packaging.
type OGRToolchain struct {
	OGRInfo    string // ogrinfo binary, layer enumeration
	OGR2OGR    string // ogr2ogr binary, per-layer GeoJSON extraction
	Tippecanoe string // tippecanoe binary, MBTiles packaging
}

// NewOGRToolchain returns a toolchain using the given binaries, falling
// back to the conventional names on PATH for any left empty.
func NewOGRToolchain(ogrinfo, ogr2ogr, tippecanoe string) *OGRToolchain {
	tc := &OGRToolchain{OGRInfo: ogrinfo, OGR2OGR: ogr2ogr, Tippecanoe: tippecanoe}
	if tc.OGRInfo == "" {
		tc.OGRInfo = "ogrinfo"
	}
	if tc.OGR2OGR == "" {
		tc.OGR2OGR = "ogr2ogr"
	}
	if tc.Tippecanoe == "" {
		tc.Tippecanoe = "tippecanoe"
	}
	return tc
}

// layerLine matches ogrinfo's layer listing, e.g. "1: DEPARE (Polygon)".
var layerLine = regexp.MustCompile(`^\d+:\s+(\S+)`)

func (tc *OGRToolchain) ListLayers(ctx context.Context, source string) ([]string, error) {
	out, err := runCommand(ctx, tc.OGRInfo, "-ro", "-q", source)
	if err != nil {
		return nil, fmt.Errorf("list layers of %s: %w", source, err)
	}
	return parseLayerListing(out), nil
}

// parseLayerListing extracts layer names from ogrinfo's structured
// listing. Lines that are not layer entries are ignored.
func parseLayerListing(out string) []string {
	var layers []string
	for _, line := range strings.Split(out, "\n") {
		if m := layerLine.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			layers = append(layers, m[1])
		}
	}
	return layers
}

func (tc *OGRToolchain) ExtractLayer(ctx context.Context, source, layer, dest string) error {
	_, err := runCommand(ctx, tc.OGR2OGR,
		"-f", "GeoJSON",
		"-skipfailures",
		dest, source, layer)
	if err != nil {
		return fmt.Errorf("extract %s: %w", layer, err)
	}
	return nil
}

func (tc *OGRToolchain) Package(ctx context.Context, chart string, geojsonPaths []string, dest string, minZoom, maxZoom int) error {
	args := []string{
		"--force", // overwrite any prior archive for this chart
		"-o", dest,
		"--name", chart,
		"--layer", SourceLayer,
		"--minimum-zoom", strconv.Itoa(minZoom),
		"--maximum-zoom", strconv.Itoa(maxZoom),
		"--drop-densest-as-needed",
	}
	args = append(args, geojsonPaths...)

	if _, err := runCommand(ctx, tc.Tippecanoe, args...); err != nil {
		return fmt.Errorf("tippecanoe: %w", err)
	}
	return nil
}

// runCommand runs one external utility, returning its stdout and folding
// stderr into the error for diagnosis.
func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return "", fmt.Errorf("%s: %w", name, err)
	}
	return stdout.String(), nil
}
