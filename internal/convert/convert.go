// Package convert orchestrates the offline chart conversion pipeline.
//
// Each raw chart source file becomes one self-contained MBTiles archive,
// independently of all other source files: enumerate the source's layers,
// extract each layer to GeoJSON, stamp provenance attributes, prune empty
// layers, and package everything that remains under a single source-layer.
// One malformed source degrades gracefully instead of failing the batch.
package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	"golang.org/x/sync/errgroup"
	pb "gopkg.in/cheggaaa/pb.v1"
)

// SourceLayer is the single named layer inside every packaged archive.
// The styling boundary filters within it by the "layer" provenance
// attribute rather than by separate named layers.
const SourceLayer = "features"

// Provenance attribute keys stamped onto every extracted feature.
const (
	provenanceLayer = "layer"
	provenanceChart = "chart"
)

// Options configures a conversion batch.
type Options struct {
	// InputDir holds the raw chart source files (S-57 base cells).
	InputDir string

	// OutputDir receives one <name>.mbtiles archive per source file.
	OutputDir string

	// WorkDir holds transient per-run extraction output.
	// If empty, the system temp directory is used.
	WorkDir string

	// MinZoom and MaxZoom declare the archive's zoom range.
	MinZoom int
	MaxZoom int

	// Workers bounds how many charts convert concurrently. Each chart's
	// extraction-to-packaging sequence is independent, so no cross-chart
	// synchronization is needed. Default is 1 (sequential).
	Workers int

	// Progress enables the terminal progress bar.
	Progress bool
}

// DefaultOptions returns conversion options with defaults.
func DefaultOptions() Options {
	return Options{
		InputDir:  "charts",
		OutputDir: "tiles",
		MinZoom:   0,
		MaxZoom:   14,
		Workers:   1,
		Progress:  true,
	}
}

// Skip records one unit of work that was passed over, and why.
type Skip struct {
	Chart  string
	Layer  string // Empty when the whole chart was skipped
	Reason string
}

// Result is the fold over a conversion batch: what succeeded and what
// was skipped with a reason. Skips never abort sibling units of work.
type Result struct {
	Succeeded []string
	Skipped   []Skip
}

// Runner executes conversion batches against a toolchain.
type Runner struct {
	tools Toolchain
	opts  Options
	log   *logrus.Logger
}

// NewRunner creates a batch runner. The toolchain is injected so tests
// can substitute a fake for the external binaries.
func NewRunner(tools Toolchain, opts Options, log *logrus.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{tools: tools, opts: opts, log: log}
}

// DiscoverSources returns the eligible chart source files in dir.
//
// A missing directory is the batch's one fatal precondition and returns
// ErrSourceDirMissing. A directory with no eligible files returns an
// empty slice, not an error.
func DiscoverSources(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrSourceDirMissing, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("scan source directory: %w", err)
	}

	var sources []string
	for _, entry := range entries {
		// S-57 base cells carry the .000 extension; updates (.001 and
		// up) are applied by the extraction utility itself.
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".000") {
			continue
		}
		sources = append(sources, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(sources)
	return sources, nil
}

// Run converts every source file in the input directory.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	sources, err := DiscoverSources(r.opts.InputDir)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		r.log.Warnf("no chart sources found in %s", r.opts.InputDir)
		return &Result{}, nil
	}

	if err := os.MkdirAll(r.opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	runID, err := shortid.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}
	workRoot := r.opts.WorkDir
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	runDir := filepath.Join(workRoot, "enctiler-"+runID)
	defer os.RemoveAll(runDir)

	r.log.Infof("converting %d chart(s), run %s", len(sources), runID)

	var bar *pb.ProgressBar
	if r.opts.Progress {
		bar = pb.New(len(sources)).Prefix("charts ")
		bar.Start()
	}

	var (
		mu     sync.Mutex
		result Result
	)
	var group errgroup.Group
	group.SetLimit(r.opts.Workers)

	for _, source := range sources {
		source := source
		group.Go(func() error {
			succeeded, skips := r.convertChart(ctx, source, runDir)

			mu.Lock()
			if succeeded != "" {
				result.Succeeded = append(result.Succeeded, succeeded)
			}
			result.Skipped = append(result.Skipped, skips...)
			mu.Unlock()

			if bar != nil {
				bar.Increment()
			}
			// Per-chart failures are recorded, never propagated: one
			// bad source must not abort its siblings.
			return nil
		})
	}
	group.Wait()

	if bar != nil {
		bar.Finish()
	}

	sort.Strings(result.Succeeded)
	r.log.Infof("conversion finished: %d succeeded, %d skipped",
		len(result.Succeeded), len(result.Skipped))
	return &result, nil
}

// convertChart runs the full extract-prune-package sequence for one
// source file. Returns the chart name on success, plus any layer- or
// chart-level skips recorded along the way.
func (r *Runner) convertChart(ctx context.Context, source, runDir string) (string, []Skip) {
	chart := chartName(source)
	log := r.log.WithFields(logrus.Fields{"chart": chart, "source": source})

	var skips []Skip

	layers, err := r.tools.ListLayers(ctx, source)
	if err != nil {
		log.Errorf("layer enumeration failed: %v", err)
		return "", append(skips, Skip{Chart: chart, Reason: err.Error()})
	}
	if len(layers) == 0 {
		log.Warn("source has no layers, skipping")
		return "", append(skips, Skip{Chart: chart, Reason: "no layers in source"})
	}

	// All intermediate geometry is transient working state, removed
	// whether the chart succeeds or not.
	chartDir := filepath.Join(runDir, chart)
	defer os.RemoveAll(chartDir)
	if err := os.MkdirAll(chartDir, 0o755); err != nil {
		log.Errorf("create work directory: %v", err)
		return "", append(skips, Skip{Chart: chart, Reason: err.Error()})
	}

	var geometrySets []string
	for _, layer := range layers {
		path, count, err := r.extractLayer(ctx, source, chart, layer, chartDir)
		if err != nil {
			extractErr := &ExtractionError{Source: source, Layer: layer, Err: err}
			log.WithFields(logrus.Fields{"layer": layer}).Errorf("extraction failed: %v", err)
			skips = append(skips, Skip{Chart: chart, Layer: layer, Reason: extractErr.Error()})
			continue
		}
		if count == 0 {
			// Normal outcome: the layer has no matching features in
			// this chart's extent. Pruned before packaging.
			log.WithFields(logrus.Fields{"layer": layer}).Debug("no features, layer pruned")
			continue
		}
		log.WithFields(logrus.Fields{"layer": layer, "features": count}).Debug("layer extracted")
		geometrySets = append(geometrySets, path)
	}

	if len(geometrySets) == 0 {
		log.Warn("no non-empty layers extracted, skipping")
		return "", append(skips, Skip{Chart: chart, Reason: "no features extracted"})
	}

	dest := filepath.Join(r.opts.OutputDir, chart+".mbtiles")
	if err := r.tools.Package(ctx, chart, geometrySets, dest, r.opts.MinZoom, r.opts.MaxZoom); err != nil {
		packErr := &PackagingError{Chart: chart, Err: err}
		log.Errorf("packaging failed: %v", err)
		return "", append(skips, Skip{Chart: chart, Reason: packErr.Error()})
	}

	log.Infof("packaged %d layer(s) into %s", len(geometrySets), dest)
	return chart, skips
}

// extractLayer extracts one layer, stamps provenance onto its features,
// and reports the feature count. A zero-feature layer leaves no
// intermediate artifact behind.
func (r *Runner) extractLayer(ctx context.Context, source, chart, layer, chartDir string) (string, int, error) {
	path := filepath.Join(chartDir, layer+".geojson")
	if err := r.tools.ExtractLayer(ctx, source, layer, path); err != nil {
		return "", 0, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", 0, fmt.Errorf("read extracted geometry: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("parse extracted geometry: %w", err)
	}

	if len(fc.Features) == 0 {
		os.Remove(path)
		return "", 0, nil
	}

	stampProvenance(fc, chart, layer)

	tagged, err := fc.MarshalJSON()
	if err != nil {
		return "", 0, fmt.Errorf("encode tagged geometry: %w", err)
	}
	if err := os.WriteFile(path, tagged, 0o644); err != nil {
		return "", 0, fmt.Errorf("write tagged geometry: %w", err)
	}

	return path, len(fc.Features), nil
}

// stampProvenance records each feature's originating layer and chart.
// The stamp is additive only: a property the feature already carries is
// never overwritten.
func stampProvenance(fc *geojson.FeatureCollection, chart, layer string) {
	for _, feature := range fc.Features {
		if feature.Properties == nil {
			feature.Properties = geojson.Properties{}
		}
		if _, exists := feature.Properties[provenanceLayer]; !exists {
			feature.Properties[provenanceLayer] = layer
		}
		if _, exists := feature.Properties[provenanceChart]; !exists {
			feature.Properties[provenanceChart] = chart
		}
	}
}

// chartName derives the archive name from the source file's base name.
func chartName(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
