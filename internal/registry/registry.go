// Package registry builds the startup-time index of usable chart archives.
//
// The registry scans a directory of MBTiles archives, opens each through
// the archive loader, and exposes an immutable name-to-chart mapping to
// the serving engine. A malformed archive is skipped with a logged reason;
// it never fails the whole registry build.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dhconnelly/rtreego"
	"github.com/sirupsen/logrus"

	"github.com/beetlebugorg/enctiler/pkg/mbtiles"
)

// Chart is one loaded archive plus its summary metadata.
type Chart struct {
	Name       string            // Archive file base name, unique per registry
	Path       string            // Absolute or configured path to the archive
	Metadata   map[string]string // Raw metadata key/value pairs
	TileCount  int
	ZoomLevels []int  // Sorted zoom levels actually present
	Bounds     Bounds // Coverage box from the bounds metadata key
	HasBounds  bool   // False when the bounds key is absent or unparseable

	archive *mbtiles.Archive
}

// GetTile queries the chart's archive at TMS coordinates.
func (c *Chart) GetTile(zoom, column, row int) ([]byte, error) {
	return c.archive.GetTile(zoom, column, row)
}

// chartEntry wraps a chart for R-tree storage.
type chartEntry struct {
	chart *Chart
}

// Bounds implements the rtreego.Spatial interface.
func (e chartEntry) Bounds() rtreego.Rect {
	point := rtreego.Point{e.chart.Bounds.MinLon, e.chart.Bounds.MinLat}

	// R-tree rects need non-zero extents; pad degenerate boxes by
	// roughly ten meters at the equator.
	const epsilon = 0.0001
	lonLength := e.chart.Bounds.MaxLon - e.chart.Bounds.MinLon
	latLength := e.chart.Bounds.MaxLat - e.chart.Bounds.MinLat
	if lonLength < epsilon {
		lonLength = epsilon
	}
	if latLength < epsilon {
		latLength = epsilon
	}

	rect, _ := rtreego.NewRect(point, []float64{lonLength, latLength})
	return rect
}

// Registry is the immutable chart index consumed by the serving engine.
//
// Built once before serving starts and shared read-only across requests,
// so no locking is needed on the lookup path.
type Registry struct {
	charts map[string]*Chart
	names  []string // Sorted; names[0] is the compatibility-mode default
	rtree  *rtreego.Rtree
}

// Load scans dir for *.mbtiles archives and opens each one.
//
// If dir does not exist, Load falls back to the single legacy archive at
// legacyPath; if that is also absent the registry is empty, which is not
// an error by itself. An archive that fails to open or validate is logged
// and omitted; the remaining archives still load.
func Load(dir, legacyPath string, log *logrus.Logger) (*Registry, error) {
	paths, err := discoverArchives(dir, legacyPath, log)
	if err != nil {
		return nil, err
	}

	reg := &Registry{
		charts: make(map[string]*Chart),
		rtree:  rtreego.NewTree(2, 25, 50),
	}

	for _, path := range paths {
		chart, err := openChart(path)
		if err != nil {
			log.WithFields(logrus.Fields{"archive": path}).
				Warnf("skipping archive: %v", err)
			continue
		}
		if _, dup := reg.charts[chart.Name]; dup {
			chart.archive.Close()
			log.WithFields(logrus.Fields{"archive": path, "chart": chart.Name}).
				Warn("skipping archive: duplicate chart name")
			continue
		}

		reg.charts[chart.Name] = chart
		reg.names = append(reg.names, chart.Name)
		if chart.HasBounds {
			reg.rtree.Insert(chartEntry{chart: chart})
		}

		log.WithFields(logrus.Fields{
			"chart": chart.Name,
			"tiles": chart.TileCount,
			"zooms": chart.ZoomLevels,
		}).Info("loaded chart")
	}

	sort.Strings(reg.names)
	return reg, nil
}

// discoverArchives resolves the set of archive paths to load.
func discoverArchives(dir, legacyPath string, log *logrus.Logger) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		if legacyPath != "" {
			if _, statErr := os.Stat(legacyPath); statErr == nil {
				log.Warnf("chart directory %s missing, falling back to legacy archive %s", dir, legacyPath)
				return []string{legacyPath}, nil
			}
		}
		log.Warnf("chart directory %s missing and no legacy archive found, starting with an empty registry", dir)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chart directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".mbtiles") {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	return paths, nil
}

// openChart opens one archive and collects its summary metadata.
func openChart(path string) (*Chart, error) {
	archive, err := mbtiles.Open(path)
	if err != nil {
		return nil, err
	}

	chart := &Chart{
		Name:    strings.TrimSuffix(filepath.Base(path), ".mbtiles"),
		Path:    path,
		archive: archive,
	}

	if chart.Metadata, err = archive.Metadata(); err != nil {
		archive.Close()
		return nil, err
	}
	if chart.TileCount, err = archive.TileCount(); err != nil {
		archive.Close()
		return nil, err
	}
	if chart.ZoomLevels, err = archive.ZoomLevels(); err != nil {
		archive.Close()
		return nil, err
	}

	if raw, ok := chart.Metadata["bounds"]; ok {
		if bounds, err := ParseBounds(raw); err == nil {
			chart.Bounds = bounds
			chart.HasBounds = true
		}
	}

	return chart, nil
}

// Get returns the chart with the given name.
func (r *Registry) Get(name string) (*Chart, bool) {
	chart, ok := r.charts[name]
	return chart, ok
}

// First returns the first registered chart, the implicit target of
// legacy-form tile requests. Names are sorted, so the choice is
// deterministic across restarts.
func (r *Registry) First() (*Chart, bool) {
	if len(r.names) == 0 {
		return nil, false
	}
	return r.charts[r.names[0]], true
}

// Names returns the sorted chart names.
func (r *Registry) Names() []string {
	return r.names
}

// Len returns the number of loaded charts.
func (r *Registry) Len() int {
	return len(r.charts)
}

// Covering returns the charts whose coverage bounds intersect the given
// box, in name order. Charts without usable bounds metadata are never
// returned here even though they are still served by name.
func (r *Registry) Covering(bounds Bounds) []*Chart {
	point := rtreego.Point{bounds.MinLon, bounds.MinLat}
	lengths := []float64{bounds.MaxLon - bounds.MinLon, bounds.MaxLat - bounds.MinLat}
	const epsilon = 0.0001
	if lengths[0] < epsilon {
		lengths[0] = epsilon
	}
	if lengths[1] < epsilon {
		lengths[1] = epsilon
	}
	rect, err := rtreego.NewRect(point, lengths)
	if err != nil {
		return nil
	}

	spatials := r.rtree.SearchIntersect(rect)
	charts := make([]*Chart, 0, len(spatials))
	for _, spatial := range spatials {
		chart := spatial.(chartEntry).chart
		// The index rects carry epsilon padding; re-check against the
		// exact chart bounds so the padding never admits a false hit.
		if !chart.Bounds.Intersects(bounds) {
			continue
		}
		charts = append(charts, chart)
	}
	sort.Slice(charts, func(i, j int) bool { return charts[i].Name < charts[j].Name })
	return charts
}

// Close releases every loaded archive handle.
func (r *Registry) Close() error {
	var firstErr error
	for _, name := range r.names {
		if err := r.charts[name].archive.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
