package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/beetlebugorg/enctiler/internal/registry"
	"github.com/beetlebugorg/enctiler/pkg/mbtiles"
)

// handleTiles answers both tile address forms:
//
//	/tiles/{chart}/{z}/{x}/{y}.pbf   explicit chart selection
//	/tiles/{z}/{x}/{y}.pbf           first registered chart (legacy clients)
//
// The legacy form resolves the default chart name and then takes the same
// serve path as the explicit form, so the coordinate transform and error
// mapping can never diverge between the two.
func (s *Server) handleTiles(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { s.metrics.tileDuration.Observe(time.Since(start).Seconds()) }()

	path := strings.TrimPrefix(r.URL.Path, "/tiles/")
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")

	// Parse before resolving, for both address forms, so a malformed
	// coordinate maps to the same client error no matter the registry
	// state or which form carried it.
	var chartName string
	var coords []string
	var legacy bool
	switch len(parts) {
	case 4:
		chartName, coords = parts[0], parts[1:]
	case 3:
		coords, legacy = parts, true
	default:
		s.metrics.tileRequests.WithLabelValues(outcomeBadRequest).Inc()
		http.Error(w, "invalid tile address, want /tiles/{chart}/{z}/{x}/{y}.pbf or /tiles/{z}/{x}/{y}.pbf", http.StatusBadRequest)
		return
	}

	// The final segment carries the requested extension; only the
	// coordinate matters here.
	if dot := strings.LastIndexByte(coords[2], '.'); dot >= 0 {
		coords[2] = coords[2][:dot]
	}

	zoom, column, row, err := parseCoords(coords)
	if err != nil {
		s.metrics.tileRequests.WithLabelValues(outcomeBadRequest).Inc()
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if legacy {
		first, ok := s.registry.First()
		if !ok {
			s.metrics.tileRequests.WithLabelValues(outcomeChartNotFound).Inc()
			http.Error(w, "chart not found: no charts loaded", http.StatusNotFound)
			return
		}
		chartName = first.Name
	}

	chart, ok := s.registry.Get(chartName)
	if !ok {
		s.metrics.tileRequests.WithLabelValues(outcomeChartNotFound).Inc()
		http.Error(w, "chart not found: "+chartName, http.StatusNotFound)
		return
	}

	s.serveTile(w, chart, zoom, column, row)
}

// parseCoords parses the z/x/y segments. All three must be non-negative
// integers, and x/y must lie inside the zoom level's grid.
func parseCoords(parts []string) (zoom, column, row int, err error) {
	if zoom, err = parseCoord("z", parts[0]); err != nil {
		return 0, 0, 0, err
	}
	if column, err = parseCoord("x", parts[1]); err != nil {
		return 0, 0, 0, err
	}
	if row, err = parseCoord("y", parts[2]); err != nil {
		return 0, 0, 0, err
	}

	if zoom > 30 {
		return 0, 0, 0, errors.New("invalid tile coordinate: zoom out of range")
	}
	if extent := 1 << uint(zoom); column >= extent || row >= extent {
		return 0, 0, 0, errors.New("invalid tile coordinate: outside zoom level grid")
	}
	return zoom, column, row, nil
}

func parseCoord(name, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, errors.New("invalid tile coordinate: " + name + " must be a non-negative integer")
	}
	return n, nil
}

// serveTile runs the resolve-convert-query-respond sequence for one tile.
func (s *Server) serveTile(w http.ResponseWriter, chart *registry.Chart, zoom, column, row int) {
	// The archive stores TMS rows; the request row is slippy. Convert
	// exactly once, here at the serving boundary.
	tmsRow := mbtiles.FlipRow(zoom, row)

	data, err := chart.GetTile(zoom, column, tmsRow)
	if errors.Is(err, mbtiles.ErrTileNotFound) {
		// Absence is a normal outcome for coordinates outside the
		// chart's data extent; not logged as an error.
		s.metrics.tileRequests.WithLabelValues(outcomeMiss).Inc()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.metrics.tileRequests.WithLabelValues(outcomeStorageError).Inc()
		s.log.WithFields(logrus.Fields{
			"chart": chart.Name,
			"z":     zoom,
			"x":     column,
			"y":     row,
		}).Errorf("tile query failed: %v", err)
		http.Error(w, "tile storage error", http.StatusInternalServerError)
		return
	}

	s.metrics.tileRequests.WithLabelValues(outcomeHit).Inc()
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.Header().Set("Content-Encoding", "gzip")
	// Tiles never change once packaged, so clients may cache for a year.
	w.Header().Set("Cache-Control", "public, max-age=31536000")
	w.Write(data)
}
