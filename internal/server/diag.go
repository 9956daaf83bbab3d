package server

import (
	"encoding/json"
	"net/http"

	"github.com/beetlebugorg/enctiler/internal/registry"
)

type healthChart struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

type healthResponse struct {
	Status string        `json:"status"`
	Charts []healthChart `json:"charts"`
}

type chartInfo struct {
	Name       string            `json:"name"`
	Metadata   map[string]string `json:"metadata"`
	TileCount  int               `json:"tileCount"`
	ZoomLevels []int             `json:"zoomLevels"`
}

// handleHealth reports process readiness and the loaded charts.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status: "ok",
		Charts: make([]healthChart, 0, s.registry.Len()),
	}
	for _, name := range s.registry.Names() {
		chart, _ := s.registry.Get(name)
		resp.Charts = append(resp.Charts, healthChart{Name: chart.Name, Path: chart.Path})
	}
	writeJSON(w, resp)
}

// handleCharts lists every chart with its metadata, tile count and the
// zoom levels actually present.
func (s *Server) handleCharts(w http.ResponseWriter, r *http.Request) {
	charts := make([]chartInfo, 0, s.registry.Len())
	for _, name := range s.registry.Names() {
		chart, _ := s.registry.Get(name)
		charts = append(charts, chartSummary(chart))
	}
	writeJSON(w, charts)
}

// handleCoverage lists the charts whose coverage bounds intersect the
// bbox query parameter (minLon,minLat,maxLon,maxLat).
func (s *Server) handleCoverage(w http.ResponseWriter, r *http.Request) {
	bbox := r.URL.Query().Get("bbox")
	if bbox == "" {
		http.Error(w, "missing bbox query parameter", http.StatusBadRequest)
		return
	}
	bounds, err := registry.ParseBounds(bbox)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	charts := make([]chartInfo, 0)
	for _, chart := range s.registry.Covering(bounds) {
		charts = append(charts, chartSummary(chart))
	}
	writeJSON(w, charts)
}

func chartSummary(chart *registry.Chart) chartInfo {
	zooms := chart.ZoomLevels
	if zooms == nil {
		zooms = []int{}
	}
	return chartInfo{
		Name:       chart.Name,
		Metadata:   chart.Metadata,
		TileCount:  chart.TileCount,
		ZoomLevels: zooms,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
