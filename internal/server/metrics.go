package server

import "github.com/prometheus/client_golang/prometheus"

// Request outcomes tracked per tile request.
const (
	outcomeHit           = "hit"
	outcomeMiss          = "miss"
	outcomeChartNotFound = "chart_not_found"
	outcomeBadRequest    = "bad_request"
	outcomeStorageError  = "storage_error"
)

type metrics struct {
	tileRequests *prometheus.CounterVec
	tileDuration prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		tileRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "enctiler",
			Name:      "tile_requests_total",
			Help:      "Tile requests by outcome.",
		}, []string{"outcome"}),
		tileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "enctiler",
			Name:      "tile_request_duration_seconds",
			Help:      "Time spent answering tile requests.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.tileRequests, m.tileDuration)
	return m
}
