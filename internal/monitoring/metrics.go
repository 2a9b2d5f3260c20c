package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	scatterPoints = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldgrid_scatter_points_total",
		Help: "Point cloud elements routed through the scatter engine.",
	})
	scatterDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldgrid_scatter_dropped_points_total",
		Help: "Point cloud elements dropped because they mapped outside the target grid.",
	})
	scatterDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fieldgrid_scatter_duration_seconds",
		Help:    "Wall time of one point cloud scatter.",
		Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
	})
	seededPoints = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fieldgrid_seeded_points_total",
		Help: "Points emitted by particle seeding across all batch entries.",
	})
)

func init() {
	registry.MustRegister(scatterPoints, scatterDropped, scatterDuration, seededPoints)
}

// ObserveScatter records one scatter call.
func ObserveScatter(points, dropped int, elapsed time.Duration) {
	scatterPoints.Add(float64(points))
	scatterDropped.Add(float64(dropped))
	scatterDuration.Observe(elapsed.Seconds())
}

// ObserveSeeded records points produced by particle seeding.
func ObserveSeeded(points int) {
	seededPoints.Add(float64(points))
}

// MetricsHandler serves the registry in the prometheus text format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
