// Package metrics exposes the service's prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	AssemblesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meridian_assembles_total",
		Help: "Completed app-data reads.",
	})

	SavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meridian_saves_total",
		Help: "Committed app-data saves.",
	})

	SaveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "meridian_save_failures_total",
		Help: "App-data saves rolled back for any reason.",
	})

	SaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "meridian_save_duration_seconds",
		Help:    "Wall time of one save transaction, begin to commit.",
		Buckets: prometheus.DefBuckets,
	})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
