package db

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolCollector exposes pgxpool.Stat as prometheus gauges, in the style
// of datastore/postgres's poolstats collector.
func poolCollector(p *pgxpool.Pool, appName string) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   "symboldb",
		Subsystem:   "db",
		Name:        "acquired_conns",
		Help:        "Number of currently acquired connections in the pool.",
		ConstLabels: prometheus.Labels{"application_name": appName},
	}, func() float64 {
		return float64(p.Stat().AcquiredConns())
	})
}

var (
	queryTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "symboldb",
		Subsystem: "db",
		Name:      "query_total",
		Help:      "Total number of queries issued, by logical operation.",
	}, []string{"op"})

	queryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "symboldb",
		Subsystem: "db",
		Name:      "query_duration_seconds",
		Help:      "Duration of queries, by logical operation.",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(queryTotal, queryDuration)
}

// Observe records a completed query for metrics purposes. Call sites
// wrap a query with:
//
//	defer db.Observe("intern_package")()
func Observe(op string) func() {
	timer := prometheus.NewTimer(queryDuration.WithLabelValues(op))
	queryTotal.WithLabelValues(op).Inc()
	return func() { timer.ObserveDuration() }
}
