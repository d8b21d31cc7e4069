package registry

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Grounded on datastore/postgres/indexpackage.go's counter+histogram-per-
// query-label pattern. The label is the statement's leading SQL verb
// rather than a per-call-site name, keeping cardinality bounded without
// threading a label through every Registry API method.
var (
	queryCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "wutag",
			Subsystem: "registry",
			Name:      "queries_total",
			Help:      "Total number of SQL statements issued against the registry.",
		},
		[]string{"verb"},
	)

	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "wutag",
			Subsystem: "registry",
			Name:      "query_duration_seconds",
			Help:      "Duration of SQL statements issued against the registry.",
		},
		[]string{"verb"},
	)
)

func sqlVerb(query string) string {
	q := strings.TrimSpace(query)
	if i := strings.IndexAny(q, " \t\n"); i >= 0 {
		q = q[:i]
	}
	return strings.ToLower(q)
}

func observeQuery(query string) func() {
	verb := sqlVerb(query)
	start := time.Now()
	return func() {
		queryCounter.WithLabelValues(verb).Add(1)
		queryDuration.WithLabelValues(verb).Observe(time.Since(start).Seconds())
	}
}
