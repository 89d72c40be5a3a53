// Package observability holds the Prometheus collectors for the front end:
// upstream API calls, live views, confirmation previews and page renders.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Outcome maps an error to its label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// ─── Upstream Metrics ───────────────────────────────────────────────────────

// UpstreamRequests counts calls to the lending API by operation and outcome.
var UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "agrolend",
	Subsystem: "upstream",
	Name:      "requests_total",
	Help:      "Total requests issued to the lending API.",
}, []string{"op", "outcome"})

// UpstreamLatency tracks lending API latency by operation.
var UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "agrolend",
	Subsystem: "upstream",
	Name:      "request_seconds",
	Help:      "Lending API request latency in seconds.",
	Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
}, []string{"op"})

// UpstreamUp is 1 when the last housekeeping probe succeeded.
var UpstreamUp = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "agrolend",
	Subsystem: "upstream",
	Name:      "up",
	Help:      "Whether the last probe of the lending API succeeded (1) or not (0).",
})

// ObserveUpstream records one finished upstream call.
func ObserveUpstream(op string, start time.Time, err error) {
	UpstreamRequests.WithLabelValues(op, Outcome(err)).Inc()
	UpstreamLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// ─── Live View Metrics ──────────────────────────────────────────────────────

// LiveViews tracks currently open polling views by feed.
var LiveViews = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "agrolend",
	Subsystem: "live",
	Name:      "views",
	Help:      "Number of open views with an active polling loop.",
}, []string{"feed"})

// LiveRefreshes counts polling re-fetches by feed and outcome.
var LiveRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "agrolend",
	Subsystem: "live",
	Name:      "refreshes_total",
	Help:      "Total polling re-fetches by feed and outcome.",
}, []string{"feed", "outcome"})

// ─── Confirmation Metrics ───────────────────────────────────────────────────

// Previews counts preview ledger transitions by command and event.
var Previews = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "agrolend",
	Subsystem: "confirm",
	Name:      "previews_total",
	Help:      "Preview ledger events (issued, confirmed, cancelled, refused) by command.",
}, []string{"command", "event"})

// PreviewsPurged counts expired previews removed by the sweep job.
var PreviewsPurged = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "agrolend",
	Subsystem: "confirm",
	Name:      "previews_purged_total",
	Help:      "Total expired previews removed from the ledger.",
})

// ─── Page Metrics ───────────────────────────────────────────────────────────

// PageRenders counts rendered pages by template name.
var PageRenders = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "agrolend",
	Subsystem: "ui",
	Name:      "page_renders_total",
	Help:      "Total rendered pages by template.",
}, []string{"page"})
