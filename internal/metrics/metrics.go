// Package metrics provides Prometheus metrics for the listing mirror.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Sync metrics
	syncCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypshare_sync_cycles_total",
			Help: "Total sync cycles by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	fetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crypshare_fetch_duration_seconds",
			Help:    "Listing fetch duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	syncState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crypshare_sync_state",
			Help: "Current sync state (0=idle, 1=live, 2=polling)",
		},
	)

	listingEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crypshare_listing_entries",
			Help: "Entries in the last rendered snapshot by kind",
		},
		[]string{"kind"},
	)

	pushEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypshare_push_events_total",
			Help: "Total events received from the upstream push channel",
		},
		[]string{"event"},
	)

	// Relay metrics
	relaySubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "crypshare_relay_sse_subscribers",
			Help: "Number of connected relay SSE subscribers",
		},
	)

	relayEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypshare_relay_events_total",
			Help: "Total events published to relay subscribers",
		},
		[]string{"event"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypshare_http_requests_total",
			Help: "Total number of relay HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// Publish metrics
	publishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypshare_publish_total",
			Help: "Total page publications by sink and status",
		},
		[]string{"sink", "status"},
	)

	publishDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crypshare_publish_duration_seconds",
			Help:    "Page publication duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sink"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSyncCycle records a finished sync cycle.
func RecordSyncCycle(trigger string, success bool) {
	syncCyclesTotal.WithLabelValues(trigger, status(success)).Inc()
}

// RecordFetch records a listing fetch duration.
func RecordFetch(duration time.Duration) {
	fetchDuration.Observe(duration.Seconds())
}

// SetSyncState sets the sync state gauge.
func SetSyncState(state int) {
	syncState.Set(float64(state))
}

// SetListingEntries sets the entry count for one kind.
func SetListingEntries(kind string, count int) {
	listingEntries.WithLabelValues(kind).Set(float64(count))
}

// RecordPushEvent records an event from the upstream push channel.
func RecordPushEvent(name string) {
	pushEventsTotal.WithLabelValues(name).Inc()
}

// SetRelaySubscribers sets the number of relay SSE subscribers.
func SetRelaySubscribers(count int) {
	relaySubscribers.Set(float64(count))
}

// RecordRelayEvent records an event published to relay subscribers.
func RecordRelayEvent(name string) {
	relayEventsTotal.WithLabelValues(name).Inc()
}

// RecordPublish records a page publication.
func RecordPublish(sink string, duration time.Duration, success bool) {
	publishDuration.WithLabelValues(sink).Observe(duration.Seconds())
	publishTotal.WithLabelValues(sink, status(success)).Inc()
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		// Label by the pattern the mux matched, not the raw path.
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
	})
}
