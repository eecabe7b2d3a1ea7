package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prompter",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "prompter",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "prompter",
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	})

	roomsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "prompter",
		Name:      "rooms_active",
		Help:      "Rooms currently present in the registry",
	})

	roomsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prompter",
		Name:      "rooms_created_total",
		Help:      "Rooms created since process start",
	})

	roomsEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "prompter",
		Name:      "rooms_evicted_total",
		Help:      "Rooms evicted by the inactivity sweeper",
	})

	wsEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prompter",
		Name:      "ws_events_total",
		Help:      "Room WebSocket events handled, by event type",
	}, []string{"type"})

	patchResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prompter",
		Name:      "patch_applies_total",
		Help:      "Script patch applications, by outcome",
	}, []string{"result"})
)

func RoomCreated() {
	roomsCreated.Inc()
	roomsActive.Inc()
}

func RoomEvicted() {
	roomsEvicted.Inc()
	roomsActive.Dec()
}

func EventHandled(eventType string) { wsEvents.WithLabelValues(eventType).Inc() }

func PatchApplied()  { patchResults.WithLabelValues("applied").Inc() }
func PatchRejected() { patchResults.WithLabelValues("rejected").Inc() }

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack must pass through so WebSocket upgrades work behind the middleware.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics with Prometheus labels.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		labels := prometheus.Labels{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": strconv.Itoa(rec.status),
		}
		httpRequests.With(labels).Inc()
		httpLatency.With(labels).Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
