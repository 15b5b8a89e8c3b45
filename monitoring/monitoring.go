package monitoring

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	FeedCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_cache_hits_total",
		Help: "Feed page reads served from cache",
	})

	FeedCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_cache_misses_total",
		Help: "Feed page reads that fell through to the store",
	})

	TweetsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tweets_created_total",
		Help: "Total tweets successfully created",
	})

	BroadcastsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_broadcasts_total",
		Help: "Total events broadcast to live connections",
	})

	LiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "push_live_connections",
		Help: "Currently registered live push connections",
	})
)

func init() {
	prometheus.MustRegister(RequestDuration)
	prometheus.MustRegister(FeedCacheHits)
	prometheus.MustRegister(FeedCacheMisses)
	prometheus.MustRegister(TweetsCreated)
	prometheus.MustRegister(BroadcastsSent)
	prometheus.MustRegister(LiveConnections)
}

// Middleware to track request timing and status code
type statusRecordingWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecordingWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &statusRecordingWriter{ResponseWriter: w, statusCode: 200}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := fmt.Sprintf("%d", rw.statusCode)
		RequestDuration.WithLabelValues(r.Method, routeLabel(r), status).Observe(duration)
	})
}

// routeLabel returns the matched route template ("/posts/{id}") so the metric
// keeps a bounded label set instead of one series per tweet id.
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}
