package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Logger logs one line per request.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logrus.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"duration": time.Since(start).String(),
			"from":     r.RemoteAddr,
		}).Info("request")
	})
}

const (
	rateLimitWindow = 15 * time.Minute
	rateLimitMax    = 100
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

var (
	limiters   = make(map[string]*clientLimiter)
	limitersMu sync.Mutex
	cleanOnce  sync.Once
)

// RateLimit caps each IP at 100 requests per 15 minute window, matching the
// limits the service has always advertised.
func RateLimit(next http.Handler) http.Handler {
	cleanOnce.Do(func() {
		go cleanupLimiters()
	})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		limitersMu.Lock()
		cl, ok := limiters[ip]
		if !ok {
			cl = &clientLimiter{limiter: rate.NewLimiter(rate.Every(rateLimitWindow/rateLimitMax), rateLimitMax)}
			limiters[ip] = cl
		}
		cl.lastSeen = time.Now()
		limitersMu.Unlock()

		if !cl.limiter.Allow() {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func cleanupLimiters() {
	for {
		time.Sleep(rateLimitWindow)
		limitersMu.Lock()
		for ip, cl := range limiters {
			if time.Since(cl.lastSeen) > rateLimitWindow {
				delete(limiters, ip)
			}
		}
		limitersMu.Unlock()
	}
}
