package middleware

import (
	"net/http"
	"time"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// RouteFunc names the route a request matches, e.g. "GET /api/tasks/{id}".
type RouteFunc func(r *http.Request) string

// MuxRoute returns a RouteFunc backed by mux's pattern matching.
func MuxRoute(mux *http.ServeMux) RouteFunc {
	return func(r *http.Request) string {
		_, pattern := mux.Handler(r)
		return pattern
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

// Logger writes one access log line per request and observes it in collector.
// Requests matching no route are recorded as "unmatched" to bound label cardinality.
func Logger(route RouteFunc, collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			elapsed := time.Since(start)

			pattern := "unmatched"
			if route != nil {
				if p := route(r); p != "" {
					pattern = p
				}
			}
			collector.ObserveHTTP(pattern, r.Method, rec.status, elapsed)

			fields := log.Fields{
				"method":   r.Method,
				"path":     r.URL.Path,
				"route":    pattern,
				"status":   rec.status,
				"bytes":    rec.bytes,
				"duration": elapsed.String(),
				"ip":       remoteIP(r),
			}
			if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
				fields["forwarded_for"] = fwd
			}
			entry := log.WithFields(fields)
			switch {
			case rec.status >= 500:
				entry.Error("Request failed")
			case rec.status >= 400:
				entry.Warn("Request rejected")
			case r.URL.Path == "/health" || r.URL.Path == "/metrics":
				entry.Debug("Request served")
			default:
				entry.Info("Request served")
			}
		})
	}
}
