package api

import (
	"net/http"
	"strconv"

	"github.com/cuemby/clusterupgrade/pkg/metrics"
	"github.com/gorilla/mux"
)

// statusRecorder remembers the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if name := route.GetName(); name != "" {
			return name
		}
	}
	return "unknown"
}

// metricsMiddleware counts requests per route and records their duration
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		name := routeName(r)
		timer.ObserveDurationVec(metrics.APIRequestDuration, name)
		metrics.APIRequestsTotal.WithLabelValues(name, strconv.Itoa(rec.status)).Inc()
	})
}

// loggingMiddleware logs every request at debug level and server errors
// at error level
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := metrics.NewTimer()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		logger := s.logger.With().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", rec.status).
			Dur("duration", timer.Duration()).
			Logger()
		if rec.status >= http.StatusInternalServerError {
			logger.Error().Msg("Request failed")
			return
		}
		logger.Debug().Msg("Request served")
	})
}

// readOnlyMiddleware only lets GET requests through
func readOnlyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeMessage(w, http.StatusForbidden, "server is read-only: %s %s is not allowed", r.Method, r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}
