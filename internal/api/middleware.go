package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fenilsonani/imap-gateway/internal/logging"
	"github.com/fenilsonani/imap-gateway/internal/metrics"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withObservability logs and measures every request under the given
// endpoint label.
func (s *Server) withObservability(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		ctx := logging.WithRemoteAddr(r.Context(), getIP(r))
		next(rec, r.WithContext(ctx))

		elapsed := time.Since(start)
		metrics.RecordHTTP(endpoint, fmt.Sprintf("%d", rec.status), elapsed.Seconds())
		s.logger.InfoContext(ctx, "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", elapsed.Milliseconds())
	}
}

// withRecovery converts a handler panic into a 500 instead of killing
// the connection.
func (s *Server) withRecovery(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panic", "path", r.URL.Path, "panic", fmt.Sprintf("%v", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next(w, r)
	}
}

// withRateLimit rejects requests from IPs over their window budget.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	if s.limiter == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ip := getIP(r)
		allowed := s.limiter.Allow(ip)
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", s.limiter.Remaining(ip)))
		if !allowed {
			metrics.RateLimited.Inc()
			s.logger.Warn("rate limited", "remote_addr", ip)
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}
