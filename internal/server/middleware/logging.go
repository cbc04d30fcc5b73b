package middleware

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"carescope/backend/internal/metrics"
)

// statusWriter captures the status code and bytes written to the response.
type statusWriter struct {
	http.ResponseWriter
	code, bytes int
}

var (
	_ http.Flusher  = (*statusWriter)(nil)
	_ http.Hijacker = (*statusWriter)(nil)
)

func (w *statusWriter) Write(p []byte) (int, error) {
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap returns the underlying http.ResponseWriter.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Flush implements http.Flusher.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack implements http.Hijacker.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := w.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("http.Hijacker not implemented")
}

// Logging puts a request-scoped logger and the client IP in the context, logs each response
// and counts it by route template.
func Logging(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", reqID)

			reqLogger := logger.With("request_id", reqID)
			ctx := log.WithContext(r.Context(), reqLogger)
			ctx = contextWithClientIP(ctx, ClientIP(r))
			sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
			r = r.WithContext(ctx)
			next.ServeHTTP(sw, r)

			route := "unmatched"
			if cr := mux.CurrentRoute(r); cr != nil {
				if t, err := cr.GetPathTemplate(); err == nil {
					route = t
				}
			}
			metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(sw.code/100)+"xx").Inc()

			elapsed := time.Since(start)
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", fmt.Sprintf("%d %s", sw.code, http.StatusText(sw.code)),
				"bytes", humanize.Bytes(uint64(sw.bytes)), //nolint:gosec
				"time", elapsed,
			}
			if sw.code >= http.StatusInternalServerError {
				reqLogger.Warn("response", args...)
				return
			}
			reqLogger.Debug("response", args...)
		})
	}
}
