package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/HerbHall/mediatheme/internal/version"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Request scopes used as a metric label: add-on routes versus pages
// relayed to the media server.
const (
	scopeAPI   = "api"
	scopeProxy = "proxy"
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mediatheme",
			Name:      "http_requests_total",
			Help:      "HTTP requests by scope, matched route, and status.",
		},
		[]string{"scope", "method", "route", "status"},
	)
	httpLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mediatheme",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by scope and matched route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"scope", "method", "route"},
	)
)

func init() {
	prometheus.MustRegister(httpRequests, httpLatency)
}

// Middleware is a function that wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies middleware in order (first argument is outermost).
func Chain(handler http.Handler, mw ...Middleware) http.Handler {
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	return handler
}

type requestIDKey struct{}

// maxRequestIDLen bounds client-supplied request IDs before they reach logs.
const maxRequestIDLen = 128

// RequestID returns the request ID from the context.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestIDMiddleware propagates a well-formed X-Request-ID or mints a
// UUID in its place.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if !validRequestID(id) {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// LoggingMiddleware logs every request and records the HTTP metrics.
// Requests under apiPrefix log at info; relayed media-server traffic logs
// at debug. Paths in quiet are only counted.
func LoggingMiddleware(logger *zap.Logger, apiPrefix string, quiet []string) Middleware {
	skip := make(map[string]struct{}, len(quiet))
	for _, p := range quiet {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			elapsed := time.Since(start)

			scope, level := scopeProxy, zapcore.DebugLevel
			if strings.HasPrefix(r.URL.Path, apiPrefix) {
				scope, level = scopeAPI, zapcore.InfoLevel
			}

			if _, ok := skip[r.URL.Path]; !ok {
				if ce := logger.Check(level, "http request"); ce != nil {
					ce.Write(
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.Int("status", sw.status),
						zap.Duration("duration", elapsed),
						zap.String("remote", r.RemoteAddr),
						zap.String("request_id", RequestID(r.Context())),
					)
				}
			}

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			httpRequests.WithLabelValues(scope, r.Method, route, strconv.Itoa(sw.status)).Inc()
			httpLatency.WithLabelValues(scope, r.Method, route).Observe(elapsed.Seconds())
		})
	}
}

// SecurityHeadersMiddleware adds security headers to responses under
// prefix. Proxied media-server pages keep their own policy.
func SecurityHeadersMiddleware(prefix string) Middleware {
	headers := [][2]string{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:"},
		{"Referrer-Policy", "strict-origin-when-cross-origin"},
	}
	return onlyUnder(prefix, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, h := range headers {
				w.Header().Set(h[0], h[1])
			}
			next.ServeHTTP(w, r)
		})
	})
}

// CORSMiddleware lets the media server's web client, served from another
// origin, call the add-on routes. Preflights get an empty 200.
func CORSMiddleware(prefix string) Middleware {
	return onlyUnder(prefix, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", "*")
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == http.MethodOptions {
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

// VersionHeaderMiddleware adds X-Mediatheme-Version to all responses.
func VersionHeaderMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Mediatheme-Version", version.Short())
		next.ServeHTTP(w, r)
	})
}

// RecoveryMiddleware turns a handler panic into a 500 failure envelope.
// http.ErrAbortHandler is re-raised so the proxy can abort a response.
func RecoveryMiddleware(logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
					panic(rec)
				}
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.String("request_id", RequestID(r.Context())),
				)
				InternalError(w, "an unexpected error occurred")
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// ReadOnlyMiddleware rejects state-changing requests under prefix with 405
// so the add-on can be exposed while its settings stay locked.
func ReadOnlyMiddleware(prefix string) Middleware {
	return onlyUnder(prefix, func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				WriteFailure(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "read-only mode: configuration changes are disabled")
			}
		})
	})
}

// onlyUnder applies mw to requests whose path starts with prefix and
// passes everything else straight to next.
func onlyUnder(prefix string, mw Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, prefix) {
				wrapped.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusWriter records the status code written by the wrapped handler.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status, w.wroteHeader = code, true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	return w.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Flush forwards streaming flushes from the page proxy.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack lets the WebSocket upgrade take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.status, w.wroteHeader = http.StatusSwitchingProtocols, true
	return hj.Hijack()
}
