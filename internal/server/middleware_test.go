package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

func okHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
	})
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, path, http.NoBody))
	return w
}

func TestRequestIDMiddleware(t *testing.T) {
	long := strings.Repeat("a", maxRequestIDLen+1)
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated when absent", "", false},
		{"propagated", "trace-7f3a", true},
		{"replaced when too long", long, false},
		{"replaced when it has spaces", "two words", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string
			h := RequestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
				seen = RequestID(r.Context())
			}))
			req := httptest.NewRequest("GET", "/emby-ui-plugin/api/config", http.NoBody)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			got := w.Header().Get("X-Request-ID")
			if got != seen {
				t.Errorf("header %q != context %q", got, seen)
			}
			if tt.keep && got != tt.incoming {
				t.Errorf("X-Request-ID = %q, want %q", got, tt.incoming)
			}
			if !tt.keep && len(got) != 36 {
				t.Errorf("X-Request-ID = %q, want a fresh UUID", got)
			}
		})
	}
}

func TestRequestIDMiddleware_UniqueIDs(t *testing.T) {
	h := RequestIDMiddleware(okHandler(http.StatusOK))
	seen := map[string]bool{}
	for range 3 {
		id := serve(h, "GET", "/").Header().Get("X-Request-ID")
		if seen[id] {
			t.Fatalf("request ID %q repeated", id)
		}
		seen[id] = true
	}
}

func TestLoggingMiddleware_Levels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := LoggingMiddleware(zap.New(core), "/emby-ui-plugin", []string{"/healthz"})(okHandler(http.StatusCreated))

	if w := serve(h, "POST", "/emby-ui-plugin/api/config"); w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	serve(h, "GET", "/web/index.html")
	serve(h, "GET", "/healthz")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("logged %d entries, want 2 (quiet path skipped)", len(entries))
	}
	if entries[0].Level != zapcore.InfoLevel {
		t.Errorf("api request level = %v, want info", entries[0].Level)
	}
	if entries[1].Level != zapcore.DebugLevel {
		t.Errorf("proxied request level = %v, want debug", entries[1].Level)
	}
	if got := entries[0].ContextMap()["status"]; got != int64(http.StatusCreated) {
		t.Errorf("status field = %v, want 201", got)
	}
}

func TestLoggingMiddleware_ProxyTrafficHiddenAtInfo(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := LoggingMiddleware(zap.New(core), "/emby-ui-plugin", nil)(okHandler(http.StatusOK))

	serve(h, "GET", "/web/index.html")
	if logs.Len() != 0 {
		t.Errorf("proxied request logged at info: %v", logs.All())
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	h := SecurityHeadersMiddleware("/emby-ui-plugin")(okHandler(http.StatusOK))

	w := serve(h, "GET", "/emby-ui-plugin/api/config")
	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"Content-Security-Policy": "default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:",
		"Referrer-Policy":         "strict-origin-when-cross-origin",
	}
	for header, v := range want {
		if got := w.Header().Get(header); got != v {
			t.Errorf("%s = %q, want %q", header, got, v)
		}
	}

	w = serve(h, "GET", "/web/index.html")
	if v := w.Header().Get("Content-Security-Policy"); v != "" {
		t.Errorf("Content-Security-Policy = %q on a proxied page", v)
	}
}

func TestVersionHeaderMiddleware(t *testing.T) {
	w := serve(VersionHeaderMiddleware(okHandler(http.StatusOK)), "GET", "/web/index.html")
	if v := w.Header().Get("X-Mediatheme-Version"); v == "" {
		t.Error("expected X-Mediatheme-Version header to be set")
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := RecoveryMiddleware(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("theme table corrupted")
	}))

	w := serve(h, "GET", "/emby-ui-plugin/api/themes")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q, want application/json", ct)
	}
	if !strings.Contains(w.Body.String(), `"success":false`) {
		t.Errorf("body = %s, want failure envelope", w.Body.String())
	}

	w = serve(RecoveryMiddleware(testLogger())(okHandler(http.StatusAccepted)), "GET", "/")
	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202 passed through", w.Code)
	}
}

func TestRecoveryMiddleware_RepanicsAbort(t *testing.T) {
	h := RecoveryMiddleware(testLogger())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler { //nolint:errorlint // sentinel panic value
			t.Errorf("recovered %v, want http.ErrAbortHandler", rec)
		}
	}()
	serve(h, "GET", "/web/videos/stream")
}

func TestChain(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name+">")
				next.ServeHTTP(w, r)
				order = append(order, "<"+name)
			})
		}
	}
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		order = append(order, "handler")
	})

	serve(Chain(inner, tag("outer"), tag("inner")), "GET", "/")

	want := "outer> inner> handler <inner <outer"
	if got := strings.Join(order, " "); got != want {
		t.Errorf("order = %q, want %q", got, want)
	}
}

func TestCORSMiddleware(t *testing.T) {
	called := false
	h := CORSMiddleware("/emby-ui-plugin")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	w := serve(h, "GET", "/emby-ui-plugin/api/config")
	if !called {
		t.Error("GET was not passed through")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, PUT, DELETE, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	called := false
	h := CORSMiddleware("/emby-ui-plugin")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	w := serve(h, "OPTIONS", "/emby-ui-plugin/api/config/backups/x")
	if called {
		t.Error("preflight reached the handler")
	}
	if w.Code != http.StatusOK || w.Body.Len() != 0 {
		t.Errorf("preflight = %d %q, want empty 200", w.Code, w.Body.String())
	}
}

func TestCORSMiddleware_OutsidePrefix(t *testing.T) {
	w := serve(CORSMiddleware("/emby-ui-plugin")(okHandler(http.StatusNoContent)), "OPTIONS", "/web/index.html")
	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want upstream 204", w.Code)
	}
	if v := w.Header().Get("Access-Control-Allow-Origin"); v != "" {
		t.Errorf("Access-Control-Allow-Origin = %q outside prefix", v)
	}
}

func TestReadOnlyMiddleware(t *testing.T) {
	h := ReadOnlyMiddleware("/emby-ui-plugin/api")(okHandler(http.StatusOK))

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/emby-ui-plugin/api/config", http.StatusOK},
		{"OPTIONS", "/emby-ui-plugin/api/config", http.StatusOK},
		{"POST", "/emby-ui-plugin/api/config", http.StatusMethodNotAllowed},
		{"DELETE", "/emby-ui-plugin/api/config/backups/x", http.StatusMethodNotAllowed},
		{"PUT", "/emby-ui-plugin/api/enhancer/config", http.StatusMethodNotAllowed},
		{"GET", "/emby-ui-plugin/themes/dark-modern.css", http.StatusOK},
		{"POST", "/web/login", http.StatusOK},
	}
	for _, tt := range tests {
		if w := serve(h, tt.method, tt.path); w.Code != tt.want {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, w.Code, tt.want)
		}
	}
}

func TestStatusWriter(t *testing.T) {
	w := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

	sw.WriteHeader(http.StatusCreated)
	sw.WriteHeader(http.StatusNotFound)
	if sw.status != http.StatusCreated {
		t.Errorf("status = %d, want first WriteHeader to win", sw.status)
	}
	if sw.Unwrap() != w {
		t.Error("Unwrap did not return the wrapped writer")
	}
	sw.Flush()
	if !w.Flushed {
		t.Error("Flush was not forwarded")
	}
	if _, _, err := sw.Hijack(); err == nil {
		t.Error("Hijack on a recorder should fail")
	}
}
