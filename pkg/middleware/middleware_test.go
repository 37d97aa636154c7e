package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ST2Projects/vision-runner/pkg/logging"
)

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	})
}

func TestCorsMiddlewareAllowsConfiguredOrigin(t *testing.T) {
	tests := []struct {
		name           string
		allowedOrigins []string
		requestOrigin  string
		expectedHeader string
	}{
		{
			name:           "configured origin allowed",
			allowedOrigins: []string{"http://example.com"},
			requestOrigin:  "http://example.com",
			expectedHeader: "http://example.com",
		},
		{
			name:           "origin matching is case insensitive",
			allowedOrigins: []string{"http://Example.com"},
			requestOrigin:  "http://example.com",
			expectedHeader: "http://Example.com",
		},
		{
			name:           "wildcard allows any origin",
			allowedOrigins: []string{"*"},
			requestOrigin:  "http://anything.test",
			expectedHeader: "*",
		},
		{
			name:           "unknown origin gets no header",
			allowedOrigins: []string{"http://example.com"},
			requestOrigin:  "http://evil.test",
			expectedHeader: "",
		},
		{
			name:          "no configured origins gets no header",
			requestOrigin: "http://example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CorsMiddleware(tt.allowedOrigins, okHandler("ok"))

			req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
			req.Header.Set("Origin", tt.requestOrigin)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.expectedHeader {
				t.Errorf("Expected Access-Control-Allow-Origin %q, got %q", tt.expectedHeader, got)
			}
		})
	}
}

func TestCorsMiddlewarePreflights(t *testing.T) {
	handler := CorsMiddleware([]string{"*"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Preflight should not reach the wrapped handler")
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/analyze", nil)
	req.Header.Set("Origin", "http://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for preflight, got %d", rec.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeadersMiddleware(okHandler("ok"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	expected := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for header, value := range expected {
		if got := rec.Header().Get(header); got != value {
			t.Errorf("Expected %s: %q, got %q", header, value, got)
		}
	}
	if rec.Header().Get("Content-Security-Policy") == "" {
		t.Error("Expected a Content-Security-Policy header")
	}
}

func TestLegacyAliasRewritesKnownPaths(t *testing.T) {
	tests := []struct {
		requestPath string
		deliveredTo string
	}{
		{"/run/analyze_image", "/api/analyze"},
		{"/run/generate_tags", "/api/tags"},
		{"/api/analyze", "/api/analyze"},
		{"/", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.requestPath, func(t *testing.T) {
			var seen string
			handler := &LegacyAliasHandler{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = r.URL.Path
			})}

			req := httptest.NewRequest(http.MethodPost, tt.requestPath, nil)
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if seen != tt.deliveredTo {
				t.Errorf("Expected %s delivered to %s, got %s", tt.requestPath, tt.deliveredTo, seen)
			}
		})
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	logging.SetOutput(io.Discard)
	handler := RequestLoggerMiddleware(logging.NewLogger("test"), okHandler("ok"))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("Expected X-Request-Id header on logged responses")
	}
}

func TestRequestLoggerSkipsProbePaths(t *testing.T) {
	logging.SetOutput(io.Discard)
	handler := RequestLoggerMiddleware(logging.NewLogger("test"), okHandler("ok"))

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Header().Get("X-Request-Id") != "" {
		t.Error("Expected probe paths to bypass request tagging")
	}
}
