package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func newContextRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(EnrichContext())
	r.GET("/ping", func(c *gin.Context) {
		reqCtx := GetRequestContext(c)
		c.JSON(http.StatusOK, gin.H{
			"trace_id":   reqCtx.TraceID,
			"request_id": reqCtx.RequestID,
		})
	})
	return r
}

func TestEnrichContextAssignsIdentifiers(t *testing.T) {
	r := newContextRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if w.Header().Get(TraceIDHeader) == "" {
		t.Fatalf("expected a generated trace id header")
	}
	if w.Header().Get(RequestIDHeader) == "" {
		t.Fatalf("expected a generated request id header")
	}
}

func TestEnrichContextHonorsIncomingIdentifiers(t *testing.T) {
	r := newContextRouter()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(TraceIDHeader, "trace-123")
	req.Header.Set(RequestIDHeader, "req-456")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get(TraceIDHeader); got != "trace-123" {
		t.Fatalf("expected the incoming trace id to be echoed, got %q", got)
	}
	if got := w.Header().Get(RequestIDHeader); got != "req-456" {
		t.Fatalf("expected the incoming request id to be echoed, got %q", got)
	}
}

func newCORSRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(origins))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORSWildcardOrigin(t *testing.T) {
	r := newCORSRouter([]string{"*"})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "" {
		t.Fatalf("wildcard responses must not enable credentials")
	}
}

func TestCORSNamedOriginEchoedWithVary(t *testing.T) {
	r := newCORSRouter([]string{"https://dashboard.example.com"})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://dashboard.example.com" {
		t.Fatalf("expected the named origin to be echoed, got %q", got)
	}
	if w.Header().Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("expected credentials for a named origin")
	}
	if w.Header().Get("Vary") != "Origin" {
		t.Fatalf("expected Vary: Origin for a named-origin response")
	}

	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("an unlisted origin must not be allowed")
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newCORSRouter([]string{"*"})

	req := httptest.NewRequest(http.MethodOptions, "/ping", nil)
	req.Header.Set("Origin", "https://dashboard.example.com")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Fatalf("expected allowed methods on preflight")
	}
}
