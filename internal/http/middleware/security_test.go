package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securityRouter(opt SecurityOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(opt))
	r.GET("/api/v1/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/dispatcher/orders", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/products", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	w := httptest.NewRecorder()
	securityRouter(SecurityOptions{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	for _, k := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security"} {
		if h.Get(k) != "" {
			t.Fatalf("unexpected %s: %q", k, h.Get(k))
		}
	}
}

func TestSecurityHeaders_CachePolicyByPath(t *testing.T) {
	r := securityRouter(SecurityOptions{
		NoStorePrefixes:    []string{"/api/v1/orders", "/api/v1/dispatcher"},
		RevalidatePrefixes: []string{"/api/v1/products"},
	})

	for _, tc := range []struct {
		path, cache, pragma string
	}{
		{"/api/v1/orders/1", "no-store", "no-cache"},
		{"/api/v1/dispatcher/orders", "no-store", "no-cache"},
		{"/api/v1/products", "no-cache", ""},
		{"/health", "", ""},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if got := w.Header().Get("Cache-Control"); got != tc.cache {
			t.Fatalf("%s Cache-Control = %q; want %q", tc.path, got, tc.cache)
		}
		if got := w.Header().Get("Pragma"); got != tc.pragma {
			t.Fatalf("%s Pragma = %q; want %q", tc.path, got, tc.pragma)
		}
	}
}

func TestSecurityHeaders_PolicyAndHSTS(t *testing.T) {
	r := securityRouter(SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour, EnablePolicy: true})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.TLS = &tls.ConnectionState{}
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Permitted-Cross-Domain-Policies") != "none" || w.Header().Get("Permissions-Policy") == "" {
		t.Fatalf("policy headers missing: %#v", w.Header())
	}
	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=86400; includeSubDomains; preload" {
		t.Fatalf("HSTS = %q", got)
	}

	// Plain HTTP never gets HSTS.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("HSTS on plain HTTP: %q", got)
	}
}

func TestSecurityHeaders_DefaultHSTSMaxAge(t *testing.T) {
	r := securityRouter(SecurityOptions{EnableHSTS: true})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Strict-Transport-Security"); got != "max-age=15552000; includeSubDomains; preload" {
		t.Fatalf("HSTS = %q", got)
	}
}

func TestHasAnyPrefix(t *testing.T) {
	if hasAnyPrefix("/api/v1/orders", []string{"", "/x"}) {
		t.Fatalf("empty prefix must not match")
	}
	if !hasAnyPrefix("/api/v1/orders/7", []string{"/x", "/api/v1/orders"}) {
		t.Fatalf("expected match")
	}
}
