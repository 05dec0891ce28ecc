package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func withCapturedLogger(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}

// lastLine decodes the final JSON log line in buf.
func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &m); err != nil {
		t.Fatalf("bad log line %q: %v", lines[len(lines)-1], err)
	}
	return m
}

func TestScrub(t *testing.T) {
	cases := map[string]string{
		"":                                        "",
		"mail a.b+x@example.com":                  "mail [REDACTED:email]",
		"id 123e4567-e89b-12d3-a456-426614174000": "id [REDACTED:id]",
		"call 8 (999) 123-45-67":                  "call [REDACTED:phone]",
		"call +7 999 123-45-67":                   "call [REDACTED:phone]",
		"us 212-555-1212":                         "us [REDACTED:phone]",
		"pizza 4 cheese":                          "pizza 4 cheese",
	}
	for in, want := range cases {
		if got := scrub(in); got != want {
			t.Errorf("scrub(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestSafeQuery(t *testing.T) {
	mask := map[string]struct{}{"address": {}, "phonenumber": {}}
	got := safeQuery("q=89991234567&Address=Moscow+Tverskaya+1&page=2&phonenumber=1", mask)
	want := "Address=[REDACTED]&page=2&phonenumber=[REDACTED]&q=[REDACTED:phone]"
	if got != want {
		t.Fatalf("safeQuery = %q; want %q", got, want)
	}
	if got := safeQuery("", mask); got != "" {
		t.Fatalf("empty query = %q", got)
	}
	// Malformed escapes fall back to scrubbing the raw string.
	if got := safeQuery("q=%zz&m=a@b.com", mask); got != "q=%zz&m=[REDACTED:email]" {
		t.Fatalf("malformed = %q", got)
	}
}

func TestAccessLog_UsesRequestLoggerAndMasks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RequestID(), ContextLogger(), AccessLog(AccessLogOptions{}))
	r.GET("/orders/:id", func(c *gin.Context) {
		c.Header(HeaderIdempotencyReplayed, "true")
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/orders/42?address=Moscow&q=a@b.com", nil)
	req.Header.Set("X-Request-ID", "rid-1")
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set("User-Agent", "courier-app 8 (999) 123-45-67")
	r.ServeHTTP(httptest.NewRecorder(), req)

	line := lastLine(t, buf)
	if line["level"] != "info" || line["message"] != "http_request" {
		t.Fatalf("unexpected line: %v", line)
	}
	if line["request_id"] != "rid-1" || line["path"] != "/orders/:id" || line["resource_id"] != "42" {
		t.Fatalf("request fields missing: %v", line)
	}
	if line["query"] != "address=[REDACTED]&q=[REDACTED:email]" {
		t.Fatalf("query = %v", line["query"])
	}
	if line["replayed"] != true {
		t.Fatalf("expected replayed flag: %v", line)
	}
	hdr, _ := line["headers"].(map[string]any)
	if hdr["User-Agent"] != "courier-app [REDACTED:phone]" {
		t.Fatalf("headers = %v", hdr)
	}
	if _, ok := hdr["Authorization"]; ok || strings.Contains(buf.String(), "secret") {
		t.Fatalf("authorization leaked: %s", buf.String())
	}
}

func TestAccessLog_LevelsAndStandaloneFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(AccessLog(AccessLogOptions{}))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/broken", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/err", func(c *gin.Context) {
		_ = c.Error(errSentinel{})
		c.Status(http.StatusBadRequest)
	})

	for _, tc := range []struct{ path, level string }{
		{"/missing", "warn"},
		{"/broken", "error"},
		{"/err", "error"},
	} {
		req := httptest.NewRequest(http.MethodGet, tc.path, nil)
		req.Header.Set("X-Request-ID", "rid"+tc.path)
		r.ServeHTTP(httptest.NewRecorder(), req)

		line := lastLine(t, buf)
		if line["level"] != tc.level {
			t.Fatalf("%s level = %v; want %s", tc.path, line["level"], tc.level)
		}
		// No ContextLogger: request fields are added here.
		if line["request_id"] != "rid"+tc.path || line["path"] != tc.path || line["method"] != "GET" {
			t.Fatalf("%s fields: %v", tc.path, line)
		}
	}
	if !strings.Contains(buf.String(), "boom") {
		t.Fatalf("gin errors not logged: %s", buf.String())
	}
}

type errSentinel struct{}

func (errSentinel) Error() string { return "boom" }
