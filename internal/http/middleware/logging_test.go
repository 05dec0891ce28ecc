package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/rid", func(c *gin.Context) {
		v, _ := c.Get(requestIDKey)
		seen = asString(v)
		c.Status(http.StatusNoContent)
	})

	for _, tc := range []struct {
		name, header, value string
	}{
		{"generated", "", ""},
		{"canonical header", requestIDHeader, "Z-REQ-123"},
		{"lowercase header", strings.ToLower(requestIDHeader), "abc-123"},
		{"control characters replaced", requestIDHeader, "bad\tid"},
		{"oversized replaced", requestIDHeader, strings.Repeat("a", maxRequestIDLength+1)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/rid", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(requestIDHeader)
			if got != seen {
				t.Fatalf("header %q != context %q", got, seen)
			}
			if tc.value == "" || !validRequestID(tc.value) {
				if _, err := uuid.Parse(got); err != nil {
					t.Fatalf("generated id %q is not a UUID", got)
				}
			} else if got != tc.value {
				t.Fatalf("request id = %q; want %q", got, tc.value)
			}
		})
	}
}

func TestContextLogger_FieldsReachServices(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RequestID(), ContextLogger())
	r.GET("/orders/:id", func(c *gin.Context) {
		// Services only see the request context.
		zerolog.Ctx(c.Request.Context()).Info().Msg("order loaded")
		c.Status(http.StatusOK)
	})
	r.NoRoute(func(c *gin.Context) {
		LoggerFrom(c).Warn().Msg("no route")
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/orders/7", nil)
	req.Header.Set(requestIDHeader, "rid-ctx")
	r.ServeHTTP(httptest.NewRecorder(), req)

	line := lastLine(t, buf)
	if line["message"] != "order loaded" || line["request_id"] != "rid-ctx" ||
		line["path"] != "/orders/:id" || line["method"] != "GET" {
		t.Fatalf("service log fields: %v", line)
	}
	if _, ok := line["trace_id"]; ok {
		t.Fatalf("trace_id without a span: %v", line)
	}

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	if line := lastLine(t, buf); line["path"] != "/missing" {
		t.Fatalf("unmatched route should log the raw path: %v", line)
	}
}

func TestContextLogger_IncludesTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	tid, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	sid, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Request = c.Request.WithContext(trace.ContextWithSpanContext(c.Request.Context(), sc))
		c.Next()
	})
	r.Use(RequestID(), ContextLogger())
	r.GET("/dispatcher/orders", func(c *gin.Context) {
		LoggerFrom(c).Info().Msg("ranked")
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/dispatcher/orders", nil))

	if line := lastLine(t, buf); line["trace_id"] != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Fatalf("trace_id missing: %v", line)
	}
}

func TestLoggerFrom_Fallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	LoggerFrom(c).Info().Msg("bare")

	line := lastLine(t, buf)
	if line["message"] != "bare" {
		t.Fatalf("fallback logger did not write: %v", line)
	}
	if _, ok := line["request_id"]; ok {
		t.Fatalf("fallback logger has request fields: %v", line)
	}

	// A foreign value under the key is ignored.
	c.Set(loggerKey, "not a logger")
	if LoggerFrom(c) == nil {
		t.Fatalf("expected fallback logger")
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RequestID(), ContextLogger(), Recovery())
	r.POST("/orders", func(c *gin.Context) { panic("kaboom") })
	r.GET("/orders/:id", func(c *gin.Context) {
		c.String(http.StatusOK, "partial")
		panic("late kaboom")
	})

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set(requestIDHeader, "rid-panic")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d; want 500", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json body: %v", err)
	}
	if body["code"] != "internal_error" || body["request_id"] != "rid-panic" {
		t.Fatalf("unexpected body: %v", body)
	}
	if line := lastLine(t, buf); line["message"] != "panic recovered" || line["panic"] != "kaboom" {
		t.Fatalf("panic log: %v", line)
	}

	// Once the body is on the wire no JSON error is appended.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1", nil))
	if strings.Contains(w.Body.String(), "internal_error") {
		t.Fatalf("JSON error written after body: %q", w.Body.String())
	}
	if line := lastLine(t, buf); line["panic"] != "late kaboom" {
		t.Fatalf("late panic not logged: %v", line)
	}
}

func TestHelpers_asString_and_truncate(t *testing.T) {
	if asString("x") != "x" || asString(123) != "" || asString(nil) != "" {
		t.Fatalf("asString failed")
	}
	for _, tc := range []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"abcdefgh", 5, "abcde…"},
		{"abc", 0, "abc"},
	} {
		if got := truncate(tc.in, tc.max); got != tc.want {
			t.Fatalf("truncate(%q, %d) = %q; want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
