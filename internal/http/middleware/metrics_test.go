package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteAndUnmatched(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/orders/:id", func(c *gin.Context) { c.String(http.StatusOK, "order") })
	r.POST("/orders/:id/status", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/orders/:id", "200"))
	base204 := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/orders/:id/status", "204"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404"))

	for _, path := range []string{"/orders/1", "/orders/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/orders/1/status", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-admin", nil))

	// IDs collapse into the route label.
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/orders/:id", "200")); got != baseOK+2 {
		t.Fatalf("GET /orders/:id 200 = %v; want %v", got, baseOK+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/orders/:id/status", "204")); got != base204+1 {
		t.Fatalf("POST status 204 = %v; want %v", got, base204+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", unmatchedPath, "404")); got != base404+1 {
		t.Fatalf("unmatched 404 = %v; want %v", got, base404+1)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}

func TestMetrics_ConditionalAndReplayCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/dispatcher/orders", func(c *gin.Context) {
		c.Header("ETag", `W/"dispatcher:1:0"`)
		if c.GetHeader("If-None-Match") == `W/"dispatcher:1:0"` {
			c.Status(http.StatusNotModified)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": []int{}})
	})
	r.POST("/orders", func(c *gin.Context) {
		if c.GetHeader(HeaderIdempotencyKey) == "seen" {
			c.Header(HeaderIdempotencyReplayed, "true")
		}
		c.JSON(http.StatusCreated, gin.H{"status": "ok"})
	})

	const route = "/dispatcher/orders"
	baseFull := testutil.ToFloat64(httpConditional.WithLabelValues(route, "full"))
	base304 := testutil.ToFloat64(httpConditional.WithLabelValues(route, "not_modified"))
	baseReplay := testutil.ToFloat64(httpReplays.WithLabelValues("/orders"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, route, nil))
	req := httptest.NewRequest(http.MethodGet, route, nil)
	req.Header.Set("If-None-Match", `W/"dispatcher:1:0"`)
	r.ServeHTTP(httptest.NewRecorder(), req)

	for _, key := range []string{"fresh", "seen"} {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.Header.Set(HeaderIdempotencyKey, key)
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	if got := testutil.ToFloat64(httpConditional.WithLabelValues(route, "full")); got != baseFull+1 {
		t.Fatalf("full = %v; want %v", got, baseFull+1)
	}
	if got := testutil.ToFloat64(httpConditional.WithLabelValues(route, "not_modified")); got != base304+1 {
		t.Fatalf("not_modified = %v; want %v", got, base304+1)
	}
	if got := testutil.ToFloat64(httpReplays.WithLabelValues("/orders")); got != baseReplay+1 {
		t.Fatalf("replays = %v; want %v", got, baseReplay+1)
	}
}
