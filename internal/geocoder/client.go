// Package geocoder is the HTTP client for the third-party address→coordinate
// API (Yandex Geocoder wire format).
//
// The client is a pure I/O boundary: it performs one GET per lookup, takes the
// most relevant match and parses its "lon lat" position. Zero matches is a
// normal answer (nil coordinate, nil error). Transport failures, non-2xx
// statuses and unexpected payloads are reported as *Error so callers can
// classify them with errors.Is(err, ErrNetwork) / errors.Is(err, ErrParse).
package geocoder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/tbourn/go-foodcart-dispatch/internal/geo"
)

// DefaultBaseURL is the public Yandex geocoder endpoint.
const DefaultBaseURL = "https://geocode-maps.yandex.ru/1.x"

// maxBodyBytes caps how much of a provider response is read.
const maxBodyBytes = 1 << 20

// Kind classifies a geocoding failure.
type Kind string

const (
	KindNetwork Kind = "network"
	KindStatus  Kind = "status"
	KindParse   Kind = "parse"
)

var (
	// ErrNetwork matches transport failures and non-success HTTP statuses.
	ErrNetwork = errors.New("geocoder: network error")
	// ErrParse matches responses whose shape or values are unexpected.
	ErrParse = errors.New("geocoder: parse error")
)

// Error describes a failed lookup.
type Error struct {
	Kind       Kind
	StatusCode int // set for KindStatus
	Err        error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("geocoder: unexpected status %d", e.StatusCode)
	case KindParse:
		return "geocoder: parse: " + errString(e.Err)
	default:
		return "geocoder: request: " + errString(e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is match the package sentinels. Status failures count as
// network errors.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork || e.Kind == KindStatus
	case ErrParse:
		return e.Kind == KindParse
	}
	return false
}

func errString(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}

// Geocoder resolves a free-text address to a coordinate.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*geo.Coordinate, error)
}

// Client calls the provider over HTTP. The zero value is not usable; build
// it with New.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	// Timeout bounds a single lookup including rate-limit wait. Zero disables it.
	Timeout time.Duration
	// Limiter throttles outbound requests. Nil disables throttling.
	Limiter *rate.Limiter
}

// New returns a Client. An empty baseURL selects DefaultBaseURL and rps <= 0
// disables outbound throttling.
func New(baseURL, apiKey string, timeout time.Duration, rps float64) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{},
		Timeout: timeout,
	}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.Limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return c
}

var (
	geocodeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocoder_requests_total",
			Help: "Geocoder lookups by outcome.",
		},
		[]string{"outcome"}, // ok|no_match|network|status|parse
	)
	geocodeLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "geocoder_request_duration_seconds",
			Help:    "Duration of geocoder lookups in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(geocodeRequests, geocodeLatency)
}

// response mirrors the subset of the provider payload we read.
// FeatureMember is a pointer so a missing collection differs from an empty one.
type response struct {
	Response *struct {
		GeoObjectCollection *struct {
			FeatureMember *[]struct {
				GeoObject struct {
					Point struct {
						Pos string `json:"pos"`
					} `json:"Point"`
				} `json:"GeoObject"`
			} `json:"featureMember"`
		} `json:"GeoObjectCollection"`
	} `json:"response"`
}

// Geocode looks up address and returns the most relevant coordinate, or
// (nil, nil) when the provider has no match.
func (c *Client) Geocode(ctx context.Context, address string) (*geo.Coordinate, error) {
	ctx, span := otel.Tracer("geocoder").Start(ctx, "Geocode",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.Int("address.len", len(address))),
	)
	defer span.End()

	start := time.Now()
	coord, err := c.geocode(ctx, address)
	geocodeLatency.Observe(time.Since(start).Seconds())

	outcome := "ok"
	var gerr *Error
	switch {
	case errors.As(err, &gerr):
		outcome = string(gerr.Kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	case err != nil:
		outcome = string(KindNetwork)
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	case coord == nil:
		outcome = "no_match"
	}
	span.SetAttributes(attribute.String("geocoder.outcome", outcome))
	geocodeRequests.WithLabelValues(outcome).Inc()
	return coord, err
}

func (c *Client) geocode(ctx context.Context, address string) (*geo.Coordinate, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, &Error{Kind: KindNetwork, Err: err}
		}
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	q := u.Query()
	q.Set("geocode", address)
	q.Set("apikey", c.APIKey)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &Error{Kind: KindStatus, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	return parse(body)
}

// parse extracts the first feature member's position from a provider payload.
func parse(body []byte) (*geo.Coordinate, error) {
	var r response
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, &Error{Kind: KindParse, Err: err}
	}
	if r.Response == nil || r.Response.GeoObjectCollection == nil || r.Response.GeoObjectCollection.FeatureMember == nil {
		return nil, &Error{Kind: KindParse, Err: errors.New("missing response.GeoObjectCollection.featureMember")}
	}
	members := *r.Response.GeoObjectCollection.FeatureMember
	if len(members) == 0 {
		return nil, nil
	}
	return parsePos(members[0].GeoObject.Point.Pos)
}

// parsePos converts "<lon> <lat>" into a coordinate.
func parsePos(pos string) (*geo.Coordinate, error) {
	fields := strings.Fields(pos)
	if len(fields) != 2 {
		return nil, &Error{Kind: KindParse, Err: fmt.Errorf("pos %q: want \"<lon> <lat>\"", pos)}
	}
	lon, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, &Error{Kind: KindParse, Err: fmt.Errorf("pos longitude: %w", err)}
	}
	lat, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil, &Error{Kind: KindParse, Err: fmt.Errorf("pos latitude: %w", err)}
	}
	c := geo.Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return nil, &Error{Kind: KindParse, Err: fmt.Errorf("pos %q out of range", pos)}
	}
	return &c, nil
}
