// Package services – CoordinateCache
//
// CoordinateCache resolves addresses to coordinates through a persistent
// store keyed by normalized address, calling the geocoder only on a miss.
// Failed lookups are stored as a NULL pair and are not retried until the
// entry is older than RetryFailedAfter (zero keeps them until an explicit
// Refresh). Concurrent resolutions of one address may both reach the
// geocoder; the last write wins.
package services

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
	"github.com/tbourn/go-foodcart-dispatch/internal/geo"
	"github.com/tbourn/go-foodcart-dispatch/internal/geocoder"
)

// CoordinateStore is the key-value view of the coordinate table.
// Get returns (nil, nil) when no entry exists.
type CoordinateStore interface {
	Get(ctx context.Context, address string) (*domain.AddressCoordinates, error)
	Put(ctx context.Context, address string, coord *geo.Coordinate, at time.Time) error
}

var cacheLookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coordinate_cache_lookups_total",
		Help: "Coordinate cache lookups by result.",
	},
	[]string{"result"}, // hit|failed_hit|miss|refresh
)

func init() {
	prometheus.MustRegister(cacheLookups)
}

// CoordinateCache is safe for concurrent use when its Store and Geocoder are.
type CoordinateCache struct {
	Store    CoordinateStore
	Geocoder geocoder.Geocoder

	// RetryFailedAfter re-attempts Failed entries older than this. Zero never retries.
	RetryFailedAfter time.Duration
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

func (c *CoordinateCache) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// Resolve returns the coordinate for address, consulting the geocoder only
// when the store has no usable entry. Failures never surface as errors: they
// come back as a Failed or Unresolved Resolution whose Err says why.
func (c *CoordinateCache) Resolve(ctx context.Context, address string) geo.Resolution {
	key := geo.NormalizeAddress(address)
	if key == "" {
		return geo.Resolution{Status: geo.Unresolved, Err: ErrEmptyAddress}
	}

	tr := otel.Tracer("services/CoordinateCache")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(attribute.Int("address.len", len(key))),
	)
	defer span.End()

	row, err := c.Store.Get(ctx, key)
	if err != nil {
		// Store unavailable: still try the provider, the write may fail too.
		zerolog.Ctx(ctx).Warn().Err(err).Str("address", redactAddress(key)).Msg("coordinate cache read failed")
	}
	res := row.Resolution()
	switch res.Status {
	case geo.Resolved:
		cacheLookups.WithLabelValues("hit").Inc()
		span.SetAttributes(attribute.String("cache.result", "hit"))
		return res
	case geo.Failed:
		if c.RetryFailedAfter <= 0 || c.now().Sub(res.ResolvedAt) < c.RetryFailedAfter {
			cacheLookups.WithLabelValues("failed_hit").Inc()
			span.SetAttributes(attribute.String("cache.result", "failed_hit"))
			return res
		}
	}

	cacheLookups.WithLabelValues("miss").Inc()
	span.SetAttributes(attribute.String("cache.result", "miss"))
	res, _ = c.lookup(ctx, key)
	return res
}

// Refresh re-resolves address unconditionally and overwrites its entry.
// The returned error covers storage failures and caller cancellation; a
// provider failure is recorded as a Failed entry and reported in the
// Resolution.
func (c *CoordinateCache) Refresh(ctx context.Context, address string) (geo.Resolution, error) {
	key := geo.NormalizeAddress(address)
	if key == "" {
		return geo.Resolution{Status: geo.Unresolved}, ErrEmptyAddress
	}
	cacheLookups.WithLabelValues("refresh").Inc()
	return c.lookup(ctx, key)
}

// lookup calls the geocoder and stores the outcome. Cancellation of the
// caller says nothing about the address, so it is not stored.
func (c *CoordinateCache) lookup(ctx context.Context, key string) (geo.Resolution, error) {
	log := zerolog.Ctx(ctx)
	coord, gerr := c.Geocoder.Geocode(ctx, key)
	if gerr != nil && ctx.Err() != nil {
		return geo.Resolution{Status: geo.Unresolved, Err: gerr}, ctx.Err()
	}
	if gerr != nil {
		log.Warn().Err(gerr).Str("address", redactAddress(key)).Msg("geocoding failed")
		coord = nil
	}

	at := c.now()
	if err := c.Store.Put(ctx, key, coord, at); err != nil {
		log.Error().Err(err).Str("address", redactAddress(key)).Msg("coordinate cache write failed")
		return resolutionOf(coord, at, gerr), err
	}
	return resolutionOf(coord, at, gerr), nil
}

func resolutionOf(coord *geo.Coordinate, at time.Time, err error) geo.Resolution {
	if coord == nil {
		return geo.Resolution{Status: geo.Failed, ResolvedAt: at, Err: err}
	}
	return geo.Resolution{Status: geo.Resolved, Point: *coord, ResolvedAt: at}
}

// redactAddress keeps a short prefix so logs stay correlatable without
// carrying full customer addresses.
func redactAddress(a string) string {
	const keep = 12
	r := []rune(a)
	if len(r) <= keep {
		return a
	}
	return string(r[:keep]) + "…"
}
