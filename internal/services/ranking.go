// Package services – RankingService
//
// RankingService orders the restaurants able to fulfil an order by distance
// from the delivery address. Candidate coordinates are resolved concurrently
// through the coordinate cache with a bounded worker count; a restaurant whose
// address cannot be resolved is kept with an unknown distance instead of
// failing the ranking.
//
// Ordering is ascending distance, unknown distances last; ties (equal
// distances or both unknown) break by restaurant name, then ID.
package services

import (
	"context"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/go-foodcart-dispatch/internal/domain"
	"github.com/tbourn/go-foodcart-dispatch/internal/geo"
)

// DefaultRankingWorkers bounds concurrent address resolutions per ranking.
const DefaultRankingWorkers = 8

// RankedRestaurant is one entry of a ranking.
type RankedRestaurant struct {
	RestaurantID uint         `json:"restaurant_id"`
	Name         string       `json:"name"`
	Distance     geo.Distance `json:"distance_km"`
}

// Resolver resolves addresses to coordinates; *CoordinateCache implements it.
type Resolver interface {
	Resolve(ctx context.Context, address string) geo.Resolution
}

// Candidates finds the restaurants able to fulfil a product set;
// *CoverageResolver implements it.
type Candidates interface {
	AvailableRestaurants(ctx context.Context, productIDs []uint) ([]domain.Restaurant, error)
}

var rankingDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "ranking_duration_seconds",
		Help:    "Time to rank restaurants for one order.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"result"}, // ranked|empty|error
)

func init() {
	prometheus.MustRegister(rankingDuration)
}

// RankingService ranks candidate restaurants for orders.
type RankingService struct {
	Coverage    Candidates
	Coordinates Resolver
	// Workers bounds concurrent resolutions; <= 0 means DefaultRankingWorkers.
	Workers int
}

// Rank returns the capable restaurants for o, nearest first. An order no
// restaurant can fulfil ranks to an empty, non-nil slice. Only coverage
// lookup errors and caller cancellation are returned.
func (s *RankingService) Rank(ctx context.Context, o *domain.Order) ([]RankedRestaurant, error) {
	start := time.Now()

	tr := otel.Tracer("services/RankingService")
	ctx, span := tr.Start(ctx, "Rank",
		trace.WithAttributes(attribute.Int("order.id", int(o.ID))),
	)
	defer span.End()

	out, err := s.rank(ctx, o)
	result := "ranked"
	switch {
	case err != nil:
		result = "error"
		span.RecordError(err)
	case len(out) == 0:
		result = "empty"
	}
	span.SetAttributes(attribute.Int("restaurants", len(out)))
	rankingDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	return out, err
}

func (s *RankingService) rank(ctx context.Context, o *domain.Order) ([]RankedRestaurant, error) {
	restaurants, err := s.Coverage.AvailableRestaurants(ctx, o.ProductIDs())
	if err != nil {
		return nil, err
	}
	if len(restaurants) == 0 {
		return []RankedRestaurant{}, nil
	}

	workers := s.Workers
	if workers <= 0 {
		workers = DefaultRankingWorkers
	}

	// Slot 0 is the order address, slots 1..n the restaurants. Each goroutine
	// writes only its own slot.
	points := make([]*geo.Coordinate, len(restaurants)+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	g.Go(func() error {
		points[0] = s.Coordinates.Resolve(gctx, o.Address).Coordinate()
		return nil
	})
	for i := range restaurants {
		i := i
		g.Go(func() error {
			points[i+1] = s.Coordinates.Resolve(gctx, restaurants[i].Address).Coordinate()
			return nil
		})
	}
	_ = g.Wait() // workers never fail; unresolved points stay nil
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]RankedRestaurant, len(restaurants))
	for i, r := range restaurants {
		out[i] = RankedRestaurant{
			RestaurantID: r.ID,
			Name:         r.Name,
			Distance:     geo.DistanceKm(points[0], points[i+1]),
		}
	}
	SortRanked(out)
	return out, nil
}

// SortRanked sorts in place: known distances ascending, unknown last, ties by
// name then ID.
func SortRanked(rs []RankedRestaurant) {
	sort.SliceStable(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.Distance.Less(b.Distance) {
			return true
		}
		if b.Distance.Less(a.Distance) {
			return false
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.RestaurantID < b.RestaurantID
	})
}
