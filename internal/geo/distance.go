package geo

import (
	"math"
	"strconv"

	"github.com/jftuga/geodist"
)

// Distance is a kilometre value that may be unknown.
type Distance struct {
	km    float64
	known bool
}

// Known returns a known distance of km kilometres.
func Known(km float64) Distance { return Distance{km: km, known: true} }

// Unknown is the distance between points where at least one is missing.
var Unknown = Distance{}

// Km returns the distance and whether it is known.
func (d Distance) Km() (float64, bool) { return d.km, d.known }

// IsKnown reports whether the distance is known.
func (d Distance) IsKnown() bool { return d.known }

// Less orders known distances ascending and puts unknown ones last.
// Two unknown distances compare equal.
func (d Distance) Less(o Distance) bool {
	switch {
	case d.known && o.known:
		return d.km < o.km
	case d.known:
		return true
	default:
		return false
	}
}

// MarshalJSON renders known distances rounded to metres and unknown ones as null.
func (d Distance) MarshalJSON() ([]byte, error) {
	if !d.known {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, math.Round(d.km*1000)/1000, 'f', -1, 64), nil
}

// DistanceKm returns the geodesic distance between a and b, or Unknown when
// either is nil. Vincenty's ellipsoidal formula is used; for the near-antipodal
// pairs where it does not converge the haversine great-circle value is used.
func DistanceKm(a, b *Coordinate) Distance {
	if a == nil || b == nil {
		return Unknown
	}
	p := geodist.Coord{Lat: a.Lat, Lon: a.Lon}
	q := geodist.Coord{Lat: b.Lat, Lon: b.Lon}
	if _, km, err := geodist.VincentyDistance(p, q); err == nil && !math.IsNaN(km) {
		return Known(km)
	}
	_, km := geodist.HaversineDistance(p, q)
	return Known(km)
}
