// Package geo holds the coordinate types shared by the geocoder, the
// coordinate cache and the ranking engine, plus the great-circle distance
// calculator.
//
// Coordinates are explicit values. A zero latitude or longitude is a real
// position, never a marker for "missing"; absence is expressed through
// Resolution and Distance instead.
package geo

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the coordinate lies inside the WGS84 ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lon >= -180 && c.Lon <= 180
}

// Status is the tri-state outcome of resolving an address.
type Status int

const (
	// Unresolved means no lookup has been recorded for the address.
	Unresolved Status = iota
	// Resolved means the address has a known coordinate.
	Resolved
	// Failed means a lookup was attempted and produced no coordinate.
	Failed
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unresolved"
	}
}

// Resolution is what the coordinate cache returns for an address.
type Resolution struct {
	Status     Status
	Point      Coordinate
	ResolvedAt time.Time

	// Err carries the provider error that produced a Failed resolution in the
	// current call. It is nil for cache hits and for "no match" answers.
	Err error
}

// Coordinate returns the resolved point, or nil unless Status is Resolved.
func (r Resolution) Coordinate() *Coordinate {
	if r.Status != Resolved {
		return nil
	}
	p := r.Point
	return &p
}

// NormalizeAddress produces the cache key for a free-text address: Unicode
// NFC, surrounding whitespace trimmed, case preserved.
func NormalizeAddress(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
