package geo

import (
	"encoding/json"
	"math"
	"testing"
)

func TestDistanceKm_UnknownWhenMissing(t *testing.T) {
	a := &Coordinate{Lat: 55.75, Lon: 37.61}
	if d := DistanceKm(nil, a); d.IsKnown() {
		t.Fatalf("expected unknown with nil first arg")
	}
	if d := DistanceKm(a, nil); d.IsKnown() {
		t.Fatalf("expected unknown with nil second arg")
	}
	if d := DistanceKm(nil, nil); d.IsKnown() {
		t.Fatalf("expected unknown with both nil")
	}
}

func TestDistanceKm_SymmetricAndPlausible(t *testing.T) {
	moscow := &Coordinate{Lat: 55.7558, Lon: 37.6173}
	spb := &Coordinate{Lat: 59.9343, Lon: 30.3351}

	ab, ok1 := DistanceKm(moscow, spb).Km()
	ba, ok2 := DistanceKm(spb, moscow).Km()
	if !ok1 || !ok2 {
		t.Fatalf("expected known distances")
	}
	if math.Abs(ab-ba) > 1e-6*math.Max(ab, ba) {
		t.Fatalf("not symmetric: %v vs %v", ab, ba)
	}
	// Roughly 634 km between city centres.
	if ab < 620 || ab > 650 {
		t.Fatalf("implausible distance: %v", ab)
	}
}

func TestDistanceKm_ZeroCoordinatesAreReal(t *testing.T) {
	origin := &Coordinate{Lat: 0, Lon: 0}
	d, ok := DistanceKm(origin, origin).Km()
	if !ok || d != 0 {
		t.Fatalf("expected known zero distance, got %v ok=%v", d, ok)
	}
	east := &Coordinate{Lat: 0, Lon: 1}
	d, ok = DistanceKm(origin, east).Km()
	if !ok || d < 110 || d > 112 {
		t.Fatalf("expected ~111km along equator, got %v", d)
	}
}

func TestDistanceKm_AntipodalFallsBack(t *testing.T) {
	a := &Coordinate{Lat: 0, Lon: 0}
	b := &Coordinate{Lat: 0.5, Lon: 179.7}
	d, ok := DistanceKm(a, b).Km()
	if !ok || math.IsNaN(d) || d < 19000 {
		t.Fatalf("expected large known distance, got %v ok=%v", d, ok)
	}
}

func TestDistance_LessAndJSON(t *testing.T) {
	if !Known(1).Less(Known(2)) || Known(2).Less(Known(1)) {
		t.Fatalf("known ordering broken")
	}
	if !Known(1e9).Less(Unknown) {
		t.Fatalf("known must sort before unknown")
	}
	if Unknown.Less(Known(0)) || Unknown.Less(Unknown) {
		t.Fatalf("unknown must not sort before anything")
	}

	b, err := json.Marshal(struct {
		A Distance `json:"a"`
		B Distance `json:"b"`
	}{A: Known(12.34567), B: Unknown})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got := string(b); got != `{"a":12.346,"b":null}` {
		t.Fatalf("unexpected json: %s", got)
	}
}

func TestResolution_Coordinate(t *testing.T) {
	if (Resolution{Status: Unresolved}).Coordinate() != nil {
		t.Fatalf("unresolved must have nil coordinate")
	}
	if (Resolution{Status: Failed, Point: Coordinate{Lat: 1}}).Coordinate() != nil {
		t.Fatalf("failed must have nil coordinate")
	}
	c := (Resolution{Status: Resolved}).Coordinate()
	if c == nil || c.Lat != 0 || c.Lon != 0 {
		t.Fatalf("resolved zero coordinate must be returned, got %+v", c)
	}
	if Resolved.String() != "resolved" || Failed.String() != "failed" || Unresolved.String() != "unresolved" {
		t.Fatalf("status strings")
	}
}

func TestNormalizeAddress(t *testing.T) {
	// "й" decomposed (и + combining breve) must match the precomposed form.
	decomposed := "  Москва, ул. Строителе\u0438\u0306 1 "
	if got, want := NormalizeAddress(decomposed), "Москва, ул. Строителе\u0439 1"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if NormalizeAddress("Main St") == NormalizeAddress("main st") {
		t.Fatalf("normalization must preserve case")
	}
}

func TestCoordinate_Valid(t *testing.T) {
	if !(Coordinate{Lat: -90, Lon: 180}).Valid() {
		t.Fatalf("boundary should be valid")
	}
	if (Coordinate{Lat: 91}).Valid() || (Coordinate{Lon: -181}).Valid() {
		t.Fatalf("out of range should be invalid")
	}
}
