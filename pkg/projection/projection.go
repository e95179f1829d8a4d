// Package projection converts geographic coordinate pairs of unknown
// representation into WGS84 degrees.
//
// A pair is either already latitude/longitude in degrees or a Web-Mercator
// easting/northing in meters with no reliable axis order. The meter case is
// disambiguated with a plausibility window: a geographic region known to
// contain every valid point of the data set.
package projection

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// MercatorExtent is half the circumference of the spherical Web-Mercator
// world in meters (EPSG:3857).
const MercatorExtent = 20037508.34

// Result is a WGS84 position produced by ToWGS84.
type Result struct {
	Lat float64
	Lng float64
	// Mercator is set when the input was interpreted as Web-Mercator meters.
	Mercator bool
	// LowConfidence is set when neither Mercator interpretation fell inside
	// the plausibility window and the first one was used anyway.
	LowConfidence bool
}

// Point returns the position as an orb point (lng, lat).
func (r Result) Point() orb.Point {
	return orb.Point{r.Lng, r.Lat}
}

// ToWGS84 interprets the pair (a, b) and returns a position in degrees.
//
// If |a| <= 90 and |b| <= 180 the pair is taken as (lat, lng) unchanged.
// Otherwise both values are Web-Mercator meters; the reading with a as
// northing is tried first, then a as easting. The first reading inside
// window wins. When none matches (or window is zero) the first reading is
// returned with LowConfidence set. ok is false for non-finite input.
func ToWGS84(a, b float64, window orb.Bound) (Result, bool) {
	if !finite(a) || !finite(b) {
		return Result{}, false
	}

	if math.Abs(a) <= 90 && math.Abs(b) <= 180 {
		return Result{Lat: a, Lng: b}, true
	}

	candidates := [2]Result{
		fromMercator(b, a),
		fromMercator(a, b),
	}

	if !window.IsZero() {
		for _, c := range candidates {
			if window.Contains(c.Point()) {
				return c, true
			}
		}
	}

	first := candidates[0]
	first.LowConfidence = true
	return first, true
}

// ParsePair parses both components with ParseNumber and calls ToWGS84.
// ok is false when either component is missing or unparseable.
func ParsePair(a, b string, window orb.Bound) (Result, bool) {
	va, ok := ParseNumber(a)
	if !ok {
		return Result{}, false
	}
	vb, ok := ParseNumber(b)
	if !ok {
		return Result{}, false
	}
	return ToWGS84(va, vb, window)
}

// InverseMercator converts Web-Mercator meters to (lat, lng) degrees on the sphere.
func InverseMercator(easting, northing float64) (lat, lng float64) {
	lng = easting / MercatorExtent * 180
	lat = northing / MercatorExtent * 180
	lat = 180 / math.Pi * (2*math.Atan(math.Exp(lat*math.Pi/180)) - math.Pi/2)
	return lat, lng
}

// ForwardMercator converts (lat, lng) degrees to Web-Mercator meters.
func ForwardMercator(lat, lng float64) (easting, northing float64) {
	easting = lng * MercatorExtent / 180
	northing = math.Log(math.Tan((90+lat)*math.Pi/360)) / (math.Pi / 180)
	northing = northing * MercatorExtent / 180
	return easting, northing
}

// ParseNumber parses a decimal number, accepting a decimal comma when the
// text contains no '.'. Empty and non-finite values are rejected.
func ParseNumber(text string) (float64, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	if strings.Contains(text, ",") && !strings.Contains(text, ".") {
		text = strings.ReplaceAll(text, ",", ".")
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || !finite(v) {
		return 0, false
	}
	return v, true
}

func fromMercator(easting, northing float64) Result {
	lat, lng := InverseMercator(easting, northing)
	return Result{Lat: lat, Lng: lng, Mercator: true}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
