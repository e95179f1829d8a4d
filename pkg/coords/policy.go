package coords

import (
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// AxisOrder tells which component of a recorded pair is the vertical one
type AxisOrder string

const (
	// AxisYX reads [a, b] as [y, x], the [lat, lng] order of Leaflet.
	AxisYX AxisOrder = "yx"
	// AxisXY reads [a, b] as [x, y].
	AxisXY AxisOrder = "xy"
	// AxisAuto inspects magnitudes against the image width. See Resolve.
	AxisAuto AxisOrder = "auto"
)

// VerticalOrigin is the edge of the image where the recorded y is zero
type VerticalOrigin string

const (
	OriginTop    VerticalOrigin = "top"
	OriginBottom VerticalOrigin = "bottom"
)

// Unit is the coordinate system the pairs were recorded in
type Unit string

const (
	UnitPixel       Unit = "pixel"
	UnitDegrees     Unit = "degrees"
	UnitWebMercator Unit = "webMercatorMeters"
)

// Geographic reports whether the unit needs a georeference to reach pixel space.
func (u Unit) Geographic() bool {
	return u == UnitDegrees || u == UnitWebMercator
}

// Policy is the explicit description of how a recorded pair maps to pixels.
// It is passed to every Resolve call; nothing is inferred behind its back
// except under AxisAuto.
type Policy struct {
	AxisOrder      AxisOrder
	VerticalOrigin VerticalOrigin
	Unit           Unit
	// MirrorX flips x around the vertical center line after axis resolution.
	MirrorX bool
	// Georeference is the geographic extent (lng, lat) covered by the image.
	// Only used by geographic units.
	Georeference orb.Bound
	// Window is the plausibility window used to pick between ambiguous
	// geographic readings.
	Window orb.Bound
}

// DefaultPolicy returns auto axis order, top origin, pixel units.
// The vertical origin is not calibrated for any particular imagery.
func DefaultPolicy() Policy {
	return Policy{
		AxisOrder:      AxisAuto,
		VerticalOrigin: OriginTop,
		Unit:           UnitPixel,
	}
}

func (p Policy) String() string {
	s := fmt.Sprintf("axis=%s origin=%s unit=%s", p.AxisOrder, p.VerticalOrigin, p.Unit)
	if p.MirrorX {
		s += " mirror"
	}
	return s
}

// Validate checks the enumerations and the georeference of geographic units
func (p Policy) Validate() error {
	var errs []error

	switch p.AxisOrder {
	case AxisYX, AxisXY, AxisAuto:
	default:
		errs = append(errs, fmt.Errorf("unknown axis order %q", p.AxisOrder))
	}

	switch p.VerticalOrigin {
	case OriginTop, OriginBottom:
	default:
		errs = append(errs, fmt.Errorf("unknown vertical origin %q", p.VerticalOrigin))
	}

	switch p.Unit {
	case UnitPixel:
	case UnitDegrees, UnitWebMercator:
		g := p.Georeference
		if g.Max[0] <= g.Min[0] || g.Max[1] <= g.Min[1] {
			errs = append(errs, fmt.Errorf("unit %s requires a georeference with positive extent", p.Unit))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown unit %q", p.Unit))
	}

	return errors.Join(errs...)
}

// ParseAxisOrder accepts yx, xy or auto (case-insensitive)
func ParseAxisOrder(s string) (AxisOrder, error) {
	switch a := AxisOrder(strings.ToLower(strings.TrimSpace(s))); a {
	case AxisYX, AxisXY, AxisAuto:
		return a, nil
	}
	return "", fmt.Errorf("invalid axis order: %s (must be yx, xy, or auto)", s)
}

// ParseVerticalOrigin accepts top or bottom (case-insensitive)
func ParseVerticalOrigin(s string) (VerticalOrigin, error) {
	switch o := VerticalOrigin(strings.ToLower(strings.TrimSpace(s))); o {
	case OriginTop, OriginBottom:
		return o, nil
	}
	return "", fmt.Errorf("invalid vertical origin: %s (must be top or bottom)", s)
}

// ParseUnit accepts pixel, degrees or webMercatorMeters. "mercator" and
// "meters" are accepted as aliases of the latter.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pixel", "pixels", "px":
		return UnitPixel, nil
	case "degrees", "deg", "wgs84":
		return UnitDegrees, nil
	case "webmercatormeters", "mercator", "meters":
		return UnitWebMercator, nil
	}
	return "", fmt.Errorf("invalid unit: %s (must be pixel, degrees, or webMercatorMeters)", s)
}
