// Package coords resolves recorded coordinate pairs into image pixel space.
//
// A pair captured by a mapping widget is ambiguous in three independent ways:
// the axis order, the coordinate system and the direction of the vertical
// axis. A Policy states each of them explicitly.
//
// Known ambiguity: AxisAuto can only prove a component is vertical when it
// exceeds the image width. When both components fit inside the width it falls
// back to reading the first component as y. That default is arbitrary and
// should be validated against known shapes (see package calibration).
package coords

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/menta2k/mapcrop/pkg/projection"
	"github.com/menta2k/mapcrop/pkg/types"
)

// ErrInvalidCoordinate is matched by every *InvalidCoordinateError
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// InvalidCoordinateError reports a coordinate component that is missing,
// non-numeric, or resolves to a non-finite pixel value.
type InvalidCoordinateError struct {
	Value  string
	Reason string
}

func (e *InvalidCoordinateError) Error() string {
	return fmt.Sprintf("invalid coordinate %s: %s", e.Value, e.Reason)
}

func (e *InvalidCoordinateError) Is(target error) bool {
	return target == ErrInvalidCoordinate
}

// Resolution is a pixel position. LowConfidence is set when a geographic
// reading had to be guessed outside the plausibility window.
type Resolution struct {
	X             float64
	Y             float64
	LowConfidence bool
}

// Point returns the resolution as an orb point (x, y).
func (r Resolution) Point() orb.Point {
	return orb.Point{r.X, r.Y}
}

// ResolveFunc resolves a single recorded pair
type ResolveFunc func(types.Point2D) (Resolution, error)

// Resolve maps a recorded pair to pixel coordinates of a width x height image.
//
// For UnitPixel the axis order is applied directly. AxisAuto reads the first
// component as y when it exceeds width (it cannot be an x pixel), otherwise
// the second as y when it exceeds width, otherwise defaults to first = y.
// Geographic units go through the projection package and the georeference.
// MirrorX then sets x = width - x and OriginBottom sets y = height - y.
func Resolve(p types.Point2D, width, height int, policy Policy) (Resolution, error) {
	var res Resolution
	var err error

	switch policy.Unit {
	case UnitPixel, "":
		res = resolvePixel(p, width, policy.AxisOrder)
	case UnitDegrees, UnitWebMercator:
		res, err = resolveGeographic(p, width, height, policy)
		if err != nil {
			return Resolution{}, err
		}
	default:
		return Resolution{}, fmt.Errorf("unknown unit %q", policy.Unit)
	}

	if policy.MirrorX {
		res.X = float64(width) - res.X
	}
	if policy.VerticalOrigin == OriginBottom {
		res.Y = float64(height) - res.Y
	}

	if !finite(res.X) || !finite(res.Y) {
		return Resolution{}, &InvalidCoordinateError{Value: p.String(), Reason: "resolves to a non-finite pixel position"}
	}
	return res, nil
}

// Resolver binds the image size and policy for repeated calls
func Resolver(width, height int, policy Policy) ResolveFunc {
	return func(p types.Point2D) (Resolution, error) {
		return Resolve(p, width, height, policy)
	}
}

func resolvePixel(p types.Point2D, width int, order AxisOrder) Resolution {
	w := float64(width)

	switch order {
	case AxisXY:
		return Resolution{X: p.A, Y: p.B}
	case AxisAuto:
		if p.A > w {
			return Resolution{X: p.B, Y: p.A}
		}
		if p.B > w {
			return Resolution{X: p.A, Y: p.B}
		}
	}
	return Resolution{X: p.B, Y: p.A}
}

func resolveGeographic(p types.Point2D, width, height int, policy Policy) (Resolution, error) {
	if !finite(p.A) || !finite(p.B) {
		return Resolution{}, &InvalidCoordinateError{Value: p.String(), Reason: "component is not a finite number"}
	}

	var pos projection.Result
	if policy.Unit == UnitDegrees {
		pos = fromDegrees(p, policy)
	} else {
		pos = fromMercator(p, policy)
	}

	g := policy.Georeference
	spanLng := g.Max[0] - g.Min[0]
	spanLat := g.Max[1] - g.Min[1]

	// y grows northward here; a north-up image needs OriginBottom.
	return Resolution{
		X:             (pos.Lng - g.Min[0]) / spanLng * float64(width),
		Y:             (pos.Lat - g.Min[1]) / spanLat * float64(height),
		LowConfidence: pos.LowConfidence,
	}, nil
}

func fromDegrees(p types.Point2D, policy Policy) projection.Result {
	switch policy.AxisOrder {
	case AxisXY:
		return projection.Result{Lat: p.B, Lng: p.A}
	case AxisAuto:
		if policy.Window.IsZero() {
			return projection.Result{Lat: p.A, Lng: p.B}
		}
		if policy.Window.Contains(orb.Point{p.B, p.A}) {
			return projection.Result{Lat: p.A, Lng: p.B}
		}
		if policy.Window.Contains(orb.Point{p.A, p.B}) {
			return projection.Result{Lat: p.B, Lng: p.A}
		}
		return projection.Result{Lat: p.A, Lng: p.B, LowConfidence: true}
	}
	return projection.Result{Lat: p.A, Lng: p.B}
}

func fromMercator(p types.Point2D, policy Policy) projection.Result {
	switch policy.AxisOrder {
	case AxisYX:
		lat, lng := projection.InverseMercator(p.B, p.A)
		return projection.Result{Lat: lat, Lng: lng, Mercator: true}
	case AxisXY:
		lat, lng := projection.InverseMercator(p.A, p.B)
		return projection.Result{Lat: lat, Lng: lng, Mercator: true}
	}
	// ToWGS84 only fails on non-finite input, which was rejected above.
	res, _ := projection.ToWGS84(p.A, p.B, policy.Window)
	return res
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
