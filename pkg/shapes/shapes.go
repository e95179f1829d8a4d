// Package shapes holds the annotation geometries drawn on a map and computes
// their bounding boxes in pixel space.
package shapes

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/menta2k/mapcrop/pkg/coords"
	"github.com/menta2k/mapcrop/pkg/types"
)

// Kind is the annotation type as exported by the mapping widget
type Kind string

const (
	KindRectangle Kind = "rectangle"
	KindPolygon   Kind = "polygon"
)

var (
	// ErrDegenerateShape is matched by every *DegenerateShapeError
	ErrDegenerateShape = errors.New("degenerate shape")
	// ErrUnsupportedShape is matched by every *UnsupportedShapeError
	ErrUnsupportedShape = errors.New("unsupported shape")
)

// DegenerateShapeError reports a polygon with too few vertices or a shape
// whose resolved box has no area.
type DegenerateShapeError struct {
	Kind   Kind
	Reason string
}

func (e *DegenerateShapeError) Error() string {
	return fmt.Sprintf("degenerate %s: %s", e.Kind, e.Reason)
}

func (e *DegenerateShapeError) Is(target error) bool {
	return target == ErrDegenerateShape
}

// UnsupportedShapeError reports an annotation type other than rectangle or polygon
type UnsupportedShapeError struct {
	Type string
}

func (e *UnsupportedShapeError) Error() string {
	return fmt.Sprintf("unsupported shape type %q", e.Type)
}

func (e *UnsupportedShapeError) Is(target error) bool {
	return target == ErrUnsupportedShape
}

// Shape is a rectangle or a polygon in recorded (unresolved) coordinates
type Shape interface {
	Kind() Kind
	Points() []types.Point2D
}

// Rectangle is given by two opposite corners in any order
type Rectangle struct {
	Corner1 types.Point2D
	Corner2 types.Point2D
}

func (r Rectangle) Kind() Kind { return KindRectangle }

func (r Rectangle) Points() []types.Point2D {
	return []types.Point2D{r.Corner1, r.Corner2}
}

// Polygon is an ordered vertex list. A valid polygon has at least 3 vertices.
type Polygon struct {
	Vertices []types.Point2D
}

func (p Polygon) Kind() Kind { return KindPolygon }

func (p Polygon) Points() []types.Point2D {
	return p.Vertices
}

// BoundingBox resolves every point of the shape and returns the min/max box.
// It fails with *DegenerateShapeError when a polygon has fewer than three
// vertices or the box has zero width or height, and passes resolver errors
// through unchanged.
func BoundingBox(s Shape, resolve coords.ResolveFunc) (types.BoundingBox, error) {
	if s == nil {
		return types.BoundingBox{}, &UnsupportedShapeError{Type: "<nil>"}
	}

	points := s.Points()
	switch s.Kind() {
	case KindRectangle:
		if len(points) != 2 {
			return types.BoundingBox{}, &DegenerateShapeError{Kind: KindRectangle, Reason: fmt.Sprintf("%d corners", len(points))}
		}
	case KindPolygon:
		if len(points) < 3 {
			return types.BoundingBox{}, &DegenerateShapeError{Kind: KindPolygon, Reason: fmt.Sprintf("%d vertices, need at least 3", len(points))}
		}
	default:
		return types.BoundingBox{}, &UnsupportedShapeError{Type: string(s.Kind())}
	}

	resolved := make(orb.MultiPoint, 0, len(points))
	for _, p := range points {
		res, err := resolve(p)
		if err != nil {
			return types.BoundingBox{}, err
		}
		resolved = append(resolved, res.Point())
	}

	bound := resolved.Bound()
	box := types.BoundingBox{
		MinX: bound.Min[0],
		MinY: bound.Min[1],
		MaxX: bound.Max[0],
		MaxY: bound.Max[1],
	}

	if box.Width() <= 0 || box.Height() <= 0 {
		return types.BoundingBox{}, &DegenerateShapeError{
			Kind:   s.Kind(),
			Reason: fmt.Sprintf("zero-area box %s", box),
		}
	}
	return box, nil
}
