package annotations

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/menta2k/mapcrop/pkg/coords"
	"github.com/menta2k/mapcrop/pkg/shapes"
	"github.com/menta2k/mapcrop/pkg/types"
)

const sampleExport = `[
  {"Inventarnummer": "CAR-S-2041", "type": "rectangle", "bounds": [[7716, 5428], [7800, 5500]], "Fundort": "Carnuntum"},
  {"Inventarnummer": "CAR-S-1930", "type": "polygon", "latlngs": [[8061, 3365], [8100, 3400], [8050, 3420]]},
  {"id": 17, "type": "polygon", "points": [["10,5", "20"], [30, 40], [50, 60]]},
  {"type": "polygon", "latlngs": [[[1, 2], [3, 4], [5, 6]], [[9, 9], [9, 9], [9, 9]]]},
  {"Inventarnummer": "CAR-S-0001", "type": "rectangle", "bounds": [["abc", 10], [20, 30]]},
  {"Inventarnummer": "CAR-S-0002", "type": "circle", "center": [1, 2]}
]`

func decodeSample(t *testing.T) []Entry {
	t.Helper()
	entries, err := Decode(strings.NewReader(sampleExport), "")
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(entries) != 6 {
		t.Fatalf("Expected 6 entries, got %d", len(entries))
	}
	return entries
}

func TestDecodeRectangle(t *testing.T) {
	is := is.New(t)
	e := decodeSample(t)[0]

	is.Equal(e.ID, "CAR-S-2041")
	is.NoErr(e.Err())
	is.Equal(e.Attributes["Fundort"], "Carnuntum")

	shape, err := e.Shape()
	is.NoErr(err)
	rect, ok := shape.(shapes.Rectangle)
	is.True(ok)
	is.Equal(rect.Corner1, types.Point2D{A: 7716, B: 5428})
	is.Equal(rect.Corner2, types.Point2D{A: 7800, B: 5500})
}

func TestDecodePolygon(t *testing.T) {
	is := is.New(t)
	e := decodeSample(t)[1]

	shape, err := e.Shape()
	is.NoErr(err)
	is.Equal(shape.Kind(), shapes.KindPolygon)
	is.Equal(len(shape.Points()), 3)
}

func TestDecodeFallbackIDAndStringComponents(t *testing.T) {
	is := is.New(t)
	e := decodeSample(t)[2]

	is.Equal(e.ID, "17")
	is.NoErr(e.Err())
	is.Equal(e.Points[0], types.Point2D{A: 10.5, B: 20})
}

func TestDecodeNestedRing(t *testing.T) {
	is := is.New(t)
	e := decodeSample(t)[3]

	is.Equal(e.ID, UnknownID)
	is.NoErr(e.Err())
	is.Equal(e.Points, []types.Point2D{{A: 1, B: 2}, {A: 3, B: 4}, {A: 5, B: 6}})
}

func TestDecodeInvalidComponent(t *testing.T) {
	is := is.New(t)
	e := decodeSample(t)[4]

	is.True(errors.Is(e.Err(), coords.ErrInvalidCoordinate))

	_, err := e.Shape()
	var icErr *coords.InvalidCoordinateError
	is.True(errors.As(err, &icErr))
}

func TestDecodeUnsupportedType(t *testing.T) {
	is := is.New(t)
	e := decodeSample(t)[5]

	_, err := e.Shape()
	is.True(errors.Is(err, shapes.ErrUnsupportedShape))
}

func TestDecodeMalformedPoints(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"missing component", `[{"type": "polygon", "latlngs": [[1], [2, 3], [4, 5]]}]`},
		{"null component", `[{"type": "polygon", "latlngs": [[1, null], [2, 3], [4, 5]]}]`},
		{"empty string", `[{"type": "rectangle", "bounds": [["", 1], [2, 3]]}]`},
		{"not a list", `[{"type": "rectangle", "bounds": "1,2,3,4"}]`},
		{"object without lng", `[{"type": "rectangle", "bounds": [{"lat": 1}, {"lat": 2, "lng": 3}]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := Decode(strings.NewReader(tt.json), "")
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if _, err := entries[0].Shape(); !errors.Is(err, coords.ErrInvalidCoordinate) {
				t.Errorf("Expected invalid coordinate error, got %v", err)
			}
		})
	}
}

func TestDecodeLatLngObjects(t *testing.T) {
	is := is.New(t)

	entries, err := Decode(strings.NewReader(`[{"type": "rectangle", "bounds": [{"lat": 48.1, "lng": 16.8}, {"lat": "48,2", "lng": 16.9}]}]`), "")
	is.NoErr(err)
	is.Equal(entries[0].Points, []types.Point2D{{A: 48.1, B: 16.8}, {A: 48.2, B: 16.9}})
}

func TestDecodeRectangleCornerCount(t *testing.T) {
	is := is.New(t)

	entries, err := Decode(strings.NewReader(`[{"type": "rectangle", "bounds": [[1, 2]]}]`), "")
	is.NoErr(err)

	_, err = entries[0].Shape()
	is.True(errors.Is(err, shapes.ErrDegenerateShape))
}

func TestDecodeCustomIDField(t *testing.T) {
	is := is.New(t)

	entries, err := Decode(strings.NewReader(`[{"name": "A-1", "Inventarnummer": "X", "type": "polygon", "latlngs": []}]`), "name")
	is.NoErr(err)
	is.Equal(entries[0].ID, "A-1")
	is.Equal(entries[0].Attributes["Inventarnummer"], "X")
}

func TestDecodeNotAnArray(t *testing.T) {
	_, err := Decode(strings.NewReader(`{"type": "rectangle"}`), "")
	if err == nil {
		t.Error("Expected error for a top-level object")
	}
}

func TestLoad(t *testing.T) {
	is := is.New(t)

	path := filepath.Join(t.TempDir(), "annotations.json")
	is.NoErr(os.WriteFile(path, []byte(sampleExport), 0644))

	entries, err := Load(path, DefaultIDField)
	is.NoErr(err)
	is.Equal(len(entries), 6)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"), DefaultIDField)
	is.True(err != nil)
}
