// Package annotations reads the shape list exported by the map editor.
//
// The export is a JSON array of entries such as
//
//	{"Inventarnummer": "CAR-S-2041", "type": "rectangle", "bounds": [[7716, 5428], [7800, 5500]]}
//	{"Inventarnummer": "CAR-S-1930", "type": "polygon", "latlngs": [[8061, 3365], ...]}
//
// Malformed coordinates do not fail the load. They are kept on the entry and
// reported when the entry is converted to a shape, so a single bad row only
// affects its own extraction.
package annotations

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/menta2k/mapcrop/pkg/coords"
	"github.com/menta2k/mapcrop/pkg/projection"
	"github.com/menta2k/mapcrop/pkg/shapes"
	"github.com/menta2k/mapcrop/pkg/types"
)

// DefaultIDField is the identifier key written by the map editor
const DefaultIDField = "Inventarnummer"

// UnknownID is used when an entry carries no identifier at all
const UnknownID = "unknown"

var reservedKeys = map[string]bool{
	"type":    true,
	"bounds":  true,
	"latlngs": true,
	"points":  true,
}

// Entry is one annotation as read from the export
type Entry struct {
	ID         string
	Type       string
	Points     []types.Point2D
	Attributes map[string]any

	err error
}

// Err returns the coordinate parse error of the entry, if any
func (e Entry) Err() error {
	return e.err
}

// Shape converts the entry into a rectangle or polygon.
func (e Entry) Shape() (shapes.Shape, error) {
	if e.err != nil {
		return nil, e.err
	}

	switch shapes.Kind(strings.ToLower(e.Type)) {
	case shapes.KindRectangle:
		if len(e.Points) != 2 {
			return nil, &shapes.DegenerateShapeError{
				Kind:   shapes.KindRectangle,
				Reason: fmt.Sprintf("expected 2 corners, got %d", len(e.Points)),
			}
		}
		return shapes.Rectangle{Corner1: e.Points[0], Corner2: e.Points[1]}, nil
	case shapes.KindPolygon:
		return shapes.Polygon{Vertices: e.Points}, nil
	}
	return nil, &shapes.UnsupportedShapeError{Type: e.Type}
}

// Load reads an annotation export from a file
func Load(path, idField string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open annotations file: %w", err)
	}
	defer f.Close()

	entries, err := Decode(f, idField)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return entries, nil
}

// Decode reads an annotation export. idField names the identifier key;
// "id" is tried when it is absent.
func Decode(r io.Reader, idField string) ([]Entry, error) {
	if idField == "" {
		idField = DefaultIDField
	}

	var raw []map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode annotations: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, fields := range raw {
		entries = append(entries, decodeEntry(fields, idField))
	}
	return entries, nil
}

func decodeEntry(fields map[string]json.RawMessage, idField string) Entry {
	e := Entry{
		ID:         UnknownID,
		Attributes: map[string]any{},
	}

	if id, ok := scalarString(fields[idField]); ok && id != "" {
		e.ID = id
	} else if id, ok := scalarString(fields["id"]); ok && id != "" {
		e.ID = id
	}

	e.Type, _ = scalarString(fields["type"])

	var coordsKey string
	for _, key := range []string{"bounds", "latlngs", "points"} {
		if _, ok := fields[key]; ok {
			coordsKey = key
			break
		}
	}
	if coordsKey != "" {
		e.Points, e.err = parsePoints(fields[coordsKey])
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if reservedKeys[k] || k == idField {
			continue
		}
		var v any
		if err := json.Unmarshal(fields[k], &v); err == nil {
			e.Attributes[k] = v
		}
	}
	return e
}

// parsePoints accepts a list of pairs. A list nested one level deeper is
// treated as a list of rings and only the outer ring is kept.
func parsePoints(data json.RawMessage) ([]types.Point2D, error) {
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, &coords.InvalidCoordinateError{Value: compact(data), Reason: "coordinates are not a list"}
	}

	if len(list) > 0 && isRing(list[0]) {
		if err := json.Unmarshal(list[0], &list); err != nil {
			return nil, &coords.InvalidCoordinateError{Value: compact(data), Reason: "malformed ring"}
		}
	}

	points := make([]types.Point2D, 0, len(list))
	for _, item := range list {
		p, err := parsePoint(item)
		if err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, nil
}

func parsePoint(data json.RawMessage) (types.Point2D, error) {
	var latlng struct {
		Lat *json.RawMessage `json:"lat"`
		Lng *json.RawMessage `json:"lng"`
	}
	if bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")) {
		if err := json.Unmarshal(data, &latlng); err != nil || latlng.Lat == nil || latlng.Lng == nil {
			return types.Point2D{}, &coords.InvalidCoordinateError{Value: compact(data), Reason: "point object needs lat and lng"}
		}
		return parseComponents(data, *latlng.Lat, *latlng.Lng)
	}

	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return types.Point2D{}, &coords.InvalidCoordinateError{Value: compact(data), Reason: "point is not a pair"}
	}
	if len(pair) < 2 {
		return types.Point2D{}, &coords.InvalidCoordinateError{Value: compact(data), Reason: "missing component"}
	}
	return parseComponents(data, pair[0], pair[1])
}

func parseComponents(point, a, b json.RawMessage) (types.Point2D, error) {
	va, ok := parseNumber(a)
	if !ok {
		return types.Point2D{}, &coords.InvalidCoordinateError{Value: compact(point), Reason: fmt.Sprintf("%s is not a number", compact(a))}
	}
	vb, ok := parseNumber(b)
	if !ok {
		return types.Point2D{}, &coords.InvalidCoordinateError{Value: compact(point), Reason: fmt.Sprintf("%s is not a number", compact(b))}
	}
	return types.Point2D{A: va, B: vb}, nil
}

func parseNumber(data json.RawMessage) (float64, bool) {
	if s, ok := scalarString(data); ok {
		return projection.ParseNumber(s)
	}
	return 0, false
}

// scalarString returns a JSON string or number as text
func scalarString(data json.RawMessage) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return strings.TrimSpace(s), true
	}
	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err == nil {
		return n.String(), true
	}
	return "", false
}

func isRing(data json.RawMessage) bool {
	var inner []json.RawMessage
	if err := json.Unmarshal(data, &inner); err != nil || len(inner) == 0 {
		return false
	}
	trimmed := bytes.TrimSpace(inner[0])
	return len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{')
}

func compact(data json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return strconv.Quote(string(data))
	}
	return buf.String()
}
