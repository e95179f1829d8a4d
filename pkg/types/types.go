package types

import (
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
)

// Point2D is a coordinate pair exactly as it was recorded by the annotation
// widget. The components carry no axis meaning until they are resolved.
type Point2D struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// String formats the pair the way the widget exports it.
func (p Point2D) String() string {
	return fmt.Sprintf("[%g, %g]", p.A, p.B)
}

// BoundingBox is an axis-aligned box in pixel space
type BoundingBox struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// Width returns MaxX - MinX
func (b BoundingBox) Width() float64 {
	return b.MaxX - b.MinX
}

// Height returns MaxY - MinY
func (b BoundingBox) Height() float64 {
	return b.MaxY - b.MinY
}

// IsValid reports whether the box has finite coordinates and min <= max on both axes.
func (b BoundingBox) IsValid() bool {
	for _, v := range []float64{b.MinX, b.MinY, b.MaxX, b.MaxY} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.MinX <= b.MaxX && b.MinY <= b.MaxY
}

// Rect converts the box to an image.Rectangle, flooring the minimum corner
// and rounding the maximum corner up.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(
		int(math.Floor(b.MinX)), int(math.Floor(b.MinY)),
		int(math.Ceil(b.MaxX)), int(math.Ceil(b.MaxY)),
	)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("(%.0f,%.0f)-(%.0f,%.0f)", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// Outcome is the per-shape result of an extraction run
type Outcome string

const (
	Extracted Outcome = "extracted"
	Skipped   Outcome = "skipped"
	Failed    Outcome = "failed"
)

// Reason classifies why a shape was not extracted
type Reason string

const (
	ReasonNone              Reason = ""
	ReasonInvalidCoordinate Reason = "invalid_coordinate"
	ReasonDegenerateShape   Reason = "degenerate_shape"
	ReasonUnsupportedShape  Reason = "unsupported_shape"
	ReasonOutOfBounds       Reason = "out_of_bounds"
	ReasonIOFailure         Reason = "io_failure"
	ReasonCancelled         Reason = "cancelled"
)

// ExtractionResult records what happened to a single annotation entry.
type ExtractionResult struct {
	ID            string       `json:"id"`
	Outcome       Outcome      `json:"outcome"`
	Reason        Reason       `json:"reason,omitempty"`
	Detail        string       `json:"detail,omitempty"`
	OutputPath    string       `json:"output_path,omitempty"`
	Width         int          `json:"width,omitempty"`
	Height        int          `json:"height,omitempty"`
	Box           *BoundingBox `json:"box,omitempty"`
	LowConfidence bool         `json:"low_confidence,omitempty"`
}

// Summary is the run report an operator inspects after a batch.
type Summary struct {
	RunID     string             `json:"run_id"`
	Total     int                `json:"total"`
	Extracted int                `json:"extracted"`
	Skipped   int                `json:"skipped"`
	Failed    int                `json:"failed"`
	Problems  []ExtractionResult `json:"problems,omitempty"`
}

// Add counts a result. Skipped and failed results are kept in Problems.
func (s *Summary) Add(r ExtractionResult) {
	s.Total++
	switch r.Outcome {
	case Extracted:
		s.Extracted++
		return
	case Skipped:
		s.Skipped++
	case Failed:
		s.Failed++
	}
	s.Problems = append(s.Problems, r)
}

// WriteJSON writes the summary as indented JSON
func (s Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	return nil
}
