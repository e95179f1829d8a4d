// Package mapcrop cuts annotated regions out of a large historical map image.
//
// Annotations are rectangles and polygons drawn in a web mapping widget and
// exported as JSON. Their coordinates are ambiguous: the axis order, the unit
// (image pixels, WGS84 degrees or Web Mercator meters) and the direction of
// the vertical axis all depend on how the map layer was configured. A
// coords.Policy states those choices explicitly, and every shape is resolved,
// clipped, padded and saved under its identifier.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		"github.com/menta2k/mapcrop"
//		"github.com/menta2k/mapcrop/pkg/extractor"
//	)
//
//	func main() {
//		opts := extractor.DefaultOptions()
//		opts.OutputDir = "extracted"
//
//		mc, err := mapcrop.New(opts)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		_, summary, err := mc.ExtractFiles(context.Background(), "map.jpg", "annotations.json")
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Printf("%d of %d shapes extracted\n", summary.Extracted, summary.Total)
//	}
//
// The package consists of these components:
//
//  1. Coordinates (pkg/coords, pkg/projection): policy-driven pixel resolution
//  2. Shapes (pkg/shapes, pkg/annotations): geometry and the JSON export
//  3. Cropper (pkg/cropper): clipping, margin and cropping
//  4. Extractor (pkg/extractor): the batch pipeline with per-shape outcomes
//  5. Calibration (pkg/calibration): ranking policies against known boxes
package mapcrop

import (
	"context"
	"fmt"
	"image"

	"github.com/menta2k/mapcrop/pkg/annotations"
	"github.com/menta2k/mapcrop/pkg/calibration"
	"github.com/menta2k/mapcrop/pkg/extractor"
	"github.com/menta2k/mapcrop/pkg/processing"
	"github.com/menta2k/mapcrop/pkg/types"
)

// Version of the mapcrop library
const Version = "1.0.0"

// MapCrop provides a high-level interface for extracting annotated regions
type MapCrop struct {
	processor *processing.Processor
	extractor *extractor.Extractor
	idField   string
}

// New creates a MapCrop reading identifiers from the default field
func New(opts extractor.Options) (*MapCrop, error) {
	return NewWithIDField(opts, annotations.DefaultIDField)
}

// NewWithIDField creates a MapCrop reading identifiers from idField
func NewWithIDField(opts extractor.Options, idField string) (*MapCrop, error) {
	ex, err := extractor.New(opts)
	if err != nil {
		return nil, err
	}
	return &MapCrop{
		processor: processing.NewProcessor(),
		extractor: ex,
		idField:   idField,
	}, nil
}

// Options returns the effective extraction options
func (mc *MapCrop) Options() extractor.Options {
	return mc.extractor.Options()
}

// LoadImage loads the map image from file
func (mc *MapCrop) LoadImage(path string) (image.Image, error) {
	img, err := mc.processor.LoadImage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	return img, nil
}

// LoadAnnotations reads the annotation export from file
func (mc *MapCrop) LoadAnnotations(path string) ([]annotations.Entry, error) {
	return annotations.Load(path, mc.idField)
}

// Extract crops every entry out of img. Per-shape problems are reported in
// the results, never as an error.
func (mc *MapCrop) Extract(ctx context.Context, img image.Image, entries []annotations.Entry) ([]types.ExtractionResult, types.Summary) {
	return mc.extractor.Run(ctx, img, entries)
}

// ExtractFiles is a convenience function that loads the image and the
// annotations and runs the extraction. Only unreadable inputs are errors.
func (mc *MapCrop) ExtractFiles(ctx context.Context, imagePath, annotationsPath string) ([]types.ExtractionResult, types.Summary, error) {
	entries, err := mc.LoadAnnotations(annotationsPath)
	if err != nil {
		return nil, types.Summary{}, err
	}

	img, err := mc.LoadImage(imagePath)
	if err != nil {
		return nil, types.Summary{}, err
	}

	results, summary := mc.Extract(ctx, img, entries)
	return results, summary, nil
}

// DebugOverlay outlines the region of every extracted result on a copy of img
func (mc *MapCrop) DebugOverlay(img image.Image, results []types.ExtractionResult, maxSide int) image.Image {
	var boxes []types.BoundingBox
	for _, r := range results {
		if r.Outcome == types.Extracted && r.Box != nil {
			boxes = append(boxes, *r.Box)
		}
	}
	return mc.processor.CreateDebugOverlay(img, boxes, maxSide)
}

// SaveImage saves an image using the configured output format
func (mc *MapCrop) SaveImage(img image.Image, path string) error {
	opts := mc.extractor.Options()
	return mc.processor.SaveImage(img, path, opts.Format, opts.Quality, opts.Lossless)
}

// Calibrate ranks axis order, vertical origin and mirroring against known
// boxes, keeping the unit and georeference of the configured policy.
func (mc *MapCrop) Calibrate(entries []annotations.Entry, refs calibration.References, width, height int) ([]calibration.Candidate, error) {
	return calibration.Rank(entries, refs, width, height, mc.extractor.Options().Policy)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
