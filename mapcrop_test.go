package mapcrop

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/menta2k/mapcrop/pkg/calibration"
	"github.com/menta2k/mapcrop/pkg/coords"
	"github.com/menta2k/mapcrop/pkg/extractor"
	"github.com/menta2k/mapcrop/pkg/types"
)

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	// Background with a darker band so crops are not uniform
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{40, 40, 40, 255})
			} else {
				img.Set(x, y, color.RGBA{200, 190, 170, 255})
			}
		}
	}

	return img
}

const testAnnotations = `[
  {"Inventarnummer": "CAR-S-1", "type": "rectangle", "bounds": [[100, 50], [150, 120]]},
  {"Inventarnummer": "CAR-S-2", "type": "polygon", "latlngs": [[200, 300], [260, 320], [230, 380]]},
  {"Inventarnummer": "CAR-S-3", "type": "polygon", "latlngs": [[1, 2]]}
]`

func newTestMapCrop(t *testing.T) *MapCrop {
	t.Helper()

	opts := extractor.DefaultOptions()
	opts.OutputDir = filepath.Join(t.TempDir(), "extracted")
	opts.Margin = 10

	mc, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return mc
}

func writeInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()

	annPath := filepath.Join(dir, "annotations.json")
	if err := os.WriteFile(annPath, []byte(testAnnotations), 0644); err != nil {
		t.Fatal(err)
	}

	mc := newTestMapCrop(t)
	imgPath := filepath.Join(dir, "map.png")
	if err := mc.processor.SaveImage(createTestImage(400, 500), imgPath, "png", 0, false); err != nil {
		t.Fatal(err)
	}
	return imgPath, annPath
}

func TestNew(t *testing.T) {
	mc := newTestMapCrop(t)
	if mc.processor == nil {
		t.Error("processor component is nil")
	}
	if mc.extractor == nil {
		t.Error("extractor component is nil")
	}
	if mc.idField != "Inventarnummer" {
		t.Errorf("Expected default id field, got %s", mc.idField)
	}
}

func TestNewRejectsInvalidPolicy(t *testing.T) {
	opts := extractor.DefaultOptions()
	opts.Policy.AxisOrder = "diagonal"

	if _, err := New(opts); err == nil {
		t.Error("Expected error for an unknown axis order")
	}
}

func TestExtractFiles(t *testing.T) {
	mc := newTestMapCrop(t)
	imgPath, annPath := writeInputs(t)

	results, summary, err := mc.ExtractFiles(context.Background(), imgPath, annPath)
	if err != nil {
		t.Fatalf("ExtractFiles failed: %v", err)
	}

	if summary.Total != 3 || summary.Extracted != 2 || summary.Skipped != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}

	// auto axis order reads the first component as y when both fit the width
	want := types.BoundingBox{MinX: 40, MinY: 90, MaxX: 130, MaxY: 160}
	if *results[0].Box != want {
		t.Errorf("Expected box %v, got %v", want, *results[0].Box)
	}

	if results[2].Reason != types.ReasonDegenerateShape {
		t.Errorf("Expected degenerate shape, got %s", results[2].Reason)
	}

	for _, r := range results[:2] {
		if _, err := os.Stat(r.OutputPath); err != nil {
			t.Errorf("Expected output file for %s: %v", r.ID, err)
		}
	}
}

func TestExtractFilesMissingInputs(t *testing.T) {
	mc := newTestMapCrop(t)
	imgPath, annPath := writeInputs(t)

	if _, _, err := mc.ExtractFiles(context.Background(), imgPath, annPath+".missing"); err == nil {
		t.Error("Expected error for missing annotations")
	}
	if _, _, err := mc.ExtractFiles(context.Background(), imgPath+".missing", annPath); err == nil {
		t.Error("Expected error for missing image")
	}
}

func TestDebugOverlay(t *testing.T) {
	mc := newTestMapCrop(t)
	img := createTestImage(400, 500)

	results := []types.ExtractionResult{
		{ID: "a", Outcome: types.Extracted, Box: &types.BoundingBox{MinX: 10, MinY: 10, MaxX: 50, MaxY: 50}},
		{ID: "b", Outcome: types.Skipped, Reason: types.ReasonOutOfBounds},
	}

	overlay := mc.DebugOverlay(img, results, 200)
	if overlay.Bounds().Dy() != 200 {
		t.Errorf("Expected overlay height 200, got %d", overlay.Bounds().Dy())
	}

	path := filepath.Join(t.TempDir(), "overlay.jpg")
	if err := mc.SaveImage(overlay, path); err != nil {
		t.Fatalf("SaveImage failed: %v", err)
	}
}

func TestCalibrate(t *testing.T) {
	mc := newTestMapCrop(t)
	_, annPath := writeInputs(t)

	entries, err := mc.LoadAnnotations(annPath)
	if err != nil {
		t.Fatal(err)
	}

	refs := calibration.References{
		"CAR-S-1": {MinX: 50, MinY: 100, MaxX: 120, MaxY: 150},
	}

	candidates, err := mc.Calibrate(entries, refs, 400, 500)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if candidates[0].MeanIoU != 1 {
		t.Errorf("Expected a perfect match, got %f", candidates[0].MeanIoU)
	}
	if candidates[0].Policy.VerticalOrigin != coords.OriginTop {
		t.Errorf("Expected top origin, got %s", candidates[0].Policy.VerticalOrigin)
	}
}

func TestGetVersion(t *testing.T) {
	if GetVersion() != Version {
		t.Errorf("Expected version %s, got %s", Version, GetVersion())
	}
}
