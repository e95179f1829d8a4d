package cropper

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/mapcrop/pkg/types"
)

// DefaultMargin is the padding in pixels added around every box
const DefaultMargin = 50

var (
	// ErrOutOfBounds means the box does not intersect the image at all
	ErrOutOfBounds = errors.New("out of bounds")
	// ErrDegenerate means the box has no area after clipping and padding
	ErrDegenerate = errors.New("degenerate box")
)

// Cropper clips, pads and cuts bounding boxes out of an image
type Cropper struct {
	config CropConfig
}

// CropConfig holds configuration for cropping
type CropConfig struct {
	// Margin is added on all four sides after clipping to the image
	Margin int
}

// New creates a new Cropper with the default margin
func New() *Cropper {
	return &Cropper{
		config: CropConfig{
			Margin: DefaultMargin,
		},
	}
}

// NewWithConfig creates a new Cropper with custom configuration
func NewWithConfig(config CropConfig) *Cropper {
	return &Cropper{config: config}
}

// Margin returns the configured margin
func (c *Cropper) Margin() int {
	return c.config.Margin
}

// Normalize fits box to a width x height image using the configured margin
func (c *Cropper) Normalize(box types.BoundingBox, width, height int) (types.BoundingBox, error) {
	return Normalize(box, width, height, c.config.Margin)
}

// Extract normalizes box against the image and crops it. The returned box is
// the region actually cut.
func (c *Cropper) Extract(img image.Image, box types.BoundingBox) (*image.NRGBA, types.BoundingBox, error) {
	bounds := img.Bounds()
	norm, err := c.Normalize(box, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, types.BoundingBox{}, err
	}

	cropped, err := Crop(img, norm)
	if err != nil {
		return nil, types.BoundingBox{}, err
	}
	return cropped, norm, nil
}

// Normalize turns a raw pixel box into a crop region of a width x height image.
//
// The steps run in this order:
//  1. reject a box lying entirely outside the image (ErrOutOfBounds)
//  2. clip minX/minY into [0, dim-1] and maxX/maxY into [0, dim]
//  3. expand by margin (min floored, max rounded up) and re-clip
//  4. reject an empty result (ErrDegenerate)
//
// Clipping happens before padding so the margin never reaches past an image
// edge that the box already touched. On success the result satisfies
// 0 <= MinX < MaxX <= width and 0 <= MinY < MaxY <= height, with integer values.
func Normalize(box types.BoundingBox, width, height, margin int) (types.BoundingBox, error) {
	if !box.IsValid() {
		return types.BoundingBox{}, fmt.Errorf("%w: invalid box %s", ErrDegenerate, box)
	}

	w, h := float64(width), float64(height)

	if box.MinX >= w || box.MinY >= h || box.MaxX <= 0 || box.MaxY <= 0 {
		return types.BoundingBox{}, fmt.Errorf("%w: box %s outside %dx%d image", ErrOutOfBounds, box, width, height)
	}

	minX := clamp(box.MinX, 0, w-1)
	minY := clamp(box.MinY, 0, h-1)
	maxX := clamp(box.MaxX, 0, w)
	maxY := clamp(box.MaxY, 0, h)

	m := float64(margin)
	out := types.BoundingBox{
		MinX: math.Max(0, math.Floor(minX-m)),
		MinY: math.Max(0, math.Floor(minY-m)),
		MaxX: math.Min(w, math.Ceil(maxX+m)),
		MaxY: math.Min(h, math.Ceil(maxY+m)),
	}

	if out.MinX >= out.MaxX || out.MinY >= out.MaxY {
		return types.BoundingBox{}, fmt.Errorf("%w: %s after clipping and margin", ErrDegenerate, out)
	}
	return out, nil
}

// Crop copies the region of box (relative to the image origin) into a new image
func Crop(img image.Image, box types.BoundingBox) (*image.NRGBA, error) {
	bounds := img.Bounds()
	rect := box.Rect().Add(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return nil, fmt.Errorf("empty crop rectangle %v", rect)
	}
	return imaging.Crop(img, rect), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
