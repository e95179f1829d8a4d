// Package extractor runs the batch pipeline: resolve every annotation to a
// pixel box, clip and pad it, then crop and save the region.
//
// A problem with one shape never aborts the batch. Every input entry yields
// exactly one ExtractionResult, and Run itself has no error return.
package extractor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/mapcrop/internal/logging"
	"github.com/menta2k/mapcrop/internal/metrics"
	"github.com/menta2k/mapcrop/internal/utils"
	"github.com/menta2k/mapcrop/pkg/annotations"
	"github.com/menta2k/mapcrop/pkg/coords"
	"github.com/menta2k/mapcrop/pkg/cropper"
	"github.com/menta2k/mapcrop/pkg/processing"
	"github.com/menta2k/mapcrop/pkg/shapes"
	"github.com/menta2k/mapcrop/pkg/types"
)

// IOError reports a failure to create the output directory or write a crop
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Options controls an extraction run
type Options struct {
	Policy    coords.Policy
	Margin    int
	OutputDir string
	Format    string
	Quality   int
	Lossless  bool
	Workers   int
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		Policy:    coords.DefaultPolicy(),
		Margin:    cropper.DefaultMargin,
		OutputDir: "./extracted",
		Format:    "jpg",
		Quality:   processing.DefaultQuality,
		Workers:   1,
	}
}

// Extractor crops annotated regions out of a map image
type Extractor struct {
	opts      Options
	cropper   *cropper.Cropper
	processor *processing.Processor
}

// New validates opts and fills in unset output settings
func New(opts Options) (*Extractor, error) {
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid coordinate policy: %w", err)
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "./extracted"
	}
	if opts.Format == "" {
		opts.Format = "jpg"
	}
	if opts.Quality <= 0 {
		opts.Quality = processing.DefaultQuality
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}

	return &Extractor{
		opts:      opts,
		cropper:   cropper.NewWithConfig(cropper.CropConfig{Margin: opts.Margin}),
		processor: processing.NewProcessor(),
	}, nil
}

// Options returns the effective options
func (e *Extractor) Options() Options {
	return e.opts
}

type job struct {
	index int
	box   types.BoundingBox
	path  string
}

// Run processes entries against img and returns one result per entry, in
// input order, together with the run summary.
func (e *Extractor) Run(ctx context.Context, img image.Image, entries []annotations.Entry) ([]types.ExtractionResult, types.Summary) {
	logger := logging.GetLoggerFromContext(ctx)
	runID := uuid.NewString()
	logger = logger.With().Str("run_id", runID).Logger()

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	ext := processing.FormatExtension(e.opts.Format)

	logger.Info().
		Int("shapes", len(entries)).
		Int("width", width).
		Int("height", height).
		Str("policy", e.opts.Policy.String()).
		Int("margin", e.opts.Margin).
		Msg("starting extraction")

	results := make([]types.ExtractionResult, len(entries))
	jobs := make([]job, 0, len(entries))

	for i, entry := range entries {
		results[i] = types.ExtractionResult{ID: entry.ID}

		if err := ctx.Err(); err != nil {
			results[i] = cancelled(entry.ID)
			continue
		}

		box, lowConfidence, err := e.locate(entry, width, height)
		results[i].LowConfidence = lowConfidence
		if lowConfidence {
			logger.Warn().Str("id", entry.ID).Msg("coordinate reading outside plausibility window")
		}
		if err != nil {
			results[i].Outcome, results[i].Reason = classify(err)
			results[i].Detail = err.Error()
			if box.IsValid() && results[i].Reason == types.ReasonOutOfBounds {
				b := box
				results[i].Box = &b
			}
			continue
		}

		results[i].Box = &box
		jobs = append(jobs, job{
			index: i,
			box:   box,
			path:  utils.OutputPath(e.opts.OutputDir, entry.ID, ext, fmt.Sprintf("shape_%d", i+1)),
		})
	}

	if len(jobs) > 0 {
		if err := utils.EnsureDir(e.opts.OutputDir); err != nil {
			ioErr := &IOError{Op: "create", Path: e.opts.OutputDir, Err: err}
			for _, j := range jobs {
				results[j.index].Outcome = types.Failed
				results[j.index].Reason = types.ReasonIOFailure
				results[j.index].Detail = ioErr.Error()
			}
			jobs = nil
		}
	}

	e.crop(ctx, img, jobs, results)

	summary := types.Summary{RunID: runID}
	for _, r := range results {
		summary.Add(r)
		metrics.RecordShape(string(r.Outcome), string(r.Reason), r.LowConfidence)
		logResult(logger, r)
	}

	logger.Info().
		Int("total", summary.Total).
		Int("extracted", summary.Extracted).
		Int("skipped", summary.Skipped).
		Int("failed", summary.Failed).
		Msg("extraction finished")

	return results, summary
}

// locate resolves the entry to a normalized crop box
func (e *Extractor) locate(entry annotations.Entry, width, height int) (types.BoundingBox, bool, error) {
	shape, err := entry.Shape()
	if err != nil {
		return types.BoundingBox{}, false, err
	}

	lowConfidence := false
	resolve := coords.Resolver(width, height, e.opts.Policy)
	tracked := func(p types.Point2D) (coords.Resolution, error) {
		res, err := resolve(p)
		if res.LowConfidence {
			lowConfidence = true
		}
		return res, err
	}

	raw, err := shapes.BoundingBox(shape, tracked)
	if err != nil {
		return types.BoundingBox{}, lowConfidence, err
	}

	box, err := e.cropper.Normalize(raw, width, height)
	if err != nil {
		return raw, lowConfidence, err
	}
	return box, lowConfidence, nil
}

// crop writes the planned jobs on a bounded pool. Jobs sharing an output path
// run on one goroutine in input order, so the last duplicate wins.
func (e *Extractor) crop(ctx context.Context, img image.Image, jobs []job, results []types.ExtractionResult) {
	groups := lo.GroupBy(jobs, func(j job) string { return j.path })
	paths := lo.Uniq(lo.Map(jobs, func(j job, _ int) string { return j.path }))

	var g errgroup.Group
	g.SetLimit(e.opts.Workers)

	for _, path := range paths {
		group := groups[path]
		g.Go(func() error {
			for _, j := range group {
				if ctx.Err() != nil {
					results[j.index] = cancelled(results[j.index].ID)
					continue
				}
				e.cropOne(img, j, &results[j.index])
			}
			return nil
		})
	}

	_ = g.Wait()
}

func (e *Extractor) cropOne(img image.Image, j job, r *types.ExtractionResult) {
	start := time.Now()
	defer metrics.ObserveCrop(start)

	cropped, err := cropper.Crop(img, j.box)
	if err != nil {
		r.Outcome, r.Reason = types.Skipped, types.ReasonDegenerateShape
		r.Detail = err.Error()
		return
	}

	if err := e.processor.SaveImage(cropped, j.path, e.opts.Format, e.opts.Quality, e.opts.Lossless); err != nil {
		ioErr := &IOError{Op: "write", Path: j.path, Err: err}
		r.Outcome, r.Reason = classify(ioErr)
		r.Detail = ioErr.Error()
		return
	}

	r.Outcome = types.Extracted
	r.OutputPath = j.path
	r.Width = cropped.Bounds().Dx()
	r.Height = cropped.Bounds().Dy()
}

func cancelled(id string) types.ExtractionResult {
	return types.ExtractionResult{
		ID:      id,
		Outcome: types.Failed,
		Reason:  types.ReasonCancelled,
		Detail:  context.Canceled.Error(),
	}
}

// classify maps a per-shape error to its outcome and reason code
func classify(err error) (types.Outcome, types.Reason) {
	var ioErr *IOError
	switch {
	case errors.As(err, &ioErr):
		return types.Failed, types.ReasonIOFailure
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return types.Failed, types.ReasonCancelled
	case errors.Is(err, coords.ErrInvalidCoordinate):
		return types.Skipped, types.ReasonInvalidCoordinate
	case errors.Is(err, shapes.ErrUnsupportedShape):
		return types.Skipped, types.ReasonUnsupportedShape
	case errors.Is(err, shapes.ErrDegenerateShape), errors.Is(err, cropper.ErrDegenerate):
		return types.Skipped, types.ReasonDegenerateShape
	case errors.Is(err, cropper.ErrOutOfBounds):
		return types.Skipped, types.ReasonOutOfBounds
	}
	return types.Skipped, types.ReasonInvalidCoordinate
}

func logResult(logger zerolog.Logger, r types.ExtractionResult) {
	switch r.Outcome {
	case types.Extracted:
		logger.Debug().
			Str("id", r.ID).
			Str("path", r.OutputPath).
			Int("width", r.Width).
			Int("height", r.Height).
			Msg("extracted")
	case types.Skipped:
		ev := logger.Warn().Str("id", r.ID).Str("reason", string(r.Reason))
		if r.Box != nil {
			ev = ev.Str("box", r.Box.String())
		}
		ev.Msg(r.Detail)
	default:
		logger.Error().Str("id", r.ID).Str("reason", string(r.Reason)).Msg(r.Detail)
	}
}
