package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/menta2k/mapcrop"
	"github.com/menta2k/mapcrop/internal/config"
	"github.com/menta2k/mapcrop/internal/logging"
	"github.com/menta2k/mapcrop/internal/metrics"
	"github.com/menta2k/mapcrop/pkg/extractor"
	"github.com/menta2k/mapcrop/pkg/processing"
)

type extractFlags struct {
	image       string
	annotations string
	outDir      string
	margin      int
	axis        string
	origin      string
	unit        string
	mirror      bool
	workers     int
	format      string
	quality     int
	lossless    bool
	debug       bool
	summary     string
	metricsFile string
}

func newExtractCmd() *cobra.Command {
	var f extractFlags

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Crop every annotation out of the map image",
		Long: `Resolves every annotation with the configured coordinate policy, adds the
margin, crops the region and saves it as <identifier>.<format>. Shapes that
cannot be extracted are reported in the summary; they never abort the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.image, "image", "i", "", "Map image (jpg, png, webp, tiff)")
	flags.StringVarP(&f.annotations, "annotations", "a", "", "Annotation export (JSON array)")
	flags.StringVarP(&f.outDir, "out", "o", "", "Output directory")
	flags.IntVar(&f.margin, "margin", 0, "Padding in pixels around every region")
	flags.StringVar(&f.axis, "axis", "", "Axis order: yx, xy or auto")
	flags.StringVar(&f.origin, "origin", "", "Vertical origin: top or bottom")
	flags.StringVar(&f.unit, "unit", "", "Coordinate unit: pixel, degrees or webMercatorMeters")
	flags.BoolVar(&f.mirror, "mirror", false, "Mirror x (x = width - x)")
	flags.IntVar(&f.workers, "workers", 0, "Number of parallel crop workers")
	flags.StringVar(&f.format, "format", "", "Output format: jpg, png or webp")
	flags.IntVar(&f.quality, "quality", 0, "JPEG/WebP quality (1-100)")
	flags.BoolVar(&f.lossless, "lossless", false, "WebP lossless mode")
	flags.BoolVar(&f.debug, "debug", false, "Write a downscaled overlay of all extracted regions")
	flags.StringVar(&f.summary, "summary", "", "Write the run summary as JSON to this file (- for stdout)")
	flags.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("annotations")

	return cmd
}

// applyExtractFlags copies explicitly set flags over the configuration
func applyExtractFlags(cmd *cobra.Command, f extractFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("out") {
		cfg.Output.Dir = f.outDir
	}
	if changed("margin") {
		cfg.Extraction.Margin = f.margin
	}
	if changed("axis") {
		cfg.Resolution.AxisOrder = f.axis
	}
	if changed("origin") {
		cfg.Resolution.VerticalOrigin = f.origin
	}
	if changed("unit") {
		cfg.Resolution.Unit = f.unit
	}
	if changed("mirror") {
		cfg.Resolution.MirrorX = f.mirror
	}
	if changed("workers") {
		cfg.Extraction.Workers = f.workers
	}
	if changed("format") {
		cfg.Output.Format = f.format
	}
	if changed("quality") {
		cfg.Output.Quality = f.quality
	}
	if changed("lossless") {
		cfg.Output.Lossless = f.lossless
	}
}

func extractorOptions(cfg *config.Config) (extractor.Options, error) {
	policy, err := cfg.Policy()
	if err != nil {
		return extractor.Options{}, err
	}
	return extractor.Options{
		Policy:    policy,
		Margin:    cfg.Extraction.Margin,
		OutputDir: cfg.Output.Dir,
		Format:    cfg.Output.Format,
		Quality:   cfg.Output.Quality,
		Lossless:  cfg.Output.Lossless,
		Workers:   cfg.Extraction.Workers,
	}, nil
}

func runExtract(cmd *cobra.Command, f extractFlags) error {
	ctx, cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	logger := logging.GetLoggerFromContext(ctx)

	applyExtractFlags(cmd, f, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	opts, err := extractorOptions(cfg)
	if err != nil {
		return err
	}

	mc, err := mapcrop.NewWithIDField(opts, cfg.Resolution.IDField)
	if err != nil {
		return err
	}

	entries, err := mc.LoadAnnotations(f.annotations)
	if err != nil {
		return err
	}

	img, err := mc.LoadImage(f.image)
	if err != nil {
		return err
	}

	results, summary := mc.Extract(ctx, img, entries)

	if f.debug {
		overlay := mc.DebugOverlay(img, results, cfg.Output.DebugMaxSide)
		path := filepath.Join(opts.OutputDir, "_overlay"+processing.FormatExtension(opts.Format))
		if err := mc.SaveImage(overlay, path); err != nil {
			logger.Error().Err(err).Str("path", path).Msg("failed to write debug overlay")
		} else {
			logger.Info().Str("path", path).Msg("wrote debug overlay")
		}
	}

	if f.summary != "" {
		if err := writeOutput(cmd.OutOrStdout(), f.summary, summary.WriteJSON); err != nil {
			return err
		}
	}

	if f.metricsFile != "" {
		if err := metrics.WriteTextfile(f.metricsFile); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("extraction interrupted: %w", err)
	}
	return nil
}

// writeOutput writes to stdout for "-" and to a file otherwise
func writeOutput(stdout io.Writer, path string, write func(io.Writer) error) error {
	if path == "-" {
		return write(stdout)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}
