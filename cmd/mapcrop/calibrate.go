package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menta2k/mapcrop"
	"github.com/menta2k/mapcrop/internal/logging"
	"github.com/menta2k/mapcrop/pkg/calibration"
	"github.com/menta2k/mapcrop/pkg/processing"
)

type calibrateFlags struct {
	image       string
	width       int
	height      int
	annotations string
	reference   string
	top         int
	jsonOut     bool
}

func newCalibrateCmd() *cobra.Command {
	var f calibrateFlags

	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Rank coordinate policies against shapes with known pixel boxes",
		Long: `Resolves the annotations that have a reference box under every combination
of axis order, vertical origin and mirroring, and ranks the combinations by
mean intersection over union. The unit and georeference come from the config.

The reference file is a JSON object: {"<id>": [minX, minY, maxX, maxY], ...}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalibrate(cmd, f)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.image, "image", "i", "", "Map image (only its size is read)")
	flags.IntVar(&f.width, "width", 0, "Image width when no image is given")
	flags.IntVar(&f.height, "height", 0, "Image height when no image is given")
	flags.StringVarP(&f.annotations, "annotations", "a", "", "Annotation export (JSON array)")
	flags.StringVarP(&f.reference, "reference", "r", "", "Known boxes per identifier")
	flags.IntVar(&f.top, "top", 5, "Number of candidates to print (0 = all)")
	flags.BoolVar(&f.jsonOut, "json", false, "Print candidates as JSON")
	_ = cmd.MarkFlagRequired("annotations")
	_ = cmd.MarkFlagRequired("reference")

	return cmd
}

func runCalibrate(cmd *cobra.Command, f calibrateFlags) error {
	ctx, cfg, err := setup(cmd)
	if err != nil {
		return err
	}
	logger := logging.GetLoggerFromContext(ctx)

	width, height := f.width, f.height
	if f.image != "" {
		width, height, err = processing.NewProcessor().ImageSize(f.image)
		if err != nil {
			return err
		}
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("image size unknown: pass --image or --width and --height")
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
	refs, err := calibration.LoadReferences(f.reference)
	if err != nil {
		return err
	}

	candidates, err := mc.Calibrate(entries, refs, width, height)
	if err != nil {
		return err
	}
	logger.Info().
		Int("references", len(refs)).
		Int("matched", candidates[0].Matched).
		Str("best", candidates[0].Label).
		Float64("mean_iou", candidates[0].MeanIoU).
		Msg("calibration finished")

	if f.top > 0 && f.top < len(candidates) {
		candidates = candidates[:f.top]
	}

	out := cmd.OutOrStdout()
	if f.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(candidates)
	}

	for i, c := range candidates {
		fmt.Fprintf(out, "%2d. mean IoU %.3f  %s\n", i+1, c.MeanIoU, c.Label)
	}
	return nil
}
