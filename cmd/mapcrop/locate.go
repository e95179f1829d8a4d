package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/menta2k/mapcrop/internal/logging"
	"github.com/menta2k/mapcrop/pkg/records"
)

func newLocateCmd() *cobra.Command {
	var recordsPath, sheet, outPath string

	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Resolve WGS84 positions for a table of records",
		Long: `Reads an xlsx or csv table and adds lat/lng to every row from its lat/lng,
y_webmercator/x_webmercator or "lat (Web Mercator)"/"lon (Web Mercator)"
columns. Values in meters are converted from Web Mercator; the plausibility
window from the config decides ambiguous readings. Output is JSON with a
"meta" header and an "items" array.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, err := setup(cmd)
			if err != nil {
				return err
			}
			logger := logging.GetLoggerFromContext(ctx)

			table, err := records.Load(recordsPath, sheet)
			if err != nil {
				return err
			}

			doc := records.Convert(table, filepath.Base(recordsPath), cfg.Plausibility.Bound())
			logger.Info().
				Int("items", doc.Meta.TotalCount).
				Int("located", doc.Meta.Located).
				Msg("records converted")

			return writeOutput(cmd.OutOrStdout(), outPath, doc.WriteJSON)
		},
	}

	cmd.Flags().StringVarP(&recordsPath, "records", "r", "", "Records table (.xlsx or .csv)")
	cmd.Flags().StringVar(&sheet, "sheet", "", "Worksheet name (default: first sheet)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "Output JSON file (- for stdout)")
	_ = cmd.MarkFlagRequired("records")

	return cmd
}
