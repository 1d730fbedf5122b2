package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/classifier/internal/export"
	"github.com/lehigh-university-libraries/classifier/internal/objects"
)

func newExportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <image-dir>",
		Short: "Export every rater file of a sample as one dataset",
		Long: `Export flattens all rater files of a sample into one row per rater and object
(sample, object, image, rater, species, confidence, proloculous). The format
follows the output extension: .parquet or .jsonl.`,
		Example: `  classifier export ./S1 --output s1.parquet
  classifier export ./S1 --output s1.jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return fmt.Errorf("--output is required")
			}

			set, err := objects.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := set.CheckSample(); err != nil {
				return err
			}

			rows, err := export.Collect(set)
			if err != nil {
				return err
			}
			if err := export.Write(output, rows); err != nil {
				return err
			}

			written, err := export.Load(output)
			if err != nil {
				return fmt.Errorf("failed to verify export: %w", err)
			}
			if len(written) != len(rows) {
				return fmt.Errorf("export verification failed: wrote %d rows, read back %d", len(rows), len(written))
			}

			slog.Info("Export complete", "path", output, "rows", len(rows))
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rows to %s\n", len(rows), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (.parquet or .jsonl)")

	return cmd
}
