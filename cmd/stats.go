package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/classifier/internal/objects"
	"github.com/lehigh-university-libraries/classifier/internal/report"
)

func newStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats <image-dir>",
		Short: "Report per-rater statistics and agreement",
		Long: `Stats loads every rater file of a sample and reports, per rater, how many
objects were recorded, the confidence and proloculous distributions and the
number of distinct species, followed by the agreement of every pair of raters.`,
		Example: `  classifier stats ./S1
  classifier stats ./S1 --format yaml
  classifier stats ./S1 --format csv > s1-raters.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			set, err := objects.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := set.CheckSample(); err != nil {
				return err
			}

			r, err := report.Build(set)
			if err != nil {
				return err
			}
			return report.Write(cmd.OutOrStdout(), r, format)
		},
	}

	cmd.Flags().StringVar(&format, "format", report.FormatText, "Output format: text, yaml, json, csv")

	return cmd
}
