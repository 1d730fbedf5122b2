package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/classifier/internal/consensus"
	"github.com/lehigh-university-libraries/classifier/internal/objects"
	"github.com/lehigh-university-libraries/classifier/internal/records"
	"github.com/lehigh-university-libraries/classifier/internal/report"
)

func newConsensusCmd() *cobra.Command {
	var showAgreed bool

	cmd := &cobra.Command{
		Use:   "consensus <image-dir>",
		Short: "Preview the objects every rater agrees on",
		Long: `Consensus compares the species of every rater file of a sample (except the
combined file) and lists the objects all raters recorded with the same species,
and those they recorded with different species. Nothing is written; run
"classify <image-dir> combined" to seed the combined file.`,
		Example: `  classifier consensus ./S1
  classifier consensus ./S1 --agreed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			set, err := objects.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := set.CheckSample(); err != nil {
				return err
			}

			result, err := consensus.Build(set, records.CombinedInitials, nil)
			if err != nil {
				return err
			}
			if len(result.Siblings) == 0 {
				fmt.Fprintln(out, "No rater files found.")
				return nil
			}

			fmt.Fprintf(out, "Sample %s: %d rater files, %d objects agreed, %d disagreements\n",
				set.Sample, len(result.Siblings), len(result.Seeds), len(result.Disagreements))

			initials := make([]string, 0, len(result.Siblings))
			for _, s := range result.Siblings {
				initials = append(initials, s.Initials)
			}
			sort.Strings(initials)

			if showAgreed && len(result.Seeds) > 0 {
				rows := make([][]string, 0, len(result.Seeds))
				for _, seed := range result.Seeds {
					rows = append(rows, []string{objects.FormatNumber(seed.ID.Number), seed.Record.Species})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, report.RenderTable([]string{"Obj. #", "Species"}, rows))
			}

			if len(result.Disagreements) > 0 {
				headers := append([]string{"Obj. #"}, initials...)
				rows := make([][]string, 0, len(result.Disagreements))
				for _, d := range result.Disagreements {
					row := []string{objects.FormatNumber(d.ID.Number)}
					for _, i := range initials {
						row = append(row, d.Species[i])
					}
					rows = append(rows, row)
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, report.RenderTable(headers, rows))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showAgreed, "agreed", false, "Also list the agreed objects")

	return cmd
}
