package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/classifier/internal/display"
	"github.com/lehigh-university-libraries/classifier/internal/prompt"
	"github.com/lehigh-university-libraries/classifier/internal/session"
	"github.com/lehigh-university-libraries/classifier/internal/species"
)

func newClassifyCmd(root *rootOptions) *cobra.Command {
	var proloculous bool
	var filter bool
	var viewer string
	var completion string

	cmd := &cobra.Command{
		Use:   "classify <image-dir> <initials> [species-file]",
		Short: "Classify the objects of a sample interactively",
		Long: `Classify walks the object images of a directory in filename order and asks for
a species and a confidence (1=low, 2=med, 3=high) for each object that has no
record yet. Records are written to <sample>_species_<initials>.csv next to the
images after every object.

Press tab to complete known species names. Type "quit" at a species or filter prompt, or
press Ctrl+C, to stop; answer "c" at a later prompt to change the species.

With the initials "combined" the file is first seeded with every object all other
raters agree on, at confidence 3.`,
		Example: `  # Start or resume a session
  classifier classify ./S1 ab species.txt

  # Add the proloculous to objects already classified
  classifier classify ./S1 ab --proloculous

  # Revisit only some species, showing each image in a viewer
  classifier classify ./S1 ab -p --filter --viewer "feh-stdin"

  # Build the consensus file
  classifier classify ./S1 combined`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := root.cfg
			out := cmd.OutOrStdout()

			speciesFile := cfg.SpeciesFile
			if len(args) == 3 {
				speciesFile = args[2]
			}
			if speciesFile != "" {
				if _, err := os.Stat(speciesFile); err != nil {
					return fmt.Errorf("species file not found: %s", speciesFile)
				}
			}

			mode := cfg.MatchMode()
			if cmd.Flags().Changed("completion") {
				m, err := species.ParseMatchMode(completion)
				if err != nil {
					return err
				}
				mode = m
			}

			viewerCommand := cfg.ViewerCommand()
			if cmd.Flags().Changed("viewer") {
				viewerCommand = strings.Fields(viewer)
			}

			var sink display.Sink = display.Nop{}
			if len(viewerCommand) > 0 {
				v, err := display.StartViewer(cmd.Context(), viewerCommand)
				if err != nil {
					return err
				}
				defer v.Close()
				sink = v
			}

			fmt.Fprintln(out, "Welcome to the species classifier!")
			fmt.Fprintln(out, "Press tab to autocomplete species names; type quit or press Ctrl+C to stop.")
			fmt.Fprintln(out, "The file is saved every time a new object is entered.")
			fmt.Fprintln(out)

			prompter := newPrompter(cmd.InOrStdin(), out)
			if c, ok := prompter.(io.Closer); ok {
				defer c.Close()
			}

			s, err := session.Open(session.Options{
				Dir:         args[0],
				Initials:    args[1],
				SpeciesFile: speciesFile,
				Proloculous: proloculous,
				Filter:      filter,
				Completion:  mode,
				Prompter:    prompter,
				Display:     sink,
				Out:         out,
			})
			if err != nil {
				return err
			}

			summary, err := s.Run(cmd.Context())
			printFarewell(out, summary, err)
			return err
		},
	}

	cmd.Flags().BoolVarP(&proloculous, "proloculous", "p", false, "Also record the proloculous (mega, micro, unk)")
	cmd.Flags().BoolVarP(&filter, "filter", "f", false, "Only revisit recorded objects of species chosen at startup")
	cmd.Flags().StringVar(&viewer, "viewer", "", "Command that displays each image path read from its stdin")
	cmd.Flags().StringVar(&completion, "completion", "prefix", "Species completion: prefix or substring")

	return cmd
}

// printFarewell reports what was saved. A failed session never claims the file
// holds the answers still in memory.
func printFarewell(out io.Writer, summary session.Summary, err error) {
	fmt.Fprintln(out)
	switch {
	case err != nil:
		fmt.Fprintf(out, "Session aborted; '%s' holds only the answers saved before the error.\n", summary.Path)
	case summary.Stored == 0:
		fmt.Fprintln(out, "No objects recorded, file not written. Goodbye!")
	default:
		fmt.Fprintf(out, "%d objects stored in '%s'. Goodbye!\n", summary.Stored, summary.Path)
	}
}

// newPrompter picks the terminal prompter for an interactive stdin
func newPrompter(in io.Reader, out io.Writer) prompt.Prompter {
	if f, ok := in.(*os.File); ok {
		return prompt.New(f, out)
	}
	return prompt.NewLine(in, out)
}
