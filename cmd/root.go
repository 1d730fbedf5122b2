package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/classifier/internal/config"
	"github.com/lehigh-university-libraries/classifier/internal/logging"
)

// rootOptions carries the global flags and the loaded configuration to subcommands
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg *config.Config
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "classifier",
		Short: "Interactive species classification of imaged specimens",
		Long: `Classifier walks a directory of object images and records a species,
a confidence and optionally a proloculous for each one in a per-rater CSV file.

Files are saved after every object, so a session can be stopped at any time and
resumed later. Several raters can classify the same sample; the "combined" rater
starts from the objects all of them agree on.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return opts.init(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", fmt.Sprintf("Config file (default ./%s if present)", config.DefaultFile))
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: text, json")

	// Add subcommands
	cmd.AddCommand(newClassifyCmd(opts))
	cmd.AddCommand(newConsensusCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newExportCmd())

	return cmd
}

func (o *rootOptions) init(cmd *cobra.Command) error {
	cfg, exists, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(o.logLevel))
	}
	if cmd.Flags().Changed("log-format") {
		cfg.LogFormat = strings.ToLower(strings.TrimSpace(o.logFormat))
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(os.Stderr, logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if exists {
		path := o.configPath
		if path == "" {
			path = config.DefaultFile
		}
		slog.Debug("Loaded config", "path", path, "completion", cfg.Completion, "viewer", cfg.Viewer)
	}

	o.cfg = cfg
	return nil
}
