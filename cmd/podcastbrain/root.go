package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podcast-brain/pkg/config"
	"podcast-brain/pkg/logging"
)

// skipConfigAnnotation marks commands that run without a loaded config.
const skipConfigAnnotation = "skip-config"

type rootOptions struct {
	configPath string
	verbose    bool
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "podcastbrain",
		Short:         "Index podcast transcripts and search them by meaning",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				logging.SetVerbose(opts.verbose)
				return nil
			}

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if err := logging.Init(cfg.Log.File); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logging.SetVerbose(opts.verbose || cfg.Log.Verbose)
			opts.cfg = cfg
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logging.Close()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default ./"+config.DefaultFileName+")")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newIndexCmd(opts),
		newSearchCmd(opts),
		newIngestCmd(opts),
		newBackfillCmd(opts),
		newStatusCmd(opts),
		newMigrateCmd(opts),
		newConfigCmd(opts),
	)
	return cmd
}

func requireFlag(name, value string) error {
	if value == "" {
		return fmt.Errorf("--%s is required", name)
	}
	return nil
}
