package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIngestCmd(root *rootOptions) *cobra.Command {
	var (
		userID      string
		maxEpisodes int
	)

	cmd := &cobra.Command{
		Use:   "ingest <feed-url>",
		Short: "Transcribe and index the episodes of a podcast feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			svc, err := a.ingester(true)
			if err != nil {
				return err
			}
			report, err := svc.IngestFeed(ctx, userID, args[0], maxEpisodes)
			if report != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Episodes: %d indexed, %d skipped, %d failed (%d chunks)\n",
					report.Indexed, report.Skipped, report.Failed, report.Chunks)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user that will own the podcasts")
	cmd.Flags().IntVar(&maxEpisodes, "max", 10, "maximum episodes to ingest (<=0 means all)")
	return cmd
}

func newBackfillCmd(root *rootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Restore archived transcripts and re-index them",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if a.archive == nil {
				return fmt.Errorf("backfill needs mongo.uri to be configured")
			}
			svc, err := a.ingester(false)
			if err != nil {
				return err
			}
			report, err := svc.Backfill(ctx, userID)
			if report != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Podcasts: %d indexed, %d failed (%d chunks)\n",
					report.Indexed, report.Failed, report.Chunks)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user whose archive is restored")
	return cmd
}
