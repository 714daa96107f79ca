package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd(root *rootOptions) *cobra.Command {
	var userID, podcastID string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild the chunk index of one podcast from its stored transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			if err := requireFlag("podcast", podcastID); err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := openApp(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			idx, err := a.indexer()
			if err != nil {
				return err
			}
			n, err := idx.Process(ctx, userID, podcastID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d chunks for podcast %s\n", n, podcastID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "owning user id")
	cmd.Flags().StringVarP(&podcastID, "podcast", "p", "", "podcast id")
	return cmd
}
