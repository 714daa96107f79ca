package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newStatusCmd(root *rootOptions) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "List a user's podcasts with their processing status and chunk counts",
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

			podcasts, err := a.store.ListPodcasts(ctx, userID)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tCHUNKS\tTITLE")
			for _, p := range podcasts {
				n, err := a.store.CountChunks(ctx, p.ID)
				if err != nil {
					return err
				}
				status := string(p.Status)
				if p.ErrorMessage != "" {
					status += ": " + preview(p.ErrorMessage, 60)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", p.ID, status, n, p.Title)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "owning user id")
	return cmd
}

func newMigrateCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the podcast tables, vector index and match function",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer a.close()

			if a.schema == nil {
				return fmt.Errorf("migrate needs a direct database connection (postgres backend, or supabase with a password)")
			}
			if err := a.schema.EnsureSchema(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Schema is up to date.")
			return nil
		},
	}
}
