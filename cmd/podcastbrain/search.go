package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"podcast-brain/pkg/search"
)

func newSearchCmd(root *rootOptions) *cobra.Command {
	var (
		userID, podcastID string
		limit             int
		threshold         float64
		chat              bool
		contextChars      int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the transcript passages closest in meaning to a query",
		Args:  cobra.MinimumNArgs(1),
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

			svc, err := a.searcher()
			if err != nil {
				return err
			}

			opts := search.Options{PodcastID: podcastID, Limit: root.cfg.Search.Limit}
			if cmd.Flags().Changed("limit") {
				opts.Limit = limit
			}
			t := root.cfg.Search.Threshold
			switch {
			case cmd.Flags().Changed("threshold"):
				t = threshold
			case chat:
				t = search.ChatThreshold
			}
			opts.SimilarityThreshold = &t

			results, err := svc.Search(ctx, strings.Join(args, " "), userID, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if contextChars > 0 {
				fmt.Fprintln(out, search.BuildContext(results, contextChars))
				return nil
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "No matching passages.")
				return nil
			}
			for i, r := range results {
				marker := ""
				if r.Degraded {
					marker = " (unranked)"
				}
				when := ""
				if r.StartTime != nil {
					when = " @ " + search.FormatTimestamp(*r.StartTime)
				}
				fmt.Fprintf(out, "%d. %s%s  similarity %.3f%s\n   %s\n", i+1, r.PodcastTitle, when, r.Similarity, marker, preview(r.Content, 240))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&userID, "user", "u", "", "user whose podcasts are searched")
	cmd.Flags().StringVarP(&podcastID, "podcast", "p", "", "restrict to one podcast")
	cmd.Flags().IntVarP(&limit, "limit", "n", search.DefaultLimit, "maximum results")
	cmd.Flags().Float64Var(&threshold, "threshold", search.DefaultThreshold, "minimum similarity (0-1)")
	cmd.Flags().BoolVar(&chat, "chat", false, "use the looser chat-context threshold")
	cmd.Flags().IntVar(&contextChars, "context", 0, "print a prompt context block of at most this many characters")
	return cmd
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
