package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/briangreenhill/quill/internal/blogs"
	"github.com/briangreenhill/quill/internal/query"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all blog posts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := a.blogs.List(nil)
			defer q.Close()

			st, err := q.Wait(cmd.Context())
			if err != nil {
				return err
			}
			if st.Status == query.StatusError && !st.HasData {
				return fmt.Errorf("failed to load blogs: %w", describe(st.Err))
			}

			posts := blogs.Posts(st)
			if len(posts) == 0 {
				fmt.Fprintln(a.out, "no blogs yet")
				return nil
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tTITLE")
			for _, p := range posts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, shortDate(p), p.PrimaryCategory(), p.Title)
			}
			return tw.Flush()
		},
	}
}
