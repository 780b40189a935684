package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/briangreenhill/quill/internal/blog"
	"github.com/briangreenhill/quill/internal/blogs"
	"github.com/briangreenhill/quill/internal/content"
	"github.com/briangreenhill/quill/internal/query"
)

func newShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one blog post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := a.blogs.Get(blog.ID(strings.TrimSpace(args[0])), nil)
			defer q.Close()

			st, err := q.Wait(cmd.Context())
			if err != nil {
				return err
			}
			if st.Disabled {
				return fmt.Errorf("blog id required")
			}
			if st.Status == query.StatusError && !st.HasData {
				return describe(st.Err)
			}
			p, _ := blogs.Post(st)
			printPost(a.out, p)
			return nil
		},
	}
}

func printPost(w io.Writer, p blog.Post) {
	fmt.Fprintln(w, p.Title)
	fmt.Fprintf(w, "%s · %d min read · %s\n", p.CategoryLabel(), blog.ReadTime(p.Content), longDate(p))
	if p.CoverImage != "" {
		fmt.Fprintf(w, "cover: %s\n", p.CoverImage)
	}
	if p.Description != "" {
		fmt.Fprintf(w, "\n%s\n", p.Description)
	}
	for _, seg := range content.Segment(p.Content) {
		fmt.Fprintln(w)
		switch seg.Kind {
		case content.KindHeading:
			fmt.Fprintf(w, "## %s\n", seg.Text)
		case content.KindQuote:
			fmt.Fprintf(w, "> %s\n", seg.Text)
		default:
			fmt.Fprintln(w, seg.Text)
		}
	}
}

func shortDate(p blog.Post) string {
	t, err := p.Published()
	if err != nil {
		return p.Date
	}
	return t.Format("2006-01-02")
}

func longDate(p blog.Post) string {
	t, err := p.Published()
	if err != nil {
		return p.Date
	}
	return t.Format("Jan 2, 2006")
}
