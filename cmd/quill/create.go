package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/briangreenhill/quill/internal/blog"
	"github.com/briangreenhill/quill/internal/blogs"
)

func newCreateCmd(a *app) *cobra.Command {
	var (
		in          blog.CreatePayload
		contentFile string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a new blog post",
		Example: `  quill create --title "Rates are up" --category FINANCE --category CAREER \
    --description "What it means for you" --content-file post.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if contentFile != "" {
				if in.Content != "" {
					return errors.New("use either --content or --content-file")
				}
				raw, err := os.ReadFile(contentFile)
				if err != nil {
					return fmt.Errorf("read content: %w", err)
				}
				in.Content = string(raw)
			}
			for _, c := range in.Category {
				if !blog.IsKnownCategory(c) {
					a.log.Warn().Str("category", c).Strs("known", blog.Categories).Msg("unknown category")
				}
			}

			// Watching the list first means the invalidation below refetches it.
			list := a.blogs.List(nil)
			defer list.Close()

			created, err := a.blogs.Create().MutateAsync(cmd.Context(), in)
			if err != nil {
				var verr *blog.ValidationError
				if errors.As(err, &verr) {
					return verr
				}
				return fmt.Errorf("failed to create blog, try again: %w", describe(err))
			}
			fmt.Fprintf(a.out, "created blog %s\n", created.ID)

			st, err := list.Wait(cmd.Context())
			if err != nil {
				return err
			}
			if st.Err != nil {
				a.log.Warn().Err(st.Err).Msg("could not refresh blog list")
				return nil
			}
			fmt.Fprintf(a.out, "%d blogs published\n", len(blogs.Posts(st)))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Title, "title", "", "post title")
	f.StringArrayVar(&in.Category, "category", nil, "category, repeatable ("+strings.Join(blog.Categories, ", ")+")")
	f.StringVar(&in.Description, "description", "", "short description")
	f.StringVar(&in.Content, "content", "", "post body; separate paragraphs with a blank line")
	f.StringVar(&contentFile, "content-file", "", "read the post body from a file")
	f.StringVar(&in.CoverImage, "cover-image", "", "cover image URL")
	return cmd
}
