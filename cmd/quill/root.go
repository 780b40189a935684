package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/briangreenhill/quill/internal/blog"
	"github.com/briangreenhill/quill/internal/blogapi"
	"github.com/briangreenhill/quill/internal/blogs"
	"github.com/briangreenhill/quill/internal/config"
	"github.com/briangreenhill/quill/internal/diskcache"
	"github.com/briangreenhill/quill/internal/logging"
	"github.com/briangreenhill/quill/internal/query"
)

// app is built once per invocation by the root command's pre-run hook.
type app struct {
	out   io.Writer
	log   zerolog.Logger
	cache *query.Cache
	blogs *blogs.Service
}

// execute runs one command line and releases the cache afterwards, whether
// or not the command failed.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{out: stdout}
	defer a.close()

	root := newRootCmd(a, stderr)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app, stderr io.Writer) *cobra.Command {
	var (
		flagBaseURL  string
		flagLogLevel string
	)

	root := &cobra.Command{
		Use:           "quill",
		Short:         "Read and publish blog posts",
		Long:          "quill lists, shows and creates blog posts against the blog REST API, reading through a stale-while-revalidate cache.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if flagBaseURL != "" {
				cfg.API.BaseURL = flagBaseURL
			}
			if flagLogLevel != "" {
				cfg.Log.Level = flagLogLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return a.init(cfg, stderr)
		},
	}
	root.SetOut(a.out)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&flagBaseURL, "base-url", "", "blog API base URL (overrides BLOG_API_BASE_URL)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")

	root.AddCommand(newListCmd(a), newShowCmd(a), newCreateCmd(a))
	return root
}

func (a *app) init(cfg config.Config, logOut io.Writer) error {
	logger, err := logging.New(cfg.Log, logOut)
	if err != nil {
		return err
	}
	a.log = logger

	opts := []blogapi.Option{
		blogapi.WithBaseURL(cfg.API.BaseURL),
		blogapi.WithLogger(logger.With().Str("component", "blogapi").Logger()),
		blogapi.WithTimeout(cfg.API.Timeout),
	}
	if cfg.API.Token != "" {
		opts = append(opts, blogapi.WithToken(cfg.API.Token))
	}
	if cfg.API.HTTPCache {
		store, err := diskcache.New(cfg.API.HTTPCacheDir, logger.With().Str("component", "diskcache").Logger())
		if err != nil {
			return fmt.Errorf("http cache: %w", err)
		}
		opts = append(opts, blogapi.WithHTTPCacheStore(store))
	}
	api, err := blogapi.New(opts...)
	if err != nil {
		return fmt.Errorf("blog api client: %w", err)
	}

	a.cache = query.New(
		query.WithStaleAfter(cfg.Query.StaleAfter),
		query.WithGCAfter(cfg.Query.GCAfter),
		query.WithRetry(cfg.Query.Retry),
		query.WithRetryDelay(cfg.Query.RetryDelay),
		query.WithRetryIf(blogapi.IsRetryable),
		query.WithLogger(logger.With().Str("component", "query").Logger()),
	)
	a.blogs = blogs.New(a.cache, api)
	return nil
}

func (a *app) close() {
	if a.cache != nil {
		a.cache.Close()
	}
}

// describe turns client errors into messages for the terminal.
func describe(err error) error {
	var (
		verr *blog.ValidationError
		nerr *blogapi.NetworkError
	)
	switch {
	case err == nil:
		return nil
	case errors.As(err, &verr):
		return verr
	case blogapi.IsNotFound(err):
		return errors.New("blog not found")
	case errors.As(err, &nerr):
		return fmt.Errorf("cannot reach the blog API: %w", nerr.Err)
	default:
		return err
	}
}
