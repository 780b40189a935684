package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/quill/internal/backend"
	"github.com/briangreenhill/quill/internal/blog"
	"github.com/briangreenhill/quill/internal/blogapi"
)

func startBackend(t *testing.T) *httptest.Server {
	t.Helper()
	for _, k := range []string{"BLOG_API_BASE_URL", "BLOG_API_TOKEN", "BLOG_API_TIMEOUT", "BLOG_API_HTTP_CACHE", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv(k, "")
		_ = os.Unsetenv(k)
	}
	t.Setenv("BLOG_QUERY_RETRY_DELAY", "0s")

	store := backend.NewMemoryStore(
		blog.Post{ID: "1", Title: "Saving early", Category: []string{"FINANCE"}, Description: "Start now", Date: "2024-01-02T00:00:00Z",
			Content: "WHY IT MATTERS\n\nCompound interest is patient.\n\n\"Time in the market beats timing the market.\""},
		blog.Post{ID: "2", Title: "Go at work", Category: []string{"TECH", "CAREER"}, Description: "d", Date: "2024-01-03T00:00:00Z", Content: "x"},
	)
	srv := httptest.NewServer(backend.New(backend.ServerOptions{
		Store:  store,
		Logger: zerolog.Nop(),
		Now:    func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) },
	}))
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := execute(context.Background(), append([]string{"--base-url", srv.URL}, args...), &out, &errOut)
	return out.String(), errOut.String(), err
}

func TestListCommand(t *testing.T) {
	srv := startBackend(t)

	out, _, err := run(t, srv, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "2024-01-02")
	assert.Contains(t, out, "FINANCE")
	assert.Contains(t, out, "Saving early")
	assert.Contains(t, out, "Go at work")
}

func TestShowCommand(t *testing.T) {
	srv := startBackend(t)

	out, _, err := run(t, srv, "show", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Saving early\nFINANCE · 1 min read · Jan 2, 2024\n")
	assert.Contains(t, out, "\nStart now\n")
	assert.Contains(t, out, "## WHY IT MATTERS\n")
	assert.Contains(t, out, "\nCompound interest is patient.\n")
	assert.Contains(t, out, "> Time in the market beats timing the market.\n")
}

func TestShowMissing(t *testing.T) {
	srv := startBackend(t)

	_, _, err := run(t, srv, "show", "42")
	assert.EqualError(t, err, "blog not found")
}

func TestShowBlankID(t *testing.T) {
	srv := startBackend(t)

	_, _, err := run(t, srv, "show", " ")
	assert.EqualError(t, err, "blog id required")
}

func TestCreateCommand(t *testing.T) {
	srv := startBackend(t)

	out, errOut, err := run(t, srv, "create",
		"--title", "New",
		"--category", "TECH",
		"--category", "GARDENING",
		"--description", "d",
		"--content", "Hello",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "created blog 3\n")
	assert.Contains(t, out, "3 blogs published\n")
	assert.Contains(t, errOut, "unknown category")

	out, _, err = run(t, srv, "show", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "New\nTECH & GARDENING")
}

func TestCreateFromFile(t *testing.T) {
	srv := startBackend(t)
	path := filepath.Join(t.TempDir(), "post.txt")
	require.NoError(t, os.WriteFile(path, []byte("First.\n\nSecond."), 0o644))

	out, _, err := run(t, srv, "create", "--title", "T", "--category", "CAREER", "--description", "d", "--content-file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "created blog 3")

	_, _, err = run(t, srv, "create", "--title", "T", "--category", "CAREER", "--description", "d", "--content", "x", "--content-file", path)
	assert.Error(t, err)
}

func TestCreateValidation(t *testing.T) {
	srv := startBackend(t)

	_, _, err := run(t, srv, "create", "--title", "Only a title")
	var verr *blog.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotEmpty(t, verr.Problems)

	out, _, err := run(t, srv, "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Only a title")
}

func TestUnreachableBackend(t *testing.T) {
	srv := startBackend(t)
	srv.Close()

	_, _, err := run(t, srv, "list", "--log-level", "error")
	assert.ErrorContains(t, err, "cannot reach the blog API")
}

func TestBadFlags(t *testing.T) {
	srv := startBackend(t)

	_, _, err := run(t, srv, "list", "--log-level", "chatty")
	assert.ErrorContains(t, err, "LOG_LEVEL")
}

func TestDescribe(t *testing.T) {
	assert.NoError(t, describe(nil))
	assert.EqualError(t, describe(&blogapi.HTTPStatusError{Code: 404}), "blog not found")

	other := errors.New("boom")
	assert.Same(t, other, describe(other))
}
