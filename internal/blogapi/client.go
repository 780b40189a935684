// Package blogapi is a thin JSON client for the blog REST backend.
package blogapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gregjones/httpcache"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/briangreenhill/quill/internal/blog"
)

const DefaultBaseURL = "http://localhost:3001"

// maxErrorBody caps how much of a failed response ends up in HTTPStatusError.
const maxErrorBody = 512

type Client struct {
	http    *http.Client
	baseURL *url.URL
	log     zerolog.Logger

	token      string
	httpCache  bool
	cacheStore httpcache.Cache
	timeout    time.Duration
	badURL     error
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBaseURL(raw string) Option {
	return func(c *Client) {
		u, err := parseBaseURL(raw)
		if err != nil {
			c.badURL = err
			return
		}
		c.baseURL = u
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithToken sends token as a bearer Authorization header.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPCache keeps GET responses in memory and revalidates them with
// If-None-Match / If-Modified-Since. Unsafe methods drop the cached URL.
func WithHTTPCache() Option {
	return func(c *Client) { c.httpCache = true }
}

// WithHTTPCacheStore is WithHTTPCache with responses kept in store, e.g. on
// disk so validators survive between runs.
func WithHTTPCacheStore(store httpcache.Cache) Option {
	return func(c *Client) {
		c.httpCache = true
		c.cacheStore = store
	}
}

// WithTimeout bounds each request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func New(opts ...Option) (*Client, error) {
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		http:    http.DefaultClient,
		baseURL: u,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.badURL != nil {
		return nil, c.badURL
	}

	if c.httpCache || c.token != "" || c.timeout > 0 {
		c.http = c.wrapHTTP(c.http)
	}
	return c, nil
}

func (c *Client) wrapHTTP(base *http.Client) *http.Client {
	rt := base.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	if c.httpCache {
		store := c.cacheStore
		if store == nil {
			store = httpcache.NewMemoryCache()
		}
		ct := httpcache.NewTransport(store)
		ct.Transport = rt
		ct.MarkCachedResponses = true
		rt = ct
	}
	if c.token != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token, TokenType: "Bearer"}),
			Base:   rt,
		}
	}
	timeout := base.Timeout
	if c.timeout > 0 {
		timeout = c.timeout
	}
	return &http.Client{
		Transport:     rt,
		Timeout:       timeout,
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
	}
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: need an absolute http(s) url", raw)
	}
	return u, nil
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.baseURL.String() }

// resolve joins p, an escaped path, onto the base URL.
func (c *Client) resolve(p string) string {
	return c.baseURL.JoinPath(p).String()
}

// Get issues GET base+p and decodes the JSON body into out.
func (c *Client) Get(ctx context.Context, p string, out any) error {
	return c.do(ctx, http.MethodGet, p, nil, out)
}

// Post encodes body as JSON, issues POST base+p and decodes the reply into out.
func (c *Client) Post(ctx context.Context, p string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, p, b, out)
}

func (c *Client) do(ctx context.Context, method, p string, body []byte, out any) error {
	target := c.resolve(p)

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", method).Str("url", target).Str("request_id", reqID).Msg("request failed")
		return &NetworkError{Method: method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("url", target).
		Str("request_id", reqID).
		Int("status", resp.StatusCode).
		Bool("from_cache", resp.Header.Get(httpcache.XFromCache) == "1").
		Dur("duration", time.Since(start)).
		Msg("request")

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Method: method, URL: target, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return &HTTPStatusError{Method: method, URL: target, Code: resp.StatusCode, Body: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &DecodeError{URL: target, Err: err}
	}
	return nil
}

// ListBlogs returns every post.
func (c *Client) ListBlogs(ctx context.Context) ([]blog.Post, error) {
	var posts []blog.Post
	if err := c.Get(ctx, "/blogs", &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetBlog returns one post.
func (c *Client) GetBlog(ctx context.Context, id blog.ID) (blog.Post, error) {
	if id.IsZero() {
		return blog.Post{}, errors.New("blog id required")
	}
	seg := strings.TrimSpace(id.String())
	if seg == "." || seg == ".." {
		return blog.Post{}, fmt.Errorf("invalid blog id %q", seg)
	}
	var p blog.Post
	err := c.Get(ctx, "/blogs/"+url.PathEscape(seg), &p)
	return p, err
}

// CreateBlog posts payload and returns the stored post, including its
// server-assigned id.
func (c *Client) CreateBlog(ctx context.Context, payload blog.CreatePayload) (blog.Post, error) {
	var p blog.Post
	if err := c.Post(ctx, "/blogs", payload, &p); err != nil {
		return blog.Post{}, err
	}
	if p.ID.IsZero() {
		return blog.Post{}, &DecodeError{URL: c.resolve("/blogs"), Err: errors.New("response has no id")}
	}
	return p, nil
}
