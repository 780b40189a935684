// Package blogs binds the blog REST endpoints to query keys.
package blogs

import (
	"context"
	"fmt"

	"github.com/briangreenhill/quill/internal/blog"
	"github.com/briangreenhill/quill/internal/query"
)

// ListKey identifies the list of all posts.
var ListKey = query.Key{"blogs"}

// ItemKey identifies one post. An empty id gives a disabled key.
func ItemKey(id blog.ID) query.Key {
	return query.NewKey("blog", id)
}

// API is the part of the backend client the bindings use.
type API interface {
	ListBlogs(ctx context.Context) ([]blog.Post, error)
	GetBlog(ctx context.Context, id blog.ID) (blog.Post, error)
	CreateBlog(ctx context.Context, payload blog.CreatePayload) (blog.Post, error)
}

type Service struct {
	cache *query.Cache
	api   API
}

func New(cache *query.Cache, api API) *Service {
	return &Service{cache: cache, api: api}
}

func (s *Service) listFetch(ctx context.Context) (any, error) {
	return s.api.ListBlogs(ctx)
}

func (s *Service) itemFetch(id blog.ID) query.FetchFunc {
	return func(ctx context.Context) (any, error) {
		return s.api.GetBlog(ctx, id)
	}
}

// List watches the list of posts.
func (s *Service) List(fn query.Listener) *query.Query {
	return s.cache.Watch(ListKey, s.listFetch, fn)
}

// Get watches one post. A zero id never fetches.
func (s *Service) Get(id blog.ID, fn query.Listener) *query.Query {
	return s.cache.Watch(ItemKey(id), s.itemFetch(id), fn)
}

// FetchList reads the list without subscribing.
func (s *Service) FetchList(ctx context.Context) ([]blog.Post, error) {
	v, err := s.cache.Fetch(ctx, ListKey, s.listFetch)
	if err != nil {
		return nil, err
	}
	posts, _ := v.([]blog.Post)
	return posts, nil
}

// FetchPost reads one post without subscribing.
func (s *Service) FetchPost(ctx context.Context, id blog.ID) (blog.Post, error) {
	v, err := s.cache.Fetch(ctx, ItemKey(id), s.itemFetch(id))
	if err != nil {
		return blog.Post{}, err
	}
	p, _ := v.(blog.Post)
	return p, nil
}

// Create returns the create mutation. Payloads are validated before any
// request; a successful write invalidates the list and the item under the
// id the backend assigned.
func (s *Service) Create() *query.Mutation[blog.CreatePayload, blog.Post] {
	return query.NewMutation(s.cache,
		func(ctx context.Context, in blog.CreatePayload) (blog.Post, error) {
			if err := in.Validate(); err != nil {
				return blog.Post{}, err
			}
			p, err := s.api.CreateBlog(ctx, in)
			if err != nil {
				return blog.Post{}, fmt.Errorf("create blog: %w", err)
			}
			return p, nil
		},
		func(out blog.Post, _ blog.CreatePayload) []query.Key {
			return []query.Key{ListKey, ItemKey(out.ID)}
		},
	)
}

// Posts returns the list data held by s, or nil.
func Posts(s query.State) []blog.Post {
	posts, _ := query.DataAs[[]blog.Post](s)
	return posts
}

// Post returns the post held by s.
func Post(s query.State) (blog.Post, bool) {
	return query.DataAs[blog.Post](s)
}
