// Package backend is a development REST backend serving the blog endpoints
// the client consumes.
package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/briangreenhill/quill/internal/blog"
)

var ErrNotFound = errors.New("blog not found")

// Store persists posts. Create assigns the id.
type Store interface {
	List(ctx context.Context) ([]blog.Post, error)
	Get(ctx context.Context, id blog.ID) (blog.Post, error)
	Create(ctx context.Context, p blog.Post) (blog.Post, error)
}

// MemoryStore keeps posts in insertion order and numbers new ones
// sequentially.
type MemoryStore struct {
	mu    sync.RWMutex
	posts []blog.Post
	next  int
}

func NewMemoryStore(seed ...blog.Post) *MemoryStore {
	s := &MemoryStore{next: 1}
	for _, p := range seed {
		if n, err := strconv.Atoi(p.ID.String()); err == nil && n >= s.next {
			s.next = n + 1
		}
		s.posts = append(s.posts, p)
	}
	return s
}

func (s *MemoryStore) List(ctx context.Context) ([]blog.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]blog.Post, len(s.posts))
	copy(out, s.posts)
	return out, nil
}

func (s *MemoryStore) Get(ctx context.Context, id blog.ID) (blog.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.posts {
		if p.ID == id {
			return p, nil
		}
	}
	return blog.Post{}, ErrNotFound
}

func (s *MemoryStore) Create(ctx context.Context, p blog.Post) (blog.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = blog.ID(strconv.Itoa(s.next))
	s.next++
	s.posts = append(s.posts, p)
	return p, nil
}

type seedFile struct {
	Blogs []blog.Post `yaml:"blogs"`
}

// LoadSeed reads posts from a YAML or JSON file shaped {"blogs": [...]}.
func LoadSeed(path string) ([]blog.Post, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	for i, p := range f.Blogs {
		if p.ID.IsZero() {
			return nil, fmt.Errorf("seed %s: blog %d has no id", path, i)
		}
	}
	return f.Blogs, nil
}
