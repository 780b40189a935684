package backend

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briangreenhill/quill/internal/blog"
)

func TestMemoryStoreNumbersAfterSeed(t *testing.T) {
	s := NewMemoryStore(blog.Post{ID: "7"}, blog.Post{ID: "slug"})

	p, err := s.Create(context.Background(), blog.Post{Title: "New"})
	require.NoError(t, err)
	assert.Equal(t, blog.ID("8"), p.ID)

	got, err := s.Get(context.Background(), "8")
	require.NoError(t, err)
	assert.Equal(t, "New", got.Title)

	_, err = s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreConcurrentCreates(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(context.Background(), blog.Post{Title: "t"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	posts, err := s.List(context.Background())
	require.NoError(t, err)
	seen := map[blog.ID]bool{}
	for _, p := range posts {
		seen[p.ID] = true
	}
	assert.Len(t, seen, 20)
}

func TestMemoryStoreListIsACopy(t *testing.T) {
	s := NewMemoryStore(blog.Post{ID: "1", Title: "A"})
	posts, _ := s.List(context.Background())
	posts[0].Title = "changed"

	got, _ := s.Get(context.Background(), "1")
	assert.Equal(t, "A", got.Title)
}

func TestLoadSeed(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "seed.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`blogs:
  - id: 1
    title: First
    category: [TECH, CAREER]
    description: d
    date: "2024-01-01T00:00:00Z"
    content: |
      Hello
`), 0o644))
	posts, err := LoadSeed(yamlPath)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, blog.ID("1"), posts[0].ID)
	assert.Equal(t, []string{"TECH", "CAREER"}, posts[0].Category)

	jsonPath := filepath.Join(dir, "db.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"blogs":[{"id":"2","title":"Second","category":["FINANCE"]}]}`), 0o644))
	posts, err = LoadSeed(jsonPath)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, blog.ID("2"), posts[0].ID)
	assert.Equal(t, "Second", posts[0].Title)
}

func TestLoadSeedErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadSeed(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read seed")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("blogs: [\n"), 0o644))
	_, err = LoadSeed(bad)
	assert.ErrorContains(t, err, "parse seed")

	noID := filepath.Join(dir, "noid.yaml")
	require.NoError(t, os.WriteFile(noID, []byte("blogs:\n  - title: x\n"), 0o644))
	_, err = LoadSeed(noID)
	assert.ErrorContains(t, err, "has no id")
}
