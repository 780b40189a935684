package diskcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gregjones/httpcache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ httpcache.Cache = (*Cache)(nil)

func TestSetGetDelete(t *testing.T) {
	c, err := New(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	key := "http://localhost:3001/blogs?page=1&q=a:b"
	_, ok := c.Get(key)
	assert.False(t, ok)

	c.Set(key, []byte("HTTP/1.1 200 OK\r\n\r\n[]"))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, "HTTP/1.1 200 OK\r\n\r\n[]", string(got))

	c.Set(key, []byte("second"))
	got, _ = c.Get(key)
	assert.Equal(t, "second", string(got))

	c.Delete(key)
	c.Delete(key)
	_, ok = c.Get(key)
	assert.False(t, ok)
}

func TestEntriesSurviveReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "http")
	c, err := New(dir, zerolog.Nop())
	require.NoError(t, err)
	c.Set("k", []byte("v"))

	again, err := New(dir, zerolog.Nop())
	require.NoError(t, err)
	got, ok := again.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", string(got))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())

	c, err := New("", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("quill", "http"), filepath.Join(filepath.Base(filepath.Dir(c.Dir())), filepath.Base(c.Dir())))
}
