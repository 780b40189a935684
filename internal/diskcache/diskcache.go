// Package diskcache stores HTTP cache entries as files so ETag revalidation
// keeps working across CLI runs.
package diskcache

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Cache implements httpcache.Cache on a directory.
type Cache struct {
	dir string
	log zerolog.Logger
}

// New creates dir if needed. An empty dir means the user cache directory
// (e.g. ~/.cache/quill/http).
func New(dir string, log zerolog.Logger) (*Cache, error) {
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(base, "quill", "http")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &Cache{dir: dir, log: log}, nil
}

func (c *Cache) Dir() string { return c.dir }

// Get returns the stored response bytes for key.
func (c *Cache) Get(key string) ([]byte, bool) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.log.Warn().Err(err).Str("key", key).Msg("read http cache")
		}
		return nil, false
	}
	return data, true
}

// Set writes to a temporary file first, then renames, so readers never see a
// partial entry.
func (c *Cache) Set(key string, data []byte) {
	path := c.path(key)
	tmp := path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("write http cache")
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		c.log.Warn().Err(err).Str("key", key).Msg("write http cache")
	}
}

func (c *Cache) Delete(key string) {
	if err := os.Remove(c.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.log.Warn().Err(err).Str("key", key).Msg("delete http cache")
	}
}

// path hashes the key; httpcache keys are full URLs and not filename safe.
func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%x", md5.Sum([]byte(key))))
}
