package query

import (
	"context"
	"sync/atomic"
)

// MutateFunc performs a write.
type MutateFunc[In, Out any] func(ctx context.Context, in In) (Out, error)

// Mutation runs writes and invalidates the reads they affect.
type Mutation[In, Out any] struct {
	cache       *Cache
	fn          MutateFunc[In, Out]
	invalidates func(out Out, in In) []Key
	inFlight    atomic.Int64
}

// NewMutation binds fn to c. After each successful call the keys returned by
// invalidates are invalidated; invalidates may be nil.
func NewMutation[In, Out any](c *Cache, fn MutateFunc[In, Out], invalidates func(out Out, in In) []Key) *Mutation[In, Out] {
	return &Mutation[In, Out]{cache: c, fn: fn, invalidates: invalidates}
}

// MutateAsync runs the write. On success the affected queries are already
// marked stale (and refetching when watched) by the time it returns. On
// failure the error is returned unchanged and the cache is left alone.
// Writes are never retried.
func (m *Mutation[In, Out]) MutateAsync(ctx context.Context, in In) (Out, error) {
	m.inFlight.Add(1)
	defer m.inFlight.Add(-1)

	out, err := m.fn(ctx, in)
	if err != nil {
		m.cache.log.Debug().Err(err).Msg("mutation failed")
		var zero Out
		return zero, err
	}

	if m.invalidates != nil {
		if keys := m.invalidates(out, in); len(keys) > 0 {
			m.cache.Invalidate(keys...)
		}
	}
	return out, nil
}

// IsPending reports whether a call on this mutation is running.
func (m *Mutation[In, Out]) IsPending() bool {
	return m.inFlight.Load() > 0
}
