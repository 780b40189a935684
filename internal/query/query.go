package query

import (
	"context"
	"sync"
)

// Query is one subscription to a cache entry, returned by Cache.Watch.
type Query struct {
	cache    *Cache
	key      Key
	id       uint64
	entry    *entry
	disabled bool
	// err is set for a query created on a closed cache.
	err  error
	once sync.Once
}

func (q *Query) Key() Key { return q.key }

// State returns the current snapshot.
func (q *Query) State() State {
	if q.disabled {
		return State{Key: q.key, Status: StatusIdle, Disabled: true}
	}
	if q.err != nil {
		return State{Key: q.key, Status: StatusError, Err: q.err}
	}
	q.cache.mu.Lock()
	defer q.cache.mu.Unlock()
	return q.cache.snapshot(q.entry)
}

// Wait blocks until no fetch is running for the query, including a
// follow-up fetch started by an invalidation, and returns the state.
func (q *Query) Wait(ctx context.Context) (State, error) {
	if q.disabled {
		return q.State(), nil
	}
	if q.err != nil {
		return q.State(), q.err
	}
	return q.cache.wait(ctx, q.entry)
}

// Refetch fetches regardless of staleness, joining a running fetch, and
// waits for it.
func (q *Query) Refetch(ctx context.Context) (State, error) {
	if q.disabled {
		return q.State(), nil
	}
	if q.err != nil {
		return q.State(), q.err
	}
	c := q.cache
	c.mu.Lock()
	if c.closed {
		st := c.snapshot(q.entry)
		c.mu.Unlock()
		return st, ErrClosed
	}
	var n *notification
	if _, started := c.startFetch(q.entry); started {
		n = c.pending(q.entry)
	}
	c.mu.Unlock()
	n.send()

	return c.wait(ctx, q.entry)
}

// Close unsubscribes. The entry is collected once no subscriber is left for
// the cache's GC horizon. Safe to call more than once.
func (q *Query) Close() {
	if q.disabled || q.err != nil {
		return
	}
	q.once.Do(func() { q.cache.unsubscribe(q.entry, q.id) })
}
