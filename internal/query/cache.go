// Package query is an in-process cache for REST reads with subscriptions,
// stale-while-revalidate refreshes and mutation-driven invalidation.
package query

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultStaleAfter = 5 * time.Minute
	DefaultGCAfter    = 5 * time.Minute
	DefaultRetry      = 1
	DefaultRetryDelay = time.Second
)

var (
	// ErrClosed is returned for reads issued after Close.
	ErrClosed = errors.New("query cache closed")
	// ErrDisabled is returned by Fetch for a key that must not be fetched.
	ErrDisabled = errors.New("query key disabled")
)

// FetchFunc loads the data for one key. The context belongs to the cache,
// not to any single caller, since fetches are shared.
type FetchFunc func(ctx context.Context) (any, error)

type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextID  uint64
	nextSub uint64
	closed  bool

	staleAfter time.Duration
	gcAfter    time.Duration
	retry      int
	retryDelay time.Duration
	retryIf    func(error) bool
	now        func() time.Time
	log        zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Cache)

// WithStaleAfter sets how long fetched data is served without a refetch.
func WithStaleAfter(d time.Duration) Option {
	return func(c *Cache) { c.staleAfter = d }
}

// WithGCAfter sets how long an entry without subscribers is kept. Zero drops
// it as soon as the last subscriber leaves.
func WithGCAfter(d time.Duration) Option {
	return func(c *Cache) { c.gcAfter = d }
}

// WithRetry sets how many times a failed fetch is repeated before the error
// is stored.
func WithRetry(n int) Option {
	return func(c *Cache) {
		if n >= 0 {
			c.retry = n
		}
	}
}

// WithRetryDelay sets the base pause between attempts; the nth retry waits
// n times this long.
func WithRetryDelay(d time.Duration) Option {
	return func(c *Cache) { c.retryDelay = d }
}

// WithRetryIf limits retries to errors for which ok returns true. By default
// every error is retried.
func WithRetryIf(ok func(error) bool) Option {
	return func(c *Cache) { c.retryIf = ok }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithClock replaces time.Now for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

type entry struct {
	id    uint64
	key   Key
	hash  string
	fetch FetchFunc

	status    Status
	data      any
	hasData   bool
	err       error
	fetchedAt time.Time
	errorAt   time.Time

	invalidated bool
	generation  uint64
	// followUp asks for one more fetch after the running one, for readers
	// that joined a fetch started before the latest invalidation.
	followUp bool

	flight      *flight
	subscribers map[uint64]Listener
	gc          *time.Timer

	// version counts snapshots handed to listeners; delivered is the newest
	// one already sent. Older snapshots that lose the race are dropped.
	version   uint64
	sendMu    sync.Mutex
	delivered uint64
}

type flight struct {
	gen  uint64
	done chan struct{}
	data any
	err  error
}

type notification struct {
	wg        *sync.WaitGroup
	entry     *entry
	version   uint64
	listeners []Listener
	state     State
}

func New(opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		entries:    make(map[string]*entry),
		staleAfter: DefaultStaleAfter,
		gcAfter:    DefaultGCAfter,
		retry:      DefaultRetry,
		retryDelay: DefaultRetryDelay,
		now:        time.Now,
		log:        zerolog.Nop(),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Watch subscribes fn to key and returns the live query. Stale or missing
// data is fetched in the background; a running fetch is joined rather than
// repeated. A disabled key yields a query that never fetches.
func (c *Cache) Watch(key Key, fetch FetchFunc, fn Listener) *Query {
	q := &Query{cache: c, key: key}
	if !key.Enabled() {
		q.disabled = true
		return q
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		q.err = ErrClosed
		return q
	}
	e := c.lookup(key, fetch)
	c.nextSub++
	q.id = c.nextSub
	q.entry = e
	e.subscribers[q.id] = fn
	if e.gc != nil {
		e.gc.Stop()
		e.gc = nil
	}
	var n *notification
	if c.isStale(e) {
		if _, started := c.startFetch(e); started {
			n = c.pending(e)
		}
	}
	c.mu.Unlock()

	n.send()
	return q
}

// Fetch returns fresh cached data for key as-is, or waits for a fetch
// (joining one already running). ctx only bounds the wait.
func (c *Cache) Fetch(ctx context.Context, key Key, fetch FetchFunc) (any, error) {
	if !key.Enabled() {
		return nil, ErrDisabled
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	e := c.lookup(key, fetch)
	if !c.isStale(e) {
		data := e.data
		c.mu.Unlock()
		return data, nil
	}
	f, started := c.startFetch(e)
	var n *notification
	if started {
		n = c.pending(e)
	} else {
		c.requestFollowUp(e, f)
	}
	if len(e.subscribers) == 0 {
		c.scheduleGC(e)
	}
	c.mu.Unlock()
	n.send()

	for {
		select {
		case <-f.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		c.mu.Lock()
		next := e.flight
		c.mu.Unlock()
		if next == nil || next == f {
			return f.data, f.err
		}
		f = next
	}
}

// Peek returns the current state of key without subscribing or fetching.
func (c *Cache) Peek(key Key) (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.hash()]
	if !ok {
		return State{Key: key}, false
	}
	return c.snapshot(e), true
}

// Invalidate marks every entry under the given prefixes stale and refetches
// the ones that have subscribers. No prefixes means every entry. It returns
// the number of entries marked.
func (c *Cache) Invalidate(prefixes ...Key) int {
	c.mu.Lock()
	var ns []*notification
	marked := 0
	for _, e := range c.entries {
		if !matchesAny(e.key, prefixes) {
			continue
		}
		marked++
		e.invalidated = true
		e.generation++
		if len(e.subscribers) == 0 || c.closed {
			continue
		}
		if _, started := c.startFetch(e); started {
			ns = append(ns, c.pending(e))
		}
	}
	c.mu.Unlock()

	for _, n := range ns {
		n.send()
	}
	if marked > 0 {
		c.log.Debug().Int("entries", marked).Msg("invalidated queries")
	}
	return marked
}

// Refetch invalidates the matching entries, fetches all of them whether or
// not anyone is subscribed, and waits. The first fetch error is returned.
func (c *Cache) Refetch(ctx context.Context, prefixes ...Key) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	var (
		targets []*entry
		ns      []*notification
	)
	for _, e := range c.entries {
		if !matchesAny(e.key, prefixes) {
			continue
		}
		e.invalidated = true
		e.generation++
		if f, started := c.startFetch(e); started {
			ns = append(ns, c.pending(e))
		} else {
			c.requestFollowUp(e, f)
		}
		targets = append(targets, e)
	}
	c.mu.Unlock()

	for _, n := range ns {
		n.send()
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range targets {
		e := e
		g.Go(func() error {
			st, err := c.wait(gctx, e)
			if err != nil {
				return err
			}
			if st.Status == StatusError {
				return fmt.Errorf("refetch %s: %w", e.key, st.Err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Remove drops key from the cache. Existing subscribers stay attached to the
// removed entry and still see its fetches complete; new reads start over.
func (c *Cache) Remove(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key.hash()]; ok {
		if e.gc != nil {
			e.gc.Stop()
		}
		delete(c.entries, e.hash)
	}
}

// Len returns the number of entries held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close cancels running fetches and waits for them, and for pending listener
// calls, to return. It must not be called from a listener.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for _, e := range c.entries {
		if e.gc != nil {
			e.gc.Stop()
		}
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

// lookup returns the entry for key, creating an idle one. Caller holds mu.
func (c *Cache) lookup(key Key, fetch FetchFunc) *entry {
	h := key.hash()
	e, ok := c.entries[h]
	if !ok {
		c.nextID++
		e = &entry{
			id:          c.nextID,
			key:         append(Key(nil), key...),
			hash:        h,
			status:      StatusIdle,
			subscribers: make(map[uint64]Listener),
		}
		c.entries[h] = e
	}
	if fetch != nil {
		e.fetch = fetch
	}
	return e
}

func (c *Cache) isStale(e *entry) bool {
	return e.invalidated || !e.hasData || c.now().Sub(e.fetchedAt) >= c.staleAfter
}

// startFetch returns the entry's running fetch, starting one if needed.
// Caller holds mu.
func (c *Cache) startFetch(e *entry) (*flight, bool) {
	if e.flight != nil {
		return e.flight, false
	}
	if c.closed {
		f := &flight{done: make(chan struct{}), err: ErrClosed}
		close(f.done)
		return f, false
	}

	f := &flight{gen: e.generation, done: make(chan struct{})}
	e.flight = f
	e.status = StatusLoading

	c.wg.Add(1)
	go c.run(e, f, e.fetch, e.generation)
	return f, true
}

func (c *Cache) run(e *entry, f *flight, fetch FetchFunc, gen uint64) {
	defer c.wg.Done()

	start := time.Now()
	data, err := c.attempt(e.key, fetch)

	c.mu.Lock()
	f.data, f.err = data, err
	e.flight = nil
	close(f.done)

	// A removed entry is still finished for the queries holding it.
	if c.entries[e.hash] != e && len(e.subscribers) == 0 {
		e.followUp = false
		c.mu.Unlock()
		c.log.Debug().Stringer("key", e.key).Msg("discarding result for collected query")
		return
	}

	now := c.now()
	if err != nil {
		e.status = StatusError
		e.err = err
		e.errorAt = now
		c.log.Warn().Err(err).Stringer("key", e.key).Bool("has_data", e.hasData).Msg("query failed")
	} else {
		e.status = StatusSuccess
		e.data = data
		e.hasData = true
		e.err = nil
		e.fetchedAt = now
		if e.generation == gen {
			e.invalidated = false
		}
		c.log.Debug().Stringer("key", e.key).Dur("duration", time.Since(start)).Msg("query fetched")
	}

	// invalidated while running: the result predates the write
	if err == nil && e.invalidated && (len(e.subscribers) > 0 || e.followUp) {
		c.startFetch(e)
	}
	e.followUp = false
	n := c.pending(e)
	if len(e.subscribers) == 0 && e.gc == nil {
		c.scheduleGC(e)
	}
	c.mu.Unlock()

	n.send()
}

func (c *Cache) attempt(key Key, fetch FetchFunc) (any, error) {
	var err error
	for i := 0; i <= c.retry; i++ {
		if i > 0 {
			c.log.Debug().Err(err).Stringer("key", key).Int("attempt", i+1).Msg("retrying query")
			if delay := time.Duration(i) * c.retryDelay; delay > 0 {
				t := time.NewTimer(delay)
				select {
				case <-c.ctx.Done():
					t.Stop()
					return nil, c.ctx.Err()
				case <-t.C:
				}
			}
		}

		var data any
		data, err = call(c.ctx, fetch)
		if err == nil {
			return data, nil
		}
		if c.ctx.Err() != nil || (c.retryIf != nil && !c.retryIf(err)) {
			return nil, err
		}
	}
	return nil, err
}

// call runs fetch, turning a panic into an error.
func call(ctx context.Context, fetch FetchFunc) (data any, err error) {
	if fetch == nil {
		return nil, errors.New("no fetch function")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("fetch panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

// requestFollowUp marks e for another fetch when f started before the latest
// invalidation, so a reader joining f ends up with post-invalidation data.
// Caller holds mu.
func (c *Cache) requestFollowUp(e *entry, f *flight) {
	if f == e.flight && f.gen != e.generation {
		e.followUp = true
	}
}

func (c *Cache) wait(ctx context.Context, e *entry) (State, error) {
	for {
		c.mu.Lock()
		f := e.flight
		if f == nil {
			st := c.snapshot(e)
			c.mu.Unlock()
			return st, nil
		}
		c.requestFollowUp(e, f)
		c.mu.Unlock()

		select {
		case <-f.done:
		case <-ctx.Done():
			c.mu.Lock()
			st := c.snapshot(e)
			c.mu.Unlock()
			return st, ctx.Err()
		}
	}
}

func (c *Cache) unsubscribe(e *entry, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(e.subscribers, id)
	if len(e.subscribers) == 0 {
		c.scheduleGC(e)
	}
}

// scheduleGC drops e after gcAfter unless someone subscribes first.
// Caller holds mu.
func (c *Cache) scheduleGC(e *entry) {
	if c.entries[e.hash] != e || c.closed {
		return
	}
	if e.gc != nil {
		e.gc.Stop()
		e.gc = nil
	}
	if c.gcAfter <= 0 {
		delete(c.entries, e.hash)
		return
	}
	e.gc = time.AfterFunc(c.gcAfter, func() { c.collect(e) })
}

func (c *Cache) collect(e *entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries[e.hash] != e || len(e.subscribers) > 0 {
		return
	}
	delete(c.entries, e.hash)
	c.log.Debug().Stringer("key", e.key).Msg("collected query")
}

func (c *Cache) snapshot(e *entry) State {
	return State{
		Key:            e.key,
		Status:         e.status,
		Data:           e.data,
		Err:            e.err,
		HasData:        e.hasData,
		IsLoading:      e.status == StatusLoading && !e.hasData,
		IsFetching:     e.flight != nil,
		IsStale:        c.isStale(e),
		UpdatedAt:      e.fetchedAt,
		ErrorUpdatedAt: e.errorAt,
	}
}

// pending captures listeners and state for delivery after mu is released.
func (c *Cache) pending(e *entry) *notification {
	if len(e.subscribers) == 0 {
		return nil
	}
	e.version++
	// Added under mu: Close sets closed under mu before it waits.
	c.wg.Add(1)
	n := &notification{wg: &c.wg, entry: e, version: e.version, state: c.snapshot(e)}
	for _, l := range e.subscribers {
		if l != nil {
			n.listeners = append(n.listeners, l)
		}
	}
	return n
}

// send delivers off the caller's goroutine so a listener may call back into
// the cache.
func (n *notification) send() {
	if n == nil {
		return
	}
	go n.deliver()
}

func (n *notification) deliver() {
	defer n.wg.Done()
	e := n.entry
	e.sendMu.Lock()
	defer e.sendMu.Unlock()
	if n.version <= e.delivered {
		return
	}
	e.delivered = n.version
	for _, l := range n.listeners {
		l(n.state)
	}
}

func matchesAny(k Key, prefixes []Key) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if k.HasPrefix(p) {
			return true
		}
	}
	return false
}
