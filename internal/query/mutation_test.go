package query

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type post struct {
	ID    string
	Title string
}

func TestMutationInvalidatesBeforeReturning(t *testing.T) {
	c := newTestCache(t)
	list := newCounter()

	q := c.Watch(Key{"blogs"}, list.fetch, nil)
	defer q.Close()
	waitState(t, q)
	release := list.gate(2)

	var created atomic.Int32
	m := NewMutation(c,
		func(ctx context.Context, title string) (post, error) {
			created.Add(1)
			return post{ID: "3", Title: title}, nil
		},
		func(out post, _ string) []Key {
			return []Key{{"blogs"}, NewKey("blog", out.ID)}
		},
	)

	out, err := m.MutateAsync(context.Background(), "X")
	require.NoError(t, err)
	assert.Equal(t, post{ID: "3", Title: "X"}, out)

	st, ok := c.Peek(Key{"blogs"})
	require.True(t, ok)
	assert.True(t, st.IsStale)
	assert.True(t, st.IsFetching)

	close(release)
	assert.Equal(t, 2, waitState(t, q).Data)
	assert.Equal(t, int32(1), created.Load())
}

func TestMutationMarksUnwatchedQueriesStale(t *testing.T) {
	c := newTestCache(t)
	item := newCounter()
	_, err := c.Fetch(context.Background(), NewKey("blog", 3), item.fetch)
	require.NoError(t, err)

	m := NewMutation(c,
		func(ctx context.Context, id string) (string, error) { return id, nil },
		func(out string, _ string) []Key { return []Key{NewKey("blog", out)} },
	)
	_, err = m.MutateAsync(context.Background(), "3")
	require.NoError(t, err)

	st, _ := c.Peek(NewKey("blog", 3))
	assert.True(t, st.IsStale)
	assert.False(t, st.IsFetching)
}

func TestFailedMutationLeavesCacheAlone(t *testing.T) {
	c := newTestCache(t)
	list := newCounter()
	_, err := c.Fetch(context.Background(), Key{"blogs"}, list.fetch)
	require.NoError(t, err)

	boom := errors.New("400 Bad Request")
	var invalidated bool
	m := NewMutation(c,
		func(ctx context.Context, title string) (post, error) { return post{ID: "ignored"}, boom },
		func(post, string) []Key {
			invalidated = true
			return []Key{{"blogs"}}
		},
	)

	out, err := m.MutateAsync(context.Background(), "X")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, post{}, out)
	assert.False(t, invalidated)
	assert.False(t, m.IsPending())

	st, _ := c.Peek(Key{"blogs"})
	assert.False(t, st.IsStale)
	assert.Equal(t, int32(1), list.calls.Load())
}

func TestMutationWithoutInvalidation(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Fetch(context.Background(), Key{"blogs"}, newCounter().fetch)
	require.NoError(t, err)

	m := NewMutation[int, int](c, func(ctx context.Context, n int) (int, error) { return n * 2, nil }, nil)
	out, err := m.MutateAsync(context.Background(), 21)
	require.NoError(t, err)
	assert.Equal(t, 42, out)

	st, _ := c.Peek(Key{"blogs"})
	assert.False(t, st.IsStale)
}

func TestMutationIsPending(t *testing.T) {
	c := newTestCache(t)
	release := make(chan struct{})
	m := NewMutation[string, string](c, func(ctx context.Context, in string) (string, error) {
		<-release
		return in, nil
	}, nil)
	assert.False(t, m.IsPending())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.MutateAsync(context.Background(), "x")
	}()

	assert.Eventually(t, m.IsPending, time.Second, 5*time.Millisecond)
	close(release)
	<-done
	assert.False(t, m.IsPending())
}

func TestMutationIsNotRetried(t *testing.T) {
	c := newTestCache(t, WithRetry(3))
	var calls atomic.Int32
	m := NewMutation[string, string](c, func(ctx context.Context, in string) (string, error) {
		calls.Add(1)
		return "", errors.New("nope")
	}, nil)

	_, err := m.MutateAsync(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestReadAfterMutationWithoutSubscriber(t *testing.T) {
	c := newTestCache(t)
	list := newCounter()
	release := list.gate(1)

	go func() { _, _ = c.Fetch(context.Background(), Key{"blogs"}, list.fetch) }()
	require.Eventually(t, func() bool {
		st, ok := c.Peek(Key{"blogs"})
		return ok && st.IsFetching
	}, time.Second, 5*time.Millisecond)

	m := NewMutation(c,
		func(ctx context.Context, title string) (post, error) { return post{ID: "3", Title: title}, nil },
		func(post, string) []Key { return []Key{{"blogs"}} },
	)
	_, err := m.MutateAsync(context.Background(), "X")
	require.NoError(t, err)

	got := make(chan any, 1)
	go func() {
		v, err := c.Fetch(context.Background(), Key{"blogs"}, list.fetch)
		assert.NoError(t, err)
		got <- v
	}()
	require.Eventually(t, func() bool { return followUpRequested(c, Key{"blogs"}) }, time.Second, 5*time.Millisecond)

	close(release)
	assert.Equal(t, 2, <-got)
}
