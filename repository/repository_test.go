package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/pubfront/post"
)

var draft = post.Draft{
	Title:  "My First Post",
	Body:   "This is a sufficiently long body text.",
	Author: "Jane Doe",
}

func TestListPostsCachesByKey(t *testing.T) {
	fb := newFakeBoundary(7)
	r := New(fb)
	ctx := context.Background()

	first, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"p7", "p6", "p5", "p4", "p3"}, ids(first))

	again, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(again))

	second, err := r.ListPosts(ctx, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"p2", "p1"}, ids(second))

	list, _ := fb.calls()
	assert.Equal(t, 2, list)
}

func TestListPostsEmptyPageIsNotAnError(t *testing.T) {
	r := New(newFakeBoundary(3))
	posts, err := r.ListPosts(context.Background(), 9, 5)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestListPostsRejectsInvalidPage(t *testing.T) {
	r := New(newFakeBoundary(3))
	_, err := r.ListPosts(context.Background(), 0, 5)
	assert.ErrorIs(t, err, ErrInvalidPage)
	_, err = r.ListPosts(context.Background(), 1, 0)
	assert.ErrorIs(t, err, ErrInvalidPage)
}

func TestListPostsDeduplicatesConcurrentFetches(t *testing.T) {
	fb := newFakeBoundary(5)
	fb.listGate = make(chan struct{})
	r := New(fb)
	var joined atomic.Int32
	r.joined = func() { joined.Add(1) }

	var wg sync.WaitGroup
	results := make([][]post.Post, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			posts, err := r.ListPosts(context.Background(), 1, 5)
			assert.NoError(t, err)
			results[i] = posts
		}(i)
	}
	require.Eventually(t, func() bool { return joined.Load() == int32(len(results)) },
		time.Second, time.Millisecond)
	close(fb.listGate)
	wg.Wait()

	list, _ := fb.calls()
	assert.Equal(t, 1, list)
	for _, res := range results {
		assert.Len(t, res, 5)
	}
}

func TestListPostsCancelledCallerDiscardsResult(t *testing.T) {
	fb := newFakeBoundary(5)
	fb.listGate = make(chan struct{})
	r := New(fb)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.ListPosts(ctx, 1, 5)
		done <- err
	}()
	<-fb.started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(fb.listGate)
	// The shared fetch still completes and fills the cache.
	require.Eventually(t, func() bool {
		_, ok := r.PeekPosts(1, 5)
		return ok
	}, time.Second, 10*time.Millisecond)
}

func TestListPostsSurfacesBoundaryError(t *testing.T) {
	fb := newFakeBoundary(5)
	fb.listErr = errors.New("connection refused")
	r := New(fb)
	_, err := r.ListPosts(context.Background(), 1, 5)
	require.EqualError(t, err, "connection refused")
	_, ok := r.PeekPosts(1, 5)
	assert.False(t, ok)
}

func TestInvalidateForcesRefetch(t *testing.T) {
	fb := newFakeBoundary(5)
	r := New(fb)
	ctx := context.Background()
	_, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)

	r.Cache().Invalidate(ListKey{Page: 1, Limit: 5})
	_, err = r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	list, _ := fb.calls()
	assert.Equal(t, 2, list)
}

func TestCacheAndNetworkServesCachedThenRefreshes(t *testing.T) {
	fb := newFakeBoundary(5)
	r := New(fb, WithFetchPolicy(CacheAndNetwork))
	ctx := context.Background()
	_, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)

	fb.mu.Lock()
	fb.posts = append([]post.Post{{ID: "new", Title: "New", PublishedDate: time.Now()}}, fb.posts...)
	fb.mu.Unlock()

	cached, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, "p5", cached[0].ID)

	r.Wait()
	refreshed, ok := r.PeekPosts(1, 5)
	require.True(t, ok)
	assert.Equal(t, "new", refreshed[0].ID)
}

func TestGetPostNotFound(t *testing.T) {
	r := New(newFakeBoundary(2))
	_, err := r.GetPost(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.GetPost(context.Background(), post.SentinelID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPostUsesNormalizedRecords(t *testing.T) {
	fb := newFakeBoundary(3)
	r := New(fb)
	ctx := context.Background()
	_, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)

	p, err := r.GetPost(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "Post 2", p.Title)
	_, get := fb.calls()
	assert.Zero(t, get)

	_, err = r.FetchPost(ctx, "p2")
	require.NoError(t, err)
	_, get = fb.calls()
	assert.Equal(t, 1, get)
}

func TestCreatePostShowsPlaceholderBeforeConfirmation(t *testing.T) {
	fb := newFakeBoundary(5)
	fb.createGate = make(chan struct{})
	r := New(fb)
	ctx := context.Background()
	_, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)

	done := make(chan post.Post, 1)
	go func() {
		p, err := r.CreatePost(ctx, draft)
		assert.NoError(t, err)
		done <- p
	}()

	require.Eventually(t, func() bool { return r.Cache().Pending() == 1 }, time.Second, 5*time.Millisecond)
	pending, ok := r.PeekPosts(1, 5)
	require.True(t, ok)
	assert.Equal(t, post.SentinelID, pending[0].ID)
	assert.Equal(t, "My First Post", pending[0].Title)
	assert.Len(t, pending, 6)

	close(fb.createGate)
	created := <-done

	settled, _ := r.PeekPosts(1, 5)
	assert.Equal(t, created.ID, settled[0].ID)
	assert.Equal(t, "My First Post", settled[0].Title)
	assert.Equal(t, 1, countID(settled, created.ID))
	assert.Zero(t, countID(settled, post.SentinelID))
}

func TestCreatePostSuccessSettlesExactlyOnce(t *testing.T) {
	fb := newFakeBoundary(5)
	r := New(fb)
	ctx := context.Background()
	_, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	_, err = r.ListPosts(ctx, 1, 100)
	require.NoError(t, err)
	_, err = r.ListPosts(ctx, 2, 5)
	require.NoError(t, err)

	created, err := r.CreatePost(ctx, draft)
	require.NoError(t, err)

	for _, key := range []ListKey{{1, 5}, {1, 100}} {
		got, ok := r.PeekPosts(key.Page, key.Limit)
		require.True(t, ok)
		assert.Equal(t, created.ID, got[0].ID, "key %v", key)
		assert.Equal(t, 1, countID(got, created.ID), "key %v", key)
		assert.Zero(t, countID(got, post.SentinelID), "key %v", key)
	}
	_, fresh, ok := r.Cache().List(ListKey{2, 5})
	require.True(t, ok)
	assert.False(t, fresh, "later pages shift and must be refetched")
	assert.Zero(t, r.Cache().Pending())
}

func TestCreatePostFailureRestoresCache(t *testing.T) {
	fb := newFakeBoundary(5)
	fb.createGate = make(chan struct{})
	fb.createErr = errors.New("mutation rejected")
	r := New(fb)
	ctx := context.Background()
	_, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	before, _ := r.Cache().IDs(ListKey{Page: 1, Limit: 5})

	done := make(chan error, 1)
	go func() {
		_, err := r.CreatePost(ctx, draft)
		done <- err
	}()
	require.Eventually(t, func() bool { return r.Cache().Pending() == 1 }, time.Second, 5*time.Millisecond)
	close(fb.createGate)

	err = <-done
	require.Error(t, err)
	assert.True(t, IsMutationError(err))
	assert.EqualError(t, errors.Unwrap(err), "mutation rejected")

	after, _ := r.Cache().IDs(ListKey{Page: 1, Limit: 5})
	assert.Equal(t, before, after)
	visible, _ := r.PeekPosts(1, 5)
	assert.Equal(t, before, ids(visible))
}

func TestConcurrentCreatesSettleIndependently(t *testing.T) {
	fb := newFakeBoundary(5)
	r := New(fb)
	ctx := context.Background()
	_, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)

	// Hold the first creation open while the second completes.
	slow := make(chan struct{})
	fb.createGate = slow
	firstDone := make(chan post.Post, 1)
	go func() {
		p, err := r.CreatePost(ctx, post.Draft{Title: "Slow one", Body: draft.Body, Author: "Ann"})
		assert.NoError(t, err)
		firstDone <- p
	}()
	<-fb.creating

	fb.mu.Lock()
	fb.createGate = nil
	fb.mu.Unlock()
	second, err := r.CreatePost(ctx, post.Draft{Title: "Fast one", Body: draft.Body, Author: "Bob"})
	require.NoError(t, err)

	mid, _ := r.PeekPosts(1, 5)
	assert.Equal(t, post.SentinelID, mid[0].ID)
	assert.Equal(t, "Slow one", mid[0].Title)
	assert.Equal(t, second.ID, mid[1].ID)

	close(slow)
	first := <-firstDone

	final, _ := r.PeekPosts(1, 5)
	assert.Equal(t, 1, countID(final, first.ID))
	assert.Equal(t, 1, countID(final, second.ID))
	assert.Zero(t, countID(final, post.SentinelID))
	assert.Len(t, final, 5)
}

func TestConcurrentCreateFailureDoesNotTouchOtherPlaceholder(t *testing.T) {
	c := NewCache(0, nil)
	now := time.Now()
	require.True(t, c.PutList(ListKey{1, 5}, []post.Post{{ID: "a"}}, c.Version(ListKey{1, 5}), now))

	tx1 := c.Begin(post.Post{ID: post.SentinelID, Title: "one"})
	tx2 := c.Begin(post.Post{ID: post.SentinelID, Title: "two"})

	require.NoError(t, c.Commit(tx2, post.Post{ID: "b", Title: "two"}, 5))
	require.NoError(t, c.Rollback(tx1))

	got, _, _ := c.List(ListKey{1, 5})
	assert.Equal(t, []string{"b", "a"}, ids(got))
	assert.ErrorIs(t, c.Rollback(tx1), ErrSettled)
	assert.ErrorIs(t, c.Commit(tx2, post.Post{ID: "b"}, 5), ErrSettled)
}

func TestCreatePostWithoutCachedListSeedsStaleHomeEntry(t *testing.T) {
	fb := newFakeBoundary(2)
	r := New(fb, WithPageSize(5))
	ctx := context.Background()
	created, err := r.CreatePost(ctx, draft)
	require.NoError(t, err)

	got, fresh, ok := r.Cache().List(ListKey{1, 5})
	require.True(t, ok)
	assert.False(t, fresh)
	assert.Equal(t, []string{created.ID}, ids(got))
	_, ok = r.PeekPosts(1, 5)
	assert.False(t, ok)

	home, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID, "p2", "p1"}, ids(home))
}

func TestCreateAfterLargerListKeepsHomePageFull(t *testing.T) {
	fb := newFakeBoundary(7)
	r := New(fb, WithPageSize(5))
	ctx := context.Background()
	_, err := r.ListPosts(ctx, 1, 100)
	require.NoError(t, err)

	created, err := r.CreatePost(ctx, draft)
	require.NoError(t, err)

	home, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{created.ID, "p7", "p6", "p5", "p4"}, ids(home))

	all, err := r.ListPosts(ctx, 1, 100)
	require.NoError(t, err)
	assert.Len(t, all, 8)
	assert.Equal(t, created.ID, all[0].ID)
}

func TestCreatesKeepPagesBoundedAndDisjoint(t *testing.T) {
	fb := newFakeBoundary(7)
	r := New(fb)
	ctx := context.Background()
	_, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	_, err = r.ListPosts(ctx, 2, 5)
	require.NoError(t, err)

	for _, title := range []string{"First new post", "Second new post", "Third new post"} {
		_, err := r.CreatePost(ctx, post.Draft{Title: title, Body: draft.Body, Author: "Ann"})
		require.NoError(t, err)
	}

	page1, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	page2, err := r.ListPosts(ctx, 2, 5)
	require.NoError(t, err)
	assert.Len(t, page1, 5)
	assert.Equal(t, []string{"p10", "p9", "p8", "p7", "p6"}, ids(page1))
	assert.Equal(t, []string{"p5", "p4", "p3", "p2", "p1"}, ids(page2))
	for _, p := range page1 {
		assert.Zero(t, countID(page2, p.ID), p.ID)
	}
}

func TestListsExpireAfterMaxAge(t *testing.T) {
	fb := newFakeBoundary(5)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	r := New(fb, WithMaxAge(time.Minute), WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	_, err = r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	list, _ := fb.calls()
	assert.Equal(t, 1, list)

	now = now.Add(31 * time.Second)
	_, ok := r.PeekPosts(1, 5)
	assert.False(t, ok)
	_, err = r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	list, _ = fb.calls()
	assert.Equal(t, 2, list)
}

func TestCancelledCreateLeavesFirstPagesStale(t *testing.T) {
	fb := newFakeBoundary(5)
	fb.createGate = make(chan struct{})
	r := New(fb)
	_, err := r.ListPosts(context.Background(), 1, 5)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.CreatePost(ctx, draft)
		done <- err
	}()
	<-fb.creating
	cancel()

	err = <-done
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsMutationError(err))
	got, fresh, ok := r.Cache().List(ListKey{1, 5})
	require.True(t, ok)
	assert.False(t, fresh)
	assert.Zero(t, countID(got, post.SentinelID))
}

func TestCommitDiscardsOlderInFlightFetch(t *testing.T) {
	fb := newFakeBoundary(5)
	r := New(fb)
	ctx := context.Background()
	_, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	r.Cache().Invalidate(ListKey{1, 5})
	fb.resetStarted()

	// A refetch starts before the creation commits and returns the old list.
	fb.mu.Lock()
	fb.listGate = make(chan struct{})
	fb.mu.Unlock()
	fetched := make(chan []post.Post, 1)
	go func() {
		posts, err := r.ListPosts(ctx, 1, 5)
		assert.NoError(t, err)
		fetched <- posts
	}()
	<-fb.started

	fb.mu.Lock()
	stale := append([]post.Post(nil), fb.posts[:5]...)
	fb.mu.Unlock()
	created, err := r.CreatePost(ctx, draft)
	require.NoError(t, err)
	fb.mu.Lock()
	fb.posts = stale // the in-flight read was served before the insert
	fb.mu.Unlock()

	close(fb.listGate)
	got := <-fetched
	assert.Equal(t, created.ID, got[0].ID)
	assert.Equal(t, 1, countID(got, created.ID))
}

func TestFetchSpanningPendingCreateShowsPostOnce(t *testing.T) {
	fb := newFakeBoundary(5)
	r := New(fb)
	ctx := context.Background()
	_, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	r.Cache().Invalidate(ListKey{1, 5})
	fb.resetStarted()

	fb.mu.Lock()
	fb.listGate = make(chan struct{})
	fb.createGate = make(chan struct{})
	fb.mu.Unlock()
	fetched := make(chan []post.Post, 1)
	go func() {
		posts, err := r.ListPosts(ctx, 1, 5)
		assert.NoError(t, err)
		fetched <- posts
	}()
	<-fb.started

	created := make(chan post.Post, 1)
	go func() {
		p, err := r.CreatePost(ctx, draft)
		assert.NoError(t, err)
		created <- p
	}()
	<-fb.creating

	// The server stored the post before answering the mutation, and the
	// held list read observes it.
	fb.mu.Lock()
	fb.posts = append([]post.Post{{ID: "px", Title: draft.Title, Author: draft.Author}}, fb.posts...)
	fb.mu.Unlock()
	close(fb.listGate)

	got := <-fetched
	assert.Zero(t, countID(got, "px"))
	assert.Equal(t, 1, countTitle(got, draft.Title))
	assert.Equal(t, post.SentinelID, got[0].ID)

	// A fetch started while the creation is still pending is not stored.
	fb.mu.Lock()
	fb.listGate = nil
	fb.mu.Unlock()
	r.Cache().Invalidate(ListKey{1, 5})
	again, err := r.ListPosts(ctx, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, countTitle(again, draft.Title))

	close(fb.createGate)
	<-created
	settled, _, _ := r.Cache().List(ListKey{1, 5})
	assert.Equal(t, 1, countTitle(settled, draft.Title))
	assert.Zero(t, countID(settled, post.SentinelID))
}

func countTitle(posts []post.Post, title string) int {
	n := 0
	for _, p := range posts {
		if p.Title == title {
			n++
		}
	}
	return n
}

func countID(posts []post.Post, id string) int {
	n := 0
	for _, p := range posts {
		if p.ID == id {
			n++
		}
	}
	return n
}
