// Package repository is the data-access layer between the views and the
// GraphQL boundary. It owns the normalized post cache, de-duplicates
// concurrent fetches, and applies optimistic creations with explicit
// commit or rollback.
package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/eringen/pubfront/post"
)

// Boundary is the GraphQL surface the repository calls into.
type Boundary interface {
	Posts(ctx context.Context, page, limit int) ([]post.Post, error)
	Post(ctx context.Context, id string) (*post.Post, error)
	CreatePost(ctx context.Context, d post.Draft) (post.Post, error)
}

// FetchPolicy controls how list reads use the cache.
type FetchPolicy int

const (
	// CacheFirst serves a fresh cached list and fetches only on a miss.
	CacheFirst FetchPolicy = iota
	// CacheAndNetwork serves any cached list and refreshes it in the background.
	CacheAndNetwork
	// NetworkOnly always fetches.
	NetworkOnly
)

// DefaultPageSize is the list size of the home view.
const DefaultPageSize = 5

// Repository serves posts from the cache and the boundary.
type Repository struct {
	boundary Boundary
	cache    *Cache
	group    singleflight.Group
	policy   FetchPolicy
	pageSize int
	maxAge   time.Duration
	now      func() time.Time
	logger   *zap.Logger
	bg       sync.WaitGroup

	joined func() // called once a caller is attached to a list flight
}

// Option configures a Repository.
type Option func(*Repository)

// WithLogger sets the logger used for background and settle failures.
func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

// WithClock sets the time source for placeholder timestamps and list ages.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// WithPageSize sets the limit of the list created on a first creation.
func WithPageSize(n int) Option {
	return func(r *Repository) {
		if n > 0 {
			r.pageSize = n
		}
	}
}

// WithFetchPolicy sets the list fetch policy.
func WithFetchPolicy(p FetchPolicy) Option {
	return func(r *Repository) {
		r.policy = p
	}
}

// WithMaxAge sets how long a fetched list is served before CacheFirst reads
// refetch it. Zero keeps lists until they are invalidated.
func WithMaxAge(d time.Duration) Option {
	return func(r *Repository) {
		r.maxAge = d
	}
}

// New returns a Repository calling b.
func New(b Boundary, opts ...Option) *Repository {
	r := &Repository{
		boundary: b,
		policy:   CacheFirst,
		pageSize: DefaultPageSize,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cache = NewCache(r.maxAge, r.now)
	return r
}

// Cache exposes the underlying cache.
func (r *Repository) Cache() *Cache { return r.cache }

// PageSize returns the configured home list size.
func (r *Repository) PageSize() int { return r.pageSize }

// PeekPosts reads a fresh list from the cache without fetching. A stale or
// expired entry reports false.
func (r *Repository) PeekPosts(page, limit int) ([]post.Post, bool) {
	posts, fresh, ok := r.cache.List(ListKey{Page: page, Limit: limit})
	if !ok || !fresh {
		return nil, false
	}
	return posts, true
}

// ListPosts returns one page of posts.
func (r *Repository) ListPosts(ctx context.Context, page, limit int) ([]post.Post, error) {
	if page < 1 || limit < 1 {
		return nil, ErrInvalidPage
	}
	key := ListKey{Page: page, Limit: limit}

	switch r.policy {
	case CacheFirst:
		if posts, fresh, ok := r.cache.List(key); ok && fresh {
			return posts, nil
		}
	case CacheAndNetwork:
		if posts, _, ok := r.cache.List(key); ok {
			r.refresh(key)
			return posts, nil
		}
	}
	return r.fetchList(ctx, key)
}

func listFlightKey(key ListKey) string {
	return fmt.Sprintf("posts:%d:%d", key.Page, key.Limit)
}

// fetchList joins or starts the shared fetch for key and waits for it, or
// for ctx to end. The fetch itself runs detached from ctx.
func (r *Repository) fetchList(ctx context.Context, key ListKey) ([]post.Post, error) {
	ch := r.group.DoChan(listFlightKey(key), func() (any, error) {
		return r.loadList(context.WithoutCancel(ctx), key)
	})
	if r.joined != nil {
		r.joined()
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// Read back through the cache so pending placeholders show.
		if posts, _, ok := r.cache.List(key); ok {
			return posts, nil
		}
		return res.Val.([]post.Post), nil
	}
}

func (r *Repository) loadList(ctx context.Context, key ListKey) ([]post.Post, error) {
	version := r.cache.Version(key)
	posts, err := r.boundary.Posts(ctx, key.Page, key.Limit)
	if err != nil {
		return nil, err
	}
	if !r.cache.PutList(key, posts, version, r.now()) {
		r.logger.Debug("discarding superseded list fetch",
			zap.Int("page", key.Page), zap.Int("limit", key.Limit))
	}
	return posts, nil
}

func (r *Repository) refresh(key ListKey) {
	r.bg.Add(1)
	ch := r.group.DoChan(listFlightKey(key), func() (any, error) {
		return r.loadList(context.Background(), key)
	})
	go func() {
		defer r.bg.Done()
		if res := <-ch; res.Err != nil {
			r.logger.Warn("background list refresh failed",
				zap.Int("page", key.Page), zap.Int("limit", key.Limit), zap.Error(res.Err))
		}
	}()
}

// Wait blocks until background refreshes have finished.
func (r *Repository) Wait() {
	r.bg.Wait()
}

// GetPost returns the post with id, or ErrNotFound.
func (r *Repository) GetPost(ctx context.Context, id string) (post.Post, error) {
	if id == "" || id == post.SentinelID {
		return post.Post{}, ErrNotFound
	}
	if r.policy != NetworkOnly {
		if p, ok := r.cache.Post(id); ok {
			return p, nil
		}
	}
	return r.FetchPost(ctx, id)
}

// FetchPost loads id from the boundary, bypassing the cache on the way in
// and updating it on the way out.
func (r *Repository) FetchPost(ctx context.Context, id string) (post.Post, error) {
	if id == "" || id == post.SentinelID {
		return post.Post{}, ErrNotFound
	}
	ch := r.group.DoChan("post:"+id, func() (any, error) {
		p, err := r.boundary.Post(context.WithoutCancel(ctx), id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, ErrNotFound
		}
		r.cache.PutPost(*p)
		return *p, nil
	})
	select {
	case <-ctx.Done():
		return post.Post{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return post.Post{}, res.Err
		}
		return res.Val.(post.Post), nil
	}
}

// CreatePost inserts a placeholder into every cached page-1 list, sends the
// mutation, and then either swaps in the server's post or removes the
// placeholder again.
func (r *Repository) CreatePost(ctx context.Context, d post.Draft) (post.Post, error) {
	tx := r.cache.Begin(post.Placeholder(d, r.now()))

	created, err := r.boundary.CreatePost(ctx, d)
	if err != nil {
		if rbErr := r.cache.Rollback(tx); rbErr != nil {
			r.logger.Error("rollback optimistic post", zap.Uint64("tx", tx.Seq()), zap.Error(rbErr))
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// The server may have stored the post anyway.
			r.invalidateFirstPages(tx)
		}
		return post.Post{}, &MutationError{Err: err}
	}

	if cErr := r.cache.Commit(tx, created, r.pageSize); cErr != nil {
		r.logger.Error("commit optimistic post",
			zap.Uint64("tx", tx.Seq()), zap.String("id", created.ID), zap.Error(cErr))
	}
	return created, nil
}

func (r *Repository) invalidateFirstPages(tx *Tx) {
	for _, key := range tx.keys {
		r.cache.Invalidate(key)
	}
	r.cache.Invalidate(ListKey{Page: 1, Limit: r.pageSize})
}
