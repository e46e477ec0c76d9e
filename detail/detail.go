// Package detail generates post pages ahead of requests and keeps them
// fresh: a page older than the revalidation window is still served while a
// new copy is built in the background, and a page that was never built is
// generated while the caller waits.
package detail

import (
	"context"
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/eringen/pubfront/post"
	"github.com/eringen/pubfront/repository"
)

// ErrNotFound is returned when no post exists for an id.
var ErrNotFound = repository.ErrNotFound

// Source is what pages are generated from.
type Source interface {
	FetchPost(ctx context.Context, id string) (post.Post, error)
	ListPosts(ctx context.Context, page, limit int) ([]post.Post, error)
}

// Page is a generated post page.
type Page struct {
	Post        post.Post
	GeneratedAt time.Time
}

const (
	// DefaultRevalidate is how long a page is served before it is rebuilt.
	DefaultRevalidate = 10 * time.Second
	// DefaultCapacity bounds the number of pages kept.
	DefaultCapacity = 1024
)

// Generator builds and serves post pages.
type Generator struct {
	source     Source
	pages      *lru.Cache[string, Page]
	group      singleflight.Group
	revalidate time.Duration
	capacity   int
	now        func() time.Time
	logger     *zap.Logger
	bg         sync.WaitGroup

	joined func() // called once a caller waits on a blocking generation
}

// Option configures a Generator.
type Option func(*Generator)

// WithRevalidate sets the staleness window.
func WithRevalidate(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.revalidate = d
		}
	}
}

// WithCapacity sets how many pages are kept.
func WithCapacity(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.capacity = n
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		g.now = now
	}
}

// WithLogger sets the logger for background regeneration.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		g.logger = l
	}
}

// NewGenerator returns a Generator reading from src.
func NewGenerator(src Source, opts ...Option) *Generator {
	g := &Generator{
		source:     src,
		revalidate: DefaultRevalidate,
		capacity:   DefaultCapacity,
		now:        time.Now,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	pages, err := lru.New[string, Page](g.capacity)
	if err != nil {
		// Only reachable with a non-positive size, which the options prevent.
		panic(err)
	}
	g.pages = pages
	return g
}

// Revalidate returns the staleness window.
func (g *Generator) Revalidate() time.Duration { return g.revalidate }

// Resolve returns the page for id.
func (g *Generator) Resolve(ctx context.Context, id string) (Page, error) {
	if id == "" || id == post.SentinelID {
		return Page{}, ErrNotFound
	}
	if page, ok := g.pages.Get(id); ok {
		if g.now().Sub(page.GeneratedAt) >= g.revalidate {
			g.regenerate(id)
		}
		return page, nil
	}

	// Blocking fallback: nothing built yet for id.
	ch := g.group.DoChan(id, func() (any, error) {
		return g.generate(context.WithoutCancel(ctx), id)
	})
	if g.joined != nil {
		g.joined()
	}
	select {
	case <-ctx.Done():
		return Page{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Page{}, res.Err
		}
		return res.Val.(Page), nil
	}
}

func (g *Generator) generate(ctx context.Context, id string) (Page, error) {
	p, err := g.source.FetchPost(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			g.pages.Remove(id)
		}
		return Page{}, err
	}
	page := Page{Post: p, GeneratedAt: g.now()}
	g.pages.Add(id, page)
	return page, nil
}

func (g *Generator) regenerate(id string) {
	g.bg.Add(1)
	ch := g.group.DoChan(id, func() (any, error) {
		return g.generate(context.Background(), id)
	})
	go func() {
		defer g.bg.Done()
		res := <-ch
		switch {
		case res.Err == nil:
		case errors.Is(res.Err, ErrNotFound):
			g.logger.Info("post gone, dropped page", zap.String("id", id))
		default:
			// The stale page stays in place until a rebuild succeeds.
			g.logger.Warn("regenerate post page", zap.String("id", id), zap.Error(res.Err))
		}
	}()
}

// Prebuild generates pages for the newest limit posts from a single list
// query and returns how many were built.
func (g *Generator) Prebuild(ctx context.Context, limit int) (int, error) {
	posts, err := g.source.ListPosts(ctx, 1, limit)
	if err != nil {
		return 0, err
	}
	built := 0
	now := g.now()
	for _, p := range posts {
		if p.Pending() {
			continue
		}
		g.pages.Add(p.ID, Page{Post: p, GeneratedAt: now})
		built++
	}
	return built, nil
}

// Wait blocks until background regenerations finish.
func (g *Generator) Wait() {
	g.bg.Wait()
}
