// Package listview drives the paginated post list: it holds the current
// page and turns each fetch into one of three render states.
package listview

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/eringen/pubfront/post"
)

// Lister is the part of the repository the list view reads from.
type Lister interface {
	ListPosts(ctx context.Context, page, limit int) ([]post.Post, error)
	PeekPosts(page, limit int) ([]post.Post, bool)
}

// Phase is the render state of the list. Exactly one holds at a time.
type Phase int

const (
	Loading Phase = iota
	Failed
	Ready
)

func (p Phase) String() string {
	switch p {
	case Loading:
		return "loading"
	case Failed:
		return "failed"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// State is a snapshot of the controller.
type State struct {
	Phase Phase
	Page  int
	Limit int
	Posts []post.Post
	Err   error
}

// DefaultLimit is the fixed page size of the list view.
const DefaultLimit = 5

// Controller holds the list view's page and last result.
type Controller struct {
	mu     sync.Mutex
	lister Lister
	limit  int
	state  State
	seq    uint64
	logger *zap.Logger
}

// Option configures a Controller.
type Option func(*Controller)

// WithPage starts the controller on page n. Values below 1 become 1.
func WithPage(n int) Option {
	return func(c *Controller) {
		c.state.Page = max(n, 1)
	}
}

// WithLimit sets the page size.
func WithLimit(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.limit = n
		}
	}
}

// WithLogger sets the logger for fetch failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// New returns a Controller on page 1 in the Loading state.
func New(l Lister, opts ...Option) *Controller {
	c := &Controller{
		lister: l,
		limit:  DefaultLimit,
		state:  State{Phase: Loading, Page: 1},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.Limit = c.limit
	return c
}

// Page returns the current page number.
func (c *Controller) Page() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Page
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Peek moves to Ready if the current page is cached, without fetching.
func (c *Controller) Peek() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if posts, ok := c.lister.PeekPosts(c.state.Page, c.limit); ok {
		c.state.Phase = Ready
		c.state.Posts = posts
		c.state.Err = nil
	}
	return c.state
}

// Load fetches the current page. A result that arrives after the page has
// changed, or after ctx is done, is dropped and the returned state is the
// one current at that time.
func (c *Controller) Load(ctx context.Context) State {
	c.mu.Lock()
	c.seq++
	seq, page := c.seq, c.state.Page
	c.state.Phase = Loading
	c.state.Posts = nil
	c.state.Err = nil
	c.mu.Unlock()

	posts, err := c.lister.ListPosts(ctx, page, c.limit)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq || ctx.Err() != nil {
		return c.state
	}
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("list posts", zap.Int("page", page), zap.Error(err))
		}
		c.state.Phase = Failed
		c.state.Err = err
		return c.state
	}
	c.state.Phase = Ready
	c.state.Posts = posts
	return c.state
}

// PreviousPage moves back one page and loads it. On page 1 it does nothing.
func (c *Controller) PreviousPage(ctx context.Context) State {
	c.mu.Lock()
	if c.state.Page <= 1 {
		s := c.state
		c.mu.Unlock()
		return s
	}
	c.state.Page--
	c.mu.Unlock()
	return c.Load(ctx)
}

// NextPage moves forward one page and loads it. There is no upper bound; a
// page past the end loads as an empty Ready list.
func (c *Controller) NextPage(ctx context.Context) State {
	c.mu.Lock()
	c.state.Page++
	c.mu.Unlock()
	return c.Load(ctx)
}
