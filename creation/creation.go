// Package creation implements the post form's submit flow: validate, send
// through the repository, and report the outcome without losing input.
package creation

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/eringen/pubfront/post"
	"github.com/eringen/pubfront/validation"
)

// ErrSubmitInFlight is returned when a form is submitted again before the
// previous submission has settled.
var ErrSubmitInFlight = errors.New("a submission is already in progress")

// Creator sends a new post.
type Creator interface {
	CreatePost(ctx context.Context, d post.Draft) (post.Post, error)
}

// Phase is the form's state.
type Phase int

// Editing and Failed both accept a new Submit. Failed keeps the values and
// the error of the last attempt.
const (
	Editing Phase = iota
	Validating
	Submitting
	Succeeded
	Failed
)

func (p Phase) String() string {
	switch p {
	case Editing:
		return "editing"
	case Validating:
		return "validating"
	case Submitting:
		return "submitting"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// State is a snapshot of one form.
type State struct {
	Phase      Phase
	Values     post.Draft
	Violations validation.Errors
	Err        error // last submission failure
	Created    post.Post
}

// Controller is the state machine of one form instance.
type Controller struct {
	mu      sync.Mutex
	creator Creator
	policy  *validation.Policy
	logger  *zap.Logger
	state   State
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger for failed submissions.
func WithLogger(l *zap.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// New returns a Controller in the Editing phase.
func New(cr Creator, policy *validation.Policy, opts ...Option) *Controller {
	c := &Controller{
		creator: cr,
		policy:  policy,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit validates d and, if it passes, creates the post. On violations it
// returns validation.Errors and the form is in Editing; on a failed creation
// it returns that error and the form is in Failed. d is retained either way.
func (c *Controller) Submit(ctx context.Context, d post.Draft) (post.Post, error) {
	c.mu.Lock()
	switch c.state.Phase {
	case Submitting:
		c.mu.Unlock()
		return post.Post{}, ErrSubmitInFlight
	case Succeeded:
		p := c.state.Created
		c.mu.Unlock()
		return p, nil
	}
	c.state.Phase = Validating
	c.state.Values = d
	c.state.Err = nil

	if violations := c.policy.Validate(d); violations != nil {
		c.state.Phase = Editing
		c.state.Violations = violations
		c.mu.Unlock()
		return post.Post{}, violations
	}
	c.state.Violations = nil
	c.state.Phase = Submitting
	c.mu.Unlock()

	created, err := c.creator.CreatePost(ctx, d)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Error("create post", zap.String("title", d.Title), zap.Error(err))
		c.state.Phase = Failed
		c.state.Err = err
		return post.Post{}, err
	}
	c.state.Phase = Succeeded
	c.state.Created = created
	return created, nil
}
