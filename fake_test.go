package pubfront

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eringen/pubfront/post"
)

// fakeBoundary serves posts from memory. createGate holds CreatePost open
// so tests can look at the site while a submission is in flight.
type fakeBoundary struct {
	mu         sync.Mutex
	posts      []post.Post // newest first
	next       int
	listErr    error
	createErr  error
	createGate chan struct{}
	creating   chan struct{}
}

func newFakeBoundary(n int) *fakeBoundary {
	f := &fakeBoundary{creating: make(chan struct{}, 8)}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := n; i >= 1; i-- {
		f.posts = append(f.posts, post.Post{
			ID:            fmt.Sprintf("p%d", i),
			Title:         fmt.Sprintf("Post number %d", i),
			Body:          "First paragraph.\n\nSecond paragraph.",
			Author:        "Ann",
			PublishedDate: base.Add(time.Duration(i) * 24 * time.Hour),
		})
	}
	f.next = n
	return f
}

func (f *fakeBoundary) Posts(ctx context.Context, page, limit int) ([]post.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	start := (page - 1) * limit
	if start >= len(f.posts) {
		return []post.Post{}, nil
	}
	end := min(start+limit, len(f.posts))
	return append([]post.Post(nil), f.posts[start:end]...), nil
}

func (f *fakeBoundary) Post(ctx context.Context, id string) (*post.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakeBoundary) CreatePost(ctx context.Context, d post.Draft) (post.Post, error) {
	f.mu.Lock()
	gate, err := f.createGate, f.createErr
	f.mu.Unlock()
	f.creating <- struct{}{}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return post.Post{}, ctx.Err()
		}
	}
	if err != nil {
		return post.Post{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	p := post.Post{
		ID:            fmt.Sprintf("p%d", f.next),
		Title:         d.Title,
		Body:          d.Body,
		Author:        d.Author,
		PublishedDate: time.Date(2024, 6, 1, 0, 0, f.next, 0, time.UTC),
	}
	f.posts = append([]post.Post{p}, f.posts...)
	return p, nil
}
