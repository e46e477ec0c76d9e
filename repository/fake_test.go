package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eringen/pubfront/post"
)

// fakeBoundary serves posts from memory. Calls can be held open with the
// gate channels to observe in-flight state.
type fakeBoundary struct {
	mu        sync.Mutex
	posts     []post.Post // newest first
	listCalls int
	getCalls  int
	next      int

	listGate   chan struct{}
	createGate chan struct{}
	listErr    error
	createErr  error
	started    chan struct{} // one send per Posts call
	creating   chan struct{} // one send per CreatePost call
}

func newFakeBoundary(n int) *fakeBoundary {
	f := &fakeBoundary{
		started:  make(chan struct{}, 16),
		creating: make(chan struct{}, 16),
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := n; i >= 1; i-- {
		f.posts = append(f.posts, post.Post{
			ID:            fmt.Sprintf("p%d", i),
			Title:         fmt.Sprintf("Post %d", i),
			Body:          "a body that is long enough",
			Author:        "Ann",
			PublishedDate: base.Add(time.Duration(i) * time.Hour),
		})
	}
	f.next = n
	return f
}

func (f *fakeBoundary) Posts(ctx context.Context, page, limit int) ([]post.Post, error) {
	f.mu.Lock()
	f.listCalls++
	gate, err, started := f.listGate, f.listErr, f.started
	f.mu.Unlock()
	started <- struct{}{}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
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
	f.getCalls++
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

// resetStarted drops signals from earlier Posts calls.
func (f *fakeBoundary) resetStarted() {
	f.mu.Lock()
	f.started = make(chan struct{}, 16)
	f.mu.Unlock()
}

func (f *fakeBoundary) calls() (list, get int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls, f.getCalls
}

func ids(posts []post.Post) []string {
	out := make([]string, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}
