package creation

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Forms keeps one Controller per rendered form, keyed by the form id
// embedded in the page. A succeeded form stays registered until it expires,
// so a repeated submission of it returns the post already created.
type Forms struct {
	mu    sync.Mutex
	forms *expirable.LRU[string, *Controller]
	build func() *Controller
}

// NewForms returns a registry holding up to size forms for ttl each. build
// constructs the controller for a newly seen form id.
func NewForms(size int, ttl time.Duration, build func() *Controller) *Forms {
	return &Forms{
		forms: expirable.NewLRU[string, *Controller](size, nil, ttl),
		build: build,
	}
}

// NewID returns a fresh form id.
func (f *Forms) NewID() string {
	return uuid.NewString()
}

// Get returns the controller for id, creating it if needed. An empty or
// malformed id gets a new id.
func (f *Forms) Get(id string) (string, *Controller) {
	if _, err := uuid.Parse(id); err != nil {
		id = f.NewID()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.forms.Get(id); ok {
		return id, c
	}
	c := f.build()
	f.forms.Add(id, c)
	return id, c
}
