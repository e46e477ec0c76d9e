package repository

import (
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/eringen/pubfront/post"
)

// ErrSettled is returned when a transaction is committed or rolled back twice.
var ErrSettled = errors.New("repository: transaction already settled")

// ListKey identifies one paginated list.
type ListKey struct {
	Page  int
	Limit int
}

type listEntry struct {
	ids       []string
	stale     bool
	fetchedAt time.Time
}

// Tx is the handle of one optimistic creation. It records where its
// placeholder was inserted so that it can be settled independently of any
// other creation in flight.
type Tx struct {
	seq         uint64
	placeholder post.Post
	keys        []ListKey
	settled     bool
}

// Seq returns the order in which tx was begun.
func (tx *Tx) Seq() uint64 { return tx.seq }

// Placeholder returns the optimistic record owned by tx.
func (tx *Tx) Placeholder() post.Post { return tx.placeholder }

// Cache is a normalized in-memory store: post records by id, lists as id
// sequences by key, and a stack of optimistic layers read on top of both.
// All mutation happens under one lock, so a reader never sees a partial
// settle.
type Cache struct {
	mu       sync.RWMutex
	posts    map[string]post.Post
	lists    map[ListKey]*listEntry
	versions map[ListKey]uint64
	layers   []*Tx // oldest first
	seq      uint64
	maxAge   time.Duration
	now      func() time.Time
}

// NewCache returns an empty Cache. A list fetched more than maxAge ago is
// reported as not fresh; maxAge <= 0 keeps lists fresh until invalidated.
func NewCache(maxAge time.Duration, now func() time.Time) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		posts:    make(map[string]post.Post),
		lists:    make(map[ListKey]*listEntry),
		versions: make(map[ListKey]uint64),
		maxAge:   maxAge,
		now:      now,
	}
}

// List returns the posts for key with pending placeholders applied, and
// whether the entry is fresh: not invalidated and younger than maxAge.
func (c *Cache) List(key ListKey) (posts []post.Post, fresh bool, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.lists[key]
	if !ok {
		return nil, false, false
	}
	return c.resolve(key, e), c.fresh(e), true
}

func (c *Cache) fresh(e *listEntry) bool {
	if e.stale {
		return false
	}
	return c.maxAge <= 0 || c.now().Sub(e.fetchedAt) < c.maxAge
}

func (c *Cache) resolve(key ListKey, e *listEntry) []post.Post {
	out := make([]post.Post, 0, len(e.ids)+len(c.layers))
	for i := len(c.layers) - 1; i >= 0; i-- {
		tx := c.layers[i]
		if slices.Contains(tx.keys, key) {
			out = append(out, tx.placeholder)
		}
	}
	for _, id := range e.ids {
		if p, ok := c.posts[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// IDs returns the authoritative id sequence stored for key, without
// placeholders.
func (c *Cache) IDs(key ListKey) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.lists[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(e.ids), true
}

// Post returns the record for id.
func (c *Cache) Post(id string) (post.Post, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.posts[id]
	return p, ok
}

// Version returns the write version of key. A fetch records it before going
// to the network and passes it back to PutList.
func (c *Cache) Version(key ListKey) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.versions[key]
}

// PutList stores a fetched list. It reports false and stores nothing if the
// key was written or invalidated since version was read, or if a pending
// placeholder covers the key: the server may already hold that post, and
// storing it would show it twice until the creation settles.
func (c *Cache) PutList(key ListKey, posts []post.Post, version uint64, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[key] != version || c.covered(key) {
		return false
	}
	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		c.posts[p.ID] = p
		if !slices.Contains(ids, p.ID) {
			ids = append(ids, p.ID)
		}
	}
	c.lists[key] = &listEntry{ids: ids, fetchedAt: now}
	c.versions[key]++
	return true
}

// PutPost stores a single record.
func (c *Cache) PutPost(p post.Post) {
	c.mu.Lock()
	c.posts[p.ID] = p
	c.mu.Unlock()
}

// Invalidate marks key stale so the next read refetches it.
func (c *Cache) Invalidate(key ListKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.lists[key]; ok {
		e.stale = true
	}
	c.versions[key]++
}

func (c *Cache) covered(key ListKey) bool {
	for _, tx := range c.layers {
		if slices.Contains(tx.keys, key) {
			return true
		}
	}
	return false
}

// Begin prepends placeholder to every cached page-1 list and returns the
// handle that owns it. Fetches of those lists already in flight are
// superseded.
func (c *Cache) Begin(placeholder post.Post) *Tx {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	tx := &Tx{seq: c.seq, placeholder: placeholder}
	for key := range c.lists {
		if key.Page == 1 {
			tx.keys = append(tx.keys, key)
			c.versions[key]++
		}
	}
	slices.SortFunc(tx.keys, func(a, b ListKey) int { return a.Limit - b.Limit })
	c.layers = append(c.layers, tx)
	return tx
}

// Commit replaces tx's placeholder with p in every list it was inserted
// into, keeping each list at most key.Limit long. A missing (1, pageSize)
// entry is created holding only p but marked stale, so it is served once
// and then refetched. Every other cached list is invalidated, since the new
// post shifts later pages and pages of other sizes.
func (c *Cache) Commit(tx *Tx, p post.Post, pageSize int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dropLayer(tx) {
		return ErrSettled
	}
	c.posts[p.ID] = p

	keys := tx.keys
	home := ListKey{Page: 1, Limit: pageSize}
	if _, ok := c.lists[home]; !ok && !slices.Contains(keys, home) {
		c.lists[home] = &listEntry{stale: true}
		keys = append(slices.Clone(keys), home)
	}
	for _, key := range keys {
		e := c.lists[key]
		ids := make([]string, 0, len(e.ids)+1)
		ids = append(ids, p.ID)
		for _, id := range e.ids {
			if id != p.ID {
				ids = append(ids, id)
			}
		}
		if key.Limit > 0 && len(ids) > key.Limit {
			ids = ids[:key.Limit]
		}
		e.ids = ids
		c.versions[key]++
	}
	for key, e := range c.lists {
		if !slices.Contains(keys, key) {
			e.stale = true
			c.versions[key]++
		}
	}
	return nil
}

// Rollback removes tx's placeholder, leaving the lists as they were before
// Begin.
func (c *Cache) Rollback(tx *Tx) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.dropLayer(tx) {
		return ErrSettled
	}
	return nil
}

func (c *Cache) dropLayer(tx *Tx) bool {
	if tx == nil || tx.settled {
		return false
	}
	i := slices.Index(c.layers, tx)
	if i < 0 {
		return false
	}
	c.layers = slices.Delete(c.layers, i, i+1)
	tx.settled = true
	return true
}

// Pending returns the number of unsettled transactions.
func (c *Cache) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.layers)
}
