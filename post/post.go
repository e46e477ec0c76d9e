// Package post defines the blog post entity shared by the boundary client,
// the cache and the views.
package post

import (
	"net/url"
	"time"
)

// SentinelID is the id carried by an optimistic placeholder until the
// server confirms the creation.
const SentinelID = "temp-id"

// Post is one published article. Posts are never mutated after creation.
type Post struct {
	ID            string
	Title         string
	Body          string
	Author        string
	PublishedDate time.Time
}

// Pending reports whether p is an unconfirmed placeholder.
func (p Post) Pending() bool {
	return p.ID == SentinelID
}

// Link returns the detail page path for p.
func (p Post) Link() string {
	return "/posts/" + url.PathEscape(p.ID) + "/"
}

// Draft holds the fields a user submits to create a post.
type Draft struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Author string `json:"author"`
}

// Placeholder builds the optimistic stand-in for d.
func Placeholder(d Draft, now time.Time) Post {
	return Post{
		ID:            SentinelID,
		Title:         d.Title,
		Body:          d.Body,
		Author:        d.Author,
		PublishedDate: now.UTC(),
	}
}
