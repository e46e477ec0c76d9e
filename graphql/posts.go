package graphql

import (
	"context"
	"fmt"
	"time"

	"github.com/eringen/pubfront/post"
)

const postFields = `id title body author publishedDate`

const (
	getPostsQuery = `query GetPosts($page: Int!, $limit: Int!) {
  posts(page: $page, limit: $limit) { ` + postFields + ` }
}`
	getPostQuery = `query GetPost($id: ID!) {
  post(id: $id) { ` + postFields + ` }
}`
	createPostMutation = `mutation CreatePost($title: String!, $body: String!, $author: String!) {
  createPost(title: $title, body: $body, author: $author) { ` + postFields + ` }
}`
)

// PostJSON is the wire shape of the Post type.
type PostJSON struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Body          string `json:"body"`
	Author        string `json:"author"`
	PublishedDate string `json:"publishedDate"`
}

// ToPost converts the wire shape into a post.Post.
func (p PostJSON) ToPost() (post.Post, error) {
	if p.ID == "" {
		return post.Post{}, fmt.Errorf("%w: post without id", ErrMalformedResponse)
	}
	published, err := time.Parse(time.RFC3339, p.PublishedDate)
	if err != nil {
		return post.Post{}, fmt.Errorf("%w: post %s: publishedDate: %v", ErrMalformedResponse, p.ID, err)
	}
	return post.Post{
		ID:            p.ID,
		Title:         p.Title,
		Body:          p.Body,
		Author:        p.Author,
		PublishedDate: published,
	}, nil
}

// FromPost converts p into its wire shape.
func FromPost(p post.Post) PostJSON {
	return PostJSON{
		ID:            p.ID,
		Title:         p.Title,
		Body:          p.Body,
		Author:        p.Author,
		PublishedDate: p.PublishedDate.UTC().Format(time.RFC3339Nano),
	}
}

// PostsAPI binds the post operations of the boundary to a Client.
type PostsAPI struct {
	client *Client
}

// NewPostsAPI returns a PostsAPI using c.
func NewPostsAPI(c *Client) *PostsAPI {
	return &PostsAPI{client: c}
}

// Posts runs posts(page, limit).
func (a *PostsAPI) Posts(ctx context.Context, page, limit int) ([]post.Post, error) {
	var data struct {
		Posts []PostJSON `json:"posts"`
	}
	err := a.client.Do(ctx, Request{
		Query:         getPostsQuery,
		OperationName: "GetPosts",
		Variables:     map[string]any{"page": page, "limit": limit},
	}, &data)
	if err != nil {
		return nil, err
	}
	posts := make([]post.Post, 0, len(data.Posts))
	for _, pj := range data.Posts {
		p, err := pj.ToPost()
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, nil
}

// Post runs post(id). A null result yields nil, nil.
func (a *PostsAPI) Post(ctx context.Context, id string) (*post.Post, error) {
	var data struct {
		Post *PostJSON `json:"post"`
	}
	err := a.client.Do(ctx, Request{
		Query:         getPostQuery,
		OperationName: "GetPost",
		Variables:     map[string]any{"id": id},
	}, &data)
	if err != nil {
		return nil, err
	}
	if data.Post == nil {
		return nil, nil
	}
	p, err := data.Post.ToPost()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePost runs the createPost mutation.
func (a *PostsAPI) CreatePost(ctx context.Context, d post.Draft) (post.Post, error) {
	var data struct {
		CreatePost *PostJSON `json:"createPost"`
	}
	err := a.client.Do(ctx, Request{
		Query:         createPostMutation,
		OperationName: "CreatePost",
		Variables:     map[string]any{"title": d.Title, "body": d.Body, "author": d.Author},
	}, &data)
	if err != nil {
		return post.Post{}, err
	}
	if data.CreatePost == nil {
		return post.Post{}, fmt.Errorf("%w: CreatePost: null result", ErrMalformedResponse)
	}
	return data.CreatePost.ToPost()
}
