// Package devapi is a small stand-in for the posts GraphQL API, backed by
// SQLite. It serves the three operations the front-end uses so the site can
// run and be tested without the real backend.
package devapi

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/eringen/pubfront/post"
)

// ErrNotFound is returned when a requested post does not exist.
var ErrNotFound = errors.New("devapi: post not found")

// timeLayout has a fixed width so published_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps a SQLite database holding posts.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and creates the schema.
func NewStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
	`); err != nil {
		db.Close()
		return nil, err
	}
	// One connection keeps :memory: databases shared across queries.
	db.SetMaxOpenConns(1)
	s := &Store{db: db, now: time.Now}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS posts (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    body TEXT NOT NULL,
    author TEXT NOT NULL,
    published_at TEXT NOT NULL
);
`)
	return err
}

// ListPosts returns one page of posts, newest first. Pages start at 1; a
// page past the end is empty.
func (s *Store) ListPosts(ctx context.Context, page, limit int) ([]post.Post, error) {
	if page < 1 || limit < 1 {
		return []post.Post{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, body, author, published_at FROM posts ORDER BY published_at DESC, seq DESC LIMIT ? OFFSET ?`,
		limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := []post.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// GetPost returns a single post by id.
func (s *Store) GetPost(ctx context.Context, id string) (post.Post, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, body, author, published_at FROM posts WHERE id = ?`, id)
	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return post.Post{}, ErrNotFound
	}
	return p, err
}

// CreatePost stores d under a new id, published now.
func (s *Store) CreatePost(ctx context.Context, d post.Draft) (post.Post, error) {
	p := post.Post{
		ID:            uuid.NewString(),
		Title:         d.Title,
		Body:          d.Body,
		Author:        d.Author,
		PublishedDate: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO posts (id, title, body, author, published_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Body, p.Author, p.PublishedDate.Format(timeLayout))
	if err != nil {
		return post.Post{}, err
	}
	return p, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(row scanner) (post.Post, error) {
	var p post.Post
	var published string
	if err := row.Scan(&p.ID, &p.Title, &p.Body, &p.Author, &published); err != nil {
		return post.Post{}, err
	}
	t, err := time.Parse(timeLayout, published)
	if err != nil {
		return post.Post{}, err
	}
	p.PublishedDate = t
	return p, nil
}
