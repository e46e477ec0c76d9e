package pubfront

import (
	"time"

	"go.uber.org/zap"

	"github.com/eringen/pubfront/repository"
)

// SiteConfig holds all configuration for a pubfront site.
type SiteConfig struct {
	Name        string // Site name (default "Blog")
	URL         string // Canonical URL (default "http://localhost:3000")
	Description string // Site description for RSS and meta tags

	Addr            string // Listen address (default ":3000")
	GraphQLEndpoint string // Required: URL of the posts GraphQL API

	SessionSecret string // Required: session encryption secret
	CookieSecure  bool   // Set true for HTTPS

	PageSize      int           // Posts per list page (default 5)
	Revalidate    time.Duration // Post page revalidation window (default 10s)
	PrebuildLimit int           // Post pages built at startup (default 100)
	FeedSize      int           // Posts in feed.xml and sitemap.xml (default 20)

	SubmitLimit  int           // Create submissions per IP per window (default 10)
	SubmitWindow time.Duration // (default 1min)
}

func (c *SiteConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "Blog"
	}
	if c.URL == "" {
		c.URL = "http://localhost:3000"
	}
	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.PageSize <= 0 {
		c.PageSize = repository.DefaultPageSize
	}
	if c.Revalidate <= 0 {
		c.Revalidate = 10 * time.Second
	}
	if c.PrebuildLimit == 0 {
		c.PrebuildLimit = 100
	}
	if c.FeedSize <= 0 {
		c.FeedSize = 20
	}
	if c.SubmitLimit <= 0 {
		c.SubmitLimit = 10
	}
	if c.SubmitWindow <= 0 {
		c.SubmitWindow = time.Minute
	}
}

// Option configures additional App behavior.
type Option func(*App)

// WithCustomRoutes registers additional routes on the Echo instance.
// The callback receives the App after the built-in routes are set up.
func WithCustomRoutes(fn func(*App)) Option {
	return func(a *App) {
		a.customRoutes = append(a.customRoutes, fn)
	}
}

// WithStaticDir sets the directory for user-owned static assets (default "public").
func WithStaticDir(dir string) Option {
	return func(a *App) {
		a.staticDir = dir
	}
}

// WithLogger sets the logger shared by the app and everything it builds.
func WithLogger(l *zap.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithBoundary replaces the GraphQL client with b. GraphQLEndpoint is then
// not required.
func WithBoundary(b repository.Boundary) Option {
	return func(a *App) {
		a.boundary = b
	}
}
