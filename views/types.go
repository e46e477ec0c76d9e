package views

import "github.com/eringen/pubfront/post"

// SiteConfig holds the site-wide values every page template reads.
type SiteConfig struct {
	Name        string // SITE_NAME  (default "Blog")
	URL         string // SITE_URL   (default "http://localhost:3000")
	Description string // SITE_DESCRIPTION
}

// PageMeta carries per-page OpenGraph and SEO metadata into the <head> template.
type PageMeta struct {
	Title       string
	Description string
	URL         string // canonical + og:url
	OGType      string // "website" or "article"
}

// Form is the view model of the post creation form.
type Form struct {
	ID      string // form instance id, posted back as form_id
	CSRF    string
	Values  post.Draft
	Errors  map[string]string // per-field violations
	Message string            // form-level error banner
}
