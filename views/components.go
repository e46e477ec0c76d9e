package views

import (
	"encoding/json"
	"strconv"

	"github.com/a-h/templ"

	"github.com/eringen/pubfront/detail"
	"github.com/eringen/pubfront/listview"
	"github.com/eringen/pubfront/post"
	"github.com/eringen/pubfront/validation"
)

// jsonLD writes a JSON-LD block. json.Marshal escapes <, > and &, so the
// payload cannot close the script element.
func jsonLD(h *htmlWriter, payload string) {
	h.raw(`<script type="application/ld+json">`, payload, `</script>`)
}

// Layout wraps body in the page shell. active is the path of the current
// nav entry.
func Layout(cfg SiteConfig, meta PageMeta, active, csrf string, body templ.Component) templ.Component {
	return component(func(h *htmlWriter) {
		title := cfg.Name
		if meta.Title != "" {
			title = meta.Title + " | " + cfg.Name
		}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>`)
		h.text(title)
		h.raw(`</title>`)
		if meta.Description != "" {
			h.raw(`<meta name="description"`)
			h.attr("content", meta.Description)
			h.raw(`>`)
		}
		if meta.URL != "" {
			h.raw(`<link rel="canonical"`)
			h.href(meta.URL)
			h.raw(`><meta property="og:url"`)
			h.attr("content", string(templ.URL(meta.URL)))
			h.raw(`>`)
		}
		ogType := meta.OGType
		if ogType == "" {
			ogType = "website"
		}
		h.raw(`<meta property="og:type"`)
		h.attr("content", ogType)
		h.raw(`><meta property="og:title"`)
		h.attr("content", title)
		h.raw(`>`)
		h.raw(`<link rel="icon" href="/favicon.svg" type="image/svg+xml">`,
			`<link rel="stylesheet" href="/public/styles.css">`,
			`<link rel="alternate" type="application/rss+xml" href="/feed.xml">`,
			`<script src="/public/htmx.min.js" defer></script></head>`)
		headers, _ := json.Marshal(map[string]string{"X-CSRF-Token": csrf})
		h.raw(`<body`)
		h.attr("hx-headers", string(headers))
		h.raw(`>`)
		h.render(Header(active))
		h.raw(`<main class="container">`)
		h.render(body)
		h.raw(`</main></body></html>`)
	})
}

// Header renders the top navigation.
func Header(active string) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<header class="header"><nav class="nav">`)
		for _, link := range []struct{ href, label string }{{"/", "Home"}, {"/create/", "Create"}} {
			class := "nav-link"
			if link.href == active {
				class += " active"
			}
			h.raw(`<a`)
			h.href(link.href)
			h.attr("class", class)
			h.raw(`>`)
			h.text(link.label)
			h.raw(`</a>`)
		}
		h.raw(`</nav></header>`)
	})
}

// Home renders the list page with the posts section in its current state.
func Home(cfg SiteConfig, state listview.State, csrf string) templ.Component {
	body := component(func(h *htmlWriter) {
		jsonLD(h, WebsiteJsonLD(cfg))
		h.raw(`<h1 class="page-header">Blog Posts</h1><div id="posts">`)
		h.render(PostList(state, csrf))
		h.raw(`</div>`)
	})
	meta := PageMeta{Description: cfg.Description, URL: buildURL(cfg.URL)}
	return Layout(cfg, meta, "/", csrf, body)
}

// PostList renders the posts section: a loading shell that fetches itself,
// an error message, or the tiles. Pagination shows once a fetch settled.
func PostList(state listview.State, csrf string) templ.Component {
	return component(func(h *htmlWriter) {
		switch state.Phase {
		case listview.Loading:
			h.raw(`<div class="posts-loading" hx-get="/?partial=posts" hx-trigger="load" hx-target="#posts" hx-swap="innerHTML">`,
				`<p>Loading...</p></div>`)
			return
		case listview.Failed:
			msg := "unknown error"
			if state.Err != nil {
				msg = state.Err.Error()
			}
			h.raw(`<p class="error">Error: `)
			h.text(msg)
			h.raw(`</p>`)
		case listview.Ready:
			h.raw(`<div class="posts-container">`)
			if len(state.Posts) == 0 {
				h.raw(`<p class="empty">No posts on this page.</p>`)
			}
			for _, p := range state.Posts {
				h.render(Tile(p))
			}
			h.raw(`</div>`)
		}
		h.render(Pagination(state.Page, csrf))
	})
}

// Pagination renders the previous and next controls. Previous is disabled
// on the first page.
func Pagination(page int, csrf string) templ.Component {
	return component(func(h *htmlWriter) {
		h.raw(`<div class="pagination-container">`)
		for _, b := range []struct{ action, label string }{{"/page/prev/", "Previous"}, {"/page/next/", "Next"}} {
			h.raw(`<form method="post"`)
			h.attr("action", b.action)
			h.attr("hx-post", b.action)
			h.raw(` hx-target="#posts" hx-swap="innerHTML"><input type="hidden" name="_csrf"`)
			h.attr("value", csrf)
			h.raw(`><button type="submit" class="pagination-button"`)
			h.flag("disabled", b.label == "Previous" && page <= 1)
			h.raw(`>`)
			h.text(b.label)
			h.raw(`</button></form>`)
		}
		h.raw(`<span class="page-number">Page `)
		h.text(strconv.Itoa(page))
		h.raw(`</span></div>`)
	})
}

// Tile renders one post in the list. An unconfirmed placeholder has no link.
func Tile(p post.Post) templ.Component {
	return component(func(h *htmlWriter) {
		if p.Pending() {
			h.raw(`<div class="tile tile-pending"><h2 class="title">`)
			h.text(p.Title)
			h.raw(`</h2><p class="date">Publishing…</p></div>`)
			return
		}
		h.raw(`<div class="tile"><a`)
		h.href(p.Link())
		h.raw(`><h2 class="title">`)
		h.text(p.Title)
		h.raw(`</h2><p class="date">`)
		h.text(TileDate(p.PublishedDate))
		h.raw(`</p></a></div>`)
	})
}

// PostPage renders a generated post page.
func PostPage(cfg SiteConfig, page detail.Page, csrf string) templ.Component {
	p := page.Post
	body := component(func(h *htmlWriter) {
		jsonLD(h, BlogPostingJsonLD(p, cfg))
		h.raw(`<article class="post"><h1 class="title">`)
		h.text(p.Title)
		h.raw(`</h1><p class="author">By `)
		h.text(p.Author)
		h.raw(`</p><p class="date">`)
		h.text(PostDate(p.PublishedDate))
		h.raw(`</p><div class="body">`)
		h.render(Paragraphs(p.Body))
		h.raw(`</div></article>`)
	})
	meta := PageMeta{
		Title:  p.Title,
		URL:    buildURL(cfg.URL, "posts", p.ID),
		OGType: "article",
	}
	return Layout(cfg, meta, "", csrf, body)
}

type formField struct {
	name, label, placeholder, value string
	textarea                        bool
}

func (f formField) render(h *htmlWriter, errs map[string]string) {
	h.raw(`<div class="form-group"><label class="label"`)
	h.attr("for", f.name)
	h.raw(`>`)
	h.text(f.label)
	h.raw(`</label>`)
	if f.textarea {
		h.raw(`<textarea`)
	} else {
		h.raw(`<input`)
	}
	base := "input"
	if f.textarea {
		base = "textarea"
	}
	h.attr("id", f.name)
	h.attr("name", f.name)
	h.attr("class", FieldClass(base, errs, f.name))
	h.attr("placeholder", f.placeholder)
	if f.textarea {
		h.raw(`>`)
		h.text(f.value)
		h.raw(`</textarea>`)
	} else {
		h.attr("value", f.value)
		h.raw(`>`)
	}
	if msg, ok := errs[f.name]; ok {
		h.raw(`<p class="error">`)
		h.text(msg)
		h.raw(`</p>`)
	}
	h.raw(`</div>`)
}

// CreateForm renders the post creation form with any violations inline.
func CreateForm(cfg SiteConfig, f Form) templ.Component {
	body := component(func(h *htmlWriter) {
		h.raw(`<h1 class="page-header">Create a New Blog Post</h1>`,
			`<p class="description">Fill in the details below to create a new blog post.</p>`)
		if f.Message != "" {
			h.raw(`<p class="error form-error" role="alert">`)
			h.text(f.Message)
			h.raw(`</p>`)
		}
		h.raw(`<form method="post" action="/create/" class="form" onsubmit="this.querySelector('button[type=submit]').disabled=true">`)
		h.raw(`<input type="hidden" name="_csrf"`)
		h.attr("value", f.CSRF)
		h.raw(`><input type="hidden" name="form_id"`)
		h.attr("value", f.ID)
		h.raw(`>`)

		fields := []formField{
			{name: validation.FieldTitle, label: "Title", placeholder: "Enter the blog title", value: f.Values.Title},
			{name: validation.FieldBody, label: "Body", placeholder: "Write your blog content here...", value: f.Values.Body, textarea: true},
			{name: validation.FieldAuthor, label: "Author", placeholder: "Enter the author's name", value: f.Values.Author},
		}
		for _, field := range fields {
			field.render(h, f.Errors)
		}

		h.raw(`<button class="button" type="submit">Submit Post</button></form>`)
	})
	return Layout(cfg, PageMeta{Title: "Create"}, "/create/", f.CSRF, body)
}

// NotFound renders the 404 page.
func NotFound(cfg SiteConfig) templ.Component {
	body := component(func(h *htmlWriter) {
		h.raw(`<h1 class="page-header">Post not found</h1>`,
			`<p>The page you are looking for does not exist. <a href="/">Back to all posts</a></p>`)
	})
	return Layout(cfg, PageMeta{Title: "Not found"}, "", "", body)
}

// ServerError renders the 5xx page.
func ServerError(cfg SiteConfig) templ.Component {
	body := component(func(h *htmlWriter) {
		h.raw(`<h1 class="page-header">Something went wrong</h1>`,
			`<p>The blog could not be reached right now. Please try again.</p>`)
	})
	return Layout(cfg, PageMeta{Title: "Error"}, "", "", body)
}
