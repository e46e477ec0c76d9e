package pubfront

import (
	"net/url"
	"path"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/eringen/pubfront/post"
)

// BuildURL joins a base URL with path segments, ensuring a trailing slash.
func BuildURL(base string, pathSegments ...string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	u.Path = path.Join(u.Path, path.Join(pathSegments...))
	if len(pathSegments) > 0 && !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u.String()
}

// parseDraft reads the creation form fields, trimmed.
func parseDraft(c echo.Context) post.Draft {
	return post.Draft{
		Title:  strings.TrimSpace(c.FormValue("title")),
		Body:   strings.TrimSpace(c.FormValue("body")),
		Author: strings.TrimSpace(c.FormValue("author")),
	}
}
