package pubfront

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/pubfront/creation"
	"github.com/eringen/pubfront/detail"
	"github.com/eringen/pubfront/listview"
	"github.com/eringen/pubfront/post"
	"github.com/eringen/pubfront/validation"
	"github.com/eringen/pubfront/views"
)

func (a *App) listController(page int) *listview.Controller {
	return listview.New(a.Repo,
		listview.WithPage(page),
		listview.WithLimit(a.Config.PageSize),
		listview.WithLogger(a.logger.Named("listview")),
	)
}

// handleHome renders the list. A cached page renders straight away; on a
// miss the page ships a loading shell that requests ?partial=posts.
func (a *App) handleHome(c echo.Context) error {
	ctl := a.listController(listPage(c))
	csrf := CsrfToken(c)

	if c.QueryParam("partial") == "posts" {
		state := ctl.Load(c.Request().Context())
		if isHTMX(c) {
			return Render(c, a.Views.PostList(state, csrf))
		}
		return Render(c, a.Views.Home(a.siteConfig(), state, csrf))
	}
	return Render(c, a.Views.Home(a.siteConfig(), ctl.Peek(), csrf))
}

func (a *App) handlePrevPage(c echo.Context) error {
	ctl := a.listController(listPage(c))
	if !isHTMX(c) {
		return a.movePage(c, ctl.Page()-1)
	}
	state := ctl.PreviousPage(c.Request().Context())
	if state.Phase == listview.Loading {
		// Already on page 1: nothing was fetched.
		state = ctl.Load(c.Request().Context())
	}
	return a.renderPage(c, state)
}

func (a *App) handleNextPage(c echo.Context) error {
	ctl := a.listController(listPage(c))
	if !isHTMX(c) {
		return a.movePage(c, ctl.Page()+1)
	}
	return a.renderPage(c, ctl.NextPage(c.Request().Context()))
}

func (a *App) movePage(c echo.Context, page int) error {
	if err := setListPage(c, max(page, 1)); err != nil {
		return err
	}
	return c.Redirect(http.StatusSeeOther, "/")
}

func (a *App) renderPage(c echo.Context, state listview.State) error {
	if err := setListPage(c, state.Page); err != nil {
		return err
	}
	return Render(c, a.Views.PostList(state, CsrfToken(c)))
}

func (a *App) handlePost(c echo.Context) error {
	page, err := a.Pages.Resolve(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, detail.ErrNotFound) {
			c.Response().Header().Set("Cache-Control", "no-store")
			return RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.siteConfig()))
		}
		return err
	}
	return Render(c, a.Views.Post(a.siteConfig(), page, CsrfToken(c)))
}

func (a *App) handleCreateForm(c echo.Context) error {
	f := views.Form{ID: a.Forms.NewID(), CSRF: CsrfToken(c)}
	return Render(c, a.Views.CreateForm(a.siteConfig(), f))
}

func (a *App) handleCreate(c echo.Context) error {
	d := parseDraft(c)
	id, ctl := a.Forms.Get(c.FormValue("form_id"))
	f := views.Form{ID: id, CSRF: CsrfToken(c), Values: d}

	// Invalid drafts and repeats of a form that already succeeded never
	// reach the boundary, so they do not count against the limit.
	if violations := a.policy.Validate(d); violations != nil {
		f.Errors = violations
		return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.CreateForm(a.siteConfig(), f))
	}
	if ctl.State().Phase != creation.Succeeded && !a.submitLimiter.Allow(c.RealIP()) {
		f.Message = "Too many submissions. Please wait a minute and try again."
		return RenderStatus(c, http.StatusTooManyRequests, a.Views.CreateForm(a.siteConfig(), f))
	}

	created, err := ctl.Submit(c.Request().Context(), d)
	if err == nil {
		a.logger.Info("post created", zap.String("id", created.ID), zap.String("form", id))
		if err := setListPage(c, 1); err != nil {
			return err
		}
		return redirect(c, "/")
	}

	if violations, ok := validation.AsErrors(err); ok {
		f.Errors = violations
		return RenderStatus(c, http.StatusUnprocessableEntity, a.Views.CreateForm(a.siteConfig(), f))
	}
	if errors.Is(err, creation.ErrSubmitInFlight) {
		f.Message = "This post is already being submitted."
		return RenderStatus(c, http.StatusConflict, a.Views.CreateForm(a.siteConfig(), f))
	}
	f.Message = "Error creating post: " + err.Error()
	return RenderStatus(c, http.StatusBadGateway, a.Views.CreateForm(a.siteConfig(), f))
}

// feedPosts returns the newest confirmed posts.
func (a *App) feedPosts(c echo.Context) ([]post.Post, error) {
	posts, err := a.Repo.ListPosts(c.Request().Context(), 1, a.Config.FeedSize)
	if err != nil {
		return nil, err
	}
	out := make([]post.Post, 0, len(posts))
	for _, p := range posts {
		if !p.Pending() {
			out = append(out, p)
		}
	}
	return out, nil
}

func (a *App) handleSitemap(c echo.Context) error {
	posts, err := a.feedPosts(c)
	if err != nil {
		return err
	}
	return a.renderSitemap(c, posts)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.feedPosts(c)
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}

func (a *App) handleStyles(c echo.Context) error {
	local := filepath.Join(a.staticDir, "styles.css")
	if _, err := os.Stat(local); err == nil {
		return c.File(local)
	}
	b, err := fs.ReadFile(EmbeddedAssets, "embedded/styles.css")
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, "text/css; charset=utf-8", b)
}

func (a *App) handleFavicon(c echo.Context) error {
	return c.File(a.staticDir + "/favicon.svg")
}

func (a *App) handleRobots(c echo.Context) error {
	return c.File(a.staticDir + "/robots.txt")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	ok := errors.As(err, &he)
	if ok && he.Code == http.StatusNotFound {
		_ = RenderStatus(c, http.StatusNotFound, a.Views.NotFound(a.siteConfig()))
		return
	}
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		a.logger.Error("server error",
			zap.String("method", c.Request().Method),
			zap.String("uri", c.Request().RequestURI),
			zap.Error(err),
		)
		_ = RenderStatus(c, code, a.Views.ServerError(a.siteConfig()))
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
