// Package pubfront is the web front-end of a blog whose posts live behind a
// GraphQL API. It renders a paginated post list, pre-generated post pages
// and a creation form, built with Go, Echo, and templ.
//
// Views are templ components supplied through ViewFuncs; DefaultViews
// provides a stock set.
package pubfront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/eringen/pubfront/creation"
	"github.com/eringen/pubfront/detail"
	"github.com/eringen/pubfront/graphql"
	"github.com/eringen/pubfront/repository"
	"github.com/eringen/pubfront/validation"
	"github.com/eringen/pubfront/views"
)

const (
	formCapacity = 1024
	formTTL      = 30 * time.Minute
)

// App is the central pubfront application. It wires together the
// repository, page generator, creation forms, handlers, and middleware.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Repo   *repository.Repository
	Pages  *detail.Generator
	Forms  *creation.Forms
	Views  ViewFuncs

	boundary      repository.Boundary
	policy        *validation.Policy
	submitLimiter *SubmitLimiter
	logger        *zap.Logger
	customRoutes  []func(*App)
	staticDir     string

	setupOnce sync.Once
	setupErr  error
}

// New creates a new pubfront App with the given configuration and view
// functions. Missing views fall back to DefaultViews.
func New(cfg SiteConfig, v ViewFuncs, opts ...Option) *App {
	cfg.setDefaults()
	v.fillDefaults()

	a := &App{
		Config:    cfg,
		Echo:      echo.New(),
		Views:     v,
		staticDir: "public",
		logger:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(a)
	}

	a.Echo.HideBanner = true
	return a
}

// Setup builds the repository, generator, middleware, and routes. Start
// calls it; tests call it directly and drive a.Echo.
func (a *App) Setup() error {
	a.setupOnce.Do(func() {
		a.setupErr = a.setup()
	})
	return a.setupErr
}

func (a *App) setup() error {
	if a.Config.SessionSecret == "" {
		return fmt.Errorf("pubfront: SessionSecret is required")
	}
	if a.boundary == nil {
		if a.Config.GraphQLEndpoint == "" {
			return fmt.Errorf("pubfront: GraphQLEndpoint is required")
		}
		a.boundary = graphql.NewPostsAPI(graphql.NewClient(a.Config.GraphQLEndpoint))
	}

	a.Repo = repository.New(a.boundary,
		repository.WithPageSize(a.Config.PageSize),
		repository.WithMaxAge(a.Config.Revalidate),
		repository.WithLogger(a.logger.Named("repository")),
	)
	a.Pages = detail.NewGenerator(a.Repo,
		detail.WithRevalidate(a.Config.Revalidate),
		detail.WithLogger(a.logger.Named("detail")),
	)
	a.policy = validation.New()
	a.Forms = creation.NewForms(formCapacity, formTTL, func() *creation.Controller {
		return creation.New(a.Repo, a.policy, creation.WithLogger(a.logger.Named("creation")))
	})
	a.submitLimiter = NewSubmitLimiter(a.Config.SubmitLimit, a.Config.SubmitWindow)

	a.setupMiddleware()
	a.setupRoutes()

	for _, fn := range a.customRoutes {
		fn(a)
	}
	return nil
}

// Start sets the app up, builds the first post pages in the background,
// and serves until ctx is cancelled.
func (a *App) Start(ctx context.Context) error {
	if err := a.Setup(); err != nil {
		return err
	}

	if a.Config.PrebuildLimit > 0 {
		go func() {
			n, err := a.Pages.Prebuild(ctx, a.Config.PrebuildLimit)
			if err != nil {
				a.logger.Warn("prebuild post pages", zap.Int("built", n), zap.Error(err))
				return
			}
			a.logger.Info("prebuilt post pages", zap.Int("built", n))
		}()
	}

	errc := make(chan error, 1)
	go func() {
		a.logger.Info("listening", zap.String("addr", a.Config.Addr))
		errc <- a.Echo.Start(a.Config.Addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Echo.Shutdown(shutdownCtx)
	}
}

func (a *App) setupRoutes() {
	e := a.Echo

	// User's static assets; styles.css falls back to the embedded copy.
	e.GET("/public/styles.css", a.handleStyles)
	e.Static("/public", a.staticDir)
	e.GET("/favicon.svg", a.handleFavicon)
	e.GET("/robots.txt", a.handleRobots)

	e.GET("/sitemap.xml", a.handleSitemap)
	e.GET("/feed.xml", a.handleFeed)
	e.GET("/", a.handleHome)
	e.POST("/page/prev/", a.handlePrevPage)
	e.POST("/page/next/", a.handleNextPage)
	e.GET("/posts/:id/", a.handlePost)
	e.GET("/create/", a.handleCreateForm)
	e.POST("/create/", a.handleCreate)
}

// Close waits for background refreshes to finish. Call this when the app
// is shutting down.
func (a *App) Close() error {
	if a.Repo != nil {
		a.Repo.Wait()
	}
	if a.Pages != nil {
		a.Pages.Wait()
	}
	if a.submitLimiter != nil {
		a.submitLimiter.Stop()
	}
	return nil
}

func (a *App) siteConfig() views.SiteConfig {
	return views.SiteConfig{
		Name:        a.Config.Name,
		URL:         a.Config.URL,
		Description: a.Config.Description,
	}
}

// EnvOr returns the value of the environment variable key, or fallback if empty.
func EnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// MustEnv returns the value of the environment variable key, or an error
// naming it if it is empty.
func MustEnv(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("pubfront: required environment variable %s is not set", key)
	}
	return v, nil
}
