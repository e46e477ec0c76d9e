package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/pubfront/devapi"
	"github.com/eringen/pubfront/validation"
)

type devAPIOptions struct {
	db   string
	addr string
}

func newDevAPICommand(rootOpts *rootOptions) *cobra.Command {
	opts := &devAPIOptions{}

	cmd := &cobra.Command{
		Use:   "devapi",
		Short: "Run a local SQLite-backed posts GraphQL API",
		Long: `Run a local stand-in for the posts GraphQL API at POST /graphql.

Example:
  pubfront devapi --db data/dev.db --addr :4000
  GRAPHQL_ENDPOINT=http://localhost:4000/graphql pubfront serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(rootOpts)
			if err != nil {
				return err
			}
			defer logger.Sync()
			return runDevAPI(cmd.Context(), opts, logger)
		},
	}

	cmd.Flags().StringVar(&opts.db, "db", "data/dev.db", "path to SQLite database")
	cmd.Flags().StringVar(&opts.addr, "addr", ":4000", "listen address")

	return cmd
}

func runDevAPI(ctx context.Context, opts *devAPIOptions, logger *zap.Logger) error {
	store, err := devapi.NewStore(opts.db)
	if err != nil {
		return err
	}
	defer store.Close()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	devapi.NewHandler(store, validation.New(), logger.Named("devapi")).RegisterRoutes(e)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		logger.Info("devapi listening", zap.String("addr", opts.addr), zap.String("db", opts.db))
		errc <- e.Start(opts.addr)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}
