package main

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eringen/pubfront"
)

func newServeCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web front-end",
		Long: `Run the web front-end. Configuration comes from the environment
(or a .env file):

  GRAPHQL_ENDPOINT  posts API URL (required)
  SESSION_SECRET    cookie session secret (required)
  SITE_NAME, SITE_URL, SITE_DESCRIPTION, ADDR, COOKIE_SECURE,
  PAGE_SIZE, REVALIDATE (e.g. 10s)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(rootOpts)
			if err != nil {
				return err
			}
			defer logger.Sync()

			cfg, err := configFromEnv()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app := pubfront.New(cfg, pubfront.DefaultViews(), pubfront.WithLogger(logger))
			defer app.Close()
			if err := app.Start(ctx); err != nil {
				logger.Error("server stopped", zap.Error(err))
				return err
			}
			return nil
		},
	}
}

func configFromEnv() (pubfront.SiteConfig, error) {
	endpoint, err := pubfront.MustEnv("GRAPHQL_ENDPOINT")
	if err != nil {
		return pubfront.SiteConfig{}, err
	}
	secret, err := pubfront.MustEnv("SESSION_SECRET")
	if err != nil {
		return pubfront.SiteConfig{}, err
	}
	cfg := pubfront.SiteConfig{
		Name:            pubfront.EnvOr("SITE_NAME", "Blog"),
		URL:             pubfront.EnvOr("SITE_URL", "http://localhost:3000"),
		Description:     pubfront.EnvOr("SITE_DESCRIPTION", ""),
		Addr:            pubfront.EnvOr("ADDR", ":3000"),
		GraphQLEndpoint: endpoint,
		SessionSecret:   secret,
		CookieSecure:    pubfront.EnvOr("COOKIE_SECURE", "false") == "true",
	}
	if v := pubfront.EnvOr("PAGE_SIZE", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return cfg, fmt.Errorf("PAGE_SIZE: want a positive integer, got %q", v)
		}
		cfg.PageSize = n
	}
	if v := pubfront.EnvOr("REVALIDATE", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("REVALIDATE: want a positive duration, got %q", v)
		}
		cfg.Revalidate = d
	}
	return cfg, nil
}
