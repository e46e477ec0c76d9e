package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// version is set at build time via ldflags.
var version = "dev"

type rootOptions struct {
	dev bool
}

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "pubfront",
		Short: "pubfront - a blog front-end for a GraphQL posts API",
		Long: `pubfront serves a paginated post list, pre-generated post pages and a
post creation form on top of a GraphQL posts API.

Examples:
  pubfront serve
  pubfront devapi --db data/dev.db --addr :4000`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVar(&opts.dev, "dev", false, "human-readable debug logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newDevAPICommand(opts))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the pubfront version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pubfront %s\n", version)
		},
	})

	return cmd
}

func newLogger(opts *rootOptions) (*zap.Logger, error) {
	if opts.dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
