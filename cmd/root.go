// Package cmd defines the CLI commands for the docs-discovery-console binary.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/docs-discovery-console/internal/app"
	"github.com/JakeFAU/docs-discovery-console/internal/config"
	"github.com/JakeFAU/docs-discovery-console/internal/orchestrator"
)

type appKeyType string

const appKey appKeyType = "app"

// App is what commands need from the application container. Tests inject
// their own factory.
type App interface {
	Controller() *orchestrator.Controller
	Logger() *zap.Logger
	Run(ctx context.Context) error
	Close(ctx context.Context) error
}

// newApp is the application factory.
var newApp = func(ctx context.Context, cfg *config.Config) (App, error) {
	a, err := app.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "docs-discovery-console",
		Short: "Discover documentation pages and crawl them into one markdown document.",
		Long: `docs-discovery-console drives a discovery/crawl backend: it finds the
pages reachable from a documentation URL, crawls a selection of them and
aggregates the extracted markdown into a single document.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a, err := newApp(cmd.Context(), &cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, a))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 15*time.Second)
			defer cancel()
			if err := a.Close(ctx); err != nil {
				return fmt.Errorf("close application: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML)")
	cmd.AddCommand(newServeCmd(), newRunCmd())
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	a, ok := ctx.Value(appKey).(App)
	if !ok || a == nil {
		return nil, errors.New("application services not initialized")
	}
	return a, nil
}

// Execute runs the root command with SIGINT/SIGTERM cancellation.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
