// Package cmd defines the urlfinder CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/urlfinder/internal/app"
	"github.com/JakeFAU/urlfinder/internal/config"
	"github.com/JakeFAU/urlfinder/internal/logging"
)

const closeTimeout = 5 * time.Second

// appKeyType is the key for storing the App in the command context.
type appKeyType string

const appKey appKeyType = "app"

// appFactory builds the service container. Tests swap it for one using a
// private Prometheus registry and a fake transport.
type appFactory func(cfg config.Config, logger *zap.Logger, opts app.Options) (*app.App, error)

type rootOptions struct {
	cfgFile    string
	domainMode bool
}

func newRootCmd(factory appFactory) *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "urlfinder",
		Short: "Resolve company names to their official website URLs.",
		Long: `urlfinder resolves company names (or bare domains) to a canonical website
URL by asking search engines in a fixed fallback order: Bing, then DuckDuckGo,
then Google. Batches run concurrently with bounded parallelism.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Builds the App once config and flags are parsed, before any RunE.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := factory(cfg, logger, app.Options{DomainMode: opts.domainMode})
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, err := resolveApp(cmd.Context()); err == nil {
				ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
				defer cancel()
				appInstance.Close(ctx)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (YAML)")
	cmd.PersistentFlags().BoolVar(&opts.domainMode, "domains", false,
		"treat inputs as domains and search for them verbatim")

	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

func resolveApp(ctx context.Context) (*app.App, error) {
	if ctx == nil {
		return nil, errors.New("application services not initialized")
	}
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd(app.New).Execute(); err != nil {
		zap.L().Error("command execution failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
