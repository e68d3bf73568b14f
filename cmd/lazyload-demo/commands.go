package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gaborage/go-bricks-lazyload/app"
	"github.com/gaborage/go-bricks-lazyload/config"
	"github.com/gaborage/go-bricks-lazyload/internal/testmodel"
	"github.com/gaborage/go-bricks-lazyload/logger"
)

const defaultConfigPath = "config.yaml"

// Demo data volume created by serve --seed.
const (
	seedCustomers   = 5
	seedPerCustomer = 4
	seedPerInvoice  = 3
)

type serveOptions struct {
	ConfigPath string
	Seed       bool
}

func newServeCommand() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo until SIGINT or SIGTERM",
		Example: `  # Serve with defaults (no database, debug server off)
  lazyload-demo serve

  # Create and fill the billing tables first
  lazyload-demo serve -c config.yaml --seed`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", defaultConfigPath, "YAML configuration file; missing is allowed")
	cmd.Flags().BoolVar(&opts.Seed, "seed", false, "Create and populate the billing tables before serving")

	return cmd
}

func runServe(ctx context.Context, opts *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}

	if opts.Seed {
		if err := seedDatabase(ctx, a, log); err != nil {
			_ = a.Shutdown(context.Background())
			return err
		}
	}

	return a.Run(ctx)
}

func seedDatabase(ctx context.Context, a *app.App, log logger.Logger) error {
	db := a.DB()
	if db == nil {
		return errors.New("--seed requires a configured database")
	}

	if err := testmodel.CreateSchema(ctx, db); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if err := testmodel.Seed(ctx, db, seedCustomers, seedPerCustomer, seedPerInvoice); err != nil {
		return fmt.Errorf("failed to seed: %w", err)
	}

	log.Info().
		Int("customers", seedCustomers).
		Int("invoices_per_customer", seedPerCustomer).
		Int("items_per_invoice", seedPerInvoice).
		Msg("Seeded billing tables")
	return nil
}

func newValidateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration without starting anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), cfg)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "YAML configuration file; missing is allowed")
	return cmd
}

func printSummary(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Configuration valid for %s (%s)\n", cfg.App.Name, cfg.App.Env)

	if config.IsDatabaseConfigured(&cfg.Database) {
		fmt.Fprintf(w, "  database:  %s\n", cfg.Database.Type)
	} else {
		fmt.Fprintln(w, "  database:  none")
	}

	if cfg.LazyLoad.Enabled {
		fmt.Fprintf(w, "  lazyload:  enabled, flush every %s, proxies in %q, getters %q*\n",
			cfg.LazyLoad.FlushInterval, cfg.LazyLoad.ProxyPackage, cfg.LazyLoad.GetterPrefix)
	} else {
		fmt.Fprintln(w, "  lazyload:  disabled")
	}

	if cfg.Debug.Enabled {
		fmt.Fprintf(w, "  debug:     %s\n", cfg.Debug.Address)
	} else {
		fmt.Fprintln(w, "  debug:     disabled")
	}

	var sinks []string
	if cfg.Sinks.AMQP.URL != "" {
		sinks = append(sinks, "amqp")
	}
	if cfg.Sinks.Mongo.URI != "" {
		sinks = append(sinks, "mongo")
	}
	if cfg.Sinks.Redis.Address != "" {
		sinks = append(sinks, "redis")
	}
	fmt.Fprintf(w, "  sinks:     %v\n", sinks)
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lazyload-demo version %s\n", version)
			fmt.Fprintf(cmd.OutOrStdout(), "Built with %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
