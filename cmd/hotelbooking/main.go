package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hotelbooking/internal/infra/config"
	"hotelbooking/internal/infra/db/gormstore"
	ginserver "hotelbooking/internal/infra/http/gin"
	"hotelbooking/internal/infra/obs"
	"hotelbooking/internal/infra/security"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "hotelbooking",
		Short:         "Hotel booking and payment reconciliation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd(), reconcileCmd(), tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, obs.NewLogger(cfg.Env), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the outbox relay and the payment reconcilers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := buildApplication(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			if err := app.migrate(ctx); err != nil {
				return err
			}
			if err := app.loadFixtures(ctx, fixturesPath(cfg.RoomFixtures)); err != nil {
				logger.Warn("room fixtures load failed", "error", err)
			}
			return app.serve(ctx)
		},
	}
}

func (a *application) serve(ctx context.Context) error {
	server := ginserver.NewServer(a.cfg, obs.Middleware{Logger: a.logger}, a.health, a.handlers)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("HTTP server starting", "addr", a.cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http shutdown failed", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		err := a.worker.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if a.taskServer != nil {
		g.Go(func() error { return a.taskServer.Run(ctx) })
	}
	if a.cfg.ReconcileSchedule != "" {
		c, err := a.sweeper.Start(ctx, a.cfg.ReconcileSchedule)
		if err != nil {
			return fmt.Errorf("start reconcile sweep: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			<-c.Stop().Done()
			return nil
		})
	}

	err := g.Wait()
	a.logger.Info("HTTP server stopped")
	return err
}

func migrateCmd() *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the relational schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.StoreDriver == "memory" {
				return fmt.Errorf("migrate: store driver %q has no schema", cfg.StoreDriver)
			}
			db, err := gormstore.Open(cfg.StoreDriver, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			if err := gormstore.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			logger.Info("schema migrated", "driver", cfg.StoreDriver)
			if !seed {
				return nil
			}
			fx, err := readFixtures(fixturesPath(cfg.RoomFixtures))
			if err != nil {
				return err
			}
			rooms, promos := fx.domain()
			if err := gormstore.Seed(cmd.Context(), db, rooms, promos, fx.effectiveFrom()); err != nil {
				return err
			}
			logger.Info("room fixtures seeded", "rooms", len(rooms), "promotions", len(promos))
			return nil
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "load room fixtures after migrating")
	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Query providers once for every payment still pending after the payment window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			app, err := buildApplication(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			sum, err := app.sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := app.worker.Drain(cmd.Context()); err != nil {
				logger.Warn("outbox drain failed", "error", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "checked=%d applied=%d failed=%d\n", sum.Checked, sum.Applied, sum.Failed)
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		roles []string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a bearer token for local testing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			tokens := security.HMACTokens{Secret: []byte(jwtSecret(cfg)), Issuer: cfg.JWTIssuer, TTL: ttl}
			token, err := tokens.Issue(args[0], roles...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&roles, "role", nil, "role claim, repeatable")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
