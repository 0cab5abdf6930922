/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Command entityd serves the entity catalog and runs its maintenance jobs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/suparena/eserp"
	"github.com/suparena/eserp/api"
	"github.com/suparena/eserp/bulksync"
	"github.com/suparena/eserp/config"
)

func main() {
	root := &cli.Command{
		Name:  "entityd",
		Usage: "ES-ERP entity catalog service",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "env-file", Value: []string{".env"}, Usage: "dotenv files loaded before the environment is read"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			seedCommand(),
			syncCommand(),
			versionCommand(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "entityd:", err)
		os.Exit(1)
	}
}

func setup(c *cli.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(c.StringSlice("env-file")...)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, cfg.Logger(os.Stderr), nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "HTTP listen address (overrides HTTP_ADDR)"},
			&cli.BoolFlag{Name: "no-seed", Usage: "skip SYSTEM type reconciliation on start"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			if addr := c.String("addr"); addr != "" {
				cfg.HTTPAddr = addr
			}
			return runServer(ctx, cfg, logger, cfg.SeedOnStart && !c.Bool("no-seed"))
		},
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, seedTypes bool) error {
	cat, err := eserp.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cat.Close(context.Background())

	if seedTypes {
		if _, err := cat.Seed(ctx); err != nil {
			return fmt.Errorf("seeding: %w", err)
		}
	}

	router := api.NewRouter(cat.Executor, cat.Registry, api.WithLogger(logger.With("component", "api")))
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Reconcile the SYSTEM entity types and exit",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			cat, err := eserp.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cat.Close(context.Background())

			report, err := cat.Seed(ctx)
			if err != nil {
				return err
			}
			fmt.Println(report)
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Copy entities from the relational source into the entity store",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "concurrency", Usage: "partitions copied in parallel (overrides SYNC_CONCURRENCY)"},
			&cli.BoolFlag{Name: "keep-going", Usage: "continue with other tenants when one fails"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, logger, err := setup(c)
			if err != nil {
				return err
			}
			if cfg.Sync.DatabaseURL == "" {
				return fmt.Errorf("SYNC_DATABASE_URL is required")
			}
			if n := int(c.Int("concurrency")); n > 0 {
				cfg.Sync.Concurrency = n
			}

			pool, err := bulksync.OpenPool(ctx, cfg.Sync.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			src, err := bulksync.NewPostgresSource(pool, cfg.Sync.Table)
			if err != nil {
				return err
			}
			cat, err := eserp.Open(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cat.Close(context.Background())

			opts := []bulksync.Option{
				bulksync.WithLogger(logger.With("component", "bulksync")),
				bulksync.WithPageSize(cfg.Sync.PageSize),
				bulksync.WithMaxRetries(cfg.Sync.MaxRetries),
				bulksync.WithMaxConcurrency(cfg.Sync.Concurrency),
				bulksync.WithProgressHandler(func(p bulksync.Progress) {
					logger.Debug("sync progress", "partition", p.Partition, "synced", p.ItemsSynced, "pages", p.PagesProcessed, "rate", p.CurrentRate)
				}),
			}
			if c.Bool("keep-going") {
				opts = append(opts, bulksync.WithErrorHandler(func(string, error) bool { return true }))
			}

			stats, err := bulksync.NewSyncer(src, cat.Entities, opts...).Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(stats)
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(ctx context.Context, c *cli.Command) error {
			return printJSON(eserp.GetVersionInfo())
		},
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
