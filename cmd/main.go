package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imelt/internal/catalog"
	"imelt/internal/config"
	"imelt/internal/handlers"
	"imelt/internal/logger"
	"imelt/internal/metrics"
	"imelt/internal/repository"
	"imelt/internal/repository/db"
	"imelt/internal/server"
	"imelt/internal/service"
	"imelt/internal/stream"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// boundKeys are the config keys that may be overridden from the command line.
var boundKeys = []string{"port", "metrics_port", "log.level", "db.path"}

func newRootCmd() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:           "imelt",
		Short:         "I-MELT electric arc furnace demo backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := config.NewViper(configDir)
			for _, key := range boundKeys {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flagName(key))); err != nil {
					return fmt.Errorf("bind flag %s: %w", key, err)
				}
			}
			if err := config.ReadFile(v); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configDir, "config", "configs", "directory holding config.yml")
	flags.String("port", "", "HTTP listen port")
	flags.String("metrics-port", "", "Prometheus listen port; empty disables")
	flags.String("log-level", "", "debug | info | warn | error")
	flags.String("db", "", "SQLite file; empty keeps the heat store in memory")
	return cmd
}

func flagName(key string) string {
	switch key {
	case "metrics_port":
		return "metrics-port"
	case "log.level":
		return "log-level"
	case "db.path":
		return "db"
	default:
		return key
	}
}

func run(parent context.Context, cfg config.Config) error {
	log := logger.Get(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	repos, closeRepo := openRepository(cfg.DBPath, log)
	defer closeRepo()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	// wire dependencies
	hub := stream.NewHub(stream.DefaultBuffer)
	defer hub.Close()

	services := service.NewService(repos, service.Deps{
		Publisher:    hub,
		Completer:    newCompleter(ctx, cfg.AI, log),
		AITimeout:    cfg.AI.Timeout,
		InsightEvery: cfg.Simulation.InsightEvery,
		Log:          log,
	})

	recs, err := catalog.Load()
	if err != nil {
		return fmt.Errorf("load heat catalog: %w", err)
	}
	if err := services.Seed(ctx, recs); err != nil {
		return fmt.Errorf("seed heat records: %w", err)
	}
	log.Infow("heat catalog seeded", "records", len(recs))

	if as := cfg.Simulation.Autostart; as.Enabled {
		if _, err := services.Start(ctx, as.Seed, as.HeatID); err != nil {
			return fmt.Errorf("autostart heat %d: %w", as.HeatID, err)
		}
		log.Infow("demo heat started", "heat_id", as.HeatID, "seed", as.Seed)
	}

	apiHandler := handlers.NewHandler(services, hub, log)
	srv := server.New(cfg.Port, apiHandler.InitRoutes())
	var metricsSrv *server.Server
	if cfg.MetricsPort != "" {
		metricsSrv = server.New(cfg.MetricsPort, server.MetricsHandler(prometheus.DefaultGatherer))
	}

	g, gctx := errgroup.WithContext(ctx)

	// start simulator (via composed service)
	g.Go(func() error {
		services.Run(gctx, cfg.Simulation.Tick)
		return nil
	})
	g.Go(func() error {
		log.Infow("http server listening", "addr", srv.Addr())
		if err := srv.Run(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if metricsSrv != nil {
		g.Go(func() error {
			log.Infow("metrics server listening", "addr", metricsSrv.Addr())
			if err := metricsSrv.Run(); err != nil {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Infow("shutting down server...")
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if mErr := metricsSrv.Shutdown(shutdownCtx); mErr != nil {
			err = errors.Join(err, mErr)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Errorw("server stopped with error", "err", err)
		return err
	}
	log.Infow("server stopped")
	return nil
}

// openRepository prefers SQLite and falls back to the in-memory store.
func openRepository(path string, log *logger.Logger) (*repository.Repository, func()) {
	if path == "" {
		log.Infow("db.path not set; using in-memory heat store")
		return repository.NewMemoryRepository(), func() {}
	}
	conn, err := db.InitDB(path)
	if err != nil {
		log.Warnw("failed to init sqlite; using in-memory heat store", "path", path, "err", err)
		return repository.NewMemoryRepository(), func() {}
	}
	return repository.NewRepository(conn), func() { closeDB(conn, log) }
}

func closeDB(conn *sql.DB, log *logger.Logger) {
	if err := conn.Close(); err != nil {
		log.Errorw("failed to close sqlite", "err", err)
	}
}

// newCompleter returns nil unless an API key is configured.
func newCompleter(ctx context.Context, cfg config.AIConfig, log *logger.Logger) service.Completer {
	if !cfg.Enabled() {
		log.Infow("ai disabled; insights run deterministic only")
		return nil
	}
	c, err := service.NewGenAICompleter(ctx, cfg.APIKey, cfg.Model)
	if err != nil {
		log.Warnw("ai client unavailable; insights run deterministic only", "err", err)
		return nil
	}
	log.Infow("ai enabled", "model", cfg.Model)
	return c
}
