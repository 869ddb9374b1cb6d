package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/ravikanth/payflux/internal/config"
	"github.com/ravikanth/payflux/internal/logging"
	"github.com/ravikanth/payflux/internal/server"
	"github.com/ravikanth/payflux/internal/service"
	"github.com/ravikanth/payflux/internal/store"
)

func main() {
	// Optional .env for local development; env vars take precedence.
	_ = godotenv.Load()

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	st, err := buildStore(ctx, logger, cfg.Store)
	if err != nil {
		logger.Error("failed to create record store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			logger.Warn("closing record store failed", "error", err)
		}
	}()

	pool := service.NewWorkerPool(logger, cfg.Worker.Count, cfg.Worker.QueueSize)
	completer := service.NewCompleter(logger, st, service.SimulatedStep{Delay: cfg.Worker.CompletionDelay})
	ingestor := service.NewIngestor(logger, st, pool, completer)
	query := service.NewQuery(st)

	router := server.NewRouter(logger, server.RouterDependencies{
		Health:           server.StoreHealthService{Store: st},
		API:              server.NewAPIHandlers(logger, ingestor, query),
		AllowedOrigins:   parseAllowedOrigins(cfg.HTTP.AllowedOriginsCSV),
		AllowCredentials: true,
	})

	srv := server.New(logger, cfg.HTTP, router)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("server stopped unexpectedly", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	// Give queued completions a chance to finish; abandoned ones stay
	// PROCESSING, which the read path tolerates.
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Worker.DrainTimeout)
	defer cancelDrain()

	if err := pool.Drain(drainCtx); err != nil {
		logger.Error("completion drain incomplete", "error", err)
	}
}

func buildStore(ctx context.Context, logger *slog.Logger, cfg config.StoreConfig) (store.Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "postgres":
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required for the postgres store")
		}
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL, int32(cfg.MaxConns))
		if err != nil {
			return nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close(ctx)
			return nil, err
		}
		logger.Info("connected to postgres store")
		return pg, nil

	case "neo4j":
		g, err := store.NewGraph(ctx, store.GraphOptions{
			URI:            cfg.Graph.URI,
			Database:       cfg.Graph.Database,
			Username:       cfg.Graph.Username,
			Password:       cfg.Graph.Password,
			MaxConnections: cfg.Graph.MaxConnections,
		})
		if err != nil {
			return nil, err
		}
		if err := g.EnsureSchema(ctx); err != nil {
			_ = g.Close(ctx)
			return nil, err
		}
		logger.Info("connected to graph store", "uri", cfg.Graph.URI)
		return g, nil

	case "memory":
		logger.Warn("using in-memory store; records will not survive a restart")
		return store.NewMemory(), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func parseAllowedOrigins(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	var origins []string
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
