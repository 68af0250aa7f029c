package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solatis/waveplanner/internal/allocation"
	"github.com/solatis/waveplanner/internal/core/api"
	"github.com/solatis/waveplanner/internal/core/config"
	"github.com/solatis/waveplanner/internal/core/db"
	"github.com/solatis/waveplanner/internal/core/metrics"
	"github.com/solatis/waveplanner/internal/core/server"
	"github.com/solatis/waveplanner/internal/rules"
	"github.com/solatis/waveplanner/internal/snapshot"
	"github.com/solatis/waveplanner/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC planner service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().String("metrics-addr", ":9090", "Prometheus listen address (empty disables)")
	serveCmd.Flags().String("stock-points", "", "stock point snapshot file (YAML or JSON)")
	serveCmd.Flags().Duration("request-timeout", 0, "per-request timeout")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.StockPointsFile == "" {
		return fmt.Errorf("--stock-points required")
	}
	points, err := snapshot.LoadStockPoints(cfg.StockPointsFile)
	if err != nil {
		return fmt.Errorf("failed to load stock points: %w", err)
	}
	allocEngine, err := allocation.NewEngine(points, allocation.WithDefaultWeights(cfg.Weights))
	if err != nil {
		return fmt.Errorf("failed to create allocation engine: %w", err)
	}

	st, closeStore, err := openStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	service, err := api.NewPlannerService(cfg, rules.NewEngine(nil), allocEngine, st,
		api.WithMetrics(m),
		api.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(cfg, service, logger, m)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.Info("starting waveplanner",
		"version", Version,
		"addr", cfg.Addr(),
		"stock_points", len(points),
	)
	errChan := make(chan error, 2)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	var metricsServer *server.MetricsServer
	if cfg.MetricsAddr != "" {
		metricsServer = server.NewMetricsServer(cfg.MetricsAddr, m.Handler(), logger)
		go func() {
			errChan <- metricsServer.Start()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		var errs []error
		if metricsServer != nil {
			errs = append(errs, metricsServer.Shutdown(ctx))
		}
		errs = append(errs, grpcServer.Shutdown(ctx))
		return errors.Join(errs...)
	}
}

// openStore opens the SQL store for dbURL, or an in-memory store when no
// database is configured. The SQL schema must be fully migrated.
func openStore(ctx context.Context, dbURL string) (store.Store, func(), error) {
	if dbURL == "" {
		logger.Warn("no database configured, strategies are kept in memory only")
		return store.NewMemoryStore(), func() {}, nil
	}

	database, err := db.Open(ctx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'waveplanner migrate' first", s.ID)
		}
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return store.NewSQLStore(queries), func() { database.Close() }, nil
}
