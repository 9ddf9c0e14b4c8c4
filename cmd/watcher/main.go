// watcher follows a deployed token manager program and journals every
// operation, the token's metadata and its supply into PostgreSQL and
// ClickHouse, serving health, metrics and the journal over HTTP.
package main

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
	"golang.org/x/sync/errgroup"

	"solana-token-manager/internal/config"
	"solana-token-manager/internal/journal"
	"solana-token-manager/internal/observability"
	"solana-token-manager/internal/solana"
)

var (
	envFile     string
	verbose     bool
	noLive      bool
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "watcher",
	Short: "Journal the token manager's operations",
	Long: `watcher subscribes to the program's logs, backfills missed transactions
from the last checkpoint and stores operations, metadata and supply snapshots.

Storage is PostgreSQL (POSTGRES_DSN) and ClickHouse (CLICKHOUSE_DSN); a
backend without a DSN is kept in memory.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runWatcher,
}

func init() {
	rootCmd.Flags().StringVar(&envFile, "env-file", ".env", "Environment file to load")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.Flags().BoolVar(&noLive, "no-live", false, "Only poll with backfill, no log subscription")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "HTTP address for health, metrics and queries (or METRICS_ADDR, empty to disable)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runWatcher(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	logger, err := cfg.Logger(verbose)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Channel to signal main goroutine completion
	done := make(chan struct{})
	defer close(done)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, initiating graceful shutdown", zap.Stringer("signal", sig))
			cancel()
		case <-done:
			return
		}

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Warn("received second signal, forcing immediate shutdown", zap.Stringer("signal", sig))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Warn("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, logger)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	obs := observability.DefaultMetrics
	programID := cfg.Program()

	stores, cleanup, err := createStores(ctx, cfg.PostgresDSN, cfg.ClickhouseDSN, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	rpc := solana.NewHTTPClient(cfg.RPCURL,
		solana.WithCommitment(cfg.Commitment),
		solana.WithLogger(logger),
		solana.WithObserver(obs.ObserveRPC),
	)

	var ws solana.WSClient
	if !noLive {
		wsClient, err := solana.NewWSClient(ctx, cfg.WebSocketURL(), nil)
		if err != nil {
			return fmt.Errorf("create websocket client: %w", err)
		}
		defer wsClient.Close()
		ws = wsClient
	}

	runner, err := journal.NewRunner(journal.RunnerOptions{
		ProgramID:     programID,
		RPC:           rpc,
		WS:            ws,
		Operations:    stores.operationStore,
		MetadataStore: stores.metadataStore,
		SupplyStore:   stores.supplyStore,
		Progress:      stores.progressStore,
		PageSize:      cfg.PageSize,
		PollInterval:  cfg.PollInterval,
		Metrics:       obs,
		Logger:        logger.Named("journal"),
	})
	if err != nil {
		return err
	}

	logger.Info("watching token manager",
		zap.String("program", programID.ToBase58()),
		zap.String("mint", runner.Mint().ToBase58()),
		zap.String("rpc", cfg.RPCURL),
		zap.Bool("live", ws != nil),
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := runner.Run(gctx); err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		return nil
	})

	if cfg.MetricsAddr != "" {
		server := &Server{
			programID: programID.ToBase58(),
			mint:      runner.Mint().ToBase58(),
			stores:    stores,
			started:   time.Now(),
			logger:    logger.Named("http"),
		}
		g.Go(func() error {
			return server.ListenAndServe(gctx, cfg.MetricsAddr)
		})
	}

	go obs.TrackUptime(time.Second, gctx.Done())

	return g.Wait()
}
