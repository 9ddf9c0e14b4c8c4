package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"solana-token-manager/internal/storage"
	chstore "solana-token-manager/internal/storage/clickhouse"
	"solana-token-manager/internal/storage/memory"
	pgstore "solana-token-manager/internal/storage/postgres"
)

// allStores holds the journal's storage implementations.
type allStores struct {
	operationStore storage.OperationStore
	metadataStore  storage.TokenMetadataStore
	supplyStore    storage.SupplySnapshotStore
	progressStore  storage.JournalProgressStore
}

// createStores connects PostgreSQL (operations, metadata, checkpoint) and
// ClickHouse (supply snapshots) when their DSNs are set and migrates them.
// A backend without a DSN is kept in memory.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN string, logger *zap.Logger) (*allStores, func(), error) {
	stores := &allStores{
		operationStore: memory.NewOperationStore(),
		metadataStore:  memory.NewTokenMetadataStore(),
		supplyStore:    memory.NewSupplySnapshotStore(),
		progressStore:  memory.NewJournalProgressStore(),
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if postgresDSN != "" {
		pool, err := pgstore.NewPool(ctx, postgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if err := pool.Migrate(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		stores.operationStore = pgstore.NewOperationStore(pool)
		stores.metadataStore = pgstore.NewTokenMetadataStore(pool)
		stores.progressStore = pgstore.NewJournalProgressStore(pool)
		logger.Info("using postgres for operations, metadata and checkpoints")
	} else {
		logger.Warn("POSTGRES_DSN not set, operations are kept in memory")
	}

	if clickhouseDSN != "" {
		conn, err := chstore.Open(ctx, clickhouseDSN)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })
		stores.supplyStore = chstore.NewSupplySnapshotStore(conn)
		logger.Info("using clickhouse for supply snapshots")
	} else {
		logger.Warn("CLICKHOUSE_DSN not set, supply snapshots are kept in memory")
	}

	return stores, cleanup, nil
}
