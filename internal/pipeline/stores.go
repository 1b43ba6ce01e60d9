package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"candle-bin-lab/internal/config"
	chstore "candle-bin-lab/internal/storage/clickhouse"
	"candle-bin-lab/internal/storage/memory"
	"candle-bin-lab/internal/storage/migrations"
	pgstore "candle-bin-lab/internal/storage/postgres"
)

// OpenStores builds the stores selected by cfg. Runs, trades and assessments
// live in Postgres when the driver is postgres; bars and scored bars live in
// ClickHouse when a DSN is set. Everything else is in memory.
// The returned cleanup closes every opened connection.
func OpenStores(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger) (Stores, func(), error) {
	stores := Stores{
		Runs:        memory.NewRunStore(),
		Trades:      memory.NewTradeStore(),
		Assessments: memory.NewAssessmentStore(),
		Bars:        memory.NewBarStore(),
		ScoredBars:  memory.NewScoredBarStore(),
	}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.Driver == "postgres" {
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return Stores{}, nil, err
		}
		closers = append(closers, pool.Close)

		if cfg.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				cleanup()
				return Stores{}, nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		stores.Runs = pgstore.NewRunStore(pool)
		stores.Trades = pgstore.NewTradeStore(pool)
		stores.Assessments = pgstore.NewAssessmentStore(pool)
		logger.Info().Msg("using postgres for runs, trades and assessments")
	}

	if cfg.ClickHouseDSN != "" {
		var (
			conn *chstore.Conn
			err  error
		)
		if cfg.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.ClickHouseDSN)
		}
		if err != nil {
			cleanup()
			return Stores{}, nil, fmt.Errorf("clickhouse: %w", err)
		}
		closers = append(closers, func() { _ = conn.Close() })

		stores.Bars = chstore.NewBarStore(conn)
		stores.ScoredBars = chstore.NewScoredBarStore(conn)
		logger.Info().Msg("using clickhouse for bars and scored bars")
	}

	return stores, cleanup, nil
}
