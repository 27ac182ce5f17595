package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tradesim-lab/internal/config"
	"tradesim-lab/internal/observability"
	"tradesim-lab/internal/pipeline"
	chstore "tradesim-lab/internal/storage/clickhouse"
	"tradesim-lab/internal/storage/memory"
	"tradesim-lab/internal/storage/migrations"
	pgstore "tradesim-lab/internal/storage/postgres"
	"tradesim-lab/internal/walkforward"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML configuration")
	runID := flag.String("run-id", "run-001", "Run identifier")
	cycle := flag.Int("cycle", 1, "Gate cycle index")
	outputDir := flag.String("output", "output", "Report output directory")
	useFixtures := flag.Bool("use-fixtures", false, "Seed the bar store with synthetic fixtures (memory backend)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}

	logger := observability.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		cancel()
	}()

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			logger.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listener started")
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	stores, cleanup, err := buildStores(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("storage setup failed")
	}
	defer cleanup()

	if *useFixtures {
		if cfg.Storage.Backend != "memory" {
			logger.Fatal().Msg("--use-fixtures requires the memory backend")
		}
		if err := pipeline.LoadFixtures(ctx, stores.Bars); err != nil {
			logger.Fatal().Err(err).Msg("load fixtures failed")
		}
		logger.Info().Msg("synthetic fixtures loaded")
	}

	fitter := &walkforward.MomentumFitter{
		TakeProfitPct: cfg.Execution.TakeProfitPct,
		StopLossPct:   cfg.Execution.StopLossPct,
		TrailingPct:   cfg.Execution.TrailingPct,
		TimeStopBars:  cfg.Execution.TimeStopBars,
	}

	p, err := pipeline.New(stores, cfg, fitter, *outputDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline setup failed")
	}

	result, err := p.Run(ctx, *runID, *cycle)
	if err != nil {
		logger.Fatal().Err(err).Msg("pipeline run failed")
	}

	fmt.Println()
	fmt.Println("=== Pipeline Summary ===")
	fmt.Printf("Run ID:               %s\n", result.RunID)
	fmt.Printf("Instruments:          %d processed, %d skipped\n", result.InstrumentsProcessed, result.InstrumentsSkipped)
	for reason, count := range result.SkipReasons {
		fmt.Printf("  skipped %-18s %d\n", reason+":", count)
	}
	fmt.Printf("Folds:                %d evaluated, %d skipped\n", result.FoldsEvaluated, result.FoldsSkipped)
	fmt.Printf("Trades persisted:     %d\n", result.TradesPersisted)
	fmt.Printf("Candidates scored:    %d\n", result.CandidatesScored)
	if result.GateTransition != nil {
		fmt.Printf("Gate active set:      %v\n", result.GateTransition.Active)
	}
	fmt.Printf("Reports written to:   %s\n", *outputDir)
}

// buildStores wires the storage backend selected by configuration.
func buildStores(ctx context.Context, cfg *config.Config) (pipeline.Stores, func(), error) {
	if cfg.Storage.Backend == "memory" {
		return pipeline.Stores{
			Bars:   memory.NewBarStore(),
			Trades: memory.NewTradeStore(),
			Fills:  memory.NewFillStore(),
			KPIs:   memory.NewKPIStore(),
			Scores: memory.NewScoreStore(),
		}, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return pipeline.Stores{}, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return pipeline.Stores{}, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Storage.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return pipeline.Stores{}, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	cleanup := func() {
		pool.Close()
		conn.Close()
	}

	return pipeline.Stores{
		Bars:   chstore.NewBarStore(conn),
		Trades: pgstore.NewTradeStore(pool),
		Fills:  pgstore.NewFillStore(pool),
		KPIs:   pgstore.NewKPIStore(pool),
		Scores: pgstore.NewScoreStore(pool),
	}, cleanup, nil
}
