package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"tradesim-lab/internal/domain"
	"tradesim-lab/internal/pipeline"
	"tradesim-lab/internal/sim"
	"tradesim-lab/internal/storage"
	chstore "tradesim-lab/internal/storage/clickhouse"
	"tradesim-lab/internal/storage/memory"
	"tradesim-lab/internal/storage/migrations"
)

func main() {
	// Entry definition
	instrument := flag.String("instrument", "", "Instrument to backtest (required)")
	side := flag.String("side", "LONG", "Trade side: LONG or SHORT")
	entryTimeMs := flag.Int64("entry-time-ms", 0, "Entry timestamp (ms); 0 enters at the first stored bar")
	quantity := flag.Float64("quantity", 1.0, "Position quantity")

	// Exit rules, as fractions of the entry price
	takeProfitPct := flag.Float64("take-profit-pct", 0.02, "Take-profit distance")
	stopLossPct := flag.Float64("stop-loss-pct", 0.01, "Stop-loss distance")
	trailingPct := flag.Float64("trailing-pct", 0.0, "Trailing-stop distance; 0 disables trailing")
	timeStopBars := flag.Int("time-stop-bars", 0, "Exit after this many bars; 0 disables the time stop")

	// Storage
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for stored bars")
	useFixtures := flag.Bool("use-fixtures", false, "Use in-memory synthetic bars instead of ClickHouse")

	// Output
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	logger := log.New(os.Stderr, "[backtest] ", log.LstdFlags)

	if *instrument == "" {
		logger.Fatal("--instrument is required")
	}

	*side = strings.ToUpper(*side)
	if *side != string(domain.SideLong) && *side != string(domain.SideShort) {
		logger.Fatalf("Invalid side: %s. Must be LONG or SHORT", *side)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	var barStore storage.BarStore
	if *useFixtures {
		memStore := memory.NewBarStore()
		if err := pipeline.LoadFixtures(ctx, memStore); err != nil {
			logger.Fatalf("load fixtures: %v", err)
		}
		barStore = memStore
	} else {
		if *clickhouseDSN == "" {
			logger.Fatal("--clickhouse-dsn is required without --use-fixtures")
		}
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("connect to clickhouse: %v", err)
		}
		defer conn.Close()
		barStore = chstore.NewBarStore(conn)
	}

	bars, err := barStore.GetByInstrument(ctx, *instrument)
	if err != nil {
		logger.Fatalf("load bars: %v", err)
	}
	if len(bars) == 0 {
		logger.Fatalf("no bars stored for %s", *instrument)
	}

	series := &domain.BarSeries{Instrument: *instrument, Bars: bars}
	if err := series.Validate(); err != nil {
		logger.Fatalf("invalid bar series: %v", err)
	}

	spec, scanBars, err := buildEntry(series, domain.Side(*side), *entryTimeMs,
		*takeProfitPct, *stopLossPct, *trailingPct, *timeStopBars)
	if err != nil {
		logger.Fatalf("build entry: %v", err)
	}

	simulator := sim.New()
	simulator.Quantity = *quantity

	logger.Printf("Resolving entry: instrument=%s side=%s entry_time_ms=%d entry_price=%.6f",
		spec.Instrument, spec.Side, spec.EntryTimeMs, spec.EntryPrice)

	trade, err := simulator.Resolve(spec, scanBars)
	if err != nil {
		logger.Fatalf("resolve failed: %v", err)
	}

	if *outputJSON {
		output, _ := json.MarshalIndent(trade, "", "  ")
		fmt.Println(string(output))
	} else {
		printTrade(trade)
	}
}

// buildEntry anchors the entry on the first bar at or after the requested
// time and scans the strictly later bars.
func buildEntry(series *domain.BarSeries, side domain.Side, entryTimeMs int64,
	tpPct, slPct, trailPct float64, timeStopBars int) (*domain.EntrySpec, []domain.Bar, error) {

	entryBar := series.Bars[0]
	if entryTimeMs > 0 {
		found := false
		for _, b := range series.Bars {
			if b.TimestampMs >= entryTimeMs {
				entryBar = b
				found = true
				break
			}
		}
		if !found {
			return nil, nil, fmt.Errorf("no bar at or after entry time %d", entryTimeMs)
		}
	}

	price := entryBar.Close
	mult := side.Multiplier()

	spec := &domain.EntrySpec{
		Instrument:      series.Instrument,
		Side:            side,
		EntryTimeMs:     entryBar.TimestampMs,
		EntryPrice:      price,
		TakeProfitPrice: price * (1 + mult*tpPct),
		StopLossPrice:   price * (1 - mult*slPct),
		TimeStopBars:    timeStopBars,
	}
	if trailPct > 0 {
		spec.TrailingStopDistance = price * trailPct
	}
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}

	return spec, series.SliceAfter(entryBar.TimestampMs), nil
}

// printTrade outputs a human-readable trade.
func printTrade(t *domain.Trade) {
	fmt.Println()
	fmt.Println("=== Backtest Result ===")
	fmt.Printf("Instrument:     %s\n", t.Instrument)
	fmt.Printf("Side:           %s\n", t.Side)
	fmt.Printf("Entry Time:     %d\n", t.EntryTimeMs)
	fmt.Printf("Entry Price:    %.6f\n", t.EntryPrice)
	fmt.Printf("Exit Time:      %d\n", t.ExitTimeMs)
	fmt.Printf("Exit Price:     %.6f\n", t.ExitPrice)
	fmt.Printf("Exit Reason:    %s\n", t.ExitReason)
	fmt.Printf("Bars Held:      %d\n", t.BarsHeld)
	fmt.Printf("Realized PnL:   %.6f\n", t.RealizedPnL)
}
