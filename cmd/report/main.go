package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"tradesim-lab/internal/reporting"
	pgstore "tradesim-lab/internal/storage/postgres"
)

func main() {
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "Postgres connection string")
	outputDir := flag.String("output", "output", "Report output directory")
	markdownOnly := flag.Bool("markdown-only", false, "Write only REPORT.md, skip CSV exports")
	flag.Parse()

	if *postgresDSN == "" {
		fmt.Fprintln(os.Stderr, "report: --postgres-dsn or POSTGRES_DSN is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: connect to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	gen := reporting.NewGenerator(
		pgstore.NewTradeStore(pool),
		pgstore.NewKPIStore(pool),
		pgstore.NewScoreStore(pool),
	)

	report, err := gen.Generate(ctx, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "report: generate: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "report: create output dir: %v\n", err)
		os.Exit(1)
	}

	files := map[string]string{
		"REPORT.md": reporting.RenderMarkdown(report),
	}
	if !*markdownOnly {
		files["kpis.csv"] = reporting.RenderKPIsCSV(report.KPIRows)
		files["scores.csv"] = reporting.RenderScoresCSV(report.Scores)
	}

	for name, content := range files {
		path := filepath.Join(*outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "report: write %s: %v\n", name, err)
			os.Exit(1)
		}
		fmt.Printf("wrote %s\n", path)
	}

	fmt.Printf("runs: %d, instruments: %d, trades: %d\n",
		report.RunCount, report.InstrumentCount, report.DataSummary.TotalTrades)
}
