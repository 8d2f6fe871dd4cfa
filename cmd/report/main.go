// Package main generates the trading summary from stored trades and
// writes SUMMARY.md and trades.csv to the output directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"momentum-lab/internal/config"
	"momentum-lab/internal/reporting"
	pgstore "momentum-lab/internal/storage/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	outputDir := flag.String("output-dir", "output", "Output directory for generated files")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string")
	stdout := flag.Bool("stdout", false, "Print the Markdown summary to stdout instead of writing files")
	flag.Parse()

	ctx := context.Background()

	if *postgresDSN == "" {
		fmt.Fprintln(os.Stderr, "Error: --postgres-dsn is required")
		os.Exit(1)
	}

	pool, err := pgstore.NewPool(ctx, *postgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	tradeStore := pgstore.NewTradeStore(pool)

	summary, err := reporting.NewGenerator(tradeStore).Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating summary: %v\n", err)
		os.Exit(1)
	}

	markdown := reporting.RenderMarkdown(summary)

	if *stdout {
		fmt.Print(markdown)
		return
	}

	closed, err := tradeStore.ListClosed(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing closed trades: %v\n", err)
		os.Exit(1)
	}
	csv := reporting.RenderTradesCSV(closed)

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}

	mdPath := filepath.Join(*outputDir, "SUMMARY.md")
	if err := os.WriteFile(mdPath, []byte(markdown), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", mdPath, err)
		os.Exit(1)
	}

	csvPath := filepath.Join(*outputDir, "trades.csv")
	if err := os.WriteFile(csvPath, []byte(csv), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", csvPath, err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %s and %s (%d closed trades)\n", mdPath, csvPath, summary.ClosedTrades)
}
