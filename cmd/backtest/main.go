// Package main runs a single-symbol backtest over a CSV bar series:
// walk-forward analysis → strategy replay → performance report.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"drummond-lab/internal/backtest"
	"drummond-lab/internal/domain"
	"drummond-lab/internal/engine"
	"drummond-lab/internal/execution"
	"drummond-lab/internal/feed"
	"drummond-lab/internal/metrics"
	"drummond-lab/internal/reporting"
	"drummond-lab/internal/storage/migrations"
	pgstore "drummond-lab/internal/storage/postgres"
	"drummond-lab/internal/strategy"
)

func main() {
	barsPath := flag.String("bars", "", "Path to CSV bar file (required)")
	symbol := flag.String("symbol", "", "Symbol the bars belong to (required)")
	interval := flag.String("interval", domain.Interval5Min, "Trading interval of the bars (1m, 5m, 30m, 1d)")
	higherInterval := flag.String("higher-interval", domain.Interval30Min, "Higher confirmation interval")

	strategyType := flag.String("strategy", domain.StrategyTypeRegimeFollow, "Strategy type (CONFLUENCE, TRAILING_STOP, REGIME_FOLLOW)")
	size := flag.Float64("size", 1, "Fixed position size in units")
	minStrength := flag.Float64("min-strength", 0.7, "Minimum signal strength for entries")
	stopPct := flag.Float64("stop-pct", 0.02, "Stop distance as fraction of entry price")
	trailPct := flag.Float64("trail-pct", 0.05, "Trailing stop distance from peak")
	initialStopPct := flag.Float64("initial-stop-pct", 0.05, "Initial stop distance from entry")
	minBarsInState := flag.Int("min-bars-in-state", 3, "Bars a regime must hold before entry")
	allowShort := flag.Bool("allow-short", true, "Permit short entries")

	startingCash := flag.Float64("starting-cash", 10_000, "Starting cash")
	slippageBps := flag.Float64("slippage-bps", 0, "Slippage in basis points, adverse")
	commissionRate := flag.Float64("commission-rate", 0, "Commission as fraction of notional")

	outputDir := flag.String("output-dir", "", "Write markdown and CSV reports here (optional)")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "Persist the run to PostgreSQL (optional)")
	flag.Parse()

	if *barsPath == "" || *symbol == "" {
		fmt.Fprintln(os.Stderr, "--bars and --symbol are required")
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bars, err := feed.LoadBarsCSV(*barsPath, *symbol, *interval)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading bars: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d bars for %s (%s)\n", len(bars), *symbol, *interval)

	strat, err := strategy.FromConfig(domain.StrategyConfig{
		StrategyType:    *strategyType,
		Size:            size,
		MinimumStrength: minStrength,
		StopDistancePct: stopPct,
		AllowShortSide:  allowShort,
		TrailPct:        trailPct,
		InitialStopPct:  initialStopPct,
		MinBarsInState:  minBarsInState,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating strategy: %v\n", err)
		os.Exit(1)
	}

	analysisCfg := backtest.DefaultAnalysisConfig()
	analysisCfg.TradingInterval = *interval
	analysisCfg.HigherInterval = *higherInterval

	runner := backtest.NewRunner(
		analysisCfg,
		engine.Config{StartingCash: *startingCash, DefaultSize: *size},
		execution.Config{SlippageBps: *slippageBps, CommissionRate: *commissionRate, QuantityDecimals: 4},
	)

	result, err := runner.Run(ctx, strat, bars)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Backtest error: %v\n", err)
		os.Exit(1)
	}

	report := metrics.ComputeReport(result)
	printSummary(report, result)

	if *outputDir != "" {
		if err := writeReports(*outputDir, report, result); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing reports: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Reports written to %s/\n", *outputDir)
	}

	if *postgresDSN != "" {
		if err := persistResult(ctx, *postgresDSN, result); err != nil {
			fmt.Fprintf(os.Stderr, "Error persisting result: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Run %s persisted\n", result.RunID)
	}
}

// printSummary prints the run headline to stdout.
func printSummary(r *metrics.Report, result *domain.BacktestResult) {
	fmt.Printf("\n=== %s ===\n", result.StrategyID)
	fmt.Printf("Run ID:          %s\n", result.RunID)
	fmt.Printf("Trades:          %d (%d wins, %d losses)\n", r.TotalTrades, r.Wins, r.Losses)
	fmt.Printf("Win rate:        %.1f%%\n", r.WinRate*100)
	fmt.Printf("Net profit:      %.2f\n", r.NetProfit)
	fmt.Printf("Profit factor:   %.2f\n", r.ProfitFactor)
	fmt.Printf("Max drawdown:    %.2f (%.1f%%)\n", r.MaxDrawdown, r.MaxDrawdownPct*100)
	fmt.Printf("Total return:    %.1f%%\n", r.TotalReturnPct*100)
	fmt.Printf("Rejected signals: %d\n", result.SignalsRejected)
}

// writeReports renders the markdown summary and the CSV exports.
func writeReports(dir string, report *metrics.Report, result *domain.BacktestResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	run := reporting.NewRunReport([]*metrics.Report{report})
	files := map[string]string{
		"REPORT.md":   reporting.RenderMarkdown(run),
		"metrics.csv": reporting.RenderMetricsCSV([]*metrics.Report{report}),
		"trades.csv":  reporting.RenderTradesCSV(result.Trades),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

// persistResult stores the finished run in PostgreSQL.
func persistResult(ctx context.Context, dsn string, result *domain.BacktestResult) error {
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return pgstore.NewBacktestResultStore(pool).Insert(ctx, result)
}
